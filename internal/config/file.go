package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the optional YAML config under the Aria home.
const FileName = "config.yaml"

// fileConfig mirrors the environment keys in snake_case. Absent keys keep
// their defaults.
type fileConfig struct {
	LogLevel        *string           `yaml:"log_level"`
	LogFile         *string           `yaml:"log_file"`
	RetryTries      *int              `yaml:"retry_tries"`
	RetryDelayMS    *int              `yaml:"retry_delay_ms"`
	RetryBackoff    *float64          `yaml:"retry_backoff"`
	RetryJitter     *float64          `yaml:"retry_jitter"`
	ThrottleMS      *int              `yaml:"throttle_ms"`
	SpawnWaitMS     *int              `yaml:"spawn_wait_ms"`
	ProbeTimeoutMS  *int              `yaml:"probe_timeout_ms"`
	Drivers         map[string]string `yaml:"drivers"`
	BrowserBinary   *string           `yaml:"browser_binary"`
	ContentMaxBytes *int              `yaml:"content_max_bytes"`

	LLMProvider *string `yaml:"llm_provider"`
	LLMModel    *string `yaml:"llm_model"`
	LLMAPIKey   *string `yaml:"llm_api_key"`
	LLMBaseURL  *string `yaml:"llm_base_url"`

	APIBindAddr         *string  `yaml:"api_bind_addr"`
	APIPortCandidates   []string `yaml:"api_port_candidates"`
	APIPortAutoFallback *bool    `yaml:"api_port_auto_fallback"`
}

// applyFile overlays path onto cfg. A missing file is not an error.
func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("config file %s: %w", path, err)
	}

	setString(&cfg.LogLevel, fc.LogLevel)
	setString(&cfg.LogFile, fc.LogFile)
	setInt(&cfg.RetryTries, fc.RetryTries)
	setMillis(&cfg.RetryDelay, fc.RetryDelayMS)
	setFloat(&cfg.RetryBackoff, fc.RetryBackoff)
	setFloat(&cfg.RetryJitter, fc.RetryJitter)
	setMillis(&cfg.ThrottleDelay, fc.ThrottleMS)
	setMillis(&cfg.SpawnWait, fc.SpawnWaitMS)
	setMillis(&cfg.ProbeTimeout, fc.ProbeTimeoutMS)
	for kind, p := range fc.Drivers {
		cfg.DriverPaths[strings.ToLower(kind)] = p
	}
	setString(&cfg.BrowserBinary, fc.BrowserBinary)
	setInt(&cfg.ContentMaxBytes, fc.ContentMaxBytes)

	setString(&cfg.LLM.Provider, fc.LLMProvider)
	setString(&cfg.LLM.Model, fc.LLMModel)
	setString(&cfg.LLM.APIKey, fc.LLMAPIKey)
	setString(&cfg.LLM.BaseURL, fc.LLMBaseURL)

	setString(&cfg.API.BindAddr, fc.APIBindAddr)
	if len(fc.APIPortCandidates) > 0 {
		cfg.API.PortCandidates = fc.APIPortCandidates
	}
	if fc.APIPortAutoFallback != nil {
		cfg.API.AutoFallback = *fc.APIPortAutoFallback
	}
	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

func setMillis(dst *time.Duration, v *int) {
	if v != nil && *v >= 0 {
		*dst = time.Duration(*v) * time.Millisecond
	}
}
