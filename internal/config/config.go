package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the aria CLI and API.
type Config struct {
	// Home holds session descriptors, scripts, captured content and logs.
	Home string

	LogLevel string
	LogFile  string

	RetryTries    int
	RetryDelay    time.Duration
	RetryBackoff  float64
	RetryJitter   float64
	ThrottleDelay time.Duration

	SpawnWait    time.Duration
	ProbeTimeout time.Duration
	// DriverPaths maps a browser kind to an explicit driver binary.
	DriverPaths   map[string]string
	BrowserBinary string

	ContentMaxBytes int

	LLM LLMConfig
	API APIConfig
}

// LLMConfig selects the language-model provider.
type LLMConfig struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
}

// APIConfig holds HTTP API bind settings.
type APIConfig struct {
	BindAddr       string
	PortCandidates []string
	AutoFallback   bool
}

// DriverKinds are the kinds that accept an ARIA_DRIVER_<KIND> override.
var DriverKinds = []string{"chrome", "chromium", "edge", "firefox"}

// Load reads configuration from defaults, then <home>/config.yaml, then
// environment variables and an optional .env file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	}

	home, err := homeDir()
	if err != nil {
		return nil, err
	}
	cfg := defaults(home)

	if err := applyFile(cfg, filepath.Join(home, FileName)); err != nil {
		return nil, err
	}
	applyEnv(cfg)

	if cfg.LogFile == "" {
		cfg.LogFile = filepath.Join(cfg.Home, "aria.log")
	}
	if cfg.RetryTries < 1 {
		cfg.RetryTries = 1
	}
	if cfg.ContentMaxBytes < 0 {
		cfg.ContentMaxBytes = 0
	}
	return cfg, nil
}

func homeDir() (string, error) {
	if h := os.Getenv("ARIA_HOME"); h != "" {
		return h, nil
	}
	user, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(user, ".aria"), nil
}

func defaults(home string) *Config {
	return &Config{
		Home:            home,
		LogLevel:        "info",
		RetryTries:      3,
		RetryDelay:      time.Second,
		RetryBackoff:    2,
		RetryJitter:     0.1,
		SpawnWait:       2 * time.Second,
		ProbeTimeout:    3 * time.Second,
		DriverPaths:     map[string]string{},
		ContentMaxBytes: 200000,
		LLM:             LLMConfig{Provider: "anthropic"},
		API:             APIConfig{BindAddr: "127.0.0.1:8290", AutoFallback: true},
	}
}

func applyEnv(cfg *Config) {
	cfg.LogLevel = strings.ToLower(getEnvOrDefault("ARIA_LOG_LEVEL", cfg.LogLevel))
	cfg.LogFile = getEnvOrDefault("ARIA_LOG_FILE", cfg.LogFile)

	cfg.RetryTries = getEnvIntOrDefault("ARIA_RETRY_TRIES", cfg.RetryTries)
	cfg.RetryDelay = getEnvMillisOrDefault("ARIA_RETRY_DELAY_MS", cfg.RetryDelay)
	cfg.RetryBackoff = getEnvFloatOrDefault("ARIA_RETRY_BACKOFF", cfg.RetryBackoff)
	cfg.RetryJitter = getEnvFloatOrDefault("ARIA_RETRY_JITTER", cfg.RetryJitter)
	cfg.ThrottleDelay = getEnvMillisOrDefault("ARIA_THROTTLE_MS", cfg.ThrottleDelay)

	cfg.SpawnWait = getEnvMillisOrDefault("ARIA_SPAWN_WAIT_MS", cfg.SpawnWait)
	cfg.ProbeTimeout = getEnvMillisOrDefault("ARIA_PROBE_TIMEOUT_MS", cfg.ProbeTimeout)
	for _, kind := range DriverKinds {
		if p := os.Getenv("ARIA_DRIVER_" + strings.ToUpper(kind)); p != "" {
			cfg.DriverPaths[kind] = p
		}
	}
	cfg.BrowserBinary = getEnvOrDefault("ARIA_BROWSER_BINARY", cfg.BrowserBinary)
	cfg.ContentMaxBytes = getEnvIntOrDefault("ARIA_CONTENT_MAX_BYTES", cfg.ContentMaxBytes)

	cfg.LLM.Provider = strings.ToLower(getEnvOrDefault("ARIA_LLM_PROVIDER", cfg.LLM.Provider))
	cfg.LLM.Model = getEnvOrDefault("ARIA_LLM_MODEL", cfg.LLM.Model)
	cfg.LLM.APIKey = getEnvOrDefault("ARIA_LLM_API_KEY", cfg.LLM.APIKey)
	cfg.LLM.BaseURL = getEnvOrDefault("ARIA_LLM_BASE_URL", cfg.LLM.BaseURL)

	cfg.API.BindAddr = getEnvOrDefault("ARIA_API_BIND_ADDR", cfg.API.BindAddr)
	if v := os.Getenv("ARIA_API_PORT_CANDIDATES"); v != "" {
		cfg.API.PortCandidates = splitList(v)
	}
	cfg.API.AutoFallback = getEnvBoolOrDefault("ARIA_API_PORT_AUTO_FALLBACK", cfg.API.AutoFallback)
}

// ScriptsDir is where prompt scripts live.
func (c *Config) ScriptsDir() string { return filepath.Join(c.Home, "scripts") }

// SitesDir is the root of captured page content.
func (c *Config) SitesDir() string { return filepath.Join(c.Home, "sites") }

// ScreenshotsDir holds stored screenshots.
func (c *Config) ScreenshotsDir() string { return filepath.Join(c.Home, "screenshots") }

// DriverLogDir receives driver process output.
func (c *Config) DriverLogDir() string { return filepath.Join(c.Home, "logs") }

// BindCandidates expands PortCandidates into bind addresses. Bare ports use
// the host of BindAddr.
func (c *APIConfig) BindCandidates() []string {
	host := "127.0.0.1"
	if h, _, ok := strings.Cut(c.BindAddr, ":"); ok && h != "" {
		host = h
	}
	out := make([]string, 0, len(c.PortCandidates))
	for _, p := range c.PortCandidates {
		if _, err := strconv.Atoi(p); err == nil {
			out = append(out, host+":"+p)
			continue
		}
		out = append(out, p)
	}
	return out
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvIntOrDefault(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloatOrDefault(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvMillisOrDefault(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if ms, err := strconv.Atoi(val); err == nil && ms >= 0 {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return defaultVal
}

func getEnvBoolOrDefault(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}
