// Package llm is the language-model collaborator behind `aria ask`.
package llm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
)

var (
	ErrNoAPIKey        = errors.New("no API key configured")
	ErrUnknownProvider = errors.New("unknown provider")
	ErrProvider        = errors.New("provider error")
)

// Request is one generation call.
type Request struct {
	Prompt  string
	Context string
	// OutputFormat names the desired answer format, e.g. "markdown" or "json".
	// Empty or "text" means plain text.
	OutputFormat string
}

// Generator produces an answer for a request.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Config selects and configures a provider.
type Config struct {
	Provider  string
	Model     string
	APIKey    string
	BaseURL   string
	MaxTokens int
}

type providerInfo struct {
	envKeys      []string
	defaultModel string
	build        func(Config) (Generator, error)
}

var providers = map[string]providerInfo{
	"anthropic": {
		envKeys:      []string{"ANTHROPIC_API_KEY", "CLAUDE_KEY"},
		defaultModel: "claude-sonnet-4-5-20250929",
		build:        func(c Config) (Generator, error) { return NewAnthropic(c), nil },
	},
	"openai": {
		envKeys:      []string{"OPENAI_API_KEY", "OPENAI_KEY"},
		defaultModel: "gpt-4o-mini",
		build:        func(c Config) (Generator, error) { return NewOpenAI(c), nil },
	},
	"gemini": {
		envKeys:      []string{"GOOGLE_API_KEY", "GEMINI_API_KEY"},
		defaultModel: "gemini-1.5-flash",
		build:        func(c Config) (Generator, error) { return NewGemini(context.Background(), c) },
	},
}

// Providers lists the supported provider names.
func Providers() []string {
	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New builds the Generator named by cfg.Provider. A missing API key falls
// back to the provider's conventional environment variables.
func New(cfg Config) (Generator, error) {
	name := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if name == "" {
		name = "anthropic"
	}
	info, ok := providers[name]
	if !ok {
		return nil, fmt.Errorf("%w %q (supported: %s)", ErrUnknownProvider, cfg.Provider, strings.Join(Providers(), ", "))
	}
	cfg.Provider = name
	if cfg.APIKey == "" {
		for _, key := range info.envKeys {
			if v := os.Getenv(key); v != "" {
				cfg.APIKey = v
				break
			}
		}
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w for %s (tried: %s)", ErrNoAPIKey, name, strings.Join(info.envKeys, ", "))
	}
	if cfg.Model == "" {
		cfg.Model = info.defaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4096
	}
	return info.build(cfg)
}

// systemPrompt is the instruction shared by every provider.
func systemPrompt(format string) string {
	base := "You are Aria, a research assistant working from the content of the user's browser tabs. Answer from the provided context when it is relevant."
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "text":
		return base
	default:
		return base + " Format the answer as " + format + "."
	}
}

// userMessage wraps the gathered context ahead of the prompt.
func userMessage(req Request) string {
	if req.Context == "" {
		return req.Prompt
	}
	return fmt.Sprintf("<context>\n%s\n</context>\n\n%s", req.Context, req.Prompt)
}
