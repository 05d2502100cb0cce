package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
)

// Gemini generates with Google's Gemini models through langchaingo.
type Gemini struct {
	model llms.Model
	cfg   Config
}

// NewGemini creates a Gemini generator.
func NewGemini(ctx context.Context, cfg Config) (*Gemini, error) {
	m, err := googleai.New(ctx,
		googleai.WithAPIKey(cfg.APIKey),
		googleai.WithDefaultModel(cfg.Model),
		googleai.WithDefaultMaxTokens(cfg.MaxTokens),
	)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Gemini{model: m, cfg: cfg}, nil
}

func (g *Gemini) Generate(ctx context.Context, req Request) (string, error) {
	return generateChat(ctx, g.model, "gemini", req)
}

// generateChat runs req against any langchaingo chat model.
func generateChat(ctx context.Context, m llms.Model, name string, req Request) (string, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt(req.OutputFormat)),
		llms.TextParts(llms.ChatMessageTypeHuman, userMessage(req)),
	}
	resp, err := m.GenerateContent(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrProvider, name, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: %s: no choices", ErrProvider, name)
	}
	return strings.TrimSpace(resp.Choices[0].Content), nil
}
