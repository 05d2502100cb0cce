package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAI generates with the chat completions API of OpenAI or a compatible
// service at BaseURL.
type OpenAI struct {
	client openai.Client
	cfg    Config
}

// NewOpenAI creates an OpenAI generator.
func NewOpenAI(cfg Config) *OpenAI {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAI{client: openai.NewClient(opts...), cfg: cfg}
}

func (o *OpenAI) Generate(ctx context.Context, req Request) (string, error) {
	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.cfg.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt(req.OutputFormat)),
			openai.UserMessage(userMessage(req)),
		},
		MaxTokens: openai.Int(int64(o.cfg.MaxTokens)),
	})
	if err != nil {
		return "", fmt.Errorf("%w: openai: %v", ErrProvider, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: openai: no choices", ErrProvider)
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
