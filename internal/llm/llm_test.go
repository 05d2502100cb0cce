package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewRequiresAPIKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("CLAUDE_KEY", "")
	_, err := New(Config{Provider: "anthropic"})
	if !errors.Is(err, ErrNoAPIKey) {
		t.Fatalf("expected ErrNoAPIKey, got %v", err)
	}
}

func TestNewUnknownProvider(t *testing.T) {
	_, err := New(Config{Provider: "bard", APIKey: "k"})
	if !errors.Is(err, ErrUnknownProvider) {
		t.Fatalf("expected ErrUnknownProvider, got %v", err)
	}
	if !strings.Contains(err.Error(), "anthropic, gemini, openai") {
		t.Fatalf("error should list providers: %v", err)
	}
}

func TestNewReadsProviderEnvKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	g, err := New(Config{Provider: "OpenAI"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	o, ok := g.(*OpenAI)
	if !ok {
		t.Fatalf("expected *OpenAI, got %T", g)
	}
	if o.cfg.APIKey != "sk-test" || o.cfg.Model != "gpt-4o-mini" {
		t.Fatalf("cfg = %+v", o.cfg)
	}
}

func TestUserMessageWrapsContext(t *testing.T) {
	if got := userMessage(Request{Prompt: "q"}); got != "q" {
		t.Fatalf("got %q", got)
	}
	got := userMessage(Request{Prompt: "q", Context: "page"})
	if got != "<context>\npage\n</context>\n\nq" {
		t.Fatalf("got %q", got)
	}
}

func TestSystemPromptFormat(t *testing.T) {
	if strings.Contains(systemPrompt("text"), "Format") {
		t.Fatal("plain text needs no format instruction")
	}
	if !strings.HasSuffix(systemPrompt("json"), "Format the answer as json.") {
		t.Fatalf("got %q", systemPrompt("json"))
	}
}

func TestAnthropicGenerate(t *testing.T) {
	var body struct {
		Messages []struct {
			Role    string `json:"role"`
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
		} `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/v1/messages") {
			http.NotFound(w, r)
			return
		}
		raw, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(raw, &body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":"msg_1","type":"message","role":"assistant","model":"m","content":[{"type":"text","text":" the answer "}],"stop_reason":"end_turn","usage":{"input_tokens":1,"output_tokens":2}}`)
	}))
	defer srv.Close()

	g := NewAnthropic(Config{APIKey: "k", BaseURL: srv.URL, Model: "m", MaxTokens: 100})
	out, err := g.Generate(context.Background(), Request{Prompt: "q", Context: "c"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if out != "the answer" {
		t.Fatalf("out = %q", out)
	}
	if len(body.Messages) != 1 || len(body.Messages[0].Content) != 1 {
		t.Fatalf("messages = %+v", body.Messages)
	}
	if got, want := body.Messages[0].Content[0].Text, "<context>\nc\n</context>\n\nq"; got != want {
		t.Fatalf("message text = %q; want %q", got, want)
	}
}

func TestOpenAIGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":"c1","object":"chat.completion","created":1,"model":"m","choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"hello\n"}}]}`)
	}))
	defer srv.Close()

	g := NewOpenAI(Config{APIKey: "k", BaseURL: srv.URL, Model: "m", MaxTokens: 100})
	out, err := g.Generate(context.Background(), Request{Prompt: "q"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if out != "hello" {
		t.Fatalf("out = %q", out)
	}
}
