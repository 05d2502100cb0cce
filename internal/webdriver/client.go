// Package webdriver is a minimal W3C WebDriver client. It covers the
// commands needed to drive and reattach to a session: it can bind to an
// existing session id without issuing New Session.
package webdriver

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dgnsrekt/aria/internal/browser"
)

// Error is a WebDriver error response.
type Error struct {
	Status  int
	Code    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("webdriver: %s (http %d): %s", e.Code, e.Status, e.Message)
}

// Connector creates and attaches WebDriver sessions.
type Connector struct {
	HTTP *http.Client
}

// NewConnector returns a Connector with a default request timeout.
func NewConnector() *Connector {
	return &Connector{HTTP: &http.Client{Timeout: 60 * time.Second}}
}

// CreateNew issues New Session against endpoint.
func (c *Connector) CreateNew(ctx context.Context, endpoint string, capabilities map[string]any) (browser.Remote, error) {
	s := &Session{endpoint: strings.TrimRight(endpoint, "/"), http: c.client()}
	body := map[string]any{
		"capabilities": map[string]any{"alwaysMatch": capabilities},
	}
	var value struct {
		SessionID string `json:"sessionId"`
	}
	if err := s.do(ctx, http.MethodPost, "/session", body, &value); err != nil {
		return nil, fmt.Errorf("new session: %w", err)
	}
	if value.SessionID == "" {
		return nil, fmt.Errorf("new session: driver returned no session id")
	}
	s.id = value.SessionID
	slog.DebugContext(ctx, "webdriver session created", "endpoint", s.endpoint, "session_id", s.id)
	return s, nil
}

// AttachExisting binds to sessionID without contacting the driver. Callers
// probe the returned session to learn whether it is still alive.
func (c *Connector) AttachExisting(_ context.Context, endpoint, sessionID string) (browser.Remote, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("attach: empty session id")
	}
	return &Session{endpoint: strings.TrimRight(endpoint, "/"), id: sessionID, http: c.client()}, nil
}

func (c *Connector) client() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return http.DefaultClient
}

// Session is a bound WebDriver session.
type Session struct {
	endpoint string
	id       string
	http     *http.Client
}

var _ browser.Remote = (*Session)(nil)

func (s *Session) SessionID() string { return s.id }
func (s *Session) Endpoint() string  { return s.endpoint }

func (s *Session) path(suffix string) string {
	return "/session/" + s.id + suffix
}

func (s *Session) Navigate(ctx context.Context, url string) error {
	return s.do(ctx, http.MethodPost, s.path("/url"), map[string]string{"url": url}, nil)
}

func (s *Session) CurrentURL(ctx context.Context) (string, error) {
	var out string
	err := s.do(ctx, http.MethodGet, s.path("/url"), nil, &out)
	return out, err
}

func (s *Session) Title(ctx context.Context) (string, error) {
	var out string
	err := s.do(ctx, http.MethodGet, s.path("/title"), nil, &out)
	return out, err
}

func (s *Session) WindowHandles(ctx context.Context) ([]string, error) {
	var out []string
	err := s.do(ctx, http.MethodGet, s.path("/window/handles"), nil, &out)
	return out, err
}

func (s *Session) CurrentWindow(ctx context.Context) (string, error) {
	var out string
	err := s.do(ctx, http.MethodGet, s.path("/window"), nil, &out)
	return out, err
}

func (s *Session) SwitchWindow(ctx context.Context, handle string) error {
	return s.do(ctx, http.MethodPost, s.path("/window"), map[string]string{"handle": handle}, nil)
}

func (s *Session) NewWindow(ctx context.Context) (string, error) {
	var out struct {
		Handle string `json:"handle"`
	}
	err := s.do(ctx, http.MethodPost, s.path("/window/new"), map[string]string{"type": "tab"}, &out)
	return out.Handle, err
}

func (s *Session) ExecuteScript(ctx context.Context, script string, args ...any) (json.RawMessage, error) {
	if args == nil {
		args = []any{}
	}
	var out json.RawMessage
	err := s.do(ctx, http.MethodPost, s.path("/execute/sync"), map[string]any{"script": script, "args": args}, &out)
	return out, err
}

func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	var encoded string
	if err := s.do(ctx, http.MethodGet, s.path("/screenshot"), nil, &encoded); err != nil {
		return nil, err
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("webdriver: decode screenshot: %w", err)
	}
	return data, nil
}

func (s *Session) Quit(ctx context.Context) error {
	return s.do(ctx, http.MethodDelete, s.path(""), nil, nil)
}

// do sends one command and decodes the "value" member of the response into out.
func (s *Session) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("webdriver: marshal: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.endpoint+path, reader)
	if err != nil {
		return fmt.Errorf("webdriver: request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("webdriver: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("webdriver: read response: %w", err)
	}

	var envelope struct {
		Value json.RawMessage `json:"value"`
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &envelope); err != nil {
			return fmt.Errorf("webdriver: decode response (http %d): %w", resp.StatusCode, err)
		}
	}

	if resp.StatusCode >= http.StatusBadRequest {
		var wdErr struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		_ = json.Unmarshal(envelope.Value, &wdErr)
		if wdErr.Error == "" {
			wdErr.Error = "unknown error"
		}
		return &Error{Status: resp.StatusCode, Code: wdErr.Error, Message: wdErr.Message}
	}

	if out == nil || len(envelope.Value) == 0 {
		return nil
	}
	if raw, ok := out.(*json.RawMessage); ok {
		*raw = append((*raw)[:0], envelope.Value...)
		return nil
	}
	if err := json.Unmarshal(envelope.Value, out); err != nil {
		return fmt.Errorf("webdriver: decode value: %w", err)
	}
	return nil
}
