package webdriver

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

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     make(http.Header),
	}
}

func TestCreateNewSendsCapabilities(t *testing.T) {
	var gotBody map[string]any
	var gotPath string
	conn := &Connector{HTTP: &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		return jsonResponse(http.StatusOK, `{"value":{"sessionId":"abc123","capabilities":{}}}`), nil
	})}}

	remote, err := conn.CreateNew(context.Background(), "http://127.0.0.1:9515/", map[string]any{"browserName": "chrome"})
	if err != nil {
		t.Fatalf("CreateNew() error = %v", err)
	}
	if got, want := remote.SessionID(), "abc123"; got != want {
		t.Fatalf("SessionID() = %q; want %q", got, want)
	}
	if got, want := remote.Endpoint(), "http://127.0.0.1:9515"; got != want {
		t.Fatalf("Endpoint() = %q; want %q", got, want)
	}
	if gotPath != "/session" {
		t.Fatalf("path = %q; want /session", gotPath)
	}
	caps := gotBody["capabilities"].(map[string]any)["alwaysMatch"].(map[string]any)
	if caps["browserName"] != "chrome" {
		t.Fatalf("alwaysMatch = %v", caps)
	}
}

func TestAttachExistingDoesNotCallDriver(t *testing.T) {
	conn := &Connector{HTTP: &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		return nil, nil
	})}}
	remote, err := conn.AttachExisting(context.Background(), "http://127.0.0.1:1", "sess-1")
	if err != nil {
		t.Fatalf("AttachExisting() error = %v", err)
	}
	if remote.SessionID() != "sess-1" {
		t.Fatalf("SessionID() = %q", remote.SessionID())
	}
}

func TestAttachExistingRejectsEmptyID(t *testing.T) {
	if _, err := NewConnector().AttachExisting(context.Background(), "http://127.0.0.1:1", ""); err == nil {
		t.Fatalf("AttachExisting(\"\") = nil error")
	}
}

func TestSessionCommands(t *testing.T) {
	current := "w1"
	mux := http.NewServeMux()
	mux.HandleFunc("GET /session/s1/window/handles", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"value":["w1","w2"]}`)
	})
	mux.HandleFunc("GET /session/s1/window", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"value":"`+current+`"}`)
	})
	mux.HandleFunc("POST /session/s1/window", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Handle string `json:"handle"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		current = body.Handle
		io.WriteString(w, `{"value":null}`)
	})
	mux.HandleFunc("GET /session/s1/title", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"value":"Title `+current+`"}`)
	})
	mux.HandleFunc("POST /session/s1/execute/sync", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"value":{"n":42}}`)
	})
	mux.HandleFunc("GET /session/s1/screenshot", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"value":"cG5nLWJ5dGVz"}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	ctx := context.Background()
	remote, _ := NewConnector().AttachExisting(ctx, srv.URL, "s1")

	handles, err := remote.WindowHandles(ctx)
	if err != nil || len(handles) != 2 {
		t.Fatalf("WindowHandles() = %v, %v", handles, err)
	}
	if err := remote.SwitchWindow(ctx, "w2"); err != nil {
		t.Fatalf("SwitchWindow() error = %v", err)
	}
	if h, _ := remote.CurrentWindow(ctx); h != "w2" {
		t.Fatalf("CurrentWindow() = %q; want w2", h)
	}
	if title, _ := remote.Title(ctx); title != "Title w2" {
		t.Fatalf("Title() = %q", title)
	}
	raw, err := remote.ExecuteScript(ctx, "return {n: 42};")
	if err != nil {
		t.Fatalf("ExecuteScript() error = %v", err)
	}
	if string(raw) != `{"n":42}` {
		t.Fatalf("ExecuteScript() = %s", raw)
	}
	img, err := remote.Screenshot(ctx)
	if err != nil || string(img) != "png-bytes" {
		t.Fatalf("Screenshot() = %q, %v", img, err)
	}
}

func TestErrorResponseDecoded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"value":{"error":"invalid session id","message":"session deleted","stacktrace":""}}`)
	}))
	defer srv.Close()

	remote, _ := NewConnector().AttachExisting(context.Background(), srv.URL, "gone")
	_, err := remote.CurrentURL(context.Background())
	var wdErr *Error
	if !errors.As(err, &wdErr) {
		t.Fatalf("CurrentURL() error = %T %v; want *Error", err, err)
	}
	if wdErr.Code != "invalid session id" || wdErr.Status != http.StatusNotFound {
		t.Fatalf("error = %+v", wdErr)
	}
}
