package cdp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

type fakePage struct {
	ID, Type, Title, URL string
}

// fakeBrowser serves /json/version, /json/list and a browser websocket that
// answers Target.activateTarget. Like Chrome, /json/list puts the most
// recently activated page first.
type fakeBrowser struct {
	srv *httptest.Server

	mu        sync.Mutex
	targets   []fakePage
	activated []string
}

func newFakeBrowser(t *testing.T, browserID string) *fakeBrowser {
	t.Helper()
	fb := &fakeBrowser{targets: []fakePage{
		{"PAGE-A", "page", "Inbox", "https://mail.example.com/"},
		{"SW-1", "service_worker", "sw", "https://mail.example.com/sw.js"},
		{"PAGE-B", "page", "News", "https://news.example.com/today"},
	}}
	mux := http.NewServeMux()
	mux.HandleFunc("/json/version", func(w http.ResponseWriter, r *http.Request) {
		wsURL := "ws://" + strings.TrimPrefix(fb.srv.URL, "http://") + "/devtools/browser/" + browserID
		fmt.Fprintf(w, `{"Browser":"Chrome/126.0","webSocketDebuggerUrl":%q}`, wsURL)
	})
	mux.HandleFunc("/json/list", func(w http.ResponseWriter, r *http.Request) {
		fb.mu.Lock()
		defer fb.mu.Unlock()
		entries := make([]map[string]string, 0, len(fb.targets))
		for _, p := range fb.targets {
			entries = append(entries, map[string]string{"id": p.ID, "type": p.Type, "title": p.Title, "url": p.URL})
		}
		json.NewEncoder(w).Encode(entries)
	})
	mux.HandleFunc("/devtools/browser/", fb.serveWS)
	fb.srv = httptest.NewServer(mux)
	t.Cleanup(fb.srv.Close)
	return fb
}

func (fb *fakeBrowser) URL() string { return fb.srv.URL }

func (fb *fakeBrowser) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		return
	}
	defer conn.Close()
	for {
		data, err := wsutil.ReadClientText(conn)
		if err != nil {
			return
		}
		var msg struct {
			ID     int64  `json:"id"`
			Method string `json:"method"`
			Params struct {
				TargetID string `json:"targetId"`
			} `json:"params"`
		}
		if json.Unmarshal(data, &msg) != nil {
			return
		}
		resp := fmt.Sprintf(`{"id":%d,"result":{}}`, msg.ID)
		if msg.Method == "Target.activateTarget" {
			if !fb.activate(msg.Params.TargetID) {
				resp = fmt.Sprintf(`{"id":%d,"error":{"message":"No target with given id found"}}`, msg.ID)
			}
		}
		if err := wsutil.WriteServerText(conn, []byte(resp)); err != nil {
			return
		}
	}
}

func (fb *fakeBrowser) activate(id string) bool {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	for i, p := range fb.targets {
		if p.ID == id {
			fb.targets = append([]fakePage{p}, append(fb.targets[:i:i], fb.targets[i+1:]...)...)
			fb.activated = append(fb.activated, id)
			return true
		}
	}
	return false
}

func (fb *fakeBrowser) activations() []string {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return append([]string(nil), fb.activated...)
}

func TestCreateNewSelectsFirstPage(t *testing.T) {
	fb := newFakeBrowser(t, "b-123")
	ctx := context.Background()

	remote, err := NewConnector().CreateNew(ctx, fb.URL(), nil)
	if err != nil {
		t.Fatalf("CreateNew() error = %v", err)
	}
	if got := remote.SessionID(); got != "b-123" {
		t.Fatalf("SessionID() = %q; want b-123", got)
	}
	handles, err := remote.WindowHandles(ctx)
	if err != nil {
		t.Fatalf("WindowHandles() error = %v", err)
	}
	if want := []string{"PAGE-A", "PAGE-B"}; !reflect.DeepEqual(handles, want) {
		t.Fatalf("WindowHandles() = %v; want %v", handles, want)
	}
	if cur, _ := remote.CurrentWindow(ctx); cur != "PAGE-A" {
		t.Fatalf("CurrentWindow() = %q; want PAGE-A", cur)
	}
}

func TestSwitchWindowReadsTitleAndURL(t *testing.T) {
	fb := newFakeBrowser(t, "b-123")
	ctx := context.Background()
	remote, err := NewConnector().AttachExisting(ctx, fb.URL(), "b-123")
	if err != nil {
		t.Fatalf("AttachExisting() error = %v", err)
	}

	if err := remote.SwitchWindow(ctx, "PAGE-B"); err != nil {
		t.Fatalf("SwitchWindow() error = %v", err)
	}
	title, _ := remote.Title(ctx)
	url, _ := remote.CurrentURL(ctx)
	if title != "News" || url != "https://news.example.com/today" {
		t.Fatalf("Title/URL = %q %q", title, url)
	}
	if err := remote.SwitchWindow(ctx, "SW-1"); err == nil {
		t.Fatalf("SwitchWindow(service worker) = nil; want error")
	}
}

func TestSwitchWindowSurvivesReattach(t *testing.T) {
	fb := newFakeBrowser(t, "b-123")
	ctx := context.Background()
	first, err := NewConnector().AttachExisting(ctx, fb.URL(), "b-123")
	if err != nil {
		t.Fatalf("AttachExisting() error = %v", err)
	}
	if err := first.SwitchWindow(ctx, "PAGE-B"); err != nil {
		t.Fatalf("SwitchWindow() error = %v", err)
	}
	if got := fb.activations(); !reflect.DeepEqual(got, []string{"PAGE-B"}) {
		t.Fatalf("activations = %v; want [PAGE-B]", got)
	}

	second, err := NewConnector().AttachExisting(ctx, fb.URL(), "b-123")
	if err != nil {
		t.Fatalf("second AttachExisting() error = %v", err)
	}
	if cur, _ := second.CurrentWindow(ctx); cur != "PAGE-B" {
		t.Fatalf("CurrentWindow() after reattach = %q; want PAGE-B", cur)
	}
}

func TestAttachExistingRejectsDifferentBrowser(t *testing.T) {
	fb := newFakeBrowser(t, "b-new")
	if _, err := NewConnector().AttachExisting(context.Background(), fb.URL(), "b-old"); err == nil {
		t.Fatalf("AttachExisting() = nil; want instance mismatch error")
	}
}

func TestBrowserIDFromDebuggerURL(t *testing.T) {
	v := versionInfo{WebSocketDebuggerURL: "ws://127.0.0.1:9222/devtools/browser/5f1c-aa"}
	if got := v.browserID(); got != "5f1c-aa" {
		t.Fatalf("browserID() = %q", got)
	}
}
