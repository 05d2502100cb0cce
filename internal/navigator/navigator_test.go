package navigator

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dgnsrekt/aria/internal/browser"
	"github.com/dgnsrekt/aria/internal/llm"
	"github.com/dgnsrekt/aria/internal/retry"
	"github.com/dgnsrekt/aria/internal/session"
	"github.com/dgnsrekt/aria/internal/webdriver"
)

type tab struct {
	title, url, text string
}

type fakeRemote struct {
	order      []string
	tabs       map[string]*tab
	current    string
	navErrs    []error
	scriptErr  error
	listErr    error
	navigated  []string
	newWindows int
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		order: []string{"h0", "h1"},
		tabs: map[string]*tab{
			"h0": {title: "Home", url: "https://example.com/", text: "home text"},
			"h1": {title: "Docs", url: "https://docs.example.com/", text: "docs text"},
		},
		current: "h0",
	}
}

func (r *fakeRemote) SessionID() string { return "sess-1" }
func (r *fakeRemote) Endpoint() string  { return "http://fake" }

func (r *fakeRemote) Navigate(_ context.Context, url string) error {
	if len(r.navErrs) > 0 {
		err := r.navErrs[0]
		r.navErrs = r.navErrs[1:]
		if err != nil {
			return err
		}
	}
	r.navigated = append(r.navigated, url)
	r.tabs[r.current].url = url
	return nil
}

func (r *fakeRemote) CurrentURL(context.Context) (string, error) { return r.tabs[r.current].url, nil }
func (r *fakeRemote) Title(context.Context) (string, error)      { return r.tabs[r.current].title, nil }
func (r *fakeRemote) WindowHandles(context.Context) ([]string, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	return append([]string(nil), r.order...), nil
}
func (r *fakeRemote) CurrentWindow(context.Context) (string, error) { return r.current, nil }

func (r *fakeRemote) SwitchWindow(_ context.Context, h string) error {
	if _, ok := r.tabs[h]; !ok {
		return &webdriver.Error{Status: 404, Code: "no such window", Message: h}
	}
	r.current = h
	return nil
}

func (r *fakeRemote) NewWindow(context.Context) (string, error) {
	r.newWindows++
	h := "new" + string(rune('0'+r.newWindows))
	r.order = append(r.order, h)
	r.tabs[h] = &tab{url: "about:blank"}
	return h, nil
}

func (r *fakeRemote) ExecuteScript(_ context.Context, script string, _ ...any) (json.RawMessage, error) {
	if r.scriptErr != nil {
		return nil, r.scriptErr
	}
	if script == linksScript {
		return json.RawMessage(`[{"text":"Next","href":"https://example.com/next"}]`), nil
	}
	return json.Marshal(r.tabs[r.current].text)
}

func (r *fakeRemote) Screenshot(context.Context) ([]byte, error) {
	if r.scriptErr != nil {
		return nil, r.scriptErr
	}
	return []byte("\x89PNG " + r.current), nil
}

func (r *fakeRemote) Quit(context.Context) error { return nil }

type fakeSessions struct {
	handle *session.Handle
	store  session.Store
	calls  int
}

func (f *fakeSessions) Current(context.Context) (*session.Handle, bool) {
	f.calls++
	return f.handle, f.handle != nil
}

func (f *fakeSessions) Store() session.Store { return f.store }

func noSleep(context.Context, time.Duration) error { return nil }

func newTestNavigator(remote *fakeRemote) (*Navigator, *fakeSessions) {
	store := session.NewMemoryStore()
	store.Save(browser.Chrome, &session.Descriptor{SessionID: "sess-1", URL: "http://fake", Browser: browser.Chrome})
	sessions := &fakeSessions{store: store}
	if remote != nil {
		sessions.handle = &session.Handle{Kind: browser.Chrome, Remote: remote}
	}
	nav := New(Options{
		Sessions: sessions,
		Policy:   retry.Policy{Tries: 3, Delay: time.Millisecond, Sleep: noSleep},
	})
	return nav, sessions
}

func TestNoSessionIsSessionError(t *testing.T) {
	nav, _ := newTestNavigator(nil)
	err := nav.Navigate(context.Background(), "https://example.com")
	if !IsSessionError(err) {
		t.Fatalf("expected session error, got %v", err)
	}
	if !IsBrowserError(err) {
		t.Fatal("session errors are browser errors")
	}
	if !strings.Contains(err.Error(), "aria open") {
		t.Fatalf("message should point at aria open: %q", err.Error())
	}
}

func TestSessionIsCached(t *testing.T) {
	nav, sessions := newTestNavigator(newFakeRemote())
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := nav.GetPageContent(ctx); err != nil {
			t.Fatalf("content: %v", err)
		}
	}
	if sessions.calls != 1 {
		t.Fatalf("expected one reattach, got %d", sessions.calls)
	}
}

func TestNavigateRetriesTransientFailures(t *testing.T) {
	remote := newFakeRemote()
	remote.navErrs = []error{errors.New("connection reset"), nil}
	nav, _ := newTestNavigator(remote)

	if err := nav.Navigate(context.Background(), "https://example.com/a"); err != nil {
		t.Fatalf("navigate: %v", err)
	}
	if len(remote.navigated) != 1 || remote.navigated[0] != "https://example.com/a" {
		t.Fatalf("navigated = %v", remote.navigated)
	}
}

func TestNavigateExhaustedIsNavigationError(t *testing.T) {
	remote := newFakeRemote()
	boom := errors.New("timeout")
	remote.navErrs = []error{boom, boom, boom}
	nav, sessions := newTestNavigator(remote)

	err := nav.Navigate(context.Background(), "https://example.com/b")
	if !IsNavigationError(err) {
		t.Fatalf("expected navigation error, got %v", err)
	}
	if !errors.Is(err, boom) {
		t.Fatal("cause should be preserved")
	}
	if !strings.Contains(err.Error(), "https://example.com/b") {
		t.Fatalf("message should name the url: %q", err.Error())
	}

	// The failed session is dropped and re-validated next time.
	nav.GetPageContent(context.Background())
	if sessions.calls != 2 {
		t.Fatalf("expected reattach after failure, got %d calls", sessions.calls)
	}
}

func TestNavigateDoesNotRetryPermanentErrors(t *testing.T) {
	remote := newFakeRemote()
	remote.navErrs = []error{&webdriver.Error{Status: 404, Code: "invalid session id"}, nil}
	nav, _ := newTestNavigator(remote)

	if err := nav.Navigate(context.Background(), "https://example.com"); err == nil {
		t.Fatal("expected failure")
	}
	if len(remote.navErrs) != 1 {
		t.Fatal("permanent error should not be retried")
	}
}

func TestNavigateRejectsEmptyURL(t *testing.T) {
	nav, _ := newTestNavigator(newFakeRemote())
	if err := nav.Navigate(context.Background(), "  "); CodeOf(err) != CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestGetPageContentTruncates(t *testing.T) {
	remote := newFakeRemote()
	remote.tabs["h0"].text = strings.Repeat("x", 100)
	nav, _ := newTestNavigator(remote)
	nav.maxContent = 10

	out, err := nav.GetPageContent(context.Background())
	if err != nil {
		t.Fatalf("content: %v", err)
	}
	if !strings.HasPrefix(out, strings.Repeat("x", 10)+"\n[content truncated: kept 10 of 100 bytes") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestGetPageContentFailureIsBrowserError(t *testing.T) {
	remote := newFakeRemote()
	remote.scriptErr = errors.New("renderer crashed")
	nav, _ := newTestNavigator(remote)

	_, err := nav.GetPageContent(context.Background())
	if CodeOf(err) != CodeBrowser {
		t.Fatalf("expected browser error, got %v", err)
	}
}

func TestExtractLinks(t *testing.T) {
	nav, _ := newTestNavigator(newFakeRemote())
	links, err := nav.ExtractLinks(context.Background())
	if err != nil {
		t.Fatalf("links: %v", err)
	}
	if len(links) != 1 || links[0].Href != "https://example.com/next" || links[0].Text != "Next" {
		t.Fatalf("links = %+v", links)
	}
}

func TestGotoAndTagTabs(t *testing.T) {
	remote := newFakeRemote()
	nav, _ := newTestNavigator(remote)
	ctx := context.Background()

	handle, ok, err := nav.GotoTab(ctx, "Docs")
	if err != nil || !ok || handle != "h1" {
		t.Fatalf("goto = %q %v %v", handle, ok, err)
	}
	if _, ok, _ := nav.GotoTab(ctx, "missing-tab"); ok {
		t.Fatal("unresolved tab should report false")
	}
	if remote.current != "h1" {
		t.Fatalf("failed goto should keep the active tab, got %q", remote.current)
	}

	added, err := nav.TagTab(ctx, "0", "research")
	if err != nil || !added {
		t.Fatalf("tag = %v %v", added, err)
	}
	handles, err := nav.TabsByTag(ctx, "research")
	if err != nil || len(handles) != 1 || handles[0] != "h0" {
		t.Fatalf("tagged = %v %v", handles, err)
	}

	list, err := nav.ListTabs(ctx)
	if err != nil || len(list) != 2 {
		t.Fatalf("list = %v %v", list, err)
	}
	if len(list[0].Tags) != 1 || list[0].Tags[0] != "research" {
		t.Fatalf("tags not merged: %+v", list[0])
	}
}

func TestTabFailuresDropCachedSession(t *testing.T) {
	ops := map[string]func(*Navigator, context.Context) error{
		"ListTabs": func(n *Navigator, ctx context.Context) error {
			_, err := n.ListTabs(ctx)
			return err
		},
		"GotoTab": func(n *Navigator, ctx context.Context) error {
			_, _, err := n.GotoTab(ctx, "Docs")
			return err
		},
		"TagTab": func(n *Navigator, ctx context.Context) error {
			_, err := n.TagTab(ctx, "1", "research")
			return err
		},
		"TabsByTag": func(n *Navigator, ctx context.Context) error {
			_, err := n.TabsByTag(ctx, "news")
			return err
		},
	}
	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			dead := newFakeRemote()
			dead.listErr = errors.New("connection refused")
			nav, sessions := newTestNavigator(dead)
			sessions.store.Update(browser.Chrome, func(d *session.Descriptor) error {
				d.AddTag("h0", "news")
				return nil
			})
			ctx := context.Background()

			err := op(nav, ctx)
			if CodeOf(err) != CodeBrowser {
				t.Fatalf("first call error = %v; want %s", err, CodeBrowser)
			}

			sessions.handle = &session.Handle{Kind: browser.Chrome, Remote: newFakeRemote()}
			if err := op(nav, ctx); err != nil {
				t.Fatalf("second call error = %v; want recovery on the new session", err)
			}
			if sessions.calls != 2 {
				t.Fatalf("session lookups = %d; want 2", sessions.calls)
			}
		})
	}
}

func TestTagTabRequiresTag(t *testing.T) {
	nav, _ := newTestNavigator(newFakeRemote())
	if _, err := nav.TagTab(context.Background(), "0", ""); CodeOf(err) != CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestOpenTab(t *testing.T) {
	remote := newFakeRemote()
	nav, _ := newTestNavigator(remote)

	handle, err := nav.OpenTab(context.Background(), "https://example.com/new")
	if err != nil {
		t.Fatalf("open tab: %v", err)
	}
	if remote.current != handle {
		t.Fatalf("new tab should be active, current %q", remote.current)
	}
	if remote.tabs[handle].url != "https://example.com/new" {
		t.Fatalf("new tab url = %q", remote.tabs[handle].url)
	}
}

type fakeGenerator struct {
	req llm.Request
	err error
}

func (g *fakeGenerator) Generate(_ context.Context, req llm.Request) (string, error) {
	g.req = req
	return "answer", g.err
}

func TestAskGathersTabContext(t *testing.T) {
	remote := newFakeRemote()
	nav, _ := newTestNavigator(remote)
	gen := &fakeGenerator{}

	out, err := nav.Ask(context.Background(), gen, `summarize tab "Docs"`, "markdown")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if out != "answer" {
		t.Fatalf("out = %q", out)
	}
	if !strings.Contains(gen.req.Context, "docs text") || !strings.Contains(gen.req.Context, "Title: Docs") {
		t.Fatalf("context missing docs tab: %q", gen.req.Context)
	}
	if gen.req.OutputFormat != "markdown" {
		t.Fatalf("format = %q", gen.req.OutputFormat)
	}
	if remote.current != "h0" {
		t.Fatalf("original tab not restored, current %q", remote.current)
	}
}

func TestAskWithoutReferencesSkipsSession(t *testing.T) {
	nav, sessions := newTestNavigator(nil)
	gen := &fakeGenerator{}

	if _, err := nav.Ask(context.Background(), gen, "hello there", ""); err != nil {
		t.Fatalf("ask: %v", err)
	}
	if sessions.calls != 0 {
		t.Fatal("plain prompts should not need a session")
	}
	if gen.req.Context != "" || gen.req.Prompt != "hello there" {
		t.Fatalf("request = %+v", gen.req)
	}
}

func TestAskGeneratorFailureIsAIServiceError(t *testing.T) {
	nav, _ := newTestNavigator(newFakeRemote())
	gen := &fakeGenerator{err: errors.New("rate limited")}

	_, err := nav.Ask(context.Background(), gen, "hello", "")
	if CodeOf(err) != CodeAIService {
		t.Fatalf("expected AI service error, got %v", err)
	}
}

func TestTransient(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{errors.New("eof"), true},
		{context.Canceled, false},
		{&webdriver.Error{Code: "no such window"}, false},
		{&webdriver.Error{Code: "unknown error"}, true},
		{newError(CodeSession, "gone", nil), false},
	}
	for _, tc := range cases {
		if got := transient(tc.err); got != tc.want {
			t.Errorf("transient(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}

func TestTabsContentSkipsUnknownTabs(t *testing.T) {
	remote := newFakeRemote()
	nav, _ := newTestNavigator(remote)

	out, err := nav.TabsContent(context.Background(), []string{"1", "nowhere-to-be-found"})
	if err != nil {
		t.Fatalf("tabs content: %v", err)
	}
	want := "--- Content from Tab 1 (Title: Docs, URL: https://docs.example.com/) ---\ndocs text"
	if out != want {
		t.Fatalf("out = %q, want %q", out, want)
	}
	if remote.current != "h0" {
		t.Fatalf("active tab not restored, current %q", remote.current)
	}
}

func TestScreenshot(t *testing.T) {
	remote := newFakeRemote()
	nav, _ := newTestNavigator(remote)

	img, err := nav.Screenshot(context.Background())
	if err != nil {
		t.Fatalf("screenshot: %v", err)
	}
	if string(img) != "\x89PNG h0" {
		t.Fatalf("image = %q", img)
	}

	remote.scriptErr = &webdriver.Error{Status: 500, Code: "javascript error"}
	if _, err := nav.Screenshot(context.Background()); !IsBrowserError(err) {
		t.Fatalf("expected browser error, got %v", err)
	}
}
