package tabs

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/dgnsrekt/aria/internal/browser"
	"github.com/dgnsrekt/aria/internal/session"
)

type page struct {
	title string
	url   string
}

type fakeRemote struct {
	order    []string
	pages    map[string]page
	current  string
	switches int
	listErr  error
}

func newFakeRemote(handles []string, pages map[string]page) *fakeRemote {
	return &fakeRemote{order: handles, pages: pages, current: handles[0]}
}

func (r *fakeRemote) SessionID() string                      { return "s" }
func (r *fakeRemote) Endpoint() string                       { return "http://fake" }
func (r *fakeRemote) Navigate(context.Context, string) error { return nil }
func (r *fakeRemote) NewWindow(context.Context) (string, error) {
	return "", errors.New("not supported")
}
func (r *fakeRemote) ExecuteScript(context.Context, string, ...any) (json.RawMessage, error) {
	return nil, nil
}
func (r *fakeRemote) Screenshot(context.Context) ([]byte, error) { return nil, nil }
func (r *fakeRemote) Quit(context.Context) error                  { return nil }

func (r *fakeRemote) WindowHandles(context.Context) ([]string, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	return append([]string(nil), r.order...), nil
}
func (r *fakeRemote) CurrentWindow(context.Context) (string, error) { return r.current, nil }
func (r *fakeRemote) Title(context.Context) (string, error)         { return r.pages[r.current].title, nil }
func (r *fakeRemote) CurrentURL(context.Context) (string, error)    { return r.pages[r.current].url, nil }

func (r *fakeRemote) SwitchWindow(_ context.Context, h string) error {
	r.switches++
	if _, ok := r.pages[h]; !ok {
		return errors.New("no such window")
	}
	r.current = h
	return nil
}

func threeTabs() *fakeRemote {
	return newFakeRemote(
		[]string{"handle0", "handle1", "handle2"},
		map[string]page{
			"handle0": {title: "Inbox (3)", url: "https://mail.example.com/u/0"},
			"handle1": {title: "Breaking News", url: "https://news.example.com/world"},
			"handle2": {title: "handle0 release notes", url: "https://docs.example.com/tab-0"},
		},
	)
}

func newTestResolver(remote browser.Remote) (*Resolver, *session.MemoryStore) {
	store := session.NewMemoryStore()
	_ = store.Save(browser.Chrome, &session.Descriptor{SessionID: "s"})
	return NewResolver(remote, browser.Chrome, store), store
}

func TestGotoPrecedence(t *testing.T) {
	tests := []struct {
		name string
		id   string
		want string
	}{
		{name: "exact handle beats title containing it", id: "handle0", want: "handle0"},
		{name: "index", id: "1", want: "handle1"},
		{name: "index zero", id: "0", want: "handle0"},
		{name: "handle substring", id: "ndle1", want: "handle1"},
		{name: "handle prefix picks first", id: "handle", want: "handle0"},
		{name: "exact title", id: "Breaking News", want: "handle1"},
		{name: "title substring case insensitive", id: "inbox", want: "handle0"},
		{name: "url substring", id: "docs.example", want: "handle2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, _ := newTestResolver(threeTabs())
			got, ok := res.Goto(context.Background(), tt.id)
			if !ok || got != tt.want {
				t.Fatalf("Goto(%q) = %q, %v; want %q", tt.id, got, ok, tt.want)
			}
		})
	}
}

func TestGotoIndexBeatsTitle(t *testing.T) {
	remote := newFakeRemote(
		[]string{"aaaaaa", "bbbbbb"},
		map[string]page{
			"aaaaaa": {title: "1", url: "https://a.example.com"},
			"bbbbbb": {title: "B", url: "https://b.example.com"},
		},
	)
	res, _ := newTestResolver(remote)
	if got, ok := res.Goto(context.Background(), "1"); !ok || got != "bbbbbb" {
		t.Fatalf("Goto(1) = %q, %v; want index match bbbbbb", got, ok)
	}
}

func TestGotoShortIdentifierSkipsHandleSubstring(t *testing.T) {
	remote := newFakeRemote(
		[]string{"CDwindow-77AB", "CDwindow-12EF"},
		map[string]page{
			"CDwindow-77AB": {title: "Alpha", url: "https://alpha.example.com"},
			"CDwindow-12EF": {title: "Beta", url: "https://beta.example.com/12EF"},
		},
	)
	res, _ := newTestResolver(remote)

	// "77AB" is in the first handle but only four characters long, so it
	// must not match via the handle.
	if got, ok := res.Goto(context.Background(), "77AB"); ok {
		t.Fatalf("Goto(77AB) = %q; short ids must not match handle substrings", got)
	}
	// "12EF" falls through to the URL branch instead.
	if got, ok := res.Goto(context.Background(), "12EF"); !ok || got != "CDwindow-12EF" {
		t.Fatalf("Goto(12EF) = %q, %v; want url match", got, ok)
	}
}

func TestGotoShortMultibyteIdentifierSkipsHandleSubstring(t *testing.T) {
	remote := newFakeRemote(
		[]string{"win-äöüß-1", "win-2"},
		map[string]page{
			"win-äöüß-1": {title: "Alpha", url: "https://alpha.example.com"},
			"win-2":      {title: "Beta", url: "https://beta.example.com"},
		},
	)
	res, _ := newTestResolver(remote)

	// Four characters, eight bytes.
	if got, ok := res.Goto(context.Background(), "äöüß"); ok {
		t.Fatalf("Goto(äöüß) = %q; short ids must not match handle substrings", got)
	}
	if got, ok := res.Goto(context.Background(), "-äöüß"); !ok || got != "win-äöüß-1" {
		t.Fatalf("Goto(-äöüß) = %q, %v; want handle substring match", got, ok)
	}
}

func TestGotoFailureRestoresOriginalWindow(t *testing.T) {
	remote := threeTabs()
	remote.current = "handle1"
	res, _ := newTestResolver(remote)

	if got, ok := res.Goto(context.Background(), "nonexistent"); ok {
		t.Fatalf("Goto(nonexistent) = %q; want failure", got)
	}
	if remote.current != "handle1" {
		t.Fatalf("current window = %q; want restored handle1", remote.current)
	}
}

func TestGotoOutOfRangeIndex(t *testing.T) {
	remote := threeTabs()
	res, _ := newTestResolver(remote)
	if got, ok := res.Goto(context.Background(), "7"); ok {
		t.Fatalf("Goto(7) = %q; want failure", got)
	}
	if remote.current != "handle0" {
		t.Fatalf("current window = %q after failure", remote.current)
	}
}

func TestListTabsRestoresActiveWindow(t *testing.T) {
	remote := threeTabs()
	remote.current = "handle2"
	res, store := newTestResolver(remote)
	_ = store.Update(browser.Chrome, func(d *session.Descriptor) error {
		d.AddTag("handle1", "news")
		return nil
	})

	tabs, err := res.ListTabs(context.Background())
	if err != nil {
		t.Fatalf("ListTabs() error = %v", err)
	}
	if len(tabs) != 3 {
		t.Fatalf("ListTabs() = %d tabs; want 3", len(tabs))
	}
	if tabs[1].Title != "Breaking News" || !reflect.DeepEqual(tabs[1].Tags, []string{"news"}) {
		t.Fatalf("tabs[1] = %+v", tabs[1])
	}
	if !tabs[2].Active || tabs[0].Active {
		t.Fatalf("active flags wrong: %+v", tabs)
	}
	if remote.current != "handle2" {
		t.Fatalf("current window = %q; want handle2 after listing", remote.current)
	}
}

func TestTagRoundTrip(t *testing.T) {
	remote := threeTabs()
	res, store := newTestResolver(remote)
	ctx := context.Background()

	if ok, err := res.Tag(ctx, "ndle1", "news"); !ok || err != nil {
		t.Fatalf("Tag() = %v, %v", ok, err)
	}
	if ok, err := res.Tag(ctx, "1", "news"); !ok || err != nil {
		t.Fatalf("Tag() second time = %v, %v", ok, err)
	}
	d, _ := store.Load(browser.Chrome)
	if got := d.Tags["handle1"]; !reflect.DeepEqual(got, []string{"news"}) {
		t.Fatalf("tags[handle1] = %v; want [news]", got)
	}
	if remote.current != "handle0" {
		t.Fatalf("current window = %q; tagging must not move the session", remote.current)
	}

	live := NewResolver(remote, browser.Chrome, store)
	got, err := live.TabsByTag(ctx, "news")
	if err != nil || !reflect.DeepEqual(got, []string{"handle1"}) {
		t.Fatalf("TabsByTag(news) = %v, %v; want [handle1]", got, err)
	}
}

func TestTabsByTagFiltersClosedWindows(t *testing.T) {
	remote := threeTabs()
	res, store := newTestResolver(remote)
	_ = store.Update(browser.Chrome, func(d *session.Descriptor) error {
		d.AddTag("handle1", "news")
		d.AddTag("closed-handle", "news")
		return nil
	})

	got, err := res.TabsByTag(context.Background(), "news")
	if err != nil {
		t.Fatalf("TabsByTag() error = %v", err)
	}
	if !reflect.DeepEqual(got, []string{"handle1"}) {
		t.Fatalf("TabsByTag() = %v; want [handle1]", got)
	}
	d, _ := store.Load(browser.Chrome)
	if _, ok := d.Tags["closed-handle"]; !ok {
		t.Fatalf("stale tag deleted; it should only be filtered")
	}
}

func TestTagWithoutDescriptorFails(t *testing.T) {
	remote := threeTabs()
	res := NewResolver(remote, browser.Chrome, session.NewMemoryStore())
	if ok, err := res.Tag(context.Background(), "0", "news"); ok || err != nil {
		t.Fatalf("Tag() = %v, %v; want false without a persisted session", ok, err)
	}
}

func TestLookupReportsUnreachableSession(t *testing.T) {
	remote := threeTabs()
	remote.listErr = errors.New("connection refused")
	res, _ := newTestResolver(remote)
	ctx := context.Background()

	if _, ok, err := res.Lookup(ctx, "0"); ok || err == nil {
		t.Fatalf("Lookup() = %v, %v; want enumeration error", ok, err)
	}
	if ok, err := res.Tag(ctx, "0", "news"); ok || err == nil {
		t.Fatalf("Tag() = %v, %v; want enumeration error", ok, err)
	}
	if _, ok := res.Goto(ctx, "0"); ok {
		t.Fatalf("Goto() = true against an unreachable session")
	}

	remote.listErr = nil
	if _, ok, err := res.Lookup(ctx, "missing"); ok || err != nil {
		t.Fatalf("Lookup(missing) = %v, %v; want plain miss", ok, err)
	}
}
