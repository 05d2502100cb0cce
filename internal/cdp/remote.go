// Package cdp drives Chromium over the DevTools protocol for sessions that
// have no WebDriver driver. Window handles are page target ids and the
// session id is the browser instance id from /json/version.
package cdp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/dgnsrekt/aria/internal/browser"
)

// Connector creates Remotes for a Chromium DevTools endpoint.
type Connector struct{}

// NewConnector returns a DevTools Connector.
func NewConnector() *Connector { return &Connector{} }

// CreateNew binds to the freshly spawned browser at endpoint. DevTools has no
// session negotiation, so capabilities are applied on the command line instead.
func (c *Connector) CreateNew(ctx context.Context, endpoint string, _ map[string]any) (browser.Remote, error) {
	return c.bind(ctx, endpoint, "")
}

// AttachExisting binds to endpoint and verifies the browser is the same
// instance that was recorded as sessionID.
func (c *Connector) AttachExisting(ctx context.Context, endpoint, sessionID string) (browser.Remote, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("attach: empty session id")
	}
	return c.bind(ctx, endpoint, sessionID)
}

func (c *Connector) bind(ctx context.Context, endpoint, wantID string) (*Remote, error) {
	raw := newRawClient(endpoint)
	info, err := raw.version(ctx)
	if err != nil {
		return nil, err
	}
	id := info.browserID()
	if wantID != "" && id != wantID {
		return nil, fmt.Errorf("cdp: browser at %s is %q, not recorded session %q", endpoint, id, wantID)
	}

	r := &Remote{
		endpoint: raw.httpBase,
		id:       id,
		wsURL:    info.WebSocketDebuggerURL,
		raw:      raw,
		tabs:     make(map[target.ID]context.Context),
	}
	pages, err := r.pages(ctx)
	if err != nil {
		return nil, err
	}
	// The most recently activated page is listed first.
	if len(pages) > 0 {
		r.current = pages[0].TargetID
	}
	slog.DebugContext(ctx, "cdp session bound", "endpoint", r.endpoint, "browser", info.Browser, "session_id", id)
	return r, nil
}

// Remote is a browser.Remote over DevTools.
type Remote struct {
	endpoint string
	id       string
	wsURL    string
	raw      *rawClient

	mu      sync.Mutex
	current target.ID

	// chromedp contexts are created lazily and never cancelled per target:
	// cancelling a non-first chromedp context closes its tab.
	allocCtx    context.Context
	allocCancel context.CancelFunc
	firstCtx    context.Context
	tabs        map[target.ID]context.Context
}

var _ browser.Remote = (*Remote)(nil)

func (r *Remote) SessionID() string { return r.id }
func (r *Remote) Endpoint() string  { return r.endpoint }

func (r *Remote) pages(ctx context.Context) ([]*target.Info, error) {
	all, err := r.raw.listTargets(ctx)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, t := range all {
		if t.Type == "page" {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *Remote) currentTarget() (target.ID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == "" {
		return "", fmt.Errorf("cdp: no page target selected")
	}
	return r.current, nil
}

func (r *Remote) currentInfo(ctx context.Context) (*target.Info, error) {
	id, err := r.currentTarget()
	if err != nil {
		return nil, err
	}
	pages, err := r.pages(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range pages {
		if p.TargetID == id {
			return p, nil
		}
	}
	return nil, fmt.Errorf("cdp: no such window: %s", id)
}

func (r *Remote) WindowHandles(ctx context.Context) ([]string, error) {
	pages, err := r.pages(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(pages))
	for _, p := range pages {
		out = append(out, string(p.TargetID))
	}
	return out, nil
}

func (r *Remote) CurrentWindow(ctx context.Context) (string, error) {
	info, err := r.currentInfo(ctx)
	if err != nil {
		return "", err
	}
	return string(info.TargetID), nil
}

// SwitchWindow selects handle and activates it in the browser. /json/list
// orders pages by activation, so a later bind picks the same page again.
func (r *Remote) SwitchWindow(ctx context.Context, handle string) error {
	pages, err := r.pages(ctx)
	if err != nil {
		return err
	}
	for _, p := range pages {
		if string(p.TargetID) != handle {
			continue
		}
		if err := r.activate(ctx, p.TargetID); err != nil {
			return err
		}
		r.mu.Lock()
		r.current = p.TargetID
		r.mu.Unlock()
		return nil
	}
	return fmt.Errorf("cdp: no such window: %s", handle)
}

func (r *Remote) activate(ctx context.Context, id target.ID) error {
	if err := r.raw.connect(ctx, r.wsURL); err != nil {
		return err
	}
	if _, err := r.raw.send(ctx, "", "Target.activateTarget", target.ActivateTarget(id)); err != nil {
		return fmt.Errorf("cdp: activate %s: %w", id, err)
	}
	return nil
}

func (r *Remote) Title(ctx context.Context) (string, error) {
	info, err := r.currentInfo(ctx)
	if err != nil {
		return "", err
	}
	return info.Title, nil
}

func (r *Remote) CurrentURL(ctx context.Context) (string, error) {
	info, err := r.currentInfo(ctx)
	if err != nil {
		return "", err
	}
	return info.URL, nil
}

func (r *Remote) NewWindow(ctx context.Context) (string, error) {
	if err := r.raw.connect(ctx, r.wsURL); err != nil {
		return "", err
	}
	res, err := r.raw.send(ctx, "", "Target.createTarget", target.CreateTarget("about:blank"))
	if err != nil {
		return "", err
	}
	var out struct {
		TargetID string `json:"targetId"`
	}
	if err := json.Unmarshal(res, &out); err != nil {
		return "", fmt.Errorf("cdp: unmarshal createTarget: %w", err)
	}
	return out.TargetID, nil
}

// Navigate loads url in the selected target and waits for the load event.
func (r *Remote) Navigate(ctx context.Context, url string) error {
	id, err := r.currentTarget()
	if err != nil {
		return err
	}
	tabCtx, err := r.tabContext(id)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(tabCtx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, chromedp.Navigate(url)); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("cdp: navigate: %w", err)
	}
	return nil
}

func (r *Remote) tabContext(id target.ID) (context.Context, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if tabCtx, ok := r.tabs[id]; ok {
		return tabCtx, nil
	}
	if r.firstCtx == nil {
		r.allocCtx, r.allocCancel = chromedp.NewRemoteAllocator(context.Background(), r.endpoint)
		first, _ := chromedp.NewContext(r.allocCtx, chromedp.WithTargetID(id))
		if err := chromedp.Run(first); err != nil {
			r.allocCancel()
			r.allocCtx, r.allocCancel = nil, nil
			return nil, fmt.Errorf("cdp: attach chromedp: %w", err)
		}
		r.firstCtx = first
		r.tabs[id] = first
		return first, nil
	}
	tabCtx, _ := chromedp.NewContext(r.firstCtx, chromedp.WithTargetID(id))
	r.tabs[id] = tabCtx
	return tabCtx, nil
}

// ExecuteScript evaluates script as a function body with args bound to
// `arguments`, mirroring WebDriver's execute/sync.
func (r *Remote) ExecuteScript(ctx context.Context, script string, args ...any) (json.RawMessage, error) {
	id, err := r.currentTarget()
	if err != nil {
		return nil, err
	}
	if args == nil {
		args = []any{}
	}
	argJSON, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("cdp: marshal args: %w", err)
	}
	if err := r.raw.connect(ctx, r.wsURL); err != nil {
		return nil, err
	}

	sessionID, err := r.raw.attach(ctx, id)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := r.raw.detach(context.WithoutCancel(ctx), sessionID); err != nil {
			slog.DebugContext(ctx, "cdp detach failed", "target_id", id, "error", err)
		}
	}()

	expr := fmt.Sprintf("(function(){%s\n}).apply(null, %s)", script, argJSON)
	return r.raw.evaluate(ctx, sessionID, expr)
}

// Screenshot captures the selected target's viewport as PNG.
func (r *Remote) Screenshot(ctx context.Context) ([]byte, error) {
	id, err := r.currentTarget()
	if err != nil {
		return nil, err
	}
	tabCtx, err := r.tabContext(id)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(tabCtx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var buf []byte
	if err := chromedp.Run(runCtx, chromedp.CaptureScreenshot(&buf)); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("cdp: screenshot: %w", err)
	}
	return buf, nil
}

// Quit closes the browser.
func (r *Remote) Quit(ctx context.Context) error {
	defer r.raw.close()
	if err := r.raw.connect(ctx, r.wsURL); err != nil {
		return err
	}
	_, err := r.raw.send(ctx, "", "Browser.close", nil)

	r.mu.Lock()
	if r.allocCancel != nil {
		r.allocCancel()
	}
	r.mu.Unlock()
	return err
}
