// Package navigator is the page-level surface handed to scrapers and the
// language-model collaborator: navigate, read content, switch, list and tag
// tabs. Every call runs against the current persisted session.
package navigator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/dgnsrekt/aria/internal/llm"
	"github.com/dgnsrekt/aria/internal/prompt"
	"github.com/dgnsrekt/aria/internal/retry"
	"github.com/dgnsrekt/aria/internal/session"
	"github.com/dgnsrekt/aria/internal/tabs"
	"github.com/dgnsrekt/aria/internal/webdriver"
)

// SessionProvider yields the live session to operate on.
type SessionProvider interface {
	Current(ctx context.Context) (*session.Handle, bool)
	Store() session.Store
}

// Options configure a Navigator.
type Options struct {
	Sessions SessionProvider
	Policy   retry.Policy
	Throttle retry.Throttle
	// ContentMaxBytes caps GetPageContent output; zero disables the cap.
	ContentMaxBytes int
}

// Navigator performs page operations with retry and throttling.
type Navigator struct {
	sessions   SessionProvider
	policy     retry.Policy
	throttle   retry.Throttle
	maxContent int

	mu     sync.Mutex
	handle *session.Handle
}

// New creates a Navigator.
func New(opts Options) *Navigator {
	p := opts.Policy
	if p.Retryable == nil {
		p.Retryable = transient
	}
	return &Navigator{
		sessions:   opts.Sessions,
		policy:     p,
		throttle:   opts.Throttle,
		maxContent: opts.ContentMaxBytes,
	}
}

// permanentCodes are WebDriver errors that another attempt cannot fix.
var permanentCodes = map[string]bool{
	"invalid session id": true,
	"no such window":     true,
	"invalid argument":   true,
	"javascript error":   true,
	"unknown command":    true,
}

// transient classifies remote-automation failures worth retrying.
func transient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var coded *CodedError
	if errors.As(err, &coded) && coded.Code == CodeSession {
		return false
	}
	var wdErr *webdriver.Error
	if errors.As(err, &wdErr) {
		return !permanentCodes[wdErr.Code]
	}
	return true
}

// Session returns the live session, reattaching on first use.
func (n *Navigator) Session(ctx context.Context) (*session.Handle, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.handle != nil {
		return n.handle, nil
	}
	h, ok := n.sessions.Current(ctx)
	if !ok {
		return nil, newError(CodeSession, "no active browser session; run `aria open` first", nil)
	}
	n.handle = h
	return h, nil
}

// Use pins h as the session for later calls.
func (n *Navigator) Use(h *session.Handle) {
	n.mu.Lock()
	n.handle = h
	n.mu.Unlock()
}

// forget drops the cached session so the next call re-validates it.
func (n *Navigator) forget() {
	n.mu.Lock()
	n.handle = nil
	n.mu.Unlock()
}

// fail wraps a remote failure and drops the cached session.
func (n *Navigator) fail(code, msg string, err error) error {
	n.forget()
	return newError(code, msg, err)
}

func (n *Navigator) resolver(ctx context.Context) (*tabs.Resolver, *session.Handle, error) {
	h, err := n.Session(ctx)
	if err != nil {
		return nil, nil, err
	}
	return tabs.NewResolver(h.Remote, h.Kind, n.sessions.Store()), h, nil
}

// Navigate loads url in the active tab.
func (n *Navigator) Navigate(ctx context.Context, url string) error {
	if strings.TrimSpace(url) == "" {
		return newError(CodeValidation, "url is required", nil)
	}
	h, err := n.Session(ctx)
	if err != nil {
		return err
	}
	if err := n.throttle.Wait(ctx); err != nil {
		return err
	}
	err = n.policy.Do(ctx, "navigate", func(ctx context.Context) error {
		return h.Remote.Navigate(ctx, url)
	})
	if err != nil {
		return n.fail(CodeNavigation, fmt.Sprintf("failed to navigate to %s", url), err)
	}
	slog.InfoContext(ctx, "navigated", "url", url, "browser", h.Kind)
	return nil
}

// GetPageContent returns the visible text of the active tab.
func (n *Navigator) GetPageContent(ctx context.Context) (string, error) {
	h, err := n.Session(ctx)
	if err != nil {
		return "", err
	}
	text, err := retry.DoValue(ctx, n.policy, "get page content", func(ctx context.Context) (string, error) {
		raw, err := h.Remote.ExecuteScript(ctx, pageTextScript)
		if err != nil {
			return "", err
		}
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", fmt.Errorf("decode page text: %w", err)
		}
		return s, nil
	})
	if err != nil {
		return "", n.fail(CodeBrowser, "failed to read page content", err)
	}
	if out, cut, total, hash := truncateText(text, n.maxContent); cut {
		slog.InfoContext(ctx, "page content truncated", "bytes", total, "max_bytes", n.maxContent)
		return out + truncationNote(len(out), total, hash), nil
	}
	return text, nil
}

// ExtractLinks returns every anchor with an href in the active tab.
func (n *Navigator) ExtractLinks(ctx context.Context) ([]Link, error) {
	h, err := n.Session(ctx)
	if err != nil {
		return nil, err
	}
	links, err := retry.DoValue(ctx, n.policy, "extract links", func(ctx context.Context) ([]Link, error) {
		raw, err := h.Remote.ExecuteScript(ctx, linksScript)
		if err != nil {
			return nil, err
		}
		var out []Link
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, fmt.Errorf("decode links: %w", err)
		}
		return out, nil
	})
	if err != nil {
		return nil, n.fail(CodeBrowser, "failed to extract links", err)
	}
	return links, nil
}

// Screenshot captures the active tab as PNG.
func (n *Navigator) Screenshot(ctx context.Context) ([]byte, error) {
	h, err := n.Session(ctx)
	if err != nil {
		return nil, err
	}
	img, err := retry.DoValue(ctx, n.policy, "screenshot", h.Remote.Screenshot)
	if err != nil {
		return nil, n.fail(CodeBrowser, "failed to capture screenshot", err)
	}
	return img, nil
}

// PageInfo returns the title and URL of the active tab.
func (n *Navigator) PageInfo(ctx context.Context) (string, string, error) {
	h, err := n.Session(ctx)
	if err != nil {
		return "", "", err
	}
	var title, url string
	err = n.policy.Do(ctx, "page info", func(ctx context.Context) error {
		var err error
		if title, err = h.Remote.Title(ctx); err != nil {
			return err
		}
		url, err = h.Remote.CurrentURL(ctx)
		return err
	})
	if err != nil {
		return "", "", n.fail(CodeBrowser, "failed to read page info", err)
	}
	return title, url, nil
}

// GotoTab switches to the tab identified by id. An unresolved id reports
// false without an error; an unreachable session is a BrowserError.
func (n *Navigator) GotoTab(ctx context.Context, id string) (string, bool, error) {
	res, _, err := n.resolver(ctx)
	if err != nil {
		return "", false, err
	}
	handle, ok, err := res.Lookup(ctx, id)
	if err != nil {
		return "", false, n.fail(CodeBrowser, "failed to list tabs", err)
	}
	return handle, ok, nil
}

// ListTabs enumerates the session's windows.
func (n *Navigator) ListTabs(ctx context.Context) ([]tabs.TabInfo, error) {
	res, _, err := n.resolver(ctx)
	if err != nil {
		return nil, err
	}
	list, err := res.ListTabs(ctx)
	if err != nil {
		return nil, n.fail(CodeBrowser, "failed to list tabs", err)
	}
	return list, nil
}

// TagTab adds tag to the tab identified by id.
func (n *Navigator) TagTab(ctx context.Context, id, tag string) (bool, error) {
	if strings.TrimSpace(tag) == "" {
		return false, newError(CodeValidation, "tag is required", nil)
	}
	res, _, err := n.resolver(ctx)
	if err != nil {
		return false, err
	}
	ok, err := res.Tag(ctx, id, tag)
	if err != nil {
		return false, n.fail(CodeBrowser, "failed to list tabs", err)
	}
	return ok, nil
}

// TabsByTag returns the live handles carrying tag.
func (n *Navigator) TabsByTag(ctx context.Context, tag string) ([]string, error) {
	res, _, err := n.resolver(ctx)
	if err != nil {
		return nil, err
	}
	handles, err := res.TabsByTag(ctx, tag)
	if err != nil {
		return nil, n.fail(CodeBrowser, "failed to list tagged tabs", err)
	}
	return handles, nil
}

// ActiveTags returns the persisted tags of the active tab.
func (n *Navigator) ActiveTags(ctx context.Context) ([]string, error) {
	res, h, err := n.resolver(ctx)
	if err != nil {
		return nil, err
	}
	handle, err := res.Current(ctx)
	if err != nil {
		return nil, n.fail(CodeBrowser, "failed to read active tab", err)
	}
	d, ok := n.sessions.Store().Load(h.Kind)
	if !ok {
		return nil, nil
	}
	return d.Tags[handle], nil
}

// OpenTab opens url in a new tab and makes it active.
func (n *Navigator) OpenTab(ctx context.Context, url string) (string, error) {
	h, err := n.Session(ctx)
	if err != nil {
		return "", err
	}
	if err := n.throttle.Wait(ctx); err != nil {
		return "", err
	}
	handle, err := retry.DoValue(ctx, n.policy, "open tab", h.Remote.NewWindow)
	if err != nil {
		return "", n.fail(CodeBrowser, "failed to open tab", err)
	}
	if err := h.Remote.SwitchWindow(ctx, handle); err != nil {
		return "", n.fail(CodeBrowser, "failed to switch to new tab", err)
	}
	if url == "" {
		return handle, nil
	}
	err = n.policy.Do(ctx, "navigate", func(ctx context.Context) error {
		return h.Remote.Navigate(ctx, url)
	})
	if err != nil {
		return handle, n.fail(CodeNavigation, fmt.Sprintf("failed to navigate to %s", url), err)
	}
	return handle, nil
}

// ResolvePrompt gathers the content of tabs referenced in text.
func (n *Navigator) ResolvePrompt(ctx context.Context, text string) (string, string, error) {
	if len(prompt.ParseReferences(text)) == 0 {
		return text, "", nil
	}
	res, _, err := n.resolver(ctx)
	if err != nil {
		return "", "", err
	}
	return prompt.NewResolver(&promptSource{nav: n, res: res}).Resolve(ctx, text)
}

// TabsContent returns the labeled content of each identified tab. Tabs that
// cannot be resolved are skipped.
func (n *Navigator) TabsContent(ctx context.Context, ids []string) (string, error) {
	if len(ids) == 0 {
		return "", nil
	}
	res, _, err := n.resolver(ctx)
	if err != nil {
		return "", err
	}
	out, err := prompt.NewResolver(&promptSource{nav: n, res: res}).Gather(ctx, ids)
	if err != nil {
		return "", n.fail(CodeBrowser, "failed to gather tab content", err)
	}
	return out, nil
}

// Ask answers text with gen, using referenced tabs as context.
func (n *Navigator) Ask(ctx context.Context, gen llm.Generator, text, format string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", newError(CodeValidation, "prompt is required", nil)
	}
	p, contextText, err := n.ResolvePrompt(ctx, text)
	if err != nil {
		return "", err
	}
	out, err := gen.Generate(ctx, llm.Request{Prompt: p, Context: contextText, OutputFormat: format})
	if err != nil {
		return "", newError(CodeAIService, "language model request failed", err)
	}
	return out, nil
}

// promptSource adapts a Navigator to prompt.Source.
type promptSource struct {
	nav *Navigator
	res *tabs.Resolver
}

func (s *promptSource) CurrentTab(ctx context.Context) (string, error) {
	return s.res.Current(ctx)
}

func (s *promptSource) GotoTab(ctx context.Context, id string) (string, bool) {
	return s.res.Goto(ctx, id)
}

func (s *promptSource) RestoreTab(ctx context.Context, handle string) {
	s.res.Restore(ctx, handle)
}

func (s *promptSource) TabsByTag(ctx context.Context, tag string) ([]string, error) {
	return s.res.TabsByTag(ctx, tag)
}

func (s *promptSource) Capture(ctx context.Context) (prompt.Page, error) {
	title, url, err := s.nav.PageInfo(ctx)
	if err != nil {
		return prompt.Page{}, err
	}
	content, err := s.nav.GetPageContent(ctx)
	if err != nil {
		return prompt.Page{}, err
	}
	return prompt.Page{Title: title, URL: url, Content: content}, nil
}
