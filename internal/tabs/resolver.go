// Package tabs maps loose tab identifiers onto live window handles.
//
// Resolution order is fixed and first match wins: exact handle, 0-based
// index, handle substring (identifiers of 5+ characters), exact title,
// case-insensitive title substring, URL substring. A failed lookup leaves the
// session on the window that was active before it started.
package tabs

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/dgnsrekt/aria/internal/browser"
	"github.com/dgnsrekt/aria/internal/session"
)

// minHandleSubstring is the shortest identifier tried as a handle substring.
const minHandleSubstring = 5

// TabInfo describes one open window.
type TabInfo struct {
	Index  int      `json:"index"`
	Handle string   `json:"handle"`
	Title  string   `json:"title"`
	URL    string   `json:"url"`
	Tags   []string `json:"tags,omitempty"`
	Active bool     `json:"active"`
}

// Resolver selects windows in one session.
type Resolver struct {
	remote browser.Remote
	kind   browser.Kind
	store  session.Store
}

// NewResolver binds a Resolver to a live session and the store holding its tags.
func NewResolver(remote browser.Remote, kind browser.Kind, store session.Store) *Resolver {
	return &Resolver{remote: remote, kind: kind, store: store}
}

// Goto switches to the window identified by id and returns its handle. On
// failure it restores the original window and returns false.
func (r *Resolver) Goto(ctx context.Context, id string) (string, bool) {
	handle, ok, err := r.Lookup(ctx, id)
	if err != nil {
		slog.WarnContext(ctx, "cannot list windows", "identifier", id, "error", err)
	}
	return handle, ok
}

// Lookup is Goto for callers that must tell an unknown identifier from an
// unreachable session: err is set only when windows cannot be enumerated.
func (r *Resolver) Lookup(ctx context.Context, id string) (string, bool, error) {
	original, err := r.remote.CurrentWindow(ctx)
	if err != nil {
		slog.DebugContext(ctx, "current window unknown before resolution", "error", err)
	}
	handles, err := r.remote.WindowHandles(ctx)
	if err != nil {
		return "", false, err
	}

	handle, ok := r.match(ctx, id, handles)
	if ok {
		err := r.remote.SwitchWindow(ctx, handle)
		if err == nil {
			return handle, true, nil
		}
		slog.WarnContext(ctx, "switch to resolved window failed", "identifier", id, "handle", handle, "error", err)
	}

	slog.WarnContext(ctx, "tab not found", "identifier", id)
	r.restore(ctx, original)
	return "", false, nil
}

// match walks the resolution order. Title and URL branches visit windows;
// the caller decides where to end up.
func (r *Resolver) match(ctx context.Context, id string, handles []string) (string, bool) {
	for _, h := range handles {
		if h == id {
			return h, true
		}
	}

	if i, err := strconv.Atoi(strings.TrimSpace(id)); err == nil && i >= 0 && i < len(handles) {
		return handles[i], true
	}

	if utf8.RuneCountInString(id) >= minHandleSubstring {
		for _, h := range handles {
			if strings.Contains(h, id) {
				return h, true
			}
		}
	}

	pages := r.visit(ctx, handles)
	for _, p := range pages {
		if p.Title == id {
			return p.Handle, true
		}
	}
	lower := strings.ToLower(id)
	for _, p := range pages {
		if strings.Contains(strings.ToLower(p.Title), lower) {
			return p.Handle, true
		}
	}
	for _, p := range pages {
		if strings.Contains(p.URL, id) {
			return p.Handle, true
		}
	}
	return "", false
}

// visit reads title and URL of each window. Unreadable windows are skipped.
func (r *Resolver) visit(ctx context.Context, handles []string) []TabInfo {
	out := make([]TabInfo, 0, len(handles))
	for i, h := range handles {
		if err := r.remote.SwitchWindow(ctx, h); err != nil {
			slog.DebugContext(ctx, "skip window", "handle", h, "error", err)
			continue
		}
		title, err := r.remote.Title(ctx)
		if err != nil {
			slog.DebugContext(ctx, "window title unreadable", "handle", h, "error", err)
		}
		url, err := r.remote.CurrentURL(ctx)
		if err != nil {
			slog.DebugContext(ctx, "window url unreadable", "handle", h, "error", err)
		}
		out = append(out, TabInfo{Index: i, Handle: h, Title: title, URL: url})
	}
	return out
}

func (r *Resolver) restore(ctx context.Context, original string) {
	if original == "" {
		return
	}
	if err := r.remote.SwitchWindow(ctx, original); err != nil {
		slog.WarnContext(ctx, "restore original window failed", "handle", original, "error", err)
	}
}

// ListTabs enumerates every window with its persisted tags. The active
// window is unchanged afterwards.
func (r *Resolver) ListTabs(ctx context.Context) ([]TabInfo, error) {
	original, err := r.remote.CurrentWindow(ctx)
	if err != nil {
		slog.DebugContext(ctx, "current window unknown before listing", "error", err)
	}
	handles, err := r.remote.WindowHandles(ctx)
	if err != nil {
		return nil, err
	}
	defer r.restore(ctx, original)

	var tags map[string][]string
	if d, ok := r.store.Load(r.kind); ok {
		tags = d.Tags
	}

	tabs := r.visit(ctx, handles)
	for i := range tabs {
		tabs[i].Tags = tags[tabs[i].Handle]
		tabs[i].Active = tabs[i].Handle == original
	}
	return tabs, nil
}

// Tag resolves id and adds tag to its handle in the persisted descriptor.
// The active window is restored afterwards. An unresolved id or a failed
// save reports false; err is set only when windows cannot be enumerated.
func (r *Resolver) Tag(ctx context.Context, id, tag string) (bool, error) {
	original, err := r.remote.CurrentWindow(ctx)
	if err != nil {
		slog.DebugContext(ctx, "current window unknown before tagging", "error", err)
	}
	handle, ok, err := r.Lookup(ctx, id)
	if err != nil || !ok {
		return false, err
	}
	if handle != original {
		defer r.restore(ctx, original)
	}

	err = r.store.Update(r.kind, func(d *session.Descriptor) error {
		d.AddTag(handle, tag)
		return nil
	})
	if err != nil {
		if errors.Is(err, session.ErrNoSession) {
			slog.WarnContext(ctx, "cannot tag tab without a persisted session", "browser", r.kind)
		} else {
			slog.WarnContext(ctx, "tag save failed", "handle", handle, "tag", tag, "error", err)
		}
		return false, nil
	}
	slog.InfoContext(ctx, "tab tagged", "handle", handle, "tag", tag)
	return true, nil
}

// TabsByTag returns live handles carrying tag, in enumeration order. Tags on
// closed windows are skipped but kept on disk.
func (r *Resolver) TabsByTag(ctx context.Context, tag string) ([]string, error) {
	d, ok := r.store.Load(r.kind)
	if !ok {
		return nil, nil
	}
	tagged := d.HandlesWithTag(tag)
	if len(tagged) == 0 {
		return nil, nil
	}
	handles, err := r.remote.WindowHandles(ctx)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, h := range handles {
		if tagged[h] {
			out = append(out, h)
		}
	}
	return out, nil
}

// Current returns the active window handle.
func (r *Resolver) Current(ctx context.Context) (string, error) {
	return r.remote.CurrentWindow(ctx)
}

// Restore switches back to handle, logging failures.
func (r *Resolver) Restore(ctx context.Context, handle string) {
	r.restore(ctx, handle)
}
