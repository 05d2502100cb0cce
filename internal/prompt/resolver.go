package prompt

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Page is captured content of one tab.
type Page struct {
	Title   string
	URL     string
	Content string
}

// Source is the window-switching surface the resolver needs.
type Source interface {
	CurrentTab(ctx context.Context) (string, error)
	GotoTab(ctx context.Context, id string) (string, bool)
	RestoreTab(ctx context.Context, handle string)
	TabsByTag(ctx context.Context, tag string) ([]string, error)
	Capture(ctx context.Context) (Page, error)
}

// Resolver materializes prompt references into context text.
type Resolver struct {
	src Source
}

// NewResolver creates a Resolver over src.
func NewResolver(src Source) *Resolver {
	return &Resolver{src: src}
}

// Identifiers expands refs into tab identifiers, resolving tags to their
// live handles, deduplicated in collection order.
func (r *Resolver) Identifiers(ctx context.Context, refs []Reference) []string {
	var ids []string
	seen := make(map[string]bool)
	add := func(id string) {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	for _, ref := range refs {
		if ref.Kind == RefTab {
			add(ref.Value)
			continue
		}
		handles, err := r.src.TabsByTag(ctx, ref.Value)
		if err != nil {
			slog.WarnContext(ctx, "tag lookup failed", "tag", ref.Value, "error", err)
			continue
		}
		if len(handles) == 0 {
			slog.WarnContext(ctx, "no live tabs carry tag", "tag", ref.Value)
		}
		for _, h := range handles {
			add(h)
		}
	}
	return ids
}

// Resolve returns text unchanged plus the labeled content of every tab it
// references. Prompts without references get an empty context and the
// browser is never touched.
func (r *Resolver) Resolve(ctx context.Context, text string) (string, string, error) {
	refs := ParseReferences(text)
	if len(refs) == 0 {
		return text, "", nil
	}
	ids := r.Identifiers(ctx, refs)
	if len(ids) == 0 {
		return text, "", nil
	}

	content, err := r.Gather(ctx, ids)
	if err != nil {
		return text, "", err
	}
	return text, content, nil
}

// Gather visits each tab identifier and returns their labeled content. The
// active tab is restored afterwards.
func (r *Resolver) Gather(ctx context.Context, ids []string) (string, error) {
	original, err := r.src.CurrentTab(ctx)
	if err != nil {
		return "", fmt.Errorf("current tab: %w", err)
	}
	defer r.src.RestoreTab(ctx, original)

	var b strings.Builder
	for _, id := range ids {
		if _, ok := r.src.GotoTab(ctx, id); !ok {
			slog.WarnContext(ctx, "skipping unresolved tab reference", "identifier", id)
			continue
		}
		page, err := r.src.Capture(ctx)
		if err != nil {
			slog.WarnContext(ctx, "tab content unavailable", "identifier", id, "error", err)
			continue
		}
		fmt.Fprintf(&b, "--- Content from Tab %s (Title: %s, URL: %s) ---\n%s\n\n", id, page.Title, page.URL, page.Content)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}
