package controller

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dgnsrekt/aria/internal/browser"
	"github.com/dgnsrekt/aria/internal/navigator"
	"github.com/dgnsrekt/aria/internal/scripts"
	"github.com/dgnsrekt/aria/internal/session"
	"github.com/dgnsrekt/aria/internal/snapshot"
	"github.com/dgnsrekt/aria/internal/storage"
	"github.com/dgnsrekt/aria/internal/tabs"
)

// Navigator is the page surface the service drives.
type Navigator interface {
	Navigate(ctx context.Context, url string) error
	GetPageContent(ctx context.Context) (string, error)
	ExtractLinks(ctx context.Context) ([]navigator.Link, error)
	PageInfo(ctx context.Context) (string, string, error)
	ActiveTags(ctx context.Context) ([]string, error)
	GotoTab(ctx context.Context, id string) (string, bool, error)
	ListTabs(ctx context.Context) ([]tabs.TabInfo, error)
	TagTab(ctx context.Context, id, tag string) (bool, error)
	TabsByTag(ctx context.Context, tag string) ([]string, error)
	OpenTab(ctx context.Context, url string) (string, error)
	ResolvePrompt(ctx context.Context, text string) (string, string, error)
	Screenshot(ctx context.Context) ([]byte, error)
}

// Service serializes browser operations for the HTTP API. Window switching
// is global browser state, so one request runs at a time.
type Service struct {
	mu      sync.Mutex
	nav     Navigator
	store   session.Store
	scripts *scripts.Store
	snaps   *snapshot.Store
	now     func() time.Time
}

func NewService(nav Navigator, store session.Store, scriptStore *scripts.Store, snaps *snapshot.Store) *Service {
	return &Service{nav: nav, store: store, scripts: scriptStore, snaps: snaps, now: time.Now}
}

func (s *Service) requireNonEmpty(value, fieldName string) error {
	if strings.TrimSpace(value) == "" {
		return &navigator.CodedError{Code: navigator.CodeValidation, Message: fieldName + " is required"}
	}
	return nil
}

func tabNotFound(id string) error {
	return &navigator.CodedError{Code: navigator.CodeTabMissing, Message: fmt.Sprintf("tab %q not found", id)}
}

// ListSessions returns every persisted descriptor and the current kind.
// Descriptors are not probed.
func (s *Service) ListSessions(ctx context.Context) ([]session.Descriptor, browser.Kind, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []session.Descriptor
	for _, kind := range s.store.ListKinds() {
		if d, ok := s.store.Load(kind); ok {
			out = append(out, *d)
		}
	}
	current, _ := s.store.CurrentKind()
	return out, current, nil
}

func (s *Service) ListTabs(ctx context.Context) ([]tabs.TabInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nav.ListTabs(ctx)
}

func (s *Service) GotoTab(ctx context.Context, id string) (string, error) {
	if err := s.requireNonEmpty(id, "tab"); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	handle, ok, err := s.nav.GotoTab(ctx, strings.TrimSpace(id))
	if err != nil {
		return "", err
	}
	if !ok {
		return "", tabNotFound(id)
	}
	return handle, nil
}

func (s *Service) TagTab(ctx context.Context, id, tag string) error {
	if err := s.requireNonEmpty(id, "tab"); err != nil {
		return err
	}
	if err := s.requireNonEmpty(tag, "tag"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	ok, err := s.nav.TagTab(ctx, strings.TrimSpace(id), strings.TrimSpace(tag))
	if err != nil {
		return err
	}
	if !ok {
		return tabNotFound(id)
	}
	return nil
}

func (s *Service) TabsByTag(ctx context.Context, tag string) ([]string, error) {
	if err := s.requireNonEmpty(tag, "tag"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nav.TabsByTag(ctx, strings.TrimSpace(tag))
}

func (s *Service) OpenTab(ctx context.Context, url string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nav.OpenTab(ctx, strings.TrimSpace(url))
}

func (s *Service) Navigate(ctx context.Context, url string) error {
	if err := s.requireNonEmpty(url, "url"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nav.Navigate(ctx, strings.TrimSpace(url))
}

// Capture reads the active tab's title, URL, text and tags.
func (s *Service) Capture(ctx context.Context) (storage.Capture, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	title, url, err := s.nav.PageInfo(ctx)
	if err != nil {
		return storage.Capture{}, err
	}
	content, err := s.nav.GetPageContent(ctx)
	if err != nil {
		return storage.Capture{}, err
	}
	tags, err := s.nav.ActiveTags(ctx)
	if err != nil {
		return storage.Capture{}, err
	}
	return storage.Capture{
		Timestamp: s.now().UTC(),
		URL:       url,
		Title:     title,
		Content:   content,
		Tags:      tags,
	}, nil
}

func (s *Service) Links(ctx context.Context) ([]navigator.Link, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nav.ExtractLinks(ctx)
}

// ResolveContext gathers the content of tabs referenced in prompt.
func (s *Service) ResolveContext(ctx context.Context, prompt string) (string, error) {
	if err := s.requireNonEmpty(prompt, "prompt"); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	_, gathered, err := s.nav.ResolvePrompt(ctx, prompt)
	return gathered, err
}

// ListScripts returns the stored prompt scripts.
func (s *Service) ListScripts(ctx context.Context) ([]*scripts.Script, error) {
	return s.scripts.List()
}

// GetScript returns one stored script and its placeholders.
func (s *Service) GetScript(ctx context.Context, name string) (*scripts.Script, []string, error) {
	if err := s.requireNonEmpty(name, "name"); err != nil {
		return nil, nil, err
	}
	sc, err := s.scripts.Get(strings.TrimSpace(name))
	if err != nil {
		return nil, nil, err
	}
	return sc, scripts.Placeholders(sc.Prompt), nil
}

// Screenshot captures the active tab and stores it with its page details.
func (s *Service) Screenshot(ctx context.Context, notes string) (snapshot.Meta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	title, url, err := s.nav.PageInfo(ctx)
	if err != nil {
		return snapshot.Meta{}, err
	}
	tags, err := s.nav.ActiveTags(ctx)
	if err != nil {
		return snapshot.Meta{}, err
	}
	img, err := s.nav.Screenshot(ctx)
	if err != nil {
		return snapshot.Meta{}, err
	}

	meta := snapshot.Meta{
		ID:        snapshot.NewID(),
		URL:       url,
		Title:     title,
		Tags:      tags,
		Format:    "png",
		CreatedAt: s.now().UTC(),
		Notes:     strings.TrimSpace(notes),
	}
	if kind, ok := s.store.CurrentKind(); ok {
		meta.Browser = string(kind)
	}
	if err := s.snaps.Save(meta, img); err != nil {
		return snapshot.Meta{}, &navigator.CodedError{Code: navigator.CodeBrowser, Message: "save screenshot", Cause: err}
	}
	meta.SizeBytes = len(img)
	return meta, nil
}

func (s *Service) ListScreenshots(ctx context.Context) ([]snapshot.Meta, error) {
	return s.snaps.List()
}

func (s *Service) GetScreenshot(ctx context.Context, id string) (snapshot.Meta, error) {
	if err := s.requireNonEmpty(id, "screenshot_id"); err != nil {
		return snapshot.Meta{}, err
	}
	meta, err := s.snaps.Get(strings.TrimSpace(id))
	if err != nil {
		return snapshot.Meta{}, shotError(err)
	}
	return meta, nil
}

func (s *Service) ReadScreenshot(ctx context.Context, id string) ([]byte, string, error) {
	if err := s.requireNonEmpty(id, "screenshot_id"); err != nil {
		return nil, "", err
	}
	data, format, err := s.snaps.ReadImage(strings.TrimSpace(id))
	if err != nil {
		return nil, "", shotError(err)
	}
	return data, format, nil
}

func (s *Service) DeleteScreenshot(ctx context.Context, id string) error {
	if err := s.requireNonEmpty(id, "screenshot_id"); err != nil {
		return err
	}
	if err := s.snaps.Delete(strings.TrimSpace(id)); err != nil {
		return shotError(err)
	}
	return nil
}

func shotError(err error) error {
	if errors.Is(err, snapshot.ErrNotFound) {
		return &navigator.CodedError{Code: navigator.CodeShotMissing, Message: err.Error()}
	}
	return &navigator.CodedError{Code: navigator.CodeValidation, Message: err.Error()}
}
