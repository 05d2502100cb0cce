package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dgnsrekt/aria/internal/browser"
	"github.com/gofrs/flock"
)

const (
	filePrefix  = "aria_session_"
	currentFile = "aria_session_current.json"
)

// ErrNoSession reports that no descriptor exists for a kind.
var ErrNoSession = errors.New("no session descriptor")

// FileStore keeps descriptors as aria_session_<kind>.json under dir.
type FileStore struct {
	dir string
}

// NewFileStore creates a FileStore and ensures dir exists.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("session store: mkdir %s: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the store directory.
func (s *FileStore) Dir() string { return s.dir }

func (s *FileStore) path(kind browser.Kind) string {
	return filepath.Join(s.dir, filePrefix+string(kind)+".json")
}

func (s *FileStore) Load(kind browser.Kind) (*Descriptor, bool) {
	data, err := os.ReadFile(s.path(kind))
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			slog.Warn("session descriptor unreadable", "browser", kind, "error", err)
		}
		return nil, false
	}
	var d Descriptor
	if err := json.Unmarshal(data, &d); err != nil {
		slog.Warn("session descriptor corrupt, treating as absent", "browser", kind, "error", err)
		return nil, false
	}
	if d.Browser == "" {
		d.Browser = kind
	}
	return &d, true
}

func (s *FileStore) Save(kind browser.Kind, d *Descriptor) error {
	d.Browser = kind
	if err := writeJSON(s.path(kind), d); err != nil {
		return fmt.Errorf("session store: save %s: %w", kind, err)
	}
	s.SetCurrent(kind)
	return nil
}

func (s *FileStore) Remove(kind browser.Kind) {
	if err := os.Remove(s.path(kind)); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("session descriptor remove failed", "browser", kind, "error", err)
	}
	if cur, ok := s.CurrentKind(); ok && cur == kind {
		if err := os.Remove(filepath.Join(s.dir, currentFile)); err != nil && !errors.Is(err, os.ErrNotExist) {
			slog.Warn("current browser pointer remove failed", "error", err)
		}
	}
}

func (s *FileStore) ListKinds() []browser.Kind {
	matches, err := filepath.Glob(filepath.Join(s.dir, filePrefix+"*.json"))
	if err != nil {
		slog.Warn("session store glob failed", "error", err)
		return nil
	}
	out := make([]browser.Kind, 0, len(matches))
	for _, m := range matches {
		name := filepath.Base(m)
		if name == currentFile {
			continue
		}
		kind := strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), ".json")
		if kind == "" {
			continue
		}
		out = append(out, browser.Kind(kind))
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s *FileStore) CurrentKind() (browser.Kind, bool) {
	data, err := os.ReadFile(filepath.Join(s.dir, currentFile))
	if err != nil {
		return "", false
	}
	var p currentPointer
	if err := json.Unmarshal(data, &p); err != nil || p.Browser == "" {
		slog.Warn("current browser pointer corrupt", "error", err)
		return "", false
	}
	return p.Browser, true
}

func (s *FileStore) SetCurrent(kind browser.Kind) {
	if err := writeJSON(filepath.Join(s.dir, currentFile), currentPointer{Browser: kind}); err != nil {
		slog.Warn("current browser pointer write failed", "browser", kind, "error", err)
	}
}

// Update holds an exclusive flock on aria_session_<kind>.lock for the
// duration of the read-modify-write.
func (s *FileStore) Update(kind browser.Kind, fn func(*Descriptor) error) error {
	lock := flock.New(filepath.Join(s.dir, filePrefix+string(kind)+".lock"))
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("session store: lock %s: %w", kind, err)
	}
	defer func() { _ = lock.Unlock() }()

	d, ok := s.Load(kind)
	if !ok {
		return ErrNoSession
	}
	if err := fn(d); err != nil {
		return err
	}
	if err := writeJSON(s.path(kind), d); err != nil {
		return fmt.Errorf("session store: save %s: %w", kind, err)
	}
	return nil
}

// writeJSON replaces path atomically via a temp file and rename.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}
