// Package snapshot keeps page screenshots on disk, each image beside a JSON
// metadata sidecar named by the screenshot id.
package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound reports an unknown screenshot id.
var ErrNotFound = errors.New("screenshot not found")

// Meta describes one stored screenshot.
type Meta struct {
	ID        string    `json:"id"`
	Browser   string    `json:"browser,omitempty"`
	Handle    string    `json:"handle,omitempty"`
	URL       string    `json:"url"`
	Title     string    `json:"title"`
	Tags      []string  `json:"tags,omitempty"`
	Format    string    `json:"format"`
	SizeBytes int       `json:"size_bytes"`
	CreatedAt time.Time `json:"created_at"`
	Notes     string    `json:"notes,omitempty"`
}

// Store manages screenshot files under one directory.
type Store struct {
	dir string
	mu  sync.RWMutex
}

// NewStore creates a Store and ensures the directory exists.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("snapshot store: mkdir %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

// NewID returns a fresh screenshot id.
func NewID() string { return uuid.NewString() }

// Dir returns the store directory.
func (s *Store) Dir() string { return s.dir }

func validateID(id string) error {
	if _, err := uuid.Parse(id); err != nil || len(id) != 36 {
		return fmt.Errorf("invalid screenshot id %q", id)
	}
	return nil
}

// ImagePath returns where the image for meta lives.
func (s *Store) ImagePath(meta Meta) string {
	return filepath.Join(s.dir, meta.ID+"."+meta.Format)
}

func (s *Store) metaPath(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// Save writes the image and then its metadata. A failed metadata write
// removes the image again.
func (s *Store) Save(meta Meta, image []byte) error {
	if err := validateID(meta.ID); err != nil {
		return err
	}
	if meta.Format == "" {
		meta.Format = "png"
	}
	meta.SizeBytes = len(image)

	s.mu.Lock()
	defer s.mu.Unlock()

	imgPath := s.ImagePath(meta)
	if err := writeAtomic(s.dir, imgPath, image); err != nil {
		return fmt.Errorf("snapshot store: write image: %w", err)
	}

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		s.removeLogged(imgPath)
		return fmt.Errorf("snapshot store: marshal meta: %w", err)
	}
	if err := writeAtomic(s.dir, s.metaPath(meta.ID), data); err != nil {
		s.removeLogged(imgPath)
		return fmt.Errorf("snapshot store: write meta: %w", err)
	}
	return nil
}

// Get reads screenshot metadata by id.
func (s *Store) Get(id string) (Meta, error) {
	if err := validateID(id); err != nil {
		return Meta{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.get(id)
}

func (s *Store) get(id string) (Meta, error) {
	data, err := os.ReadFile(s.metaPath(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Meta{}, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return Meta{}, fmt.Errorf("snapshot store: read meta: %w", err)
	}
	var meta Meta
	if err := json.Unmarshal(data, &meta); err != nil {
		return Meta{}, fmt.Errorf("snapshot store: unmarshal meta: %w", err)
	}
	return meta, nil
}

// List returns every readable screenshot, newest first.
func (s *Store) List() ([]Meta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches, err := filepath.Glob(filepath.Join(s.dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("snapshot store: glob: %w", err)
	}

	metas := make([]Meta, 0, len(matches))
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var meta Meta
		if err := json.Unmarshal(data, &meta); err != nil {
			slog.Debug("skipping unreadable screenshot metadata", "path", path, "error", err)
			continue
		}
		metas = append(metas, meta)
	}

	sort.Slice(metas, func(i, j int) bool {
		return metas[i].CreatedAt.After(metas[j].CreatedAt)
	})
	return metas, nil
}

// ReadImage returns the image bytes and format for id.
func (s *Store) ReadImage(id string) ([]byte, string, error) {
	meta, err := s.Get(id)
	if err != nil {
		return nil, "", err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.ImagePath(meta))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, "", fmt.Errorf("%w: image for %s", ErrNotFound, id)
		}
		return nil, "", fmt.Errorf("snapshot store: read image: %w", err)
	}
	return data, meta.Format, nil
}

// Delete removes the image and its metadata.
func (s *Store) Delete(id string) error {
	if err := validateID(id); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	meta, err := s.get(id)
	if err != nil {
		return err
	}
	s.removeLogged(s.ImagePath(meta))
	if err := os.Remove(s.metaPath(id)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("snapshot store: remove meta: %w", err)
	}
	return nil
}

func (s *Store) removeLogged(path string) {
	if err := os.Remove(path); err != nil {
		slog.Debug("snapshot image cleanup failed", "path", path, "error", err)
	}
}

func writeAtomic(dir, path string, data []byte) error {
	tmp, err := os.CreateTemp(dir, ".shot-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return nil
}
