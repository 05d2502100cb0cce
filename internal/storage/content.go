package storage

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Capture is one saved page.
type Capture struct {
	Timestamp time.Time `json:"timestamp"`
	URL       string    `json:"url"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Tags      []string  `json:"tags,omitempty"`
}

// ContentStore saves captured pages per site as JSON lines.
type ContentStore struct {
	writers *WriterRegistry
}

// NewContentStore creates a store rooted at sitesDir.
func NewContentStore(sitesDir string, maxSizeMB int) *ContentStore {
	if maxSizeMB <= 0 {
		maxSizeMB = 50
	}
	return &ContentStore{writers: NewWriterRegistry(sitesDir, maxSizeMB)}
}

// Save appends c to <sites>/<site>/<date>/<segment>.jsonl and returns the
// file written.
func (s *ContentStore) Save(site string, c Capture) (string, error) {
	if strings.TrimSpace(site) == "" {
		return "", errors.New("site name is required")
	}
	segment, err := TransformURLToPathSegment(c.URL)
	if err != nil {
		return "", fmt.Errorf("invalid capture url %q: %w", c.URL, err)
	}
	if c.Timestamp.IsZero() {
		c.Timestamp = s.writers.now().UTC()
	}

	w := s.writers.GetWriter(SanitizeName(site), segment)
	if err := w.Write(c); err != nil {
		return "", err
	}
	slog.Info("page content saved", "site", site, "url", c.URL, "file", w.Path(), "bytes", len(c.Content))
	return w.Path(), nil
}

// Close flushes and closes every open file.
func (s *ContentStore) Close() error {
	return s.writers.Close()
}
