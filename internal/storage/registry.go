package storage

import (
	"errors"
	"log/slog"
	"path/filepath"
	"sync"
	"time"
)

// WriterRegistry keeps one JSONLWriter per site and path segment.
type WriterRegistry struct {
	baseDir   string
	maxSizeMB int
	now       func() time.Time

	// writers maps site -> segment -> writer
	writers map[string]map[string]*JSONLWriter
	mu      sync.Mutex
}

// NewWriterRegistry creates a registry rooted at baseDir.
func NewWriterRegistry(baseDir string, maxSizeMB int) *WriterRegistry {
	return &WriterRegistry{
		baseDir:   baseDir,
		maxSizeMB: maxSizeMB,
		now:       time.Now,
		writers:   make(map[string]map[string]*JSONLWriter),
	}
}

// GetWriter returns (or creates) the writer for site and segment.
func (r *WriterRegistry) GetWriter(site, segment string) *JSONLWriter {
	r.mu.Lock()
	defer r.mu.Unlock()

	if w, ok := r.writers[site][segment]; ok {
		return w
	}
	if r.writers[site] == nil {
		r.writers[site] = make(map[string]*JSONLWriter)
	}
	w := NewJSONLWriter(filepath.Join(r.baseDir, site), segment, r.maxSizeMB)
	w.now = r.now
	r.writers[site][segment] = w
	slog.Debug("created JSONL writer", "site", site, "segment", segment)
	return w
}

// Close closes all managed writers.
func (r *WriterRegistry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for site, segments := range r.writers {
		for segment, w := range segments {
			if err := w.Close(); err != nil {
				slog.Error("failed to close writer", "site", site, "segment", segment, "error", err)
				errs = append(errs, err)
			}
		}
	}
	r.writers = make(map[string]map[string]*JSONLWriter)
	return errors.Join(errs...)
}
