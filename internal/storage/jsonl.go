package storage

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// JSONLWriter appends JSON lines to <baseDir>/<date>/<name>.jsonl, starting
// a new date directory when the UTC day changes.
type JSONLWriter struct {
	baseDir   string
	name      string
	maxSizeMB int
	now       func() time.Time

	mu          sync.Mutex
	currentDate string
	logger      *lumberjack.Logger
}

// NewJSONLWriter creates a writer for name under baseDir.
func NewJSONLWriter(baseDir, name string, maxSizeMB int) *JSONLWriter {
	return &JSONLWriter{baseDir: baseDir, name: name, maxSizeMB: maxSizeMB, now: time.Now}
}

// Write appends record as one JSON line.
func (w *JSONLWriter) Write(record any) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	date := w.now().UTC().Format("2006-01-02")
	if w.logger == nil || date != w.currentDate {
		if err := w.rotateForDate(date); err != nil {
			return err
		}
	}
	if _, err := w.logger.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	return nil
}

// Path returns the file currently written to, if any.
func (w *JSONLWriter) Path() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.logger == nil {
		return ""
	}
	return w.logger.Filename
}

// Close releases the current file.
func (w *JSONLWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.logger == nil {
		return nil
	}
	err := w.logger.Close()
	w.logger = nil
	return err
}

func (w *JSONLWriter) rotateForDate(date string) error {
	if w.logger != nil {
		w.logger.Close()
	}

	dir := filepath.Join(w.baseDir, date)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	filename := filepath.Join(dir, w.name+".jsonl")
	w.logger = &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    w.maxSizeMB,
		MaxBackups: 100,
		MaxAge:     30,
		LocalTime:  false,
	}
	w.currentDate = date
	slog.Debug("opened JSONL file", "file", filename)
	return nil
}
