// Package logging configures the process-wide slog handler: a rotated log
// file at the configured level, warnings and errors on the console, trace
// ids from the context, and redaction of registered secrets.
package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/natefinch/lumberjack.v2"
)

// TraceKey is the attribute carrying the invocation's trace id.
const TraceKey = "trace_id"

type traceKey struct{}

// NewTraceID returns a fresh trace id.
func NewTraceID() string { return uuid.NewString() }

// WithTraceID stores id on ctx for every record logged with it.
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceKey{}, id)
}

// TraceID returns the trace id stored on ctx, if any.
func TraceID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(traceKey{}).(string)
	return id
}

// ParseLevel maps a level name to a slog level; unknown names are info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Options configure New.
type Options struct {
	// File receives records at Level and above.
	File  io.Writer
	Level slog.Leveler
	// Console receives warnings and errors only.
	Console  io.Writer
	Redactor *Redactor
	// TraceID tags records whose context carries no trace id.
	TraceID string
}

// New builds the split file/console handler.
func New(opts Options) slog.Handler {
	red := opts.Redactor
	if red == nil {
		red = defaultRedactor
	}
	replace := func(_ []string, a slog.Attr) slog.Attr { return red.attr(a) }

	var hs []slog.Handler
	if opts.File != nil {
		hs = append(hs, slog.NewTextHandler(opts.File, &slog.HandlerOptions{Level: opts.Level, ReplaceAttr: replace}))
	}
	if opts.Console != nil {
		hs = append(hs, slog.NewTextHandler(opts.Console, &slog.HandlerOptions{Level: slog.LevelWarn, ReplaceAttr: replace}))
	}
	return &traceHandler{next: fanout(hs), fallback: opts.TraceID}
}

// NewFile opens the rotated log file at path.
func NewFile(path string) (*lumberjack.Logger, error) {
	if path == "" {
		return nil, errors.New("log file path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    25,
		MaxBackups: 10,
		MaxAge:     14,
		Compress:   true,
	}, nil
}

// traceHandler adds the context's trace id, or the process one, to every record.
type traceHandler struct {
	next     slog.Handler
	fallback string
}

func (h *traceHandler) Enabled(ctx context.Context, l slog.Level) bool {
	return h.next.Enabled(ctx, l)
}

func (h *traceHandler) Handle(ctx context.Context, r slog.Record) error {
	id := TraceID(ctx)
	if id == "" {
		id = h.fallback
	}
	if id != "" {
		r = r.Clone()
		r.AddAttrs(slog.String(TraceKey, id))
	}
	return h.next.Handle(ctx, r)
}

func (h *traceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &traceHandler{next: h.next.WithAttrs(attrs), fallback: h.fallback}
}

func (h *traceHandler) WithGroup(name string) slog.Handler {
	return &traceHandler{next: h.next.WithGroup(name), fallback: h.fallback}
}

type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, l slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, l) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if h.Enabled(ctx, r.Level) {
			if err := h.Handle(ctx, r.Clone()); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}
