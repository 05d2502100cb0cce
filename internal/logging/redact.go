package logging

import (
	"log/slog"
	"sort"
	"strings"
	"sync"
)

// Mask replaces redacted secrets.
const Mask = "[REDACTED]"

// minSecretLen keeps short values from masking ordinary words.
const minSecretLen = 4

// Redactor masks registered secrets in log output.
type Redactor struct {
	mu      sync.RWMutex
	secrets []string
}

var defaultRedactor = &Redactor{}

// AddSecret registers s with the default redactor.
func AddSecret(s string) { defaultRedactor.Add(s) }

// Add registers s. Values shorter than four characters are ignored.
func (r *Redactor) Add(s string) {
	if len(s) < minSecretLen {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, have := range r.secrets {
		if have == s {
			return
		}
	}
	r.secrets = append(r.secrets, s)
	sort.SliceStable(r.secrets, func(i, j int) bool { return len(r.secrets[i]) > len(r.secrets[j]) })
}

// Redact masks every registered secret in s, longest first.
func (r *Redactor) Redact(s string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, secret := range r.secrets {
		s = strings.ReplaceAll(s, secret, Mask)
	}
	return s
}

func (r *Redactor) attr(a slog.Attr) slog.Attr {
	v := a.Value.Resolve()
	switch v.Kind() {
	case slog.KindString:
		a.Value = slog.StringValue(r.Redact(v.String()))
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			a.Value = slog.StringValue(r.Redact(err.Error()))
		}
	}
	return a
}
