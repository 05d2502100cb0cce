package storage

import (
	"net/url"
	"strings"
)

// TransformURLToPathSegment transforms a URL path into a filesystem-safe path segment.
func TransformURLToPathSegment(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}

	path := strings.TrimPrefix(parsed.Path, "/")
	if path == "" {
		return "root", nil
	}
	path = strings.TrimSuffix(path, "/")
	path = strings.ReplaceAll(path, "/", "_")
	return SanitizeName(path), nil
}

// SanitizeName replaces every character outside [A-Za-z0-9._-] with '_'
// and refuses names that would escape their directory.
func SanitizeName(name string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := strings.Trim(b.String(), ".")
	if out == "" {
		return "_"
	}
	return out
}
