package browser

import (
	"fmt"
	"sort"
	"strings"
)

// Kind names a browser family with its own driver pipeline.
type Kind string

const (
	Chrome   Kind = "chrome"
	Firefox  Kind = "firefox"
	Edge     Kind = "edge"
	Chromium Kind = "chromium"
)

// Protocol is the remote automation protocol a kind speaks.
type Protocol int

const (
	// WebDriver is the W3C WebDriver HTTP protocol served by a driver binary.
	WebDriver Protocol = iota
	// DevTools is the Chrome DevTools Protocol served by the browser itself.
	DevTools
)

func (p Protocol) String() string {
	switch p {
	case WebDriver:
		return "webdriver"
	case DevTools:
		return "devtools"
	default:
		return fmt.Sprintf("protocol(%d)", int(p))
	}
}

// LaunchOptions are the user-facing options applied when a session starts.
type LaunchOptions struct {
	Headless bool
	Profile  string
	// BrowserBinary overrides browser detection when set.
	BrowserBinary string
}

// Spec describes how one browser kind is spawned and spoken to.
type Spec struct {
	Kind     Kind
	Protocol Protocol

	// DriverBinaries are looked up on PATH in order.
	DriverBinaries []string
	// BrowserBinaries are candidates used when a browser path must be detected.
	BrowserBinaries []string
	// ReadyPath is polled on the driver endpoint until it answers 200.
	ReadyPath string

	DriverArgs   func(port int, opts LaunchOptions, browserPath string) []string
	Capabilities func(opts LaunchOptions, browserPath string) map[string]any
}

// Registry maps kinds to their specs.
type Registry struct {
	specs map[Kind]Spec
}

// NewRegistry builds a registry from specs. Later specs replace earlier ones.
func NewRegistry(specs ...Spec) *Registry {
	r := &Registry{specs: make(map[Kind]Spec, len(specs))}
	for _, s := range specs {
		r.Register(s)
	}
	return r
}

// DefaultRegistry returns the registry of every supported kind.
func DefaultRegistry() *Registry {
	return NewRegistry(chromeSpec(), firefoxSpec(), edgeSpec(), chromiumSpec())
}

// Register adds or replaces the spec for s.Kind.
func (r *Registry) Register(s Spec) {
	r.specs[s.Kind] = s
}

// Lookup returns the spec for kind.
func (r *Registry) Lookup(kind Kind) (Spec, bool) {
	s, ok := r.specs[kind]
	return s, ok
}

// Kinds returns the registered kinds sorted by name.
func (r *Registry) Kinds() []Kind {
	out := make([]Kind, 0, len(r.specs))
	for k := range r.specs {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Parse validates a user supplied kind name against the registry.
func (r *Registry) Parse(name string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(name)))
	if _, ok := r.specs[k]; !ok {
		names := make([]string, 0, len(r.specs))
		for _, known := range r.Kinds() {
			names = append(names, string(known))
		}
		return "", fmt.Errorf("unsupported browser %q (supported: %s)", name, strings.Join(names, ", "))
	}
	return k, nil
}
