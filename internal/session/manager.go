package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgnsrekt/aria/internal/browser"
	"github.com/dgnsrekt/aria/internal/netutil"
	"github.com/dgnsrekt/aria/internal/process"
)

// Spawner starts a driver process for a kind and waits until it is ready.
type Spawner interface {
	Spawn(ctx context.Context, spec browser.Spec, port int, opts browser.LaunchOptions) (browser.Driver, error)
}

// Handle is a live session bound to one browser kind.
type Handle struct {
	Kind       browser.Kind
	Remote     browser.Remote
	Descriptor Descriptor
}

// OpenResult says whether Open started a browser or reused one.
type OpenResult int

const (
	Started OpenResult = iota
	AlreadyOpen
)

func (r OpenResult) String() string {
	if r == AlreadyOpen {
		return "already_open"
	}
	return "started"
}

// OpenOptions control Open.
type OpenOptions struct {
	Kind     browser.Kind
	Headless bool
	Profile  string
	// Force closes a live session of the same kind before starting.
	Force bool
}

// ManagerConfig wires a Manager.
type ManagerConfig struct {
	Store      Store
	Procs      process.Registry
	Kinds      *browser.Registry
	Connectors browser.Connectors
	Spawner    Spawner
	// FreePort allocates the driver port; defaults to netutil.FreePort.
	FreePort func() (int, error)
	// ProbeTimeout bounds the liveness probe on reattach.
	ProbeTimeout time.Duration
}

// Manager runs the session lifecycle for every browser kind.
type Manager struct {
	store        Store
	procs        process.Registry
	kinds        *browser.Registry
	connectors   browser.Connectors
	spawner      Spawner
	freePort     func() (int, error)
	probeTimeout time.Duration
}

// NewManager creates a Manager from cfg.
func NewManager(cfg ManagerConfig) *Manager {
	m := &Manager{
		store:        cfg.Store,
		procs:        cfg.Procs,
		kinds:        cfg.Kinds,
		connectors:   cfg.Connectors,
		spawner:      cfg.Spawner,
		freePort:     cfg.FreePort,
		probeTimeout: cfg.ProbeTimeout,
	}
	if m.procs == nil {
		m.procs = process.NewOS()
	}
	if m.kinds == nil {
		m.kinds = browser.DefaultRegistry()
	}
	if m.freePort == nil {
		m.freePort = netutil.FreePort
	}
	if m.probeTimeout <= 0 {
		m.probeTimeout = 3 * time.Second
	}
	return m
}

// Store returns the backing store.
func (m *Manager) Store() Store { return m.store }

// Kinds returns the browser kind registry.
func (m *Manager) Kinds() *browser.Registry { return m.kinds }

func (m *Manager) lookup(kind browser.Kind) (browser.Spec, browser.Connector, error) {
	spec, ok := m.kinds.Lookup(kind)
	if !ok {
		return browser.Spec{}, nil, fmt.Errorf("unsupported browser %q", kind)
	}
	conn, ok := m.connectors[spec.Protocol]
	if !ok {
		return browser.Spec{}, nil, fmt.Errorf("no %s connector for %s", spec.Protocol, kind)
	}
	return spec, conn, nil
}

// Open returns a live session for opts.Kind, reusing a healthy one unless
// opts.Force is set. Nothing is persisted until the remote session exists.
func (m *Manager) Open(ctx context.Context, opts OpenOptions) (*Handle, OpenResult, error) {
	spec, conn, err := m.lookup(opts.Kind)
	if err != nil {
		return nil, Started, err
	}

	if _, ok := m.store.Load(opts.Kind); ok {
		if h, ok := m.Reattach(ctx, opts.Kind); ok {
			if !opts.Force {
				if err := m.store.Save(opts.Kind, &h.Descriptor); err != nil {
					slog.WarnContext(ctx, "session refresh failed", "browser", opts.Kind, "error", err)
				}
				slog.InfoContext(ctx, "reusing live session", "browser", opts.Kind, "session_id", h.Descriptor.SessionID)
				return h, AlreadyOpen, nil
			}
			slog.InfoContext(ctx, "force restart, closing live session", "browser", opts.Kind)
			m.Close(ctx, opts.Kind)
		}
	}

	port, err := m.freePort()
	if err != nil {
		return nil, Started, fmt.Errorf("failed to start %s: allocate port: %w", opts.Kind, err)
	}

	launch := browser.LaunchOptions{Headless: opts.Headless, Profile: opts.Profile}
	drv, err := m.spawner.Spawn(ctx, spec, port, launch)
	if err != nil {
		return nil, Started, fmt.Errorf("failed to start %s: %w", opts.Kind, err)
	}

	var caps map[string]any
	if spec.Capabilities != nil {
		caps = spec.Capabilities(launch, drv.BrowserPath)
	}
	remote, err := conn.CreateNew(ctx, drv.Endpoint, caps)
	if err != nil {
		m.procs.Terminate(drv.PID)
		return nil, Started, fmt.Errorf("failed to start %s: create session: %w", opts.Kind, err)
	}

	d := Descriptor{
		SessionID: remote.SessionID(),
		URL:       drv.Endpoint,
		Browser:   opts.Kind,
		DriverPID: drv.PID,
	}
	if err := m.store.Save(opts.Kind, &d); err != nil {
		slog.WarnContext(ctx, "session descriptor not persisted", "browser", opts.Kind, "error", err)
	}
	slog.InfoContext(ctx, "session started", "browser", opts.Kind, "session_id", d.SessionID, "endpoint", d.URL, "driver_pid", d.DriverPID)
	return &Handle{Kind: opts.Kind, Remote: remote, Descriptor: d}, Started, nil
}

// Reattach binds to kind's persisted session. Dead or unreachable sessions
// are purged and reported as absent.
func (m *Manager) Reattach(ctx context.Context, kind browser.Kind) (*Handle, bool) {
	d, ok := m.store.Load(kind)
	if !ok {
		return nil, false
	}
	if d.DriverPID > 0 && !m.procs.IsRunning(d.DriverPID) {
		slog.InfoContext(ctx, "driver process gone, purging session", "browser", kind, "driver_pid", d.DriverPID)
		m.store.Remove(kind)
		return nil, false
	}

	remote, err := m.probe(ctx, kind, d)
	if err != nil {
		slog.InfoContext(ctx, "session unreachable, purging", "browser", kind, "endpoint", d.URL, "error", err)
		m.store.Remove(kind)
		return nil, false
	}

	m.store.SetCurrent(kind)
	return &Handle{Kind: kind, Remote: remote, Descriptor: *d}, true
}

// probe attaches to d and asks for the current URL under the probe timeout.
func (m *Manager) probe(ctx context.Context, kind browser.Kind, d *Descriptor) (browser.Remote, error) {
	_, conn, err := m.lookup(kind)
	if err != nil {
		return nil, err
	}
	probeCtx, cancel := context.WithTimeout(ctx, m.probeTimeout)
	defer cancel()

	remote, err := conn.AttachExisting(probeCtx, d.URL, d.SessionID)
	if err != nil {
		return nil, err
	}
	if _, err := remote.CurrentURL(probeCtx); err != nil {
		return nil, err
	}
	return remote, nil
}

// Current reattaches to the current kind, falling back to any persisted kind.
func (m *Manager) Current(ctx context.Context) (*Handle, bool) {
	if kind, ok := m.store.CurrentKind(); ok {
		if h, ok := m.Reattach(ctx, kind); ok {
			return h, true
		}
	}
	for _, kind := range m.store.ListKinds() {
		if h, ok := m.Reattach(ctx, kind); ok {
			return h, true
		}
	}
	return nil, false
}

// Close shuts down kind's session, or every persisted session when kind is
// empty, and returns how many descriptors were closed.
func (m *Manager) Close(ctx context.Context, kind browser.Kind) int {
	if kind == "" {
		n := 0
		for _, k := range m.store.ListKinds() {
			n += m.closeOne(ctx, k)
		}
		return n
	}
	return m.closeOne(ctx, kind)
}

func (m *Manager) closeOne(ctx context.Context, kind browser.Kind) int {
	d, ok := m.store.Load(kind)
	if !ok {
		// A corrupt descriptor still occupies the kind's file.
		m.store.Remove(kind)
		slog.InfoContext(ctx, "nothing to close", "browser", kind)
		return 0
	}

	if _, conn, err := m.lookup(kind); err == nil {
		quitCtx, cancel := context.WithTimeout(ctx, m.probeTimeout)
		if remote, err := conn.AttachExisting(quitCtx, d.URL, d.SessionID); err == nil {
			if err := remote.Quit(quitCtx); err != nil {
				slog.DebugContext(ctx, "graceful quit failed", "browser", kind, "error", err)
			}
		} else {
			slog.DebugContext(ctx, "attach for quit failed", "browser", kind, "error", err)
		}
		cancel()
	}
	if d.DriverPID > 0 {
		m.procs.Terminate(d.DriverPID)
	}
	m.store.Remove(kind)
	slog.InfoContext(ctx, "session closed", "browser", kind, "driver_pid", d.DriverPID)
	return 1
}

// CleanupOrphaned closes every persisted session that fails a health probe
// and returns how many were cleaned.
func (m *Manager) CleanupOrphaned(ctx context.Context) int {
	n := 0
	for _, kind := range m.store.ListKinds() {
		d, ok := m.store.Load(kind)
		if ok && m.healthy(ctx, kind, d) {
			continue
		}
		slog.InfoContext(ctx, "cleaning orphaned session", "browser", kind)
		m.Close(ctx, kind)
		n++
	}
	return n
}

func (m *Manager) healthy(ctx context.Context, kind browser.Kind, d *Descriptor) bool {
	if d.DriverPID > 0 && !m.procs.IsRunning(d.DriverPID) {
		return false
	}
	_, err := m.probe(ctx, kind, d)
	return err == nil
}

// ListActive reports kinds with a persisted descriptor without probing them.
func (m *Manager) ListActive() []browser.Kind {
	return m.store.ListKinds()
}
