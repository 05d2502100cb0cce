package session

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"

	"github.com/dgnsrekt/aria/internal/browser"
)

type fakeProcs struct {
	mu         sync.Mutex
	alive      map[int]bool
	terminated []int
}

func newFakeProcs(alive ...int) *fakeProcs {
	p := &fakeProcs{alive: make(map[int]bool)}
	for _, pid := range alive {
		p.alive[pid] = true
	}
	return p
}

func (p *fakeProcs) IsRunning(pid int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.alive[pid]
}

func (p *fakeProcs) Terminate(pid int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.alive, pid)
	p.terminated = append(p.terminated, pid)
}

type fakeRemote struct {
	id       string
	endpoint string
	probeErr error
	quits    *int
}

func (r *fakeRemote) SessionID() string                              { return r.id }
func (r *fakeRemote) Endpoint() string                               { return r.endpoint }
func (r *fakeRemote) Navigate(context.Context, string) error         { return nil }
func (r *fakeRemote) Title(context.Context) (string, error)          { return "", nil }
func (r *fakeRemote) WindowHandles(context.Context) ([]string, error) { return []string{"w0"}, nil }
func (r *fakeRemote) CurrentWindow(context.Context) (string, error)  { return "w0", nil }
func (r *fakeRemote) SwitchWindow(context.Context, string) error     { return nil }
func (r *fakeRemote) NewWindow(context.Context) (string, error)      { return "w1", nil }
func (r *fakeRemote) ExecuteScript(context.Context, string, ...any) (json.RawMessage, error) {
	return json.RawMessage("null"), nil
}

func (r *fakeRemote) Screenshot(context.Context) ([]byte, error) { return nil, nil }

func (r *fakeRemote) CurrentURL(context.Context) (string, error) {
	if r.probeErr != nil {
		return "", r.probeErr
	}
	return "about:blank", nil
}

func (r *fakeRemote) Quit(context.Context) error {
	if r.quits != nil {
		*r.quits++
	}
	return nil
}

// fakeConnector treats endpoints listed in unreachable as dead.
type fakeConnector struct {
	created     int
	quits       int
	createErr   error
	unreachable map[string]bool
}

func (c *fakeConnector) CreateNew(_ context.Context, endpoint string, _ map[string]any) (browser.Remote, error) {
	if c.createErr != nil {
		return nil, c.createErr
	}
	c.created++
	return &fakeRemote{id: "session-new", endpoint: endpoint, quits: &c.quits}, nil
}

func (c *fakeConnector) AttachExisting(_ context.Context, endpoint, sessionID string) (browser.Remote, error) {
	r := &fakeRemote{id: sessionID, endpoint: endpoint, quits: &c.quits}
	if c.unreachable[endpoint] {
		r.probeErr = errors.New("connection refused")
	}
	return r, nil
}

type fakeSpawner struct {
	spawns int
	pid    int
	err    error
	procs  *fakeProcs
}

func (s *fakeSpawner) Spawn(_ context.Context, _ browser.Spec, port int, _ browser.LaunchOptions) (browser.Driver, error) {
	if s.err != nil {
		return browser.Driver{}, s.err
	}
	s.spawns++
	if s.procs != nil {
		s.procs.mu.Lock()
		s.procs.alive[s.pid] = true
		s.procs.mu.Unlock()
	}
	return browser.Driver{PID: s.pid, Endpoint: "http://127.0.0.1:" + strconv.Itoa(port)}, nil
}

func newTestManager(store Store, procs *fakeProcs, conn *fakeConnector, sp *fakeSpawner) *Manager {
	return NewManager(ManagerConfig{
		Store: store,
		Procs: procs,
		Connectors: browser.Connectors{
			browser.WebDriver: conn,
			browser.DevTools:  conn,
		},
		Spawner:  sp,
		FreePort: func() (int, error) { return 9515, nil },
	})
}
