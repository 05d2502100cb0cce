//go:build !windows

package session

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/dgnsrekt/aria/internal/browser"
	"github.com/dgnsrekt/aria/internal/process"
)

// sleepSpawner starts a real detached process standing in for a driver.
type sleepSpawner struct {
	t      *testing.T
	reaped chan struct{}
}

func (s *sleepSpawner) Spawn(_ context.Context, _ browser.Spec, port int, _ browser.LaunchOptions) (browser.Driver, error) {
	cmd := exec.Command("sleep", "60")
	process.Detach(cmd)
	if err := cmd.Start(); err != nil {
		s.t.Skipf("sleep unavailable: %v", err)
	}
	s.reaped = make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(s.reaped)
	}()
	s.t.Cleanup(func() { _ = cmd.Process.Kill() })
	return browser.Driver{PID: cmd.Process.Pid, Endpoint: "http://127.0.0.1:9"}, nil
}

func TestKilledDriverIsPurgedOnReattach(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, _ := NewFileStore(dir)
	sp := &sleepSpawner{t: t}
	m := NewManager(ManagerConfig{
		Store:      store,
		Procs:      process.NewOS(),
		Connectors: browser.Connectors{browser.WebDriver: &fakeConnector{}},
		Spawner:    sp,
	})

	if _, _, err := m.Open(ctx, OpenOptions{Kind: browser.Chrome, Headless: true}); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	d, ok := store.Load(browser.Chrome)
	if !ok || d.DriverPID <= 0 {
		t.Fatalf("descriptor = %+v, %v; want driver pid", d, ok)
	}

	process.NewOS().Terminate(d.DriverPID)
	select {
	case <-sp.reaped:
	case <-time.After(5 * time.Second):
		t.Fatalf("driver %d not reaped", d.DriverPID)
	}

	if !slices.Contains(m.ListActive(), browser.Chrome) {
		t.Fatalf("ListActive() = %v; listing must not prune", m.ListActive())
	}
	if _, ok := m.Reattach(ctx, browser.Chrome); ok {
		t.Fatalf("Reattach() succeeded for killed driver")
	}
	if _, err := os.Stat(filepath.Join(dir, "aria_session_chrome.json")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("descriptor still present: %v", err)
	}
	if slices.Contains(m.ListActive(), browser.Chrome) {
		t.Fatalf("ListActive() still reports chrome after purge")
	}
}
