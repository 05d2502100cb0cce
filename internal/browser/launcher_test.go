package browser

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func TestWaitReadyPollsUntilOK(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	if err := waitReady(context.Background(), srv.URL+"/status", 5*time.Second); err != nil {
		t.Fatalf("waitReady() error = %v", err)
	}
	if calls.Load() < 3 {
		t.Fatalf("calls = %d; want >= 3", calls.Load())
	}
}

func TestWaitReadyTimesOut(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	if err := waitReady(context.Background(), srv.URL, 600*time.Millisecond); err == nil {
		t.Fatalf("waitReady() = nil; want timeout")
	}
}

func TestResolveDriverOverrideMissing(t *testing.T) {
	l := NewLauncher(LauncherConfig{
		DriverPaths: map[Kind]string{Chrome: filepath.Join(t.TempDir(), "nope")},
	}, nil)
	spec, _ := DefaultRegistry().Lookup(Chrome)
	if _, err := l.resolveDriver(spec, LaunchOptions{}); err == nil {
		t.Fatalf("resolveDriver() = nil; want missing override error")
	}
}

func TestResolveDriverUsesBrowserForDevTools(t *testing.T) {
	l := NewLauncher(LauncherConfig{BrowserBinary: "/opt/chromium/chrome"}, nil)
	spec, _ := DefaultRegistry().Lookup(Chromium)
	got, err := l.resolveDriver(spec, LaunchOptions{})
	if err != nil {
		t.Fatalf("resolveDriver() error = %v", err)
	}
	if got != "/opt/chromium/chrome" {
		t.Fatalf("resolveDriver() = %q", got)
	}
}
