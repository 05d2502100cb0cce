package browser

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/dgnsrekt/aria/internal/process"
)

// LauncherConfig holds driver spawn configuration.
type LauncherConfig struct {
	// DriverPaths overrides PATH lookup per kind.
	DriverPaths map[Kind]string
	// BrowserBinary overrides browser detection for every kind.
	BrowserBinary string
	// LogDir receives one driver log file per kind.
	LogDir string
	// SpawnWait is the fixed pause after the driver starts.
	SpawnWait time.Duration
	// ReadyTimeout bounds readiness polling after SpawnWait.
	ReadyTimeout time.Duration
}

// Driver is a spawned, ready driver process.
type Driver struct {
	PID         int
	Endpoint    string
	BrowserPath string
}

// Launcher spawns detached driver processes.
type Launcher struct {
	cfg   LauncherConfig
	procs process.Registry
}

// NewLauncher creates a launcher with the given config.
func NewLauncher(cfg LauncherConfig, procs process.Registry) *Launcher {
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = 15 * time.Second
	}
	if procs == nil {
		procs = process.NewOS()
	}
	return &Launcher{cfg: cfg, procs: procs}
}

// resolveDriver finds the executable for spec. Kinds whose browser serves the
// protocol directly resolve to the browser binary.
func (l *Launcher) resolveDriver(spec Spec, opts LaunchOptions) (string, error) {
	if p := l.cfg.DriverPaths[spec.Kind]; p != "" {
		if _, err := os.Stat(p); err != nil {
			return "", fmt.Errorf("driver for %s: %w", spec.Kind, err)
		}
		return p, nil
	}
	if len(spec.DriverBinaries) == 0 {
		return l.detectBrowser(spec, opts)
	}
	for _, name := range spec.DriverBinaries {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("no driver found for %s (tried %s)", spec.Kind, strings.Join(spec.DriverBinaries, ", "))
}

// detectBrowser finds a browser binary for spec.
func (l *Launcher) detectBrowser(spec Spec, opts LaunchOptions) (string, error) {
	if opts.BrowserBinary != "" {
		return opts.BrowserBinary, nil
	}
	if l.cfg.BrowserBinary != "" {
		return l.cfg.BrowserBinary, nil
	}
	for _, name := range spec.BrowserBinaries {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}
	if runtime.GOOS == "darwin" {
		for _, macPath := range macBrowserPaths[spec.Kind] {
			if _, err := os.Stat(macPath); err == nil {
				return macPath, nil
			}
		}
	}
	return "", fmt.Errorf("no supported browser found for %s (tried %s)", spec.Kind, strings.Join(spec.BrowserBinaries, ", "))
}

var macBrowserPaths = map[Kind][]string{
	Chrome:   {"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome"},
	Chromium: {"/Applications/Chromium.app/Contents/MacOS/Chromium", "/Applications/Google Chrome.app/Contents/MacOS/Google Chrome"},
	Edge:     {"/Applications/Microsoft Edge.app/Contents/MacOS/Microsoft Edge"},
	Firefox:  {"/Applications/Firefox.app/Contents/MacOS/firefox"},
}

// needsBrowserPath reports whether the browser should be located explicitly.
// Desktop sessions let the driver find its default install.
func needsBrowserPath(opts LaunchOptions) bool {
	if opts.Headless || opts.BrowserBinary != "" {
		return true
	}
	return runtime.GOOS == "linux" && os.Getenv("DISPLAY") == "" && os.Getenv("WAYLAND_DISPLAY") == ""
}

// Spawn starts the driver for spec on port, detached from the caller, and
// blocks until its endpoint answers.
func (l *Launcher) Spawn(ctx context.Context, spec Spec, port int, opts LaunchOptions) (Driver, error) {
	driverPath, err := l.resolveDriver(spec, opts)
	if err != nil {
		return Driver{}, err
	}

	var browserPath string
	if spec.Protocol == WebDriver && needsBrowserPath(opts) {
		if p, err := l.detectBrowser(spec, opts); err == nil {
			browserPath = p
		} else {
			slog.WarnContext(ctx, "browser binary not detected, leaving it to the driver", "kind", spec.Kind, "error", err)
		}
	}
	if spec.Protocol == DevTools {
		browserPath = driverPath
	}
	slog.InfoContext(ctx, "resolved driver", "kind", spec.Kind, "driver", driverPath, "browser", browserPath)

	cmd := exec.Command(driverPath, spec.DriverArgs(port, opts, browserPath)...)
	process.Detach(cmd)

	logFile, err := l.openDriverLog(spec.Kind)
	if err != nil {
		slog.WarnContext(ctx, "driver log unavailable", "kind", spec.Kind, "error", err)
	} else {
		cmd.Stdout = logFile
		cmd.Stderr = logFile
		defer logFile.Close()
	}

	if err := cmd.Start(); err != nil {
		return Driver{}, fmt.Errorf("start driver: %w", err)
	}
	pid := cmd.Process.Pid
	if err := cmd.Process.Release(); err != nil {
		slog.DebugContext(ctx, "driver process release failed", "pid", pid, "error", err)
	}
	slog.InfoContext(ctx, "driver process started", "kind", spec.Kind, "pid", pid, "port", port)

	endpoint := fmt.Sprintf("http://127.0.0.1:%d", port)
	if l.cfg.SpawnWait > 0 {
		select {
		case <-ctx.Done():
			l.procs.Terminate(pid)
			return Driver{}, ctx.Err()
		case <-time.After(l.cfg.SpawnWait):
		}
	}
	if err := waitReady(ctx, endpoint+spec.ReadyPath, l.cfg.ReadyTimeout); err != nil {
		l.procs.Terminate(pid)
		return Driver{}, fmt.Errorf("waiting for driver: %w", err)
	}
	slog.InfoContext(ctx, "driver endpoint ready", "kind", spec.Kind, "endpoint", endpoint)

	return Driver{PID: pid, Endpoint: endpoint, BrowserPath: browserPath}, nil
}

func (l *Launcher) openDriverLog(kind Kind) (*os.File, error) {
	if l.cfg.LogDir == "" {
		return nil, fmt.Errorf("no log dir configured")
	}
	if err := os.MkdirAll(l.cfg.LogDir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	return os.OpenFile(filepath.Join(l.cfg.LogDir, string(kind)+"-driver.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}

// waitReady polls url until it responds 200.
func waitReady(ctx context.Context, url string, timeout time.Duration) error {
	deadline := time.After(timeout)
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	client := &http.Client{Timeout: time.Second}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline:
			return fmt.Errorf("driver did not become ready within %s at %s", timeout, url)
		case <-ticker.C:
			resp, err := client.Get(url)
			if err != nil {
				continue
			}
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
	}
}
