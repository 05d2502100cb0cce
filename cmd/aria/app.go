package main

import (
	"io"
	"log/slog"
	"os"

	"golang.org/x/term"

	"github.com/dgnsrekt/aria/internal/browser"
	"github.com/dgnsrekt/aria/internal/cdp"
	"github.com/dgnsrekt/aria/internal/config"
	"github.com/dgnsrekt/aria/internal/controller"
	"github.com/dgnsrekt/aria/internal/llm"
	"github.com/dgnsrekt/aria/internal/logging"
	"github.com/dgnsrekt/aria/internal/navigator"
	"github.com/dgnsrekt/aria/internal/retry"
	"github.com/dgnsrekt/aria/internal/scripts"
	"github.com/dgnsrekt/aria/internal/session"
	"github.com/dgnsrekt/aria/internal/snapshot"
	"github.com/dgnsrekt/aria/internal/storage"
	"github.com/dgnsrekt/aria/internal/webdriver"
)

// contentFileMaxMB caps one captured-content file before rotation.
const contentFileMaxMB = 25

// app builds the command dependencies lazily so help and script management
// never touch a browser.
type app struct {
	console  io.Writer
	logLevel string
	traceID  string
	// interactive reports whether missing script values may be typed in.
	interactive func() bool

	cfg     *config.Config
	logFile io.Closer

	manager *session.Manager
	nav     *navigator.Navigator
	svc     *controller.Service
	content *storage.ContentStore
}

func newApp(console io.Writer, traceID string) *app {
	return &app{console: console, traceID: traceID, interactive: stdinIsTerminal}
}

func stdinIsTerminal() bool { return term.IsTerminal(int(os.Stdin.Fd())) }

// setup loads configuration and installs the logger.
func (a *app) setup() error {
	if a.cfg != nil {
		return nil
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	a.cfg = cfg

	opts := logging.Options{Level: logging.ParseLevel(cfg.LogLevel), Console: a.console, TraceID: a.traceID}
	if f, err := logging.NewFile(cfg.LogFile); err == nil {
		opts.File = f
		a.logFile = f
	} else {
		slog.Warn("log file unavailable", "path", cfg.LogFile, "error", err)
	}
	slog.SetDefault(slog.New(logging.New(opts)))
	logging.AddSecret(cfg.LLM.APIKey)

	slog.Debug("aria config loaded",
		"home", cfg.Home,
		"log_level", cfg.LogLevel,
		"log_file", cfg.LogFile,
		"retry_tries", cfg.RetryTries,
		"retry_delay", cfg.RetryDelay,
		"throttle_delay", cfg.ThrottleDelay,
		"llm_provider", cfg.LLM.Provider,
	)
	return nil
}

func (a *app) sessions() (*session.Manager, error) {
	if a.manager != nil {
		return a.manager, nil
	}
	if err := a.setup(); err != nil {
		return nil, err
	}
	store, err := session.NewFileStore(a.cfg.Home)
	if err != nil {
		return nil, err
	}

	driverPaths := make(map[browser.Kind]string, len(a.cfg.DriverPaths))
	for k, p := range a.cfg.DriverPaths {
		driverPaths[browser.Kind(k)] = p
	}
	launcher := browser.NewLauncher(browser.LauncherConfig{
		DriverPaths:   driverPaths,
		BrowserBinary: a.cfg.BrowserBinary,
		LogDir:        a.cfg.DriverLogDir(),
		SpawnWait:     a.cfg.SpawnWait,
	}, nil)

	a.manager = session.NewManager(session.ManagerConfig{
		Store: store,
		Connectors: browser.Connectors{
			browser.WebDriver: webdriver.NewConnector(),
			browser.DevTools:  cdp.NewConnector(),
		},
		Spawner:      launcher,
		ProbeTimeout: a.cfg.ProbeTimeout,
	})
	return a.manager, nil
}

func (a *app) navigator() (*navigator.Navigator, error) {
	if a.nav != nil {
		return a.nav, nil
	}
	m, err := a.sessions()
	if err != nil {
		return nil, err
	}
	a.nav = navigator.New(navigator.Options{
		Sessions: m,
		Policy: retry.Policy{
			Tries:   a.cfg.RetryTries,
			Delay:   a.cfg.RetryDelay,
			Backoff: a.cfg.RetryBackoff,
			Jitter:  a.cfg.RetryJitter,
		},
		Throttle:        retry.NewThrottle(a.cfg.ThrottleDelay),
		ContentMaxBytes: a.cfg.ContentMaxBytes,
	})
	return a.nav, nil
}

func (a *app) service() (*controller.Service, error) {
	if a.svc != nil {
		return a.svc, nil
	}
	nav, err := a.navigator()
	if err != nil {
		return nil, err
	}
	shots, err := snapshot.NewStore(a.cfg.ScreenshotsDir())
	if err != nil {
		return nil, err
	}
	a.svc = controller.NewService(nav, a.manager.Store(), scripts.NewStore(a.cfg.ScriptsDir()), shots)
	return a.svc, nil
}

func (a *app) scripts() (*scripts.Store, error) {
	if err := a.setup(); err != nil {
		return nil, err
	}
	return scripts.NewStore(a.cfg.ScriptsDir()), nil
}

func (a *app) contentStore() *storage.ContentStore {
	if a.content == nil {
		a.content = storage.NewContentStore(a.cfg.SitesDir(), contentFileMaxMB)
	}
	return a.content
}

func (a *app) generator() (llm.Generator, error) {
	if err := a.setup(); err != nil {
		return nil, err
	}
	gen, err := llm.New(llm.Config{
		Provider: a.cfg.LLM.Provider,
		Model:    a.cfg.LLM.Model,
		APIKey:   a.cfg.LLM.APIKey,
		BaseURL:  a.cfg.LLM.BaseURL,
	})
	if err != nil {
		return nil, navigator.NewError(navigator.CodeAIService, "language model unavailable", err)
	}
	return gen, nil
}

func (a *app) close() {
	if a.content != nil {
		if err := a.content.Close(); err != nil {
			slog.Debug("content store close failed", "error", err)
		}
	}
	if a.logFile != nil {
		if err := a.logFile.Close(); err != nil {
			slog.Debug("log file close failed", "error", err)
		}
	}
}
