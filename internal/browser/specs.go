package browser

import (
	"fmt"
	"strconv"
)

func chromeSpec() Spec {
	return Spec{
		Kind:            Chrome,
		Protocol:        WebDriver,
		DriverBinaries:  []string{"chromedriver"},
		BrowserBinaries: []string{"google-chrome", "google-chrome-stable", "chromium-browser", "chromium"},
		ReadyPath:       "/status",
		DriverArgs:      portEqualsArgs,
		Capabilities: func(opts LaunchOptions, browserPath string) map[string]any {
			return chromiumCapabilities("chrome", "goog:chromeOptions", opts, browserPath)
		},
	}
}

func edgeSpec() Spec {
	return Spec{
		Kind:            Edge,
		Protocol:        WebDriver,
		DriverBinaries:  []string{"msedgedriver"},
		BrowserBinaries: []string{"microsoft-edge", "microsoft-edge-stable"},
		ReadyPath:       "/status",
		DriverArgs:      portEqualsArgs,
		Capabilities: func(opts LaunchOptions, browserPath string) map[string]any {
			return chromiumCapabilities("MicrosoftEdge", "ms:edgeOptions", opts, browserPath)
		},
	}
}

func firefoxSpec() Spec {
	return Spec{
		Kind:            Firefox,
		Protocol:        WebDriver,
		DriverBinaries:  []string{"geckodriver"},
		BrowserBinaries: []string{"firefox", "firefox-esr"},
		ReadyPath:       "/status",
		DriverArgs: func(port int, _ LaunchOptions, _ string) []string {
			return []string{"--port", strconv.Itoa(port)}
		},
		Capabilities: func(opts LaunchOptions, browserPath string) map[string]any {
			args := []string{}
			if opts.Headless {
				args = append(args, "-headless")
			}
			if opts.Profile != "" {
				args = append(args, "-profile", opts.Profile)
			}
			ff := map[string]any{"args": args}
			if browserPath != "" {
				ff["binary"] = browserPath
			}
			return map[string]any{
				"browserName":        "firefox",
				"moz:firefoxOptions": ff,
			}
		},
	}
}

// chromiumSpec runs the browser itself with a DevTools endpoint; there is no
// separate driver binary, so the browser process is the recorded pid.
func chromiumSpec() Spec {
	return Spec{
		Kind:            Chromium,
		Protocol:        DevTools,
		BrowserBinaries: []string{"chromium-browser", "chromium", "google-chrome"},
		ReadyPath:       "/json/version",
		DriverArgs: func(port int, opts LaunchOptions, _ string) []string {
			args := []string{
				fmt.Sprintf("--remote-debugging-port=%d", port),
				"--remote-debugging-address=127.0.0.1",
				"--no-first-run",
				"--no-default-browser-check",
				"--disable-dev-shm-usage",
				"--disable-breakpad",
				"--disable-crash-reporter",
				"--window-size=1920,1080",
			}
			if opts.Profile != "" {
				args = append(args, fmt.Sprintf("--user-data-dir=%s", opts.Profile))
			}
			if opts.Headless {
				args = append(args, "--headless=new")
			}
			return append(args, "about:blank")
		},
	}
}

func portEqualsArgs(port int, _ LaunchOptions, _ string) []string {
	return []string{fmt.Sprintf("--port=%d", port)}
}

func chromiumCapabilities(browserName, optionsKey string, opts LaunchOptions, browserPath string) map[string]any {
	args := []string{"--no-first-run", "--disable-dev-shm-usage"}
	if opts.Headless {
		args = append(args, "--headless=new", "--window-size=1920,1080")
	}
	if opts.Profile != "" {
		args = append(args, fmt.Sprintf("--user-data-dir=%s", opts.Profile))
	}
	browserOpts := map[string]any{"args": args}
	if browserPath != "" {
		browserOpts["binary"] = browserPath
	}
	return map[string]any{
		"browserName": browserName,
		optionsKey:    browserOpts,
	}
}
