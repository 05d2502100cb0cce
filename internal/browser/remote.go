package browser

import (
	"context"
	"encoding/json"
)

// Remote is a live automation session bound to one browser.
type Remote interface {
	SessionID() string
	Endpoint() string

	Navigate(ctx context.Context, url string) error
	CurrentURL(ctx context.Context) (string, error)
	Title(ctx context.Context) (string, error)

	WindowHandles(ctx context.Context) ([]string, error)
	CurrentWindow(ctx context.Context) (string, error)
	SwitchWindow(ctx context.Context, handle string) error
	NewWindow(ctx context.Context) (string, error)

	// ExecuteScript runs a function body in the page; the body reads its
	// arguments from `arguments` and returns with `return`.
	ExecuteScript(ctx context.Context, script string, args ...any) (json.RawMessage, error)
	// Screenshot captures the active tab's viewport as PNG.
	Screenshot(ctx context.Context) ([]byte, error)

	Quit(ctx context.Context) error
}

// Connector starts new sessions or binds to ones that already exist.
type Connector interface {
	CreateNew(ctx context.Context, endpoint string, capabilities map[string]any) (Remote, error)
	AttachExisting(ctx context.Context, endpoint, sessionID string) (Remote, error)
}

// Connectors selects a Connector by protocol.
type Connectors map[Protocol]Connector
