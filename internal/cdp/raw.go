package cdp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/target"
	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// rawClient is a minimal browser-level CDP connection. It skips chromedp's
// session setup so short-lived CLI calls do not auto-attach to every target.
type rawClient struct {
	httpBase string
	http     *http.Client

	mu   sync.Mutex
	conn net.Conn
	seq  atomic.Int64

	pending   map[int64]chan json.RawMessage
	pendingMu sync.Mutex
}

func newRawClient(httpBase string) *rawClient {
	return &rawClient{
		httpBase: strings.TrimRight(httpBase, "/"),
		http:     &http.Client{Timeout: 10 * time.Second},
		pending:  make(map[int64]chan json.RawMessage),
	}
}

// versionInfo is the subset of /json/version used here.
type versionInfo struct {
	Browser              string `json:"Browser"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

// browserID returns the browser instance id embedded in the debugger URL.
func (v versionInfo) browserID() string {
	i := strings.LastIndex(v.WebSocketDebuggerURL, "/")
	if i < 0 {
		return ""
	}
	return v.WebSocketDebuggerURL[i+1:]
}

func (r *rawClient) version(ctx context.Context) (versionInfo, error) {
	var info versionInfo
	body, err := r.getJSON(ctx, "/json/version")
	if err != nil {
		return info, err
	}
	if err := json.Unmarshal(body, &info); err != nil {
		return info, fmt.Errorf("cdp: decode /json/version: %w", err)
	}
	if info.WebSocketDebuggerURL == "" {
		return info, fmt.Errorf("cdp: empty webSocketDebuggerUrl")
	}
	return info, nil
}

// listTargets fetches open targets via the HTTP /json/list endpoint.
func (r *rawClient) listTargets(ctx context.Context) ([]*target.Info, error) {
	body, err := r.getJSON(ctx, "/json/list")
	if err != nil {
		return nil, err
	}

	var entries []struct {
		ID    string `json:"id"`
		Type  string `json:"type"`
		Title string `json:"title"`
		URL   string `json:"url"`
	}
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("cdp: decode /json/list: %w", err)
	}

	out := make([]*target.Info, 0, len(entries))
	for _, e := range entries {
		out = append(out, &target.Info{
			TargetID: target.ID(e.ID),
			Type:     e.Type,
			Title:    e.Title,
			URL:      e.URL,
		})
	}
	return out, nil
}

func (r *rawClient) getJSON(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.httpBase+path, nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cdp: %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("cdp: %s: HTTP %d", path, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// connect dials the browser-level WebSocket endpoint.
func (r *rawClient) connect(ctx context.Context, wsURL string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conn != nil {
		return nil
	}

	slog.DebugContext(ctx, "cdp connecting", "ws_url", wsURL)
	conn, _, _, err := ws.Dial(ctx, wsURL)
	if err != nil {
		return fmt.Errorf("cdp: dial: %w", err)
	}

	r.conn = conn
	r.pending = make(map[int64]chan json.RawMessage)
	go r.readLoop(conn)
	return nil
}

func (r *rawClient) close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conn != nil {
		r.conn.Close()
		r.conn = nil
	}
}

// readLoop dispatches responses to waiters. Events are dropped.
func (r *rawClient) readLoop(conn net.Conn) {
	for {
		data, err := wsutil.ReadServerText(conn)
		if err != nil {
			slog.Debug("cdp read loop exit", "error", err)
			r.closeAllPending()
			return
		}

		var msg struct {
			ID int64 `json:"id"`
		}
		if json.Unmarshal(data, &msg) != nil || msg.ID == 0 {
			continue
		}
		r.pendingMu.Lock()
		ch, ok := r.pending[msg.ID]
		if ok {
			delete(r.pending, msg.ID)
		}
		r.pendingMu.Unlock()
		if ok {
			ch <- json.RawMessage(data)
		}
	}
}

func (r *rawClient) closeAllPending() {
	r.pendingMu.Lock()
	defer r.pendingMu.Unlock()
	for id, ch := range r.pending {
		close(ch)
		delete(r.pending, id)
	}
}

func (r *rawClient) deletePending(id int64) {
	r.pendingMu.Lock()
	delete(r.pending, id)
	r.pendingMu.Unlock()
}

// send issues method, optionally on a flattened session, and returns the
// inner "result" member.
func (r *rawClient) send(ctx context.Context, sessionID, method string, params any) (json.RawMessage, error) {
	r.mu.Lock()
	conn := r.conn
	r.mu.Unlock()
	if conn == nil {
		return nil, fmt.Errorf("cdp: not connected")
	}

	id := r.seq.Add(1)
	envelope := struct {
		ID        int64  `json:"id"`
		Method    string `json:"method"`
		SessionID string `json:"sessionId,omitempty"`
		Params    any    `json:"params,omitempty"`
	}{ID: id, Method: method, SessionID: sessionID, Params: params}

	data, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("cdp: marshal: %w", err)
	}

	ch := make(chan json.RawMessage, 1)
	r.pendingMu.Lock()
	r.pending[id] = ch
	r.pendingMu.Unlock()

	r.mu.Lock()
	err = wsutil.WriteClientText(conn, data)
	r.mu.Unlock()
	if err != nil {
		r.deletePending(id)
		return nil, fmt.Errorf("cdp: send: %w", err)
	}

	var resp json.RawMessage
	select {
	case msg, ok := <-ch:
		if !ok {
			return nil, fmt.Errorf("cdp: connection closed")
		}
		resp = msg
	case <-ctx.Done():
		r.deletePending(id)
		return nil, ctx.Err()
	}

	var out struct {
		Result json.RawMessage `json:"result"`
		Error  *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(resp, &out); err != nil {
		return nil, fmt.Errorf("cdp: unmarshal %s: %w", method, err)
	}
	if out.Error != nil {
		return nil, fmt.Errorf("cdp: %s: %s", method, out.Error.Message)
	}
	return out.Result, nil
}

// attach opens a flat session on targetID.
func (r *rawClient) attach(ctx context.Context, targetID target.ID) (string, error) {
	raw, err := r.send(ctx, "", "Target.attachToTarget", target.AttachToTarget(targetID).WithFlatten(true))
	if err != nil {
		return "", err
	}
	var resp struct {
		SessionID string `json:"sessionId"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("cdp: unmarshal attach: %w", err)
	}
	return resp.SessionID, nil
}

// detach leaves a session without closing its target.
func (r *rawClient) detach(ctx context.Context, sessionID string) error {
	params := struct {
		SessionID string `json:"sessionId"`
	}{SessionID: sessionID}
	_, err := r.send(ctx, "", "Target.detachFromTarget", params)
	return err
}

// evaluate runs expression on a session and returns the JSON-encoded value.
func (r *rawClient) evaluate(ctx context.Context, sessionID, expression string) (json.RawMessage, error) {
	params := struct {
		Expression    string `json:"expression"`
		ReturnByValue bool   `json:"returnByValue"`
		AwaitPromise  bool   `json:"awaitPromise"`
	}{Expression: expression, ReturnByValue: true, AwaitPromise: true}

	raw, err := r.send(ctx, sessionID, "Runtime.evaluate", params)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Result struct {
			Type  string          `json:"type"`
			Value json.RawMessage `json:"value"`
		} `json:"result"`
		ExceptionDetails *struct {
			Text      string `json:"text"`
			Exception *struct {
				Description string `json:"description"`
			} `json:"exception"`
		} `json:"exceptionDetails"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("cdp: unmarshal eval: %w", err)
	}
	if d := resp.ExceptionDetails; d != nil {
		msg := d.Text
		if d.Exception != nil && d.Exception.Description != "" {
			msg = d.Exception.Description
		}
		return nil, fmt.Errorf("cdp: eval exception: %s", msg)
	}
	if len(resp.Result.Value) == 0 {
		return json.RawMessage("null"), nil
	}
	return resp.Result.Value, nil
}
