package host

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/nao1215/dlcollect/internal/model"
)

const (
	// defaultCaptureTimeout bounds one Runtime.evaluate round trip when the
	// caller's context has no deadline.
	defaultCaptureTimeout = 15 * time.Second

	// targetTypePage is the DevTools target type of an ordinary tab.
	targetTypePage = "page"

	// captureExpression returns the live DOM of the tab. Reading outerHTML
	// after scripts ran is what lets dynamically added links be found.
	captureExpression = `({` +
		`html: document.documentElement ? document.documentElement.outerHTML : '',` +
		`base: document.baseURI,` +
		`url: location.href,` +
		`title: document.title` +
		`})`

	// captureRequestID is the CDP message id of the capture call.
	captureRequestID = 1
)

// devtoolsTarget is one entry of the /json/list endpoint.
type devtoolsTarget struct {
	ID                   string `json:"id"`
	Type                 string `json:"type"`
	Title                string `json:"title"`
	URL                  string `json:"url"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

// cdpRequest is a Chrome DevTools Protocol command.
type cdpRequest struct {
	ID     int    `json:"id"`
	Method string `json:"method"`
	Params any    `json:"params,omitempty"`
}

// cdpResponse is a command reply or an event. Events carry Method and no ID.
type cdpResponse struct {
	ID     int             `json:"id"`
	Method string          `json:"method,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *cdpError       `json:"error,omitempty"`
}

// cdpError is the error object of a failed command.
type cdpError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// evaluateParams are the Runtime.evaluate parameters used for capture.
type evaluateParams struct {
	Expression    string `json:"expression"`
	ReturnByValue bool   `json:"returnByValue"`
}

// evaluateResult is the Runtime.evaluate reply.
type evaluateResult struct {
	Result struct {
		Type  string          `json:"type"`
		Value json.RawMessage `json:"value"`
	} `json:"result"`
	ExceptionDetails *struct {
		Text      string `json:"text"`
		Exception *struct {
			Description string `json:"description"`
		} `json:"exception,omitempty"`
	} `json:"exceptionDetails,omitempty"`
}

// pageSnapshot is the value produced by captureExpression.
type pageSnapshot struct {
	HTML  string `json:"html"`
	Base  string `json:"base"`
	URL   string `json:"url"`
	Title string `json:"title"`
}

// DevTools reads tabs from a Chromium-based browser started with
// --remote-debugging-port. It attaches to a tab only for the duration of a
// capture and never navigates, activates or closes it.
type DevTools struct {
	// addr is the "host:port" of the remote debugging endpoint.
	addr string

	httpClient *http.Client
	dialer     *websocket.Dialer
	logger     *slog.Logger

	// captureTimeout is used when the caller's context has no deadline.
	captureTimeout time.Duration

	// mu guards targets, the websocket URLs seen by the last enumeration.
	mu      sync.Mutex
	targets map[string]string
}

// DevToolsOption configures a DevTools host.
type DevToolsOption func(*DevTools)

// WithDevToolsHTTPClient sets the client used for target enumeration.
func WithDevToolsHTTPClient(client *http.Client) DevToolsOption {
	return func(d *DevTools) {
		d.httpClient = client
	}
}

// WithDevToolsLogger sets the logger.
func WithDevToolsLogger(logger *slog.Logger) DevToolsOption {
	return func(d *DevTools) {
		d.logger = logger
	}
}

// WithCaptureTimeout bounds a capture when the context has no deadline.
func WithCaptureTimeout(timeout time.Duration) DevToolsOption {
	return func(d *DevTools) {
		if timeout > 0 {
			d.captureTimeout = timeout
		}
	}
}

// NewDevTools creates a host for the remote debugging endpoint at addr.
func NewDevTools(addr string, opts ...DevToolsOption) *DevTools {
	d := &DevTools{
		addr:           addr,
		httpClient:     &http.Client{Timeout: 10 * time.Second},
		dialer:         websocket.DefaultDialer,
		captureTimeout: defaultCaptureTimeout,
		targets:        make(map[string]string),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	return d
}

// Tabs lists the page targets of the browser in the browser's order.
func (d *DevTools) Tabs(ctx context.Context) ([]model.Tab, error) {
	endpoint := (&url.URL{Scheme: "http", Host: d.addr, Path: "/json/list"}).String()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach browser at %s: %w", d.addr, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s from %s", ErrHTTPStatus, resp.Status, endpoint)
	}

	var targets []devtoolsTarget
	if err := json.NewDecoder(resp.Body).Decode(&targets); err != nil {
		return nil, fmt.Errorf("failed to decode target list: %w", err)
	}

	tabs := make([]model.Tab, 0, len(targets))
	wsURLs := make(map[string]string, len(targets))
	for _, t := range targets {
		if t.Type != targetTypePage {
			continue
		}
		tabs = append(tabs, model.Tab{ID: t.ID, Title: t.Title, URL: t.URL})
		if t.WebSocketDebuggerURL != "" {
			wsURLs[t.ID] = t.WebSocketDebuggerURL
		}
	}

	d.mu.Lock()
	d.targets = wsURLs
	d.mu.Unlock()

	d.logger.Debug("enumerated browser tabs", "addr", d.addr, "targets", len(targets), "tabs", len(tabs))

	return tabs, nil
}

// Document captures the live DOM of tab.
func (d *DevTools) Document(ctx context.Context, tab model.Tab) (model.Document, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.captureTimeout)
		defer cancel()
	}

	conn, resp, err := d.dialer.DialContext(ctx, d.debuggerURL(tab.ID), nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil && resp.StatusCode >= http.StatusBadRequest {
			return model.Document{}, fmt.Errorf("%w: %s", ErrTabClosed, tab.ID)
		}
		return model.Document{}, fmt.Errorf("failed to attach to tab %s: %w", tab.ID, err)
	}
	defer conn.Close()

	// Unblock reads and writes as soon as the run is cancelled.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
		_ = conn.SetWriteDeadline(deadline)
	}

	result, err := d.call(conn, cdpRequest{
		ID:     captureRequestID,
		Method: "Runtime.evaluate",
		Params: evaluateParams{Expression: captureExpression, ReturnByValue: true},
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return model.Document{}, ctxErr
		}
		return model.Document{}, err
	}

	var eval evaluateResult
	if err := json.Unmarshal(result, &eval); err != nil {
		return model.Document{}, fmt.Errorf("failed to decode capture result: %w", err)
	}
	if eval.ExceptionDetails != nil {
		reason := eval.ExceptionDetails.Text
		if eval.ExceptionDetails.Exception != nil && eval.ExceptionDetails.Exception.Description != "" {
			reason = eval.ExceptionDetails.Exception.Description
		}
		return model.Document{}, fmt.Errorf("%w: %s", ErrEvaluation, reason)
	}

	var snap pageSnapshot
	if err := json.Unmarshal(eval.Result.Value, &snap); err != nil {
		return model.Document{}, fmt.Errorf("failed to decode page snapshot: %w", err)
	}

	docURL := snap.URL
	if docURL == "" {
		docURL = tab.URL
	}

	return model.Document{
		URL:     docURL,
		BaseURL: snap.Base,
		Title:   snap.Title,
		HTML:    snap.HTML,
	}, nil
}

// call sends req and waits for the reply with the same id, skipping events.
func (d *DevTools) call(conn *websocket.Conn, req cdpRequest) (json.RawMessage, error) {
	if err := conn.WriteJSON(req); err != nil {
		return nil, fmt.Errorf("failed to send %s: %w", req.Method, err)
	}

	for {
		var resp cdpResponse
		if err := conn.ReadJSON(&resp); err != nil {
			if errors.Is(err, io.ErrUnexpectedEOF) || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil, fmt.Errorf("%w: connection closed during %s", ErrTabClosed, req.Method)
			}
			return nil, fmt.Errorf("failed to read %s reply: %w", req.Method, err)
		}
		if resp.ID != req.ID {
			continue
		}
		if resp.Error != nil {
			return nil, fmt.Errorf("%w: %s (code %d)", ErrEvaluation, resp.Error.Message, resp.Error.Code)
		}
		return resp.Result, nil
	}
}

// debuggerURL returns the websocket URL of a target, falling back to the
// conventional path when the target was not seen by Tabs.
func (d *DevTools) debuggerURL(id string) string {
	d.mu.Lock()
	wsURL, ok := d.targets[id]
	d.mu.Unlock()
	if ok {
		return wsURL
	}
	return (&url.URL{Scheme: "ws", Host: d.addr, Path: "/devtools/page/" + id}).String()
}
