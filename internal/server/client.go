package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nao1215/dlcollect/internal/model"
)

// ErrUnexpectedResponse is returned when the server answers with something
// other than a message.
var ErrUnexpectedResponse = errors.New("unexpected response from relay server")

// Client talks to a relay server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a client for the server at baseURL, for example
// "http://127.0.0.1:8765".
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 5 * time.Minute},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Collect sends req and returns the answer. Error answers from the server
// (bad request, busy, failed run) are returned as collectionError messages,
// not as errors; err is only set when no message could be read.
func (c *Client) Collect(ctx context.Context, req model.CollectRequest) (model.Message, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return model.Message{}, fmt.Errorf("failed to encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/collect", bytes.NewReader(body))
	if err != nil {
		return model.Message{}, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return model.Message{}, fmt.Errorf("failed to reach relay server: %w", err)
	}
	defer resp.Body.Close()

	var msg model.Message
	if err := json.NewDecoder(resp.Body).Decode(&msg); err != nil {
		return model.Message{}, fmt.Errorf("%w: status %d", ErrUnexpectedResponse, resp.StatusCode)
	}
	if !msg.IsComplete() && !msg.IsError() {
		return model.Message{}, fmt.Errorf("%w: action %q", ErrUnexpectedResponse, msg.Action)
	}
	// The server cannot echo the ID of a request it failed to decode.
	if msg.IsError() && msg.RequestID == "" {
		msg.RequestID = req.RequestID
	}
	return msg, nil
}

// Submit implements the controller's Dispatcher. The channel receives
// exactly one message; transport failures become collectionError messages.
func (c *Client) Submit(ctx context.Context, req model.CollectRequest) <-chan model.Message {
	ch := make(chan model.Message, 1)
	go func() {
		defer close(ch)
		msg, err := c.Collect(ctx, req)
		if err != nil {
			msg = model.ErrorMessage(req.RequestID, err.Error())
		}
		ch <- msg
	}()
	return ch
}

// Latest returns the latest recorded outcome.
func (c *Client) Latest(ctx context.Context) (*model.AggregateOutcome, error) {
	data, err := c.get(ctx, "/api/results/latest")
	if err != nil {
		return nil, err
	}

	var outcome model.AggregateOutcome
	if err := json.Unmarshal(data, &outcome); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnexpectedResponse, err)
	}
	return &outcome, nil
}

// Health checks that the server is up.
func (c *Client) Health(ctx context.Context) error {
	_, err := c.get(ctx, "/healthz")
	return err
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach relay server: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d: %s", ErrUnexpectedResponse, resp.StatusCode, strings.TrimSpace(string(data)))
	}
	return data, nil
}
