package host

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/dlcollect/internal/config"
	"github.com/nao1215/dlcollect/internal/model"
	"github.com/nao1215/dlcollect/internal/scanner"
	"github.com/nao1215/dlcollect/internal/tor"
)

// Web treats a list of page URLs as the open tabs and fetches each one
// when its document is requested. It sees the page as served, without
// anything scripts add later.
type Web struct {
	urls []string

	client    *http.Client
	torClient *http.Client

	userAgent   string
	maxBodySize int64
	sites       *config.File
	logger      *slog.Logger
}

// WebOption configures a Web host.
type WebOption func(*Web)

// WithWebHTTPClient sets the client used for clearnet pages.
func WithWebHTTPClient(client *http.Client) WebOption {
	return func(w *Web) {
		w.client = client
	}
}

// WithTorHTTPClient sets the Tor-routed client used for .onion pages.
// Without it, .onion tabs fail with ErrTorRequired.
func WithTorHTTPClient(client *http.Client) WebOption {
	return func(w *Web) {
		w.torClient = client
	}
}

// WithWebUserAgent sets the default User-Agent header.
func WithWebUserAgent(ua string) WebOption {
	return func(w *Web) {
		w.userAgent = ua
	}
}

// WithWebMaxBodySize limits how much of a page body is read.
// Values below 1 keep the default.
func WithWebMaxBodySize(size int64) WebOption {
	return func(w *Web) {
		if size > 0 {
			w.maxBodySize = size
		}
	}
}

// WithSiteConfigs applies per-host cookies, headers and User-Agent overrides.
func WithSiteConfigs(sites *config.File) WebOption {
	return func(w *Web) {
		w.sites = sites
	}
}

// WithWebLogger sets the logger.
func WithWebLogger(logger *slog.Logger) WebOption {
	return func(w *Web) {
		w.logger = logger
	}
}

// NewWeb creates a host whose tabs are urls, in order.
func NewWeb(urls []string, opts ...WebOption) *Web {
	w := &Web{
		urls:        append([]string(nil), urls...),
		client:      &http.Client{Timeout: config.DefaultFetchTimeout},
		userAgent:   config.DefaultUserAgent,
		maxBodySize: config.DefaultMaxBodySize,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}
	return w
}

// Tabs returns one tab per URL. Titles are filled in once a page is fetched.
func (w *Web) Tabs(ctx context.Context) ([]model.Tab, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tabs := make([]model.Tab, 0, len(w.urls))
	for i, u := range w.urls {
		tabs = append(tabs, model.Tab{ID: strconv.Itoa(i), URL: u})
	}
	return tabs, nil
}

// Document fetches the page of tab.
func (w *Web) Document(ctx context.Context, tab model.Tab) (model.Document, error) {
	u, err := url.Parse(tab.URL)
	if err != nil {
		return model.Document{}, fmt.Errorf("invalid tab URL %q: %w", tab.URL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return model.Document{}, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}

	client := w.client
	if tor.IsOnionHost(u.Host) {
		if err := tor.ValidateOnionHost(u.Host); err != nil {
			return model.Document{}, err
		}
		if w.torClient == nil {
			return model.Document{}, fmt.Errorf("%w: %s", ErrTorRequired, u.Host)
		}
		client = w.torClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return model.Document{}, err
	}
	w.applyHeaders(req, u.Hostname())

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return model.Document{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return model.Document{}, fmt.Errorf("%w: %s", ErrHTTPStatus, resp.Status)
	}
	if !isHTML(resp.Header.Get("Content-Type")) {
		return model.Document{}, fmt.Errorf("%w: %q", ErrUnsupportedContent, resp.Header.Get("Content-Type"))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, w.maxBodySize))
	if err != nil {
		return model.Document{}, fmt.Errorf("failed to read body: %w", err)
	}

	// Relative links resolve against the final URL after redirects.
	finalURL := tab.URL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	w.logger.Debug("fetched page",
		"url", finalURL,
		"status", resp.StatusCode,
		"bytes", len(body),
		"elapsed", time.Since(start),
	)

	markup := string(body)
	return model.Document{
		URL:   finalURL,
		Title: scanner.Title(markup),
		HTML:  markup,
	}, nil
}

// applyHeaders sets browser-like headers plus any per-host overrides.
func (w *Web) applyHeaders(req *http.Request, hostname string) {
	req.Header.Set("User-Agent", w.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	if w.sites == nil {
		return
	}

	site := w.sites.GetSiteConfig(hostname)
	if site.UserAgent != "" {
		req.Header.Set("User-Agent", site.UserAgent)
	}
	if site.Cookie != "" {
		req.Header.Set("Cookie", site.Cookie)
	}
	for k, v := range site.Headers {
		req.Header.Set(k, v)
	}
}

// isHTML reports whether a Content-Type names an HTML document.
// A missing Content-Type is accepted.
func isHTML(contentType string) bool {
	if contentType == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}

// ReadURLList reads one URL per line. Blank lines and lines starting with
// '#' are ignored.
func ReadURLList(r io.Reader) ([]string, error) {
	urls := make([]string, 0)

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read URL list: %w", err)
	}

	return urls, nil
}
