package host

import (
	"context"
	"errors"

	"github.com/nao1215/dlcollect/internal/model"
)

// Host errors. Callers treat all of them as per-tab failures except when
// returned from Tabs, where they abort the collection.
var (
	// ErrTabClosed is returned when a tab disappeared between enumeration
	// and capture.
	ErrTabClosed = errors.New("tab is no longer open")

	// ErrEvaluation is returned when the page threw while its document was captured.
	ErrEvaluation = errors.New("document capture failed in page")

	// ErrUnsupportedScheme is returned when a tab URL cannot be fetched by the host.
	ErrUnsupportedScheme = errors.New("unsupported URL scheme")

	// ErrUnsupportedContent is returned for responses that are not HTML.
	ErrUnsupportedContent = errors.New("unsupported content type")

	// ErrHTTPStatus is returned for HTTP responses with a 4xx or 5xx status.
	ErrHTTPStatus = errors.New("unexpected HTTP status")

	// ErrTorRequired is returned for .onion tabs when no Tor client is configured.
	ErrTorRequired = errors.New("onion service requires Tor (use --tor or --embedded-tor)")
)

// Host is a source of open tabs.
type Host interface {
	// Tabs enumerates the open tabs in display order.
	Tabs(ctx context.Context) ([]model.Tab, error)

	// Document captures the document currently shown in tab.
	Document(ctx context.Context, tab model.Tab) (model.Document, error)
}
