package collector

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nao1215/dlcollect/internal/host"
	"github.com/nao1215/dlcollect/internal/model"
	"github.com/nao1215/dlcollect/internal/scanner"
)

// Orchestrator collects download links from every eligible tab of a host.
type Orchestrator struct {
	host    host.Host
	scanner *scanner.Scanner
	logger  *slog.Logger
	now     func() time.Time

	// mu serializes runs.
	mu sync.Mutex
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithScanner replaces the default page scanner.
func WithScanner(s *scanner.Scanner) Option {
	return func(o *Orchestrator) {
		o.scanner = s
	}
}

// WithClock sets the clock used for run timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// New creates an Orchestrator reading tabs from h.
func New(h host.Host, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		host: h,
		now:  time.Now,
	}

	for _, opt := range opts {
		opt(o)
	}

	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.scanner == nil {
		o.scanner = scanner.New(scanner.WithLogger(o.logger))
	}

	return o
}

// Collect performs one run for req.
//
// Tabs are processed in the order the host reports them, one at a time.
// Internal pages are skipped, and a tab whose capture fails is logged and
// skipped. Tabs without matches are counted but left out of TabResults.
// The only error returned is a failure to enumerate tabs, or ctx ending
// between two tabs.
func (o *Orchestrator) Collect(ctx context.Context, req model.CollectRequest) (*model.AggregateOutcome, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	outcome := model.NewAggregateOutcome(req.RequestID, o.now())
	allow := req.Settings.AllowVariations

	tabs, err := o.host.Tabs(ctx)
	if err != nil {
		o.logger.Error("failed to enumerate tabs", "requestId", req.RequestID, "error", err)
		return nil, fmt.Errorf("failed to enumerate tabs: %w", err)
	}

	o.logger.Info("starting collection",
		"requestId", req.RequestID,
		"tabs", len(tabs),
		"allowVariations", allow,
	)

	for _, tab := range tabs {
		if err := ctx.Err(); err != nil {
			o.logger.Warn("collection cancelled",
				"requestId", req.RequestID,
				"scanned", outcome.TabCount,
				"reason", err,
			)
			return nil, fmt.Errorf("collection cancelled: %w", err)
		}

		if !IsEligible(tab.URL) {
			o.logger.Debug("skipping internal tab", "tabId", tab.ID, "url", tab.URL)
			outcome.RecordSkipped()
			continue
		}

		links, title, err := o.scanTab(ctx, tab, allow)
		if err != nil {
			o.logger.Warn("failed to scan tab",
				"tabId", tab.ID,
				"url", tab.URL,
				"error", err,
			)
			outcome.RecordFailure()
			continue
		}

		o.logger.Debug("scanned tab", "tabId", tab.ID, "url", tab.URL, "links", len(links))
		outcome.RecordScan(title, tab.URL, links)
	}

	outcome.Complete(o.now())

	o.logger.Info("collection finished",
		"requestId", req.RequestID,
		"links", outcome.TotalLinkCount,
		"tabs", outcome.TabCount,
		"skipped", outcome.TabsSkipped,
		"failed", outcome.TabsFailed,
		"elapsed", outcome.Duration(),
	)

	return outcome, nil
}

// scanTab captures one tab and returns its matches and display title.
func (o *Orchestrator) scanTab(ctx context.Context, tab model.Tab, allow bool) ([]model.LinkRecord, string, error) {
	doc, err := o.host.Document(ctx, tab)
	if err != nil {
		return nil, "", err
	}

	title := tab.Title
	if title == "" {
		title = doc.Title
	}

	return o.scanner.Scan(doc, allow), title, nil
}

// Handle performs one run and returns exactly one message for it:
// collectionComplete with the outcome, or collectionError with the reason.
func (o *Orchestrator) Handle(ctx context.Context, req model.CollectRequest) model.Message {
	outcome, err := o.Collect(ctx, req)
	if err != nil {
		return model.ErrorMessage(req.RequestID, err.Error())
	}
	return model.CompleteMessage(outcome)
}

// Submit starts a run in the background. The returned channel receives
// exactly one message and is then closed.
func (o *Orchestrator) Submit(ctx context.Context, req model.CollectRequest) <-chan model.Message {
	ch := make(chan model.Message, 1)
	go func() {
		defer close(ch)
		ch <- o.Handle(ctx, req)
	}()
	return ch
}
