package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/nao1215/dlcollect/internal/model"
	"github.com/nao1215/dlcollect/internal/settings"
)

// DefaultTimeout bounds how long Collect waits for the answer to a request.
const DefaultTimeout = 30 * time.Second

var (
	// ErrCollectionInProgress is returned while another request is pending.
	ErrCollectionInProgress = errors.New("a collection is already in progress")

	// ErrTimeout is returned when no answer arrived within the timeout.
	ErrTimeout = errors.New("collection timed out")

	// ErrCollectionFailed is returned when the run answered with a collectionError.
	ErrCollectionFailed = errors.New("collection failed")
)

// Dispatcher starts a run for a request. The returned channel yields the
// answer. Messages for other request IDs on it are ignored.
type Dispatcher interface {
	Submit(ctx context.Context, req model.CollectRequest) <-chan model.Message
}

// Exporter writes the collected URLs and returns where they went.
type Exporter interface {
	Export(ctx context.Context, urls []string) (string, error)
}

// Recorder keeps finished outcomes, for example in the run history.
type Recorder interface {
	SaveOutcome(ctx context.Context, outcome *model.AggregateOutcome, exportPath string) (int64, error)
}

// Result is what Collect hands back for an answered request.
type Result struct {
	// Outcome is the aggregated result of the run.
	Outcome *model.AggregateOutcome

	// ExportPath is the file the URLs were written to, empty when nothing
	// was exported.
	ExportPath string
}

// Controller drives collection requests.
type Controller struct {
	dispatcher      Dispatcher
	exporter        Exporter
	presenter       Presenter
	recorder        Recorder
	store           settings.Store
	variations      *bool
	timeout         time.Duration
	cancelOnTimeout bool
	newID           func() string
	logger          *slog.Logger

	// sem is the collect control; it is held while a request is pending.
	sem *semaphore.Weighted

	mu      sync.Mutex
	pending string
	handled map[string]struct{}
	last    *model.AggregateOutcome
}

// Option configures a Controller.
type Option func(*Controller)

// WithPresenter sets where status notices go.
func WithPresenter(p Presenter) Option {
	return func(c *Controller) {
		c.presenter = p
	}
}

// WithRecorder records every answered outcome.
func WithRecorder(r Recorder) Option {
	return func(c *Controller) {
		c.recorder = r
	}
}

// WithSettingsStore sets the store the toggles are read from before each request.
func WithSettingsStore(s settings.Store) Option {
	return func(c *Controller) {
		c.store = s
	}
}

// WithVariations overrides the stored allowDownloadVariations toggle.
func WithVariations(allow bool) Option {
	return func(c *Controller) {
		c.variations = &allow
	}
}

// WithTimeout sets how long Collect waits for an answer. Values <= 0 are ignored.
func WithTimeout(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithCancelOnTimeout cancels the in-flight run when the timeout fires.
// By default the run keeps going and its late answer is ignored.
func WithCancelOnTimeout(cancel bool) Option {
	return func(c *Controller) {
		c.cancelOnTimeout = cancel
	}
}

// WithIDGenerator replaces the request ID generator.
func WithIDGenerator(fn func() string) Option {
	return func(c *Controller) {
		c.newID = fn
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// New creates a Controller sending requests to d and exports to e.
func New(d Dispatcher, e Exporter, opts ...Option) *Controller {
	c := &Controller{
		dispatcher: d,
		exporter:   e,
		timeout:    DefaultTimeout,
		newID:      uuid.NewString,
		sem:        semaphore.NewWeighted(1),
		handled:    make(map[string]struct{}),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.presenter == nil {
		c.presenter = discardPresenter{}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}

	return c
}

// Collect sends one request and waits for its answer, the timeout, or the
// end of ctx.
//
// A complete answer with links is exported and shown as a success. A
// complete answer without links is shown as information and not exported.
// A collectionError answer is shown as an error and returned wrapped in
// ErrCollectionFailed.
func (c *Controller) Collect(ctx context.Context) (Result, error) {
	if !c.sem.TryAcquire(1) {
		return Result{}, ErrCollectionInProgress
	}
	defer c.sem.Release(1)

	req, err := c.newRequest()
	if err != nil {
		c.presenter.Show(ErrorStatus(err.Error()))
		return Result{}, err
	}

	runCtx := ctx
	if c.cancelOnTimeout {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithCancel(ctx)
		defer cancel()
	}

	c.logger.Debug("dispatching collection request",
		"requestId", req.RequestID,
		"allowVariations", req.Settings.AllowVariations,
	)

	answers := c.dispatcher.Submit(runCtx, req)

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	for {
		select {
		case msg, ok := <-answers:
			if !ok {
				// Closed without an answer; only the timeout or ctx ends the wait.
				answers = nil
				continue
			}
			if !c.accept(msg) {
				continue
			}
			return c.handle(ctx, msg)

		case <-timer.C:
			c.abandon(req.RequestID)
			c.logger.Warn("collection timed out", "requestId", req.RequestID, "timeout", c.timeout)
			c.presenter.Show(TimeoutStatus())
			return Result{}, ErrTimeout

		case <-ctx.Done():
			c.abandon(req.RequestID)
			return Result{}, ctx.Err()
		}
	}
}

// LastOutcome returns the outcome of the most recent answered request, or nil.
func (c *Controller) LastOutcome() *model.AggregateOutcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// newRequest reads the settings and registers a fresh pending request.
func (c *Controller) newRequest() (model.CollectRequest, error) {
	current := settings.Default()
	if c.store != nil {
		s, err := settings.Load(c.store)
		if err != nil {
			return model.CollectRequest{}, err
		}
		current = s
	}

	allow := current.AllowVariations
	if c.variations != nil {
		allow = *c.variations
	}

	req := model.NewCollectRequest(c.newID(), allow)

	c.mu.Lock()
	c.pending = req.RequestID
	c.mu.Unlock()

	return req, nil
}

// accept marks msg as handled if it answers the pending request.
func (c *Controller) accept(msg model.Message) bool {
	if !msg.IsComplete() && !msg.IsError() {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, done := c.handled[msg.RequestID]; done {
		c.logger.Debug("ignoring duplicate answer", "requestId", msg.RequestID)
		return false
	}
	if c.pending == "" || msg.RequestID != c.pending {
		c.logger.Debug("ignoring stale answer", "requestId", msg.RequestID, "pending", c.pending)
		return false
	}

	c.handled[msg.RequestID] = struct{}{}
	c.pending = ""
	return true
}

// abandon forgets the pending request so that its late answer is ignored.
func (c *Controller) abandon(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handled[id] = struct{}{}
	if c.pending == id {
		c.pending = ""
	}
}

// handle turns an accepted answer into an export and a notice.
func (c *Controller) handle(ctx context.Context, msg model.Message) (Result, error) {
	if msg.IsError() {
		c.logger.Error("collection failed", "requestId", msg.RequestID, "error", msg.Error)
		c.presenter.Show(ErrorStatus(msg.Error))
		return Result{}, fmt.Errorf("%w: %s", ErrCollectionFailed, msg.Error)
	}

	outcome := msg.Outcome()
	c.mu.Lock()
	c.last = outcome
	c.mu.Unlock()

	result := Result{Outcome: outcome}

	if !outcome.Success {
		c.record(ctx, outcome, "")
		c.presenter.Show(EmptyStatus())
		return result, nil
	}

	path, err := c.exporter.Export(ctx, outcome.URLs())
	if err != nil {
		c.logger.Error("failed to export links", "requestId", msg.RequestID, "error", err)
		c.presenter.Show(ErrorStatus(err.Error()))
		return result, fmt.Errorf("failed to export links: %w", err)
	}
	result.ExportPath = path

	c.record(ctx, outcome, path)
	c.logger.Info("exported links", "path", path, "links", outcome.TotalLinkCount)
	c.presenter.Show(SuccessStatus(outcome.TotalLinkCount, outcome.TabCount))

	return result, nil
}

// record saves outcome to the recorder. Failures are logged only.
func (c *Controller) record(ctx context.Context, outcome *model.AggregateOutcome, exportPath string) {
	if c.recorder == nil {
		return
	}
	if _, err := c.recorder.SaveOutcome(ctx, outcome, exportPath); err != nil {
		c.logger.Warn("failed to record outcome", "requestId", outcome.RequestID, "error", err)
	}
}
