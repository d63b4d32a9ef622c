package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/semaphore"

	"github.com/nao1215/dlcollect/internal/database"
	"github.com/nao1215/dlcollect/internal/export"
	"github.com/nao1215/dlcollect/internal/model"
)

const (
	// maxRequestBody bounds the size of a collect request.
	maxRequestBody = 64 << 10

	// shutdownTimeout bounds the graceful shutdown.
	shutdownTimeout = 5 * time.Second
)

// ErrBusy is returned while a collection is already running.
var ErrBusy = errors.New("a collection is already in progress")

// Handler answers one collection request with exactly one message.
type Handler interface {
	Handle(ctx context.Context, req model.CollectRequest) model.Message
}

// History stores and reads back outcomes.
type History interface {
	SaveOutcome(ctx context.Context, outcome *model.AggregateOutcome, exportPath string) (int64, error)
	LatestOutcome(ctx context.Context) (*database.Run, error)
}

// Server is the local relay.
type Server struct {
	handler Handler
	history History
	logger  *slog.Logger

	// busy admits one collection at a time.
	busy *semaphore.Weighted
}

// Option configures a Server.
type Option func(*Server)

// WithHistory records every answered collection and serves the latest one.
func WithHistory(h History) Option {
	return func(s *Server) {
		s.history = h
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// New creates a Server running collections with h.
func New(h Handler, opts ...Option) *Server {
	s := &Server{
		handler: h,
		busy:    semaphore.NewWeighted(1),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = slog.Default()
	}

	return s
}

// Routes returns the HTTP routes of the relay.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", s.healthz)
	r.Route("/api", func(r chi.Router) {
		r.Post("/collect", s.collect)
		r.Get("/results/latest", s.latest)
		r.Get("/results/latest.txt", s.latestText)
	})

	return r
}

// ListenAndServe serves on addr until ctx ends, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("relay server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("relay server failed: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		s.logger.Info("shutting down relay server")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down relay server: %w", err)
		}
		return nil
	}
}

// Run performs one collection in-process and records its outcome.
// It returns ErrBusy while another collection is running.
func (s *Server) Run(ctx context.Context, req model.CollectRequest) (model.Message, error) {
	if !s.busy.TryAcquire(1) {
		return model.Message{}, ErrBusy
	}
	defer s.busy.Release(1)

	msg := s.handler.Handle(ctx, req)
	if msg.IsComplete() && s.history != nil {
		if _, err := s.history.SaveOutcome(ctx, msg.Outcome(), ""); err != nil {
			s.logger.Warn("failed to record outcome", "requestId", req.RequestID, "error", err)
		}
	}
	return msg, nil
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Server) collect(w http.ResponseWriter, r *http.Request) {
	var req model.CollectRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, model.ErrorMessage("", fmt.Sprintf("invalid request: %v", err)))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, model.ErrorMessage(req.RequestID, err.Error()))
		return
	}

	msg, err := s.Run(r.Context(), req)
	if err != nil {
		writeJSON(w, http.StatusConflict, model.ErrorMessage(req.RequestID, err.Error()))
		return
	}
	if msg.IsError() {
		writeJSON(w, http.StatusInternalServerError, msg)
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

func (s *Server) latest(w http.ResponseWriter, r *http.Request) {
	run, ok := s.latestRun(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, run.Outcome)
}

func (s *Server) latestText(w http.ResponseWriter, r *http.Request) {
	run, ok := s.latestRun(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", export.FileName(run.Outcome.CompletedAt)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(export.Render(run.Outcome.URLs()))
}

// latestRun loads the latest run or writes the error response.
func (s *Server) latestRun(w http.ResponseWriter, r *http.Request) (*database.Run, bool) {
	if s.history == nil {
		http.Error(w, "history is disabled", http.StatusNotFound)
		return nil, false
	}

	run, err := s.history.LatestOutcome(r.Context())
	if errors.Is(err, database.ErrRunNotFound) {
		http.Error(w, "no collection has been recorded yet", http.StatusNotFound)
		return nil, false
	}
	if err != nil {
		s.logger.Error("failed to read history", "error", err)
		http.Error(w, "failed to read history", http.StatusInternalServerError)
		return nil, false
	}
	return run, true
}

// logRequests logs every request at debug level.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"elapsed", time.Since(start),
			"requestId", middleware.GetReqID(r.Context()),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
