package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nao1215/dlcollect/internal/config"
	"github.com/nao1215/dlcollect/internal/controller"
	"github.com/nao1215/dlcollect/internal/database"
	"github.com/nao1215/dlcollect/internal/model"
	"github.com/nao1215/dlcollect/internal/server"
	"github.com/nao1215/dlcollect/internal/settings"
)

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve [page-url...]",
		Short: "Run a local relay that collects on request",
		Long: `Serve starts a local HTTP relay that performs collections on request.

Endpoints:
  GET  /healthz                 liveness check
  POST /api/collect             run a collection, answers with one message
  GET  /api/results/latest      latest recorded outcome as JSON
  GET  /api/results/latest.txt  latest link file, one URL per line

One collection runs at a time; a request made meanwhile is refused with
409 Conflict. When the autoCollect setting is on, a collection runs as
soon as the relay starts.

Examples:
  # Serve the tabs of a local Chromium
  dlcollect serve

  # Collect through the relay from another terminal
  dlcollect collect --server http://127.0.0.1:8765`,
		Args: cobra.ArbitraryArgs,
		RunE: runServeCmd,
	}

	cmd.Flags().StringP("addr", "a", config.DefaultServeAddress,
		"Listen address of the relay")
	cmd.Flags().String("devtools", config.DefaultDevToolsAddress,
		"Address of the Chromium remote debugging endpoint")
	cmd.Flags().StringP("list", "l", "",
		"File with one page URL per line")
	cmd.Flags().String("from-dir", "",
		"Directory of saved .html files to scan")
	cmd.Flags().Duration("fetch-timeout", config.DefaultFetchTimeout,
		"Timeout for each page request")
	cmd.Flags().Int("context-limit", config.DefaultContextLimit,
		"Characters of anchor markup kept with each link")
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .dlcollect in current or home directory)")
	cmd.Flags().Bool("no-history", false,
		"Do not record runs (disables the results endpoints)")

	return cmd
}

// runServeCmd executes the serve command.
func runServeCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildServeConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger, closeLog := setupLogger(cmd, cfg)
	defer closeLog() //nolint:errcheck // Nothing to do about a failed close on exit

	ctx, cancel := signalContext(cmd.Context(), logger)
	defer cancel()

	return runServe(ctx, cfg, logger, cmd.OutOrStdout())
}

// buildServeConfig creates a Config from cobra command flags.
func buildServeConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	if err := applyGlobalFlags(cmd, cfg); err != nil {
		return nil, err
	}

	var err error

	cfg.ServeAddress, err = cmd.Flags().GetString("addr")
	if err != nil {
		return nil, err
	}

	cfg.DevToolsAddress, err = cmd.Flags().GetString("devtools")
	if err != nil {
		return nil, err
	}

	cfg.ListFile, err = cmd.Flags().GetString("list")
	if err != nil {
		return nil, err
	}

	cfg.FromDir, err = cmd.Flags().GetString("from-dir")
	if err != nil {
		return nil, err
	}

	cfg.FetchTimeout, err = cmd.Flags().GetDuration("fetch-timeout")
	if err != nil {
		return nil, err
	}

	cfg.ContextLimit, err = cmd.Flags().GetInt("context-limit")
	if err != nil {
		return nil, err
	}

	noHistory, err := cmd.Flags().GetBool("no-history")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noHistory

	cfg.ConfigFilePath, err = cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	if _, err := cfg.LoadSiteConfigs(); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	cfg.URLs = args

	return cfg, nil
}

// runServe serves until ctx ends.
func runServe(ctx context.Context, cfg *config.Config, logger *slog.Logger, out io.Writer) error {
	orch, cleanup, err := newOrchestrator(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	opts := []server.Option{server.WithLogger(logger)}
	if cfg.SaveToDB {
		db, err := database.Open(ctx, cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		opts = append(opts, server.WithHistory(db))
	}

	srv := server.New(orch, opts...)
	fmt.Fprintf(out, "Relay listening on http://%s\n", cfg.ServeAddress)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.ListenAndServe(gctx, cfg.ServeAddress)
	})
	g.Go(func() error {
		autoCollect(gctx, srv, settings.NewFileStore(cfg.SettingsPath), logger, out)
		return nil
	})

	return g.Wait()
}

// autoCollect runs one collection at startup when the autoCollect setting is on.
func autoCollect(ctx context.Context, srv *server.Server, store settings.Store, logger *slog.Logger, out io.Writer) {
	s, err := settings.Load(store)
	if err != nil {
		logger.Warn("failed to read settings, using defaults", "error", err)
		s = settings.Default()
	}
	if !s.AutoCollect {
		return
	}

	req := model.NewCollectRequest(uuid.NewString(), s.AllowVariations)
	msg, err := srv.Run(ctx, req)
	switch {
	case errors.Is(err, server.ErrBusy):
		logger.Info("skipping automatic collection", "reason", err)
		return
	case err != nil:
		logger.Error("automatic collection failed", "error", err)
		return
	}

	fmt.Fprintln(out, statusFor(msg).Message)
}

// statusFor returns the notice shown for an answer.
func statusFor(msg model.Message) controller.Status {
	if msg.IsError() {
		return controller.ErrorStatus(msg.Error)
	}
	if !msg.Success {
		return controller.EmptyStatus()
	}
	return controller.SuccessStatus(msg.LinkCount, msg.TabCount)
}
