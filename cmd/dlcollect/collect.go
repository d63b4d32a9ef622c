package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nao1215/dlcollect/internal/config"
	"github.com/nao1215/dlcollect/internal/controller"
	"github.com/nao1215/dlcollect/internal/database"
	"github.com/nao1215/dlcollect/internal/export"
	"github.com/nao1215/dlcollect/internal/model"
	"github.com/nao1215/dlcollect/internal/report"
	"github.com/nao1215/dlcollect/internal/server"
	"github.com/nao1215/dlcollect/internal/settings"
)

// NewCollectCmd creates the collect command.
func NewCollectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collect [page-url...]",
		Short: "Collect download links from open tabs and export them",
		Long: `Collect scans every open tab for links whose visible text is "Download",
gathers them across tabs and writes their URLs to download_links_<date>.txt,
one URL per line.

Tabs come from one of these sources:
- A Chromium browser started with --remote-debugging-port (default)
- Page URLs given as arguments or with --list, fetched over HTTP
- Saved .html files in a directory (--from-dir)
- A running "dlcollect serve" relay (--server)

Browser-internal pages (chrome://, about:, ...) are skipped.

Examples:
  # Collect from a local Chromium
  dlcollect collect

  # Also accept text such as "Download now"
  dlcollect collect --variations

  # Fetch pages instead of reading a browser
  dlcollect collect https://example.com/releases https://example.org/files

  # Fetch a .onion page through a running Tor proxy
  dlcollect collect --tor http://exampleonionaddress.onion/

  # Write the link file to an exact path and print JSON
  dlcollect collect -o links.txt --json`,
		Args: cobra.ArbitraryArgs,
		RunE: runCollectCmd,
	}

	// Source flags
	cmd.Flags().String("devtools", config.DefaultDevToolsAddress,
		"Address of the Chromium remote debugging endpoint")
	cmd.Flags().StringP("list", "l", "",
		"File with one page URL per line")
	cmd.Flags().String("from-dir", "",
		"Directory of saved .html files to scan")
	cmd.Flags().String("server", "",
		"Base URL of a dlcollect relay server (e.g., http://127.0.0.1:8765)")

	// Matching flags
	cmd.Flags().Bool("variations", false,
		"Accept text containing the word \"download\" (overrides the stored setting)")
	cmd.Flags().Int("context-limit", config.DefaultContextLimit,
		"Characters of anchor markup kept with each link")

	// Timing flags
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Time to wait for the collection result")
	cmd.Flags().Bool("cancel-on-timeout", false,
		"Stop scanning tabs when the timeout expires")
	cmd.Flags().Duration("fetch-timeout", config.DefaultFetchTimeout,
		"Timeout for each page request")

	// Web source flags
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .dlcollect in current or home directory)")
	cmd.Flags().String("user-agent", config.DefaultUserAgent,
		"User-Agent header for fetched pages")
	cmd.Flags().Int64("max-body-size", config.DefaultMaxBodySize,
		"Maximum page body size in bytes")

	// Tor flags
	cmd.Flags().Bool("tor", false,
		"Fetch .onion pages through a Tor SOCKS5 proxy")
	cmd.Flags().String("tor-proxy", config.DefaultTorProxyAddress,
		"Address of the Tor SOCKS5 proxy")
	cmd.Flags().Bool("embedded-tor", false,
		"Start an embedded Tor daemon instead of using --tor-proxy")
	cmd.Flags().DurationP("tor-timeout", "T", config.DefaultTorStartupTimeout,
		"Timeout for embedded Tor startup")

	// Output flags
	cmd.Flags().StringP("output", "o", "",
		"Write the link file to this exact path")
	cmd.Flags().String("output-dir", "",
		"Directory for the dated link file (default: current directory)")
	cmd.Flags().String("file-mode", "",
		"Octal permission of the link file (e.g., 0600; default: 0644)")
	cmd.Flags().BoolP("json", "j", false,
		"Print the outcome as JSON (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Print the outcome as Markdown (mutually exclusive with --json)")
	cmd.Flags().Bool("no-history", false,
		"Do not record the run in the history database")

	return cmd
}

// runCollectCmd executes the collect command.
func runCollectCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildCollectConfig(cmd, args)
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

	return runCollect(ctx, cfg, logger, cmd.OutOrStdout(), cmd.ErrOrStderr())
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context, logger *slog.Logger) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		defer signal.Stop(sigCh)
		select {
		case <-sigCh:
			logger.Info("received shutdown signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

// buildCollectConfig creates a Config from cobra command flags.
func buildCollectConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	if err := applyGlobalFlags(cmd, cfg); err != nil {
		return nil, err
	}

	var err error

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

	cfg.ServerURL, err = cmd.Flags().GetString("server")
	if err != nil {
		return nil, err
	}

	// The stored setting applies unless the flag is given explicitly.
	if cmd.Flags().Changed("variations") {
		allow, err := cmd.Flags().GetBool("variations")
		if err != nil {
			return nil, err
		}
		cfg.Variations = &allow
	}

	cfg.ContextLimit, err = cmd.Flags().GetInt("context-limit")
	if err != nil {
		return nil, err
	}

	cfg.Timeout, err = cmd.Flags().GetDuration("timeout")
	if err != nil {
		return nil, err
	}

	cfg.CancelOnTimeout, err = cmd.Flags().GetBool("cancel-on-timeout")
	if err != nil {
		return nil, err
	}

	cfg.FetchTimeout, err = cmd.Flags().GetDuration("fetch-timeout")
	if err != nil {
		return nil, err
	}

	cfg.UserAgent, err = cmd.Flags().GetString("user-agent")
	if err != nil {
		return nil, err
	}

	cfg.MaxBodySize, err = cmd.Flags().GetInt64("max-body-size")
	if err != nil {
		return nil, err
	}

	cfg.UseTor, err = cmd.Flags().GetBool("tor")
	if err != nil {
		return nil, err
	}

	cfg.TorProxyAddress, err = cmd.Flags().GetString("tor-proxy")
	if err != nil {
		return nil, err
	}

	cfg.EmbeddedTor, err = cmd.Flags().GetBool("embedded-tor")
	if err != nil {
		return nil, err
	}

	cfg.TorStartupTimeout, err = cmd.Flags().GetDuration("tor-timeout")
	if err != nil {
		return nil, err
	}

	cfg.OutputPath, err = cmd.Flags().GetString("output")
	if err != nil {
		return nil, err
	}

	cfg.OutputDir, err = cmd.Flags().GetString("output-dir")
	if err != nil {
		return nil, err
	}

	fileMode, err := cmd.Flags().GetString("file-mode")
	if err != nil {
		return nil, err
	}
	if fileMode != "" {
		mode, err := strconv.ParseUint(fileMode, 8, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid --file-mode %q: %w", fileMode, err)
		}
		cfg.FileMode = os.FileMode(mode)
	}

	cfg.JSONReport, err = cmd.Flags().GetBool("json")
	if err != nil {
		return nil, err
	}

	cfg.MarkdownReport, err = cmd.Flags().GetBool("markdown")
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

	// If the user explicitly specified a config file path, error if not found.
	// If no path was specified, silently use no site overrides.
	if _, err := cfg.LoadSiteConfigs(); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	cfg.URLs = args

	return cfg, nil
}

// runCollect performs one collection and prints the outcome.
// Status notices go to status, the report goes to out.
func runCollect(ctx context.Context, cfg *config.Config, logger *slog.Logger, out, status io.Writer) error {
	logger.Info("starting collection",
		"source", cfg.Source(),
		"timeout", cfg.Timeout,
		"saveToDB", cfg.SaveToDB,
	)

	dispatcher, cleanup, err := newDispatcher(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	opts := []controller.Option{
		controller.WithPresenter(controller.NewWriterPresenter(status)),
		controller.WithSettingsStore(settings.NewFileStore(cfg.SettingsPath)),
		controller.WithTimeout(cfg.Timeout),
		controller.WithCancelOnTimeout(cfg.CancelOnTimeout),
		controller.WithLogger(logger),
	}
	if cfg.Variations != nil {
		opts = append(opts, controller.WithVariations(*cfg.Variations))
	}

	// A relay server records its own runs.
	if cfg.SaveToDB && cfg.Source() != config.SourceServer {
		db, err := database.Open(ctx, cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		logger.Info("database opened", "path", db.Path())
		opts = append(opts, controller.WithRecorder(db))
	}

	ctrl := controller.New(dispatcher, newExporter(cfg), opts...)

	result, err := ctrl.Collect(ctx)
	if result.Outcome != nil {
		if werr := outputReport(cfg, result.Outcome, out); werr != nil {
			logger.Error("report failed", "error", werr)
		}
	}
	if err != nil {
		return err
	}

	if result.ExportPath != "" {
		fmt.Fprintf(status, "Links written to %s\n", result.ExportPath)
	}
	return nil
}

// newDispatcher returns where collection requests are sent.
func newDispatcher(ctx context.Context, cfg *config.Config, logger *slog.Logger) (controller.Dispatcher, cleanupFunc, error) {
	if cfg.Source() == config.SourceServer {
		client := server.NewClient(cfg.ServerURL)
		if err := client.Health(ctx); err != nil {
			return nil, nil, fmt.Errorf("relay server is not available: %w", err)
		}
		logger.Info("dispatching to relay server", "url", cfg.ServerURL)
		return client, noCleanup, nil
	}
	return newOrchestrator(ctx, cfg, logger)
}

// newExporter creates the link file exporter described by cfg.
func newExporter(cfg *config.Config) *export.FileExporter {
	var opts []export.Option
	switch {
	case cfg.OutputPath != "":
		opts = append(opts, export.WithPath(cfg.OutputPath))
	case cfg.OutputDir != "":
		opts = append(opts, export.WithDir(cfg.OutputDir))
	}
	if cfg.FileMode != 0 {
		opts = append(opts, export.WithPermission(cfg.FileMode))
	}
	return export.NewFileExporter(opts...)
}

// outputReport prints outcome in the format selected by cfg.
func outputReport(cfg *config.Config, outcome *model.AggregateOutcome, out io.Writer) error {
	var w report.Writer
	switch {
	case cfg.JSONReport:
		w = report.NewFullJSONWriter(out, getVersion(), report.WithPrettyPrint())
	case cfg.MarkdownReport:
		w = report.NewMarkdownWriter(out)
	default:
		w = report.NewSimpleWriter(out, report.WithVerbose(cfg.Verbose))
	}

	_, err := w.Write(outcome)
	return err
}
