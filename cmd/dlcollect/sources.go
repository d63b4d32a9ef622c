package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/nao1215/dlcollect/internal/collector"
	"github.com/nao1215/dlcollect/internal/config"
	"github.com/nao1215/dlcollect/internal/host"
	"github.com/nao1215/dlcollect/internal/scanner"
	"github.com/nao1215/dlcollect/internal/tor"
)

// errNoPages is returned when the web source has no page to fetch.
var errNoPages = errors.New("no page URLs given (pass URLs as arguments or use --list)")

// cleanupFunc releases what a source started, such as an embedded Tor daemon.
type cleanupFunc func()

func noCleanup() {}

// newOrchestrator builds the in-process collector for the source selected by cfg.
// It must not be called for config.SourceServer.
func newOrchestrator(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*collector.Orchestrator, cleanupFunc, error) {
	h, cleanup, err := newHost(ctx, cfg, logger)
	if err != nil {
		return nil, noCleanup, err
	}

	sc := scanner.New(
		scanner.WithLogger(logger),
		scanner.WithContextLimit(cfg.ContextLimit),
	)

	return collector.New(h,
		collector.WithLogger(logger),
		collector.WithScanner(sc),
	), cleanup, nil
}

// newHost creates the tab source selected by cfg.
func newHost(ctx context.Context, cfg *config.Config, logger *slog.Logger) (host.Host, cleanupFunc, error) {
	switch cfg.Source() {
	case config.SourceStatic:
		h, err := host.NewStaticFromDir(cfg.FromDir)
		if err != nil {
			return nil, noCleanup, err
		}
		logger.Info("reading saved pages", "dir", cfg.FromDir)
		return h, noCleanup, nil

	case config.SourceWeb:
		return newWebHost(ctx, cfg, logger)

	case config.SourceDevTools:
		logger.Info("reading browser tabs", "devtools", cfg.DevToolsAddress)
		return host.NewDevTools(cfg.DevToolsAddress,
			host.WithDevToolsLogger(logger),
			host.WithCaptureTimeout(cfg.FetchTimeout),
		), noCleanup, nil

	default:
		return nil, noCleanup, fmt.Errorf("source %q cannot be collected in-process", cfg.Source())
	}
}

// newWebHost creates a host fetching cfg.URLs and the URLs of cfg.ListFile,
// with a Tor client for .onion pages when enabled.
func newWebHost(ctx context.Context, cfg *config.Config, logger *slog.Logger) (host.Host, cleanupFunc, error) {
	urls := append([]string(nil), cfg.URLs...)
	if cfg.ListFile != "" {
		listed, err := readListFile(cfg.ListFile)
		if err != nil {
			return nil, noCleanup, err
		}
		urls = append(urls, listed...)
	}
	if len(urls) == 0 {
		return nil, noCleanup, errNoPages
	}

	opts := []host.WebOption{
		host.WithWebHTTPClient(&http.Client{Timeout: cfg.FetchTimeout}),
		host.WithWebUserAgent(cfg.UserAgent),
		host.WithWebMaxBodySize(cfg.MaxBodySize),
		host.WithWebLogger(logger),
	}
	if cfg.SiteConfigs != nil {
		opts = append(opts, host.WithSiteConfigs(cfg.SiteConfigs))
	}

	cleanup := noCleanup
	if cfg.TorEnabled() {
		client, stop, err := newTorClient(ctx, cfg, logger)
		if err != nil {
			return nil, noCleanup, err
		}
		cleanup = stop
		opts = append(opts, host.WithTorHTTPClient(client.NewHTTPClient()))
	}

	logger.Info("fetching pages", "count", len(urls), "tor", cfg.TorEnabled())
	return host.NewWeb(urls, opts...), cleanup, nil
}

// readListFile reads one page URL per line.
func readListFile(path string) ([]string, error) {
	f, err := os.Open(path) //nolint:gosec // User-provided list path is intentional
	if err != nil {
		return nil, fmt.Errorf("failed to open URL list: %w", err)
	}
	defer f.Close()

	return host.ReadURLList(f)
}

// newTorClient connects to an external Tor proxy or starts an embedded daemon.
func newTorClient(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*tor.Client, cleanupFunc, error) {
	if !cfg.EmbeddedTor {
		client, err := tor.NewClient(cfg.TorProxyAddress, cfg.FetchTimeout)
		if err != nil {
			return nil, noCleanup, fmt.Errorf("failed to create Tor client: %w", err)
		}

		status := client.CheckConnection(ctx)
		if status != tor.ProxyStatusOK {
			return nil, noCleanup, fmt.Errorf("tor proxy check failed: %s (make sure Tor is running at %s): %w",
				status, cfg.TorProxyAddress, status.Err())
		}

		logger.Info("Tor proxy connection verified", "address", cfg.TorProxyAddress)
		return client, noCleanup, nil
	}

	embedded := tor.NewEmbeddedTor(tor.WithStartupTimeout(cfg.TorStartupTimeout))
	logger.Info("starting embedded Tor daemon", "timeout", cfg.TorStartupTimeout)
	if err := embedded.Start(ctx); err != nil {
		return nil, noCleanup, fmt.Errorf("failed to start embedded Tor: %w", err)
	}

	stop := func() {
		logger.Info("stopping embedded Tor daemon")
		if err := embedded.Stop(); err != nil {
			logger.Error("failed to stop embedded Tor", "error", err)
		}
	}

	client, err := embedded.NewClient(cfg.FetchTimeout)
	if err != nil {
		stop()
		return nil, noCleanup, fmt.Errorf("failed to create Tor client: %w", err)
	}

	logger.Info("embedded Tor daemon ready", "socks", embedded.SocksAddr())
	return client, stop, nil
}
