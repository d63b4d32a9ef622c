package main

import (
	"context"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/nao1215/dlcollect/internal/collector"
	"github.com/nao1215/dlcollect/internal/config"
	"github.com/nao1215/dlcollect/internal/database"
	"github.com/nao1215/dlcollect/internal/host"
	"github.com/nao1215/dlcollect/internal/model"
	"github.com/nao1215/dlcollect/internal/server"
)

// writePages creates a directory of saved pages.
func writePages(t *testing.T, pages map[string]string) string {
	t.Helper()

	dir := t.TempDir()
	for name, markup := range pages {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(markup), 0600); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func releasePages(t *testing.T) string {
	t.Helper()

	return writePages(t, map[string]string{
		"a.html": `<html><head><title>Releases</title></head><body>
<a href="https://a.example/v1.zip">Download</a>
<a href="https://a.example/v2.zip">Download now</a>
</body></html>`,
		"b.html":    `<html><body><a href="https://b.example/x.zip">Download</a></body></html>`,
		"notes.txt": `<a href="https://c.example/ignored.zip">Download</a>`,
	})
}

// collectSubcommand returns the collect command of a fresh root with args parsed,
// so the persistent flags of the root are available.
func collectSubcommand(t *testing.T, args ...string) *cobra.Command {
	t.Helper()

	cmd, _, err := NewRootCmd().Find([]string{"collect"})
	if err != nil {
		t.Fatalf("collect command not found: %v", err)
	}
	if err := cmd.ParseFlags(args); err != nil {
		t.Fatalf("failed to parse flags: %v", err)
	}
	return cmd
}

// TestNewCollectCmd tests the collect command creation.
func TestNewCollectCmd(t *testing.T) {
	t.Parallel()

	cmd := NewCollectCmd()

	if cmd.Use != "collect [page-url...]" {
		t.Errorf("expected use 'collect [page-url...]', got %q", cmd.Use)
	}

	tests := []struct {
		name      string
		shorthand string
	}{
		{"devtools", ""},
		{"list", "l"},
		{"from-dir", ""},
		{"server", ""},
		{"variations", ""},
		{"timeout", "t"},
		{"cancel-on-timeout", ""},
		{"fetch-timeout", ""},
		{"config", "c"},
		{"tor", ""},
		{"embedded-tor", ""},
		{"tor-timeout", "T"},
		{"output", "o"},
		{"output-dir", ""},
		{"file-mode", ""},
		{"json", "j"},
		{"markdown", "m"},
		{"no-history", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			flag := cmd.Flags().Lookup(tt.name)
			if flag == nil {
				t.Fatalf("expected %s flag", tt.name)
			}
			if flag.Shorthand != tt.shorthand {
				t.Errorf("expected shorthand %q, got %q", tt.shorthand, flag.Shorthand)
			}
		})
	}
}

// TestBuildCollectConfig tests flag parsing into a Config.
func TestBuildCollectConfig(t *testing.T) {
	t.Parallel()

	parse := func(t *testing.T, args ...string) *config.Config {
		t.Helper()
		cmd := collectSubcommand(t, args...)
		cfg, err := buildCollectConfig(cmd, cmd.Flags().Args())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		return cfg
	}

	t.Run("defaults use the browser and the stored setting", func(t *testing.T) {
		t.Parallel()
		cfg := parse(t)
		if cfg.Source() != config.SourceDevTools {
			t.Errorf("expected devtools source, got %q", cfg.Source())
		}
		if cfg.Variations != nil {
			t.Error("expected variations to follow the stored setting")
		}
		if !cfg.SaveToDB {
			t.Error("expected history to be on")
		}
		if cfg.Timeout != config.DefaultTimeout {
			t.Errorf("expected default timeout, got %v", cfg.Timeout)
		}
	})

	t.Run("explicit variations override", func(t *testing.T) {
		t.Parallel()
		cfg := parse(t, "--variations=false")
		if cfg.Variations == nil || *cfg.Variations {
			t.Errorf("expected explicit false, got %v", cfg.Variations)
		}
	})

	t.Run("page URLs select the web source", func(t *testing.T) {
		t.Parallel()
		cfg := parse(t, "--no-history", "https://a.example/", "https://b.example/")
		if cfg.Source() != config.SourceWeb {
			t.Errorf("expected web source, got %q", cfg.Source())
		}
		if len(cfg.URLs) != 2 {
			t.Errorf("expected 2 URLs, got %v", cfg.URLs)
		}
		if cfg.SaveToDB {
			t.Error("expected history to be off")
		}
	})

	t.Run("octal file mode", func(t *testing.T) {
		t.Parallel()
		cfg := parse(t, "--file-mode", "0600")
		if cfg.FileMode != 0o600 {
			t.Errorf("expected mode 0600, got %o", cfg.FileMode)
		}
	})

	t.Run("file mode that is not octal", func(t *testing.T) {
		t.Parallel()
		cmd := collectSubcommand(t, "--file-mode", "rw-r--r--")
		_, err := buildCollectConfig(cmd, nil)
		if err == nil || !strings.Contains(err.Error(), "invalid --file-mode") {
			t.Errorf("expected file mode error, got %v", err)
		}
	})

	t.Run("missing explicit config file", func(t *testing.T) {
		t.Parallel()
		cmd := collectSubcommand(t, "-c", filepath.Join(t.TempDir(), "missing.yaml"))
		_, err := buildCollectConfig(cmd, nil)
		if !errors.Is(err, config.ErrConfigNotFound) {
			t.Errorf("expected ErrConfigNotFound, got %v", err)
		}
	})
}

// TestRunCollectCmd tests collections end to end.
func TestRunCollectCmd(t *testing.T) {
	t.Parallel()

	t.Run("exports links from saved pages", func(t *testing.T) {
		t.Parallel()

		pages := releasePages(t)
		work := t.TempDir()
		out := filepath.Join(work, "links.txt")

		stdout, stderr, err := executeCommand(t, "collect",
			"--from-dir", pages,
			"--output", out,
			"--settings", filepath.Join(work, "settings.yaml"),
			"--db-dir", filepath.Join(work, "db"),
		)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		data, err := os.ReadFile(out)
		if err != nil {
			t.Fatalf("expected link file: %v", err)
		}
		if string(data) != "https://a.example/v1.zip\nhttps://b.example/x.zip\n" {
			t.Errorf("unexpected link file %q", data)
		}
		if !strings.Contains(stderr, "Successfully collected 2 download links from 2 tabs!") {
			t.Errorf("expected success notice, got %q", stderr)
		}
		if !strings.Contains(stdout, "Releases (1)") {
			t.Errorf("expected report, got %q", stdout)
		}

		db, err := database.Open(context.Background(), filepath.Join(work, "db"), database.Options{})
		if err != nil {
			t.Fatalf("expected history database: %v", err)
		}
		defer db.Close()

		run, err := db.LatestOutcome(context.Background())
		if err != nil {
			t.Fatalf("expected a recorded run: %v", err)
		}
		if run.ExportPath != out {
			t.Errorf("expected export path %q, got %q", out, run.ExportPath)
		}
	})

	t.Run("stored variations setting applies", func(t *testing.T) {
		t.Parallel()

		pages := releasePages(t)
		work := t.TempDir()
		settingsPath := filepath.Join(work, "settings.yaml")
		if _, _, err := executeCommand(t, "settings", "set", "allowDownloadVariations", "true", "--settings", settingsPath); err != nil {
			t.Fatal(err)
		}

		out := filepath.Join(work, "links.txt")
		_, stderr, err := executeCommand(t, "collect",
			"--from-dir", pages,
			"--output", out,
			"--settings", settingsPath,
			"--no-history",
		)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(stderr, "Successfully collected 3 download links from 2 tabs!") {
			t.Errorf("expected 3 links, got %q", stderr)
		}
	})

	t.Run("dated file in output directory", func(t *testing.T) {
		t.Parallel()

		pages := releasePages(t)
		work := t.TempDir()

		_, _, err := executeCommand(t, "collect",
			"--from-dir", pages,
			"--output-dir", work,
			"--settings", filepath.Join(work, "settings.yaml"),
			"--no-history",
		)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		matches, err := filepath.Glob(filepath.Join(work, "download_links_*.txt"))
		if err != nil {
			t.Fatal(err)
		}
		if len(matches) != 1 {
			t.Errorf("expected one dated file, got %v", matches)
		}
	})

	t.Run("no matches writes no file", func(t *testing.T) {
		t.Parallel()

		pages := writePages(t, map[string]string{
			"a.html": `<a href="https://a.example/">Home</a>`,
		})
		work := t.TempDir()
		out := filepath.Join(work, "links.txt")

		stdout, stderr, err := executeCommand(t, "collect",
			"--from-dir", pages,
			"--output", out,
			"--settings", filepath.Join(work, "settings.yaml"),
			"--no-history",
			"--json",
		)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(stderr, `No links with "Download" text found in any open tabs.`) {
			t.Errorf("expected empty notice, got %q", stderr)
		}
		if !strings.Contains(stdout, `"success": false`) {
			t.Errorf("expected JSON report, got %q", stdout)
		}
		if _, err := os.Stat(out); !os.IsNotExist(err) {
			t.Error("expected no link file")
		}
	})

	t.Run("through a relay server", func(t *testing.T) {
		t.Parallel()

		h := host.NewStatic(host.StaticPage{
			Tab:  model.Tab{ID: "1", Title: "Mirror", URL: "https://m.example/"},
			HTML: `<a href="/f.tar.gz">Download</a>`,
		})
		srv := httptest.NewServer(server.New(collector.New(h)).Routes())
		t.Cleanup(srv.Close)

		work := t.TempDir()
		out := filepath.Join(work, "links.txt")
		_, _, err := executeCommand(t, "collect",
			"--server", srv.URL,
			"--output", out,
			"--settings", filepath.Join(work, "settings.yaml"),
			"--db-dir", filepath.Join(work, "db"),
		)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		data, err := os.ReadFile(out)
		if err != nil {
			t.Fatalf("expected link file: %v", err)
		}
		if string(data) != "https://m.example/f.tar.gz\n" {
			t.Errorf("unexpected link file %q", data)
		}
		if _, err := os.Stat(filepath.Join(work, "db")); !os.IsNotExist(err) {
			t.Error("relay runs should not be recorded locally")
		}
	})

	t.Run("link file with custom permission", func(t *testing.T) {
		t.Parallel()

		pages := releasePages(t)
		work := t.TempDir()
		out := filepath.Join(work, "links.txt")

		_, _, err := executeCommand(t, "collect",
			"--from-dir", pages,
			"--output", out,
			"--file-mode", "0600",
			"--settings", filepath.Join(work, "settings.yaml"),
			"--no-history",
		)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		info, err := os.Stat(out)
		if err != nil {
			t.Fatalf("expected link file: %v", err)
		}
		if info.Mode().Perm() != 0o600 {
			t.Errorf("expected permission 0600, got %v", info.Mode().Perm())
		}
	})

	t.Run("unreachable relay server fails before dispatching", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(nil)
		url := srv.URL
		srv.Close()

		work := t.TempDir()
		_, _, err := executeCommand(t, "collect",
			"--server", url,
			"--output", filepath.Join(work, "links.txt"),
			"--settings", filepath.Join(work, "settings.yaml"),
			"--timeout", "1m",
		)
		if err == nil || !strings.Contains(err.Error(), "relay server is not available") {
			t.Errorf("expected relay error, got %v", err)
		}
		if _, err := os.Stat(filepath.Join(work, "links.txt")); !os.IsNotExist(err) {
			t.Error("expected no link file")
		}
	})

	t.Run("conflicting sources", func(t *testing.T) {
		t.Parallel()

		_, _, err := executeCommand(t, "collect", "--from-dir", t.TempDir(), "--server", "http://127.0.0.1:1")
		if !errors.Is(err, config.ErrConflictingSources) {
			t.Errorf("expected ErrConflictingSources, got %v", err)
		}
	})

	t.Run("missing URL list", func(t *testing.T) {
		t.Parallel()

		work := t.TempDir()
		_, _, err := executeCommand(t, "collect",
			"--list", filepath.Join(work, "missing.txt"),
			"--settings", filepath.Join(work, "settings.yaml"),
			"--no-history",
		)
		if err == nil || !strings.Contains(err.Error(), "failed to open URL list") {
			t.Errorf("expected list error, got %v", err)
		}
	})
}
