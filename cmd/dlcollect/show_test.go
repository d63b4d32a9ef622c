package main

import (
	"context"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/dlcollect/internal/collector"
	"github.com/nao1215/dlcollect/internal/database"
	"github.com/nao1215/dlcollect/internal/host"
	"github.com/nao1215/dlcollect/internal/model"
	"github.com/nao1215/dlcollect/internal/server"
)

// recordRuns stores outcomes in a fresh history database and returns its directory.
func recordRuns(t *testing.T, outcomes ...*model.AggregateOutcome) string {
	t.Helper()

	dir := t.TempDir()
	db, err := database.Open(context.Background(), dir, database.DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	for _, o := range outcomes {
		if _, err := db.SaveOutcome(context.Background(), o, "/tmp/"+o.RequestID+".txt"); err != nil {
			t.Fatalf("failed to save outcome: %v", err)
		}
	}
	return dir
}

func sampleOutcome(requestID string, urls ...string) *model.AggregateOutcome {
	start := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	o := model.NewAggregateOutcome(requestID, start)
	links := make([]model.LinkRecord, 0, len(urls))
	for _, u := range urls {
		links = append(links, model.LinkRecord{Text: "Download", URL: u})
	}
	o.RecordScan("Releases", "https://a.example/releases", links)
	o.Complete(start.Add(time.Second))
	return o
}

// TestRunShowCmd tests showing recorded runs and link files.
func TestRunShowCmd(t *testing.T) {
	t.Parallel()

	t.Run("latest run", func(t *testing.T) {
		t.Parallel()

		dir := recordRuns(t,
			sampleOutcome("first", "https://a.example/old.zip"),
			sampleOutcome("second", "https://a.example/new.zip"),
		)

		stdout, _, err := executeCommand(t, "show", "--db-dir", dir)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(stdout, "https://a.example/new.zip") {
			t.Errorf("expected latest run, got %q", stdout)
		}
		if strings.Contains(stdout, "old.zip") {
			t.Error("did not expect the older run")
		}
	})

	t.Run("run by id as markdown", func(t *testing.T) {
		t.Parallel()

		dir := recordRuns(t,
			sampleOutcome("first", "https://a.example/old.zip"),
			sampleOutcome("second", "https://a.example/new.zip"),
		)

		stdout, _, err := executeCommand(t, "show", "--db-dir", dir, "--id", "1", "--markdown")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(stdout, "# Download Links") || !strings.Contains(stdout, "old.zip") {
			t.Errorf("expected markdown of run 1, got %q", stdout)
		}
	})

	t.Run("unknown id", func(t *testing.T) {
		t.Parallel()

		dir := recordRuns(t, sampleOutcome("first", "https://a.example/old.zip"))
		_, _, err := executeCommand(t, "show", "--db-dir", dir, "--id", "42")
		if !errors.Is(err, database.ErrRunNotFound) {
			t.Errorf("expected ErrRunNotFound, got %v", err)
		}
	})

	t.Run("no history yet", func(t *testing.T) {
		t.Parallel()

		_, _, err := executeCommand(t, "show", "--db-dir", t.TempDir())
		if !errors.Is(err, database.ErrRunNotFound) {
			t.Errorf("expected ErrRunNotFound, got %v", err)
		}
	})

	t.Run("re-export a run", func(t *testing.T) {
		t.Parallel()

		dir := recordRuns(t, sampleOutcome("first", "https://a.example/1.zip", "https://a.example/2.zip"))
		path := filepath.Join(t.TempDir(), "again.txt")

		if _, _, err := executeCommand(t, "show", "--db-dir", dir, "--export", path); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		if string(data) != "https://a.example/1.zip\nhttps://a.example/2.zip\n" {
			t.Errorf("unexpected link file %q", data)
		}
	})

	t.Run("latest run of a relay server", func(t *testing.T) {
		t.Parallel()

		dir := recordRuns(t,
			sampleOutcome("first", "https://a.example/old.zip"),
			sampleOutcome("second", "https://a.example/new.zip"),
		)
		db, err := database.Open(context.Background(), dir, database.DefaultOptions())
		if err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { _ = db.Close() })

		srv := httptest.NewServer(server.New(collector.New(host.NewStatic()), server.WithHistory(db)).Routes())
		t.Cleanup(srv.Close)

		path := filepath.Join(t.TempDir(), "relay.txt")
		stdout, _, err := executeCommand(t, "show", "--server", srv.URL, "--export", path, "--db-dir", t.TempDir())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(stdout, "https://a.example/new.zip") {
			t.Errorf("expected the relay's latest run, got %q", stdout)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		if string(data) != "https://a.example/new.zip\n" {
			t.Errorf("unexpected link file %q", data)
		}
	})

	t.Run("relay server with run id", func(t *testing.T) {
		t.Parallel()

		_, _, err := executeCommand(t, "show", "--server", "http://127.0.0.1:1", "--id", "2")
		if err == nil || !strings.Contains(err.Error(), "--id cannot be used with --server") {
			t.Errorf("expected flag conflict, got %v", err)
		}
	})

	t.Run("link file", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "download_links_2026-10-18.txt")
		if err := os.WriteFile(path, []byte("https://a.example/1.zip\n\nhttps://a.example/2.zip\n"), 0600); err != nil {
			t.Fatal(err)
		}

		stdout, _, err := executeCommand(t, "show", "--file", path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(stdout, ": 2 links (fingerprint ") {
			t.Errorf("expected link count, got %q", stdout)
		}
		if !strings.Contains(stdout, "https://a.example/2.zip") {
			t.Errorf("expected URLs, got %q", stdout)
		}
	})
}

// TestRunHistoryCmd tests listing runs.
func TestRunHistoryCmd(t *testing.T) {
	t.Parallel()

	t.Run("empty", func(t *testing.T) {
		t.Parallel()

		stdout, _, err := executeCommand(t, "history", "--db-dir", t.TempDir())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(stdout, "No runs recorded yet.") {
			t.Errorf("unexpected output %q", stdout)
		}
	})

	t.Run("newest first with limit", func(t *testing.T) {
		t.Parallel()

		dir := recordRuns(t,
			sampleOutcome("first", "https://a.example/1.zip"),
			sampleOutcome("second", "https://a.example/1.zip", "https://a.example/2.zip"),
			sampleOutcome("third", "https://a.example/3.zip"),
		)

		stdout, _, err := executeCommand(t, "history", "--db-dir", dir, "-n", "2")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		lines := strings.Split(strings.TrimSpace(stdout), "\n")
		if len(lines) != 3 {
			t.Fatalf("expected header and 2 rows, got %q", stdout)
		}
		if !strings.HasPrefix(lines[0], "ID") {
			t.Errorf("expected header, got %q", lines[0])
		}
		if !strings.HasPrefix(lines[1], "3 ") || !strings.Contains(lines[1], "/tmp/third.txt") {
			t.Errorf("expected run 3 first, got %q", lines[1])
		}
		if !strings.HasPrefix(lines[2], "2 ") {
			t.Errorf("expected run 2 second, got %q", lines[2])
		}
	})
}
