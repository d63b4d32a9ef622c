package database

import (
	"context"
	"database/sql"
	"embed"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/pressly/goose/v3"
	goosedb "github.com/pressly/goose/v3/database"
	"golang.org/x/crypto/sha3"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/dlcollect/internal/model"
)

// FileName is the name of the database file inside the data directory.
const FileName = "dlcollect.db"

// ErrRunNotFound is returned when no run matches a lookup.
var ErrRunNotFound = errors.New("run not found")

//go:embed migrations/*.sql
var migrations embed.FS

// HistoryDB stores collection runs.
type HistoryDB struct {
	db     *sql.DB
	dbPath string
}

// Options configures HistoryDB behavior.
type Options struct {
	// CreateIfNotExists creates the directory and database file if missing.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Run is one stored collection run.
type Run struct {
	// ID is the database identifier of the run.
	ID int64

	// Fingerprint identifies the URL set of the run. See Fingerprint.
	Fingerprint string

	// ExportPath is where the URLs were written, empty for an empty run.
	ExportPath string

	// Outcome is the stored outcome including every link.
	Outcome *model.AggregateOutcome
}

// RunSummary describes a run without its links.
type RunSummary struct {
	ID          int64
	RequestID   string
	StartedAt   time.Time
	CompletedAt time.Time
	Success     bool
	LinkCount   int
	TabCount    int
	Fingerprint string
	ExportPath  string
}

// Open opens or creates the history database in dbDir and applies
// pending migrations.
func Open(ctx context.Context, dbDir string, opts Options) (*HistoryDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else if err := os.MkdirAll(dbDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	mode := "rw"
	if opts.CreateIfNotExists {
		mode = "rwc"
	}
	dsn := "file:" + dbPath + "?mode=" + mode + "&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	// SQLite has a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	return &HistoryDB{db: db, dbPath: dbPath}, nil
}

// migrate brings the schema up to date.
func migrate(ctx context.Context, db *sql.DB) error {
	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}

	provider, err := goose.NewProvider(goosedb.DialectSQLite3, db, fsys)
	if err != nil {
		return fmt.Errorf("failed to create migration provider: %w", err)
	}

	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// Path returns the database file path.
func (h *HistoryDB) Path() string {
	return h.dbPath
}

// Close closes the database connection.
func (h *HistoryDB) Close() error {
	return h.db.Close()
}

// SaveOutcome stores outcome with every link and returns the run ID.
func (h *HistoryDB) SaveOutcome(ctx context.Context, outcome *model.AggregateOutcome, exportPath string) (int64, error) {
	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
	INSERT INTO runs (request_id, started_at, completed_at, success, link_count, tab_count,
		tabs_skipped, tabs_failed, fingerprint, export_path)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		outcome.RequestID,
		formatTimestamp(outcome.StartedAt),
		formatTimestamp(outcome.CompletedAt),
		outcome.Success,
		outcome.TotalLinkCount,
		outcome.TabCount,
		outcome.TabsSkipped,
		outcome.TabsFailed,
		Fingerprint(outcome.URLs()),
		exportPath,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert run: %w", err)
	}

	runID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get run ID: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO links (run_id, position, tab_index, tab_title, tab_url, text, url, context)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare link insert: %w", err)
	}
	defer stmt.Close()

	position := 0
	for tabIndex, tr := range outcome.TabResults {
		for _, link := range tr.Links {
			if _, err := stmt.ExecContext(ctx, runID, position, tabIndex,
				tr.TabTitle, tr.TabURL, link.Text, link.URL, link.Context); err != nil {
				return 0, fmt.Errorf("failed to insert link: %w", err)
			}
			position++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit run: %w", err)
	}
	return runID, nil
}

// LatestOutcome returns the most recently stored run.
func (h *HistoryDB) LatestOutcome(ctx context.Context) (*Run, error) {
	var id int64
	err := h.db.QueryRowContext(ctx, `SELECT id FROM runs ORDER BY id DESC LIMIT 1`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest run: %w", err)
	}
	return h.GetOutcome(ctx, id)
}

// GetOutcome returns the run with the given ID.
func (h *HistoryDB) GetOutcome(ctx context.Context, id int64) (*Run, error) {
	var (
		run                  Run
		startedAt, completed string
	)
	outcome := &model.AggregateOutcome{TabResults: make([]model.TabResult, 0)}

	err := h.db.QueryRowContext(ctx, `
	SELECT id, request_id, started_at, completed_at, success, link_count, tab_count,
		tabs_skipped, tabs_failed, fingerprint, export_path
	FROM runs
	WHERE id = ?
	`, id).Scan(
		&run.ID,
		&outcome.RequestID,
		&startedAt,
		&completed,
		&outcome.Success,
		&outcome.TotalLinkCount,
		&outcome.TabCount,
		&outcome.TabsSkipped,
		&outcome.TabsFailed,
		&run.Fingerprint,
		&run.ExportPath,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	outcome.StartedAt = parseTimestamp(startedAt)
	outcome.CompletedAt = parseTimestamp(completed)

	rows, err := h.db.QueryContext(ctx, `
	SELECT tab_index, tab_title, tab_url, text, url, context
	FROM links
	WHERE run_id = ?
	ORDER BY position
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get links: %w", err)
	}
	defer rows.Close()

	lastTab := -1
	for rows.Next() {
		var (
			tabIndex         int
			tabTitle, tabURL string
			link             model.LinkRecord
		)
		if err := rows.Scan(&tabIndex, &tabTitle, &tabURL, &link.Text, &link.URL, &link.Context); err != nil {
			return nil, fmt.Errorf("failed to scan link: %w", err)
		}
		if tabIndex != lastTab {
			outcome.TabResults = append(outcome.TabResults, model.TabResult{
				TabTitle: tabTitle,
				TabURL:   tabURL,
				Links:    make([]model.LinkRecord, 0),
			})
			lastTab = tabIndex
		}
		cur := &outcome.TabResults[len(outcome.TabResults)-1]
		cur.Links = append(cur.Links, link)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read links: %w", err)
	}

	run.Outcome = outcome
	return &run, nil
}

// ListRuns returns up to limit runs, newest first. A limit <= 0 lists all runs.
func (h *HistoryDB) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	query := `
	SELECT id, request_id, started_at, completed_at, success, link_count, tab_count,
		fingerprint, export_path
	FROM runs
	ORDER BY id DESC
	`
	args := make([]any, 0, 1)
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := make([]RunSummary, 0)
	for rows.Next() {
		var (
			s                    RunSummary
			startedAt, completed string
		)
		if err := rows.Scan(&s.ID, &s.RequestID, &startedAt, &completed, &s.Success,
			&s.LinkCount, &s.TabCount, &s.Fingerprint, &s.ExportPath); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		s.StartedAt = parseTimestamp(startedAt)
		s.CompletedAt = parseTimestamp(completed)
		runs = append(runs, s)
	}

	return runs, rows.Err()
}

// Fingerprint returns the hex SHA3-256 digest of the sorted URL set.
// Duplicates and order do not change the fingerprint.
func Fingerprint(urls []string) string {
	set := slices.Clone(urls)
	slices.Sort(set)
	set = slices.Compact(set)

	sum := sha3.Sum256([]byte(strings.Join(set, "\n")))
	return hex.EncodeToString(sum[:])
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// timestampFormats lists the layouts a stored timestamp may have.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// parseTimestamp returns the zero time for empty or unknown values.
func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timestampFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
