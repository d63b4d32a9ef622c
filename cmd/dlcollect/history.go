package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nao1215/dlcollect/internal/config"
	"github.com/nao1215/dlcollect/internal/database"
)

// historyTimeLayout formats run times in the listing.
const historyTimeLayout = "2006-01-02 15:04:05"

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded collection runs",
		Long: `History lists recorded collection runs, newest first.

Runs with the same fingerprint exported the same set of URLs.

Examples:
  # List the last 20 runs
  dlcollect history

  # List every run
  dlcollect history --limit 0`,
		Args: cobra.NoArgs,
		RunE: runHistoryCmd,
	}

	cmd.Flags().IntP("limit", "n", config.DefaultHistoryLimit,
		"Maximum number of runs to list (0 lists all)")

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	cfg := config.NewConfig()
	if err := applyGlobalFlags(cmd, cfg); err != nil {
		return err
	}

	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}

	return listHistory(cmd.Context(), cfg, limit, cmd.OutOrStdout())
}

// listHistory prints up to limit runs as a table.
func listHistory(ctx context.Context, cfg *config.Config, limit int, out io.Writer) error {
	db, err := openExistingHistory(ctx, cfg)
	if errors.Is(err, database.ErrRunNotFound) {
		fmt.Fprintln(out, "No runs recorded yet.")
		return nil
	}
	if err != nil {
		return err
	}
	defer db.Close()

	runs, err := db.ListRuns(ctx, limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded yet.")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCOMPLETED\tLINKS\tTABS\tFINGERPRINT\tEXPORT")
	for _, r := range runs {
		fingerprint := r.Fingerprint
		if len(fingerprint) > 12 {
			fingerprint = fingerprint[:12]
		}
		exportPath := r.ExportPath
		if exportPath == "" {
			exportPath = "-"
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%s\t%s\n",
			r.ID,
			r.CompletedAt.Local().Format(historyTimeLayout),
			r.LinkCount,
			r.TabCount,
			fingerprint,
			exportPath,
		)
	}
	return tw.Flush()
}

// openExistingHistory opens the history database without creating it.
// It returns database.ErrRunNotFound when nothing was recorded yet.
func openExistingHistory(ctx context.Context, cfg *config.Config) (*database.HistoryDB, error) {
	path := cfg.DatabasePath()
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: no history at %s", database.ErrRunNotFound, path)
	}

	db, err := database.Open(ctx, cfg.DBDir, database.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}
