package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/nao1215/dlcollect/internal/config"
	"github.com/nao1215/dlcollect/internal/database"
	"github.com/nao1215/dlcollect/internal/export"
	"github.com/nao1215/dlcollect/internal/model"
	"github.com/nao1215/dlcollect/internal/server"
)

// NewShowCmd creates the show command.
func NewShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show a recorded run or an exported link file",
		Long: `Show prints a run from the history database, the latest one by default.

With --file, it reads a link file written by "dlcollect collect" instead and
prints its URLs. With --server, it asks a running "dlcollect serve" relay for
its latest run.

Examples:
  # Show the latest run
  dlcollect show

  # Show run 3 as Markdown
  dlcollect show --id 3 --markdown

  # Write the URLs of run 3 to a new link file
  dlcollect show --id 3 --export links.txt

  # Show the latest run of a relay
  dlcollect show --server http://127.0.0.1:8765

  # List the URLs of an exported file
  dlcollect show --file download_links_2026-10-18.txt`,
		Args: cobra.NoArgs,
		RunE: runShowCmd,
	}

	cmd.Flags().Int64("id", 0, "Run ID to show (default: latest run)")
	cmd.Flags().BoolP("json", "j", false,
		"Print the outcome as JSON (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Print the outcome as Markdown (mutually exclusive with --json)")
	cmd.Flags().String("export", "", "Write the URLs of the run to this path")
	cmd.Flags().StringP("file", "f", "", "Read an exported link file instead of the history")
	cmd.Flags().String("server", "", "Base URL of a dlcollect relay server to read the latest run from")

	return cmd
}

// runShowCmd executes the show command.
func runShowCmd(cmd *cobra.Command, _ []string) error {
	cfg := config.NewConfig()
	if err := applyGlobalFlags(cmd, cfg); err != nil {
		return err
	}

	var err error
	cfg.JSONReport, err = cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	cfg.MarkdownReport, err = cmd.Flags().GetBool("markdown")
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	file, err := cmd.Flags().GetString("file")
	if err != nil {
		return err
	}
	if file != "" {
		return showExportFile(file, cmd.OutOrStdout())
	}

	id, err := cmd.Flags().GetInt64("id")
	if err != nil {
		return err
	}
	exportPath, err := cmd.Flags().GetString("export")
	if err != nil {
		return err
	}

	serverURL, err := cmd.Flags().GetString("server")
	if err != nil {
		return err
	}
	if serverURL != "" {
		if id != 0 {
			return errors.New("--id cannot be used with --server: a relay only serves its latest run")
		}
		return showRemote(cmd.Context(), cfg, serverURL, exportPath, cmd.OutOrStdout())
	}

	return showRun(cmd.Context(), cfg, id, exportPath, cmd.OutOrStdout())
}

// showRun prints run id, or the latest run when id is 0.
func showRun(ctx context.Context, cfg *config.Config, id int64, exportPath string, out io.Writer) error {
	db, err := openExistingHistory(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	var run *database.Run
	if id == 0 {
		run, err = db.LatestOutcome(ctx)
	} else {
		run, err = db.GetOutcome(ctx, id)
	}
	if err != nil {
		return err
	}

	return showOutcome(ctx, cfg, run.Outcome, exportPath, out)
}

// showRemote prints the latest run of the relay at serverURL.
func showRemote(ctx context.Context, cfg *config.Config, serverURL, exportPath string, out io.Writer) error {
	outcome, err := server.NewClient(serverURL).Latest(ctx)
	if err != nil {
		return err
	}
	return showOutcome(ctx, cfg, outcome, exportPath, out)
}

// showOutcome prints outcome and writes its URLs to exportPath when set.
func showOutcome(ctx context.Context, cfg *config.Config, outcome *model.AggregateOutcome, exportPath string, out io.Writer) error {
	if err := outputReport(cfg, outcome, out); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	if exportPath == "" {
		return nil
	}
	path, err := export.NewFileExporter(export.WithPath(exportPath)).Export(ctx, outcome.URLs())
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Links written to %s\n", path)
	return nil
}

// showExportFile lists the URLs of a link file.
func showExportFile(path string, out io.Writer) error {
	f, err := os.Open(path) //nolint:gosec // User-provided path is intentional
	if err != nil {
		return fmt.Errorf("failed to open link file: %w", err)
	}
	defer f.Close()

	urls, err := export.ParseFile(f)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "%s: %d links (fingerprint %s)\n", path, len(urls), database.Fingerprint(urls))
	for _, u := range urls {
		fmt.Fprintln(out, u)
	}
	return nil
}
