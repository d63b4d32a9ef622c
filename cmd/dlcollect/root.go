package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/nao1215/dlcollect/internal/config"
	dlog "github.com/nao1215/dlcollect/internal/log"
)

// NewRootCmd creates the root command for dlcollect.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dlcollect",
		Short: "Collect download links from open browser tabs",
		Long: `dlcollect scans the open tabs of a browser for links whose text is
"Download", gathers them across tabs and writes their URLs to a text file,
one URL per line.

Tabs are read from a Chromium browser started with
--remote-debugging-port=9222 by default. Page URLs or a directory of saved
HTML files can be used instead.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().String("log-file", "",
		"Also write logs to this file (rotated by size)")
	cmd.PersistentFlags().Bool("log-json", false, "Write logs as JSON")
	cmd.PersistentFlags().String("settings", "",
		"Settings file path (default: settings.yaml in the XDG config directory)")
	cmd.PersistentFlags().String("db-dir", "",
		"Directory of the history database (default: XDG data directory)")

	// Add subcommands
	cmd.AddCommand(NewCollectCmd())
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewShowCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewSettingsCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// applyGlobalFlags copies the persistent flags into cfg.
func applyGlobalFlags(cmd *cobra.Command, cfg *config.Config) error {
	cfg.Verbose = getVerboseFlag(cmd)

	var err error
	cfg.LogFile, err = cmd.Flags().GetString("log-file")
	if err != nil {
		return err
	}

	cfg.LogJSON, err = cmd.Flags().GetBool("log-json")
	if err != nil {
		return err
	}

	settingsPath, err := cmd.Flags().GetString("settings")
	if err != nil {
		return err
	}
	if settingsPath != "" {
		cfg.SettingsPath = settingsPath
	}

	dbDir, err := cmd.Flags().GetString("db-dir")
	if err != nil {
		return err
	}
	if dbDir != "" {
		cfg.DBDir = dbDir
	}

	return nil
}

// setupLogger creates the structured logger described by cfg and makes it
// the default. The returned function closes the log file, if any.
func setupLogger(cmd *cobra.Command, cfg *config.Config) (*slog.Logger, func() error) {
	logger, closeLog := dlog.New(cmd.ErrOrStderr(), dlog.Options{
		Verbose: cfg.Verbose,
		JSON:    cfg.LogJSON,
		File:    cfg.LogFile,
	})
	slog.SetDefault(logger)
	return logger, closeLog
}
