package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/nao1215/dlcollect/internal/config"
	"github.com/nao1215/dlcollect/internal/settings"
)

// NewSettingsCmd creates the settings command.
func NewSettingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change the stored settings",
		Long: `Settings prints the stored toggles:

  autoCollect              collect as soon as "dlcollect serve" starts (default: true)
  allowDownloadVariations  accept text containing the word "download" (default: false)

Examples:
  dlcollect settings
  dlcollect settings set allowDownloadVariations true`,
		Args: cobra.NoArgs,
		RunE: runSettingsCmd,
	}

	cmd.AddCommand(newSettingsSetCmd())

	return cmd
}

func newSettingsSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <true|false>",
		Short: "Change one stored setting",
		Args:  cobra.ExactArgs(2),
		RunE:  runSettingsSetCmd,
	}
}

// settingsStore returns the file store selected by the persistent flags.
func settingsStore(cmd *cobra.Command) (*settings.FileStore, error) {
	cfg := config.NewConfig()
	if err := applyGlobalFlags(cmd, cfg); err != nil {
		return nil, err
	}
	return settings.NewFileStore(cfg.SettingsPath), nil
}

// runSettingsCmd prints every setting.
func runSettingsCmd(cmd *cobra.Command, _ []string) error {
	store, err := settingsStore(cmd)
	if err != nil {
		return err
	}

	s, err := settings.Load(store)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, key := range settings.Keys() {
		value, err := s.Get(key)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%-24s %t\n", key, value)
	}
	return nil
}

// runSettingsSetCmd writes one setting.
func runSettingsSetCmd(cmd *cobra.Command, args []string) error {
	key := args[0]
	if err := settings.ValidateKey(key); err != nil {
		return err
	}

	value, err := strconv.ParseBool(args[1])
	if err != nil {
		return fmt.Errorf("invalid value %q for %s: expected true or false", args[1], key)
	}

	store, err := settingsStore(cmd)
	if err != nil {
		return err
	}
	if err := settings.Save(store, key, value); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s = %t\n", key, value)
	return nil
}
