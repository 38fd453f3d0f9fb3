package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hivellm/synap/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or validate a Synap configuration file",
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Load the configured file (or built-in defaults) and validate it",
	Long: `validate surfaces configuration mistakes such as wal.enabled=true with
an empty wal directory, or a persistence.snapshot.keep_count of zero, at
the command line instead of at first write (SPEC_FULL.md §C).`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(configPath(cmd))
		if err != nil {
			return fmt.Errorf("load: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
		fmt.Println("config is valid")
		return nil
	},
}

func init() {
	configCmd.AddCommand(configValidateCmd)
}
