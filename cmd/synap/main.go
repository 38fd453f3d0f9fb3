// Command synap is the process entrypoint for the Synap data engine: the
// out-of-scope CLI surface (spec.md §1) wrapping the in-scope engine
// (internal/engine). It follows cuemby-warren/cmd/warren's root-command,
// persistent-flags, subcommand layout almost directly, scaled down to the
// handful of operational verbs SPEC_FULL.md §A names: serve, snapshot
// trigger, replication promote, and config validate.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hivellm/synap/pkg/synaplog"
)

// Version information, set via ldflags during build the way warren's own
// cmd/warren/main.go does.
var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "synap",
	Short:   "Synap - an in-memory data engine with queues, streams, and pub/sub",
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("synap version %s (%s)\n", Version, Commit))

	rootCmd.PersistentFlags().String("config", "", "Path to a Synap config YAML file (defaults to built-in defaults)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(replicationCmd)
	rootCmd.AddCommand(configCmd)
}

func initLogging() {
	level, _ := rootCmd.PersistentFlags().GetString("log-level")
	jsonOut, _ := rootCmd.PersistentFlags().GetBool("log-json")
	synaplog.Init(synaplog.Config{
		Level:      synaplog.Level(level),
		JSONOutput: jsonOut,
	})
}

func configPath(cmd *cobra.Command) string {
	p, _ := cmd.Flags().GetString("config")
	return p
}
