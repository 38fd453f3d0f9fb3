package main

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/hivellm/synap/internal/config"
	"github.com/hivellm/synap/internal/engine"
	"github.com/hivellm/synap/internal/gateway"
	"github.com/hivellm/synap/pkg/synaplog"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Inspect or trigger snapshots of a stopped engine's persisted state",
}

var snapshotTriggerCmd = &cobra.Command{
	Use:   "trigger",
	Short: "Build the engine from the config's persistence settings, recover, and take one snapshot",
	Long: `trigger loads config, recovers state from the newest snapshot plus WAL
suffix exactly as serve does, then immediately takes a fresh snapshot and
exits without starting any background loop. Useful for an out-of-band
snapshot of a stopped process's on-disk state, or as a cron-driven backup.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(configPath(cmd))
		if err != nil {
			return err
		}

		log := synaplog.WithComponent("snapshot")
		eng, err := engine.New(cfg, log)
		if err != nil {
			return fmt.Errorf("construct engine: %w", err)
		}
		if err := eng.Recover(); err != nil {
			return fmt.Errorf("recover state: %w", err)
		}

		resp := eng.Gateway.Handle(gateway.Envelope{Command: "admin.snapshot", RequestID: uuid.NewString()})
		if !resp.OK {
			return fmt.Errorf("admin.snapshot: %s", resp.Error.Message)
		}
		out, _ := json.MarshalIndent(resp.Payload, "", "  ")
		fmt.Println(string(out))
		return nil
	},
}

func init() {
	snapshotCmd.AddCommand(snapshotTriggerCmd)
}
