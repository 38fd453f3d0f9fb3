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

var replicationCmd = &cobra.Command{
	Use:   "replication",
	Short: "Inspect or manage replication state of a stopped engine's persisted state",
}

var replicationInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Print this engine's replication role and progress",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runReplicationCommand(cmd, "replication.info")
	},
}

var replicationPromoteCmd = &cobra.Command{
	Use:   "promote",
	Short: "Promote a replica to master (spec.md §4.J manual promotion)",
	Long: `promote flips a replica's role to master so it starts accepting
writes directly. It does not reconfigure any other replica to follow the
newly promoted node; operators are responsible for repointing replicas
and clients, matching the manual-failover boundary spec.md §1 describes.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runReplicationCommand(cmd, "replication.promote")
	},
}

func runReplicationCommand(cmd *cobra.Command, command string) error {
	cfg, err := config.Load(configPath(cmd))
	if err != nil {
		return err
	}

	log := synaplog.WithComponent("replication")
	eng, err := engine.New(cfg, log)
	if err != nil {
		return fmt.Errorf("construct engine: %w", err)
	}
	if err := eng.Recover(); err != nil {
		return fmt.Errorf("recover state: %w", err)
	}

	resp := eng.Gateway.Handle(gateway.Envelope{Command: command, RequestID: uuid.NewString()})
	if !resp.OK {
		return fmt.Errorf("%s: %s", command, resp.Error.Message)
	}
	out, _ := json.MarshalIndent(resp.Payload, "", "  ")
	fmt.Println(string(out))
	return nil
}

func init() {
	replicationCmd.AddCommand(replicationInfoCmd)
	replicationCmd.AddCommand(replicationPromoteCmd)
}
