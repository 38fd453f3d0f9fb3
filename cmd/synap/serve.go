package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/hivellm/synap/internal/config"
	"github.com/hivellm/synap/internal/engine"
	"github.com/hivellm/synap/internal/gateway"
	"github.com/hivellm/synap/pkg/synaplog"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the Synap engine until a shutdown signal is received",
	Long: `serve builds every component of the engine (keyspace, WAL, snapshot
engine, queue, stream, pubsub, transaction coordinator, replication), recovers
state from the newest snapshot plus WAL suffix (spec.md §4.E), and starts the
background loops (expiration sweeper, queue deadline sweeper, periodic
snapshots, replication heartbeat/apply) until interrupted.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(configPath(cmd))
		if err != nil {
			return err
		}

		log := synaplog.WithComponent("engine")
		eng, err := engine.New(cfg, log)
		if err != nil {
			return fmt.Errorf("construct engine: %w", err)
		}
		if err := eng.Recover(); err != nil {
			return fmt.Errorf("recover state: %w", err)
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		eng.Start(ctx)

		log.Info().Str("role", string(cfg.Replication.Role)).Msg("synap engine started")

		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
		<-stop

		log.Info().Msg("shutting down")
		if onExit, _ := cmd.Flags().GetBool("snapshot-on-exit"); onExit {
			resp := eng.Gateway.Handle(gateway.Envelope{Command: "admin.snapshot", RequestID: uuid.NewString()})
			if !resp.OK {
				log.Warn().Interface("error", resp.Error).Msg("final snapshot failed")
			}
		}
		eng.Stop()
		return nil
	},
}

func init() {
	serveCmd.Flags().Bool("snapshot-on-exit", true, "take a final snapshot before shutting down")
}
