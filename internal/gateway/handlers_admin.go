package gateway

import (
	"github.com/hivellm/synap/internal/config"
	"github.com/hivellm/synap/internal/keyspace"
	"github.com/hivellm/synap/internal/snapshot"
	"github.com/hivellm/synap/internal/synaperr"
)

// registerAdminCommands wires admin.* and replication.* (spec.md §6, §4.J,
// SPEC_FULL.md §C). None of these mutate the keyspace directly — a
// snapshot's own durability comes from internal/snapshot's own file
// writes, not a WAL record — so none are marked mutating.
func (g *Gateway) registerAdminCommands(cmds map[string]commandSpec) {
	cmds["admin.snapshot"] = commandSpec{run: func(g *Gateway, _ string, _ payload, _ *keyspace.LockedShardSet) (any, error) {
		if g.SnapshotDir == "" {
			return nil, synaperr.New(synaperr.Internal, "admin.snapshot: no snapshot directory configured")
		}
		var baseSeq uint64
		if g.WAL != nil {
			baseSeq = g.WAL.LastSeq()
		}
		path, err := snapshot.Take(g.SnapshotDir, baseSeq, g.KS, g.Queue, g.Stream)
		if err != nil {
			if g.Metrics != nil {
				g.Metrics.SnapshotOps.WithLabelValues("take_failed").Inc()
			}
			return nil, synaperr.Wrap(synaperr.Internal, "snapshot failed", err)
		}
		if g.Metrics != nil {
			g.Metrics.SnapshotOps.WithLabelValues("take").Inc()
		}
		return map[string]any{"path": path, "base_seq": baseSeq}, nil
	}}

	cmds["admin.stats"] = commandSpec{run: func(g *Gateway, _ string, _ payload, _ *keyspace.LockedShardSet) (any, error) {
		stats := map[string]any{
			"keyspace": g.KS.Stats(),
			"queues":   g.Queue.List(),
			"rooms":    g.Stream.ListRooms(),
			"pubsub":   g.Bus.Stats(),
			"role":     g.Role,
		}
		if g.Master != nil {
			stats["replica_count"] = g.Master.ReplicaCount()
		}
		if g.Replica != nil {
			stats["last_applied_seq"] = g.Replica.LastApplied()
		}
		return stats, nil
	}}

	cmds["admin.config"] = commandSpec{run: func(g *Gateway, _ string, _ payload, _ *keyspace.LockedShardSet) (any, error) {
		if g.Config == nil {
			return map[string]any{"valid": true}, nil
		}
		if err := g.Config.Validate(); err != nil {
			return map[string]any{"valid": false, "error": err.Error()}, nil
		}
		return map[string]any{"valid": true}, nil
	}}

	cmds["admin.logs"] = commandSpec{run: func(g *Gateway, _ string, _ payload, _ *keyspace.LockedShardSet) (any, error) {
		// Log output is written directly to the configured zerolog writer
		// (file/stdout), never buffered in-process, so there is no ring
		// buffer for this command to read back here; it reports where to
		// look instead.
		return map[string]any{"message": "logs are written to the configured output, not buffered by the engine"}, nil
	}}

	cmds["replication.info"] = commandSpec{run: func(g *Gateway, _ string, _ payload, _ *keyspace.LockedShardSet) (any, error) {
		info := map[string]any{"role": g.Role}
		switch g.Role {
		case config.RoleMaster:
			if g.WAL != nil {
				info["last_seq"] = g.WAL.LastSeq()
			}
			if g.Master != nil {
				info["replica_count"] = g.Master.ReplicaCount()
			}
		case config.RoleReplica:
			if g.Replica != nil {
				info["last_applied_seq"] = g.Replica.LastApplied()
				info["connected"] = true
			}
		}
		return info, nil
	}}

	cmds["replication.promote"] = commandSpec{run: func(g *Gateway, _ string, _ payload, _ *keyspace.LockedShardSet) (any, error) {
		if g.Role != config.RoleReplica || g.Replica == nil {
			return nil, synaperr.New(synaperr.Internal, "replication.promote: only a replica can be promoted")
		}
		g.Replica.Promote()
		g.Role = config.RoleMaster
		return map[string]any{"promoted": true}, nil
	}}
}
