// Package engine assembles every component named in spec.md §2's dependency
// DAG — keyspace, values, expiration, WAL, snapshot, transactions, queue,
// stream, pubsub, replication, and the command gateway — into one
// constructible, startable, stoppable unit. It is the process-singleton
// spec.md §9 describes ("the engine object is process-singleton by
// convention; its components have explicit construction and teardown order
// mirroring the DAG in §2"); cmd/synap is the only caller.
package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/hivellm/synap/internal/config"
	"github.com/hivellm/synap/internal/expire"
	"github.com/hivellm/synap/internal/gateway"
	"github.com/hivellm/synap/internal/keyspace"
	"github.com/hivellm/synap/internal/metrics"
	"github.com/hivellm/synap/internal/pubsub"
	"github.com/hivellm/synap/internal/queue"
	"github.com/hivellm/synap/internal/replication"
	"github.com/hivellm/synap/internal/snapshot"
	"github.com/hivellm/synap/internal/stream"
	"github.com/hivellm/synap/internal/txn"
	"github.com/hivellm/synap/internal/values"
	"github.com/hivellm/synap/internal/wal"
)

// replicationLogCapacity bounds the master's in-memory replication ring
// (spec.md §3.5, §4.J "a ring with a floor sequence"); a replica further
// behind than this is served a snapshot instead of the raw suffix.
const replicationLogCapacity = 65536

// heartbeatMaxMisses is how many missed heartbeats a replica tolerates
// before declaring the master disconnected (spec.md §4.J "replica
// disconnection is detected by heartbeat timeout").
const heartbeatMaxMisses = 3

// Engine owns every in-process component and the background loops that
// drive expiration, queue redelivery, and replication heartbeats.
type Engine struct {
	Config config.Config
	Log    zerolog.Logger

	KS      *keyspace.Keyspace
	Ops     *values.Ops
	Queue   *queue.Manager
	Stream  *stream.Manager
	Bus     *pubsub.Bus
	Txn     *txn.Coordinator
	WAL     *wal.WAL
	Metrics *metrics.Registry
	Gateway *gateway.Gateway

	Master        *replication.Master
	Replica       *replication.Replica
	replicaStore  *replication.StateStore
	replicaHB     *replication.HeartbeatMonitor

	sweeper *expire.Sweeper
	evictor *expire.Evictor

	snapshotInterval time.Duration
	running          bool
	cancel           context.CancelFunc
}

// gatewayApplier adapts *gateway.Gateway's ApplyReplicated method (named for
// clarity at its own call sites) to replication.Applier's Apply method name.
type gatewayApplier struct{ g *gateway.Gateway }

func (a gatewayApplier) Apply(op string, args []string) error {
	return a.g.ApplyReplicated(op, args)
}

// New constructs every component per cfg but does not start any background
// loop or replay recovery state — call Recover then Start.
func New(cfg config.Config, log zerolog.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("engine: invalid config: %w", err)
	}

	e := &Engine{
		Config:           cfg,
		Log:              log,
		snapshotInterval: time.Duration(cfg.Persistence.Snapshot.IntervalSecs) * time.Second,
	}

	e.KS = keyspace.New(log)
	e.Ops = values.New(e.KS)
	e.Queue = queue.New(log, time.Duration(cfg.Queue.DefaultVisibilityTimeoutSecs)*time.Second, cfg.Queue.DefaultMaxRetries)
	e.Stream = stream.New(log)
	e.Bus = pubsub.New()
	e.Txn = txn.New(e.KS)
	e.Metrics = metrics.New()
	e.sweeper = expire.New(e.KS, log, time.Second)
	e.evictor = expire.NewEvictor(e.KS, log, cfg.KVStore, 5*time.Second)

	w, err := wal.Open(cfg.Persistence.WAL, log)
	if err != nil {
		return nil, fmt.Errorf("engine: open wal: %w", err)
	}
	e.WAL = w

	deps := gateway.Deps{
		KS: e.KS, Ops: e.Ops, Queue: e.Queue, Stream: e.Stream, Bus: e.Bus,
		Txn: e.Txn, WAL: e.WAL, Metrics: e.Metrics, Config: &e.Config, Log: log,
	}

	switch cfg.Replication.Role {
	case config.RoleMaster:
		rl := replication.NewLog(replicationLogCapacity)
		e.Master = replication.NewMaster(rl, time.Duration(cfg.Replication.HeartbeatIntervalMS)*time.Millisecond, log)
		deps.Master = e.Master
	case config.RoleReplica:
		// OpenStateStore takes a directory and opens replica_state.db inside it.
		store, serr := replication.OpenStateStore(filepath.Dir(cfg.Replication.StateFile))
		if serr != nil {
			return nil, fmt.Errorf("engine: open replica state store: %w", serr)
		}
		e.replicaStore = store
		e.replicaHB = replication.NewHeartbeatMonitor(time.Duration(cfg.Replication.HeartbeatIntervalMS)*time.Millisecond, heartbeatMaxMisses, log)
	}

	e.Gateway = gateway.New(deps)

	if cfg.Replication.Role == config.RoleReplica {
		r, rerr := replication.NewReplica(gatewayApplier{e.Gateway}, e.replicaStore, e.replicaHB, log)
		if rerr != nil {
			return nil, fmt.Errorf("engine: construct replica: %w", rerr)
		}
		e.Replica = r
		e.Gateway.Replica = r
	}

	return e, nil
}

// Recover loads the newest valid snapshot (if any) then replays the WAL
// suffix after its base sequence, reconstructing state exactly as spec.md
// §4.E describes ("load the newest valid snapshot; replay WAL records with
// sequence > base in order"). Call once, before Start, on every boot.
func (e *Engine) Recover() error {
	dir := e.Config.Persistence.Snapshot.Dir
	baseSeq, found, err := snapshot.Load(dir, e.KS, e.Queue, e.Stream)
	if err != nil {
		return fmt.Errorf("engine: load snapshot: %w", err)
	}
	if !found {
		baseSeq = 0
	}
	walDir := e.Config.Persistence.WAL.Dir
	if !e.Config.Persistence.WAL.Enabled || walDir == "" {
		return nil
	}
	applier := gatewayApplier{e.Gateway}
	return wal.Replay(walDir, baseSeq, func(rec wal.Record) error {
		return applier.Apply(rec.Op, rec.Args)
	})
}

// Start launches every background loop: expiration sweeper, memory evictor,
// queue deadline sweeper, periodic snapshots, and (if configured) the
// replication heartbeat/apply loops.
func (e *Engine) Start(ctx context.Context) {
	if e.running {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.running = true

	e.sweeper.Start(runCtx)
	e.evictor.Start(runCtx)
	e.Queue.Start(runCtx)

	if e.snapshotInterval > 0 {
		go e.snapshotLoop(runCtx)
	}

	if e.Master != nil {
		e.Master.Start(runCtx)
	}
	if e.Replica != nil {
		if e.replicaHB != nil {
			e.replicaHB.Start(runCtx)
		}
		feed, needsSnapshot := e.subscribeReplicaFeed()
		if needsSnapshot {
			if _, _, err := snapshot.Load(e.Config.Persistence.Snapshot.Dir, e.KS, e.Queue, e.Stream); err != nil {
				e.Log.Error().Err(err).Msg("replica: snapshot catch-up failed")
			}
		}
		go e.Replica.Run(runCtx, feed)
	}
}

// subscribeReplicaFeed connects to the configured master over the
// replication log this process was handed. In a single-process deployment
// (tests, embedded use) a Master in the same Engine is queried directly; a
// true multi-process deployment wires cmd/synap's own socket plumbing to
// call Master.Subscribe remotely and forward entries onto this channel —
// that plumbing is the out-of-scope transport named in SPEC_FULL.md §B.
func (e *Engine) subscribeReplicaFeed() (<-chan replication.Entry, bool) {
	if e.Master == nil {
		ch := make(chan replication.Entry)
		close(ch)
		return ch, false
	}
	return e.Master.Subscribe("local", e.Replica.LastApplied())
}

// snapshotLoop periodically takes a snapshot and prunes old ones per
// persistence.snapshot.keep_count (spec.md §4.E "Retention").
func (e *Engine) snapshotLoop(ctx context.Context) {
	ticker := time.NewTicker(e.snapshotInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.takeSnapshot()
		}
	}
}

func (e *Engine) takeSnapshot() {
	dir := e.Config.Persistence.Snapshot.Dir
	if dir == "" {
		return
	}
	var baseSeq uint64
	if e.WAL != nil {
		baseSeq = e.WAL.LastSeq()
	}
	if _, err := snapshot.Take(dir, baseSeq, e.KS, e.Queue, e.Stream); err != nil {
		e.Metrics.SnapshotOps.WithLabelValues("take_failed").Inc()
		e.Log.Error().Err(err).Msg("periodic snapshot failed")
		return
	}
	e.Metrics.SnapshotOps.WithLabelValues("take").Inc()
	if err := snapshot.Prune(dir, e.Config.Persistence.Snapshot.KeepCount); err != nil {
		e.Log.Error().Err(err).Msg("snapshot prune failed")
	}
}

// Stop halts every background loop and closes the WAL and replica state
// store in reverse construction order (spec.md §9's shutdown ordering:
// "transports → gateway → components → persistence → replication").
func (e *Engine) Stop() {
	if !e.running {
		return
	}
	e.running = false
	if e.cancel != nil {
		e.cancel()
	}
	e.sweeper.Stop()
	e.evictor.Stop()
	e.Queue.Stop()
	if e.Master != nil {
		e.Master.Stop()
	}
	if e.Replica != nil {
		e.Replica.Stop()
	}
	if e.replicaHB != nil {
		e.replicaHB.Stop()
	}
	if e.WAL != nil {
		_ = e.WAL.Close()
	}
	if e.replicaStore != nil {
		_ = e.replicaStore.Close()
	}
}
