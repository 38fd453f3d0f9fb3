// Package gateway implements the command gateway of spec.md §4.K: the single
// entry point that resolves a command envelope to a handler, interposes
// transaction queuing, appends a WAL record for mutations before
// acknowledging them, and enqueues accepted mutations for replication when
// this engine is a master. Every other component (keyspace, values, queue,
// stream, pubsub, txn, wal, replication) is already transport-agnostic; this
// package is where they are wired together into the single logical surface
// spec.md §6 describes. It has no grounding precedent in the teacher beyond
// the general "thin dispatcher in front of independently-testable pieces"
// shape of cmd/coordinator/main.go's HTTP handler registration — the
// envelope/dispatch-table shape itself follows spec.md §6 directly.
package gateway

import (
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/hivellm/synap/internal/config"
	"github.com/hivellm/synap/internal/keyspace"
	"github.com/hivellm/synap/internal/metrics"
	"github.com/hivellm/synap/internal/pubsub"
	"github.com/hivellm/synap/internal/queue"
	"github.com/hivellm/synap/internal/replication"
	"github.com/hivellm/synap/internal/stream"
	"github.com/hivellm/synap/internal/synaperr"
	"github.com/hivellm/synap/internal/txn"
	"github.com/hivellm/synap/internal/values"
	"github.com/hivellm/synap/internal/wal"
)

// Envelope is the wire-level command request of spec.md §6.
type Envelope struct {
	Command   string         `json:"command"`
	RequestID string         `json:"request_id"`
	ClientID  string         `json:"client_id,omitempty"`
	Payload   map[string]any `json:"payload"`
}

// ErrorPayload is the wire shape of a failed command (spec.md §6).
type ErrorPayload struct {
	Kind    synaperr.Kind `json:"kind"`
	Message string        `json:"message"`
}

// Response is the wire-level command reply of spec.md §6.
type Response struct {
	RequestID string       `json:"request_id"`
	Payload   any          `json:"payload,omitempty"`
	Error     *ErrorPayload `json:"error,omitempty"`
	OK        bool         `json:"ok"`
}

// commandSpec binds one command family verb to its keyspace-touching
// footprint (for transaction lock-ordering and queuing) and its handler.
// run's guard is non-nil only when the command runs as part of a queued
// MULTI/EXEC batch: txn.Coordinator.Exec already holds a write lock on
// every shard spec.keys(p) can touch, so a mutating handler must thread
// guard into its Ops call instead of letting the operator take its own
// lock and deadlock against the one EXEC is holding.
type commandSpec struct {
	mutating bool
	control  bool // transaction control commands: never queued even mid-MULTI
	keys     func(p payload) []string
	run      func(g *Gateway, clientID string, p payload, guard *keyspace.LockedShardSet) (any, error)
}

// Gateway wires every component into spec.md §6's single logical surface.
type Gateway struct {
	log zerolog.Logger

	KS     *keyspace.Keyspace
	Ops    *values.Ops
	Queue  *queue.Manager
	Stream *stream.Manager
	Bus    *pubsub.Bus
	Txn    *txn.Coordinator
	WAL    *wal.WAL

	Master  *replication.Master  // nil unless role == master
	Replica *replication.Replica // nil unless role == replica
	Role    config.ReplicationRole

	Metrics *metrics.Registry
	Config  *config.Config

	SnapshotDir string

	commands map[string]commandSpec
}

// Deps bundles every already-constructed component a Gateway wires
// together; nil-able fields (Master, Replica, Metrics) are simply not
// exercised by the commands that would have used them.
type Deps struct {
	KS      *keyspace.Keyspace
	Ops     *values.Ops
	Queue   *queue.Manager
	Stream  *stream.Manager
	Bus     *pubsub.Bus
	Txn     *txn.Coordinator
	WAL     *wal.WAL
	Master  *replication.Master
	Replica *replication.Replica
	Metrics *metrics.Registry
	Config  *config.Config
	Log     zerolog.Logger
}

// New constructs a Gateway over already-constructed components.
func New(d Deps) *Gateway {
	g := &Gateway{
		log:     d.Log.With().Str("component", "gateway").Logger(),
		KS:      d.KS,
		Ops:     d.Ops,
		Queue:   d.Queue,
		Stream:  d.Stream,
		Bus:     d.Bus,
		Txn:     d.Txn,
		WAL:     d.WAL,
		Master:  d.Master,
		Replica: d.Replica,
		Metrics: d.Metrics,
		Config:  d.Config,
	}
	if d.Config != nil {
		g.Role = d.Config.Replication.Role
		g.SnapshotDir = d.Config.Persistence.Snapshot.Dir
	}
	g.commands = g.buildCommands()
	return g
}

// Handle resolves env to a command, applying transaction-queuing
// interposition (spec.md §4.K step 2) and WAL/replication durability
// (step 4) for mutating commands executed immediately.
func (g *Gateway) Handle(env Envelope) Response {
	resp := Response{RequestID: env.RequestID}

	spec, ok := g.commands[env.Command]
	if !ok {
		resp.Error = &ErrorPayload{Kind: synaperr.Internal, Message: "unknown command: " + env.Command}
		return resp
	}

	p := payload(env.Payload)

	if spec.mutating && !spec.control && env.ClientID != "" && g.Txn.InMulti(env.ClientID) {
		g.Txn.Queue(env.ClientID, txn.QueuedCommand{
			Name: env.Command,
			Keys: spec.keys(p),
			Exec: func(guard *keyspace.LockedShardSet) (any, error) {
				return g.execute(env.Command, spec, env.ClientID, p, guard)
			},
		})
		resp.OK = true
		resp.Payload = map[string]any{"status": "QUEUED"}
		return resp
	}

	val, err := g.execute(env.Command, spec, env.ClientID, p, nil)
	if err != nil {
		resp.Error = toErrorPayload(err)
		return resp
	}
	resp.OK = true
	resp.Payload = val
	return resp
}

// execute runs spec's handler and, for mutating commands, appends a WAL
// record and enqueues the mutation for replication before returning success
// (spec.md §4.K step 4: "before returning success").
func (g *Gateway) execute(name string, spec commandSpec, clientID string, p payload, guard *keyspace.LockedShardSet) (any, error) {
	if spec.mutating && g.Role == config.RoleReplica {
		return nil, synaperr.New(synaperr.ReadOnly, "mutation rejected: this engine is a replica")
	}

	val, err := spec.run(g, clientID, p, guard)
	if err != nil {
		return nil, err
	}

	if spec.mutating && g.WAL != nil {
		args, encErr := encodeArgs(p)
		if encErr != nil {
			return nil, synaperr.Wrap(synaperr.Internal, "failed to encode WAL record", encErr)
		}
		seq, walErr := g.WAL.Append(name, args)
		if walErr != nil {
			return nil, synaperr.Wrap(synaperr.DurabilityFailed, "WAL append failed", walErr)
		}
		if g.Master != nil {
			g.Master.Publish(seq, name, args)
		}
	}
	return val, nil
}

// ApplyReplicated implements replication.Applier: it re-runs the named
// command's handler against the locally decoded payload without re-entering
// WAL/replication bookkeeping, since the record already crossed the
// master's durability boundary before being shipped here (spec.md §4.J "the
// replica's apply path is identical to the master's local apply path except
// that it does not re-broadcast").
func (g *Gateway) ApplyReplicated(op string, args []string) error {
	spec, ok := g.commands[op]
	if !ok {
		return synaperr.New(synaperr.Internal, "replica received unknown op: "+op)
	}
	p, err := decodeArgs(args)
	if err != nil {
		return synaperr.Wrap(synaperr.Internal, "failed to decode replicated record", err)
	}
	_, err = spec.run(g, "", p, nil)
	return err
}

func encodeArgs(p payload) ([]string, error) {
	b, err := json.Marshal(map[string]any(p))
	if err != nil {
		return nil, err
	}
	return []string{string(b)}, nil
}

func decodeArgs(args []string) (payload, error) {
	if len(args) == 0 {
		return payload{}, nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(args[0]), &m); err != nil {
		return nil, err
	}
	return payload(m), nil
}

func toErrorPayload(err error) *ErrorPayload {
	kind, ok := synaperr.KindOf(err)
	if !ok {
		kind = synaperr.Internal
	}
	return &ErrorPayload{Kind: kind, Message: err.Error()}
}

func noKeys(payload) []string { return nil }

func keyField(p payload) []string {
	if k, err := p.str("key"); err == nil {
		return []string{k}
	}
	return nil
}
