package replication

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Applier is the replica-side sink for replicated operations: the gateway
// wires this to the same dispatch it uses for client-issued commands (minus
// the WAL append, since the entry already came from a durable master write).
type Applier interface {
	Apply(op string, args []string) error
}

// Replica is the replica-side half of component J. It consumes a feed of
// Entry values produced by a Master (or, in-process in tests, any channel),
// applies each to an Applier, and persists its progress to a StateStore so
// a restart can resume mid-stream.
type Replica struct {
	log   zerolog.Logger
	apply Applier
	store *StateStore
	hb    *HeartbeatMonitor

	lastApplied uint64 // atomic

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	runMu   sync.Mutex
	running bool

	promoted atomic.Bool
}

// NewReplica constructs a Replica applying entries to apply and persisting
// progress to store. hb may be nil to disable disconnect detection.
func NewReplica(apply Applier, store *StateStore, hb *HeartbeatMonitor, log zerolog.Logger) (*Replica, error) {
	r := &Replica{
		log:   log.With().Str("component", "replication-replica").Logger(),
		apply: apply,
		store: store,
		hb:    hb,
	}
	if store != nil {
		seq, err := store.LastAppliedSeq()
		if err != nil {
			return nil, err
		}
		r.lastApplied = seq
	}
	return r, nil
}

// LastApplied returns the most recently applied sequence number, the resume
// point to pass to Master.Subscribe.
func (r *Replica) LastApplied() uint64 {
	return atomic.LoadUint64(&r.lastApplied)
}

// Promoted reports whether Promote has been called on this replica.
func (r *Replica) Promoted() bool {
	return r.promoted.Load()
}

// Promote marks this replica as no longer following a master (spec.md §4.J
// manual promotion to master on master failure). It stops the apply loop
// and heartbeat monitor; the caller is responsible for standing up a Master
// over the same storage to begin accepting writes.
func (r *Replica) Promote() {
	r.promoted.Store(true)
	r.Stop()
	if r.hb != nil {
		r.hb.Stop()
	}
}

// Run consumes feed until it is closed or ctx is cancelled, applying each
// entry in order and persisting progress after every apply. Heartbeat
// entries update the heartbeat monitor but are not passed to the Applier.
func (r *Replica) Run(ctx context.Context, feed <-chan Entry) {
	r.runMu.Lock()
	if r.running {
		r.runMu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.running = true
	r.runMu.Unlock()

	r.wg.Add(1)
	defer r.wg.Done()

	for {
		select {
		case entry, ok := <-feed:
			if !ok {
				return
			}
			r.handle(entry)
		case <-runCtx.Done():
			return
		}
	}
}

func (r *Replica) handle(entry Entry) {
	if r.hb != nil {
		r.hb.Beat()
	}
	if entry.Op == heartbeatOp {
		if masterSeq, err := strconv.ParseUint(firstOrEmpty(entry.Args), 10, 64); err == nil {
			_ = masterSeq // available for lag metrics; applying state is unaffected
		}
		return
	}
	if r.promoted.Load() {
		return
	}
	if entry.Seq <= atomic.LoadUint64(&r.lastApplied) {
		return // already applied, e.g. replayed backlog after a reconnect
	}
	if err := r.apply.Apply(entry.Op, entry.Args); err != nil {
		r.log.Error().Err(err).Uint64("seq", entry.Seq).Str("op", entry.Op).Msg("failed to apply replicated operation")
		return
	}
	atomic.StoreUint64(&r.lastApplied, entry.Seq)
	if r.store != nil {
		if err := r.store.SaveLastAppliedSeq(entry.Seq); err != nil {
			r.log.Error().Err(err).Msg("failed to persist last_applied_seq")
		}
	}
}

// Stop halts the apply loop.
func (r *Replica) Stop() {
	r.runMu.Lock()
	if r.running {
		r.cancel()
		r.running = false
	}
	r.runMu.Unlock()
	r.wg.Wait()
}

func firstOrEmpty(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
