// Package txn implements the transaction coordinator of spec.md §4.F:
// per-client MULTI/EXEC queuing with optimistic WATCH. It does not know how
// to execute any particular command — callers (internal/gateway) hand it
// already-bound QueuedCommand closures, each declaring the keys it touches
// so EXEC can take a single lock-ordered guard over their union, the way
// internal/keyspace.Keyspace.LockKeys already guarantees ascending-index
// acquisition for any multi-key operator.
package txn

import (
	"sync"

	"github.com/hivellm/synap/internal/keyspace"
	"github.com/hivellm/synap/internal/synaperr"
)

// QueuedCommand is one command queued by MULTI, ready for EXEC to run under
// the transaction's lock guard. Exec receives the LockedShardSet EXEC
// already holds over the union of watched and queued keys, so the handler
// it wraps must operate through the shard's lock-free "Held" primitives
// rather than re-acquiring a lock EXEC's goroutine already owns.
type QueuedCommand struct {
	Name string
	Keys []string
	Exec func(guard *keyspace.LockedShardSet) (any, error)
}

// Result is one queued command's outcome: either a value or a per-command
// error. Per spec.md §4.F, a queued command's own failure (e.g. WrongType)
// does not abort EXEC — it is reported here instead (Redis-compatible).
type Result struct {
	Value any
	Err   error
}

// clientState is the per-client ephemeral transaction state of spec.md §4.F:
// a queued command list, a watch set, and a "multi active" flag.
type clientState struct {
	multiActive bool
	queued      []QueuedCommand
	watches     map[string]uint64 // key -> version observed at WATCH time
}

func newClientState() *clientState {
	return &clientState{watches: make(map[string]uint64)}
}

// Coordinator owns one clientState per client_id (component F).
type Coordinator struct {
	ks *keyspace.Keyspace

	mu      sync.Mutex
	clients map[string]*clientState
}

// New constructs a Coordinator over ks, used for EXEC's version checks and
// lock-ordered guard.
func New(ks *keyspace.Keyspace) *Coordinator {
	return &Coordinator{
		ks:      ks,
		clients: make(map[string]*clientState),
	}
}

func (c *Coordinator) state(clientID string) *clientState {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.clients[clientID]
	if !ok {
		st = newClientState()
		c.clients[clientID] = st
	}
	return st
}

// InMulti reports whether clientID currently has an active transaction
// (used by the gateway to decide whether a mutating command should be
// queued instead of executed immediately).
func (c *Coordinator) InMulti(clientID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.clients[clientID]
	return ok && st.multiActive
}

// Multi marks clientID as being in a transaction (spec.md §4.F "MULTI").
// Calling it while already active is a no-op: the queue and watch set are
// left untouched.
func (c *Coordinator) Multi(clientID string) {
	st := c.state(clientID)
	c.mu.Lock()
	defer c.mu.Unlock()
	st.multiActive = true
}

// Watch records the current version of each key for clientID (0 if
// absent). WATCH may be called before MULTI (spec.md §4.F).
func (c *Coordinator) Watch(clientID string, keys ...string) {
	st := c.state(clientID)
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		st.watches[k] = c.ks.ShardFor(k).VersionOf(k)
	}
}

// Unwatch clears clientID's watch set without touching its queue.
func (c *Coordinator) Unwatch(clientID string) {
	st := c.state(clientID)
	c.mu.Lock()
	defer c.mu.Unlock()
	st.watches = make(map[string]uint64)
}

// Queue appends cmd to clientID's pending transaction queue. Callers should
// only do this once InMulti(clientID) is true.
func (c *Coordinator) Queue(clientID string, cmd QueuedCommand) {
	st := c.state(clientID)
	c.mu.Lock()
	defer c.mu.Unlock()
	st.queued = append(st.queued, cmd)
}

// Discard clears clientID's queued commands and watches without executing
// them (spec.md §4.F "DISCARD").
func (c *Coordinator) Discard(clientID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.clients, clientID)
}

// Exec verifies every watched key's version is unchanged, and if so runs
// every queued command in order under a single lock-ordered guard over the
// union of watched and touched keys, returning their results. If any
// watched key's version has changed, EXEC aborts: queued commands are
// discarded and ok is false (spec.md §4.F "EXEC", testable property #4).
// Transaction state is cleared either way.
func (c *Coordinator) Exec(clientID string) (results []Result, ok bool) {
	c.mu.Lock()
	st, exists := c.clients[clientID]
	if exists {
		delete(c.clients, clientID)
	}
	c.mu.Unlock()
	if !exists {
		return nil, true // nothing queued: a no-op EXEC succeeds trivially
	}

	keySet := make(map[string]struct{})
	for k := range st.watches {
		keySet[k] = struct{}{}
	}
	for _, cmd := range st.queued {
		for _, k := range cmd.Keys {
			keySet[k] = struct{}{}
		}
	}
	keys := make([]string, 0, len(keySet))
	for k := range keySet {
		keys = append(keys, k)
	}

	locked := c.ks.LockKeys(keys)
	defer locked.Unlock()

	for key, watchedVersion := range st.watches {
		if c.ks.ShardFor(key).VersionLocked(key) != watchedVersion {
			return nil, false
		}
	}

	out := make([]Result, 0, len(st.queued))
	for _, cmd := range st.queued {
		val, err := cmd.Exec(locked)
		out = append(out, Result{Value: val, Err: err})
	}
	return out, true
}

// AbortedError is the sentinel error form returned by the gateway when
// EXEC's ok is false, matching spec.md §7's TransactionAborted kind.
func AbortedError() error {
	return synaperr.New(synaperr.TransactionAborted, "a watched key's version changed before EXEC")
}
