// Package values implements the typed value operators of spec.md §4.B:
// thin, per-variant wrappers over internal/keyspace's Shard primitives. Each
// operator begins with a Kind check and returns synaperr.WrongType on
// mismatch without mutating the entry, per spec.md §3.1 invariant 2 and the
// "Failure" paragraph of §4.B. Grounded in the teacher's internal/shard
// package for the wrapping style (counters + delegation to a lower layer)
// and in the pack's ledis-ledis.go.go for the tagged-union value approach.
package values

import (
	"strconv"
	"time"

	"github.com/hivellm/synap/internal/keyspace"
	"github.com/hivellm/synap/internal/synaperr"
)

// Ops is the typed-operator facade over a Keyspace. Constructing one per
// Engine (rather than making these free functions) mirrors the teacher's
// pattern of a component type wrapping a lower layer (Shard wraps Store).
type Ops struct {
	KS *keyspace.Keyspace
}

// New constructs an Ops facade over ks.
func New(ks *keyspace.Keyspace) *Ops {
	return &Ops{KS: ks}
}

func wrongType(key string, got keyspace.Kind, want keyspace.Kind) error {
	return synaperr.New(synaperr.WrongType,
		"key '"+key+"' holds a "+got.String()+" value, expected "+want.String())
}

func notFound(key string) error {
	return synaperr.New(synaperr.NotFound, "key '"+key+"' does not exist")
}

func outOfRange(msg string) error {
	return synaperr.New(synaperr.OutOfRange, msg)
}

func notInteger(msg string) error {
	return synaperr.New(synaperr.NotInteger, msg)
}

func itoa(n int) string { return strconv.Itoa(n) }

// withLock runs fn against the entry at key through WithLock, or through
// WithLockHeld when guard is non-nil — i.e. when this operator is running
// as a queued command inside txn.Coordinator.Exec, which already holds
// key's shard under its own LockedShardSet. Every mutating Ops method takes
// guard as its first parameter and routes through this helper instead of
// calling shard.WithLock directly, so it never re-enters a lock EXEC's
// goroutine already holds.
func (o *Ops) withLock(guard *keyspace.LockedShardSet, key string, fn func(e *keyspace.Entry) *keyspace.Entry) {
	shard := o.KS.ShardFor(key)
	if guard != nil {
		shard.WithLockHeld(key, fn)
		return
	}
	shard.WithLock(key, fn)
}

// getEntry reads the live entry at key, via the lock-free GetHeld when
// guard is non-nil (the shard is already held) or the ordinary locking Get
// otherwise. Used by multi-key operators (BitOp, PFMerge) whose reads must
// not re-lock a shard an enclosing EXEC guard already owns.
func (o *Ops) getEntry(guard *keyspace.LockedShardSet, key string) *keyspace.Entry {
	shard := o.KS.ShardFor(key)
	if guard != nil {
		return shard.GetHeld(key, time.Now())
	}
	return shard.Get(key, time.Now())
}

// upsertEntry writes e at key, via the lock-free UpsertHeld when guard is
// non-nil or the ordinary locking Upsert otherwise.
func (o *Ops) upsertEntry(guard *keyspace.LockedShardSet, key string, e *keyspace.Entry, ttl time.Duration) *keyspace.Entry {
	shard := o.KS.ShardFor(key)
	if guard != nil {
		return shard.UpsertHeld(key, e, ttl)
	}
	return shard.Upsert(key, e, ttl)
}

// removeKey deletes key, via the lock-free RemoveHeld when guard is
// non-nil or the ordinary locking Remove otherwise.
func (o *Ops) removeKey(guard *keyspace.LockedShardSet, key string) bool {
	shard := o.KS.ShardFor(key)
	if guard != nil {
		return shard.RemoveHeld(key)
	}
	return shard.Remove(key)
}
