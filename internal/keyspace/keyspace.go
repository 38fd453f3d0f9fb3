package keyspace

import (
	"hash/fnv"
	"sort"
	"time"

	"github.com/rs/zerolog"
)

// ShardCount is the fixed 64-way fan-out of spec.md §3.1.
const ShardCount = 64

// Keyspace is the sharded mapping from key to typed value (component A). It
// owns ShardCount independent Shards and routes keys to them by FNV-1a hash,
// the same hashing scheme the teacher's internal/shard.Shard.OwnsKey uses for
// its own (unused, single-node) consistent-hash routing.
type Keyspace struct {
	shards [ShardCount]*Shard
	log    zerolog.Logger
}

// New constructs a Keyspace with all ShardCount shards initialized.
func New(log zerolog.Logger) *Keyspace {
	ks := &Keyspace{log: log.With().Str("component", "keyspace").Logger()}
	for i := range ks.shards {
		ks.shards[i] = NewShard(i)
	}
	return ks
}

// ShardFor returns the shard owning key (invariant 1 of spec.md §3.1:
// exactly one shard owns a given key at any time).
func (ks *Keyspace) ShardFor(key string) *Shard {
	return ks.shards[ks.indexFor(key)]
}

func (ks *Keyspace) indexFor(key string) int {
	h := fnv.New64a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum64() % uint64(ShardCount))
}

// Shard returns the shard at the given index, for the expiration sweeper and
// snapshot walker which must iterate every shard in order.
func (ks *Keyspace) Shard(i int) *Shard { return ks.shards[i] }

// Shards returns all shards in ascending index order. Used by operators that
// must lock shards in ascending order to avoid deadlock (spec.md §3.1
// invariant 5, §4.A "multi-shard ordered acquisition").
func (ks *Keyspace) Shards() [ShardCount]*Shard { return ks.shards }

// Len returns the total number of live keys across all shards.
func (ks *Keyspace) Len() int {
	total := 0
	for _, s := range ks.shards {
		total += s.Len()
	}
	return total
}

// ShardsForKeys returns the distinct shards owning the given keys, sorted by
// ascending shard index, ready for ordered multi-shard locking.
func (ks *Keyspace) ShardsForKeys(keys []string) []*Shard {
	seen := make(map[int]*Shard)
	for _, k := range keys {
		idx := ks.indexFor(k)
		seen[idx] = ks.shards[idx]
	}
	out := make([]*Shard, 0, len(seen))
	for _, s := range seen {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// LockedShardSet is a helper returned by LockKeys; its Unlock must be
// deferred immediately after a successful lock to guarantee release even if
// the operator panics. Holding one is a guard that every shard it covers is
// already write-locked by the current goroutine — callers threading it
// through (txn.Coordinator.Exec, internal/values' guard-aware operators)
// must use the shard's "Held" methods instead of re-locking.
type LockedShardSet struct {
	shards []*Shard
}

// LockKeys acquires exclusive locks on every shard touched by keys, in
// ascending shard-index order, and returns a handle to release them. This is
// the mechanical implementation of spec.md §3.1 invariant 5 and §4.A's
// "lock-ordered multi-shard acquisition" for operators spanning multiple
// keys (MGET, SINTER, LMOVE, transaction EXEC).
func (ks *Keyspace) LockKeys(keys []string) *LockedShardSet {
	shards := ks.ShardsForKeys(keys)
	for _, s := range shards {
		s.mu.Lock()
	}
	return &LockedShardSet{shards: shards}
}

// Unlock releases the shards in descending order (the reverse of
// acquisition), which is not required for correctness under a strict global
// ascending order but is good mutex hygiene.
func (l *LockedShardSet) Unlock() {
	for i := len(l.shards) - 1; i >= 0; i-- {
		l.shards[i].mu.Unlock()
	}
}

// Get is a convenience wrapper routing to the owning shard.
func (ks *Keyspace) Get(key string) *Entry {
	return ks.ShardFor(key).Get(key, time.Now())
}

// Remove is a convenience wrapper routing to the owning shard.
func (ks *Keyspace) Remove(key string) bool {
	return ks.ShardFor(key).Remove(key)
}

// Exists reports whether key currently has a live (non-expired) entry.
func (ks *Keyspace) Exists(key string) bool {
	return ks.Get(key) != nil
}

// KindOf returns the Kind of the live entry at key, or KindNone if absent.
func (ks *Keyspace) KindOf(key string) Kind {
	e := ks.Get(key)
	if e == nil {
		return KindNone
	}
	return e.Kind
}

// Stats aggregates per-shard operation counters for admin.stats/kv.stats.
type Stats struct {
	TotalKeys int
	Gets      uint64
	Writes    uint64
	Deletes   uint64
	Expired   uint64
	Evictions uint64
}

// Stats returns the aggregate keyspace statistics.
func (ks *Keyspace) Stats() Stats {
	var s Stats
	for _, shard := range ks.shards {
		s.TotalKeys += shard.Len()
		ops := shard.Stats()
		s.Gets += ops.Gets
		s.Writes += ops.Writes
		s.Deletes += ops.Deletes
		s.Expired += ops.Expired
		s.Evictions += ops.Evictions
	}
	return s
}

// EstimatedBytes sums the approximate footprint of every shard, for the
// eviction sketch's comparison against kv_store.max_memory_bytes.
func (ks *Keyspace) EstimatedBytes() int64 {
	var total int64
	for _, shard := range ks.shards {
		total += int64(shard.EstimatedBytes())
	}
	return total
}
