package keyspace

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestKeyspace() *Keyspace {
	return New(zerolog.Nop())
}

func TestShardForIsStable(t *testing.T) {
	ks := newTestKeyspace()
	first := ks.ShardFor("alpha")
	for i := 0; i < 10; i++ {
		require.Same(t, first, ks.ShardFor("alpha"))
	}
}

func TestUpsertAndGet(t *testing.T) {
	ks := newTestKeyspace()
	shard := ks.ShardFor("key1")

	e := NewEntry(KindString)
	e.Str = "value1"
	shard.Upsert("key1", e, 0)

	got := shard.Get("key1", time.Now())
	require.NotNil(t, got)
	assert.Equal(t, "value1", got.Str)
	assert.Equal(t, uint64(1), got.Version)
}

func TestUpsertBumpsVersion(t *testing.T) {
	ks := newTestKeyspace()
	shard := ks.ShardFor("key1")

	shard.Upsert("key1", &Entry{Kind: KindString, Str: "a"}, 0)
	shard.Upsert("key1", &Entry{Kind: KindString, Str: "b"}, 0)

	got := shard.Get("key1", time.Now())
	assert.Equal(t, uint64(2), got.Version)
}

func TestTTLExpiry(t *testing.T) {
	ks := newTestKeyspace()
	shard := ks.ShardFor("key1")

	shard.Upsert("key1", &Entry{Kind: KindString, Str: "a"}, time.Millisecond)
	time.Sleep(5 * time.Millisecond)

	got := shard.Get("key1", time.Now())
	assert.Nil(t, got, "entry should be indistinguishable from absent after expiry")
}

func TestRemoveExpiredReturnsNotFound(t *testing.T) {
	ks := newTestKeyspace()
	shard := ks.ShardFor("key1")
	shard.Upsert("key1", &Entry{Kind: KindString, Str: "a"}, time.Millisecond)
	time.Sleep(5 * time.Millisecond)

	assert.False(t, shard.Remove("key1"))
}

func TestWithLockCreateMutateDelete(t *testing.T) {
	ks := newTestKeyspace()
	shard := ks.ShardFor("k")

	// create
	shard.WithLock("k", func(e *Entry) *Entry {
		require.Nil(t, e)
		ne := NewEntry(KindSet)
		ne.Set["a"] = struct{}{}
		return ne
	})
	e := shard.Get("k", time.Now())
	require.NotNil(t, e)
	assert.Contains(t, e.Set, "a")
	assert.Equal(t, uint64(1), e.Version)

	// mutate in place
	shard.WithLock("k", func(e *Entry) *Entry {
		e.Set["b"] = struct{}{}
		return e
	})
	e = shard.Get("k", time.Now())
	assert.Equal(t, uint64(2), e.Version)
	assert.Len(t, e.Set, 2)

	// delete
	shard.WithLock("k", func(e *Entry) *Entry { return nil })
	assert.Nil(t, shard.Get("k", time.Now()))
}

func TestCompareAndSet(t *testing.T) {
	ks := newTestKeyspace()
	shard := ks.ShardFor("k")
	shard.Upsert("k", &Entry{Kind: KindString, Str: "a"}, 0)

	ok := shard.CompareAndSet("k", 1, &Entry{Kind: KindString, Str: "b"})
	assert.True(t, ok)

	ok = shard.CompareAndSet("k", 1, &Entry{Kind: KindString, Str: "c"})
	assert.False(t, ok, "stale version must be rejected")
}

func TestLockKeysAscendingOrder(t *testing.T) {
	ks := newTestKeyspace()
	keys := []string{"one", "two", "three", "four"}
	locked := ks.LockKeys(keys)
	defer locked.Unlock()

	prev := -1
	for _, s := range locked.shards {
		assert.GreaterOrEqual(t, s.ID(), prev)
		prev = s.ID()
	}
}

func TestStatsAggregation(t *testing.T) {
	ks := newTestKeyspace()
	ks.ShardFor("a").Upsert("a", &Entry{Kind: KindString, Str: "x"}, 0)
	ks.ShardFor("b").Upsert("b", &Entry{Kind: KindString, Str: "y"}, 0)
	ks.Get("a")

	stats := ks.Stats()
	assert.Equal(t, 2, stats.TotalKeys)
	assert.GreaterOrEqual(t, stats.Writes, uint64(2))
	assert.GreaterOrEqual(t, stats.Gets, uint64(1))
}

func TestEvictOneLRU(t *testing.T) {
	s := NewShard(0)
	s.Upsert("old", &Entry{Kind: KindString, Str: "a"}, 0)
	time.Sleep(2 * time.Millisecond)
	s.Upsert("new", &Entry{Kind: KindString, Str: "b"}, 0)
	s.Get("new", time.Now()) // touch new, old stays oldest

	victim, ok := s.EvictOne(false)
	require.True(t, ok)
	assert.Equal(t, "old", victim)
}
