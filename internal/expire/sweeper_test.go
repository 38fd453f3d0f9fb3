package expire

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hivellm/synap/internal/keyspace"
)

func TestSweeperReclaimsExpiredKeys(t *testing.T) {
	ks := keyspace.New(zerolog.Nop())
	shard := ks.ShardFor("k1")
	shard.Upsert("k1", &keyspace.Entry{Kind: keyspace.KindString, Str: "v"}, time.Millisecond)

	sw := New(ks, zerolog.Nop(), 5*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sw.Start(ctx)
	defer sw.Stop()

	require.Eventually(t, func() bool {
		return !ks.Exists("k1")
	}, time.Second, 10*time.Millisecond)
}

func TestSweeperStartIsIdempotent(t *testing.T) {
	ks := keyspace.New(zerolog.Nop())
	sw := New(ks, zerolog.Nop(), time.Hour)
	ctx := context.Background()

	sw.Start(ctx)
	sw.Start(ctx) // must not panic or double-start
	sw.Stop()
}

func TestSweepShardStopsUnderThreshold(t *testing.T) {
	ks := keyspace.New(zerolog.Nop())
	shard := ks.Shard(0)

	// One key with a live TTL far in the future: sampled but never expires,
	// so the round must not loop forever.
	shard.Upsert("alive", &keyspace.Entry{Kind: keyspace.KindString, Str: "v"}, time.Hour)

	sw := New(ks, zerolog.Nop(), time.Hour)
	sampled, expired := sw.sweepShard(shard)
	assert.Equal(t, 1, sampled)
	assert.Equal(t, 0, expired)
}
