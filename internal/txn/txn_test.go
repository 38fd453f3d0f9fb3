package txn

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hivellm/synap/internal/keyspace"
)

func setString(ks *keyspace.Keyspace, key, value string) {
	shard := ks.ShardFor(key)
	shard.Upsert(key, &keyspace.Entry{Kind: keyspace.KindString, Str: value}, 0)
}

func getString(ks *keyspace.Keyspace, key string) string {
	e := ks.Get(key)
	if e == nil {
		return ""
	}
	return e.Str
}

// TestTransactionalConflictAborts exercises spec.md's boundary scenario S2:
// client1 watches x (absent), client2 writes x, client1's EXEC must abort
// and leave x at client2's value.
func TestTransactionalConflictAborts(t *testing.T) {
	ks := keyspace.New(zerolog.Nop())
	co := New(ks)

	co.Watch("client1", "x")
	setString(ks, "x", "hi") // client2's concurrent write

	co.Multi("client1")
	co.Queue("client1", QueuedCommand{
		Name: "SET",
		Keys: []string{"x"},
		Exec: func(*keyspace.LockedShardSet) (any, error) {
			ks.ShardFor("x").UpsertHeld("x", &keyspace.Entry{Kind: keyspace.KindString, Str: "bye"}, 0)
			return nil, nil
		},
	})

	results, ok := co.Exec("client1")
	assert.False(t, ok)
	assert.Nil(t, results)
	assert.Equal(t, "hi", getString(ks, "x"))
}

func TestExecCommitsWhenNoConflict(t *testing.T) {
	ks := keyspace.New(zerolog.Nop())
	co := New(ks)

	co.Watch("client1", "x")
	co.Multi("client1")
	co.Queue("client1", QueuedCommand{
		Name: "SET",
		Keys: []string{"x"},
		Exec: func(*keyspace.LockedShardSet) (any, error) {
			ks.ShardFor("x").UpsertHeld("x", &keyspace.Entry{Kind: keyspace.KindString, Str: "committed"}, 0)
			return "OK", nil
		},
	})

	results, ok := co.Exec("client1")
	require.True(t, ok)
	require.Len(t, results, 1)
	assert.Equal(t, "OK", results[0].Value)
	assert.Equal(t, "committed", getString(ks, "x"))
}

func TestPerCommandErrorsDoNotAbortTransaction(t *testing.T) {
	ks := keyspace.New(zerolog.Nop())
	co := New(ks)
	co.Multi("c1")
	co.Queue("c1", QueuedCommand{
		Name: "BAD",
		Keys: []string{"k"},
		Exec: func(*keyspace.LockedShardSet) (any, error) {
			return nil, AbortedError() // any per-command error type, reused here
		},
	})
	co.Queue("c1", QueuedCommand{
		Name: "OK",
		Keys: []string{"k2"},
		Exec: func(*keyspace.LockedShardSet) (any, error) {
			return "done", nil
		},
	})

	results, ok := co.Exec("c1")
	require.True(t, ok)
	require.Len(t, results, 2)
	assert.Error(t, results[0].Err)
	assert.Equal(t, "done", results[1].Value)
}

func TestDiscardClearsQueueWithoutExecuting(t *testing.T) {
	ks := keyspace.New(zerolog.Nop())
	co := New(ks)
	co.Multi("c1")
	ran := false
	co.Queue("c1", QueuedCommand{Keys: []string{"k"}, Exec: func(*keyspace.LockedShardSet) (any, error) {
		ran = true
		return nil, nil
	}})
	co.Discard("c1")
	assert.False(t, co.InMulti("c1"))

	results, ok := co.Exec("c1")
	assert.True(t, ok)
	assert.Nil(t, results)
	assert.False(t, ran)
}

func TestUnwatchClearsWatchSetOnly(t *testing.T) {
	ks := keyspace.New(zerolog.Nop())
	co := New(ks)
	co.Watch("c1", "x")
	setString(ks, "x", "changed")
	co.Unwatch("c1")

	co.Multi("c1")
	co.Queue("c1", QueuedCommand{Keys: nil, Exec: func(*keyspace.LockedShardSet) (any, error) { return "ok", nil }})
	results, ok := co.Exec("c1")
	require.True(t, ok)
	require.Len(t, results, 1)
	assert.Equal(t, "ok", results[0].Value)
}
