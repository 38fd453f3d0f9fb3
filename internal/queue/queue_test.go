package queue

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hivellm/synap/internal/synaperr"
)

func newManager() *Manager {
	return New(zerolog.Nop(), time.Second, 3)
}

func TestPublishConsumeAck(t *testing.T) {
	m := newManager()
	require.True(t, m.Create("q", time.Second, 1))

	id, err := m.Publish("q", "job1", 5, 0)
	require.NoError(t, err)

	msg, err := m.Consume("q", "c1")
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Equal(t, id, msg.ID)
	assert.Equal(t, 1, msg.Attempts)

	require.NoError(t, m.Ack("q", id))
	stats, err := m.Stats("q")
	require.NoError(t, err)
	assert.Equal(t, 0, stats.InFlight)
	assert.Equal(t, uint64(1), stats.Acked)
}

func TestConsumeEmptyQueueReturnsNoMessage(t *testing.T) {
	m := newManager()
	require.True(t, m.Create("q", time.Second, 3))
	msg, err := m.Consume("q", "c1")
	require.NoError(t, err)
	assert.Nil(t, msg)
}

func TestPriorityOrderingWithTieBreak(t *testing.T) {
	m := newManager()
	require.True(t, m.Create("q", time.Minute, 3))

	_, err := m.Publish("q", "low", 1, 0)
	require.NoError(t, err)
	_, err = m.Publish("q", "high", 9, 0)
	require.NoError(t, err)
	_, err = m.Publish("q", "mid", 5, 0)
	require.NoError(t, err)

	first, _ := m.Consume("q", "c1")
	second, _ := m.Consume("q", "c1")
	third, _ := m.Consume("q", "c1")
	assert.Equal(t, "high", first.Payload)
	assert.Equal(t, "mid", second.Payload)
	assert.Equal(t, "low", third.Payload)
}

// TestAtLeastOnceWithDLQ exercises spec.md's boundary scenario S3: a message
// that is never acked is redelivered once the visibility timeout elapses,
// then dead-lettered once its retry budget (max_retries=1, so 2 total
// delivery attempts) is exhausted.
func TestAtLeastOnceWithDLQ(t *testing.T) {
	m := newManager()
	m.sweepInterval = 10 * time.Millisecond
	require.True(t, m.Create("q", 30*time.Millisecond, 1))

	_, err := m.Publish("q", "job1", 5, 0)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx)
	defer m.Stop()

	first, err := m.Consume("q", "c1")
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, 1, first.Attempts)

	require.Eventually(t, func() bool {
		stats, _ := m.Stats("q")
		return stats.Pending == 1
	}, time.Second, 5*time.Millisecond)

	second, err := m.Consume("q", "c2")
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, 2, second.Attempts)

	require.Eventually(t, func() bool {
		stats, _ := m.Stats("q")
		return stats.DeadLetters == 1
	}, time.Second, 5*time.Millisecond)

	stats, err := m.Stats("q")
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Pending)
	assert.Equal(t, 0, stats.InFlight)
	assert.Equal(t, 1, stats.DeadLetters)
}

func TestAckUnknownIDIsNotFound(t *testing.T) {
	m := newManager()
	require.True(t, m.Create("q", time.Second, 3))
	err := m.Ack("q", "bogus")
	require.Error(t, err)
	assert.True(t, synaperr.Is(err, synaperr.NotFound))
}

func TestNackReturnsToPendingUntilRetriesExhausted(t *testing.T) {
	m := newManager()
	require.True(t, m.Create("q", time.Minute, 2))

	id, err := m.Publish("q", "job", 5, 0)
	require.NoError(t, err)

	msg, _ := m.Consume("q", "c1")
	require.NoError(t, m.Nack("q", id))
	stats, _ := m.Stats("q")
	assert.Equal(t, 1, stats.Pending)

	msg, _ = m.Consume("q", "c1")
	require.NoError(t, m.Nack("q", msg.ID))
	stats, _ = m.Stats("q")
	assert.Equal(t, 1, stats.Pending)

	msg, _ = m.Consume("q", "c1")
	require.NoError(t, m.Nack("q", msg.ID))
	stats, _ = m.Stats("q")
	assert.Equal(t, 0, stats.Pending)
	assert.Equal(t, 1, stats.DeadLetters)
}

func TestDeleteUnknownQueueIsFalse(t *testing.T) {
	m := newManager()
	assert.False(t, m.Delete("nope"))
}
