package stream

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPartitionedOrdering exercises spec.md's boundary scenario S4: two
// publishes under the same partition key land in the same partition with
// strictly increasing offsets; a third under a different key is independent.
func TestPartitionedOrdering(t *testing.T) {
	m := New(zerolog.Nop())
	require.True(t, m.CreateRoom("s", 2))

	p1, o1, err := m.Publish("s", "ev1", "data1", "u1")
	require.NoError(t, err)
	p2, o2, err := m.Publish("s", "ev2", "data2", "u1")
	require.NoError(t, err)
	assert.Equal(t, p1, p2)
	assert.Greater(t, o2, o1)

	p3, _, err := m.Publish("s", "ev3", "data3", "u2")
	require.NoError(t, err)

	records, gap, err := m.Read("s", p1, 0, 10)
	require.NoError(t, err)
	assert.False(t, gap)
	if p3 == p1 {
		require.Len(t, records, 3)
	} else {
		require.Len(t, records, 2)
		assert.Equal(t, "ev1", records[0].Event)
		assert.Equal(t, "ev2", records[1].Event)
	}
}

func TestOffsetsContiguousWithinRetention(t *testing.T) {
	m := New(zerolog.Nop())
	require.True(t, m.CreateRoom("s", 1))
	var offsets []uint64
	for i := 0; i < 5; i++ {
		_, off, err := m.Publish("s", "ev", "d", "")
		require.NoError(t, err)
		offsets = append(offsets, off)
	}
	for i, off := range offsets {
		assert.Equal(t, uint64(i), off)
	}
}

func TestReadBelowRetentionHorizonReturnsGap(t *testing.T) {
	m := New(zerolog.Nop())
	require.True(t, m.CreateRoom("s", 1))
	for i := 0; i < 5; i++ {
		_, _, err := m.Publish("s", "ev", "d", "")
		require.NoError(t, err)
	}
	require.NoError(t, m.SetRetention("s", 2, 0))

	_, gap, err := m.Read("s", 0, 0, 10)
	require.NoError(t, err)
	assert.True(t, gap)

	stats, err := m.Stats("s")
	require.NoError(t, err)
	records, gap, err := m.Read("s", 0, stats.Partitions[0].MinOffset, 10)
	require.NoError(t, err)
	assert.False(t, gap)
	assert.Len(t, records, 2)
}

func TestConsumerGroupDistributesPartitionsAndAdvancesOffset(t *testing.T) {
	m := New(zerolog.Nop())
	require.True(t, m.CreateRoom("s", 2))
	require.NoError(t, m.CreateGroup("s", "g1"))

	for i := 0; i < 3; i++ {
		_, _, err := m.Publish("s", "ev", "d", "")
		require.NoError(t, err)
	}

	batch, err := m.ConsumeGroup("s", "g1", "c1", 10)
	require.NoError(t, err)
	total := 0
	for _, recs := range batch {
		total += len(recs)
	}
	assert.Equal(t, 3, total)

	// Nothing new to read after consuming everything once.
	batch, err = m.ConsumeGroup("s", "g1", "c1", 10)
	require.NoError(t, err)
	assert.Len(t, batch, 0)
}

func TestConsumerGroupOwnershipIsStableAcrossRebalance(t *testing.T) {
	m := New(zerolog.Nop())
	require.True(t, m.CreateRoom("s", 4))
	require.NoError(t, m.CreateGroup("s", "g1"))

	_, err := m.ConsumeGroup("s", "g1", "c1", 10)
	require.NoError(t, err)
	s, _ := m.get("s")
	g, _ := s.group("g1")
	g.mu.Lock()
	before := map[int]string{}
	for k, v := range g.owners {
		before[k] = v
	}
	g.mu.Unlock()

	_, err = m.ConsumeGroup("s", "g1", "c2", 10)
	require.NoError(t, err)

	g.mu.Lock()
	defer g.mu.Unlock()
	// At least one partition c1 owned before must still be owned by c1.
	stillOwnsOne := false
	for k, v := range before {
		if v == "c1" && g.owners[k] == "c1" {
			stillOwnsOne = true
		}
	}
	assert.True(t, stillOwnsOne)
}

func TestPublishUnknownStreamIsNotFound(t *testing.T) {
	m := New(zerolog.Nop())
	_, _, err := m.Publish("nope", "ev", "d", "")
	require.Error(t, err)
}

func TestRetentionByAgeDropsOldRecords(t *testing.T) {
	m := New(zerolog.Nop())
	require.True(t, m.CreateRoom("s", 1))
	_, _, err := m.Publish("s", "old", "d", "")
	require.NoError(t, err)
	require.NoError(t, m.SetRetention("s", 0, time.Millisecond))
	time.Sleep(5 * time.Millisecond)
	_, _, err = m.Publish("s", "new", "d", "")
	require.NoError(t, err)

	stats, err := m.Stats("s")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Partitions[0].Retained)
}
