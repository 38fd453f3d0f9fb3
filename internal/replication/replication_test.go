package replication

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogSinceReturnsSuffix(t *testing.T) {
	l := NewLog(10)
	for i := uint64(1); i <= 5; i++ {
		l.Append(i, "kv.set", []string{"k", "v"})
	}
	entries, tooFar := l.Since(2)
	require.False(t, tooFar)
	require.Len(t, entries, 3)
	assert.Equal(t, uint64(3), entries[0].Seq)
	assert.Equal(t, uint64(5), l.LastSeq())
}

func TestLogEvictsBelowCapacityAndReportsTooFarBehind(t *testing.T) {
	l := NewLog(3)
	for i := uint64(1); i <= 5; i++ {
		l.Append(i, "kv.set", nil)
	}
	assert.Equal(t, uint64(3), l.Floor())

	_, tooFar := l.Since(1)
	assert.True(t, tooFar, "seq 1 fell below the floor, caller must snapshot")

	entries, tooFar := l.Since(3)
	require.False(t, tooFar)
	assert.Len(t, entries, 2)
}

func TestMasterPublishFansOutToSubscribers(t *testing.T) {
	l := NewLog(100)
	m := NewMaster(l, 0, zerolog.Nop())

	feed, needsSnapshot := m.Subscribe("replica-1", 0)
	require.False(t, needsSnapshot)

	m.Publish(1, "kv.set", []string{"k", "v"})

	select {
	case e := <-feed:
		assert.Equal(t, uint64(1), e.Seq)
		assert.Equal(t, "kv.set", e.Op)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for fan-out")
	}
	assert.Equal(t, 1, m.ReplicaCount())
}

func TestMasterSubscribeReplaysBacklogThenTooFarBehind(t *testing.T) {
	l := NewLog(2)
	m := NewMaster(l, 0, zerolog.Nop())
	m.Publish(1, "op1", nil)
	m.Publish(2, "op2", nil)
	m.Publish(3, "op3", nil) // evicts seq 1, floor becomes 2

	feed, needsSnapshot := m.Subscribe("replica-1", 2)
	require.False(t, needsSnapshot)
	e := <-feed
	assert.Equal(t, uint64(3), e.Seq)

	_, needsSnapshot = m.Subscribe("replica-2", 1)
	assert.True(t, needsSnapshot)
}

func TestMasterDropsSlowSubscriberInsteadOfBlocking(t *testing.T) {
	l := NewLog(100)
	m := NewMaster(l, 0, zerolog.Nop())
	_, _ = m.Subscribe("slow", 0)

	for i := uint64(1); i <= feedBuffer+5; i++ {
		m.Publish(i, "op", nil)
	}

	assert.Equal(t, 0, m.ReplicaCount(), "slow subscriber should have been dropped, not blocked on")
}

func TestMasterHeartbeatLoopSendsWithoutWrites(t *testing.T) {
	l := NewLog(10)
	m := NewMaster(l, 10*time.Millisecond, zerolog.Nop())
	feed, _ := m.Subscribe("r1", 0)

	ctx, cancel := context.WithCancel(context.Background())
	m.Start(ctx)
	defer func() {
		cancel()
		m.Stop()
	}()

	select {
	case e := <-feed:
		assert.Equal(t, heartbeatOp, e.Op)
	case <-time.After(time.Second):
		t.Fatal("expected heartbeat")
	}
}

type recordingApplier struct {
	mu      sync.Mutex
	applied []string
}

func (a *recordingApplier) Apply(op string, args []string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.applied = append(a.applied, op)
	return nil
}

func (a *recordingApplier) ops() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.applied))
	copy(out, a.applied)
	return out
}

func TestReplicaAppliesInOrderAndPersistsProgress(t *testing.T) {
	dir := t.TempDir()
	store, err := OpenStateStore(dir)
	require.NoError(t, err)
	defer store.Close()

	applier := &recordingApplier{}
	r, err := NewReplica(applier, store, nil, zerolog.Nop())
	require.NoError(t, err)

	feed := make(chan Entry, 10)
	ctx, cancel := context.WithCancel(context.Background())
	go r.Run(ctx, feed)

	feed <- Entry{Seq: 1, Op: "kv.set", Args: []string{"a", "1"}}
	feed <- Entry{Seq: 2, Op: "kv.set", Args: []string{"b", "2"}}
	feed <- Entry{Seq: 0, Op: heartbeatOp, Args: []string{"2"}}

	require.Eventually(t, func() bool {
		return r.LastApplied() == 2
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, []string{"kv.set", "kv.set"}, applier.ops())

	cancel()
	r.Stop()

	seq, err := store.LastAppliedSeq()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), seq)
}

func TestReplicaSkipsAlreadyAppliedEntriesOnReplay(t *testing.T) {
	dir := t.TempDir()
	store, err := OpenStateStore(dir)
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.SaveLastAppliedSeq(5))

	applier := &recordingApplier{}
	r, err := NewReplica(applier, store, nil, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, uint64(5), r.LastApplied())

	feed := make(chan Entry, 10)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx, feed)

	feed <- Entry{Seq: 3, Op: "stale.op", Args: nil} // already applied, must be skipped
	feed <- Entry{Seq: 6, Op: "fresh.op", Args: nil}

	require.Eventually(t, func() bool {
		return r.LastApplied() == 6
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"fresh.op"}, applier.ops())

	r.Stop()
}

func TestReplicaPromoteStopsApplyingAndIsIdempotentToStop(t *testing.T) {
	applier := &recordingApplier{}
	r, err := NewReplica(applier, nil, nil, zerolog.Nop())
	require.NoError(t, err)

	feed := make(chan Entry, 1)
	ctx := context.Background()
	go r.Run(ctx, feed)

	r.Promote()
	assert.True(t, r.Promoted())

	feed <- Entry{Seq: 1, Op: "kv.set", Args: nil}
	time.Sleep(10 * time.Millisecond)
	assert.Empty(t, applier.ops(), "entries arriving after promotion must not be applied")

	r.Stop() // a second Stop after Promote must return without blocking
}

func TestHeartbeatMonitorDeclaresDisconnectAfterMaxMisses(t *testing.T) {
	var mu sync.Mutex
	disconnected := false

	hb := NewHeartbeatMonitor(10*time.Millisecond, 2, zerolog.Nop())
	hb.SetOnDisconnect(func() {
		mu.Lock()
		disconnected = true
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	hb.Start(ctx)
	defer func() {
		cancel()
		hb.Stop()
	}()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return disconnected
	}, time.Second, 5*time.Millisecond)
	assert.False(t, hb.Connected())
}

func TestHeartbeatMonitorBeatResetsAndFiresReconnect(t *testing.T) {
	hb := NewHeartbeatMonitor(5*time.Millisecond, 1, zerolog.Nop())
	reconnected := false
	hb.SetOnReconnect(func() { reconnected = true })

	ctx, cancel := context.WithCancel(context.Background())
	hb.Start(ctx)
	defer func() {
		cancel()
		hb.Stop()
	}()

	require.Eventually(t, func() bool { return !hb.Connected() }, time.Second, 2*time.Millisecond)
	hb.Beat()
	assert.True(t, hb.Connected())
	assert.True(t, reconnected)
}

func TestStateStorePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	store, err := OpenStateStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.SaveLastAppliedSeq(42))
	require.NoError(t, store.Close())

	store2, err := OpenStateStore(dir)
	require.NoError(t, err)
	defer store2.Close()
	seq, err := store2.LastAppliedSeq()
	require.NoError(t, err)
	assert.Equal(t, uint64(42), seq)
}

func TestStateStoreDefaultsToZero(t *testing.T) {
	dir := t.TempDir()
	store, err := OpenStateStore(dir)
	require.NoError(t, err)
	defer store.Close()
	seq, err := store.LastAppliedSeq()
	require.NoError(t, err)
	assert.Zero(t, seq)
}
