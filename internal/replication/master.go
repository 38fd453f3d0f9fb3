package replication

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const feedBuffer = 256

// subscriber is one connected replica's fan-out channel.
type subscriber struct {
	feed chan Entry
}

// Master is the master-side half of component J: it owns the replication
// Log and fans every accepted mutation out to subscribed replicas.
type Master struct {
	log zerolog.Logger
	rl  *Log

	mu          sync.Mutex
	subscribers map[string]*subscriber

	heartbeatInterval time.Duration
	cancel            context.CancelFunc
	wg                sync.WaitGroup
	running           bool
	runMu             sync.Mutex
}

// NewMaster constructs a Master over rl, sending heartbeats on
// heartbeatInterval once Start is called.
func NewMaster(rl *Log, heartbeatInterval time.Duration, log zerolog.Logger) *Master {
	return &Master{
		log:               log.With().Str("component", "replication-master").Logger(),
		rl:                rl,
		subscribers:       make(map[string]*subscriber),
		heartbeatInterval: heartbeatInterval,
	}
}

// Publish appends seq/op/args to the log (the caller has already assigned
// seq via the WAL) and fans it out to every subscriber. A subscriber whose
// feed is full is dropped rather than blocking the publish — spec.md §5
// "back-pressure does not stall the master's writers" — it must
// resubscribe, at which point Subscribe will decide if it needs a snapshot.
func (m *Master) Publish(seq uint64, op string, args []string) {
	m.rl.Append(seq, op, args)
	entry := Entry{Seq: seq, Op: op, Args: args}

	m.mu.Lock()
	defer m.mu.Unlock()
	for id, sub := range m.subscribers {
		select {
		case sub.feed <- entry:
		default:
			close(sub.feed)
			delete(m.subscribers, id)
			m.log.Warn().Str("replica_id", id).Msg("replica fell behind, dropped subscription")
		}
	}
}

// Subscribe registers replicaID for streaming from fromSeq (exclusive) and
// returns the feed channel to read from. needsSnapshot is true if fromSeq
// has already fallen below the log's floor, per spec.md §4.J: the caller
// must serve a snapshot (internal/snapshot.Take's output) before handing the
// replica this feed.
func (m *Master) Subscribe(replicaID string, fromSeq uint64) (feed <-chan Entry, needsSnapshot bool) {
	backlog, tooFar := m.rl.Since(fromSeq)

	m.mu.Lock()
	defer m.mu.Unlock()
	sub := &subscriber{feed: make(chan Entry, feedBuffer+len(backlog))}
	m.subscribers[replicaID] = sub
	for _, e := range backlog {
		sub.feed <- e // the buffer is sized to hold the whole backlog
	}
	return sub.feed, tooFar
}

// Unsubscribe removes replicaID's feed, e.g. on disconnect.
func (m *Master) Unsubscribe(replicaID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sub, ok := m.subscribers[replicaID]; ok {
		close(sub.feed)
		delete(m.subscribers, replicaID)
	}
}

// Start begins the heartbeat loop (spec.md §4.J "master sends periodic
// heartbeats even with no writes").
func (m *Master) Start(ctx context.Context) {
	m.runMu.Lock()
	defer m.runMu.Unlock()
	if m.running || m.heartbeatInterval <= 0 {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(1)
	go m.heartbeatLoop(runCtx)
}

// Stop halts the heartbeat loop and closes every subscriber feed.
func (m *Master) Stop() {
	m.runMu.Lock()
	if m.running {
		m.cancel()
		m.running = false
	}
	m.runMu.Unlock()
	m.wg.Wait()

	m.mu.Lock()
	defer m.mu.Unlock()
	for id, sub := range m.subscribers {
		close(sub.feed)
		delete(m.subscribers, id)
	}
}

func (m *Master) heartbeatLoop(ctx context.Context) {
	defer m.wg.Done()
	ticker := time.NewTicker(m.heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.sendHeartbeat()
		case <-ctx.Done():
			return
		}
	}
}

// sendHeartbeat fans a heartbeat entry out to every subscriber without
// advancing the log's last sequence number (heartbeats carry the current
// last seq as their payload so replicas can compute lag without it counting
// as a mutation of its own).
func (m *Master) sendHeartbeat() {
	entry := Entry{Seq: m.rl.LastSeq(), Op: heartbeatOp, Args: []string{strconv.FormatUint(m.rl.LastSeq(), 10)}}
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, sub := range m.subscribers {
		select {
		case sub.feed <- entry:
		default:
			close(sub.feed)
			delete(m.subscribers, id)
		}
	}
}

// ReplicaCount reports how many replicas currently have an active feed.
func (m *Master) ReplicaCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subscribers)
}
