// Package queue implements the acknowledgment-based work queue of spec.md
// §3.2 and §4.G: a priority-ordered pending heap, an in-flight table keyed
// by message id, and a dead-letter list, with a background deadline
// sweeper delivering at-least-once semantics. Grounded on the teacher's
// internal/coordinator.HealthMonitor for the ticker/context/WaitGroup
// background-loop shape (see internal/expire, which the same shape already
// grounds) and on the teacher's per-component counters in internal/shard
// for the Stats style.
package queue

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hivellm/synap/internal/synaperr"
)

// Message is one unit of work published to a queue (spec.md §3.2).
type Message struct {
	ID          string
	Payload     string
	Priority    int // 0..9, default 5, higher is more urgent
	MaxRetries  int
	Attempts    int
	EnqueuedAt  time.Time // preserved across redelivery for tie-break ordering
	ConsumerID  string
	Deadline    time.Time
}

// heapItem is the container/heap element: a pending Message plus its index
// for heap.Fix/Remove bookkeeping.
type heapItem struct {
	msg   *Message
	index int
}

// pendingHeap orders by (priority desc, enqueue time asc) per spec.md §4.G
// "Tie-breaks: equal priority -> older enqueue time first".
type pendingHeap []*heapItem

func (h pendingHeap) Len() int { return len(h) }
func (h pendingHeap) Less(i, j int) bool {
	if h[i].msg.Priority != h[j].msg.Priority {
		return h[i].msg.Priority > h[j].msg.Priority
	}
	return h[i].msg.EnqueuedAt.Before(h[j].msg.EnqueuedAt)
}
func (h pendingHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *pendingHeap) Push(x any) {
	item := x.(*heapItem)
	item.index = len(*h)
	*h = append(*h, item)
}
func (h *pendingHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*h = old[:n-1]
	return item
}

// Stats is the snapshot returned by queue.stats.
type Stats struct {
	Pending      int
	InFlight     int
	DeadLetters  int
	Published    uint64
	Acked        uint64
	Nacked       uint64
	Redelivered  uint64
}

// Queue holds one named queue's pending heap, in-flight table, and
// dead-letter list (spec.md §3.2).
type Queue struct {
	name                     string
	defaultVisibilityTimeout time.Duration
	defaultMaxRetries        int

	mu       sync.Mutex
	pending  pendingHeap
	inFlight map[string]*Message
	dlq      []*Message

	published, acked, nacked, redelivered uint64
}

func newQueue(name string, visibility time.Duration, maxRetries int) *Queue {
	return &Queue{
		name:                     name,
		defaultVisibilityTimeout: visibility,
		defaultMaxRetries:        maxRetries,
		inFlight:                 make(map[string]*Message),
	}
}

// Manager owns every named queue in the engine (there is no Queue type
// exported standalone; all access goes through a Manager so the deadline
// sweeper can reach every queue's in-flight table).
type Manager struct {
	log zerolog.Logger

	defaultVisibility time.Duration
	defaultMaxRetries int

	mu     sync.RWMutex
	queues map[string]*Queue

	sweepInterval time.Duration
	cancel        context.CancelFunc
	wg            sync.WaitGroup
	running       bool
	runMu         sync.Mutex
}

// New constructs a Manager with the given engine-wide defaults (spec.md §6
// queue.default_visibility_timeout_secs / queue.default_max_retries).
func New(log zerolog.Logger, defaultVisibility time.Duration, defaultMaxRetries int) *Manager {
	return &Manager{
		log:               log.With().Str("component", "queue").Logger(),
		defaultVisibility: defaultVisibility,
		defaultMaxRetries: defaultMaxRetries,
		queues:            make(map[string]*Queue),
		sweepInterval:     200 * time.Millisecond,
	}
}

// Create registers a new named queue. visibility/maxRetries of zero fall
// back to the manager's configured defaults. Returns false if a queue by
// that name already exists (idempotent no-op, not an error).
func (m *Manager) Create(name string, visibility time.Duration, maxRetries int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.queues[name]; ok {
		return false
	}
	if visibility <= 0 {
		visibility = m.defaultVisibility
	}
	if maxRetries <= 0 {
		maxRetries = m.defaultMaxRetries
	}
	m.queues[name] = newQueue(name, visibility, maxRetries)
	return true
}

// Delete removes a queue entirely, discarding all pending/in-flight/DLQ
// state. Returns false if the queue did not exist.
func (m *Manager) Delete(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.queues[name]; !ok {
		return false
	}
	delete(m.queues, name)
	return true
}

// List returns every queue name currently registered.
func (m *Manager) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.queues))
	for name := range m.queues {
		out = append(out, name)
	}
	return out
}

func (m *Manager) get(name string) (*Queue, error) {
	m.mu.RLock()
	q, ok := m.queues[name]
	m.mu.RUnlock()
	if !ok {
		return nil, synaperr.New(synaperr.NotFound, "queue '"+name+"' does not exist")
	}
	return q, nil
}

// Publish creates a message with a server-assigned id and pushes it to the
// named queue's pending heap (spec.md §4.G "Publish"). priority is clamped
// to [0,9]; maxRetries <= 0 uses the queue's default.
func (m *Manager) Publish(queue, payload string, priority, maxRetries int) (string, error) {
	q, err := m.get(queue)
	if err != nil {
		return "", err
	}
	if priority < 0 {
		priority = 0
	}
	if priority > 9 {
		priority = 9
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if maxRetries <= 0 {
		maxRetries = q.defaultMaxRetries
	}
	msg := &Message{
		ID:         uuid.New().String(),
		Payload:    payload,
		Priority:   priority,
		MaxRetries: maxRetries,
		EnqueuedAt: time.Now(),
	}
	heap.Push(&q.pending, &heapItem{msg: msg})
	q.published++
	return msg.ID, nil
}

// Consume pops the highest-priority pending message and moves it to
// in-flight with a delivery deadline of now+visibility_timeout (spec.md
// §4.G "Consume"). Returns (nil, nil) if the queue is empty — not an error,
// per spec.md's "Empty queues return 'no message'".
func (m *Manager) Consume(queue, consumerID string) (*Message, error) {
	q, err := m.get(queue)
	if err != nil {
		return nil, err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.pending.Len() == 0 {
		return nil, nil
	}
	item := heap.Pop(&q.pending).(*heapItem)
	msg := item.msg
	msg.Attempts++
	msg.ConsumerID = consumerID
	msg.Deadline = time.Now().Add(q.defaultVisibilityTimeout)
	q.inFlight[msg.ID] = msg
	cp := *msg
	return &cp, nil
}

// Ack removes id from the in-flight table, completing the delivery
// (spec.md §4.G "Ack"). Errors if id is unknown (not currently in-flight).
func (m *Manager) Ack(queue, id string) error {
	q, err := m.get(queue)
	if err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.inFlight[id]; !ok {
		return synaperr.New(synaperr.NotFound, "message '"+id+"' is not in-flight on queue '"+queue+"'")
	}
	delete(q.inFlight, id)
	q.acked++
	return nil
}

// Nack requeues id: attempts was already incremented at Consume time, so
// here it only compares attempts against max_retries. The message returns
// to pending while attempts <= max_retries and moves to the DLQ otherwise,
// so it is delivered at most max_retries+1 times in total.
// Original enqueue time is preserved so a requeued message keeps its
// original priority-ordering position (spec.md "A message redelivered ...
// treated as having its original enqueue time").
func (m *Manager) Nack(queue, id string) error {
	q, err := m.get(queue)
	if err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.requeueOrDeadLetterLocked(id)
}

// requeueOrDeadLetterLocked is the shared tail of Nack and the deadline
// sweeper's redelivery path. Caller must hold q.mu.
func (q *Queue) requeueOrDeadLetterLocked(id string) error {
	msg, ok := q.inFlight[id]
	if !ok {
		return synaperr.New(synaperr.NotFound, "message '"+id+"' is not in-flight on queue '"+q.name+"'")
	}
	delete(q.inFlight, id)
	q.nacked++
	if msg.Attempts <= msg.MaxRetries {
		heap.Push(&q.pending, &heapItem{msg: msg})
		return nil
	}
	q.dlq = append(q.dlq, msg)
	return nil
}

// Stats returns the named queue's current counters (spec.md §6
// "queue.stats").
func (m *Manager) Stats(queue string) (Stats, error) {
	q, err := m.get(queue)
	if err != nil {
		return Stats{}, err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return Stats{
		Pending:     q.pending.Len(),
		InFlight:    len(q.inFlight),
		DeadLetters: len(q.dlq),
		Published:   q.published,
		Acked:       q.acked,
		Nacked:      q.nacked,
		Redelivered: q.redelivered,
	}, nil
}

// Purge clears every pending, in-flight, and dead-lettered message from the
// named queue without deleting the queue itself.
func (m *Manager) Purge(queue string) error {
	q, err := m.get(queue)
	if err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = nil
	q.inFlight = make(map[string]*Message)
	q.dlq = nil
	return nil
}

// DeadLetters returns a copy of the named queue's dead-letter list.
func (m *Manager) DeadLetters(queue string) ([]Message, error) {
	q, err := m.get(queue)
	if err != nil {
		return nil, err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Message, len(q.dlq))
	for i, m := range q.dlq {
		out[i] = *m
	}
	return out, nil
}

// Start begins the background deadline sweeper (spec.md §4.G "Deadline
// sweeper"): a periodic scan of every queue's in-flight entries whose
// deadline has passed, Nack-equivalently requeuing them.
func (m *Manager) Start(ctx context.Context) {
	m.runMu.Lock()
	defer m.runMu.Unlock()
	if m.running {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(1)
	go m.sweepLoop(runCtx)
}

// Stop halts the deadline sweeper.
func (m *Manager) Stop() {
	m.runMu.Lock()
	if !m.running {
		m.runMu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.runMu.Unlock()
	cancel()
	m.wg.Wait()
}

func (m *Manager) sweepLoop(ctx context.Context) {
	defer m.wg.Done()
	ticker := time.NewTicker(m.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.sweepOnce()
		case <-ctx.Done():
			return
		}
	}
}

// sweepOnce scans every queue's in-flight table for expired deadlines and
// requeues (or dead-letters) them, delivering the at-least-once guarantee
// of spec.md §4.G and testable property #5.
func (m *Manager) sweepOnce() {
	m.mu.RLock()
	queues := make([]*Queue, 0, len(m.queues))
	for _, q := range m.queues {
		queues = append(queues, q)
	}
	m.mu.RUnlock()

	now := time.Now()
	for _, q := range queues {
		q.mu.Lock()
		var expired []string
		for id, msg := range q.inFlight {
			if !msg.Deadline.IsZero() && msg.Deadline.Before(now) {
				expired = append(expired, id)
			}
		}
		for _, id := range expired {
			_ = q.requeueOrDeadLetterLocked(id)
			q.redelivered++
		}
		q.mu.Unlock()
	}
}

// Snapshot is the serializable form of one queue's full state, used by
// internal/snapshot to persist and restore queue.Manager across a restart
// (spec.md §4.E "a snapshot ... plus the queue/stream/pubsub state").
type Snapshot struct {
	Name              string
	DefaultVisibility time.Duration
	DefaultMaxRetries int
	Pending           []Message
	InFlight          []Message
	DeadLetters       []Message
}

// ExportState captures every queue's full state for a snapshot walk.
func (m *Manager) ExportState() []Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Snapshot, 0, len(m.queues))
	for name, q := range m.queues {
		q.mu.Lock()
		snap := Snapshot{
			Name:              name,
			DefaultVisibility: q.defaultVisibilityTimeout,
			DefaultMaxRetries: q.defaultMaxRetries,
		}
		for _, item := range q.pending {
			snap.Pending = append(snap.Pending, *item.msg)
		}
		for _, msg := range q.inFlight {
			snap.InFlight = append(snap.InFlight, *msg)
		}
		for _, msg := range q.dlq {
			snap.DeadLetters = append(snap.DeadLetters, *msg)
		}
		q.mu.Unlock()
		out = append(out, snap)
	}
	return out
}

// ImportState replaces the manager's entire queue set from snapshots,
// restoring pending order via the heap invariant and reinstating in-flight
// deadlines verbatim (a message already past its deadline at load time is
// picked up by the next sweep, same as if the crash had happened mid-flight).
func (m *Manager) ImportState(snaps []Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queues = make(map[string]*Queue, len(snaps))
	for _, snap := range snaps {
		q := newQueue(snap.Name, snap.DefaultVisibility, snap.DefaultMaxRetries)
		for i := range snap.Pending {
			msg := snap.Pending[i]
			heap.Push(&q.pending, &heapItem{msg: &msg})
		}
		for i := range snap.InFlight {
			msg := snap.InFlight[i]
			q.inFlight[msg.ID] = &msg
		}
		for i := range snap.DeadLetters {
			msg := snap.DeadLetters[i]
			q.dlq = append(q.dlq, &msg)
		}
		m.queues[snap.Name] = q
	}
}
