package replication

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// HeartbeatMonitor watches the timestamp of the last entry (data or
// heartbeat) received from the master and declares the master disconnected
// after missing maxMisses consecutive intervals. Adapted from the teacher's
// coordinator.HealthMonitor: a ticker plus consecutive-failure counting plus
// a state-change callback, with the HTTP poll replaced by a passive
// "time since last beat" check since the replica is a message consumer, not
// a poller, in this protocol.
type HeartbeatMonitor struct {
	log zerolog.Logger

	interval    time.Duration
	maxMisses   int
	onDisconnect func()
	onReconnect  func()

	mu         sync.Mutex
	lastBeat   time.Time
	connected  bool
	misses     int

	cancel context.CancelFunc
	wg     sync.WaitGroup
	runMu  sync.Mutex
	running bool
}

// NewHeartbeatMonitor constructs a monitor that ticks every interval and
// declares disconnection after maxMisses consecutive ticks with no beat.
func NewHeartbeatMonitor(interval time.Duration, maxMisses int, log zerolog.Logger) *HeartbeatMonitor {
	if maxMisses < 1 {
		maxMisses = 3
	}
	return &HeartbeatMonitor{
		log:       log.With().Str("component", "replication-heartbeat").Logger(),
		interval:  interval,
		maxMisses: maxMisses,
		lastBeat:  time.Now(),
		connected: true,
	}
}

// SetOnDisconnect registers the callback invoked the moment the monitor
// transitions from connected to disconnected.
func (h *HeartbeatMonitor) SetOnDisconnect(fn func()) {
	h.onDisconnect = fn
}

// SetOnReconnect registers the callback invoked when a beat arrives after a
// disconnected period.
func (h *HeartbeatMonitor) SetOnReconnect(fn func()) {
	h.onReconnect = fn
}

// Beat records receipt of any entry from the master (heartbeat or data),
// resetting the miss counter.
func (h *HeartbeatMonitor) Beat() {
	h.mu.Lock()
	wasDisconnected := !h.connected
	h.lastBeat = time.Now()
	h.misses = 0
	h.connected = true
	h.mu.Unlock()

	if wasDisconnected && h.onReconnect != nil {
		h.onReconnect()
	}
}

// Connected reports whether the monitor currently considers the master
// reachable.
func (h *HeartbeatMonitor) Connected() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.connected
}

// LastBeat returns the timestamp of the most recent Beat call.
func (h *HeartbeatMonitor) LastBeat() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastBeat
}

// Start begins the miss-detection ticker.
func (h *HeartbeatMonitor) Start(ctx context.Context) {
	h.runMu.Lock()
	defer h.runMu.Unlock()
	if h.running || h.interval <= 0 {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	h.cancel = cancel
	h.running = true
	h.wg.Add(1)
	go h.loop(runCtx)
}

// Stop halts the ticker.
func (h *HeartbeatMonitor) Stop() {
	h.runMu.Lock()
	if h.running {
		h.cancel()
		h.running = false
	}
	h.runMu.Unlock()
	h.wg.Wait()
}

func (h *HeartbeatMonitor) loop(ctx context.Context) {
	defer h.wg.Done()
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			h.checkMiss()
		case <-ctx.Done():
			return
		}
	}
}

func (h *HeartbeatMonitor) checkMiss() {
	h.mu.Lock()
	if time.Since(h.lastBeat) < h.interval {
		h.mu.Unlock()
		return
	}
	h.misses++
	becameDisconnected := h.connected && h.misses >= h.maxMisses
	if becameDisconnected {
		h.connected = false
	}
	misses := h.misses
	h.mu.Unlock()

	if becameDisconnected {
		h.log.Warn().Int("misses", misses).Msg("master heartbeat missed, declaring disconnected")
		if h.onDisconnect != nil {
			h.onDisconnect()
		}
	}
}
