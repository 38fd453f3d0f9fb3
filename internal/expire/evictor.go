package expire

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/hivellm/synap/internal/config"
	"github.com/hivellm/synap/internal/keyspace"
)

// Evictor enforces kv_store.max_memory_bytes by evicting entries under each
// shard's own lock when the keyspace's estimated footprint exceeds the
// configured ceiling (SPEC_FULL §C — named as a config knob in spec.md §6 but
// left undesigned there). A max_memory_bytes of 0 disables eviction.
type Evictor struct {
	ks       *keyspace.Keyspace
	log      zerolog.Logger
	limit    int64
	lfu      bool
	interval time.Duration

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewEvictor constructs an Evictor from the kv_store config section.
func NewEvictor(ks *keyspace.Keyspace, log zerolog.Logger, cfg config.KVStoreConfig, interval time.Duration) *Evictor {
	ev := &Evictor{
		ks:       ks,
		log:      log.With().Str("component", "evictor").Logger(),
		limit:    cfg.MaxMemoryBytes,
		lfu:      cfg.EvictionPolicy == config.EvictionLFU,
		interval: interval,
	}
	if cfg.EvictionPolicy == config.EvictionNone {
		ev.limit = 0
	}
	return ev
}

// Start begins the eviction loop. A no-op if max_memory_bytes is 0
// (unbounded) or the policy is "none".
func (ev *Evictor) Start(ctx context.Context) {
	if ev.limit <= 0 {
		return
	}
	ev.mu.Lock()
	defer ev.mu.Unlock()
	if ev.running {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	ev.cancel = cancel
	ev.running = true

	ev.wg.Add(1)
	go ev.loop(runCtx)
}

// Stop halts the eviction loop.
func (ev *Evictor) Stop() {
	ev.mu.Lock()
	if !ev.running {
		ev.mu.Unlock()
		return
	}
	cancel := ev.cancel
	ev.running = false
	ev.mu.Unlock()

	cancel()
	ev.wg.Wait()
}

func (ev *Evictor) loop(ctx context.Context) {
	defer ev.wg.Done()
	ticker := time.NewTicker(ev.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ev.enforceOnce()
		case <-ctx.Done():
			return
		}
	}
}

// enforceOnce evicts entries, shard by round-robin, until the keyspace's
// estimated footprint is back under the configured limit or no shard has
// anything left to evict.
func (ev *Evictor) enforceOnce() {
	shards := ev.ks.Shards()
	for ev.ks.EstimatedBytes() > ev.limit {
		evictedAny := false
		for _, shard := range shards {
			if ev.ks.EstimatedBytes() <= ev.limit {
				return
			}
			if key, ok := shard.EvictOne(ev.lfu); ok {
				evictedAny = true
				ev.log.Debug().Str("key", key).Int("shard", shard.ID()).Msg("evicted under memory pressure")
			}
		}
		if !evictedAny {
			ev.log.Warn().Int64("limit", ev.limit).Int64("estimated", ev.ks.EstimatedBytes()).
				Msg("over memory limit but no entries left to evict")
			return
		}
	}
}
