// Package expire implements the active expiration sweeper of spec.md §4.C.
// Passive expiration (a lazy check on access) lives on internal/keyspace.Shard
// itself; this package adds the background sampling sweep that reclaims TTL
// keys nobody happens to touch, the way the teacher's internal/coordinator
// HealthMonitor runs a ticker-driven background loop against a snapshot of
// state taken fresh on every tick.
package expire

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/hivellm/synap/internal/keyspace"
)

// sampleSize is how many TTL-bearing keys the sweeper draws from each shard
// per round (spec.md §4.C "sample N random keys per shard").
const sampleSize = 20

// overThreshold is the fraction of a sampled round that must come back
// expired before the sweeper immediately repeats the shard instead of moving
// on, per spec.md §4.C's "repeat immediately if over threshold, else yield".
const overThreshold = 0.25

// Sweeper periodically samples each shard's TTL-bearing keys and reclaims the
// ones past their deadline. It is the active half of expiration; the passive
// half happens inline in Shard.Get/WithLock on every access.
type Sweeper struct {
	ks       *keyspace.Keyspace
	log      zerolog.Logger
	interval time.Duration

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// New constructs a Sweeper over ks, sweeping every interval.
func New(ks *keyspace.Keyspace, log zerolog.Logger, interval time.Duration) *Sweeper {
	return &Sweeper{
		ks:       ks,
		log:      log.With().Str("component", "expire").Logger(),
		interval: interval,
	}
}

// Start begins the sweep loop in a background goroutine. Calling Start on an
// already-running Sweeper is a no-op.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true

	s.wg.Add(1)
	go s.loop(runCtx)
}

// Stop halts the sweep loop and waits for the in-flight round to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	s.running = false
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
}

func (s *Sweeper) loop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info().Dur("interval", s.interval).Msg("expiration sweeper started")

	for {
		select {
		case <-ticker.C:
			s.sweepAll()
		case <-ctx.Done():
			s.log.Info().Msg("expiration sweeper stopped")
			return
		}
	}
}

// sweepAll runs one round against every shard in the keyspace.
func (s *Sweeper) sweepAll() {
	shards := s.ks.Shards()
	var total, expired int
	for _, shard := range shards {
		n, x := s.sweepShard(shard)
		total += n
		expired += x
	}
	if total > 0 {
		s.log.Debug().Int("sampled", total).Int("expired", expired).Msg("sweep round complete")
	}
}

// sweepShard samples up to sampleSize TTL-bearing keys from shard and expires
// the due ones, repeating immediately while the due fraction stays over
// overThreshold (spec.md §4.C: a shard under heavy TTL churn gets swept more
// aggressively than one that is mostly idle).
func (s *Sweeper) sweepShard(shard *keyspace.Shard) (sampled, expiredCount int) {
	for {
		keys := shard.SampleExpirable(sampleSize)
		if len(keys) == 0 {
			return sampled, expiredCount
		}
		now := time.Now()
		round := 0
		for _, k := range keys {
			if shard.ExpireIfDue(k, now) {
				round++
			}
		}
		sampled += len(keys)
		expiredCount += round
		if float64(round) < overThreshold*float64(len(keys)) {
			return sampled, expiredCount
		}
		// Over threshold: this shard is likely still full of due keys, loop
		// again before moving to the next shard.
	}
}
