package telemetry

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/progcache/progcache/internal/cache/manager"
)

// Source is the subset of Manager telemetry reads from. It is satisfied
// by *manager.Manager and lets tests substitute a stub.
type Source interface {
	Counters() manager.Counters
	Size() int
	Capacity() int
	IsResizing() bool
}

// snapshot is a point-in-time read of every cumulative counter.
type snapshot struct {
	counters   manager.Counters
	size       int
	capacity   int
	isResizing bool
}

func sample(src Source) snapshot {
	return snapshot{
		counters:   src.Counters(),
		size:       src.Size(),
		capacity:   src.Capacity(),
		isResizing: src.IsResizing(),
	}
}

// delta computes the interval counters between two cumulative snapshots.
// size/capacity/isResizing are point-in-time, not cumulative, so they are
// not part of the result; Run logs them from cur directly.
func delta(prev, cur snapshot) manager.Counters {
	return manager.Counters{
		Gets:       cur.counters.Gets - prev.counters.Gets,
		Sets:       cur.counters.Sets - prev.counters.Sets,
		Dels:       cur.counters.Dels - prev.counters.Dels,
		TTLQueries: cur.counters.TTLQueries - prev.counters.TTLQueries,
		Hits:       cur.counters.Hits - prev.counters.Hits,
		Misses:     cur.counters.Misses - prev.counters.Misses,
		LRUEvicts:  cur.counters.LRUEvicts - prev.counters.LRUEvicts,
		LFUEvicts:  cur.counters.LFUEvicts - prev.counters.LFUEvicts,
		Expired:    cur.counters.Expired - prev.counters.Expired,
	}
}

// Sampler periodically logs a delta-since-last-tick snapshot of the
// cache's cumulative counters, following the teacher lineage's
// snapshot/deltaSnapshot sampling idiom. It runs on its own ticker
// goroutine and never locks or mutates cache state; the figures it
// reads are backed by atomics on the manager's side so this concurrent
// read is safe despite the event-loop goroutine writing them
// continuously.
type Sampler struct {
	src      Source
	interval time.Duration
	log      zerolog.Logger
}

// NewSampler returns a Sampler that logs through log every interval.
func NewSampler(src Source, interval time.Duration, log zerolog.Logger) *Sampler {
	return &Sampler{src: src, interval: interval, log: log}
}

// Run logs delta snapshots on a ticker until ctx is canceled.
func (s *Sampler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	prev := sample(s.src)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cur := sample(s.src)
			d := delta(prev, cur)
			s.log.Info().
				Int64("gets", d.Gets).
				Int64("sets", d.Sets).
				Int64("dels", d.Dels).
				Int64("ttl_queries", d.TTLQueries).
				Int64("hits", d.Hits).
				Int64("misses", d.Misses).
				Int64("lru_evicts", d.LRUEvicts).
				Int64("lfu_evicts", d.LFUEvicts).
				Int64("expired", d.Expired).
				Int("size", cur.size).
				Int("capacity", cur.capacity).
				Bool("resizing", cur.isResizing).
				Msg("telemetry tick")
			prev = cur
		}
	}
}
