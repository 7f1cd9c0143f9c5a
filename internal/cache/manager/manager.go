// Package manager implements the Entry Manager: it applies each cache
// command as an atomic transaction across the Progressive Map and the
// three indices, enforcing the cross-entity invariants described by the
// data model.
package manager

import (
	"strconv"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/progcache/progcache/internal/cache/entry"
	"github.com/progcache/progcache/internal/cache/expiry"
	"github.com/progcache/progcache/internal/cache/frequency"
	"github.com/progcache/progcache/internal/cache/recency"
	"github.com/progcache/progcache/internal/cache/table"
)

// Status is the outcome of executing a command, mirroring the wire
// protocol's status codes.
type Status int

const (
	StatusOK Status = iota
	StatusErr
	StatusNX
)

// Result is what a command execution produces: a status plus optional
// payload bytes (the value on a `get` hit, the ASCII seconds on a `ttl`
// hit).
type Result struct {
	Status  Status
	Payload []byte
}

func ok() Result        { return Result{Status: StatusOK} }
func errResult() Result { return Result{Status: StatusErr} }
func nx() Result        { return Result{Status: StatusNX} }

// Counters is a snapshot of the cumulative, monotonically increasing
// figures the telemetry sampler reads. It is a plain-int value type
// returned by Manager.Counters(); the live figures behind it are
// atomics (see counters below) because the sampler reads them from its
// own ticker goroutine while the event-loop goroutine keeps writing.
type Counters struct {
	Gets       int64
	Sets       int64
	Dels       int64
	TTLQueries int64
	Hits       int64
	Misses     int64
	LRUEvicts  int64
	LFUEvicts  int64
	Expired    int64
}

// counters holds the live, cross-goroutine-visible figures. Every field
// is an atomic.Int64 so the telemetry sampler's ticker goroutine can
// read them concurrently with the event-loop goroutine's writes,
// matching the same pattern the teacher repo uses in its own
// evictorCounters for exactly this cross-goroutine-read reason.
type counters struct {
	gets       atomic.Int64
	sets       atomic.Int64
	dels       atomic.Int64
	ttlQueries atomic.Int64
	hits       atomic.Int64
	misses     atomic.Int64
	lruEvicts  atomic.Int64
	lfuEvicts  atomic.Int64
	expired    atomic.Int64
}

func (c *counters) snapshot() Counters {
	return Counters{
		Gets:       c.gets.Load(),
		Sets:       c.sets.Load(),
		Dels:       c.dels.Load(),
		TTLQueries: c.ttlQueries.Load(),
		Hits:       c.hits.Load(),
		Misses:     c.misses.Load(),
		LRUEvicts:  c.lruEvicts.Load(),
		LFUEvicts:  c.lfuEvicts.Load(),
		Expired:    c.expired.Load(),
	}
}

// Manager is the Entry Manager. It owns the Progressive Map and the
// three indices and is the sole mutator of all four; every mutation
// happens on the event-loop goroutine. Its counters, size, capacity,
// and resizing fields are atomics so the telemetry sampler's own ticker
// goroutine can poll them without a data race and without the sampler
// ever touching the map or indices themselves.
type Manager struct {
	clock clock.Clock

	table     *table.Table
	recency   *recency.Index
	frequency *frequency.Index
	expiry    *expiry.Index

	counters counters

	size       atomic.Int64
	capacity   atomic.Int64
	isResizing atomic.Bool
}

// New returns an empty Manager driven by clk.
func New(clk clock.Clock) *Manager {
	m := &Manager{
		clock:     clk,
		table:     table.New(),
		recency:   recency.New(),
		frequency: frequency.New(),
		expiry:    expiry.New(),
	}
	m.publishTableStats()
	return m
}

// Counters returns a snapshot of the cumulative counters.
func (m *Manager) Counters() Counters { return m.counters.snapshot() }

// Size returns the number of live entries as of the last published
// command, satisfying invariant I5 against the map and both O(1)
// indices. Safe to call from any goroutine.
func (m *Manager) Size() int { return int(m.size.Load()) }

// Capacity and IsResizing expose the Progressive Map's resize state as
// of the last published command. Safe to call from any goroutine.
func (m *Manager) Capacity() int    { return int(m.capacity.Load()) }
func (m *Manager) IsResizing() bool { return m.isResizing.Load() }

// publishTableStats republishes the table's size/capacity/resizing state
// into the atomics the telemetry sampler polls. It must only be called
// from the event-loop goroutine, after every command that may have
// mutated the table.
func (m *Manager) publishTableStats() {
	m.size.Store(int64(m.table.Size()))
	m.capacity.Store(int64(m.table.Capacity()))
	m.isResizing.Store(m.table.IsResizing())
}

// Sweep drains every due (deadline, key) pair and removes each expired
// entry via the same transaction Del uses. It is called at the start of
// every command and once per event-loop tick, so it republishes table
// stats itself rather than relying on a caller to do so.
func (m *Manager) Sweep() {
	now := m.clock.Now()
	for _, key := range m.expiry.DrainDue(now) {
		if e, ok := m.lookupRaw(key); ok {
			m.removeEntry(key, e)
			m.counters.expired.Add(1)
		}
	}
	m.publishTableStats()
}

func (m *Manager) lookupRaw(key string) (*entry.Entry, bool) {
	v, ok := m.table.Lookup(key)
	if !ok {
		return nil, false
	}
	return v.(*entry.Entry), true
}

// removeEntry unlinks key's entry from every index and the map. It is
// the shared transaction behind del, eviction, and expiry.
func (m *Manager) removeEntry(key string, e *entry.Entry) {
	m.recency.Remove(e.RecencyHandle)
	m.frequency.Remove(e.FrequencyHandle)
	if e.HasTTL {
		m.expiry.Remove(key)
	}
	m.table.Del(key)
}

// Get executes `get k`.
func (m *Manager) Get(key string) Result {
	m.Sweep()
	m.counters.gets.Add(1)

	e, ok := m.lookupRaw(key)
	if !ok {
		m.counters.misses.Add(1)
		return nx()
	}
	if e.HasTTL && e.IsExpired(m.clock.Now()) {
		m.removeEntry(key, e)
		m.counters.expired.Add(1)
		m.counters.misses.Add(1)
		m.publishTableStats()
		return nx()
	}

	m.recency.Touch(e.RecencyHandle)
	e.FrequencyHandle = m.frequency.RecordAccess(e.FrequencyHandle)
	e.AccessCount++
	m.counters.hits.Add(1)

	return Result{Status: StatusOK, Payload: e.Value}
}

// Set executes `set k v`, preserving the prior access count and
// frequency-group membership when k already exists.
func (m *Manager) Set(key string, value []byte) Result {
	m.Sweep()
	m.counters.sets.Add(1)

	if e, found := m.lookupRaw(key); found {
		if e.HasTTL {
			m.expiry.Remove(key)
			e.HasTTL = false
		}
		e.Value = value
		m.recency.Touch(e.RecencyHandle)
		return ok()
	}

	e := &entry.Entry{Value: value, CreatedAt: m.clock.Now()}
	e.RecencyHandle = m.recency.Insert(key)
	e.FrequencyHandle = m.frequency.Insert(key)
	m.table.Set(key, e)
	m.publishTableStats()
	return ok()
}

// SetEx executes `set ex k v s`: a fresh entry, always, with frequency
// restarting at zero and recency at most-recent.
func (m *Manager) SetEx(key string, value []byte, ttlSeconds int64) Result {
	m.Sweep()
	m.counters.sets.Add(1)

	if prior, existed := m.lookupRaw(key); existed {
		m.removeEntry(key, prior)
	}

	now := m.clock.Now()
	expiresAt := now.Add(time.Duration(ttlSeconds) * time.Second)

	e := &entry.Entry{
		Value:     value,
		CreatedAt: now,
		ExpiresAt: expiresAt,
		HasTTL:    true,
	}
	e.RecencyHandle = m.recency.Insert(key)
	e.FrequencyHandle = m.frequency.Insert(key)
	m.table.Set(key, e)
	m.expiry.Insert(expiresAt, key)

	m.publishTableStats()
	return ok()
}

// Del executes `del k`. A delete on an absent key returns the same
// status as a delete on a present one: OK.
func (m *Manager) Del(key string) Result {
	m.Sweep()
	m.counters.dels.Add(1)

	if e, found := m.lookupRaw(key); found {
		m.removeEntry(key, e)
		m.publishTableStats()
	}
	return ok()
}

// TTL executes `ttl k`.
func (m *Manager) TTL(key string) Result {
	m.Sweep()
	m.counters.ttlQueries.Add(1)

	e, found := m.lookupRaw(key)
	if !found {
		return nx()
	}
	if e.HasTTL && e.IsExpired(m.clock.Now()) {
		m.removeEntry(key, e)
		m.counters.expired.Add(1)
		m.publishTableStats()
		return nx()
	}
	if !e.HasTTL {
		return errResult()
	}
	secs := e.RemainingTTL(m.clock.Now())
	return Result{Status: StatusOK, Payload: []byte(strconv.FormatInt(secs, 10))}
}

// LRUEvict executes `lru_evict`: evicts the current least-recently-used
// key, or ERR if the cache is empty.
func (m *Manager) LRUEvict() Result {
	m.Sweep()

	key, found := m.recency.TailKey()
	if !found {
		return errResult()
	}
	e, present := m.lookupRaw(key)
	if !present {
		return errResult()
	}
	m.removeEntry(key, e)
	m.counters.lruEvicts.Add(1)
	m.publishTableStats()
	return ok()
}

// LFUEvict executes `lfu_evict`: evicts the current least-frequently-used
// key, or ERR if the cache is empty.
func (m *Manager) LFUEvict() Result {
	m.Sweep()

	key, found := m.frequency.LeastFrequentKey()
	if !found {
		return errResult()
	}
	e, present := m.lookupRaw(key)
	if !present {
		return errResult()
	}
	m.removeEntry(key, e)
	m.counters.lfuEvicts.Add(1)
	m.publishTableStats()
	return ok()
}

