// Package table implements a progressive (incrementally resizing) hash
// table keyed by string. Unlike a stop-the-world rehash, growth and
// shrinkage happen a bounded number of entries at a time, spread across
// the mutating and lookup operations that straddle the resize.
package table

import (
	"github.com/zeebo/xxh3"
)

const (
	initialCapacity = 16
	minCapacity     = 16
	rehashSteps     = 1
	loadFactorHigh  = 0.75
	loadFactorLow   = 0.25
)

// tableEntry is a single chained bucket slot. Its address is the stable
// identity that callers hold onto; Table never copies a tableEntry once
// constructed, so a *tableEntry survives migration between the primary
// and secondary tables.
type tableEntry struct {
	key   string
	value any
	hash  uint64
	next  *tableEntry
}

type bucketTable struct {
	buckets []*tableEntry
	size    int
	mask    uint64
}

func newBucketTable(capacity int) *bucketTable {
	return &bucketTable{
		buckets: make([]*tableEntry, capacity),
		mask:    uint64(capacity - 1),
	}
}

func (bt *bucketTable) capacity() int { return len(bt.buckets) }

func (bt *bucketTable) bucketIndex(hash uint64) int { return int(hash & bt.mask) }

// Table is the progressive hash table described in the Progressive Map
// component: two chained hash tables, primary and secondary, with at most
// one resize active at a time and a cursor recording migration progress.
type Table struct {
	primary   *bucketTable
	secondary *bucketTable // nil unless a resize is in progress
	cursor    int          // next primary bucket index to drain
	shrinking bool
}

// New returns an empty table at the configured initial capacity.
func New() *Table {
	return &Table{primary: newBucketTable(initialCapacity)}
}

func hashKey(key string) uint64 {
	h := xxh3.HashString(key)
	return h
}

// Size returns the number of live entries across both tables.
func (t *Table) Size() int {
	n := t.primary.size
	if t.secondary != nil {
		n += t.secondary.size
	}
	return n
}

// Capacity returns the capacity of the currently-authoritative table:
// the secondary table while a resize is active, otherwise the primary.
func (t *Table) Capacity() int {
	if t.secondary != nil {
		return t.secondary.capacity()
	}
	return t.primary.capacity()
}

// LoadFactor returns size/capacity of the authoritative table.
func (t *Table) LoadFactor() float64 {
	return float64(t.Size()) / float64(t.Capacity())
}

// IsResizing reports whether a migration is currently in progress.
func (t *Table) IsResizing() bool { return t.secondary != nil }

// Lookup finds the value stored under key. Per the resolved open
// question on read-driven migration, a lookup also advances one step of
// an in-progress resize before searching.
func (t *Table) Lookup(key string) (any, bool) {
	t.helpResizing()
	hash := hashKey(key)

	if t.secondary != nil {
		if v, ok := find(t.secondary, hash, key); ok {
			return v, true
		}
	}
	if v, ok := find(t.primary, hash, key); ok {
		return v, true
	}
	return nil, false
}

func find(bt *bucketTable, hash uint64, key string) (any, bool) {
	for e := bt.buckets[bt.bucketIndex(hash)]; e != nil; e = e.next {
		if e.hash == hash && e.key == key {
			return e.value, true
		}
	}
	return nil, false
}

// Set inserts or overwrites the value stored under key and returns
// whether the key already existed.
func (t *Table) Set(key string, value any) (existed bool) {
	t.helpResizing()
	hash := hashKey(key)

	if t.secondary != nil {
		if e := lookupEntry(t.secondary, hash, key); e != nil {
			e.value = value
			return true
		}
	}
	if e := lookupEntry(t.primary, hash, key); e != nil {
		e.value = value
		return true
	}

	dest := t.insertTableFor(hash)
	idx := dest.bucketIndex(hash)
	dest.buckets[idx] = &tableEntry{key: key, value: value, hash: hash, next: dest.buckets[idx]}
	dest.size++

	t.checkLoadFactor()
	return false
}

func lookupEntry(bt *bucketTable, hash uint64, key string) *tableEntry {
	for e := bt.buckets[bt.bucketIndex(hash)]; e != nil; e = e.next {
		if e.hash == hash && e.key == key {
			return e
		}
	}
	return nil
}

// insertTableFor routes a brand-new key to primary or secondary per the
// spec's routing rule: a key whose primary bucket has already been
// drained goes straight to secondary, since its primary bucket no longer
// exists there in spirit.
func (t *Table) insertTableFor(hash uint64) *bucketTable {
	if t.secondary == nil {
		return t.primary
	}
	bucketIdx := t.primary.bucketIndex(hash)
	if bucketIdx < t.cursor {
		return t.secondary
	}
	return t.primary
}

// Del removes key if present and reports whether it was found.
func (t *Table) Del(key string) bool {
	t.helpResizing()
	hash := hashKey(key)

	if t.secondary != nil {
		if removeFrom(t.secondary, hash, key) {
			t.checkLoadFactor()
			return true
		}
	}
	if removeFrom(t.primary, hash, key) {
		t.checkLoadFactor()
		return true
	}
	return false
}

func removeFrom(bt *bucketTable, hash uint64, key string) bool {
	idx := bt.bucketIndex(hash)
	var prev *tableEntry
	for e := bt.buckets[idx]; e != nil; e = e.next {
		if e.hash == hash && e.key == key {
			if prev == nil {
				bt.buckets[idx] = e.next
			} else {
				prev.next = e.next
			}
			bt.size--
			return true
		}
		prev = e
	}
	return false
}

// Clear empties the table back to its initial, non-resizing state.
func (t *Table) Clear() {
	t.primary = newBucketTable(initialCapacity)
	t.secondary = nil
	t.cursor = 0
	t.shrinking = false
}

// checkLoadFactor may start a new resize; it is a no-op while one is
// already active, matching the spec's "only when secondary is absent"
// trigger condition.
func (t *Table) checkLoadFactor() {
	if t.secondary != nil {
		return
	}
	load := float64(t.primary.size) / float64(t.primary.capacity())
	switch {
	case load > loadFactorHigh:
		t.startResizing(false)
	case load < loadFactorLow && t.primary.capacity() > minCapacity:
		t.startResizing(true)
	}
}

func (t *Table) startResizing(shrink bool) {
	newCap := t.primary.capacity() * 2
	if shrink {
		newCap = t.primary.capacity() / 2
		if newCap < minCapacity {
			newCap = minCapacity
		}
	}
	t.secondary = newBucketTable(newCap)
	t.cursor = 0
	t.shrinking = shrink
}

// helpResizing drains up to rehashSteps primary buckets into secondary,
// promoting secondary to primary once the cursor passes the last bucket
// and then re-checking the promoted table's load factor, so a table that
// is still past a threshold starts its next resize without waiting for
// another insert or delete.
func (t *Table) helpResizing() {
	if t.secondary == nil {
		return
	}
	for step := 0; step < rehashSteps && t.cursor < t.primary.capacity(); step++ {
		e := t.primary.buckets[t.cursor]
		for e != nil {
			next := e.next
			idx := t.secondary.bucketIndex(e.hash)
			e.next = t.secondary.buckets[idx]
			t.secondary.buckets[idx] = e
			t.secondary.size++
			t.primary.size--
			e = next
		}
		t.primary.buckets[t.cursor] = nil
		t.cursor++
	}

	if t.cursor >= t.primary.capacity() {
		t.primary = t.secondary
		t.secondary = nil
		t.cursor = 0
		t.shrinking = false
		t.checkLoadFactor()
	}
}

