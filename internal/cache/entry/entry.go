// Package entry defines the value stored under a key together with its
// metadata and the non-owning handles into the Recency and Frequency
// indices. An Entry never owns its index nodes; the nodes are owned by
// their respective index and live exactly as long as the Entry does.
package entry

import (
	"time"

	"github.com/progcache/progcache/internal/cache/frequency"
	"github.com/progcache/progcache/internal/cache/recency"
)

// Entry is the stored value and its bookkeeping.
type Entry struct {
	Value       []byte
	CreatedAt   time.Time
	ExpiresAt   time.Time
	HasTTL      bool
	AccessCount int

	RecencyHandle   recency.Handle
	FrequencyHandle frequency.Handle
}

// RemainingTTL returns the whole seconds remaining until expiry at now,
// truncated toward zero. It must only be called when HasTTL is true.
func (e *Entry) RemainingTTL(now time.Time) int64 {
	remaining := e.ExpiresAt.Sub(now)
	secs := int64(remaining / time.Second)
	if secs < 0 {
		return 0
	}
	return secs
}

// IsExpired reports whether now is at or past ExpiresAt. It must only be
// called when HasTTL is true.
func (e *Entry) IsExpired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}
