package expiry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func baseTime() time.Time {
	return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
}

func TestDrainDueReturnsOnlyExpired(t *testing.T) {
	idx := New()
	now := baseTime()
	idx.Insert(now.Add(-1*time.Second), "past")
	idx.Insert(now.Add(5*time.Second), "future")

	due := idx.DrainDue(now)
	require.Equal(t, []string{"past"}, due)
	require.False(t, idx.Contains("past"))
	require.True(t, idx.Contains("future"))
}

func TestDrainDueOrdersByDeadlineThenKey(t *testing.T) {
	idx := New()
	now := baseTime()
	idx.Insert(now, "b")
	idx.Insert(now, "a")
	idx.Insert(now.Add(-time.Second), "z")

	due := idx.DrainDue(now)
	require.Equal(t, []string{"z", "a", "b"}, due)
}

func TestRemove(t *testing.T) {
	idx := New()
	now := baseTime()
	idx.Insert(now, "k")
	idx.Remove("k")

	require.False(t, idx.Contains("k"))
	require.Equal(t, 0, idx.Size())
	require.Empty(t, idx.DrainDue(now.Add(time.Hour)))
}

func TestRemoveMissingIsNoop(t *testing.T) {
	idx := New()
	idx.Remove("missing")
	require.Equal(t, 0, idx.Size())
}
