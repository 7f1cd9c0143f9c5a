package frequency

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInsertStartsAtCountZero(t *testing.T) {
	idx := New()
	idx.Insert("a")

	key, ok := idx.LeastFrequentKey()
	require.True(t, ok)
	require.Equal(t, "a", key)
}

func TestRecordAccessPromotesAndDropsEmptyGroup(t *testing.T) {
	idx := New()
	ha := idx.Insert("a")
	idx.Insert("b")

	idx.RecordAccess(ha)

	// a's old count=0 group now only holds b.
	key, ok := idx.LeastFrequentKey()
	require.True(t, ok)
	require.Equal(t, "b", key)
}

func TestTieBreakIsLeastRecentlyPromoted(t *testing.T) {
	idx := New()
	hx := idx.Insert("x")
	hy := idx.Insert("y")

	idx.RecordAccess(hx)
	idx.RecordAccess(hy)
	// x and y are both at count=1, y promoted most recently so x is the
	// tail (least recently promoted) of that group.
	key, ok := idx.LeastFrequentKey()
	require.True(t, ok)
	require.Equal(t, "x", key)
}

func TestRemoveDropsEmptyGroup(t *testing.T) {
	idx := New()
	ha := idx.Insert("a")
	idx.Remove(ha)

	_, ok := idx.LeastFrequentKey()
	require.False(t, ok)
	require.Equal(t, 0, idx.Size())
}

func TestLeastFrequentKeyEmpty(t *testing.T) {
	idx := New()
	_, ok := idx.LeastFrequentKey()
	require.False(t, ok)
}

func TestMultipleAccessesKeepsOrderedGroups(t *testing.T) {
	idx := New()
	ha := idx.Insert("a")
	hb := idx.Insert("b")
	idx.Insert("c")

	ha = idx.RecordAccess(ha) // a: count 1
	ha = idx.RecordAccess(ha) // a: count 2
	hb = idx.RecordAccess(hb) // b: count 1
	_ = ha
	_ = hb

	key, ok := idx.LeastFrequentKey()
	require.True(t, ok)
	require.Equal(t, "c", key) // c is still at count 0
}
