package table

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetLookupRoundTrip(t *testing.T) {
	tb := New()
	tb.Set("foo", "bar")

	v, ok := tb.Lookup("foo")
	require.True(t, ok)
	require.Equal(t, "bar", v)
}

func TestLookupMiss(t *testing.T) {
	tb := New()
	_, ok := tb.Lookup("missing")
	require.False(t, ok)
}

func TestSetExistingOverwritesValue(t *testing.T) {
	tb := New()
	existed := tb.Set("k", "v1")
	require.False(t, existed)

	existed = tb.Set("k", "v2")
	require.True(t, existed)

	v, ok := tb.Lookup("k")
	require.True(t, ok)
	require.Equal(t, "v2", v)
	require.Equal(t, 1, tb.Size())
}

func TestDelRemovesKey(t *testing.T) {
	tb := New()
	tb.Set("k", "v")
	require.True(t, tb.Del("k"))
	require.False(t, tb.Del("k"))
	_, ok := tb.Lookup("k")
	require.False(t, ok)
}

func TestGrowsWithInsertions(t *testing.T) {
	tb := New()
	const n = 200
	for i := 0; i < n; i++ {
		tb.Set(fmt.Sprintf("k%d", i), i)
	}
	// Drive any pending migration to completion via lookups.
	for i := 0; i < tb.Capacity()+1; i++ {
		tb.Lookup("nonexistent")
	}

	require.Equal(t, n, tb.Size())
	require.False(t, tb.IsResizing())
	require.GreaterOrEqual(t, float64(tb.Capacity()), float64(n)/loadFactorHigh)

	for i := 0; i < n; i++ {
		v, ok := tb.Lookup(fmt.Sprintf("k%d", i))
		require.True(t, ok)
		require.Equal(t, i, v)
	}
}

func TestShrinksOnDeletion(t *testing.T) {
	tb := New()
	const n = 50
	for i := 0; i < n; i++ {
		tb.Set(fmt.Sprintf("k%d", i), i)
	}
	for i := 0; i < tb.Capacity()+1; i++ {
		tb.Lookup("nope")
	}
	peak := tb.Capacity()

	for i := 0; i < 45; i++ {
		require.True(t, tb.Del(fmt.Sprintf("k%d", i)))
	}
	for i := 0; i < tb.Capacity()+1; i++ {
		tb.Lookup("nope")
	}

	require.Less(t, tb.Capacity(), peak)
	require.GreaterOrEqual(t, tb.Capacity(), minCapacity)

	for i := 45; i < n; i++ {
		v, ok := tb.Lookup(fmt.Sprintf("k%d", i))
		require.True(t, ok)
		require.Equal(t, i, v)
	}
}

func TestReadOnlyWorkloadCompletesResize(t *testing.T) {
	tb := New()
	const n = 100
	for i := 0; i < n; i++ {
		tb.Set(fmt.Sprintf("k%d", i), i)
	}
	require.True(t, tb.IsResizing())

	// Exclusively read until the resize finishes; no further mutation.
	for tb.IsResizing() {
		tb.Lookup("k0")
	}

	for i := 0; i < n; i++ {
		v, ok := tb.Lookup(fmt.Sprintf("k%d", i))
		require.True(t, ok)
		require.Equal(t, i, v)
	}
}

func TestEveryKeyExactlyOnceDuringResize(t *testing.T) {
	tb := New()
	const n = 64
	for i := 0; i < n; i++ {
		tb.Set(fmt.Sprintf("k%d", i), i)
	}
	require.True(t, tb.IsResizing())

	found := 0
	for i := 0; i < n; i++ {
		if _, ok := tb.Lookup(fmt.Sprintf("k%d", i)); ok {
			found++
		}
	}
	require.Equal(t, n, found)
}

func TestClearResetsState(t *testing.T) {
	tb := New()
	for i := 0; i < 100; i++ {
		tb.Set(fmt.Sprintf("k%d", i), i)
	}
	tb.Clear()
	require.Equal(t, 0, tb.Size())
	require.False(t, tb.IsResizing())
	require.Equal(t, initialCapacity, tb.Capacity())
}
