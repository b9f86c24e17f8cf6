// Copyright 2025 V Kontakte LLC
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package tcache

import (
	"sort"
	"testing"
	"unsafe"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/vkcom/tcache/internal/sizeclass"
)

func testTable(t *testing.T) *sizeclass.Table {
	tbl, err := sizeclass.NewTable([]sizeclass.Class{
		{ObjectSize: 8, BatchSize: 8},
		{ObjectSize: 64, BatchSize: 8},
		{ObjectSize: 512, BatchSize: 4},
		{ObjectSize: 4096, BatchSize: 2},
	})
	require.NoError(t, err)
	return tbl
}

func singleClassTable(t *testing.T) *sizeclass.Table {
	tbl, err := sizeclass.NewTable([]sizeclass.Class{{ObjectSize: 64, BatchSize: 8}})
	require.NoError(t, err)
	return tbl
}

func newManager(t *testing.T, tbl *sizeclass.Table, ring bool) *Manager {
	m := New(Config{Table: tbl, UseRingBuffer: ring})
	m.Init()
	return m
}

func newBatch(n int) []unsafe.Pointer {
	batch := make([]unsafe.Pointer, n)
	for i := range batch {
		batch[i] = unsafe.Pointer(new(int64))
	}
	return batch
}

func sortedPtrs(batch []unsafe.Pointer) []uintptr {
	out := make([]uintptr, len(batch))
	for i, p := range batch {
		out[i] = uintptr(p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// runs the same test body against both backend families
func forBothVariants(t *testing.T, f func(t *testing.T, ring bool)) {
	t.Run("Legacy", func(t *testing.T) { f(t, false) })
	t.Run("RingBuffer", func(t *testing.T) { f(t, true) })
}

func TestInitTwicePanics(t *testing.T) {
	m := New(Config{Table: testTable(t)})
	m.Init()
	require.Panics(t, func() { m.Init() })
}

func TestRoundTrip(t *testing.T) {
	forBothVariants(t, func(t *testing.T, ring bool) {
		m := newManager(t, testTable(t), ring)
		in := newBatch(8)
		m.InsertRange(1, append([]unsafe.Pointer(nil), in...))
		require.Equal(t, 8, m.Length(1))

		out := make([]unsafe.Pointer, 8)
		require.Equal(t, 8, m.RemoveRange(1, out))
		require.Equal(t, 0, m.Length(1))

		// membership, order is backend-specific
		if diff := cmp.Diff(sortedPtrs(in), sortedPtrs(out)); diff != "" {
			t.Fatalf("returned pointer set differs (-want +got):\n%s", diff)
		}
	})
}

func TestRingBufferFIFOOrder(t *testing.T) {
	m := newManager(t, testTable(t), true)
	in := newBatch(6)
	m.InsertRange(0, append([]unsafe.Pointer(nil), in...))
	out := make([]unsafe.Pointer, 6)
	require.Equal(t, 6, m.RemoveRange(0, out))
	require.Equal(t, in, out)
}

func TestScenarioHitMissCounting(t *testing.T) {
	forBothVariants(t, func(t *testing.T, ring bool) {
		m := newManager(t, testTable(t), ring)
		const cl = 3

		// insert 8, remove 8: all hits
		m.InsertRange(cl, newBatch(8))
		require.Equal(t, 8, m.Length(cl))
		out := make([]unsafe.Pointer, 8)
		require.Equal(t, 8, m.RemoveRange(cl, out))
		require.Equal(t, 0, m.Length(cl))
		st := m.HitRateStats(cl)
		require.Equal(t, int64(8), st.Hits)
		require.Equal(t, int64(8), st.Inserts)
		require.Equal(t, int64(8), st.Removes)
		require.Equal(t, int64(0), st.Misses)

		// remove from the now-empty cache: pure miss, caller falls back
		require.Equal(t, 0, m.RemoveRange(cl, out[:4]))
		st = m.HitRateStats(cl)
		require.Equal(t, int64(4), st.Misses)
		require.Equal(t, int64(8), st.Hits)
	})
}

func TestOverflowForwardsToFreeList(t *testing.T) {
	forBothVariants(t, func(t *testing.T, ring bool) {
		// single class: growth cannot be funded, overflow must hit the free list
		m := newManager(t, singleClassTable(t), ring)
		capacity := m.Capacity(0)
		m.InsertRange(0, newBatch(capacity))
		require.Equal(t, capacity, m.Length(0))

		m.InsertRange(0, newBatch(1))
		require.Equal(t, capacity, m.Length(0))
		_, _, returned := m.CentralFreeList(0).Stats()
		require.Equal(t, int64(1), returned)
	})
}

func TestPartialRemoveIsExact(t *testing.T) {
	forBothVariants(t, func(t *testing.T, ring bool) {
		m := newManager(t, testTable(t), ring)
		m.InsertRange(2, newBatch(5))
		out := make([]unsafe.Pointer, 9)
		require.Equal(t, 5, m.RemoveRange(2, out))
		require.Equal(t, 0, m.Length(2))
		st := m.HitRateStats(2)
		require.Equal(t, int64(5), st.Hits)
		require.Equal(t, int64(4), st.Misses)
	})
}

func TestGrowShrinkPairRestoresCapacity(t *testing.T) {
	forBothVariants(t, func(t *testing.T, ring bool) {
		m := newManager(t, testTable(t), ring)
		orig := m.Capacity(1)

		require.True(t, m.shrinkCache(1))
		require.Equal(t, orig-8, m.Capacity(1))
		require.True(t, m.growCache(1))
		require.Equal(t, orig, m.Capacity(1))

		require.True(t, m.growCache(1))
		require.True(t, m.shrinkCache(1))
		require.Equal(t, orig, m.Capacity(1))
	})
}

func TestGrowRefusesAtMaximum(t *testing.T) {
	forBothVariants(t, func(t *testing.T, ring bool) {
		m := newManager(t, testTable(t), ring)
		for m.growCache(1) {
		}
		require.False(t, m.growCache(1))
		require.True(t, m.shrinkCache(1))
		require.True(t, m.growCache(1))
	})
}

func TestShrinkRefusesBelowLength(t *testing.T) {
	forBothVariants(t, func(t *testing.T, ring bool) {
		m := newManager(t, singleClassTable(t), ring)
		capacity := m.Capacity(0)
		m.InsertRange(0, newBatch(capacity))
		// bound may not drop below the stored objects
		require.False(t, m.shrinkCache(0))
		out := make([]unsafe.Pointer, 8)
		require.Equal(t, 8, m.RemoveRange(0, out))
		require.True(t, m.shrinkCache(0))
	})
}

func TestDetermineSizeClassToEvict(t *testing.T) {
	forBothVariants(t, func(t *testing.T, ring bool) {
		m := newManager(t, testTable(t), ring)

		// all classes above minimum: cyclic scan always finds a victim,
		// and over a full sweep every class gets picked
		picked := map[int]bool{}
		for i := 0; i < 4*m.table.Len(); i++ {
			cl := m.determineSizeClassToEvict()
			require.GreaterOrEqual(t, cl, 0)
			picked[cl] = true
		}
		require.Len(t, picked, m.table.Len())

		// drive classes 0..2 to zero capacity: they must never be picked
		for cl := 0; cl < 3; cl++ {
			for m.shrinkCache(cl) {
			}
			require.Equal(t, 0, m.Capacity(cl))
		}
		for i := 0; i < 8; i++ {
			require.Equal(t, 3, m.determineSizeClassToEvict())
		}

		// no class above minimum: no victim
		for m.shrinkCache(3) {
		}
		require.Equal(t, -1, m.determineSizeClassToEvict())
	})
}

func TestInsertOverflowGrowsByStealing(t *testing.T) {
	forBothVariants(t, func(t *testing.T, ring bool) {
		m := newManager(t, testTable(t), ring)
		cl := 0
		capacity := m.Capacity(cl)
		sumBefore := 0
		for i := 0; i < m.table.Len(); i++ {
			sumBefore += m.Capacity(i)
		}

		// overflowing insert funds one growth step from a victim class
		m.InsertRange(cl, newBatch(capacity+1))
		require.Equal(t, capacity+8, m.Capacity(cl))
		require.Equal(t, capacity+1, m.Length(cl))

		sumAfter := 0
		for i := 0; i < m.table.Len(); i++ {
			sumAfter += m.Capacity(i)
		}
		// grow was funded by a shrink, footprint approximately conserved
		require.LessOrEqual(t, sumAfter, sumBefore+8)
	})
}

func TestEmptyBatchIsNoop(t *testing.T) {
	m := newManager(t, testTable(t), false)
	m.InsertRange(0, nil)
	require.Equal(t, 0, m.RemoveRange(0, nil))
	require.Equal(t, HitRateStats{}, m.HitRateStats(0))
}
