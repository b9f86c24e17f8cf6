// Copyright 2025 V Kontakte LLC
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package freelist

import (
	"runtime"
	"sync"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"

	"github.com/vkcom/tcache/internal/sizeclass"
)

func TestCentralPopPush(t *testing.T) {
	c := NewCentral(sizeclass.Class{ObjectSize: 64, BatchSize: 8})

	batch := make([]unsafe.Pointer, 8)
	n := c.PopBatch(batch)
	require.Equal(t, 8, n)
	seen := map[unsafe.Pointer]bool{}
	for _, p := range batch {
		require.NotNil(t, p)
		require.False(t, seen[p])
		seen[p] = true
	}

	before := c.Len()
	c.PushBatch(batch)
	require.Equal(t, before+8, c.Len())

	spans, supplied, returned := c.Stats()
	require.Equal(t, int64(1), spans)
	require.Equal(t, int64(8), supplied)
	require.Equal(t, int64(8), returned)
}

func TestCentralHugeObjects(t *testing.T) {
	// objects bigger than one span still get exactly one object per span
	c := NewCentral(sizeclass.Class{ObjectSize: 256 << 10, BatchSize: 2})
	batch := make([]unsafe.Pointer, 2)
	require.Equal(t, 2, c.PopBatch(batch))
	require.NotEqual(t, batch[0], batch[1])
}

func TestCentralConcurrentRoundTrip(t *testing.T) {
	c := NewCentral(sizeclass.Class{ObjectSize: 32, BatchSize: 16})
	var wg sync.WaitGroup
	n := runtime.GOMAXPROCS(0)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			batch := make([]unsafe.Pointer, 16)
			for j := 0; j < 1000; j++ {
				require.Equal(t, 16, c.PopBatch(batch))
				c.PushBatch(batch)
			}
		}()
	}
	wg.Wait()
	_, supplied, returned := c.Stats()
	require.Equal(t, supplied, returned)
}
