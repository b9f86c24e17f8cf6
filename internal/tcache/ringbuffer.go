// Copyright 2025 V Kontakte LLC
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package tcache

import (
	"sync"
	"unsafe"

	"golang.org/x/sys/cpu"

	"github.com/vkcom/tcache/internal/freelist"
	"github.com/vkcom/tcache/internal/sizeclass"
)

// ringCache is the circular-buffer backend: a power-of-two ring with
// head/tail cursors, FIFO order. Batched producers and consumers touch
// disjoint ends of the ring, which keeps the critical sections short.
// Externally it satisfies the same contract as legacyCache.
type ringCache struct {
	// set once at init, read-only afterwards
	freelist *freelist.Central
	batch    int // growth unit
	maxCap   int

	mu       sync.Mutex
	buf      []unsafe.Pointer // len(buf) is a power of two >= maxCap
	mask     uint32
	head     uint32 // oldest element; length == tail-head
	tail     uint32 // next free slot
	capacity int

	stats cacheCounters

	_ cpu.CacheLinePad
}

func (c *ringCache) init(class sizeclass.Class, fl *freelist.Central) {
	initial, max := capacityBounds(class)
	size := 1
	for size < max {
		size <<= 1
	}
	c.freelist = fl
	c.batch = class.BatchSize
	c.maxCap = max
	c.buf = make([]unsafe.Pointer, size)
	c.mask = uint32(size - 1)
	c.capacity = initial
}

func (c *ringCache) insertRange(m *Manager, cl int, batch []unsafe.Pointer) {
	rest := c.push(batch)
	if rest == nil {
		return
	}
	if m.maybeGrowCache(cl) {
		if rest = c.push(rest); rest == nil {
			return
		}
	}
	c.freelist.PushBatch(rest)
}

func (c *ringCache) push(batch []unsafe.Pointer) []unsafe.Pointer {
	c.mu.Lock()
	space := c.capacity - int(c.tail-c.head)
	if space <= 0 {
		c.mu.Unlock()
		return batch
	}
	n := len(batch)
	if n > space {
		n = space
	}
	for _, p := range batch[:n] {
		c.buf[c.tail&c.mask] = p
		c.tail++
	}
	c.mu.Unlock()
	c.stats.inserts.Add(int64(n))
	if n == len(batch) {
		return nil
	}
	return batch[n:]
}

func (c *ringCache) removeRange(batch []unsafe.Pointer) int {
	n := len(batch)
	c.mu.Lock()
	k := int(c.tail - c.head)
	if k > n {
		k = n
	}
	for i := 0; i < k; i++ {
		batch[i] = c.buf[c.head&c.mask]
		c.buf[c.head&c.mask] = nil
		c.head++
	}
	c.mu.Unlock()
	c.stats.hits.Add(int64(k))
	c.stats.misses.Add(int64(n - k))
	c.stats.removes.Add(int64(k))
	return k
}

func (c *ringCache) length() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return int(c.tail - c.head)
}

func (c *ringCache) curCapacity() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.capacity
}

func (c *ringCache) grow() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.capacity+c.batch > c.maxCap {
		return false
	}
	c.capacity += c.batch
	return true
}

func (c *ringCache) shrink() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.capacity == 0 || c.capacity-c.batch < int(c.tail-c.head) {
		return false
	}
	c.capacity -= c.batch
	return true
}
