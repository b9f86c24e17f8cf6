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

// legacyCache is the slot-array backend: one mutex, one preallocated slice
// used as a LIFO stack of free objects. Capacity is the bound future pushes
// are checked against; changing it never touches stored pointers.
type legacyCache struct {
	// set once at init, read-only afterwards
	freelist *freelist.Central
	batch    int // growth unit
	maxCap   int

	mu       sync.Mutex
	slots    []unsafe.Pointer // cap(slots) == maxCap, no reallocation ever
	capacity int

	stats cacheCounters

	_ cpu.CacheLinePad // neighbouring classes must not share a line
}

func (c *legacyCache) init(class sizeclass.Class, fl *freelist.Central) {
	initial, max := capacityBounds(class)
	c.freelist = fl
	c.batch = class.BatchSize
	c.maxCap = max
	c.slots = make([]unsafe.Pointer, 0, max)
	c.capacity = initial
}

func (c *legacyCache) insertRange(m *Manager, cl int, batch []unsafe.Pointer) {
	rest := c.push(batch)
	if rest == nil {
		return
	}
	// full: one funded growth attempt, then retry the leftovers once
	if m.maybeGrowCache(cl) {
		if rest = c.push(rest); rest == nil {
			return
		}
	}
	c.freelist.PushBatch(rest)
}

// push stores what fits under the current capacity and returns the
// overflow, nil if everything fit.
func (c *legacyCache) push(batch []unsafe.Pointer) []unsafe.Pointer {
	c.mu.Lock()
	space := c.capacity - len(c.slots)
	if space <= 0 {
		c.mu.Unlock()
		return batch
	}
	n := len(batch)
	if n > space {
		n = space
	}
	c.slots = append(c.slots, batch[:n]...)
	c.mu.Unlock()
	c.stats.inserts.Add(int64(n))
	if n == len(batch) {
		return nil
	}
	return batch[n:]
}

func (c *legacyCache) removeRange(batch []unsafe.Pointer) int {
	n := len(batch)
	c.mu.Lock()
	k := len(c.slots)
	if k > n {
		k = n
	}
	low := len(c.slots) - k
	copy(batch, c.slots[low:])
	for i := low; i < len(c.slots); i++ {
		c.slots[i] = nil
	}
	c.slots = c.slots[:low]
	c.mu.Unlock()
	c.stats.hits.Add(int64(k))
	c.stats.misses.Add(int64(n - k))
	c.stats.removes.Add(int64(k))
	return k
}

func (c *legacyCache) length() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.slots)
}

func (c *legacyCache) curCapacity() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.capacity
}

func (c *legacyCache) grow() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.capacity+c.batch > c.maxCap {
		return false
	}
	c.capacity += c.batch
	return true
}

// shrink lowers the bound by one batch. Refuses at zero and refuses to drop
// the bound below the current length: stored pointers are never flushed by
// a capacity change.
func (c *legacyCache) shrink() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.capacity == 0 || c.capacity-c.batch < len(c.slots) {
		return false
	}
	c.capacity -= c.batch
	return true
}
