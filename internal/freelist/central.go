// Copyright 2025 V Kontakte LLC
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package freelist

import (
	"sync"
	"unsafe"

	"go.uber.org/atomic"

	"github.com/vkcom/tcache/internal/sizeclass"
)

// span granularity for carving fresh objects; one span never serves two classes
const spanBytes = 64 << 10

// Central is the free list backing one size class. It sits below the
// transfer cache: the cache overflows into it on insert and callers fall
// back to it on cache miss. When the list runs dry it carves a fresh span
// from the heap; spans are pinned for the remaining process lifetime, so
// every pointer handed out stays valid forever.
type Central struct {
	class sizeclass.Class

	mu    sync.Mutex
	free  []unsafe.Pointer
	spans [][]byte // keeps object memory reachable

	spansAllocated  atomic.Int64
	objectsSupplied atomic.Int64
	objectsReturned atomic.Int64
}

func NewCentral(class sizeclass.Class) *Central {
	return &Central{class: class}
}

func (c *Central) Class() sizeclass.Class { return c.class }

// PopBatch fills batch with free objects and returns the count supplied.
// The list replenishes itself from the span arena, so the count always
// equals len(batch); the return value exists for the tier contract, which
// only promises "up to" the requested amount.
func (c *Central) PopBatch(batch []unsafe.Pointer) int {
	c.mu.Lock()
	for len(c.free) < len(batch) {
		c.growLocked()
	}
	n := len(batch)
	copy(batch, c.free[len(c.free)-n:])
	c.free = c.free[:len(c.free)-n]
	c.mu.Unlock()
	c.objectsSupplied.Add(int64(n))
	return n
}

// PushBatch accepts a batch of objects back. Never refuses.
func (c *Central) PushBatch(batch []unsafe.Pointer) {
	c.mu.Lock()
	c.free = append(c.free, batch...)
	c.mu.Unlock()
	c.objectsReturned.Add(int64(len(batch)))
}

func (c *Central) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.free)
}

// Stats returns cumulative counters: spans carved, objects supplied to
// callers, objects returned by callers.
func (c *Central) Stats() (spans, supplied, returned int64) {
	return c.spansAllocated.Load(), c.objectsSupplied.Load(), c.objectsReturned.Load()
}

func (c *Central) growLocked() {
	perSpan := spanBytes / c.class.ObjectSize
	if perSpan < 1 {
		perSpan = 1
	}
	span := make([]byte, perSpan*c.class.ObjectSize)
	c.spans = append(c.spans, span)
	for i := 0; i < perSpan; i++ {
		c.free = append(c.free, unsafe.Pointer(&span[i*c.class.ObjectSize]))
	}
	c.spansAllocated.Add(1)
}
