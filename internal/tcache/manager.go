// Copyright 2025 V Kontakte LLC
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package tcache is the per-size-class transfer cache of the allocator:
// a bounded pool of recently freed objects between the front-end caches
// and the central free lists. It absorbs alloc/free bursts so hot paths
// rarely touch the free list, while capacity rebalancing keeps the total
// idle memory approximately bounded.
package tcache

import (
	"unsafe"

	"go.uber.org/atomic"
	"golang.org/x/sys/cpu"

	"github.com/vkcom/tcache/internal/freelist"
	"github.com/vkcom/tcache/internal/sizeclass"
)

type Config struct {
	Table *sizeclass.Table
	// UseRingBuffer selects the circular-buffer backend family for the
	// whole process. Read exactly once, during Init.
	UseRingBuffer bool
}

// Manager routes every cache operation to the backend of the requested
// size class and runs the cross-class capacity rebalancing.
//
// Exactly one backend family is live per process. Dispatch is an explicit
// branch on an immutable bool over in-place backend slices, never an
// interface call: callers sit on the allocator's hottest path, where the
// indirection and its cache-miss risk are not acceptable.
//
// One Manager instance is explicitly constructed and passed to every call
// site; there is no package-level singleton.
type Manager struct {
	cfg Config

	// immutable after Init
	table         *sizeclass.Table
	useRingBuffer bool
	initialized   bool
	freelists     []*freelist.Central

	// exactly one of these is allocated, per useRingBuffer
	legacy []legacyCache
	ring   []ringCache

	// round-robin fairness cursor for victim selection; benign races are
	// fine, fairness here is a heuristic, not a correctness requirement
	nextToEvict atomic.Uint32

	_ cpu.CacheLinePad
}

func New(cfg Config) *Manager {
	return &Manager{cfg: cfg}
}

// Init constructs one backend and one central free list per size class.
// Contract: called exactly once, under the global allocation lock, before
// any concurrent traffic exists. A second call panics.
func (m *Manager) Init() {
	if m.initialized {
		panic("tcache: Manager.Init called twice")
	}
	m.initialized = true
	m.table = m.cfg.Table
	m.useRingBuffer = m.cfg.UseRingBuffer
	n := m.table.Len()
	m.freelists = make([]*freelist.Central, n)
	for cl := 0; cl < n; cl++ {
		m.freelists[cl] = freelist.NewCentral(m.table.Class(cl))
	}
	if m.useRingBuffer {
		m.ring = make([]ringCache, n)
		for cl := 0; cl < n; cl++ {
			m.ring[cl].init(m.table.Class(cl), m.freelists[cl])
		}
	} else {
		m.legacy = make([]legacyCache, n)
		for cl := 0; cl < n; cl++ {
			m.legacy[cl].init(m.table.Class(cl), m.freelists[cl])
		}
	}
}

// InsertRange hands a batch of freed objects of class cl to the cache;
// ownership of every pointer transfers in. Objects beyond the current
// capacity are forwarded synchronously to the central free list, so the
// call always succeeds and never blocks beyond the class critical section.
func (m *Manager) InsertRange(cl int, batch []unsafe.Pointer) {
	if len(batch) == 0 {
		return
	}
	if m.useRingBuffer {
		m.ring[cl].insertRange(m, cl, batch)
	} else {
		m.legacy[cl].insertRange(m, cl, batch)
	}
}

// RemoveRange fills batch with up to len(batch) cached objects of class cl
// and returns the count; ownership transfers out. A short count, including
// zero, is a normal miss: the caller falls back to CentralFreeList(cl).
func (m *Manager) RemoveRange(cl int, batch []unsafe.Pointer) int {
	if len(batch) == 0 {
		return 0
	}
	if m.useRingBuffer {
		return m.ring[cl].removeRange(batch)
	}
	return m.legacy[cl].removeRange(batch)
}

// Length is the current cached object count of class cl. Not a cheap
// atomic read: it takes the class critical section.
func (m *Manager) Length(cl int) int {
	if m.useRingBuffer {
		return m.ring[cl].length()
	}
	return m.legacy[cl].length()
}

func (m *Manager) HitRateStats(cl int) HitRateStats {
	if m.useRingBuffer {
		return m.ring[cl].stats.snapshot()
	}
	return m.legacy[cl].stats.snapshot()
}

// CentralFreeList is the backing free list of class cl, for callers that
// need the fallback tier directly.
func (m *Manager) CentralFreeList(cl int) *freelist.Central {
	return m.freelists[cl]
}

// Capacity is the current bound inserts are checked against for class cl.
func (m *Manager) Capacity(cl int) int {
	if m.useRingBuffer {
		return m.ring[cl].curCapacity()
	}
	return m.legacy[cl].curCapacity()
}

// maybeGrowCache funds one growth step of cl by shrinking a victim class
// picked by the eviction cursor. The shrink and the grow each hold only
// their own class lock, so the global footprint is only approximately
// conserved; that is the deliberate trade against a cross-class lock on
// the hot path.
func (m *Manager) maybeGrowCache(cl int) bool {
	victim := m.determineSizeClassToEvict()
	if victim < 0 || victim == cl {
		return false
	}
	if !m.shrinkCache(victim) {
		return false
	}
	if !m.growCache(cl) {
		m.growCache(victim) // refund, best effort
		return false
	}
	return true
}

// determineSizeClassToEvict scans classes in cyclic order starting at the
// fairness cursor and returns the first one whose capacity can still be
// reduced, or -1 if a full cycle finds none. Concurrent callers may race
// on the cursor and pick the same victim; that is acceptable.
func (m *Manager) determineSizeClassToEvict() int {
	n := uint32(m.table.Len())
	start := m.nextToEvict.Inc()
	for i := uint32(0); i < n; i++ {
		cl := int((start + i) % n)
		if m.Capacity(cl) > 0 {
			return cl
		}
	}
	return -1
}

// growCache raises cl's capacity by one batch; false when the class is at
// its maximum. Callers pair it with a shrinkCache of another class.
func (m *Manager) growCache(cl int) bool {
	if m.useRingBuffer {
		return m.ring[cl].grow()
	}
	return m.legacy[cl].grow()
}

// shrinkCache lowers cl's capacity by one batch; false at minimum or when
// stored objects would exceed the new bound. A refusal, not an error.
func (m *Manager) shrinkCache(cl int) bool {
	if m.useRingBuffer {
		return m.ring[cl].shrink()
	}
	return m.legacy[cl].shrink()
}
