// Copyright 2025 V Kontakte LLC
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package tcache

import (
	"unsafe"

	"github.com/vkcom/tcache/internal/freelist"
	"github.com/vkcom/tcache/internal/sizeclass"
)

// Bypass is the small-memory build of the layer: no cache at all, every
// call goes straight to the central free lists. It exists to prove the
// cache is a pure optimization; swapping Manager for Bypass changes
// throughput, never correctness.
type Bypass struct {
	table       *sizeclass.Table
	freelists   []*freelist.Central
	initialized bool
}

func NewBypass(table *sizeclass.Table) *Bypass {
	return &Bypass{table: table}
}

// Init has the same call-once, lock-held contract as Manager.Init.
func (b *Bypass) Init() {
	if b.initialized {
		panic("tcache: Bypass.Init called twice")
	}
	b.initialized = true
	b.freelists = make([]*freelist.Central, b.table.Len())
	for cl := range b.freelists {
		b.freelists[cl] = freelist.NewCentral(b.table.Class(cl))
	}
}

func (b *Bypass) InsertRange(cl int, batch []unsafe.Pointer) {
	if len(batch) == 0 {
		return
	}
	b.freelists[cl].PushBatch(batch)
}

func (b *Bypass) RemoveRange(cl int, batch []unsafe.Pointer) int {
	if len(batch) == 0 {
		return 0
	}
	return b.freelists[cl].PopBatch(batch)
}

func (b *Bypass) Length(cl int) int { return 0 }

func (b *Bypass) HitRateStats(cl int) HitRateStats { return HitRateStats{} }

func (b *Bypass) CentralFreeList(cl int) *freelist.Central {
	return b.freelists[cl]
}
