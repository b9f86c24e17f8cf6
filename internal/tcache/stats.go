// Copyright 2025 V Kontakte LLC
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package tcache

import (
	"go.uber.org/atomic"
)

// HitRateStats is a snapshot of one class's cumulative counters. Counters
// only grow; the snapshot is eventually consistent relative to concurrent
// inserts/removes (each counter is read independently).
//
// Counting is per object: a remove that returns k of n requested adds k to
// Hits and n-k to Misses; Inserts/Removes count objects that actually
// entered or left the cache (overflow forwarded to the free list is not an
// insert).
type HitRateStats struct {
	Hits    int64
	Misses  int64
	Inserts int64
	Removes int64
}

type cacheCounters struct {
	hits    atomic.Int64
	misses  atomic.Int64
	inserts atomic.Int64
	removes atomic.Int64
}

func (c *cacheCounters) snapshot() HitRateStats {
	return HitRateStats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Inserts: c.inserts.Load(),
		Removes: c.removes.Load(),
	}
}
