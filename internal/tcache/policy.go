// Copyright 2025 V Kontakte LLC
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package tcache

import (
	"github.com/vkcom/tcache/internal/sizeclass"
)

// Bounded-growth policy. Capacity moves in whole batches: a class starts at
// initialCapacityBatches, may grow one batch at a time up to
// maxCapacityBatches, and the byte cap keeps huge classes from hoarding
// memory. All capacities stay multiples of the batch size.
const (
	initialCapacityBatches = 16
	maxCapacityBatches     = 64
	maxCapacityBytes       = 1 << 20
)

func capacityBounds(class sizeclass.Class) (initial, max int) {
	maxBatches := maxCapacityBatches
	if byBytes := maxCapacityBytes / (class.ObjectSize * class.BatchSize); byBytes < maxBatches {
		maxBatches = byBytes
	}
	if maxBatches < 1 {
		maxBatches = 1
	}
	initBatches := initialCapacityBatches
	if initBatches > maxBatches {
		initBatches = maxBatches
	}
	return initBatches * class.BatchSize, maxBatches * class.BatchSize
}
