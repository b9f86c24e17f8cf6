// Copyright 2025 V Kontakte LLC
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package tcache

import (
	"unsafe"
)

// Sharded is a placeholder for a future per-core sharded transfer cache.
// Every operation is a no-op; callers must check ShouldUse before relying
// on it. It pins down the extension point without committing to a design.
type Sharded struct{}

func (Sharded) Init() {}

func (Sharded) ShouldUse(cl int) bool { return false }

func (Sharded) Pop(cl int) unsafe.Pointer { return nil }

func (Sharded) Push(cl int, p unsafe.Pointer) {}

func (Sharded) TotalBytes() int { return 0 }
