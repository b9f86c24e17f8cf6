// Copyright 2025 V Kontakte LLC
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package sizeclass

import (
	"github.com/pkg/errors"
)

// Class describes one size bucket of the allocator.
// ObjectSize is the byte size every object of this class occupies,
// BatchSize is the number of objects moved in one transfer between tiers
// (and also the unit of one cache capacity growth step).
type Class struct {
	ObjectSize int
	BatchSize  int
}

// Table is the fixed set of size classes. It is built once at startup and
// read-only afterwards, so it needs no protection.
type Table struct {
	classes []Class
}

func NewTable(classes []Class) (*Table, error) {
	if len(classes) == 0 {
		return nil, errors.New("sizeclass: empty table")
	}
	prev := 0
	for i, c := range classes {
		if c.ObjectSize <= prev {
			return nil, errors.Errorf("sizeclass: object size of class %d must grow, got %d after %d", i, c.ObjectSize, prev)
		}
		if c.BatchSize <= 0 {
			return nil, errors.Errorf("sizeclass: class %d has non-positive batch size %d", i, c.BatchSize)
		}
		prev = c.ObjectSize
	}
	return &Table{classes: append([]Class(nil), classes...)}, nil
}

func (t *Table) Len() int { return len(t.classes) }

func (t *Table) ObjectSize(cl int) int { return t.classes[cl].ObjectSize }

func (t *Table) BatchSize(cl int) int { return t.classes[cl].BatchSize }

func (t *Table) Class(cl int) Class { return t.classes[cl] }

// DefaultTable covers 8 bytes to 256 KiB with batch sizes shrinking as
// objects grow, mirroring the shape production allocators use. The exact
// numbers are a tuning choice, not a contract.
func DefaultTable() *Table {
	var classes []Class
	for size := 8; size <= 256<<10; size *= 2 {
		batch := 1024 / size
		if batch < 2 {
			batch = 2
		}
		if batch > 32 {
			batch = 32
		}
		classes = append(classes, Class{ObjectSize: size, BatchSize: batch})
	}
	t, err := NewTable(classes)
	if err != nil {
		panic(err) // static data, cannot fail
	}
	return t
}
