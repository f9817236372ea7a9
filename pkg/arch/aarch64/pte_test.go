// Copyright 2025 The Rhenium Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package aarch64

import (
	"testing"

	"rhenium.dev/rhenium/pkg/mem"
)

func TestAbsentPTE(t *testing.T) {
	pte := AbsentPTE()
	if pte.Valid() {
		t.Errorf("absent descriptor is valid")
	}
	for level := uint8(0); level <= 3; level++ {
		if pte.IsBlock(level) {
			t.Errorf("absent descriptor is a block at level %d", level)
		}
		if pte.IsTable(level) {
			t.Errorf("absent descriptor is a table at level %d", level)
		}
	}
}

func TestBlockPTE(t *testing.T) {
	attrs := ModeToAttrs(mem.Stage2, mem.ModeRead|mem.ModeWrite)
	for _, test := range []struct {
		level uint8
		pa    mem.PhysAddr
	}{
		{0, 0x123000},
		{1, 0x40200000},
		{2, 0x80000000},
	} {
		pte := BlockPTE(test.level, test.pa, attrs)
		if !pte.Valid() {
			t.Errorf("level %d block is not valid", test.level)
		}
		if !pte.IsBlock(test.level) {
			t.Errorf("level %d block is not a block", test.level)
		}
		if pte.IsTable(test.level) {
			t.Errorf("level %d block is a table", test.level)
		}
		if got := pte.Address(); got != test.pa {
			t.Errorf("level %d block address: got %#x, wanted %#x", test.level, got, test.pa)
		}
		if got := pte.Attrs(); got != attrs {
			t.Errorf("level %d block attrs: got %#x, wanted %#x", test.level, uint64(got), uint64(attrs))
		}
	}
}

func TestPagePTEEncoding(t *testing.T) {
	// A level 0 page must read 0b11 in its low bits: the variant with
	// only the valid bit set is an invalid encoding at the leaf.
	pte := BlockPTE(0, 0x5000, 0)
	if uint64(pte)&3 != 3 {
		t.Errorf("level 0 page low bits: got %#x, wanted 0b11", uint64(pte)&3)
	}
	// The same bit pattern above level 0 would be a table, so IsBlock
	// must key off the level.
	if !pte.IsBlock(0) {
		t.Errorf("level 0 page is not a block")
	}
	if pte.IsTable(0) {
		t.Errorf("level 0 page is a table")
	}
}

func TestTablePTE(t *testing.T) {
	pte := TablePTE(0x7000)
	for level := uint8(1); level <= 3; level++ {
		if !pte.IsTable(level) {
			t.Errorf("table descriptor is not a table at level %d", level)
		}
		if pte.IsBlock(level) {
			t.Errorf("table descriptor is a block at level %d", level)
		}
	}
	if got := pte.Address(); got != 0x7000 {
		t.Errorf("table address: got %#x, wanted 0x7000", got)
	}
	if got := pte.Attrs(); got != 0 {
		t.Errorf("fresh table carries restrictions: %#x", uint64(got))
	}
}

func TestAttrsExcludeAddressAndType(t *testing.T) {
	// High attribute bits (XN at 54, the table restrictions at 63:59)
	// sit above the address field and must survive extraction; the
	// address and descriptor type must not leak into attrs.
	attrs := Attrs(1<<54 | 1<<63 | 0x600)
	pte := BlockPTE(1, 0x40000000, attrs)
	if got := pte.Attrs(); got != attrs {
		t.Errorf("attrs: got %#x, wanted %#x", uint64(got), uint64(attrs))
	}
	if got := pte.Address(); got != 0x40000000 {
		t.Errorf("address: got %#x, wanted 0x40000000", got)
	}
}

func TestBlockAllowed(t *testing.T) {
	for level, want := range map[uint8]bool{0: true, 1: true, 2: true, 3: false} {
		if got := BlockAllowed(level); got != want {
			t.Errorf("BlockAllowed(%d): got %v, wanted %v", level, got, want)
		}
	}
}

func TestSetClear(t *testing.T) {
	var table PTEs
	table[4].Set(BlockPTE(1, 0x200000, 0x3c))
	if !table[4].IsBlock(1) {
		t.Errorf("stored descriptor is not a block")
	}
	table[4].Clear()
	if table[4].Valid() {
		t.Errorf("cleared descriptor is still valid")
	}
}
