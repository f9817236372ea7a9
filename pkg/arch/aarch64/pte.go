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
	"sync/atomic"

	"rhenium.dev/rhenium/pkg/mem"
)

// Levels count up from 0 at the leaf, so a level is also the number of
// table walks below it and the size mapped by its entries follows
// directly from the level number. The hardware's starting level is the
// highest.

// Descriptor type bits.
const (
	pteValid = 1 << 0

	// pteTable marks a table descriptor at levels above 0. At level 0
	// the same bit distinguishes a page descriptor from an invalid
	// encoding, so pages carry it too.
	pteTable = 1 << 1
)

// pteAddrMask covers the output address field, bits 47:12.
const pteAddrMask = 0x0000fffffffff000

// PTE is a translation table descriptor. Loads and stores are atomic so
// a concurrent hardware walk never observes a torn descriptor.
type PTE uint64

// PTEs is a single translation table: one page of descriptors.
type PTEs [mem.EntriesPerTable]PTE

// AbsentPTE returns the descriptor for an unmapped entry. Any access
// through it faults.
func AbsentPTE() PTE {
	return 0
}

// BlockPTE returns a descriptor mapping one aligned block of
// 2^(PageBits+level*LevelBits) bytes at pa with the given attributes.
// Level 0 blocks are page descriptors and carry the extra type bit.
func BlockPTE(level uint8, pa mem.PhysAddr, attrs Attrs) PTE {
	pte := PTE(uint64(pa)&pteAddrMask) | PTE(attrs) | pteValid
	if level == 0 {
		pte |= pteTable
	}
	return pte
}

// TablePTE returns a descriptor pointing at the next-level table at pa,
// with no restriction attributes.
func TablePTE(pa mem.PhysAddr) PTE {
	return PTE(uint64(pa)&pteAddrMask) | pteTable | pteValid
}

// BlockAllowed returns true if the hardware accepts block descriptors at
// the given level. With the 4K granule, blocks exist at levels 0 through
// 2 (4K, 2M and 1G).
func BlockAllowed(level uint8) bool {
	return level <= 2
}

// Set atomically replaces the descriptor.
func (p *PTE) Set(v PTE) {
	atomic.StoreUint64((*uint64)(p), uint64(v))
}

// Clear atomically resets the descriptor to absent.
func (p *PTE) Clear() {
	atomic.StoreUint64((*uint64)(p), 0)
}

func (p *PTE) load() PTE {
	return PTE(atomic.LoadUint64((*uint64)(p)))
}

// Valid returns true if the descriptor is not absent.
func (p *PTE) Valid() bool {
	return p.load()&pteValid != 0
}

// IsTable returns true if the descriptor points at a next-level table.
// Level 0 descriptors are never tables.
func (p *PTE) IsTable(level uint8) bool {
	return level > 0 && p.load()&(pteTable|pteValid) == pteTable|pteValid
}

// IsBlock returns true if the descriptor maps a block or, at level 0, a
// page.
func (p *PTE) IsBlock(level uint8) bool {
	if !BlockAllowed(level) {
		return false
	}
	if level == 0 {
		// Bits 1:0 must read 0b11; 0b01 is an invalid encoding at
		// the leaf, not a block.
		return p.load()&(pteTable|pteValid) == pteTable|pteValid
	}
	return p.Valid() && !p.IsTable(level)
}

// Address extracts the output address: the block, page or next-level
// table address, with all attribute bits cleared.
func (p *PTE) Address() mem.PhysAddr {
	return mem.PhysAddr(p.load() & pteAddrMask)
}

// Attrs extracts the attribute bits, excluding the descriptor type.
func (p *PTE) Attrs() Attrs {
	return Attrs(p.load() &^ (pteAddrMask | pteTable | pteValid))
}
