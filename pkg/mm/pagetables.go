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

// Package mm builds and maintains translation tables: the hypervisor's
// own stage 1 tables and one set of stage 2 tables per guest. The
// architecture backend supplies the descriptor encodings and the
// translation geometry; this package supplies the walk.
//
// All mappings are identity mappings: the input address of a range
// equals its output address. Mapping the largest blocks the hardware
// allows, and splitting them only when a sub-range diverges, keeps the
// tables small and the TLB reach large.
package mm

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"rhenium.dev/rhenium/pkg/arch/aarch64"
	"rhenium.dev/rhenium/pkg/mem"
)

// Allocator provides translation table memory. Tables are page-sized,
// page-aligned and zeroed when handed out, and stay resident until
// freed.
type Allocator interface {
	// NewPTEs returns count zeroed, physically contiguous tables and
	// the physical address of the first. count is 1 everywhere except
	// the concatenated root of a wide stage 2 space; the run's address
	// is aligned to the run's total size, as the hardware requires of
	// a root.
	NewPTEs(count int) ([]*aarch64.PTEs, mem.PhysAddr, error)

	// LookupPTEs returns the table at physical, which must have been
	// returned by NewPTEs.
	LookupPTEs(physical mem.PhysAddr) *aarch64.PTEs

	// FreePTEs returns a table to the allocator. Tables from a
	// contiguous run are freed one by one.
	FreePTEs(ptes *aarch64.PTEs)
}

// PageTables is one set of translation tables.
//
// The zero value is not usable; call New. Methods serialize on an
// internal lock, so one set may be shared by callers, but the hardware
// itself is told about changes only through the data cache writebacks
// issued here: installing the root pointer is the caller's business.
type PageTables struct {
	mu sync.Mutex

	// Allocator provides and reclaims table pages.
	Allocator Allocator

	stage mem.Stage
	mmu   *aarch64.MMU

	// roots are the concatenated root tables, physically contiguous.
	// Their entries sit at level maxLevel; rootLevel is only an index
	// shift, no table exists at it.
	roots        []*aarch64.PTEs
	rootPhysical mem.PhysAddr

	maxLevel  uint8
	rootLevel uint8

	// size is the first input address past the translatable space.
	size mem.PhysAddr
}

// New allocates the root tables for one set of translation tables. For
// stage 2 the geometry comes from the probed hardware, so a successful
// MMU Init must come first.
func New(stage mem.Stage, mmu *aarch64.MMU, allocator Allocator) (*PageTables, error) {
	maxLevel := mmu.MaxLevel(stage)
	count := int(mmu.RootTableCount(stage))

	roots, rootPhysical, err := allocator.NewPTEs(count)
	if err != nil {
		return nil, fmt.Errorf("allocating %d root tables: %w", count, err)
	}

	p := &PageTables{
		Allocator:    allocator,
		stage:        stage,
		mmu:          mmu,
		roots:        roots,
		rootPhysical: rootPhysical,
		maxLevel:     maxLevel,
		rootLevel:    maxLevel + 1,
	}
	p.size = mem.PhysAddr(count) * entrySize(p.rootLevel)

	// The walker may be pointed at the roots at any time after this
	// returns, so even the empty tables go out to memory.
	for _, table := range roots {
		p.writebackTable(table)
	}

	logrus.Debugf("%v tables at %#x: %d levels, %d root pages",
		stage, rootPhysical, maxLevel+1, count)
	return p, nil
}

// Root returns the physical address of the first root table, in the
// form TTBR0_EL2 or VTTBR_EL2 expects.
func (p *PageTables) Root() mem.PhysAddr {
	return p.rootPhysical
}

// IdentityMap maps [begin, end) at its own address with the given mode.
// begin is rounded down and end up to page boundaries. Existing
// mappings in the range are replaced. On allocation failure the tables
// are left consistent but the range may be partially applied.
func (p *PageTables) IdentityMap(begin, end mem.PhysAddr, mode mem.Mode) error {
	return p.update(begin, end, aarch64.ModeToAttrs(p.stage, mode), false)
}

// Unmap removes all mappings in [begin, end), rounded out to page
// boundaries. Unmapping part of a block splits it, so Unmap can
// allocate and can fail like IdentityMap.
func (p *PageTables) Unmap(begin, end mem.PhysAddr) error {
	return p.update(begin, end, 0, true)
}

func (p *PageTables) update(begin, end mem.PhysAddr, attrs aarch64.Attrs, unmap bool) error {
	begin = begin.RoundDown()
	rounded := end.RoundUp()
	if rounded < end {
		panic("mm: address range overflow")
	}
	end = rounded
	if end > p.size {
		return fmt.Errorf("range [%#x, %#x) is outside the %v space of %#x bytes",
			begin, end, p.stage, p.size)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for begin < end {
		table := p.roots[tableIndex(begin, p.rootLevel)]
		if err := p.updateLevel(table, p.maxLevel, begin, end, attrs, unmap); err != nil {
			return err
		}
		begin = levelEnd(begin, p.maxLevel)
	}
	return nil
}

// Lookup returns the effective attributes translating addr: the leaf
// descriptor's own bits with every ancestor table's restrictions folded
// in. The second result is false if addr is not mapped or is outside
// the translatable space.
func (p *PageTables) Lookup(addr mem.PhysAddr) (aarch64.Attrs, bool) {
	if addr >= p.size {
		return 0, false
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	table := p.roots[tableIndex(addr, p.rootLevel)]
	var restrictions aarch64.Attrs
	for level := p.maxLevel; ; level-- {
		pte := &table[tableIndex(addr, level)]
		if pte.IsBlock(level) {
			return aarch64.CombineTableAttrs(restrictions, pte.Attrs()), true
		}
		if !pte.IsTable(level) {
			return 0, false
		}
		restrictions |= pte.Attrs()
		table = p.Allocator.LookupPTEs(pte.Address())
	}
}

// Defrag rewrites the tables into their most compact form: subtrees
// that became entirely absent are freed, and tables mapping a single
// contiguous, identically-attributed region collapse back into one
// block. Mappings are unchanged throughout.
func (p *PageTables) Defrag() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, table := range p.roots {
		p.defragTable(table, p.maxLevel)
	}
}
