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

package mm

import (
	"rhenium.dev/rhenium/pkg/arch/aarch64"
	"rhenium.dev/rhenium/pkg/mem"
)

// entrySize returns the bytes covered by one descriptor at level.
func entrySize(level uint8) mem.PhysAddr {
	return mem.PhysAddr(1) << (mem.PageBits + uint(level)*mem.LevelBits)
}

// tableIndex returns the index of the descriptor covering addr within
// its table at level.
func tableIndex(addr mem.PhysAddr, level uint8) int {
	return int(uint64(addr) >> (mem.PageBits + uint(level)*mem.LevelBits) & (mem.EntriesPerTable - 1))
}

// levelEnd returns the first address past the table holding addr's
// level descriptor.
func levelEnd(addr mem.PhysAddr, level uint8) mem.PhysAddr {
	shift := mem.PageBits + uint(level+1)*mem.LevelBits
	return (addr>>shift + 1) << shift
}

// updateLevel rewrites [begin, end) within one table, descending only
// where the range covers an entry partially. Entries covered in full
// are replaced in place: by a block when mapping at a level that allows
// blocks, by an absent descriptor when unmapping. The range is capped
// to this table; the caller iterates tables.
func (p *PageTables) updateLevel(table *aarch64.PTEs, level uint8, begin, end mem.PhysAddr, attrs aarch64.Attrs, unmap bool) error {
	if stop := levelEnd(begin, level); end > stop {
		end = stop
	}
	size := entrySize(level)
	for begin < end {
		next := begin&^(size-1) + size
		pte := &table[tableIndex(begin, level)]

		if unmap && !pte.Valid() {
			// Nothing mapped here to remove.
			begin = next
			continue
		}

		if begin&(size-1) == 0 && end-begin >= size &&
			(unmap || aarch64.BlockAllowed(level)) {
			if unmap {
				p.replaceEntry(pte, aarch64.AbsentPTE(), level)
			} else {
				p.replaceEntry(pte, aarch64.BlockPTE(level, begin, attrs), level)
			}
			begin = next
			continue
		}

		// Partial coverage: descend, first turning a block or absent
		// entry into a table so the rest of its range is preserved.
		if !pte.IsTable(level) {
			if err := p.splitEntry(pte, level); err != nil {
				return err
			}
		}
		child := p.Allocator.LookupPTEs(pte.Address())
		if err := p.updateLevel(child, level-1, begin, end, attrs, unmap); err != nil {
			return err
		}
		begin = next
	}
	return nil
}

// replaceEntry installs a descriptor and returns any subtree behind the
// old one to the allocator. The new descriptor is written back before
// the old tables are freed, so a concurrent hardware walk never crosses
// a dangling link.
func (p *PageTables) replaceEntry(pte *aarch64.PTE, v aarch64.PTE, level uint8) {
	old := *pte
	pte.Set(v)
	p.writebackEntry(pte)
	p.freeSubtree(old, level)
}

// freeSubtree returns the tables behind a descriptor, if any, to the
// allocator.
func (p *PageTables) freeSubtree(pte aarch64.PTE, level uint8) {
	if !pte.IsTable(level) {
		return
	}
	child := p.Allocator.LookupPTEs(pte.Address())
	for i := range child {
		p.freeSubtree(child[i], level-1)
	}
	p.Allocator.FreePTEs(child)
}

// splitEntry replaces a block or absent entry with a table covering the
// same range, entry by entry, so that a sub-range can change
// independently. The new table is written back in full before the
// parent links it.
func (p *PageTables) splitEntry(pte *aarch64.PTE, level uint8) error {
	tables, physical, err := p.Allocator.NewPTEs(1)
	if err != nil {
		return err
	}
	table := tables[0]

	if pte.IsBlock(level) {
		size := entrySize(level - 1)
		base := pte.Address()
		attrs := pte.Attrs()
		for i := range table {
			table[i].Set(aarch64.BlockPTE(level-1, base+mem.PhysAddr(i)*size, attrs))
		}
	}

	p.writebackTable(table)
	pte.Set(aarch64.TablePTE(physical))
	p.writebackEntry(pte)
	return nil
}

// defragTable compacts one table's subtrees bottom-up.
func (p *PageTables) defragTable(table *aarch64.PTEs, level uint8) {
	size := entrySize(level)
	childSize := entrySize(level - 1)
	for i := range table {
		pte := &table[i]
		if !pte.IsTable(level) {
			continue
		}
		child := p.Allocator.LookupPTEs(pte.Address())
		if level > 1 {
			p.defragTable(child, level-1)
		}

		// A child that maps nothing is dropped outright. A child
		// whose entries form one contiguous, identically-attributed
		// run collapses into a single block, with the table's own
		// restrictions folded in so the effective attributes do not
		// change.
		empty := true
		uniform := aarch64.BlockAllowed(level)
		base := child[0].Address()
		attrs := child[0].Attrs()
		for j := range child {
			e := &child[j]
			if e.Valid() {
				empty = false
			}
			if !e.IsBlock(level-1) || e.Attrs() != attrs ||
				e.Address() != base+mem.PhysAddr(j)*childSize {
				uniform = false
			}
		}
		if empty {
			p.replaceEntry(pte, aarch64.AbsentPTE(), level)
		} else if uniform && base&(size-1) == 0 {
			folded := aarch64.CombineTableAttrs(pte.Attrs(), attrs)
			p.replaceEntry(pte, aarch64.BlockPTE(level, base, folded), level)
		}
	}
}
