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
	"errors"
	"sync"
	"unsafe"

	"rhenium.dev/rhenium/pkg/arch/aarch64"
	"rhenium.dev/rhenium/pkg/mem"
)

// ErrNoTables is returned when the pool cannot satisfy an allocation.
var ErrNoTables = errors.New("page table pool exhausted")

// Pool is an Allocator handing out translation tables from a fixed
// buffer. It relies on the hypervisor's identity map: the physical
// address of a table is its virtual address, so translation both ways
// is a cast.
//
// Pool is safe for concurrent use.
type Pool struct {
	mu sync.Mutex

	// buf pins the backing memory.
	buf []byte

	// base is the address of the first whole page in buf.
	base uintptr

	// used flags each page currently handed out.
	used []bool
}

var _ Allocator = (*Pool)(nil)

// NewPool returns a Pool over buf, which is retained. Partial pages at
// either end are trimmed, since only whole pages can become tables.
func NewPool(buf []byte) *Pool {
	begin := uintptr(unsafe.Pointer(unsafe.SliceData(buf)))
	end := begin + uintptr(len(buf))
	begin = (begin + mem.PageSize - 1) &^ uintptr(mem.PageSize-1)
	end &^= uintptr(mem.PageSize - 1)

	p := &Pool{buf: buf, base: begin}
	if end > begin {
		p.used = make([]bool, (end-begin)/mem.PageSize)
	}
	return p
}

// NewPTEs implements Allocator.NewPTEs.
func (p *Pool) NewPTEs(count int) ([]*aarch64.PTEs, mem.PhysAddr, error) {
	if count <= 0 || count&(count-1) != 0 {
		panic("mm: table runs must be a power of two")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	// The hardware requires a concatenated root aligned to its total
	// size, so runs only start where the physical address allows it.
	align := uintptr(count)*mem.PageSize - 1
outer:
	for i := 0; i+count <= len(p.used); i++ {
		if (p.base+uintptr(i)*mem.PageSize)&align != 0 {
			continue
		}
		for j := 0; j < count; j++ {
			if p.used[i+j] {
				continue outer
			}
		}

		tables := make([]*aarch64.PTEs, count)
		for j := 0; j < count; j++ {
			p.used[i+j] = true
			t := (*aarch64.PTEs)(unsafe.Pointer(p.base + uintptr(i+j)*mem.PageSize))
			*t = aarch64.PTEs{}
			tables[j] = t
		}
		return tables, mem.PhysAddr(p.base + uintptr(i)*mem.PageSize), nil
	}
	return nil, 0, ErrNoTables
}

// LookupPTEs implements Allocator.LookupPTEs.
func (p *Pool) LookupPTEs(physical mem.PhysAddr) *aarch64.PTEs {
	return (*aarch64.PTEs)(unsafe.Pointer(uintptr(physical)))
}

// FreePTEs implements Allocator.FreePTEs.
func (p *Pool) FreePTEs(ptes *aarch64.PTEs) {
	p.mu.Lock()
	defer p.mu.Unlock()

	addr := uintptr(unsafe.Pointer(ptes))
	if addr < p.base || (addr-p.base)&(mem.PageSize-1) != 0 {
		panic("mm: freeing a table from outside the pool")
	}
	i := int((addr - p.base) / mem.PageSize)
	if i >= len(p.used) || !p.used[i] {
		panic("mm: freeing a table that is not allocated")
	}
	p.used[i] = false
}

// freePages returns how many pages the pool could still hand out.
func (p *Pool) freePages() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, u := range p.used {
		if !u {
			n++
		}
	}
	return n
}
