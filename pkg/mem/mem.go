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

// Package mem defines the address types, page geometry and access modes
// shared by the memory-management layer and its architecture backends.
//
// Rhenium is built for the 4K translation granule. Every table in the
// translation hierarchy is a single page holding 512 descriptors, so each
// level of the walk resolves 9 bits of the input address.
package mem

// Page geometry for the 4K granule.
const (
	// PageBits is log2 of the page size.
	PageBits = 12

	// PageSize is the size of a page and of a translation table.
	PageSize = 1 << PageBits

	// LevelBits is the number of input address bits resolved per table
	// level.
	LevelBits = 9

	// EntriesPerTable is the number of descriptors in one table.
	EntriesPerTable = 1 << LevelBits
)

// PhysAddr is a physical address.
//
// The hypervisor's own mappings are an identity map, so values of this
// type double as input addresses for both translation stages: stage 1
// input addresses because VA == PA at EL2, and stage 2 input addresses
// because guest-physical ranges are assigned from the host physical map.
type PhysAddr uint64

// RoundDown returns a rounded down to the nearest page boundary.
func (a PhysAddr) RoundDown() PhysAddr {
	return a &^ (PageSize - 1)
}

// RoundUp returns a rounded up to the nearest page boundary.
func (a PhysAddr) RoundUp() PhysAddr {
	return (a + PageSize - 1).RoundDown()
}

// PageAligned returns true if a is on a page boundary.
func (a PhysAddr) PageAligned() bool {
	return a&(PageSize-1) == 0
}

// PageOffset returns the offset of a within its page.
func (a PhysAddr) PageOffset() uint64 {
	return uint64(a) & (PageSize - 1)
}
