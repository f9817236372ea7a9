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
	"unsafe"

	"rhenium.dev/rhenium/pkg/arch/aarch64"
)

// writebackEntry pushes one stored descriptor out to memory, where table
// walkers that do not snoop the data cache will see it.
func (p *PageTables) writebackEntry(pte *aarch64.PTE) {
	p.mmu.WritebackDCache(uintptr(unsafe.Pointer(pte)), unsafe.Sizeof(*pte))
}

// writebackTable pushes a whole table out to memory. Used on fresh
// tables before anything links to them.
func (p *PageTables) writebackTable(table *aarch64.PTEs) {
	p.mmu.WritebackDCache(uintptr(unsafe.Pointer(table)), unsafe.Sizeof(*table))
}
