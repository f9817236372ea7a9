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

// Package aarch64 is the AArch64 (VMSAv8-64) backend of the
// memory-management layer. It encodes access modes as stage 1 and
// stage 2 descriptor attributes and brings up two-stage translation at
// EL2, with the stage 2 geometry sized for the platform's physical
// address range.
//
// The package holds no global state: all hardware-derived configuration
// lives in an MMU value, and all hardware access goes through the
// Hardware interface.
package aarch64

import (
	"github.com/sirupsen/logrus"

	"rhenium.dev/rhenium/pkg/mem"
)

// Stage 1 uses a fixed three-level walk: one fewer level to resolve on
// every hypervisor TLB miss, at the cost of capping the hypervisor's own
// address space at 512GB.
const (
	stage1MaxLevel   = 2
	stage1RootTables = 1
	stage1InputBits  = 39
)

// VTCR_EL2 image for the probed stage 2 geometry.
func vtcrValue(g geometry) uint64 {
	return 1<<31 | // RES1.
		uint64(g.paRange)<<16 | // PS: stage 2 output size.
		0<<14 | // TG0: 4K granule.
		3<<12 | // SH0: inner shareable table walks.
		1<<10 | // ORGN0: write-back, write-allocate.
		1<<8 | // IRGN0: write-back, write-allocate.
		uint64(g.sl0)<<6 | // SL0: starting level.
		uint64(64-g.paBits) // T0SZ: stage 2 input size.
}

// TCR_EL2 image. Stage 1 geometry is fixed, so only the output size
// comes from the probe.
func tcrValue(g geometry) uint64 {
	return 1<<20 | // TBI: top byte ignored by address match.
		uint64(g.paRange)<<16 | // PS: output size.
		0<<14 | // TG0: 4K granule.
		3<<12 | // SH0: inner shareable table walks.
		1<<10 | // ORGN0: write-back, write-allocate.
		1<<8 | // IRGN0: write-back, write-allocate.
		(64 - stage1InputBits) // T0SZ.
}

// MAIR_EL2 image: one attribute byte per index used by stage 1
// descriptors.
const mairValue = 0x00<<(8*stage1DeviceIndex) | // Device-nGnRnE.
	0xff<<(8*stage1NormalIndex) // Normal, write-back, write-allocate.

// SCTLR_EL2 image. Enables the stage 1 MMU and both caches, with
// alignment checking and write-implies-execute-never.
const sctlrValue = 1<<0 | // M: stage 1 MMU enabled.
	1<<1 | // A: alignment fault checking.
	1<<2 | // C: data cacheability control.
	1<<3 | // SA: SP alignment checking.
	3<<4 | // RES1.
	1<<11 | // RES1.
	1<<12 | // I: instruction cacheability control.
	1<<16 | // RES1.
	1<<18 | // RES1.
	1<<19 | // WXN: writable implies execute-never.
	3<<22 | // RES1.
	3<<28 // RES1.

// MMU is the per-platform translation configuration. One MMU is shared
// by all cores: the first Init probes the hardware and fixes the stage 2
// geometry, and every later Init reprograms the same values without
// recomputing them.
//
// MMU methods are not safe for concurrent use; bring-up runs on one core
// at a time.
type MMU struct {
	hw     Hardware
	probed bool
	geo    geometry
}

// New returns an MMU backed by hw. No hardware is touched until Init.
func New(hw Hardware) *MMU {
	return &MMU{hw: hw}
}

// Init brings up two-stage translation on the calling core: it programs
// both stages' translation registers and then enables the stage 1 MMU
// and caches. root is the physical address of the hypervisor's stage 1
// root table, which must be fully built and written back before the
// call.
//
// The first call probes the hardware and decides the stage 2 geometry;
// it fails, writing no registers, if the implementation lacks 4K granule
// support or reports a physical address range the engine cannot drive.
// primary selects one-time diagnostics and has no other effect.
func (m *MMU) Init(root mem.PhysAddr, primary bool) error {
	if !m.probed {
		g, err := probeGeometry(m.hw.ReadMMFR0())
		if err != nil {
			return err
		}
		m.geo = g
		m.probed = true
	}

	if primary {
		logrus.Infof("supported bits in physical address: %d", m.geo.paBits)
		logrus.Infof("stage 2 has %d page table levels with %d pages at the root",
			m.geo.maxLevel+1, m.geo.roots)
	}

	m.hw.WriteVTCR(vtcrValue(m.geo))
	m.hw.WriteMAIR(mairValue)
	m.hw.WriteTTBR0(uint64(root))
	m.hw.WriteTCR(tcrValue(m.geo))

	// The table writes and the control registers must be visible
	// before the enable; the enable must be visible before the next
	// fetch.
	m.hw.DSB()
	m.hw.ISB()
	m.hw.WriteSCTLR(sctlrValue)
	m.hw.ISB()

	return nil
}

// MaxLevel returns the deepest table level of the given stage, counting
// from 0 at the leaf. For stage 2 it must not be called before a
// successful Init.
func (m *MMU) MaxLevel(stage mem.Stage) uint8 {
	if stage == mem.Stage1 {
		return stage1MaxLevel
	}
	return m.stage2().maxLevel
}

// RootTableCount returns how many contiguous tables form the root of the
// given stage. For stage 2 it must not be called before a successful
// Init.
func (m *MMU) RootTableCount(stage mem.Stage) uint8 {
	if stage == mem.Stage1 {
		return stage1RootTables
	}
	return m.stage2().roots
}

func (m *MMU) stage2() geometry {
	if !m.probed {
		panic("aarch64: stage 2 geometry used before Init")
	}
	return m.geo
}

// WritebackDCache cleans every data cache line overlapping [base,
// base+size) to the point of coherency and completes with a full
// barrier, so that table walkers that do not snoop the caches observe
// the data. A zero size cleans nothing but still issues the barrier.
func (m *MMU) WritebackDCache(base, size uintptr) {
	line := uintptr(1) << (m.hw.ReadCTR() >> 16 & 0xf)
	end := base + size
	for va := base &^ (line - 1); va < end; va += line {
		m.hw.CleanDCacheLine(va)
	}
	m.hw.DSB()
}
