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

// Hardware is the narrow window onto the translation hardware: the
// system registers and maintenance instructions the engine drives.
// EL2Hardware implements it on the real machine; tests substitute a
// recording fake.
//
// Register writes take effect in program order only after an explicit
// barrier, exactly as on the real machine; callers sequence barriers
// themselves.
type Hardware interface {
	// ReadMMFR0 returns ID_AA64MMFR0_EL1, the memory model feature
	// register describing supported granules and the physical address
	// range.
	ReadMMFR0() uint64

	// ReadCTR returns CTR_EL0, the cache type register. Bits 19:16
	// (DminLine) give the smallest data cache line in the system.
	ReadCTR() uint64

	// WriteVTCR sets VTCR_EL2, the stage 2 translation control.
	WriteVTCR(v uint64)

	// WriteMAIR sets MAIR_EL2, the stage 1 memory attribute table.
	WriteMAIR(v uint64)

	// WriteTTBR0 sets TTBR0_EL2, the stage 1 root table base.
	WriteTTBR0(v uint64)

	// WriteTCR sets TCR_EL2, the stage 1 translation control.
	WriteTCR(v uint64)

	// WriteSCTLR sets SCTLR_EL2, the EL2 system control register.
	WriteSCTLR(v uint64)

	// CleanDCacheLine cleans the data cache line containing va to the
	// point of coherency.
	CleanDCacheLine(va uintptr)

	// DSB is a full-system data synchronization barrier.
	DSB()

	// ISB is an instruction synchronization barrier.
	ISB()
}
