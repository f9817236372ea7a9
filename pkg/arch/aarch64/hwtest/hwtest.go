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

// Package hwtest provides a recording stand-in for the translation
// hardware. Tests preload the feature registers and then compare the
// recorded trace against the accesses the real machine would have
// seen, in order.
package hwtest

// Event is one recorded hardware access: a system register write, a
// cache maintenance operation, or a barrier.
type Event struct {
	// Op names the access: the register for writes, the instruction
	// for maintenance and barriers.
	Op string

	// Val is the value written, or the address operand. Barriers carry
	// zero.
	Val uint64
}

// Hardware records every access in program order. The zero value is
// usable: it reports a 32-bit physical address range, 4K granule
// support, and the smallest expressible cache line.
type Hardware struct {
	// MMFR0 is returned by ReadMMFR0.
	MMFR0 uint64

	// CTR is returned by ReadCTR.
	CTR uint64

	// MMFR0Reads and CTRReads count feature register reads.
	MMFR0Reads int
	CTRReads   int

	// Events is the ordered trace of writes, maintenance and barriers.
	Events []Event
}

// ReadMMFR0 returns the preloaded ID_AA64MMFR0_EL1 value.
func (h *Hardware) ReadMMFR0() uint64 {
	h.MMFR0Reads++
	return h.MMFR0
}

// ReadCTR returns the preloaded CTR_EL0 value.
func (h *Hardware) ReadCTR() uint64 {
	h.CTRReads++
	return h.CTR
}

// WriteVTCR records a VTCR_EL2 write.
func (h *Hardware) WriteVTCR(v uint64) {
	h.record("VTCR_EL2", v)
}

// WriteMAIR records a MAIR_EL2 write.
func (h *Hardware) WriteMAIR(v uint64) {
	h.record("MAIR_EL2", v)
}

// WriteTTBR0 records a TTBR0_EL2 write.
func (h *Hardware) WriteTTBR0(v uint64) {
	h.record("TTBR0_EL2", v)
}

// WriteTCR records a TCR_EL2 write.
func (h *Hardware) WriteTCR(v uint64) {
	h.record("TCR_EL2", v)
}

// WriteSCTLR records a SCTLR_EL2 write.
func (h *Hardware) WriteSCTLR(v uint64) {
	h.record("SCTLR_EL2", v)
}

// CleanDCacheLine records a DC CVAC.
func (h *Hardware) CleanDCacheLine(va uintptr) {
	h.record("DC CVAC", uint64(va))
}

// DSB records a data synchronization barrier.
func (h *Hardware) DSB() {
	h.record("DSB SY", 0)
}

// ISB records an instruction synchronization barrier.
func (h *Hardware) ISB() {
	h.record("ISB", 0)
}

func (h *Hardware) record(op string, val uint64) {
	h.Events = append(h.Events, Event{Op: op, Val: val})
}

// Reset clears the trace and the read counters, keeping the preloaded
// register values.
func (h *Hardware) Reset() {
	h.Events = nil
	h.MMFR0Reads = 0
	h.CTRReads = 0
}

// Writes returns the values of all recorded writes to the named
// register, in order.
func (h *Hardware) Writes(op string) []uint64 {
	var vals []uint64
	for _, e := range h.Events {
		if e.Op == op {
			vals = append(vals, e.Val)
		}
	}
	return vals
}
