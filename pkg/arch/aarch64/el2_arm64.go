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

//go:build arm64

package aarch64

// EL2Hardware drives the translation registers directly. It is only
// usable when the code runs at EL2; the register accesses trap or are
// undefined anywhere else.
type EL2Hardware struct{}

var _ Hardware = EL2Hardware{}

// ReadMMFR0 implements Hardware.ReadMMFR0.
func (EL2Hardware) ReadMMFR0() uint64 {
	return readMMFR0()
}

// ReadCTR implements Hardware.ReadCTR.
func (EL2Hardware) ReadCTR() uint64 {
	return readCTR()
}

// WriteVTCR implements Hardware.WriteVTCR.
func (EL2Hardware) WriteVTCR(v uint64) {
	writeVTCR(v)
}

// WriteMAIR implements Hardware.WriteMAIR.
func (EL2Hardware) WriteMAIR(v uint64) {
	writeMAIR(v)
}

// WriteTTBR0 implements Hardware.WriteTTBR0.
func (EL2Hardware) WriteTTBR0(v uint64) {
	writeTTBR0(v)
}

// WriteTCR implements Hardware.WriteTCR.
func (EL2Hardware) WriteTCR(v uint64) {
	writeTCR(v)
}

// WriteSCTLR implements Hardware.WriteSCTLR.
func (EL2Hardware) WriteSCTLR(v uint64) {
	writeSCTLR(v)
}

// CleanDCacheLine implements Hardware.CleanDCacheLine.
func (EL2Hardware) CleanDCacheLine(va uintptr) {
	cleanDCacheLine(va)
}

// DSB implements Hardware.DSB.
func (EL2Hardware) DSB() {
	dsb()
}

// ISB implements Hardware.ISB.
func (EL2Hardware) ISB() {
	isb()
}

func readMMFR0() uint64

func readCTR() uint64

func writeVTCR(v uint64)

func writeMAIR(v uint64)

func writeTTBR0(v uint64)

func writeTCR(v uint64)

func writeSCTLR(v uint64)

func cleanDCacheLine(va uintptr)

func dsb()

func isb()
