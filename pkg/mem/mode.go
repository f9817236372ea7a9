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

package mem

// Mode describes the access policy requested for a mapping, independent
// of the translation stage and of the descriptor encoding. Any
// combination of bits is meaningful; an empty Mode maps memory that
// allows no access at all.
type Mode uint32

// Mode bits.
const (
	// ModeRead allows loads from the mapping.
	ModeRead Mode = 1 << iota

	// ModeWrite allows stores to the mapping. At stage 1 a writable
	// mapping is always readable as well: the hardware has no
	// write-only encoding.
	ModeWrite

	// ModeExecute allows instruction fetch from the mapping.
	ModeExecute

	// ModeDevice marks the mapping as device memory: accesses are not
	// cached, gathered or reordered.
	ModeDevice
)

// Read returns true if the mode allows loads.
func (m Mode) Read() bool {
	return m&ModeRead != 0
}

// Write returns true if the mode allows stores.
func (m Mode) Write() bool {
	return m&ModeWrite != 0
}

// Execute returns true if the mode allows instruction fetch.
func (m Mode) Execute() bool {
	return m&ModeExecute != 0
}

// Device returns true if the mode requests device memory.
func (m Mode) Device() bool {
	return m&ModeDevice != 0
}

// String implements fmt.Stringer.
func (m Mode) String() string {
	b := []byte("----")
	if m.Read() {
		b[0] = 'r'
	}
	if m.Write() {
		b[1] = 'w'
	}
	if m.Execute() {
		b[2] = 'x'
	}
	if m.Device() {
		b[3] = 'd'
	}
	return string(b)
}

// Stage selects the translation regime an operation applies to. The zero
// value is deliberately not a valid stage.
type Stage uint8

const (
	// Stage1 is the hypervisor's own translation regime: EL2 virtual
	// addresses to physical addresses.
	Stage1 Stage = iota + 1

	// Stage2 is the guest translation regime: guest-physical addresses
	// to physical addresses.
	Stage2
)

// String implements fmt.Stringer.
func (s Stage) String() string {
	switch s {
	case Stage1:
		return "stage 1"
	case Stage2:
		return "stage 2"
	default:
		return "stage ?"
	}
}
