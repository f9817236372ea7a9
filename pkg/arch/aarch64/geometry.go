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

import (
	"errors"
	"fmt"

	"rhenium.dev/rhenium/pkg/mem"
)

// Init errors. Both indicate hardware the engine cannot drive; there is
// no degraded mode.
var (
	// ErrNoGranule4K is returned when the implementation does not
	// support 4K translation granules.
	ErrNoGranule4K = errors.New("4K translation granules are not supported")

	// ErrUnknownPARange is returned when ID_AA64MMFR0_EL1.PARange holds
	// a code this engine does not know.
	ErrUnknownPARange = errors.New("unknown physical address range")
)

// ID_AA64MMFR0_EL1 fields consulted by the probe.
const (
	mmfr0TGran4Shift  = 28
	mmfr0PARangeShift = 0
)

// paRangeBits maps ID_AA64MMFR0_EL1.PARange codes to physical address
// widths. Zero marks codes this engine does not handle; 52-bit output
// needs the 64K granule, so its code stays unhandled deliberately.
var paRangeBits = [16]uint8{32, 36, 40, 42, 44, 48}

// geometry is the stage 2 translation shape derived from the physical
// address range: the depth of the walk and the number of tables
// concatenated at the root, plus the register fields describing both.
type geometry struct {
	paRange  uint8 // PARange code, programmed into the PS fields.
	paBits   uint8 // Physical address width implied by paRange.
	sl0      uint8 // VTCR_EL2.SL0, the hardware starting level.
	maxLevel uint8 // Deepest stage 2 table level, counting from 0.
	roots    uint8 // Concatenated tables at the stage 2 root.
}

// probeGeometry derives the stage 2 geometry from ID_AA64MMFR0_EL1. The
// result is a property of the platform: every core of a system reports
// the same value, so the probe runs once.
func probeGeometry(features uint64) (geometry, error) {
	if features>>mmfr0TGran4Shift&0xf != 0 {
		return geometry{}, ErrNoGranule4K
	}

	code := uint8(features >> mmfr0PARangeShift & 0xf)
	paBits := paRangeBits[code]
	if paBits == 0 {
		return geometry{}, fmt.Errorf("%w: code %#x", ErrUnknownPARange, code)
	}

	g := geometry{paRange: code, paBits: paBits}

	// The input address must be resolved within the walk the hardware
	// starts at SL0, so deeper walks buy wider ranges.
	switch {
	case paBits >= 44:
		g.sl0 = 2
		g.maxLevel = 3
	case paBits >= 35:
		g.sl0 = 1
		g.maxLevel = 2
	default:
		g.sl0 = 0
		g.maxLevel = 1
	}

	// Address bits beyond those the walk resolves are covered by
	// concatenating tables at the root, up to 16. Leftovers above four
	// bits mean the walk is already one level deeper than strictly
	// needed and a single root suffices.
	extraBits := (uint(paBits) - mem.PageBits) % mem.LevelBits
	if extraBits > 4 {
		extraBits = 0
	}
	g.roots = 1 << extraBits

	return g, nil
}
