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
	"rhenium.dev/rhenium/pkg/mem"
)

// Attrs is the attribute portion of a translation table descriptor:
// permission, shareability and memory-type bits, never address bits or
// the descriptor type. Values are meaningful only for the stage they
// were encoded for.
type Attrs uint64

// Shareability encodings for the SH field of block and page descriptors.
const (
	shareNone  = 0
	shareOuter = 2
	shareInner = 3
)

// Stage 1 block and page descriptor bits.
const (
	stage1XN  Attrs = 1 << 54
	stage1PXN Attrs = 1 << 53
	stage1AF  Attrs = 1 << 10
	stage1AP2 Attrs = 1 << 7
	stage1AP1 Attrs = 1 << 6
	stage1NS  Attrs = 1 << 5
)

// Stage 1 AP[2:1] encodings. AP[1] is res1 at EL2, so only the
// read-only bit varies.
const (
	stage1ReadOnly  = 2
	stage1ReadWrite = 0
)

// MAIR_EL2 attribute indexes. The index values themselves are part of
// the register image, the shifted forms go in descriptors.
const (
	stage1DeviceIndex = 0 // Device-nGnRnE.
	stage1NormalIndex = 1 // Normal, write-back, write-allocate.
)

func stage1SH(sh uint64) Attrs      { return Attrs(sh << 8) }
func stage1AP(ap uint64) Attrs      { return Attrs(ap << 6) }
func stage1AttrIndx(i uint64) Attrs { return Attrs(i << 2) }

// Stage 2 block and page descriptor bits.
const (
	stage2AF Attrs = 1 << 10
)

// Stage 2 XN[1:0] encodings.
const (
	stage2ExecuteAll  = 0
	stage2ExecuteNone = 2
)

// Stage 2 S2AP bits.
const (
	stage2AccessRead  = 1
	stage2AccessWrite = 2
)

// Stage 2 MemAttr cacheability encodings for normal memory.
const (
	stage2NonCacheable = 1
	stage2WriteThrough = 2
	stage2WriteBack    = 3
)

// Stage 2 MemAttr encodings for device memory.
const (
	stage2DeviceNGnRnE = 0
	stage2DeviceNGnRE  = 1
	stage2DeviceNGRE   = 2
	stage2DeviceGRE    = 3
)

func stage2XN(xn uint64) Attrs   { return Attrs(xn << 53) }
func stage2SH(sh uint64) Attrs   { return Attrs(sh << 8) }
func stage2S2AP(ap uint64) Attrs { return Attrs(ap << 6) }

func stage2MemAttrNormal(outer, inner uint64) Attrs {
	return Attrs(((outer << 2) | inner) << 2)
}

func stage2MemAttrDevice(d uint64) Attrs {
	return Attrs(d << 2)
}

// Table descriptor bits. These apply a restriction to every block and
// page reachable through the table. Only stage 1 table descriptors have
// them; at stage 2 the bits are res0.
const (
	tableNSTable  Attrs = 1 << 63
	tableAPTable1 Attrs = 1 << 62
	tableAPTable0 Attrs = 1 << 61
	tableXNTable  Attrs = 1 << 60
	tablePXNTable Attrs = 1 << 59
)

// ModeToAttrs encodes an access mode as block and page descriptor
// attribute bits for the given stage. The encoding is total and
// deterministic: every mode has an image and there is no failure path.
//
// Both stages mark mappings accessed (AF set) so that no access faults
// are taken for them, and neither stage uses hardware dirty-state
// management.
func ModeToAttrs(stage mem.Stage, mode mem.Mode) Attrs {
	if stage == mem.Stage1 {
		attrs := stage1AF | stage1SH(shareOuter)

		// Stage 1 has no execute-only or write-only encodings:
		// execute-never is a single bit and writability implies
		// readability.
		if !mode.Execute() {
			attrs |= stage1XN
		}
		if mode.Write() {
			attrs |= stage1AP(stage1ReadWrite)
		} else {
			attrs |= stage1AP(stage1ReadOnly)
		}

		if mode.Device() {
			attrs |= stage1AttrIndx(stage1DeviceIndex)
		} else {
			attrs |= stage1AttrIndx(stage1NormalIndex)
		}
		return attrs
	}

	attrs := stage2AF | stage2SH(shareNone)

	// Stage 2 read and write permissions are independent bits, and
	// execute-never is a two-bit field distinguishing the guest's
	// exception levels. Rhenium never grants a guest partial execute.
	if mode.Execute() {
		attrs |= stage2XN(stage2ExecuteAll)
	} else {
		attrs |= stage2XN(stage2ExecuteNone)
	}
	if mode.Read() {
		attrs |= stage2S2AP(stage2AccessRead)
	}
	if mode.Write() {
		attrs |= stage2S2AP(stage2AccessWrite)
	}

	// Stage 2 assigns the memory type directly rather than through
	// MAIR. Device mappings get nGnRnE, the strongest device type.
	if mode.Device() {
		attrs |= stage2MemAttrDevice(stage2DeviceNGnRnE)
	} else {
		attrs |= stage2MemAttrNormal(stage2WriteBack, stage2WriteBack)
	}
	return attrs
}

// CombineTableAttrs folds the restrictions carried by a table descriptor
// into the attributes of a block or page beneath it, returning the
// effective attributes. Restrictions only ever remove permissions, so
// folding a table with no restriction bits set is the identity.
//
// Stage 2 table descriptors carry no restrictions, so stage 2 attributes
// pass through unchanged.
func CombineTableAttrs(table, block Attrs) Attrs {
	if table&tableNSTable != 0 {
		block |= stage1NS
	}
	if table&tableAPTable1 != 0 {
		block |= stage1AP2
	}
	if table&tableAPTable0 != 0 {
		block &^= stage1AP1
	}
	if table&tableXNTable != 0 {
		block |= stage1XN
	}
	if table&tablePXNTable != 0 {
		block |= stage1PXN
	}
	return block
}
