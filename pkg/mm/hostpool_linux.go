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

//go:build linux

package mm

import (
	"fmt"

	"golang.org/x/sys/unix"

	"rhenium.dev/rhenium/pkg/mem"
)

// NewHostPool returns a Pool over a fresh anonymous mapping of the
// given number of table pages. Hosted configurations use it; bare-metal
// boots hand NewPool a static carveout instead.
func NewHostPool(tables int) (*Pool, error) {
	buf, err := unix.Mmap(-1, 0, tables*mem.PageSize,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_ANONYMOUS|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("mapping %d table pages: %w", tables, err)
	}
	return NewPool(buf), nil
}
