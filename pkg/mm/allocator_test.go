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
	"errors"
	"testing"

	"rhenium.dev/rhenium/pkg/mem"
)

func TestPoolRoundTrip(t *testing.T) {
	pool := NewPool(make([]byte, 8*mem.PageSize))
	tables, physical, err := pool.NewPTEs(1)
	if err != nil {
		t.Fatalf("NewPTEs: %v", err)
	}
	if got := pool.LookupPTEs(physical); got != tables[0] {
		t.Errorf("LookupPTEs(%#x): got %p, wanted %p", physical, got, tables[0])
	}
	if !mem.PhysAddr(physical).PageAligned() {
		t.Errorf("table at %#x is not page aligned", physical)
	}
}

func TestPoolContiguousRuns(t *testing.T) {
	pool := NewPool(make([]byte, 16*mem.PageSize))
	tables, physical, err := pool.NewPTEs(4)
	if err != nil {
		t.Fatalf("NewPTEs(4): %v", err)
	}

	// A concatenated root must be aligned to its own size and laid
	// out back to back.
	if uint64(physical)&(4*mem.PageSize-1) != 0 {
		t.Errorf("run at %#x is not aligned to its size", physical)
	}
	for j, table := range tables {
		want := physical + mem.PhysAddr(j)*mem.PageSize
		if got := pool.LookupPTEs(want); got != table {
			t.Errorf("table %d: %p is not at %#x", j, table, want)
		}
	}
}

func TestPoolZeroesTables(t *testing.T) {
	pool := NewPool(make([]byte, 4*mem.PageSize))
	tables, _, err := pool.NewPTEs(1)
	if err != nil {
		t.Fatalf("NewPTEs: %v", err)
	}
	tables[0][17].Set(0xdead)
	pool.FreePTEs(tables[0])

	// A recycled page must come back as an empty table.
	again, _, err := pool.NewPTEs(1)
	if err != nil {
		t.Fatalf("NewPTEs: %v", err)
	}
	for i := range again[0] {
		if again[0][i].Valid() {
			t.Fatalf("entry %d of a fresh table is valid", i)
		}
	}
}

func TestPoolExhaustion(t *testing.T) {
	pool := NewPool(make([]byte, 3*mem.PageSize))

	var keep []mem.PhysAddr
	for {
		_, physical, err := pool.NewPTEs(1)
		if err != nil {
			if !errors.Is(err, ErrNoTables) {
				t.Fatalf("NewPTEs: got %v, wanted ErrNoTables", err)
			}
			break
		}
		keep = append(keep, physical)
	}
	if len(keep) == 0 {
		t.Fatalf("pool handed out nothing")
	}

	// Freeing one page makes exactly one allocation possible again.
	pool.FreePTEs(pool.LookupPTEs(keep[0]))
	if _, _, err := pool.NewPTEs(1); err != nil {
		t.Fatalf("NewPTEs after free: %v", err)
	}
	if _, _, err := pool.NewPTEs(1); !errors.Is(err, ErrNoTables) {
		t.Fatalf("NewPTEs: got %v, wanted ErrNoTables", err)
	}
}

func TestPoolForeignFree(t *testing.T) {
	pool := NewPool(make([]byte, 4*mem.PageSize))
	other := NewPool(make([]byte, 4*mem.PageSize))
	tables, _, err := other.NewPTEs(1)
	if err != nil {
		t.Fatalf("NewPTEs: %v", err)
	}
	defer func() {
		if recover() == nil {
			t.Errorf("freeing a foreign table did not panic")
		}
	}()
	pool.FreePTEs(tables[0])
}

func TestPoolRunSizePowerOfTwo(t *testing.T) {
	pool := NewPool(make([]byte, 8*mem.PageSize))
	defer func() {
		if recover() == nil {
			t.Errorf("NewPTEs(3) did not panic")
		}
	}()
	pool.NewPTEs(3)
}
