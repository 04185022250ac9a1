// Copyright (c) 2024 The compact-parallel-hash-tables Authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package compact

import (
	"sync/atomic"

	"github.com/pkg/errors"
)

// slab is a zero-initialized row array mutated through per-row atomics.
// A table owns its slab for the table's whole lifetime.
type slab struct {
	rows []uint64
}

func newSlab(malloc Malloc, nrows int) (slab, error) {
	if malloc == nil {
		malloc = func(n int) []uint64 { return make([]uint64, n) }
	}
	rows := malloc(nrows)
	if len(rows) < nrows {
		return slab{}, errors.Errorf("allocator returned %d rows, need %d", len(rows), nrows)
	}
	s := slab{rows: rows[:nrows]}
	s.clear()
	return s, nil
}

func (s slab) load(i uint64) uint64 {
	return atomic.LoadUint64(&s.rows[i])
}

func (s slab) cas(i, old, new uint64) bool {
	return atomic.CompareAndSwapUint64(&s.rows[i], old, new)
}

func (s slab) exchange(i, v uint64) uint64 {
	return atomic.SwapUint64(&s.rows[i], v)
}

func (s slab) clear() {
	for i := range s.rows {
		atomic.StoreUint64(&s.rows[i], 0)
	}
}

// occupied counts nonzero rows. Host-side; linear in the slab.
func (s slab) occupied() int {
	n := 0
	for i := range s.rows {
		if atomic.LoadUint64(&s.rows[i]) != 0 {
			n++
		}
	}
	return n
}
