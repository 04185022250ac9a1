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

import "golang.org/x/exp/slices"

// sortForProbe fills scratch with a sorted copy of keys and the index
// permutation that produced it: sorted[i] == keys[ord[i]]. The sort is
// stable, so duplicate keys keep their input order and the sorted
// first-occurrence of a key maps back to its first input position.
func sortForProbe(keys, scratch []Key) (sorted, ord []Key) {
	n := len(keys)
	sorted, ord = scratch[:n], scratch[n:2*n]
	for i := range ord {
		ord[i] = Key(i)
	}
	slices.SortStableFunc(ord, func(a, b Key) int {
		ka, kb := keys[a], keys[b]
		switch {
		case ka < kb:
			return -1
		case ka > kb:
			return 1
		}
		return 0
	})
	for i, j := range ord {
		sorted[i] = keys[j]
	}
	return sorted, ord
}
