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

import "math/bits"

// A tile is a fixed-size group of cooperating lanes; here the lanes of
// one group run in a single goroutine, so a ballot is an ordinary word
// built by a per-lane loop. laneMask holds one ballot bit per lane,
// lane 0 in the lowest bit. Wide enough for a full warp.
type laneMask uint32

func laneBit(lane int) laneMask {
	return 1 << uint(lane)
}

func (m laneMask) any() bool {
	return m != 0
}

// count is the popcount reduction over the ballot.
func (m laneMask) count() int {
	return bits.OnesCount32(uint32(m))
}

// first is the lowest set lane (ffs); 32 when the ballot is empty.
func (m laneMask) first() int {
	return bits.TrailingZeros32(uint32(m))
}

func (m laneMask) drop(lane int) laneMask {
	return m &^ laneBit(lane)
}
