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

// permuter is a family of keyed bijections over [0, 1<<keyWidth). Each
// member is a one-round Feistel network: the low addrWidth bits are
// XORed with a keyed hash of the high bits, so the low half (the bucket
// address) is fully mixed while the high half passes through as the
// stored remainder.
type permuter struct {
	addrWidth int
	addrMask  uint64
	keys      [][2]uint64 // one siphash key pair per family member
}

func newPermuter(addrWidth int, keys [][2]uint64) permuter {
	return permuter{
		addrWidth: addrWidth,
		addrMask:  lowMask(addrWidth),
		keys:      keys,
	}
}

func (p permuter) forward(i int, k Key) uint64 {
	hi := uint64(k) >> uint(p.addrWidth)
	lo := uint64(k) & p.addrMask
	return hi<<uint(p.addrWidth) | (lo^sipRound(p.keys[i][0], p.keys[i][1], hi))&p.addrMask
}

// inverse recovers k from forward(i, k). A single XOR round is its own
// inverse.
func (p permuter) inverse(i int, x uint64) Key {
	return Key(p.forward(i, Key(x)))
}
