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
	crand "crypto/rand"
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
	"github.com/dchest/siphash"
	"github.com/pkg/errors"
)

// sipRound is the keyed round function of the permutation family.
func sipRound(k0, k1, x uint64) uint64 {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], x)
	return siphash.Hash(k0, k1, b[:])
}

// expandSeeds derives one siphash key pair per hash function from the
// seed triple. tag separates hash families that share a triple (the two
// iceberg levels).
func expandSeeds(triple [3]uint64, tag byte, nhash int) [][2]uint64 {
	keys := make([][2]uint64, nhash)
	var b [10]byte
	for i := range keys {
		binary.LittleEndian.PutUint64(b[:8], triple[i%3])
		b[8] = tag
		b[9] = byte(i)
		keys[i][0] = xxhash.Sum64(b[:])
		b[9] = byte(i) | 0x80
		keys[i][1] = xxhash.Sum64(b[:])
	}
	return keys
}

// tripleFromWord stretches a single seed word into a round-seed triple.
func tripleFromWord(seed uint64) [3]uint64 {
	var t [3]uint64
	var b [9]byte
	binary.LittleEndian.PutUint64(b[:8], seed)
	for i := range t {
		b[8] = byte(i + 1)
		t[i] = xxhash.Sum64(b[:])
	}
	return t
}

func randomTriple() ([3]uint64, error) {
	var b [24]byte
	if _, err := crand.Read(b[:]); err != nil {
		return [3]uint64{}, errors.Wrap(err, "seeding permutation family")
	}
	var t [3]uint64
	for i := range t {
		t[i] = binary.LittleEndian.Uint64(b[8*i:])
	}
	return t, nil
}
