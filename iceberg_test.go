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
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testIceberg(t *testing.T, seed uint64) *Iceberg {
	t.Helper()
	tb, err := NewIceberg(IcebergConfig{
		KeyWidth:  21,
		Primary:   LevelConfig{AddrWidth: 5, BucketSize: 32, NHash: 1},
		Secondary: LevelConfig{AddrWidth: 2, BucketSize: 16, NHash: 3},
		Seed:      seed,
	})
	require.NoError(t, err)
	return tb
}

func TestIcebergOverflowToSecondary(t *testing.T) {
	tb := testIceberg(t, 7)
	primaryRows := 32 * 32
	require.Equal(t, primaryRows+4*16, tb.Rows())

	// Fill the primary to capacity.
	keys := seq(0, primaryRows)
	results := make([]Result, len(keys))
	require.NoError(t, tb.Put(keys, results, true))
	for i, r := range results {
		require.Equal(t, Put, r, "key %d", keys[i])
	}
	p, s := tb.LevelLoadFactors()
	assert.Equal(t, 1.0, p)
	assert.Equal(t, 0.0, s)

	// Everything further lands in the secondary.
	over := seq(primaryRows, 48)
	overResults := make([]Result, len(over))
	require.NoError(t, tb.Put(over, overResults, true))
	for i, r := range overResults {
		require.Equal(t, Put, r, "overflow key %d", over[i])
	}
	p, s = tb.LevelLoadFactors()
	assert.Equal(t, 1.0, p)
	assert.Equal(t, 0.75, s)

	for _, k := range append(keys, over...) {
		assert.Equal(t, 1, tb.Count(k), "key %d", k)
	}
	founds := make([]bool, len(over))
	require.NoError(t, tb.Find(over, founds, true))
	for i, f := range founds {
		assert.True(t, f, "overflow key %d", over[i])
	}
}

func TestIcebergFindOrPutIdempotent(t *testing.T) {
	tb := testIceberg(t, 9)
	rng := rand.New(rand.NewSource(99))

	keys := make([]Key, 500)
	for i := range keys {
		keys[i] = Key(rng.Int63n(300))
	}
	results := make([]Result, len(keys))
	require.NoError(t, tb.FindOrPut(keys, results, true))
	for i, r := range results {
		assert.NotEqual(t, Full, r, "key %d", keys[i])
	}

	distinct := make(map[Key]bool)
	for _, k := range keys {
		distinct[k] = true
	}
	for k := range distinct {
		assert.Equal(t, 1, tb.Count(k), "key %d", k)
	}
	before := tb.LoadFactor()

	require.NoError(t, tb.FindOrPut(keys, results, true))
	for i, r := range results {
		assert.Equal(t, Found, r, "key %d on second pass", keys[i])
	}
	assert.Equal(t, before, tb.LoadFactor())
	for k := range distinct {
		assert.Equal(t, 1, tb.Count(k), "key %d", k)
	}
}

func TestIcebergFindOrPutSorted(t *testing.T) {
	tb := testIceberg(t, 11)

	keys := make([]Key, 0, 400)
	for k := 0; k < 150; k++ {
		keys = append(keys, Key(k))
		if k%2 == 0 {
			keys = append(keys, Key(k))
		}
	}
	results := make([]Result, len(keys))
	require.NoError(t, tb.FindOrPutSorted(keys, results, true))
	for i := 1; i < len(keys); i++ {
		if keys[i] == keys[i-1] {
			assert.Equal(t, Found, results[i], "duplicate occurrence of %d", keys[i])
		}
	}
	for k := 0; k < 150; k++ {
		assert.Equal(t, 1, tb.Count(Key(k)))
	}

	require.NoError(t, tb.FindOrPutSorted(keys, results, true))
	for i, r := range results {
		assert.Equal(t, Found, r, "key %d on second pass", keys[i])
	}
}

func TestIcebergPutAvoidDups(t *testing.T) {
	tb := testIceberg(t, 13)

	keys := seq(50, 80)
	results := make([]Result, len(keys))
	require.NoError(t, tb.PutAvoidDups(keys, results, true))
	for _, r := range results {
		assert.Equal(t, Put, r)
	}
	require.NoError(t, tb.PutAvoidDups(keys, results, true))
	for i, r := range results {
		assert.Equal(t, Found, r, "key %d already resident", keys[i])
		assert.Equal(t, 1, tb.Count(keys[i]))
	}
}

func TestIcebergClear(t *testing.T) {
	tb := testIceberg(t, 17)

	keys := seq(0, 1100) // spills into the secondary
	results := make([]Result, len(keys))
	require.NoError(t, tb.Put(keys, results, true))
	assert.Greater(t, tb.LoadFactor(), 0.0)

	require.NoError(t, tb.Clear())
	assert.Equal(t, 0.0, tb.LoadFactor())
	for _, k := range keys {
		assert.Equal(t, 0, tb.Count(k))
	}
}

func TestIcebergAsync(t *testing.T) {
	tb := testIceberg(t, 19)

	keys := seq(0, 600)
	results := make([]Result, len(keys))
	require.NoError(t, tb.Put(keys, results, false))
	require.NoError(t, tb.Sync())
	for _, r := range results {
		assert.Equal(t, Put, r)
	}
}

func TestIcebergConfigErrors(t *testing.T) {
	_, err := NewIceberg(IcebergConfig{
		KeyWidth:  21,
		Primary:   LevelConfig{AddrWidth: 21},
		Secondary: LevelConfig{AddrWidth: 2},
	})
	assert.Error(t, err)

	_, err = NewIceberg(IcebergConfig{
		KeyWidth:  21,
		Primary:   LevelConfig{AddrWidth: 5},
		Secondary: LevelConfig{AddrWidth: 2, BucketSize: 24},
	})
	assert.Error(t, err)
}
