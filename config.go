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

// Package compact implements compact bucketized hash tables for integer
// keys, probed in bulk by cooperating lane groups.
//
// Two table families are provided. Cuckoo is a single-level bucketized
// cuckoo table with a bounded eviction chain. Iceberg is a two-level
// table whose primary level absorbs the common case with a short hash
// chain and whose smaller secondary level rescues overflows with a
// richer hash family.
//
// Both families store less than a full key per slot: a keyed invertible
// permutation of the key is split into an address (implicit in the slot
// location) and a remainder (stored next to a small state tag). The
// permutation inverse recovers evicted keys during cuckoo chains.
package compact

import (
	"github.com/go-kit/log"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// configurable variables (for tuning the algorithm)
const (
	warpWidth      = 32 // Lane groups must partition a warp evenly.
	maxChainFactor = 20 // Eviction chains are bounded by maxChainFactor*nhash steps.
)

// defaults used when a config field is left zero
const (
	defaultNHash               = 3
	defaultBucketSize          = warpWidth
	defaultPrimaryNHash        = 1
	defaultSecondaryNHash      = 3
	defaultSecondaryBucketSize = 16
)

const maxNHash = 8

// Key must hold the full key universe; tables are configured with an
// effective width of at most 64 bits. Keys outside [0, 1<<KeyWidth)
// are the caller's bug.
type Key uint64

// Malloc allocates backing rows for a slab. Implementations may return
// dirty memory; the slab zeroes what it uses.
type Malloc func(rows int) []uint64

// LevelConfig describes the geometry of one table level.
//
// AddrWidth is the number of address bits: the level has 1<<AddrWidth
// buckets of BucketSize slots each. RowWidth is the per-slot width in
// bits and must hold the state tag plus the key remainder; zero selects
// the minimal width. NHash is the number of hash functions; zero selects
// the family default.
type LevelConfig struct {
	AddrWidth  int
	BucketSize int
	RowWidth   int
	NHash      int
}

// CuckooConfig configures a single-level cuckoo table.
type CuckooConfig struct {
	// KeyWidth is the key width W in bits; keys live in [0, 1<<W).
	KeyWidth int

	AddrWidth  int
	BucketSize int
	RowWidth   int
	NHash      int

	// MaxChain bounds the eviction chain; zero selects
	// maxChainFactor*NHash.
	MaxChain int

	// Seed seeds the permutation family. SeedTriple, when set, supplies
	// the three round seeds directly and wins over Seed. When both are
	// absent the seeds are drawn from crypto/rand.
	Seed       uint64
	SeedTriple *[3]uint64

	// Malloc overrides the slab allocator (default: make).
	Malloc Malloc

	// Logger receives construction and bulk-call debug events
	// (default: nop).
	Logger log.Logger
}

// IcebergConfig configures a two-level iceberg table. The secondary
// level is typically an eighth of the primary with a richer hash family.
type IcebergConfig struct {
	KeyWidth int

	Primary   LevelConfig
	Secondary LevelConfig

	// MaxChain bounds the secondary eviction chain; zero selects
	// maxChainFactor*Secondary.NHash.
	MaxChain int

	Seed       uint64
	SeedTriple *[3]uint64

	Malloc Malloc
	Logger log.Logger
}

func validLevel(keyWidth int, lc LevelConfig) error {
	var err error
	if keyWidth < 1 || keyWidth > 64 {
		err = multierr.Append(err, errors.Errorf("key width %d outside [1, 64]", keyWidth))
	}
	if lc.AddrWidth < 0 || lc.AddrWidth >= keyWidth {
		err = multierr.Append(err, errors.Errorf("address width %d outside [0, key width %d)", lc.AddrWidth, keyWidth))
	}
	if lc.BucketSize < 1 || lc.BucketSize > warpWidth || warpWidth%lc.BucketSize != 0 {
		err = multierr.Append(err, errors.Errorf("bucket size %d does not divide the warp width %d", lc.BucketSize, warpWidth))
	}
	if lc.NHash < 1 || lc.NHash > maxNHash {
		err = multierr.Append(err, errors.Errorf("hash count %d outside [1, %d]", lc.NHash, maxNHash))
	}
	if err != nil {
		return err
	}
	if min := stateWidth(lc.NHash) + keyWidth - lc.AddrWidth; lc.RowWidth < min {
		err = multierr.Append(err, errors.Errorf("row width %d below state+remainder width %d", lc.RowWidth, min))
	}
	if lc.RowWidth > 64 {
		err = multierr.Append(err, errors.Errorf("row width %d exceeds 64", lc.RowWidth))
	}
	return err
}

func (cfg *CuckooConfig) setDefaults() {
	if cfg.BucketSize == 0 {
		cfg.BucketSize = defaultBucketSize
	}
	if cfg.NHash == 0 {
		cfg.NHash = defaultNHash
	}
	if cfg.RowWidth == 0 && cfg.KeyWidth > cfg.AddrWidth {
		cfg.RowWidth = stateWidth(cfg.NHash) + cfg.KeyWidth - cfg.AddrWidth
	}
	if cfg.MaxChain == 0 {
		cfg.MaxChain = maxChainFactor * cfg.NHash
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NewNopLogger()
	}
}

func (cfg *CuckooConfig) level() LevelConfig {
	return LevelConfig{
		AddrWidth:  cfg.AddrWidth,
		BucketSize: cfg.BucketSize,
		RowWidth:   cfg.RowWidth,
		NHash:      cfg.NHash,
	}
}

func (cfg *IcebergConfig) setDefaults() {
	p, s := &cfg.Primary, &cfg.Secondary
	if p.BucketSize == 0 {
		p.BucketSize = defaultBucketSize
	}
	if p.NHash == 0 {
		p.NHash = defaultPrimaryNHash
	}
	if p.RowWidth == 0 && cfg.KeyWidth > p.AddrWidth {
		p.RowWidth = stateWidth(p.NHash) + cfg.KeyWidth - p.AddrWidth
	}
	if s.BucketSize == 0 {
		s.BucketSize = defaultSecondaryBucketSize
	}
	if s.NHash == 0 {
		s.NHash = defaultSecondaryNHash
	}
	if s.RowWidth == 0 && cfg.KeyWidth > s.AddrWidth {
		s.RowWidth = stateWidth(s.NHash) + cfg.KeyWidth - s.AddrWidth
	}
	if cfg.MaxChain == 0 {
		cfg.MaxChain = maxChainFactor * s.NHash
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NewNopLogger()
	}
}

func resolveSeeds(seed uint64, triple *[3]uint64) ([3]uint64, error) {
	if triple != nil {
		return *triple, nil
	}
	if seed != 0 {
		return tripleFromWord(seed), nil
	}
	return randomTriple()
}
