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
	"github.com/go-kit/log"
	kitlevel "github.com/go-kit/log/level"
	"github.com/pkg/errors"
)

// Iceberg is a compact two-level table. Inserts claim the leftmost free
// slot under the primary hash chain and never displace a resident; only
// when every primary bucket is full does a key fall through to the
// secondary, a small cuckoo level with its own hash family.
//
// The bulk-call contract matches Cuckoo: buffers are borrowed for the
// call, sync=false runs in the background, host-side calls on one table
// are serialized by the caller.
type Iceberg struct {
	primary   level
	secondary level
	maxChain  int
	logger    log.Logger
	stats     tableStats
	stream    stream
}

// NewIceberg builds a zero-filled two-level table from cfg.
func NewIceberg(cfg IcebergConfig) (*Iceberg, error) {
	cfg.setDefaults()
	triple, err := resolveSeeds(cfg.Seed, cfg.SeedTriple)
	if err != nil {
		return nil, err
	}
	t := &Iceberg{
		maxChain: cfg.MaxChain,
		logger:   cfg.Logger,
	}
	t.primary, err = newLevel(cfg.KeyWidth, cfg.Primary, expandSeeds(triple, 0, cfg.Primary.NHash), cfg.Malloc, &t.stats)
	if err != nil {
		return nil, errors.Wrap(err, "iceberg primary")
	}
	t.secondary, err = newLevel(cfg.KeyWidth, cfg.Secondary, expandSeeds(triple, 1, cfg.Secondary.NHash), cfg.Malloc, &t.stats)
	if err != nil {
		return nil, errors.Wrap(err, "iceberg secondary")
	}
	kitlevel.Debug(t.logger).Log(
		"msg", "iceberg table constructed",
		"key_width", cfg.KeyWidth,
		"p_addr_width", cfg.Primary.AddrWidth,
		"p_bucket_size", cfg.Primary.BucketSize,
		"p_nhash", cfg.Primary.NHash,
		"s_addr_width", cfg.Secondary.AddrWidth,
		"s_bucket_size", cfg.Secondary.BucketSize,
		"s_nhash", cfg.Secondary.NHash,
		"rows", t.primary.rows()+t.secondary.rows(),
	)
	return t, nil
}

// coopFind checks both levels. An empty primary slot is not proof of
// absence: the key may have fallen through to the secondary while its
// primary bucket was briefly full, so the secondary is probed
// regardless of what the primary showed.
func (t *Iceberg) coopFind(k Key) bool {
	if t.primary.coopFind(k) {
		return true
	}
	return t.secondary.coopFind(k)
}

func (t *Iceberg) coopPut(k Key, avoidDups bool) Result {
	if r, done := t.primary.coopPutNoEvict(k, avoidDups); done {
		return r
	}
	return t.secondary.coopPut(k, avoidDups, t.maxChain)
}

// Put attempts to insert every key and writes Put or Full per key,
// without duplicate detection.
func (t *Iceberg) Put(keys []Key, results []Result, sync bool) error {
	if err := checkBuffers(len(keys), len(results)); err != nil {
		return err
	}
	return t.stream.launch(sync, func() error {
		err := dispatch(keys, t.primary.bucketSize, false, Put, func(_ int, k Key) Result {
			return t.coopPut(k, false)
		}, func(i int, r Result) { results[i] = r })
		t.logOp("put", len(keys))
		return err
	})
}

// PutAvoidDups is Put with duplicate detection in the probed buckets.
func (t *Iceberg) PutAvoidDups(keys []Key, results []Result, sync bool) error {
	if err := checkBuffers(len(keys), len(results)); err != nil {
		return err
	}
	return t.stream.launch(sync, func() error {
		err := dispatch(keys, t.primary.bucketSize, false, Put, func(_ int, k Key) Result {
			return t.coopPut(k, true)
		}, func(i int, r Result) { results[i] = r })
		t.logOp("put_avoid_dups", len(keys))
		return err
	})
}

// Find writes, per key, whether it is stored in either level.
func (t *Iceberg) Find(keys []Key, founds []bool, sync bool) error {
	if err := checkBuffers(len(keys), len(founds)); err != nil {
		return err
	}
	return t.stream.launch(sync, func() error {
		err := dispatch(keys, t.primary.bucketSize, false, true, func(_ int, k Key) bool {
			return t.coopFind(k)
		}, func(i int, r bool) { founds[i] = r })
		t.logOp("find", len(keys))
		return err
	})
}

// FindOrPutSorted is the two-pass find-or-put over sorted keys, with
// the same contract as the Cuckoo variant.
func (t *Iceberg) FindOrPutSorted(keys []Key, results []Result, sync bool) error {
	if err := checkBuffers(len(keys), len(results)); err != nil {
		return err
	}
	return t.stream.launch(sync, func() error {
		err := twoPassFindOrPut(keys, t.primary.bucketSize,
			t.coopFind,
			func(k Key) Result { return t.coopPut(k, true) },
			func(i int) Result { return results[i] },
			func(i int, r Result) { results[i] = r })
		t.logOp("find_or_put_sorted", len(keys))
		return err
	})
}

// FindOrPut looks up and inserts arbitrary keys without caller scratch:
// outside the secondary's eviction chain the put protocol never
// overwrites an occupied slot, so a per-key find-then-put with
// duplicate avoidance keeps each key in at most one slot; no sorting
// pass is needed.
func (t *Iceberg) FindOrPut(keys []Key, results []Result, sync bool) error {
	if err := checkBuffers(len(keys), len(results)); err != nil {
		return err
	}
	return t.stream.launch(sync, func() error {
		err := dispatch(keys, t.primary.bucketSize, false, Found, func(_ int, k Key) Result {
			if t.coopFind(k) {
				return Found
			}
			return t.coopPut(k, true)
		}, func(i int, r Result) { results[i] = r })
		t.logOp("find_or_put", len(keys))
		return err
	})
}

// Clear drains pending work and zeroes both slabs.
func (t *Iceberg) Clear() error {
	err := t.stream.sync()
	t.primary.slab.clear()
	t.secondary.slab.clear()
	kitlevel.Debug(t.logger).Log("msg", "iceberg table cleared")
	return err
}

// Sync blocks until background bulk calls finish and returns their
// deferred errors.
func (t *Iceberg) Sync() error {
	return t.stream.sync()
}

// Count returns the number of slots holding k across both levels.
func (t *Iceberg) Count(k Key) int {
	return t.primary.count(k) + t.secondary.count(k)
}

// Rows returns the combined slot capacity.
func (t *Iceberg) Rows() int {
	return t.primary.rows() + t.secondary.rows()
}

// LoadFactor is the combined ratio of occupied to allocated slots.
func (t *Iceberg) LoadFactor() float64 {
	occ := t.primary.slab.occupied() + t.secondary.slab.occupied()
	return float64(occ) / float64(t.Rows())
}

// LevelLoadFactors reports the primary and secondary load separately.
func (t *Iceberg) LevelLoadFactors() (primary, secondary float64) {
	return t.primary.loadFactor(), t.secondary.loadFactor()
}

// Stats snapshots the insertion counters, summed over both levels.
func (t *Iceberg) Stats() Stats {
	return t.stats.snapshot()
}

func (t *Iceberg) logOp(op string, n int) {
	kitlevel.Debug(t.logger).Log("msg", "bulk call done", "op", op, "keys", n)
}
