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

// Cuckoo is a compact single-level bucketized cuckoo table.
//
// All bulk calls borrow the caller's key and result buffers for the
// duration of the call. A call made with sync=false runs in the
// background; it is drained by Sync or by the next bulk call, and the
// buffers must not be touched until then. Host-side calls on one table
// must be serialized by the caller.
type Cuckoo struct {
	lvl      level
	maxChain int
	logger   log.Logger
	stats    tableStats
	stream   stream
}

// NewCuckoo builds a zero-filled table from cfg. Key width, address
// width, bucket size and hash count violations are reported at once; row
// width is checked only when those are valid.
func NewCuckoo(cfg CuckooConfig) (*Cuckoo, error) {
	cfg.setDefaults()
	triple, err := resolveSeeds(cfg.Seed, cfg.SeedTriple)
	if err != nil {
		return nil, err
	}
	c := &Cuckoo{
		maxChain: cfg.MaxChain,
		logger:   cfg.Logger,
	}
	c.lvl, err = newLevel(cfg.KeyWidth, cfg.level(), expandSeeds(triple, 0, cfg.NHash), cfg.Malloc, &c.stats)
	if err != nil {
		return nil, errors.Wrap(err, "cuckoo")
	}
	kitlevel.Debug(c.logger).Log(
		"msg", "cuckoo table constructed",
		"key_width", cfg.KeyWidth,
		"addr_width", cfg.AddrWidth,
		"bucket_size", cfg.BucketSize,
		"row_width", cfg.RowWidth,
		"nhash", cfg.NHash,
		"rows", c.lvl.rows(),
	)
	return c, nil
}

// Put attempts to insert every key and writes Put or Full per key. It
// does not detect duplicates: inserting a key twice stores it twice.
func (c *Cuckoo) Put(keys []Key, results []Result, sync bool) error {
	if err := checkBuffers(len(keys), len(results)); err != nil {
		return err
	}
	return c.stream.launch(sync, func() error {
		err := dispatch(keys, c.lvl.bucketSize, false, Put, func(_ int, k Key) Result {
			return c.lvl.coopPut(k, false, c.maxChain)
		}, func(i int, r Result) { results[i] = r })
		c.logOp("put", len(keys))
		return err
	})
}

// PutAvoidDups is Put, but writes Found for a key already resident in
// the probed bucket instead of storing it again.
func (c *Cuckoo) PutAvoidDups(keys []Key, results []Result, sync bool) error {
	if err := checkBuffers(len(keys), len(results)); err != nil {
		return err
	}
	return c.stream.launch(sync, func() error {
		err := dispatch(keys, c.lvl.bucketSize, false, Put, func(_ int, k Key) Result {
			return c.lvl.coopPut(k, true, c.maxChain)
		}, func(i int, r Result) { results[i] = r })
		c.logOp("put_avoid_dups", len(keys))
		return err
	})
}

// Find writes, per key, whether it is stored. Puts completed before the
// call are always observed; a put racing the call may be missed.
func (c *Cuckoo) Find(keys []Key, founds []bool, sync bool) error {
	if err := checkBuffers(len(keys), len(founds)); err != nil {
		return err
	}
	return c.stream.launch(sync, func() error {
		err := dispatch(keys, c.lvl.bucketSize, false, true, func(_ int, k Key) bool {
			return c.lvl.coopFind(k)
		}, func(i int, r bool) { founds[i] = r })
		c.logOp("find", len(keys))
		return err
	})
}

// FindOrPutSorted looks up and inserts in two passes over keys, which
// must be sorted so equal keys are adjacent. First occurrences read
// Found, Put or Full; every other occurrence reads Found, even when its
// first occurrence returned Full.
func (c *Cuckoo) FindOrPutSorted(keys []Key, results []Result, sync bool) error {
	if err := checkBuffers(len(keys), len(results)); err != nil {
		return err
	}
	return c.stream.launch(sync, func() error {
		err := twoPassFindOrPut(keys, c.lvl.bucketSize,
			c.lvl.coopFind,
			func(k Key) Result { return c.lvl.coopPut(k, true, c.maxChain) },
			func(i int) Result { return results[i] },
			func(i int, r Result) { results[i] = r })
		c.logOp("find_or_put_sorted", len(keys))
		return err
	})
}

// FindOrPut is the unsorted equivalent of FindOrPutSorted. The keys are
// copied into scratch, stable-sorted, and probed through views that
// land every result at the position of its key in the caller's
// buffers. scratch must hold at least 2*len(keys) entries.
func (c *Cuckoo) FindOrPut(keys []Key, scratch []Key, results []Result, sync bool) error {
	if err := checkBuffers(len(keys), len(results)); err != nil {
		return err
	}
	if len(scratch) < 2*len(keys) {
		return errors.Errorf("scratch holds %d keys, need %d", len(scratch), 2*len(keys))
	}
	return c.stream.launch(sync, func() error {
		sorted, ord := sortForProbe(keys, scratch)
		err := twoPassFindOrPut(sorted, c.lvl.bucketSize,
			c.lvl.coopFind,
			func(k Key) Result { return c.lvl.coopPut(k, true, c.maxChain) },
			func(i int) Result { return results[ord[i]] },
			func(i int, r Result) { results[ord[i]] = r })
		c.logOp("find_or_put", len(keys))
		return err
	})
}

// Clear drains pending work and zeroes the slab.
func (c *Cuckoo) Clear() error {
	err := c.stream.sync()
	c.lvl.slab.clear()
	kitlevel.Debug(c.logger).Log("msg", "cuckoo table cleared")
	return err
}

// Sync blocks until background bulk calls finish and returns their
// deferred errors.
func (c *Cuckoo) Sync() error {
	return c.stream.sync()
}

// Count returns the number of slots holding k.
func (c *Cuckoo) Count(k Key) int {
	return c.lvl.count(k)
}

// Rows returns the slot capacity of the table.
func (c *Cuckoo) Rows() int {
	return c.lvl.rows()
}

// LoadFactor is the ratio of occupied to allocated slots.
func (c *Cuckoo) LoadFactor() float64 {
	return c.lvl.loadFactor()
}

// Stats snapshots the insertion counters.
func (c *Cuckoo) Stats() Stats {
	return c.stats.snapshot()
}

func (c *Cuckoo) logOp(op string, n int) {
	kitlevel.Debug(c.logger).Log("msg", "bulk call done", "op", op, "keys", n)
}

func checkBuffers(keys, results int) error {
	if keys != results {
		return errors.Errorf("result buffer holds %d entries, need %d", results, keys)
	}
	return nil
}
