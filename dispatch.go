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
	"runtime"
	"sync"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

// dispatch runs probe once per key and hands the outcome to store.
// The range is cut into per-worker chunks aligned to the tile width;
// within each tile window the lowest pending lane is elected leader and
// its key probed, until no lane is pending. The order among distinct
// keys inside a window is leader-election order and nothing more.
//
// With sorted set, a lane is pending only when it holds the first
// occurrence of its key in the (sorted) input; the remaining
// occurrences are assigned dup after the window drains. This relies on
// duplicates being adjacent.
func dispatch[R any](keys []Key, lanes int, sorted bool, dup R, probe func(i int, k Key) R, store func(i int, r R)) error {
	if len(keys) == 0 {
		return nil
	}
	chunk := workerChunk(len(keys), lanes)
	g := new(errgroup.Group)
	for start := 0; start < len(keys); start += chunk {
		lo, hi := start, start+chunk
		if hi > len(keys) {
			hi = len(keys)
		}
		g.Go(func() error {
			runTiles(keys, lo, hi, lanes, sorted, dup, probe, store)
			return nil
		})
	}
	return g.Wait()
}

func runTiles[R any](keys []Key, lo, hi, lanes int, sorted bool, dup R, probe func(i int, k Key) R, store func(i int, r R)) {
	for ts := lo; ts < hi; ts += lanes {
		te := ts + lanes
		if te > hi {
			te = hi
		}
		var pending laneMask
		for lane := 0; lane < te-ts; lane++ {
			i := ts + lane
			if !sorted || i == 0 || keys[i] != keys[i-1] {
				pending |= laneBit(lane)
			}
		}
		for pending.any() {
			lead := pending.first()
			i := ts + lead
			store(i, probe(i, keys[i]))
			pending = pending.drop(lead)
		}
		if sorted {
			for lane := 0; lane < te-ts; lane++ {
				if i := ts + lane; i != 0 && keys[i] == keys[i-1] {
					store(i, dup)
				}
			}
		}
	}
}

// workerChunk spreads the range over the available workers, keeping
// chunk boundaries on tile boundaries.
func workerChunk(n, lanes int) int {
	chunk := (n + runtime.GOMAXPROCS(0) - 1) / runtime.GOMAXPROCS(0)
	if chunk < lanes {
		chunk = lanes
	}
	return (chunk + lanes - 1) / lanes * lanes
}

// twoPassFindOrPut is the sorted find-or-put protocol shared by both
// table families. Pass one probes for presence and records Found or
// leaves the slot undecided; pass two inserts every undecided first
// occurrence. Non-first occurrences always read Found, even when their
// first occurrence later comes back Full; the coarsening buys a
// dedup-free second pass and is part of the contract.
func twoPassFindOrPut(sorted []Key, lanes int, find func(Key) bool, put func(Key) Result, get func(i int) Result, set func(i int, r Result)) error {
	err := dispatch(sorted, lanes, true, Found, func(_ int, k Key) Result {
		if find(k) {
			return Found
		}
		return resultEmpty
	}, set)
	if err != nil {
		return err
	}
	return dispatch(sorted, lanes, true, Found, func(i int, k Key) Result {
		if get(i) == Found {
			return Found
		}
		return put(k)
	}, set)
}

// stream serializes a table's bulk calls the way an in-order device
// queue would: a new call waits for previously launched work, and a
// call launched without sync runs in the background until the next
// call or an explicit sync drains it. Concurrent host-side calls on
// one table are not supported.
type stream struct {
	mu  sync.Mutex
	wg  sync.WaitGroup
	err error
}

func (s *stream) launch(wait bool, fn func() error) error {
	s.wg.Wait()
	if wait {
		return fn()
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := fn(); err != nil {
			s.mu.Lock()
			s.err = multierr.Append(s.err, err)
			s.mu.Unlock()
		}
	}()
	return nil
}

// sync drains background work and surfaces its deferred errors.
func (s *stream) sync() error {
	s.wg.Wait()
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.err
	s.err = nil
	return err
}
