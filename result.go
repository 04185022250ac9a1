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

import "go.uber.org/atomic"

// Result is the per-key outcome of a bulk mutation.
type Result uint8

const (
	// Found: the key was already present in the probed buckets.
	Found Result = iota
	// Put: the key was inserted.
	Put
	// Full: the table rejected the key (eviction chain bound reached).
	Full
)

// resultEmpty marks "nothing decided yet" between the two passes of
// find-or-put. It shares Put's encoding: a first pass that found
// nothing leaves the value the second pass would write on a successful
// insert.
const resultEmpty = Put

func (r Result) String() string {
	switch r {
	case Found:
		return "found"
	case Put:
		return "put"
	case Full:
		return "full"
	}
	return "invalid"
}

// anyFull is a process-wide flag recording whether any key anywhere was
// rejected with Full. It is written relaxed from every lane group and
// has a single-use lifecycle: reset, run bulk calls, sync, read. It is
// not safe across concurrently running independent operations; callers
// needing isolation must use the per-key result buffers instead.
var anyFull = atomic.NewBool(false)

func markFull() {
	anyFull.Store(true)
}

// FullObserved reports whether any bulk call since the last reset
// produced a Full result. Only meaningful after the calls have synced.
func FullObserved() bool {
	return anyFull.Load()
}

// ResetFullObserved clears the process-wide full flag.
func ResetFullObserved() {
	anyFull.Store(false)
}

// Stats is a snapshot of a table's insertion counters.
type Stats struct {
	Puts       uint64 // slots claimed
	Evictions  uint64 // cuckoo chain steps taken
	ChainFails uint64 // chains that hit the bound and returned Full
}

type tableStats struct {
	puts       atomic.Uint64
	evictions  atomic.Uint64
	chainFails atomic.Uint64
}

func (s *tableStats) snapshot() Stats {
	return Stats{
		Puts:       s.puts.Load(),
		Evictions:  s.evictions.Load(),
		ChainFails: s.chainFails.Load(),
	}
}
