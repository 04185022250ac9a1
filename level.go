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

// level is one compact bucketized slot array: 1<<addrWidth buckets of
// bucketSize rows each, probed with nhash permutation members.
//
// A row packs a state tag in its top stateWidth(nhash) bits (0 empty,
// 1+i occupied via member i) and the key remainder in its low
// keyWidth-addrWidth bits. Together with the bucket address the row
// reconstructs the key: rows never need to store full keys.
//
// Rows transition empty->occupied exactly once; eviction overwrites an
// occupied row with another occupied row and never writes zero. Only a
// whole-level clear empties rows, so an empty row proves no key was
// ever inserted past it in its bucket.
type level struct {
	keyWidth   int
	addrWidth  int
	rowWidth   int
	bucketSize int
	nhash      int

	stateShift uint   // rowWidth - stateWidth(nhash)
	remMask    uint64 // low keyWidth-addrWidth bits
	addrMask   uint64
	nbuckets   uint64

	perm  permuter
	slab  slab
	stats *tableStats
}

func newLevel(keyWidth int, lc LevelConfig, keys [][2]uint64, malloc Malloc, stats *tableStats) (level, error) {
	if err := validLevel(keyWidth, lc); err != nil {
		return level{}, err
	}
	l := level{
		keyWidth:   keyWidth,
		addrWidth:  lc.AddrWidth,
		rowWidth:   lc.RowWidth,
		bucketSize: lc.BucketSize,
		nhash:      lc.NHash,
		stateShift: uint(lc.RowWidth - stateWidth(lc.NHash)),
		remMask:    lowMask(keyWidth - lc.AddrWidth),
		addrMask:   lowMask(lc.AddrWidth),
		nbuckets:   1 << uint(lc.AddrWidth),
		perm:       newPermuter(lc.AddrWidth, keys),
		stats:      stats,
	}
	s, err := newSlab(malloc, int(l.nbuckets)*l.bucketSize)
	if err != nil {
		return level{}, err
	}
	l.slab = s
	return l, nil
}

func (l *level) rows() int {
	return len(l.slab.rows)
}

// addrRow maps (hash id, key) to the bucket address and the row that
// marks the key as stored there.
func (l *level) addrRow(i int, k Key) (addr, row uint64) {
	p := l.perm.forward(i, k)
	addr = p & l.addrMask
	row = uint64(i+1)<<l.stateShift | p>>uint(l.addrWidth)
	return
}

// hashKey inverts addrRow: given an occupied row and the bucket address
// it was read from, recover the hash id and the original key.
func (l *level) hashKey(row, addr uint64) (int, Key) {
	i := int(row>>l.stateShift) - 1
	rem := row & l.remMask
	return i, l.perm.inverse(i, rem<<uint(l.addrWidth)|addr)
}

// coopFind probes the hash chain for k. An empty slot under some hash
// ends the search: rows fill a bucket left to right and are never
// cleared, so the key cannot sit beyond an empty slot for that hash.
//
// Safe against concurrent puts, but a put of the same key racing this
// probe may be missed; bulk pipelines re-check after syncing.
func (l *level) coopFind(k Key) bool {
	for i := 0; i < l.nhash; i++ {
		addr, row := l.addrRow(i, k)
		base := addr * uint64(l.bucketSize)
		var hit, empty laneMask
		for lane := 0; lane < l.bucketSize; lane++ {
			switch l.slab.load(base + uint64(lane)) {
			case row:
				hit |= laneBit(lane)
			case 0:
				empty |= laneBit(lane)
			}
		}
		if hit.any() {
			return true
		}
		if empty.any() {
			return false
		}
	}
	return false
}

// tryBucket attempts to claim a slot for k in the bucket of hash i.
// done=false means the bucket is full and the caller must evict or move
// on; otherwise the Result is Put, or Found when avoidDups spotted the
// key already resident.
func (l *level) tryBucket(i int, k Key, avoidDups bool) (r Result, done bool) {
	addr, row := l.addrRow(i, k)
	base := addr * uint64(l.bucketSize)
	for {
		var occupied, dup laneMask
		for lane := 0; lane < l.bucketSize; lane++ {
			tmp := l.slab.load(base + uint64(lane))
			if tmp != 0 {
				occupied |= laneBit(lane)
			}
			if tmp == row {
				dup |= laneBit(lane)
			}
		}
		if avoidDups && dup.any() {
			return Found, true
		}
		load := occupied.count()
		if load == l.bucketSize {
			return Full, false
		}
		// Slots fill left to right, so the ballot popcount is the
		// first free slot.
		if l.slab.cas(base+uint64(load), 0, row) {
			l.stats.puts.Inc()
			return Put, true
		}
		if avoidDups && l.slab.load(base+uint64(load)) == row {
			return Found, true
		}
		// Another insert claimed the slot first; re-read the bucket.
	}
}

// coopPut inserts k, evicting residents when every candidate slot under
// the current hash is taken. The victim slot rotates with the bucket
// address and the chain depth so concurrent chains do not hammer one
// slot. The evicted row is decoded back to its key, which continues the
// chain under its next hash id.
//
// A chain that reaches maxChain returns Full: the key carried at that
// point is dropped, while every key evicted earlier in the chain was
// re-housed by its own eviction write.
func (l *level) coopPut(k Key, avoidDups bool, maxChain int) Result {
	h := 0
	for chain := 0; ; chain++ {
		r, done := l.tryBucket(h, k, avoidDups)
		if done {
			return r
		}
		if chain >= maxChain {
			l.stats.chainFails.Inc()
			markFull()
			return Full
		}
		addr, row := l.addrRow(h, k)
		victim := (addr + uint64(chain)) % uint64(l.bucketSize)
		tmp := l.slab.exchange(addr*uint64(l.bucketSize)+victim, row)
		l.stats.evictions.Inc()
		eh, ek := l.hashKey(tmp, addr)
		k = ek
		h = (eh + 1) % l.nhash
	}
}

// coopPutNoEvict tries every hash in order without ever displacing a
// resident. done=false means all candidate buckets are full.
func (l *level) coopPutNoEvict(k Key, avoidDups bool) (Result, bool) {
	for i := 0; i < l.nhash; i++ {
		if r, done := l.tryBucket(i, k, avoidDups); done {
			return r, true
		}
	}
	return Full, false
}

// count scans every candidate slot of k. Host-side.
func (l *level) count(k Key) int {
	n := 0
	for i := 0; i < l.nhash; i++ {
		addr, row := l.addrRow(i, k)
		base := addr * uint64(l.bucketSize)
		for lane := 0; lane < l.bucketSize; lane++ {
			if l.slab.load(base+uint64(lane)) == row {
				n++
			}
		}
	}
	return n
}

func (l *level) loadFactor() float64 {
	return float64(l.slab.occupied()) / float64(l.rows())
}
