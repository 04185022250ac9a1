package compact

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatchProbesEachKeyOnce(t *testing.T) {
	keys := make([]Key, 1000)
	for i := range keys {
		keys[i] = Key(i * 3)
	}
	counts := make([]int32, len(keys))
	results := make([]Key, len(keys))
	err := dispatch(keys, 8, false, Key(0), func(i int, k Key) Key {
		atomic.AddInt32(&counts[i], 1)
		return k + 1
	}, func(i int, r Key) { results[i] = r })
	require.NoError(t, err)
	for i := range keys {
		assert.Equal(t, int32(1), counts[i], "index %d", i)
		assert.Equal(t, keys[i]+1, results[i])
	}
}

func TestDispatchSortedDedup(t *testing.T) {
	keys := []Key{0, 0, 0, 1, 4, 4, 7, 9, 9, 9, 9, 12}
	probed := make([]int32, len(keys))
	results := make([]int, len(keys))
	err := dispatch(keys, 4, true, -1, func(i int, k Key) int {
		atomic.AddInt32(&probed[i], 1)
		return int(k)
	}, func(i int, r int) { results[i] = r })
	require.NoError(t, err)
	for i := range keys {
		first := i == 0 || keys[i] != keys[i-1]
		if first {
			assert.Equal(t, int32(1), probed[i], "first occurrence at %d", i)
			assert.Equal(t, int(keys[i]), results[i])
		} else {
			assert.Equal(t, int32(0), probed[i], "duplicate at %d", i)
			assert.Equal(t, -1, results[i])
		}
	}
}

func TestDispatchEmpty(t *testing.T) {
	err := dispatch(nil, 8, false, false, func(int, Key) bool { return true }, func(int, bool) {
		t.Fatal("store called for empty range")
	})
	require.NoError(t, err)
}

func TestSortForProbe(t *testing.T) {
	keys := []Key{9, 3, 9, 1, 3, 3, 20, 0}
	scratch := make([]Key, 2*len(keys))
	sorted, ord := sortForProbe(keys, scratch)

	for i := 1; i < len(sorted); i++ {
		assert.LessOrEqual(t, sorted[i-1], sorted[i])
	}
	for i := range sorted {
		assert.Equal(t, keys[ord[i]], sorted[i])
	}
	// Stability: equal keys keep input order.
	for i := 1; i < len(sorted); i++ {
		if sorted[i] == sorted[i-1] {
			assert.Less(t, ord[i-1], ord[i])
		}
	}
}

func TestStreamSerializes(t *testing.T) {
	var s stream
	order := make([]int, 0, 3)
	require.NoError(t, s.launch(false, func() error {
		order = append(order, 1)
		return nil
	}))
	// The next launch waits for the background call before running.
	require.NoError(t, s.launch(true, func() error {
		order = append(order, 2)
		return nil
	}))
	require.NoError(t, s.sync())
	assert.Equal(t, []int{1, 2}, order)
}
