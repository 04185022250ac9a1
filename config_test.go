package compact

import (
	"bytes"
	"strings"
	"testing"

	"github.com/go-kit/log"
	kitlevel "github.com/go-kit/log/level"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCuckooDefaults(t *testing.T) {
	c, err := NewCuckoo(CuckooConfig{KeyWidth: 21, AddrWidth: 5, Seed: 1})
	require.NoError(t, err)

	assert.Equal(t, defaultNHash, c.lvl.nhash)
	assert.Equal(t, defaultBucketSize, c.lvl.bucketSize)
	assert.Equal(t, stateWidth(defaultNHash)+21-5, c.lvl.rowWidth)
	assert.Equal(t, maxChainFactor*defaultNHash, c.maxChain)
	assert.Equal(t, (1<<5)*defaultBucketSize, c.Rows())
}

func TestIcebergDefaults(t *testing.T) {
	tb, err := NewIceberg(IcebergConfig{
		KeyWidth:  21,
		Primary:   LevelConfig{AddrWidth: 5},
		Secondary: LevelConfig{AddrWidth: 2},
		Seed:      1,
	})
	require.NoError(t, err)

	assert.Equal(t, defaultPrimaryNHash, tb.primary.nhash)
	assert.Equal(t, defaultSecondaryNHash, tb.secondary.nhash)
	assert.Equal(t, defaultBucketSize, tb.primary.bucketSize)
	assert.Equal(t, defaultSecondaryBucketSize, tb.secondary.bucketSize)
	assert.Equal(t, maxChainFactor*defaultSecondaryNHash, tb.maxChain)
}

func TestSeedTripleDeterminism(t *testing.T) {
	triple := [3]uint64{11, 22, 33}
	a, err := NewCuckoo(CuckooConfig{KeyWidth: 21, AddrWidth: 5, SeedTriple: &triple})
	require.NoError(t, err)
	b, err := NewCuckoo(CuckooConfig{KeyWidth: 21, AddrWidth: 5, SeedTriple: &triple})
	require.NoError(t, err)

	for k := Key(0); k < 4096; k += 37 {
		for i := 0; i < 3; i++ {
			aa, ar := a.lvl.addrRow(i, k)
			ba, br := b.lvl.addrRow(i, k)
			require.Equal(t, aa, ba)
			require.Equal(t, ar, br)
		}
	}
}

func TestRandomSeedsDiffer(t *testing.T) {
	a, err := NewCuckoo(CuckooConfig{KeyWidth: 21, AddrWidth: 5})
	require.NoError(t, err)
	b, err := NewCuckoo(CuckooConfig{KeyWidth: 21, AddrWidth: 5})
	require.NoError(t, err)

	same := true
	for k := Key(0); k < 1024 && same; k++ {
		aa, _ := a.lvl.addrRow(0, k)
		ba, _ := b.lvl.addrRow(0, k)
		same = aa == ba
	}
	assert.False(t, same, "unseeded tables should draw distinct families")
}

func TestConstructionLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := kitlevel.NewFilter(log.NewLogfmtLogger(&buf), kitlevel.AllowDebug())

	c, err := NewCuckoo(CuckooConfig{KeyWidth: 21, AddrWidth: 5, Seed: 1, Logger: logger})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "cuckoo table constructed")

	buf.Reset()
	keys := seq(0, 32)
	results := make([]Result, len(keys))
	require.NoError(t, c.Put(keys, results, true))
	assert.True(t, strings.Contains(buf.String(), "op=put"), "bulk call should log: %s", buf.String())
}

func TestConfigErrorListsAllViolations(t *testing.T) {
	_, err := NewCuckoo(CuckooConfig{KeyWidth: 21, AddrWidth: 30, BucketSize: 7, NHash: 9})
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "address width")
	assert.Contains(t, msg, "bucket size")
	assert.Contains(t, msg, "hash count")
}
