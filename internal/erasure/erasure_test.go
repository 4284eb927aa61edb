package erasure

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saorsa-labs/communitas-core/internal/types"
)

func TestSelectConfigRatios(t *testing.T) {
	counts := []int{1, 3, 4, 6, 7, 10, 11, 20, 21, 50, 51, 100, 250}
	for _, n := range counts {
		cfg := Select(n, 1)
		if n <= 3 {
			// The smallest row is 2-of-3, the one row whose ratio (2/3)
			// lies outside the [0.55, 0.65] band.
			assert.InDelta(t, 2.0/3.0, cfg.Ratio(), 0.001, "member count %d", n)
			continue
		}
		assert.True(t, cfg.InTolerance(), "member count %d produced out-of-tolerance ratio %f", n, cfg.Ratio())
	}
}

func TestSelectGroupSizeOneUsesKEqual2(t *testing.T) {
	cfg := Select(1, 1)
	assert.Equal(t, 2, cfg.K)
	assert.Equal(t, 1, cfg.M)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cfg := Select(5, 1)
	data := make([]byte, 4096*cfg.K)
	rand.New(rand.NewSource(1)).Read(data)

	dataID := types.ContentID{1}
	shards, err := Encode(data, cfg, "group-1", dataID)
	require.NoError(t, err)
	require.Len(t, shards, cfg.Total())

	decoded, err := Decode(shards, cfg)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(data, decoded))
}

func TestDecodeFromAnyKShards(t *testing.T) {
	cfg := Select(10, 1)
	data := make([]byte, 8192*cfg.K)
	rand.New(rand.NewSource(2)).Read(data)

	dataID := types.ContentID{2}
	shards, err := Encode(data, cfg, "group-2", dataID)
	require.NoError(t, err)

	subset := shards[:cfg.K]
	decoded, err := Decode(subset, cfg)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(data, decoded))
}

func TestDecodeFailsIntegrityViolationBelowK(t *testing.T) {
	cfg := Select(7, 1)
	data := make([]byte, 8192*cfg.K)
	rand.New(rand.NewSource(3)).Read(data)

	dataID := types.ContentID{3}
	shards, err := Encode(data, cfg, "group-3", dataID)
	require.NoError(t, err)

	shards[0].Bytes[0] ^= 0xFF // corrupt one data shard

	kMinus1 := shards[:cfg.K-1]
	_, err = Decode(kMinus1, cfg)
	require.Error(t, err)
	kind, ok := types.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, types.KindIntegrityViolation, kind)
}

func TestDecodeToleratesOneCorruptShardWithEnoughOthers(t *testing.T) {
	cfg := Select(7, 1)
	data := make([]byte, 8192*cfg.K)
	rand.New(rand.NewSource(4)).Read(data)

	dataID := types.ContentID{4}
	shards, err := Encode(data, cfg, "group-4", dataID)
	require.NoError(t, err)

	shards[0].Bytes[0] ^= 0xFF // corrupt but keep all cfg.Total() shards present

	decoded, err := Decode(shards, cfg)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(data, decoded))
}
