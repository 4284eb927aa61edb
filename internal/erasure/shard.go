package erasure

import (
	"github.com/klauspost/reedsolomon"
	"lukechampine.com/blake3"

	"github.com/saorsa-labs/communitas-core/internal/types"
)

// ShardKind tags a VersionedShard as carrying original data or parity
// (spec §3).
type ShardKind int

const (
	ShardData ShardKind = iota
	ShardParity
)

func (k ShardKind) String() string {
	if k == ShardParity {
		return "Parity"
	}
	return "Data"
}

// Shard is the spec's VersionedShard: one encoded piece of a group's
// content, tagged with the generation that produced it and an integrity
// hash checked before it's trusted for decode.
type Shard struct {
	Index         int
	Kind          ShardKind
	Bytes         []byte
	GroupID       string
	DataID        types.ContentID
	Generation    uint64
	IntegrityHash [32]byte
	PrimaryHolder types.NodeID
	BackupHolders []types.NodeID

	// OriginalSize is the pre-padding length of the payload Encode was
	// given. reedsolomon.Split zero-pads the last data shard up to a
	// multiple of k, so this is the only place the true length survives;
	// Decode trims its reconstructed output back down to it.
	OriginalSize int
}

// Verify reports whether the shard's bytes still hash to IntegrityHash,
// i.e. it has not been corrupted at rest (spec §8 scenario F).
func (s Shard) Verify() bool {
	return blake3.Sum256(s.Bytes) == s.IntegrityHash
}

// Encode splits data into cfg.Total() systematic Reed-Solomon shards: the
// first cfg.K are data, the remaining cfg.M are parity (spec §4.5). The
// shards do not share memory with data.
func Encode(data []byte, cfg Config, groupID string, dataID types.ContentID) ([]Shard, error) {
	enc, err := reedsolomon.New(cfg.K, cfg.M)
	if err != nil {
		return nil, types.NewError(types.KindConfigError, "build reed-solomon encoder", err)
	}

	// Split slices its input in place for the data shards; copy first so a
	// shard corrupted at rest never alters the caller's buffer.
	shards, err := enc.Split(append([]byte(nil), data...))
	if err != nil {
		return nil, types.NewError(types.KindConfigError, "split data into shards", err)
	}
	if err := enc.Encode(shards); err != nil {
		return nil, types.NewError(types.KindConfigError, "encode parity shards", err)
	}

	out := make([]Shard, len(shards))
	for i, b := range shards {
		kind := ShardData
		if i >= cfg.K {
			kind = ShardParity
		}
		out[i] = Shard{
			Index:         i,
			Kind:          kind,
			Bytes:         b,
			GroupID:       groupID,
			DataID:        dataID,
			Generation:    cfg.Generation,
			IntegrityHash: blake3.Sum256(b),
			OriginalSize:  len(data),
		}
	}
	return out, nil
}

// Decode reconstructs the original payload from any k of t shards of the
// same generation. Shards failing Verify are discarded before
// reconstruction is attempted; decode fails with IntegrityViolation if
// fewer than k verified shards remain (spec §8 scenario F). The original,
// pre-padding payload length is read off the shards themselves
// (Shard.OriginalSize), since reedsolomon.Split zero-pads the last data
// shard and the padded total is not recoverable from cfg alone.
func Decode(shards []Shard, cfg Config) ([]byte, error) {
	slots := make([][]byte, cfg.Total())
	present := 0
	originalSize := -1
	for _, s := range shards {
		if s.Generation != cfg.Generation {
			continue
		}
		if s.Index < 0 || s.Index >= len(slots) {
			continue
		}
		if !s.Verify() {
			continue
		}
		slots[s.Index] = s.Bytes
		present++
		if originalSize == -1 {
			originalSize = s.OriginalSize
		}
	}

	if present < cfg.K {
		return nil, types.NewError(types.KindIntegrityViolation, "fewer than k verified shards available", nil)
	}

	enc, err := reedsolomon.New(cfg.K, cfg.M)
	if err != nil {
		return nil, types.NewError(types.KindConfigError, "build reed-solomon decoder", err)
	}

	complete := present == len(slots)
	if !complete {
		if err := enc.Reconstruct(slots); err != nil {
			return nil, types.NewError(types.KindIntegrityViolation, "reconstruct failed", err)
		}
	} else if ok, err := enc.Verify(slots); err != nil || !ok {
		if err := enc.Reconstruct(slots); err != nil {
			return nil, types.NewError(types.KindIntegrityViolation, "reconstruct failed", err)
		}
	}

	out := make([]byte, 0, originalSize)
	for i := 0; i < cfg.K; i++ {
		out = append(out, slots[i]...)
	}
	if len(out) > originalSize {
		out = out[:originalSize]
	}
	return out, nil
}
