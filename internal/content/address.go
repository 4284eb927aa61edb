// Package content implements content addressing: hashing cleartext bytes
// into a ContentId and splitting large payloads into fixed-size chunks
// (spec §4.3 step 2).
package content

import (
	"github.com/saorsa-labs/communitas-core/internal/types"
	"lukechampine.com/blake3"
)

// ChunkThreshold is the size above which content is split into chunks.
const ChunkThreshold = 1 << 20 // 1 MiB

// ChunkSize is the size of each chunk for content above ChunkThreshold.
const ChunkSize = 256 * 1024 // 256 KiB

// Address computes the BLAKE3 content id of cleartext bytes.
func Address(data []byte) types.ContentID {
	sum := blake3.Sum256(data)
	var id types.ContentID
	copy(id[:], sum[:])
	return id
}

// Checksum returns the hex string used for StorageMetadata.Checksum.
func Checksum(data []byte) string {
	return Address(data).String()
}

// Chunk splits data into ChunkSize pieces when it exceeds ChunkThreshold.
// Content at or below the threshold is returned as a single chunk so callers
// can treat "chunked" and "whole" uniformly.
func Chunk(data []byte) [][]byte {
	if len(data) <= ChunkThreshold {
		return [][]byte{data}
	}
	chunks := make([][]byte, 0, (len(data)+ChunkSize-1)/ChunkSize)
	for off := 0; off < len(data); off += ChunkSize {
		end := off + ChunkSize
		if end > len(data) {
			end = len(data)
		}
		chunks = append(chunks, data[off:end])
	}
	return chunks
}

// Reassemble concatenates chunks back into a single byte slice, in order.
func Reassemble(chunks [][]byte) []byte {
	total := 0
	for _, c := range chunks {
		total += len(c)
	}
	out := make([]byte, 0, total)
	for _, c := range chunks {
		out = append(out, c...)
	}
	return out
}

// Verify reports whether data hashes to the expected content id. Used on
// the retrieve path post-decrypt to detect tampering (spec §4.3 step 4,
// §8 invariant 6).
func Verify(data []byte, want types.ContentID) bool {
	return Address(data) == want
}
