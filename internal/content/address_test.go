package content

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddressIsStableAndConvergent(t *testing.T) {
	a := Address([]byte("# Doc"))
	b := Address([]byte("# Doc"))
	assert.Equal(t, a, b, "identical content must hash to the same content id")

	c := Address([]byte("# Different"))
	assert.NotEqual(t, a, c)
}

func TestChunkBelowThresholdIsSingleChunk(t *testing.T) {
	data := bytes.Repeat([]byte{0x42}, 1024)
	chunks := Chunk(data)
	require.Len(t, chunks, 1)
	assert.Equal(t, data, chunks[0])
}

func TestChunkAboveThresholdSplitsAndReassembles(t *testing.T) {
	data := make([]byte, ChunkThreshold+ChunkSize+17)
	for i := range data {
		data[i] = byte(i)
	}

	chunks := Chunk(data)
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks[:len(chunks)-1] {
		assert.Len(t, c, ChunkSize)
	}

	reassembled := Reassemble(chunks)
	assert.True(t, bytes.Equal(data, reassembled))
}

func TestVerifyDetectsTamper(t *testing.T) {
	data := []byte("hello, pqc storage!")
	id := Address(data)
	assert.True(t, Verify(data, id))

	tampered := append([]byte(nil), data...)
	tampered[0] ^= 0xFF
	assert.False(t, Verify(tampered, id))
}
