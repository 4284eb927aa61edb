package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNodeIDDistanceAndBucketIndex(t *testing.T) {
	var a, b NodeID
	a[0] = 0b10000000
	b[0] = 0b10000001

	dist := a.Distance(b)
	assert.Equal(t, byte(0b00000001), dist[0])

	idx := a.BucketIndex(b)
	assert.Equal(t, NodeIDSize*8-1-7, idx) // differ at bit 7 of byte 0
}

func TestNodeIDBucketIndexSelf(t *testing.T) {
	var a NodeID
	a[0] = 0xFF
	assert.Equal(t, -1, a.BucketIndex(a))
}

func TestNodeIDFromBytesValidatesLength(t *testing.T) {
	_, err := NodeIDFromBytes(make([]byte, 3))
	require.Error(t, err)

	id, err := NodeIDFromBytes(make([]byte, NodeIDSize))
	require.NoError(t, err)
	assert.True(t, id.IsZero())
}

func TestPolicyEqualityDistinguishesScoping(t *testing.T) {
	a := PrivateScoped("alice")
	b := PrivateScoped("bob")
	assert.False(t, a.Equal(b))
	assert.True(t, a.Equal(PrivateScoped("alice")))
	assert.False(t, a.Equal(PublicMarkdown()))
}

func TestStorageAddressEquality(t *testing.T) {
	cid := ContentID{1, 2, 3}
	a1 := StorageAddress{ContentID: cid, Policy: PublicMarkdown()}
	a2 := StorageAddress{ContentID: cid, Policy: PrivateMax()}
	assert.False(t, a1.Equal(a2), "same content under different policies must be distinct addresses")
}
