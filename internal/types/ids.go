// Package types holds the data model shared by every package in the core:
// node and content identifiers, storage addresses, and storage policies.
package types

import (
	"bytes"
	"encoding/hex"
	"fmt"
)

// NodeIDSize is the width of a NodeId in bytes (160 bits).
const NodeIDSize = 20

// ContentIDSize is the width of a ContentId in bytes (256 bits, BLAKE3).
const ContentIDSize = 32

// NodeID is a 160-bit opaque identifier for a peer in the overlay, derived
// from the peer's long-lived transport public key. Equality is by bytes;
// ordering is by XOR distance to a target, never by raw value.
type NodeID [NodeIDSize]byte

// String renders a NodeID as lowercase hex.
func (n NodeID) String() string {
	return hex.EncodeToString(n[:])
}

// IsZero reports whether n is the zero NodeID (used as a "no node" sentinel).
func (n NodeID) IsZero() bool {
	return n == NodeID{}
}

// Equal reports byte-for-byte equality.
func (n NodeID) Equal(other NodeID) bool {
	return n == other
}

// Distance computes the XOR distance between two node ids, used throughout
// Kademlia routing-table placement and closest-node ordering.
func (n NodeID) Distance(other NodeID) NodeID {
	var d NodeID
	for i := range n {
		d[i] = n[i] ^ other[i]
	}
	return d
}

// Less reports whether n is closer to nothing in particular — it orders two
// raw ids lexicographically, which is the same ordering used for distances
// since XOR distance values compare correctly byte-by-byte.
func (n NodeID) Less(other NodeID) bool {
	return bytes.Compare(n[:], other[:]) < 0
}

// LeadingZeroBits returns the number of leading zero bits in the id, used to
// compute a target's k-bucket index as the bit position of the first 1 in
// self.Distance(target).
func (n NodeID) LeadingZeroBits() int {
	for i, b := range n {
		if b == 0 {
			continue
		}
		for bit := 0; bit < 8; bit++ {
			if b&(0x80>>uint(bit)) != 0 {
				return i*8 + bit
			}
		}
	}
	return NodeIDSize * 8
}

// BucketIndex returns the k-bucket index (0..159) that other belongs in,
// relative to self: the bit position of the highest set bit in the XOR
// distance. Buckets closer to 0 hold nodes nearer to self.
func (n NodeID) BucketIndex(other NodeID) int {
	d := n.Distance(other)
	lz := d.LeadingZeroBits()
	if lz >= NodeIDSize*8 {
		return -1 // other == n; not bucketable
	}
	return NodeIDSize*8 - 1 - lz
}

// NodeIDFromBytes copies b into a NodeID, erroring if the length is wrong.
func NodeIDFromBytes(b []byte) (NodeID, error) {
	var id NodeID
	if len(b) != NodeIDSize {
		return id, fmt.Errorf("types: node id must be %d bytes, got %d", NodeIDSize, len(b))
	}
	copy(id[:], b)
	return id, nil
}

// ContentID is a 256-bit BLAKE3 hash of cleartext bytes. It is stable under
// identical content, which is what makes convergent dedup possible for
// policies that permit it.
type ContentID [ContentIDSize]byte

func (c ContentID) String() string {
	return hex.EncodeToString(c[:])
}

func (c ContentID) IsZero() bool {
	return c == ContentID{}
}

func ContentIDFromBytes(b []byte) (ContentID, error) {
	var id ContentID
	if len(b) != ContentIDSize {
		return id, fmt.Errorf("types: content id must be %d bytes, got %d", ContentIDSize, len(b))
	}
	copy(id[:], b)
	return id, nil
}
