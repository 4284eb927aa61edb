// Package kademlia implements the XOR-distance routing table and iterative
// find-node/find-value/store lookups (spec §4.1).
package kademlia

import (
	"sort"
	"sync"
	"time"

	"github.com/saorsa-labs/communitas-core/internal/types"
)

// K is the default bucket capacity and replication factor.
const K = 8

// numBuckets is one per bit of a NodeId.
const numBuckets = types.NodeIDSize * 8

// Contact is a routing-table entry: just enough to dial a peer again.
type Contact struct {
	ID       types.NodeID
	Endpoint string
	LastSeen time.Time
}

// bucket is an insertion-ordered list of at most K contacts, front = least-
// recently-seen, back = most-recently-seen (spec §4.1 "update moves node to
// bucket tail").
type bucket struct {
	entries []Contact
}

func (b *bucket) indexOf(id types.NodeID) int {
	for i, c := range b.entries {
		if c.ID.Equal(id) {
			return i
		}
	}
	return -1
}

// RoutingTable holds 160 k-buckets keyed by XOR-distance bit index from
// self. It is safe for concurrent use; writers never block on network I/O
// while holding the lock.
type RoutingTable struct {
	mu      sync.RWMutex
	self    types.NodeID
	buckets [numBuckets]bucket
}

// NewRoutingTable creates an empty table for self.
func NewRoutingTable(self types.NodeID) *RoutingTable {
	return &RoutingTable{self: self}
}

// Self returns the local node id the table is built around.
func (t *RoutingTable) Self() types.NodeID { return t.self }

// Update records a sighting of c, moving it to the most-recently-seen end
// of its bucket. If the bucket is full and c is new, the least-recently-
// seen entry is evicted only if evictStale reports it as unreachable (the
// caller is expected to probe it first); otherwise Update is a no-op for a
// new contact in a full bucket.
func (t *RoutingTable) Update(c Contact, evictStale func(Contact) bool) {
	if c.ID.Equal(t.self) {
		return
	}
	idx := t.self.BucketIndex(c.ID)
	if idx < 0 {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	b := &t.buckets[idx]
	if pos := b.indexOf(c.ID); pos >= 0 {
		b.entries = append(b.entries[:pos], b.entries[pos+1:]...)
		b.entries = append(b.entries, c)
		return
	}

	if len(b.entries) < K {
		b.entries = append(b.entries, c)
		return
	}

	if evictStale != nil && evictStale(b.entries[0]) {
		b.entries = append(b.entries[1:], c)
	}
	// Bucket full and the stalest entry is still live: drop c, per spec
	// §4.1 (the routing table never exceeds K per bucket).
}

// Remove drops id from the table entirely (used when a peer is banned).
func (t *RoutingTable) Remove(id types.NodeID) {
	idx := t.self.BucketIndex(id)
	if idx < 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	b := &t.buckets[idx]
	if pos := b.indexOf(id); pos >= 0 {
		b.entries = append(b.entries[:pos], b.entries[pos+1:]...)
	}
}

// FindClosest returns up to n contacts with the smallest XOR distance to
// target, spanning buckets as needed. Ties break by insertion order within
// a bucket, which already favors earlier-discovered contacts.
func (t *RoutingTable) FindClosest(target types.NodeID, n int) []Contact {
	t.mu.RLock()
	all := make([]Contact, 0, K*4)
	for i := range t.buckets {
		all = append(all, t.buckets[i].entries...)
	}
	t.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		di := target.Distance(all[i].ID)
		dj := target.Distance(all[j].ID)
		return di.Less(dj)
	})

	if len(all) > n {
		all = all[:n]
	}
	return all
}

// Size returns the total number of contacts across all buckets.
func (t *RoutingTable) Size() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := 0
	for i := range t.buckets {
		n += len(t.buckets[i].entries)
	}
	return n
}
