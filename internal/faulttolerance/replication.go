package faulttolerance

import (
	"sync"

	"github.com/saorsa-labs/communitas-core/internal/types"
)

// ReplicationK mirrors the Kademlia replication factor; the replication
// manager's under/over-replication thresholds are both derived from it
// (spec §4.6).
const ReplicationK = 8

// MinReplicationFactor is ceil(K/2)+1; below this, an item is
// under-replicated and queued for re-replication.
func MinReplicationFactor() int {
	return ReplicationK/2 + 1
}

// OverReplicationFactor is 2*K; above this, an item is a pruning candidate.
func OverReplicationFactor() int {
	return 2 * ReplicationK
}

// ReplicationStatus reports one content item's replica count and derived
// health.
type ReplicationStatus struct {
	ContentID        types.ContentID
	ReplicaCount     int
	UnderReplicated  bool
	OverReplicated   bool
	Health           float64
}

// ReplicationManager tracks replica counts per content item and flags
// items needing re-replication or pruning (spec §4.6).
type ReplicationManager struct {
	mu       sync.Mutex
	replicas map[types.ContentID]int
}

// NewReplicationManager creates an empty tracker.
func NewReplicationManager() *ReplicationManager {
	return &ReplicationManager{replicas: make(map[types.ContentID]int)}
}

// Observe records the current replica count for id, as learned from a DHT
// lookup or store acknowledgement tally.
func (r *ReplicationManager) Observe(id types.ContentID, count int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replicas[id] = count
}

// Status computes the replication health for id.
func (r *ReplicationManager) Status(id types.ContentID) ReplicationStatus {
	r.mu.Lock()
	count := r.replicas[id]
	r.mu.Unlock()

	health := float64(count) / float64(ReplicationK)
	if health > 1 {
		health = 1
	}

	return ReplicationStatus{
		ContentID:       id,
		ReplicaCount:    count,
		UnderReplicated: count < MinReplicationFactor(),
		OverReplicated:  count > OverReplicationFactor(),
		Health:          health,
	}
}

// UnderReplicated returns every tracked content id currently below the
// minimum replication factor, the re-replication queue's input.
func (r *ReplicationManager) UnderReplicated() []types.ContentID {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []types.ContentID
	for id, count := range r.replicas {
		if count < MinReplicationFactor() {
			out = append(out, id)
		}
	}
	return out
}

// OverReplicated returns every tracked content id currently a pruning
// candidate.
func (r *ReplicationManager) OverReplicated() []types.ContentID {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []types.ContentID
	for id, count := range r.replicas {
		if count > OverReplicationFactor() {
			out = append(out, id)
		}
	}
	return out
}
