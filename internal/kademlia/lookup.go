package kademlia

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/saorsa-labs/communitas-core/internal/types"
)

// DefaultAlpha is the lookup parallelism (spec §4.1).
const DefaultAlpha = 3

// DefaultMaxIterations bounds network rounds per lookup.
const DefaultMaxIterations = 20

// DefaultLookupTimeout is the per-query deadline within one lookup round.
const DefaultLookupTimeout = 10 * time.Second

// candidate tracks one node seen during a lookup: whether it's been queried
// yet, and in what round it was first discovered (for the tie-break rule).
type candidate struct {
	contact    Contact
	queried    bool
	discovered int
}

// keyToTarget maps a 256-bit content key into the 160-bit NodeId space by
// truncating the BLAKE3 digest; since the input is already a uniform hash,
// truncation preserves uniformity for bucket placement purposes.
func keyToTarget(key types.ContentID) types.NodeID {
	var id types.NodeID
	copy(id[:], key[:types.NodeIDSize])
	return id
}

// lookup runs the iterative find-node procedure from spec §4.1 against
// target, returning the K closest contacts it discovered. Each round sends
// rpc.FindNode to up to DefaultAlpha unqueried candidates and merges the
// contacts they return; find-value lookups run their own loop in
// Kademlia.FindValue.
func (k *Kademlia) lookup(ctx context.Context, target types.NodeID) []Contact {
	k.mu.RLock()
	seed := k.table.FindClosest(target, DefaultAlpha)
	k.mu.RUnlock()

	cands := make(map[types.NodeID]*candidate, len(seed))
	for _, c := range seed {
		cands[c.ID] = &candidate{contact: c, discovered: 0}
	}

	for iter := 0; iter < DefaultMaxIterations; iter++ {
		toQuery := k.selectUnqueried(cands, target, DefaultAlpha)
		if len(toQuery) == 0 {
			break
		}

		learnedCloser := false
		closestBefore := closestDistance(cands, target)

		var wg sync.WaitGroup
		var mu sync.Mutex
		for _, cand := range toQuery {
			cand.queried = true
			wg.Add(1)
			go func(cand *candidate) {
				defer wg.Done()
				qctx, cancel := context.WithTimeout(ctx, DefaultLookupTimeout)
				defer cancel()

				closest, err := k.rpc.FindNode(qctx, cand.contact, target)
				if err != nil {
					k.peers.RecordFailure(cand.contact.ID, time.Now())
					return
				}
				k.peers.RecordSuccess(cand.contact.ID, 0, time.Now())

				mu.Lock()
				defer mu.Unlock()
				for _, c := range closest {
					if c.ID.Equal(k.self) {
						continue
					}
					if _, exists := cands[c.ID]; !exists {
						cands[c.ID] = &candidate{contact: c, discovered: iter + 1}
					}
				}
			}(cand)
		}
		wg.Wait()

		closestAfter := closestDistance(cands, target)
		if closestAfter != nil && (closestBefore == nil || closestAfter.Less(*closestBefore)) {
			learnedCloser = true
		}
		if !learnedCloser {
			break
		}
	}

	all := make([]Contact, 0, len(cands))
	for _, c := range cands {
		all = append(all, c.contact)
	}
	sort.Slice(all, func(i, j int) bool {
		return target.Distance(all[i].ID).Less(target.Distance(all[j].ID))
	})
	if len(all) > K {
		all = all[:K]
	}
	return all
}

// selectUnqueried picks up to alpha not-yet-queried candidates closest to
// target.
func (k *Kademlia) selectUnqueried(cands map[types.NodeID]*candidate, target types.NodeID, alpha int) []*candidate {
	pending := make([]*candidate, 0, len(cands))
	for _, c := range cands {
		if !c.queried {
			pending = append(pending, c)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		di := target.Distance(pending[i].contact.ID)
		dj := target.Distance(pending[j].contact.ID)
		if !di.Equal(dj) {
			return di.Less(dj)
		}
		return pending[i].discovered < pending[j].discovered
	})
	if len(pending) > alpha {
		pending = pending[:alpha]
	}
	return pending
}

func closestDistance(cands map[types.NodeID]*candidate, target types.NodeID) *types.NodeID {
	var best *types.NodeID
	for _, c := range cands {
		d := target.Distance(c.contact.ID)
		if best == nil || d.Less(*best) {
			dd := d
			best = &dd
		}
	}
	return best
}
