package kademlia

import (
	"context"
	"sync"
	"time"

	"github.com/saorsa-labs/communitas-core/internal/peermanager"
	"github.com/saorsa-labs/communitas-core/internal/types"
)

// DefaultMaxConcurrentRequests caps total in-flight Kademlia operations
// (spec §4.1 "Concurrency limits").
const DefaultMaxConcurrentRequests = 64

// Kademlia is the routing + lookup core. It owns the routing table and a
// local DHT content store, and calls out through an RPC implementation and
// the shared peer manager for everything network-facing.
type Kademlia struct {
	self  types.NodeID
	table *RoutingTable
	peers *peermanager.Manager
	rpc   RPC

	sem chan struct{}

	mu        sync.RWMutex
	dhtStore  map[types.ContentID]types.DhtEntry
	inflight  map[types.NodeID]*inflightLookup
	inflightM sync.Mutex
}

type inflightLookup struct {
	done   chan struct{}
	result []Contact
}

// New builds a Kademlia core for self, sharing peers (already constructed
// by the caller) and rpc (the transport binding).
func New(self types.NodeID, peers *peermanager.Manager, rpc RPC) *Kademlia {
	return &Kademlia{
		self:     self,
		table:    NewRoutingTable(self),
		peers:    peers,
		rpc:      rpc,
		sem:      make(chan struct{}, DefaultMaxConcurrentRequests),
		dhtStore: make(map[types.ContentID]types.DhtEntry),
		inflight: make(map[types.NodeID]*inflightLookup),
	}
}

// RoutingTable exposes the table for bootstrap/seeding and stats.
func (k *Kademlia) RoutingTable() *RoutingTable { return k.table }

// FindNode runs the iterative lookup for target and returns the K closest
// contacts it could find, coalescing concurrent lookups for the same
// target into a single underlying operation (spec §4.1).
func (k *Kademlia) FindNode(ctx context.Context, target types.NodeID) ([]Contact, error) {
	if k.table.Size() == 0 {
		return nil, nil // empty routing table: no network traffic, per spec §8
	}

	if existing, primary := k.joinInflight(target); !primary {
		select {
		case <-existing.done:
			return existing.result, nil
		case <-ctx.Done():
			return nil, types.NewError(types.KindTimeout, "find_node canceled", ctx.Err())
		}
	}

	select {
	case k.sem <- struct{}{}:
		defer func() { <-k.sem }()
	case <-ctx.Done():
		k.finishInflight(target, nil)
		return nil, types.NewError(types.KindTimeout, "find_node: semaphore wait canceled", ctx.Err())
	}

	result := k.lookup(ctx, target)
	for _, c := range result {
		k.table.Update(c, func(Contact) bool { return false })
	}
	k.finishInflight(target, result)
	return result, nil
}

// FindValue checks the local store first, then falls back to the
// iterative find-value protocol (spec §4.1).
func (k *Kademlia) FindValue(ctx context.Context, key types.ContentID) ([]byte, error) {
	k.mu.RLock()
	entry, ok := k.dhtStore[key]
	k.mu.RUnlock()
	if ok && entry.Live(time.Now()) {
		return entry.Value, nil
	}

	target := keyToTarget(key)
	seed := k.table.FindClosest(target, DefaultAlpha)
	if len(seed) == 0 {
		return nil, types.NewError(types.KindNotFound, "empty routing table", nil)
	}

	cands := make(map[types.NodeID]*candidate, len(seed))
	for _, c := range seed {
		cands[c.ID] = &candidate{contact: c}
	}

	for iter := 0; iter < DefaultMaxIterations; iter++ {
		toQuery := k.selectUnqueried(cands, target, DefaultAlpha)
		if len(toQuery) == 0 {
			break
		}

		type reply struct {
			value   []byte
			found   bool
			closest []Contact
		}
		replies := make(chan reply, len(toQuery))

		var wg sync.WaitGroup
		for _, cand := range toQuery {
			cand.queried = true
			wg.Add(1)
			go func(cand *candidate) {
				defer wg.Done()
				qctx, cancel := context.WithTimeout(ctx, DefaultLookupTimeout)
				defer cancel()
				value, closest, found, err := k.rpc.FindValue(qctx, cand.contact, key)
				if err != nil {
					k.peers.RecordFailure(cand.contact.ID, time.Now())
					return
				}
				k.peers.RecordSuccess(cand.contact.ID, 0, time.Now())
				replies <- reply{value: value, found: found, closest: closest}
			}(cand)
		}
		wg.Wait()
		close(replies)

		for r := range replies {
			if r.found {
				k.mu.Lock()
				k.dhtStore[key] = types.DhtEntry{Key: key, Value: r.value, StoredAt: time.Now(), TTL: 24 * time.Hour}
				k.mu.Unlock()
				return r.value, nil
			}
			for _, c := range r.closest {
				if c.ID.Equal(k.self) {
					continue
				}
				if _, exists := cands[c.ID]; !exists {
					cands[c.ID] = &candidate{contact: c, discovered: iter + 1}
				}
			}
		}
	}

	return nil, types.NewError(types.KindNotFound, "find_value exhausted candidates", nil)
}

// Store fans a put out to the K closest nodes to H(key), requiring a
// majority ack (spec §4.1 "Store protocol").
func (k *Kademlia) Store(ctx context.Context, key types.ContentID, value []byte, ttl time.Duration) error {
	target := keyToTarget(key)
	closest, err := k.FindNode(ctx, target)
	if err != nil {
		return err
	}

	selfIsClosest := false
	if k.table.Size() == 0 {
		selfIsClosest = true
	}

	var acked int32
	var wg sync.WaitGroup
	var mu sync.Mutex
	for _, c := range closest {
		wg.Add(1)
		go func(c Contact) {
			defer wg.Done()
			sctx, cancel := context.WithTimeout(ctx, DefaultLookupTimeout)
			defer cancel()
			ok, err := k.rpc.Store(sctx, c, key, value, ttl)
			if err != nil || !ok {
				k.peers.RecordFailure(c.ID, time.Now())
				return
			}
			k.peers.RecordSuccess(c.ID, 0, time.Now())
			mu.Lock()
			acked++
			mu.Unlock()
		}(c)
	}
	wg.Wait()

	needed := len(closest)/2 + 1
	if selfIsClosest {
		k.mu.Lock()
		k.dhtStore[key] = types.DhtEntry{Key: key, Value: value, StoredAt: time.Now(), TTL: ttl}
		k.mu.Unlock()
		if len(closest) == 0 {
			return nil
		}
	}

	if int(acked) < needed {
		return types.NewError(types.KindInsufficientReplicas, "store majority not reached", nil)
	}
	return nil
}

func (k *Kademlia) joinInflight(target types.NodeID) (*inflightLookup, bool) {
	k.inflightM.Lock()
	defer k.inflightM.Unlock()
	if existing, ok := k.inflight[target]; ok {
		return existing, false
	}
	l := &inflightLookup{done: make(chan struct{})}
	k.inflight[target] = l
	return l, true
}

func (k *Kademlia) finishInflight(target types.NodeID, result []Contact) {
	k.inflightM.Lock()
	l, ok := k.inflight[target]
	if ok {
		delete(k.inflight, target)
	}
	k.inflightM.Unlock()
	if ok {
		l.result = result
		close(l.done)
	}
}
