package kademlia

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saorsa-labs/communitas-core/internal/peermanager"
	"github.com/saorsa-labs/communitas-core/internal/types"
)

// fakeNetwork wires a set of in-memory Kademlia nodes together so lookups
// can be exercised without a real transport.
type fakeNetwork struct {
	mu    sync.Mutex
	nodes map[types.NodeID]*Kademlia
}

func newFakeNetwork() *fakeNetwork {
	return &fakeNetwork{nodes: make(map[types.NodeID]*Kademlia)}
}

type fakeRPC struct {
	net       *fakeNetwork
	unreach   map[types.NodeID]bool
}

func (f *fakeRPC) node(id types.NodeID) (*Kademlia, bool) {
	f.net.mu.Lock()
	defer f.net.mu.Unlock()
	n, ok := f.net.nodes[id]
	return n, ok
}

func (f *fakeRPC) Ping(ctx context.Context, c Contact) error { return nil }

func (f *fakeRPC) FindNode(ctx context.Context, c Contact, target types.NodeID) ([]Contact, error) {
	if f.unreach[c.ID] {
		return nil, context.DeadlineExceeded
	}
	n, ok := f.node(c.ID)
	if !ok {
		return nil, context.DeadlineExceeded
	}
	return n.table.FindClosest(target, K), nil
}

func (f *fakeRPC) FindValue(ctx context.Context, c Contact, key types.ContentID) ([]byte, []Contact, bool, error) {
	if f.unreach[c.ID] {
		return nil, nil, false, context.DeadlineExceeded
	}
	n, ok := f.node(c.ID)
	if !ok {
		return nil, nil, false, context.DeadlineExceeded
	}
	n.mu.RLock()
	entry, found := n.dhtStore[key]
	n.mu.RUnlock()
	if found {
		return entry.Value, nil, true, nil
	}
	return nil, n.table.FindClosest(keyToTarget(key), K), false, nil
}

func (f *fakeRPC) Store(ctx context.Context, c Contact, key types.ContentID, value []byte, ttl time.Duration) (bool, error) {
	if f.unreach[c.ID] {
		return false, context.DeadlineExceeded
	}
	n, ok := f.node(c.ID)
	if !ok {
		return false, context.DeadlineExceeded
	}
	n.mu.Lock()
	n.dhtStore[key] = types.DhtEntry{Key: key, Value: value, StoredAt: time.Now(), TTL: ttl}
	n.mu.Unlock()
	return true, nil
}

func idFor(b byte) types.NodeID {
	var id types.NodeID
	id[0] = b
	return id
}

func buildNetwork(t *testing.T, n int) (*fakeNetwork, []*Kademlia, *fakeRPC) {
	t.Helper()
	net := newFakeNetwork()
	rpc := &fakeRPC{net: net, unreach: make(map[types.NodeID]bool)}

	var nodes []*Kademlia
	for i := 0; i < n; i++ {
		id := idFor(byte(i + 1))
		pm := peermanager.New(peermanager.Config{})
		k := New(id, pm, rpc)
		net.nodes[id] = k
		nodes = append(nodes, k)
	}

	// Fully connect every node's routing table to every other node.
	for _, a := range nodes {
		for _, b := range nodes {
			if a == b {
				continue
			}
			a.table.Update(Contact{ID: b.self, Endpoint: "fake", LastSeen: time.Now()}, func(Contact) bool { return false })
		}
	}
	return net, nodes, rpc
}

func TestFindNodeConvergesToClosest(t *testing.T) {
	_, nodes, _ := buildNetwork(t, 8)

	target := idFor(200)
	result, err := nodes[0].FindNode(context.Background(), target)
	require.NoError(t, err)
	assert.NotEmpty(t, result)
	assert.LessOrEqual(t, len(result), K)
}

func TestFindNodeEmptyRoutingTableReturnsEmptyNoNetwork(t *testing.T) {
	pm := peermanager.New(peermanager.Config{})
	net := newFakeNetwork()
	rpc := &fakeRPC{net: net, unreach: make(map[types.NodeID]bool)}
	k := New(idFor(1), pm, rpc)

	result, err := k.FindNode(context.Background(), idFor(99))
	require.NoError(t, err)
	assert.Empty(t, result)
}

func TestStoreAndFindValueRoundTrip(t *testing.T) {
	_, nodes, _ := buildNetwork(t, 8)
	key := types.ContentID{1, 2, 3}
	value := []byte("hello dht")

	require.NoError(t, nodes[0].Store(context.Background(), key, value, time.Hour))

	got, err := nodes[1].FindValue(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, value, got)
}

func TestStoreFailsWithInsufficientReplicas(t *testing.T) {
	_, nodes, rpc := buildNetwork(t, 8)
	for _, n := range nodes[1:6] {
		rpc.unreach[n.self] = true
	}

	key := types.ContentID{9, 9, 9}
	err := nodes[0].Store(context.Background(), key, []byte("x"), time.Hour)
	require.Error(t, err)
	kind, ok := types.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, types.KindInsufficientReplicas, kind)
}

func TestFindNodeWithSomeUnreachablePeersStillConverges(t *testing.T) {
	_, nodes, rpc := buildNetwork(t, 8)
	for _, n := range nodes[1:4] {
		rpc.unreach[n.self] = true
	}

	result, err := nodes[0].FindNode(context.Background(), idFor(250))
	require.NoError(t, err)
	assert.NotEmpty(t, result)
}
