package kademlia

import (
	"context"
	"time"

	"github.com/saorsa-labs/communitas-core/internal/types"
)

// RPC is the wire-level capability the Kademlia core needs from the
// transport + peer manager: send one of the four message pairs and get a
// response or error. A real implementation frames requests with
// Encode/Decode and carries them over the node's authenticated bytestream
// transport; tests supply an in-memory fake.
type RPC interface {
	Ping(ctx context.Context, c Contact) error
	FindNode(ctx context.Context, c Contact, target types.NodeID) ([]Contact, error)
	FindValue(ctx context.Context, c Contact, key types.ContentID) (value []byte, closest []Contact, found bool, err error)
	Store(ctx context.Context, c Contact, key types.ContentID, value []byte, ttl time.Duration) (ok bool, err error)
}

// NoopRPC is an RPC that always fails: no peer is reachable. It is the
// correct default for a node whose routing table is still empty (nothing
// dials out, since every lookup short-circuits before reaching the
// network — see Kademlia.FindNode), and a safe placeholder until a real
// wire binding (QUIC, or the HTTP transport package) is wired to contacts.
type NoopRPC struct{}

func (NoopRPC) Ping(ctx context.Context, c Contact) error { return context.DeadlineExceeded }
func (NoopRPC) FindNode(ctx context.Context, c Contact, target types.NodeID) ([]Contact, error) {
	return nil, context.DeadlineExceeded
}
func (NoopRPC) FindValue(ctx context.Context, c Contact, key types.ContentID) ([]byte, []Contact, bool, error) {
	return nil, nil, false, context.DeadlineExceeded
}
func (NoopRPC) Store(ctx context.Context, c Contact, key types.ContentID, value []byte, ttl time.Duration) (bool, error) {
	return false, context.DeadlineExceeded
}
