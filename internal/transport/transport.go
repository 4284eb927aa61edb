// Package transport defines the bytestream contract the rest of the module
// treats as external (spec §6: "authenticated bidirectional bytestream
// endpoints"), plus a net/http client implementation (DialHTTP) that POSTs
// frames to a peer's /frame endpoint. No package in this module uses it.
package transport

import (
	"context"
	"time"
)

// Endpoint is one peer connection's send/receive contract. A production
// binding wraps an authenticated QUIC stream; the HTTP implementation in
// this package wraps a request/response round trip instead, framing each
// call the same way (length-prefixed JSON, see internal/kademlia/messages.go).
type Endpoint interface {
	// Send delivers frame to the peer and blocks until it is accepted
	// (written, for HTTP; ACKed at the QUIC layer for a real transport).
	Send(ctx context.Context, frame []byte) error
	// Receive returns the next frame. The HTTP implementation does not
	// block: it returns an error at once when no frame is queued.
	Receive(ctx context.Context) ([]byte, error)
	// Close releases the endpoint's underlying connection.
	Close() error
}

// DialFunc opens a new Endpoint to addr. Implementations are supplied by
// whichever transport binding is active (HTTP here; QUIC in a production
// deployment).
type DialFunc func(ctx context.Context, addr string) (Endpoint, error)

// DefaultDialTimeout bounds how long Dial waits to establish a connection.
const DefaultDialTimeout = 10 * time.Second
