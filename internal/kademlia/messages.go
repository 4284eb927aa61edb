package kademlia

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/saorsa-labs/communitas-core/internal/types"
)

// wireVersion is the single supported framing version (spec §6).
const wireVersion byte = 1

// MessageKind tags the payload that follows the frame header.
type MessageKind byte

const (
	KindPing MessageKind = iota + 1
	KindPong
	KindStore
	KindStoreResponse
	KindFindNode
	KindFindNodeResponse
	KindFindValue
	KindFindValueResponse
	KindFindValueNodesResponse
)

// NodeContact is the wire form of a routing-table contact.
type NodeContact struct {
	ID       types.NodeID `json:"id"`
	Endpoint string       `json:"endpoint"`
}

type PingMsg struct{ Sender types.NodeID }
type PongMsg struct{ Sender types.NodeID }

type StoreMsg struct {
	Sender types.NodeID
	Key    types.ContentID
	Value  []byte
	TTL    int64 // nanoseconds, wire-safe fixed-width duration
}

type StoreResponseMsg struct {
	Sender types.NodeID
	OK     bool
	Err    string
}

type FindNodeMsg struct {
	Sender types.NodeID
	Target types.NodeID
}

type FindNodeResponseMsg struct {
	Sender  types.NodeID
	Closest []NodeContact
}

type FindValueMsg struct {
	Sender types.NodeID
	Key    types.ContentID
}

type FindValueResponseMsg struct {
	Sender types.NodeID
	Value  []byte
}

type FindValueNodesResponseMsg struct {
	Sender  types.NodeID
	Closest []NodeContact
}

// Frame is a decoded wire message: kind tag plus its JSON payload, still
// unmarshaled into the concrete struct the kind names.
type Frame struct {
	Kind    MessageKind
	Payload json.RawMessage
}

// Encode serializes kind and payload into the length-prefixed wire format
// from spec §6: 4-byte little-endian length, 1-byte version, 1-byte kind,
// JSON payload. Unknown JSON fields on the decode side are ignored by
// encoding/json by default, satisfying the forward-compatibility rule.
func Encode(kind MessageKind, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("kademlia: encode payload: %w", err)
	}

	header := make([]byte, 4, 4+2+len(body))
	binary.LittleEndian.PutUint32(header, uint32(2+len(body)))
	header = append(header, wireVersion, byte(kind))
	return append(header, body...), nil
}

// Decode parses a single frame off the front of buf, returning the frame
// and the number of bytes it consumed.
func Decode(buf []byte) (Frame, int, error) {
	if len(buf) < 4 {
		return Frame{}, 0, fmt.Errorf("kademlia: short buffer for length prefix")
	}
	length := binary.LittleEndian.Uint32(buf[:4])
	total := 4 + int(length)
	if len(buf) < total {
		return Frame{}, 0, fmt.Errorf("kademlia: incomplete frame: want %d bytes, have %d", total, len(buf))
	}
	if length < 2 {
		return Frame{}, 0, fmt.Errorf("kademlia: frame too short for header")
	}

	version := buf[4]
	if version != wireVersion {
		return Frame{}, 0, fmt.Errorf("kademlia: unsupported wire version %d", version)
	}
	kind := MessageKind(buf[5])
	payload := bytes.TrimSpace(buf[6:total])

	return Frame{Kind: kind, Payload: json.RawMessage(payload)}, total, nil
}
