// Package storage implements the policy-driven encrypted storage engine:
// the store/retrieve/delete/transition_policy pipelines from spec §4.3,
// wired to the crypto, content-addressing, cache, Kademlia, erasure, and
// membership packages.
package storage

import (
	"time"

	"github.com/saorsa-labs/communitas-core/internal/types"
)

// Location tags where a StorageResponse's bytes ultimately landed.
type Location struct {
	Kind     LocationKind
	Replicas int      // Dht
	Members  []string // Group
}

type LocationKind int

const (
	LocationLocal LocationKind = iota
	LocationDht
	LocationGroup
	LocationPublic
)

func (k LocationKind) String() string {
	switch k {
	case LocationLocal:
		return "Local"
	case LocationDht:
		return "Dht"
	case LocationGroup:
		return "Group"
	case LocationPublic:
		return "Public"
	default:
		return "Unknown"
	}
}

// Source tags where a RetrievalResponse's bytes were served from.
type Source struct {
	Kind        SourceKind
	FromChunks  int // Group, Reconstructed
}

type SourceKind int

const (
	SourceCache SourceKind = iota
	SourceLocal
	SourceDht
	SourceGroup
	SourceReconstructed
)

func (k SourceKind) String() string {
	switch k {
	case SourceCache:
		return "Cache"
	case SourceLocal:
		return "Local"
	case SourceDht:
		return "Dht"
	case SourceGroup:
		return "Group"
	case SourceReconstructed:
		return "Reconstructed"
	default:
		return "Unknown"
	}
}

// StorageRequest is the store() operation's input (spec §4.3, §6).
type StorageRequest struct {
	Content     []byte
	ContentType string
	Policy      types.Policy
	Metadata    types.StorageMetadata
	UserID      string
}

// StorageResponse is store()'s output.
type StorageResponse struct {
	Address         types.StorageAddress
	ChunksStored    int
	TotalSize       int64
	EncryptedSize   int64
	OperationTimeMS int64
	Location        Location
}

// RetrievalRequest is retrieve()'s input. Namespace is required (only
// consulted) for PrivateScoped addresses — see SPEC_FULL.md's open
// question decision on namespace derivation.
type RetrievalRequest struct {
	Address   types.StorageAddress
	UserID    string
	Namespace string
}

// RetrievalResponse is retrieve()'s output.
type RetrievalResponse struct {
	Content         []byte
	Metadata        types.StorageMetadata
	Source          Source
	OperationTimeMS int64
}

// Stats is stats()'s output: operational visibility without per-peer
// diagnostics (spec §7 "User-visible failure").
type Stats struct {
	StoresTotal        uint64
	RetrievesTotal     uint64
	DeletesTotal       uint64
	BytesStoredTotal    int64
	PolicyDistribution map[string]uint64
	CacheHitRatio       float64
	ActiveOperations    int
}

func elapsedMS(start time.Time) int64 {
	return time.Since(start).Milliseconds()
}
