// Package config collects every numeric knob named across the module into
// one documented struct, populated from flags in cmd/nodeserver the same
// way the teacher's cmd/server/main.go builds its flag.Int/flag.String
// block. There is no file-based config loader: flags and defaults are the
// whole surface.
package config

import (
	"time"

	"github.com/saorsa-labs/communitas-core/internal/faulttolerance"
	"github.com/saorsa-labs/communitas-core/internal/kademlia"
	"github.com/saorsa-labs/communitas-core/internal/peermanager"
	"github.com/saorsa-labs/communitas-core/internal/storage"
)

// Config collects the node's settings. Default sets every field to the
// constant it shadows elsewhere in the module. cmd/nodeserver reads only
// NodeID, Addr, DataDir, the peer-manager fields (via PeerManagerConfig)
// and DetectionInterval; the Kademlia, storage-engine and fault-tolerance
// fields and MasterKeyFile are not read, so changing them has no effect.
type Config struct {
	NodeID   string
	Addr     string
	DataDir  string
	MasterKeyFile string

	// Kademlia
	ReplicationFactor   int           // K
	LookupConcurrency   int           // alpha
	LookupMaxIterations int
	LookupTimeout       time.Duration
	MaxConcurrentLookups int

	// Peer manager
	MaxConnections           int
	MaxIdleConnTime          time.Duration
	MaxRequestsPerConnection uint64
	RateLimitRequests        int
	RateLimitWindow          time.Duration
	MinPeerReliability       float64
	MinPeerSamples           uint64

	// Storage engine
	CacheCapacity int
	CacheTTL      time.Duration

	// Fault tolerance
	FailureThreshold    time.Duration
	RecoveryAbandonAfter time.Duration
	MaxRecoveryAttempts int

	// Maintenance loop cadence (mirrors the teacher's 60s snapshot ticker,
	// split into three independent intervals per spec §4.6)
	DetectionInterval   time.Duration
	RecoveryInterval    time.Duration
	ReplicationInterval time.Duration
}

// Default returns a Config with every field set to the spec's documented
// default.
func Default() Config {
	return Config{
		NodeID:  "node1",
		Addr:    ":8080",
		DataDir: "/var/communitas/node1",

		ReplicationFactor:    kademlia.K,
		LookupConcurrency:    kademlia.DefaultAlpha,
		LookupMaxIterations:  kademlia.DefaultMaxIterations,
		LookupTimeout:        kademlia.DefaultLookupTimeout,
		MaxConcurrentLookups: kademlia.DefaultMaxConcurrentRequests,

		MaxConnections:           peermanager.DefaultMaxConnections,
		MaxIdleConnTime:          peermanager.DefaultMaxIdleTime,
		MaxRequestsPerConnection: peermanager.DefaultMaxRequestsPerConnection,
		RateLimitRequests:        peermanager.DefaultRateLimitRequests,
		RateLimitWindow:          peermanager.DefaultRateLimitWindow,
		MinPeerReliability:       peermanager.DefaultMinReliability,
		MinPeerSamples:           peermanager.DefaultMinSamples,

		CacheCapacity: storage.DefaultCacheCapacity,
		CacheTTL:      storage.DefaultCacheTTL,

		FailureThreshold:     faulttolerance.FailureThreshold,
		RecoveryAbandonAfter: faulttolerance.RecoveryAbandonAfter,
		MaxRecoveryAttempts:  faulttolerance.MaxRecoveryAttempts,

		DetectionInterval:   faulttolerance.DetectionInterval,
		RecoveryInterval:    faulttolerance.RecoveryInterval,
		ReplicationInterval: faulttolerance.ReplicationInterval,
	}
}

// PeerManagerConfig projects the relevant fields into a
// peermanager.Config.
func (c Config) PeerManagerConfig() peermanager.Config {
	return peermanager.Config{
		MaxConnections:           c.MaxConnections,
		MaxIdleTime:              c.MaxIdleConnTime,
		MaxRequestsPerConnection: c.MaxRequestsPerConnection,
		RateLimitRequests:        c.RateLimitRequests,
		RateLimitWindow:          c.RateLimitWindow,
		MinReliability:           c.MinPeerReliability,
		MinSamples:               c.MinPeerSamples,
	}
}
