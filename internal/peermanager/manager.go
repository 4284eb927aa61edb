package peermanager

import (
	"sync"
	"time"

	"github.com/saorsa-labs/communitas-core/internal/types"
)

// DefaultRateLimitRequests / DefaultRateLimitWindow are the sliding-window
// rate limiter defaults (spec §4.2).
const (
	DefaultRateLimitRequests = 100
	DefaultRateLimitWindow   = 60 * time.Second
)

// Config configures a Manager. A zero Config gets every spec default.
type Config struct {
	MaxConnections           int
	MaxIdleTime              time.Duration
	MaxRequestsPerConnection uint64
	RateLimitRequests        int
	RateLimitWindow          time.Duration
	MinReliability           float64
	MinSamples               uint64
}

func (c Config) withDefaults() Config {
	if c.MaxConnections <= 0 {
		c.MaxConnections = DefaultMaxConnections
	}
	if c.MaxIdleTime <= 0 {
		c.MaxIdleTime = DefaultMaxIdleTime
	}
	if c.MaxRequestsPerConnection == 0 {
		c.MaxRequestsPerConnection = DefaultMaxRequestsPerConnection
	}
	if c.RateLimitRequests <= 0 {
		c.RateLimitRequests = DefaultRateLimitRequests
	}
	if c.RateLimitWindow <= 0 {
		c.RateLimitWindow = DefaultRateLimitWindow
	}
	if c.MinReliability <= 0 {
		c.MinReliability = DefaultMinReliability
	}
	if c.MinSamples == 0 {
		c.MinSamples = DefaultMinSamples
	}
	return c
}

// peerRecord is the manager's full view of one remote node: connection
// state, reliability counters, and its own rate-limit window.
type peerRecord struct {
	mu          sync.Mutex
	entry       types.PeerEntry
	reliability reliabilityState
	limiter     *slidingWindow
	banReason   string
}

// Manager implements the peer-manager contract from spec §4.2: connection
// pooling, rate limiting, reliability scoring, and banning. One Manager
// instance is shared by the Kademlia core, the storage engine, and the
// fault-tolerance layer for a single node process.
type Manager struct {
	cfg Config

	mu    sync.RWMutex
	peers map[types.NodeID]*peerRecord
	pool  *connPool
}

// New builds a Manager with cfg (zero-valued fields fall back to spec
// defaults).
func New(cfg Config) *Manager {
	cfg = cfg.withDefaults()
	return &Manager{
		cfg:   cfg,
		peers: make(map[types.NodeID]*peerRecord),
		pool:  newConnPool(cfg.MaxConnections, cfg.MaxIdleTime, cfg.MaxRequestsPerConnection),
	}
}

// Connect registers endpoint under id, moving it through
// Disconnected→Connecting→Connected. It never dials the wire itself — that
// is the transport layer's job; this only tracks state and enforces the
// connection-pool cap.
func (m *Manager) Connect(id types.NodeID, endpoint string, now time.Time) error {
	m.mu.Lock()
	rec, exists := m.peers[id]
	if !exists {
		rec = &peerRecord{
			entry:   types.PeerEntry{NodeID: id, Endpoint: endpoint, Status: types.PeerDisconnected},
			limiter: newSlidingWindow(m.cfg.RateLimitWindow),
		}
		m.peers[id] = rec
	}
	m.mu.Unlock()

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if rec.entry.Status == types.PeerBanned {
		return types.NewError(types.KindAccessDenied, "peer is banned", nil)
	}

	if !m.pool.acquire(id, now) {
		return types.NewError(types.KindUnreachable, "connection pool saturated", nil)
	}

	rec.entry.Endpoint = endpoint
	rec.entry.Status = types.PeerConnected
	rec.entry.LastSeen = now
	return nil
}

// AllowRequest checks the sliding-window rate limit for id without sending
// anything; callers must call this before every outbound send.
func (m *Manager) AllowRequest(id types.NodeID, now time.Time) bool {
	rec, ok := m.peerRecord(id)
	if !ok {
		return true // unknown peers rate-limit only once seen
	}
	return rec.limiter.Allow(now, m.cfg.RateLimitRequests)
}

// RecordSuccess updates reliability and RTT for id, possibly recovering its
// status from Failed back to Connected (spec §4.2 state machine).
func (m *Manager) RecordSuccess(id types.NodeID, rtt time.Duration, now time.Time) {
	rec, ok := m.peerRecord(id)
	if !ok {
		return
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()

	rec.reliability.recordSuccess(now, rtt)
	rec.entry.RTT = rec.reliability.rtt
	rec.entry.Reliability = rec.reliability.score()
	rec.entry.SuccessCount = rec.reliability.successes
	rec.entry.LastSeen = now

	if rec.entry.Status == types.PeerFailed {
		rec.entry.Status = types.PeerConnected
	}
}

// RecordFailure updates reliability for id and evaluates the Unreachable
// demotion rule: total ≥ min_samples and reliability < min_reliability.
func (m *Manager) RecordFailure(id types.NodeID, now time.Time) {
	rec, ok := m.peerRecord(id)
	if !ok {
		return
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()

	rec.reliability.recordFailure(now)
	rec.entry.Reliability = rec.reliability.score()
	rec.entry.FailureCount = rec.reliability.failures
	rec.entry.LastSeen = now

	if rec.entry.Status == types.PeerBanned {
		return
	}

	if rec.reliability.total() >= m.cfg.MinSamples && rec.reliability.score() < m.cfg.MinReliability {
		rec.entry.Status = types.PeerUnreachable
		m.pool.release(id)
		return
	}

	rec.entry.Status = types.PeerFailed
}

// Ban marks id permanently banned. Reason is recorded for operator
// visibility; reset requires explicit operator action via Reset.
func (m *Manager) Ban(id types.NodeID, reason string) {
	m.mu.Lock()
	rec, ok := m.peers[id]
	if !ok {
		rec = &peerRecord{
			entry:   types.PeerEntry{NodeID: id, Status: types.PeerDisconnected},
			limiter: newSlidingWindow(m.cfg.RateLimitWindow),
		}
		m.peers[id] = rec
	}
	m.mu.Unlock()
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.entry.Status = types.PeerBanned
	rec.banReason = reason
	m.pool.release(id)
}

// Reset clears a manual ban or Unreachable demotion, returning id to
// Disconnected so it can be reconnected normally.
func (m *Manager) Reset(id types.NodeID) {
	rec, ok := m.peerRecord(id)
	if !ok {
		return
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.entry.Status = types.PeerDisconnected
	rec.banReason = ""
}

// IsBanned reports whether id is currently banned; the transport layer
// must consult this before every send and every accept.
func (m *Manager) IsBanned(id types.NodeID) bool {
	rec, ok := m.peerRecord(id)
	if !ok {
		return false
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.entry.Status == types.PeerBanned
}

// Peer returns a copy of id's current entry.
func (m *Manager) Peer(id types.NodeID) (types.PeerEntry, bool) {
	rec, ok := m.peerRecord(id)
	if !ok {
		return types.PeerEntry{}, false
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.entry, true
}

// Peers returns a snapshot of every known peer entry.
func (m *Manager) Peers() []types.PeerEntry {
	m.mu.RLock()
	recs := make([]*peerRecord, 0, len(m.peers))
	for _, rec := range m.peers {
		recs = append(recs, rec)
	}
	m.mu.RUnlock()

	out := make([]types.PeerEntry, 0, len(recs))
	for _, rec := range recs {
		rec.mu.Lock()
		out = append(out, rec.entry)
		rec.mu.Unlock()
	}
	return out
}

// PoolStats reports the connection pool's current occupancy and
// lifetime hit/miss counts.
func (m *Manager) PoolStats() (active int, hits, misses uint64) {
	return m.pool.stats()
}

func (m *Manager) peerRecord(id types.NodeID) (*peerRecord, bool) {
	m.mu.RLock()
	rec, ok := m.peers[id]
	m.mu.RUnlock()
	return rec, ok
}
