package peermanager

import (
	"sync"
	"time"

	"github.com/saorsa-labs/communitas-core/internal/types"
)

// DefaultMaxConnections is the pool-wide cap on concurrent logical
// connections (spec §4.2).
const DefaultMaxConnections = 100

// DefaultMaxIdleTime evicts a pooled connection once idle this long.
const DefaultMaxIdleTime = 5 * time.Minute

// DefaultMaxRequestsPerConnection evicts a connection after this many
// requests, bounding how long any single logical connection stays open.
const DefaultMaxRequestsPerConnection = 10000

// pooledConn tracks the bookkeeping the spec requires per connection:
// created_at, last_used, request_count.
type pooledConn struct {
	nodeID       types.NodeID
	createdAt    time.Time
	lastUsed     time.Time
	requestCount uint64
}

// connPool bounds live connections and evicts on idle time or request
// count, independent of peer reliability (that's reliability.go's job).
type connPool struct {
	mu                       sync.Mutex
	maxConnections           int
	maxIdleTime              time.Duration
	maxRequestsPerConnection uint64
	conns                    map[types.NodeID]*pooledConn

	hits   uint64
	misses uint64
}

func newConnPool(maxConnections int, maxIdleTime time.Duration, maxRequests uint64) *connPool {
	if maxConnections <= 0 {
		maxConnections = DefaultMaxConnections
	}
	if maxIdleTime <= 0 {
		maxIdleTime = DefaultMaxIdleTime
	}
	if maxRequests == 0 {
		maxRequests = DefaultMaxRequestsPerConnection
	}
	return &connPool{
		maxConnections:           maxConnections,
		maxIdleTime:              maxIdleTime,
		maxRequestsPerConnection: maxRequests,
		conns:                    make(map[types.NodeID]*pooledConn),
	}
}

// acquire returns the pooled connection for id, creating one if room
// remains. ok is false when the pool is saturated and id was not already
// present.
func (p *connPool) acquire(id types.NodeID, now time.Time) (ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.evictLocked(now)

	if c, exists := p.conns[id]; exists {
		c.lastUsed = now
		c.requestCount++
		p.hits++
		return true
	}

	if len(p.conns) >= p.maxConnections {
		p.misses++
		return false
	}

	p.conns[id] = &pooledConn{nodeID: id, createdAt: now, lastUsed: now, requestCount: 1}
	p.misses++
	return true
}

// release drops id from the pool immediately (used on Ban/disconnect).
func (p *connPool) release(id types.NodeID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.conns, id)
}

// evictLocked removes connections idle too long or over their request
// budget. Caller must hold p.mu.
func (p *connPool) evictLocked(now time.Time) {
	for id, c := range p.conns {
		if now.Sub(c.lastUsed) > p.maxIdleTime || c.requestCount > p.maxRequestsPerConnection {
			delete(p.conns, id)
		}
	}
}

func (p *connPool) stats() (active int, hits, misses uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.conns), p.hits, p.misses
}
