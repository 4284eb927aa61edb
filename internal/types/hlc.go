package types

import (
	"fmt"
	"time"
)

// HybridLogicalClock is (physical_ms, logical_counter, node_id), ordered
// lexicographically in that order (spec §3, §4.5). It is monotone per node.
type HybridLogicalClock struct {
	PhysicalMS int64
	Counter    uint32
	NodeID     string
}

// NewHLC creates a zero clock for nodeID, to be advanced by Tick.
func NewHLC(nodeID string) HybridLogicalClock {
	return HybridLogicalClock{NodeID: nodeID}
}

// Tick advances the clock against a wall-clock reading: if physical time has
// moved forward, the counter resets; otherwise the counter increments. The
// caller supplies "now" since Go's Date.Now()-equivalent (time.Now) must
// stay at the call site for testability.
func (c HybridLogicalClock) Tick(nowMS int64) HybridLogicalClock {
	if nowMS > c.PhysicalMS {
		return HybridLogicalClock{PhysicalMS: nowMS, Counter: 0, NodeID: c.NodeID}
	}
	return HybridLogicalClock{PhysicalMS: c.PhysicalMS, Counter: c.Counter + 1, NodeID: c.NodeID}
}

// Update merges a received clock into the local one, taking the max
// physical time and advancing the counter once per the standard HLC
// receive rule; the counter resets to 0 when nowMS is ahead of both clocks.
func (c HybridLogicalClock) Update(other HybridLogicalClock, nowMS int64) HybridLogicalClock {
	maxPhys := nowMS
	if c.PhysicalMS > maxPhys {
		maxPhys = c.PhysicalMS
	}
	if other.PhysicalMS > maxPhys {
		maxPhys = other.PhysicalMS
	}

	switch {
	case maxPhys == c.PhysicalMS && maxPhys == other.PhysicalMS:
		ctr := c.Counter
		if other.Counter > ctr {
			ctr = other.Counter
		}
		return HybridLogicalClock{PhysicalMS: maxPhys, Counter: ctr + 1, NodeID: c.NodeID}
	case maxPhys == c.PhysicalMS:
		return HybridLogicalClock{PhysicalMS: maxPhys, Counter: c.Counter + 1, NodeID: c.NodeID}
	case maxPhys == other.PhysicalMS:
		return HybridLogicalClock{PhysicalMS: maxPhys, Counter: other.Counter + 1, NodeID: c.NodeID}
	default:
		return HybridLogicalClock{PhysicalMS: maxPhys, Counter: 0, NodeID: c.NodeID}
	}
}

// Compare orders two clocks lexicographically by (physical_ms, counter,
// node_id); this is the system's only causal-ordering requirement (spec §5).
func (c HybridLogicalClock) Compare(other HybridLogicalClock) int {
	if c.PhysicalMS != other.PhysicalMS {
		if c.PhysicalMS < other.PhysicalMS {
			return -1
		}
		return 1
	}
	if c.Counter != other.Counter {
		if c.Counter < other.Counter {
			return -1
		}
		return 1
	}
	if c.NodeID == other.NodeID {
		return 0
	}
	if c.NodeID < other.NodeID {
		return -1
	}
	return 1
}

func (c HybridLogicalClock) String() string {
	return fmt.Sprintf("%d.%d@%s", c.PhysicalMS, c.Counter, c.NodeID)
}

// NowMS is a small seam so production code calls time.Now() in exactly one
// place and tests can supply deterministic physical time instead.
func NowMS(t time.Time) int64 {
	return t.UnixMilli()
}
