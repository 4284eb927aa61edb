package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHLCTickAdvancesPhysicalOrCounter(t *testing.T) {
	c := NewHLC("node-1")
	c = c.Tick(1000)
	assert.Equal(t, int64(1000), c.PhysicalMS)
	assert.Equal(t, uint32(0), c.Counter)

	c2 := c.Tick(1000) // same wall clock reading -> counter bump
	assert.Equal(t, int64(1000), c2.PhysicalMS)
	assert.Equal(t, uint32(1), c2.Counter)

	c3 := c2.Tick(2000) // wall clock moved forward -> counter resets
	assert.Equal(t, int64(2000), c3.PhysicalMS)
	assert.Equal(t, uint32(0), c3.Counter)
}

func TestHLCOrderingIsDeterministicAcrossObservers(t *testing.T) {
	a := HybridLogicalClock{PhysicalMS: 100, Counter: 1, NodeID: "a"}
	b := HybridLogicalClock{PhysicalMS: 100, Counter: 2, NodeID: "a"}
	c := HybridLogicalClock{PhysicalMS: 100, Counter: 1, NodeID: "z"}

	assert.Equal(t, -1, a.Compare(b))
	assert.Equal(t, 1, b.Compare(a))
	assert.Equal(t, -1, a.Compare(c))
}

func TestHLCUpdateMergesMax(t *testing.T) {
	local := HybridLogicalClock{PhysicalMS: 100, Counter: 0, NodeID: "local"}
	remote := HybridLogicalClock{PhysicalMS: 150, Counter: 5, NodeID: "remote"}

	merged := local.Update(remote, 90)
	assert.Equal(t, int64(150), merged.PhysicalMS)
	assert.Equal(t, uint32(6), merged.Counter)
	assert.Equal(t, "local", merged.NodeID)
}
