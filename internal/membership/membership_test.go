package membership

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saorsa-labs/communitas-core/internal/erasure"
)

func erasureConfigFor3() erasure.Config {
	return erasure.Select(3, 1)
}

func TestGroupSizeOneUsesLocalConfig(t *testing.T) {
	g := NewGroupState("g1", []string{"self"})
	assert.Equal(t, 2, g.Config.K)
	assert.Equal(t, 1, g.Config.M)
	assert.Equal(t, PhaseStable, g.Phase)
}

func TestGracePeriodZeroNetChangeReturnsToStable(t *testing.T) {
	g := NewGroupState("g2", []string{"a", "b", "c", "d", "e"})
	now := time.Now()

	g.RequestJoin("f", now)
	g.RequestLeave("a", now)
	require.Equal(t, PhaseGracePeriod, g.Phase)

	g.ResolveGracePeriod(now.Add(GracePeriodDuration + time.Second))
	assert.Equal(t, PhaseStable, g.Phase)
	assert.ElementsMatch(t, []string{"b", "c", "d", "e", "f"}, g.Members)
}

func TestGrowthBeyondThresholdTriggersRebalance(t *testing.T) {
	g := NewGroupState("g3", []string{"a", "b", "c", "d", "e"})
	now := time.Now()

	g.RequestJoin("f", now)
	g.RequestJoin("h", now)
	g.ResolveGracePeriod(now.Add(GracePeriodDuration + time.Second))

	assert.Equal(t, PhaseRebalancing, g.Phase)
	assert.Equal(t, 3, g.OldConfig.K)
	assert.NotEqual(t, g.OldConfig.Generation, g.Config.Generation)

	g.AdvanceRebalance(g.RebalanceTotal)
	assert.Equal(t, PhaseStable, g.Phase)
}

func TestHashRingPlacementRespectsPerMemberCap(t *testing.T) {
	ring := NewHashRing()
	for _, m := range []string{"a", "b", "c"} {
		ring.AddMember(m)
	}

	cfg := erasureConfigFor3()
	placements := PlaceShards("data-1", cfg, ring, nil)
	require.NotEmpty(t, placements)

	load := map[string]int{}
	for _, p := range placements {
		load[p.Primary]++
	}
	for member, count := range load {
		assert.LessOrEqual(t, count, 1, "member %s over-assigned", member)
	}
}
