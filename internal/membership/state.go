package membership

import (
	"time"

	"github.com/saorsa-labs/communitas-core/internal/erasure"
)

// Phase tags a group's current FSM state (spec §3's GroupState).
type Phase int

const (
	PhaseStable Phase = iota
	PhaseMemberJoining
	PhaseMemberLeaving
	PhaseGracePeriod
	PhaseRebalancing
)

func (p Phase) String() string {
	switch p {
	case PhaseStable:
		return "Stable"
	case PhaseMemberJoining:
		return "MemberJoining"
	case PhaseMemberLeaving:
		return "MemberLeaving"
	case PhaseGracePeriod:
		return "GracePeriod"
	case PhaseRebalancing:
		return "Rebalancing"
	default:
		return "Unknown"
	}
}

// GracePeriodDuration is the coalescing window for membership churn before
// a rebalance decision is made (spec §4.5).
const GracePeriodDuration = 5 * time.Minute

// RebalanceThreshold: rebalancing is required iff |Δmembers|/|members| >
// this fraction, or the config falls outside tolerance (spec §4.5).
const RebalanceThreshold = 0.20

// GroupState is one group's membership FSM plus its active RS config.
// Changes apply in the order the methods are called: GroupState holds no
// clock, and no method takes an HLC timestamp.
type GroupState struct {
	GroupID string
	Phase   Phase

	Config    erasure.Config
	OldConfig erasure.Config // valid only during Rebalancing

	Members        []string // stable member set
	PendingJoins   []string
	PendingLeaves  []string
	GraceEndsAt    time.Time
	RebalanceFrom  int // progress numerator
	RebalanceTotal int // progress denominator

	Ring *HashRing

	// Reliability holds each member's MemberReliability record (spec §3),
	// keyed by member id. PlaceShards reads this to bias parity shards
	// toward below-median-reliability members; it starts every member at
	// the same freshly-recomputed baseline and is updated as the engine
	// observes real outcomes via RecordMemberOutcome.
	Reliability map[string]*Reliability
}

// NewGroupState creates a Stable group seeded with members and generation
// 1.
func NewGroupState(groupID string, members []string) *GroupState {
	ring := NewHashRing()
	reliability := make(map[string]*Reliability, len(members))
	for _, m := range members {
		ring.AddMember(m)
		r := &Reliability{}
		r.Recompute(time.Time{})
		reliability[m] = r
	}
	return &GroupState{
		GroupID:     groupID,
		Phase:       PhaseStable,
		Config:      erasure.Select(len(members), 1),
		Members:     append([]string(nil), members...),
		Ring:        ring,
		Reliability: reliability,
	}
}

// RecordMemberOutcome updates a member's reliability record from an
// observed delivery outcome (e.g. a shard store/fetch attempt against
// that member), creating the record if the member joined after the group
// was first constructed.
func (g *GroupState) RecordMemberOutcome(memberID string, success bool, rttMS float64, now time.Time) {
	r, ok := g.Reliability[memberID]
	if !ok {
		r = &Reliability{}
		if g.Reliability == nil {
			g.Reliability = make(map[string]*Reliability)
		}
		g.Reliability[memberID] = r
	}
	if success {
		r.RecordSuccess(rttMS, now)
	} else {
		r.RecordFailure(now)
	}
}

// Progress reports rebalance completion in [0,1]; 1.0 outside Rebalancing.
func (g *GroupState) Progress() float64 {
	if g.Phase != PhaseRebalancing || g.RebalanceTotal == 0 {
		return 1.0
	}
	return float64(g.RebalanceFrom) / float64(g.RebalanceTotal)
}

// RequestJoin records a pending join and opens (or extends) the grace
// period, per spec §4.5: "All changes in the window coalesce."
func (g *GroupState) RequestJoin(memberID string, now time.Time) {
	g.PendingJoins = append(g.PendingJoins, memberID)
	g.enterGrace(PhaseMemberJoining, now)
}

// RequestLeave records a pending leave and opens/extends the grace period.
func (g *GroupState) RequestLeave(memberID string, now time.Time) {
	g.PendingLeaves = append(g.PendingLeaves, memberID)
	g.enterGrace(PhaseMemberLeaving, now)
}

func (g *GroupState) enterGrace(transitional Phase, now time.Time) {
	if g.Phase == PhaseStable {
		g.Phase = transitional
	}
	g.Phase = PhaseGracePeriod
	g.GraceEndsAt = now.Add(GracePeriodDuration)
}

// ResolveGracePeriod is called once GraceEndsAt has passed. It computes the
// net membership change, decides whether a rebalance is required, and
// either returns to Stable or enters Rebalancing.
func (g *GroupState) ResolveGracePeriod(now time.Time) {
	if g.Phase != PhaseGracePeriod || now.Before(g.GraceEndsAt) {
		return
	}

	newMembers := applyChurn(g.Members, g.PendingJoins, g.PendingLeaves)
	netDelta := len(newMembers) - len(g.Members)
	if netDelta < 0 {
		netDelta = -netDelta
	}
	g.PendingJoins = nil
	g.PendingLeaves = nil

	baseline := len(g.Members)
	if baseline == 0 {
		baseline = 1
	}
	fractionalChange := float64(netDelta) / float64(baseline)

	candidate := erasure.Select(len(newMembers), g.Config.Generation+1)
	needsRebalance := fractionalChange > RebalanceThreshold || !g.Config.InTolerance()

	if !needsRebalance {
		g.Members = newMembers
		g.Phase = PhaseStable
		rebuildRing(g.Ring, newMembers)
		syncReliability(g, newMembers)
		return
	}

	g.OldConfig = g.Config
	g.Config = candidate
	g.Members = newMembers
	g.Phase = PhaseRebalancing
	g.RebalanceFrom = 0
	g.RebalanceTotal = len(newMembers)
	rebuildRing(g.Ring, newMembers)
	syncReliability(g, newMembers)
}

// syncReliability adds a fresh record for any member new to the group;
// records for members who left are kept (not deleted) since old shards
// placed on them may still need accounting until the rebalance completes.
func syncReliability(g *GroupState, members []string) {
	if g.Reliability == nil {
		g.Reliability = make(map[string]*Reliability, len(members))
	}
	for _, m := range members {
		if _, ok := g.Reliability[m]; !ok {
			r := &Reliability{}
			r.Recompute(time.Time{})
			g.Reliability[m] = r
		}
	}
}

// AdvanceRebalance reports migrated-member progress; at progress 1.0 the
// group returns to Stable (spec §4.5).
func (g *GroupState) AdvanceRebalance(migrated int) {
	if g.Phase != PhaseRebalancing {
		return
	}
	g.RebalanceFrom = migrated
	if g.Progress() >= 1.0 {
		g.Phase = PhaseStable
		g.OldConfig = erasure.Config{}
	}
}

// applyChurn returns the new member list: existing minus leaves, plus
// joins, deduplicated.
func applyChurn(existing, joins, leaves []string) []string {
	leaving := make(map[string]bool, len(leaves))
	for _, l := range leaves {
		leaving[l] = true
	}
	seen := make(map[string]bool, len(existing)+len(joins))
	out := make([]string, 0, len(existing)+len(joins))
	for _, m := range existing {
		if leaving[m] || seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	for _, m := range joins {
		if leaving[m] || seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	return out
}

func rebuildRing(ring *HashRing, members []string) {
	for _, m := range ring.Members() {
		ring.RemoveMember(m)
	}
	for _, m := range members {
		ring.AddMember(m)
	}
}
