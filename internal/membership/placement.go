package membership

import (
	"math"
	"sort"

	"github.com/saorsa-labs/communitas-core/internal/erasure"
)

// Placement is the assignment of one shard index to its primary and backup
// holders.
type Placement struct {
	ShardIndex int
	Kind       erasure.ShardKind
	Primary    string
	Backups    []string
}

// PlaceShards assigns every shard in cfg to holders on ring, biased by
// reliability (spec §4.5): members below the median score are preferred
// for parity shards, not data shards. No member is assigned more than
// ceil(t/n) shards total.
func PlaceShards(dataID string, cfg erasure.Config, ring *HashRing, reliability map[string]*Reliability) []Placement {
	members := ring.Members()
	if len(members) == 0 {
		return nil
	}

	median := medianScore(members, reliability)
	belowMedian := make(map[string]bool, len(members))
	for _, m := range members {
		if scoreOf(m, reliability) < median {
			belowMedian[m] = true
		}
	}

	perMemberCap := int(math.Ceil(float64(cfg.Total()) / float64(len(members))))
	load := make(map[string]int, len(members))

	out := make([]Placement, 0, cfg.Total())
	for idx := 0; idx < cfg.Total(); idx++ {
		kind := erasure.ShardData
		if idx >= cfg.K {
			kind = erasure.ShardParity
		}

		candidates := ring.HoldersFor(dataID, idx, len(members))
		primary := pickWithinCap(candidates, load, perMemberCap, kind, belowMedian)
		if primary == "" {
			continue
		}
		load[primary]++

		backups := make([]string, 0, 2)
		for _, c := range candidates {
			if c == primary || len(backups) >= 2 {
				continue
			}
			backups = append(backups, c)
		}

		out = append(out, Placement{ShardIndex: idx, Kind: kind, Primary: primary, Backups: backups})
	}
	return out
}

// pickWithinCap chooses the first candidate under its per-member shard cap
// that matches the kind's reliability preference (data shards prefer
// above-median members; parity shards prefer below-median). Falls back to
// any under-cap candidate if no preferred one exists.
func pickWithinCap(candidates []string, load map[string]int, perMemberCap int, kind erasure.ShardKind, belowMedian map[string]bool) string {
	var fallback string
	for _, c := range candidates {
		if load[c] >= perMemberCap {
			continue
		}
		if fallback == "" {
			fallback = c
		}
		wantsBelow := kind == erasure.ShardParity
		if belowMedian[c] == wantsBelow {
			return c
		}
	}
	return fallback
}

func medianScore(members []string, reliability map[string]*Reliability) float64 {
	scores := make([]float64, len(members))
	for i, m := range members {
		scores[i] = scoreOf(m, reliability)
	}
	sort.Float64s(scores)
	mid := len(scores) / 2
	if len(scores)%2 == 0 && len(scores) > 0 {
		return (scores[mid-1] + scores[mid]) / 2
	}
	return scores[mid]
}

func scoreOf(member string, reliability map[string]*Reliability) float64 {
	if r, ok := reliability[member]; ok && r != nil {
		return r.Score
	}
	return 1.0 // unknown members default to fully reliable
}
