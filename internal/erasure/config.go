// Package erasure implements the Reed-Solomon v2 engine: (k,m) config
// selection by group size, encode/decode via klauspost/reedsolomon, and
// per-shard integrity hashing (spec §4.5).
package erasure

// stepRow is one row of the stepped (member count -> shard config) table
// from spec §4.5.
type stepRow struct {
	maxMembers int // inclusive upper bound; the last row has no upper bound
	total      int
	k          int
	m          int
	shardSize  int
}

// table mirrors spec §4.5's table exactly, including its shard-size step
// (4 KiB / 8 KiB / 16 KiB) alongside shard counts.
var table = []stepRow{
	{maxMembers: 3, total: 3, k: 2, m: 1, shardSize: 4 << 10},
	{maxMembers: 6, total: 5, k: 3, m: 2, shardSize: 4 << 10},
	{maxMembers: 10, total: 7, k: 4, m: 3, shardSize: 8 << 10},
	{maxMembers: 20, total: 12, k: 7, m: 5, shardSize: 8 << 10},
	{maxMembers: 50, total: 20, k: 12, m: 8, shardSize: 16 << 10},
	{maxMembers: 100, total: 30, k: 18, m: 12, shardSize: 16 << 10},
}

// overflowRow applies to member counts above the table's last bound
// (spec §4.5's "100+" row).
var overflowRow = stepRow{total: 50, k: 30, m: 20, shardSize: 16 << 10}

// Config is a selected (k,m) pair for a given member count and generation.
type Config struct {
	K           int
	M           int
	ShardSize   int
	MemberCount int
	Generation  uint64
}

// Total returns k+m, the number of shards produced per encode.
func (c Config) Total() int { return c.K + c.M }

// Ratio returns k/(k+m). Every row of the table lies in [0.55, 0.65]
// except the first (2 of 3, ratio 2/3), used for groups of up to three
// members.
func (c Config) Ratio() float64 {
	return float64(c.K) / float64(c.Total())
}

// InTolerance reports whether the config's k/t ratio meets the spec's
// availability invariant, used by the membership controller to decide
// whether a generation still fits the current membership.
func (c Config) InTolerance() bool {
	r := c.Ratio()
	return r >= 0.55 && r <= 0.65
}

// Select picks the (k,m) config for memberCount at generation gen. Member
// counts of zero are treated as one (a lone node still needs a config that
// lets it write to itself, per spec §8's "group size 1" boundary case).
func Select(memberCount int, gen uint64) Config {
	if memberCount < 1 {
		memberCount = 1
	}
	for _, row := range table {
		if memberCount <= row.maxMembers {
			return Config{K: row.k, M: row.m, ShardSize: row.shardSize, MemberCount: memberCount, Generation: gen}
		}
	}
	return Config{K: overflowRow.k, M: overflowRow.m, ShardSize: overflowRow.shardSize, MemberCount: memberCount, Generation: gen}
}
