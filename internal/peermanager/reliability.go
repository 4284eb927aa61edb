package peermanager

import "time"

// DefaultMinReliability is the threshold below which a peer with enough
// samples is marked Unreachable (spec §4.2).
const DefaultMinReliability = 0.5

// DefaultMinSamples is how many total interactions must be observed before
// the reliability threshold is enforced; below this, a few early failures
// (cold start, transient network blips) must not evict a peer.
const DefaultMinSamples = 10

// rttAlpha is the exponential-smoothing weight applied to new RTT samples:
// rtt ← (1-alpha)·rtt + alpha·sample.
const rttAlpha = 0.25

// reliabilityState tracks one peer's success/failure counters and smoothed
// RTT. It does not itself decide status transitions — that's the state
// machine in manager.go, which reads this via score() and total().
type reliabilityState struct {
	successes uint64
	failures  uint64
	rtt       time.Duration
	lastSeen  time.Time
}

func (r *reliabilityState) recordSuccess(now time.Time, sample time.Duration) {
	r.successes++
	r.lastSeen = now
	if r.rtt == 0 {
		r.rtt = sample
		return
	}
	r.rtt = time.Duration(0.75*float64(r.rtt) + rttAlpha*float64(sample))
}

func (r *reliabilityState) recordFailure(now time.Time) {
	r.failures++
	r.lastSeen = now
}

// score returns successes/(successes+failures), 1.0 with no samples yet so
// a brand-new peer isn't penalized before it's had a chance.
func (r *reliabilityState) score() float64 {
	total := r.successes + r.failures
	if total == 0 {
		return 1.0
	}
	return float64(r.successes) / float64(total)
}

func (r *reliabilityState) total() uint64 {
	return r.successes + r.failures
}
