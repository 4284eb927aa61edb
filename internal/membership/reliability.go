package membership

import "time"

// Reliability is the spec's MemberReliability record (§3): distinct
// uptime/rtt bookkeeping alongside the composite score used for parity-
// shard placement bias.
type Reliability struct {
	UptimePercent float64
	RTTMillis     float64
	Successes     uint64
	Failures      uint64
	LastSeen      time.Time
	Score         float64
}

// recencyWindow bounds how long ago LastSeen can be before recency_factor
// bottoms out at zero.
const recencyWindow = 10 * time.Minute

// Recompute derives Score = 0.5*success_rate + 0.3*response_factor +
// 0.2*recency_factor (spec §3). response_factor rewards low RTT (inverted
// and clamped); recency_factor decays linearly to zero over recencyWindow.
func (r *Reliability) Recompute(now time.Time) {
	total := r.Successes + r.Failures
	successRate := 1.0
	if total > 0 {
		successRate = float64(r.Successes) / float64(total)
	}

	responseFactor := 1.0
	if r.RTTMillis > 0 {
		responseFactor = 1.0 / (1.0 + r.RTTMillis/100.0)
	}

	recencyFactor := 0.0
	if !r.LastSeen.IsZero() {
		age := now.Sub(r.LastSeen)
		if age <= 0 {
			recencyFactor = 1.0
		} else if age < recencyWindow {
			recencyFactor = 1.0 - float64(age)/float64(recencyWindow)
		}
	}

	r.Score = 0.5*successRate + 0.3*responseFactor + 0.2*recencyFactor
}

// RecordSuccess updates counters and smooths RTT on a successful
// interaction.
func (r *Reliability) RecordSuccess(rttMS float64, now time.Time) {
	r.Successes++
	r.LastSeen = now
	if r.RTTMillis == 0 {
		r.RTTMillis = rttMS
	} else {
		r.RTTMillis = 0.75*r.RTTMillis + 0.25*rttMS
	}
	r.Recompute(now)
}

// RecordFailure updates counters on a failed interaction.
func (r *Reliability) RecordFailure(now time.Time) {
	r.Failures++
	r.Recompute(now)
}
