// Package faulttolerance implements the failure detector, recovery
// manager, and replication-health manager that together drive the node's
// self-healing loop (spec §4.6).
package faulttolerance

import (
	"sync"
	"time"

	"github.com/saorsa-labs/communitas-core/internal/types"
)

// Status is a peer's fault-tolerance view, distinct from peermanager's
// connection-state PeerStatus: this tracks suspicion and recovery, not
// pooling.
type Status int

const (
	Healthy Status = iota
	Suspected
	Failed
	Recovering
	Offline
)

func (s Status) String() string {
	switch s {
	case Healthy:
		return "Healthy"
	case Suspected:
		return "Suspected"
	case Failed:
		return "Failed"
	case Recovering:
		return "Recovering"
	case Offline:
		return "Offline"
	default:
		return "Unknown"
	}
}

// FailureType tags one failure event (spec §4.6).
type FailureType int

const (
	FailureTimeout FailureType = iota
	FailureConnectionRefused
	FailureProtocolError
	FailureContentCorruption
	FailureOverload
	FailureMalicious
)

// FailureThreshold is the default duration of silence (or sustained
// suspicion) before a status transition (spec §4.6).
const FailureThreshold = 180 * time.Second

// ConsecutiveFailuresForSuspicion is the number of back-to-back failures
// that moves a peer from Healthy to Suspected.
const ConsecutiveFailuresForSuspicion = 3

// historyLimit bounds the sliding window of failure events per peer.
const historyLimit = 100

type failureEvent struct {
	at   time.Time
	kind FailureType
}

type peerHealth struct {
	status             Status
	consecutiveFails   int
	lastSeen           time.Time
	suspectedSince     time.Time
	history            []failureEvent
}

// Detector tracks per-peer health and applies the transition rules from
// spec §4.6. The detector never declares a peer failed from a single
// event — it always requires either a run of consecutive failures or a
// sustained absence.
type Detector struct {
	mu    sync.Mutex
	peers map[types.NodeID]*peerHealth
}

// NewDetector creates an empty failure detector.
func NewDetector() *Detector {
	return &Detector{peers: make(map[types.NodeID]*peerHealth)}
}

func (d *Detector) peer(id types.NodeID) *peerHealth {
	p, ok := d.peers[id]
	if !ok {
		p = &peerHealth{status: Healthy}
		d.peers[id] = p
	}
	return p
}

// RecordSuccess marks a successful interaction with id, resetting it to
// Healthy from any non-Offline state (spec §4.6: "Any → Healthy on a
// successful interaction").
func (d *Detector) RecordSuccess(id types.NodeID, now time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p := d.peer(id)
	p.consecutiveFails = 0
	p.lastSeen = now
	if p.status != Offline {
		p.status = Healthy
	}
}

// RecordFailure records a failure of the given kind and applies the
// Healthy→Suspected and Suspected→Failed transition rules.
func (d *Detector) RecordFailure(id types.NodeID, kind FailureType, now time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p := d.peer(id)
	if p.status == Offline {
		return
	}

	p.consecutiveFails++
	p.history = append(p.history, failureEvent{at: now, kind: kind})
	if len(p.history) > historyLimit {
		p.history = p.history[len(p.history)-historyLimit:]
	}

	switch p.status {
	case Healthy:
		if p.consecutiveFails >= ConsecutiveFailuresForSuspicion || (!p.lastSeen.IsZero() && now.Sub(p.lastSeen) > FailureThreshold) {
			p.status = Suspected
			p.suspectedSince = now
		}
	case Suspected:
		if now.Sub(p.suspectedSince) > FailureThreshold {
			p.status = Failed
		}
	}
}

// SetOffline marks id Offline by explicit operator intent; only an
// operator action (never the detector itself) can do this or undo it.
func (d *Detector) SetOffline(id types.NodeID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.peer(id).status = Offline
}

// SetRecovering marks id Recovering, used by the recovery manager while an
// operation is in flight for it.
func (d *Detector) SetRecovering(id types.NodeID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p := d.peer(id)
	if p.status != Offline {
		p.status = Recovering
	}
}

// StatusOf returns id's current status.
func (d *Detector) StatusOf(id types.NodeID) Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.peer(id).status
}

// Failed returns every peer currently in Failed status, the recovery
// manager's scan list.
func (d *Detector) Failed() []types.NodeID {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []types.NodeID
	for id, p := range d.peers {
		if p.status == Failed {
			out = append(out, id)
		}
	}
	return out
}
