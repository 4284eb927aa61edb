package faulttolerance

import (
	"context"
	"time"
)

// Intervals for the three independent periodic tasks (spec §4.6).
const (
	DetectionInterval   = 30 * time.Second
	RecoveryInterval    = 60 * time.Second
	ReplicationInterval = 120 * time.Second
)

// Loop drives the three self-healing background tasks as independent
// tickers selecting against ctx's cancellation, per spec §5's "tasks +
// channels, no thread-local control flow".
type Loop struct {
	detector    *Detector
	recovery    *Manager
	replication *ReplicationManager

	onRecoveryDue    func(ctx context.Context)
	onReplicationDue func(ctx context.Context)
}

// NewLoop wires the three managers together; onRecoveryDue and
// onReplicationDue are called once per tick and are expected to scan
// detector.Failed() / replication.UnderReplicated() and act.
func NewLoop(detector *Detector, recovery *Manager, replication *ReplicationManager, onRecoveryDue, onReplicationDue func(ctx context.Context)) *Loop {
	return &Loop{
		detector:         detector,
		recovery:         recovery,
		replication:      replication,
		onRecoveryDue:    onRecoveryDue,
		onReplicationDue: onReplicationDue,
	}
}

// Run blocks, driving all three tickers until ctx is canceled. Intended to
// be launched once per node process in its own goroutine.
func (l *Loop) Run(ctx context.Context) {
	detectionTicker := time.NewTicker(DetectionInterval)
	recoveryTicker := time.NewTicker(RecoveryInterval)
	replicationTicker := time.NewTicker(ReplicationInterval)
	defer detectionTicker.Stop()
	defer recoveryTicker.Stop()
	defer replicationTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-detectionTicker.C:
			// Detection is passive bookkeeping driven by RecordSuccess/
			// RecordFailure on the hot path; this tick exists to let
			// callers plug in periodic staleness checks if they need
			// them. Nothing to do by default.
		case <-recoveryTicker.C:
			if l.onRecoveryDue != nil {
				l.onRecoveryDue(ctx)
			}
		case <-replicationTicker.C:
			if l.onReplicationDue != nil {
				l.onReplicationDue(ctx)
			}
		}
	}
}
