package faulttolerance

import (
	"sync"
	"time"

	"github.com/saorsa-labs/communitas-core/internal/types"
)

// RecoveryKind tags the action a RecoveryOperation attempts (spec §4.6).
type RecoveryKind int

const (
	RecoveryReconnect RecoveryKind = iota
	RecoveryFindAlternatives
	RecoveryRedistributeContent
	RecoveryHealPartition
)

// MaxRecoveryAttempts bounds retries per failed node.
const MaxRecoveryAttempts = 3

// RecoveryAbandonAfter is the configured time limit for a single recovery
// operation. Manager does not enforce it: Recover waits for
// Attempter.Attempt to return, however long that takes.
const RecoveryAbandonAfter = 300 * time.Second

// historyCapacity is how many completed operations the manager retains.
const historyCapacity = 1000

// RecoveryOperation is one attempt to recover a failed node.
type RecoveryOperation struct {
	NodeID    types.NodeID
	Kind      RecoveryKind
	Attempt   int
	StartedAt time.Time
	EndedAt   time.Time
	Succeeded bool
	Abandoned bool
}

// Attempter performs the actual recovery action; production code backs
// this with the peer manager / Kademlia core / storage engine, tests
// supply a fake.
type Attempter interface {
	Attempt(id types.NodeID, kind RecoveryKind) error
}

// Manager launches and tracks RecoveryOperations for failed nodes,
// bounded by MaxRecoveryAttempts (spec §4.6). It puts no time limit on a
// running attempt.
type Manager struct {
	detector  *Detector
	attempter Attempter

	mu       sync.Mutex
	attempts map[types.NodeID]int
	history  []RecoveryOperation
}

// NewManager builds a recovery manager driven by detector's status
// transitions and performing actions through attempter.
func NewManager(detector *Detector, attempter Attempter) *Manager {
	return &Manager{
		detector:  detector,
		attempter: attempter,
		attempts:  make(map[types.NodeID]int),
	}
}

// Recover launches the next recovery attempt for id, escalating through
// Reconnect → FindAlternatives → RedistributeContent as prior attempts
// fail. An attempt past MaxRecoveryAttempts is recorded as Abandoned
// without calling the attempter, so with MaxRecoveryAttempts at 3
// HealPartition is never attempted.
func (m *Manager) Recover(id types.NodeID, now time.Time) RecoveryOperation {
	m.mu.Lock()
	attempt := m.attempts[id] + 1
	m.attempts[id] = attempt
	m.mu.Unlock()

	if attempt > MaxRecoveryAttempts {
		op := RecoveryOperation{NodeID: id, Attempt: attempt, StartedAt: now, EndedAt: now, Abandoned: true}
		m.record(op)
		return op
	}

	m.detector.SetRecovering(id)
	kind := kindForAttempt(attempt)

	op := RecoveryOperation{NodeID: id, Kind: kind, Attempt: attempt, StartedAt: now}
	err := m.attempter.Attempt(id, kind)
	op.EndedAt = now
	op.Succeeded = err == nil

	if op.Succeeded {
		m.detector.RecordSuccess(id, now)
		m.mu.Lock()
		delete(m.attempts, id)
		m.mu.Unlock()
	}

	m.record(op)
	return op
}

func kindForAttempt(attempt int) RecoveryKind {
	switch attempt {
	case 1:
		return RecoveryReconnect
	case 2:
		return RecoveryFindAlternatives
	case 3:
		return RecoveryRedistributeContent
	default:
		return RecoveryHealPartition
	}
}

func (m *Manager) record(op RecoveryOperation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = append(m.history, op)
	if len(m.history) > historyCapacity {
		m.history = m.history[len(m.history)-historyCapacity:]
	}
}

// History returns a copy of the retained recovery operation log.
func (m *Manager) History() []RecoveryOperation {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]RecoveryOperation, len(m.history))
	copy(out, m.history)
	return out
}
