package faulttolerance

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saorsa-labs/communitas-core/internal/types"
)

func testPeerID(b byte) types.NodeID {
	var id types.NodeID
	id[0] = b
	return id
}

func TestDetectorDoesNotFailOnSingleEvent(t *testing.T) {
	d := NewDetector()
	id := testPeerID(1)
	now := time.Now()

	d.RecordFailure(id, FailureTimeout, now)
	assert.Equal(t, Healthy, d.StatusOf(id))
}

func TestDetectorTransitionsOnConsecutiveFailures(t *testing.T) {
	d := NewDetector()
	id := testPeerID(2)
	now := time.Now()

	for i := 0; i < ConsecutiveFailuresForSuspicion; i++ {
		d.RecordFailure(id, FailureTimeout, now)
	}
	assert.Equal(t, Suspected, d.StatusOf(id))

	d.RecordFailure(id, FailureTimeout, now.Add(FailureThreshold+time.Second))
	assert.Equal(t, Failed, d.StatusOf(id))
}

func TestDetectorRecoversToHealthyOnSuccess(t *testing.T) {
	d := NewDetector()
	id := testPeerID(3)
	now := time.Now()

	for i := 0; i < ConsecutiveFailuresForSuspicion; i++ {
		d.RecordFailure(id, FailureTimeout, now)
	}
	require.Equal(t, Suspected, d.StatusOf(id))

	d.RecordSuccess(id, now)
	assert.Equal(t, Healthy, d.StatusOf(id))
}

type fakeAttempter struct {
	failUntil int
	calls     int
}

func (f *fakeAttempter) Attempt(id types.NodeID, kind RecoveryKind) error {
	f.calls++
	if f.calls <= f.failUntil {
		return errors.New("still failing")
	}
	return nil
}

func TestRecoveryEscalatesThenSucceeds(t *testing.T) {
	d := NewDetector()
	attempter := &fakeAttempter{failUntil: 2}
	mgr := NewManager(d, attempter)
	id := testPeerID(4)
	now := time.Now()

	op1 := mgr.Recover(id, now)
	assert.Equal(t, RecoveryReconnect, op1.Kind)
	assert.False(t, op1.Succeeded)

	op2 := mgr.Recover(id, now)
	assert.Equal(t, RecoveryFindAlternatives, op2.Kind)
	assert.False(t, op2.Succeeded)

	op3 := mgr.Recover(id, now)
	assert.Equal(t, RecoveryRedistributeContent, op3.Kind)
	assert.True(t, op3.Succeeded)

	assert.Len(t, mgr.History(), 3)
}

func TestRecoveryAbandonedAfterMaxAttempts(t *testing.T) {
	d := NewDetector()
	attempter := &fakeAttempter{failUntil: 100}
	mgr := NewManager(d, attempter)
	id := testPeerID(5)
	now := time.Now()

	for i := 0; i < MaxRecoveryAttempts; i++ {
		mgr.Recover(id, now)
	}
	final := mgr.Recover(id, now)
	assert.True(t, final.Abandoned)
}

func TestReplicationManagerThresholds(t *testing.T) {
	r := NewReplicationManager()
	id := types.ContentID{1}

	r.Observe(id, 2)
	status := r.Status(id)
	assert.True(t, status.UnderReplicated)
	assert.False(t, status.OverReplicated)

	r.Observe(id, 20)
	status = r.Status(id)
	assert.True(t, status.OverReplicated)
}
