package peermanager

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saorsa-labs/communitas-core/internal/types"
)

func testID(b byte) types.NodeID {
	var id types.NodeID
	id[0] = b
	return id
}

func TestManagerConnectAndRecordSuccess(t *testing.T) {
	m := New(Config{})
	now := time.Now()
	id := testID(1)

	require.NoError(t, m.Connect(id, "127.0.0.1:9000", now))
	m.RecordSuccess(id, 20*time.Millisecond, now)

	peer, ok := m.Peer(id)
	require.True(t, ok)
	assert.Equal(t, types.PeerConnected, peer.Status)
	assert.Equal(t, uint64(1), peer.SuccessCount)
}

func TestManagerDemotesToUnreachableBelowThreshold(t *testing.T) {
	m := New(Config{MinSamples: 10, MinReliability: 0.5})
	now := time.Now()
	id := testID(2)
	require.NoError(t, m.Connect(id, "ep", now))

	for i := 0; i < 2; i++ {
		m.RecordSuccess(id, time.Millisecond, now)
	}
	for i := 0; i < 8; i++ {
		m.RecordFailure(id, now)
	}

	peer, ok := m.Peer(id)
	require.True(t, ok)
	assert.Equal(t, types.PeerUnreachable, peer.Status)
}

func TestManagerBanIsTerminalUntilReset(t *testing.T) {
	m := New(Config{})
	now := time.Now()
	id := testID(3)
	require.NoError(t, m.Connect(id, "ep", now))

	m.Ban(id, "policy violation")
	assert.True(t, m.IsBanned(id))

	err := m.Connect(id, "ep", now)
	require.Error(t, err)
	kind, ok := types.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, types.KindAccessDenied, kind)

	m.Reset(id)
	assert.False(t, m.IsBanned(id))
	require.NoError(t, m.Connect(id, "ep", now))
}

func TestManagerRateLimiting(t *testing.T) {
	m := New(Config{RateLimitRequests: 2, RateLimitWindow: time.Minute})
	now := time.Now()
	id := testID(4)
	require.NoError(t, m.Connect(id, "ep", now))

	assert.True(t, m.AllowRequest(id, now))
	assert.True(t, m.AllowRequest(id, now))
	assert.False(t, m.AllowRequest(id, now), "third request within window should be rate-limited")

	later := now.Add(2 * time.Minute)
	assert.True(t, m.AllowRequest(id, later), "window should have slid past the earlier requests")
}

func TestConnPoolRefusesNewPeerAtCapacity(t *testing.T) {
	m := New(Config{MaxConnections: 1})
	now := time.Now()

	require.NoError(t, m.Connect(testID(10), "a", now))
	err := m.Connect(testID(11), "b", now)
	require.Error(t, err)
	kind, ok := types.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, types.KindUnreachable, kind)
}
