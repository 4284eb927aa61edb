package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saorsa-labs/communitas-core/internal/kademlia"
	"github.com/saorsa-labs/communitas-core/internal/peermanager"
	"github.com/saorsa-labs/communitas-core/internal/pqc"
	"github.com/saorsa-labs/communitas-core/internal/types"
)

// noopRPC never has peers to talk to in these tests (each engine's routing
// table is empty), so its methods are never exercised; it only exists to
// satisfy kademlia.New's RPC parameter.
type noopRPC struct{}

func (noopRPC) Ping(ctx context.Context, c kademlia.Contact) error { return nil }
func (noopRPC) FindNode(ctx context.Context, c kademlia.Contact, target types.NodeID) ([]kademlia.Contact, error) {
	return nil, nil
}
func (noopRPC) FindValue(ctx context.Context, c kademlia.Contact, key types.ContentID) ([]byte, []kademlia.Contact, bool, error) {
	return nil, nil, false, nil
}
func (noopRPC) Store(ctx context.Context, c kademlia.Contact, key types.ContentID, value []byte, ttl time.Duration) (bool, error) {
	return true, nil
}

func testEngine(t *testing.T) *Engine {
	t.Helper()
	var self types.NodeID
	self[0] = 0x01
	peers := peermanager.New(peermanager.Config{})
	dht := kademlia.New(self, peers, noopRPC{})
	crypto := pqc.NewManager([]byte("engine-test-master-key"))
	return NewEngine(crypto, dht)
}

func TestEnginePrivateScopedRoundTrip(t *testing.T) {
	e := testEngine(t)
	policy := types.PrivateScoped("alice-notes")
	content := []byte("scenario A: private scoped round trip")

	storeResp, err := e.Store(context.Background(), StorageRequest{
		Content: content,
		Policy:  policy,
		UserID:  "alice",
	})
	require.NoError(t, err)
	assert.Equal(t, LocationDht, storeResp.Location.Kind)

	e.cache.Purge(storeResp.Address.String())

	getResp, err := e.Retrieve(context.Background(), RetrievalRequest{
		Address:   storeResp.Address,
		UserID:    "alice",
		Namespace: "alice-notes",
	})
	require.NoError(t, err)
	assert.Equal(t, content, getResp.Content)
	assert.Equal(t, SourceDht, getResp.Source.Kind)
}

func TestEnginePublicMarkdownDedupes(t *testing.T) {
	e1 := testEngine(t)
	e2 := testEngine(t)
	content := []byte("# shared note")
	policy := types.PublicMarkdown()

	r1, err := e1.Store(context.Background(), StorageRequest{Content: content, Policy: policy, UserID: "u1"})
	require.NoError(t, err)
	r2, err := e2.Store(context.Background(), StorageRequest{Content: content, Policy: policy, UserID: "u2"})
	require.NoError(t, err)

	assert.Equal(t, r1.Address, r2.Address, "PublicMarkdown addresses must converge for identical content")
}

func TestEnginePublicMarkdownDedupeDoesNotDoubleCountBytes(t *testing.T) {
	e := testEngine(t)
	content := []byte("# counted once")
	policy := types.PublicMarkdown()

	_, err := e.Store(context.Background(), StorageRequest{Content: content, Policy: policy, UserID: "u1"})
	require.NoError(t, err)
	afterFirst := e.Stats().BytesStoredTotal

	_, err = e.Store(context.Background(), StorageRequest{Content: content, Policy: policy, UserID: "u2"})
	require.NoError(t, err)
	afterSecond := e.Stats().BytesStoredTotal

	assert.Equal(t, afterFirst, afterSecond, "repeat convergent store must not grow the unique stored-bytes counter")
}

func TestEngineEncryptedSizeCoversFullEnvelope(t *testing.T) {
	e := testEngine(t)
	content := []byte("twenty-byte-input!!!")
	require.Len(t, content, 20)

	resp, err := e.Store(context.Background(), StorageRequest{
		Content: content,
		Policy:  types.PrivateScoped("alice-notes"),
		UserID:  "alice",
	})
	require.NoError(t, err)

	assert.GreaterOrEqual(t, resp.EncryptedSize, int64(len(content))+1088+24+16)
}

func TestEngineGroupScopedRoundTrip(t *testing.T) {
	e := testEngine(t)
	e.RegisterGroup("group-1", []string{"m1", "m2", "m3", "m4", "m5"})

	content := []byte("scenario C: group scoped content, shared across a small group")
	resp, err := e.Store(context.Background(), StorageRequest{
		Content: content,
		Policy:  types.GroupScoped("group-1"),
		UserID:  "alice",
	})
	require.NoError(t, err)
	assert.Equal(t, LocationGroup, resp.Location.Kind)
	assert.NotEmpty(t, resp.Location.Members)

	e.cache.Purge(resp.Address.String())

	getResp, err := e.Retrieve(context.Background(), RetrievalRequest{
		Address: resp.Address,
		UserID:  "alice",
	})
	require.NoError(t, err)
	assert.Equal(t, content, getResp.Content)
	assert.Equal(t, SourceGroup, getResp.Source.Kind)
}

func TestEngineRetrieveFromCacheHit(t *testing.T) {
	e := testEngine(t)
	content := []byte("cache me")
	resp, err := e.Store(context.Background(), StorageRequest{
		Content: content,
		Policy:  types.PrivateMax(),
		UserID:  "alice",
	})
	require.NoError(t, err)

	getResp, err := e.Retrieve(context.Background(), RetrievalRequest{Address: resp.Address, UserID: "alice"})
	require.NoError(t, err)
	assert.Equal(t, SourceCache, getResp.Source.Kind)
}

func TestEngineDeleteRemovesLocalContent(t *testing.T) {
	e := testEngine(t)
	resp, err := e.Store(context.Background(), StorageRequest{
		Content: []byte("delete me"),
		Policy:  types.PrivateMax(),
		UserID:  "alice",
	})
	require.NoError(t, err)

	ok := e.Delete(context.Background(), resp.Address, "alice")
	assert.True(t, ok)

	e.cache.Purge(resp.Address.String())
	_, err = e.Retrieve(context.Background(), RetrievalRequest{Address: resp.Address, UserID: "alice"})
	require.Error(t, err)
	kind, _ := types.KindOf(err)
	assert.Equal(t, types.KindNotFound, kind)
}

func TestEngineStoreRejectsOversizedPrivateMaxContent(t *testing.T) {
	e := testEngine(t)
	oversized := make([]byte, types.PrivateMax().MaxContentBytes()+1)

	_, err := e.Store(context.Background(), StorageRequest{
		Content: oversized,
		Policy:  types.PrivateMax(),
		UserID:  "alice",
	})
	require.Error(t, err)
	kind, _ := types.KindOf(err)
	assert.Equal(t, types.KindQuotaExceeded, kind)
}

func TestEngineTransitionPolicyMovesContent(t *testing.T) {
	e := testEngine(t)
	resp, err := e.Store(context.Background(), StorageRequest{
		Content: []byte("transition me"),
		Policy:  types.PrivateMax(),
		UserID:  "alice",
	})
	require.NoError(t, err)

	newAddr, err := e.TransitionPolicy(context.Background(), resp.Address, types.PublicMarkdown(), "alice")
	require.NoError(t, err)
	assert.NotEqual(t, resp.Address, newAddr)

	e.cache.Purge(resp.Address.String())
	_, err = e.Retrieve(context.Background(), RetrievalRequest{Address: resp.Address, UserID: "alice"})
	require.Error(t, err)
}

func TestOpenEngineSurvivesWalReplayWithoutSnapshot(t *testing.T) {
	dir := t.TempDir()
	var self types.NodeID
	self[0] = 0x02
	peers := peermanager.New(peermanager.Config{})
	dht := kademlia.New(self, peers, noopRPC{})
	crypto := pqc.NewManager([]byte("engine-persist-test-master-key"))

	e, err := OpenEngine(crypto, dht, dir)
	require.NoError(t, err)

	resp, err := e.Store(context.Background(), StorageRequest{
		Content: []byte("durable content"),
		Policy:  types.PrivateMax(),
		UserID:  "alice",
	})
	require.NoError(t, err)
	require.NoError(t, e.Close())

	// Reopen without ever calling Snapshot: recovery must come entirely
	// from replaying the WAL written during the first open.
	reopened, err := OpenEngine(crypto, dht, dir)
	require.NoError(t, err)
	defer reopened.Close()

	reopened.cache.Purge(resp.Address.String())
	getResp, err := reopened.Retrieve(context.Background(), RetrievalRequest{Address: resp.Address, UserID: "alice"})
	require.NoError(t, err)
	assert.Equal(t, []byte("durable content"), getResp.Content)
}

func TestOpenEngineSurvivesSnapshotAndWalTruncate(t *testing.T) {
	dir := t.TempDir()
	var self types.NodeID
	self[0] = 0x03
	peers := peermanager.New(peermanager.Config{})
	dht := kademlia.New(self, peers, noopRPC{})
	crypto := pqc.NewManager([]byte("engine-snapshot-test-master-key"))

	e, err := OpenEngine(crypto, dht, dir)
	require.NoError(t, err)

	resp, err := e.Store(context.Background(), StorageRequest{
		Content: []byte("snapshotted content"),
		Policy:  types.PrivateMax(),
		UserID:  "bob",
	})
	require.NoError(t, err)
	require.NoError(t, e.Snapshot())
	require.NoError(t, e.Close())

	reopened, err := OpenEngine(crypto, dht, dir)
	require.NoError(t, err)
	defer reopened.Close()

	reopened.cache.Purge(resp.Address.String())
	getResp, err := reopened.Retrieve(context.Background(), RetrievalRequest{Address: resp.Address, UserID: "bob"})
	require.NoError(t, err)
	assert.Equal(t, []byte("snapshotted content"), getResp.Content)
}

func TestEngineMaintenanceKeepsUnexpiredCache(t *testing.T) {
	e := testEngine(t)
	_, err := e.Store(context.Background(), StorageRequest{
		Content: []byte("short lived"),
		Policy:  types.PrivateMax(),
		UserID:  "alice",
	})
	require.NoError(t, err)

	evicted, rotated := e.Maintenance(time.Now())
	assert.Equal(t, 0, evicted) // nothing expired yet; TTL has not elapsed
	assert.Empty(t, rotated)
}
