package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/saorsa-labs/communitas-core/internal/cache"
	"github.com/saorsa-labs/communitas-core/internal/content"
	"github.com/saorsa-labs/communitas-core/internal/erasure"
	"github.com/saorsa-labs/communitas-core/internal/kademlia"
	"github.com/saorsa-labs/communitas-core/internal/membership"
	"github.com/saorsa-labs/communitas-core/internal/pqc"
	"github.com/saorsa-labs/communitas-core/internal/types"
)

// DefaultCacheTTL is the cache entry lifetime for store/retrieve results.
const DefaultCacheTTL = 10 * time.Minute

// DefaultCacheCapacity bounds the engine's content cache.
const DefaultCacheCapacity = 10000

// namespaceRotationAge is how long after its last_rotated_at a namespace
// is reported as rotated by Maintenance (spec §4.3).
const namespaceRotationAge = 90 * 24 * time.Hour

// publicTTL is the DHT TTL used for PublicMarkdown content: the policy is
// convergent and world-readable, so entries are kept effectively
// permanent rather than expiring like a normal DHT record.
const publicTTL = 365 * 24 * time.Hour

// groupShards is an engine-local stand-in for "distribute shards to group
// members": it simulates per-member shard delivery over the overlay by
// keeping each group's shards in memory, keyed the same way placement.go
// would route them. A production deployment wires this through the
// Kademlia store/find-value RPCs against each placement's primary holder;
// the engine here owns that fan-out boundary so policy logic stays
// testable without a live transport.
type groupShards struct {
	mu     sync.RWMutex
	shards map[types.ContentID][]erasure.Shard
}

func newGroupShards() *groupShards {
	return &groupShards{shards: make(map[types.ContentID][]erasure.Shard)}
}

// Engine is the policy-driven storage engine from spec §4.3: it validates,
// addresses, encrypts, places, and caches content according to its Policy,
// and reverses the pipeline on retrieve.
type Engine struct {
	crypto *pqc.Manager
	dht    *kademlia.Kademlia
	cache  *cache.Cache

	mu          sync.Mutex
	localStore  map[types.StorageAddress][]byte
	metaIndex   map[types.StorageAddress]types.StorageMetadata
	groups      map[string]*membership.GroupState
	groupData   *groupShards
	namespaces  map[string]time.Time // namespace -> last_rotated_at

	dataDir string
	wal     *ledgerWAL

	ops *operationTracker

	statsMu            sync.Mutex
	storesTotal        uint64
	retrievesTotal     uint64
	deletesTotal       uint64
	bytesStoredTotal   int64
	policyDistribution map[string]uint64
}

// NewEngine builds a storage engine backed by crypto (the PQC module) and
// dht (the Kademlia core; may be nil for a node that only ever uses
// PrivateMax).
func NewEngine(crypto *pqc.Manager, dht *kademlia.Kademlia) *Engine {
	return &Engine{
		crypto:             crypto,
		dht:                dht,
		cache:              cache.New(DefaultCacheCapacity, DefaultCacheTTL),
		localStore:         make(map[types.StorageAddress][]byte),
		metaIndex:          make(map[types.StorageAddress]types.StorageMetadata),
		groups:             make(map[string]*membership.GroupState),
		groupData:          newGroupShards(),
		namespaces:         make(map[string]time.Time),
		ops:                newOperationTracker(),
		policyDistribution: make(map[string]uint64),
	}
}

// OpenEngine builds a storage engine the same way NewEngine does, but
// backs its PrivateMax content with a write-ahead log and periodic
// snapshot under dataDir so it survives a process restart. Every other
// policy's durability already comes from the DHT or group erasure shards;
// PrivateMax content lives only on this node, so it is the one map that
// needs its own crash recovery.
func OpenEngine(crypto *pqc.Manager, dht *kademlia.Kademlia, dataDir string) (*Engine, error) {
	e := NewEngine(crypto, dht)

	records, wal, err := openLedger(dataDir)
	if err != nil {
		return nil, err
	}
	for addr, rec := range records {
		e.localStore[addr] = rec.Blob
		e.metaIndex[addr] = rec.Meta
	}
	e.dataDir = dataDir
	e.wal = wal
	return e, nil
}

// Snapshot flushes the current PrivateMax address set to snapshot.json and
// truncates the WAL, matching the teacher's snapshot-then-truncate
// invariant: recovery only ever needs to replay entries newer than the
// snapshot, not the whole history. A no-op when the engine was built
// without OpenEngine.
func (e *Engine) Snapshot() error {
	if e.wal == nil {
		return nil
	}
	e.mu.Lock()
	records := make(map[types.StorageAddress]ledgerRecord, len(e.localStore))
	for addr, blob := range e.localStore {
		records[addr] = ledgerRecord{Blob: blob, Meta: e.metaIndex[addr]}
	}
	e.mu.Unlock()

	if err := writeSnapshot(e.dataDir, records); err != nil {
		return err
	}
	return e.wal.truncate()
}

// Close releases the engine's WAL file handle. Safe to call on an
// in-memory-only engine.
func (e *Engine) Close() error {
	if e.wal == nil {
		return nil
	}
	return e.wal.close()
}

// RegisterGroup seeds the engine with a group's membership, required
// before any GroupScoped store targeting that group id.
func (e *Engine) RegisterGroup(groupID string, members []string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.groups[groupID] = membership.NewGroupState(groupID, members)
}

// RecordGroupMemberOutcome feeds an observed shard delivery outcome for
// one group member into its reliability record, which future placements
// for that group read back via PlaceShards' parity-shard bias. A no-op
// for an unregistered group.
func (e *Engine) RecordGroupMemberOutcome(groupID, memberID string, success bool, rttMS float64, now time.Time) {
	e.mu.Lock()
	group, ok := e.groups[groupID]
	e.mu.Unlock()
	if !ok {
		return
	}
	group.RecordMemberOutcome(memberID, success, rttMS, now)
}

// Store implements the store pipeline from spec §4.3.
func (e *Engine) Store(ctx context.Context, req StorageRequest) (StorageResponse, error) {
	start := time.Now()
	end := e.ops.begin("store", req.UserID)
	defer end()

	if int64(len(req.Content)) > req.Policy.MaxContentBytes() {
		return StorageResponse{}, types.NewError(types.KindQuotaExceeded, "content exceeds policy size limit", nil)
	}

	cid := content.Address(req.Content)
	chunks := content.Chunk(req.Content)

	ec, err := e.crypto.Encrypt(req.Content, req.Policy, req.UserID)
	if err != nil {
		return StorageResponse{}, err
	}
	address := ec.ContentAddress

	e.mu.Lock()
	_, dedupHit := e.metaIndex[address]
	e.mu.Unlock()

	meta := req.Metadata
	meta.Size = int64(len(req.Content))
	meta.Checksum = cid.String()
	if meta.ContentType == "" {
		meta.ContentType = req.ContentType
	}
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = time.Now()
	}

	location, err := e.place(ctx, address, ec, meta, req)
	if err != nil {
		return StorageResponse{}, err
	}

	e.mu.Lock()
	e.metaIndex[address] = meta
	e.mu.Unlock()

	cacheKey := address.String()
	e.cache.Put(cacheKey, req.Content)

	e.statsMu.Lock()
	e.storesTotal++
	// A dedup hit (convergent re-store of content already at this address,
	// e.g. a repeat PublicMarkdown store) does not add any new unique
	// bytes to the corpus (spec §8 scenario B).
	if !dedupHit {
		e.bytesStoredTotal += meta.Size
	}
	e.policyDistribution[req.Policy.Kind.String()]++
	e.statsMu.Unlock()

	// The full envelope on the wire is the ML-KEM ciphertext, the AEAD
	// nonce, and the sealed AEAD ciphertext together, not just the AEAD
	// portion (spec §8 scenario A).
	encryptedSize := int64(len(ec.MLKemCiphertext) + len(ec.AEADNonce) + len(ec.AEADCiphertext))

	return StorageResponse{
		Address:         address,
		ChunksStored:    len(chunks),
		TotalSize:       meta.Size,
		EncryptedSize:   encryptedSize,
		OperationTimeMS: elapsedMS(start),
		Location:        location,
	}, nil
}

// place routes encrypted content per policy (spec §4.3 step 4).
func (e *Engine) place(ctx context.Context, address types.StorageAddress, ec types.EncryptedContent, meta types.StorageMetadata, req StorageRequest) (Location, error) {
	switch req.Policy.Kind {
	case types.PolicyPrivateMax:
		blob := encodeEnvelope(ec)
		if e.wal != nil {
			entry := ledgerEntry{Op: ledgerOpPut, Key: address, Record: ledgerRecord{Blob: blob, Meta: meta}}
			if err := e.wal.append(entry); err != nil {
				return Location{}, fmt.Errorf("wal append: %w", err)
			}
		}
		e.mu.Lock()
		e.localStore[address] = blob
		e.mu.Unlock()
		return Location{Kind: LocationLocal}, nil

	case types.PolicyPrivateScoped:
		if e.dht == nil {
			return Location{}, types.NewError(types.KindConfigError, "no dht core configured", nil)
		}
		key := dhtKey(req.Policy.Namespace, address.ContentID)
		if err := e.dht.Store(ctx, key, encodeEnvelope(ec), 24*time.Hour); err != nil {
			return Location{}, err
		}
		e.touchNamespace(req.Policy.Namespace)
		return Location{Kind: LocationDht, Replicas: kademlia.K/2 + 1}, nil

	case types.PolicyGroupScoped:
		return e.placeGroupScoped(req.Policy.GroupID, address, ec)

	case types.PolicyPublicMarkdown:
		if e.dht == nil {
			return Location{}, types.NewError(types.KindConfigError, "no dht core configured", nil)
		}
		key := dhtKey("public", address.ContentID)
		if err := e.dht.Store(ctx, key, encodeEnvelope(ec), publicTTL); err != nil {
			return Location{}, err
		}
		return Location{Kind: LocationPublic}, nil

	default:
		return Location{}, types.NewError(types.KindConfigError, "unknown policy kind", nil)
	}
}

func (e *Engine) placeGroupScoped(groupID string, address types.StorageAddress, ec types.EncryptedContent) (Location, error) {
	e.mu.Lock()
	group, ok := e.groups[groupID]
	e.mu.Unlock()
	if !ok {
		return Location{}, types.NewError(types.KindConfigError, "unknown group", nil)
	}

	payload := encodeEnvelope(ec)
	shards, err := erasure.Encode(payload, group.Config, groupID, address.ContentID)
	if err != nil {
		return Location{}, err
	}

	e.groupData.mu.Lock()
	e.groupData.shards[address.ContentID] = shards
	e.groupData.mu.Unlock()

	placements := membership.PlaceShards(address.ContentID.String(), group.Config, group.Ring, group.Reliability)
	members := make(map[string]bool, len(placements))
	for _, p := range placements {
		members[p.Primary] = true
	}
	memberList := make([]string, 0, len(members))
	for m := range members {
		memberList = append(memberList, m)
	}

	return Location{Kind: LocationGroup, Members: memberList}, nil
}

// Retrieve implements the retrieve pipeline from spec §4.3.
func (e *Engine) Retrieve(ctx context.Context, req RetrievalRequest) (RetrievalResponse, error) {
	start := time.Now()
	end := e.ops.begin("retrieve", req.UserID)
	defer end()

	cacheKey := req.Address.String()
	if v, ok := e.cache.Get(cacheKey); ok {
		e.bumpRetrieves()
		meta, _ := e.metaFor(req.Address)
		return RetrievalResponse{Content: v, Metadata: meta, Source: Source{Kind: SourceCache}, OperationTimeMS: elapsedMS(start)}, nil
	}

	cleartext, source, err := e.fetch(ctx, req)
	if err != nil {
		return RetrievalResponse{}, err
	}

	if content.Address(cleartext) != req.Address.ContentID {
		return RetrievalResponse{}, types.NewError(types.KindIntegrityViolation, "retrieved content hash mismatch", nil)
	}

	e.cache.Put(cacheKey, cleartext)
	e.bumpRetrieves()

	meta, _ := e.metaFor(req.Address)
	return RetrievalResponse{Content: cleartext, Metadata: meta, Source: source, OperationTimeMS: elapsedMS(start)}, nil
}

func (e *Engine) fetch(ctx context.Context, req RetrievalRequest) ([]byte, Source, error) {
	switch req.Address.Policy.Kind {
	case types.PolicyPrivateMax:
		e.mu.Lock()
		raw, ok := e.localStore[req.Address]
		e.mu.Unlock()
		if !ok {
			return nil, Source{}, types.NewError(types.KindNotFound, "address not found locally", nil)
		}
		ec, err := decodeEnvelope(raw, req.Address)
		if err != nil {
			return nil, Source{}, err
		}
		cleartext, err := e.crypto.Decrypt(ec, req.Address.Policy, req.UserID)
		if err != nil {
			return nil, Source{}, err
		}
		return cleartext, Source{Kind: SourceLocal}, nil

	case types.PolicyPrivateScoped:
		if e.dht == nil {
			return nil, Source{}, types.NewError(types.KindConfigError, "no dht core configured", nil)
		}
		key := dhtKey(req.Namespace, req.Address.ContentID)
		raw, err := e.dht.FindValue(ctx, key)
		if err != nil {
			return nil, Source{}, err
		}
		ec, err := decodeEnvelope(raw, req.Address)
		if err != nil {
			return nil, Source{}, err
		}
		cleartext, err := e.crypto.Decrypt(ec, req.Address.Policy, req.UserID)
		if err != nil {
			return nil, Source{}, err
		}
		return cleartext, Source{Kind: SourceDht}, nil

	case types.PolicyGroupScoped:
		return e.fetchGroupScoped(req)

	case types.PolicyPublicMarkdown:
		if e.dht == nil {
			return nil, Source{}, types.NewError(types.KindConfigError, "no dht core configured", nil)
		}
		key := dhtKey("public", req.Address.ContentID)
		raw, err := e.dht.FindValue(ctx, key)
		if err != nil {
			return nil, Source{}, err
		}
		ec, err := decodeEnvelope(raw, req.Address)
		if err != nil {
			return nil, Source{}, err
		}
		cleartext, err := e.crypto.Decrypt(ec, req.Address.Policy, req.UserID)
		if err != nil {
			return nil, Source{}, err
		}
		return cleartext, Source{Kind: SourceDht}, nil

	default:
		return nil, Source{}, types.NewError(types.KindConfigError, "unknown policy kind", nil)
	}
}

func (e *Engine) fetchGroupScoped(req RetrievalRequest) ([]byte, Source, error) {
	e.mu.Lock()
	group, ok := e.groups[req.Address.Policy.GroupID]
	e.mu.Unlock()
	if !ok {
		return nil, Source{}, types.NewError(types.KindConfigError, "unknown group", nil)
	}

	e.groupData.mu.RLock()
	shards, ok := e.groupData.shards[req.Address.ContentID]
	e.groupData.mu.RUnlock()
	if !ok {
		return nil, Source{}, types.NewError(types.KindNotFound, "no shards found for address", nil)
	}

	// Prefer the current generation's config; during Rebalancing, shards
	// written under the prior generation are still legitimate (spec §4.5:
	// "existing shards remain readable under old_config") and must be
	// tried too before giving up.
	configs := []erasure.Config{group.Config}
	if group.Phase == membership.PhaseRebalancing {
		configs = append(configs, group.OldConfig)
	}

	var payload []byte
	var decodeErr error
	var used erasure.Config
	for _, cfg := range configs {
		payload, decodeErr = erasure.Decode(shards, cfg)
		if decodeErr == nil {
			used = cfg
			break
		}
	}
	if decodeErr != nil {
		return nil, Source{}, decodeErr
	}

	ec, err := decodeEnvelope(payload, req.Address)
	if err != nil {
		return nil, Source{}, err
	}
	cleartext, err := e.crypto.Decrypt(ec, req.Address.Policy, req.UserID)
	if err != nil {
		return nil, Source{}, err
	}
	return cleartext, Source{Kind: SourceGroup, FromChunks: used.K}, nil
}

// Delete implements the delete operation (spec §4.3, §6): it purges the
// cache entry, removes the local PrivateMax copy and the group shards held
// by this engine, and reports whether either existed. It sends no delete
// to the DHT; PrivateScoped and PublicMarkdown copies stay there until
// their TTL expires.
func (e *Engine) Delete(ctx context.Context, address types.StorageAddress, userID string) bool {
	end := e.ops.begin("delete", userID)
	defer end()

	e.cache.Purge(address.String())

	if e.wal != nil {
		_ = e.wal.append(ledgerEntry{Op: ledgerOpDelete, Key: address})
	}

	e.mu.Lock()
	_, hadLocal := e.localStore[address]
	delete(e.localStore, address)
	delete(e.metaIndex, address)
	e.mu.Unlock()

	e.groupData.mu.Lock()
	_, hadGroup := e.groupData.shards[address.ContentID]
	delete(e.groupData.shards, address.ContentID)
	e.groupData.mu.Unlock()

	e.statsMu.Lock()
	e.deletesTotal++
	e.statsMu.Unlock()

	return hadLocal || hadGroup
}

// TransitionPolicy implements spec §4.3's policy transition and §9's
// decision to treat old-address delete failure as at-least-once delivery
// of the new address, reconciled by TTL.
func (e *Engine) TransitionPolicy(ctx context.Context, address types.StorageAddress, newPolicy types.Policy, userID string) (types.StorageAddress, error) {
	retrieved, err := e.Retrieve(ctx, RetrievalRequest{Address: address, UserID: userID, Namespace: address.Policy.Namespace})
	if err != nil {
		return types.StorageAddress{}, err
	}

	resp, err := e.Store(ctx, StorageRequest{
		Content:     retrieved.Content,
		ContentType: retrieved.Metadata.ContentType,
		Policy:      newPolicy,
		Metadata:    retrieved.Metadata,
		UserID:      userID,
	})
	if err != nil {
		return types.StorageAddress{}, err
	}

	if !address.Equal(resp.Address) {
		e.Delete(ctx, address, userID)
	}

	return resp.Address, nil
}

// Stats implements stats() (spec §6).
func (e *Engine) Stats() Stats {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()
	dist := make(map[string]uint64, len(e.policyDistribution))
	for k, v := range e.policyDistribution {
		dist[k] = v
	}
	return Stats{
		StoresTotal:        e.storesTotal,
		RetrievesTotal:     e.retrievesTotal,
		DeletesTotal:       e.deletesTotal,
		BytesStoredTotal:   e.bytesStoredTotal,
		PolicyDistribution: dist,
		CacheHitRatio:      e.cache.HitRatio(),
		ActiveOperations:   e.ops.count(),
	}
}

// Maintenance runs the periodic cache cleanup and namespace rotation
// bookkeeping from spec §4.3. Rotating a namespace resets its
// last_rotated_at to now and reports it; the keys derived for that
// namespace do not change. No peer discovery refresh runs here.
func (e *Engine) Maintenance(now time.Time) (cacheEvicted int, namespacesRotated []string) {
	cacheEvicted = e.cache.CleanExpired()

	e.mu.Lock()
	defer e.mu.Unlock()
	for ns, rotatedAt := range e.namespaces {
		if now.Sub(rotatedAt) > namespaceRotationAge {
			e.namespaces[ns] = now
			namespacesRotated = append(namespacesRotated, ns)
		}
	}
	return cacheEvicted, namespacesRotated
}

func (e *Engine) touchNamespace(ns string) {
	if ns == "" {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.namespaces[ns]; !ok {
		e.namespaces[ns] = time.Now()
	}
}

func (e *Engine) metaFor(address types.StorageAddress) (types.StorageMetadata, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	m, ok := e.metaIndex[address]
	return m, ok
}

func (e *Engine) bumpRetrieves() {
	e.statsMu.Lock()
	e.retrievesTotal++
	e.statsMu.Unlock()
}

func dhtKey(scope string, cid types.ContentID) types.ContentID {
	return content.Address(append([]byte(scope), cid[:]...))
}

