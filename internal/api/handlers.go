package api

import (
	"encoding/hex"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/saorsa-labs/communitas-core/internal/peermanager"
	"github.com/saorsa-labs/communitas-core/internal/storage"
	"github.com/saorsa-labs/communitas-core/internal/types"
)

// Handler holds all dependencies injected from main.
type Handler struct {
	engine *storage.Engine
	peers  *peermanager.Manager
	selfID string
}

// NewHandler creates a Handler.
func NewHandler(engine *storage.Engine, peers *peermanager.Manager, selfID string) *Handler {
	return &Handler{engine: engine, peers: peers, selfID: selfID}
}

// Register mounts all routes on r.
func (h *Handler) Register(r *gin.Engine) {
	store := r.Group("/storage")
	store.POST("/:policy", h.Store)
	store.GET("/:address", h.Retrieve)
	store.DELETE("/:address", h.Delete)
	store.POST("/:address/transition", h.TransitionPolicy)
	store.GET("/stats", h.Stats)

	group := r.Group("/group")
	group.POST("/:id/register", h.RegisterGroup)

	peers := r.Group("/peers")
	peers.GET("", h.ListPeers)
	peers.POST("/:id/ban", h.BanPeer)
}

// ─── Storage handlers ────────────────────────────────────────────────────────

type storeBody struct {
	Content     string            `json:"content" binding:"required"`
	ContentType string            `json:"content_type"`
	Namespace   string            `json:"namespace"`
	GroupID     string            `json:"group_id"`
	Author      string            `json:"author"`
	Tags        []string          `json:"tags"`
	Extra       map[string]string `json:"extra"`
	UserID      string            `json:"user_id" binding:"required"`
}

// Store handles POST /storage/:policy where :policy is one of
// private_max, private_scoped, group_scoped, public_markdown.
func (h *Handler) Store(c *gin.Context) {
	var body storeBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	policy, err := policyFromName(c.Param("policy"), body.Namespace, body.GroupID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.engine.Store(c.Request.Context(), storage.StorageRequest{
		Content:     []byte(body.Content),
		ContentType: body.ContentType,
		Policy:      policy,
		UserID:      body.UserID,
		Metadata: types.StorageMetadata{
			Author: body.Author,
			Tags:   body.Tags,
			Extra:  body.Extra,
		},
	})
	if err != nil {
		writeEngineError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"address":           encodeAddress(resp.Address),
		"chunks_stored":     resp.ChunksStored,
		"total_size":        resp.TotalSize,
		"encrypted_size":    resp.EncryptedSize,
		"operation_time_ms": resp.OperationTimeMS,
		"location":          resp.Location.Kind.String(),
	})
}

// Retrieve handles GET /storage/:address?user_id=...&namespace=...
func (h *Handler) Retrieve(c *gin.Context) {
	address, err := decodeAddress(c.Param("address"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.engine.Retrieve(c.Request.Context(), storage.RetrievalRequest{
		Address:   address,
		UserID:    c.Query("user_id"),
		Namespace: c.Query("namespace"),
	})
	if err != nil {
		writeEngineError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"content":           string(resp.Content),
		"content_type":      resp.Metadata.ContentType,
		"size":              resp.Metadata.Size,
		"source":            resp.Source.Kind.String(),
		"operation_time_ms": resp.OperationTimeMS,
	})
}

// Delete handles DELETE /storage/:address?user_id=...
func (h *Handler) Delete(c *gin.Context) {
	address, err := decodeAddress(c.Param("address"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	found := h.engine.Delete(c.Request.Context(), address, c.Query("user_id"))
	c.JSON(http.StatusOK, gin.H{"deleted": found})
}

type transitionBody struct {
	NewPolicy string `json:"new_policy" binding:"required"`
	Namespace string `json:"namespace"`
	GroupID   string `json:"group_id"`
	UserID    string `json:"user_id" binding:"required"`
}

// TransitionPolicy handles POST /storage/:address/transition
func (h *Handler) TransitionPolicy(c *gin.Context) {
	address, err := decodeAddress(c.Param("address"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var body transitionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	newPolicy, err := policyFromName(body.NewPolicy, body.Namespace, body.GroupID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	newAddr, err := h.engine.TransitionPolicy(c.Request.Context(), address, newPolicy, body.UserID)
	if err != nil {
		writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"address": encodeAddress(newAddr)})
}

// Stats handles GET /storage/stats
func (h *Handler) Stats(c *gin.Context) {
	stats := h.engine.Stats()
	c.JSON(http.StatusOK, gin.H{
		"stores_total":        stats.StoresTotal,
		"retrieves_total":     stats.RetrievesTotal,
		"deletes_total":       stats.DeletesTotal,
		"bytes_stored_total":  stats.BytesStoredTotal,
		"policy_distribution": stats.PolicyDistribution,
		"cache_hit_ratio":     stats.CacheHitRatio,
		"active_operations":   stats.ActiveOperations,
	})
}

// ─── Group management ────────────────────────────────────────────────────────

type registerGroupBody struct {
	Members []string `json:"members" binding:"required"`
}

// RegisterGroup handles POST /group/:id/register
func (h *Handler) RegisterGroup(c *gin.Context) {
	var body registerGroupBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.engine.RegisterGroup(c.Param("id"), body.Members)
	c.JSON(http.StatusOK, gin.H{"group": c.Param("id"), "members": len(body.Members)})
}

// ─── Peer management ──────────────────────────────────────────────────────────

// ListPeers handles GET /peers
func (h *Handler) ListPeers(c *gin.Context) {
	entries := h.peers.Peers()
	out := make([]gin.H, len(entries))
	for i, e := range entries {
		out[i] = gin.H{
			"node_id":     e.NodeID.String(),
			"endpoint":    e.Endpoint,
			"status":      e.Status.String(),
			"rtt_ms":      e.RTT.Milliseconds(),
			"reliability": e.Reliability,
		}
	}
	active, hits, misses := h.peers.PoolStats()
	c.JSON(http.StatusOK, gin.H{"peers": out, "pool_active": active, "pool_hits": hits, "pool_misses": misses})
}

// BanPeer handles POST /peers/:id/ban
func (h *Handler) BanPeer(c *gin.Context) {
	var body struct {
		Reason string `json:"reason"`
	}
	_ = c.ShouldBindJSON(&body)

	id, err := nodeIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.peers.Ban(id, body.Reason)
	c.JSON(http.StatusOK, gin.H{"banned": c.Param("id")})
}

// ─── helpers ──────────────────────────────────────────────────────────────────

func policyFromName(name, namespace, groupID string) (types.Policy, error) {
	switch name {
	case "private_max":
		return types.PrivateMax(), nil
	case "private_scoped":
		return types.PrivateScoped(namespace), nil
	case "group_scoped":
		return types.GroupScoped(groupID), nil
	case "public_markdown":
		return types.PublicMarkdown(), nil
	default:
		return types.Policy{}, types.NewError(types.KindConfigError, "unknown policy name "+name, nil)
	}
}

func nodeIDFromHex(s string) (types.NodeID, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return types.NodeID{}, err
	}
	return types.NodeIDFromBytes(raw)
}

func writeEngineError(c *gin.Context, err error) {
	kind, ok := types.KindOf(err)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(statusForKind(kind), gin.H{"error": err.Error(), "kind": kind.String()})
}

func statusForKind(kind types.ErrorKind) int {
	switch kind {
	case types.KindNotFound:
		return http.StatusNotFound
	case types.KindAccessDenied, types.KindAuthFailure:
		return http.StatusForbidden
	case types.KindQuotaExceeded:
		return http.StatusRequestEntityTooLarge
	case types.KindIntegrityViolation:
		return http.StatusConflict
	case types.KindRateLimited:
		return http.StatusTooManyRequests
	case types.KindTimeout:
		return http.StatusGatewayTimeout
	case types.KindUnreachable, types.KindInsufficientReplicas, types.KindPartialResult:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
