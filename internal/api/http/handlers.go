package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/slateos/backend/internal/domain/registry"
	"github.com/slateos/backend/internal/domain/scope"
	"github.com/slateos/backend/internal/shared/clock"
	"github.com/slateos/backend/internal/shared/id"
	"github.com/slateos/backend/internal/shared/types"
)

// Handlers contains all HTTP handlers
type Handlers struct {
	registry    *registry.Manager
	deactivator *scope.Deactivator
	clock       clock.Clock
}

// NewHandlers creates a new handler set
func NewHandlers(reg *registry.Manager, deactivator *scope.Deactivator, clk clock.Clock) *Handlers {
	return &Handlers{
		registry:    reg,
		deactivator: deactivator,
		clock:       clk,
	}
}

// Root handles health check
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "Workspace Runtime Manager",
		"version": "0.3.0",
	})
}

// Health handles detailed health check
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"registry": h.registry.Stats(),
	})
}

// ListContexts lists all hot runtimes
func (h *Handlers) ListContexts(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"contexts": h.registry.List(),
		"stats":    h.registry.Stats(),
	})
}

type openContextRequest struct {
	ScopeID string `json:"scope_id" binding:"required"`
	Visible bool   `json:"visible"`
}

// CreateContext mints a fresh context id and admits its runtime. Used when
// the caller has no id of its own (new workspace, not a reopen).
func (h *Handlers) CreateContext(c *gin.Context) {
	var req openContextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	contextID := id.NewContextID().String()
	rt, err := h.registry.GetOrCreate(c.Request.Context(), contextID, req.ScopeID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, registry.ErrCapacityExhausted) {
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	if req.Visible {
		if err := h.registry.SetVisible(contextID); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}

	c.JSON(http.StatusCreated, gin.H{"context": rt.Summary()})
}

// OpenContext returns the hot runtime for a context, hydrating it from the
// persisted snapshot when cold
func (h *Handlers) OpenContext(c *gin.Context) {
	contextID := c.Param("id")

	var req openContextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rt, err := h.registry.GetOrCreate(c.Request.Context(), contextID, req.ScopeID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, registry.ErrCapacityExhausted) {
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	if req.Visible {
		if err := h.registry.SetVisible(contextID); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"context": rt.Summary()})
}

// SetVisible performs a hot switch to the target context
func (h *Handlers) SetVisible(c *gin.Context) {
	contextID := c.Param("id")

	if err := h.registry.SetVisible(contextID); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, registry.ErrUnknownContext) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"context_id": contextID, "visible": true})
}

// EvictContext serializes, persists, and tears down a hidden runtime
func (h *Handlers) EvictContext(c *gin.Context) {
	contextID := c.Param("id")

	snap, persisted, err := h.registry.Evict(contextID)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, registry.ErrUnknownContext):
			status = http.StatusNotFound
		case errors.Is(err, registry.ErrRuntimeVisible), errors.Is(err, registry.ErrRuntimePinned):
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	// persisted=false means an empty capture was rejected and the previous
	// durable snapshot was kept as-is.
	resp := gin.H{"context_id": contextID, "evicted": true, "persisted": persisted}
	if snap != nil {
		resp["revision"] = snap.Revision
		resp["captured_at"] = snap.CapturedAt
	}
	c.JSON(http.StatusOK, resp)
}

// DestroyContext permanently removes a context and its durable snapshot
func (h *Handlers) DestroyContext(c *gin.Context) {
	contextID := c.Param("id")

	if err := h.registry.Destroy(c.Request.Context(), contextID); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, registry.ErrRuntimeVisible) {
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"context_id": contextID, "destroyed": true})
}

type pinRequest struct {
	Pinned bool `json:"pinned"`
}

// PinContext marks or unmarks a context as excluded from eviction
func (h *Handlers) PinContext(c *gin.Context) {
	contextID := c.Param("id")

	var req pinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.registry.SetPinned(contextID, req.Pinned); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"context_id": contextID, "pinned": req.Pinned})
}

type registerComponentRequest struct {
	ID       string                 `json:"id" binding:"required"`
	Type     string                 `json:"type" binding:"required"`
	Position types.Position         `json:"position"`
	Size     types.Size             `json:"size"`
	Metadata map[string]interface{} `json:"metadata"`
	IsActive bool                   `json:"is_active"`
}

// RegisterComponent registers a component on a hot runtime
func (h *Handlers) RegisterComponent(c *gin.Context) {
	rt, ok := h.registry.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": registry.ErrUnknownContext.Error()})
		return
	}

	var req registerComponentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rt.RegisterComponent(types.Component{
		ID:       req.ID,
		Type:     req.Type,
		Position: req.Position,
		Size:     req.Size,
		Metadata: req.Metadata,
		IsActive: req.IsActive,
	})

	c.JSON(http.StatusOK, gin.H{"component_id": req.ID, "registered": true})
}

type updateComponentRequest struct {
	Metadata map[string]interface{} `json:"metadata"`
	IsActive bool                   `json:"is_active"`
}

// UpdateComponent updates a registered component's metadata and activity
func (h *Handlers) UpdateComponent(c *gin.Context) {
	rt, ok := h.registry.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": registry.ErrUnknownContext.Error()})
		return
	}

	var req updateComponentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	componentID := c.Param("cid")
	if !rt.UpdateComponent(componentID, req.Metadata, req.IsActive) {
		c.JSON(http.StatusNotFound, gin.H{"error": "component not registered"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"component_id": componentID, "updated": true})
}

// UnregisterComponent logically removes a component. Distinct from visual
// unmount, which never reaches this subsystem.
func (h *Handlers) UnregisterComponent(c *gin.Context) {
	rt, ok := h.registry.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": registry.ErrUnknownContext.Error()})
		return
	}

	componentID := c.Param("cid")
	removed := rt.UnregisterComponent(componentID)
	c.JSON(http.StatusOK, gin.H{"component_id": componentID, "removed": removed})
}

type registerEntityRequest struct {
	EntityID string `json:"entity_id" binding:"required"`
	Anchor   string `json:"anchor"`
}

// OpenEntity opens an entity in a hot runtime (appends to tab order)
func (h *Handlers) OpenEntity(c *gin.Context) {
	rt, ok := h.registry.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": registry.ErrUnknownContext.Error()})
		return
	}

	var req registerEntityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rt.RegisterEntity(req.EntityID, req.Anchor)
	c.JSON(http.StatusOK, gin.H{"entity_id": req.EntityID, "open": true})
}

// CloseEntity removes an entity from a hot runtime's tab order
func (h *Handlers) CloseEntity(c *gin.Context) {
	rt, ok := h.registry.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": registry.ErrUnknownContext.Error()})
		return
	}

	entityID := c.Param("eid")
	removed := rt.RemoveEntity(entityID)
	c.JSON(http.StatusOK, gin.H{"entity_id": entityID, "removed": removed})
}

type cameraRequest struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Zoom float64 `json:"zoom"`
}

// UpdateCamera updates a hot runtime's viewport state
func (h *Handlers) UpdateCamera(c *gin.Context) {
	rt, ok := h.registry.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": registry.ErrUnknownContext.Error()})
		return
	}

	var req cameraRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rt.SetCamera(types.Camera{X: req.X, Y: req.Y, Zoom: req.Zoom})
	c.JSON(http.StatusOK, gin.H{"updated": true})
}

type claimRequest struct {
	EntityID  string `json:"entity_id" binding:"required"`
	ContextID string `json:"context_id" binding:"required"`
	Timestamp int64  `json:"timestamp"`
}

// ClaimEntity records ownership of an entity for a context. A stale claim
// is not an error: claimed=false tells the caller its write was superseded.
func (h *Handlers) ClaimEntity(c *gin.Context) {
	var req claimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ts := req.Timestamp
	if ts == 0 {
		ts = h.clock.Now()
	}

	claimed := h.registry.Ownership().Claim(req.EntityID, req.ContextID, ts)
	c.JSON(http.StatusOK, gin.H{
		"entity_id":  req.EntityID,
		"context_id": req.ContextID,
		"claimed":    claimed,
	})
}

type releaseRequest struct {
	EntityID  string `json:"entity_id" binding:"required"`
	ContextID string `json:"context_id" binding:"required"`
}

// ReleaseEntity drops ownership if the caller still holds it
func (h *Handlers) ReleaseEntity(c *gin.Context) {
	var req releaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	released := h.registry.Ownership().Release(req.EntityID, req.ContextID)
	c.JSON(http.StatusOK, gin.H{"entity_id": req.EntityID, "released": released})
}

// OwnerOf returns the current owner of an entity, if any
func (h *Handlers) OwnerOf(c *gin.Context) {
	entityID := c.Param("eid")

	owner, ok := h.registry.Ownership().OwnerOf(entityID)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"entity_id": entityID, "owned": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entity_id": entityID, "owned": true, "owner_context_id": owner})
}

// DeactivateScope clears transient state for non-pinned runtimes in a scope
func (h *Handlers) DeactivateScope(c *gin.Context) {
	scopeID := c.Param("id")
	swept := h.deactivator.OnScopeDeactivated(scopeID)
	c.JSON(http.StatusOK, gin.H{"scope_id": scopeID, "swept": swept})
}
