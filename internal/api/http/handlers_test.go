package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slateos/backend/internal/domain/eviction"
	"github.com/slateos/backend/internal/domain/ownership"
	"github.com/slateos/backend/internal/domain/registry"
	"github.com/slateos/backend/internal/domain/scope"
	"github.com/slateos/backend/internal/domain/snapshot"
	"github.com/slateos/backend/internal/persistence"
	"github.com/slateos/backend/internal/shared/clock"
	"github.com/slateos/backend/tests/helpers/testutil"
)

func newTestRouter(t *testing.T, capacity int) (*gin.Engine, *testutil.MemoryGateway) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	gateway := testutil.NewMemoryGateway()
	clk := clock.NewManual(int64(time.Second))
	saver := persistence.NewSaver(gateway, 16, nil)
	t.Cleanup(saver.Close)

	capturer := snapshot.NewCapturer(50*time.Millisecond, clk, nil)
	policy := eviction.New(eviction.DefaultWeights(), 30*time.Minute)
	owners := ownership.NewTable(nil)
	manager := registry.NewManager(capacity, policy, gateway, saver, capturer, owners, clk, nil)
	deactivator := scope.NewDeactivator(manager, nil)

	h := NewHandlers(manager, deactivator, clk)

	r := gin.New()
	r.GET("/", h.Root)
	r.GET("/health", h.Health)

	contexts := r.Group("/contexts")
	{
		contexts.GET("", h.ListContexts)
		contexts.POST("", h.CreateContext)
		contexts.POST("/:id/open", h.OpenContext)
		contexts.POST("/:id/visible", h.SetVisible)
		contexts.POST("/:id/evict", h.EvictContext)
		contexts.POST("/:id/pin", h.PinContext)
		contexts.DELETE("/:id", h.DestroyContext)
		contexts.POST("/:id/components", h.RegisterComponent)
		contexts.PUT("/:id/components/:cid", h.UpdateComponent)
		contexts.DELETE("/:id/components/:cid", h.UnregisterComponent)
		contexts.POST("/:id/entities", h.OpenEntity)
		contexts.DELETE("/:id/entities/:eid", h.CloseEntity)
		contexts.PUT("/:id/camera", h.UpdateCamera)
	}

	own := r.Group("/ownership")
	{
		own.POST("/claim", h.ClaimEntity)
		own.POST("/release", h.ReleaseEntity)
		own.GET("/:eid", h.OwnerOf)
	}

	r.POST("/scopes/:id/deactivate", h.DeactivateScope)

	return r, gateway
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp map[string]interface{}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w, resp
}

func openContext(t *testing.T, r *gin.Engine, id string, visible bool) {
	t.Helper()
	w, _ := doJSON(t, r, http.MethodPost, "/contexts/"+id+"/open",
		gin.H{"scope_id": "scope-1", "visible": visible})
	require.Equal(t, http.StatusOK, w.Code)
}

func TestRootAndHealth(t *testing.T) {
	r, _ := newTestRouter(t, 4)

	w, resp := doJSON(t, r, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "online", resp["status"])

	w, resp = doJSON(t, r, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", resp["status"])
}

func TestCreateContextMintsID(t *testing.T) {
	r, _ := newTestRouter(t, 4)

	w, resp := doJSON(t, r, http.MethodPost, "/contexts", gin.H{"scope_id": "scope-1"})
	require.Equal(t, http.StatusCreated, w.Code)

	summary := resp["context"].(map[string]interface{})
	contextID := summary["id"].(string)
	assert.True(t, strings.HasPrefix(contextID, "ctx_"), "got id %q", contextID)

	// The minted context is immediately addressable
	w, _ = doJSON(t, r, http.MethodPost, "/contexts/"+contextID+"/visible", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestOpenContextValidation(t *testing.T) {
	r, _ := newTestRouter(t, 4)

	// scope_id is required
	w, _ := doJSON(t, r, http.MethodPost, "/contexts/ctx-a/open", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOpenAndListContexts(t *testing.T) {
	r, _ := newTestRouter(t, 4)

	openContext(t, r, "ctx-a", true)
	openContext(t, r, "ctx-b", false)

	w, resp := doJSON(t, r, http.MethodGet, "/contexts", nil)
	require.Equal(t, http.StatusOK, w.Code)

	contexts := resp["contexts"].([]interface{})
	assert.Len(t, contexts, 2)

	stats := resp["stats"].(map[string]interface{})
	assert.Equal(t, "ctx-a", stats["visible_id"])
}

func TestSetVisibleUnknownContext(t *testing.T) {
	r, _ := newTestRouter(t, 4)

	w, _ := doJSON(t, r, http.MethodPost, "/contexts/ctx-missing/visible", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestOpenContextCapacityConflict(t *testing.T) {
	r, _ := newTestRouter(t, 1)

	openContext(t, r, "ctx-a", true)

	// The only slot is held by the visible runtime
	w, _ := doJSON(t, r, http.MethodPost, "/contexts/ctx-b/open",
		gin.H{"scope_id": "scope-1"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestEvictStatusMapping(t *testing.T) {
	r, _ := newTestRouter(t, 4)

	openContext(t, r, "ctx-a", true)
	openContext(t, r, "ctx-b", false)

	w, _ := doJSON(t, r, http.MethodPost, "/contexts/ctx-missing/evict", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = doJSON(t, r, http.MethodPost, "/contexts/ctx-a/evict", nil)
	assert.Equal(t, http.StatusConflict, w.Code, "visible runtime is not evictable")

	w, resp := doJSON(t, r, http.MethodPost, "/contexts/ctx-b/evict", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, resp["evicted"])
	assert.Equal(t, true, resp["persisted"])
}

// An eviction whose empty capture was rejected still tears the runtime
// down, and the response says the durable snapshot was not rewritten.
func TestEvictReportsSkippedPersistence(t *testing.T) {
	r, _ := newTestRouter(t, 4)
	openContext(t, r, "ctx-a", false)

	w, _ := doJSON(t, r, http.MethodPost, "/contexts/ctx-a/entities",
		gin.H{"entity_id": "ent-1", "anchor": "top"})
	require.Equal(t, http.StatusOK, w.Code)
	w, _ = doJSON(t, r, http.MethodDelete, "/contexts/ctx-a/entities/ent-1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, resp := doJSON(t, r, http.MethodPost, "/contexts/ctx-a/evict", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, resp["evicted"])
	assert.Equal(t, false, resp["persisted"])
}

func TestPinThenEvictConflict(t *testing.T) {
	r, _ := newTestRouter(t, 4)
	openContext(t, r, "ctx-a", false)

	w, _ := doJSON(t, r, http.MethodPost, "/contexts/ctx-a/pin", gin.H{"pinned": true})
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = doJSON(t, r, http.MethodPost, "/contexts/ctx-a/evict", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestComponentLifecycleOverHTTP(t *testing.T) {
	r, _ := newTestRouter(t, 4)
	openContext(t, r, "ctx-a", false)

	w, _ := doJSON(t, r, http.MethodPost, "/contexts/ctx-a/components",
		gin.H{"id": "cmp-1", "type": "timer", "metadata": gin.H{"remaining": 60}})
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = doJSON(t, r, http.MethodPut, "/contexts/ctx-a/components/cmp-1",
		gin.H{"is_active": true})
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = doJSON(t, r, http.MethodPut, "/contexts/ctx-a/components/cmp-missing",
		gin.H{"is_active": true})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, resp := doJSON(t, r, http.MethodDelete, "/contexts/ctx-a/components/cmp-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, resp["removed"])

	// Components on a cold context 404
	w, _ = doJSON(t, r, http.MethodPost, "/contexts/ctx-cold/components",
		gin.H{"id": "cmp-1", "type": "timer"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestEntityLifecycleOverHTTP(t *testing.T) {
	r, _ := newTestRouter(t, 4)
	openContext(t, r, "ctx-a", false)

	w, _ := doJSON(t, r, http.MethodPost, "/contexts/ctx-a/entities",
		gin.H{"entity_id": "ent-1", "anchor": "line:4"})
	require.Equal(t, http.StatusOK, w.Code)

	w, resp := doJSON(t, r, http.MethodDelete, "/contexts/ctx-a/entities/ent-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, resp["removed"])

	w, resp = doJSON(t, r, http.MethodDelete, "/contexts/ctx-a/entities/ent-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, resp["removed"])
}

func TestOwnershipOverHTTP(t *testing.T) {
	r, _ := newTestRouter(t, 4)

	w, resp := doJSON(t, r, http.MethodPost, "/ownership/claim",
		gin.H{"entity_id": "ent-1", "context_id": "ctx-a", "timestamp": 100})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, resp["claimed"])

	// Stale claim is a clean 200 with claimed=false
	w, resp = doJSON(t, r, http.MethodPost, "/ownership/claim",
		gin.H{"entity_id": "ent-1", "context_id": "ctx-b", "timestamp": 50})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, resp["claimed"])

	w, resp = doJSON(t, r, http.MethodGet, "/ownership/ent-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, resp["owned"])
	assert.Equal(t, "ctx-a", resp["owner_context_id"])

	w, resp = doJSON(t, r, http.MethodPost, "/ownership/release",
		gin.H{"entity_id": "ent-1", "context_id": "ctx-a"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, resp["released"])

	w, resp = doJSON(t, r, http.MethodGet, "/ownership/ent-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, resp["owned"])
}

func TestClaimWithoutTimestampUsesClock(t *testing.T) {
	r, _ := newTestRouter(t, 4)

	w, resp := doJSON(t, r, http.MethodPost, "/ownership/claim",
		gin.H{"entity_id": "ent-1", "context_id": "ctx-a"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, resp["claimed"])
}

func TestDeactivateScopeOverHTTP(t *testing.T) {
	r, _ := newTestRouter(t, 4)
	openContext(t, r, "ctx-a", false)

	w, _ := doJSON(t, r, http.MethodPost, "/contexts/ctx-a/components",
		gin.H{"id": "cmp-1", "type": "timer", "metadata": gin.H{"remaining": 60}})
	require.Equal(t, http.StatusOK, w.Code)

	w, resp := doJSON(t, r, http.MethodPost, "/scopes/scope-1/deactivate", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), resp["swept"])
}

func TestDestroyContextOverHTTP(t *testing.T) {
	r, gateway := newTestRouter(t, 4)
	openContext(t, r, "ctx-a", false)

	w, _ := doJSON(t, r, http.MethodDelete, "/contexts/ctx-a", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, gateway.DeleteCalls)

	// Destroying the visible context conflicts
	openContext(t, r, "ctx-b", true)
	w, _ = doJSON(t, r, http.MethodDelete, "/contexts/ctx-b", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}
