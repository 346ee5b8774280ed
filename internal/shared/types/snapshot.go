package types

// Snapshot is the complete, self-contained state of one workspace runtime
// at a point in time. Immutable once captured; a new capture produces a new
// revision.
type Snapshot struct {
	ContextID    string               `json:"context_id"`
	Revision     uint64               `json:"revision"`
	OpenEntities []OpenEntity         `json:"open_entities"`
	Components   map[string]Component `json:"components"`
	Camera       Camera               `json:"camera"`
	CapturedAt   int64                `json:"captured_at"`
}

// IsEmpty reports whether the snapshot carries no open entities and no
// components. Used by the empty-capture guard.
func (s *Snapshot) IsEmpty() bool {
	return len(s.OpenEntities) == 0 && len(s.Components) == 0
}

// Event is a registry lifecycle event pushed to connected UI clients
type Event struct {
	Type      string                 `json:"type"`
	ContextID string                 `json:"context_id,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// Event types broadcast over the event stream
const (
	EventVisibilityChanged = "visibility_changed"
	EventRuntimeAdmitted   = "runtime_admitted"
	EventRuntimeEvicted    = "runtime_evicted"
	EventRuntimeDestroyed  = "runtime_destroyed"
	EventOwnershipChanged  = "ownership_changed"
	EventScopeDeactivated  = "scope_deactivated"
)
