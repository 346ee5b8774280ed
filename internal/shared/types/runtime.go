package types

// Position represents a component's position on the canvas
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Size represents component dimensions
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Camera captures the viewport state of a workspace (pan + zoom)
type Camera struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Zoom float64 `json:"zoom"`
}

// Component represents a visual component hosted by a workspace runtime.
// The runtime manager treats Metadata as an opaque blob; only the visual
// layer interprets it.
type Component struct {
	ID         string                 `json:"id"`
	Type       string                 `json:"type"` // string tag, never interpreted here
	Position   Position               `json:"position"`
	Size       Size                   `json:"size"`
	Metadata   map[string]interface{} `json:"metadata"`
	IsActive   bool                   `json:"is_active"` // continuing background work (e.g. running timer)
	LastSeenAt int64                  `json:"last_seen_at"`
}

// OpenEntity is one document open in a workspace. Slice order is tab order.
type OpenEntity struct {
	EntityID string `json:"entity_id"`
	Anchor   string `json:"anchor,omitempty"` // last known scroll/cursor anchor
}

// RuntimeSummary is the read-only metadata view of a hot runtime,
// returned by the registry for diagnostics and UI
type RuntimeSummary struct {
	ID               string `json:"id"`
	ScopeID          string `json:"scope_id"`
	IsVisible        bool   `json:"is_visible"`
	IsPinned         bool   `json:"is_pinned"`
	IsDefault        bool   `json:"is_default"`
	LastVisibleAt    int64  `json:"last_visible_at"` // 0 if never shown
	OpenEntities     int    `json:"open_entities"`
	Components       int    `json:"components"`
	ActiveComponents int    `json:"active_components"`
}

// OwnershipRecord maps an entity to its current owning context
type OwnershipRecord struct {
	OwnerContextID string `json:"owner_context_id"`
	UpdatedAt      int64  `json:"updated_at"`
}

// Stats contains registry statistics
type Stats struct {
	HotRuntimes    int     `json:"hot_runtimes"`
	Capacity       int     `json:"capacity"`
	PinnedRuntimes int     `json:"pinned_runtimes"`
	VisibleID      *string `json:"visible_id,omitempty"`
	OwnedEntities  int     `json:"owned_entities"`
}
