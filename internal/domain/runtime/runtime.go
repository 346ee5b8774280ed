package runtime

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/slateos/backend/internal/shared/clock"
	"github.com/slateos/backend/internal/shared/types"
)

// Runtime is one isolated workspace execution context: its own open-entity
// slots, component ledger, camera, and visibility/protection flags.
//
// All mutation entry points stamp the relevant *UpdatedAt field with the
// shared monotonic clock before returning. Reads hand out copies, never
// live references.
type Runtime struct {
	mu sync.RWMutex

	id      string
	scopeID string

	openEntities []types.OpenEntity
	components   map[string]types.Component
	camera       types.Camera

	visible       bool
	pinned        bool
	isDefault     bool
	lastVisibleAt int64

	openEntitiesUpdatedAt int64
	membershipUpdatedAt   int64

	// hadContent latches once the runtime has ever held an entity or a
	// component; the empty-capture guard reads it.
	hadContent bool

	// inflight counts mutations between entry and return; capture waits
	// for it to drain to zero (quiescence, not a freeze).
	inflight atomic.Int64

	// revision seeds from the hydrating snapshot and increments per capture
	revision atomic.Uint64

	clock clock.Clock
}

// New constructs a hidden, unpinned runtime for the given context and scope
func New(contextID, scopeID string, clk clock.Clock) *Runtime {
	return &Runtime{
		id:         contextID,
		scopeID:    scopeID,
		components: make(map[string]types.Component),
		clock:      clk,
	}
}

// ID returns the context identifier
func (r *Runtime) ID() string { return r.id }

// ScopeID returns the parent scope identifier
func (r *Runtime) ScopeID() string { return r.scopeID }

// IsVisible reports whether this runtime is the visible one
func (r *Runtime) IsVisible() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.visible
}

// IsPinned reports whether this runtime is excluded from eviction
func (r *Runtime) IsPinned() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.pinned
}

// IsDefault reports whether this runtime is the scope's fallback context
func (r *Runtime) IsDefault() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.isDefault
}

// LastVisibleAt returns the monotonic instant this runtime was last shown,
// 0 if never
func (r *Runtime) LastVisibleAt() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastVisibleAt
}

// SetVisible flips the visibility flag. Called only by the registry, which
// enforces the exactly-one-visible invariant. Pure flag flip, no I/O.
func (r *Runtime) SetVisible(visible bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.visible = visible
	if visible {
		r.lastVisibleAt = r.clock.Now()
	}
}

// SetPinned marks or unmarks the runtime as excluded from eviction
func (r *Runtime) SetPinned(pinned bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pinned = pinned
}

// SetDefault marks or unmarks the runtime as its scope's fallback context
func (r *Runtime) SetDefault(isDefault bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.isDefault = isDefault
}

// RegisterComponent adds or replaces a component. The runtime never
// interprets the metadata blob.
func (r *Runtime) RegisterComponent(c types.Component) {
	r.inflight.Add(1)
	defer r.inflight.Add(-1)

	now := r.clock.Now()
	if c.Metadata == nil {
		c.Metadata = map[string]interface{}{}
	}
	c.LastSeenAt = now

	r.mu.Lock()
	defer r.mu.Unlock()
	r.components[c.ID] = c
	r.membershipUpdatedAt = now
	r.hadContent = true
}

// UpdateComponent updates a component's metadata and activity flag.
// Returns false if the component is not registered.
func (r *Runtime) UpdateComponent(componentID string, metadata map[string]interface{}, isActive bool) bool {
	r.inflight.Add(1)
	defer r.inflight.Add(-1)

	now := r.clock.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.components[componentID]
	if !ok {
		return false
	}
	if metadata != nil {
		c.Metadata = metadata
	}
	c.IsActive = isActive
	c.LastSeenAt = now
	r.components[componentID] = c
	r.membershipUpdatedAt = now
	return true
}

// UnregisterComponent removes a component. Removal is an explicit call,
// distinct from visual unmount: a hidden-but-still-running component stays
// registered until its owner says otherwise.
func (r *Runtime) UnregisterComponent(componentID string) bool {
	r.inflight.Add(1)
	defer r.inflight.Add(-1)

	now := r.clock.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.components[componentID]; !ok {
		return false
	}
	delete(r.components, componentID)
	r.membershipUpdatedAt = now
	return true
}

// RegisterEntity opens an entity in this runtime. Appends at the end of
// the tab order; re-registering an open entity only refreshes its anchor.
func (r *Runtime) RegisterEntity(entityID, anchor string) {
	r.inflight.Add(1)
	defer r.inflight.Add(-1)

	now := r.clock.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.openEntities {
		if r.openEntities[i].EntityID == entityID {
			r.openEntities[i].Anchor = anchor
			r.openEntitiesUpdatedAt = now
			return
		}
	}
	r.openEntities = append(r.openEntities, types.OpenEntity{EntityID: entityID, Anchor: anchor})
	r.openEntitiesUpdatedAt = now
	r.hadContent = true
}

// RemoveEntity closes an entity, preserving the order of the rest
func (r *Runtime) RemoveEntity(entityID string) bool {
	r.inflight.Add(1)
	defer r.inflight.Add(-1)

	now := r.clock.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.openEntities {
		if r.openEntities[i].EntityID == entityID {
			r.openEntities = append(r.openEntities[:i], r.openEntities[i+1:]...)
			r.openEntitiesUpdatedAt = now
			return true
		}
	}
	return false
}

// SetCamera updates the viewport state
func (r *Runtime) SetCamera(cam types.Camera) {
	r.inflight.Add(1)
	defer r.inflight.Add(-1)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.camera = cam
}

// OpenEntitiesUpdatedAt returns the last open-entity write stamp
func (r *Runtime) OpenEntitiesUpdatedAt() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.openEntitiesUpdatedAt
}

// MembershipUpdatedAt returns the last component write stamp
func (r *Runtime) MembershipUpdatedAt() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.membershipUpdatedAt
}

// HadContent reports whether the runtime has ever held an entity or
// component. Latched; a later transient empty state does not reset it.
func (r *Runtime) HadContent() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.hadContent
}

// View returns a consistent point-in-time copy of the runtime's state.
// Writers are blocked only for the duration of the copy.
func (r *Runtime) View() ([]types.OpenEntity, map[string]types.Component, types.Camera) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entities := make([]types.OpenEntity, len(r.openEntities))
	copy(entities, r.openEntities)

	components := make(map[string]types.Component, len(r.components))
	for id, c := range r.components {
		components[id] = copyComponent(c)
	}

	return entities, components, r.camera
}

// Summary returns the read-only metadata view used by diagnostics and the
// eviction policy
func (r *Runtime) Summary() types.RuntimeSummary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	active := 0
	for _, c := range r.components {
		if c.IsActive {
			active++
		}
	}

	return types.RuntimeSummary{
		ID:               r.id,
		ScopeID:          r.scopeID,
		IsVisible:        r.visible,
		IsPinned:         r.pinned,
		IsDefault:        r.isDefault,
		LastVisibleAt:    r.lastVisibleAt,
		OpenEntities:     len(r.openEntities),
		Components:       len(r.components),
		ActiveComponents: active,
	}
}

// HasActiveComponent reports whether any component represents continuing
// background work
func (r *Runtime) HasActiveComponent() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, c := range r.components {
		if c.IsActive {
			return true
		}
	}
	return false
}

// ResetTransient clears component metadata and activity flags. Used by
// scope deactivation; components reinitialize with defaults on next
// activation.
func (r *Runtime) ResetTransient() {
	r.inflight.Add(1)
	defer r.inflight.Add(-1)

	now := r.clock.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	for id, c := range r.components {
		c.Metadata = map[string]interface{}{}
		c.IsActive = false
		c.LastSeenAt = now
		r.components[id] = c
	}
	r.membershipUpdatedAt = now
}

// Apply replaces the runtime's state wholesale. Only valid on a freshly
// constructed (cold) runtime; hot runtimes must go through Merge.
func (r *Runtime) Apply(entities []types.OpenEntity, components map[string]types.Component, cam types.Camera) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.openEntities = make([]types.OpenEntity, len(entities))
	copy(r.openEntities, entities)

	r.components = make(map[string]types.Component, len(components))
	for id, c := range components {
		r.components[id] = copyComponent(c)
	}
	r.camera = cam

	if len(r.openEntities) > 0 || len(r.components) > 0 {
		r.hadContent = true
	}
}

// Merge folds snapshot state into a hot runtime without overwriting live
// state: live entries absent from the snapshot are preserved (they may be
// newer), snapshot entries absent live are added. Returns the ids merged
// in, so reconciliation does not treat them as deletions.
func (r *Runtime) Merge(entities []types.OpenEntity, components map[string]types.Component) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var merged []string

	open := make(map[string]struct{}, len(r.openEntities))
	for _, e := range r.openEntities {
		open[e.EntityID] = struct{}{}
	}
	for _, e := range entities {
		if _, ok := open[e.EntityID]; !ok {
			r.openEntities = append(r.openEntities, e)
			merged = append(merged, e.EntityID)
		}
	}

	for id, c := range components {
		if _, ok := r.components[id]; !ok {
			r.components[id] = copyComponent(c)
			merged = append(merged, id)
		}
	}

	if len(r.openEntities) > 0 || len(r.components) > 0 {
		r.hadContent = true
	}

	return merged
}

// SeedRevision initializes the revision counter from a hydrating snapshot
func (r *Runtime) SeedRevision(rev uint64) {
	r.revision.Store(rev)
}

// NextRevision returns a new monotonically increasing snapshot revision
func (r *Runtime) NextRevision() uint64 {
	return r.revision.Add(1)
}

// WaitQuiescent waits up to timeout for in-flight mutations to drain to
// zero. Mutations arriving during the wait are still accepted; this waits
// for quiescence, not a freeze. Returns false if the timeout elapsed first.
// Cancellable by timeout only.
func (r *Runtime) WaitQuiescent(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for r.inflight.Load() != 0 {
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(time.Millisecond)
	}
	return true
}

func copyComponent(c types.Component) types.Component {
	meta := make(map[string]interface{}, len(c.Metadata))
	for k, v := range c.Metadata {
		meta[k] = v
	}
	c.Metadata = meta
	return c
}
