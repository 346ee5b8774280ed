package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/slateos/backend/internal/domain/eviction"
	"github.com/slateos/backend/internal/domain/ownership"
	"github.com/slateos/backend/internal/domain/runtime"
	"github.com/slateos/backend/internal/domain/snapshot"
	"github.com/slateos/backend/internal/infrastructure/logging"
	"github.com/slateos/backend/internal/infrastructure/monitoring"
	"github.com/slateos/backend/internal/persistence"
	"github.com/slateos/backend/internal/shared/clock"
	"github.com/slateos/backend/internal/shared/types"
)

var (
	// ErrCapacityExhausted means admission would exceed capacity and every
	// hot runtime is pinned or visible. The caller must free capacity.
	ErrCapacityExhausted = errors.New("hot-set capacity exhausted: no evictable runtime")

	// ErrUnknownContext means the context is not hot.
	ErrUnknownContext = errors.New("context is not hot")

	// ErrRuntimeVisible refuses eviction of the visible runtime.
	ErrRuntimeVisible = errors.New("cannot evict visible runtime")

	// ErrRuntimePinned refuses eviction of a pinned runtime.
	ErrRuntimePinned = errors.New("cannot evict pinned runtime")
)

// Events receives registry lifecycle events for broadcast to UI clients
type Events interface {
	Publish(event types.Event)
}

// Manager owns the map of live workspace runtimes and enforces the hot-set
// capacity bound via the eviction policy.
//
// Two locks split the fast and slow paths. mu guards the runtime map and
// the visible pointer and is held only for map and flag operations, so
// visibility switches never wait on persistence. admit serializes cold
// admission, eviction, and destruction; the slow work inside those paths
// (gateway loads, capture quiescence) runs with mu released, and teardown
// re-checks victim eligibility once mu is reacquired. Lock order is admit
// before mu, never the reverse.
type Manager struct {
	mu        sync.RWMutex
	runtimes  map[string]*runtime.Runtime // Protected by mu
	visibleID string                      // Protected by mu, "" when none

	admit sync.Mutex

	capacity  int
	policy    *eviction.Policy
	gateway   persistence.Gateway
	saver     *persistence.Saver
	capturer  *snapshot.Capturer
	ownership *ownership.Table
	clock     clock.Clock
	logger    *logging.Logger
	metrics   *monitoring.Metrics
	events    Events
}

// NewManager creates a registry with the given hot-set capacity
func NewManager(
	capacity int,
	policy *eviction.Policy,
	gateway persistence.Gateway,
	saver *persistence.Saver,
	capturer *snapshot.Capturer,
	owners *ownership.Table,
	clk clock.Clock,
	logger *logging.Logger,
) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	if capacity < 1 {
		capacity = 1
	}
	return &Manager{
		runtimes:  make(map[string]*runtime.Runtime),
		capacity:  capacity,
		policy:    policy,
		gateway:   gateway,
		saver:     saver,
		capturer:  capturer,
		ownership: owners,
		clock:     clk,
		logger:    logger.Named("registry"),
	}
}

// WithMetrics adds metrics tracking to the manager
func (m *Manager) WithMetrics(metrics *monitoring.Metrics) *Manager {
	m.metrics = metrics
	return m
}

// WithEvents adds an event sink to the manager
func (m *Manager) WithEvents(events Events) *Manager {
	m.events = events
	return m
}

// Ownership returns the registry's ownership table
func (m *Manager) Ownership() *ownership.Table {
	return m.ownership
}

// GetOrCreate returns the hot runtime for contextID, or constructs and
// hydrates one from the persisted snapshot. The hot path does no I/O and
// takes no admission lock. When the hot set is full, the lowest-scored
// eligible runtime is evicted (snapshot persisted before teardown) to make
// room; if none is eligible, admission fails with ErrCapacityExhausted.
func (m *Manager) GetOrCreate(ctx context.Context, contextID, scopeID string) (*runtime.Runtime, error) {
	if rt, ok := m.Get(contextID); ok {
		return rt, nil
	}

	m.admit.Lock()
	defer m.admit.Unlock()

	// A concurrent admission may have won the race for this context while
	// we waited on the lock.
	if rt, ok := m.Get(contextID); ok {
		return rt, nil
	}

	if err := m.reclaim(); err != nil {
		return nil, err
	}

	snap, found, err := m.gateway.Load(ctx, contextID)
	if err != nil {
		if m.metrics != nil {
			m.metrics.IncGatewayError("load")
		}
		return nil, fmt.Errorf("failed to load snapshot for %s: %w", contextID, err)
	}

	rt := runtime.New(contextID, scopeID, m.clock)
	if found {
		snapshot.Replay(rt, snap, false)
		m.capturer.Seed(snap)
	}

	m.mu.Lock()
	m.runtimes[contextID] = rt
	hot := len(m.runtimes)
	m.mu.Unlock()

	m.logger.Info("runtime admitted",
		zap.String("context_id", contextID),
		zap.String("scope_id", scopeID),
		zap.Bool("hydrated", found),
		zap.Int("hot", hot),
	)
	if m.metrics != nil {
		m.metrics.RuntimesCreated.Inc()
		m.metrics.SetRuntimesHot(hot)
	}
	m.publish(types.Event{
		Type:      types.EventRuntimeAdmitted,
		ContextID: contextID,
		Data:      map[string]interface{}{"scope_id": scopeID, "hydrated": found},
	})

	return rt, nil
}

// Get returns the hot runtime for contextID, if any. Never does I/O.
func (m *Manager) Get(contextID string) (*runtime.Runtime, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rt, ok := m.runtimes[contextID]
	return rt, ok
}

// SetVisible marks the target visible and hides the previously visible
// runtime. Pure metadata flip: no snapshot, no gateway I/O, and no
// admission lock, so hot switching never queues behind a cold load or a
// capture in progress.
func (m *Manager) SetVisible(contextID string) error {
	m.mu.Lock()

	rt, ok := m.runtimes[contextID]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownContext, contextID)
	}

	if m.visibleID == contextID {
		rt.SetVisible(true) // refresh lastVisibleAt
		m.mu.Unlock()
		return nil
	}

	if prev, ok := m.runtimes[m.visibleID]; ok {
		prev.SetVisible(false)
	}
	rt.SetVisible(true)
	m.visibleID = contextID
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.VisibilitySwitches.Inc()
	}
	m.publish(types.Event{Type: types.EventVisibilityChanged, ContextID: contextID})

	return nil
}

// VisibleID returns the currently visible context id, "" when none
func (m *Manager) VisibleID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.visibleID
}

// SetPinned marks or unmarks a hot runtime as excluded from eviction
func (m *Manager) SetPinned(contextID string, pinned bool) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rt, ok := m.runtimes[contextID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownContext, contextID)
	}
	rt.SetPinned(pinned)
	return nil
}

// SetDefault marks or unmarks a hot runtime as its scope's fallback
func (m *Manager) SetDefault(contextID string, isDefault bool) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rt, ok := m.runtimes[contextID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownContext, contextID)
	}
	rt.SetDefault(isDefault)
	return nil
}

// Evict captures, persists, and tears down a hot runtime. Refuses the
// visible and pinned runtimes, including ones that became visible or
// pinned while the capture was waiting for quiescence. Returns the
// captured snapshot and whether it was handed to the durable writer.
func (m *Manager) Evict(contextID string) (*types.Snapshot, bool, error) {
	m.admit.Lock()
	defer m.admit.Unlock()

	m.mu.RLock()
	rt, ok := m.runtimes[contextID]
	m.mu.RUnlock()
	if !ok {
		return nil, false, fmt.Errorf("%w: %s", ErrUnknownContext, contextID)
	}
	if rt.IsVisible() {
		return nil, false, fmt.Errorf("%w: %s", ErrRuntimeVisible, contextID)
	}
	if rt.IsPinned() {
		return nil, false, fmt.Errorf("%w: %s", ErrRuntimePinned, contextID)
	}

	return m.evict(rt, "explicit")
}

// Destroy permanently removes a context: evicts it if hot (without
// persisting) and deletes its durable snapshot. Ownership records held by
// the context are released.
func (m *Manager) Destroy(ctx context.Context, contextID string) error {
	m.admit.Lock()
	defer m.admit.Unlock()

	m.mu.Lock()
	if rt, ok := m.runtimes[contextID]; ok {
		if rt.IsVisible() {
			m.mu.Unlock()
			return fmt.Errorf("%w: %s", ErrRuntimeVisible, contextID)
		}
		delete(m.runtimes, contextID)
	}
	hot := len(m.runtimes)
	m.mu.Unlock()

	if err := m.gateway.Delete(ctx, contextID); err != nil {
		if m.metrics != nil {
			m.metrics.IncGatewayError("delete")
		}
		return fmt.Errorf("failed to delete snapshot for %s: %w", contextID, err)
	}

	m.capturer.Forget(contextID)
	if m.ownership != nil {
		released := m.ownership.ReleaseAll(contextID)
		if released > 0 {
			m.logger.Info("released ownership records",
				zap.String("context_id", contextID),
				zap.Int("released", released),
			)
		}
	}

	if m.metrics != nil {
		m.metrics.SetRuntimesHot(hot)
	}
	m.publish(types.Event{Type: types.EventRuntimeDestroyed, ContextID: contextID})

	return nil
}

// List returns read-only metadata for every hot runtime, ordered by id
func (m *Manager) List() []types.RuntimeSummary {
	m.mu.RLock()
	defer m.mu.RUnlock()

	summaries := make([]types.RuntimeSummary, 0, len(m.runtimes))
	for _, rt := range m.runtimes {
		summaries = append(summaries, rt.Summary())
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].ID < summaries[j].ID })
	return summaries
}

// InScope returns the hot runtimes belonging to a scope
func (m *Manager) InScope(scopeID string) []*runtime.Runtime {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*runtime.Runtime
	for _, rt := range m.runtimes {
		if rt.ScopeID() == scopeID {
			out = append(out, rt)
		}
	}
	return out
}

// Stats returns registry statistics
func (m *Manager) Stats() types.Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	pinned := 0
	for _, rt := range m.runtimes {
		if rt.IsPinned() {
			pinned++
		}
	}

	var visibleID *string
	if m.visibleID != "" {
		id := m.visibleID
		visibleID = &id
	}

	owned := 0
	if m.ownership != nil {
		owned = m.ownership.Len()
	}

	return types.Stats{
		HotRuntimes:    len(m.runtimes),
		Capacity:       m.capacity,
		PinnedRuntimes: pinned,
		VisibleID:      visibleID,
		OwnedEntities:  owned,
	}
}

// Shutdown captures and synchronously persists every hot runtime, then
// stops the async saver. Called on graceful server stop.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.admit.Lock()
	defer m.admit.Unlock()

	m.mu.RLock()
	hot := make([]*runtime.Runtime, 0, len(m.runtimes))
	for _, rt := range m.runtimes {
		hot = append(hot, rt)
	}
	m.mu.RUnlock()

	var firstErr error
	for _, rt := range hot {
		snap, err := m.capturer.Capture(rt)
		if errors.Is(err, snapshot.ErrEmptySnapshotRejected) || snap == nil {
			continue
		}
		if err := m.saver.SaveSync(ctx, rt.ID(), snap); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	m.saver.Close()
	return firstErr
}

// reclaim evicts lowest-scored eligible runtimes until the hot set has
// room for one admission. A victim that becomes visible or pinned during
// its capture wait is skipped and the next candidate is tried. Caller must
// hold admit.
func (m *Manager) reclaim() error {
	for {
		m.mu.RLock()
		if len(m.runtimes) < m.capacity {
			m.mu.RUnlock()
			return nil
		}
		candidates := make([]types.RuntimeSummary, 0, len(m.runtimes))
		for _, rt := range m.runtimes {
			candidates = append(candidates, rt.Summary())
		}
		m.mu.RUnlock()

		victimID, ok := m.policy.SelectVictim(candidates, m.clock.Now())
		if !ok {
			return ErrCapacityExhausted
		}

		victim, ok := m.Get(victimID)
		if !ok {
			continue
		}

		if _, _, err := m.evict(victim, "capacity"); err != nil {
			if errors.Is(err, ErrRuntimeVisible) || errors.Is(err, ErrRuntimePinned) {
				continue
			}
			return err
		}
	}
}

// evict captures the runtime, ensures the snapshot is handed to the
// durable writer, and only then tears down the in-memory state. A failed
// hand-off aborts the eviction and keeps the runtime hot: losing capacity
// is recoverable, losing state is not. The capture's quiescence wait runs
// without mu, so eligibility is re-checked before teardown; a runtime
// shown or pinned in the meantime stays hot. Caller must hold admit.
func (m *Manager) evict(rt *runtime.Runtime, reason string) (*types.Snapshot, bool, error) {
	snap, err := m.capturer.Capture(rt)
	persisted := false

	switch {
	case errors.Is(err, snapshot.ErrEmptySnapshotRejected):
		// Previous good snapshot stays on disk untouched; the suspected
		// transitional live state is discarded with the teardown.
	case err != nil:
		return nil, false, err
	default:
		if err := m.saver.Enqueue(rt.ID(), snap); err != nil {
			if m.metrics != nil {
				m.metrics.IncGatewayError("enqueue")
			}
			return nil, false, fmt.Errorf("eviction aborted, snapshot not enqueued for %s: %w", rt.ID(), err)
		}
		persisted = true
	}

	m.mu.Lock()
	if rt.IsVisible() {
		m.mu.Unlock()
		return nil, persisted, fmt.Errorf("%w: %s", ErrRuntimeVisible, rt.ID())
	}
	if rt.IsPinned() {
		m.mu.Unlock()
		return nil, persisted, fmt.Errorf("%w: %s", ErrRuntimePinned, rt.ID())
	}
	delete(m.runtimes, rt.ID())
	hot := len(m.runtimes)
	m.mu.Unlock()

	m.logger.Info("runtime evicted",
		zap.String("context_id", rt.ID()),
		zap.String("reason", reason),
		zap.Bool("persisted", persisted),
		zap.Int("hot", hot),
	)
	if m.metrics != nil {
		m.metrics.IncEviction(reason)
		m.metrics.SetRuntimesHot(hot)
	}
	m.publish(types.Event{
		Type:      types.EventRuntimeEvicted,
		ContextID: rt.ID(),
		Data:      map[string]interface{}{"reason": reason, "persisted": persisted},
	})

	return snap, persisted, nil
}

func (m *Manager) publish(event types.Event) {
	if m.events != nil {
		m.events.Publish(event)
	}
}
