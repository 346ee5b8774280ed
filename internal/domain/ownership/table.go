// Package ownership arbitrates which context currently owns a shared
// entity.
//
// The table enforces a single-writer invariant: at any instant at most one
// context is recorded as owner of an entity, and a new owner overwrites the
// previous mapping atomically. Claims carry logical timestamps from the
// shared monotonic clock; a claim computed from out-of-date state (e.g. a
// replayed cached snapshot) arrives with an older timestamp and is dropped
// by the stale-write guard. That rejection is an expected race outcome,
// logged but never surfaced as an error.
package ownership

import (
	"sync"

	"go.uber.org/zap"

	"github.com/slateos/backend/internal/infrastructure/logging"
	"github.com/slateos/backend/internal/infrastructure/monitoring"
	"github.com/slateos/backend/internal/shared/types"
)

// Events receives ownership change events for broadcast to UI clients.
// Publish is called with the table lock held so events observe claim
// order; implementations must not block.
type Events interface {
	Publish(event types.Event)
}

// Table maps entity id -> owning context id with monotonic timestamps.
// A field of the registry, not a process-wide singleton, so tests can
// instantiate independent tables.
type Table struct {
	mu      sync.RWMutex
	records map[string]types.OwnershipRecord
	logger  *logging.Logger
	metrics *monitoring.Metrics
	events  Events
}

// NewTable creates an empty ownership table
func NewTable(logger *logging.Logger) *Table {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Table{
		records: make(map[string]types.OwnershipRecord),
		logger:  logger.Named("ownership"),
	}
}

// WithMetrics adds metrics tracking to the table
func (t *Table) WithMetrics(m *monitoring.Metrics) *Table {
	t.metrics = m
	return t
}

// WithEvents adds an event sink to the table
func (t *Table) WithEvents(events Events) *Table {
	t.events = events
	return t
}

// Claim records contextID as the owner of entityID if timestamp is at
// least as new as the recorded one. Equal timestamps win so an idempotent
// replay of the newest write still succeeds. Returns false on a stale
// write; the caller's write is silently superseded, not failed.
func (t *Table) Claim(entityID, contextID string, timestamp int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, exists := t.records[entityID]
	if exists && timestamp < rec.UpdatedAt {
		t.logger.Warn("stale write rejected",
			zap.String("entity_id", entityID),
			zap.String("context_id", contextID),
			zap.Int64("attempted_at", timestamp),
			zap.Int64("current_at", rec.UpdatedAt),
			zap.Int64("staleness", rec.UpdatedAt-timestamp),
		)
		if t.metrics != nil {
			t.metrics.StaleWrites.Inc()
		}
		return false
	}

	// Single map write: no reader can observe two owners, even transiently
	t.records[entityID] = types.OwnershipRecord{
		OwnerContextID: contextID,
		UpdatedAt:      timestamp,
	}
	if t.metrics != nil {
		t.metrics.OwnershipClaims.Inc()
	}
	t.publish(types.Event{
		Type:      types.EventOwnershipChanged,
		ContextID: contextID,
		Data:      map[string]interface{}{"entity_id": entityID, "action": "claimed"},
	})
	return true
}

// Release removes the record only if contextID is still the owner. A slow
// release racing a newer claim from another context is a no-op.
func (t *Table) Release(entityID, contextID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, exists := t.records[entityID]
	if !exists || rec.OwnerContextID != contextID {
		return false
	}
	delete(t.records, entityID)
	t.publish(types.Event{
		Type:      types.EventOwnershipChanged,
		ContextID: contextID,
		Data:      map[string]interface{}{"entity_id": entityID, "action": "released"},
	})
	return true
}

// OwnerOf returns the current owning context, if any
func (t *Table) OwnerOf(entityID string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	rec, exists := t.records[entityID]
	if !exists {
		return "", false
	}
	return rec.OwnerContextID, true
}

// Record returns a copy of the full record for an entity
func (t *Table) Record(entityID string) (types.OwnershipRecord, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	rec, exists := t.records[entityID]
	return rec, exists
}

// ReleaseAll drops every record owned by contextID. Used when a context is
// permanently destroyed.
func (t *Table) ReleaseAll(contextID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	released := 0
	for entityID, rec := range t.records {
		if rec.OwnerContextID == contextID {
			delete(t.records, entityID)
			t.publish(types.Event{
				Type:      types.EventOwnershipChanged,
				ContextID: contextID,
				Data:      map[string]interface{}{"entity_id": entityID, "action": "released"},
			})
			released++
		}
	}
	return released
}

// Len returns the number of owned entities
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.records)
}

func (t *Table) publish(event types.Event) {
	if t.events != nil {
		t.events.Publish(event)
	}
}
