package persistence

import (
	"context"

	"github.com/slateos/backend/internal/shared/types"
)

// Gateway is the durable load/save contract for context snapshots. Only
// this boundary matters to the runtime manager; the concrete schema and
// transport behind it are the store's business.
type Gateway interface {
	// Load returns the last persisted snapshot for a context.
	// found is false when the context has never been persisted.
	Load(ctx context.Context, contextID string) (*types.Snapshot, bool, error)

	// Save durably persists a snapshot, replacing any previous one.
	Save(ctx context.Context, contextID string, snap *types.Snapshot) error

	// Delete removes a context's persisted snapshot. Used when a context
	// is permanently destroyed, not merely evicted.
	Delete(ctx context.Context, contextID string) error
}
