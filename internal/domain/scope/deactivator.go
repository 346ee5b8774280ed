// Package scope handles higher-level scope changes, such as switching to a
// different parent collection of contexts.
//
// Deactivating a scope clears the transient state of its non-pinned
// runtimes (component metadata and activity flags) so components
// reinitialize with defaults on next activation. Pinned runtimes are left
// untouched. Each target runtime is independently locked, so sweep order
// does not matter.
package scope

import (
	"go.uber.org/zap"

	"github.com/slateos/backend/internal/domain/runtime"
	"github.com/slateos/backend/internal/infrastructure/logging"
	"github.com/slateos/backend/internal/shared/types"
)

// Registry is the slice of the runtime registry the deactivator needs
type Registry interface {
	InScope(scopeID string) []*runtime.Runtime
}

// Events receives scope lifecycle events
type Events interface {
	Publish(event types.Event)
}

// Deactivator clears transient state when a scope is left
type Deactivator struct {
	registry Registry
	logger   *logging.Logger
	events   Events
}

// NewDeactivator creates a deactivator over the given registry
func NewDeactivator(registry Registry, logger *logging.Logger) *Deactivator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Deactivator{
		registry: registry,
		logger:   logger.Named("scope"),
	}
}

// WithEvents adds an event sink to the deactivator
func (d *Deactivator) WithEvents(events Events) *Deactivator {
	d.events = events
	return d
}

// OnScopeDeactivated resets every non-pinned runtime in the scope.
// Returns the number of runtimes swept.
func (d *Deactivator) OnScopeDeactivated(scopeID string) int {
	swept := 0
	for _, rt := range d.registry.InScope(scopeID) {
		if rt.IsPinned() {
			continue
		}
		rt.ResetTransient()
		swept++
	}

	d.logger.Info("scope deactivated",
		zap.String("scope_id", scopeID),
		zap.Int("swept", swept),
	)
	if d.events != nil {
		d.events.Publish(types.Event{
			Type: types.EventScopeDeactivated,
			Data: map[string]interface{}{"scope_id": scopeID, "swept": swept},
		})
	}
	return swept
}
