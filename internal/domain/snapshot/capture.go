package snapshot

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/slateos/backend/internal/domain/runtime"
	"github.com/slateos/backend/internal/infrastructure/logging"
	"github.com/slateos/backend/internal/infrastructure/monitoring"
	"github.com/slateos/backend/internal/shared/clock"
	"github.com/slateos/backend/internal/shared/types"
)

// ErrEmptySnapshotRejected signals that a capture produced an empty
// payload from a runtime known to have held content moments earlier. The
// last good snapshot is retained; persistence is skipped.
var ErrEmptySnapshotRejected = errors.New("empty snapshot rejected")

// Capturer assembles point-in-time snapshots from live runtimes.
//
// A capture waits (bounded) for the runtime's in-flight mutations to drain,
// copies its state under the runtime lock, and tags the payload with a new
// monotonic revision. The quiescence wait is cancellable by timeout only,
// never by caller abort: an aborted capture before eviction would be the
// exact data-loss failure this subsystem exists to prevent.
type Capturer struct {
	timeout time.Duration
	clock   clock.Clock
	logger  *logging.Logger
	metrics *monitoring.Metrics

	mu       sync.Mutex
	lastGood map[string]*types.Snapshot // per context, last non-rejected capture
}

// NewCapturer creates a capturer with the given quiescence timeout
func NewCapturer(timeout time.Duration, clk clock.Clock, logger *logging.Logger) *Capturer {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Capturer{
		timeout:  timeout,
		clock:    clk,
		logger:   logger.Named("capture"),
		lastGood: make(map[string]*types.Snapshot),
	}
}

// WithMetrics adds metrics tracking to the capturer
func (c *Capturer) WithMetrics(m *monitoring.Metrics) *Capturer {
	c.metrics = m
	return c
}

// Capture assembles a snapshot of the runtime's current state.
//
// If the computed payload is empty while the runtime is known to have held
// content, the capture is treated as a suspected transitional frame: the
// previous snapshot is returned unchanged alongside ErrEmptySnapshotRejected
// so callers know persistence was skipped.
func (c *Capturer) Capture(rt *runtime.Runtime) (*types.Snapshot, error) {
	if !rt.WaitQuiescent(c.timeout) {
		// A capture of in-progress state beats blocking indefinitely or
		// losing the capture entirely.
		c.logger.Warn("capture timed out waiting for quiescence",
			zap.String("context_id", rt.ID()),
			zap.Duration("timeout", c.timeout),
		)
		if c.metrics != nil {
			c.metrics.CaptureTimeouts.Inc()
		}
	}

	entities, components, camera := rt.View()

	snap := &types.Snapshot{
		ContextID:    rt.ID(),
		Revision:     rt.NextRevision(),
		OpenEntities: entities,
		Components:   components,
		Camera:       camera,
		CapturedAt:   c.clock.Now(),
	}

	if snap.IsEmpty() && rt.HadContent() {
		prev := c.LastGood(rt.ID())
		c.logger.Warn("rejected empty snapshot",
			zap.String("context_id", rt.ID()),
			zap.Uint64("revision", snap.Revision),
		)
		if c.metrics != nil {
			c.metrics.EmptySnapshotsRejected.Inc()
		}
		return prev, ErrEmptySnapshotRejected
	}

	c.mu.Lock()
	c.lastGood[rt.ID()] = snap
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.CapturesTotal.Inc()
	}
	return snap, nil
}

// LastGood returns the last non-rejected capture for a context, nil if none
func (c *Capturer) LastGood(contextID string) *types.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastGood[contextID]
}

// Seed records a loaded snapshot as the last good one for its context.
// Called after cold hydration so a later empty-capture rejection can still
// hand back the persisted state.
func (c *Capturer) Seed(snap *types.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastGood[snap.ContextID] = snap
}

// Forget drops capture bookkeeping for a permanently destroyed context
func (c *Capturer) Forget(contextID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.lastGood, contextID)
}
