// Package testutil provides testing utilities and helpers for backend tests.
package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/slateos/backend/internal/shared/types"
)

// MemoryGateway is an in-memory persistence gateway with call counters.
// Deterministic and race-free, preferred over a mock for registry tests
// that assert on asynchronous save behavior.
type MemoryGateway struct {
	mu        sync.Mutex
	snapshots map[string]*types.Snapshot

	LoadCalls   int
	SaveCalls   int
	DeleteCalls int

	failSaves error
}

// NewMemoryGateway creates an empty in-memory gateway
func NewMemoryGateway() *MemoryGateway {
	return &MemoryGateway{snapshots: make(map[string]*types.Snapshot)}
}

// Load returns the stored snapshot for a context
func (g *MemoryGateway) Load(_ context.Context, contextID string) (*types.Snapshot, bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.LoadCalls++
	snap, ok := g.snapshots[contextID]
	return snap, ok, nil
}

// Save stores a snapshot for a context
func (g *MemoryGateway) Save(_ context.Context, contextID string, snap *types.Snapshot) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.SaveCalls++
	if g.failSaves != nil {
		return g.failSaves
	}
	g.snapshots[contextID] = snap
	return nil
}

// SetFailSaves makes every subsequent Save return err; nil restores
// normal behavior. Safe to flip while the saver worker is running.
func (g *MemoryGateway) SetFailSaves(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failSaves = err
}

// Delete removes a stored snapshot
func (g *MemoryGateway) Delete(_ context.Context, contextID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.DeleteCalls++
	delete(g.snapshots, contextID)
	return nil
}

// Stored returns the stored snapshot for a context, nil if none
func (g *MemoryGateway) Stored(contextID string) *types.Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.snapshots[contextID]
}

// Put seeds a stored snapshot directly
func (g *MemoryGateway) Put(contextID string, snap *types.Snapshot) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.snapshots[contextID] = snap
}

// Saves returns the number of Save calls so far
func (g *MemoryGateway) Saves() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.SaveCalls
}

// WaitSaved polls until a snapshot with revision >= minRevision is stored
// for the context, or the timeout elapses. Needed because durable saves
// run on the saver's worker goroutine.
func (g *MemoryGateway) WaitSaved(contextID string, minRevision uint64, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if snap := g.Stored(contextID); snap != nil && snap.Revision >= minRevision {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return false
}

// MockGateway is a testify mock of the persistence gateway for tests that
// assert on exact call sequences.
type MockGateway struct {
	mock.Mock
}

// Load mocks the Load method
func (m *MockGateway) Load(ctx context.Context, contextID string) (*types.Snapshot, bool, error) {
	args := m.Called(ctx, contextID)
	var snap *types.Snapshot
	if args.Get(0) != nil {
		snap = args.Get(0).(*types.Snapshot)
	}
	return snap, args.Bool(1), args.Error(2)
}

// Save mocks the Save method
func (m *MockGateway) Save(ctx context.Context, contextID string, snap *types.Snapshot) error {
	args := m.Called(ctx, contextID, snap)
	return args.Error(0)
}

// Delete mocks the Delete method
func (m *MockGateway) Delete(ctx context.Context, contextID string) error {
	args := m.Called(ctx, contextID)
	return args.Error(0)
}
