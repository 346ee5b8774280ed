package runtime

import (
	"testing"
	"time"

	"github.com/slateos/backend/internal/shared/clock"
	"github.com/slateos/backend/internal/shared/types"
)

func newTestRuntime() (*Runtime, *clock.Manual) {
	clk := clock.NewManual(100)
	return New("ctx-1", "scope-1", clk), clk
}

func TestNewRuntimeStartsHidden(t *testing.T) {
	rt, _ := newTestRuntime()

	if rt.IsVisible() || rt.IsPinned() || rt.IsDefault() {
		t.Error("new runtime should be hidden, unpinned, non-default")
	}
	if rt.LastVisibleAt() != 0 {
		t.Errorf("Expected LastVisibleAt 0 for never-shown, got %d", rt.LastVisibleAt())
	}
	if rt.HadContent() {
		t.Error("new runtime should not have content")
	}
}

func TestSetVisibleStampsClock(t *testing.T) {
	rt, clk := newTestRuntime()

	clk.Set(500)
	rt.SetVisible(true)

	if !rt.IsVisible() {
		t.Error("runtime should be visible")
	}
	if rt.LastVisibleAt() != 500 {
		t.Errorf("Expected LastVisibleAt 500, got %d", rt.LastVisibleAt())
	}

	// Hiding does not touch the stamp
	clk.Set(900)
	rt.SetVisible(false)
	if rt.LastVisibleAt() != 500 {
		t.Errorf("Expected LastVisibleAt unchanged at 500, got %d", rt.LastVisibleAt())
	}
}

func TestRegisterComponent(t *testing.T) {
	rt, clk := newTestRuntime()

	clk.Set(200)
	rt.RegisterComponent(types.Component{ID: "cmp-1", Type: "timer"})

	_, components, _ := rt.View()
	c, ok := components["cmp-1"]
	if !ok {
		t.Fatal("component should be registered")
	}
	if c.LastSeenAt != 200 {
		t.Errorf("Expected LastSeenAt 200, got %d", c.LastSeenAt)
	}
	if c.Metadata == nil {
		t.Error("metadata should default to an empty map")
	}
	if rt.MembershipUpdatedAt() != 200 {
		t.Errorf("Expected membership stamp 200, got %d", rt.MembershipUpdatedAt())
	}
	if !rt.HadContent() {
		t.Error("content latch should be set")
	}
}

func TestUpdateComponent(t *testing.T) {
	rt, clk := newTestRuntime()
	rt.RegisterComponent(types.Component{ID: "cmp-1", Type: "timer"})

	clk.Set(300)
	if !rt.UpdateComponent("cmp-1", map[string]interface{}{"remaining": 42}, true) {
		t.Fatal("update of registered component should succeed")
	}

	_, components, _ := rt.View()
	c := components["cmp-1"]
	if !c.IsActive {
		t.Error("component should be active")
	}
	if c.Metadata["remaining"] != 42 {
		t.Errorf("Expected metadata updated, got %v", c.Metadata)
	}

	if rt.UpdateComponent("cmp-unknown", nil, true) {
		t.Error("update of unknown component should report false")
	}
}

func TestUnregisterComponentIsExplicit(t *testing.T) {
	rt, _ := newTestRuntime()
	rt.RegisterComponent(types.Component{ID: "cmp-1", Type: "timer"})

	// Deactivating (the unmount analogue) must not remove the registration
	rt.UpdateComponent("cmp-1", nil, false)
	if _, components, _ := rt.View(); len(components) != 1 {
		t.Fatal("deactivated component should stay registered")
	}

	if !rt.UnregisterComponent("cmp-1") {
		t.Error("explicit unregister should succeed")
	}
	if _, components, _ := rt.View(); len(components) != 0 {
		t.Error("component should be gone after unregister")
	}
	if rt.UnregisterComponent("cmp-1") {
		t.Error("double unregister should report false")
	}
}

func TestRegisterEntityPreservesOrder(t *testing.T) {
	rt, _ := newTestRuntime()

	rt.RegisterEntity("ent-a", "top")
	rt.RegisterEntity("ent-b", "top")
	rt.RegisterEntity("ent-c", "top")

	// Re-registering an open entity refreshes the anchor, not the position
	rt.RegisterEntity("ent-a", "line:40")

	entities, _, _ := rt.View()
	if len(entities) != 3 {
		t.Fatalf("Expected 3 open entities, got %d", len(entities))
	}
	if entities[0].EntityID != "ent-a" || entities[0].Anchor != "line:40" {
		t.Errorf("Expected ent-a first with refreshed anchor, got %+v", entities[0])
	}

	rt.RemoveEntity("ent-b")
	entities, _, _ = rt.View()
	if entities[0].EntityID != "ent-a" || entities[1].EntityID != "ent-c" {
		t.Error("removal should preserve the order of remaining entities")
	}

	if rt.RemoveEntity("ent-b") {
		t.Error("removing a closed entity should report false")
	}
}

func TestViewReturnsCopies(t *testing.T) {
	rt, _ := newTestRuntime()
	rt.RegisterComponent(types.Component{
		ID:       "cmp-1",
		Type:     "timer",
		Metadata: map[string]interface{}{"remaining": 10},
	})
	rt.RegisterEntity("ent-a", "top")

	entities, components, _ := rt.View()
	entities[0].EntityID = "mutated"
	components["cmp-1"].Metadata["remaining"] = 99
	delete(components, "cmp-1")

	entities2, components2, _ := rt.View()
	if entities2[0].EntityID != "ent-a" {
		t.Error("view mutation leaked into runtime entities")
	}
	c, ok := components2["cmp-1"]
	if !ok {
		t.Fatal("view mutation leaked into runtime components")
	}
	if c.Metadata["remaining"] != 10 {
		t.Error("view mutation leaked into component metadata")
	}
}

func TestSummaryCountsActiveComponents(t *testing.T) {
	rt, _ := newTestRuntime()
	rt.RegisterComponent(types.Component{ID: "cmp-1", Type: "timer"})
	rt.RegisterComponent(types.Component{ID: "cmp-2", Type: "player"})
	rt.UpdateComponent("cmp-1", nil, true)
	rt.RegisterEntity("ent-a", "top")

	s := rt.Summary()
	if s.Components != 2 || s.ActiveComponents != 1 || s.OpenEntities != 1 {
		t.Errorf("Unexpected summary: %+v", s)
	}
	if !rt.HasActiveComponent() {
		t.Error("Expected an active component")
	}
}

func TestResetTransient(t *testing.T) {
	rt, _ := newTestRuntime()
	rt.RegisterComponent(types.Component{
		ID:       "cmp-1",
		Type:     "timer",
		Metadata: map[string]interface{}{"remaining": 10},
	})
	rt.UpdateComponent("cmp-1", nil, true)

	rt.ResetTransient()

	_, components, _ := rt.View()
	c := components["cmp-1"]
	if c.IsActive {
		t.Error("activity flag should be cleared")
	}
	if len(c.Metadata) != 0 {
		t.Errorf("metadata should be cleared, got %v", c.Metadata)
	}
	// Registration itself survives
	if len(components) != 1 {
		t.Error("component should stay registered through a reset")
	}
}

func TestMergePreservesLiveState(t *testing.T) {
	rt, _ := newTestRuntime()
	rt.RegisterEntity("ent-live", "top")
	rt.RegisterComponent(types.Component{ID: "cmp-live", Type: "timer"})

	merged := rt.Merge(
		[]types.OpenEntity{
			{EntityID: "ent-live", Anchor: "stale-anchor"},
			{EntityID: "ent-old", Anchor: "top"},
		},
		map[string]types.Component{
			"cmp-live": {ID: "cmp-live", Type: "timer", IsActive: true},
			"cmp-old":  {ID: "cmp-old", Type: "player"},
		},
	)

	if len(merged) != 2 {
		t.Fatalf("Expected 2 merged ids, got %v", merged)
	}

	entities, components, _ := rt.View()
	if len(entities) != 2 || len(components) != 2 {
		t.Fatalf("Expected 2 entities and 2 components, got %d/%d", len(entities), len(components))
	}
	// Live entries win over their snapshot versions
	if entities[0].Anchor != "top" {
		t.Error("live entity anchor should not be overwritten by the snapshot")
	}
	if components["cmp-live"].IsActive {
		t.Error("live component should not be overwritten by the snapshot")
	}
}

func TestApplySetsContentLatch(t *testing.T) {
	rt, _ := newTestRuntime()

	rt.Apply(nil, nil, types.Camera{})
	if rt.HadContent() {
		t.Error("empty apply should not set the content latch")
	}

	rt.Apply([]types.OpenEntity{{EntityID: "ent-a"}}, nil, types.Camera{})
	if !rt.HadContent() {
		t.Error("non-empty apply should set the content latch")
	}
}

func TestRevisionMonotonic(t *testing.T) {
	rt, _ := newTestRuntime()

	rt.SeedRevision(7)
	if rev := rt.NextRevision(); rev != 8 {
		t.Errorf("Expected revision 8 after seed 7, got %d", rev)
	}
	if rev := rt.NextRevision(); rev != 9 {
		t.Errorf("Expected revision 9, got %d", rev)
	}
}

func TestWaitQuiescent(t *testing.T) {
	rt, _ := newTestRuntime()

	// Idle runtime is immediately quiescent
	if !rt.WaitQuiescent(10 * time.Millisecond) {
		t.Error("idle runtime should be quiescent")
	}

	// A held in-flight token forces the timeout path
	rt.inflight.Add(1)
	if rt.WaitQuiescent(5 * time.Millisecond) {
		t.Error("Expected timeout while a mutation is in flight")
	}

	// Draining unblocks the next wait
	rt.inflight.Add(-1)
	if !rt.WaitQuiescent(10 * time.Millisecond) {
		t.Error("drained runtime should be quiescent")
	}
}
