package eviction

import (
	"testing"
	"time"

	"github.com/slateos/backend/internal/shared/types"
)

func TestScorePinnedIsProtected(t *testing.T) {
	p := New(DefaultWeights(), 30*time.Minute)

	score := p.Score(types.RuntimeSummary{ID: "ctx-a", IsPinned: true}, 1000)
	if score != Protected {
		t.Errorf("Expected Protected sentinel, got %v", score)
	}
}

func TestScoreComponents(t *testing.T) {
	p := New(DefaultWeights(), 30*time.Minute)
	now := int64(30 * time.Minute) // past the recency window for t=0 stamps

	tests := []struct {
		name     string
		summary  types.RuntimeSummary
		expected float64
	}{
		{"empty never-visible", types.RuntimeSummary{ID: "a"}, 0},
		{"default only", types.RuntimeSummary{ID: "a", IsDefault: true}, 200},
		{"three components", types.RuntimeSummary{ID: "a", Components: 3}, 130},
		{"active work", types.RuntimeSummary{ID: "a", Components: 1, ActiveComponents: 1}, 610},
		{"default with content", types.RuntimeSummary{ID: "a", IsDefault: true, Components: 2}, 320},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.Score(tt.summary, now); got != tt.expected {
				t.Errorf("Expected score %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestRecencyDecaysLinearly(t *testing.T) {
	window := 10 * time.Minute
	p := New(DefaultWeights(), window)

	shownAt := int64(time.Minute)

	// Just shown: full recency credit
	if got := p.Score(types.RuntimeSummary{ID: "a", LastVisibleAt: shownAt}, shownAt); got != 100 {
		t.Errorf("Expected 100 at zero age, got %v", got)
	}

	// Halfway through the window: half credit
	halfway := shownAt + int64(window)/2
	if got := p.Score(types.RuntimeSummary{ID: "a", LastVisibleAt: shownAt}, halfway); got != 50 {
		t.Errorf("Expected 50 at half window, got %v", got)
	}

	// Past the window: no credit
	stale := shownAt + int64(window)
	if got := p.Score(types.RuntimeSummary{ID: "a", LastVisibleAt: shownAt}, stale); got != 0 {
		t.Errorf("Expected 0 past window, got %v", got)
	}

	// Never shown: no credit even at now=0
	if got := p.Score(types.RuntimeSummary{ID: "a"}, 0); got != 0 {
		t.Errorf("Expected 0 for never-visible, got %v", got)
	}
}

func TestSelectVictimLowestScore(t *testing.T) {
	p := New(DefaultWeights(), 30*time.Minute)
	now := int64(time.Hour)

	candidates := []types.RuntimeSummary{
		{ID: "busy", Components: 2, ActiveComponents: 1},
		{ID: "idle"},
		{ID: "default", IsDefault: true},
	}

	victim, ok := p.SelectVictim(candidates, now)
	if !ok {
		t.Fatal("Expected a victim")
	}
	if victim != "idle" {
		t.Errorf("Expected idle as victim, got %s", victim)
	}
}

// A runtime with a long-running active component outscores an empty one
// regardless of which was shown more recently.
func TestActiveWorkOutlivesRecency(t *testing.T) {
	p := New(DefaultWeights(), 30*time.Minute)
	now := int64(time.Hour)

	candidates := []types.RuntimeSummary{
		{ID: "timer", Components: 1, ActiveComponents: 1, LastVisibleAt: now - int64(29*time.Minute)},
		{ID: "scratch", LastVisibleAt: now - int64(time.Minute)},
	}

	victim, ok := p.SelectVictim(candidates, now)
	if !ok {
		t.Fatal("Expected a victim")
	}
	if victim != "scratch" {
		t.Errorf("Expected scratch as victim, got %s", victim)
	}
}

func TestSelectVictimSkipsVisibleAndPinned(t *testing.T) {
	p := New(DefaultWeights(), 30*time.Minute)

	candidates := []types.RuntimeSummary{
		{ID: "shown", IsVisible: true},
		{ID: "kept", IsPinned: true},
	}

	if victim, ok := p.SelectVictim(candidates, 1000); ok {
		t.Errorf("Expected no eligible victim, got %s", victim)
	}
}

func TestSelectVictimTieBreaksOldest(t *testing.T) {
	p := New(DefaultWeights(), 30*time.Minute)
	now := int64(2 * time.Hour)

	// Both idle and both past the recency window: identical scores
	candidates := []types.RuntimeSummary{
		{ID: "newer", LastVisibleAt: now - int64(time.Hour)},
		{ID: "older", LastVisibleAt: now - int64(90*time.Minute)},
	}

	victim, ok := p.SelectVictim(candidates, now)
	if !ok {
		t.Fatal("Expected a victim")
	}
	if victim != "older" {
		t.Errorf("Expected older as tie-break victim, got %s", victim)
	}
}

func TestSelectVictimEmptyCandidates(t *testing.T) {
	p := New(DefaultWeights(), 30*time.Minute)

	if _, ok := p.SelectVictim(nil, 1000); ok {
		t.Error("Expected no victim from empty candidate set")
	}
}
