package eviction

import (
	"math"
	"time"

	"github.com/slateos/backend/internal/shared/types"
)

// Protected is the sentinel score for pinned runtimes: never evictable.
const Protected = math.MaxFloat64

// Weights are the scoring factors. They were re-tuned several times in the
// field; treat them as operator-adjustable, not contractual.
type Weights struct {
	ActiveComponent     float64 `yaml:"active_component"`
	DefaultRuntime      float64 `yaml:"default_runtime"`
	ContentBase         float64 `yaml:"content_base"`
	ContentPerComponent float64 `yaml:"content_per_component"`
	RecencyMax          float64 `yaml:"recency_max"`
}

// DefaultWeights returns the stock scoring factors
func DefaultWeights() Weights {
	return Weights{
		ActiveComponent:     500,
		DefaultRuntime:      200,
		ContentBase:         100,
		ContentPerComponent: 10,
		RecencyMax:          100,
	}
}

// Policy scores runtimes for eviction. Higher means more protected; the
// lowest-scored eligible candidate is the victim. Pure function of the
// candidate metadata, no side effects.
type Policy struct {
	weights Weights
	window  time.Duration // linear recency decay window
}

// New creates a policy with the given weights and recency window
func New(weights Weights, window time.Duration) *Policy {
	if window <= 0 {
		window = 30 * time.Minute
	}
	return &Policy{weights: weights, window: window}
}

// Score computes the protection score for a runtime at monotonic instant
// now. Pinned returns the Protected sentinel. Active background work and
// the scope's fallback context are protected ahead of plain recency, but
// neither protection is absolute: under sustained pressure they yield.
func (p *Policy) Score(s types.RuntimeSummary, now int64) float64 {
	if s.IsPinned {
		return Protected
	}

	score := 0.0
	if s.ActiveComponents > 0 {
		score += p.weights.ActiveComponent
	}
	if s.IsDefault {
		score += p.weights.DefaultRuntime
	}
	if s.Components > 0 {
		score += p.weights.ContentBase + p.weights.ContentPerComponent*float64(s.Components)
	}
	score += p.recency(s.LastVisibleAt, now)

	return score
}

// recency yields 0..RecencyMax, decaying linearly over the window.
// 0 if never visible.
func (p *Policy) recency(lastVisibleAt, now int64) float64 {
	if lastVisibleAt == 0 {
		return 0
	}
	age := now - lastVisibleAt
	if age < 0 {
		age = 0
	}
	if age >= int64(p.window) {
		return 0
	}
	return p.weights.RecencyMax * (1 - float64(age)/float64(p.window))
}

// SelectVictim picks the eviction victim among the candidates: the lowest
// score wins, ties broken by oldest LastVisibleAt. Visible and pinned
// runtimes are never eligible. Returns false when no candidate is eligible,
// which the registry surfaces as capacity exhaustion.
func (p *Policy) SelectVictim(candidates []types.RuntimeSummary, now int64) (string, bool) {
	victimID := ""
	victimScore := 0.0
	victimLastVisible := int64(0)

	for _, c := range candidates {
		if c.IsVisible || c.IsPinned {
			continue
		}
		score := p.Score(c, now)
		switch {
		case victimID == "",
			score < victimScore,
			score == victimScore && c.LastVisibleAt < victimLastVisible:
			victimID = c.ID
			victimScore = score
			victimLastVisible = c.LastVisibleAt
		}
	}

	return victimID, victimID != ""
}
