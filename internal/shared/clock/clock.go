// Package clock provides the monotonic clock source used for every
// logical timestamp in the runtime manager.
//
// All *UpdatedAt stamps, ownership claims, and the eviction recency score
// read the same clock, so stale-write comparisons are total-ordered within
// one process. Readings are nanoseconds since process start and never 0
// (0 is reserved for "never").
package clock

import (
	"sync"
	"time"
)

// Clock yields monotonic nanosecond readings
type Clock interface {
	Now() int64
}

// Monotonic is the production clock, backed by the runtime's monotonic
// time source
type Monotonic struct {
	start time.Time
}

// NewMonotonic creates a clock anchored at the current instant
func NewMonotonic() *Monotonic {
	return &Monotonic{start: time.Now()}
}

// Now returns nanoseconds elapsed since the clock was created, always >= 1
func (m *Monotonic) Now() int64 {
	ns := int64(time.Since(m.start))
	if ns < 1 {
		return 1
	}
	return ns
}

// Manual is a hand-driven clock for tests
type Manual struct {
	mu  sync.Mutex
	now int64
}

// NewManual creates a manual clock starting at the given reading
func NewManual(start int64) *Manual {
	return &Manual{now: start}
}

// Now returns the current manual reading
func (m *Manual) Now() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Advance moves the clock forward by d
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now += int64(d)
}

// Set forces the clock to an absolute reading
func (m *Manual) Set(ns int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = ns
}
