package resilience

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errWrite = errors.New("write failed")

// exec pushes one outcome through the breaker
func exec(b *Breaker, success bool) error {
	_, err := b.Execute(func() (interface{}, error) {
		if success {
			return nil, nil
		}
		return nil, errWrite
	})
	return err
}

func TestBreakerStateTransitions(t *testing.T) {
	tripAfterTwo := func(counts Counts) bool {
		return counts.ConsecutiveFailures >= 2
	}

	tests := []struct {
		name     string
		settings Settings
		outcomes []bool
		expected State
	}{
		{
			name:     "stays closed while saves succeed",
			settings: Settings{},
			outcomes: []bool{true, true, true},
			expected: StateClosed,
		},
		{
			name:     "a lone failure does not trip",
			settings: Settings{ReadyToTrip: tripAfterTwo},
			outcomes: []bool{false, true, false},
			expected: StateClosed,
		},
		{
			name:     "opens on consecutive failures",
			settings: Settings{ReadyToTrip: tripAfterTwo},
			outcomes: []bool{true, false, false},
			expected: StateOpen,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			breaker := New("snapshot-gateway", tt.settings)
			for _, success := range tt.outcomes {
				_ = exec(breaker, success)
			}
			assert.Equal(t, tt.expected, breaker.State())
		})
	}
}

func TestBreakerDefaultTripThreshold(t *testing.T) {
	breaker := New("snapshot-gateway", Settings{})

	for i := 0; i < 4; i++ {
		_ = exec(breaker, false)
	}
	require.Equal(t, StateClosed, breaker.State(), "four failures stay under the default threshold")

	_ = exec(breaker, false)
	assert.Equal(t, StateOpen, breaker.State())
}

func TestBreakerCounts(t *testing.T) {
	breaker := New("snapshot-gateway", Settings{})

	require.NoError(t, exec(breaker, true))

	counts := breaker.Counts()
	assert.Equal(t, uint32(1), counts.Requests)
	assert.Equal(t, uint32(1), counts.TotalSuccesses)
	assert.Equal(t, uint32(1), counts.ConsecutiveSuccesses)
	assert.Equal(t, uint32(0), counts.TotalFailures)

	require.ErrorIs(t, exec(breaker, false), errWrite)

	counts = breaker.Counts()
	assert.Equal(t, uint32(2), counts.Requests)
	assert.Equal(t, uint32(1), counts.TotalFailures)
	assert.Equal(t, uint32(1), counts.ConsecutiveFailures)
	assert.Equal(t, uint32(0), counts.ConsecutiveSuccesses)
}

func TestBreakerOpenFailsFast(t *testing.T) {
	breaker := New("snapshot-gateway", Settings{
		ReadyToTrip: func(counts Counts) bool {
			return counts.ConsecutiveFailures >= 2
		},
	})

	_ = exec(breaker, false)
	_ = exec(breaker, false)
	require.Equal(t, StateOpen, breaker.State())

	// The underlying op must not run at all while open
	ran := false
	_, err := breaker.Execute(func() (interface{}, error) {
		ran = true
		return nil, nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, ran)
}

func TestBreakerRecoversThroughHalfOpen(t *testing.T) {
	breaker := New("snapshot-gateway", Settings{
		MaxRequests: 2,
		Timeout:     50 * time.Millisecond,
		ReadyToTrip: func(counts Counts) bool {
			return counts.ConsecutiveFailures >= 2
		},
	})

	_ = exec(breaker, false)
	_ = exec(breaker, false)
	require.Equal(t, StateOpen, breaker.State())

	time.Sleep(60 * time.Millisecond)
	require.Equal(t, StateHalfOpen, breaker.State())

	// Enough successful trial calls close it again
	require.NoError(t, exec(breaker, true))
	require.NoError(t, exec(breaker, true))
	assert.Equal(t, StateClosed, breaker.State())
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	breaker := New("snapshot-gateway", Settings{
		Timeout: 10 * time.Millisecond,
		ReadyToTrip: func(counts Counts) bool {
			return counts.ConsecutiveFailures >= 1
		},
	})

	_ = exec(breaker, false)
	require.Equal(t, StateOpen, breaker.State())

	time.Sleep(20 * time.Millisecond)
	require.Equal(t, StateHalfOpen, breaker.State())

	_ = exec(breaker, false)
	assert.Equal(t, StateOpen, breaker.State())
}

func TestBreakerStateChangeCallback(t *testing.T) {
	var transitions []string

	breaker := New("snapshot-gateway", Settings{
		Timeout: 10 * time.Millisecond,
		ReadyToTrip: func(counts Counts) bool {
			return counts.ConsecutiveFailures >= 2
		},
		OnStateChange: func(name string, from, to State) {
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	})

	_ = exec(breaker, false)
	_ = exec(breaker, false)

	time.Sleep(20 * time.Millisecond)
	require.Equal(t, StateHalfOpen, breaker.State())

	assert.Contains(t, transitions, "closed->open")
	assert.Contains(t, transitions, "open->half-open")
}
