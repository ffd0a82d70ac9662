package clients

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testBreaker returns a breaker on a manual clock.
func testBreaker(maxFailures, halfOpen int) (*CircuitBreaker, *time.Time) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	cb := NewCircuitBreaker(CircuitBreakerConfig{
		MaxFailures:   maxFailures,
		Timeout:       100 * time.Millisecond,
		HalfOpenLimit: halfOpen,
	})
	cb.now = func() time.Time { return now }

	return cb, &now
}

func TestCircuitBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	cb, _ := testBreaker(3, 2)

	assert.Equal(t, StateClosed, cb.State())
	assert.True(t, cb.Allow())

	cb.RecordFailure()
	cb.RecordFailure()
	cb.RecordSuccess()
	cb.RecordFailure()
	cb.RecordFailure()
	assert.Equal(t, StateClosed, cb.State(), "a success resets the count")

	cb.RecordFailure()
	assert.Equal(t, StateOpen, cb.State())
	assert.False(t, cb.Allow())
}

func TestCircuitBreaker_HalfOpen(t *testing.T) {
	t.Run("trial requests close the circuit", func(t *testing.T) {
		cb, now := testBreaker(1, 2)

		cb.RecordFailure()
		*now = now.Add(150 * time.Millisecond)

		assert.True(t, cb.Allow())
		assert.Equal(t, StateHalfOpen, cb.State())
		assert.True(t, cb.Allow())
		assert.False(t, cb.Allow(), "trial requests are limited")

		cb.RecordSuccess()
		assert.Equal(t, StateHalfOpen, cb.State())

		cb.RecordSuccess()
		assert.Equal(t, StateClosed, cb.State())
	})

	t.Run("a failed trial request reopens", func(t *testing.T) {
		cb, now := testBreaker(1, 2)

		cb.RecordFailure()
		*now = now.Add(150 * time.Millisecond)
		cb.Allow()

		cb.RecordFailure()
		assert.Equal(t, StateOpen, cb.State())
		assert.Equal(t, 1, cb.Snapshot().Failures)
	})
}

func TestCircuitBreaker_Snapshot(t *testing.T) {
	cb, now := testBreaker(2, 1)

	cb.RecordFailure()

	s := cb.Snapshot()
	assert.Equal(t, StateClosed, s.State)
	assert.Equal(t, 1, s.Failures)
	assert.True(t, s.RetryAt.IsZero())

	cb.RecordFailure()

	s = cb.Snapshot()
	assert.Equal(t, StateOpen, s.State)
	assert.Equal(t, 2, s.Failures, "the count that opened the circuit is kept")
	assert.Equal(t, now.Add(100*time.Millisecond), s.RetryAt)

	*now = now.Add(150 * time.Millisecond)
	require.True(t, cb.Allow())
	assert.Zero(t, cb.Snapshot().Failures)
}

func TestCircuitBreaker_OnStateChange(t *testing.T) {
	type transition struct{ from, to State }

	got := make(chan transition, 1)

	cb := NewCircuitBreaker(CircuitBreakerConfig{MaxFailures: 1, Timeout: time.Second, HalfOpenLimit: 1})
	cb.OnStateChange(func(from, to State) { got <- transition{from, to} })

	cb.RecordFailure()

	select {
	case tr := <-got:
		assert.Equal(t, transition{StateClosed, StateOpen}, tr)
	case <-time.After(time.Second):
		require.Fail(t, "state change callback not called")
	}
}

func TestCircuitBreaker_Concurrent(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{MaxFailures: 100, Timeout: time.Second, HalfOpenLimit: 10})

	var (
		wg     sync.WaitGroup
		allows atomic.Int64
	)

	for range 1000 {
		wg.Go(func() {
			if !cb.Allow() {
				return
			}

			if allows.Add(1)%2 == 0 {
				cb.RecordSuccess()
			} else {
				cb.RecordFailure()
			}
		})
	}

	wg.Wait()

	assert.Contains(t, []State{StateClosed, StateOpen, StateHalfOpen}, cb.State())
}

func TestState_String(t *testing.T) {
	for state, want := range map[State]string{
		StateClosed:   "closed",
		StateOpen:     "open",
		StateHalfOpen: "half-open",
		State(99):     "unknown",
	} {
		assert.Equal(t, want, state.String())
	}
}
