package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestCircuitBreaker(t *testing.T) {
	logger := zaptest.NewLogger(t)
	registry := prometheus.NewRegistry()

	// Helper function to create a new circuit breaker for each test
	newCB := func() (*CircuitBreaker, error) {
		return NewCircuitBreaker(Config{
			Name:             "test",
			MaxRequests:      1,
			Interval:         time.Second,
			Timeout:          100 * time.Millisecond,
			FailureThreshold: 2,
			TestMode:         true,
		}, logger, registry)
	}

	t.Run("Initially Closed", func(t *testing.T) {
		cb, err := newCB()
		require.NoError(t, err)
		assert.Equal(t, gobreaker.StateClosed, cb.State())
	})

	t.Run("Opens After Failures", func(t *testing.T) {
		cb, err := newCB()
		require.NoError(t, err)

		err = cb.Execute(func() error {
			return errors.New("error 1")
		})
		assert.Error(t, err)
		assert.Equal(t, gobreaker.StateClosed, cb.State())

		// Second failure - should trip
		err = cb.Execute(func() error {
			return errors.New("error 2")
		})
		assert.EqualError(t, err, "error 2")
		assert.Equal(t, gobreaker.StateOpen, cb.State())

		called := false
		err = cb.Execute(func() error {
			called = true
			return nil
		})
		assert.ErrorIs(t, err, ErrCircuitOpen)
		assert.False(t, called)
	})

	t.Run("Transitions to Half-Open", func(t *testing.T) {
		cb, err := newCB()
		require.NoError(t, err)

		for i := 0; i < 2; i++ {
			assert.Error(t, cb.Execute(func() error {
				return errors.New("failure")
			}))
		}
		assert.Equal(t, gobreaker.StateOpen, cb.State())

		time.Sleep(150 * time.Millisecond)
		assert.Equal(t, gobreaker.StateHalfOpen, cb.State())

		// Fail the probe request
		err = cb.Execute(func() error {
			return errors.New("failure in half-open")
		})
		assert.Error(t, err)
		assert.Equal(t, gobreaker.StateOpen, cb.State())
	})

	t.Run("Closes After Success", func(t *testing.T) {
		cb, err := newCB()
		require.NoError(t, err)

		for i := 0; i < 2; i++ {
			assert.Error(t, cb.Execute(func() error {
				return errors.New("failure")
			}))
		}
		assert.Equal(t, gobreaker.StateOpen, cb.State())

		time.Sleep(150 * time.Millisecond)
		assert.Equal(t, gobreaker.StateHalfOpen, cb.State())

		err = cb.Execute(func() error {
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, gobreaker.StateClosed, cb.State())
	})

	t.Run("Maintains Failure Count", func(t *testing.T) {
		cb, err := newCB()
		require.NoError(t, err)

		for i := 0; i < 3; i++ {
			_ = cb.Execute(func() error {
				if i%2 == 0 {
					return errors.New("failure")
				}
				return nil
			})
		}

		counts := cb.Counts()
		assert.Equal(t, uint32(3), counts.Requests)
		assert.Equal(t, uint32(2), counts.TotalFailures)
		assert.Equal(t, gobreaker.StateClosed, cb.State())
	})

	t.Run("Cancellation Is Not A Failure", func(t *testing.T) {
		cb, err := newCB()
		require.NoError(t, err)

		for i := 0; i < 3; i++ {
			err := cb.Execute(func() error {
				return context.Canceled
			})
			assert.ErrorIs(t, err, context.Canceled)
		}
		assert.Equal(t, gobreaker.StateClosed, cb.State())
	})
}

func TestCircuitBreakerMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	cfg := Config{
		Name:             "gemini",
		MaxRequests:      1,
		Interval:         time.Second,
		Timeout:          time.Minute,
		FailureThreshold: 1,
	}

	cb, err := NewCircuitBreaker(cfg, zaptest.NewLogger(t), registry)
	require.NoError(t, err)
	assert.Equal(t, float64(gobreaker.StateClosed), testutil.ToFloat64(cb.stateGauge))

	_ = cb.Execute(func() error { return errors.New("boom") })
	assert.Equal(t, float64(gobreaker.StateOpen), testutil.ToFloat64(cb.stateGauge))
	assert.Equal(t, float64(1), testutil.ToFloat64(cb.tripsTotal))

	// Recreating a breaker on reload must not fail on duplicate registration.
	again, err := NewCircuitBreaker(cfg, zaptest.NewLogger(t), registry)
	require.NoError(t, err)
	assert.Equal(t, float64(gobreaker.StateClosed), testutil.ToFloat64(again.stateGauge))
}

func TestNewCircuitBreakerRequiresName(t *testing.T) {
	_, err := NewCircuitBreaker(Config{}, zaptest.NewLogger(t), nil)
	assert.Error(t, err)
}
