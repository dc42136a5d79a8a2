// Package circuitbreaker guards calls to a generation provider so that a
// failing provider is skipped for a cool-down period instead of being hit
// by every request.
package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// Config holds configuration for the circuit breaker
type Config struct {
	Name             string        // Provider name, used as metric label
	MaxRequests      uint32        // Requests allowed through while half-open
	Interval         time.Duration // Cyclic period for clearing counts while closed
	Timeout          time.Duration // Time spent open before trying half-open
	FailureThreshold uint32        // Consecutive failures before opening
	TestMode         bool          // Skip metric registration in test mode
}

// CircuitBreaker wraps gobreaker with logging and a Prometheus state gauge.
type CircuitBreaker struct {
	name   string
	cb     *gobreaker.CircuitBreaker
	logger *zap.Logger

	stateGauge prometheus.Gauge
	tripsTotal prometheus.Counter
}

// NewCircuitBreaker creates a new circuit breaker. Metrics are registered
// with registry unless TestMode is set or registry is nil; a breaker
// recreated under the same name reuses the existing collectors.
func NewCircuitBreaker(cfg Config, logger *zap.Logger, registry *prometheus.Registry) (*CircuitBreaker, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("circuit breaker name is required")
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	b := &CircuitBreaker{
		name:   cfg.Name,
		logger: logger,
		stateGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "quiz_circuit_breaker_state",
			Help:        "Current state of the circuit breaker (0=closed, 1=half-open, 2=open)",
			ConstLabels: prometheus.Labels{"name": cfg.Name},
		}),
		tripsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "quiz_circuit_breaker_trips_total",
			Help:        "Total number of times the circuit breaker has tripped",
			ConstLabels: prometheus.Labels{"name": cfg.Name},
		}),
	}

	if !cfg.TestMode && registry != nil {
		var err error
		if b.stateGauge, err = register(registry, b.stateGauge); err != nil {
			return nil, err
		}
		if b.tripsTotal, err = register(registry, b.tripsTotal); err != nil {
			return nil, err
		}
	}

	threshold := cfg.FailureThreshold
	b.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: b.onStateChange,
		IsSuccessful: func(err error) bool {
			// A caller giving up says nothing about the provider's health.
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
	b.stateGauge.Set(float64(gobreaker.StateClosed))

	return b, nil
}

func register[T prometheus.Collector](registry *prometheus.Registry, c T) (T, error) {
	if err := registry.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, fmt.Errorf("failed to register circuit breaker metric: %w", err)
	}
	return c, nil
}

func (b *CircuitBreaker) onStateChange(name string, from, to gobreaker.State) {
	b.stateGauge.Set(float64(to))
	if to == gobreaker.StateOpen {
		b.tripsTotal.Inc()
		b.logger.Warn("Circuit breaker tripped",
			zap.String("name", name),
			zap.String("from", from.String()),
		)
		return
	}
	b.logger.Info("Circuit breaker state changed",
		zap.String("name", name),
		zap.String("from", from.String()),
		zap.String("to", to.String()),
	)
}

// Execute runs f if the breaker allows it. When the breaker is open, or
// half-open with its probe budget spent, ErrCircuitOpen is returned and f
// is not called.
func (b *CircuitBreaker) Execute(f func() error) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, f()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrCircuitOpen
	}
	return err
}

// State returns the current state of the circuit breaker
func (b *CircuitBreaker) State() gobreaker.State {
	return b.cb.State()
}

// Counts returns the request counts of the current interval.
func (b *CircuitBreaker) Counts() gobreaker.Counts {
	return b.cb.Counts()
}

// Name returns the breaker name.
func (b *CircuitBreaker) Name() string {
	return b.name
}
