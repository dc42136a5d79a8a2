package provider

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/GokulKGit/quiz-API/config"
	"github.com/GokulKGit/quiz-API/server/circuitbreaker"
)

var (
	// ErrNoHealthyProvider indicates that no healthy provider is available
	ErrNoHealthyProvider = errors.New("no healthy provider available")

	// ErrNoProviders indicates that no provider is configured
	ErrNoProviders = errors.New("no providers configured")
)

// HealthStatus is the last observed outcome of a provider.
type HealthStatus struct {
	Healthy          bool          `json:"healthy"`
	LastCheck        time.Time     `json:"last_check"`
	ConsecutiveFails int           `json:"consecutive_fails"`
	Latency          time.Duration `json:"latency"`
	ErrorCount       int64         `json:"error_count"`
	RequestCount     int64         `json:"request_count"`
}

// Status describes a provider for the health endpoint.
type Status struct {
	Name         string       `json:"name"`
	BreakerState string       `json:"breaker_state"`
	Health       HealthStatus `json:"health"`
}

// Manager selects a provider for each prompt. Providers are tried in
// preference order; a provider whose breaker is open is skipped, while an
// error from a provider with a closed breaker is returned to the caller.
type Manager struct {
	mu         sync.RWMutex
	providers  map[string]Generator
	breakers   map[string]*circuitbreaker.CircuitBreaker
	settings   map[string]clientSettings
	preference []string
	cbConfig   config.CircuitBreakerConfig
	dedupe     bool
	timeout    time.Duration

	healthStates sync.Map // map[string]HealthStatus
	group        singleflight.Group
	logger       *zap.Logger
	registry     *prometheus.Registry

	// Metrics
	requestLatency       *prometheus.HistogramVec
	requestErrors        *prometheus.CounterVec
	deduplicatedRequests prometheus.Counter
	healthyProviders     *prometheus.GaugeVec
}

// clientSettings is everything a backend client is built from. Two equal
// values produce interchangeable clients.
type clientSettings struct {
	provider     config.ProviderConfig
	systemPrompt string
	generation   config.GenerationConfig
	safety       []config.SafetySetting
}

func newClientSettings(pc config.ProviderConfig, llm config.LLMConfig) clientSettings {
	return clientSettings{
		provider:     pc,
		systemPrompt: llm.SystemPrompt,
		generation:   llm.Generation,
		safety:       llm.SafetySettings,
	}
}

func (s clientSettings) equal(o clientSettings) bool {
	return s.provider == o.provider &&
		s.systemPrompt == o.systemPrompt &&
		s.generation == o.generation &&
		slices.Equal(s.safety, o.safety)
}

// NewManager creates a provider manager from cfg. In test mode no backend
// clients are created; tests install them with SetProviders.
func NewManager(ctx context.Context, cfg *config.Config, logger *zap.Logger, registry *prometheus.Registry) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{
		providers: make(map[string]Generator),
		breakers:  make(map[string]*circuitbreaker.CircuitBreaker),
		logger:    logger,
		registry:  registry,
	}
	m.initializeMetrics(registry)

	if cfg.TestMode {
		m.mu.Lock()
		m.applySettings(cfg)
		m.mu.Unlock()
		return m, nil
	}

	if err := m.Reload(ctx, cfg); err != nil {
		return nil, err
	}
	return m, nil
}

// initializeMetrics sets up Prometheus metrics
func (m *Manager) initializeMetrics(registry *prometheus.Registry) {
	m.requestLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "quiz_provider_request_latency_seconds",
		Help:    "Latency of provider requests",
		Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
	}, []string{"provider"})

	m.requestErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quiz_provider_errors_total",
		Help: "Number of failed provider requests",
	}, []string{"provider"})

	m.deduplicatedRequests = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "quiz_deduplicated_requests_total",
		Help: "Number of deduplicated requests",
	})

	m.healthyProviders = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "quiz_healthy_providers",
		Help: "Whether the last request to a provider succeeded",
	}, []string{"provider"})

	if registry != nil {
		registry.MustRegister(m.requestLatency)
		registry.MustRegister(m.requestErrors)
		registry.MustRegister(m.deduplicatedRequests)
		registry.MustRegister(m.healthyProviders)
	}
}

// Reload builds the backends named in cfg and swaps them in. Providers
// whose client settings are unchanged keep their client, and also their
// breaker and health state unless the breaker settings changed. If any
// backend fails to initialize the current set is kept.
func (m *Manager) Reload(ctx context.Context, cfg *config.Config) error {
	configs := cfg.ProviderConfigs()
	next := make(map[string]clientSettings, len(configs))
	providers := make(map[string]Generator, len(configs))
	kept := make(map[string]*circuitbreaker.CircuitBreaker)

	m.mu.RLock()
	sameBreakers := m.cbConfig == cfg.CircuitBreaker
	for _, name := range cfg.Preference() {
		pc, ok := configs[name]
		if !ok {
			m.mu.RUnlock()
			return fmt.Errorf("provider %s is in the preference list but not configured", name)
		}
		s := newClientSettings(pc, cfg.LLM)
		next[name] = s
		if old, ok := m.settings[name]; ok && old.equal(s) && m.providers[name] != nil {
			providers[name] = m.providers[name]
			if sameBreakers {
				kept[name] = m.breakers[name]
			}
		}
	}
	m.mu.RUnlock()

	for _, name := range cfg.Preference() {
		if _, ok := providers[name]; ok {
			continue
		}
		p, err := New(ctx, name, next[name].provider, cfg.LLM)
		if err != nil {
			return fmt.Errorf("failed to initialize provider %s: %w", name, err)
		}
		providers[name] = p
	}
	if len(providers) == 0 {
		return ErrNoProviders
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.applySettings(cfg)
	m.breakers = make(map[string]*circuitbreaker.CircuitBreaker, len(providers))
	m.providers = make(map[string]Generator, len(providers))
	for name, p := range providers {
		if cb, ok := kept[name]; ok {
			m.providers[name] = p
			m.breakers[name] = cb
			continue
		}
		if err := m.addProviderLocked(name, p); err != nil {
			return err
		}
	}
	m.settings = next

	m.logger.Info("Providers initialized",
		zap.Strings("preference", m.preference),
		zap.Int("reused", len(kept)),
		zap.Bool("dedupe_in_flight", m.dedupe),
	)
	return nil
}

func (m *Manager) applySettings(cfg *config.Config) {
	m.preference = append([]string(nil), cfg.Preference()...)
	m.cbConfig = cfg.CircuitBreaker
	m.dedupe = cfg.LLM.DedupeInFlight
	m.timeout = cfg.LLM.Timeout
}

func (m *Manager) addProviderLocked(name string, p Generator) error {
	cb, err := circuitbreaker.NewCircuitBreaker(circuitbreaker.Config{
		Name:             name,
		MaxRequests:      m.cbConfig.MaxRequests,
		Interval:         m.cbConfig.Interval,
		Timeout:          m.cbConfig.Timeout,
		FailureThreshold: m.cbConfig.FailureThreshold,
		TestMode:         m.cbConfig.TestMode,
	}, m.logger.With(zap.String("provider", name)), m.registry)
	if err != nil {
		return fmt.Errorf("failed to create circuit breaker for %s: %w", name, err)
	}

	m.providers[name] = p
	m.breakers[name] = cb
	m.healthStates.Store(name, HealthStatus{Healthy: true})
	m.healthyProviders.WithLabelValues(name).Set(1)
	return nil
}

// SetProviders replaces the current providers with new ones (for testing)
func (m *Manager) SetProviders(providers map[string]Generator) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.settings = nil
	m.providers = make(map[string]Generator, len(providers))
	m.breakers = make(map[string]*circuitbreaker.CircuitBreaker, len(providers))
	for name, p := range providers {
		if err := m.addProviderLocked(name, p); err != nil {
			return err
		}
	}
	return nil
}

// Generate sends prompt to the first available provider. With in-flight
// deduplication enabled, identical concurrent prompts share one call. The
// shared call is not cancelled when a caller leaves, but it is still
// bounded by the configured generation timeout.
func (m *Manager) Generate(ctx context.Context, prompt string) (string, error) {
	m.mu.RLock()
	dedupe, timeout := m.dedupe, m.timeout
	m.mu.RUnlock()

	if !dedupe {
		return m.generate(ctx, prompt)
	}

	ch := m.group.DoChan(prompt, func() (interface{}, error) {
		shared := context.WithoutCancel(ctx)
		if timeout > 0 {
			var cancel context.CancelFunc
			shared, cancel = context.WithTimeout(shared, timeout)
			defer cancel()
		}
		return m.generate(shared, prompt)
	})
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Shared {
			m.deduplicatedRequests.Inc()
		}
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (m *Manager) generate(ctx context.Context, prompt string) (string, error) {
	preference := m.getProviderPreference()
	if len(preference) == 0 {
		return "", ErrNoProviders
	}

	var lastErr error
	for i, name := range preference {
		p, breaker := m.getProviderResources(name)
		if p == nil || breaker == nil {
			continue
		}

		reply, err := m.executeOperation(ctx, p, breaker, prompt)
		if err == nil {
			return reply, nil
		}
		lastErr = err

		if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
			m.logger.Debug("Skipping provider with open circuit", zap.String("provider", name))
			continue
		}

		// A failure that just tripped the breaker moves on to the next
		// provider; otherwise the provider's error is final for this request.
		if breaker.State() == gobreaker.StateOpen && i < len(preference)-1 {
			m.logger.Warn("Provider circuit opened, failing over",
				zap.String("provider", name),
				zap.Error(err),
			)
			continue
		}
		return "", err
	}

	if lastErr == nil || errors.Is(lastErr, circuitbreaker.ErrCircuitOpen) {
		return "", ErrNoHealthyProvider
	}
	return "", lastErr
}

// executeOperation runs one attempt against a provider and records its outcome.
func (m *Manager) executeOperation(ctx context.Context, p Generator, breaker *circuitbreaker.CircuitBreaker, prompt string) (string, error) {
	name := p.Name()
	start := time.Now()

	var reply string
	err := breaker.Execute(func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		var genErr error
		reply, genErr = p.Generate(ctx, prompt)
		return genErr
	})
	if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
		return "", err
	}

	duration := time.Since(start)
	m.requestLatency.WithLabelValues(name).Observe(duration.Seconds())

	status := m.GetHealthStatus(name)
	status.LastCheck = time.Now()
	status.Latency = duration
	status.RequestCount++
	if err != nil {
		status.Healthy = false
		status.ErrorCount++
		status.ConsecutiveFails = int(breaker.Counts().ConsecutiveFailures)
		m.requestErrors.WithLabelValues(name).Inc()
		m.logger.Debug("operation failed",
			zap.String("provider", name),
			zap.Error(err),
			zap.Duration("duration", duration),
			zap.String("breaker_state", breaker.State().String()),
		)
	} else {
		status.Healthy = true
		status.ConsecutiveFails = 0
	}
	m.UpdateHealthStatus(name, status)

	return reply, err
}

// getProviderPreference safely retrieves the current provider preference list
func (m *Manager) getProviderPreference() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.preference...)
}

// getProviderResources safely retrieves provider-related resources
func (m *Manager) getProviderResources(name string) (Generator, *circuitbreaker.CircuitBreaker) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.providers[name], m.breakers[name]
}

// GetHealthStatus returns the health status for a provider
func (m *Manager) GetHealthStatus(name string) HealthStatus {
	if val, ok := m.healthStates.Load(name); ok {
		return val.(HealthStatus)
	}
	return HealthStatus{}
}

// UpdateHealthStatus updates the health status for a provider
func (m *Manager) UpdateHealthStatus(name string, status HealthStatus) {
	m.healthStates.Store(name, status)
	if status.Healthy {
		m.healthyProviders.WithLabelValues(name).Set(1)
	} else {
		m.healthyProviders.WithLabelValues(name).Set(0)
	}
}

// Statuses reports every provider in preference order.
func (m *Manager) Statuses() []Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.providers))
	seen := make(map[string]bool, len(m.providers))
	for _, name := range m.preference {
		if _, ok := m.providers[name]; ok && !seen[name] {
			names = append(names, name)
			seen[name] = true
		}
	}
	var rest []string
	for name := range m.providers {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	names = append(names, rest...)

	out := make([]Status, 0, len(names))
	for _, name := range names {
		out = append(out, Status{
			Name:         name,
			BreakerState: m.breakers[name].State().String(),
			Health:       m.GetHealthStatus(name),
		})
	}
	return out
}

// Healthy reports whether at least one provider can take requests.
func (m *Manager) Healthy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, b := range m.breakers {
		if b.State() != gobreaker.StateOpen {
			return true
		}
	}
	return false
}
