// Package server wires the quiz API together: provider manager, generation
// pipeline, router and HTTP server, with configuration hot reload.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GokulKGit/quiz-API/config"
	"github.com/GokulKGit/quiz-API/server/handlers"
	"github.com/GokulKGit/quiz-API/server/metrics"
	"github.com/GokulKGit/quiz-API/server/middleware"
	"github.com/GokulKGit/quiz-API/server/processing"
	"github.com/GokulKGit/quiz-API/server/provider"
	"github.com/GokulKGit/quiz-API/server/routing"
	"github.com/GokulKGit/quiz-API/server/validation"
)

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	watcher    config.Watcher
	logger     *zap.Logger

	metrics   *metrics.Metrics
	manager   *provider.Manager
	processor *processing.Processor
	queue     *middleware.QueueMiddleware

	mu   sync.Mutex
	addr net.Addr
}

// Option configures a Server.
type Option func(*options)

type options struct {
	providers map[string]provider.Generator
}

// WithProviders installs the given generators instead of building clients
// from the configuration. Used together with config.TestMode.
func WithProviders(providers map[string]provider.Generator) Option {
	return func(o *options) { o.providers = providers }
}

// NewServer builds a server from the watcher's current configuration.
func NewServer(ctx context.Context, watcher config.Watcher, logger *zap.Logger, opts ...Option) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	cfg := watcher.GetCurrentConfig()
	if cfg == nil {
		return nil, fmt.Errorf("no configuration available")
	}

	s := &Server{
		watcher: watcher,
		logger:  logger,
		metrics: metrics.NewMetrics(),
	}

	manager, err := provider.NewManager(ctx, cfg, logger, s.metrics.Registry())
	if err != nil {
		return nil, fmt.Errorf("create provider manager: %w", err)
	}
	if o.providers != nil {
		if err := manager.SetProviders(o.providers); err != nil {
			return nil, fmt.Errorf("install providers: %w", err)
		}
	}
	s.manager = manager

	procOpts := []processing.Option{processing.WithMetrics(s.metrics)}
	if cfg.LLM.TokenizerModel != "" {
		tc, err := validation.NewTokenCounter(cfg.LLM.TokenizerModel)
		if err != nil {
			return nil, fmt.Errorf("create token counter: %w", err)
		}
		procOpts = append(procOpts, processing.WithTokenCounter(tc))
	}
	s.processor, err = processing.NewProcessor(cfg, manager, logger, procOpts...)
	if err != nil {
		return nil, fmt.Errorf("create processor: %w", err)
	}

	if cfg.Queue.Enabled {
		s.queue = middleware.NewQueueMiddleware(middleware.QueueConfig{
			MaxConcurrent: cfg.Queue.MaxConcurrent,
			MaxSize:       cfg.Queue.MaxSize,
			Metrics:       s.metrics,
		})
	}

	router := routing.NewRouter(cfg, s.handlers(cfg), logger, routing.Options{
		Metrics:        s.metrics,
		Queue:          s.queue,
		RequestTimeout: cfg.Server.RequestTimeout,
	})

	s.httpServer = &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        router,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	return s, nil
}

func (s *Server) handlers(cfg *config.Config) map[string]http.Handler {
	question := func(c processing.Category) http.Handler {
		return handlers.NewQuestionHandler(c, s.processor, s.logger,
			handlers.WithMaxBodyBytes(cfg.Server.MaxBodyBytes),
			handlers.WithTimeout(cfg.LLM.Timeout),
		)
	}
	return map[string]http.Handler{
		routing.HandlerHome:         handlers.Home(s.logger),
		routing.HandlerProgramming:  question(processing.Programming),
		routing.HandlerLogical:      question(processing.LogicalReasoning),
		routing.HandlerQuantitative: question(processing.QuantitativeAptitude),
		routing.HandlerHealth:       handlers.Health(s.manager, s.logger),
		routing.HandlerMetrics:      s.metrics.Handler(),
	}
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Addr returns the listening address once Start has bound the port.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Start listens on the configured port and blocks until ctx is cancelled or
// the server fails. Configuration updates from the watcher are applied
// while it runs.
func (s *Server) Start(ctx context.Context) error {
	updates := s.watcher.Subscribe()

	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.httpServer.Addr, err)
	}
	s.mu.Lock()
	s.addr = ln.Addr()
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("Server started", zap.String("address", ln.Addr().String()))
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()
	go s.watchConfig(watchCtx, updates)

	select {
	case <-ctx.Done():
		return s.shutdown()
	case err := <-errChan:
		return err
	}
}

func (s *Server) shutdown() error {
	timeout := s.watcher.GetCurrentConfig().Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s.logger.Info("Shutting down server", zap.Duration("timeout", timeout))
	if s.queue != nil {
		if err := s.queue.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("queue did not drain", zap.Error(err))
		}
	}
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("error during server shutdown: %w", err)
	}
	return nil
}

func (s *Server) watchConfig(ctx context.Context, updates <-chan *config.Config) {
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-updates:
			if !ok {
				return
			}
			s.Reload(ctx, cfg)
		}
	}
}

// Reload applies cfg to the running server. Generation parameters, prompt
// templates, parse policies, providers and queue limits take effect for new
// requests; a part that fails to reload keeps its previous settings. Server
// address, timeouts and routes need a restart.
func (s *Server) Reload(ctx context.Context, cfg *config.Config) {
	if err := s.processor.Reload(cfg); err != nil {
		s.logger.Error("failed to reload processing config", zap.Error(err))
	}
	if !cfg.TestMode {
		if err := s.manager.Reload(ctx, cfg); err != nil {
			s.logger.Error("failed to reload providers", zap.Error(err))
		}
	}
	if s.queue != nil && cfg.Queue.Enabled {
		s.queue.SetLimits(cfg.Queue.MaxConcurrent, cfg.Queue.MaxSize)
	}
	s.logger.Info("Configuration reloaded")
}
