// Package routing builds the chi router of the quiz API from the configured
// routes and the named handlers.
package routing

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/GokulKGit/quiz-API/config"
	"github.com/GokulKGit/quiz-API/errors"
	"github.com/GokulKGit/quiz-API/server/metrics"
	"github.com/GokulKGit/quiz-API/server/middleware"
)

// Handler names referenced by RouteConfig.Handler.
const (
	HandlerHome         = "home"
	HandlerProgramming  = "programming"
	HandlerLogical      = "logical"
	HandlerQuantitative = "quantitative"
	HandlerHealth       = "health"
	HandlerMetrics      = "metrics"
)

// isGeneration reports whether the named handler calls a provider. Those
// routes get the request timeout and the admission queue.
func isGeneration(name string) bool {
	switch name {
	case HandlerProgramming, HandlerLogical, HandlerQuantitative:
		return true
	}
	return false
}

// Options carries the optional collaborators of the router.
type Options struct {
	Metrics        *metrics.Metrics
	Queue          *middleware.QueueMiddleware
	RequestTimeout time.Duration
}

// Router handles HTTP routing for the configured routes.
type Router struct {
	router   chi.Router
	handlers map[string]http.Handler
	logger   *zap.Logger
	cfg      *config.Config
	opts     Options
}

// NewRouter creates a new router with the given configuration. Routes whose
// handler is not in handlers are logged and skipped.
func NewRouter(cfg *config.Config, handlers map[string]http.Handler, logger *zap.Logger, opts Options) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Router{
		router:   chi.NewRouter(),
		handlers: withMetricsHandler(handlers, opts.Metrics),
		logger:   logger,
		cfg:      cfg,
		opts:     opts,
	}

	// Global middleware stack
	r.router.Use(middleware.RequestID)
	r.router.Use(middleware.Tracing)
	r.router.Use(middleware.Logging(logger))
	r.router.Use(middleware.RequestTimer)
	r.router.Use(middleware.Recovery(logger))
	r.router.Use(middleware.CORS)
	if opts.Metrics != nil {
		r.router.Use(middleware.PrometheusMetrics(opts.Metrics))
	}

	r.router.NotFound(func(w http.ResponseWriter, req *http.Request) {
		errors.ErrorWithType(w, "Not found", errors.ValidationError, http.StatusNotFound)
	})
	r.router.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		errors.ErrorWithType(w, "Method not allowed", errors.ValidationError, http.StatusMethodNotAllowed)
	})

	r.setupRoutes()

	return r
}

// setupRoutes registers every configured route. Generation routes are
// grouped behind the request timeout and, when enabled, the admission queue.
func (r *Router) setupRoutes() {
	for _, route := range r.cfg.Routes {
		handler, ok := r.handlers[route.Handler]
		if !ok {
			r.logger.Error("handler not found", zap.String("handler", route.Handler))
			continue
		}

		path := route.Path
		if route.Version != "" {
			path = fmt.Sprintf("/%s%s", route.Version, path)
		}

		methods := route.Methods
		if len(methods) == 0 {
			methods = []string{http.MethodGet}
		}

		r.router.Group(func(router chi.Router) {
			if isGeneration(route.Handler) {
				if r.opts.Queue != nil {
					router.Use(r.opts.Queue.Handler)
				}
				router.Use(middleware.Timeout(r.opts.RequestTimeout))
			}

			for _, method := range methods {
				router.Method(strings.ToUpper(method), path, handler)
			}
		})

		r.logger.Debug("route registered",
			zap.String("path", path),
			zap.String("handler", route.Handler),
			zap.Strings("methods", methods),
		)
	}
}

// ServeHTTP implements the http.Handler interface.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.router.ServeHTTP(w, req)
}
