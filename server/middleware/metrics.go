package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/GokulKGit/quiz-API/server/metrics"
)

// PrometheusMetrics middleware records HTTP metrics using Prometheus.
// Requests are labelled by route pattern so path parameters do not inflate
// label cardinality.
func PrometheusMetrics(m *metrics.Metrics) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			m.ActiveRequests.WithLabelValues("in_flight").Inc()
			defer m.ActiveRequests.WithLabelValues("in_flight").Dec()

			rw := NewResponseWriter(w)
			next.ServeHTTP(rw, r)

			endpoint := routePattern(r)
			status := strconv.Itoa(rw.Status())

			m.RequestsTotal.WithLabelValues(endpoint, status).Inc()
			m.RequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())

			if rw.Status() >= 500 {
				m.ErrorsTotal.WithLabelValues("server_error").Inc()
			} else if rw.Status() >= 400 {
				m.ErrorsTotal.WithLabelValues("client_error").Inc()
			}
		})
	}
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}
