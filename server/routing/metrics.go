package routing

import (
	"net/http"

	"github.com/GokulKGit/quiz-API/server/metrics"
)

// withMetricsHandler returns handlers with the Prometheus exposition
// handler registered under HandlerMetrics, unless one is already provided.
// The input map is not modified.
func withMetricsHandler(handlers map[string]http.Handler, m *metrics.Metrics) map[string]http.Handler {
	out := make(map[string]http.Handler, len(handlers)+1)
	for name, h := range handlers {
		out[name] = h
	}
	if _, ok := out[HandlerMetrics]; !ok && m != nil {
		out[HandlerMetrics] = m.Handler()
	}
	return out
}
