package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GokulKGit/quiz-API/server/metrics"
	"github.com/GokulKGit/quiz-API/server/middleware"
)

func TestPrometheusMetrics(t *testing.T) {
	tests := []struct {
		name           string
		handler        http.HandlerFunc
		path           string
		expectedCode   int
		expectedStatus string
		errorType      string
	}{
		{
			name: "success request",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			},
			path:           "/generate-logical-questions",
			expectedCode:   http.StatusOK,
			expectedStatus: "200",
		},
		{
			name: "client error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
			},
			path:           "/generate-logical-questions",
			expectedCode:   http.StatusBadRequest,
			expectedStatus: "400",
			errorType:      "client_error",
		},
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
			path:           "/generate-logical-questions",
			expectedCode:   http.StatusInternalServerError,
			expectedStatus: "500",
			errorType:      "server_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := metrics.NewMetrics()

			r := chi.NewRouter()
			r.Use(middleware.PrometheusMetrics(m))
			r.Post(tt.path, tt.handler)

			server := httptest.NewServer(r)
			defer server.Close()

			resp, err := http.Post(server.URL+tt.path, "application/json", nil)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.expectedCode, resp.StatusCode)

			requestCount := testutil.ToFloat64(m.RequestsTotal.WithLabelValues(tt.path, tt.expectedStatus))
			assert.Equal(t, float64(1), requestCount)

			// Active requests should be 0 after the request completes
			activeRequests := testutil.ToFloat64(m.ActiveRequests.WithLabelValues("in_flight"))
			assert.Equal(t, float64(0), activeRequests)

			if tt.errorType != "" {
				errorCount := testutil.ToFloat64(m.ErrorsTotal.WithLabelValues(tt.errorType))
				assert.Equal(t, float64(1), errorCount)
			}
		})
	}
}

func TestPrometheusMetricsUnmatchedRoute(t *testing.T) {
	m := metrics.NewMetrics()

	r := chi.NewRouter()
	r.Use(middleware.PrometheusMetrics(m))
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {})

	for _, path := range []string{"/a", "/b", "/c"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", path, nil))
	}

	assert.Equal(t, float64(3), testutil.ToFloat64(m.RequestsTotal.WithLabelValues("unmatched", "404")))
}
