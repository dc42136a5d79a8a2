package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/GokulKGit/quiz-API/server/provider"
)

type stubStatus struct {
	statuses []provider.Status
	healthy  bool
}

func (s stubStatus) Statuses() []provider.Status { return s.statuses }
func (s stubStatus) Healthy() bool               { return s.healthy }

func TestHealth(t *testing.T) {
	statuses := []provider.Status{
		{Name: "gemini", BreakerState: "open", Health: provider.HealthStatus{Healthy: false, ErrorCount: 5}},
		{Name: "openai", BreakerState: "closed", Health: provider.HealthStatus{Healthy: true}},
	}

	tests := []struct {
		name       string
		healthy    bool
		wantCode   int
		wantStatus string
	}{
		{"at least one provider available", true, http.StatusOK, "ok"},
		{"every breaker open", false, http.StatusServiceUnavailable, "unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := Health(stubStatus{statuses: statuses, healthy: tt.healthy}, zaptest.NewLogger(t))
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tt.wantCode, rr.Code)

			var resp HealthResponse
			require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
			assert.Equal(t, tt.wantStatus, resp.Status)
			require.Len(t, resp.Providers, 2)
			assert.Equal(t, "gemini", resp.Providers[0].Name)
			assert.Equal(t, "open", resp.Providers[0].BreakerState)
			assert.Equal(t, int64(5), resp.Providers[0].Health.ErrorCount)
		})
	}
}
