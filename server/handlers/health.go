package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/GokulKGit/quiz-API/server/provider"
)

// ProviderStatus reports the state of the generation providers.
// *provider.Manager satisfies it.
type ProviderStatus interface {
	Statuses() []provider.Status
	Healthy() bool
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string            `json:"status"`
	Providers []provider.Status `json:"providers"`
}

// Health reports provider breaker states. It answers 503 when every
// provider's breaker is open.
func Health(providers ProviderStatus, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{Status: "ok", Providers: providers.Statuses()}
		status := http.StatusOK
		if !providers.Healthy() {
			resp.Status = "unavailable"
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, resp, logger)
	}
}
