package handlers

import (
	"net/http"

	"go.uber.org/zap"
)

// HomeResponse is the body of GET /.
type HomeResponse struct {
	Success int    `json:"success"`
	Message string `json:"message"`
}

// Home answers the root liveness probe.
func Home(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, HomeResponse{
			Success: 1,
			Message: "This is My First REST API...",
		}, logger)
	}
}
