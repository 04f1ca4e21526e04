package handler

import (
	"net/http"
	"time"

	"github.com/nordhagen/imageforge/internal/api/response"
)

type healthResponse struct {
	Status           string `json:"status"`
	APIKeyConfigured bool   `json:"api_key_configured"`
	Timestamp        string `json:"timestamp"`
}

// NewHealthHandler returns the handler for GET /health. The service is
// healthy even without a provider credential; the body just says so.
func NewHealthHandler(apiKeyConfigured bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, healthResponse{
			Status:           "healthy",
			APIKeyConfigured: apiKeyConfigured,
			Timestamp:        time.Now().UTC().Format(time.RFC3339),
		})
	}
}
