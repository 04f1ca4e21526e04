// Package api wires the HTTP surface: router, middleware and handlers.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	mw "github.com/nordhagen/imageforge/internal/api/middleware"
)

// Dependencies holds all handler dependencies for the router.
type Dependencies struct {
	HealthHandler      http.HandlerFunc
	GenerateHandler    http.HandlerFunc
	GetImageHandler    http.HandlerFunc
	DeleteImageHandler http.HandlerFunc
}

// NewRouter builds the Chi router with the middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	r.Get("/health", deps.HealthHandler)
	r.Post("/generate", deps.GenerateHandler)
	r.Get("/images/{imageID}", deps.GetImageHandler)
	r.Delete("/images/{imageID}", deps.DeleteImageHandler)

	return r
}
