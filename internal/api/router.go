package api

import (
	"net/http"

	"github.com/rit-atlas/atlas/internal/middleware"
)

// NewRouter wires the API routes. GET /spots allows anonymous access;
// every other spot route requires a valid bearer token. metricsHandler
// may be nil to disable the /metrics endpoint.
func NewRouter(spots *SpotHandlers, health *HealthHandlers, verifier middleware.TokenVerifier, metricsHandler http.Handler) *http.ServeMux {
	mux := http.NewServeMux()

	requireAuth := middleware.RequireAuth(verifier)
	optionalAuth := middleware.OptionalAuth(verifier)

	mux.Handle("GET /spots", optionalAuth(http.HandlerFunc(spots.GetSpots)))
	mux.Handle("POST /spots", requireAuth(http.HandlerFunc(spots.CreateSpot)))
	mux.Handle("GET /spots/defaults", requireAuth(http.HandlerFunc(spots.GetDefaults)))
	mux.Handle("POST /spots/{id}/approve", requireAuth(http.HandlerFunc(spots.ApproveSpot)))

	mux.HandleFunc("GET /health", health.Health)
	mux.HandleFunc("GET /ready", health.Ready)
	if metricsHandler != nil {
		mux.Handle("GET /metrics", metricsHandler)
	}

	return mux
}
