package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/stats", s.handleStats)

		// Configuration
		r.Route("/config", func(r chi.Router) {
			r.Get("/", s.handleGetConfig)
			r.Put("/", s.handlePutConfig)
		})

		// Logging decisions
		r.Route("/whitelist", func(r chi.Router) {
			r.Get("/", s.handleGetWhitelist)
			r.Put("/", s.handlePutWhitelist)
		})
		r.Route("/datapoints", func(r chi.Router) {
			r.Get("/", s.handleGetDatapoints)
			r.Put("/", s.handlePutDatapoints)
		})

		// Device browser (controller directory)
		r.Get("/devices", s.handleListDevices)
		r.Post("/devices/refresh", s.handleRefreshDevices)

		// Database connection test
		r.Post("/database/test", s.handleTestDatabase)

		// WebSocket for lifecycle events
		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}

// handleStats returns pipeline counters for the admin UI.
func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.pipeline.Stats())
}
