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

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		// Valve endpoints
		r.Route("/valves", func(r chi.Router) {
			r.Get("/", s.handleListValves)
			r.Route("/{entityID}", func(r chi.Router) {
				r.Get("/", s.handleGetValve)
				r.Post("/", s.handleSetValve)
			})
		})

		// Ventilation unit endpoints
		r.Route("/device", func(r chi.Router) {
			r.Get("/", s.handleGetDevice)
			r.Post("/", s.handleApplyDirective)
		})

		// Schedule rule endpoints
		r.Route("/rules", func(r chi.Router) {
			r.Get("/", s.handleListRules)
			r.Post("/", s.handleCreateRule)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetRule)
				r.Put("/", s.handleUpdateRule)
				r.Delete("/", s.handleDeleteRule)
			})
		})
	})

	// WebSocket endpoint for real-time updates
	wsPath := s.wsCfg.Path
	if wsPath == "" {
		wsPath = "/ws"
	}
	r.Get(wsPath, s.handleWebSocket)

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}
