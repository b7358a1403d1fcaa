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

	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Route("/routines", func(r chi.Router) {
				r.Get("/", s.handleListRoutines)
				r.Post("/", s.handleCreateRoutine)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetRoutine)
					r.Patch("/", s.handleUpdateRoutine)
					r.Delete("/", s.handleDeleteRoutine)
					r.Post("/run", s.handleRunRoutine)
				})
			})

			r.Route("/sources", func(r chi.Router) {
				r.Get("/", s.handleListSources)
				r.Post("/", s.handleCreateSource)
				r.Put("/{id}", s.handleUpdateSource)
			})

			r.Get("/devices", s.handleListDevices)

			r.Get("/settings/interval", s.handleGetInterval)
			r.Put("/settings/interval", s.handleSetInterval)

			r.Get("/activity", s.handleListActivity)

			r.Get("/ws", s.handleWebSocket)
		})
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
