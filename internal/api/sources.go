package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-routines/internal/source"
)

// handleListSources returns the configured sources. Tokens are never
// returned, only a masked hint.
func (s *Server) handleListSources(w http.ResponseWriter, r *http.Request) {
	if s.sources == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeInternal, "source store not available")
		return
	}

	views, err := s.sources.List(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if views == nil {
		views = []source.View{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sources": views,
		"count":   len(views),
	})
}

// handleCreateSource stores a new source. Any id in the body is ignored.
func (s *Server) handleCreateSource(w http.ResponseWriter, r *http.Request) {
	var req source.Upsert
	if !decodeJSON(w, r, &req) {
		return
	}
	req.ID = ""
	s.upsertSource(w, r, req, http.StatusCreated)
}

// handleUpdateSource merges the body into the source named in the path. An
// unknown id creates a new source.
func (s *Server) handleUpdateSource(w http.ResponseWriter, r *http.Request) {
	var req source.Upsert
	if !decodeJSON(w, r, &req) {
		return
	}
	req.ID = chi.URLParam(r, "id")
	s.upsertSource(w, r, req, http.StatusOK)
}

func (s *Server) upsertSource(w http.ResponseWriter, r *http.Request, req source.Upsert, status int) {
	if s.sources == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeInternal, "source store not available")
		return
	}

	view, err := s.sources.Upsert(r.Context(), req)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	s.logger.Info("source saved", "source_id", view.ID, "enabled", view.Enabled, "subject", subjectFrom(r.Context()))
	writeJSON(w, status, view)
}
