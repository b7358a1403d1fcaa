package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-routines/internal/routine"
	"github.com/nerrad567/gray-logic-routines/internal/scheduler"
)

// routineChange is the routine.changed event payload.
type routineChange struct {
	ID      string           `json:"id"`
	Op      string           `json:"op"`
	Routine *routine.Routine `json:"routine,omitempty"`
}

// handleListRoutines returns every stored routine in creation order.
func (s *Server) handleListRoutines(w http.ResponseWriter, r *http.Request) {
	routines := s.routines.List(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"routines": routines,
		"count":    len(routines),
	})
}

// handleCreateRoutine validates and stores a new routine, then announces it
// on routine.changed. Validation failures map to 400.
func (s *Server) handleCreateRoutine(w http.ResponseWriter, r *http.Request) {
	var p routine.Payload
	if !decodeJSON(w, r, &p) {
		return
	}

	created, err := s.routines.Create(r.Context(), p)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	s.logger.Info("routine created", "routine_id", created.ID, "subject", subjectFrom(r.Context()))
	s.hub.Broadcast(ChannelRoutineChanged, routineChange{ID: created.ID, Op: "created", Routine: created})
	writeJSON(w, http.StatusCreated, created)
}

// handleGetRoutine returns one routine by id, or 404.
func (s *Server) handleGetRoutine(w http.ResponseWriter, r *http.Request) {
	found, err := s.routines.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, found)
}

// handleUpdateRoutine applies a partial update. Absent fields keep their
// stored values.
func (s *Server) handleUpdateRoutine(w http.ResponseWriter, r *http.Request) {
	var p routine.Payload
	if !decodeJSON(w, r, &p) {
		return
	}

	id := chi.URLParam(r, "id")
	updated, err := s.routines.Update(r.Context(), id, p)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	s.logger.Info("routine updated", "routine_id", id, "subject", subjectFrom(r.Context()))
	s.hub.Broadcast(ChannelRoutineChanged, routineChange{ID: id, Op: "updated", Routine: updated})
	writeJSON(w, http.StatusOK, updated)
}

// handleDeleteRoutine removes a routine and announces the deletion on
// routine.changed. Returns 204 on success.
func (s *Server) handleDeleteRoutine(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.routines.Delete(r.Context(), id); err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	s.logger.Info("routine deleted", "routine_id", id, "subject", subjectFrom(r.Context()))
	s.hub.Broadcast(ChannelRoutineChanged, routineChange{ID: id, Op: "deleted"})
	w.WriteHeader(http.StatusNoContent)
}

// handleRunRoutine runs a routine immediately, regardless of its enabled
// flag, and returns the per-action results. Action failures are reported in
// the body, not as an error status.
func (s *Server) handleRunRoutine(w http.ResponseWriter, r *http.Request) {
	results, err := s.runner.RunNow(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if results == nil {
		results = []scheduler.Result{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}
