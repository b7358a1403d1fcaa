package api

import (
	"net/http"
)

// intervalBody is the request and response shape of /settings/interval.
type intervalBody struct {
	RoutineCheckIntervalMS *int `json:"routineCheckIntervalMs"`
}

func (s *Server) handleGetInterval(w http.ResponseWriter, _ *http.Request) {
	ms := int(s.runner.Interval().Milliseconds())
	writeJSON(w, http.StatusOK, intervalBody{RoutineCheckIntervalMS: &ms})
}

// handleSetInterval clamps the requested interval into range, persists it
// and restarts the scheduler tick. The response carries the applied value.
func (s *Server) handleSetInterval(w http.ResponseWriter, r *http.Request) {
	var body intervalBody
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.RoutineCheckIntervalMS == nil {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "routineCheckIntervalMs is required")
		return
	}

	applied, err := s.runner.SetInterval(*body.RoutineCheckIntervalMS)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	s.logger.Info("check interval changed",
		"requested_ms", *body.RoutineCheckIntervalMS,
		"applied_ms", applied,
		"subject", subjectFrom(r.Context()),
	)
	s.hub.Broadcast(ChannelSettingsChanged, intervalBody{RoutineCheckIntervalMS: &applied})
	writeJSON(w, http.StatusOK, intervalBody{RoutineCheckIntervalMS: &applied})
}
