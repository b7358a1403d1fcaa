package api

import (
	"net/http"
	"strconv"

	"github.com/nerrad567/gray-logic-routines/internal/activity"
)

// handleListActivity pages through the activity log, newest first.
//
// Query parameters: routine_id, device_id, limit, offset.
func (s *Server) handleListActivity(w http.ResponseWriter, r *http.Request) {
	if s.activity == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeInternal, "activity log not available")
		return
	}

	q := r.URL.Query()
	filter := activity.Filter{
		RoutineID: q.Get("routine_id"),
		DeviceID:  q.Get("device_id"),
	}

	var ok bool
	if filter.Limit, ok = intParam(w, q.Get("limit"), "limit"); !ok {
		return
	}
	if filter.Offset, ok = intParam(w, q.Get("offset"), "offset"); !ok {
		return
	}

	result, err := s.activity.List(r.Context(), filter)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// intParam parses an optional non-negative integer query parameter.
func intParam(w http.ResponseWriter, raw, name string) (int, bool) {
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		writeBadRequest(w, name+" must be a non-negative integer")
		return 0, false
	}
	return n, true
}
