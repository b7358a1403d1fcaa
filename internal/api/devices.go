package api

import (
	"net/http"

	"github.com/nerrad567/gray-logic-routines/internal/deviceapi"
)

// handleListDevices proxies the device inventory through the credential
// chain. ?source_id= pins the credential.
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	if s.devices == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeInternal, "device api not available")
		return
	}

	devices, err := s.devices.Devices(r.Context(), r.URL.Query().Get("source_id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if devices == nil {
		devices = []deviceapi.Device{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"devices": devices,
		"count":   len(devices),
	})
}
