package api

import (
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"github.com/rover-fleet/rover-core/internal/fleet"
)

// handleListDevices returns all rovers known to the registry.
func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	snapshot := s.fleet.Snapshot()

	devices := make([]fleet.Device, 0, len(snapshot))
	for _, d := range snapshot {
		devices = append(devices, d)
	}
	sort.Slice(devices, func(i, j int) bool {
		return devices[i].ID < devices[j].ID
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"devices": devices,
		"count":   len(devices),
	})
}

// handleGetDevice returns the registry entry for a single rover.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	device, ok := s.fleet.Get(id)
	if !ok {
		writeNotFound(w, "device not found: "+id)
		return
	}

	writeJSON(w, http.StatusOK, device)
}

// handleDeviceOnline returns the liveness of a single rover.
// Unknown rovers are reported offline rather than 404: from the caller's
// point of view a rover that never published is simply not reachable.
func (s *Server) handleDeviceOnline(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	writeJSON(w, http.StatusOK, map[string]any{
		"device_id": id,
		"online":    s.fleet.IsOnline(id),
	})
}
