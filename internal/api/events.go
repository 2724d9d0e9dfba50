package api

import (
	"net/http"
	"strconv"

	"github.com/rover-fleet/rover-core/internal/events"
)

// handleListEvents returns the fleet event history, most recent first.
//
// Query parameters: kind, device_id, limit, offset.
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		writeNotFound(w, "event history is not enabled")
		return
	}

	filter := events.Filter{
		Kind:     r.URL.Query().Get("kind"),
		DeviceID: r.URL.Query().Get("device_id"),
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if limit, err := strconv.Atoi(v); err == nil {
			filter.Limit = limit
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if offset, err := strconv.Atoi(v); err == nil {
			filter.Offset = offset
		}
	}

	result, err := s.events.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("listing fleet events", "error", err)
		writeInternalError(w, "failed to list events")
		return
	}

	writeJSON(w, http.StatusOK, result)
}
