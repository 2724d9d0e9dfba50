package api

import (
	"net/http"
	"time"

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
		r.Get("/metrics", s.handleMetrics)

		// Fleet endpoints
		r.Route("/devices", func(r chi.Router) {
			r.Get("/", s.handleListDevices)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetDevice)
				r.Get("/online", s.handleDeviceOnline)
			})
		})

		// Trajectory endpoints
		r.Route("/trajectories", func(r chi.Router) {
			r.Get("/", s.handleListTrajectories)
			r.Post("/", s.handleCreateTrajectory)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetTrajectory)
				r.Delete("/", s.handleDeleteTrajectory)
				r.Post("/cancel", s.handleCancelTrajectory)
			})
		})

		// Fleet event history
		r.Get("/events", s.handleListEvents)

		// WebSocket event stream
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

// handleMetrics returns basic operational counters for monitoring.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	online := 0
	for _, d := range s.fleet.Snapshot() {
		if d.Online {
			online++
		}
	}

	wsClients := 0
	if s.hub != nil {
		wsClients = s.hub.ClientCount()
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"devices_known":     s.fleet.Count(),
		"devices_online":    online,
		"websocket_clients": wsClients,
		"uptime_s":          int64(time.Since(s.startedAt).Seconds()),
		"version":           s.version,
	})
}
