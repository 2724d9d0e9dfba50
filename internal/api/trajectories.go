package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/rover-fleet/rover-core/internal/codec"
	"github.com/rover-fleet/rover-core/internal/trajectory"
)

// createTrajectoryRequest is the request body for POST /trajectories.
type createTrajectoryRequest struct {
	DeviceID string `json:"device_id"`
	Commands string `json:"commands"`
}

// handleListTrajectories returns all trajectories, newest first.
func (s *Server) handleListTrajectories(w http.ResponseWriter, r *http.Request) {
	list, err := s.trajectories.List(r.Context())
	if err != nil {
		s.logger.Error("listing trajectories", "error", err)
		writeInternalError(w, "failed to list trajectories")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"trajectories": list,
		"count":        len(list),
	})
}

// handleCreateTrajectory validates and dispatches a command string to a rover.
func (s *Server) handleCreateTrajectory(w http.ResponseWriter, r *http.Request) {
	var req createTrajectoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.DeviceID == "" {
		writeBadRequest(w, "device_id is required")
		return
	}
	if req.Commands == "" {
		writeBadRequest(w, "commands is required")
		return
	}

	t, err := s.trajectories.Create(r.Context(), req.DeviceID, req.Commands)
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, t)
	case errors.Is(err, codec.ErrInvalidCommand):
		writeValidationError(w, err.Error())
	case errors.Is(err, trajectory.ErrDeviceOffline):
		writeConflict(w, err.Error())
	case errors.Is(err, trajectory.ErrDispatchFailed):
		// The trajectory was persisted but the command never reached the
		// bus. Return the record so the caller can retry or cancel it.
		s.logger.Warn("trajectory dispatch failed",
			"device_id", req.DeviceID,
			"error", err,
		)
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"error":      "command dispatch failed",
			"trajectory": t,
		})
	default:
		s.logger.Error("creating trajectory", "device_id", req.DeviceID, "error", err)
		writeInternalError(w, "failed to create trajectory")
	}
}

// handleGetTrajectory returns a single trajectory by id.
func (s *Server) handleGetTrajectory(w http.ResponseWriter, r *http.Request) {
	id, ok := parseTrajectoryID(w, r)
	if !ok {
		return
	}

	t, err := s.trajectories.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, trajectory.ErrNotFound) {
			writeNotFound(w, "trajectory not found")
			return
		}
		s.logger.Error("loading trajectory", "trajectory_id", id, "error", err)
		writeInternalError(w, "failed to load trajectory")
		return
	}

	writeJSON(w, http.StatusOK, t)
}

// handleCancelTrajectory moves an in-progress trajectory to cancelled.
//
// Cancelling a trajectory that already reached a terminal state is a
// conflict, with the message naming how it ended.
func (s *Server) handleCancelTrajectory(w http.ResponseWriter, r *http.Request) {
	id, ok := parseTrajectoryID(w, r)
	if !ok {
		return
	}

	err := s.trajectories.Cancel(r.Context(), id)
	switch {
	case err == nil:
		t, getErr := s.trajectories.Get(r.Context(), id)
		if getErr != nil {
			writeJSON(w, http.StatusOK, map[string]any{"cancelled": true})
			return
		}
		writeJSON(w, http.StatusOK, t)
	case errors.Is(err, trajectory.ErrNotFound):
		writeNotFound(w, "trajectory not found")
	case errors.Is(err, trajectory.ErrAlreadyCompleted):
		writeConflict(w, "trajectory already completed")
	case errors.Is(err, trajectory.ErrAlreadyCancelled):
		writeConflict(w, "trajectory already cancelled")
	default:
		s.logger.Error("cancelling trajectory", "trajectory_id", id, "error", err)
		writeInternalError(w, "failed to cancel trajectory")
	}
}

// handleDeleteTrajectory removes a trajectory record in any lifecycle state.
func (s *Server) handleDeleteTrajectory(w http.ResponseWriter, r *http.Request) {
	id, ok := parseTrajectoryID(w, r)
	if !ok {
		return
	}

	if err := s.trajectories.Delete(r.Context(), id); err != nil {
		if errors.Is(err, trajectory.ErrNotFound) {
			writeNotFound(w, "trajectory not found")
			return
		}
		s.logger.Error("deleting trajectory", "trajectory_id", id, "error", err)
		writeInternalError(w, "failed to delete trajectory")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// parseTrajectoryID extracts and parses the {id} URL parameter.
// Writes a 400 response and returns false when the id is not an integer.
func parseTrajectoryID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		writeBadRequest(w, "trajectory id must be an integer")
		return 0, false
	}
	return id, true
}
