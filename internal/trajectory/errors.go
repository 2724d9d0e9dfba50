package trajectory

import "errors"

// Domain errors for the trajectory package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, trajectory.ErrNotFound) {
//	    // handle not found case
//	}
var (
	// ErrNotFound is returned when a trajectory id does not exist.
	ErrNotFound = errors.New("trajectory: not found")

	// ErrDeviceOffline is returned by Create when the target rover has no
	// online registry entry. Nothing is persisted or published.
	ErrDeviceOffline = errors.New("trajectory: device offline")

	// ErrDispatchFailed is returned by Create when the command could not be
	// published to the bus. The persisted record is kept so the caller can
	// retry or cancel.
	ErrDispatchFailed = errors.New("trajectory: dispatch failed")

	// ErrAlreadyCompleted is returned when cancelling a trajectory whose
	// status is already true.
	ErrAlreadyCompleted = errors.New("trajectory: already completed")

	// ErrAlreadyCancelled is returned when cancelling a trajectory whose
	// status is already false.
	ErrAlreadyCancelled = errors.New("trajectory: already cancelled")
)
