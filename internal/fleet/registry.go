package fleet

import (
	"sync"
	"time"
)

// Logger defines the logging interface used by the Registry.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry holds the in-memory liveness state of every rover that has
// published at least one valid status message.
//
// All public methods are thread-safe. Entries are independent per device;
// there is no cross-device ordering.
type Registry struct {
	mu      sync.RWMutex
	devices map[string]Device
	logger  Logger

	// onChange, if set, is called after each accepted status update with
	// the new entry. Used to fan updates out to WebSocket clients and the
	// telemetry store. Called without the registry lock held.
	onChange func(Device)
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		devices: make(map[string]Device),
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// SetOnChange registers a callback invoked after each accepted status
// update. Must be set before the registry starts receiving messages.
func (r *Registry) SetOnChange(fn func(Device)) {
	r.onChange = fn
}

// OnStatus applies a status message for the given device.
//
// A valid payload replaces the device's entry wholesale. A payload that
// fails to parse is discarded and the prior entry, if any, is left
// untouched; the bus has no error channel to report back on, so the
// discard is logged and nothing more.
func (r *Registry) OnStatus(deviceID string, payload []byte) {
	status, err := parseStatus(payload)
	if err != nil {
		r.logger.Warn("discarding malformed status message",
			"device_id", deviceID,
			"error", err,
		)
		return
	}

	entry := Device{
		ID:        deviceID,
		Online:    *status.Online,
		Battery:   status.Battery,
		Timestamp: status.Timestamp,
		LastSeen:  time.Now().UTC(),
	}

	r.mu.Lock()
	r.devices[deviceID] = entry
	r.mu.Unlock()

	r.logger.Debug("device status updated",
		"device_id", deviceID,
		"online", entry.Online,
	)

	if r.onChange != nil {
		r.onChange(entry)
	}
}

// IsOnline reports whether the device has a registry entry with online=true.
// A device that has never published a status message is offline.
func (r *Registry) IsOnline(deviceID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.devices[deviceID]
	return ok && d.Online
}

// Get returns the entry for a device and whether one exists.
func (r *Registry) Get(deviceID string) (Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.devices[deviceID]
	return d, ok
}

// Snapshot returns a copy of all known device entries keyed by id.
// Callers can safely modify the returned map.
func (r *Registry) Snapshot() map[string]Device {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snapshot := make(map[string]Device, len(r.devices))
	for id, d := range r.devices {
		snapshot[id] = d
	}
	return snapshot
}

// Count returns the number of devices that have reported at least once.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.devices)
}
