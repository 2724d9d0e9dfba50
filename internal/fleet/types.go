package fleet

import (
	"encoding/json"
	"fmt"
	"time"
)

// Device is the registry's view of a single rover, rebuilt from its most
// recent status message.
type Device struct {
	// ID is the externally assigned device identifier (second topic segment).
	ID string `json:"id"`

	// Online reports whether the rover considers itself connected.
	// Last-will messages set this to false on unexpected disconnect.
	Online bool `json:"online"`

	// Battery is the reported charge percentage (0-100), or nil when the
	// rover does not know (e.g. in a last-will payload).
	Battery *float64 `json:"battery"`

	// Timestamp is the rover's own clock reading, echoed as sent.
	Timestamp string `json:"timestamp"`

	// LastSeen is when the registry observed the status message.
	LastSeen time.Time `json:"last_seen"`
}

// statusPayload is the wire format of devices/{id}/status messages.
type statusPayload struct {
	Online    *bool    `json:"online"`
	Battery   *float64 `json:"battery"`
	Timestamp string   `json:"timestamp"`
}

// parseStatus decodes a status payload. A missing online field is treated
// as a malformed message rather than defaulting to offline, so a prior
// entry is not clobbered by a half-formed publish.
func parseStatus(payload []byte) (statusPayload, error) {
	var p statusPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return statusPayload{}, fmt.Errorf("decoding status payload: %w", err)
	}
	if p.Online == nil {
		return statusPayload{}, fmt.Errorf("status payload missing online field")
	}
	if p.Battery != nil && (*p.Battery < 0 || *p.Battery > 100) {
		return statusPayload{}, fmt.Errorf("battery %v out of range", *p.Battery)
	}
	return p, nil
}
