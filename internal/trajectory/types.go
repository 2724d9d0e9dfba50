package trajectory

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Trajectory is one dispatched command sequence and its eventual outcome.
type Trajectory struct {
	// ID is assigned by the persistence store on creation and doubles as
	// the correlation id embedded in the wire string.
	ID int64 `json:"id"`

	// DeviceID is the rover the commands were dispatched to.
	DeviceID string `json:"device_id"`

	// CommandsSent is the raw command string as accepted from the caller,
	// without the correlation marker.
	CommandsSent string `json:"commands_sent"`

	// CommandsExecuted is the prefix the rover reports having executed,
	// or nil while the trajectory is in progress.
	CommandsExecuted *string `json:"commands_executed"`

	// Status is tri-state: nil = in progress, true = completed,
	// false = cancelled.
	Status *bool `json:"status"`

	// Duration is the execution time in seconds reported by the rover.
	Duration int64 `json:"duration"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Terminal reports whether the trajectory has reached a final state.
func (t *Trajectory) Terminal() bool {
	return t.Status != nil
}

// Report is the wire format of devices/{id}/trajeto execution reports.
//
// Field names follow the rover firmware's payload, which predates this
// service and cannot change.
type Report struct {
	CommandsExecuted string    `json:"comandosExecutados"`
	TrajectoryID     *ReportID `json:"idTrajeto"`
	Duration         float64   `json:"tempo"`
}

// ReportID accepts the trajectory id as either a JSON number or a decimal
// string. The firmware extracts the id from the wire string and publishes
// it back as a string; older builds sent a number.
type ReportID int64

// UnmarshalJSON implements json.Unmarshaler.
func (r *ReportID) UnmarshalJSON(data []byte) error {
	var n int64
	if err := json.Unmarshal(data, &n); err == nil {
		*r = ReportID(n)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("idTrajeto must be a number or string: %w", err)
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("idTrajeto %q is not numeric: %w", s, err)
	}
	*r = ReportID(n)
	return nil
}

// parseReport decodes an execution report payload.
func parseReport(payload []byte) (Report, error) {
	var rep Report
	if err := json.Unmarshal(payload, &rep); err != nil {
		return Report{}, fmt.Errorf("decoding execution report: %w", err)
	}
	return rep, nil
}
