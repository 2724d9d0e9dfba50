package influxdb

import (
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
)

// Measurement names for fleet telemetry.
const (
	measurementBattery    = "device_battery"
	measurementStatus     = "device_status"
	measurementTrajectory = "trajectory_duration"
)

// WriteBattery records a device battery reading.
//
// Writes are non-blocking and batched. Errors are delivered via the
// SetOnError callback.
func (c *Client) WriteBattery(deviceID string, battery float64, ts time.Time) {
	if !c.IsConnected() {
		return
	}

	point := influxdb2.NewPoint(
		measurementBattery,
		map[string]string{"device_id": deviceID},
		map[string]interface{}{"percent": battery},
		ts,
	)
	c.writeAPI.WritePoint(point)
}

// WriteStatus records a device online/offline transition.
func (c *Client) WriteStatus(deviceID string, online bool, ts time.Time) {
	if !c.IsConnected() {
		return
	}

	point := influxdb2.NewPoint(
		measurementStatus,
		map[string]string{"device_id": deviceID},
		map[string]interface{}{"online": online},
		ts,
	)
	c.writeAPI.WritePoint(point)
}

// WriteTrajectoryDuration records the reported execution time of a
// completed trajectory, tagged by device and outcome.
func (c *Client) WriteTrajectoryDuration(deviceID string, trajectoryID int64, seconds float64, completed bool, ts time.Time) {
	if !c.IsConnected() {
		return
	}

	outcome := "cancelled"
	if completed {
		outcome = "completed"
	}

	point := influxdb2.NewPoint(
		measurementTrajectory,
		map[string]string{
			"device_id": deviceID,
			"outcome":   outcome,
		},
		map[string]interface{}{
			"trajectory_id": trajectoryID,
			"seconds":       seconds,
		},
		ts,
	)
	c.writeAPI.WritePoint(point)
}
