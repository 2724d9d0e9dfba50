package influxdb

import "errors"

// Sentinel errors for InfluxDB operations.
// Use errors.Is() to check error types.
var (
	// ErrDisabled indicates that telemetry history is disabled in configuration.
	ErrDisabled = errors.New("influxdb is disabled")

	// ErrNotConnected indicates the client is not connected to InfluxDB.
	ErrNotConnected = errors.New("influxdb client is not connected")

	// ErrConnectionFailed indicates the connection to InfluxDB failed.
	ErrConnectionFailed = errors.New("influxdb connection failed")
)
