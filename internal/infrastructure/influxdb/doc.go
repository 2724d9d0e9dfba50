// Package influxdb provides time-series storage for fleet telemetry.
//
// Battery readings, device online transitions and trajectory durations
// are written to InfluxDB v2 using the non-blocking batched write API.
// The current state of the fleet lives in memory and SQLite; this
// package only records history for later analysis.
//
// Telemetry history is optional. When disabled in configuration,
// Connect returns ErrDisabled and the caller runs without it.
package influxdb
