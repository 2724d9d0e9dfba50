// Package fleet tracks the liveness and telemetry state of the rover fleet.
//
// Rovers publish retained status messages on devices/{id}/status and the
// broker publishes a last-will status on their behalf when they drop off the
// network. The registry is fed those messages and answers online/offline
// queries for the rest of the system.
//
// State is last-write-wins: each valid status message replaces the device's
// entry wholesale. A device with no recorded status is simply offline; there
// is no staleness timeout beyond the broker's last-will mechanism.
package fleet
