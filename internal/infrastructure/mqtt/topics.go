package mqtt

import "fmt"

// Topic namespace constants.
const (
	// TopicPrefixDevices is the base for all device topics.
	// Fixed scheme: devices/{device_id}/{category}
	TopicPrefixDevices = "devices"

	// TopicControllerStatus carries the controller's own liveness,
	// retained so rovers and dashboards see it on subscribe.
	TopicControllerStatus = "fleet/controller/status"

	// QoSAtLeastOnce is the delivery level for commands and reports.
	QoSAtLeastOnce byte = 1
)

// Topics provides builders for the device topic namespace.
// Using these helpers keeps topic naming consistent across the codebase.
type Topics struct{}

// DeviceStatus returns the retained status topic for a rover.
//
// Example: devices/rover-01/status
func (Topics) DeviceStatus(deviceID string) string {
	return fmt.Sprintf("%s/%s/status", TopicPrefixDevices, deviceID)
}

// DeviceReport returns the execution report topic for a rover.
//
// Example: devices/rover-01/trajeto
func (Topics) DeviceReport(deviceID string) string {
	return fmt.Sprintf("%s/%s/trajeto", TopicPrefixDevices, deviceID)
}

// DeviceCommands returns the command dispatch topic for a rover.
//
// Example: devices/rover-01/commands
func (Topics) DeviceCommands(deviceID string) string {
	return fmt.Sprintf("%s/%s/commands", TopicPrefixDevices, deviceID)
}

// AllDeviceStatus returns a pattern matching every rover's status topic.
//
// Pattern: devices/+/status
func (Topics) AllDeviceStatus() string {
	return fmt.Sprintf("%s/+/status", TopicPrefixDevices)
}

// AllDeviceReports returns a pattern matching every rover's report topic.
//
// Pattern: devices/+/trajeto
func (Topics) AllDeviceReports() string {
	return fmt.Sprintf("%s/+/trajeto", TopicPrefixDevices)
}
