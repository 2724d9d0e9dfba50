// Package dispatch routes inbound bus messages to their handlers.
//
// Every message the controller consumes arrives on the fixed three-segment
// namespace devices/{id}/{category}. The router peels the device id out of
// the topic and hands the payload to the device registry (status) or the
// trajectory coordinator (execution reports). Anything that does not match
// the namespace is unroutable, not an error: the bus has no reply channel,
// so the router logs and moves on.
package dispatch

import (
	"context"
	"strings"

	"github.com/rover-fleet/rover-core/internal/infrastructure/mqtt"
)

// Topic categories within the devices/{id}/{category} namespace.
const (
	categoryStatus = "status"
	categoryReport = "trajeto"

	// topicSegments is the minimum number of segments in a routable topic.
	topicSegments = 3
)

// StatusHandler consumes device status messages.
// Satisfied by *fleet.Registry.
type StatusHandler interface {
	OnStatus(deviceID string, payload []byte)
}

// ResultHandler consumes trajectory execution reports.
// Satisfied by *trajectory.Coordinator.
type ResultHandler interface {
	ApplyResult(ctx context.Context, deviceID string, payload []byte)
}

// Subscriber registers message handlers with the bus.
// Satisfied by *mqtt.Client.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// Logger defines the logging interface used by the Router.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

// Router maps bus topics to the registry and coordinator handlers.
type Router struct {
	status StatusHandler
	result ResultHandler
	logger Logger
}

// NewRouter creates a router wired to its handlers.
func NewRouter(status StatusHandler, result ResultHandler, logger Logger) *Router {
	return &Router{
		status: status,
		result: result,
		logger: logger,
	}
}

// Start subscribes the router to the device status and report topics.
// Handlers run on the bus client's goroutines; the registry and
// coordinator are responsible for their own locking.
func (r *Router) Start(ctx context.Context, bus Subscriber) error {
	topics := mqtt.Topics{}
	if err := bus.Subscribe(topics.AllDeviceStatus(), mqtt.QoSAtLeastOnce, func(topic string, payload []byte) error {
		r.Route(ctx, topic, payload)
		return nil
	}); err != nil {
		return err
	}
	return bus.Subscribe(topics.AllDeviceReports(), mqtt.QoSAtLeastOnce, func(topic string, payload []byte) error {
		r.Route(ctx, topic, payload)
		return nil
	})
}

// Route dispatches a single message by topic.
//
// Topics with fewer than three segments or a first segment other than
// "devices" are ignored. Unknown categories are logged and dropped.
func (r *Router) Route(ctx context.Context, topic string, payload []byte) {
	parts := strings.Split(topic, "/")
	if len(parts) < topicSegments || parts[0] != mqtt.TopicPrefixDevices {
		r.logger.Debug("ignoring unroutable topic", "topic", topic)
		return
	}

	deviceID, category := parts[1], parts[2]
	switch category {
	case categoryStatus:
		r.status.OnStatus(deviceID, payload)
	case categoryReport:
		r.result.ApplyResult(ctx, deviceID, payload)
	default:
		r.logger.Warn("dropping message with unknown category",
			"topic", topic,
			"category", category,
		)
	}
}
