// Package sim implements a virtual rover for development and testing.
//
// A simulated rover speaks the same bus contract as firmware: it keeps a
// retained status message with battery level on devices/{id}/status, holds
// an offline last-will with the broker, executes command strings received
// on devices/{id}/commands in simulated time, and publishes execution
// reports on devices/{id}/trajeto.
package sim

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/rover-fleet/rover-core/internal/codec"
	"github.com/rover-fleet/rover-core/internal/infrastructure/config"
	"github.com/rover-fleet/rover-core/internal/infrastructure/logging"
	"github.com/rover-fleet/rover-core/internal/infrastructure/mqtt"
)

// Simulation constants, matching rover firmware behaviour.
const (
	// defaultStatusInterval is how often the rover republishes its status.
	defaultStatusInterval = 5 * time.Second

	// initialBattery is the charge percentage a rover boots with.
	initialBattery = 100.0

	// idleDecayMin and idleDecayMax bound the random battery drain per
	// status interval while idle.
	idleDecayMin = 0.1
	idleDecayMax = 0.5

	// driveDrainPerSecond is the battery drain per second of execution.
	driveDrainPerSecond = 0.5
)

// Config holds the settings for one simulated rover.
type Config struct {
	DeviceID       string
	MQTT           config.MQTTConfig
	StatusInterval time.Duration // defaults to 5s when zero
}

// Rover is a single simulated device.
//
// Run() drives the whole lifecycle; the zero value is not usable.
type Rover struct {
	cfg    Config
	logger *logging.Logger
	bus    *mqtt.Client
	topics mqtt.Topics

	battery float64
	mu      sync.Mutex
}

// New creates a simulated rover. Call Run to start it.
func New(cfg Config, logger *logging.Logger) (*Rover, error) {
	if cfg.DeviceID == "" {
		return nil, fmt.Errorf("device id is required")
	}
	if cfg.StatusInterval <= 0 {
		cfg.StatusInterval = defaultStatusInterval
	}

	return &Rover{
		cfg:     cfg,
		logger:  logger.With("device_id", cfg.DeviceID),
		battery: initialBattery,
	}, nil
}

// Run connects the rover to the broker and blocks until the context is
// cancelled. On shutdown it publishes a graceful offline status so the
// retained entry does not claim a dead rover is alive.
func (r *Rover) Run(ctx context.Context) error {
	will, err := json.Marshal(statusMessage{
		Battery:   nil,
		Online:    false,
		Timestamp: isoNow(),
	})
	if err != nil {
		return fmt.Errorf("building will payload: %w", err)
	}

	bus, err := mqtt.ConnectWithWill(r.cfg.MQTT, mqtt.Will{
		Topic:    r.topics.DeviceStatus(r.cfg.DeviceID),
		Payload:  will,
		QoS:      mqtt.QoSAtLeastOnce,
		Retained: true,
	})
	if err != nil {
		return fmt.Errorf("connecting to broker: %w", err)
	}
	r.bus = bus
	bus.SetLogger(r.logger)

	commandTopic := r.topics.DeviceCommands(r.cfg.DeviceID)
	if err := bus.Subscribe(commandTopic, mqtt.QoSAtLeastOnce, r.onCommand); err != nil {
		bus.Close()
		return fmt.Errorf("subscribing to %s: %w", commandTopic, err)
	}

	r.logger.Info("rover online",
		"broker", fmt.Sprintf("%s:%d", r.cfg.MQTT.Broker.Host, r.cfg.MQTT.Broker.Port),
		"commands", commandTopic,
	)
	r.publishStatus(true)

	ticker := time.NewTicker(r.cfg.StatusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.shutdown()
			return nil
		case <-ticker.C:
			r.drainBattery(idleDecayMin + rand.Float64()*(idleDecayMax-idleDecayMin)) //nolint:gosec // simulation jitter, not security-sensitive
			r.publishStatus(true)
		}
	}
}

// shutdown publishes the graceful offline status and disconnects.
func (r *Rover) shutdown() {
	r.logger.Info("rover shutting down")
	r.publishStatus(false)
	r.bus.Close()
}

// onCommand handles a command string from the controller.
//
// Execution happens on its own goroutine so a long trajectory does not
// block further bus messages, mirroring how firmware offloads motion to a
// worker task.
func (r *Rover) onCommand(_ string, payload []byte) error {
	wire := string(payload)
	r.logger.Info("command received", "wire", wire)

	result := codec.Decode(wire)
	if result.TrajectoryID == nil {
		r.logger.Warn("command has no trajectory marker, ignoring", "wire", wire)
		return nil
	}

	go r.executeTrajectory(result)
	return nil
}

// executeTrajectory simulates execution time, drains the battery and
// publishes the report.
func (r *Rover) executeTrajectory(result codec.Result) {
	r.logger.Info("executing trajectory",
		"trajectory_id", *result.TrajectoryID,
		"duration_s", result.Duration,
	)

	time.Sleep(time.Duration(result.Duration * float64(time.Second)))

	r.drainBattery(result.Duration * driveDrainPerSecond)

	report, err := json.Marshal(reportMessage{
		CommandsExecuted: result.Executed,
		TrajectoryID:     strconv.FormatInt(*result.TrajectoryID, 10),
		Duration:         int(result.Duration),
	})
	if err != nil {
		r.logger.Error("building report payload", "error", err)
		return
	}

	topic := r.topics.DeviceReport(r.cfg.DeviceID)
	if err := r.bus.Publish(topic, report, mqtt.QoSAtLeastOnce, false); err != nil {
		r.logger.Error("publishing report", "topic", topic, "error", err)
		return
	}

	r.logger.Info("trajectory finished", "trajectory_id", *result.TrajectoryID)
	r.publishStatus(true)
}

// drainBattery reduces the battery level, clamping at zero.
func (r *Rover) drainBattery(amount float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.battery -= amount
	if r.battery < 0 {
		r.battery = 0
	}
}

// batteryLevel reads the current battery level.
func (r *Rover) batteryLevel() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.battery
}

// publishStatus publishes the retained status message. When online is
// false the battery is omitted, matching the will payload shape.
func (r *Rover) publishStatus(online bool) {
	msg := statusMessage{
		Online:    online,
		Timestamp: isoNow(),
	}
	if online {
		level := roundTo2(r.batteryLevel())
		msg.Battery = &level
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		r.logger.Error("building status payload", "error", err)
		return
	}

	topic := r.topics.DeviceStatus(r.cfg.DeviceID)
	if err := r.bus.Publish(topic, payload, mqtt.QoSAtLeastOnce, true); err != nil {
		r.logger.Warn("publishing status", "topic", topic, "error", err)
	}
}

// statusMessage is the wire format of devices/{id}/status payloads.
type statusMessage struct {
	Battery   *float64 `json:"battery"`
	Online    bool     `json:"online"`
	Timestamp string   `json:"timestamp"`
}

// reportMessage is the wire format of devices/{id}/trajeto payloads.
// The trajectory id is echoed back as the decimal string that followed
// the correlation marker, as firmware does.
type reportMessage struct {
	CommandsExecuted string `json:"comandosExecutados"`
	TrajectoryID     string `json:"idTrajeto"`
	Duration         int    `json:"tempo"`
}

// isoNow returns the current UTC time in ISO 8601 format.
func isoNow() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// roundTo2 rounds to two decimal places for status payloads.
func roundTo2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}
