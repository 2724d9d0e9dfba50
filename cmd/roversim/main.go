// Rover Sim - Virtual Rover
//
// Runs one simulated rover against an MQTT broker. Useful for developing
// and testing the controller without hardware:
//
//	roversim -id rover-01 -broker localhost -port 1883
//
// The simulator speaks the full device contract: retained status with
// battery decay, an offline last-will, command execution in simulated
// time, and execution reports.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rover-fleet/rover-core/internal/infrastructure/config"
	"github.com/rover-fleet/rover-core/internal/infrastructure/logging"
	"github.com/rover-fleet/rover-core/internal/sim"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	var (
		deviceID = flag.String("id", "rover-01", "device identifier (also used as MQTT client id)")
		broker   = flag.String("broker", "localhost", "MQTT broker host")
		port     = flag.Int("port", 1883, "MQTT broker port")
		username = flag.String("username", "", "MQTT username (optional)")
		password = flag.String("password", "", "MQTT password (optional)")
		interval = flag.Duration("interval", 5*time.Second, "status publish interval")
		logLevel = flag.String("log-level", "info", "log level (debug, info, warn, error)")
	)
	flag.Parse()

	log := logging.New(config.LoggingConfig{
		Level:  *logLevel,
		Format: "text",
		Output: "stdout",
	}, version)

	rover, err := sim.New(sim.Config{
		DeviceID: *deviceID,
		MQTT: config.MQTTConfig{
			Broker: config.MQTTBrokerConfig{
				Host:     *broker,
				Port:     *port,
				ClientID: *deviceID,
			},
			Auth: config.MQTTAuthConfig{
				Username: *username,
				Password: *password,
			},
			QoS: 1,
			Reconnect: config.MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		StatusInterval: *interval,
	}, log)
	if err != nil {
		return fmt.Errorf("creating rover: %w", err)
	}

	return rover.Run(ctx)
}
