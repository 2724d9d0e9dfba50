// Rover Core - Fleet Controller
//
// This is the main entry point for the Rover Core controller. It supervises
// a fleet of movement-control rovers over an MQTT bus:
//   - Tracks rover liveness from retained status messages
//   - Dispatches validated command strings as trajectories
//   - Reconciles execution reports into terminal trajectory states
//   - Serves a REST API and WebSocket event stream for operator tooling
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/rover-fleet/rover-core/migrations"

	"github.com/rover-fleet/rover-core/internal/api"
	"github.com/rover-fleet/rover-core/internal/dispatch"
	"github.com/rover-fleet/rover-core/internal/events"
	"github.com/rover-fleet/rover-core/internal/fleet"
	"github.com/rover-fleet/rover-core/internal/infrastructure/config"
	"github.com/rover-fleet/rover-core/internal/infrastructure/database"
	"github.com/rover-fleet/rover-core/internal/infrastructure/influxdb"
	"github.com/rover-fleet/rover-core/internal/infrastructure/logging"
	"github.com/rover-fleet/rover-core/internal/infrastructure/mqtt"
	"github.com/rover-fleet/rover-core/internal/trajectory"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error { //nolint:gocognit,gocyclo // linear start-up sequence: each block wires one component
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Rover Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Initialise fleet registry
	registry := fleet.NewRegistry()
	registry.SetLogger(log)

	// Connect to MQTT broker
	bus, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := bus.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	bus.SetLogger(log)
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	bus.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	bus.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(ctx, cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
	} else {
		log.Info("InfluxDB disabled")
	}

	// Initialise trajectory coordinator and event log
	eventRepo := events.NewSQLiteRepository(db.DB)
	trajectoryRepo := trajectory.NewSQLiteRepository(db.DB)
	coordinator := trajectory.NewCoordinator(trajectoryRepo, registry, bus, log)

	// Create the WebSocket hub up front so registry and coordinator
	// callbacks can broadcast through it; the API server adopts it.
	hub := api.NewHub(cfg.WebSocket, log)
	go hub.Run(ctx)

	wireFanout(ctx, log, registry, coordinator, hub, eventRepo, influxClient)

	// Start the bus router
	router := dispatch.NewRouter(registry, coordinator, log)
	if err := router.Start(ctx, bus); err != nil {
		return fmt.Errorf("starting bus router: %w", err)
	}
	log.Info("bus router started",
		"status_topic", mqtt.Topics{}.AllDeviceStatus(),
		"report_topic", mqtt.Topics{}.AllDeviceReports(),
	)

	// Start the API server
	apiServer, err := api.New(api.Deps{
		Config:       cfg.API,
		WS:           cfg.WebSocket,
		Logger:       log,
		Fleet:        registry,
		Trajectories: coordinator,
		Events:       eventRepo,
		ExternalHub:  hub,
		Version:      version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := apiServer.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()
	log.Info("API server started", "address", fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port))

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, bus, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls will run in reverse order:
	// 1. API server
	// 2. InfluxDB (if enabled)
	// 3. MQTT
	// 4. Database

	log.Info("Rover Core stopped")
	return nil
}

// wireFanout connects registry and coordinator callbacks to the WebSocket
// hub, the fleet event log, and the telemetry store.
//
// Callbacks run on bus handler goroutines, so the event log writes use a
// background-derived context rather than any per-message one.
func wireFanout(
	ctx context.Context,
	log *logging.Logger,
	registry *fleet.Registry,
	coordinator *trajectory.Coordinator,
	hub *api.Hub,
	eventRepo events.Repository,
	influxClient *influxdb.Client,
) {
	// Track liveness transitions so only changes are recorded, not every
	// periodic status republish. Callbacks arrive on multiple bus handler
	// goroutines, hence the mutex.
	var liveMu sync.Mutex
	lastOnline := make(map[string]bool)

	registry.SetOnChange(func(d fleet.Device) {
		hub.Broadcast(api.ChannelDeviceStatus, d)

		if influxClient != nil {
			now := time.Now().UTC()
			if d.Battery != nil {
				influxClient.WriteBattery(d.ID, *d.Battery, now)
			}
			influxClient.WriteStatus(d.ID, d.Online, now)
		}

		liveMu.Lock()
		prev, seen := lastOnline[d.ID]
		lastOnline[d.ID] = d.Online
		liveMu.Unlock()
		if seen && prev == d.Online {
			return
		}
		kind := events.KindDeviceOffline
		if d.Online {
			kind = events.KindDeviceOnline
		}
		if err := eventRepo.Record(ctx, &events.Event{
			Kind:     kind,
			DeviceID: d.ID,
		}); err != nil {
			log.Warn("recording device event", "device_id", d.ID, "error", err)
		}
	})

	coordinator.SetOnCreate(func(t trajectory.Trajectory) {
		hub.Broadcast(api.ChannelTrajectoryCreated, t)

		if err := eventRepo.Record(ctx, &events.Event{
			Kind:         events.KindTrajectoryCreated,
			DeviceID:     t.DeviceID,
			TrajectoryID: &t.ID,
		}); err != nil {
			log.Warn("recording trajectory event", "trajectory_id", t.ID, "error", err)
		}
	})

	coordinator.SetOnTerminal(func(t trajectory.Trajectory) {
		kind := events.KindTrajectoryCancelled
		channel := api.ChannelTrajectoryCancelled
		if t.Status != nil && *t.Status {
			kind = events.KindTrajectoryCompleted
			channel = api.ChannelTrajectoryCompleted
		}

		hub.Broadcast(channel, t)

		if err := eventRepo.Record(ctx, &events.Event{
			Kind:         kind,
			DeviceID:     t.DeviceID,
			TrajectoryID: &t.ID,
		}); err != nil {
			log.Warn("recording trajectory event", "trajectory_id", t.ID, "error", err)
		}

		if influxClient != nil {
			completed := t.Status != nil && *t.Status
			influxClient.WriteTrajectoryDuration(t.DeviceID, t.ID, float64(t.Duration), completed, time.Now().UTC())
		}
	})
}

// getConfigPath returns the configuration file path.
// Uses ROVERCORE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("ROVERCORE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
func healthCheck(ctx context.Context, db *database.DB, bus *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if err := bus.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
