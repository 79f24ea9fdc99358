// Luftujha - ventilation automation core
//
// This is the main entry point for the Luftujha add-on. It mirrors valve
// entities from the upstream smart-home controller, drives an Atrea heat
// recovery unit over Modbus TCP, and applies time-window schedule rules
// to both.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/luftujha/luftujha-core/migrations"

	"github.com/luftujha/luftujha-core/internal/api"
	"github.com/luftujha/luftujha-core/internal/bridges/modbus"
	"github.com/luftujha/luftujha-core/internal/hru"
	"github.com/luftujha/luftujha-core/internal/infrastructure/config"
	"github.com/luftujha/luftujha-core/internal/infrastructure/database"
	"github.com/luftujha/luftujha-core/internal/infrastructure/influxdb"
	"github.com/luftujha/luftujha-core/internal/infrastructure/logging"
	"github.com/luftujha/luftujha-core/internal/infrastructure/mqtt"
	"github.com/luftujha/luftujha-core/internal/schedule"
	"github.com/luftujha/luftujha-core/internal/upstream"
	"github.com/luftujha/luftujha-core/internal/valve"
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
//
// Components start in dependency order and the deferred cleanups run in
// reverse: the scheduler stops first so no rule application races a
// closing transport, then the poller, API server, upstream link, and
// finally the transports and database.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Luftujha",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

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
	db, err := database.Open(database.Config{
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

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	ruleRepo := schedule.NewSQLiteRepository(db.DB)

	// Connect to MQTT broker (optional telemetry bus)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	} else {
		log.Info("MQTT disabled")
	}

	// Connect to InfluxDB (optional telemetry store)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Register transport to the ventilation unit. The pool hands out one
	// persistent client per (host, port, unit) identity.
	pool := modbus.NewPool()
	pool.SetLogger(log)
	defer func() {
		log.Info("closing register transport")
		if closeErr := pool.Close(); closeErr != nil {
			log.Error("error closing register transport", "error", closeErr)
		}
	}()

	modbusCfg := modbus.Config{
		Host:           cfg.Modbus.Host,
		Port:           cfg.Modbus.Port,
		UnitID:         byte(cfg.Modbus.UnitID),
		Timeout:        cfg.GetModbusTimeout(),
		ReconnectDelay: cfg.GetModbusReconnectDelay(),
	}
	modbusClient, err := pool.Get(modbusCfg)
	if err != nil {
		return fmt.Errorf("creating register transport: %w", err)
	}
	log.Info("register transport ready", "identity", modbusCfg.Identity())

	// Device interpreter over the register map for the configured family
	regmap, err := hru.NewCatalog().Lookup(cfg.Modbus.Family)
	if err != nil {
		return fmt.Errorf("resolving device family %q: %w", cfg.Modbus.Family, err)
	}
	interp := hru.NewInterpreter(regmap, modbusClient)
	log.Info("device interpreter ready", "family", cfg.Modbus.Family)

	// One-off API requests dial fresh per call; the poller and the
	// scheduler below stay on the pooled persistent client. Both paths
	// share the interpreter's write lock.
	oneShotDevice := hru.NewEphemeralDevice(interp, modbusCfg)

	// WebSocket hub is created up front so the synchronizer, poller, and
	// upstream link can broadcast through it.
	hub := api.NewHub(cfg.WebSocket, log)
	topics := mqtt.Topics{}

	// Valve synchronizer mirrors upstream entities and fans updates out
	// to WebSocket clients and the telemetry sinks.
	upClient := upstream.NewClient(cfg.Upstream)
	syncer := valve.NewSynchronizer(upClient, func(snap valve.Snapshot) {
		hub.BroadcastValve(snap)
		if influxClient != nil {
			influxClient.WriteValvePosition(snap.EntityID, snap.Value)
		}
		if mqttClient != nil {
			publishJSON(mqttClient, topics.ValveValue(snap.EntityID),
				map[string]any{"value": snap.Value}, byte(cfg.MQTT.QoS), log)
		}
	})
	syncer.SetLogger(log)
	if err := syncer.Start(ctx); err != nil {
		// The upstream may simply not be reachable yet; the event link
		// will fill the table as entities change.
		log.Warn("initial valve fetch failed", "error", err)
	} else {
		log.Info("valve table loaded", "valves", syncer.Count())
	}

	// Upstream event link feeds authoritative state changes into the
	// synchronizer and reports connection state downstream.
	link := upstream.NewLink(cfg.Upstream, syncer.Apply)
	link.SetLogger(log)
	link.SetOnStatus(func(state upstream.LinkState) {
		hub.BroadcastStatus(string(state))
	})
	link.Start(ctx)
	defer func() {
		log.Info("closing upstream link")
		if closeErr := link.Close(); closeErr != nil {
			log.Error("error closing upstream link", "error", closeErr)
		}
	}()
	log.Info("upstream link started", "base_url", cfg.Upstream.BaseURL)

	// HTTP API + WebSocket server
	server, err := api.New(api.Deps{
		Config:      cfg.API,
		WS:          cfg.WebSocket,
		Logger:      log,
		Valves:      syncer,
		Device:      oneShotDevice,
		Rules:       ruleRepo,
		ExternalHub: hub,
		Version:     version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	hub.SetSnapshotFunc(syncer.All)
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	// Periodic HRU register sampling (optional)
	if cfg.Poller.Enabled {
		poller := hru.NewPoller(interp, cfg.GetPollerInterval(), func(state hru.State) {
			hub.BroadcastDevice(state)
			if influxClient != nil {
				influxClient.WriteDeviceQuantity("power", float64(state.Power))
				influxClient.WriteDeviceQuantity("mode", float64(state.Mode))
				influxClient.WriteDeviceQuantity("temperature", state.Temperature)
			}
			if mqttClient != nil {
				publishJSON(mqttClient, topics.DeviceQuantity("power"),
					map[string]any{"value": state.Power}, byte(cfg.MQTT.QoS), log)
				publishJSON(mqttClient, topics.DeviceQuantity("mode"),
					map[string]any{"value": state.Mode, "label": state.ModeLabel}, byte(cfg.MQTT.QoS), log)
				publishJSON(mqttClient, topics.DeviceQuantity("temperature"),
					map[string]any{"value": state.Temperature}, byte(cfg.MQTT.QoS), log)
			}
		})
		poller.SetLogger(log)
		poller.Start(ctx)
		defer func() {
			log.Info("stopping poller")
			poller.Stop()
		}()
		log.Info("device poller started", "interval", cfg.GetPollerInterval())
	} else {
		log.Info("device poller disabled")
	}

	// Timeline scheduler applies rule effects through the synchronizer
	// and the device interpreter.
	scheduler := schedule.NewScheduler(ruleRepo, syncer, interp,
		cfg.GetSchedulerInterval(), cfg.Scheduler.AlignToMinute)
	scheduler.SetLogger(log)
	scheduler.SetOnApplied(func(ruleID, ruleName string, success bool) {
		if influxClient != nil {
			influxClient.WriteRuleApplied(ruleID, ruleName, success)
		}
		if mqttClient != nil {
			publishJSON(mqttClient, topics.RuleApplied(),
				map[string]any{"rule_id": ruleID, "name": ruleName, "success": success},
				byte(cfg.MQTT.QoS), log)
		}
	})
	scheduler.Start(ctx)
	defer func() {
		log.Info("stopping scheduler")
		scheduler.Stop()
	}()
	log.Info("scheduler started",
		"interval", cfg.GetSchedulerInterval(),
		"align_to_minute", cfg.Scheduler.AlignToMinute,
	)

	// Verify infrastructure connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses LUFTUJHA_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("LUFTUJHA_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// publishJSON marshals a payload and publishes it, logging failures.
func publishJSON(client *mqtt.Client, topic string, payload map[string]any, qos byte, log *logging.Logger) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error("marshalling telemetry payload", "topic", topic, "error", err)
		return
	}
	if err := client.Publish(topic, data, qos, false); err != nil {
		log.Warn("telemetry publish failed", "topic", topic, "error", err)
	}
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - mqttClient: MQTT client to check (may be nil if disabled)
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	// The Modbus client connects lazily and the upstream link retries in
	// the background, so neither gates startup.

	return nil
}
