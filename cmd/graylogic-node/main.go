// Gray Logic Node - Homie device runtime
//
// This is the main entry point for a Gray Logic node device. A device hosts
// a fixed set of nodes, advertises them over MQTT using the Homie topic
// layout and routes inbound property updates to the node that owns them.
//
// Nodes are declared in the nodes section of the configuration file.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nerrad567/gray-logic-nodes/internal/api"
	"github.com/nerrad567/gray-logic-nodes/internal/boot"
	"github.com/nerrad567/gray-logic-nodes/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-nodes/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-nodes/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-nodes/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-nodes/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-nodes/internal/inputlog"
	"github.com/nerrad567/gray-logic-nodes/internal/node"
	"github.com/nerrad567/gray-logic-nodes/internal/virtual"
	"github.com/nerrad567/gray-logic-nodes/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the application logic, separated from main for testability.
// It returns nil on a clean shutdown.
func run(ctx context.Context) error { //nolint:gocognit,gocyclo // linear startup sequence
	log := logging.Default()
	log.Info("starting Gray Logic Node",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, cfg.Device.ID, version)
	log.Info("configuration loaded",
		"path", configPath,
		"level", cfg.Logging.Level,
		"nodes", len(cfg.Nodes),
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

	if migrateErr := db.Migrate(ctx, migrations.FS); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database ready", "path", db.Path())

	inputs := inputlog.NewSQLiteRepository(db.DB)
	journal := inputlog.NewJournal(inputs, log, inputlog.DefaultQueueSize)
	stopJournal := runJournal(journal)
	defer func() {
		stopJournal()
		if dropped := journal.Dropped(); dropped > 0 {
			log.Warn("input journal dropped records", "count", dropped)
		}
	}()

	// Connect to MQTT broker; the broker publishes $online=false for us
	// if the connection drops without a clean Stop.
	qos := byte(cfg.MQTT.QoS) //nolint:gosec // validated to 0..2
	mqttClient, err := mqtt.Connect(cfg.MQTT, boot.Will(cfg.Device.BaseTopic, cfg.Device.ID, qos))
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log)
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB, cfg.Device.ID)
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
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	registry := node.Default(node.WithMaxNodes(cfg.Device.MaxNodes))
	registry.SetLogger(log)

	var hub *api.Hub
	if cfg.API.Enabled {
		hub = api.NewHub(cfg.WebSocket, log)
	}

	runner, err := boot.New(boot.Options{
		Device:    deviceInfo(cfg),
		Registry:  registry,
		Transport: mqttClient,
		QoS:       qos,
		Observers: observers(journal, influxClient, hub),
		Stats:     statsRecorder(influxClient),
		Logger:    log,
	})
	if err != nil {
		return fmt.Errorf("creating runner: %w", err)
	}

	nodes, err := virtual.Build(registry, cfg.Nodes, runner, log)
	if err != nil {
		return fmt.Errorf("building nodes: %w", err)
	}
	log.Info("nodes registered", "count", len(nodes), "capacity", registry.MaxNodes())

	if cfg.API.Enabled {
		apiServer, apiErr := api.New(api.Deps{
			Config:   cfg.API,
			WS:       cfg.WebSocket,
			Device:   cfg.Device,
			Logger:   log,
			Registry: registry,
			Runner:   runner,
			Inputs:   inputs,
			MQTT:     mqttClient,
			Hub:      hub,
			Version:  version,
		})
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if startErr := apiServer.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := apiServer.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("API disabled")
	}

	if err := runner.Start(ctx); err != nil {
		return fmt.Errorf("starting runner: %w", err)
	}
	defer func() {
		log.Info("stopping runner")
		if stopErr := runner.Stop(); stopErr != nil {
			log.Error("error stopping runner", "error", stopErr)
		}
	}()

	if retention := cfg.GetInputRetention(); retention > 0 {
		go pruneLoop(ctx, inputs, retention, log)
	}

	log.Info("initialisation complete, waiting for shutdown signal",
		"device", cfg.Device.ID,
		"base_topic", cfg.Device.BaseTopic,
	)

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	return nil
}

// getConfigPath returns the config file path from GRAYLOGIC_CONFIG or the default.
func getConfigPath() string {
	if path := os.Getenv("GRAYLOGIC_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

func deviceInfo(cfg *config.Config) boot.DeviceInfo {
	return boot.DeviceInfo{
		ID:            cfg.Device.ID,
		Name:          cfg.Device.Name,
		BaseTopic:     cfg.Device.BaseTopic,
		Version:       version,
		LoopInterval:  cfg.GetLoopInterval(),
		StatsInterval: cfg.GetStatsInterval(),
		QueueSize:     cfg.Device.QueueSize,
	}
}

// healthCheck verifies all connected services before the device goes online.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}
