// Hi-Kumo bridge
//
// This is the main entry point for the Hi-Kumo HVAC bridge. It polls the
// vendor cloud for air-conditioner state, publishes it on MQTT with
// Home Assistant discovery documents, and forwards commands from the bus
// back to the cloud.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	_ "github.com/nerrad567/hikumo-bridge/migrations"

	"github.com/nerrad567/hikumo-bridge/internal/api"
	"github.com/nerrad567/hikumo-bridge/internal/hikumo"
	"github.com/nerrad567/hikumo-bridge/internal/house"
	"github.com/nerrad567/hikumo-bridge/internal/infrastructure/config"
	"github.com/nerrad567/hikumo-bridge/internal/infrastructure/database"
	"github.com/nerrad567/hikumo-bridge/internal/infrastructure/influxdb"
	"github.com/nerrad567/hikumo-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/hikumo-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/hikumo-bridge/internal/journal"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const (
	defaultConfigPath = "configs/config.yaml"

	// overlayName is looked up next to the main config file.
	overlayName = "local.yaml"

	journalPruneInterval = time.Hour
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// It returns nil on a clean shutdown.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Hi-Kumo bridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath, overlayPath(configPath))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Command journal (optional)
	var (
		db   *database.DB
		repo journal.Repository
	)
	if cfg.Database.Enabled {
		db, err = database.Open(cfg.Database)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()

		if migrateErr := db.Migrate(ctx); migrateErr != nil {
			return fmt.Errorf("running migrations: %w", migrateErr)
		}
		repo = journal.NewSQLiteRepository(db.DB)
		go pruneJournal(ctx, repo, cfg.Database.Retention, journalPruneInterval, log)
		log.Info("command journal enabled", "path", cfg.Database.Path)
	} else {
		log.Info("command journal disabled")
	}

	// Connect to MQTT broker
	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log.Component("mqtt"))
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	// Connect to InfluxDB (optional)
	var telemetry house.Telemetry
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
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		telemetry = influxClient
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	session, err := hikumo.NewSession(cfg.Hikumo, log.Component("hikumo"))
	if err != nil {
		return fmt.Errorf("creating Hi-Kumo session: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	coord, err := house.New(house.Options{
		Vendor:    session,
		Bus:       mqttClient,
		MQTT:      cfg.MQTT,
		Sync:      cfg.Sync,
		Journal:   repo,
		Telemetry: telemetry,
		Metrics:   house.NewMetrics(registry),
		Logger:    log.Component("house"),
	})
	if err != nil {
		return fmt.Errorf("creating coordinator: %w", err)
	}

	// Status API (optional)
	if cfg.API.Enabled {
		srv, apiErr := api.New(api.Deps{
			Config:   cfg.API,
			Logger:   log.Component("api"),
			House:    coord,
			Journal:  repo,
			Gatherer: registry,
			Version:  version,
		})
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if startErr := srv.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := srv.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	runErr := coord.Run(ctx)

	log.Info("shutdown signal received, cleaning up")
	coord.Shutdown()

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return fmt.Errorf("coordinator: %w", runErr)
	}

	log.Info("Hi-Kumo bridge stopped")
	return nil
}

// getConfigPath returns the configuration file path from HIKUMO_CONFIG,
// falling back to configs/config.yaml.
func getConfigPath() string {
	if path := os.Getenv("HIKUMO_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// overlayPath returns the local overlay that sits next to the main config.
func overlayPath(configPath string) string {
	return filepath.Join(filepath.Dir(configPath), overlayName)
}

// healthCheck verifies every connected backend once before the poll loop
// starts. Optional components that are disabled are skipped.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if db != nil {
		if err := db.HealthCheck(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
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

// pruneJournal deletes journal rows older than retention, once at start and
// then every interval until ctx is done. A zero retention keeps everything.
func pruneJournal(ctx context.Context, repo journal.Repository, retention, interval time.Duration, log *logging.Logger) {
	if retention <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		removed, err := repo.Prune(ctx, retention)
		switch {
		case err != nil && ctx.Err() == nil:
			log.Warn("journal prune failed", "error", err)
		case removed > 0:
			log.Info("journal pruned", "removed", removed)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
