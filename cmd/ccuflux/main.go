// ccuflux - Homematic CCU to InfluxDB telemetry bridge
//
// This is the main entry point for the ccuflux addon. It subscribes to live
// datapoint events from a Homematic CCU, filters them against the configured
// whitelist and datapoint selection, polls system variables and programs for
// changes, and writes everything as time-series points to InfluxDB.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ccu-tools/ccuflux/internal/api"
	"github.com/ccu-tools/ccuflux/internal/ccu"
	"github.com/ccu-tools/ccuflux/internal/infrastructure/config"
	"github.com/ccu-tools/ccuflux/internal/infrastructure/logging"
	"github.com/ccu-tools/ccuflux/internal/infrastructure/mqtt"
	"github.com/ccu-tools/ccuflux/internal/influx"
	"github.com/ccu-tools/ccuflux/internal/telemetry"
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

// shutdownFlushTimeout bounds the final buffer flush on shutdown.
const shutdownFlushTimeout = 10 * time.Second

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
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting ccuflux",
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

	// Open spill store (optional)
	var spill *telemetry.SpillStore
	if cfg.Buffer.SpillPath != "" {
		spill, err = telemetry.OpenSpillStore(cfg.Buffer.SpillPath)
		if err != nil {
			return fmt.Errorf("opening spill store: %w", err)
		}
		defer func() {
			log.Info("closing spill store")
			if closeErr := spill.Close(); closeErr != nil {
				log.Error("error closing spill store", "error", closeErr)
			}
		}()
		log.Info("spill store opened", "path", cfg.Buffer.SpillPath)
	} else {
		log.Info("spill store disabled, failed batches are dropped")
	}

	// Connect to MQTT broker (event transport)
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
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	mqttClient.SetLogger(log)
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	// Database gateway. Connection happens inside the pipeline reload so a
	// database that is still starting up never blocks ingestion.
	gateway := influx.NewGateway(log)
	defer gateway.Close()

	hostname, err := os.Hostname()
	if err != nil {
		log.Warn("resolving hostname", "error", err)
		hostname = "ccuflux"
	}

	// Late-bound so the pipeline can notify the API server, which is
	// created after the pipeline.
	var apiServer *api.Server

	pipeline, err := telemetry.NewPipeline(telemetry.Deps{
		Logger:  log,
		Gateway: gateway,
		Spill:   spill,
		NewDirectory: func(address string, regaPort int) ccu.Directory {
			return ccu.NewRegaClient(address, regaPort)
		},
		NewSource: func() ccu.EventSource {
			return ccu.NewMQTTSource(mqttClient, cfg.MQTT.TopicPrefix, byte(cfg.MQTT.QoS))
		},
		Hostname: hostname,
		OnControllerConnected: func() {
			if apiServer != nil {
				apiServer.NotifyControllerConnected()
			}
		},
	})
	if err != nil {
		return fmt.Errorf("creating pipeline: %w", err)
	}

	if err := pipeline.Reload(ctx, cfg); err != nil {
		return fmt.Errorf("starting pipeline: %w", err)
	}
	defer func() {
		log.Info("stopping pipeline")
		flushCtx, flushCancel := context.WithTimeout(context.Background(), shutdownFlushTimeout)
		defer flushCancel()
		pipeline.Stop(flushCtx)
	}()

	// Admin API server
	apiServer, err = api.New(api.Deps{
		Config:     cfg,
		ConfigPath: configPath,
		Logger:     log,
		Pipeline:   pipeline,
		Tester:     gateway,
		Version:    version,
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

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls will run in reverse order:
	// 1. API server
	// 2. Pipeline (final flush)
	// 3. MQTT
	// 4. Spill store

	log.Info("ccuflux stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses CCUFLUX_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("CCUFLUX_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
