// Uplink keeps a device connected to its MQTT broker.
//
// It supervises the network link, reconnecting whenever it drops, starts
// one MQTT session once the link has an address, re-applies the topic
// subscriptions on every broker connect, and publishes a fixed message on
// a fixed interval while the session is healthy.
//
// Lifecycle events are journaled to SQLite, optionally written to
// InfluxDB, and exposed on a small HTTP status API with a WebSocket stream.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nerrad567/gray-logic-uplink/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-uplink/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-uplink/internal/uplink"
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
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting uplink",
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

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	svc, err := uplink.New(ctx, uplink.Deps{
		Config:  cfg,
		Logger:  log,
		Version: version,
	})
	if err != nil {
		return err
	}
	defer svc.Stop()

	if err := svc.HealthCheck(ctx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("starting uplink: %w", err)
	}
	log.Info("initialisation complete, waiting for shutdown signal",
		"device_id", cfg.Device.ID,
		"broker", cfg.MQTT.BrokerURL,
		"link_driver", cfg.Link.Driver,
	)

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses UPLINK_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("UPLINK_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
