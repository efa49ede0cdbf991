// Package config handles loading and validating uplink configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables (UPLINK_*)
//   - Validation of required fields
//   - Default value handling
//
// Defaults target the public HiveMQ broker with three subscriptions at
// QoS {0, 1, 1} and a fixed message published every 15 seconds.
//
// Security Considerations:
//   - Broker credentials should be set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.MQTT.BrokerURL)
package config
