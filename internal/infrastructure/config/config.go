package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the uplink service.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Device    DeviceConfig    `yaml:"device"`
	Link      LinkConfig      `yaml:"link"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Producer  ProducerConfig  `yaml:"producer"`
	Database  DatabaseConfig  `yaml:"database"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// DeviceConfig identifies this node.
type DeviceConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// Link driver names.
const (
	LinkDriverInterface = "interface"
	LinkDriverStatic    = "static"
)

// LinkConfig contains network link supervision settings.
type LinkConfig struct {
	// Driver selects how the link is observed: "interface" or "static".
	Driver string `yaml:"driver"`

	// Interface is the OS network interface watched by the interface driver.
	Interface string `yaml:"interface"`

	// PollInterval is how often the interface is sampled.
	// Default: 1s
	PollInterval time.Duration `yaml:"poll_interval"`

	Retry LinkRetryConfig `yaml:"retry"`
}

// LinkRetryConfig controls reconnection after the link drops.
type LinkRetryConfig struct {
	// Policy is "immediate" (reconnect at once, forever) or "backoff".
	Policy       string        `yaml:"policy"`
	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
	Multiplier   float64       `yaml:"multiplier"`
	Jitter       float64       `yaml:"jitter"`
	MaxAttempts  int           `yaml:"max_attempts"`
}

// MQTTConfig contains MQTT session settings.
type MQTTConfig struct {
	// BrokerURL is scheme://host:port. Schemes: mqtt, tcp, mqtts, ssl, ws, wss.
	BrokerURL string         `yaml:"broker_url"`
	ClientID  string         `yaml:"client_id"`
	Auth      MQTTAuthConfig `yaml:"auth"`

	// KeepAlive in seconds.
	KeepAlive int `yaml:"keep_alive"`

	// StatusTopic carries retained online/offline status and the LWT.
	StatusTopic string `yaml:"status_topic"`

	// Subscriptions are re-applied in order on every connect.
	Subscriptions []SubscriptionConfig `yaml:"subscriptions"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// SubscriptionConfig is one topic filter and its QoS.
type SubscriptionConfig struct {
	Topic string `yaml:"topic"`
	QoS   int    `yaml:"qos"`
}

// ProducerConfig describes the periodic message.
type ProducerConfig struct {
	Topic   string `yaml:"topic"`
	Payload string `yaml:"payload"`
	QoS     int    `yaml:"qos"`
	Retain  bool   `yaml:"retain"`

	// Interval in seconds between publishes while healthy.
	Interval int `yaml:"interval"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// APIConfig contains HTTP status API settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: UPLINK_SECTION_KEY
// For example: UPLINK_MQTT_BROKER_URL, UPLINK_DATABASE_PATH
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = generateClientID()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with default values.
func defaultConfig() *Config {
	return &Config{
		Device: DeviceConfig{
			ID:   "uplink-001",
			Name: "Uplink",
		},
		Link: LinkConfig{
			Driver:       LinkDriverInterface,
			Interface:    "wlan0",
			PollInterval: time.Second,
			Retry: LinkRetryConfig{
				Policy:       "immediate",
				InitialDelay: time.Second,
				MaxDelay:     60 * time.Second,
				Multiplier:   2.0,
			},
		},
		MQTT: MQTTConfig{
			BrokerURL:   "mqtt://broker.hivemq.com:1883",
			KeepAlive:   60,
			StatusTopic: "uplink/status",
			Subscriptions: []SubscriptionConfig{
				{Topic: "/cm/test1", QoS: 0},
				{Topic: "/cm/test2", QoS: 1},
				{Topic: "/tge/e0000000/sub", QoS: 1},
			},
		},
		Producer: ProducerConfig{
			Topic:    "/cm/test3",
			Payload:  "Message du microcontrôleur",
			QoS:      0,
			Interval: 15,
		},
		Database: DatabaseConfig{
			Path:        "./data/uplink.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		InfluxDB: InfluxDBConfig{
			Bucket:        "uplink",
			BatchSize:     100,
			FlushInterval: 10,
		},
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// generateClientID returns a unique client id so two nodes sharing a
// config file do not evict each other at the broker.
func generateClientID() string {
	return "uplink-" + uuid.NewString()[:8]
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: UPLINK_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// MQTT
	if v := os.Getenv("UPLINK_MQTT_BROKER_URL"); v != "" {
		cfg.MQTT.BrokerURL = v
	}
	if v := os.Getenv("UPLINK_MQTT_CLIENT_ID"); v != "" {
		cfg.MQTT.ClientID = v
	}
	if v := os.Getenv("UPLINK_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("UPLINK_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// Link
	if v := os.Getenv("UPLINK_LINK_INTERFACE"); v != "" {
		cfg.Link.Interface = v
	}
	if v := os.Getenv("UPLINK_LINK_DRIVER"); v != "" {
		cfg.Link.Driver = v
	}

	// Database
	if v := os.Getenv("UPLINK_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// API
	if v := os.Getenv("UPLINK_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	// InfluxDB
	if v := os.Getenv("UPLINK_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// validBrokerSchemes are the URL schemes the MQTT client accepts.
var validBrokerSchemes = map[string]bool{
	"mqtt": true, "tcp": true,
	"mqtts": true, "ssl": true, "tls": true,
	"ws": true, "wss": true,
}

// Validate checks the configuration for errors. All problems are reported
// together.
func (c *Config) Validate() error {
	var errs []string

	if c.Device.ID == "" {
		errs = append(errs, "device.id is required")
	}

	// Link validation
	switch c.Link.Driver {
	case LinkDriverInterface:
		if c.Link.Interface == "" {
			errs = append(errs, "link.interface is required for the interface driver")
		}
	case LinkDriverStatic:
	default:
		errs = append(errs, "link.driver must be \"interface\" or \"static\"")
	}
	switch c.Link.Retry.Policy {
	case "", "immediate", "backoff":
	default:
		errs = append(errs, "link.retry.policy must be \"immediate\" or \"backoff\"")
	}
	if c.Link.Retry.MaxAttempts < 0 {
		errs = append(errs, "link.retry.max_attempts cannot be negative")
	}

	// MQTT validation
	if err := validateBrokerURL(c.MQTT.BrokerURL); err != nil {
		errs = append(errs, err.Error())
	}
	for i, s := range c.MQTT.Subscriptions {
		if s.Topic == "" {
			errs = append(errs, fmt.Sprintf("mqtt.subscriptions[%d].topic is required", i))
		}
		if s.QoS < 0 || s.QoS > 2 {
			errs = append(errs, fmt.Sprintf("mqtt.subscriptions[%d].qos must be 0, 1, or 2", i))
		}
	}
	if c.MQTT.KeepAlive < 0 {
		errs = append(errs, "mqtt.keep_alive cannot be negative")
	}

	// Producer validation
	if c.Producer.Topic == "" {
		errs = append(errs, "producer.topic is required")
	}
	if c.Producer.QoS < 0 || c.Producer.QoS > 2 {
		errs = append(errs, "producer.qos must be 0, 1, or 2")
	}
	if c.Producer.Interval < 1 {
		errs = append(errs, "producer.interval must be at least 1 second")
	}

	// Database validation
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	// InfluxDB validation
	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	// API validation
	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// validateBrokerURL checks for scheme://host:port.
func validateBrokerURL(raw string) error {
	if raw == "" {
		return errors.New("mqtt.broker_url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("mqtt.broker_url is invalid: %w", err)
	}
	if !validBrokerSchemes[u.Scheme] {
		return fmt.Errorf("mqtt.broker_url scheme %q is not supported", u.Scheme)
	}
	if _, _, err := net.SplitHostPort(u.Host); err != nil {
		return errors.New("mqtt.broker_url must include host and port")
	}
	return nil
}

// ProducerInterval returns the producer interval as a Duration.
func (c *Config) ProducerInterval() time.Duration {
	return time.Duration(c.Producer.Interval) * time.Second
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
