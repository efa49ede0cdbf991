package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	content := `
device:
  id: "node-7"
link:
  driver: "static"
  retry:
    policy: "backoff"
    initial_delay: 2s
    max_delay: 30s
mqtt:
  broker_url: "mqtt://broker.example.com:1883"
  client_id: "test-client"
  subscriptions:
    - topic: "a/b"
      qos: 1
producer:
  topic: "out/topic"
  payload: "hello"
  interval: 5
database:
  path: "/tmp/test.db"
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Device.ID != "node-7" {
		t.Errorf("Device.ID = %q, want %q", cfg.Device.ID, "node-7")
	}
	if cfg.Link.Driver != LinkDriverStatic {
		t.Errorf("Link.Driver = %q, want %q", cfg.Link.Driver, LinkDriverStatic)
	}
	if cfg.Link.Retry.InitialDelay != 2*time.Second {
		t.Errorf("Link.Retry.InitialDelay = %v, want 2s", cfg.Link.Retry.InitialDelay)
	}
	if cfg.MQTT.BrokerURL != "mqtt://broker.example.com:1883" {
		t.Errorf("MQTT.BrokerURL = %q", cfg.MQTT.BrokerURL)
	}
	if len(cfg.MQTT.Subscriptions) != 1 || cfg.MQTT.Subscriptions[0].Topic != "a/b" {
		t.Errorf("MQTT.Subscriptions = %+v, want the single configured entry", cfg.MQTT.Subscriptions)
	}
	if got := cfg.ProducerInterval(); got != 5*time.Second {
		t.Errorf("ProducerInterval() = %v, want 5s", got)
	}
	// Unset sections keep their defaults.
	if cfg.API.Port != 8080 {
		t.Errorf("API.Port = %d, want 8080", cfg.API.Port)
	}
}

func TestLoad_GeneratesClientID(t *testing.T) {
	cfg, err := Load(writeConfig(t, "device:\n  id: \"x\"\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !strings.HasPrefix(cfg.MQTT.ClientID, "uplink-") || len(cfg.MQTT.ClientID) != len("uplink-")+8 {
		t.Errorf("MQTT.ClientID = %q, want uplink-<8 chars>", cfg.MQTT.ClientID)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "invalid: [yaml: content"))
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	content := `
device:
  id: ""
mqtt:
  broker_url: "broker.example.com"
`
	_, err := Load(writeConfig(t, content))
	if err == nil {
		t.Fatal("Load() expected validation error, got nil")
	}
	// All problems are reported together.
	for _, want := range []string{"device.id", "mqtt.broker_url"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"missing device id", func(c *Config) { c.Device.ID = "" }, true},
		{"unknown link driver", func(c *Config) { c.Link.Driver = "carrier-pigeon" }, true},
		{"interface driver without interface", func(c *Config) { c.Link.Interface = "" }, true},
		{"static driver without interface", func(c *Config) {
			c.Link.Driver = LinkDriverStatic
			c.Link.Interface = ""
		}, false},
		{"unknown retry policy", func(c *Config) { c.Link.Retry.Policy = "linear" }, true},
		{"negative max attempts", func(c *Config) { c.Link.Retry.MaxAttempts = -1 }, true},
		{"missing broker url", func(c *Config) { c.MQTT.BrokerURL = "" }, true},
		{"broker url without port", func(c *Config) { c.MQTT.BrokerURL = "mqtt://broker.example.com" }, true},
		{"broker url bad scheme", func(c *Config) { c.MQTT.BrokerURL = "http://broker.example.com:1883" }, true},
		{"mqtts broker url", func(c *Config) { c.MQTT.BrokerURL = "mqtts://broker.example.com:8883" }, false},
		{"websocket broker url", func(c *Config) { c.MQTT.BrokerURL = "wss://broker.example.com:8884" }, false},
		{"subscription without topic", func(c *Config) {
			c.MQTT.Subscriptions = []SubscriptionConfig{{Topic: "", QoS: 0}}
		}, true},
		{"subscription qos 3", func(c *Config) {
			c.MQTT.Subscriptions = []SubscriptionConfig{{Topic: "a", QoS: 3}}
		}, true},
		{"no subscriptions", func(c *Config) { c.MQTT.Subscriptions = nil }, false},
		{"missing producer topic", func(c *Config) { c.Producer.Topic = "" }, true},
		{"producer qos 3", func(c *Config) { c.Producer.QoS = 3 }, true},
		{"producer interval zero", func(c *Config) { c.Producer.Interval = 0 }, true},
		{"missing database path", func(c *Config) { c.Database.Path = "" }, true},
		{"influxdb enabled without url", func(c *Config) { c.InfluxDB.Enabled = true }, true},
		{"api port zero", func(c *Config) { c.API.Port = 0 }, true},
		{"api port high", func(c *Config) { c.API.Port = 70000 }, true},
		{"api disabled ignores port", func(c *Config) {
			c.API.Enabled = false
			c.API.Port = 0
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_GetTimeouts(t *testing.T) {
	cfg := &Config{
		API: APIConfig{
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 45,
				Idle:  60,
			},
		},
	}

	if got := cfg.GetReadTimeout().Seconds(); got != 30 {
		t.Errorf("GetReadTimeout() = %v, want 30", got)
	}
	if got := cfg.GetWriteTimeout().Seconds(); got != 45 {
		t.Errorf("GetWriteTimeout() = %v, want 45", got)
	}
	if got := cfg.GetIdleTimeout().Seconds(); got != 60 {
		t.Errorf("GetIdleTimeout() = %v, want 60", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("UPLINK_MQTT_BROKER_URL", "mqtts://mqtt.example.com:8883")
	t.Setenv("UPLINK_MQTT_CLIENT_ID", "node-a")
	t.Setenv("UPLINK_MQTT_USERNAME", "testuser")
	t.Setenv("UPLINK_MQTT_PASSWORD", "testpass")
	t.Setenv("UPLINK_LINK_INTERFACE", "eth1")
	t.Setenv("UPLINK_LINK_DRIVER", "static")
	t.Setenv("UPLINK_DATABASE_PATH", "/custom/path.db")
	t.Setenv("UPLINK_API_HOST", "192.168.1.1")
	t.Setenv("UPLINK_INFLUXDB_TOKEN", "secret-token")

	applyEnvOverrides(cfg)

	checks := []struct {
		field, got, want string
	}{
		{"MQTT.BrokerURL", cfg.MQTT.BrokerURL, "mqtts://mqtt.example.com:8883"},
		{"MQTT.ClientID", cfg.MQTT.ClientID, "node-a"},
		{"MQTT.Auth.Username", cfg.MQTT.Auth.Username, "testuser"},
		{"MQTT.Auth.Password", cfg.MQTT.Auth.Password, "testpass"},
		{"Link.Interface", cfg.Link.Interface, "eth1"},
		{"Link.Driver", cfg.Link.Driver, "static"},
		{"Database.Path", cfg.Database.Path, "/custom/path.db"},
		{"API.Host", cfg.API.Host, "192.168.1.1"},
		{"InfluxDB.Token", cfg.InfluxDB.Token, "secret-token"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %q, want %q", c.field, c.got, c.want)
		}
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.MQTT.BrokerURL != "mqtt://broker.hivemq.com:1883" {
		t.Errorf("default MQTT.BrokerURL = %q", cfg.MQTT.BrokerURL)
	}

	wantSubs := []SubscriptionConfig{
		{Topic: "/cm/test1", QoS: 0},
		{Topic: "/cm/test2", QoS: 1},
		{Topic: "/tge/e0000000/sub", QoS: 1},
	}
	if len(cfg.MQTT.Subscriptions) != len(wantSubs) {
		t.Fatalf("default subscriptions = %d, want %d", len(cfg.MQTT.Subscriptions), len(wantSubs))
	}
	for i, want := range wantSubs {
		if cfg.MQTT.Subscriptions[i] != want {
			t.Errorf("subscription[%d] = %+v, want %+v", i, cfg.MQTT.Subscriptions[i], want)
		}
	}

	if cfg.Producer.Topic != "/cm/test3" || cfg.Producer.QoS != 0 || cfg.Producer.Retain {
		t.Errorf("default producer = %+v", cfg.Producer)
	}
	if cfg.ProducerInterval() != 15*time.Second {
		t.Errorf("default ProducerInterval() = %v, want 15s", cfg.ProducerInterval())
	}
	if cfg.Link.Retry.Policy != "immediate" {
		t.Errorf("default Link.Retry.Policy = %q, want immediate", cfg.Link.Retry.Policy)
	}
}

func TestLoad_ShippedConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "..", "configs", "config.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Link.PollInterval != time.Second {
		t.Errorf("Link.PollInterval = %v, want 1s", cfg.Link.PollInterval)
	}
	if cfg.Link.Retry.MaxDelay != time.Minute {
		t.Errorf("Link.Retry.MaxDelay = %v, want 1m", cfg.Link.Retry.MaxDelay)
	}
	if len(cfg.MQTT.Subscriptions) != 3 || cfg.MQTT.Subscriptions[2].Topic != "/tge/e0000000/sub" {
		t.Errorf("MQTT.Subscriptions = %+v", cfg.MQTT.Subscriptions)
	}
	if cfg.ProducerInterval() != 15*time.Second {
		t.Errorf("ProducerInterval() = %v, want 15s", cfg.ProducerInterval())
	}
	if cfg.MQTT.ClientID == "" {
		t.Error("MQTT.ClientID should be generated when empty")
	}
}
