package mqtt

import (
	"crypto/tls"
	"fmt"
	"net"
	"net/url"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/gray-logic-uplink/internal/infrastructure/config"
)

// Connection constants.
const (
	// defaultConnectTimeout bounds each connection attempt.
	defaultConnectTimeout = 10 * time.Second

	// defaultTokenTimeout bounds how long a subscribe/publish completion is awaited.
	defaultTokenTimeout = 10 * time.Second

	// defaultStatusTimeout bounds the graceful offline publish on Stop.
	defaultStatusTimeout = 2 * time.Second

	// defaultDisconnectQuiesce is the time to wait for pending operations on disconnect.
	defaultDisconnectQuiesce = 1000 // milliseconds

	// defaultKeepAlive is used when the config leaves keep_alive at zero.
	defaultKeepAlive = 60 * time.Second

	// defaultConnectRetryInterval is the delay between attempts while the
	// broker is unreachable.
	defaultConnectRetryInterval = 5 * time.Second

	// maxQoS is the maximum QoS level supported.
	maxQoS = 2

	// statusQoS is used for the online/offline status and LWT.
	statusQoS = 1

	// tlsMinVersion is the minimum TLS version for secure connections.
	tlsMinVersion = tls.VersionTLS12
)

// secureSchemes use TLS.
var secureSchemes = map[string]bool{
	"mqtts": true, "ssl": true, "tls": true, "wss": true,
}

// parseBrokerURL checks scheme://host:port and reports whether TLS is needed.
func parseBrokerURL(raw string) (*url.URL, bool, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %w", ErrInvalidBrokerURL, err)
	}
	switch u.Scheme {
	case "mqtt", "tcp", "mqtts", "ssl", "tls", "ws", "wss":
	default:
		return nil, false, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidBrokerURL, u.Scheme)
	}
	if _, _, err := net.SplitHostPort(u.Host); err != nil {
		return nil, false, fmt.Errorf("%w: %q must be scheme://host:port", ErrInvalidBrokerURL, raw)
	}
	return u, secureSchemes[u.Scheme], nil
}

// buildClientOptions creates paho MQTT options for one session.
//
// This configures:
//   - Broker URL (TLS when the scheme asks for it)
//   - Client ID and credentials
//   - Clean session: subscriptions are re-applied by the session controller
//     on every connect, so the client does not track them
//   - Auto-reconnect and connect retry inside paho; the link monitor only
//     creates the session once
//   - Last Will and Testament on the status topic
func buildClientOptions(cfg config.MQTTConfig, broker *url.URL, secure bool) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()

	opts.AddBroker(broker.String())
	opts.SetClientID(cfg.ClientID)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}

	opts.SetCleanSession(true)
	opts.SetResumeSubs(false)

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(defaultConnectRetryInterval)
	opts.SetMaxReconnectInterval(60 * time.Second)
	opts.SetConnectTimeout(defaultConnectTimeout)

	keepAlive := defaultKeepAlive
	if cfg.KeepAlive > 0 {
		keepAlive = time.Duration(cfg.KeepAlive) * time.Second
	}
	opts.SetKeepAlive(keepAlive)

	if secure {
		opts.SetTLSConfig(&tls.Config{
			MinVersion: tlsMinVersion,
		})
	}

	if cfg.StatusTopic != "" {
		configureLWT(opts, cfg.StatusTopic, cfg.ClientID)
	}

	return opts
}

// configureLWT sets up Last Will and Testament for offline detection.
//
// The broker publishes the will if the client disconnects unexpectedly, so
// other services see the node go offline even when it loses power.
//
// QoS: 1, Retained: true (new subscribers see last status)
func configureLWT(opts *pahomqtt.ClientOptions, topic, clientID string) {
	opts.SetWill(topic, buildOfflinePayload(clientID, reasonUnexpected), statusQoS, true)
}
