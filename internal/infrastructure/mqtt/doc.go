// Package mqtt implements the messaging session on paho.mqtt.golang.
//
// Library creates Sessions; a Session satisfies session.Handle. It
// translates paho's callbacks and token completions into session.Event
// values delivered serially to one handler:
//
//	paho OnConnect          -> EventConnected (after publishing online status)
//	paho ConnectionLost     -> EventDisconnected
//	paho Reconnecting       -> EventOther
//	subscribe token done    -> EventSubscribed / EventError
//	unsubscribe token done  -> EventUnsubscribed / EventError
//	publish token done      -> EventPublished (QoS > 0) / EventError
//	inbound message         -> EventDataReceived
//
// Subscribe and Publish return a request id immediately and never wait for
// the broker.
//
// # Reconnection
//
// paho reconnects on its own once started. The session is clean and paho
// does not restore subscriptions; the session controller re-subscribes the
// full set on every EventConnected.
//
// # Status Topic
//
// When a status topic is configured the session publishes a retained
// "online" message on every connect, a retained "offline" message on
// Stop, and registers an "offline" Last Will for unexpected loss.
//
// # Security Considerations
//
//   - mqtts://, ssl://, tls:// and wss:// brokers use TLS 1.2 or later
//   - Credentials come from config (set them via UPLINK_MQTT_USERNAME and
//     UPLINK_MQTT_PASSWORD)
//   - Message payloads are not encrypted beyond TLS transport
//
// # Usage
//
//	lib := mqtt.NewLibrary(cfg.MQTT)
//	h, err := lib.NewSession(cfg.MQTT.BrokerURL)
//	if err != nil {
//	    return err
//	}
//	h.SetEventHandler(func(ev session.Event) { ... })
//	if err := h.Start(); err != nil {
//	    return err
//	}
//	defer h.Stop()
package mqtt
