package influxdb

import "time"

// Measurement names.
const (
	measurementLink    = "uplink_link"
	measurementSession = "uplink_session"
	measurementPublish = "uplink_publish"
)

// WriteLinkState records a link state transition.
func (c *Client) WriteLinkState(from, to, event string) {
	c.writePoint(measurementLink,
		map[string]string{"event": event},
		map[string]any{"from": from, "to": to, "up": to == "address_acquired"},
		time.Now())
}

// WriteSessionEvent records a session event together with the health value
// it left behind.
func (c *Client) WriteSessionEvent(kind string, healthy bool, failed bool) {
	c.writePoint(measurementSession,
		map[string]string{"event": kind},
		map[string]any{"healthy": healthy, "error": failed},
		time.Now())
}

// WritePublish records one producer publish attempt. requestID is zero when
// the attempt was rejected before reaching the session library.
func (c *Client) WritePublish(topic string, requestID int, ok bool) {
	c.writePoint(measurementPublish,
		map[string]string{"topic": topic},
		map[string]any{"ok": ok, "request_id": requestID},
		time.Now())
}
