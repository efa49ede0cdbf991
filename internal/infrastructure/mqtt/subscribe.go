package mqtt

import (
	"github.com/nerrad567/gray-logic-uplink/internal/session"
)

// Subscribe requests a subscription and returns its request id without
// waiting for the broker. EventSubscribed follows once the broker
// acknowledges it; EventError if it refuses or the request times out.
//
// Topics can include MQTT wildcards:
//   - + (single-level): "sensors/+/temp"
//   - # (multi-level): "sensors/#"
//
// Subscriptions are not tracked for restoration: the session is clean and
// the session controller re-subscribes on every EventConnected.
func (s *Session) Subscribe(topic string, qos byte) (int, error) {
	if err := validateFilter(topic); err != nil {
		return 0, err
	}
	if qos > maxQoS {
		return 0, ErrInvalidQoS
	}
	if !s.track() {
		return 0, ErrSessionStopped
	}

	id := s.requestID()
	token := s.client.Subscribe(topic, qos, s.wrapHandler())
	s.watch(token, id, session.EventSubscribed, ErrSubscribeFailed, topic)

	s.logger.Debug("mqtt subscribe submitted", "msg_id", id, "topic", topic, "qos", qos)
	return id, nil
}

// Unsubscribe removes a subscription. EventUnsubscribed follows once the
// broker acknowledges it.
func (s *Session) Unsubscribe(topic string) (int, error) {
	if err := validateFilter(topic); err != nil {
		return 0, err
	}
	if !s.track() {
		return 0, ErrSessionStopped
	}

	id := s.requestID()
	token := s.client.Unsubscribe(topic)
	s.watch(token, id, session.EventUnsubscribed, ErrUnsubscribeFailed, topic)
	return id, nil
}
