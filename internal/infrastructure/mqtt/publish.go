package mqtt

import (
	"fmt"

	"github.com/nerrad567/gray-logic-uplink/internal/session"
)

// Maximum payload size for MQTT messages (1MB).
// This prevents resource exhaustion and aligns with typical broker limits.
const maxPayloadSize = 1 << 20 // 1MB

// Publish submits a message and returns its request id without waiting for
// the broker. Completion is reported later: EventPublished for QoS 1 and 2
// once acknowledged, EventError on failure. QoS 0 messages have no
// acknowledgement and report only failures.
//
// QoS Levels:
//   - 0: At most once (fire and forget)
//   - 1: At least once (guaranteed delivery, may duplicate)
//   - 2: Exactly once (guaranteed, no duplicates, higher overhead)
func (s *Session) Publish(topic string, payload []byte, qos byte, retained bool) (int, error) {
	if err := validatePublishTopic(topic); err != nil {
		return 0, err
	}
	if qos > maxQoS {
		return 0, ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return 0, fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}

	if !s.client.IsConnectionOpen() {
		return 0, ErrNotConnected
	}
	if !s.track() {
		return 0, ErrSessionStopped
	}

	id := s.requestID()
	token := s.client.Publish(topic, qos, retained, payload)

	if qos == 0 {
		s.watchFailure(token, id, topic)
	} else {
		s.watch(token, id, session.EventPublished, ErrPublishFailed, topic)
	}

	s.logger.Debug("mqtt publish submitted", "msg_id", id, "topic", topic, "qos", qos, "bytes", len(payload))
	return id, nil
}

// watchFailure reports only a failed completion. The caller must hold a
// watcher from track.
func (s *Session) watchFailure(token tokenWaiter, id int, topic string) {
	go func() {
		defer s.watchers.Done()

		select {
		case <-token.Done():
		case <-s.stop:
			return
		}
		if err := token.Error(); err != nil {
			wrapped := fmt.Errorf("%w: %w", ErrPublishFailed, err)
			s.logger.Warn("mqtt publish failed", "msg_id", id, "topic", topic, "error", err)
			s.queue.Emit(session.Event{Kind: session.EventError, RequestID: id, Topic: topic, Err: wrapped})
		}
	}()
}

// tokenWaiter is the part of pahomqtt.Token the watchers use.
type tokenWaiter interface {
	Done() <-chan struct{}
	Error() error
}
