//go:build integration

package mqtt

import (
	"fmt"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-uplink/internal/session"
)

// Integration tests against a real broker.
// These tests require a running MQTT broker at 127.0.0.1:1883.
//
// Run with:
//   go test -tags=integration -v ./internal/infrastructure/mqtt/...

func integrationSession(t *testing.T, clientID string) (*Session, *eventSink) {
	t.Helper()
	cfg := testConfig()
	cfg.ClientID = clientID

	h, err := NewLibrary(cfg).NewSession(cfg.BrokerURL)
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}
	s := h.(*Session)
	sink := newEventSink()
	s.SetEventHandler(sink.handle)
	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(s.Stop)

	select {
	case ev := <-sink.ch:
		if ev.Kind != session.EventConnected {
			t.Skipf("no broker at %s (first event %s)", cfg.BrokerURL, ev.Kind)
		}
	case <-time.After(3 * time.Second):
		t.Skipf("no broker at %s", cfg.BrokerURL)
	}
	return s, sink
}

// waitFor skips events until one of kind arrives.
func waitFor(t *testing.T, sink *eventSink, kind session.EventKind) session.Event {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev := <-sink.ch:
			if ev.Kind == kind {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", kind)
		}
	}
}

func TestIntegration_SubscribePublishRoundtrip(t *testing.T) {
	s, sink := integrationSession(t, "uplink-int-roundtrip")

	topic := fmt.Sprintf("uplink/int/%d", time.Now().UnixNano())

	subID, err := s.Subscribe(topic, 1)
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if ev := waitFor(t, sink, session.EventSubscribed); ev.RequestID != subID {
		t.Errorf("subscribed id = %d, want %d", ev.RequestID, subID)
	}

	pubID, err := s.Publish(topic, []byte("ping"), 1, false)
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if ev := waitFor(t, sink, session.EventPublished); ev.RequestID != pubID {
		t.Errorf("published id = %d, want %d", ev.RequestID, pubID)
	}

	ev := waitFor(t, sink, session.EventDataReceived)
	if ev.Topic != topic || string(ev.Payload) != "ping" {
		t.Errorf("data = %s %q, want %s ping", ev.Topic, ev.Payload, topic)
	}
}

func TestIntegration_UnsubscribeAcknowledged(t *testing.T) {
	s, sink := integrationSession(t, "uplink-int-unsub")

	if _, err := s.Subscribe("uplink/int/unsub", 0); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	waitFor(t, sink, session.EventSubscribed)

	id, err := s.Unsubscribe("uplink/int/unsub")
	if err != nil {
		t.Fatalf("Unsubscribe() error = %v", err)
	}
	if ev := waitFor(t, sink, session.EventUnsubscribed); ev.RequestID != id {
		t.Errorf("unsubscribed id = %d, want %d", ev.RequestID, id)
	}
}
