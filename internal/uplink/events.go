package uplink

import (
	"fmt"

	"github.com/nerrad567/gray-logic-uplink/internal/api"
	"github.com/nerrad567/gray-logic-uplink/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-uplink/internal/journal"
	"github.com/nerrad567/gray-logic-uplink/internal/link"
	"github.com/nerrad567/gray-logic-uplink/internal/producer"
	"github.com/nerrad567/gray-logic-uplink/internal/session"
)

// journalSink is the part of journal.Recorder the fan-out uses.
type journalSink interface {
	Record(e journal.Entry)
}

// broadcaster is the part of api.Hub the fan-out uses.
type broadcaster interface {
	Broadcast(channel string, payload any)
}

// events implements the link, session and producer observers. Any sink may
// be nil.
type events struct {
	journal journalSink
	metrics *influxdb.Client
	hub     broadcaster
}

var (
	_ link.Observer     = (*events)(nil)
	_ session.Observer  = (*events)(nil)
	_ producer.Observer = (*events)(nil)
)

// LinkStateChanged implements link.Observer.
func (e *events) LinkStateChanged(from, to link.State, ev link.EventKind) {
	e.record(journal.Entry{
		Source: journal.SourceLink,
		Kind:   ev.String(),
		Detail: fmt.Sprintf("%s -> %s", from, to),
	})
	if e.metrics != nil {
		e.metrics.WriteLinkState(string(from), string(to), ev.String())
	}
	e.broadcast(api.ChannelLinkState, map[string]any{
		"from":  from,
		"to":    to,
		"event": ev.String(),
	})
}

// SessionEvent implements session.Observer. Inbound data is streamed to the
// hub only; it is too frequent for the journal and metrics.
func (e *events) SessionEvent(ev session.Event, healthy bool) {
	if ev.Kind == session.EventDataReceived {
		e.broadcast(api.ChannelSessionEvent, map[string]any{
			"kind":  ev.Kind.String(),
			"topic": ev.Topic,
			"bytes": len(ev.Payload),
		})
		return
	}

	entry := journal.Entry{
		Source:    journal.SourceSession,
		Kind:      ev.Kind.String(),
		Healthy:   healthy,
		RequestID: ev.RequestID,
	}
	if ev.Err != nil {
		entry.Error = ev.Err.Error()
	}
	e.record(entry)

	if e.metrics != nil {
		e.metrics.WriteSessionEvent(ev.Kind.String(), healthy, ev.Err != nil)
	}

	payload := map[string]any{
		"kind":    ev.Kind.String(),
		"healthy": healthy,
	}
	if ev.RequestID != 0 {
		payload["request_id"] = ev.RequestID
	}
	if ev.Err != nil {
		payload["error"] = ev.Err.Error()
	}
	e.broadcast(api.ChannelSessionEvent, payload)
}

// Published implements producer.Observer.
func (e *events) Published(msg session.Message, requestID int, err error) {
	entry := journal.Entry{
		Source:    journal.SourceProducer,
		Kind:      "published",
		Detail:    msg.Topic,
		Healthy:   true, // the loop only publishes while healthy
		RequestID: requestID,
	}
	if err != nil {
		entry.Kind = "publish_failed"
		entry.Error = err.Error()
	}
	e.record(entry)

	if e.metrics != nil {
		e.metrics.WritePublish(msg.Topic, requestID, err == nil)
	}

	payload := map[string]any{
		"topic":      msg.Topic,
		"qos":        msg.QoS,
		"request_id": requestID,
		"ok":         err == nil,
	}
	if err != nil {
		payload["error"] = err.Error()
	}
	e.broadcast(api.ChannelPublish, payload)
}

// HealthChanged reports a transition of the session health flag.
func (e *events) HealthChanged(healthy bool) {
	kind := "unhealthy"
	if healthy {
		kind = "healthy"
	}
	e.record(journal.Entry{
		Source:  journal.SourceSession,
		Kind:    kind,
		Healthy: healthy,
	})
	e.broadcast(api.ChannelSessionHealth, map[string]any{"healthy": healthy})
}

func (e *events) record(entry journal.Entry) {
	if e.journal != nil {
		e.journal.Record(entry)
	}
}

func (e *events) broadcast(channel string, payload any) {
	if e.hub != nil {
		e.hub.Broadcast(channel, payload)
	}
}
