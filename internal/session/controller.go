package session

import (
	"sync"
	"sync/atomic"

	"github.com/nerrad567/gray-logic-uplink/internal/health"
)

// Controller is the event sink for a session. It owns the write side of
// the health flag and re-applies the subscription set on every Connected.
//
// Thread Safety:
//   - HandleEvent is expected to be called serially by the session library.
//   - Setters and Stats are safe for concurrent use.
type Controller struct {
	health        *health.Flag
	subscriptions []Subscription
	logger        Logger

	mu       sync.RWMutex
	onData   DataHandler
	observer Observer

	connects       atomic.Uint64
	disconnects    atomic.Uint64
	subscribeCalls atomic.Uint64
	received       atomic.Uint64
	errors         atomic.Uint64
}

// ControllerStats is a snapshot of controller counters.
type ControllerStats struct {
	Healthy        bool   `json:"healthy"`
	Connects       uint64 `json:"connects"`
	Disconnects    uint64 `json:"disconnects"`
	SubscribeCalls uint64 `json:"subscribe_calls"`
	Received       uint64 `json:"received"`
	Errors         uint64 `json:"errors"`
}

// NewController creates a controller writing to flag and subscribing to
// subs, in order, on every Connected event.
func NewController(flag *health.Flag, subs []Subscription) *Controller {
	return &Controller{
		health:        flag,
		subscriptions: append([]Subscription(nil), subs...),
		logger:        noopLogger{},
	}
}

// SetLogger sets the logger for the controller.
func (c *Controller) SetLogger(logger Logger) {
	c.logger = logger
}

// SetDataHandler sets the consumer for inbound messages.
func (c *Controller) SetDataHandler(handler DataHandler) {
	c.mu.Lock()
	c.onData = handler
	c.mu.Unlock()
}

// SetObserver sets the observer notified after each event.
func (c *Controller) SetObserver(observer Observer) {
	c.mu.Lock()
	c.observer = observer
	c.mu.Unlock()
}

// Subscriptions returns a copy of the configured subscription set.
func (c *Controller) Subscriptions() []Subscription {
	return append([]Subscription(nil), c.subscriptions...)
}

// HandleEvent applies one session event. It never blocks.
func (c *Controller) HandleEvent(sub Subscriber, ev Event) {
	switch ev.Kind {
	case EventConnected:
		c.handleConnected(sub)

	case EventDisconnected:
		c.disconnects.Add(1)
		c.health.Set(false)
		c.logger.Info("session disconnected")

	case EventSubscribed:
		c.logger.Info("session subscribed", "request_id", ev.RequestID)

	case EventUnsubscribed:
		c.logger.Info("session unsubscribed", "request_id", ev.RequestID)

	case EventPublished:
		c.logger.Debug("session published", "request_id", ev.RequestID)

	case EventDataReceived:
		c.handleData(ev)

	case EventError:
		c.errors.Add(1)
		c.logger.Warn("session error",
			"request_id", ev.RequestID,
			"error", ev.Err,
		)

	case EventOther:
		c.logger.Debug("session event", "kind", ev.Kind.String())

	default:
		c.logger.Info("unrecognised session event", "kind", ev.Kind.String())
	}

	c.mu.RLock()
	observer := c.observer
	c.mu.RUnlock()
	if observer != nil {
		observer.SessionEvent(ev, c.health.Healthy())
	}
}

// handleConnected marks the session healthy and issues one subscribe per
// configured entry. Subscribe acknowledgements are logged elsewhere.
func (c *Controller) handleConnected(sub Subscriber) {
	c.connects.Add(1)
	c.health.Set(true)
	c.logger.Info("session connected", "subscriptions", len(c.subscriptions))

	for _, s := range c.subscriptions {
		c.subscribeCalls.Add(1)
		id, err := sub.Subscribe(s.Topic, s.QoS)
		if err != nil {
			c.logger.Warn("subscribe request failed",
				"topic", s.Topic,
				"qos", s.QoS,
				"error", err,
			)
			continue
		}
		c.logger.Info("subscribe requested",
			"topic", s.Topic,
			"qos", s.QoS,
			"request_id", id,
		)
	}
}

// handleData copies the payload out of the library buffer before handing
// it to the consumer.
func (c *Controller) handleData(ev Event) {
	c.received.Add(1)

	c.mu.RLock()
	handler := c.onData
	c.mu.RUnlock()

	c.logger.Debug("session data received",
		"topic", ev.Topic,
		"bytes", len(ev.Payload),
	)

	if handler == nil {
		return
	}

	payload := append([]byte(nil), ev.Payload...)
	handler(ev.Topic, payload)
}

// markDown clears health outside the event path, when the manager tears
// the session down.
func (c *Controller) markDown() {
	c.health.Set(false)
}

// Stats returns a snapshot of controller counters.
func (c *Controller) Stats() ControllerStats {
	return ControllerStats{
		Healthy:        c.health.Healthy(),
		Connects:       c.connects.Load(),
		Disconnects:    c.disconnects.Load(),
		SubscribeCalls: c.subscribeCalls.Load(),
		Received:       c.received.Load(),
		Errors:         c.errors.Load(),
	}
}
