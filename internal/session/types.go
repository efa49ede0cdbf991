package session

import "fmt"

// EventKind identifies a session lifecycle event.
type EventKind int

// Session lifecycle event kinds.
const (
	EventOther EventKind = iota
	EventConnected
	EventDisconnected
	EventSubscribed
	EventUnsubscribed
	EventPublished
	EventDataReceived
	EventError
)

// String returns the lower-case name used in logs and the journal.
func (k EventKind) String() string {
	switch k {
	case EventConnected:
		return "connected"
	case EventDisconnected:
		return "disconnected"
	case EventSubscribed:
		return "subscribed"
	case EventUnsubscribed:
		return "unsubscribed"
	case EventPublished:
		return "published"
	case EventDataReceived:
		return "data"
	case EventError:
		return "error"
	case EventOther:
		return "other"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Event is a single notification from the session library.
//
// Topic and Payload are only set for EventDataReceived and may alias the
// library's receive buffer; they are valid for the duration of the
// HandleEvent call only.
type Event struct {
	Kind      EventKind
	RequestID int
	Topic     string
	Payload   []byte
	Err       error
}

// Subscription is one entry of the fixed subscription set.
type Subscription struct {
	Topic string
	QoS   byte
}

// Message is an outbound publish request. It carries no identity across
// publishes.
type Message struct {
	Topic   string
	Payload []byte
	QoS     byte
	Retain  bool
}

// Subscriber issues subscribe requests on a live session.
type Subscriber interface {
	// Subscribe requests a subscription and returns the library's request ID.
	// Completion is reported later as an EventSubscribed or EventError.
	Subscribe(topic string, qos byte) (int, error)
}

// Handle is one session instance created by a Library.
type Handle interface {
	Subscriber

	// SetEventHandler registers the single sink for this session's events.
	// It must be called before Start.
	SetEventHandler(handler func(Event))

	// Start begins connecting in the background. It does not wait for the
	// broker; the outcome arrives as EventConnected or EventError.
	Start() error

	// Publish submits a message and returns the library's request ID.
	Publish(topic string, payload []byte, qos byte, retain bool) (int, error)

	// Stop disconnects and releases the session.
	Stop()
}

// Library creates session handles.
type Library interface {
	NewSession(brokerURL string) (Handle, error)
}

// DataHandler consumes inbound messages. Topic and payload are copies owned
// by the handler.
type DataHandler func(topic string, payload []byte)

// Observer is notified after every handled event. Implementations must not
// block.
type Observer interface {
	SessionEvent(ev Event, healthy bool)
}

// Logger defines the logging interface used by this package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
