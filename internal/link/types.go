package link

import (
	"context"
	"fmt"
)

// State is the link-layer state as last reported by the driver.
type State string

const (
	StateIdle            State = "idle"
	StateConnecting      State = "connecting"
	StateConnected       State = "connected"
	StateAddressAcquired State = "address_acquired"
	StateDisconnected    State = "disconnected"
)

// EventKind identifies a link-layer lifecycle event.
type EventKind int

// Link lifecycle event kinds.
const (
	EventStarted EventKind = iota + 1
	EventConnected
	EventAddressAcquired
	EventDisconnected
)

// String returns the lower-case name used in logs and the journal.
func (k EventKind) String() string {
	switch k {
	case EventStarted:
		return "started"
	case EventConnected:
		return "connected"
	case EventAddressAcquired:
		return "address_acquired"
	case EventDisconnected:
		return "disconnected"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Event is a link-layer notification. It carries no payload beyond its kind.
type Event struct {
	Kind EventKind
}

// Driver is the link library: it brings the link up on request and reports
// what happened through events delivered serially to one handler.
type Driver interface {
	// SetEventHandler registers the single event sink. Call before Start.
	SetEventHandler(handler func(Event))

	// Start begins delivering events. The first event is EventStarted.
	Start(ctx context.Context) error

	// Connect requests association. It returns without waiting; the outcome
	// is reported later as EventConnected/EventAddressAcquired or
	// EventDisconnected.
	Connect() error

	// Stop halts event delivery.
	Stop()
}

// SessionStarter starts the messaging session once an address is held.
// Implementations must treat a second call as a no-op.
type SessionStarter interface {
	EnsureStarted() error
}

// Observer is notified of every state change. Implementations must not block.
type Observer interface {
	LinkStateChanged(from, to State, ev EventKind)
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
