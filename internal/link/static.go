package link

import (
	"context"

	"github.com/nerrad567/gray-logic-uplink/internal/dispatch"
)

// eventQueueSize is the initial per-driver event queue allocation.
const eventQueueSize = 32

// StaticDriver reports a link that is always up: every Connect yields
// Connected followed by AddressAcquired.
type StaticDriver struct {
	queue *dispatch.Serial[Event]
}

// NewStaticDriver creates a StaticDriver.
func NewStaticDriver() *StaticDriver {
	return &StaticDriver{
		queue: dispatch.NewSerial[Event](eventQueueSize),
	}
}

// SetEventHandler registers the event sink.
func (d *StaticDriver) SetEventHandler(handler func(Event)) {
	d.queue.SetHandler(handler)
}

// Start emits EventStarted.
func (d *StaticDriver) Start(_ context.Context) error {
	d.queue.Start()
	d.queue.Emit(Event{Kind: EventStarted})
	return nil
}

// Connect emits EventConnected and EventAddressAcquired.
func (d *StaticDriver) Connect() error {
	if !d.queue.Emit(Event{Kind: EventConnected}) {
		return ErrDriverStopped
	}
	d.queue.Emit(Event{Kind: EventAddressAcquired})
	return nil
}

// Drop emits EventDisconnected, as if the link had been lost.
func (d *StaticDriver) Drop() {
	d.queue.Emit(Event{Kind: EventDisconnected})
}

// Stop halts event delivery.
func (d *StaticDriver) Stop() {
	d.queue.Stop()
}
