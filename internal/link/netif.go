package link

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-logic-uplink/internal/dispatch"
)

// defaultPollInterval is how often InterfaceDriver samples the interface.
const defaultPollInterval = time.Second

// ifaceStatus is one sample of an interface.
type ifaceStatus struct {
	up         bool
	hasAddress bool
}

// InterfaceDriver watches an OS network interface.
//
// The operating system owns association; Connect arms the driver so that it
// reports the interface coming up (Connected) and gaining a global unicast
// address (AddressAcquired). Losing either reports Disconnected and disarms
// the driver until the next Connect.
type InterfaceDriver struct {
	name     string
	interval time.Duration
	lookup   func(name string) (ifaceStatus, error)
	queue    *dispatch.Serial[Event]

	armed atomic.Bool
	kick  chan struct{}

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewInterfaceDriver creates a driver for the named interface.
// A zero interval means one second.
func NewInterfaceDriver(name string, interval time.Duration) (*InterfaceDriver, error) {
	if name == "" {
		return nil, ErrNoInterface
	}
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &InterfaceDriver{
		name:     name,
		interval: interval,
		lookup:   lookupInterface,
		queue:    dispatch.NewSerial[Event](eventQueueSize),
		kick:     make(chan struct{}, 1),
	}, nil
}

// Name returns the watched interface name.
func (d *InterfaceDriver) Name() string {
	return d.name
}

// SetEventHandler registers the event sink.
func (d *InterfaceDriver) SetEventHandler(handler func(Event)) {
	d.queue.SetHandler(handler)
}

// Start emits EventStarted and begins polling.
func (d *InterfaceDriver) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.done != nil {
		d.mu.Unlock()
		return fmt.Errorf("interface driver %s already started", d.name)
	}
	pollCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.done = make(chan struct{})
	d.mu.Unlock()

	d.queue.Start()
	d.queue.Emit(Event{Kind: EventStarted})

	go d.poll(pollCtx)
	return nil
}

// Connect arms the driver and triggers an immediate sample.
func (d *InterfaceDriver) Connect() error {
	d.mu.Lock()
	started := d.done != nil
	d.mu.Unlock()
	if !started {
		return ErrDriverStopped
	}

	d.armed.Store(true)
	select {
	case d.kick <- struct{}{}:
	default:
	}
	return nil
}

// Stop halts polling and event delivery.
func (d *InterfaceDriver) Stop() {
	d.mu.Lock()
	cancel := d.cancel
	done := d.done
	d.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	d.queue.Stop()
}

// poll samples the interface until ctx is cancelled.
func (d *InterfaceDriver) poll(ctx context.Context) {
	defer close(d.done)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	var linked, addressed bool

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-d.kick:
		}

		if !d.armed.Load() {
			linked, addressed = false, false
			continue
		}

		st, err := d.lookup(d.name)
		if err != nil {
			st = ifaceStatus{}
		}

		switch {
		case (linked && !st.up) || (addressed && !st.hasAddress):
			linked, addressed = false, false
			d.armed.Store(false)
			d.queue.Emit(Event{Kind: EventDisconnected})
			continue
		case !linked && st.up:
			linked = true
			d.queue.Emit(Event{Kind: EventConnected})
		}

		if linked && !addressed && st.hasAddress {
			addressed = true
			d.queue.Emit(Event{Kind: EventAddressAcquired})
		}
	}
}

// lookupInterface samples the named interface from the OS.
func lookupInterface(name string) (ifaceStatus, error) {
	ifi, err := net.InterfaceByName(name)
	if err != nil {
		return ifaceStatus{}, fmt.Errorf("looking up interface %s: %w", name, err)
	}

	st := ifaceStatus{
		up: ifi.Flags&net.FlagUp != 0 && ifi.Flags&net.FlagRunning != 0,
	}

	addrs, err := ifi.Addrs()
	if err != nil {
		return st, fmt.Errorf("listing addresses for %s: %w", name, err)
	}
	for _, a := range addrs {
		if ipnet, ok := a.(*net.IPNet); ok && ipnet.IP.IsGlobalUnicast() {
			st.hasAddress = true
			break
		}
	}
	return st, nil
}
