package link

import (
	"sync"
	"time"
)

// Monitor reacts to link events: it reconnects after drops and starts the
// messaging session once the link has an address.
//
// Thread Safety:
//   - HandleEvent is expected to be called serially by the driver.
//   - State, Stats and Stop are safe for concurrent use.
type Monitor struct {
	driver  Driver
	starter SessionStarter
	policy  RetryPolicy
	logger  Logger

	mu        sync.Mutex
	state     State
	attempts  uint64
	events    uint64
	lastEvent time.Time
	pending   *time.Timer
	observer  Observer
}

// Stats is a snapshot of monitor state.
type Stats struct {
	State           State     `json:"state"`
	ConnectAttempts uint64    `json:"connect_attempts"`
	Events          uint64    `json:"events"`
	LastEvent       time.Time `json:"last_event,omitempty"`
}

// NewMonitor creates a monitor. A nil policy means ImmediatePolicy.
func NewMonitor(driver Driver, starter SessionStarter, policy RetryPolicy) *Monitor {
	if policy == nil {
		policy = ImmediatePolicy{}
	}
	return &Monitor{
		driver:  driver,
		starter: starter,
		policy:  policy,
		logger:  noopLogger{},
		state:   StateIdle,
	}
}

// SetLogger sets the logger for the monitor.
func (m *Monitor) SetLogger(logger Logger) {
	m.logger = logger
}

// SetObserver sets the observer notified on every transition.
func (m *Monitor) SetObserver(observer Observer) {
	m.mu.Lock()
	m.observer = observer
	m.mu.Unlock()
}

// HandleEvent applies one link event.
func (m *Monitor) HandleEvent(ev Event) {
	switch ev.Kind {
	case EventStarted:
		m.transition(StateConnecting, ev.Kind)
		m.logger.Info("link started, connecting")
		m.cancelPending()
		m.connect()

	case EventConnected:
		m.transition(StateConnected, ev.Kind)
		m.logger.Info("link connected")

	case EventAddressAcquired:
		m.transition(StateAddressAcquired, ev.Kind)
		m.policy.Reset()
		m.logger.Info("link address acquired, starting session")
		if err := m.starter.EnsureStarted(); err != nil {
			m.logger.Error("session start failed", "error", err)
		}

	case EventDisconnected:
		m.transition(StateDisconnected, ev.Kind)
		m.logger.Info("link lost, reconnecting")
		m.requestConnect()

	default:
		m.logger.Debug("unrecognised link event", "kind", ev.Kind.String())
	}
}

// transition records the new state and notifies the observer outside the lock.
func (m *Monitor) transition(to State, kind EventKind) {
	m.mu.Lock()
	from := m.state
	m.state = to
	m.events++
	m.lastEvent = time.Now()
	observer := m.observer
	m.mu.Unlock()

	m.logger.Debug("link state", "from", from, "to", to, "event", kind.String())

	if observer != nil {
		observer.LinkStateChanged(from, to, kind)
	}
}

// requestConnect issues exactly one reconnect request for a drop, now or
// after the policy's delay. A newer event replaces a still-pending delayed
// request.
func (m *Monitor) requestConnect() {
	m.cancelPending()

	delay, ok := m.policy.NextDelay()
	if !ok {
		m.logger.Error("link retry policy exhausted, not reconnecting")
		return
	}

	if delay <= 0 {
		m.connect()
		return
	}

	m.logger.Info("link reconnect scheduled", "delay", delay)
	m.mu.Lock()
	m.pending = time.AfterFunc(delay, m.connect)
	m.mu.Unlock()
}

func (m *Monitor) cancelPending() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending != nil {
		m.pending.Stop()
		m.pending = nil
	}
}

// connect calls the driver. Failures are only logged: the driver reports
// the real outcome through a later event.
func (m *Monitor) connect() {
	m.mu.Lock()
	m.attempts++
	attempt := m.attempts
	m.mu.Unlock()

	if err := m.driver.Connect(); err != nil {
		m.logger.Warn("link connect request failed", "attempt", attempt, "error", err)
		return
	}
	m.logger.Debug("link connect requested", "attempt", attempt)
}

// State returns the current link state.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Stats returns a snapshot of monitor state.
func (m *Monitor) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{
		State:           m.state,
		ConnectAttempts: m.attempts,
		Events:          m.events,
		LastEvent:       m.lastEvent,
	}
}

// Stop cancels any pending delayed connect.
func (m *Monitor) Stop() {
	m.cancelPending()
}
