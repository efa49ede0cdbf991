package link

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeDriver counts connect requests.
type fakeDriver struct {
	mu       sync.Mutex
	connects int
	err      error
	called   chan struct{}
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{called: make(chan struct{}, 16)}
}

func (d *fakeDriver) SetEventHandler(func(Event)) {}
func (d *fakeDriver) Start(context.Context) error { return nil }
func (d *fakeDriver) Stop() {}

func (d *fakeDriver) Connect() error {
	d.mu.Lock()
	d.connects++
	err := d.err
	d.mu.Unlock()
	d.called <- struct{}{}
	return err
}

func (d *fakeDriver) Connects() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.connects
}

// fakeStarter models create-or-get session start.
type fakeStarter struct {
	mu      sync.Mutex
	calls   int
	creates int
	starts  int
	err     error
}

func (s *fakeStarter) EnsureStarted() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return s.err
	}
	if s.creates == 0 {
		s.creates++
		s.starts++
	}
	return nil
}

type transition struct {
	from, to State
	ev       EventKind
}

type recordingObserver struct {
	mu  sync.Mutex
	got []transition
}

func (o *recordingObserver) LinkStateChanged(from, to State, ev EventKind) {
	o.mu.Lock()
	o.got = append(o.got, transition{from, to, ev})
	o.mu.Unlock()
}

// stepPolicy returns fixed delays and then gives up.
type stepPolicy struct {
	delays []time.Duration
	next   int
	resets int
}

func (p *stepPolicy) NextDelay() (time.Duration, bool) {
	if p.next >= len(p.delays) {
		return 0, false
	}
	d := p.delays[p.next]
	p.next++
	return d, true
}

func (p *stepPolicy) Reset() {
	p.resets++
	p.next = 0
}

func TestMonitor_ConnectRequestPerEvent(t *testing.T) {
	tests := []struct {
		name   string
		events []EventKind
		want   int
	}{
		{"started only", []EventKind{EventStarted}, 1},
		{"connected issues nothing", []EventKind{EventStarted, EventConnected}, 1},
		{"address issues nothing", []EventKind{EventStarted, EventConnected, EventAddressAcquired}, 1},
		{"one drop", []EventKind{EventStarted, EventConnected, EventDisconnected}, 2},
		{"repeated drops", []EventKind{EventStarted, EventDisconnected, EventDisconnected, EventDisconnected}, 4},
		{"unknown kind ignored", []EventKind{EventKind(99)}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newFakeDriver()
			m := NewMonitor(d, &fakeStarter{}, nil)

			for _, k := range tt.events {
				m.HandleEvent(Event{Kind: k})
			}

			if got := d.Connects(); got != tt.want {
				t.Errorf("connect requests = %d, want %d", got, tt.want)
			}
			if got := m.Stats().ConnectAttempts; got != uint64(tt.want) {
				t.Errorf("Stats().ConnectAttempts = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestMonitor_AddressAcquiredStartsSessionOnce(t *testing.T) {
	d := newFakeDriver()
	s := &fakeStarter{}
	m := NewMonitor(d, s, nil)

	for _, k := range []EventKind{EventStarted, EventConnected, EventAddressAcquired} {
		m.HandleEvent(Event{Kind: k})
	}

	if s.calls != 1 || s.creates != 1 || s.starts != 1 {
		t.Errorf("starter calls/creates/starts = %d/%d/%d, want 1/1/1", s.calls, s.creates, s.starts)
	}
	if m.State() != StateAddressAcquired {
		t.Errorf("State() = %q, want %q", m.State(), StateAddressAcquired)
	}

	// A second acquisition after a drop must not create a second session.
	m.HandleEvent(Event{Kind: EventDisconnected})
	m.HandleEvent(Event{Kind: EventConnected})
	m.HandleEvent(Event{Kind: EventAddressAcquired})

	if s.calls != 2 {
		t.Errorf("starter calls = %d, want 2", s.calls)
	}
	if s.creates != 1 || s.starts != 1 {
		t.Errorf("creates/starts = %d/%d, want 1/1", s.creates, s.starts)
	}
}

func TestMonitor_StartFailureIsLoggedOnly(t *testing.T) {
	d := newFakeDriver()
	s := &fakeStarter{err: errors.New("boom")}
	m := NewMonitor(d, s, nil)

	m.HandleEvent(Event{Kind: EventAddressAcquired})

	if m.State() != StateAddressAcquired {
		t.Errorf("State() = %q, want %q", m.State(), StateAddressAcquired)
	}
	if d.Connects() != 0 {
		t.Errorf("connect requests = %d, want 0", d.Connects())
	}
}

func TestMonitor_ConnectErrorDoesNotRetry(t *testing.T) {
	d := newFakeDriver()
	d.err = ErrDriverStopped
	m := NewMonitor(d, &fakeStarter{}, nil)

	m.HandleEvent(Event{Kind: EventStarted})

	if d.Connects() != 1 {
		t.Errorf("connect requests = %d, want 1", d.Connects())
	}
}

func TestMonitor_StateTransitions(t *testing.T) {
	tests := []struct {
		event EventKind
		want  State
	}{
		{EventStarted, StateConnecting},
		{EventConnected, StateConnected},
		{EventAddressAcquired, StateAddressAcquired},
		{EventDisconnected, StateDisconnected},
	}

	d := newFakeDriver()
	obs := &recordingObserver{}
	m := NewMonitor(d, &fakeStarter{}, nil)
	m.SetObserver(obs)

	if m.State() != StateIdle {
		t.Fatalf("initial State() = %q, want %q", m.State(), StateIdle)
	}

	prev := StateIdle
	for i, tt := range tests {
		m.HandleEvent(Event{Kind: tt.event})
		if got := m.State(); got != tt.want {
			t.Errorf("after %s: State() = %q, want %q", tt.event, got, tt.want)
		}
		want := transition{prev, tt.want, tt.event}
		if obs.got[i] != want {
			t.Errorf("observer[%d] = %+v, want %+v", i, obs.got[i], want)
		}
		prev = tt.want
	}

	if got := m.Stats().Events; got != uint64(len(tests)) {
		t.Errorf("Stats().Events = %d, want %d", got, len(tests))
	}
}

func TestMonitor_DelayedReconnect(t *testing.T) {
	d := newFakeDriver()
	p := &stepPolicy{delays: []time.Duration{20 * time.Millisecond}}
	m := NewMonitor(d, &fakeStarter{}, p)
	defer m.Stop()

	m.HandleEvent(Event{Kind: EventStarted})
	if d.Connects() != 1 {
		t.Fatalf("connect requests after start = %d, want 1", d.Connects())
	}
	<-d.called

	m.HandleEvent(Event{Kind: EventDisconnected})
	if d.Connects() != 1 {
		t.Errorf("connect issued before delay elapsed")
	}

	select {
	case <-d.called:
	case <-time.After(time.Second):
		t.Fatal("delayed connect never issued")
	}
	if d.Connects() != 2 {
		t.Errorf("connect requests = %d, want 2", d.Connects())
	}
}

func TestMonitor_StartedConnectsWithoutPolicy(t *testing.T) {
	d := newFakeDriver()
	p := &stepPolicy{delays: []time.Duration{time.Hour}}
	m := NewMonitor(d, &fakeStarter{}, p)
	defer m.Stop()

	m.HandleEvent(Event{Kind: EventStarted})

	if d.Connects() != 1 {
		t.Errorf("connect requests right after Started = %d, want 1", d.Connects())
	}
	if p.next != 0 {
		t.Errorf("policy delays consumed by Started = %d, want 0", p.next)
	}
}

func TestMonitor_NewerEventSupersedesPendingConnect(t *testing.T) {
	d := newFakeDriver()
	p := &stepPolicy{delays: []time.Duration{time.Hour, 0}}
	m := NewMonitor(d, &fakeStarter{}, p)
	defer m.Stop()

	m.HandleEvent(Event{Kind: EventDisconnected}) // scheduled an hour out
	m.HandleEvent(Event{Kind: EventDisconnected}) // immediate, cancels the pending one

	if d.Connects() != 1 {
		t.Errorf("connect requests = %d, want 1", d.Connects())
	}
}

func TestMonitor_PolicyExhausted(t *testing.T) {
	d := newFakeDriver()
	p := &stepPolicy{delays: []time.Duration{0}}
	m := NewMonitor(d, &fakeStarter{}, p)

	m.HandleEvent(Event{Kind: EventStarted})
	m.HandleEvent(Event{Kind: EventDisconnected})
	m.HandleEvent(Event{Kind: EventDisconnected})

	if d.Connects() != 2 {
		t.Errorf("connect requests = %d, want 2", d.Connects())
	}
	if m.State() != StateDisconnected {
		t.Errorf("State() = %q, want %q", m.State(), StateDisconnected)
	}

	// Address acquisition resets the policy.
	m.HandleEvent(Event{Kind: EventAddressAcquired})
	if p.resets != 1 {
		t.Errorf("policy resets = %d, want 1", p.resets)
	}
	m.HandleEvent(Event{Kind: EventDisconnected})
	if d.Connects() != 3 {
		t.Errorf("connect requests after reset = %d, want 3", d.Connects())
	}
}

func TestMonitor_StopCancelsPending(t *testing.T) {
	d := newFakeDriver()
	p := &stepPolicy{delays: []time.Duration{30 * time.Millisecond}}
	m := NewMonitor(d, &fakeStarter{}, p)

	m.HandleEvent(Event{Kind: EventDisconnected})
	m.Stop()

	time.Sleep(80 * time.Millisecond)
	if d.Connects() != 0 {
		t.Errorf("connect requests after Stop = %d, want 0", d.Connects())
	}
}
