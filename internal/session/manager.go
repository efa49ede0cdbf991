package session

import (
	"fmt"
	"sync"
)

// Manager owns the session handle. EnsureStarted is a create-or-get
// operation, so repeated address-acquired notifications never create a
// second session.
type Manager struct {
	lib        Library
	brokerURL  string
	controller *Controller
	logger     Logger

	mu      sync.Mutex
	handle  Handle
	created int
}

// NewManager creates a manager that builds sessions for brokerURL and routes
// their events to controller.
func NewManager(lib Library, brokerURL string, controller *Controller) *Manager {
	return &Manager{
		lib:        lib,
		brokerURL:  brokerURL,
		controller: controller,
		logger:     noopLogger{},
	}
}

// SetLogger sets the logger for the manager.
func (m *Manager) SetLogger(logger Logger) {
	m.logger = logger
}

// EnsureStarted creates and starts the session if none exists.
// Calling it while a session exists is a no-op.
func (m *Manager) EnsureStarted() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.handle != nil {
		m.logger.Debug("session already started", "broker", m.brokerURL)
		return nil
	}
	return m.startLocked()
}

// startLocked builds a new handle. On failure no handle is kept, so the
// next call retries from scratch. Caller holds m.mu.
func (m *Manager) startLocked() error {
	m.logger.Info("starting session", "broker", m.brokerURL)

	h, err := m.lib.NewSession(m.brokerURL)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCreateFailed, err)
	}

	h.SetEventHandler(func(ev Event) {
		m.controller.HandleEvent(h, ev)
	})

	if err := h.Start(); err != nil {
		h.Stop()
		return fmt.Errorf("%w: %w", ErrStartFailed, err)
	}

	m.handle = h
	m.created++
	return nil
}

// Recreate tears down the current session, if any, and starts a new one.
func (m *Manager) Recreate() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.handle != nil {
		m.handle.Stop()
		m.handle = nil
		m.controller.markDown()
	}
	return m.startLocked()
}

// Publish submits msg on the current session.
func (m *Manager) Publish(msg Message) (int, error) {
	m.mu.Lock()
	h := m.handle
	m.mu.Unlock()

	if h == nil {
		return 0, ErrNotStarted
	}
	return h.Publish(msg.Topic, msg.Payload, msg.QoS, msg.Retain)
}

// Started reports whether a session handle exists.
func (m *Manager) Started() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.handle != nil
}

// Created returns how many sessions have been created.
func (m *Manager) Created() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.created
}

// Stop stops the current session and marks health down.
func (m *Manager) Stop() {
	m.mu.Lock()
	h := m.handle
	m.handle = nil
	m.mu.Unlock()

	if h == nil {
		return
	}
	m.logger.Info("stopping session", "broker", m.brokerURL)
	h.Stop()
	m.controller.markDown()
}
