package producer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-logic-uplink/internal/session"
)

// Defaults for the periodic message.
const (
	DefaultTopic    = "/cm/test3"
	DefaultPayload  = "Message du microcontrôleur"
	DefaultInterval = 15 * time.Second
)

// ErrInvalidConfig is returned by New for an unusable configuration.
var ErrInvalidConfig = errors.New("producer: invalid config")

// Config describes the message published each interval.
type Config struct {
	Topic    string
	Payload  []byte
	QoS      byte
	Retain   bool
	Interval time.Duration
}

// Publisher submits one outbound message. session.Manager satisfies it.
type Publisher interface {
	Publish(msg session.Message) (int, error)
}

// HealthSource is the read side of the health flag.
type HealthSource interface {
	Healthy() bool
	Changed() <-chan struct{}
}

// Observer is told about every publish attempt. Implementations must not block.
type Observer interface {
	Published(msg session.Message, requestID int, err error)
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

// Stats is a snapshot of loop counters.
type Stats struct {
	Iterations  uint64    `json:"iterations"`
	Published   uint64    `json:"published"`
	Failed      uint64    `json:"failed"`
	IdleWaits   uint64    `json:"idle_waits"`
	LastPublish time.Time `json:"last_publish,omitempty"`
	Running     bool      `json:"running"`
}

// Loop publishes cfg's message every interval while health reports healthy.
type Loop struct {
	cfg    Config
	pub    Publisher
	health HealthSource
	logger Logger

	// after is time.After, replaceable in tests.
	after func(time.Duration) <-chan time.Time

	mu          sync.Mutex
	observer    Observer
	lastPublish time.Time

	running    atomic.Bool
	iterations atomic.Uint64
	published  atomic.Uint64
	failed     atomic.Uint64
	idleWaits  atomic.Uint64
}

// New creates a loop. The topic must be set and the interval positive.
func New(cfg Config, pub Publisher, health HealthSource) (*Loop, error) {
	if cfg.Topic == "" {
		return nil, errors.Join(ErrInvalidConfig, errors.New("topic is required"))
	}
	if cfg.Interval <= 0 {
		return nil, errors.Join(ErrInvalidConfig, errors.New("interval must be positive"))
	}
	if cfg.QoS > 2 {
		return nil, errors.Join(ErrInvalidConfig, errors.New("qos must be 0, 1 or 2"))
	}
	cfg.Payload = append([]byte(nil), cfg.Payload...)

	return &Loop{
		cfg:    cfg,
		pub:    pub,
		health: health,
		logger: noopLogger{},
		after:  time.After,
	}, nil
}

// SetLogger sets the logger for the loop.
func (l *Loop) SetLogger(logger Logger) {
	l.logger = logger
}

// SetObserver sets the observer told about each publish attempt.
func (l *Loop) SetObserver(observer Observer) {
	l.mu.Lock()
	l.observer = observer
	l.mu.Unlock()
}

// Run executes the loop until ctx is cancelled. It returns nil on
// cancellation.
func (l *Loop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return errors.New("producer: loop already running")
	}
	defer l.running.Store(false)

	l.logger.Info("producer started",
		"topic", l.cfg.Topic,
		"qos", l.cfg.QoS,
		"interval", l.cfg.Interval,
	)

	for {
		if ctx.Err() != nil {
			l.logger.Info("producer stopped")
			return nil
		}

		// Take the change channel before reading the flag so a transition
		// between the two cannot be missed.
		changed := l.health.Changed()
		l.iterations.Add(1)

		if !l.health.Healthy() {
			l.idleWaits.Add(1)
			l.logger.Debug("session not healthy, waiting")
			select {
			case <-ctx.Done():
				continue
			case <-changed:
				continue
			}
		}

		l.publishOnce()

		select {
		case <-ctx.Done():
		case <-l.after(l.cfg.Interval):
		}
	}
}

// publishOnce builds a fresh message and submits it.
func (l *Loop) publishOnce() {
	msg := session.Message{
		Topic:   l.cfg.Topic,
		Payload: append([]byte(nil), l.cfg.Payload...),
		QoS:     l.cfg.QoS,
		Retain:  l.cfg.Retain,
	}

	id, err := l.pub.Publish(msg)
	if err != nil {
		l.failed.Add(1)
		l.logger.Warn("publish failed", "topic", msg.Topic, "error", err)
	} else {
		l.published.Add(1)
		l.logger.Info("message published", "topic", msg.Topic, "msg_id", id)
	}

	l.mu.Lock()
	l.lastPublish = time.Now()
	observer := l.observer
	l.mu.Unlock()

	if observer != nil {
		observer.Published(msg, id, err)
	}
}

// Stats returns a snapshot of loop counters.
func (l *Loop) Stats() Stats {
	l.mu.Lock()
	last := l.lastPublish
	l.mu.Unlock()

	return Stats{
		Iterations:  l.iterations.Load(),
		Published:   l.published.Load(),
		Failed:      l.failed.Load(),
		IdleWaits:   l.idleWaits.Load(),
		LastPublish: last,
		Running:     l.running.Load(),
	}
}
