package mqtt

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/gray-logic-uplink/internal/dispatch"
	"github.com/nerrad567/gray-logic-uplink/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-uplink/internal/session"
)

// eventQueueSize is the initial per-session event queue allocation.
const eventQueueSize = 64

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
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

// Library creates paho-backed sessions. It implements session.Library.
type Library struct {
	cfg    config.MQTTConfig
	logger Logger

	// newClient is pahomqtt.NewClient, replaceable in tests.
	newClient func(*pahomqtt.ClientOptions) pahomqtt.Client
}

// NewLibrary creates a Library using cfg for client id, credentials,
// keepalive and status topic. The broker address comes from NewSession.
func NewLibrary(cfg config.MQTTConfig) *Library {
	return &Library{
		cfg:       cfg,
		logger:    noopLogger{},
		newClient: pahomqtt.NewClient,
	}
}

// SetLogger sets the logger handed to every new session.
func (l *Library) SetLogger(logger Logger) {
	l.logger = logger
}

// NewSession builds a session for brokerURL without connecting.
func (l *Library) NewSession(brokerURL string) (session.Handle, error) {
	broker, secure, err := parseBrokerURL(brokerURL)
	if err != nil {
		return nil, err
	}

	s := &Session{
		clientID:    l.cfg.ClientID,
		statusTopic: l.cfg.StatusTopic,
		broker:      broker.Redacted(),
		queue:       dispatch.NewSerial[session.Event](eventQueueSize),
		logger:      l.logger,
		stop:        make(chan struct{}),
	}

	opts := buildClientOptions(l.cfg, broker, secure)
	opts.SetOnConnectHandler(s.handleConnect)
	opts.SetConnectionLostHandler(s.handleConnectionLost)
	opts.SetReconnectingHandler(s.handleReconnecting)

	s.client = l.newClient(opts)
	return s, nil
}

// Session is one MQTT client session. It implements session.Handle.
//
// Every outcome is reported as a session.Event delivered serially to the
// registered handler: connection changes from paho's callbacks, and
// subscribe/publish completions from token watchers.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
//   - Subscribe and Publish never wait for the broker.
type Session struct {
	client      pahomqtt.Client
	clientID    string
	statusTopic string
	broker      string
	queue       *dispatch.Serial[session.Event]
	logger      Logger

	nextID  atomic.Int32
	started atomic.Bool

	stop     chan struct{}
	stopOnce sync.Once

	// mu guards stopping so no watcher is added once Stop waits on watchers.
	mu       sync.Mutex
	stopping bool
	watchers sync.WaitGroup
}

// SetEventHandler registers the single event sink.
func (s *Session) SetEventHandler(handler func(session.Event)) {
	s.queue.SetHandler(handler)
}

// Start begins connecting. paho keeps retrying in the background until the
// broker accepts the connection, which is reported as EventConnected.
func (s *Session) Start() error {
	if !s.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	if !s.track() {
		return ErrSessionStopped
	}

	s.queue.Start()
	s.logger.Info("mqtt session connecting", "broker", s.broker, "client_id", s.clientID)

	s.watchConnect(s.client.Connect())
	return nil
}

// Stop publishes a graceful offline status, disconnects, and halts event
// delivery. It is safe to call more than once.
func (s *Session) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.stopping = true
		s.mu.Unlock()

		if s.client.IsConnectionOpen() && s.statusTopic != "" {
			token := s.client.Publish(s.statusTopic, statusQoS, true, buildOfflinePayload(s.clientID, reasonGraceful))
			token.WaitTimeout(defaultStatusTimeout)
		}
		s.client.Disconnect(defaultDisconnectQuiesce)
		close(s.stop)
		s.watchers.Wait()
		s.queue.Stop()
		s.logger.Info("mqtt session stopped", "broker", s.broker)
	})
}

// IsConnected reports whether the client currently holds an open connection.
func (s *Session) IsConnected() bool {
	return s.client.IsConnectionOpen()
}

// handleConnect runs on every (re)connection.
func (s *Session) handleConnect(_ pahomqtt.Client) {
	s.logger.Info("mqtt connected", "broker", s.broker)
	if s.statusTopic != "" {
		s.client.Publish(s.statusTopic, statusQoS, true, buildOnlinePayload(s.clientID))
	}
	s.queue.Emit(session.Event{Kind: session.EventConnected})
}

// handleConnectionLost runs when an established connection drops.
func (s *Session) handleConnectionLost(_ pahomqtt.Client, err error) {
	s.logger.Warn("mqtt connection lost", "broker", s.broker, "error", err)
	s.queue.Emit(session.Event{Kind: session.EventDisconnected, Err: err})
}

// handleReconnecting runs before each automatic reconnection attempt.
func (s *Session) handleReconnecting(_ pahomqtt.Client, _ *pahomqtt.ClientOptions) {
	s.logger.Debug("mqtt reconnecting", "broker", s.broker)
	s.queue.Emit(session.Event{Kind: session.EventOther})
}

// requestID returns the next request identifier. Identifiers start at 1.
func (s *Session) requestID() int {
	return int(s.nextID.Add(1))
}

// track reserves a watcher. It returns false once Stop has begun; callers
// must then not submit the request.
func (s *Session) track() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopping {
		return false
	}
	s.watchers.Add(1)
	return true
}

// watch waits for token in the background and reports its outcome as an
// event: success on completion, EventError on failure or timeout. The caller
// must hold a watcher from track.
func (s *Session) watch(token tokenWaiter, id int, success session.EventKind, failed error, topic string) {
	go func() {
		defer s.watchers.Done()

		timer := time.NewTimer(defaultTokenTimeout)
		defer timer.Stop()

		var err error
		select {
		case <-token.Done():
			if tokErr := token.Error(); tokErr != nil {
				err = fmt.Errorf("%w: %w", failed, tokErr)
			}
		case <-timer.C:
			err = fmt.Errorf("%w: request %d after %v", ErrTimeout, id, defaultTokenTimeout)
		case <-s.stop:
			return
		}

		if err != nil {
			s.logger.Warn("mqtt request failed", "msg_id", id, "topic", topic, "error", err)
			s.queue.Emit(session.Event{Kind: session.EventError, RequestID: id, Topic: topic, Err: err})
			return
		}
		s.queue.Emit(session.Event{Kind: success, RequestID: id, Topic: topic})
	}()
}

// watchConnect reports a failed connect. With connect retry enabled paho
// only fails the token when the session is stopped or misconfigured.
func (s *Session) watchConnect(token tokenWaiter) {
	go func() {
		defer s.watchers.Done()

		select {
		case <-token.Done():
		case <-s.stop:
			return
		}
		if err := token.Error(); err != nil {
			s.logger.Error("mqtt connect failed", "broker", s.broker, "error", err)
			s.queue.Emit(session.Event{Kind: session.EventError, Err: err})
		}
	}()
}

// wrapHandler turns inbound messages into EventDataReceived, recovering
// from panics in the delivery path.
func (s *Session) wrapHandler() pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("MQTT handler panic recovered",
					"topic", msg.Topic(),
					"panic", r,
				)
			}
		}()

		s.queue.Emit(session.Event{
			Kind:    session.EventDataReceived,
			Topic:   msg.Topic(),
			Payload: msg.Payload(),
		})
	}
}
