package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-uplink/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-uplink/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-uplink/internal/journal"
	"github.com/nerrad567/gray-logic-uplink/internal/link"
	"github.com/nerrad567/gray-logic-uplink/internal/producer"
	"github.com/nerrad567/gray-logic-uplink/internal/session"
)

// gracefulShutdownTimeout bounds in-flight requests during Close.
const gracefulShutdownTimeout = 10 * time.Second

// LinkSource reports link monitor state.
type LinkSource interface {
	Stats() link.Stats
}

// SessionSource reports session controller state.
type SessionSource interface {
	Stats() session.ControllerStats
	Subscriptions() []session.Subscription
}

// ProducerSource reports producer loop counters.
type ProducerSource interface {
	Stats() producer.Stats
}

// DBStatsSource reports connection pool statistics.
type DBStatsSource interface {
	Stats() sql.DBStats
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Logger   *logging.Logger
	DeviceID string
	Version  string

	Link     LinkSource
	Session  SessionSource
	Producer ProducerSource

	// Optional.
	Journal journal.Repository
	DB      DBStatsSource
	Hub     *Hub // if set, used instead of creating one
}

// Server is the HTTP status server.
type Server struct {
	cfg      config.APIConfig
	wsCfg    config.WebSocketConfig
	logger   *logging.Logger
	deviceID string
	version  string

	link     LinkSource
	session  SessionSource
	producer ProducerSource
	journal  journal.Repository
	db       DBStatsSource

	hub       *Hub
	ownsHub   bool
	startTime time.Time

	mu     sync.Mutex
	server *http.Server
	addr   string
	cancel context.CancelFunc
}

// New creates a server. It does not listen until Start.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if deps.Link == nil || deps.Session == nil || deps.Producer == nil {
		return nil, errors.New("link, session and producer sources are required")
	}

	s := &Server{
		cfg:      deps.Config,
		wsCfg:    deps.WS,
		logger:   deps.Logger,
		deviceID: deps.DeviceID,
		version:  deps.Version,
		link:     deps.Link,
		session:  deps.Session,
		producer: deps.Producer,
		journal:  deps.Journal,
		db:       deps.DB,
		hub:      deps.Hub,
	}
	if s.hub == nil {
		s.hub = NewHub(deps.WS, deps.Logger)
		s.ownsHub = true
	}
	return s, nil
}

// Hub returns the WebSocket hub lifecycle events are broadcast on.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start binds the listener and serves in the background. A bind failure is
// returned; later serve errors are logged.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		return errors.New("api server already started")
	}

	ln, err := net.Listen("tcp", net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port)))
	if err != nil {
		return fmt.Errorf("binding API listener: %w", err)
	}

	srvCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	if s.ownsHub {
		go s.hub.Run(srvCtx)
	}

	s.startTime = time.Now()
	s.addr = ln.Addr().String()
	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	srv := s.server
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	s.logger.Info("API server listening", "address", s.addr)
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Close stops background work and shuts the listener down, waiting up to
// ten seconds for in-flight requests.
func (s *Server) Close() error {
	s.mu.Lock()
	srv := s.server
	cancel := s.cancel
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	if cancel != nil {
		cancel()
	}

	ctx, done := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer done()

	s.logger.Info("API server shutting down")
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}
