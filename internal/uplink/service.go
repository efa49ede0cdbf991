package uplink

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/nerrad567/gray-logic-uplink/internal/api"
	"github.com/nerrad567/gray-logic-uplink/internal/health"
	"github.com/nerrad567/gray-logic-uplink/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-uplink/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-uplink/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-uplink/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-uplink/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-uplink/internal/journal"
	"github.com/nerrad567/gray-logic-uplink/internal/link"
	"github.com/nerrad567/gray-logic-uplink/internal/producer"
	"github.com/nerrad567/gray-logic-uplink/internal/session"
	"github.com/nerrad567/gray-logic-uplink/migrations"
)

// journalQueueSize bounds lifecycle entries waiting for SQLite.
const journalQueueSize = 256

// Sentinel errors for service lifecycle.
var (
	ErrAlreadyStarted = errors.New("uplink: service already started")
	ErrStopped        = errors.New("uplink: service stopped")
)

// Deps holds what New needs to build a Service.
type Deps struct {
	Config  *config.Config
	Logger  *logging.Logger
	Version string

	// Optional overrides. When nil, Library is the paho-backed MQTT library
	// and Driver is chosen by config.Link.Driver.
	Library session.Library
	Driver  link.Driver
}

// Status is a point-in-time view of every component.
type Status struct {
	Link            link.Stats              `json:"link"`
	Session         session.ControllerStats `json:"session"`
	Subscriptions   []session.Subscription  `json:"subscriptions"`
	SessionsCreated int                     `json:"sessions_created"`
	Producer        producer.Stats          `json:"producer"`
	JournalWritten  uint64                  `json:"journal_written"`
	JournalDropped  uint64                  `json:"journal_dropped"`
}

// Service is the running connectivity supervisor.
type Service struct {
	cfg    *config.Config
	logger *logging.Logger

	db         *database.DB
	influx     *influxdb.Client
	recorder   *journal.Recorder
	health     *health.Flag
	controller *session.Controller
	manager    *session.Manager
	driver     link.Driver
	monitor    *link.Monitor
	producer   *producer.Loop
	api        *api.Server
	events     *events

	mu       sync.Mutex
	started  bool
	stopped  bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// New opens the stores and builds every component. Storage failures are
// fatal: the caller is expected to exit.
func New(ctx context.Context, deps Deps) (*Service, error) {
	if deps.Config == nil {
		return nil, errors.New("uplink: config is required")
	}
	if deps.Logger == nil {
		deps.Logger = logging.Default()
	}

	cfg := deps.Config
	log := deps.Logger
	s := &Service{
		cfg:    cfg,
		logger: log,
		health: health.New(),
	}

	if err := s.openStores(ctx); err != nil {
		s.closeStores()
		return nil, err
	}

	s.recorder = journal.NewRecorder(journal.NewSQLiteRepository(s.db.DB), journalQueueSize)
	s.recorder.SetLogger(log)
	s.events = &events{journal: s.recorder, metrics: s.influx}

	// Session: controller owns the health flag, manager owns the handle.
	s.controller = session.NewController(s.health, subscriptionsFromConfig(cfg.MQTT.Subscriptions))
	s.controller.SetLogger(log.With("component", "session"))
	s.controller.SetObserver(s.events)
	s.controller.SetDataHandler(func(topic string, payload []byte) {
		log.Info("message received", "topic", topic, "payload", string(payload))
	})

	lib := deps.Library
	if lib == nil {
		mqttLib := mqtt.NewLibrary(cfg.MQTT)
		mqttLib.SetLogger(log.With("component", "mqtt"))
		lib = mqttLib
	}
	s.manager = session.NewManager(lib, cfg.MQTT.BrokerURL, s.controller)
	s.manager.SetLogger(log.With("component", "session"))

	// Link: the monitor is the driver's only event sink.
	driver := deps.Driver
	if driver == nil {
		var err error
		driver, err = newDriver(cfg.Link)
		if err != nil {
			s.closeStores()
			return nil, err
		}
	}
	s.driver = driver
	s.monitor = link.NewMonitor(driver, s.manager, retryPolicy(cfg.Link.Retry))
	s.monitor.SetLogger(log.With("component", "link"))
	s.monitor.SetObserver(s.events)
	driver.SetEventHandler(s.monitor.HandleEvent)

	loop, err := producer.New(producer.Config{
		Topic:    cfg.Producer.Topic,
		Payload:  []byte(cfg.Producer.Payload),
		QoS:      byte(cfg.Producer.QoS),
		Retain:   cfg.Producer.Retain,
		Interval: cfg.ProducerInterval(),
	}, s.manager, s.health)
	if err != nil {
		s.closeStores()
		return nil, fmt.Errorf("creating producer: %w", err)
	}
	loop.SetLogger(log.With("component", "producer"))
	loop.SetObserver(s.events)
	s.producer = loop

	if cfg.API.Enabled {
		srv, err := api.New(api.Deps{
			Config:   cfg.API,
			WS:       cfg.WebSocket,
			Logger:   log.With("component", "api"),
			DeviceID: cfg.Device.ID,
			Version:  deps.Version,
			Link:     s.monitor,
			Session:  s.controller,
			Producer: s.producer,
			Journal:  journal.NewSQLiteRepository(s.db.DB),
			DB:       s.db,
		})
		if err != nil {
			s.closeStores()
			return nil, fmt.Errorf("creating API server: %w", err)
		}
		s.api = srv
		s.events.hub = srv.Hub()
	}

	return s, nil
}

// openStores opens SQLite, applies migrations and connects InfluxDB when
// enabled.
func (s *Service) openStores(ctx context.Context) error {
	db, err := database.Open(s.cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	s.db = db
	s.logger.Info("database connected", "path", db.Path())

	if err := db.Migrate(ctx, migrations.FS); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	s.logger.Info("database migrations complete")

	if !s.cfg.InfluxDB.Enabled {
		s.logger.Info("InfluxDB disabled")
		return nil
	}

	influx, err := influxdb.Connect(ctx, s.cfg.InfluxDB, s.cfg.Device.ID)
	if err != nil {
		return fmt.Errorf("connecting to InfluxDB: %w", err)
	}
	influx.SetOnError(func(err error) {
		s.logger.Error("InfluxDB write error", "error", err)
	})
	s.influx = influx
	s.logger.Info("InfluxDB connected",
		"url", s.cfg.InfluxDB.URL,
		"org", s.cfg.InfluxDB.Org,
		"bucket", s.cfg.InfluxDB.Bucket,
	)
	return nil
}

// newDriver builds the link driver named in cfg.
func newDriver(cfg config.LinkConfig) (link.Driver, error) {
	switch cfg.Driver {
	case config.LinkDriverStatic:
		return link.NewStaticDriver(), nil
	case config.LinkDriverInterface, "":
		d, err := link.NewInterfaceDriver(cfg.Interface, cfg.PollInterval)
		if err != nil {
			return nil, fmt.Errorf("creating link driver: %w", err)
		}
		return d, nil
	default:
		return nil, fmt.Errorf("unknown link driver %q", cfg.Driver)
	}
}

func retryPolicy(cfg config.LinkRetryConfig) link.RetryPolicy {
	return link.NewRetryPolicy(cfg.Policy, link.BackoffConfig{
		InitialDelay: cfg.InitialDelay,
		MaxDelay:     cfg.MaxDelay,
		Multiplier:   cfg.Multiplier,
		Jitter:       cfg.Jitter,
		MaxAttempts:  cfg.MaxAttempts,
	})
}

func subscriptionsFromConfig(subs []config.SubscriptionConfig) []session.Subscription {
	out := make([]session.Subscription, 0, len(subs))
	for _, sub := range subs {
		out = append(out, session.Subscription{Topic: sub.Topic, QoS: byte(sub.QoS)})
	}
	return out
}

// Start brings the link up and spawns the producer. The producer idles
// until the session first reports Connected.
//
// Start runs at most once. When it fails part way, whatever it started
// keeps running until Stop, which tears it down.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrStopped
	}
	if s.started {
		return ErrAlreadyStarted
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.started = true

	s.recorder.Start()

	if s.api != nil {
		if err := s.api.Start(runCtx); err != nil {
			return fmt.Errorf("starting API server: %w", err)
		}
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.watchHealth(runCtx)
	}()

	if err := s.driver.Start(runCtx); err != nil {
		return fmt.Errorf("starting link driver: %w", err)
	}
	s.logger.Info("link driver started", "driver", s.cfg.Link.Driver, "interface", s.cfg.Link.Interface)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.producer.Run(runCtx); err != nil {
			s.logger.Error("producer exited", "error", err)
		}
	}()
	return nil
}

// watchHealth reports every health flag transition, including the ones
// the manager makes when tearing a session down.
func (s *Service) watchHealth(ctx context.Context) {
	last := s.health.Healthy()
	for {
		changed := s.health.Changed()
		if now := s.health.Healthy(); now != last {
			last = now
			s.logger.Info("session health changed", "healthy", now)
			s.events.HealthChanged(now)
		}
		select {
		case <-ctx.Done():
			return
		case <-changed:
		}
	}
}

// Stop shuts every component down in reverse start order. It is safe to
// call more than once, and before Start.
func (s *Service) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.stopped = true
		cancel := s.cancel
		s.mu.Unlock()

		if cancel != nil {
			cancel()
		}
		s.wg.Wait()

		s.monitor.Stop()
		s.driver.Stop()
		s.manager.Stop()

		if s.api != nil {
			if err := s.api.Close(); err != nil {
				s.logger.Error("error closing API server", "error", err)
			}
		}
		s.recorder.Stop()
		s.closeStores()
		s.logger.Info("uplink stopped")
	})
}

// closeStores closes InfluxDB and SQLite. Either may be nil.
func (s *Service) closeStores() {
	if s.influx != nil {
		if err := s.influx.Close(); err != nil {
			s.logger.Error("error closing InfluxDB", "error", err)
		}
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("error closing database", "error", err)
		}
	}
}

// HealthCheck verifies the stores are reachable.
func (s *Service) HealthCheck(ctx context.Context) error {
	if err := s.db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if s.influx != nil {
		if err := s.influx.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}

// Healthy reports the session health flag.
func (s *Service) Healthy() bool {
	return s.health.Healthy()
}

// APIAddr returns the status API's bound address, or "" when disabled or
// not started.
func (s *Service) APIAddr() string {
	if s.api == nil {
		return ""
	}
	return s.api.Addr()
}

// Status returns a snapshot of every component.
func (s *Service) Status() Status {
	return Status{
		Link:            s.monitor.Stats(),
		Session:         s.controller.Stats(),
		Subscriptions:   s.controller.Subscriptions(),
		SessionsCreated: s.manager.Created(),
		Producer:        s.producer.Stats(),
		JournalWritten:  s.recorder.Written(),
		JournalDropped:  s.recorder.Dropped(),
	}
}
