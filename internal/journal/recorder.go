package journal

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

const (
	defaultQueueSize = 256
	writeTimeout     = 5 * time.Second
)

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

// Recorder writes entries to a Repository from a background goroutine.
//
// Record never blocks: lifecycle callbacks run on the link and session
// delivery paths, so a full queue drops the entry and counts it.
type Recorder struct {
	repo   Repository
	logger Logger
	queue  chan Entry

	dropped atomic.Uint64
	written atomic.Uint64

	mu     sync.RWMutex
	closed bool

	startOnce sync.Once
	stopOnce  sync.Once
	done      chan struct{}
}

// NewRecorder creates a recorder. A queueSize <= 0 uses 256.
func NewRecorder(repo Repository, queueSize int) *Recorder {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Recorder{
		repo:   repo,
		logger: noopLogger{},
		queue:  make(chan Entry, queueSize),
		done:   make(chan struct{}),
	}
}

// SetLogger sets the logger for the recorder.
func (r *Recorder) SetLogger(logger Logger) {
	r.logger = logger
}

// Start launches the writer.
func (r *Recorder) Start() {
	r.startOnce.Do(func() {
		go r.run()
	})
}

// Record enqueues e, stamping OccurredAt if unset. After Stop the entry is
// dropped.
func (r *Recorder) Record(e Entry) {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.dropped.Add(1)
		return
	}
	select {
	case r.queue <- e:
	default:
		r.dropped.Add(1)
		r.logger.Warn("journal queue full, entry dropped", "source", e.Source, "kind", e.Kind)
	}
}

// Stop drains queued entries and waits for the writer.
func (r *Recorder) Stop() {
	r.stopOnce.Do(func() {
		r.Start()
		r.mu.Lock()
		r.closed = true
		close(r.queue)
		r.mu.Unlock()
		<-r.done
	})
}

// Dropped returns how many entries were discarded because the queue was full.
func (r *Recorder) Dropped() uint64 {
	return r.dropped.Load()
}

// Written returns how many entries reached the repository.
func (r *Recorder) Written() uint64 {
	return r.written.Load()
}

func (r *Recorder) run() {
	defer close(r.done)

	for e := range r.queue {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		err := r.repo.Append(ctx, &e)
		cancel()

		if err != nil {
			r.logger.Error("journal write failed", "source", e.Source, "kind", e.Kind, "error", err)
			continue
		}
		r.written.Add(1)
	}
}
