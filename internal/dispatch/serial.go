// Package dispatch provides serial event delivery.
//
// Link drivers and the MQTT session adapter both promise that callbacks for
// one subsystem are never re-entered or run concurrently with themselves.
// Serial gives them that guarantee: producers Emit from any goroutine and a
// single goroutine invokes the handler in emit order.
package dispatch

import "sync"

// Serial delivers values to a handler one at a time, in order.
//
// The queue is unbounded so Emit never blocks. A handler that emits from
// inside its own call (a driver answering Connect with follow-up events)
// cannot wait on the goroutine that is running it.
//
// Thread Safety:
//   - Emit, SetHandler and Stop are safe for concurrent use.
//   - The handler may call Emit, but must not call Stop.
type Serial[T any] struct {
	wake chan struct{}
	stop chan struct{}
	done chan struct{}

	startOnce sync.Once
	stopOnce  sync.Once

	mu      sync.Mutex
	queue   []T
	stopped bool
	handler func(T)
}

// NewSerial creates a dispatcher. capacity is the initial queue allocation,
// not a limit.
func NewSerial[T any](capacity int) *Serial[T] {
	return &Serial[T]{
		wake:  make(chan struct{}, 1),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
		queue: make([]T, 0, capacity),
	}
}

// SetHandler sets the function values are delivered to. Values emitted
// while no handler is set are discarded on delivery.
func (s *Serial[T]) SetHandler(handler func(T)) {
	s.mu.Lock()
	s.handler = handler
	s.mu.Unlock()
}

// Start launches the delivery goroutine. Later calls are no-ops.
func (s *Serial[T]) Start() {
	s.startOnce.Do(func() {
		go s.run()
	})
}

// Emit queues v for delivery. It returns false once the dispatcher is
// stopped.
func (s *Serial[T]) Emit(v T) bool {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return false
	}
	s.queue = append(s.queue, v)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
	return true
}

// Stop halts delivery and waits for an in-flight handler call to return.
// Values still queued are dropped.
func (s *Serial[T]) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.stopped = true
		s.queue = nil
		s.mu.Unlock()
		close(s.stop)
	})
	// Start may never have been called.
	s.startOnce.Do(func() {
		close(s.done)
	})
	<-s.done
}

func (s *Serial[T]) run() {
	defer close(s.done)

	for {
		select {
		case <-s.stop:
			return
		case <-s.wake:
		}

		for {
			v, handler, ok := s.next()
			if !ok {
				break
			}
			if handler != nil {
				handler(v)
			}
		}
	}
}

// next pops the oldest queued value.
func (s *Serial[T]) next() (T, func(T), bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var zero T
	if s.stopped || len(s.queue) == 0 {
		return zero, nil, false
	}
	v := s.queue[0]
	s.queue[0] = zero
	s.queue = s.queue[1:]
	return v, s.handler, true
}
