package dispatch

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestSerial_DeliversInOrder(t *testing.T) {
	s := NewSerial[int](8)

	var mu sync.Mutex
	var got []int
	done := make(chan struct{})

	s.SetHandler(func(v int) {
		mu.Lock()
		got = append(got, v)
		n := len(got)
		mu.Unlock()
		if n == 5 {
			close(done)
		}
	})
	s.Start()
	defer s.Stop()

	for i := 1; i <= 5; i++ {
		if !s.Emit(i) {
			t.Fatalf("Emit(%d) = false", i)
		}
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for delivery")
	}

	mu.Lock()
	defer mu.Unlock()
	for i, v := range got {
		if v != i+1 {
			t.Errorf("got[%d] = %d, want %d", i, v, i+1)
		}
	}
}

func TestSerial_NeverConcurrent(t *testing.T) {
	s := NewSerial[int](64)

	var inFlight, maxInFlight atomic.Int32
	var wg sync.WaitGroup
	wg.Add(50)

	s.SetHandler(func(int) {
		n := inFlight.Add(1)
		for {
			m := maxInFlight.Load()
			if n <= m || maxInFlight.CompareAndSwap(m, n) {
				break
			}
		}
		time.Sleep(time.Millisecond)
		inFlight.Add(-1)
		wg.Done()
	})
	s.Start()
	defer s.Stop()

	for g := 0; g < 5; g++ {
		go func() {
			for i := 0; i < 10; i++ {
				s.Emit(i)
			}
		}()
	}

	wg.Wait()
	if maxInFlight.Load() != 1 {
		t.Errorf("max concurrent handler calls = %d, want 1", maxInFlight.Load())
	}
}

func TestSerial_HandlerMayEmit(t *testing.T) {
	s := NewSerial[int](4)
	done := make(chan struct{})

	s.SetHandler(func(v int) {
		if v == 1 {
			s.Emit(2)
			return
		}
		close(done)
	})
	s.Start()
	defer s.Stop()

	s.Emit(1)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("re-emitted value was not delivered")
	}
}

func TestSerial_HandlerEmitsPastCapacity(t *testing.T) {
	s := NewSerial[int](1)
	const n = 100

	var delivered atomic.Int32
	done := make(chan struct{})

	s.SetHandler(func(v int) {
		if v == 0 {
			for i := 1; i <= n; i++ {
				if !s.Emit(i) {
					t.Errorf("Emit(%d) = false", i)
				}
			}
		}
		if delivered.Add(1) == n+1 {
			close(done)
		}
	})
	s.Start()
	defer s.Stop()

	s.Emit(0)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("delivered %d of %d values, handler blocked emitting", delivered.Load(), n+1)
	}
}

func TestSerial_EmitAfterStop(t *testing.T) {
	s := NewSerial[int](1)
	s.Start()
	s.Stop()

	if s.Emit(1) {
		t.Error("Emit() after Stop = true, want false")
	}
}

func TestSerial_StopWithoutStart(t *testing.T) {
	s := NewSerial[int](1)

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop() without Start() blocked")
	}

	// Stop is idempotent.
	s.Stop()
}
