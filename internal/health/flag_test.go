package health

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestNew_StartsUnhealthy(t *testing.T) {
	f := New()

	if f.Healthy() {
		t.Error("Healthy() = true, want false")
	}
	if f.Transitions() != 0 {
		t.Errorf("Transitions() = %d, want 0", f.Transitions())
	}
	if f.String() != "unhealthy" {
		t.Errorf("String() = %q, want %q", f.String(), "unhealthy")
	}
}

func TestSet_ReportsChange(t *testing.T) {
	tests := []struct {
		name    string
		initial bool
		value   bool
		want    bool
	}{
		{name: "false to true", initial: false, value: true, want: true},
		{name: "true to false", initial: true, value: false, want: true},
		{name: "false to false", initial: false, value: false, want: false},
		{name: "true to true", initial: true, value: true, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := New()
			f.Set(tt.initial)

			if got := f.Set(tt.value); got != tt.want {
				t.Errorf("Set(%v) = %v, want %v", tt.value, got, tt.want)
			}
			if f.Healthy() != tt.value {
				t.Errorf("Healthy() = %v, want %v", f.Healthy(), tt.value)
			}
		})
	}
}

func TestSet_SequenceTracksLastValue(t *testing.T) {
	f := New()

	sequence := []bool{true, false, true}
	for i, v := range sequence {
		f.Set(v)
		if f.Healthy() != v {
			t.Fatalf("step %d: Healthy() = %v, want %v", i, f.Healthy(), v)
		}
	}

	if f.Transitions() != 3 {
		t.Errorf("Transitions() = %d, want 3", f.Transitions())
	}
}

func TestChanged_ClosedOnTransition(t *testing.T) {
	f := New()
	ch := f.Changed()

	select {
	case <-ch:
		t.Fatal("Changed() closed before any transition")
	default:
	}

	f.Set(true)

	select {
	case <-ch:
	default:
		t.Fatal("Changed() not closed after transition")
	}

	// A fresh channel is handed out after the transition.
	next := f.Changed()
	select {
	case <-next:
		t.Fatal("new Changed() channel already closed")
	default:
	}
}

func TestChanged_NotClosedOnRedundantSet(t *testing.T) {
	f := New()
	ch := f.Changed()

	f.Set(false)

	select {
	case <-ch:
		t.Fatal("Changed() closed on redundant Set")
	default:
	}
}

func TestWaitHealthy_ReturnsImmediatelyWhenHealthy(t *testing.T) {
	f := New()
	f.Set(true)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := f.WaitHealthy(ctx); err != nil {
		t.Fatalf("WaitHealthy() error = %v", err)
	}
}

func TestWaitHealthy_WakesOnTransition(t *testing.T) {
	f := New()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- f.WaitHealthy(ctx)
	}()

	time.Sleep(10 * time.Millisecond)
	f.Set(true)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("WaitHealthy() error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("WaitHealthy() did not return after Set(true)")
	}
}

func TestWaitHealthy_ContextCancelled(t *testing.T) {
	f := New()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := f.WaitHealthy(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("WaitHealthy() error = %v, want context.Canceled", err)
	}
}

func TestFlag_ConcurrentAccess(t *testing.T) {
	f := New()

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			f.Set(i%2 == 0)
		}
	}()

	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			_ = f.Changed()
			_ = f.Healthy()
		}
	}()

	wg.Wait()
}
