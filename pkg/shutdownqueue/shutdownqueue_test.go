package shutdownqueue

import (
	"context"
	"errors"
	"testing"
	"time"
)

// reset restores package state between tests; the queue is process-global.
func reset() {
	mu.Lock()
	defer mu.Unlock()

	tasks = nil
	closed = false
}

func TestShutdownRunsLIFO(t *testing.T) {
	reset()

	var order []int
	for i := range 3 {
		i := i
		Add(func(context.Context) error {
			order = append(order, i)
			return nil
		})
	}

	err := Shutdown(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []int{2, 1, 0}
	for i, v := range want {
		if order[i] != v {
			t.Fatalf("order mismatch: got %v, want %v", order, want)
		}
	}
}

func TestShutdownAggregatesErrors(t *testing.T) {
	reset()

	errA := errors.New("a failed")
	errB := errors.New("b failed")

	Add(func(context.Context) error { return errA })
	Add(func(context.Context) error { return nil })
	Add(func(context.Context) error { return errB })

	err := Shutdown(context.Background())
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Fatalf("expected both task errors joined, got %v", err)
	}
}

func TestShutdownRecoversPanic(t *testing.T) {
	reset()

	Add(func(context.Context) error { panic("boom") })

	err := Shutdown(context.Background())
	if err == nil {
		t.Fatal("expected panic to surface as error")
	}
}

func TestShutdownIdempotent(t *testing.T) {
	reset()

	runs := 0
	Add(func(context.Context) error {
		runs++
		return nil
	})

	_ = Shutdown(context.Background())
	_ = Shutdown(context.Background())

	if runs != 1 {
		t.Fatalf("task ran %d times, want 1", runs)
	}
}

func TestShutdownHonorsContext(t *testing.T) {
	reset()

	ran := false
	Add(func(context.Context) error {
		ran = true
		return nil
	})
	Add(func(context.Context) error {
		time.Sleep(10 * time.Millisecond)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Shutdown(ctx)
	if err == nil {
		t.Fatal("expected context error")
	}
	if ran {
		t.Fatal("task after cancellation should not run")
	}
}

func TestAddAfterShutdownIgnored(t *testing.T) {
	reset()

	_ = Shutdown(context.Background())

	Add(func(context.Context) error {
		t.Fatal("late task must not run")
		return nil
	})

	_ = Shutdown(context.Background())
}
