package server

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestEveryRunsImmediatelyAndStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var runs atomic.Int32
	done := make(chan struct{})
	go func() {
		Every(ctx, 10*time.Millisecond, func(context.Context) {
			if runs.Add(1) == 3 {
				cancel()
			}
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Every did not return after cancel")
	}
	if n := runs.Load(); n < 3 {
		t.Fatalf("expected at least 3 runs, got %d", n)
	}
}

func TestEveryNonPositiveInterval(t *testing.T) {
	called := false
	Every(context.Background(), 0, func(context.Context) { called = true })
	if called {
		t.Fatalf("zero interval must not run")
	}
}
