package server

import (
	"context"
	"time"
)

// Every runs fn immediately and then on each tick until ctx is done.
// A run that overlaps the next tick delays it rather than running concurrently.
func Every(ctx context.Context, interval time.Duration, fn func(context.Context)) {
	if interval <= 0 {
		return
	}
	fn(ctx)

	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			fn(ctx)
		}
	}
}
