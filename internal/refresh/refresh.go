// Package refresh re-runs a fetch on a fixed interval for as long as its
// owner keeps it alive.
package refresh

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultInterval matches the echo board's polling cadence.
const DefaultInterval = 30 * time.Second

// Config wires a Task.
type Config[T any] struct {
	Interval time.Duration
	// Fetch produces one snapshot.
	Fetch func(ctx context.Context) (T, error)
	// Deliver receives every snapshot that lands, in landing order.
	Deliver func(T)
	// OnError receives each failed fetch once. Failures are not retried.
	OnError func(error)
}

// Task runs Fetch immediately and then on every tick. A slow fetch does not
// hold back or cancel the next one; results are delivered as they land, so
// the last to land wins.
type Task[T any] struct {
	cfg Config[T]
	log zerolog.Logger

	mu      sync.Mutex // serialises Deliver/OnError and guards stopped
	stopped bool
}

func New[T any](cfg Config[T], log zerolog.Logger) *Task[T] {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Deliver == nil {
		cfg.Deliver = func(T) {}
	}
	if cfg.OnError == nil {
		cfg.OnError = func(error) {}
	}
	return &Task[T]{cfg: cfg, log: log}
}

// Run blocks until ctx is canceled, then waits for in-flight fetches.
// Nothing is delivered after Run returns.
func (t *Task[T]) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	ticker := time.NewTicker(t.cfg.Interval)
	defer ticker.Stop()

	t.log.Debug().Dur("interval", t.cfg.Interval).Msg("refresh starting")
	for {
		wg.Add(1)
		go func() {
			defer wg.Done()
			t.fetchOnce(ctx)
		}()

		select {
		case <-ctx.Done():
			t.mu.Lock()
			t.stopped = true
			t.mu.Unlock()
			wg.Wait()
			t.log.Debug().Msg("refresh stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (t *Task[T]) fetchOnce(ctx context.Context) {
	v, err := t.cfg.Fetch(ctx)

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped || ctx.Err() != nil {
		return
	}
	if err != nil {
		t.log.Debug().Err(err).Msg("refresh fetch failed")
		t.cfg.OnError(err)
		return
	}
	t.cfg.Deliver(v)
}
