// Package worker relays the append-only event log to an external sink in
// insertion order, resuming from a persisted cursor.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	audit "twubi/pkg/platform/audit"
	"twubi/pkg/platform/circuit"
)

// Sink receives batches of events. A batch is either fully accepted or the
// call returns an error and the same batch is offered again.
type Sink interface {
	Publish(ctx context.Context, events []audit.Event) error
}

// CursorStore persists how far a named relay has progressed.
type CursorStore interface {
	LoadCursor(ctx context.Context, name string) (int64, error)
	SaveCursor(ctx context.Context, name string, lastID int64) error
}

// Worker polls the audit store and forwards new events to a Sink.
type Worker struct {
	name      string
	store     audit.Store
	cursors   CursorStore
	sink      Sink
	batchSize int
	interval  time.Duration
	breaker   *circuit.Breaker
	logger    *slog.Logger
}

// Option configures the Worker.
type Option func(*Worker)

func WithBatchSize(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.batchSize = n
		}
	}
}

func WithInterval(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.interval = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		w.logger = logger
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(w *Worker) {
		w.breaker = b
	}
}

func NewWorker(name string, store audit.Store, cursors CursorStore, sink Sink, opts ...Option) *Worker {
	w := &Worker{
		name:      name,
		store:     store,
		cursors:   cursors,
		sink:      sink,
		batchSize: 100,
		interval:  time.Second,
		breaker:   circuit.New(name),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run relays until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		for {
			n, err := w.RelayOnce(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				w.logger.WarnContext(ctx, "event relay attempt failed", "relay", w.name, "error", err)
				break
			}
			if n < w.batchSize {
				break
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// RelayOnce forwards at most one batch and returns how many events it sent.
func (w *Worker) RelayOnce(ctx context.Context) (int, error) {
	if !w.breaker.Allow() {
		return 0, nil
	}

	last, err := w.cursors.LoadCursor(ctx, w.name)
	if err != nil {
		return 0, err
	}
	events, err := w.store.ListAfter(ctx, last, w.batchSize)
	if err != nil {
		return 0, err
	}
	if len(events) == 0 {
		return 0, nil
	}

	if err := w.sink.Publish(ctx, events); err != nil {
		if _, change := w.breaker.RecordFailure(); change.Opened {
			w.logger.ErrorContext(ctx, "event relay circuit opened", "relay", w.name, "error", err)
		}
		return 0, fmt.Errorf("publish events after %d: %w", last, err)
	}
	if _, change := w.breaker.RecordSuccess(); change.Closed {
		w.logger.InfoContext(ctx, "event relay circuit closed", "relay", w.name)
	}

	newLast := events[len(events)-1].ID
	if err := w.cursors.SaveCursor(ctx, w.name, newLast); err != nil {
		return 0, err
	}
	return len(events), nil
}
