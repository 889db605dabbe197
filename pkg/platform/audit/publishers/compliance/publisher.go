// Package compliance provides a fail-closed audit publisher for ledger events.
//
// Publisher writes events synchronously into the audit store, joining the
// caller's transaction when one is carried in the context. If the write
// fails, an error is returned and the calling operation MUST fail.
package compliance

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	audit "twubi/pkg/platform/audit"
)

// Publisher emits events with fail-closed semantics.
type Publisher struct {
	store   audit.Store
	logger  *slog.Logger
	metrics *Metrics
	now     func() time.Time
}

// Option configures the Publisher.
type Option func(*Publisher)

// WithLogger sets a logger for error reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *Metrics) Option {
	return func(p *Publisher) {
		p.metrics = m
	}
}

// WithClock overrides the timestamp source used when an event has none.
func WithClock(now func() time.Time) Option {
	return func(p *Publisher) {
		p.now = now
	}
}

// New creates a compliance publisher.
func New(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{
		store: store,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Emit validates and synchronously appends an event.
// Returns error if persistence fails - the caller MUST fail its operation.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	start := time.Now()

	if !event.Type.IsKnown() {
		return fmt.Errorf("audit event has unknown type %q", event.Type)
	}
	if event.Subject == "" {
		return fmt.Errorf("audit event %s requires Subject", event.Type)
	}
	if len(event.Payload) > 0 && !json.Valid(event.Payload) {
		return fmt.Errorf("audit event %s has invalid payload", event.Type)
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = p.now()
	}
	event.Timestamp = event.Timestamp.UTC()
	event.Category = event.Type.Category()

	if err := p.store.Append(ctx, event); err != nil {
		if p.metrics != nil {
			p.metrics.IncPersistFailures()
		}
		if p.logger != nil {
			p.logger.ErrorContext(ctx, "CRITICAL: audit append failed",
				"event_type", event.Type,
				"subject", event.Subject,
				"error", err,
			)
		}
		return fmt.Errorf("audit persistence failed: %w", err)
	}

	if p.metrics != nil {
		p.metrics.ObservePersistDuration(time.Since(start).Seconds())
		p.metrics.IncEventsEmitted(event.Type)
	}
	return nil
}

// EmitPayload marshals payload and emits it as an event of type t.
func (p *Publisher) EmitPayload(ctx context.Context, t audit.EventType, subject, requestID string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", t, err)
	}
	return p.Emit(ctx, audit.Event{
		Type:      t,
		Subject:   subject,
		RequestID: requestID,
		Payload:   raw,
	})
}
