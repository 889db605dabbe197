package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	audit "twubi/pkg/platform/audit"
	txcontext "twubi/pkg/platform/tx"
)

// appendLockKey is the advisory lock held by every appending transaction
// until it commits, so event ids become visible in id order. Readers that
// page by id (the Kafka relay and state export) would otherwise skip an id
// that commits after a higher one. The cost is that ledger writes serialize
// from their append to their commit.
const appendLockKey int64 = 0x7477_7562_6965_7674

// Store implements audit.Store on the append-only events table.
// Appends join the caller's transaction so an event commits or rolls back
// together with the state change it describes.
type Store struct {
	db *sql.DB
}

// New creates a new PostgreSQL audit store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// Append writes an event to the log.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	if len(event.Payload) == 0 {
		event.Payload = []byte("{}")
	}
	exec := s.execer(ctx)

	if _, ok := txcontext.From(ctx); ok {
		if _, err := exec.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, appendLockKey); err != nil {
			return fmt.Errorf("lock event log: %w", err)
		}
	}

	query := `
		INSERT INTO events (event_type, category, subject, request_id, actor_id, event_data, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := exec.ExecContext(ctx, query,
		string(event.Type),
		string(event.Category),
		event.Subject,
		event.RequestID,
		event.ActorID,
		[]byte(event.Payload),
		event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// ListAfter returns up to limit events with id > afterID in insertion order.
func (s *Store) ListAfter(ctx context.Context, afterID int64, limit int) ([]audit.Event, error) {
	query := `
		SELECT id, event_type, category, subject, request_id, actor_id, event_data, created_at
		FROM events
		WHERE id > $1
		ORDER BY id
		LIMIT $2
	`
	rows, err := s.execer(ctx).QueryContext(ctx, query, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var (
			event     audit.Event
			eventType string
			category  string
			payload   []byte
		)
		if err := rows.Scan(
			&event.ID,
			&eventType,
			&category,
			&event.Subject,
			&event.RequestID,
			&event.ActorID,
			&payload,
			&event.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		event.Type = audit.EventType(eventType)
		event.Category = audit.EventCategory(category)
		event.Payload = payload
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// LoadCursor returns the last relayed event id for a named consumer, or 0.
func (s *Store) LoadCursor(ctx context.Context, name string) (int64, error) {
	var last int64
	err := s.execer(ctx).QueryRowContext(ctx,
		`SELECT last_event_id FROM event_relay_cursor WHERE name = $1`, name,
	).Scan(&last)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load relay cursor: %w", err)
	}
	return last, nil
}

// SaveCursor records the last relayed event id for a named consumer.
func (s *Store) SaveCursor(ctx context.Context, name string, lastID int64) error {
	query := `
		INSERT INTO event_relay_cursor (name, last_event_id, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (name) DO UPDATE
		SET last_event_id = GREATEST(event_relay_cursor.last_event_id, EXCLUDED.last_event_id),
			updated_at = NOW()
	`
	if _, err := s.execer(ctx).ExecContext(ctx, query, name, lastID); err != nil {
		return fmt.Errorf("save relay cursor: %w", err)
	}
	return nil
}
