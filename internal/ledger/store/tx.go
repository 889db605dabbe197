package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"twubi/internal/ledger/service"
	dErrors "twubi/pkg/domain-errors"
	txcontext "twubi/pkg/platform/tx"
)

// defaultTxTimeout is the maximum duration for a ledger transaction.
const defaultTxTimeout = 5 * time.Second

// Snapshotter is a store that can roll itself back to an earlier state.
type Snapshotter interface {
	Snapshot() (restore func())
}

func withTxTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc, error) {
	if err := ctx.Err(); err != nil {
		return ctx, nil, dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if timeout == 0 {
		timeout = defaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}, nil
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, cancel, nil
}

// InMemoryTx serializes transactions with a coarse lock and restores every
// participant's snapshot when fn fails or panics.
type InMemoryTx struct {
	mu           sync.Mutex
	store        *InMemoryStore
	participants []Snapshotter
	timeout      time.Duration
}

// NewInMemoryTx runs transactions over store. Extra participants, such as
// the in-memory audit store, are rolled back together with it.
func NewInMemoryTx(store *InMemoryStore, participants ...Snapshotter) *InMemoryTx {
	return &InMemoryTx{store: store, participants: participants}
}

func (t *InMemoryTx) RunInTx(ctx context.Context, fn func(ctx context.Context, store service.Store) error) error {
	ctx, cancel, err := withTxTimeout(ctx, t.timeout)
	if err != nil {
		return err
	}
	defer cancel()

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	restores := []func(){t.store.Snapshot()}
	for _, p := range t.participants {
		restores = append(restores, p.Snapshot())
	}
	rollback := func() {
		for _, r := range restores {
			r()
		}
	}

	defer func() {
		if r := recover(); r != nil {
			rollback()
			panic(r)
		}
	}()

	if err := fn(ctx, t.store); err != nil {
		rollback()
		return err
	}
	return nil
}

// PostgresTx runs ledger operations inside a READ COMMITTED transaction.
// The transaction travels in ctx so the audit store appends inside it.
type PostgresTx struct {
	db      *sql.DB
	store   *PostgresStore
	timeout time.Duration
}

func NewPostgresTx(db *sql.DB, store *PostgresStore) *PostgresTx {
	return &PostgresTx{db: db, store: store}
}

// WithTimeout overrides the default transaction timeout.
func (t *PostgresTx) WithTimeout(d time.Duration) *PostgresTx {
	t.timeout = d
	return t
}

func (t *PostgresTx) RunInTx(ctx context.Context, fn func(ctx context.Context, store service.Store) error) error {
	ctx, cancel, err := withTxTimeout(ctx, t.timeout)
	if err != nil {
		return err
	}
	defer cancel()

	tx, err := t.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin ledger transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(txcontext.WithTx(ctx, tx), t.store); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit ledger transaction: %w", err)
	}
	return nil
}
