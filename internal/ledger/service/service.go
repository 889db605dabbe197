// Package service implements the ledger's state machine: registration,
// UBI claims, UE->BU conversion requests and claims, rate index rolls,
// oracle submissions and treasury funding. Every mutating operation runs in
// one transaction and appends exactly one audit event before committing.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"twubi/internal/ledger/epoch"
	"twubi/internal/ledger/metrics"
	"twubi/internal/ledger/models"
	dErrors "twubi/pkg/domain-errors"
	audit "twubi/pkg/platform/audit"
	"twubi/pkg/platform/sentinel"
	"twubi/pkg/requestcontext"
)

// Config is the protocol configuration passed in at construction.
type Config struct {
	Genesis time.Time
	Params  models.Params
}

// Service coordinates ledger operations over a transactional store.
type Service struct {
	tx      LedgerTx
	auditor AuditPublisher
	events  EventReader
	cache   RateIndexCache
	clock   epoch.Clock
	params  models.Params
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures the Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithRateIndexCache enables read-through caching for GetRateIndex.
func WithRateIndexCache(c RateIndexCache) Option {
	return func(s *Service) {
		s.cache = c
	}
}

// WithEventReader enables the Events read path.
func WithEventReader(r EventReader) Option {
	return func(s *Service) {
		s.events = r
	}
}

// New validates cfg and returns a Service.
func New(tx LedgerTx, auditor AuditPublisher, cfg Config, opts ...Option) (*Service, error) {
	if tx == nil {
		return nil, errors.New("ledger transaction runner is required")
	}
	if auditor == nil {
		return nil, errors.New("audit publisher is required")
	}
	if cfg.Genesis.IsZero() {
		return nil, errors.New("genesis time is required")
	}
	if err := cfg.Params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid protocol parameters: %w", err)
	}

	s := &Service{
		tx:      tx,
		auditor: auditor,
		clock:   epoch.NewClock(cfg.Genesis),
		params:  cfg.Params,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Params returns the protocol parameters the service runs with.
func (s *Service) Params() models.Params {
	return s.params
}

// CurrentEpoch is the epoch of the request-scoped time in ctx.
func (s *Service) CurrentEpoch(ctx context.Context) int64 {
	return s.clock.Current(requestcontext.Now(ctx))
}

func (s *Service) emit(ctx context.Context, t audit.EventType, subject string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode audit payload")
	}
	event := audit.Event{
		Type:      t,
		Subject:   subject,
		Timestamp: requestcontext.Now(ctx),
		RequestID: requestcontext.RequestID(ctx),
		ActorID:   requestcontext.ActorID(ctx),
		Payload:   raw,
	}
	if err := s.auditor.Emit(ctx, event); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record audit event")
	}
	return nil
}

// finish classifies a failed operation for logs and metrics and returns it
// unchanged. Ledger kinds pass through; anything else becomes an internal
// error unless it already carries a domain code.
func (s *Service) finish(ctx context.Context, op string, err error) error {
	if err == nil {
		return nil
	}
	if kind, ok := models.KindOf(err); ok {
		if s.metrics != nil {
			s.metrics.IncrementFailure(op, kind.String())
		}
		if kind.IsInvariant() {
			if s.metrics != nil {
				s.metrics.IncrementInvariantViolation(kind.String())
			}
			s.logger.ErrorContext(ctx, "ledger invariant violated",
				"log_type", "invariant_violation",
				"operation", op,
				"kind", kind.String(),
				"request_id", requestcontext.RequestID(ctx),
				"error", err,
			)
		}
		return err
	}

	if s.metrics != nil {
		s.metrics.IncrementFailure(op, string(dErrors.CodeOf(err)))
	}
	var de *dErrors.Error
	if errors.As(err, &de) {
		if de.Code == dErrors.CodeInternal || de.Code == dErrors.CodeTimeout {
			s.logger.ErrorContext(ctx, "ledger operation failed",
				"operation", op,
				"request_id", requestcontext.RequestID(ctx),
				"error", err,
			)
		}
		return err
	}
	s.logger.ErrorContext(ctx, "ledger operation failed",
		"operation", op,
		"request_id", requestcontext.RequestID(ctx),
		"error", err,
	)
	return dErrors.Wrap(err, dErrors.CodeInternal, op+" failed")
}

// storeErr wraps an unexpected store failure.
func storeErr(err error, what string) error {
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to "+what)
}

func isNotFound(err error) bool {
	return errors.Is(err, sentinel.ErrNotFound)
}

func (s *Service) personByWallet(ctx context.Context, store Store, raw string) (*models.Person, error) {
	wallet, err := models.ParseWallet(raw)
	if err != nil {
		return nil, err
	}
	p, err := store.FindPersonByWallet(ctx, wallet)
	if err != nil {
		if isNotFound(err) {
			return nil, models.WalletNotActive(wallet)
		}
		return nil, storeErr(err, "load person")
	}
	if !p.Active {
		return nil, models.WalletNotActive(wallet)
	}
	return p, nil
}

func loadBalances(ctx context.Context, store Store, wallet models.Wallet) (*models.Balances, error) {
	b, err := store.GetBalances(ctx, wallet)
	if err != nil {
		if isNotFound(err) {
			return &models.Balances{Wallet: wallet}, nil
		}
		return nil, storeErr(err, "load balances")
	}
	return b, nil
}
