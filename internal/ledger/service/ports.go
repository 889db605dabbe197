package service

import (
	"context"
	"time"

	"twubi/internal/ledger/models"
	"twubi/internal/ledger/wad"
	audit "twubi/pkg/platform/audit"
)

// Store is the ledger's persistence contract. Inside RunInTx every read
// locks the row it returns until the transaction ends. Stores report facts
// with sentinel errors (ErrNotFound, ErrConflict, ErrInsufficientFunds);
// the service translates them.
type Store interface {
	// registry
	CreatePerson(ctx context.Context, p *models.Person) error
	FindPersonByWallet(ctx context.Context, wallet models.Wallet) (*models.Person, error)
	FindPersonByID(ctx context.Context, id models.PersonID) (*models.Person, error)
	UpdatePersonWallet(ctx context.Context, id models.PersonID, wallet models.Wallet, rotationEpoch int64) error

	// balances
	GetBalances(ctx context.Context, wallet models.Wallet) (*models.Balances, error)
	SaveBalances(ctx context.Context, b *models.Balances) error

	// ubi claims
	GetEpochClaim(ctx context.Context, person models.PersonID) (*models.EpochClaim, error)
	SaveEpochClaim(ctx context.Context, c *models.EpochClaim) error
	InsertUBIClaim(ctx context.Context, c *models.UBIClaim) error

	// conversions
	LockConverted(ctx context.Context, person models.PersonID, epoch int64) (*models.ConvertedThisEpoch, error)
	SaveConverted(ctx context.Context, c *models.ConvertedThisEpoch) error
	InsertConversion(ctx context.Context, c *models.PendingConversion) error
	GetConversion(ctx context.Context, id models.ConversionID) (*models.PendingConversion, error)
	UpdateConversion(ctx context.Context, c *models.PendingConversion) error
	ListConversions(ctx context.Context, person models.PersonID, statuses []models.ConversionStatus) ([]*models.PendingConversion, error)

	// rate index and oracle
	InitRateIndexIfAbsent(ctx context.Context, ri *models.RateIndex) (created bool, err error)
	GetRateIndex(ctx context.Context, region models.RegionID) (*models.RateIndex, error)
	SaveRateIndex(ctx context.Context, ri *models.RateIndex) error
	GetOracleSignal(ctx context.Context, region models.RegionID) (*models.OracleSignal, error)
	SaveOracleSignal(ctx context.Context, s *models.OracleSignal) error

	// treasury
	CreditTreasury(ctx context.Context, amount wad.Amount, at time.Time) (wad.Amount, error)
	DebitTreasury(ctx context.Context, amount wad.Amount, at time.Time) (wad.Amount, error)
	TreasuryBalance(ctx context.Context) (wad.Amount, error)
}

// LedgerTx runs fn as one all-or-nothing unit. The ctx passed to fn carries
// the transaction so the audit store joins it.
type LedgerTx interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, store Store) error) error
}

// AuditPublisher appends events synchronously and fails closed.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// EventReader exposes the append-only log for auditors.
type EventReader interface {
	ListAfter(ctx context.Context, afterID int64, limit int) ([]audit.Event, error)
}

// RateIndexCache caches rolled rate indexes per (region, epoch). A rolled
// index does not change for the rest of its epoch.
type RateIndexCache interface {
	Get(ctx context.Context, region models.RegionID, epoch int64) (*models.RateIndex, bool)
	Set(ctx context.Context, ri *models.RateIndex, ttl time.Duration)
}
