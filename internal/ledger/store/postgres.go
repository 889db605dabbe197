package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"twubi/internal/ledger/models"
	"twubi/internal/ledger/wad"
	"twubi/pkg/platform/sentinel"
	txcontext "twubi/pkg/platform/tx"
)

const uniqueViolation = "23505"

// PostgresStore persists ledger state in PostgreSQL. Reads lock their rows
// (FOR UPDATE) so read-check-write sequences inside one transaction cannot
// interleave with another transaction touching the same rows.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed ledger store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// -----------------------------------------------------------------------------
// Registry
// -----------------------------------------------------------------------------

func (s *PostgresStore) CreatePerson(ctx context.Context, p *models.Person) error {
	query := `
		INSERT INTO persons (person_id, wallet, region, expiry_epoch, registered_epoch, last_rotation_epoch, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		p.ID.String(), string(p.Wallet), int64(p.Region), p.ExpiryEpoch,
		p.RegisteredEpoch, p.LastRotationEpoch, p.Active, p.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("person %s: %w", p.ID, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert person: %w", err)
	}
	return nil
}

const personColumns = `person_id, wallet, region, expiry_epoch, registered_epoch, last_rotation_epoch, active, created_at`

func scanPerson(row *sql.Row) (*models.Person, error) {
	var (
		p      models.Person
		wallet string
		region int64
	)
	err := row.Scan(&p.ID, &wallet, &region, &p.ExpiryEpoch, &p.RegisteredEpoch, &p.LastRotationEpoch, &p.Active, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan person: %w", err)
	}
	p.Wallet = models.Wallet(wallet)
	p.Region = models.RegionID(region)
	return &p, nil
}

func (s *PostgresStore) FindPersonByWallet(ctx context.Context, wallet models.Wallet) (*models.Person, error) {
	query := `SELECT ` + personColumns + ` FROM persons WHERE wallet = $1 FOR UPDATE`
	return scanPerson(s.execer(ctx).QueryRowContext(ctx, query, string(wallet)))
}

func (s *PostgresStore) FindPersonByID(ctx context.Context, id models.PersonID) (*models.Person, error) {
	query := `SELECT ` + personColumns + ` FROM persons WHERE person_id = $1 FOR UPDATE`
	return scanPerson(s.execer(ctx).QueryRowContext(ctx, query, id.String()))
}

func (s *PostgresStore) UpdatePersonWallet(ctx context.Context, id models.PersonID, wallet models.Wallet, rotationEpoch int64) error {
	res, err := s.execer(ctx).ExecContext(ctx,
		`UPDATE persons SET wallet = $1, last_rotation_epoch = $2 WHERE person_id = $3`,
		string(wallet), rotationEpoch, id.String(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("wallet %s: %w", wallet, sentinel.ErrConflict)
		}
		return fmt.Errorf("update person wallet: %w", err)
	}
	return requireOneRow(res, "update person wallet")
}

// -----------------------------------------------------------------------------
// Balances
// -----------------------------------------------------------------------------

func (s *PostgresStore) GetBalances(ctx context.Context, wallet models.Wallet) (*models.Balances, error) {
	b := models.Balances{Wallet: wallet}
	err := s.execer(ctx).QueryRowContext(ctx,
		`SELECT ue, bu FROM balances WHERE wallet = $1 FOR UPDATE`, string(wallet),
	).Scan(&b.UE, &b.BU)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select balances: %w", err)
	}
	return &b, nil
}

func (s *PostgresStore) SaveBalances(ctx context.Context, b *models.Balances) error {
	query := `
		INSERT INTO balances (wallet, ue, bu, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (wallet) DO UPDATE
		SET ue = EXCLUDED.ue, bu = EXCLUDED.bu, updated_at = NOW()
	`
	if _, err := s.execer(ctx).ExecContext(ctx, query, string(b.Wallet), b.UE.String(), b.BU.String()); err != nil {
		return fmt.Errorf("upsert balances: %w", err)
	}
	return nil
}

// -----------------------------------------------------------------------------
// UBI claims
// -----------------------------------------------------------------------------

func (s *PostgresStore) GetEpochClaim(ctx context.Context, person models.PersonID) (*models.EpochClaim, error) {
	c := models.EpochClaim{Person: person}
	var region int64
	err := s.execer(ctx).QueryRowContext(ctx,
		`SELECT region, last_claimed_epoch FROM epoch_claims WHERE person_id = $1 FOR UPDATE`, person.String(),
	).Scan(&region, &c.LastClaimedEpoch)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select epoch claim: %w", err)
	}
	c.Region = models.RegionID(region)
	return &c, nil
}

// SaveEpochClaim upserts the cursor; the WHERE clause keeps it monotonic.
func (s *PostgresStore) SaveEpochClaim(ctx context.Context, c *models.EpochClaim) error {
	query := `
		INSERT INTO epoch_claims (person_id, region, last_claimed_epoch)
		VALUES ($1, $2, $3)
		ON CONFLICT (person_id) DO UPDATE
		SET last_claimed_epoch = EXCLUDED.last_claimed_epoch
		WHERE epoch_claims.last_claimed_epoch <= EXCLUDED.last_claimed_epoch
	`
	if _, err := s.execer(ctx).ExecContext(ctx, query, c.Person.String(), int64(c.Region), c.LastClaimedEpoch); err != nil {
		return fmt.Errorf("upsert epoch claim: %w", err)
	}
	return nil
}

func (s *PostgresStore) InsertUBIClaim(ctx context.Context, c *models.UBIClaim) error {
	query := `
		INSERT INTO ubi_claims (person_id, wallet, epoch, amount_ue, claimed_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		c.Person.String(), string(c.Wallet), c.Epoch, c.AmountUE.String(), c.ClaimedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("ubi claim %s/%d: %w", c.Person, c.Epoch, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert ubi claim: %w", err)
	}
	return nil
}

// -----------------------------------------------------------------------------
// Conversions
// -----------------------------------------------------------------------------

// LockConverted materializes the (person, epoch) accumulator and locks it.
func (s *PostgresStore) LockConverted(ctx context.Context, person models.PersonID, epoch int64) (*models.ConvertedThisEpoch, error) {
	exec := s.execer(ctx)
	if _, err := exec.ExecContext(ctx, `
		INSERT INTO converted_this_epoch (person_id, epoch, amount_ue)
		VALUES ($1, $2, 0)
		ON CONFLICT (person_id, epoch) DO NOTHING
	`, person.String(), epoch); err != nil {
		return nil, fmt.Errorf("init conversion accumulator: %w", err)
	}

	c := models.ConvertedThisEpoch{Person: person, Epoch: epoch}
	err := exec.QueryRowContext(ctx,
		`SELECT amount_ue FROM converted_this_epoch WHERE person_id = $1 AND epoch = $2 FOR UPDATE`,
		person.String(), epoch,
	).Scan(&c.AmountUE)
	if err != nil {
		return nil, fmt.Errorf("select conversion accumulator: %w", err)
	}
	return &c, nil
}

func (s *PostgresStore) SaveConverted(ctx context.Context, c *models.ConvertedThisEpoch) error {
	res, err := s.execer(ctx).ExecContext(ctx,
		`UPDATE converted_this_epoch SET amount_ue = $1 WHERE person_id = $2 AND epoch = $3`,
		c.AmountUE.String(), c.Person.String(), c.Epoch,
	)
	if err != nil {
		return fmt.Errorf("update conversion accumulator: %w", err)
	}
	return requireOneRow(res, "update conversion accumulator")
}

const conversionColumns = `id, person_id, wallet, region, amount_ue, fee_ue, amount_bu, rate_index_at_request,
	request_epoch, unlock_epoch, status, created_at, claimed_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConversion(row rowScanner) (*models.PendingConversion, error) {
	var (
		c         models.PendingConversion
		wallet    string
		region    int64
		status    string
		claimedAt sql.NullTime
	)
	err := row.Scan(&c.ID, &c.Person, &wallet, &region, &c.AmountUE, &c.FeeUE, &c.AmountBU,
		&c.RateIndexAtRequest, &c.RequestEpoch, &c.UnlockEpoch, &status, &c.CreatedAt, &claimedAt)
	if err != nil {
		return nil, err
	}
	c.Wallet = models.Wallet(wallet)
	c.Region = models.RegionID(region)
	c.Status = models.ConversionStatus(status)
	if claimedAt.Valid {
		t := claimedAt.Time
		c.ClaimedAt = &t
	}
	return &c, nil
}

func (s *PostgresStore) InsertConversion(ctx context.Context, c *models.PendingConversion) error {
	query := `INSERT INTO pending_conversions (` + conversionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		c.ID.String(), c.Person.String(), string(c.Wallet), int64(c.Region),
		c.AmountUE.String(), c.FeeUE.String(), c.AmountBU.String(), c.RateIndexAtRequest.String(),
		c.RequestEpoch, c.UnlockEpoch, string(c.Status), c.CreatedAt, nullTime(c.ClaimedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("conversion %s: %w", c.ID, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert conversion: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetConversion(ctx context.Context, id models.ConversionID) (*models.PendingConversion, error) {
	query := `SELECT ` + conversionColumns + ` FROM pending_conversions WHERE id = $1 FOR UPDATE`
	c, err := scanConversion(s.execer(ctx).QueryRowContext(ctx, query, id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select conversion: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) UpdateConversion(ctx context.Context, c *models.PendingConversion) error {
	res, err := s.execer(ctx).ExecContext(ctx,
		`UPDATE pending_conversions SET status = $1, claimed_at = $2 WHERE id = $3`,
		string(c.Status), nullTime(c.ClaimedAt), c.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("update conversion: %w", err)
	}
	return requireOneRow(res, "update conversion")
}

func (s *PostgresStore) ListConversions(ctx context.Context, person models.PersonID, statuses []models.ConversionStatus) ([]*models.PendingConversion, error) {
	names := make([]string, len(statuses))
	for i, st := range statuses {
		names[i] = string(st)
	}
	query := `SELECT ` + conversionColumns + ` FROM pending_conversions
		WHERE person_id = $1 AND status = ANY($2::text[])
		ORDER BY created_at, id`
	rows, err := s.execer(ctx).QueryContext(ctx, query, person.String(), pq.Array(names))
	if err != nil {
		return nil, fmt.Errorf("query conversions: %w", err)
	}
	defer rows.Close()

	var out []*models.PendingConversion
	for rows.Next() {
		c, err := scanConversion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan conversion: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversions: %w", err)
	}
	return out, nil
}

// -----------------------------------------------------------------------------
// Rate index and oracle
// -----------------------------------------------------------------------------

func (s *PostgresStore) InitRateIndexIfAbsent(ctx context.Context, ri *models.RateIndex) (bool, error) {
	res, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO rate_index (region, value, last_rolled_epoch, decay_rate, last_decay_update_epoch)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (region) DO NOTHING
	`, int64(ri.Region), ri.Value.String(), ri.LastRolledEpoch, ri.DecayRate.String(), ri.LastDecayUpdateEpoch)
	if err != nil {
		return false, fmt.Errorf("init rate index: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("init rate index rows: %w", err)
	}
	return n == 1, nil
}

func (s *PostgresStore) GetRateIndex(ctx context.Context, region models.RegionID) (*models.RateIndex, error) {
	ri := models.RateIndex{Region: region}
	err := s.execer(ctx).QueryRowContext(ctx, `
		SELECT value, last_rolled_epoch, decay_rate, last_decay_update_epoch
		FROM rate_index WHERE region = $1 FOR UPDATE
	`, int64(region)).Scan(&ri.Value, &ri.LastRolledEpoch, &ri.DecayRate, &ri.LastDecayUpdateEpoch)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select rate index: %w", err)
	}
	return &ri, nil
}

func (s *PostgresStore) SaveRateIndex(ctx context.Context, ri *models.RateIndex) error {
	res, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE rate_index
		SET value = $1, last_rolled_epoch = $2, decay_rate = $3, last_decay_update_epoch = $4, updated_at = NOW()
		WHERE region = $5
	`, ri.Value.String(), ri.LastRolledEpoch, ri.DecayRate.String(), ri.LastDecayUpdateEpoch, int64(ri.Region))
	if err != nil {
		return fmt.Errorf("update rate index: %w", err)
	}
	return requireOneRow(res, "update rate index")
}

func (s *PostgresStore) GetOracleSignal(ctx context.Context, region models.RegionID) (*models.OracleSignal, error) {
	sig := models.OracleSignal{Region: region}
	err := s.execer(ctx).QueryRowContext(ctx, `
		SELECT basket_index, inflation_rate, observed_at
		FROM oracle_signals WHERE region = $1 FOR UPDATE
	`, int64(region)).Scan(&sig.BasketIndex, &sig.InflationRate, &sig.ObservedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select oracle signal: %w", err)
	}
	return &sig, nil
}

func (s *PostgresStore) SaveOracleSignal(ctx context.Context, sig *models.OracleSignal) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO oracle_signals (region, basket_index, inflation_rate, observed_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (region) DO UPDATE
		SET basket_index = EXCLUDED.basket_index,
			inflation_rate = EXCLUDED.inflation_rate,
			observed_at = EXCLUDED.observed_at
	`, int64(sig.Region), sig.BasketIndex.String(), sig.InflationRate.String(), sig.ObservedAt)
	if err != nil {
		return fmt.Errorf("upsert oracle signal: %w", err)
	}
	return nil
}

// -----------------------------------------------------------------------------
// Treasury
// -----------------------------------------------------------------------------

func (s *PostgresStore) CreditTreasury(ctx context.Context, amount wad.Amount, at time.Time) (wad.Amount, error) {
	var balance wad.Amount
	err := s.execer(ctx).QueryRowContext(ctx, `
		UPDATE treasury SET balance_bu = balance_bu + $1, updated_at = $2
		WHERE id = 1
		RETURNING balance_bu
	`, amount.String(), at).Scan(&balance)
	if err != nil {
		return wad.Zero, fmt.Errorf("credit treasury: %w", err)
	}
	return balance, nil
}

// DebitTreasury is a single conditional update: when the reserve cannot
// cover amount no row matches and nothing changes.
func (s *PostgresStore) DebitTreasury(ctx context.Context, amount wad.Amount, at time.Time) (wad.Amount, error) {
	var balance wad.Amount
	err := s.execer(ctx).QueryRowContext(ctx, `
		UPDATE treasury SET balance_bu = balance_bu - $1, updated_at = $2
		WHERE id = 1 AND balance_bu >= $1
		RETURNING balance_bu
	`, amount.String(), at).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return wad.Zero, sentinel.ErrInsufficientFunds
	}
	if err != nil {
		return wad.Zero, fmt.Errorf("debit treasury: %w", err)
	}
	return balance, nil
}

func (s *PostgresStore) TreasuryBalance(ctx context.Context) (wad.Amount, error) {
	var balance wad.Amount
	err := s.execer(ctx).QueryRowContext(ctx, `SELECT balance_bu FROM treasury WHERE id = 1`).Scan(&balance)
	if err != nil {
		return wad.Zero, fmt.Errorf("select treasury: %w", err)
	}
	return balance, nil
}

func requireOneRow(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows: %w", op, err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
