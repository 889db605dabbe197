package store

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"twubi/internal/ledger/models"
	"twubi/internal/ledger/wad"
	"twubi/pkg/platform/sentinel"
)

type ubiKey struct {
	person models.PersonID
	epoch  int64
}

// InMemoryStore implements the ledger store with maps. Row locking is
// provided by InMemoryTx, which serializes transactions.
type InMemoryStore struct {
	mu sync.RWMutex

	persons     map[models.PersonID]models.Person
	wallets     map[models.Wallet]models.PersonID
	balances    map[models.Wallet]models.Balances
	epochClaims map[models.PersonID]models.EpochClaim
	ubiClaims   map[ubiKey]models.UBIClaim
	converted   map[ubiKey]models.ConvertedThisEpoch
	conversions map[models.ConversionID]models.PendingConversion
	order       []models.ConversionID
	rateIndexes map[models.RegionID]models.RateIndex
	signals     map[models.RegionID]models.OracleSignal
	treasury    models.Treasury
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		persons:     make(map[models.PersonID]models.Person),
		wallets:     make(map[models.Wallet]models.PersonID),
		balances:    make(map[models.Wallet]models.Balances),
		epochClaims: make(map[models.PersonID]models.EpochClaim),
		ubiClaims:   make(map[ubiKey]models.UBIClaim),
		converted:   make(map[ubiKey]models.ConvertedThisEpoch),
		conversions: make(map[models.ConversionID]models.PendingConversion),
		rateIndexes: make(map[models.RegionID]models.RateIndex),
		signals:     make(map[models.RegionID]models.OracleSignal),
	}
}

// Snapshot copies every table and returns a function restoring them.
func (s *InMemoryStore) Snapshot() (restore func()) {
	s.mu.RLock()
	saved := &InMemoryStore{
		persons:     maps.Clone(s.persons),
		wallets:     maps.Clone(s.wallets),
		balances:    maps.Clone(s.balances),
		epochClaims: maps.Clone(s.epochClaims),
		ubiClaims:   maps.Clone(s.ubiClaims),
		converted:   maps.Clone(s.converted),
		conversions: maps.Clone(s.conversions),
		order:       slices.Clone(s.order),
		rateIndexes: maps.Clone(s.rateIndexes),
		signals:     maps.Clone(s.signals),
		treasury:    s.treasury,
	}
	s.mu.RUnlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.persons = saved.persons
		s.wallets = saved.wallets
		s.balances = saved.balances
		s.epochClaims = saved.epochClaims
		s.ubiClaims = saved.ubiClaims
		s.converted = saved.converted
		s.conversions = saved.conversions
		s.order = saved.order
		s.rateIndexes = saved.rateIndexes
		s.signals = saved.signals
		s.treasury = saved.treasury
	}
}

func (s *InMemoryStore) CreatePerson(_ context.Context, p *models.Person) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.persons[p.ID]; ok {
		return fmt.Errorf("person %s: %w", p.ID, sentinel.ErrConflict)
	}
	if _, ok := s.wallets[p.Wallet]; ok {
		return fmt.Errorf("wallet %s: %w", p.Wallet, sentinel.ErrConflict)
	}
	s.persons[p.ID] = *p
	s.wallets[p.Wallet] = p.ID
	return nil
}

func (s *InMemoryStore) FindPersonByWallet(_ context.Context, wallet models.Wallet) (*models.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.wallets[wallet]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	p := s.persons[id]
	return &p, nil
}

func (s *InMemoryStore) FindPersonByID(_ context.Context, id models.PersonID) (*models.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.persons[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &p, nil
}

func (s *InMemoryStore) UpdatePersonWallet(_ context.Context, id models.PersonID, wallet models.Wallet, rotationEpoch int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.persons[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	if owner, taken := s.wallets[wallet]; taken && owner != id {
		return fmt.Errorf("wallet %s: %w", wallet, sentinel.ErrConflict)
	}
	delete(s.wallets, p.Wallet)
	p.Wallet = wallet
	p.LastRotationEpoch = rotationEpoch
	s.persons[id] = p
	s.wallets[wallet] = id
	return nil
}

func (s *InMemoryStore) GetBalances(_ context.Context, wallet models.Wallet) (*models.Balances, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.balances[wallet]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &b, nil
}

func (s *InMemoryStore) SaveBalances(_ context.Context, b *models.Balances) error {
	if b.UE.IsNegative() || b.BU.IsNegative() {
		return fmt.Errorf("negative balance for %s", b.Wallet)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances[b.Wallet] = *b
	return nil
}

func (s *InMemoryStore) GetEpochClaim(_ context.Context, person models.PersonID) (*models.EpochClaim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.epochClaims[person]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &c, nil
}

func (s *InMemoryStore) SaveEpochClaim(_ context.Context, c *models.EpochClaim) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.epochClaims[c.Person]; ok && c.LastClaimedEpoch < prev.LastClaimedEpoch {
		return fmt.Errorf("claim cursor for %s would move back", c.Person)
	}
	s.epochClaims[c.Person] = *c
	return nil
}

func (s *InMemoryStore) InsertUBIClaim(_ context.Context, c *models.UBIClaim) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := ubiKey{person: c.Person, epoch: c.Epoch}
	if _, ok := s.ubiClaims[key]; ok {
		return fmt.Errorf("ubi claim %s/%d: %w", c.Person, c.Epoch, sentinel.ErrConflict)
	}
	s.ubiClaims[key] = *c
	return nil
}

// UBIClaimCount reports how many claims were recorded for person.
func (s *InMemoryStore) UBIClaimCount(person models.PersonID) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for k := range s.ubiClaims {
		if k.person == person {
			n++
		}
	}
	return n
}

func (s *InMemoryStore) LockConverted(_ context.Context, person models.PersonID, epoch int64) (*models.ConvertedThisEpoch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := ubiKey{person: person, epoch: epoch}
	c, ok := s.converted[key]
	if !ok {
		c = models.ConvertedThisEpoch{Person: person, Epoch: epoch, AmountUE: wad.Zero}
		s.converted[key] = c
	}
	return &c, nil
}

func (s *InMemoryStore) SaveConverted(_ context.Context, c *models.ConvertedThisEpoch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.converted[ubiKey{person: c.Person, epoch: c.Epoch}] = *c
	return nil
}

func (s *InMemoryStore) InsertConversion(_ context.Context, c *models.PendingConversion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conversions[c.ID]; ok {
		return fmt.Errorf("conversion %s: %w", c.ID, sentinel.ErrConflict)
	}
	s.conversions[c.ID] = *c
	s.order = append(s.order, c.ID)
	return nil
}

func (s *InMemoryStore) GetConversion(_ context.Context, id models.ConversionID) (*models.PendingConversion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.conversions[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &c, nil
}

func (s *InMemoryStore) UpdateConversion(_ context.Context, c *models.PendingConversion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conversions[c.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.conversions[c.ID] = *c
	return nil
}

func (s *InMemoryStore) ListConversions(_ context.Context, person models.PersonID, statuses []models.ConversionStatus) ([]*models.PendingConversion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.PendingConversion
	for _, id := range s.order {
		c := s.conversions[id]
		if c.Person != person || !slices.Contains(statuses, c.Status) {
			continue
		}
		out = append(out, &c)
	}
	return out, nil
}

func (s *InMemoryStore) InitRateIndexIfAbsent(_ context.Context, ri *models.RateIndex) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rateIndexes[ri.Region]; ok {
		return false, nil
	}
	s.rateIndexes[ri.Region] = *ri
	return true, nil
}

func (s *InMemoryStore) GetRateIndex(_ context.Context, region models.RegionID) (*models.RateIndex, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ri, ok := s.rateIndexes[region]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &ri, nil
}

func (s *InMemoryStore) SaveRateIndex(_ context.Context, ri *models.RateIndex) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rateIndexes[ri.Region] = *ri
	return nil
}

func (s *InMemoryStore) GetOracleSignal(_ context.Context, region models.RegionID) (*models.OracleSignal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sig, ok := s.signals[region]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &sig, nil
}

func (s *InMemoryStore) SaveOracleSignal(_ context.Context, sig *models.OracleSignal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signals[sig.Region] = *sig
	return nil
}

func (s *InMemoryStore) CreditTreasury(_ context.Context, amount wad.Amount, at time.Time) (wad.Amount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.treasury.BalanceBU = s.treasury.BalanceBU.Add(amount)
	s.treasury.UpdatedAt = at
	return s.treasury.BalanceBU, nil
}

// DebitTreasury applies the debit only when the reserve covers it.
func (s *InMemoryStore) DebitTreasury(_ context.Context, amount wad.Amount, at time.Time) (wad.Amount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.treasury.BalanceBU.LessThan(amount) {
		return wad.Zero, sentinel.ErrInsufficientFunds
	}
	s.treasury.BalanceBU = s.treasury.BalanceBU.Sub(amount)
	s.treasury.UpdatedAt = at
	return s.treasury.BalanceBU, nil
}

func (s *InMemoryStore) TreasuryBalance(_ context.Context) (wad.Amount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.treasury.BalanceBU, nil
}
