package service_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"twubi/internal/ledger/models"
	"twubi/internal/ledger/service"
	"twubi/internal/ledger/wad"
	dErrors "twubi/pkg/domain-errors"
	audit "twubi/pkg/platform/audit"
	"twubi/pkg/platform/audit/publishers/compliance"
)

func (s *LedgerSuite) claimUBI(e int64, n int) {
	_, err := s.svc.ClaimUBI(at(e), walletOf(n))
	s.Require().NoError(err)
}

func (s *LedgerSuite) convert(e int64, n int, amount wad.Amount) *models.PendingConversion {
	c, err := s.svc.RequestConversion(at(e), walletOf(n), service.ConversionRequest{AmountUE: amount, MinBUOut: wad.Zero})
	s.Require().NoError(err)
	return c
}

func (s *LedgerSuite) fund(e int64, amount wad.Amount) {
	_, err := s.svc.FundTreasury(at(e), amount)
	s.Require().NoError(err)
}

// =============================================================================
// Conversion requests
// =============================================================================

func (s *LedgerSuite) TestRegisterClaimConvert() {
	s.register(0, 1, 1)
	s.claimUBI(0, 1)

	b, err := s.svc.Balances(at(0), walletOf(1))
	s.Require().NoError(err)
	s.True(b.UE.Equal(units(696)))

	c := s.convert(0, 1, units(100))
	s.True(c.FeeUE.Equal(wad.MustParse("500000000000000000")))
	s.True(c.AmountBU.Equal(wad.MustParse("99500000000000000000")))
	s.True(c.RateIndexAtRequest.Equal(wad.One))
	s.Equal(int64(0), c.RequestEpoch)
	s.Equal(int64(1), c.UnlockEpoch)
	s.Equal(models.ConversionPending, c.Status)

	b, err = s.svc.Balances(at(0), walletOf(1))
	s.Require().NoError(err)
	s.True(b.UE.Equal(units(596)))
	s.True(b.BU.IsZero())

	pending, err := s.svc.ListConversions(at(0), walletOf(1))
	s.Require().NoError(err)
	s.Require().Len(pending, 1)
	s.Equal(c.ID, pending[0].ID)
	s.Equal(models.ConversionPending, pending[0].Status)

	pending, err = s.svc.ListConversions(at(1), walletOf(1))
	s.Require().NoError(err)
	s.Require().Len(pending, 1)
	s.Equal(models.ConversionUnlocked, pending[0].Status)
}

func (s *LedgerSuite) TestConversionUsesRolledRateIndex() {
	s.register(0, 1, 1)
	s.claimUBI(1, 1)

	c := s.convert(1, 1, units(100))
	s.True(c.RateIndexAtRequest.Equal(wad.MustParse("990000000000000000")))
	s.True(c.AmountBU.Equal(wad.MustParse("98505000000000000000")))
}

func (s *LedgerSuite) TestConversionCapPerEpoch() {
	s.register(0, 1, 1)
	s.claimUBI(0, 1)
	s.claimUBI(1, 1)

	s.convert(1, 1, units(600))

	_, err := s.svc.RequestConversion(at(1), walletOf(1), service.ConversionRequest{AmountUE: units(401), MinBUOut: wad.Zero})
	s.requireKind(err, models.KindConversionCapExceeded)
	s.True(dErrors.HasCode(err, dErrors.CodeLimitExceeded))
	var le *models.LedgerError
	s.Require().True(errors.As(err, &le))
	s.True(le.Available.Equal(units(400)))

	s.convert(1, 1, units(400))

	_, err = s.svc.RequestConversion(at(1), walletOf(1), service.ConversionRequest{AmountUE: wad.FromInt64(1), MinBUOut: wad.Zero})
	s.requireKind(err, models.KindConversionCapExceeded)

	// The accumulator is per epoch.
	s.claimUBI(2, 1)
	s.convert(2, 1, units(100))

	b, err := s.svc.Balances(at(2), walletOf(1))
	s.Require().NoError(err)
	s.True(b.UE.Equal(units(696*3 - 1100)))
}

func (s *LedgerSuite) TestConversionRejections() {
	s.register(0, 1, 1)

	_, err := s.svc.RequestConversion(at(0), walletOf(1), service.ConversionRequest{AmountUE: units(1), MinBUOut: wad.Zero})
	s.requireKind(err, models.KindInsufficientBalance)

	s.claimUBI(0, 1)

	_, err = s.svc.RequestConversion(at(0), walletOf(1), service.ConversionRequest{AmountUE: wad.Zero, MinBUOut: wad.Zero})
	s.requireKind(err, models.KindInvalidAmount)

	_, err = s.svc.RequestConversion(at(0), walletOf(1), service.ConversionRequest{AmountUE: units(1), MinBUOut: wad.MustParse("-1")})
	s.requireKind(err, models.KindInvalidAmount)

	_, err = s.svc.RequestConversion(at(0), walletOf(1), service.ConversionRequest{AmountUE: units(100), MinBUOut: units(100)})
	s.requireKind(err, models.KindSlippageTooHigh)
	var le *models.LedgerError
	s.Require().True(errors.As(err, &le))
	s.True(le.ComputedBU.Equal(wad.MustParse("99500000000000000000")))

	_, err = s.svc.RequestConversion(at(0), walletOf(2), service.ConversionRequest{AmountUE: units(1), MinBUOut: wad.Zero})
	s.requireKind(err, models.KindWalletNotActive)

	b, err := s.svc.Balances(at(0), walletOf(1))
	s.Require().NoError(err)
	s.True(b.UE.Equal(units(696)), "rejected requests must not move balances")

	pending, err := s.svc.ListConversions(at(0), walletOf(1))
	s.Require().NoError(err)
	s.Empty(pending)
}

// =============================================================================
// Conversion claims
// =============================================================================

func (s *LedgerSuite) TestClaimConversionLifecycle() {
	s.register(0, 1, 1)
	s.claimUBI(0, 1)
	c := s.convert(0, 1, units(100))
	s.fund(0, units(1000))

	_, err := s.svc.ClaimConversion(at(0), walletOf(1), c.ID)
	s.requireKind(err, models.KindNotYetUnlocked)

	res, err := s.svc.ClaimConversion(at(1), walletOf(1), c.ID)
	s.Require().NoError(err)
	s.Equal(models.ConversionClaimed, res.Conversion.Status)
	s.Require().NotNil(res.Conversion.ClaimedAt)
	s.True(res.BalanceBU.Equal(wad.MustParse("99500000000000000000")))
	s.True(res.TreasuryBalance.Equal(wad.MustParse("900500000000000000000")))

	_, err = s.svc.ClaimConversion(at(1), walletOf(1), c.ID)
	s.requireKind(err, models.KindConversionAlreadyClaimed)

	pending, err := s.svc.ListConversions(at(1), walletOf(1))
	s.Require().NoError(err)
	s.Empty(pending)

	treasury, err := s.svc.TreasuryBalance(at(1))
	s.Require().NoError(err)
	s.True(treasury.Equal(wad.MustParse("900500000000000000000")))
}

func (s *LedgerSuite) TestClaimConversionOfAnotherPersonIsNotFound() {
	s.register(0, 1, 1)
	s.register(0, 2, 1)
	s.claimUBI(0, 1)
	c := s.convert(0, 1, units(10))
	s.fund(0, units(100))

	_, err := s.svc.ClaimConversion(at(1), walletOf(2), c.ID)
	s.requireKind(err, models.KindNotFound)

	_, err = s.svc.ClaimConversion(at(1), walletOf(1), models.ConversionID{})
	s.requireKind(err, models.KindNotFound)
}

func (s *LedgerSuite) TestTreasuryInsufficientIsRetryable() {
	s.register(0, 1, 1)
	s.claimUBI(0, 1)
	c := s.convert(0, 1, units(100))
	s.fund(0, units(50))

	_, err := s.svc.ClaimConversion(at(1), walletOf(1), c.ID)
	s.requireKind(err, models.KindTreasuryInsufficient)
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
	s.Contains(s.logs.String(), "invariant_violation")

	b, err := s.svc.Balances(at(1), walletOf(1))
	s.Require().NoError(err)
	s.True(b.BU.IsZero())

	s.fund(1, units(50))
	res, err := s.svc.ClaimConversion(at(1), walletOf(1), c.ID)
	s.Require().NoError(err)
	s.True(res.TreasuryBalance.Equal(wad.MustParse("500000000000000000")))
}

func (s *LedgerSuite) TestConcurrentClaimsNeverOverdrawTreasury() {
	s.register(0, 1, 1)
	s.register(0, 2, 1)
	s.claimUBI(0, 1)
	s.claimUBI(0, 2)
	c1 := s.convert(0, 1, units(100))
	c2 := s.convert(0, 2, units(100))
	s.fund(0, wad.MustParse("99500000000000000000"))

	claims := []struct {
		wallet string
		id     models.ConversionID
	}{{walletOf(1), c1.ID}, {walletOf(2), c2.ID}}

	var wg sync.WaitGroup
	errs := make([]error, len(claims))
	for i, c := range claims {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = s.svc.ClaimConversion(at(1), c.wallet, c.id)
		}()
	}
	wg.Wait()

	succeeded, starved := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case models.IsKind(err, models.KindTreasuryInsufficient):
			starved++
		default:
			s.Failf("unexpected error", "%v", err)
		}
	}
	s.Equal(1, succeeded)
	s.Equal(1, starved)

	treasury, err := s.svc.TreasuryBalance(at(1))
	s.Require().NoError(err)
	s.True(treasury.IsZero())
}

func (s *LedgerSuite) TestConcurrentUBIClaimsCreditOnce() {
	s.register(0, 1, 1)

	const workers = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	ok := 0
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.svc.ClaimUBI(at(0), walletOf(1)); err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	s.Equal(1, ok)
	b, err := s.svc.Balances(at(0), walletOf(1))
	s.Require().NoError(err)
	s.True(b.UE.Equal(units(696)))
}

// =============================================================================
// Treasury
// =============================================================================

func (s *LedgerSuite) TestFundTreasury() {
	balance, err := s.svc.FundTreasury(at(0), units(10))
	s.Require().NoError(err)
	s.True(balance.Equal(units(10)))

	balance, err = s.svc.FundTreasury(at(0), units(5))
	s.Require().NoError(err)
	s.True(balance.Equal(units(15)))

	_, err = s.svc.FundTreasury(at(0), wad.Zero)
	s.requireKind(err, models.KindInvalidAmount)

	s.Equal([]audit.EventType{audit.EventTreasuryFunded, audit.EventTreasuryFunded}, s.eventTypes())
}

// =============================================================================
// Rate index and oracle
// =============================================================================

func (s *LedgerSuite) TestRateIndexDecaysOneEpoch() {
	ri, err := s.svc.GetOrInitRateIndex(at(0), 1)
	s.Require().NoError(err)
	s.True(ri.Value.Equal(wad.One))
	s.True(ri.DecayRate.Equal(wad.MustParse("10000000000000000")))

	ri, err = s.svc.GetRateIndex(at(1), 1)
	s.Require().NoError(err)
	s.True(ri.Value.Equal(wad.MustParse("990000000000000000")))
	s.Equal(int64(1), ri.LastRolledEpoch)

	again, err := s.svc.GetRateIndex(at(1), 1)
	s.Require().NoError(err)
	s.True(again.Value.Equal(ri.Value))

	s.Equal([]audit.EventType{audit.EventRateIndexRolled, audit.EventRateIndexRolled}, s.eventTypes())
}

func (s *LedgerSuite) TestRateIndexCatchesUpSkippedEpochs() {
	_, err := s.svc.GetOrInitRateIndex(at(0), 1)
	s.Require().NoError(err)

	ri, err := s.svc.GetRateIndex(at(3), 1)
	s.Require().NoError(err)
	s.True(ri.Value.Equal(wad.MustParse("970299000000000000")))
}

func (s *LedgerSuite) TestGetRateIndexUnknownRegion() {
	_, err := s.svc.GetRateIndex(at(0), 42)
	s.requireKind(err, models.KindNotFound)

	_, err = s.svc.GetRateIndex(at(1), 42)
	s.requireKind(err, models.KindNotFound)
	s.Empty(s.eventTypes(), "reads must not materialize a region")

	_, err = s.svc.GetOrInitRateIndex(at(0), -1)
	s.requireKind(err, models.KindInvalidRequest)
}

func (s *LedgerSuite) TestOracleSteersDecay() {
	s.register(0, 1, 1)

	sig, err := s.svc.SubmitOracle(at(0), service.OracleSubmission{Region: 1, BasketIndex: units(100)})
	s.Require().NoError(err)
	s.True(sig.InflationRate.IsZero())

	sig, err = s.svc.SubmitOracle(at(0), service.OracleSubmission{Region: 1, BasketIndex: units(102)})
	s.Require().NoError(err)
	s.True(sig.InflationRate.Equal(wad.MustParse("20000000000000000")))

	// Target falls to MIN_DECAY but one epoch moves the rate by at most
	// MAX_DECAY_CHANGE: 1% -> 0.9%.
	ri, err := s.svc.GetRateIndex(at(1), 1)
	s.Require().NoError(err)
	s.True(ri.DecayRate.Equal(wad.MustParse("9000000000000000")))
	s.True(ri.Value.Equal(wad.MustParse("991000000000000000")))

	latest, err := s.svc.OracleSignal(at(1), 1)
	s.Require().NoError(err)
	s.True(latest.BasketIndex.Equal(units(102)))

	_, err = s.svc.OracleSignal(at(1), 2)
	s.requireKind(err, models.KindNotFound)

	_, err = s.svc.SubmitOracle(at(1), service.OracleSubmission{Region: 1, BasketIndex: wad.Zero})
	s.requireKind(err, models.KindInvalidAmount)
}

func (s *LedgerSuite) TestDeriveInflation() {
	infl, err := service.DeriveInflation(nil, units(5))
	s.Require().NoError(err)
	s.True(infl.IsZero())

	prev := &models.OracleSignal{BasketIndex: units(200)}
	infl, err = service.DeriveInflation(prev, units(190))
	s.Require().NoError(err)
	s.True(infl.Equal(wad.MustParse("-50000000000000000")))
}

// =============================================================================
// Rate index cache
// =============================================================================

type recordingCache struct {
	mu   sync.Mutex
	data map[[2]int64]models.RateIndex
	ttls []time.Duration
}

func (c *recordingCache) Get(_ context.Context, region models.RegionID, epoch int64) (*models.RateIndex, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ri, ok := c.data[[2]int64{int64(region), epoch}]
	if !ok {
		return nil, false
	}
	return &ri, true
}

func (c *recordingCache) Set(_ context.Context, ri *models.RateIndex, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[[2]int64{int64(ri.Region), ri.LastRolledEpoch}] = *ri
	c.ttls = append(c.ttls, ttl)
}

func (s *LedgerSuite) TestGetRateIndexReadsThroughCache() {
	cache := &recordingCache{data: make(map[[2]int64]models.RateIndex)}
	svc := s.newService(compliance.New(s.events), service.WithRateIndexCache(cache))

	_, err := svc.GetOrInitRateIndex(at(0), 1)
	s.Require().NoError(err)

	ri, err := svc.GetRateIndex(at(1), 1)
	s.Require().NoError(err)
	s.Require().Len(cache.ttls, 2)
	s.Equal(30*24*time.Hour-time.Hour, cache.ttls[1])

	// A cached value is served without touching the store.
	cache.data[[2]int64{1, 1}] = models.RateIndex{Region: 1, Value: units(7), LastRolledEpoch: 1}
	cached, err := svc.GetRateIndex(at(1), 1)
	s.Require().NoError(err)
	s.True(cached.Value.Equal(units(7)))
	s.False(cached.Value.Equal(ri.Value))
}
