//go:build integration

package store_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"twubi/internal/ledger/epoch"
	"twubi/internal/ledger/models"
	"twubi/internal/ledger/replay"
	"twubi/internal/ledger/service"
	"twubi/internal/ledger/store"
	"twubi/internal/ledger/wad"
	audit "twubi/pkg/platform/audit"
	"twubi/pkg/platform/audit/publishers/compliance"
	auditpostgres "twubi/pkg/platform/audit/store/postgres"
	"twubi/pkg/requestcontext"
	"twubi/pkg/testutil/containers"
)

var genesis = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

type PostgresLedgerSuite struct {
	suite.Suite
	pg     *containers.PostgresContainer
	ledger *store.PostgresStore
	events *auditpostgres.Store
	svc    *service.Service
}

func TestPostgresLedgerSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresLedgerSuite))
}

func (s *PostgresLedgerSuite) SetupSuite() {
	s.pg = containers.GetManager().GetPostgres(s.T())
	s.ledger = store.NewPostgres(s.pg.DB)
	s.events = auditpostgres.New(s.pg.DB)

	svc, err := service.New(
		store.NewPostgresTx(s.pg.DB, s.ledger),
		compliance.New(s.events),
		service.Config{Genesis: genesis, Params: models.DefaultParams()},
		service.WithEventReader(s.events),
	)
	s.Require().NoError(err)
	s.svc = svc
}

func (s *PostgresLedgerSuite) SetupTest() {
	s.Require().NoError(s.pg.TruncateLedger(context.Background()))
}

func at(e int64) context.Context {
	return requestcontext.WithTime(context.Background(), genesis.Add(time.Duration(e)*epoch.Length+time.Hour))
}

func personID(n int) string { return fmt.Sprintf("0x%064x", n) }

func (s *PostgresLedgerSuite) register(n int, wallet string) {
	_, err := s.svc.RegisterPerson(at(0), service.RegisterRequest{
		PersonID: personID(n), Wallet: wallet, Region: 1, ExpiryEpoch: 24,
	})
	s.Require().NoError(err)
}

func (s *PostgresLedgerSuite) TestConversionLifecycle() {
	s.register(1, "0xAlice")
	_, err := s.svc.ClaimUBI(at(0), "0xalice")
	s.Require().NoError(err)

	conv, err := s.svc.RequestConversion(at(0), "0xalice", service.ConversionRequest{AmountUE: wad.Units(100), MinBUOut: wad.Zero})
	s.Require().NoError(err)
	s.Equal(wad.MustParse("99500000000000000000").String(), conv.AmountBU.String())

	_, err = s.svc.ClaimConversion(at(0), "0xalice", conv.ID)
	s.True(models.IsKind(err, models.KindNotYetUnlocked))

	// Empty treasury: the claim rolls back and stays retryable.
	_, err = s.svc.ClaimConversion(at(1), "0xalice", conv.ID)
	s.True(models.IsKind(err, models.KindTreasuryInsufficient))
	stored, err := s.ledger.GetConversion(context.Background(), conv.ID)
	s.Require().NoError(err)
	s.Equal(models.ConversionPending, stored.Status)

	_, err = s.svc.FundTreasury(at(1), wad.Units(1000))
	s.Require().NoError(err)
	claim, err := s.svc.ClaimConversion(at(1), "0xalice", conv.ID)
	s.Require().NoError(err)
	s.Equal(models.ConversionClaimed, claim.Conversion.Status)
	s.True(wad.MustParse("900500000000000000000").Equal(claim.TreasuryBalance))

	balances, err := s.svc.Balances(at(1), "0xalice")
	s.Require().NoError(err)
	s.True(wad.Units(596).Equal(balances.UE))
	s.True(conv.AmountBU.Equal(balances.BU))

	events, err := s.svc.Events(at(1), 0, 100)
	s.Require().NoError(err)
	var types []audit.EventType
	for _, e := range events {
		types = append(types, e.Type)
	}
	s.Equal([]audit.EventType{
		audit.EventPersonRegistered,
		audit.EventUBIClaimed,
		audit.EventConversionRequested,
		audit.EventTreasuryFunded,
		audit.EventConversionClaimed,
	}, types)
}

func (s *PostgresLedgerSuite) TestConcurrentUBIClaimsCreditOnce() {
	s.register(1, "0xbob")

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.svc.ClaimUBI(at(2), "0xbob"); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	s.Equal(1, successes)
	balances, err := s.svc.Balances(at(2), "0xbob")
	s.Require().NoError(err)
	s.True(models.DefaultParams().UEMintPerEpoch.Equal(balances.UE))
}

func (s *PostgresLedgerSuite) TestConcurrentConversionsRespectCap() {
	s.register(1, "0xcarol")
	for e := int64(0); e < 2; e++ {
		_, err := s.svc.ClaimUBI(at(e), "0xcarol")
		s.Require().NoError(err)
	}

	// 1392 UE covers four requests of 300; the 1000 UE cap admits three.
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for range 6 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.svc.RequestConversion(at(1), "0xcarol", service.ConversionRequest{AmountUE: wad.Units(300), MinBUOut: wad.Zero})
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	s.Equal(3, successes)
	id, err := models.ParsePersonID(personID(1))
	s.Require().NoError(err)
	acc, err := s.ledger.LockConverted(context.Background(), id, 1)
	s.Require().NoError(err)
	s.True(acc.AmountUE.Equal(wad.Units(900)))

	balances, err := s.svc.Balances(at(1), "0xcarol")
	s.Require().NoError(err)
	s.True(wad.Units(492).Equal(balances.UE))
}

func (s *PostgresLedgerSuite) TestRateIndexPersistsRolls() {
	_, err := s.svc.GetRateIndex(at(0), 3)
	s.True(models.IsKind(err, models.KindNotFound))

	ri, err := s.svc.GetOrInitRateIndex(at(0), 3)
	s.Require().NoError(err)
	s.True(wad.One.Equal(ri.Value))

	ri, err = s.svc.GetRateIndex(at(2), 3)
	s.Require().NoError(err)
	s.Equal("980100000000000000", ri.Value.String())

	stored, err := s.ledger.GetRateIndex(context.Background(), 3)
	s.Require().NoError(err)
	s.Equal(int64(2), stored.LastRolledEpoch)
	s.True(ri.Value.Equal(stored.Value))
}

func (s *PostgresLedgerSuite) TestEventsAreAppendOnly() {
	s.register(1, "0xdave")

	_, err := s.pg.DB.ExecContext(context.Background(), `UPDATE events SET subject = 'x'`)
	s.Error(err)
	_, err = s.pg.DB.ExecContext(context.Background(), `DELETE FROM events`)
	s.Error(err)
}

func (s *PostgresLedgerSuite) TestRegisterRejectsDuplicates() {
	s.register(1, "0xerin")

	_, err := s.svc.RegisterPerson(at(0), service.RegisterRequest{PersonID: personID(1), Wallet: "0xother", Region: 1, ExpiryEpoch: 24})
	s.True(models.IsKind(err, models.KindAlreadyRegistered))
	_, err = s.svc.RegisterPerson(at(0), service.RegisterRequest{PersonID: personID(2), Wallet: "0xERIN", Region: 1, ExpiryEpoch: 24})
	s.True(models.IsKind(err, models.KindAlreadyRegistered))
}

func (s *PostgresLedgerSuite) TestFractionalAmountsRoundTrip() {
	ctx := context.Background()
	s.register(1, "0xfrank")
	_, err := s.svc.ClaimUBI(at(10), "0xfrank")
	s.Require().NoError(err)

	// A fee on 333 wei and an index rolled ten epochs both leave fractional wei.
	conv, err := s.svc.RequestConversion(at(10), "0xfrank", service.ConversionRequest{AmountUE: wad.MustParse("333"), MinBUOut: wad.Zero})
	s.Require().NoError(err)
	s.Equal("1.665", conv.FeeUE.String())
	s.Contains(conv.RateIndexAtRequest.String(), ".")
	s.Contains(conv.AmountBU.String(), ".")

	dust, err := s.svc.RequestConversion(at(10), "0xfrank", service.ConversionRequest{AmountUE: wad.MustParse("0.4"), MinBUOut: wad.Zero})
	s.Require().NoError(err)

	_, err = s.svc.FundTreasury(at(11), wad.Units(1))
	s.Require().NoError(err)
	claim, err := s.svc.ClaimConversion(at(11), "0xfrank", conv.ID)
	s.Require().NoError(err)

	stored, err := s.ledger.GetConversion(ctx, conv.ID)
	s.Require().NoError(err)
	s.True(conv.FeeUE.Equal(stored.FeeUE), "fee: returned %s stored %s", conv.FeeUE, stored.FeeUE)
	s.True(conv.AmountBU.Equal(stored.AmountBU), "bu: returned %s stored %s", conv.AmountBU, stored.AmountBU)
	s.True(conv.RateIndexAtRequest.Equal(stored.RateIndexAtRequest))

	ri, err := s.ledger.GetRateIndex(ctx, 1)
	s.Require().NoError(err)
	s.True(conv.RateIndexAtRequest.Equal(ri.Value), "index: returned %s stored %s", conv.RateIndexAtRequest, ri.Value)

	wallet, err := models.ParseWallet("0xfrank")
	s.Require().NoError(err)
	balances, err := s.ledger.GetBalances(ctx, wallet)
	s.Require().NoError(err)
	wantUE := models.DefaultParams().UEMintPerEpoch.Sub(wad.MustParse("333")).Sub(dust.AmountUE)
	s.True(wantUE.Equal(balances.UE), "ue: want %s stored %s", wantUE, balances.UE)
	s.True(claim.BalanceBU.Equal(balances.BU))
	s.True(conv.AmountBU.Equal(balances.BU))

	treasury, err := s.ledger.TreasuryBalance(ctx)
	s.Require().NoError(err)
	s.True(wad.Units(1).Sub(conv.AmountBU).Equal(treasury))

	log, err := s.events.ListAfter(ctx, 0, 100)
	s.Require().NoError(err)
	st, err := replay.Project(log)
	s.Require().NoError(err)
	s.True(stored.AmountBU.Equal(st.Conversions[conv.ID].AmountBU))
	s.True(ri.Value.Equal(st.RateIndexes[1].Value))
	s.True(balances.UE.Equal(st.Balances[wallet].UE))
	s.True(balances.BU.Equal(st.Balances[wallet].BU))
	s.True(treasury.Equal(st.TreasuryBU))
}

func (s *PostgresLedgerSuite) TestConcurrentClaimsNeverOverdrawTreasury() {
	s.register(1, "0xgina")
	s.register(2, "0xhank")

	var convs []*models.PendingConversion
	for _, w := range []string{"0xgina", "0xhank"} {
		_, err := s.svc.ClaimUBI(at(0), w)
		s.Require().NoError(err)
		c, err := s.svc.RequestConversion(at(0), w, service.ConversionRequest{AmountUE: wad.Units(100), MinBUOut: wad.Zero})
		s.Require().NoError(err)
		convs = append(convs, c)
	}
	_, err := s.svc.FundTreasury(at(1), convs[0].AmountBU)
	s.Require().NoError(err)

	errs := make([]error, len(convs))
	var wg sync.WaitGroup
	for i, c := range convs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = s.svc.ClaimConversion(at(1), string(c.Wallet), c.ID)
		}()
	}
	wg.Wait()

	var successes, starved int
	for _, err := range errs {
		switch {
		case err == nil:
			successes++
		case models.IsKind(err, models.KindTreasuryInsufficient):
			starved++
		default:
			s.Failf("unexpected claim error", "%v", err)
		}
	}
	s.Equal(1, successes)
	s.Equal(1, starved)

	treasury, err := s.ledger.TreasuryBalance(context.Background())
	s.Require().NoError(err)
	s.True(treasury.IsZero(), "treasury %s", treasury)
}
