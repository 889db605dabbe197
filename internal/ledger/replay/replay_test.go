package replay_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"twubi/internal/ledger/epoch"
	"twubi/internal/ledger/models"
	"twubi/internal/ledger/replay"
	"twubi/internal/ledger/service"
	"twubi/internal/ledger/store"
	"twubi/internal/ledger/wad"
	audit "twubi/pkg/platform/audit"
	"twubi/pkg/platform/audit/publishers/compliance"
	auditmemory "twubi/pkg/platform/audit/store/memory"
	"twubi/pkg/requestcontext"
)

var genesis = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func at(e int64) context.Context {
	return requestcontext.WithTime(context.Background(), genesis.Add(time.Duration(e)*epoch.Length+time.Hour))
}

func pid(n int) string    { return fmt.Sprintf("0x%064x", n) }
func wallet(n int) string { return fmt.Sprintf("0xw%d", n) }

// TestProjectMatchesStore runs a mixed workload, including rejected
// operations, and checks that folding the log reproduces the store.
func TestProjectMatchesStore(t *testing.T) {
	ledger := store.NewInMemoryStore()
	events := auditmemory.NewInMemoryStore()
	svc, err := service.New(store.NewInMemoryTx(ledger, events), compliance.New(events),
		service.Config{Genesis: genesis, Params: models.DefaultParams()})
	require.NoError(t, err)

	for n := 1; n <= 3; n++ {
		_, err := svc.RegisterPerson(at(0), service.RegisterRequest{
			PersonID: pid(n), Wallet: wallet(n), Region: models.RegionID(n % 2), ExpiryEpoch: 12,
		})
		require.NoError(t, err)
	}
	_, err = svc.FundTreasury(at(0), wad.Units(150))
	require.NoError(t, err)

	var conversions []*models.PendingConversion
	for e := int64(0); e < 3; e++ {
		for n := 1; n <= 3; n++ {
			_, err := svc.ClaimUBI(at(e), wallet(n))
			require.NoError(t, err)
			c, err := svc.RequestConversion(at(e), wallet(n), service.ConversionRequest{AmountUE: wad.Units(40), MinBUOut: wad.Zero})
			require.NoError(t, err)
			conversions = append(conversions, c)
		}
		_, err = svc.SubmitOracle(at(e), service.OracleSubmission{Region: 1, BasketIndex: wad.Units(100 + e)})
		require.NoError(t, err)
	}

	// Rejected operations leave nothing in the log.
	_, err = svc.ClaimUBI(at(2), wallet(1))
	require.Error(t, err)

	for _, c := range conversions {
		// Some claims starve the treasury; those must not appear either.
		_, _ = svc.ClaimConversion(at(3), string(c.Wallet), c.ID)
	}
	_, err = svc.RotateWallet(at(3), pid(2), wallet(9))
	require.NoError(t, err)
	_, err = svc.GetRateIndex(at(4), 0)
	require.NoError(t, err)

	log, err := events.ListAll(context.Background())
	require.NoError(t, err)
	st, err := replay.Project(log)
	require.NoError(t, err)

	ctx := context.Background()
	for n := 1; n <= 3; n++ {
		id, err := models.ParsePersonID(pid(n))
		require.NoError(t, err)
		want, err := ledger.FindPersonByID(ctx, id)
		require.NoError(t, err)
		got := st.Persons[id]
		assert.Equal(t, want.Wallet, got.Wallet)
		assert.Equal(t, want.LastRotationEpoch, got.LastRotationEpoch)

		wantClaim, err := ledger.GetEpochClaim(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, wantClaim.LastClaimedEpoch, st.EpochClaims[id].LastClaimedEpoch)

		for e := int64(0); e < 3; e++ {
			assert.True(t, st.ClaimedUBI(id, e))
			acc, err := ledger.LockConverted(ctx, id, e)
			require.NoError(t, err)
			assert.True(t, acc.AmountUE.Equal(st.ConvertedIn(id, e)), "accumulator person %d epoch %d", n, e)
		}
	}

	for w, got := range st.Balances {
		want, err := ledger.GetBalances(ctx, w)
		require.NoError(t, err)
		assert.True(t, want.UE.Equal(got.UE), "ue of %s: store %s replay %s", w, want.UE, got.UE)
		assert.True(t, want.BU.Equal(got.BU), "bu of %s: store %s replay %s", w, want.BU, got.BU)
	}

	for _, c := range conversions {
		want, err := ledger.GetConversion(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, want.Status, st.Conversions[c.ID].Status)
	}

	for _, region := range []models.RegionID{0, 1} {
		want, err := ledger.GetRateIndex(ctx, region)
		require.NoError(t, err)
		got := st.RateIndexes[region]
		assert.True(t, want.Value.Equal(got.Value), "region %d value", region)
		assert.True(t, want.DecayRate.Equal(got.DecayRate), "region %d decay", region)
		assert.Equal(t, want.LastRolledEpoch, got.LastRolledEpoch)
	}

	treasury, err := ledger.TreasuryBalance(ctx)
	require.NoError(t, err)
	assert.True(t, treasury.Equal(st.TreasuryBU))
	assert.Equal(t, log[len(log)-1].ID, st.LastEventID)
}

func TestProjectRejectsOutOfOrderLog(t *testing.T) {
	payload, err := json.Marshal(models.TreasuryFundedPayload{AmountBU: wad.Units(1), TreasuryBU: wad.Units(1)})
	require.NoError(t, err)
	e := audit.Event{ID: 2, Type: audit.EventTreasuryFunded, Subject: "treasury", Payload: payload}

	_, err = replay.Project([]audit.Event{e, e})
	require.Error(t, err)
}

func TestProjectRejectsDoubleUBIClaim(t *testing.T) {
	id, err := models.ParsePersonID(pid(1))
	require.NoError(t, err)
	payload, err := json.Marshal(models.UBIClaimedPayload{
		Claim:      models.UBIClaim{Person: id, Epoch: 0, AmountUE: wad.Units(696)},
		EpochClaim: models.EpochClaim{Person: id, LastClaimedEpoch: 0},
		Balances:   models.Balances{Wallet: "0xw1", UE: wad.Units(696), BU: wad.Zero},
	})
	require.NoError(t, err)

	_, err = replay.Project([]audit.Event{
		{ID: 1, Type: audit.EventUBIClaimed, Payload: payload},
		{ID: 2, Type: audit.EventUBIClaimed, Payload: payload},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "second ubi claim")
}

func TestProjectRejectsUnknownType(t *testing.T) {
	_, err := replay.Project([]audit.Event{{ID: 1, Type: "minted_from_thin_air", Payload: json.RawMessage(`{}`)}})
	require.Error(t, err)
}

func TestExportOfEmptyLog(t *testing.T) {
	st, err := replay.Project(nil)
	require.NoError(t, err)

	raw, err := json.Marshal(st.Export())
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"persons": [], "balances": [], "epoch_claims": [], "ubi_claims": [],
		"converted_this_epoch": [], "conversions": [], "rate_indexes": [],
		"oracle_signals": [], "treasury_balance_bu": "0", "last_event_id": 0
	}`, string(raw))
}

func TestExportOrdersByKey(t *testing.T) {
	st := replay.NewState()
	for _, r := range []models.RegionID{3, 1, 2} {
		st.RateIndexes[r] = models.RateIndex{Region: r, Value: wad.One}
	}
	for _, n := range []int{9, 4} {
		id, err := models.ParsePersonID(pid(n))
		require.NoError(t, err)
		st.Persons[id] = models.Person{ID: id, Wallet: models.Wallet(wallet(n))}
	}

	export := st.Export()
	require.Len(t, export.RateIndexes, 3)
	assert.Equal(t, []models.RegionID{1, 2, 3}, []models.RegionID{
		export.RateIndexes[0].Region, export.RateIndexes[1].Region, export.RateIndexes[2].Region,
	})
	require.Len(t, export.Persons, 2)
	assert.Equal(t, models.Wallet(wallet(4)), export.Persons[0].Wallet)
}
