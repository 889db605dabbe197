package replay

import (
	"cmp"
	"maps"
	"slices"

	"twubi/internal/ledger/models"
	"twubi/internal/ledger/wad"
)

// Export is a State flattened into ordered lists, suitable for publishing as
// a full snapshot of the ledger.
type Export struct {
	Persons       []models.Person             `json:"persons"`
	Balances      []models.Balances           `json:"balances"`
	EpochClaims   []models.EpochClaim         `json:"epoch_claims"`
	UBIClaims     []models.UBIClaim           `json:"ubi_claims"`
	Converted     []models.ConvertedThisEpoch `json:"converted_this_epoch"`
	Conversions   []models.PendingConversion  `json:"conversions"`
	RateIndexes   []models.RateIndex          `json:"rate_indexes"`
	OracleSignals []models.OracleSignal       `json:"oracle_signals"`
	TreasuryBU    wad.Amount                  `json:"treasury_balance_bu"`
	LastEventID   int64                       `json:"last_event_id"`
}

// Export orders every collection by its key so two exports of the same log
// serialize identically.
func (st *State) Export() *Export {
	return &Export{
		Persons:       sorted(st.Persons, func(a, b models.Person) int { return cmp.Compare(a.ID.String(), b.ID.String()) }),
		Balances:      sorted(st.Balances, func(a, b models.Balances) int { return cmp.Compare(a.Wallet, b.Wallet) }),
		EpochClaims:   sorted(st.EpochClaims, func(a, b models.EpochClaim) int { return cmp.Compare(a.Person.String(), b.Person.String()) }),
		UBIClaims:     sorted(st.UBIClaims, func(a, b models.UBIClaim) int { return byPersonEpoch(a.Person, a.Epoch, b.Person, b.Epoch) }),
		Converted:     sorted(st.Converted, func(a, b models.ConvertedThisEpoch) int { return byPersonEpoch(a.Person, a.Epoch, b.Person, b.Epoch) }),
		Conversions:   sorted(st.Conversions, compareConversions),
		RateIndexes:   sorted(st.RateIndexes, func(a, b models.RateIndex) int { return cmp.Compare(a.Region, b.Region) }),
		OracleSignals: sorted(st.Signals, func(a, b models.OracleSignal) int { return cmp.Compare(a.Region, b.Region) }),
		TreasuryBU:    st.TreasuryBU,
		LastEventID:   st.LastEventID,
	}
}

// sorted returns the values of m ordered by compare, never nil.
func sorted[K comparable, V any](m map[K]V, compare func(a, b V) int) []V {
	out := slices.AppendSeq(make([]V, 0, len(m)), maps.Values(m))
	slices.SortFunc(out, compare)
	return out
}

func byPersonEpoch(pa models.PersonID, ea int64, pb models.PersonID, eb int64) int {
	return cmp.Or(cmp.Compare(pa.String(), pb.String()), cmp.Compare(ea, eb))
}

func compareConversions(a, b models.PendingConversion) int {
	return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID.String(), b.ID.String()))
}
