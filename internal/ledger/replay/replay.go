// Package replay rebuilds ledger state from the event log. Every event carries
// the post-state of the rows its transition wrote, so projection is a fold of
// last-writer-wins assignments in log order.
package replay

import (
	"fmt"

	"twubi/internal/ledger/models"
	"twubi/internal/ledger/wad"
	audit "twubi/pkg/platform/audit"
)

type claimKey struct {
	Person models.PersonID
	Epoch  int64
}

// State is the ledger as reconstructed from events.
type State struct {
	Persons     map[models.PersonID]models.Person
	Balances    map[models.Wallet]models.Balances
	EpochClaims map[models.PersonID]models.EpochClaim
	UBIClaims   map[claimKey]models.UBIClaim
	Converted   map[claimKey]models.ConvertedThisEpoch
	Conversions map[models.ConversionID]models.PendingConversion
	RateIndexes map[models.RegionID]models.RateIndex
	Signals     map[models.RegionID]models.OracleSignal
	TreasuryBU  wad.Amount
	LastEventID int64
}

// NewState returns an empty State to fold events into with Apply.
func NewState() *State {
	return &State{
		Persons:     make(map[models.PersonID]models.Person),
		Balances:    make(map[models.Wallet]models.Balances),
		EpochClaims: make(map[models.PersonID]models.EpochClaim),
		UBIClaims:   make(map[claimKey]models.UBIClaim),
		Converted:   make(map[claimKey]models.ConvertedThisEpoch),
		Conversions: make(map[models.ConversionID]models.PendingConversion),
		RateIndexes: make(map[models.RegionID]models.RateIndex),
		Signals:     make(map[models.RegionID]models.OracleSignal),
		TreasuryBU:  wad.Zero,
	}
}

// Project folds events into a fresh State. Events must be in log order.
func Project(events []audit.Event) (*State, error) {
	st := NewState()
	for _, e := range events {
		if err := st.Apply(e); err != nil {
			return nil, err
		}
	}
	return st, nil
}

// ClaimedUBI reports whether person has a UBI claim recorded for epoch.
func (st *State) ClaimedUBI(person models.PersonID, epoch int64) bool {
	_, ok := st.UBIClaims[claimKey{person, epoch}]
	return ok
}

// ConvertedIn returns the per-epoch conversion accumulator for person.
func (st *State) ConvertedIn(person models.PersonID, epoch int64) wad.Amount {
	if c, ok := st.Converted[claimKey{person, epoch}]; ok {
		return c.AmountUE
	}
	return wad.Zero
}

// Apply folds a single event into the state.
func (st *State) Apply(e audit.Event) error {
	if e.ID <= st.LastEventID {
		return fmt.Errorf("event %d out of order after %d", e.ID, st.LastEventID)
	}

	var err error
	switch e.Type {
	case audit.EventPersonRegistered:
		var p models.PersonRegisteredPayload
		if err = e.Decode(&p); err == nil {
			st.Persons[p.Person.ID] = p.Person
			st.Balances[p.Balances.Wallet] = p.Balances
			st.EpochClaims[p.EpochClaim.Person] = p.EpochClaim
			st.RateIndexes[p.RateIndex.Region] = p.RateIndex
		}
	case audit.EventWalletRotated:
		var p models.WalletRotatedPayload
		if err = e.Decode(&p); err == nil {
			st.Persons[p.Person.ID] = p.Person
			st.Balances[p.OldBalances.Wallet] = p.OldBalances
			st.Balances[p.NewBalances.Wallet] = p.NewBalances
		}
	case audit.EventUBIClaimed:
		var p models.UBIClaimedPayload
		if err = e.Decode(&p); err == nil {
			k := claimKey{p.Claim.Person, p.Claim.Epoch}
			if _, dup := st.UBIClaims[k]; dup {
				return fmt.Errorf("event %d: second ubi claim for %s in epoch %d", e.ID, p.Claim.Person, p.Claim.Epoch)
			}
			st.UBIClaims[k] = p.Claim
			st.EpochClaims[p.EpochClaim.Person] = p.EpochClaim
			st.Balances[p.Balances.Wallet] = p.Balances
		}
	case audit.EventConversionRequested:
		var p models.ConversionRequestedPayload
		if err = e.Decode(&p); err == nil {
			st.Conversions[p.Conversion.ID] = p.Conversion
			st.Balances[p.Balances.Wallet] = p.Balances
			st.Converted[claimKey{p.Converted.Person, p.Converted.Epoch}] = p.Converted
			st.RateIndexes[p.RateIndex.Region] = p.RateIndex
		}
	case audit.EventConversionClaimed:
		var p models.ConversionClaimedPayload
		if err = e.Decode(&p); err == nil {
			if prev, ok := st.Conversions[p.Conversion.ID]; ok && prev.Status == models.ConversionClaimed {
				return fmt.Errorf("event %d: conversion %s claimed twice", e.ID, p.Conversion.ID)
			}
			st.Conversions[p.Conversion.ID] = p.Conversion
			st.Balances[p.Balances.Wallet] = p.Balances
			st.TreasuryBU = p.TreasuryBU
		}
	case audit.EventTreasuryFunded:
		var p models.TreasuryFundedPayload
		if err = e.Decode(&p); err == nil {
			st.TreasuryBU = p.TreasuryBU
		}
	case audit.EventOracleSubmitted:
		var p models.OracleSubmittedPayload
		if err = e.Decode(&p); err == nil {
			st.Signals[p.Signal.Region] = p.Signal
			st.RateIndexes[p.RateIndex.Region] = p.RateIndex
		}
	case audit.EventRateIndexRolled:
		var p models.RateIndexRolledPayload
		if err = e.Decode(&p); err == nil {
			st.RateIndexes[p.RateIndex.Region] = p.RateIndex
		}
	default:
		return fmt.Errorf("event %d: unknown type %q", e.ID, e.Type)
	}
	if err != nil {
		return fmt.Errorf("event %d (%s): decode payload: %w", e.ID, e.Type, err)
	}
	st.LastEventID = e.ID
	return nil
}
