// Package models holds the ledger's entities, protocol parameters and the
// closed set of failures ledger operations can report.
package models

import (
	"time"

	"twubi/internal/ledger/wad"
)

// NeverClaimed is the claim cursor of a person who has not claimed UBI yet.
const NeverClaimed int64 = -1

// NoRotation marks a person whose wallet was never rotated.
const NoRotation int64 = -1

// Person is a registered unit of entitlement.
//
// Invariants:
//   - exactly one wallet is bound at a time
//   - the wallet is an attribute; ID is the identity
type Person struct {
	ID                PersonID  `json:"person_id"`
	Wallet            Wallet    `json:"wallet"`
	Region            RegionID  `json:"region"`
	ExpiryEpoch       int64     `json:"expiry_epoch"`
	RegisteredEpoch   int64     `json:"registered_epoch"`
	LastRotationEpoch int64     `json:"last_rotation_epoch"`
	Active            bool      `json:"active"`
	CreatedAt         time.Time `json:"created_at"`
}

// CanClaimAt reports whether the registration is active and unexpired at epoch e.
func (p *Person) CanClaimAt(e int64) error {
	if !p.Active {
		return WalletNotActive(p.Wallet)
	}
	if e > p.ExpiryEpoch {
		return RegistrationExpired(p.ExpiryEpoch)
	}
	return nil
}

// RateIndex is a region's decaying UE->BU multiplier.
type RateIndex struct {
	Region               RegionID   `json:"region"`
	Value                wad.Amount `json:"value"`
	LastRolledEpoch      int64      `json:"last_rolled_epoch"`
	DecayRate            wad.Amount `json:"decay_rate"`
	LastDecayUpdateEpoch int64      `json:"last_decay_update_epoch"`
}

// OracleSignal is the latest basket observation for a region.
type OracleSignal struct {
	Region        RegionID   `json:"region"`
	BasketIndex   wad.Amount `json:"basket_index"`
	InflationRate wad.Amount `json:"inflation_rate"`
	ObservedAt    time.Time  `json:"observed_at"`
}

// EpochClaim is a person's UBI claim cursor.
type EpochClaim struct {
	Person           PersonID `json:"person_id"`
	Region           RegionID `json:"region"`
	LastClaimedEpoch int64    `json:"last_claimed_epoch"`
}

// HasClaimed reports whether the cursor already covers epoch e.
func (c *EpochClaim) HasClaimed(e int64) bool {
	return c.LastClaimedEpoch != NeverClaimed && c.LastClaimedEpoch >= e
}

// UBIClaim records one successful UBI claim.
type UBIClaim struct {
	Person    PersonID   `json:"person_id"`
	Wallet    Wallet     `json:"wallet"`
	Epoch     int64      `json:"epoch"`
	AmountUE  wad.Amount `json:"amount_ue"`
	BalanceUE wad.Amount `json:"balance_ue"`
	ClaimedAt time.Time  `json:"claimed_at"`
}

// ConvertedThisEpoch accumulates requested UE per person per epoch.
type ConvertedThisEpoch struct {
	Person   PersonID   `json:"person_id"`
	Epoch    int64      `json:"epoch"`
	AmountUE wad.Amount `json:"amount_ue"`
}

// ConversionClaim is the result of claiming an unlocked conversion.
type ConversionClaim struct {
	Conversion      *PendingConversion `json:"conversion"`
	BalanceBU       wad.Amount         `json:"balance_bu"`
	TreasuryBalance wad.Amount         `json:"treasury_balance_bu"`
}

// Balances are a wallet's UE and BU holdings.
type Balances struct {
	Wallet Wallet     `json:"wallet"`
	UE     wad.Amount `json:"ue"`
	BU     wad.Amount `json:"bu"`
}

// Treasury is the single BU reserve.
type Treasury struct {
	BalanceBU wad.Amount `json:"balance_bu"`
	UpdatedAt time.Time  `json:"updated_at"`
}
