package models

import "twubi/internal/ledger/wad"

// Event payloads. Each carries the post-state of every row the transition
// wrote, which is what replay consumes.

type PersonRegisteredPayload struct {
	Person     Person     `json:"person"`
	Balances   Balances   `json:"balances"`
	EpochClaim EpochClaim `json:"epoch_claim"`
	RateIndex  RateIndex  `json:"rate_index"`
}

type WalletRotatedPayload struct {
	Person      Person   `json:"person"`
	OldWallet   Wallet   `json:"old_wallet"`
	OldBalances Balances `json:"old_balances"`
	NewBalances Balances `json:"new_balances"`
}

type UBIClaimedPayload struct {
	Claim      UBIClaim   `json:"claim"`
	EpochClaim EpochClaim `json:"epoch_claim"`
	Balances   Balances   `json:"balances"`
}

type ConversionRequestedPayload struct {
	Conversion PendingConversion  `json:"conversion"`
	Balances   Balances           `json:"balances"`
	Converted  ConvertedThisEpoch `json:"converted_this_epoch"`
	RateIndex  RateIndex          `json:"rate_index"`
}

type ConversionClaimedPayload struct {
	Conversion PendingConversion `json:"conversion"`
	Balances   Balances          `json:"balances"`
	TreasuryBU wad.Amount        `json:"treasury_balance_bu"`
}

type TreasuryFundedPayload struct {
	AmountBU   wad.Amount `json:"amount_bu"`
	TreasuryBU wad.Amount `json:"treasury_balance_bu"`
}

type OracleSubmittedPayload struct {
	Signal    OracleSignal `json:"signal"`
	RateIndex RateIndex    `json:"rate_index"`
}

type RateIndexRolledPayload struct {
	RateIndex RateIndex `json:"rate_index"`
}
