package models

import (
	"time"

	"twubi/internal/ledger/wad"
)

// ConversionStatus is the lifecycle state of a pending conversion.
type ConversionStatus string

const (
	ConversionPending  ConversionStatus = "pending"
	ConversionUnlocked ConversionStatus = "unlocked"
	ConversionClaimed  ConversionStatus = "claimed"
)

func (s ConversionStatus) String() string { return string(s) }

func (s ConversionStatus) IsValid() bool {
	switch s {
	case ConversionPending, ConversionUnlocked, ConversionClaimed:
		return true
	}
	return false
}

// PendingConversion is a locked claim on future BU.
//
// Lifecycle: pending -> unlocked -> claimed. The move to unlocked requires
// epoch >= UnlockEpoch; claimed is terminal.
type PendingConversion struct {
	ID                 ConversionID     `json:"id"`
	Person             PersonID         `json:"person_id"`
	Wallet             Wallet           `json:"wallet"`
	Region             RegionID         `json:"region"`
	AmountUE           wad.Amount       `json:"amount_ue"`
	FeeUE              wad.Amount       `json:"fee_ue"`
	AmountBU           wad.Amount       `json:"amount_bu"`
	RateIndexAtRequest wad.Amount       `json:"rate_index_at_request"`
	RequestEpoch       int64            `json:"request_epoch"`
	UnlockEpoch        int64            `json:"unlock_epoch"`
	Status             ConversionStatus `json:"status"`
	CreatedAt          time.Time        `json:"created_at"`
	ClaimedAt          *time.Time       `json:"claimed_at,omitempty"`
}

// EffectiveStatus is the status as observed at epoch e, without mutating.
func (c *PendingConversion) EffectiveStatus(e int64) ConversionStatus {
	if c.Status == ConversionPending && e >= c.UnlockEpoch {
		return ConversionUnlocked
	}
	return c.Status
}

// Unlock moves a pending conversion to unlocked once its unlock epoch is reached.
// Calling it on an unlocked conversion is a no-op.
func (c *PendingConversion) Unlock(e int64) error {
	switch c.Status {
	case ConversionClaimed:
		return ConversionAlreadyClaimed(c.ID)
	case ConversionUnlocked:
		return nil
	}
	if e < c.UnlockEpoch {
		return NotYetUnlocked(c.UnlockEpoch)
	}
	c.Status = ConversionUnlocked
	return nil
}

// Claim unlocks if necessary and marks the conversion claimed.
func (c *PendingConversion) Claim(e int64, now time.Time) error {
	if err := c.Unlock(e); err != nil {
		return err
	}
	c.Status = ConversionClaimed
	c.ClaimedAt = &now
	return nil
}
