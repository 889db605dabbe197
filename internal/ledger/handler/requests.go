package handler

import (
	"strings"

	"twubi/internal/ledger/models"
	"twubi/internal/ledger/service"
	"twubi/internal/ledger/wad"
)

// parseAmount reads a decimal string field. An empty optional field is zero.
func parseAmount(field, raw string, required bool) (wad.Amount, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		if required {
			return wad.Zero, models.InvalidRequest(field, "is required")
		}
		return wad.Zero, nil
	}
	a, err := wad.Parse(raw)
	if err != nil {
		return wad.Zero, models.MalformedAmount(field, err)
	}
	return a, nil
}

// RegisterRequest is the body of POST /api/users/register.
type RegisterRequest struct {
	PersonID    string `json:"person_id"`
	Wallet      string `json:"wallet"`
	Region      int64  `json:"region"`
	ExpiryEpoch int64  `json:"expiry_epoch"`
}

func (r *RegisterRequest) Validate() error {
	r.PersonID = strings.TrimSpace(r.PersonID)
	if r.PersonID == "" {
		return models.InvalidRequest("person_id", "is required")
	}
	r.Wallet = strings.TrimSpace(r.Wallet)
	if r.Wallet == "" {
		return models.InvalidRequest("wallet", "is required")
	}
	return nil
}

func (r *RegisterRequest) toService() service.RegisterRequest {
	return service.RegisterRequest{
		PersonID:    r.PersonID,
		Wallet:      r.Wallet,
		Region:      models.RegionID(r.Region),
		ExpiryEpoch: r.ExpiryEpoch,
	}
}

// ConversionRequest is the body of POST /api/conversions. Amounts are
// WAD-scaled decimal strings.
type ConversionRequest struct {
	AmountUE string `json:"amount_ue"`
	MinBUOut string `json:"min_bu_out"`

	parsed service.ConversionRequest
}

func (r *ConversionRequest) Validate() error {
	amount, err := parseAmount("amount_ue", r.AmountUE, true)
	if err != nil {
		return err
	}
	minOut, err := parseAmount("min_bu_out", r.MinBUOut, false)
	if err != nil {
		return err
	}
	r.parsed = service.ConversionRequest{AmountUE: amount, MinBUOut: minOut}
	return nil
}

// OracleRequest is the body of POST /api/oracle/submit.
type OracleRequest struct {
	Region      int64  `json:"region"`
	BasketIndex string `json:"basket_index"`

	parsed service.OracleSubmission
}

func (r *OracleRequest) Validate() error {
	basket, err := parseAmount("basket_index", r.BasketIndex, true)
	if err != nil {
		return err
	}
	r.parsed = service.OracleSubmission{Region: models.RegionID(r.Region), BasketIndex: basket}
	return nil
}

// FundTreasuryRequest is the body of POST /api/admin/treasury/fund.
type FundTreasuryRequest struct {
	AmountBU string `json:"amount_bu"`

	parsed wad.Amount
}

func (r *FundTreasuryRequest) Validate() error {
	amount, err := parseAmount("amount_bu", r.AmountBU, true)
	if err != nil {
		return err
	}
	r.parsed = amount
	return nil
}

// RotateWalletRequest is the body of POST /api/admin/wallets/rotate. The
// identity adapter calls it after verifying the one-time code.
type RotateWalletRequest struct {
	PersonID  string `json:"person_id"`
	NewWallet string `json:"new_wallet"`
}

func (r *RotateWalletRequest) Validate() error {
	r.PersonID = strings.TrimSpace(r.PersonID)
	if r.PersonID == "" {
		return models.InvalidRequest("person_id", "is required")
	}
	r.NewWallet = strings.TrimSpace(r.NewWallet)
	if r.NewWallet == "" {
		return models.InvalidRequest("new_wallet", "is required")
	}
	return nil
}
