package service

import (
	"context"

	"twubi/internal/ledger/models"
	"twubi/internal/ledger/wad"
	audit "twubi/pkg/platform/audit"
	"twubi/pkg/requestcontext"
)

const treasurySubject = "treasury"

// FundTreasury credits BU to the single treasury reserve.
func (s *Service) FundTreasury(ctx context.Context, amount wad.Amount) (wad.Amount, error) {
	if !amount.IsPositive() {
		return wad.Zero, models.InvalidAmount("amount_bu", "must be positive")
	}
	now := requestcontext.Now(ctx)

	var balance wad.Amount
	err := s.tx.RunInTx(ctx, func(ctx context.Context, store Store) error {
		var err error
		balance, err = store.CreditTreasury(ctx, amount, now.UTC())
		if err != nil {
			return storeErr(err, "credit treasury")
		}
		return s.emit(ctx, audit.EventTreasuryFunded, treasurySubject, models.TreasuryFundedPayload{
			AmountBU:   amount,
			TreasuryBU: balance,
		})
	})
	if err != nil {
		return wad.Zero, s.finish(ctx, "fund_treasury", err)
	}

	s.logger.InfoContext(ctx, "treasury funded",
		"amount_bu", amount.String(),
		"actor_id", requestcontext.ActorID(ctx),
		"request_id", requestcontext.RequestID(ctx),
	)
	return balance, nil
}

// TreasuryBalance returns the current BU reserve.
func (s *Service) TreasuryBalance(ctx context.Context) (wad.Amount, error) {
	var balance wad.Amount
	err := s.tx.RunInTx(ctx, func(ctx context.Context, store Store) error {
		var err error
		balance, err = store.TreasuryBalance(ctx)
		if err != nil {
			return storeErr(err, "load treasury")
		}
		return nil
	})
	if err != nil {
		return wad.Zero, s.finish(ctx, "treasury_balance", err)
	}
	return balance, nil
}
