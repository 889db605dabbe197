package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"twubi/internal/ledger/models"
	"twubi/internal/ledger/wad"
	audit "twubi/pkg/platform/audit"
	"twubi/pkg/platform/sentinel"
	"twubi/pkg/requestcontext"
)

// ConversionRequest is a typed UE->BU conversion intent.
type ConversionRequest struct {
	AmountUE wad.Amount
	MinBUOut wad.Amount
}

// Quote is the outcome of pricing a conversion against a rate index.
type Quote struct {
	FeeUE         wad.Amount
	AfterFeeUE    wad.Amount
	AmountBU      wad.Amount
	RateIndex     wad.Amount
	ConversionFee int64
}

// QuoteConversion prices amount at rate: fee = amount*bps/10000 and
// bu = mulWad(amount - fee, rate).
func QuoteConversion(amount, rate wad.Amount, p models.Params) Quote {
	fee := wad.MulWad(amount, wad.BPS(p.ConversionFeeBPS))
	after := amount.Sub(fee)
	return Quote{
		FeeUE:         fee,
		AfterFeeUE:    after,
		AmountBU:      wad.MulWad(after, rate),
		RateIndex:     rate,
		ConversionFee: p.ConversionFeeBPS,
	}
}

// RequestConversion burns UE from the caller's wallet and creates a pending
// conversion that unlocks CONVERSION_DELAY_EPOCHS later.
func (s *Service) RequestConversion(ctx context.Context, wallet string, req ConversionRequest) (*models.PendingConversion, error) {
	if !req.AmountUE.IsPositive() {
		return nil, models.InvalidAmount("amount_ue", "must be positive")
	}
	if req.MinBUOut.IsNegative() {
		return nil, models.InvalidAmount("min_bu_out", "must not be negative")
	}
	now := requestcontext.Now(ctx)
	e := s.clock.Current(now)

	var result *models.PendingConversion
	err := s.tx.RunInTx(ctx, func(ctx context.Context, store Store) error {
		person, err := s.personByWallet(ctx, store, wallet)
		if err != nil {
			return err
		}

		converted, err := store.LockConverted(ctx, person.ID, e)
		if err != nil {
			return storeErr(err, "load conversion accumulator")
		}
		total := converted.AmountUE.Add(req.AmountUE)
		if total.GreaterThan(s.params.ConversionCapUE) {
			remaining := wad.Max(wad.Zero, s.params.ConversionCapUE.Sub(converted.AmountUE))
			return models.ConversionCapExceeded(req.AmountUE, remaining)
		}

		balances, err := loadBalances(ctx, store, person.Wallet)
		if err != nil {
			return err
		}
		if balances.UE.LessThan(req.AmountUE) {
			return models.InsufficientBalance(req.AmountUE, balances.UE)
		}

		ri, _, err := s.rollRateIndex(ctx, store, person.Region, e)
		if err != nil {
			return err
		}
		quote := QuoteConversion(req.AmountUE, ri.Value, s.params)
		if quote.AmountBU.LessThan(req.MinBUOut) {
			return models.SlippageTooHigh(req.MinBUOut, quote.AmountBU)
		}

		balances.UE = balances.UE.Sub(req.AmountUE)
		if err := store.SaveBalances(ctx, balances); err != nil {
			return storeErr(err, "debit ue balance")
		}

		conversion := &models.PendingConversion{
			ID:                 uuid.New(),
			Person:             person.ID,
			Wallet:             person.Wallet,
			Region:             person.Region,
			AmountUE:           req.AmountUE,
			FeeUE:              quote.FeeUE,
			AmountBU:           quote.AmountBU,
			RateIndexAtRequest: ri.Value,
			RequestEpoch:       e,
			UnlockEpoch:        e + s.params.ConversionDelayEpochs,
			Status:             models.ConversionPending,
			CreatedAt:          now.UTC(),
		}
		if err := store.InsertConversion(ctx, conversion); err != nil {
			return storeErr(err, "insert conversion")
		}

		converted.AmountUE = total
		if err := store.SaveConverted(ctx, converted); err != nil {
			return storeErr(err, "update conversion accumulator")
		}

		result = conversion
		return s.emit(ctx, audit.EventConversionRequested, person.ID.String(), models.ConversionRequestedPayload{
			Conversion: *conversion,
			Balances:   *balances,
			Converted:  *converted,
			RateIndex:  *ri,
		})
	})
	if err != nil {
		return nil, s.finish(ctx, "request_conversion", err)
	}

	if s.metrics != nil {
		s.metrics.IncrementConversionsRequested()
	}
	s.logger.InfoContext(ctx, "conversion requested",
		"conversion_id", result.ID.String(),
		"person_id", result.Person.String(),
		"unlock_epoch", result.UnlockEpoch,
		"request_id", requestcontext.RequestID(ctx),
	)
	return result, nil
}

// ClaimConversion moves an unlocked conversion's BU from the treasury into
// the caller's wallet.
func (s *Service) ClaimConversion(ctx context.Context, wallet string, id models.ConversionID) (*models.ConversionClaim, error) {
	now := requestcontext.Now(ctx)
	e := s.clock.Current(now)

	var result *models.ConversionClaim
	err := s.tx.RunInTx(ctx, func(ctx context.Context, store Store) error {
		person, err := s.personByWallet(ctx, store, wallet)
		if err != nil {
			return err
		}

		conversion, err := store.GetConversion(ctx, id)
		if err != nil {
			if isNotFound(err) {
				return models.NotFound("conversion")
			}
			return storeErr(err, "load conversion")
		}
		if conversion.Person != person.ID {
			return models.NotFound("conversion")
		}
		if err := conversion.Claim(e, now.UTC()); err != nil {
			return err
		}

		treasury, err := store.DebitTreasury(ctx, conversion.AmountBU, now.UTC())
		if err != nil {
			if errors.Is(err, sentinel.ErrInsufficientFunds) {
				return models.TreasuryInsufficient(conversion.AmountBU)
			}
			return storeErr(err, "debit treasury")
		}

		balances, err := loadBalances(ctx, store, person.Wallet)
		if err != nil {
			return err
		}
		balances.BU = balances.BU.Add(conversion.AmountBU)
		if err := store.SaveBalances(ctx, balances); err != nil {
			return storeErr(err, "credit bu balance")
		}
		if err := store.UpdateConversion(ctx, conversion); err != nil {
			return storeErr(err, "update conversion")
		}

		result = &models.ConversionClaim{
			Conversion:      conversion,
			BalanceBU:       balances.BU,
			TreasuryBalance: treasury,
		}
		return s.emit(ctx, audit.EventConversionClaimed, person.ID.String(), models.ConversionClaimedPayload{
			Conversion: *conversion,
			Balances:   *balances,
			TreasuryBU: treasury,
		})
	})
	if err != nil {
		return nil, s.finish(ctx, "claim_conversion", err)
	}

	if s.metrics != nil {
		s.metrics.IncrementConversionsClaimed()
	}
	s.logger.InfoContext(ctx, "conversion claimed",
		"conversion_id", id.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	return result, nil
}
