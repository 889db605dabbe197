package service

import (
	"context"

	"twubi/internal/ledger/models"
	"twubi/internal/ledger/wad"
	dErrors "twubi/pkg/domain-errors"
	audit "twubi/pkg/platform/audit"
	"twubi/pkg/requestcontext"
)

// OracleSubmission is a basket index observation for a region.
type OracleSubmission struct {
	Region      models.RegionID
	BasketIndex wad.Amount
}

// DeriveInflation is (current - previous) / previous, or zero on the first
// observation.
func DeriveInflation(previous *models.OracleSignal, basket wad.Amount) (wad.Amount, error) {
	if previous == nil || previous.BasketIndex.IsZero() {
		return wad.Zero, nil
	}
	return wad.DivWad(basket.Sub(previous.BasketIndex), previous.BasketIndex)
}

// SubmitOracle records a basket observation. The region's rate index is
// rolled first so elapsed epochs decay under the signal that was in force
// while they ran.
func (s *Service) SubmitOracle(ctx context.Context, sub OracleSubmission) (*models.OracleSignal, error) {
	if err := validateRegion(sub.Region); err != nil {
		return nil, err
	}
	if !sub.BasketIndex.IsPositive() {
		return nil, models.InvalidAmount("basket_index", "must be positive")
	}
	now := requestcontext.Now(ctx)
	e := s.clock.Current(now)

	var result *models.OracleSignal
	err := s.tx.RunInTx(ctx, func(ctx context.Context, store Store) error {
		ri, _, err := s.rollRateIndex(ctx, store, sub.Region, e)
		if err != nil {
			return err
		}

		previous, err := store.GetOracleSignal(ctx, sub.Region)
		switch {
		case isNotFound(err):
			previous = nil
		case err != nil:
			return storeErr(err, "load oracle signal")
		}
		inflation, err := DeriveInflation(previous, sub.BasketIndex)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to derive inflation")
		}

		signal := &models.OracleSignal{
			Region:        sub.Region,
			BasketIndex:   sub.BasketIndex,
			InflationRate: inflation,
			ObservedAt:    now.UTC(),
		}
		if err := store.SaveOracleSignal(ctx, signal); err != nil {
			return storeErr(err, "save oracle signal")
		}

		result = signal
		return s.emit(ctx, audit.EventOracleSubmitted, regionSubject(sub.Region), models.OracleSubmittedPayload{
			Signal:    *signal,
			RateIndex: *ri,
		})
	})
	if err != nil {
		return nil, s.finish(ctx, "submit_oracle", err)
	}

	s.logger.InfoContext(ctx, "oracle signal recorded",
		"region", sub.Region,
		"inflation_rate", result.InflationRate.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	return result, nil
}

// OracleSignal returns the latest signal for a region.
func (s *Service) OracleSignal(ctx context.Context, region models.RegionID) (*models.OracleSignal, error) {
	if err := validateRegion(region); err != nil {
		return nil, err
	}
	var result *models.OracleSignal
	err := s.tx.RunInTx(ctx, func(ctx context.Context, store Store) error {
		signal, err := store.GetOracleSignal(ctx, region)
		if err != nil {
			if isNotFound(err) {
				return models.NotFound("oracle signal")
			}
			return storeErr(err, "load oracle signal")
		}
		result = signal
		return nil
	})
	if err != nil {
		return nil, s.finish(ctx, "oracle_signal", err)
	}
	return result, nil
}
