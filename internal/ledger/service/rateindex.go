package service

import (
	"context"
	"fmt"

	"twubi/internal/ledger/models"
	"twubi/internal/ledger/ratecontrol"
	"twubi/internal/ledger/wad"
	dErrors "twubi/pkg/domain-errors"
	audit "twubi/pkg/platform/audit"
	"twubi/pkg/requestcontext"
)

func validateRegion(region models.RegionID) error {
	if region < 0 {
		return models.InvalidRequest("region", "must not be negative")
	}
	return nil
}

// getOrInitRateIndex locks the region's rate index, creating the documented
// initial state (value 1.0, BASE_DECAY, rolled at e) when none exists.
func (s *Service) getOrInitRateIndex(ctx context.Context, store Store, region models.RegionID, e int64) (*models.RateIndex, bool, error) {
	initial := ratecontrol.Initial(region, e, s.params)
	created, err := store.InitRateIndexIfAbsent(ctx, &initial)
	if err != nil {
		return nil, false, storeErr(err, "initialize rate index")
	}
	ri, err := store.GetRateIndex(ctx, region)
	if err != nil {
		if isNotFound(err) {
			return nil, false, models.RateIndexNotInitialized(region)
		}
		return nil, false, storeErr(err, "load rate index")
	}
	return ri, created, nil
}

// rollLocked brings an already locked index current as of e and persists it.
func (s *Service) rollLocked(ctx context.Context, store Store, ri *models.RateIndex, e int64) (*models.RateIndex, bool, error) {
	inflation := wad.Zero
	signal, err := store.GetOracleSignal(ctx, ri.Region)
	switch {
	case err == nil:
		inflation = signal.InflationRate
	case !isNotFound(err):
		return nil, false, storeErr(err, "load oracle signal")
	}

	rolled, changed, err := ratecontrol.Roll(*ri, e, inflation, s.params)
	if err != nil {
		return nil, false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to roll rate index")
	}
	if changed {
		if err := store.SaveRateIndex(ctx, &rolled); err != nil {
			return nil, false, storeErr(err, "save rate index")
		}
	}
	if !rolled.Value.IsPositive() {
		return nil, false, models.RateIndexNotInitialized(ri.Region)
	}
	s.observeRateIndex(&rolled)
	return &rolled, changed, nil
}

// rollRateIndex is get-or-initialize followed by a roll to e.
func (s *Service) rollRateIndex(ctx context.Context, store Store, region models.RegionID, e int64) (*models.RateIndex, bool, error) {
	ri, created, err := s.getOrInitRateIndex(ctx, store, region, e)
	if err != nil {
		return nil, false, err
	}
	rolled, changed, err := s.rollLocked(ctx, store, ri, e)
	if err != nil {
		return nil, false, err
	}
	return rolled, created || changed, nil
}

// GetOrInitRateIndex returns the region's rolled rate index, creating it
// in its initial state if the region has never been referenced.
func (s *Service) GetOrInitRateIndex(ctx context.Context, region models.RegionID) (*models.RateIndex, error) {
	if err := validateRegion(region); err != nil {
		return nil, err
	}
	e := s.CurrentEpoch(ctx)

	var result *models.RateIndex
	err := s.tx.RunInTx(ctx, func(ctx context.Context, store Store) error {
		ri, changed, err := s.rollRateIndex(ctx, store, region, e)
		if err != nil {
			return err
		}
		if changed {
			if err := s.emit(ctx, audit.EventRateIndexRolled, regionSubject(region), models.RateIndexRolledPayload{RateIndex: *ri}); err != nil {
				return err
			}
		}
		result = ri
		return nil
	})
	if err != nil {
		return nil, s.finish(ctx, "get_or_init_rate_index", err)
	}
	s.cacheRateIndex(ctx, result)
	return result, nil
}

// GetRateIndex rolls a known region's rate index to the current epoch and
// returns it. Unknown regions report NotFound rather than materializing.
func (s *Service) GetRateIndex(ctx context.Context, region models.RegionID) (*models.RateIndex, error) {
	if err := validateRegion(region); err != nil {
		return nil, err
	}
	e := s.CurrentEpoch(ctx)

	if s.cache != nil {
		if ri, ok := s.cache.Get(ctx, region, e); ok {
			if s.metrics != nil {
				s.metrics.IncrementCacheHit()
			}
			return ri, nil
		}
		if s.metrics != nil {
			s.metrics.IncrementCacheMiss()
		}
	}

	var result *models.RateIndex
	err := s.tx.RunInTx(ctx, func(ctx context.Context, store Store) error {
		ri, err := store.GetRateIndex(ctx, region)
		if err != nil {
			if isNotFound(err) {
				return models.NotFound(fmt.Sprintf("rate index for region %d", region))
			}
			return storeErr(err, "load rate index")
		}
		rolled, changed, err := s.rollLocked(ctx, store, ri, e)
		if err != nil {
			return err
		}
		if changed {
			if err := s.emit(ctx, audit.EventRateIndexRolled, regionSubject(region), models.RateIndexRolledPayload{RateIndex: *rolled}); err != nil {
				return err
			}
		}
		result = rolled
		return nil
	})
	if err != nil {
		return nil, s.finish(ctx, "get_rate_index", err)
	}
	s.cacheRateIndex(ctx, result)
	return result, nil
}

func (s *Service) cacheRateIndex(ctx context.Context, ri *models.RateIndex) {
	if s.cache == nil || ri == nil {
		return
	}
	now := requestcontext.Now(ctx)
	if s.clock.Current(now) != ri.LastRolledEpoch {
		return
	}
	s.cache.Set(ctx, ri, s.clock.Remaining(now))
}

func (s *Service) observeRateIndex(ri *models.RateIndex) {
	if s.metrics == nil {
		return
	}
	s.metrics.ObserveRateIndex(int64(ri.Region), ri.Value.Decimal().Shift(-wad.Decimals).InexactFloat64(),
		ri.DecayRate.Decimal().Shift(-wad.Decimals).InexactFloat64())
}

func regionSubject(region models.RegionID) string {
	return fmt.Sprintf("region:%d", region)
}
