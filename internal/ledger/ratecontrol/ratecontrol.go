// Package ratecontrol rolls region rate indexes forward and steers their
// decay rate toward a target derived from regional inflation.
//
// Every function is pure: callers load the index, roll it, and persist the
// result inside their own transaction.
package ratecontrol

import (
	"fmt"

	"twubi/internal/ledger/models"
	"twubi/internal/ledger/wad"
)

// Initial is the documented starting state of a region's rate index at epoch e.
func Initial(region models.RegionID, e int64, p models.Params) models.RateIndex {
	return models.RateIndex{
		Region:               region,
		Value:                p.RateIndexStart,
		LastRolledEpoch:      e,
		DecayRate:            p.BaseDecay,
		LastDecayUpdateEpoch: e,
	}
}

// TargetDecay is BASE_DECAY - K*inflation clamped into [MIN_DECAY, MAX_DECAY].
func TargetDecay(inflation wad.Amount, p models.Params) wad.Amount {
	target := p.BaseDecay.Sub(wad.MulWad(p.InflationGain, inflation))
	return wad.Clamp(target, p.MinDecay, p.MaxDecay)
}

// NextDecayRate moves current toward target by at most MAX_DECAY_CHANGE per
// elapsed epoch. The result is clamped into [MIN_DECAY, MAX_DECAY] again so a
// current value seeded outside the bounds is pulled back in.
func NextDecayRate(current, target wad.Amount, elapsed int64, p models.Params) wad.Amount {
	if elapsed < 0 {
		elapsed = 0
	}
	step := p.MaxDecayChange.MulInt(elapsed)
	limited := wad.Clamp(target, current.Sub(step), current.Add(step))
	return wad.Clamp(limited, p.MinDecay, p.MaxDecay)
}

// Roll brings ri current as of epoch e. It returns the rolled index and
// whether anything changed; rolling twice in the same epoch is a no-op.
func Roll(ri models.RateIndex, e int64, inflation wad.Amount, p models.Params) (models.RateIndex, bool, error) {
	if e <= ri.LastRolledEpoch {
		return ri, false, nil
	}

	next := ri
	if e > ri.LastDecayUpdateEpoch {
		target := TargetDecay(inflation, p)
		next.DecayRate = NextDecayRate(ri.DecayRate, target, e-ri.LastDecayUpdateEpoch, p)
		next.LastDecayUpdateEpoch = e
	}

	value, err := wad.ApplyDecay(ri.Value, next.DecayRate, e-ri.LastRolledEpoch)
	if err != nil {
		return ri, false, fmt.Errorf("roll region %d to epoch %d: %w", ri.Region, e, err)
	}
	next.Value = value
	next.LastRolledEpoch = e
	return next, true, nil
}
