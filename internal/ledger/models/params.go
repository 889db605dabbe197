package models

import (
	"fmt"

	"twubi/internal/ledger/wad"
)

// Params are the protocol constants every ledger operation runs against.
// They are fixed at construction and never re-read while serving a request.
type Params struct {
	UEMintPerEpoch        wad.Amount
	RateIndexStart        wad.Amount
	BaseDecay             wad.Amount
	MinDecay              wad.Amount
	MaxDecay              wad.Amount
	MaxDecayChange        wad.Amount
	InflationGain         wad.Amount
	ConversionDelayEpochs int64
	ConversionFeeBPS      int64
	ConversionCapUE       wad.Amount
}

// DefaultParams returns the production protocol constants.
func DefaultParams() Params {
	return Params{
		UEMintPerEpoch:        wad.Units(696),
		RateIndexStart:        wad.One,
		BaseDecay:             wad.MustParse("10000000000000000"),
		MinDecay:              wad.MustParse("5000000000000000"),
		MaxDecay:              wad.MustParse("20000000000000000"),
		MaxDecayChange:        wad.MustParse("1000000000000000"),
		InflationGain:         wad.MustParse("500000000000000000"),
		ConversionDelayEpochs: 1,
		ConversionFeeBPS:      50,
		ConversionCapUE:       wad.Units(1000),
	}
}

// Validate rejects parameter sets that would break the controller bounds.
func (p Params) Validate() error {
	switch {
	case !p.UEMintPerEpoch.IsPositive():
		return fmt.Errorf("ue mint per epoch must be positive")
	case !p.RateIndexStart.IsPositive():
		return fmt.Errorf("rate index start must be positive")
	case !p.MinDecay.IsPositive():
		return fmt.Errorf("min decay must be positive")
	case p.MinDecay.GreaterThan(p.MaxDecay):
		return fmt.Errorf("min decay %s exceeds max decay %s", p.MinDecay, p.MaxDecay)
	case p.MaxDecay.GreaterThan(wad.One):
		return fmt.Errorf("max decay must not exceed 1.0")
	case !p.BaseDecay.Within(p.MinDecay, p.MaxDecay):
		return fmt.Errorf("base decay %s outside [%s, %s]", p.BaseDecay, p.MinDecay, p.MaxDecay)
	case p.MaxDecayChange.IsNegative():
		return fmt.Errorf("max decay change must not be negative")
	case p.ConversionDelayEpochs < 0:
		return fmt.Errorf("conversion delay must not be negative")
	case p.ConversionFeeBPS < 0 || p.ConversionFeeBPS > 10000:
		return fmt.Errorf("conversion fee %d bps outside [0, 10000]", p.ConversionFeeBPS)
	case !p.ConversionCapUE.IsPositive():
		return fmt.Errorf("conversion cap must be positive")
	}
	return nil
}
