// Package epoch maps wall-clock time onto fixed-length ledger epochs.
package epoch

import (
	"time"
)

// Length is the duration of one epoch.
const Length = 30 * 24 * time.Hour

// Clock converts instants into epoch numbers relative to a genesis time.
type Clock struct {
	Genesis time.Time
	Length  time.Duration
}

// NewClock returns a Clock with the standard epoch length.
func NewClock(genesis time.Time) Clock {
	return Clock{Genesis: genesis.UTC(), Length: Length}
}

func (c Clock) length() time.Duration {
	if c.Length <= 0 {
		return Length
	}
	return c.Length
}

// Current returns floor((now - genesis) / length). Instants before genesis
// map to epoch 0.
func (c Clock) Current(now time.Time) int64 {
	if now.Before(c.Genesis) {
		return 0
	}
	return int64(now.Sub(c.Genesis) / c.length())
}

// Start returns the first instant of epoch e.
func (c Clock) Start(e int64) time.Time {
	return c.Genesis.Add(time.Duration(e) * c.length())
}

// End returns the first instant after epoch e.
func (c Clock) End(e int64) time.Time {
	return c.Start(e + 1)
}

// Remaining returns how long until the epoch containing now ends.
func (c Clock) Remaining(now time.Time) time.Duration {
	return c.End(c.Current(now)).Sub(now)
}
