// Package wad implements 18-decimal fixed-point amounts.
//
// An Amount is a WAD-scaled number: 1.0 is represented as 10^18. Values are
// backed by arbitrary-precision decimals; binary floating point is never used.
// Arithmetic keeps Scale fractional digits of the scaled number and truncates
// toward zero beyond that, so long compounding sequences stay deterministic.
package wad

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"regexp"

	"github.com/shopspring/decimal"
)

const (
	// Decimals is the exponent of the WAD scaling factor.
	Decimals = 18
	// Scale is the number of fractional digits kept on the scaled value.
	Scale int32 = 18
)

var (
	// ErrMalformedAmount reports an amount string that is not a plain decimal.
	ErrMalformedAmount = errors.New("malformed amount")
	// ErrDivisionByZero reports DivWad with a zero divisor.
	ErrDivisionByZero = errors.New("division by zero")
	// ErrInvalidDecay reports a decay rate outside [0, W] or a negative epoch count.
	ErrInvalidDecay = errors.New("invalid decay input")

	plainDecimal = regexp.MustCompile(`^-?[0-9]+(\.[0-9]+)?$`)

	w = decimal.New(1, Decimals)
)

// Amount is a WAD-scaled decimal value. The zero value is 0.
type Amount struct {
	d decimal.Decimal
}

// Zero is the additive identity.
var Zero = Amount{}

// One is 1.0 in WAD (10^18).
var One = Amount{d: w}

// Parse reads a plain decimal string ("123", "-4.5"). Exponent notation,
// whitespace and empty strings are rejected.
func Parse(s string) (Amount, error) {
	if !plainDecimal.MatchString(s) {
		return Amount{}, fmt.Errorf("%w: %q", ErrMalformedAmount, s)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("%w: %q", ErrMalformedAmount, s)
	}
	return Amount{d: d}, nil
}

// MustParse is Parse for compile-time constants.
func MustParse(s string) Amount {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

// FromInt64 returns the raw scaled value v (not v * W).
func FromInt64(v int64) Amount {
	return Amount{d: decimal.NewFromInt(v)}
}

// Units returns n whole units, i.e. n * W.
func Units(n int64) Amount {
	return Amount{d: decimal.New(n, Decimals)}
}

// BPS returns bps basis points as a WAD fraction (bps / 10000 * W).
func BPS(bps int64) Amount {
	return Amount{d: decimal.New(bps, Decimals-4)}
}

func (a Amount) String() string { return a.d.String() }

// Decimal exposes the underlying value for boundary code.
func (a Amount) Decimal() decimal.Decimal { return a.d }

func (a Amount) Add(b Amount) Amount { return Amount{d: a.d.Add(b.d)} }
func (a Amount) Sub(b Amount) Amount { return Amount{d: a.d.Sub(b.d)} }

// MulInt multiplies by a plain integer factor.
func (a Amount) MulInt(n int64) Amount {
	return Amount{d: a.d.Mul(decimal.NewFromInt(n))}
}

func (a Amount) Cmp(b Amount) int          { return a.d.Cmp(b.d) }
func (a Amount) Equal(b Amount) bool       { return a.d.Equal(b.d) }
func (a Amount) LessThan(b Amount) bool    { return a.d.LessThan(b.d) }
func (a Amount) GreaterThan(b Amount) bool { return a.d.GreaterThan(b.d) }
func (a Amount) IsZero() bool              { return a.d.IsZero() }
func (a Amount) IsNegative() bool          { return a.d.IsNegative() }
func (a Amount) IsPositive() bool          { return a.d.IsPositive() }

// Within reports lo <= a <= hi.
func (a Amount) Within(lo, hi Amount) bool {
	return a.Cmp(lo) >= 0 && a.Cmp(hi) <= 0
}

// Min returns the smaller of a and b.
func Min(a, b Amount) Amount {
	if a.Cmp(b) <= 0 {
		return a
	}
	return b
}

// Max returns the larger of a and b.
func Max(a, b Amount) Amount {
	if a.Cmp(b) >= 0 {
		return a
	}
	return b
}

// Clamp bounds v into [lo, hi].
func Clamp(v, lo, hi Amount) Amount {
	return Max(lo, Min(v, hi))
}

// MulWad computes (a * b) / W.
func MulWad(a, b Amount) Amount {
	return Amount{d: a.d.Mul(b.d).Shift(-Decimals).Truncate(Scale)}
}

// DivWad computes (a * W) / b.
func DivWad(a, b Amount) (Amount, error) {
	if b.d.IsZero() {
		return Amount{}, ErrDivisionByZero
	}
	q, _ := a.d.Shift(Decimals).QuoRem(b.d, Scale)
	return Amount{d: q}, nil
}

// ApplyDecay compounds value by (W - decayRate) / W once per epoch.
func ApplyDecay(value, decayRate Amount, epochs int64) (Amount, error) {
	if epochs < 0 {
		return Amount{}, fmt.Errorf("%w: negative epoch count %d", ErrInvalidDecay, epochs)
	}
	if decayRate.IsNegative() || decayRate.GreaterThan(One) {
		return Amount{}, fmt.Errorf("%w: decay rate %s outside [0, 1]", ErrInvalidDecay, decayRate)
	}
	factor := One.Sub(decayRate)
	result := value
	for range epochs {
		result = MulWad(result, factor)
	}
	return result, nil
}

// Value implements driver.Valuer; amounts are stored as NUMERIC text.
func (a Amount) Value() (driver.Value, error) {
	return a.d.String(), nil
}

// Scan implements sql.Scanner.
func (a *Amount) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*a = Amount{}
		return nil
	case string:
		return a.parseInto(v)
	case []byte:
		return a.parseInto(string(v))
	default:
		var d decimal.Decimal
		if err := d.Scan(src); err != nil {
			return fmt.Errorf("scan amount: %w", err)
		}
		*a = Amount{d: d}
		return nil
	}
}

func (a *Amount) parseInto(s string) error {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrMalformedAmount, s)
	}
	*a = Amount{d: d}
	return nil
}

// MarshalJSON encodes the amount as a JSON string.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.d.String() + `"`), nil
}

// UnmarshalJSON accepts a JSON string holding a plain decimal.
func (a *Amount) UnmarshalJSON(data []byte) error {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return fmt.Errorf("%w: amounts must be JSON strings", ErrMalformedAmount)
	}
	parsed, err := Parse(string(data[1 : len(data)-1]))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
