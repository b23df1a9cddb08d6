package fixedpoint

import (
	"encoding/json"
	"fmt"

	"cosmossdk.io/math"
	"github.com/holiman/uint256"
)

// Precision is the number of decimal places carried by Fixed.
const Precision = 18

// Accuracy is 10^Precision, the integer representation of one.
var Accuracy = uint256.NewInt(1_000_000_000_000_000_000)

// Fixed is an unsigned fixed-point number with 18 decimal places.
// The zero value is 0.
type Fixed struct {
	inner uint256.Int
}

// FixedFromInner wraps a raw 1e18-scaled integer.
func FixedFromInner(v *uint256.Int) Fixed {
	var f Fixed
	f.inner.Set(v)
	return f
}

// FixedFromInt returns n as a Fixed value.
func FixedFromInt(n uint64) Fixed {
	var f Fixed
	f.inner.Mul(uint256.NewInt(n), Accuracy)
	return f
}

// FixedOne is 1.0.
func FixedOne() Fixed { return FixedFromInner(Accuracy) }

// FixedFromRational returns n/d rounded down.
func FixedFromRational(n, d *uint256.Int) (Fixed, error) {
	v, err := MulDiv(n, Accuracy, d, Down)
	if err != nil {
		return Fixed{}, err
	}
	return FixedFromInner(v), nil
}

// FixedFromPermill converts a parts-per-million value.
func FixedFromPermill(ppm uint32) Fixed {
	var f Fixed
	f.inner.Mul(uint256.NewInt(uint64(ppm)), uint256.NewInt(1_000_000_000_000))
	return f
}

// FixedFromDec converts a non-negative math.LegacyDec, which shares the 18 decimal scale.
func FixedFromDec(d math.LegacyDec) (Fixed, error) {
	if d.IsNil() || d.IsNegative() {
		return Fixed{}, ErrUnderflow
	}
	v, overflow := uint256.FromBig(d.BigInt())
	if overflow {
		return Fixed{}, ErrOverflow
	}
	return FixedFromInner(v), nil
}

// MustFixedFromDec panics when d cannot be represented.
func MustFixedFromDec(d math.LegacyDec) Fixed {
	f, err := FixedFromDec(d)
	if err != nil {
		panic(err)
	}
	return f
}

// Dec converts f to a math.LegacyDec.
func (f Fixed) Dec() math.LegacyDec {
	return math.LegacyNewDecFromBigIntWithPrec(f.inner.ToBig(), Precision)
}

// Inner returns a copy of the raw scaled integer.
func (f Fixed) Inner() *uint256.Int {
	return new(uint256.Int).Set(&f.inner)
}

func (f Fixed) IsZero() bool { return f.inner.IsZero() }

func (f Fixed) IsOne() bool { return f.inner.Eq(Accuracy) }

func (f Fixed) Cmp(o Fixed) int { return f.inner.Cmp(&o.inner) }

func (f Fixed) GT(o Fixed) bool { return f.inner.Gt(&o.inner) }

func (f Fixed) LT(o Fixed) bool { return f.inner.Lt(&o.inner) }

// Add returns f + o.
func (f Fixed) Add(o Fixed) (Fixed, error) {
	v, overflow := new(uint256.Int).AddOverflow(&f.inner, &o.inner)
	if overflow {
		return Fixed{}, ErrOverflow
	}
	return FixedFromInner(v), nil
}

// Sub returns f - o.
func (f Fixed) Sub(o Fixed) (Fixed, error) {
	if o.inner.Gt(&f.inner) {
		return Fixed{}, ErrUnderflow
	}
	return FixedFromInner(new(uint256.Int).Sub(&f.inner, &o.inner)), nil
}

// Complement returns 1 - f. f must not exceed one.
func (f Fixed) Complement() (Fixed, error) {
	return FixedOne().Sub(f)
}

// Mul returns f * o with the given rounding of the last decimal.
func (f Fixed) Mul(o Fixed, rounding Rounding) (Fixed, error) {
	product, overflow := new(uint256.Int).MulOverflow(&f.inner, &o.inner)
	if overflow {
		return Fixed{}, ErrOverflow
	}
	q, err := divWide(product, Accuracy, rounding)
	if err != nil {
		return Fixed{}, err
	}
	return FixedFromInner(q), nil
}

// Quo returns f / o with the given rounding of the last decimal.
func (f Fixed) Quo(o Fixed, rounding Rounding) (Fixed, error) {
	n, overflow := new(uint256.Int).MulOverflow(&f.inner, Accuracy)
	if overflow {
		return Fixed{}, ErrOverflow
	}
	q, err := divWide(n, &o.inner, rounding)
	if err != nil {
		return Fixed{}, err
	}
	return FixedFromInner(q), nil
}

// MulInt returns f * n as an integer, rounded as requested.
func (f Fixed) MulInt(n *uint256.Int, rounding Rounding) (*uint256.Int, error) {
	return MulDiv(&f.inner, n, Accuracy, rounding)
}

// DivInt returns n / f as an integer, rounded as requested.
func (f Fixed) DivInt(n *uint256.Int, rounding Rounding) (*uint256.Int, error) {
	return MulDiv(n, Accuracy, &f.inner, rounding)
}

// Pow raises f to the integer power n by repeated squaring, applying rounding at every
// multiplication step.
func (f Fixed) Pow(n uint32, rounding Rounding) (Fixed, error) {
	result := FixedOne()
	base := f
	var err error
	for n > 0 {
		if n&1 == 1 {
			if result, err = result.Mul(base, rounding); err != nil {
				return Fixed{}, err
			}
		}
		n >>= 1
		if n > 0 {
			if base, err = base.Mul(base, rounding); err != nil {
				return Fixed{}, err
			}
		}
	}
	return result, nil
}

// String renders f with all 18 decimals.
func (f Fixed) String() string {
	return f.Dec().String()
}

func (f Fixed) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.inner.Dec())
}

func (f *Fixed) UnmarshalJSON(bz []byte) error {
	var s string
	if err := json.Unmarshal(bz, &s); err != nil {
		return err
	}
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return fmt.Errorf("invalid fixed point value %q: %w", s, err)
	}
	f.inner.Set(v)
	return nil
}

// divWide divides without applying the balance range limit; fixed-point inners may
// legitimately exceed u128 when prices are large.
func divWide(n, d *uint256.Int, rounding Rounding) (*uint256.Int, error) {
	if d.IsZero() {
		return nil, ErrDivisionByZero
	}
	q, rem := new(uint256.Int).DivMod(n, d, new(uint256.Int))
	if rem.IsZero() {
		return q, nil
	}
	switch rounding {
	case Up:
		q.AddUint64(q, 1)
	case Nearest:
		if !rem.Lt(new(uint256.Int).Sub(d, rem)) {
			q.AddUint64(q, 1)
		}
	}
	return q, nil
}
