// Package fixedpoint provides the deterministic arithmetic used by the pool math.
//
// All quantities are unsigned 256-bit integers (github.com/holiman/uint256). Balances are
// bounded to the u128 range; products of two u128 operands always fit in 256 bits, so
// multiplication followed by division is exact before rounding is applied.
package fixedpoint

import (
	"errors"

	"cosmossdk.io/math"
	"github.com/holiman/uint256"
)

var (
	ErrOverflow       = errors.New("fixedpoint: overflow")
	ErrUnderflow      = errors.New("fixedpoint: underflow")
	ErrDivisionByZero = errors.New("fixedpoint: division by zero")
)

// Rounding selects how a quotient with a non-zero remainder is resolved.
type Rounding int

const (
	// Down truncates toward zero. Used when the result is paid out by the pool.
	Down Rounding = iota
	// Up rounds away from zero. Used when the result is paid in by the user.
	Up
	// Nearest rounds half up.
	Nearest
)

func (r Rounding) String() string {
	switch r {
	case Down:
		return "down"
	case Up:
		return "up"
	case Nearest:
		return "nearest"
	default:
		return "unknown"
	}
}

// MaxBalance is the largest value a balance may hold (2^128 - 1).
var MaxBalance = new(uint256.Int).Sub(new(uint256.Int).Lsh(uint256.NewInt(1), 128), uint256.NewInt(1))

// Zero returns a new zero value.
func Zero() *uint256.Int { return new(uint256.Int) }

// NewInt returns x as a 256-bit integer.
func NewInt(x uint64) *uint256.Int { return uint256.NewInt(x) }

// MustFromDecimal parses a base-10 string and panics on malformed input.
// Intended for constants and tests.
func MustFromDecimal(s string) *uint256.Int {
	v, err := uint256.FromDecimal(s)
	if err != nil {
		panic(err)
	}
	return v
}

// CheckedAdd returns x + y or ErrOverflow if the sum leaves the balance range.
func CheckedAdd(x, y *uint256.Int) (*uint256.Int, error) {
	z, overflow := new(uint256.Int).AddOverflow(x, y)
	if overflow || z.Gt(MaxBalance) {
		return nil, ErrOverflow
	}
	return z, nil
}

// CheckedSub returns x - y or ErrUnderflow if y > x.
func CheckedSub(x, y *uint256.Int) (*uint256.Int, error) {
	if y.Gt(x) {
		return nil, ErrUnderflow
	}
	return new(uint256.Int).Sub(x, y), nil
}

// CheckedMul returns x * y or ErrOverflow if the product leaves the balance range.
func CheckedMul(x, y *uint256.Int) (*uint256.Int, error) {
	z, overflow := new(uint256.Int).MulOverflow(x, y)
	if overflow || z.Gt(MaxBalance) {
		return nil, ErrOverflow
	}
	return z, nil
}

// MulDiv computes x * y / d with a full 256-bit intermediate and the given rounding.
// The result must fit the balance range.
func MulDiv(x, y, d *uint256.Int, rounding Rounding) (*uint256.Int, error) {
	if d.IsZero() {
		return nil, ErrDivisionByZero
	}
	product, overflow := new(uint256.Int).MulOverflow(x, y)
	if overflow {
		return nil, ErrOverflow
	}
	return Div(product, d, rounding)
}

// Div computes n / d with the given rounding. n may use the full 256-bit range; the
// quotient must fit the balance range.
func Div(n, d *uint256.Int, rounding Rounding) (*uint256.Int, error) {
	q, err := divWide(n, d, rounding)
	if err != nil {
		return nil, err
	}
	if q.Gt(MaxBalance) {
		return nil, ErrOverflow
	}
	return q, nil
}

// Min returns the smaller of x and y.
func Min(x, y *uint256.Int) *uint256.Int {
	if x.Lt(y) {
		return x
	}
	return y
}

// FromUint converts a math.Uint balance.
func FromUint(u math.Uint) (*uint256.Int, error) {
	v, overflow := uint256.FromBig(u.BigInt())
	if overflow || v.Gt(MaxBalance) {
		return nil, ErrOverflow
	}
	return v, nil
}

// MustFromUint is FromUint for values already known to be in range.
func MustFromUint(u math.Uint) *uint256.Int {
	v, err := FromUint(u)
	if err != nil {
		panic(err)
	}
	return v
}

// ToUint converts back to a math.Uint for storage.
func ToUint(v *uint256.Int) math.Uint {
	if v == nil {
		return math.ZeroUint()
	}
	return math.NewUintFromBigInt(v.ToBig())
}
