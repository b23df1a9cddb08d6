package fixedpoint

import (
	"encoding/json"
	"fmt"

	"github.com/holiman/uint256"
)

// Ratio is an exact n/d pair. Position prices are kept as ratios so that repeated
// conversions do not accumulate fixed-point drift.
type Ratio struct {
	N *uint256.Int
	D *uint256.Int
}

// NewRatio copies n and d into a new Ratio.
func NewRatio(n, d *uint256.Int) Ratio {
	return Ratio{N: new(uint256.Int).Set(n), D: new(uint256.Int).Set(d)}
}

// IsValid reports whether both sides are set and the denominator is non-zero.
func (r Ratio) IsValid() bool {
	return r.N != nil && r.D != nil && !r.D.IsZero()
}

// Cmp compares r and o by cross multiplication. Both ratios must be valid and their
// parts must be within the balance range.
func (r Ratio) Cmp(o Ratio) int {
	left := new(uint256.Int).Mul(r.N, o.D)
	right := new(uint256.Int).Mul(o.N, r.D)
	return left.Cmp(right)
}

// Fixed converts r to a Fixed value, rounding down.
func (r Ratio) Fixed() (Fixed, error) {
	if !r.IsValid() {
		return Fixed{}, ErrDivisionByZero
	}
	return FixedFromRational(r.N, r.D)
}

// MulInt returns n * r rounded as requested.
func (r Ratio) MulInt(n *uint256.Int, rounding Rounding) (*uint256.Int, error) {
	if !r.IsValid() {
		return nil, ErrDivisionByZero
	}
	return MulDiv(n, r.N, r.D, rounding)
}

func (r Ratio) String() string {
	if r.N == nil || r.D == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s/%s", r.N.Dec(), r.D.Dec())
}

type ratioJSON struct {
	N string `json:"n"`
	D string `json:"d"`
}

func (r Ratio) MarshalJSON() ([]byte, error) {
	if r.N == nil || r.D == nil {
		return json.Marshal(ratioJSON{N: "0", D: "0"})
	}
	return json.Marshal(ratioJSON{N: r.N.Dec(), D: r.D.Dec()})
}

func (r *Ratio) UnmarshalJSON(bz []byte) error {
	var raw ratioJSON
	if err := json.Unmarshal(bz, &raw); err != nil {
		return err
	}
	n, err := uint256.FromDecimal(raw.N)
	if err != nil {
		return fmt.Errorf("invalid ratio numerator %q: %w", raw.N, err)
	}
	d, err := uint256.FromDecimal(raw.D)
	if err != nil {
		return fmt.Errorf("invalid ratio denominator %q: %w", raw.D, err)
	}
	r.N, r.D = n, d
	return nil
}
