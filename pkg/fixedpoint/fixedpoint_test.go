package fixedpoint

import (
	"encoding/json"
	"testing"

	"cosmossdk.io/math"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func TestCheckedArithmetic(t *testing.T) {
	sum, err := CheckedAdd(NewInt(2), NewInt(3))
	require.NoError(t, err)
	require.Equal(t, uint64(5), sum.Uint64())

	_, err = CheckedAdd(MaxBalance, NewInt(1))
	require.ErrorIs(t, err, ErrOverflow)

	_, err = CheckedSub(NewInt(2), NewInt(3))
	require.ErrorIs(t, err, ErrUnderflow)

	diff, err := CheckedSub(NewInt(3), NewInt(3))
	require.NoError(t, err)
	require.True(t, diff.IsZero())

	_, err = CheckedMul(MaxBalance, NewInt(2))
	require.ErrorIs(t, err, ErrOverflow)
}

func TestMulDivRounding(t *testing.T) {
	tests := []struct {
		name     string
		x, y, d  uint64
		rounding Rounding
		want     uint64
	}{
		{"exact", 10, 10, 4, Down, 25},
		{"down", 10, 1, 3, Down, 3},
		{"up", 10, 1, 3, Up, 4},
		{"nearest below half", 10, 1, 3, Nearest, 3},
		{"nearest at half", 5, 1, 2, Nearest, 3},
		{"exact up", 9, 1, 3, Up, 3},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := MulDiv(NewInt(tc.x), NewInt(tc.y), NewInt(tc.d), tc.rounding)
			require.NoError(t, err)
			require.Equal(t, tc.want, got.Uint64())
		})
	}

	_, err := MulDiv(NewInt(1), NewInt(1), Zero(), Down)
	require.ErrorIs(t, err, ErrDivisionByZero)
}

func TestMulDivUsesWideIntermediate(t *testing.T) {
	// MaxBalance^2 does not fit in 128 bits but the quotient does
	got, err := MulDiv(MaxBalance, MaxBalance, MaxBalance, Down)
	require.NoError(t, err)
	require.True(t, got.Eq(MaxBalance))

	_, err = MulDiv(MaxBalance, NewInt(2), NewInt(1), Down)
	require.ErrorIs(t, err, ErrOverflow)
}

func TestUintConversion(t *testing.T) {
	v, err := FromUint(math.NewUint(1234))
	require.NoError(t, err)
	require.Equal(t, uint64(1234), v.Uint64())
	require.Equal(t, math.NewUint(1234), ToUint(v))
	require.True(t, ToUint(nil).IsZero())

	tooBig := math.NewUintFromBigInt(new(uint256.Int).AddUint64(MaxBalance, 1).ToBig())
	_, err = FromUint(tooBig)
	require.ErrorIs(t, err, ErrOverflow)
}

func TestFixed(t *testing.T) {
	half, err := FixedFromRational(NewInt(1), NewInt(2))
	require.NoError(t, err)
	require.Equal(t, "0.500000000000000000", half.String())

	third, err := FixedFromRational(NewInt(1), NewInt(3))
	require.NoError(t, err)
	require.Equal(t, "0.333333333333333333", third.String())

	sum, err := half.Add(half)
	require.NoError(t, err)
	require.True(t, sum.IsOne())

	_, err = half.Sub(FixedOne())
	require.ErrorIs(t, err, ErrUnderflow)

	c, err := FixedFromPermill(250_000).Complement()
	require.NoError(t, err)
	require.Equal(t, MustFixedFromDec(math.LegacyMustNewDecFromStr("0.75")), c)

	down, err := third.Mul(third, Down)
	require.NoError(t, err)
	up, err := third.Mul(third, Up)
	require.NoError(t, err)
	require.Equal(t, 1, up.Cmp(down))

	q, err := FixedOne().Quo(FixedFromInt(3), Up)
	require.NoError(t, err)
	require.Equal(t, "0.333333333333333334", q.String())

	_, err = FixedOne().Quo(Fixed{}, Down)
	require.ErrorIs(t, err, ErrDivisionByZero)
}

func TestFixedIntegerOps(t *testing.T) {
	price := MustFixedFromDec(math.LegacyMustNewDecFromStr("0.65"))

	hub, err := price.MulInt(NewInt(2000), Down)
	require.NoError(t, err)
	require.Equal(t, uint64(1300), hub.Uint64())

	amount, err := price.DivInt(NewInt(1300), Down)
	require.NoError(t, err)
	require.Equal(t, uint64(2000), amount.Uint64())

	up, err := MustFixedFromDec(math.LegacyMustNewDecFromStr("0.5")).MulInt(NewInt(3), Up)
	require.NoError(t, err)
	require.Equal(t, uint64(2), up.Uint64())
}

func TestFixedPow(t *testing.T) {
	two := FixedFromInt(2)

	p, err := two.Pow(0, Down)
	require.NoError(t, err)
	require.True(t, p.IsOne())

	p, err = two.Pow(10, Down)
	require.NoError(t, err)
	require.Equal(t, FixedFromInt(1024), p)

	half := MustFixedFromDec(math.LegacyMustNewDecFromStr("0.5"))
	p, err = half.Pow(3, Down)
	require.NoError(t, err)
	require.Equal(t, MustFixedFromDec(math.LegacyMustNewDecFromStr("0.125")), p)
}

func TestFixedDecRoundTrip(t *testing.T) {
	d := math.LegacyMustNewDecFromStr("1.234567890123456789")
	f, err := FixedFromDec(d)
	require.NoError(t, err)
	require.True(t, d.Equal(f.Dec()))

	_, err = FixedFromDec(math.LegacyMustNewDecFromStr("-1"))
	require.ErrorIs(t, err, ErrUnderflow)

	bz, err := json.Marshal(f)
	require.NoError(t, err)
	var back Fixed
	require.NoError(t, json.Unmarshal(bz, &back))
	require.Equal(t, f, back)
}

func TestRatio(t *testing.T) {
	a := NewRatio(NewInt(1300), NewInt(2000))
	b := NewRatio(NewInt(13), NewInt(20))
	require.Zero(t, a.Cmp(b))
	require.Equal(t, -1, a.Cmp(NewRatio(NewInt(2), NewInt(3))))

	f, err := a.Fixed()
	require.NoError(t, err)
	require.Equal(t, "0.650000000000000000", f.String())

	v, err := NewRatio(NewInt(1), NewInt(3)).MulInt(NewInt(10), Up)
	require.NoError(t, err)
	require.Equal(t, uint64(4), v.Uint64())

	require.False(t, Ratio{}.IsValid())
	_, err = NewRatio(NewInt(1), Zero()).Fixed()
	require.ErrorIs(t, err, ErrDivisionByZero)

	bz, err := json.Marshal(a)
	require.NoError(t, err)
	require.JSONEq(t, `{"n":"1300","d":"2000"}`, string(bz))
	var back Ratio
	require.NoError(t, json.Unmarshal(bz, &back))
	require.Zero(t, a.Cmp(back))
}
