// Package omnimath holds the stateless Omnipool math. Every function takes the current
// reserve state and returns the deltas to apply; nothing here touches storage.
package omnimath

import (
	"errors"

	"github.com/holiman/uint256"

	fp "github.com/openalpha/omnipool/pkg/fixedpoint"
)

var (
	ErrInsufficientLiquidity = errors.New("omnimath: insufficient liquidity")
	ErrZeroReserve           = errors.New("omnimath: zero reserve")
	ErrInvalidFee            = errors.New("omnimath: fee must be below 100%")
)

// AssetReserveState is the arithmetic view of a listed asset.
type AssetReserveState struct {
	Reserve        *uint256.Int
	HubReserve     *uint256.Int
	Shares         *uint256.Int
	ProtocolShares *uint256.Int
	TVL            *uint256.Int
}

// Price returns hub_reserve / reserve rounded down.
func (s AssetReserveState) Price() (fp.Fixed, error) {
	if s.Reserve.IsZero() {
		return fp.Fixed{}, ErrZeroReserve
	}
	return fp.FixedFromRational(s.HubReserve, s.Reserve)
}

// PriceRatio returns the exact hub_reserve / reserve pair.
func (s AssetReserveState) PriceRatio() fp.Ratio {
	return fp.NewRatio(s.HubReserve, s.Reserve)
}

// Apply returns a copy of s with every delta of c applied.
func (s AssetReserveState) Apply(c AssetStateChange) (AssetReserveState, error) {
	var (
		out AssetReserveState
		err error
	)
	if out.Reserve, err = c.DeltaReserve.Apply(s.Reserve); err != nil {
		return out, err
	}
	if out.HubReserve, err = c.DeltaHubReserve.Apply(s.HubReserve); err != nil {
		return out, err
	}
	if out.Shares, err = c.DeltaShares.Apply(s.Shares); err != nil {
		return out, err
	}
	if out.ProtocolShares, err = c.DeltaProtocolShares.Apply(s.ProtocolShares); err != nil {
		return out, err
	}
	if out.TVL, err = c.DeltaTVL.Apply(s.TVL); err != nil {
		return out, err
	}
	return out, nil
}

// BalanceUpdate is a signed change expressed as a magnitude and direction.
type BalanceUpdate struct {
	Amount   *uint256.Int
	Increase bool
}

func Increase(x *uint256.Int) BalanceUpdate {
	return BalanceUpdate{Amount: new(uint256.Int).Set(x), Increase: true}
}

func Decrease(x *uint256.Int) BalanceUpdate {
	return BalanceUpdate{Amount: new(uint256.Int).Set(x), Increase: false}
}

// IsZero reports whether the update changes nothing. A nil amount counts as zero.
func (b BalanceUpdate) IsZero() bool {
	return b.Amount == nil || b.Amount.IsZero()
}

// Value returns the magnitude, never nil.
func (b BalanceUpdate) Value() *uint256.Int {
	if b.Amount == nil {
		return fp.Zero()
	}
	return new(uint256.Int).Set(b.Amount)
}

// Apply adds or subtracts the update from v with overflow checks.
func (b BalanceUpdate) Apply(v *uint256.Int) (*uint256.Int, error) {
	if v == nil {
		v = fp.Zero()
	}
	if b.IsZero() {
		return new(uint256.Int).Set(v), nil
	}
	if b.Increase {
		return fp.CheckedAdd(v, b.Amount)
	}
	return fp.CheckedSub(v, b.Amount)
}

// Merge combines two updates into one signed update.
func (b BalanceUpdate) Merge(o BalanceUpdate) (BalanceUpdate, error) {
	if b.IsZero() {
		return BalanceUpdate{Amount: o.Value(), Increase: o.Increase}, nil
	}
	if o.IsZero() {
		return BalanceUpdate{Amount: b.Value(), Increase: b.Increase}, nil
	}
	if b.Increase == o.Increase {
		sum, err := fp.CheckedAdd(b.Amount, o.Amount)
		if err != nil {
			return BalanceUpdate{}, err
		}
		return BalanceUpdate{Amount: sum, Increase: b.Increase}, nil
	}
	if b.Amount.Lt(o.Amount) {
		return BalanceUpdate{Amount: new(uint256.Int).Sub(o.Amount, b.Amount), Increase: o.Increase}, nil
	}
	return BalanceUpdate{Amount: new(uint256.Int).Sub(b.Amount, o.Amount), Increase: b.Increase}, nil
}

// AssetStateChange collects the deltas for one asset.
type AssetStateChange struct {
	DeltaReserve        BalanceUpdate
	DeltaHubReserve     BalanceUpdate
	DeltaShares         BalanceUpdate
	DeltaProtocolShares BalanceUpdate
	DeltaTVL            BalanceUpdate
}

// SimpleImbalance is a sign-magnitude accumulator. Zero keeps whatever sign it had.
type SimpleImbalance struct {
	Value    *uint256.Int
	Negative bool
}

// DefaultImbalance is zero with the negative flag set.
func DefaultImbalance() SimpleImbalance {
	return SimpleImbalance{Value: fp.Zero(), Negative: true}
}

// Add applies a signed update.
func (s SimpleImbalance) Add(u BalanceUpdate) (SimpleImbalance, error) {
	value := s.Value
	if value == nil {
		value = fp.Zero()
	}
	if u.IsZero() {
		return SimpleImbalance{Value: new(uint256.Int).Set(value), Negative: s.Negative}, nil
	}
	// Increase moves toward positive, Decrease toward negative.
	if u.Increase != s.Negative {
		sum, err := fp.CheckedAdd(value, u.Amount)
		if err != nil {
			return SimpleImbalance{}, err
		}
		return SimpleImbalance{Value: sum, Negative: s.Negative}, nil
	}
	if !value.Lt(u.Amount) {
		return SimpleImbalance{Value: new(uint256.Int).Sub(value, u.Amount), Negative: s.Negative}, nil
	}
	return SimpleImbalance{Value: new(uint256.Int).Sub(u.Amount, value), Negative: !s.Negative}, nil
}

// TradeFees are the fee fractions applied to a trade.
type TradeFees struct {
	AssetFee    fp.Fixed
	ProtocolFee fp.Fixed
}

// TradeStateChange is the full effect of a trade.
type TradeStateChange struct {
	AssetIn  AssetStateChange
	AssetOut AssetStateChange

	// DeltaImbalance is applied to the pool imbalance.
	DeltaImbalance BalanceUpdate
	// DeltaHubLiquidity is the net change of hub units held by the pool, including the
	// protocol fee routed to the native asset.
	DeltaHubLiquidity BalanceUpdate
	// HDXHubAmount is the protocol fee credited to the native asset's hub reserve.
	HDXHubAmount *uint256.Int
	// BurnedHub is hub asset destroyed while offsetting the imbalance.
	BurnedHub *uint256.Int

	AmountIn    *uint256.Int
	AmountOut   *uint256.Int
	AssetFee    *uint256.Int
	ProtocolFee *uint256.Int
}

// LiquidityStateChange is the effect of adding or removing liquidity.
type LiquidityStateChange struct {
	Asset             AssetStateChange
	DeltaImbalance    BalanceUpdate
	DeltaHubLiquidity BalanceUpdate
	DeltaPosition     *uint256.Int

	// Remove only.
	LPHubAmount   *uint256.Int
	BurnedHub     *uint256.Int
	WithdrawalFee *uint256.Int
	ReserveToLP   *uint256.Int
	SharesToBurn  *uint256.Int
	SharesToPool  *uint256.Int
}

func zeroIfNil(v *uint256.Int) *uint256.Int {
	if v == nil {
		return fp.Zero()
	}
	return v
}
