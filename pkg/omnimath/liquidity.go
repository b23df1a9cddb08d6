package omnimath

import (
	"github.com/holiman/uint256"

	fp "github.com/openalpha/omnipool/pkg/fixedpoint"
)

// Position is the arithmetic view of an LP position.
type Position struct {
	Amount *uint256.Int
	Shares *uint256.Int
	Price  fp.Ratio
}

// CalculateAddLiquidityStateChanges returns the effect of depositing amount into an asset
// pool at the current price. totalHubReserve is the pool-wide hub liquidity before the
// deposit.
func CalculateAddLiquidityStateChanges(
	state AssetReserveState,
	amount *uint256.Int,
	imbalance SimpleImbalance,
	totalHubReserve *uint256.Int,
) (*LiquidityStateChange, error) {
	if state.Reserve.IsZero() {
		return nil, ErrZeroReserve
	}
	deltaHub, err := fp.MulDiv(state.HubReserve, amount, state.Reserve, fp.Down)
	if err != nil {
		return nil, err
	}
	deltaShares, err := fp.MulDiv(state.Shares, amount, state.Reserve, fp.Down)
	if err != nil {
		return nil, err
	}
	deltaImbalance, err := scaleImbalance(imbalance, deltaHub, totalHubReserve)
	if err != nil {
		return nil, err
	}

	return &LiquidityStateChange{
		Asset: AssetStateChange{
			DeltaReserve:    Increase(amount),
			DeltaHubReserve: Increase(deltaHub),
			DeltaShares:     Increase(deltaShares),
		},
		// The imbalance magnitude grows with the pool.
		DeltaImbalance:    BalanceUpdate{Amount: deltaImbalance, Increase: !imbalance.Negative},
		DeltaHubLiquidity: Increase(deltaHub),
		DeltaPosition:     new(uint256.Int).Set(amount),
	}, nil
}

// CalculateRemoveLiquidityStateChanges returns the effect of burning sharesRemoved of
// position. When the price fell since the deposit, part of the removed shares is kept as
// protocol shares; when it rose, the LP receives part of the hub value. withdrawalFee is
// deducted from the reserve paid out and stays in the pool.
func CalculateRemoveLiquidityStateChanges(
	state AssetReserveState,
	sharesRemoved *uint256.Int,
	position Position,
	imbalance SimpleImbalance,
	totalHubReserve *uint256.Int,
	withdrawalFee fp.Fixed,
) (*LiquidityStateChange, error) {
	if state.Reserve.IsZero() || state.Shares.IsZero() {
		return nil, ErrZeroReserve
	}
	if position.Shares == nil || position.Shares.IsZero() || sharesRemoved.Gt(position.Shares) {
		return nil, ErrInsufficientLiquidity
	}

	current, err := state.Price()
	if err != nil {
		return nil, err
	}
	original, err := position.Price.Fixed()
	if err != nil {
		return nil, err
	}

	deltaB := fp.Zero()
	if current.LT(original) {
		factor, err := priceSpread(original, current)
		if err != nil {
			return nil, err
		}
		if deltaB, err = factor.MulInt(sharesRemoved, fp.Down); err != nil {
			return nil, err
		}
	}
	deltaShares, err := fp.CheckedSub(sharesRemoved, deltaB)
	if err != nil {
		return nil, err
	}

	deltaReserve, err := fp.MulDiv(state.Reserve, deltaShares, state.Shares, fp.Down)
	if err != nil {
		return nil, err
	}
	fee, err := withdrawalFee.MulInt(deltaReserve, fp.Up)
	if err != nil {
		return nil, err
	}
	if fee.Gt(deltaReserve) {
		fee = new(uint256.Int).Set(deltaReserve)
	}
	reserveToLP := new(uint256.Int).Sub(deltaReserve, fee)

	deltaHub, err := fp.MulDiv(state.HubReserve, reserveToLP, state.Reserve, fp.Down)
	if err != nil {
		return nil, err
	}

	lpHub := fp.Zero()
	if current.GT(original) {
		factor, err := priceSpread(current, original)
		if err != nil {
			return nil, err
		}
		if lpHub, err = factor.MulInt(deltaHub, fp.Down); err != nil {
			return nil, err
		}
	}
	burned := new(uint256.Int).Sub(deltaHub, lpHub)

	deltaPosition, err := fp.MulDiv(position.Amount, sharesRemoved, position.Shares, fp.Down)
	if err != nil {
		return nil, err
	}
	deltaImbalance, err := scaleImbalance(imbalance, deltaHub, totalHubReserve)
	if err != nil {
		return nil, err
	}

	return &LiquidityStateChange{
		Asset: AssetStateChange{
			DeltaReserve:        Decrease(reserveToLP),
			DeltaHubReserve:     Decrease(deltaHub),
			DeltaShares:         Decrease(deltaShares),
			DeltaProtocolShares: Increase(deltaB),
		},
		// The imbalance magnitude shrinks with the pool.
		DeltaImbalance:    BalanceUpdate{Amount: deltaImbalance, Increase: imbalance.Negative},
		DeltaHubLiquidity: Decrease(deltaHub),
		DeltaPosition:     deltaPosition,
		LPHubAmount:       lpHub,
		BurnedHub:         burned,
		WithdrawalFee:     fee,
		ReserveToLP:       reserveToLP,
		SharesToBurn:      deltaShares,
		SharesToPool:      deltaB,
	}, nil
}

// CalculateTVL values hubAmount in stable asset units using the stable pool's price.
func CalculateTVL(hubAmount *uint256.Int, stable AssetReserveState) (*uint256.Int, error) {
	if stable.HubReserve.IsZero() {
		return nil, ErrZeroReserve
	}
	return fp.MulDiv(hubAmount, stable.Reserve, stable.HubReserve, fp.Down)
}

// ExceedsWeightCap reports whether hubReserve / totalHubReserve is above cap.
func ExceedsWeightCap(hubReserve, totalHubReserve *uint256.Int, cap fp.Fixed) bool {
	if totalHubReserve.IsZero() {
		return false
	}
	weight, err := fp.MulDiv(hubReserve, fp.Accuracy, totalHubReserve, fp.Down)
	if err != nil {
		return true
	}
	return weight.Gt(cap.Inner())
}

// priceSpread returns (high - low) / (high + low).
func priceSpread(high, low fp.Fixed) (fp.Fixed, error) {
	diff, err := high.Sub(low)
	if err != nil {
		return fp.Fixed{}, err
	}
	sum, err := high.Add(low)
	if err != nil {
		return fp.Fixed{}, err
	}
	return diff.Quo(sum, fp.Down)
}

func scaleImbalance(imbalance SimpleImbalance, deltaHub, totalHubReserve *uint256.Int) (*uint256.Int, error) {
	value := zeroIfNil(imbalance.Value)
	if value.IsZero() || totalHubReserve.IsZero() {
		return fp.Zero(), nil
	}
	return fp.MulDiv(value, deltaHub, totalHubReserve, fp.Down)
}
