package omnimath

import (
	"github.com/holiman/uint256"

	fp "github.com/openalpha/omnipool/pkg/fixedpoint"
)

// CalculateSellStateChanges prices a sell of amount of asset in for asset out, routed
// through the hub asset. Amounts paid out by the pool are rounded down.
func CalculateSellStateChanges(
	in, out AssetReserveState,
	amount *uint256.Int,
	fees TradeFees,
	imbalance SimpleImbalance,
) (*TradeStateChange, error) {
	reserveIn, err := fp.CheckedAdd(in.Reserve, amount)
	if err != nil {
		return nil, err
	}
	deltaHubIn, err := fp.MulDiv(amount, in.HubReserve, reserveIn, fp.Down)
	if err != nil {
		return nil, err
	}

	protocolFee, err := fees.ProtocolFee.MulInt(deltaHubIn, fp.Down)
	if err != nil {
		return nil, err
	}
	deltaHubOut, err := fp.CheckedSub(deltaHubIn, protocolFee)
	if err != nil {
		return nil, err
	}

	hubOut, err := fp.CheckedAdd(out.HubReserve, deltaHubOut)
	if err != nil {
		return nil, err
	}
	outNoFee, err := fp.MulDiv(out.Reserve, deltaHubOut, hubOut, fp.Down)
	if err != nil {
		return nil, err
	}
	assetFee, err := fees.AssetFee.MulInt(outNoFee, fp.Down)
	if err != nil {
		return nil, err
	}
	amountOut, err := fp.CheckedSub(outNoFee, assetFee)
	if err != nil {
		return nil, err
	}

	offset, hdxHub := splitProtocolFee(protocolFee, imbalance)

	return &TradeStateChange{
		AssetIn: AssetStateChange{
			DeltaReserve:    Increase(amount),
			DeltaHubReserve: Decrease(deltaHubIn),
		},
		AssetOut: AssetStateChange{
			DeltaReserve:    Decrease(amountOut),
			DeltaHubReserve: Increase(deltaHubOut),
		},
		DeltaImbalance:    Increase(offset),
		DeltaHubLiquidity: Decrease(offset),
		HDXHubAmount:      hdxHub,
		BurnedHub:         offset,
		AmountIn:          new(uint256.Int).Set(amount),
		AmountOut:         amountOut,
		AssetFee:          assetFee,
		ProtocolFee:       protocolFee,
	}, nil
}

// CalculateSellHubStateChanges prices a sell of hub asset for asset out. The hub amount
// enters the pool; the imbalance grows by the value taken out plus the hub amount.
func CalculateSellHubStateChanges(
	out AssetReserveState,
	hubAmount *uint256.Int,
	assetFee fp.Fixed,
) (*TradeStateChange, error) {
	price, err := out.Price()
	if err != nil {
		return nil, err
	}
	hubOut, err := fp.CheckedAdd(out.HubReserve, hubAmount)
	if err != nil {
		return nil, err
	}
	outNoFee, err := fp.MulDiv(out.Reserve, hubAmount, hubOut, fp.Down)
	if err != nil {
		return nil, err
	}
	fee, err := assetFee.MulInt(outNoFee, fp.Down)
	if err != nil {
		return nil, err
	}
	amountOut, err := fp.CheckedSub(outNoFee, fee)
	if err != nil {
		return nil, err
	}
	imbalance, err := hubTradeImbalance(price, amountOut, hubAmount)
	if err != nil {
		return nil, err
	}

	return &TradeStateChange{
		AssetOut: AssetStateChange{
			DeltaReserve:    Decrease(amountOut),
			DeltaHubReserve: Increase(hubAmount),
		},
		DeltaImbalance:    Decrease(imbalance),
		DeltaHubLiquidity: Increase(hubAmount),
		HDXHubAmount:      fp.Zero(),
		BurnedHub:         fp.Zero(),
		AmountIn:          new(uint256.Int).Set(hubAmount),
		AmountOut:         amountOut,
		AssetFee:          fee,
		ProtocolFee:       fp.Zero(),
	}, nil
}

// CalculateBuyStateChanges solves for the amount of asset in required to receive amount
// of asset out. Every intermediate is rounded up so the user pays for rounding.
func CalculateBuyStateChanges(
	in, out AssetReserveState,
	amount *uint256.Int,
	fees TradeFees,
	imbalance SimpleImbalance,
) (*TradeStateChange, error) {
	outWithFee, err := grossUp(amount, fees.AssetFee)
	if err != nil {
		return nil, err
	}
	if !outWithFee.Lt(out.Reserve) {
		return nil, ErrInsufficientLiquidity
	}
	deltaHubOut, err := fp.MulDiv(out.HubReserve, outWithFee, new(uint256.Int).Sub(out.Reserve, outWithFee), fp.Up)
	if err != nil {
		return nil, err
	}
	deltaHubIn, err := grossUp(deltaHubOut, fees.ProtocolFee)
	if err != nil {
		return nil, err
	}
	if !deltaHubIn.Lt(in.HubReserve) {
		return nil, ErrInsufficientLiquidity
	}
	amountIn, err := fp.MulDiv(in.Reserve, deltaHubIn, new(uint256.Int).Sub(in.HubReserve, deltaHubIn), fp.Up)
	if err != nil {
		return nil, err
	}

	protocolFee := new(uint256.Int).Sub(deltaHubIn, deltaHubOut)
	assetFee := new(uint256.Int).Sub(outWithFee, amount)
	offset, hdxHub := splitProtocolFee(protocolFee, imbalance)

	return &TradeStateChange{
		AssetIn: AssetStateChange{
			DeltaReserve:    Increase(amountIn),
			DeltaHubReserve: Decrease(deltaHubIn),
		},
		AssetOut: AssetStateChange{
			DeltaReserve:    Decrease(amount),
			DeltaHubReserve: Increase(deltaHubOut),
		},
		DeltaImbalance:    Increase(offset),
		DeltaHubLiquidity: Decrease(offset),
		HDXHubAmount:      hdxHub,
		BurnedHub:         offset,
		AmountIn:          amountIn,
		AmountOut:         new(uint256.Int).Set(amount),
		AssetFee:          assetFee,
		ProtocolFee:       protocolFee,
	}, nil
}

// CalculateBuyForHubStateChanges solves for the hub amount required to receive amount of
// asset out.
func CalculateBuyForHubStateChanges(
	out AssetReserveState,
	amount *uint256.Int,
	assetFee fp.Fixed,
) (*TradeStateChange, error) {
	price, err := out.Price()
	if err != nil {
		return nil, err
	}
	outWithFee, err := grossUp(amount, assetFee)
	if err != nil {
		return nil, err
	}
	if !outWithFee.Lt(out.Reserve) {
		return nil, ErrInsufficientLiquidity
	}
	hubIn, err := fp.MulDiv(out.HubReserve, outWithFee, new(uint256.Int).Sub(out.Reserve, outWithFee), fp.Up)
	if err != nil {
		return nil, err
	}
	imbalance, err := hubTradeImbalance(price, amount, hubIn)
	if err != nil {
		return nil, err
	}

	return &TradeStateChange{
		AssetOut: AssetStateChange{
			DeltaReserve:    Decrease(amount),
			DeltaHubReserve: Increase(hubIn),
		},
		DeltaImbalance:    Decrease(imbalance),
		DeltaHubLiquidity: Increase(hubIn),
		HDXHubAmount:      fp.Zero(),
		BurnedHub:         fp.Zero(),
		AmountIn:          hubIn,
		AmountOut:         new(uint256.Int).Set(amount),
		AssetFee:          new(uint256.Int).Sub(outWithFee, amount),
		ProtocolFee:       fp.Zero(),
	}, nil
}

// grossUp returns ceil(amount / (1 - fee)).
func grossUp(amount *uint256.Int, fee fp.Fixed) (*uint256.Int, error) {
	if fee.IsZero() {
		return new(uint256.Int).Set(amount), nil
	}
	complement, err := fee.Complement()
	if err != nil || complement.IsZero() {
		return nil, ErrInvalidFee
	}
	return complement.DivInt(amount, fp.Up)
}

// splitProtocolFee offsets a negative imbalance first; the remainder goes to the native
// asset.
func splitProtocolFee(protocolFee *uint256.Int, imbalance SimpleImbalance) (offset, hdxHub *uint256.Int) {
	offset = fp.Zero()
	if imbalance.Negative {
		offset = new(uint256.Int).Set(fp.Min(protocolFee, zeroIfNil(imbalance.Value)))
	}
	return offset, new(uint256.Int).Sub(protocolFee, offset)
}

func hubTradeImbalance(price fp.Fixed, assetAmount, hubAmount *uint256.Int) (*uint256.Int, error) {
	value, err := price.MulInt(assetAmount, fp.Down)
	if err != nil {
		return nil, err
	}
	return fp.CheckedAdd(value, hubAmount)
}
