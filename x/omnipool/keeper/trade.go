package keeper

import (
	errorsmod "cosmossdk.io/errors"
	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/holiman/uint256"

	"github.com/openalpha/omnipool/metrics"
	fp "github.com/openalpha/omnipool/pkg/fixedpoint"
	"github.com/openalpha/omnipool/pkg/omnimath"
	"github.com/openalpha/omnipool/x/omnipool/types"
)

// Trade kinds, used for events and metrics.
const (
	TradeKindSell      = "sell"
	TradeKindSellHub   = "sell_hub"
	TradeKindBuy       = "buy"
	TradeKindBuyForHub = "buy_for_hub"
)

// tradePlan is a priced trade that has passed every check not depending on the
// caller's balance or on the circuit breaker.
type tradePlan struct {
	kind     string
	assetIn  uint32
	assetOut uint32
	// in is nil when the hub asset is paid in.
	in      *types.AssetReserveState
	out     types.AssetReserveState
	changes *omnimath.TradeStateChange
}

func (p *tradePlan) result() *types.TradeResult {
	return &types.TradeResult{
		AssetIn:     p.assetIn,
		AssetOut:    p.assetOut,
		AmountIn:    fp.ToUint(p.changes.AmountIn),
		AmountOut:   fp.ToUint(p.changes.AmountOut),
		AssetFee:    fp.ToUint(p.changes.AssetFee),
		ProtocolFee: fp.ToUint(p.changes.ProtocolFee),
	}
}

// Sell sells amount of assetIn for at least minBuyAmount of assetOut.
func (k *Keeper) Sell(
	ctx sdk.Context,
	who string,
	assetIn, assetOut uint32,
	amount, minBuyAmount math.Uint,
) (*types.TradeResult, error) {
	timer := metrics.NewTimer()
	params := k.GetParams(ctx)

	if amount.LT(params.MinimumTradingLimit) {
		return nil, types.ErrInsufficientTradingAmount
	}
	if k.ledger.FreeBalance(ctx, assetIn, who).LT(amount) {
		return nil, errorsmod.Wrapf(types.ErrInsufficientBalance, "asset %d", assetIn)
	}

	plan, err := k.prepareSell(ctx, params, assetIn, assetOut, amount, minBuyAmount)
	if err != nil {
		return nil, err
	}
	result, err := k.executeTrade(ctx, params, who, plan)
	if err != nil {
		return nil, err
	}

	GetMetrics().RecordTradeLatency(plan.kind, timer.ElapsedMs())
	return result, nil
}

// Buy buys amount of assetOut paying at most maxSellAmount of assetIn.
func (k *Keeper) Buy(
	ctx sdk.Context,
	who string,
	assetOut, assetIn uint32,
	amount, maxSellAmount math.Uint,
) (*types.TradeResult, error) {
	timer := metrics.NewTimer()
	params := k.GetParams(ctx)

	if amount.LT(params.MinimumTradingLimit) {
		return nil, types.ErrInsufficientTradingAmount
	}

	plan, err := k.prepareBuy(ctx, params, who, assetOut, assetIn, amount, maxSellAmount)
	if err != nil {
		return nil, err
	}
	result, err := k.executeTrade(ctx, params, who, plan)
	if err != nil {
		return nil, err
	}

	GetMetrics().RecordTradeLatency(plan.kind, timer.ElapsedMs())
	return result, nil
}

// SimulateSell prices a sell against the current state without writing anything.
// Balance and circuit breaker checks are skipped.
func (k *Keeper) SimulateSell(ctx sdk.Context, assetIn, assetOut uint32, amount, minBuyAmount math.Uint) (*types.TradeResult, error) {
	params := k.GetParams(ctx)
	if amount.LT(params.MinimumTradingLimit) {
		return nil, types.ErrInsufficientTradingAmount
	}
	plan, err := k.prepareSell(ctx, params, assetIn, assetOut, amount, minBuyAmount)
	if err != nil {
		return nil, err
	}
	return plan.result(), nil
}

// SimulateBuy prices a buy against the current state without writing anything.
func (k *Keeper) SimulateBuy(ctx sdk.Context, assetOut, assetIn uint32, amount, maxSellAmount math.Uint) (*types.TradeResult, error) {
	params := k.GetParams(ctx)
	if amount.LT(params.MinimumTradingLimit) {
		return nil, types.ErrInsufficientTradingAmount
	}
	plan, err := k.prepareBuy(ctx, params, "", assetOut, assetIn, amount, maxSellAmount)
	if err != nil {
		return nil, err
	}
	return plan.result(), nil
}

func (k *Keeper) prepareSell(
	ctx sdk.Context,
	params types.Params,
	assetIn, assetOut uint32,
	amount, minBuyAmount math.Uint,
) (*tradePlan, error) {
	if assetIn == params.HubAssetID {
		return k.prepareSellHub(ctx, params, assetOut, amount, minBuyAmount)
	}
	if assetOut == params.HubAssetID {
		return nil, errorsmod.Wrap(types.ErrNotAllowed, "hub asset cannot be bought")
	}
	if assetIn == assetOut {
		return nil, types.ErrSameAssetTradeNotAllowed
	}

	in, err := k.mustGetAsset(ctx, assetIn)
	if err != nil {
		return nil, err
	}
	out, err := k.mustGetAsset(ctx, assetOut)
	if err != nil {
		return nil, err
	}
	if !in.Tradable.Contains(types.TradabilitySell) || !out.Tradable.Contains(types.TradabilityBuy) {
		return nil, errorsmod.Wrapf(types.ErrNotAllowed, "%d -> %d", assetIn, assetOut)
	}

	inMath, outMath, amountIn, err := tradeOperands(in, out, amount)
	if err != nil {
		return nil, err
	}
	if amountIn.Gt(ratioLimit(inMath.Reserve, params.MaxInRatio)) {
		return nil, types.ErrMaxInRatioExceeded
	}

	fees, imbalance, err := k.tradeInputs(ctx, params)
	if err != nil {
		return nil, err
	}
	changes, err := omnimath.CalculateSellStateChanges(inMath, outMath, amountIn, fees, imbalance)
	if err != nil {
		return nil, wrapMathErr(err)
	}

	if changes.AmountOut.IsZero() || fp.ToUint(changes.AmountOut).LT(minBuyAmount) {
		return nil, errorsmod.Wrapf(types.ErrBuyLimitNotReached, "got %s, want %s", changes.AmountOut.Dec(), minBuyAmount)
	}
	if changes.AmountOut.Gt(ratioLimit(outMath.Reserve, params.MaxOutRatio)) {
		return nil, types.ErrMaxOutRatioExceeded
	}
	if err := k.ensurePriceBarrier(ctx, params, in); err != nil {
		return nil, err
	}
	if err := k.ensurePriceBarrier(ctx, params, out); err != nil {
		return nil, err
	}

	return &tradePlan{kind: TradeKindSell, assetIn: assetIn, assetOut: assetOut, in: &in, out: out, changes: changes}, nil
}

func (k *Keeper) prepareSellHub(
	ctx sdk.Context,
	params types.Params,
	assetOut uint32,
	amount, minBuyAmount math.Uint,
) (*tradePlan, error) {
	if !k.GetPoolState(ctx).HubAssetTradability.Contains(types.TradabilitySell) {
		return nil, errorsmod.Wrap(types.ErrNotAllowed, "hub asset cannot be sold")
	}
	if assetOut == params.HubAssetID {
		return nil, types.ErrSameAssetTradeNotAllowed
	}
	out, err := k.mustGetAsset(ctx, assetOut)
	if err != nil {
		return nil, err
	}
	if !out.Tradable.Contains(types.TradabilityBuy) {
		return nil, errorsmod.Wrapf(types.ErrNotAllowed, "asset %d", assetOut)
	}
	outMath, err := out.Math()
	if err != nil {
		return nil, wrapMathErr(err)
	}
	hubAmount, err := fp.FromUint(amount)
	if err != nil {
		return nil, wrapMathErr(err)
	}
	if hubAmount.Gt(ratioLimit(outMath.HubReserve, params.MaxInRatio)) {
		return nil, types.ErrMaxInRatioExceeded
	}

	fees, _, err := k.tradeInputs(ctx, params)
	if err != nil {
		return nil, err
	}
	changes, err := omnimath.CalculateSellHubStateChanges(outMath, hubAmount, fees.AssetFee)
	if err != nil {
		return nil, wrapMathErr(err)
	}

	if changes.AmountOut.IsZero() || fp.ToUint(changes.AmountOut).LT(minBuyAmount) {
		return nil, errorsmod.Wrapf(types.ErrBuyLimitNotReached, "got %s, want %s", changes.AmountOut.Dec(), minBuyAmount)
	}
	if changes.AmountOut.Gt(ratioLimit(outMath.Reserve, params.MaxOutRatio)) {
		return nil, types.ErrMaxOutRatioExceeded
	}
	if err := k.ensurePriceBarrier(ctx, params, out); err != nil {
		return nil, err
	}

	return &tradePlan{kind: TradeKindSellHub, assetIn: params.HubAssetID, assetOut: assetOut, out: out, changes: changes}, nil
}

// prepareBuy prices a buy. The caller's balance is checked only when who is set.
func (k *Keeper) prepareBuy(
	ctx sdk.Context,
	params types.Params,
	who string,
	assetOut, assetIn uint32,
	amount, maxSellAmount math.Uint,
) (*tradePlan, error) {
	if assetOut == params.HubAssetID {
		return nil, errorsmod.Wrap(types.ErrNotAllowed, "hub asset cannot be bought")
	}
	if assetIn == params.HubAssetID {
		return k.prepareBuyForHub(ctx, params, who, assetOut, amount, maxSellAmount)
	}
	if assetIn == assetOut {
		return nil, types.ErrSameAssetTradeNotAllowed
	}

	in, err := k.mustGetAsset(ctx, assetIn)
	if err != nil {
		return nil, err
	}
	out, err := k.mustGetAsset(ctx, assetOut)
	if err != nil {
		return nil, err
	}
	if !in.Tradable.Contains(types.TradabilitySell) || !out.Tradable.Contains(types.TradabilityBuy) {
		return nil, errorsmod.Wrapf(types.ErrNotAllowed, "%d -> %d", assetIn, assetOut)
	}

	inMath, outMath, amountOut, err := tradeOperands(in, out, amount)
	if err != nil {
		return nil, err
	}
	if !amountOut.Lt(outMath.Reserve) {
		return nil, types.ErrInsufficientLiquidity
	}
	if amountOut.Gt(ratioLimit(outMath.Reserve, params.MaxOutRatio)) {
		return nil, types.ErrMaxOutRatioExceeded
	}

	fees, imbalance, err := k.tradeInputs(ctx, params)
	if err != nil {
		return nil, err
	}
	changes, err := omnimath.CalculateBuyStateChanges(inMath, outMath, amountOut, fees, imbalance)
	if err != nil {
		return nil, wrapMathErr(err)
	}

	if changes.AmountIn.Gt(ratioLimit(inMath.Reserve, params.MaxInRatio)) {
		return nil, types.ErrMaxInRatioExceeded
	}
	if err := k.checkBuyPayment(ctx, who, assetIn, changes.AmountIn, maxSellAmount); err != nil {
		return nil, err
	}
	if err := k.ensurePriceBarrier(ctx, params, in); err != nil {
		return nil, err
	}
	if err := k.ensurePriceBarrier(ctx, params, out); err != nil {
		return nil, err
	}

	return &tradePlan{kind: TradeKindBuy, assetIn: assetIn, assetOut: assetOut, in: &in, out: out, changes: changes}, nil
}

func (k *Keeper) prepareBuyForHub(
	ctx sdk.Context,
	params types.Params,
	who string,
	assetOut uint32,
	amount, maxSellAmount math.Uint,
) (*tradePlan, error) {
	if !k.GetPoolState(ctx).HubAssetTradability.Contains(types.TradabilitySell) {
		return nil, errorsmod.Wrap(types.ErrNotAllowed, "hub asset cannot be sold")
	}
	out, err := k.mustGetAsset(ctx, assetOut)
	if err != nil {
		return nil, err
	}
	if !out.Tradable.Contains(types.TradabilityBuy) {
		return nil, errorsmod.Wrapf(types.ErrNotAllowed, "asset %d", assetOut)
	}
	outMath, err := out.Math()
	if err != nil {
		return nil, wrapMathErr(err)
	}
	amountOut, err := fp.FromUint(amount)
	if err != nil {
		return nil, wrapMathErr(err)
	}
	if !amountOut.Lt(outMath.Reserve) {
		return nil, types.ErrInsufficientLiquidity
	}
	if amountOut.Gt(ratioLimit(outMath.Reserve, params.MaxOutRatio)) {
		return nil, types.ErrMaxOutRatioExceeded
	}

	fees, _, err := k.tradeInputs(ctx, params)
	if err != nil {
		return nil, err
	}
	changes, err := omnimath.CalculateBuyForHubStateChanges(outMath, amountOut, fees.AssetFee)
	if err != nil {
		return nil, wrapMathErr(err)
	}

	if changes.AmountIn.Gt(ratioLimit(outMath.HubReserve, params.MaxInRatio)) {
		return nil, types.ErrMaxInRatioExceeded
	}
	if err := k.checkBuyPayment(ctx, who, params.HubAssetID, changes.AmountIn, maxSellAmount); err != nil {
		return nil, err
	}
	if err := k.ensurePriceBarrier(ctx, params, out); err != nil {
		return nil, err
	}

	return &tradePlan{kind: TradeKindBuyForHub, assetIn: params.HubAssetID, assetOut: assetOut, out: out, changes: changes}, nil
}

func (k *Keeper) checkBuyPayment(ctx sdk.Context, who string, assetIn uint32, amountIn *uint256.Int, maxSellAmount math.Uint) error {
	required := fp.ToUint(amountIn)
	if who != "" && k.ledger.FreeBalance(ctx, assetIn, who).LT(required) {
		return errorsmod.Wrapf(types.ErrInsufficientBalance, "asset %d: need %s", assetIn, required)
	}
	if required.GT(maxSellAmount) {
		return errorsmod.Wrapf(types.ErrSellLimitExceeded, "need %s, limit %s", required, maxSellAmount)
	}
	return nil
}

// executeTrade runs the circuit breaker hooks, applies the plan and moves the funds.
func (k *Keeper) executeTrade(ctx sdk.Context, params types.Params, who string, plan *tradePlan) (*types.TradeResult, error) {
	changes := plan.changes
	pool := k.GetPoolState(ctx)

	if plan.in != nil {
		if err := k.beforeChange(ctx, *plan.in); err != nil {
			return nil, err
		}
	}
	if err := k.beforeChange(ctx, plan.out); err != nil {
		return nil, err
	}

	touched := make([]types.AssetReserveState, 0, 3)
	outMath, err := plan.out.Math()
	if err != nil {
		return nil, wrapMathErr(err)
	}
	newOutMath, err := outMath.Apply(changes.AssetOut)
	if err != nil {
		return nil, wrapMathErr(err)
	}
	touched = append(touched, plan.out.WithMath(newOutMath))

	if plan.in != nil {
		inMath, err := plan.in.Math()
		if err != nil {
			return nil, wrapMathErr(err)
		}
		newInMath, err := inMath.Apply(changes.AssetIn)
		if err != nil {
			return nil, wrapMathErr(err)
		}
		touched = append(touched, plan.in.WithMath(newInMath))
	}

	if changes.HDXHubAmount != nil && !changes.HDXHubAmount.IsZero() {
		if touched, err = k.creditNativeHub(ctx, params, touched, changes.HDXHubAmount); err != nil {
			return nil, err
		}
	}

	for _, asset := range touched {
		if asset.Reserve.IsZero() || asset.HubReserve.IsZero() {
			return nil, errorsmod.Wrapf(types.ErrInsufficientLiquidity, "asset %d would be drained", asset.AssetID)
		}
	}
	if plan.in != nil {
		if err := k.afterChange(ctx, touched[1]); err != nil {
			return nil, err
		}
	}
	if err := k.afterChange(ctx, touched[0]); err != nil {
		return nil, err
	}

	hubLiquidity, err := changes.DeltaHubLiquidity.Apply(fp.MustFromUint(pool.HubAssetLiquidity))
	if err != nil {
		return nil, wrapMathErr(err)
	}
	imbalance, err := pool.Imbalance.Math()
	if err != nil {
		return nil, wrapMathErr(err)
	}
	if imbalance, err = imbalance.Add(changes.DeltaImbalance); err != nil {
		return nil, wrapMathErr(err)
	}

	result := plan.result()
	if err := k.ledger.Transfer(ctx, plan.assetIn, who, k.poolAccount, result.AmountIn); err != nil {
		return nil, errorsmod.Wrap(err, "transfer asset in")
	}
	if err := k.ledger.Transfer(ctx, plan.assetOut, k.poolAccount, who, result.AmountOut); err != nil {
		return nil, errorsmod.Wrap(err, "transfer asset out")
	}
	if changes.BurnedHub != nil && !changes.BurnedHub.IsZero() {
		if err := k.ledger.Burn(ctx, params.HubAssetID, k.poolAccount, fp.ToUint(changes.BurnedHub)); err != nil {
			return nil, errorsmod.Wrap(err, "burn hub asset")
		}
	}

	for _, asset := range touched {
		k.SetAsset(ctx, asset)
	}
	pool.HubAssetLiquidity = fp.ToUint(hubLiquidity)
	pool.Imbalance = types.ImbalanceFromMath(imbalance)
	k.SetPoolState(ctx, pool)

	eventType := types.EventTypeSellExecuted
	if plan.kind == TradeKindBuy || plan.kind == TradeKindBuyForHub {
		eventType = types.EventTypeBuyExecuted
	}
	ctx.EventManager().EmitEvent(
		sdk.NewEvent(
			eventType,
			sdk.NewAttribute(types.AttributeKeyWho, who),
			sdk.NewAttribute(types.AttributeKeyAssetIn, formatAsset(result.AssetIn)),
			sdk.NewAttribute(types.AttributeKeyAssetOut, formatAsset(result.AssetOut)),
			sdk.NewAttribute(types.AttributeKeyAmountIn, result.AmountIn.String()),
			sdk.NewAttribute(types.AttributeKeyAmountOut, result.AmountOut.String()),
			sdk.NewAttribute(types.AttributeKeyHubAmount, changes.AssetOut.DeltaHubReserve.Value().Dec()),
			sdk.NewAttribute(types.AttributeKeyAssetFee, result.AssetFee.String()),
			sdk.NewAttribute(types.AttributeKeyProtocolFee, result.ProtocolFee.String()),
		),
	)

	recordTrade(plan.kind, result, touched...)
	recordPool(pool)
	k.logger.Info("Trade executed",
		"kind", plan.kind,
		"who", who,
		"asset_in", result.AssetIn,
		"asset_out", result.AssetOut,
		"amount_in", result.AmountIn.String(),
		"amount_out", result.AmountOut.String(),
	)
	return result, nil
}

// creditNativeHub adds the protocol fee share to the native asset's hub reserve.
func (k *Keeper) creditNativeHub(
	ctx sdk.Context,
	params types.Params,
	touched []types.AssetReserveState,
	amount *uint256.Int,
) ([]types.AssetReserveState, error) {
	idx := -1
	for i, asset := range touched {
		if asset.AssetID == params.NativeAssetID {
			idx = i
		}
	}
	if idx < 0 {
		native, err := k.mustGetAsset(ctx, params.NativeAssetID)
		if err != nil {
			return nil, err
		}
		touched = append(touched, native)
		idx = len(touched) - 1
	}
	hub, err := fp.CheckedAdd(fp.MustFromUint(touched[idx].HubReserve), amount)
	if err != nil {
		return nil, wrapMathErr(err)
	}
	touched[idx].HubReserve = fp.ToUint(hub)
	return touched, nil
}

func (k *Keeper) beforeChange(ctx sdk.Context, asset types.AssetReserveState) error {
	if k.limiter == nil {
		return nil
	}
	return k.limiter.BeforePoolStateChange(ctx, asset.AssetID, asset.Reserve)
}

func (k *Keeper) afterChange(ctx sdk.Context, asset types.AssetReserveState) error {
	if k.limiter == nil {
		return nil
	}
	return k.limiter.AfterPoolStateChange(ctx, asset.AssetID, asset.Reserve)
}

func (k *Keeper) tradeInputs(ctx sdk.Context, params types.Params) (omnimath.TradeFees, omnimath.SimpleImbalance, error) {
	assetFee, protocolFee, err := params.Fees()
	if err != nil {
		return omnimath.TradeFees{}, omnimath.SimpleImbalance{}, wrapMathErr(err)
	}
	imbalance, err := k.GetPoolState(ctx).Imbalance.Math()
	if err != nil {
		return omnimath.TradeFees{}, omnimath.SimpleImbalance{}, wrapMathErr(err)
	}
	return omnimath.TradeFees{AssetFee: assetFee, ProtocolFee: protocolFee}, imbalance, nil
}

func tradeOperands(in, out types.AssetReserveState, amount math.Uint) (inMath, outMath omnimath.AssetReserveState, value *uint256.Int, err error) {
	if inMath, err = in.Math(); err != nil {
		return inMath, outMath, nil, wrapMathErr(err)
	}
	if outMath, err = out.Math(); err != nil {
		return inMath, outMath, nil, wrapMathErr(err)
	}
	if value, err = fp.FromUint(amount); err != nil {
		return inMath, outMath, nil, wrapMathErr(err)
	}
	return inMath, outMath, value, nil
}

// ratioLimit returns floor(reserve / ratio).
func ratioLimit(reserve *uint256.Int, ratio uint64) *uint256.Int {
	if ratio == 0 {
		return new(uint256.Int).Set(reserve)
	}
	return new(uint256.Int).Div(reserve, uint256.NewInt(ratio))
}

// ensurePriceBarrier rejects the trade when the pre-trade spot price of asset is further
// than params.MaxPriceDifference from the oracle price. Missing oracle data passes.
func (k *Keeper) ensurePriceBarrier(ctx sdk.Context, params types.Params, asset types.AssetReserveState) error {
	if k.oracle == nil || params.MaxPriceDifference.IsNil() || params.MaxPriceDifference.IsZero() {
		return nil
	}
	ref, ok := k.oracle.GetPrice(ctx, params.HubAssetID, asset.AssetID)
	if !ok || !ref.IsValid() {
		return nil
	}
	refPrice, err := ref.Fixed()
	if err != nil || refPrice.IsZero() {
		return nil
	}
	spot, err := fp.FixedFromRational(fp.MustFromUint(asset.HubReserve), fp.MustFromUint(asset.Reserve))
	if err != nil {
		return wrapMathErr(err)
	}

	var diff fp.Fixed
	if spot.GT(refPrice) {
		diff, err = spot.Sub(refPrice)
	} else {
		diff, err = refPrice.Sub(spot)
	}
	if err != nil {
		return wrapMathErr(err)
	}
	deviation, err := diff.Quo(refPrice, fp.Up)
	if err != nil {
		return wrapMathErr(err)
	}
	limit, err := fp.FixedFromDec(params.MaxPriceDifference)
	if err != nil {
		return wrapMathErr(err)
	}
	if deviation.GT(limit) {
		return errorsmod.Wrapf(types.ErrPriceDifferenceTooHigh, "asset %d: deviation %s above %s",
			asset.AssetID, deviation.Dec(), params.MaxPriceDifference)
	}
	return nil
}
