package keeper

import (
	errorsmod "cosmossdk.io/errors"
	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/holiman/uint256"

	fp "github.com/openalpha/omnipool/pkg/fixedpoint"
	"github.com/openalpha/omnipool/pkg/omnimath"
	"github.com/openalpha/omnipool/x/omnipool/types"
)

func validateCap(cap math.LegacyDec) error {
	if cap.IsNil() || !cap.IsPositive() || cap.GT(math.LegacyOneDec()) {
		return errorsmod.Wrapf(types.ErrInvalidWeightCap, "%s", cap)
	}
	return nil
}

// hubForPrice returns floor(price * reserve).
func hubForPrice(price math.LegacyDec, reserve *uint256.Int) (*uint256.Int, error) {
	if price.IsNil() || !price.IsPositive() {
		return nil, types.ErrInvalidInitialAssetPrice
	}
	p, err := fp.FixedFromDec(price)
	if err != nil {
		return nil, wrapMathErr(err)
	}
	hub, err := p.MulInt(reserve, fp.Down)
	if err != nil {
		return nil, wrapMathErr(err)
	}
	if hub.IsZero() {
		return nil, errorsmod.Wrap(types.ErrInvalidInitialAssetPrice, "hub reserve rounds to zero")
	}
	return hub, nil
}

// InitializePool lists the stable and native assets using the balances the pool account
// already holds, and mints the matching hub asset.
func (k *Keeper) InitializePool(
	ctx sdk.Context,
	authority string,
	stablePrice, nativePrice math.LegacyDec,
	stableCap, nativeCap math.LegacyDec,
) error {
	if err := k.checkAuthority(authority); err != nil {
		return err
	}
	pool := k.GetPoolState(ctx)
	params := k.GetParams(ctx)
	if pool.Initialized || k.IsListed(ctx, params.StableAssetID) || k.IsListed(ctx, params.NativeAssetID) {
		return errorsmod.Wrap(types.ErrAssetAlreadyAdded, "pool already initialized")
	}
	if stablePrice.IsNil() || !stablePrice.IsPositive() || nativePrice.IsNil() || !nativePrice.IsPositive() {
		return types.ErrInvalidInitialAssetPrice
	}
	if !k.registry.Exists(ctx, params.StableAssetID) {
		return errorsmod.Wrapf(types.ErrAssetNotRegistered, "stable asset %d", params.StableAssetID)
	}
	if !k.registry.Exists(ctx, params.NativeAssetID) {
		return errorsmod.Wrapf(types.ErrAssetNotRegistered, "native asset %d", params.NativeAssetID)
	}
	if err := validateCap(stableCap); err != nil {
		return err
	}
	if err := validateCap(nativeCap); err != nil {
		return err
	}

	stableReserve, err := fp.FromUint(k.ledger.FreeBalance(ctx, params.StableAssetID, k.poolAccount))
	if err != nil {
		return wrapMathErr(err)
	}
	nativeReserve, err := fp.FromUint(k.ledger.FreeBalance(ctx, params.NativeAssetID, k.poolAccount))
	if err != nil {
		return wrapMathErr(err)
	}
	if stableReserve.IsZero() || nativeReserve.IsZero() {
		return types.ErrMissingBalance
	}

	stableHub, err := hubForPrice(stablePrice, stableReserve)
	if err != nil {
		return err
	}
	nativeHub, err := hubForPrice(nativePrice, nativeReserve)
	if err != nil {
		return err
	}

	stableMath := omnimath.AssetReserveState{
		Reserve: stableReserve, HubReserve: stableHub,
		Shares: stableReserve, ProtocolShares: stableReserve,
	}
	if stableMath.TVL, err = omnimath.CalculateTVL(stableHub, stableMath); err != nil {
		return wrapMathErr(err)
	}
	nativeTVL, err := omnimath.CalculateTVL(nativeHub, stableMath)
	if err != nil {
		return wrapMathErr(err)
	}
	hubTotal, err := fp.CheckedAdd(stableHub, nativeHub)
	if err != nil {
		return wrapMathErr(err)
	}
	totalTVL, err := fp.CheckedAdd(stableMath.TVL, nativeTVL)
	if err != nil {
		return wrapMathErr(err)
	}
	if totalTVL.Gt(fp.MustFromUint(pool.TVLCap)) {
		return types.ErrTVLCapExceeded
	}

	if err := k.ledger.Mint(ctx, params.HubAssetID, k.poolAccount, fp.ToUint(hubTotal)); err != nil {
		return errorsmod.Wrap(err, "mint hub asset")
	}

	stable := types.NewAssetReserveState(params.StableAssetID,
		fp.ToUint(stableReserve), fp.ToUint(stableHub), fp.ToUint(stableReserve), fp.ToUint(stableMath.TVL), stableCap)
	native := types.NewAssetReserveState(params.NativeAssetID,
		fp.ToUint(nativeReserve), fp.ToUint(nativeHub), fp.ToUint(nativeReserve), fp.ToUint(nativeTVL), nativeCap)
	k.SetAsset(ctx, stable)
	k.SetAsset(ctx, native)

	pool.Initialized = true
	pool.HubAssetLiquidity = fp.ToUint(hubTotal)
	pool.TotalTVL = fp.ToUint(totalTVL)
	pool.HubAssetTradability = types.TradabilitySell
	k.SetPoolState(ctx, pool)

	for _, asset := range []types.AssetReserveState{stable, native} {
		k.emitTokenAdded(ctx, asset, asset.Price())
	}

	k.logger.Info("Omnipool initialized",
		"stable_asset", params.StableAssetID,
		"native_asset", params.NativeAssetID,
		"hub_liquidity", pool.HubAssetLiquidity.String(),
	)
	return nil
}

// AddToken lists asset using the balance the pool account holds of it. When owner is
// the pool account the initial liquidity is protocol owned; otherwise owner receives a
// position for it.
func (k *Keeper) AddToken(
	ctx sdk.Context,
	authority string,
	assetID uint32,
	initialPrice math.LegacyDec,
	weightCap math.LegacyDec,
	owner string,
) (uint64, error) {
	if err := k.checkAuthority(authority); err != nil {
		return 0, err
	}
	pool := k.GetPoolState(ctx)
	if !pool.Initialized {
		return 0, types.ErrPoolNotInitialized
	}
	params := k.GetParams(ctx)
	if assetID == params.HubAssetID || k.IsListed(ctx, assetID) {
		return 0, errorsmod.Wrapf(types.ErrAssetAlreadyAdded, "asset %d", assetID)
	}
	if !k.registry.Exists(ctx, assetID) {
		return 0, errorsmod.Wrapf(types.ErrAssetNotRegistered, "asset %d", assetID)
	}
	if err := validateCap(weightCap); err != nil {
		return 0, err
	}

	reserve, err := fp.FromUint(k.ledger.FreeBalance(ctx, assetID, k.poolAccount))
	if err != nil {
		return 0, wrapMathErr(err)
	}
	if reserve.IsZero() {
		return 0, errorsmod.Wrapf(types.ErrMissingBalance, "asset %d", assetID)
	}
	hub, err := hubForPrice(initialPrice, reserve)
	if err != nil {
		return 0, err
	}

	hubLiquidity := fp.MustFromUint(pool.HubAssetLiquidity)
	newHubLiquidity, err := fp.CheckedAdd(hubLiquidity, hub)
	if err != nil {
		return 0, wrapMathErr(err)
	}
	cap, err := fp.FixedFromDec(weightCap)
	if err != nil {
		return 0, wrapMathErr(err)
	}
	if omnimath.ExceedsWeightCap(hub, newHubLiquidity, cap) {
		return 0, types.ErrAssetWeightCapExceeded
	}

	stable, err := k.mustGetAsset(ctx, params.StableAssetID)
	if err != nil {
		return 0, err
	}
	stableMath, err := stable.Math()
	if err != nil {
		return 0, wrapMathErr(err)
	}
	tvl, err := omnimath.CalculateTVL(hub, stableMath)
	if err != nil {
		return 0, wrapMathErr(err)
	}
	totalTVL, err := fp.CheckedAdd(fp.MustFromUint(pool.TotalTVL), tvl)
	if err != nil {
		return 0, wrapMathErr(err)
	}
	if totalTVL.Gt(fp.MustFromUint(pool.TVLCap)) {
		return 0, types.ErrTVLCapExceeded
	}

	protocolShares := reserve
	if owner != k.poolAccount {
		protocolShares = fp.Zero()
	}

	if err := k.ledger.Mint(ctx, params.HubAssetID, k.poolAccount, fp.ToUint(hub)); err != nil {
		return 0, errorsmod.Wrap(err, "mint hub asset")
	}

	asset := types.NewAssetReserveState(assetID,
		fp.ToUint(reserve), fp.ToUint(hub), fp.ToUint(protocolShares), fp.ToUint(tvl), weightCap)
	k.SetAsset(ctx, asset)

	pool.HubAssetLiquidity = fp.ToUint(newHubLiquidity)
	pool.TotalTVL = fp.ToUint(totalTVL)
	k.SetPoolState(ctx, pool)

	var positionID uint64
	if owner != k.poolAccount {
		positionID, err = k.createPosition(ctx, owner, types.Position{
			AssetID: assetID,
			Amount:  asset.Reserve,
			Shares:  asset.Shares,
			Price:   fp.NewRatio(hub, reserve),
		})
		if err != nil {
			return 0, err
		}
	}

	k.emitTokenAdded(ctx, asset, initialPrice)
	k.logger.Info("Token added",
		"asset_id", assetID,
		"reserve", asset.Reserve.String(),
		"hub_reserve", asset.HubReserve.String(),
		"owner", owner,
	)
	return positionID, nil
}

func (k *Keeper) emitTokenAdded(ctx sdk.Context, asset types.AssetReserveState, price math.LegacyDec) {
	ctx.EventManager().EmitEvent(
		sdk.NewEvent(
			types.EventTypeTokenAdded,
			sdk.NewAttribute(types.AttributeKeyAssetID, formatAsset(asset.AssetID)),
			sdk.NewAttribute(types.AttributeKeyAmount, asset.Reserve.String()),
			sdk.NewAttribute(types.AttributeKeyHubAmount, asset.HubReserve.String()),
			sdk.NewAttribute(types.AttributeKeyPrice, price.String()),
		),
	)
	GetMetrics().RecordAssetState(formatAsset(asset.AssetID), toFloat(asset.Reserve), toFloat(asset.HubReserve))
}

// ============ Administration ============

// SetAssetTradableState replaces the tradability flags of asset. The hub asset only
// accepts sell and buy flags.
func (k *Keeper) SetAssetTradableState(ctx sdk.Context, authority string, assetID uint32, state types.Tradability) error {
	if err := k.checkAuthority(authority); err != nil {
		return err
	}
	if !state.IsValid() {
		return errorsmod.Wrapf(types.ErrNotAllowed, "invalid tradability %d", state)
	}

	if assetID == k.GetParams(ctx).HubAssetID {
		if state.Contains(types.TradabilityAddLiquidity) || state.Contains(types.TradabilityRemoveLiquidity) {
			return errorsmod.Wrap(types.ErrNotAllowed, "hub asset supports only sell and buy")
		}
		pool := k.GetPoolState(ctx)
		pool.HubAssetTradability = state
		k.SetPoolState(ctx, pool)
	} else {
		asset, err := k.mustGetAsset(ctx, assetID)
		if err != nil {
			return err
		}
		asset.Tradable = state
		k.SetAsset(ctx, asset)
	}

	ctx.EventManager().EmitEvent(
		sdk.NewEvent(
			types.EventTypeTradableStateUpdated,
			sdk.NewAttribute(types.AttributeKeyAssetID, formatAsset(assetID)),
			sdk.NewAttribute(types.AttributeKeyTradable, state.String()),
		),
	)
	return nil
}

// SetAssetWeightCap updates the weight cap of a listed asset
func (k *Keeper) SetAssetWeightCap(ctx sdk.Context, authority string, assetID uint32, cap math.LegacyDec) error {
	if err := k.checkAuthority(authority); err != nil {
		return err
	}
	if err := validateCap(cap); err != nil {
		return err
	}
	asset, err := k.mustGetAsset(ctx, assetID)
	if err != nil {
		return err
	}
	asset.Cap = cap
	k.SetAsset(ctx, asset)

	ctx.EventManager().EmitEvent(
		sdk.NewEvent(
			types.EventTypeWeightCapUpdated,
			sdk.NewAttribute(types.AttributeKeyAssetID, formatAsset(assetID)),
			sdk.NewAttribute(types.AttributeKeyCap, cap.String()),
		),
	)
	return nil
}

// SetTVLCap updates the pool-wide TVL cap
func (k *Keeper) SetTVLCap(ctx sdk.Context, authority string, cap math.Uint) error {
	if err := k.checkAuthority(authority); err != nil {
		return err
	}
	if _, err := fp.FromUint(cap); err != nil {
		return wrapMathErr(err)
	}
	pool := k.GetPoolState(ctx)
	pool.TVLCap = cap
	k.SetPoolState(ctx, pool)

	ctx.EventManager().EmitEvent(
		sdk.NewEvent(
			types.EventTypeTVLCapUpdated,
			sdk.NewAttribute(types.AttributeKeyCap, cap.String()),
		),
	)
	return nil
}
