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

// AddLiquidity deposits amount of asset and mints a position to who.
func (k *Keeper) AddLiquidity(ctx sdk.Context, who string, assetID uint32, amount math.Uint) (uint64, error) {
	params := k.GetParams(ctx)
	if amount.LT(params.MinimumPoolLiquidity) {
		return 0, errorsmod.Wrapf(types.ErrInsufficientLiquidity, "minimum is %s", params.MinimumPoolLiquidity)
	}
	asset, err := k.mustGetAsset(ctx, assetID)
	if err != nil {
		return 0, err
	}
	if !asset.Tradable.Contains(types.TradabilityAddLiquidity) {
		return 0, errorsmod.Wrapf(types.ErrNotAllowed, "asset %d", assetID)
	}
	if k.ledger.FreeBalance(ctx, assetID, who).LT(amount) {
		return 0, errorsmod.Wrapf(types.ErrInsufficientBalance, "asset %d", assetID)
	}

	pool := k.GetPoolState(ctx)
	state, err := asset.Math()
	if err != nil {
		return 0, wrapMathErr(err)
	}
	value, err := fp.FromUint(amount)
	if err != nil {
		return 0, wrapMathErr(err)
	}
	imbalance, err := pool.Imbalance.Math()
	if err != nil {
		return 0, wrapMathErr(err)
	}
	hubLiquidity := fp.MustFromUint(pool.HubAssetLiquidity)

	changes, err := omnimath.CalculateAddLiquidityStateChanges(state, value, imbalance, hubLiquidity)
	if err != nil {
		return 0, wrapMathErr(err)
	}
	deltaHub := changes.Asset.DeltaHubReserve.Value()
	if changes.Asset.DeltaShares.IsZero() {
		return 0, errorsmod.Wrap(types.ErrInsufficientLiquidity, "deposit mints no shares")
	}

	newHubLiquidity, err := changes.DeltaHubLiquidity.Apply(hubLiquidity)
	if err != nil {
		return 0, wrapMathErr(err)
	}
	newState, err := state.Apply(changes.Asset)
	if err != nil {
		return 0, wrapMathErr(err)
	}
	cap, err := fp.FixedFromDec(asset.Cap)
	if err != nil {
		return 0, wrapMathErr(err)
	}
	if omnimath.ExceedsWeightCap(newState.HubReserve, newHubLiquidity, cap) {
		return 0, types.ErrAssetWeightCapExceeded
	}

	deltaTVL, err := k.tvlOf(ctx, params, deltaHub)
	if err != nil {
		return 0, err
	}
	totalTVL, err := fp.CheckedAdd(fp.MustFromUint(pool.TotalTVL), deltaTVL)
	if err != nil {
		return 0, wrapMathErr(err)
	}
	if totalTVL.Gt(fp.MustFromUint(pool.TVLCap)) {
		return 0, types.ErrTVLCapExceeded
	}
	if newState.TVL, err = fp.CheckedAdd(newState.TVL, deltaTVL); err != nil {
		return 0, wrapMathErr(err)
	}
	newImbalance, err := imbalance.Add(changes.DeltaImbalance)
	if err != nil {
		return 0, wrapMathErr(err)
	}
	pool.Imbalance = types.ImbalanceFromMath(newImbalance)

	updated := asset.WithMath(newState)
	if err := k.beforeChange(ctx, asset); err != nil {
		return 0, err
	}
	if err := k.afterChange(ctx, updated); err != nil {
		return 0, err
	}

	if err := k.ledger.Transfer(ctx, assetID, who, k.poolAccount, amount); err != nil {
		return 0, errorsmod.Wrap(err, "transfer liquidity")
	}
	if !deltaHub.IsZero() {
		if err := k.ledger.Mint(ctx, params.HubAssetID, k.poolAccount, fp.ToUint(deltaHub)); err != nil {
			return 0, errorsmod.Wrap(err, "mint hub asset")
		}
	}

	k.SetAsset(ctx, updated)
	pool.HubAssetLiquidity = fp.ToUint(newHubLiquidity)
	pool.TotalTVL = fp.ToUint(totalTVL)
	k.SetPoolState(ctx, pool)

	positionID, err := k.createPosition(ctx, who, types.Position{
		AssetID: assetID,
		Amount:  amount,
		Shares:  fp.ToUint(changes.Asset.DeltaShares.Value()),
		Price:   state.PriceRatio(),
	})
	if err != nil {
		return 0, err
	}

	ctx.EventManager().EmitEvent(
		sdk.NewEvent(
			types.EventTypeLiquidityAdded,
			sdk.NewAttribute(types.AttributeKeyWho, who),
			sdk.NewAttribute(types.AttributeKeyAssetID, formatAsset(assetID)),
			sdk.NewAttribute(types.AttributeKeyAmount, amount.String()),
			sdk.NewAttribute(types.AttributeKeyPositionID, formatID(positionID)),
		),
	)
	GetMetrics().RecordLiquidity("add", formatAsset(assetID))
	recordPool(pool)
	k.logger.Info("Liquidity added",
		"who", who,
		"asset_id", assetID,
		"amount", amount.String(),
		"position_id", positionID,
	)
	return positionID, nil
}

// RemoveLiquidity burns shares of a position owned by who and pays out the asset, plus
// hub asset when the price rose since the deposit.
func (k *Keeper) RemoveLiquidity(ctx sdk.Context, who string, positionID uint64, shares math.Uint) (*types.RemoveLiquidityResult, error) {
	params := k.GetParams(ctx)
	position, found := k.GetPosition(ctx, positionID)
	if !found {
		return nil, errorsmod.Wrapf(types.ErrPositionNotFound, "position %d", positionID)
	}
	owner, ok := k.nfts.Owner(ctx, params.PositionCollectionID, positionID)
	if !ok || owner != who {
		return nil, errorsmod.Wrapf(types.ErrForbidden, "position %d", positionID)
	}
	if shares.IsZero() {
		return nil, errorsmod.Wrap(types.ErrInvalidAmount, "shares must be positive")
	}
	if shares.GT(position.Shares) {
		return nil, errorsmod.Wrapf(types.ErrInsufficientShares, "position holds %s", position.Shares)
	}
	asset, err := k.mustGetAsset(ctx, position.AssetID)
	if err != nil {
		return nil, err
	}
	if !asset.Tradable.Contains(types.TradabilityRemoveLiquidity) {
		return nil, errorsmod.Wrapf(types.ErrNotAllowed, "asset %d", position.AssetID)
	}

	pool := k.GetPoolState(ctx)
	state, err := asset.Math()
	if err != nil {
		return nil, wrapMathErr(err)
	}
	positionMath, err := position.Math()
	if err != nil {
		return nil, wrapMathErr(err)
	}
	sharesRemoved, err := fp.FromUint(shares)
	if err != nil {
		return nil, wrapMathErr(err)
	}
	imbalance, err := pool.Imbalance.Math()
	if err != nil {
		return nil, wrapMathErr(err)
	}
	withdrawalFee, err := fp.FixedFromDec(params.WithdrawalFee)
	if err != nil {
		return nil, wrapMathErr(err)
	}
	hubLiquidity := fp.MustFromUint(pool.HubAssetLiquidity)

	changes, err := omnimath.CalculateRemoveLiquidityStateChanges(state, sharesRemoved, positionMath, imbalance, hubLiquidity, withdrawalFee)
	if err != nil {
		return nil, wrapMathErr(err)
	}

	newState, err := state.Apply(changes.Asset)
	if err != nil {
		return nil, wrapMathErr(err)
	}
	if newState.Reserve.IsZero() || newState.HubReserve.IsZero() {
		return nil, errorsmod.Wrapf(types.ErrInsufficientLiquidity, "asset %d would be drained", asset.AssetID)
	}
	deltaTVL, err := k.tvlOf(ctx, params, changes.Asset.DeltaHubReserve.Value())
	if err != nil {
		return nil, err
	}
	newState.TVL = saturatingSub(newState.TVL, deltaTVL)
	newHubLiquidity, err := changes.DeltaHubLiquidity.Apply(hubLiquidity)
	if err != nil {
		return nil, wrapMathErr(err)
	}
	newImbalance, err := imbalance.Add(changes.DeltaImbalance)
	if err != nil {
		return nil, wrapMathErr(err)
	}

	updated := asset.WithMath(newState)
	if err := k.beforeChange(ctx, asset); err != nil {
		return nil, err
	}
	if err := k.afterChange(ctx, updated); err != nil {
		return nil, err
	}

	result := &types.RemoveLiquidityResult{
		PositionID:    positionID,
		AssetID:       position.AssetID,
		Amount:        fp.ToUint(changes.ReserveToLP),
		HubAmount:     fp.ToUint(changes.LPHubAmount),
		WithdrawalFee: fp.ToUint(changes.WithdrawalFee),
		Destroyed:     shares.Equal(position.Shares),
	}

	if err := k.ledger.Transfer(ctx, position.AssetID, k.poolAccount, who, result.Amount); err != nil {
		return nil, errorsmod.Wrap(err, "transfer liquidity")
	}
	if !result.HubAmount.IsZero() {
		if err := k.ledger.Transfer(ctx, params.HubAssetID, k.poolAccount, who, result.HubAmount); err != nil {
			return nil, errorsmod.Wrap(err, "transfer hub asset")
		}
	}
	if changes.BurnedHub != nil && !changes.BurnedHub.IsZero() {
		if err := k.ledger.Burn(ctx, params.HubAssetID, k.poolAccount, fp.ToUint(changes.BurnedHub)); err != nil {
			return nil, errorsmod.Wrap(err, "burn hub asset")
		}
	}

	k.SetAsset(ctx, updated)
	pool.HubAssetLiquidity = fp.ToUint(newHubLiquidity)
	pool.TotalTVL = fp.ToUint(saturatingSub(fp.MustFromUint(pool.TotalTVL), deltaTVL))
	pool.Imbalance = types.ImbalanceFromMath(newImbalance)
	k.SetPoolState(ctx, pool)

	if result.Destroyed {
		k.DeletePosition(ctx, positionID)
		if err := k.nfts.Burn(ctx, params.PositionCollectionID, positionID); err != nil {
			return nil, errorsmod.Wrapf(err, "burn position %d", positionID)
		}
		ctx.EventManager().EmitEvent(
			sdk.NewEvent(
				types.EventTypePositionDestroyed,
				sdk.NewAttribute(types.AttributeKeyPositionID, formatID(positionID)),
				sdk.NewAttribute(types.AttributeKeyOwner, who),
			),
		)
	} else {
		position.Amount = position.Amount.Sub(math.MinUint(fp.ToUint(changes.DeltaPosition), position.Amount))
		position.Shares = position.Shares.Sub(shares)
		k.SetPosition(ctx, position)
		ctx.EventManager().EmitEvent(
			sdk.NewEvent(
				types.EventTypePositionUpdated,
				sdk.NewAttribute(types.AttributeKeyPositionID, formatID(positionID)),
				sdk.NewAttribute(types.AttributeKeyOwner, who),
				sdk.NewAttribute(types.AttributeKeyAmount, position.Amount.String()),
				sdk.NewAttribute(types.AttributeKeyShares, position.Shares.String()),
			),
		)
	}

	ctx.EventManager().EmitEvent(
		sdk.NewEvent(
			types.EventTypeLiquidityRemoved,
			sdk.NewAttribute(types.AttributeKeyWho, who),
			sdk.NewAttribute(types.AttributeKeyPositionID, formatID(positionID)),
			sdk.NewAttribute(types.AttributeKeyAssetID, formatAsset(position.AssetID)),
			sdk.NewAttribute(types.AttributeKeyShares, shares.String()),
			sdk.NewAttribute(types.AttributeKeyAmount, result.Amount.String()),
			sdk.NewAttribute(types.AttributeKeyHubAmount, result.HubAmount.String()),
		),
	)
	GetMetrics().RecordLiquidity("remove", formatAsset(position.AssetID))
	recordPool(pool)
	k.logger.Info("Liquidity removed",
		"who", who,
		"position_id", positionID,
		"shares", shares.String(),
		"amount", result.Amount.String(),
		"hub_amount", result.HubAmount.String(),
	)
	return result, nil
}

// tvlOf values a hub amount in stable units.
func (k *Keeper) tvlOf(ctx sdk.Context, params types.Params, hubAmount *uint256.Int) (*uint256.Int, error) {
	stable, err := k.mustGetAsset(ctx, params.StableAssetID)
	if err != nil {
		return nil, err
	}
	stableMath, err := stable.Math()
	if err != nil {
		return nil, wrapMathErr(err)
	}
	tvl, err := omnimath.CalculateTVL(hubAmount, stableMath)
	if err != nil {
		return nil, wrapMathErr(err)
	}
	return tvl, nil
}

func saturatingSub(x, y *uint256.Int) *uint256.Int {
	if y.Gt(x) {
		return fp.Zero()
	}
	return new(uint256.Int).Sub(x, y)
}
