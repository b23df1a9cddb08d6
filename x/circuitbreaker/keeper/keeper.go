package keeper

import (
	"context"
	"encoding/binary"
	"encoding/json"

	errorsmod "cosmossdk.io/errors"
	"cosmossdk.io/log"
	"cosmossdk.io/math"
	storetypes "cosmossdk.io/store/types"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/openalpha/omnipool/metrics"
	"github.com/openalpha/omnipool/x/circuitbreaker/types"
)

// Store key prefixes
var (
	ParamsKey            = []byte{0x01}
	AssetLimitKeyPrefix  = []byte{0x02}
	LiquidityRangePrefix = []byte{0x03} // transient store
)

// Keeper bounds the net per-block change of every asset reserve
type Keeper struct {
	storeKey  storetypes.StoreKey
	tStoreKey storetypes.StoreKey
	authority string
	logger    log.Logger
}

// NewKeeper creates a new circuit breaker keeper
func NewKeeper(storeKey, tStoreKey storetypes.StoreKey, authority string, logger log.Logger) *Keeper {
	return &Keeper{
		storeKey:  storeKey,
		tStoreKey: tStoreKey,
		authority: authority,
		logger:    logger.With("module", "x/circuitbreaker"),
	}
}

// Logger returns the module logger
func (k *Keeper) Logger() log.Logger {
	return k.logger
}

// GetAuthority returns the governance authority address
func (k *Keeper) GetAuthority() string {
	return k.authority
}

func assetKey(prefix []byte, assetID uint32) []byte {
	key := make([]byte, len(prefix)+4)
	copy(key, prefix)
	binary.BigEndian.PutUint32(key[len(prefix):], assetID)
	return key
}

// GetParams returns the module params
func (k *Keeper) GetParams(ctx sdk.Context) types.Params {
	bz := ctx.KVStore(k.storeKey).Get(ParamsKey)
	if bz == nil {
		return types.DefaultParams()
	}
	var params types.Params
	if err := json.Unmarshal(bz, &params); err != nil {
		return types.DefaultParams()
	}
	return params
}

// SetParams validates and stores the module params
func (k *Keeper) SetParams(ctx sdk.Context, params types.Params) error {
	if err := params.Validate(); err != nil {
		return errorsmod.Wrap(types.ErrInvalidParams, err.Error())
	}
	bz, err := json.Marshal(params)
	if err != nil {
		return err
	}
	ctx.KVStore(k.storeKey).Set(ParamsKey, bz)
	return nil
}

// ============ Trade volume limits ============

// GetTradeVolumeLimit returns the effective per-block limit of an asset
func (k *Keeper) GetTradeVolumeLimit(ctx sdk.Context, assetID uint32) math.LegacyDec {
	if limit, found := k.getAssetLimit(ctx, assetID); found {
		return limit
	}
	return k.GetParams(ctx).DefaultTradeVolumeLimit
}

func (k *Keeper) getAssetLimit(ctx sdk.Context, assetID uint32) (math.LegacyDec, bool) {
	bz := ctx.KVStore(k.storeKey).Get(assetKey(AssetLimitKeyPrefix, assetID))
	if bz == nil {
		return math.LegacyDec{}, false
	}
	var limit math.LegacyDec
	if err := json.Unmarshal(bz, &limit); err != nil {
		return math.LegacyDec{}, false
	}
	return limit, true
}

func (k *Keeper) setAssetLimit(ctx sdk.Context, assetID uint32, limit math.LegacyDec) {
	bz, _ := json.Marshal(limit)
	ctx.KVStore(k.storeKey).Set(assetKey(AssetLimitKeyPrefix, assetID), bz)
}

// SetTradeVolumeLimit overrides the limit of one asset. Governance only.
func (k *Keeper) SetTradeVolumeLimit(ctx sdk.Context, authority string, assetID uint32, limit math.LegacyDec) error {
	if authority != k.authority {
		return errorsmod.Wrapf(types.ErrUnauthorized, "expected %s, got %s", k.authority, authority)
	}
	if err := types.ValidateTradeVolumeLimit(limit); err != nil {
		return errorsmod.Wrap(types.ErrInvalidTradeVolumeLimit, err.Error())
	}

	k.setAssetLimit(ctx, assetID, limit)

	ctx.EventManager().EmitEvent(
		sdk.NewEvent(
			types.EventTypeTradeVolumeLimitChanged,
			sdk.NewAttribute(types.AttributeKeyAssetID, formatAsset(assetID)),
			sdk.NewAttribute(types.AttributeKeyLimit, limit.String()),
		),
	)
	k.logger.Info("Trade volume limit changed", "asset_id", assetID, "limit", limit.String())
	return nil
}

// GetAllAssetLimits returns every per-asset override
func (k *Keeper) GetAllAssetLimits(ctx sdk.Context) []types.AssetLimit {
	iterator := storetypes.KVStorePrefixIterator(ctx.KVStore(k.storeKey), AssetLimitKeyPrefix)
	defer iterator.Close()

	var limits []types.AssetLimit
	for ; iterator.Valid(); iterator.Next() {
		var limit math.LegacyDec
		if err := json.Unmarshal(iterator.Value(), &limit); err != nil {
			continue
		}
		limits = append(limits, types.AssetLimit{
			AssetID: binary.BigEndian.Uint32(iterator.Key()[len(AssetLimitKeyPrefix):]),
			Limit:   limit,
		})
	}
	return limits
}

// ============ Liquidity ranges ============

// GetLiquidityRange returns the range fixed for an asset in the current block
func (k *Keeper) GetLiquidityRange(ctx context.Context, assetID uint32) (types.LiquidityRange, bool) {
	sdkCtx := sdk.UnwrapSDKContext(ctx)
	bz := sdkCtx.TransientStore(k.tStoreKey).Get(assetKey(LiquidityRangePrefix, assetID))
	if bz == nil {
		return types.LiquidityRange{}, false
	}
	var r types.LiquidityRange
	if err := json.Unmarshal(bz, &r); err != nil {
		return types.LiquidityRange{}, false
	}
	return r, true
}

func (k *Keeper) setLiquidityRange(ctx sdk.Context, assetID uint32, r types.LiquidityRange) {
	bz, _ := json.Marshal(r)
	ctx.TransientStore(k.tStoreKey).Set(assetKey(LiquidityRangePrefix, assetID), bz)
}

// BeforePoolStateChange fixes the allowed range on the first touch of an asset in the block.
func (k *Keeper) BeforePoolStateChange(ctx context.Context, assetID uint32, initialLiquidity math.Uint) error {
	if _, found := k.GetLiquidityRange(ctx, assetID); found {
		return nil
	}
	sdkCtx := sdk.UnwrapSDKContext(ctx)
	r := types.NewLiquidityRange(initialLiquidity, k.GetTradeVolumeLimit(sdkCtx, assetID))
	k.setLiquidityRange(sdkCtx, assetID, r)
	return nil
}

// AfterPoolStateChange rejects a reserve outside the range fixed for this block.
func (k *Keeper) AfterPoolStateChange(ctx context.Context, assetID uint32, updatedLiquidity math.Uint) error {
	r, found := k.GetLiquidityRange(ctx, assetID)
	if !found {
		return errorsmod.Wrapf(types.ErrLiquidityLimitNotStoredForAsset, "asset %d", assetID)
	}

	var bound string
	var err error
	switch {
	case updatedLiquidity.LT(r.MinLimit):
		bound, err = "min", types.ErrMinTradeVolumePerBlockReached
	case updatedLiquidity.GT(r.MaxLimit):
		bound, err = "max", types.ErrMaxTradeVolumePerBlockReached
	default:
		return nil
	}

	sdkCtx := sdk.UnwrapSDKContext(ctx)
	metrics.GetCollector().RecordCircuitBreakerTrip(formatAsset(assetID), bound)
	k.logger.Info("Liquidity limit reached",
		"asset_id", assetID,
		"bound", bound,
		"liquidity", updatedLiquidity.String(),
		"min", r.MinLimit.String(),
		"max", r.MaxLimit.String(),
		"block", sdkCtx.BlockHeight(),
	)
	return errorsmod.Wrapf(err, "asset %d liquidity %s outside [%s, %s]", assetID, updatedLiquidity, r.MinLimit, r.MaxLimit)
}

// ClearLiquidityRanges drops every range of the block. Calling it with nothing stored is a no-op.
func (k *Keeper) ClearLiquidityRanges(ctx sdk.Context) int {
	store := ctx.TransientStore(k.tStoreKey)
	iterator := storetypes.KVStorePrefixIterator(store, LiquidityRangePrefix)

	var keys [][]byte
	for ; iterator.Valid(); iterator.Next() {
		keys = append(keys, iterator.Key())
	}
	iterator.Close()

	for _, key := range keys {
		store.Delete(key)
	}
	return len(keys)
}
