package keeper

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"strconv"

	errorsmod "cosmossdk.io/errors"
	"cosmossdk.io/log"
	storetypes "cosmossdk.io/store/types"
	sdk "github.com/cosmos/cosmos-sdk/types"

	fp "github.com/openalpha/omnipool/pkg/fixedpoint"
	"github.com/openalpha/omnipool/pkg/omnimath"
	"github.com/openalpha/omnipool/x/omnipool/types"
)

// Store key prefixes
var (
	AssetKeyPrefix         = []byte{0x01}
	PositionKeyPrefix      = []byte{0x02}
	PoolStateKey           = []byte{0x03}
	ParamsKey              = []byte{0x04}
	PriceSnapshotKeyPrefix = []byte{0x05}
)

// Keeper manages the omnipool module state
type Keeper struct {
	storeKey storetypes.StoreKey

	ledger   types.TokenLedger
	registry types.AssetRegistry
	nfts     types.PositionNFTs
	limiter  types.LiquidityLimiter
	oracle   types.PriceOracle

	// poolAccount holds every reserve of the pool, including the hub asset.
	poolAccount string
	authority   string
	logger      log.Logger
}

// NewKeeper creates a new omnipool keeper. The price oracle defaults to the
// module's own per-block price snapshots.
func NewKeeper(
	storeKey storetypes.StoreKey,
	ledger types.TokenLedger,
	registry types.AssetRegistry,
	nfts types.PositionNFTs,
	limiter types.LiquidityLimiter,
	poolAccount string,
	authority string,
	logger log.Logger,
) *Keeper {
	k := &Keeper{
		storeKey:    storeKey,
		ledger:      ledger,
		registry:    registry,
		nfts:        nfts,
		limiter:     limiter,
		poolAccount: poolAccount,
		authority:   authority,
		logger:      logger.With("module", "x/omnipool"),
	}
	k.oracle = snapshotOracle{k: k}
	return k
}

// SetPriceOracle replaces the oracle used by the price barrier.
func (k *Keeper) SetPriceOracle(oracle types.PriceOracle) {
	k.oracle = oracle
}

// Logger returns the module logger
func (k *Keeper) Logger() log.Logger {
	return k.logger
}

// GetAuthority returns the governance authority address
func (k *Keeper) GetAuthority() string {
	return k.authority
}

// PoolAccount returns the account holding the pool reserves
func (k *Keeper) PoolAccount() string {
	return k.poolAccount
}

// GetStore returns the KVStore
func (k *Keeper) GetStore(ctx sdk.Context) storetypes.KVStore {
	return ctx.KVStore(k.storeKey)
}

func (k *Keeper) checkAuthority(who string) error {
	if who != k.authority {
		return errorsmod.Wrapf(types.ErrUnauthorized, "expected %s, got %s", k.authority, who)
	}
	return nil
}

// ============ Params ============

// GetParams returns the module params, or the defaults if none are stored
func (k *Keeper) GetParams(ctx sdk.Context) types.Params {
	bz := k.GetStore(ctx).Get(ParamsKey)
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
	k.GetStore(ctx).Set(ParamsKey, bz)
	return nil
}

// ============ Pool state ============

// GetPoolState returns the pool-wide state
func (k *Keeper) GetPoolState(ctx sdk.Context) types.PoolState {
	bz := k.GetStore(ctx).Get(PoolStateKey)
	if bz == nil {
		return types.DefaultPoolState()
	}
	var state types.PoolState
	if err := json.Unmarshal(bz, &state); err != nil {
		return types.DefaultPoolState()
	}
	return state
}

// SetPoolState saves the pool-wide state
func (k *Keeper) SetPoolState(ctx sdk.Context, state types.PoolState) {
	bz, _ := json.Marshal(state)
	k.GetStore(ctx).Set(PoolStateKey, bz)
}

// ============ Assets ============

func assetKey(assetID uint32) []byte {
	key := make([]byte, len(AssetKeyPrefix)+4)
	copy(key, AssetKeyPrefix)
	binary.BigEndian.PutUint32(key[len(AssetKeyPrefix):], assetID)
	return key
}

// GetAsset returns the reserve state of a listed asset
func (k *Keeper) GetAsset(ctx sdk.Context, assetID uint32) (types.AssetReserveState, bool) {
	bz := k.GetStore(ctx).Get(assetKey(assetID))
	if bz == nil {
		return types.AssetReserveState{}, false
	}
	var asset types.AssetReserveState
	if err := json.Unmarshal(bz, &asset); err != nil {
		return types.AssetReserveState{}, false
	}
	return asset, true
}

// SetAsset saves the reserve state of an asset
func (k *Keeper) SetAsset(ctx sdk.Context, asset types.AssetReserveState) {
	bz, _ := json.Marshal(asset)
	k.GetStore(ctx).Set(assetKey(asset.AssetID), bz)
}

// IsListed reports whether asset has a reserve state
func (k *Keeper) IsListed(ctx sdk.Context, assetID uint32) bool {
	return k.GetStore(ctx).Has(assetKey(assetID))
}

// IterateAssets calls cb for every listed asset in id order until cb returns true
func (k *Keeper) IterateAssets(ctx sdk.Context, cb func(types.AssetReserveState) bool) {
	iterator := storetypes.KVStorePrefixIterator(k.GetStore(ctx), AssetKeyPrefix)
	defer iterator.Close()

	for ; iterator.Valid(); iterator.Next() {
		var asset types.AssetReserveState
		if err := json.Unmarshal(iterator.Value(), &asset); err != nil {
			continue
		}
		if cb(asset) {
			return
		}
	}
}

// GetAllAssets returns all listed assets
func (k *Keeper) GetAllAssets(ctx sdk.Context) []types.AssetReserveState {
	var assets []types.AssetReserveState
	k.IterateAssets(ctx, func(a types.AssetReserveState) bool {
		assets = append(assets, a)
		return false
	})
	return assets
}

func (k *Keeper) mustGetAsset(ctx sdk.Context, assetID uint32) (types.AssetReserveState, error) {
	asset, found := k.GetAsset(ctx, assetID)
	if !found {
		return types.AssetReserveState{}, errorsmod.Wrapf(types.ErrAssetNotFound, "asset %d", assetID)
	}
	return asset, nil
}

// wrapMathErr maps arithmetic errors to module errors.
func wrapMathErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, fp.ErrOverflow):
		return errorsmod.Wrap(types.ErrMathOverflow, err.Error())
	case errors.Is(err, fp.ErrUnderflow):
		return errorsmod.Wrap(types.ErrMathUnderflow, err.Error())
	case errors.Is(err, fp.ErrDivisionByZero), errors.Is(err, omnimath.ErrZeroReserve):
		return errorsmod.Wrap(types.ErrDivisionByZero, err.Error())
	case errors.Is(err, omnimath.ErrInsufficientLiquidity):
		return errorsmod.Wrap(types.ErrInsufficientLiquidity, err.Error())
	case errors.Is(err, omnimath.ErrInvalidFee):
		return errorsmod.Wrap(types.ErrInvalidParams, err.Error())
	default:
		return err
	}
}

func formatID(id uint64) string {
	return strconv.FormatUint(id, 10)
}

func formatAsset(assetID uint32) string {
	return strconv.FormatUint(uint64(assetID), 10)
}
