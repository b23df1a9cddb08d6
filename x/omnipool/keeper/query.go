package keeper

import (
	"context"

	errorsmod "cosmossdk.io/errors"
	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	fp "github.com/openalpha/omnipool/pkg/fixedpoint"
	"github.com/openalpha/omnipool/x/omnipool/types"
)

// QueryServer serves read-only omnipool queries
type QueryServer struct {
	keeper *Keeper
}

// NewQueryServerImpl creates a new QueryServer instance
func NewQueryServerImpl(keeper *Keeper) *QueryServer {
	return &QueryServer{keeper: keeper}
}

// Params returns the module params
func (q *QueryServer) Params(ctx context.Context) types.Params {
	return q.keeper.GetParams(sdk.UnwrapSDKContext(ctx))
}

// Pool returns the pool-wide state
func (q *QueryServer) Pool(ctx context.Context) types.PoolState {
	return q.keeper.GetPoolState(sdk.UnwrapSDKContext(ctx))
}

// Asset returns one listed asset
func (q *QueryServer) Asset(ctx context.Context, assetID uint32) (types.AssetReserveState, error) {
	return q.keeper.mustGetAsset(sdk.UnwrapSDKContext(ctx), assetID)
}

// Assets returns listed assets with offset/limit pagination
func (q *QueryServer) Assets(ctx context.Context, offset, limit uint64) ([]types.AssetReserveState, uint64) {
	all := q.keeper.GetAllAssets(sdk.UnwrapSDKContext(ctx))
	total := uint64(len(all))
	if offset >= total {
		return []types.AssetReserveState{}, total
	}
	end := offset + limit
	if end > total || limit == 0 {
		end = total
	}
	return all[offset:end], total
}

// AssetsByWeight returns the weight ranking
func (q *QueryServer) AssetsByWeight(ctx context.Context, limit int) []AssetWeight {
	return q.keeper.AssetsByWeight(sdk.UnwrapSDKContext(ctx), limit)
}

// PositionView is a position together with its owner.
type PositionView struct {
	types.Position
	Owner string `json:"owner"`
}

// Position returns a position and its owner
func (q *QueryServer) Position(ctx context.Context, positionID uint64) (PositionView, error) {
	sdkCtx := sdk.UnwrapSDKContext(ctx)
	position, found := q.keeper.GetPosition(sdkCtx, positionID)
	if !found {
		return PositionView{}, errorsmod.Wrapf(types.ErrPositionNotFound, "position %d", positionID)
	}
	owner, _ := q.keeper.PositionOwner(sdkCtx, positionID)
	return PositionView{Position: position, Owner: owner}, nil
}

// SpotPrice returns hub_reserve / reserve of an asset
func (q *QueryServer) SpotPrice(ctx context.Context, assetID uint32) (math.LegacyDec, error) {
	asset, err := q.keeper.mustGetAsset(sdk.UnwrapSDKContext(ctx), assetID)
	if err != nil {
		return math.LegacyDec{}, err
	}
	return asset.Price(), nil
}

// QuoteSell prices a sell without executing it
func (q *QueryServer) QuoteSell(ctx context.Context, assetIn, assetOut uint32, amount math.Uint) (*types.TradeResult, error) {
	return q.keeper.SimulateSell(sdk.UnwrapSDKContext(ctx), assetIn, assetOut, amount, math.ZeroUint())
}

// QuoteBuy prices a buy without executing it
func (q *QueryServer) QuoteBuy(ctx context.Context, assetOut, assetIn uint32, amount math.Uint) (*types.TradeResult, error) {
	return q.keeper.SimulateBuy(sdk.UnwrapSDKContext(ctx), assetOut, assetIn, amount, fp.ToUint(fp.MaxBalance))
}
