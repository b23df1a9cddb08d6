package keeper

import (
	"context"

	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/openalpha/omnipool/x/dca/types"
)

// QueryServer serves read-only scheduler queries
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

// Schedule returns a schedule with its bond, remaining recurrences and planning
func (q *QueryServer) Schedule(ctx context.Context, id uint64) (types.ScheduleState, error) {
	return q.keeper.GetScheduleState(sdk.UnwrapSDKContext(ctx), id)
}

// SchedulesByOwner returns every schedule of owner
func (q *QueryServer) SchedulesByOwner(ctx context.Context, owner string) ([]types.ScheduleState, error) {
	sdkCtx := sdk.UnwrapSDKContext(ctx)
	ids := q.keeper.GetSchedulesByOwner(sdkCtx, owner)
	states := make([]types.ScheduleState, 0, len(ids))
	for _, id := range ids {
		state, err := q.keeper.GetScheduleState(sdkCtx, id)
		if err != nil {
			return nil, err
		}
		states = append(states, state)
	}
	return states, nil
}

// PlannedInBlock returns the ids due in block, in execution order
func (q *QueryServer) PlannedInBlock(ctx context.Context, block uint64) []uint64 {
	return q.keeper.GetScheduleIDsPerBlock(sdk.UnwrapSDKContext(ctx), block)
}
