package keeper

import (
	"context"

	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/openalpha/omnipool/x/circuitbreaker/types"
)

var _ types.MsgServer = (*msgServer)(nil)

type msgServer struct {
	Keeper *Keeper
}

// NewMsgServerImpl returns an implementation of the MsgServer interface
func NewMsgServerImpl(keeper *Keeper) types.MsgServer {
	return &msgServer{Keeper: keeper}
}

// SetTradeVolumeLimit handles MsgSetTradeVolumeLimit
func (m *msgServer) SetTradeVolumeLimit(ctx context.Context, msg *types.MsgSetTradeVolumeLimit) (*types.MsgSetTradeVolumeLimitResponse, error) {
	limit, err := msg.ParseLimit()
	if err != nil {
		return nil, err
	}
	if err := m.Keeper.SetTradeVolumeLimit(sdk.UnwrapSDKContext(ctx), msg.Authority, msg.AssetID, limit); err != nil {
		return nil, err
	}
	return &types.MsgSetTradeVolumeLimitResponse{}, nil
}
