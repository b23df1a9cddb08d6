package keeper

import (
	"context"

	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/openalpha/omnipool/x/dca/types"
)

var _ types.MsgServer = (*msgServer)(nil)

type msgServer struct {
	Keeper *Keeper
}

// NewMsgServerImpl returns an implementation of the MsgServer interface
func NewMsgServerImpl(keeper *Keeper) types.MsgServer {
	return &msgServer{Keeper: keeper}
}

// Schedule handles MsgSchedule
func (m *msgServer) Schedule(ctx context.Context, msg *types.MsgSchedule) (*types.MsgScheduleResponse, error) {
	schedule, err := msg.ToSchedule()
	if err != nil {
		return nil, err
	}
	var start *uint64
	if msg.StartBlock != 0 {
		start = &msg.StartBlock
	}
	id, err := m.Keeper.Schedule(sdk.UnwrapSDKContext(ctx), msg.Owner, schedule, start)
	if err != nil {
		return nil, err
	}
	return &types.MsgScheduleResponse{ScheduleID: id}, nil
}

// Pause handles MsgPause
func (m *msgServer) Pause(ctx context.Context, msg *types.MsgPause) (*types.MsgEmptyResponse, error) {
	if err := m.Keeper.Pause(sdk.UnwrapSDKContext(ctx), msg.Owner, msg.ScheduleID, msg.ResumeBlock); err != nil {
		return nil, err
	}
	return &types.MsgEmptyResponse{}, nil
}

// Resume handles MsgResume
func (m *msgServer) Resume(ctx context.Context, msg *types.MsgResume) (*types.MsgEmptyResponse, error) {
	var next *uint64
	if msg.NextBlock != 0 {
		next = &msg.NextBlock
	}
	if err := m.Keeper.Resume(sdk.UnwrapSDKContext(ctx), msg.Owner, msg.ScheduleID, next); err != nil {
		return nil, err
	}
	return &types.MsgEmptyResponse{}, nil
}

// Terminate handles MsgTerminate
func (m *msgServer) Terminate(ctx context.Context, msg *types.MsgTerminate) (*types.MsgEmptyResponse, error) {
	var block *uint64
	if msg.Block != 0 {
		block = &msg.Block
	}
	if err := m.Keeper.Terminate(sdk.UnwrapSDKContext(ctx), msg.Caller, msg.ScheduleID, block); err != nil {
		return nil, err
	}
	return &types.MsgEmptyResponse{}, nil
}
