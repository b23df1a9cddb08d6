package keeper

import (
	"context"

	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/openalpha/omnipool/x/omnipool/types"
)

var _ types.MsgServer = (*msgServer)(nil)

type msgServer struct {
	Keeper *Keeper
}

// NewMsgServerImpl returns an implementation of the MsgServer interface
func NewMsgServerImpl(keeper *Keeper) types.MsgServer {
	return &msgServer{Keeper: keeper}
}

// InitializePool handles MsgInitializePool
func (m *msgServer) InitializePool(ctx context.Context, msg *types.MsgInitializePool) (*types.MsgInitializePoolResponse, error) {
	if err := msg.ValidateBasic(); err != nil {
		return nil, err
	}
	stablePrice, _ := types.ParseRatio("stable_price", msg.StablePrice)
	nativePrice, _ := types.ParseRatio("native_price", msg.NativePrice)
	stableCap, _ := types.ParseRatio("stable_cap", msg.StableCap)
	nativeCap, _ := types.ParseRatio("native_cap", msg.NativeCap)

	if err := m.Keeper.InitializePool(sdk.UnwrapSDKContext(ctx), msg.Authority, stablePrice, nativePrice, stableCap, nativeCap); err != nil {
		return nil, err
	}
	return &types.MsgInitializePoolResponse{}, nil
}

// AddToken handles MsgAddToken
func (m *msgServer) AddToken(ctx context.Context, msg *types.MsgAddToken) (*types.MsgAddTokenResponse, error) {
	if err := msg.ValidateBasic(); err != nil {
		return nil, err
	}
	price, _ := types.ParseRatio("initial_price", msg.InitialPrice)
	cap, _ := types.ParseRatio("weight_cap", msg.WeightCap)

	positionID, err := m.Keeper.AddToken(sdk.UnwrapSDKContext(ctx), msg.Authority, msg.AssetID, price, cap, msg.Owner)
	if err != nil {
		return nil, err
	}
	return &types.MsgAddTokenResponse{PositionID: positionID}, nil
}

// AddLiquidity handles MsgAddLiquidity
func (m *msgServer) AddLiquidity(ctx context.Context, msg *types.MsgAddLiquidity) (*types.MsgAddLiquidityResponse, error) {
	amount, err := types.ParseAmount("amount", msg.Amount)
	if err != nil {
		return nil, err
	}
	positionID, err := m.Keeper.AddLiquidity(sdk.UnwrapSDKContext(ctx), msg.Who, msg.AssetID, amount)
	if err != nil {
		return nil, err
	}
	return &types.MsgAddLiquidityResponse{PositionID: positionID}, nil
}

// RemoveLiquidity handles MsgRemoveLiquidity
func (m *msgServer) RemoveLiquidity(ctx context.Context, msg *types.MsgRemoveLiquidity) (*types.MsgRemoveLiquidityResponse, error) {
	shares, err := types.ParseAmount("shares", msg.Shares)
	if err != nil {
		return nil, err
	}
	result, err := m.Keeper.RemoveLiquidity(sdk.UnwrapSDKContext(ctx), msg.Who, msg.PositionID, shares)
	if err != nil {
		return nil, err
	}
	return &types.MsgRemoveLiquidityResponse{Result: *result}, nil
}

// Sell handles MsgSell
func (m *msgServer) Sell(ctx context.Context, msg *types.MsgSell) (*types.MsgTradeResponse, error) {
	amount, err := types.ParseAmount("amount", msg.Amount)
	if err != nil {
		return nil, err
	}
	minBuy, err := types.ParseAmount("min_buy_amount", msg.MinBuyAmount)
	if err != nil {
		return nil, err
	}
	result, err := m.Keeper.Sell(sdk.UnwrapSDKContext(ctx), msg.Who, msg.AssetIn, msg.AssetOut, amount, minBuy)
	if err != nil {
		return nil, err
	}
	return &types.MsgTradeResponse{Result: *result}, nil
}

// Buy handles MsgBuy
func (m *msgServer) Buy(ctx context.Context, msg *types.MsgBuy) (*types.MsgTradeResponse, error) {
	amount, err := types.ParseAmount("amount", msg.Amount)
	if err != nil {
		return nil, err
	}
	maxSell, err := types.ParseAmount("max_sell_amount", msg.MaxSellAmount)
	if err != nil {
		return nil, err
	}
	result, err := m.Keeper.Buy(sdk.UnwrapSDKContext(ctx), msg.Who, msg.AssetOut, msg.AssetIn, amount, maxSell)
	if err != nil {
		return nil, err
	}
	return &types.MsgTradeResponse{Result: *result}, nil
}

// SetAssetTradableState handles MsgSetAssetTradableState
func (m *msgServer) SetAssetTradableState(ctx context.Context, msg *types.MsgSetAssetTradableState) (*types.MsgEmptyResponse, error) {
	state, err := types.ParseTradability(msg.State)
	if err != nil {
		return nil, err
	}
	if err := m.Keeper.SetAssetTradableState(sdk.UnwrapSDKContext(ctx), msg.Authority, msg.AssetID, state); err != nil {
		return nil, err
	}
	return &types.MsgEmptyResponse{}, nil
}

// SetAssetWeightCap handles MsgSetAssetWeightCap
func (m *msgServer) SetAssetWeightCap(ctx context.Context, msg *types.MsgSetAssetWeightCap) (*types.MsgEmptyResponse, error) {
	cap, err := types.ParseRatio("cap", msg.Cap)
	if err != nil {
		return nil, err
	}
	if err := m.Keeper.SetAssetWeightCap(sdk.UnwrapSDKContext(ctx), msg.Authority, msg.AssetID, cap); err != nil {
		return nil, err
	}
	return &types.MsgEmptyResponse{}, nil
}

// SetTVLCap handles MsgSetTVLCap
func (m *msgServer) SetTVLCap(ctx context.Context, msg *types.MsgSetTVLCap) (*types.MsgEmptyResponse, error) {
	cap, err := types.ParseAmount("cap", msg.Cap)
	if err != nil {
		return nil, err
	}
	if err := m.Keeper.SetTVLCap(sdk.UnwrapSDKContext(ctx), msg.Authority, cap); err != nil {
		return nil, err
	}
	return &types.MsgEmptyResponse{}, nil
}
