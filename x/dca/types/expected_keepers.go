package types

import (
	"context"

	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	omnipooltypes "github.com/openalpha/omnipool/x/omnipool/types"
)

// BondLedger is the part of the token ledger used for bonds.
type BondLedger interface {
	FreeBalance(ctx context.Context, asset uint32, who string) math.Uint
	ReservedBalance(ctx context.Context, asset uint32, who string) math.Uint
	Reserve(ctx context.Context, asset uint32, who string, amount math.Uint) error
	Unreserve(ctx context.Context, asset uint32, who string, amount math.Uint) error
	Transfer(ctx context.Context, asset uint32, from, to string, amount math.Uint) error
}

// TradeExecutor is the omnipool as seen by the scheduler.
type TradeExecutor interface {
	Sell(ctx sdk.Context, who string, assetIn, assetOut uint32, amount, minBuyAmount math.Uint) (*omnipooltypes.TradeResult, error)
	Buy(ctx sdk.Context, who string, assetOut, assetIn uint32, amount, maxSellAmount math.Uint) (*omnipooltypes.TradeResult, error)
	SimulateBuy(ctx sdk.Context, assetOut, assetIn uint32, amount, maxSellAmount math.Uint) (*omnipooltypes.TradeResult, error)
}
