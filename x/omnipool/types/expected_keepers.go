package types

import (
	"context"

	"cosmossdk.io/math"

	fp "github.com/openalpha/omnipool/pkg/fixedpoint"
)

// TokenLedger holds multi-asset balances. The pool never tracks raw balances itself.
type TokenLedger interface {
	Transfer(ctx context.Context, asset uint32, from, to string, amount math.Uint) error
	FreeBalance(ctx context.Context, asset uint32, who string) math.Uint
	Reserve(ctx context.Context, asset uint32, who string, amount math.Uint) error
	Unreserve(ctx context.Context, asset uint32, who string, amount math.Uint) error
	ReservedBalance(ctx context.Context, asset uint32, who string) math.Uint
	// Mint and Burn are used for the hub asset only.
	Mint(ctx context.Context, asset uint32, to string, amount math.Uint) error
	Burn(ctx context.Context, asset uint32, from string, amount math.Uint) error
}

// AssetRegistry knows which asset ids exist.
type AssetRegistry interface {
	Exists(ctx context.Context, asset uint32) bool
}

// PositionNFTs tracks ownership of liquidity positions.
type PositionNFTs interface {
	Mint(ctx context.Context, collection uint32, item uint64, owner string) error
	Burn(ctx context.Context, collection uint32, item uint64) error
	Owner(ctx context.Context, collection uint32, item uint64) (string, bool)
	Transfer(ctx context.Context, collection uint32, item uint64, newOwner string) error
}

// PriceOracle supplies an external reference price of assetB in units of assetA.
type PriceOracle interface {
	GetPrice(ctx context.Context, assetA, assetB uint32) (fp.Ratio, bool)
}

// LiquidityLimiter is notified around every change of an asset's reserve.
type LiquidityLimiter interface {
	BeforePoolStateChange(ctx context.Context, asset uint32, initialLiquidity math.Uint) error
	AfterPoolStateChange(ctx context.Context, asset uint32, updatedLiquidity math.Uint) error
}
