package types

import (
	"context"

	"cosmossdk.io/math"

	dcatypes "github.com/openalpha/omnipool/x/dca/types"
	omnipooltypes "github.com/openalpha/omnipool/x/omnipool/types"
)

// Trade represents an executed sell or buy in the API response
type Trade struct {
	Sequence    uint64 `json:"sequence"`
	Kind        string `json:"kind"`
	Who         string `json:"who"`
	AssetIn     uint32 `json:"asset_in"`
	AssetOut    uint32 `json:"asset_out"`
	AmountIn    string `json:"amount_in"`
	AmountOut   string `json:"amount_out"`
	AssetFee    string `json:"asset_fee"`
	ProtocolFee string `json:"protocol_fee"`
	Height      uint64 `json:"height"`
	Timestamp   int64  `json:"timestamp"`
}

// Asset represents a listed asset in the API response
type Asset struct {
	AssetID        uint32 `json:"asset_id"`
	Name           string `json:"name"`
	Reserve        string `json:"reserve"`
	HubReserve     string `json:"hub_reserve"`
	Shares         string `json:"shares"`
	ProtocolShares string `json:"protocol_shares"`
	Price          string `json:"price"`
	Cap            string `json:"cap"`
	Tradable       string `json:"tradable"`
}

// Pool represents the pool-wide state
type Pool struct {
	Height            uint64 `json:"height"`
	Initialized       bool   `json:"initialized"`
	HubAssetLiquidity string `json:"hub_asset_liquidity"`
	// Imbalance is signed, "-" prefixed when negative
	Imbalance  string  `json:"imbalance"`
	TotalTVL   string  `json:"total_tvl"`
	TVLCap     string  `json:"tvl_cap"`
	Assets     []Asset `json:"assets"`
	AssetCount int     `json:"asset_count"`
}

// RankedAsset is one row of the weight ranking
type RankedAsset struct {
	AssetID    uint32 `json:"asset_id"`
	HubReserve string `json:"hub_reserve"`
	Weight     string `json:"weight"`
	Cap        string `json:"cap"`
}

// Position represents a liquidity position
type Position struct {
	PositionID uint64 `json:"position_id"`
	AssetID    uint32 `json:"asset_id"`
	Owner      string `json:"owner"`
	Amount     string `json:"amount"`
	Shares     string `json:"shares"`
	Price      string `json:"price"`
}

// Balance is one asset balance of an account
type Balance struct {
	AssetID  uint32 `json:"asset_id"`
	Free     string `json:"free"`
	Reserved string `json:"reserved"`
}

// Account lists the balances and positions of an address
type Account struct {
	Address   string    `json:"address"`
	Balances  []Balance `json:"balances"`
	Positions []uint64  `json:"positions"`
}

// Block is returned after the sandbox advances a block
type Block struct {
	Height    uint64 `json:"height"`
	Timestamp int64  `json:"timestamp"`
	Trades    int    `json:"trades"`
}

// FaucetRequest mints an asset to an address
type FaucetRequest struct {
	Who     string `json:"who"`
	AssetID uint32 `json:"asset_id"`
	Amount  string `json:"amount"`
}

// CreateAssetRequest registers a new asset and lists it with Amount of initial
// liquidity minted to the pool. Owner receives the initial position when set.
type CreateAssetRequest struct {
	Name      string `json:"name"`
	Price     string `json:"price"`
	WeightCap string `json:"weight_cap"`
	Amount    string `json:"amount"`
	Owner     string `json:"owner,omitempty"`
}

// CreateAssetResponse reports the new asset
type CreateAssetResponse struct {
	AssetID    uint32 `json:"asset_id"`
	PositionID uint64 `json:"position_id,omitempty"`
}

// ============ Service interfaces ============

// PoolService serves read-only pool queries
type PoolService interface {
	Pool(ctx context.Context) (*Pool, error)
	Assets(ctx context.Context) ([]Asset, error)
	Asset(ctx context.Context, assetID uint32) (*Asset, error)
	Ranking(ctx context.Context, limit int) ([]RankedAsset, error)
}

// TradeService executes trades and serves the trade tape
type TradeService interface {
	Sell(ctx context.Context, msg *omnipooltypes.MsgSell) (*Trade, error)
	Buy(ctx context.Context, msg *omnipooltypes.MsgBuy) (*Trade, error)
	Quote(ctx context.Context, kind string, assetIn, assetOut uint32, amount string) (*omnipooltypes.TradeResult, error)
	Trades(ctx context.Context, limit int) ([]Trade, error)
}

// LiquidityService manages liquidity positions
type LiquidityService interface {
	AddLiquidity(ctx context.Context, msg *omnipooltypes.MsgAddLiquidity) (*Position, error)
	RemoveLiquidity(ctx context.Context, msg *omnipooltypes.MsgRemoveLiquidity) (*omnipooltypes.RemoveLiquidityResult, error)
	Position(ctx context.Context, positionID uint64) (*Position, error)
}

// DCAService manages recurring orders
type DCAService interface {
	Schedule(ctx context.Context, msg *dcatypes.MsgSchedule) (*dcatypes.ScheduleState, error)
	Terminate(ctx context.Context, msg *dcatypes.MsgTerminate) error
	ScheduleState(ctx context.Context, scheduleID uint64) (*dcatypes.ScheduleState, error)
	SchedulesByOwner(ctx context.Context, owner string) ([]dcatypes.ScheduleState, error)
}

// SandboxService drives the in-memory chain
type SandboxService interface {
	Account(ctx context.Context, who string) (*Account, error)
	Faucet(ctx context.Context, req *FaucetRequest) (*Balance, error)
	CreateAsset(ctx context.Context, req *CreateAssetRequest) (*CreateAssetResponse, error)
	NextBlock(ctx context.Context) (*Block, error)
}

// SignedString formats a sign-magnitude value
func SignedString(value math.Uint, negative bool) string {
	if negative && !value.IsZero() {
		return "-" + value.String()
	}
	return value.String()
}
