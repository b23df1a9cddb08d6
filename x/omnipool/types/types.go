package types

import (
	"fmt"

	"cosmossdk.io/math"

	fp "github.com/openalpha/omnipool/pkg/fixedpoint"
	"github.com/openalpha/omnipool/pkg/omnimath"
)

// Module name and store key
const (
	ModuleName = "omnipool"
	StoreKey   = ModuleName
)

// Default asset ids
const (
	DefaultNativeAssetID = uint32(0)
	DefaultHubAssetID    = uint32(1)
	DefaultStableAssetID = uint32(2)

	DefaultPositionCollectionID = uint32(1337)
)

// MaxTVLCap is the TVL cap used when none has been set (u128 max).
var MaxTVLCap = fp.ToUint(fp.MaxBalance)

// AssetReserveState is the per-asset record of the pool.
type AssetReserveState struct {
	AssetID        uint32         `json:"asset_id"`
	Reserve        math.Uint      `json:"reserve"`
	HubReserve     math.Uint      `json:"hub_reserve"`
	Shares         math.Uint      `json:"shares"`
	ProtocolShares math.Uint      `json:"protocol_shares"`
	TVL            math.Uint      `json:"tvl"`
	Cap            math.LegacyDec `json:"cap"`
	Tradable       Tradability    `json:"tradable"`
}

// NewAssetReserveState creates the record for a newly listed asset.
func NewAssetReserveState(assetID uint32, reserve, hubReserve, protocolShares, tvl math.Uint, cap math.LegacyDec) AssetReserveState {
	return AssetReserveState{
		AssetID:        assetID,
		Reserve:        reserve,
		HubReserve:     hubReserve,
		Shares:         reserve,
		ProtocolShares: protocolShares,
		TVL:            tvl,
		Cap:            cap,
		Tradable:       DefaultTradability,
	}
}

// Math converts the record into its arithmetic form.
func (s AssetReserveState) Math() (omnimath.AssetReserveState, error) {
	var (
		out omnimath.AssetReserveState
		err error
	)
	if out.Reserve, err = fp.FromUint(s.Reserve); err != nil {
		return out, err
	}
	if out.HubReserve, err = fp.FromUint(s.HubReserve); err != nil {
		return out, err
	}
	if out.Shares, err = fp.FromUint(s.Shares); err != nil {
		return out, err
	}
	if out.ProtocolShares, err = fp.FromUint(s.ProtocolShares); err != nil {
		return out, err
	}
	if out.TVL, err = fp.FromUint(s.TVL); err != nil {
		return out, err
	}
	return out, nil
}

// WithMath returns a copy of s carrying the balances of m.
func (s AssetReserveState) WithMath(m omnimath.AssetReserveState) AssetReserveState {
	s.Reserve = fp.ToUint(m.Reserve)
	s.HubReserve = fp.ToUint(m.HubReserve)
	s.Shares = fp.ToUint(m.Shares)
	s.ProtocolShares = fp.ToUint(m.ProtocolShares)
	s.TVL = fp.ToUint(m.TVL)
	return s
}

// Price returns hub_reserve / reserve.
func (s AssetReserveState) Price() math.LegacyDec {
	if s.Reserve.IsZero() {
		return math.LegacyZeroDec()
	}
	return math.LegacyNewDecFromBigInt(s.HubReserve.BigInt()).QuoTruncate(math.LegacyNewDecFromBigInt(s.Reserve.BigInt()))
}

// Validate checks the record invariants.
func (s AssetReserveState) Validate() error {
	if s.Reserve.IsZero() || s.HubReserve.IsZero() {
		return fmt.Errorf("asset %d: reserve and hub reserve must be positive", s.AssetID)
	}
	if s.ProtocolShares.GT(s.Shares) {
		return fmt.Errorf("asset %d: protocol shares exceed shares", s.AssetID)
	}
	if s.Cap.IsNil() || s.Cap.IsNegative() || s.Cap.GT(math.LegacyOneDec()) {
		return fmt.Errorf("asset %d: invalid cap %s", s.AssetID, s.Cap)
	}
	if !s.Tradable.IsValid() {
		return fmt.Errorf("asset %d: invalid tradability %d", s.AssetID, s.Tradable)
	}
	return nil
}

// SimpleImbalance is the stored sign-magnitude imbalance.
type SimpleImbalance struct {
	Value    math.Uint `json:"value"`
	Negative bool      `json:"negative"`
}

func DefaultImbalance() SimpleImbalance {
	return SimpleImbalance{Value: math.ZeroUint(), Negative: true}
}

func (s SimpleImbalance) Math() (omnimath.SimpleImbalance, error) {
	v, err := fp.FromUint(s.Value)
	if err != nil {
		return omnimath.SimpleImbalance{}, err
	}
	return omnimath.SimpleImbalance{Value: v, Negative: s.Negative}, nil
}

func ImbalanceFromMath(m omnimath.SimpleImbalance) SimpleImbalance {
	return SimpleImbalance{Value: fp.ToUint(m.Value), Negative: m.Negative}
}

// PoolState holds the pool-wide values.
type PoolState struct {
	Initialized         bool            `json:"initialized"`
	HubAssetLiquidity   math.Uint       `json:"hub_asset_liquidity"`
	TotalTVL            math.Uint       `json:"total_tvl"`
	TVLCap              math.Uint       `json:"tvl_cap"`
	Imbalance           SimpleImbalance `json:"imbalance"`
	HubAssetTradability Tradability     `json:"hub_asset_tradability"`
	NextPositionID      uint64          `json:"next_position_id"`
}

// DefaultPoolState is the state before initialization.
func DefaultPoolState() PoolState {
	return PoolState{
		HubAssetLiquidity:   math.ZeroUint(),
		TotalTVL:            math.ZeroUint(),
		TVLCap:              MaxTVLCap,
		Imbalance:           DefaultImbalance(),
		HubAssetTradability: TradabilitySell,
		NextPositionID:      1,
	}
}

// Position records one liquidity deposit.
type Position struct {
	PositionID uint64    `json:"position_id"`
	AssetID    uint32    `json:"asset_id"`
	Amount     math.Uint `json:"amount"`
	Shares     math.Uint `json:"shares"`
	// Price is hub_reserve/reserve of the asset at deposit time.
	Price fp.Ratio `json:"price"`
}

func (p Position) Math() (omnimath.Position, error) {
	amount, err := fp.FromUint(p.Amount)
	if err != nil {
		return omnimath.Position{}, err
	}
	shares, err := fp.FromUint(p.Shares)
	if err != nil {
		return omnimath.Position{}, err
	}
	return omnimath.Position{Amount: amount, Shares: shares, Price: p.Price}, nil
}

// TradeResult is returned by sell and buy.
type TradeResult struct {
	AssetIn     uint32    `json:"asset_in"`
	AssetOut    uint32    `json:"asset_out"`
	AmountIn    math.Uint `json:"amount_in"`
	AmountOut   math.Uint `json:"amount_out"`
	AssetFee    math.Uint `json:"asset_fee"`
	ProtocolFee math.Uint `json:"protocol_fee"`
}

// RemoveLiquidityResult describes what the LP received.
type RemoveLiquidityResult struct {
	PositionID    uint64    `json:"position_id"`
	AssetID       uint32    `json:"asset_id"`
	Amount        math.Uint `json:"amount"`
	HubAmount     math.Uint `json:"hub_amount"`
	WithdrawalFee math.Uint `json:"withdrawal_fee"`
	Destroyed     bool      `json:"destroyed"`
}
