package types

import (
	"fmt"

	"cosmossdk.io/math"

	fp "github.com/openalpha/omnipool/pkg/fixedpoint"
)

// Params configures the pool.
type Params struct {
	HubAssetID    uint32 `json:"hub_asset_id"`
	StableAssetID uint32 `json:"stable_asset_id"`
	NativeAssetID uint32 `json:"native_asset_id"`

	ProtocolFee   math.LegacyDec `json:"protocol_fee"`
	AssetFee      math.LegacyDec `json:"asset_fee"`
	WithdrawalFee math.LegacyDec `json:"withdrawal_fee"`

	MinimumTradingLimit  math.Uint `json:"minimum_trading_limit"`
	MinimumPoolLiquidity math.Uint `json:"minimum_pool_liquidity"`

	// A trade may move at most reserve/MaxInRatio in and reserve/MaxOutRatio out.
	MaxInRatio  uint64 `json:"max_in_ratio"`
	MaxOutRatio uint64 `json:"max_out_ratio"`

	// MaxPriceDifference bounds the distance between pool and oracle price.
	// Zero disables the check.
	MaxPriceDifference math.LegacyDec `json:"max_price_difference"`

	PositionCollectionID uint32 `json:"position_collection_id"`
}

// DefaultParams returns default omnipool parameters
func DefaultParams() Params {
	return Params{
		HubAssetID:           DefaultHubAssetID,
		StableAssetID:        DefaultStableAssetID,
		NativeAssetID:        DefaultNativeAssetID,
		ProtocolFee:          math.LegacyZeroDec(),
		AssetFee:             math.LegacyZeroDec(),
		WithdrawalFee:        math.LegacyZeroDec(),
		MinimumTradingLimit:  math.NewUint(1000),
		MinimumPoolLiquidity: math.NewUint(1000),
		MaxInRatio:           3,
		MaxOutRatio:          3,
		MaxPriceDifference:   math.LegacyZeroDec(),
		PositionCollectionID: DefaultPositionCollectionID,
	}
}

// Validate validates the params
func (p Params) Validate() error {
	if p.HubAssetID == p.StableAssetID || p.HubAssetID == p.NativeAssetID || p.StableAssetID == p.NativeAssetID {
		return fmt.Errorf("hub, stable and native asset ids must differ")
	}
	for name, fee := range map[string]math.LegacyDec{
		"protocol_fee":         p.ProtocolFee,
		"asset_fee":            p.AssetFee,
		"withdrawal_fee":       p.WithdrawalFee,
		"max_price_difference": p.MaxPriceDifference,
	} {
		if fee.IsNil() || fee.IsNegative() || fee.GTE(math.LegacyOneDec()) {
			return fmt.Errorf("%s must be within [0, 1): %s", name, fee)
		}
	}
	if p.MaxInRatio == 0 || p.MaxOutRatio == 0 {
		return fmt.Errorf("max in/out ratio must be positive")
	}
	return nil
}

// Fees returns the trade fees in fixed-point form.
func (p Params) Fees() (asset, protocol fp.Fixed, err error) {
	if asset, err = fp.FixedFromDec(p.AssetFee); err != nil {
		return
	}
	protocol, err = fp.FixedFromDec(p.ProtocolFee)
	return
}

// GenesisState defines the omnipool genesis state.
type GenesisState struct {
	Params    Params              `json:"params"`
	Pool      PoolState           `json:"pool"`
	Assets    []AssetReserveState `json:"assets"`
	Positions []Position          `json:"positions"`
}

func DefaultGenesis() *GenesisState {
	return &GenesisState{
		Params: DefaultParams(),
		Pool:   DefaultPoolState(),
	}
}

func (gs GenesisState) Validate() error {
	if err := gs.Params.Validate(); err != nil {
		return err
	}
	seen := make(map[uint32]bool, len(gs.Assets))
	for _, a := range gs.Assets {
		if seen[a.AssetID] {
			return fmt.Errorf("duplicate asset %d", a.AssetID)
		}
		seen[a.AssetID] = true
		if err := a.Validate(); err != nil {
			return err
		}
	}
	for _, p := range gs.Positions {
		if !seen[p.AssetID] {
			return fmt.Errorf("position %d references unknown asset %d", p.PositionID, p.AssetID)
		}
		if p.PositionID >= gs.Pool.NextPositionID {
			return fmt.Errorf("position %d is not below next position id %d", p.PositionID, gs.Pool.NextPositionID)
		}
	}
	return nil
}
