package types

import (
	"fmt"

	"cosmossdk.io/math"
)

const (
	ModuleName = "circuitbreaker"
	StoreKey   = ModuleName
	// TStoreKey holds the per-block liquidity ranges.
	TStoreKey = "transient_" + ModuleName
)

// LiquidityRange bounds an asset's reserve for the rest of the block.
type LiquidityRange struct {
	MinLimit math.Uint `json:"min_limit"`
	MaxLimit math.Uint `json:"max_limit"`
}

// Contains reports whether liquidity lies within [MinLimit, MaxLimit].
func (r LiquidityRange) Contains(liquidity math.Uint) bool {
	return r.MinLimit.LTE(liquidity) && r.MaxLimit.GTE(liquidity)
}

// NewLiquidityRange derives the range allowed around initial for a percentage limit.
func NewLiquidityRange(initial math.Uint, limit math.LegacyDec) LiquidityRange {
	diff := math.LegacyNewDecFromBigInt(initial.BigInt()).Mul(limit).TruncateInt()
	delta := math.NewUintFromBigInt(diff.BigInt())
	return LiquidityRange{
		MinLimit: initial.Sub(delta),
		MaxLimit: initial.Add(delta),
	}
}

// Params configures the circuit breaker.
type Params struct {
	// DefaultTradeVolumeLimit applies to assets without an override.
	DefaultTradeVolumeLimit math.LegacyDec `json:"default_trade_volume_limit"`
}

// DefaultParams returns the default 20% net volume limit per block
func DefaultParams() Params {
	return Params{
		DefaultTradeVolumeLimit: math.LegacyNewDecWithPrec(20, 2),
	}
}

// Validate validates the params
func (p Params) Validate() error {
	return ValidateTradeVolumeLimit(p.DefaultTradeVolumeLimit)
}

// ValidateTradeVolumeLimit accepts percentages in (0, 1].
func ValidateTradeVolumeLimit(limit math.LegacyDec) error {
	if limit.IsNil() || !limit.IsPositive() || limit.GT(math.LegacyOneDec()) {
		return fmt.Errorf("trade volume limit must be within (0, 1]: %s", limit)
	}
	return nil
}

// AssetLimit is a per-asset override of the trade volume limit.
type AssetLimit struct {
	AssetID uint32         `json:"asset_id"`
	Limit   math.LegacyDec `json:"limit"`
}

// GenesisState defines the circuit breaker genesis state.
type GenesisState struct {
	Params      Params       `json:"params"`
	AssetLimits []AssetLimit `json:"asset_limits"`
}

func DefaultGenesis() *GenesisState {
	return &GenesisState{Params: DefaultParams()}
}

func (gs GenesisState) Validate() error {
	if err := gs.Params.Validate(); err != nil {
		return err
	}
	seen := make(map[uint32]bool, len(gs.AssetLimits))
	for _, l := range gs.AssetLimits {
		if seen[l.AssetID] {
			return fmt.Errorf("duplicate trade volume limit for asset %d", l.AssetID)
		}
		seen[l.AssetID] = true
		if err := ValidateTradeVolumeLimit(l.Limit); err != nil {
			return fmt.Errorf("asset %d: %w", l.AssetID, err)
		}
	}
	return nil
}
