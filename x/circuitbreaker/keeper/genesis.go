package keeper

import (
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/openalpha/omnipool/x/circuitbreaker/types"
)

// InitGenesis loads params and per-asset limits
func (k *Keeper) InitGenesis(ctx sdk.Context, gs types.GenesisState) error {
	if err := gs.Validate(); err != nil {
		return err
	}
	if err := k.SetParams(ctx, gs.Params); err != nil {
		return err
	}
	for _, l := range gs.AssetLimits {
		k.setAssetLimit(ctx, l.AssetID, l.Limit)
	}
	return nil
}

// ExportGenesis returns the module state. Liquidity ranges are per block and not exported.
func (k *Keeper) ExportGenesis(ctx sdk.Context) *types.GenesisState {
	return &types.GenesisState{
		Params:      k.GetParams(ctx),
		AssetLimits: k.GetAllAssetLimits(ctx),
	}
}
