package keeper

import (
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/openalpha/omnipool/x/omnipool/types"
)

// InitGenesis loads params, pool state, assets and positions. Position NFTs are
// expected to be restored by the NFT ledger's own genesis.
func (k *Keeper) InitGenesis(ctx sdk.Context, gs types.GenesisState) error {
	if err := gs.Validate(); err != nil {
		return err
	}
	if err := k.SetParams(ctx, gs.Params); err != nil {
		return err
	}
	k.SetPoolState(ctx, gs.Pool)
	for _, asset := range gs.Assets {
		k.SetAsset(ctx, asset)
	}
	for _, position := range gs.Positions {
		k.SetPosition(ctx, position)
	}
	return nil
}

// ExportGenesis returns the module state
func (k *Keeper) ExportGenesis(ctx sdk.Context) *types.GenesisState {
	return &types.GenesisState{
		Params:    k.GetParams(ctx),
		Pool:      k.GetPoolState(ctx),
		Assets:    k.GetAllAssets(ctx),
		Positions: k.GetAllPositions(ctx),
	}
}
