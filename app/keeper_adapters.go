package app

import (
	"fmt"

	"cosmossdk.io/math"
	storetypes "cosmossdk.io/store/types"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/openalpha/omnipool/pkg/memledger"
)

// LedgerGenesis seeds the asset registry, balances and position NFTs the
// omnipool and dca keepers run against.
type LedgerGenesis struct {
	Assets   []memledger.AssetInfo `json:"assets"`
	Balances []memledger.Balance   `json:"balances"`
	Items    []memledger.Item      `json:"items"`
}

// newAssetLedgers builds the token ledger, registry and NFT ledger sharing one store
func newAssetLedgers(key storetypes.StoreKey) (*memledger.Ledger, *memledger.Registry, *memledger.NFTs) {
	return memledger.NewLedger(key), memledger.NewRegistry(key, FirstCreatedAssetID), memledger.NewNFTs(key)
}

func (app *App) initLedgerGenesis(ctx sdk.Context, gs LedgerGenesis) error {
	for _, asset := range gs.Assets {
		app.Registry.Register(ctx, asset.AssetID, asset.Name, asset.ExistentialDeposit)
	}

	for _, b := range gs.Balances {
		if !app.Registry.Exists(ctx, b.AssetID) {
			return fmt.Errorf("ledger genesis: balance of unregistered asset %d", b.AssetID)
		}
		if b.Free.IsNil() {
			b.Free = math.ZeroUint()
		}
		if b.Reserved.IsNil() {
			b.Reserved = math.ZeroUint()
		}
		if err := app.Ledger.Mint(ctx, b.AssetID, b.Address, b.Free.Add(b.Reserved)); err != nil {
			return fmt.Errorf("ledger genesis: %w", err)
		}
		if err := app.Ledger.Reserve(ctx, b.AssetID, b.Address, b.Reserved); err != nil {
			return fmt.Errorf("ledger genesis: %w", err)
		}
	}

	for _, item := range gs.Items {
		if err := app.NFTs.Mint(ctx, item.Collection, item.Item, item.Owner); err != nil {
			return fmt.Errorf("ledger genesis: %w", err)
		}
	}
	return nil
}

func (app *App) exportLedgerGenesis(ctx sdk.Context) LedgerGenesis {
	return LedgerGenesis{
		Assets:   app.Registry.All(ctx),
		Balances: app.Ledger.Balances(ctx),
		Items:    app.NFTs.All(ctx),
	}
}
