package keeper

import (
	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/google/btree"

	"github.com/openalpha/omnipool/x/omnipool/types"
)

const rankingDegree = 16

// AssetWeight is one row of the weight ranking.
type AssetWeight struct {
	AssetID    uint32         `json:"asset_id"`
	HubReserve math.Uint      `json:"hub_reserve"`
	Weight     math.LegacyDec `json:"weight"`
	Cap        math.LegacyDec `json:"cap"`
}

// weightItem orders assets by hub reserve, ties broken by asset id.
type weightItem struct {
	asset types.AssetReserveState
}

// Less implements btree.Item
func (a *weightItem) Less(b btree.Item) bool {
	o := b.(*weightItem)
	if !a.asset.HubReserve.Equal(o.asset.HubReserve) {
		return a.asset.HubReserve.LT(o.asset.HubReserve)
	}
	return a.asset.AssetID < o.asset.AssetID
}

// AssetsByWeight returns up to limit assets with the largest share of hub liquidity
// first. A limit of zero returns every asset.
func (k *Keeper) AssetsByWeight(ctx sdk.Context, limit int) []AssetWeight {
	tree := btree.New(rankingDegree)
	k.IterateAssets(ctx, func(asset types.AssetReserveState) bool {
		tree.ReplaceOrInsert(&weightItem{asset: asset})
		return false
	})

	total := k.GetPoolState(ctx).HubAssetLiquidity
	out := make([]AssetWeight, 0, tree.Len())
	tree.Descend(func(item btree.Item) bool {
		asset := item.(*weightItem).asset
		weight := math.LegacyZeroDec()
		if !total.IsZero() {
			weight = math.LegacyNewDecFromBigInt(asset.HubReserve.BigInt()).
				QuoTruncate(math.LegacyNewDecFromBigInt(total.BigInt()))
		}
		out = append(out, AssetWeight{
			AssetID:    asset.AssetID,
			HubReserve: asset.HubReserve,
			Weight:     weight,
			Cap:        asset.Cap,
		})
		return limit <= 0 || len(out) < limit
	})
	return out
}
