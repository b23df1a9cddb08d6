package keeper

import (
	"context"
	"encoding/binary"
	"encoding/json"

	sdk "github.com/cosmos/cosmos-sdk/types"

	fp "github.com/openalpha/omnipool/pkg/fixedpoint"
	"github.com/openalpha/omnipool/x/omnipool/types"
)

// PriceSnapshot is the hub price of an asset recorded at the start of a block.
type PriceSnapshot struct {
	AssetID uint32   `json:"asset_id"`
	Height  int64    `json:"height"`
	Price   fp.Ratio `json:"price"`
}

func priceSnapshotKey(assetID uint32) []byte {
	key := make([]byte, len(PriceSnapshotKeyPrefix)+4)
	copy(key, PriceSnapshotKeyPrefix)
	binary.BigEndian.PutUint32(key[len(PriceSnapshotKeyPrefix):], assetID)
	return key
}

// GetPriceSnapshot returns the last recorded price of asset
func (k *Keeper) GetPriceSnapshot(ctx sdk.Context, assetID uint32) (PriceSnapshot, bool) {
	bz := k.GetStore(ctx).Get(priceSnapshotKey(assetID))
	if bz == nil {
		return PriceSnapshot{}, false
	}
	var snapshot PriceSnapshot
	if err := json.Unmarshal(bz, &snapshot); err != nil {
		return PriceSnapshot{}, false
	}
	return snapshot, true
}

// RecordPriceSnapshots stores the current hub price of every listed asset
func (k *Keeper) RecordPriceSnapshots(ctx sdk.Context) {
	store := k.GetStore(ctx)
	k.IterateAssets(ctx, func(asset types.AssetReserveState) bool {
		if asset.Reserve.IsZero() {
			return false
		}
		snapshot := PriceSnapshot{
			AssetID: asset.AssetID,
			Height:  ctx.BlockHeight(),
			Price:   fp.NewRatio(fp.MustFromUint(asset.HubReserve), fp.MustFromUint(asset.Reserve)),
		}
		bz, _ := json.Marshal(snapshot)
		store.Set(priceSnapshotKey(asset.AssetID), bz)
		return false
	})
}

// snapshotOracle serves hub-denominated prices from the block start snapshots.
// Prices between two non-hub assets are not served.
type snapshotOracle struct {
	k *Keeper
}

var _ types.PriceOracle = snapshotOracle{}

func (o snapshotOracle) GetPrice(ctx context.Context, assetA, assetB uint32) (fp.Ratio, bool) {
	sdkCtx := sdk.UnwrapSDKContext(ctx)
	if assetA != o.k.GetParams(sdkCtx).HubAssetID {
		return fp.Ratio{}, false
	}
	snapshot, found := o.k.GetPriceSnapshot(sdkCtx, assetB)
	if !found {
		return fp.Ratio{}, false
	}
	return snapshot.Price, true
}
