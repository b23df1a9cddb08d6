package memledger

import (
	"context"
	"encoding/binary"
	"encoding/json"

	"cosmossdk.io/math"
	storetypes "cosmossdk.io/store/types"
	sdk "github.com/cosmos/cosmos-sdk/types"
)

var (
	assetKeyPrefix = []byte{0x10}
	nextAssetKey   = []byte{0x11}
)

// AssetInfo is a registered asset.
type AssetInfo struct {
	AssetID            uint32    `json:"asset_id"`
	Name               string    `json:"name"`
	ExistentialDeposit math.Uint `json:"existential_deposit"`
}

// Registry assigns asset ids. Ids below FirstAssetID are reserved for
// explicitly registered assets.
type Registry struct {
	storeKey     storetypes.StoreKey
	firstAssetID uint32
}

// NewRegistry creates a registry that hands out ids from firstAssetID upwards
func NewRegistry(storeKey storetypes.StoreKey, firstAssetID uint32) *Registry {
	return &Registry{storeKey: storeKey, firstAssetID: firstAssetID}
}

func registryAssetKey(asset uint32) []byte {
	key := make([]byte, len(assetKeyPrefix)+4)
	copy(key, assetKeyPrefix)
	binary.BigEndian.PutUint32(key[len(assetKeyPrefix):], asset)
	return key
}

func (r *Registry) store(ctx context.Context) storetypes.KVStore {
	return sdk.UnwrapSDKContext(ctx).KVStore(r.storeKey)
}

// Exists reports whether asset is registered
func (r *Registry) Exists(ctx context.Context, asset uint32) bool {
	return r.store(ctx).Has(registryAssetKey(asset))
}

// Get returns a registered asset
func (r *Registry) Get(ctx context.Context, asset uint32) (AssetInfo, bool) {
	bz := r.store(ctx).Get(registryAssetKey(asset))
	if bz == nil {
		return AssetInfo{}, false
	}
	var info AssetInfo
	if err := json.Unmarshal(bz, &info); err != nil {
		return AssetInfo{}, false
	}
	return info, true
}

// Register stores an asset under a caller-chosen id, overwriting any previous record.
func (r *Registry) Register(ctx context.Context, asset uint32, name string, existentialDeposit math.Uint) {
	bz, _ := json.Marshal(AssetInfo{AssetID: asset, Name: name, ExistentialDeposit: existentialDeposit})
	r.store(ctx).Set(registryAssetKey(asset), bz)
}

// CreateAsset registers a new asset under the next free id
func (r *Registry) CreateAsset(ctx context.Context, name string, existentialDeposit math.Uint) (uint32, error) {
	store := r.store(ctx)
	next := r.firstAssetID
	if bz := store.Get(nextAssetKey); bz != nil {
		next = binary.BigEndian.Uint32(bz)
	}
	for store.Has(registryAssetKey(next)) {
		next++
	}

	r.Register(ctx, next, name, existentialDeposit)

	bz := make([]byte, 4)
	binary.BigEndian.PutUint32(bz, next+1)
	store.Set(nextAssetKey, bz)
	return next, nil
}

// All returns every registered asset in id order
func (r *Registry) All(ctx context.Context) []AssetInfo {
	iterator := storetypes.KVStorePrefixIterator(r.store(ctx), assetKeyPrefix)
	defer iterator.Close()

	var out []AssetInfo
	for ; iterator.Valid(); iterator.Next() {
		var info AssetInfo
		if err := json.Unmarshal(iterator.Value(), &info); err != nil {
			continue
		}
		out = append(out, info)
	}
	return out
}
