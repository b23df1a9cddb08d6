package memledger

import (
	"context"
	"encoding/binary"

	errorsmod "cosmossdk.io/errors"
	storetypes "cosmossdk.io/store/types"
	sdk "github.com/cosmos/cosmos-sdk/types"
)

var nftKeyPrefix = []byte{0x20}

// NFTs records the owner of each (collection, item).
type NFTs struct {
	storeKey storetypes.StoreKey
}

// NewNFTs creates an NFT ledger over the given store
func NewNFTs(storeKey storetypes.StoreKey) *NFTs {
	return &NFTs{storeKey: storeKey}
}

func nftKey(collection uint32, item uint64) []byte {
	key := make([]byte, len(nftKeyPrefix)+12)
	copy(key, nftKeyPrefix)
	binary.BigEndian.PutUint32(key[len(nftKeyPrefix):], collection)
	binary.BigEndian.PutUint64(key[len(nftKeyPrefix)+4:], item)
	return key
}

func (n *NFTs) store(ctx context.Context) storetypes.KVStore {
	return sdk.UnwrapSDKContext(ctx).KVStore(n.storeKey)
}

// Mint creates an item owned by owner
func (n *NFTs) Mint(ctx context.Context, collection uint32, item uint64, owner string) error {
	key := nftKey(collection, item)
	if n.store(ctx).Has(key) {
		return errorsmod.Wrapf(ErrItemExists, "collection %d item %d", collection, item)
	}
	n.store(ctx).Set(key, []byte(owner))
	return nil
}

// Burn destroys an item
func (n *NFTs) Burn(ctx context.Context, collection uint32, item uint64) error {
	key := nftKey(collection, item)
	if !n.store(ctx).Has(key) {
		return errorsmod.Wrapf(ErrItemNotFound, "collection %d item %d", collection, item)
	}
	n.store(ctx).Delete(key)
	return nil
}

// Owner returns the owner of an item
func (n *NFTs) Owner(ctx context.Context, collection uint32, item uint64) (string, bool) {
	bz := n.store(ctx).Get(nftKey(collection, item))
	if bz == nil {
		return "", false
	}
	return string(bz), true
}

// Transfer changes the owner of an item
func (n *NFTs) Transfer(ctx context.Context, collection uint32, item uint64, newOwner string) error {
	key := nftKey(collection, item)
	if !n.store(ctx).Has(key) {
		return errorsmod.Wrapf(ErrItemNotFound, "collection %d item %d", collection, item)
	}
	n.store(ctx).Set(key, []byte(newOwner))
	return nil
}

// ItemsOf returns the items of collection owned by owner
func (n *NFTs) ItemsOf(ctx context.Context, collection uint32, owner string) []uint64 {
	prefix := make([]byte, len(nftKeyPrefix)+4)
	copy(prefix, nftKeyPrefix)
	binary.BigEndian.PutUint32(prefix[len(nftKeyPrefix):], collection)

	iterator := storetypes.KVStorePrefixIterator(n.store(ctx), prefix)
	defer iterator.Close()

	var items []uint64
	for ; iterator.Valid(); iterator.Next() {
		if string(iterator.Value()) != owner {
			continue
		}
		items = append(items, binary.BigEndian.Uint64(iterator.Key()[len(prefix):]))
	}
	return items
}

// Item is an owned NFT.
type Item struct {
	Collection uint32 `json:"collection"`
	Item       uint64 `json:"item"`
	Owner      string `json:"owner"`
}

// All returns every item in key order
func (n *NFTs) All(ctx context.Context) []Item {
	iterator := storetypes.KVStorePrefixIterator(n.store(ctx), nftKeyPrefix)
	defer iterator.Close()

	var out []Item
	for ; iterator.Valid(); iterator.Next() {
		key := iterator.Key()[len(nftKeyPrefix):]
		out = append(out, Item{
			Collection: binary.BigEndian.Uint32(key[:4]),
			Item:       binary.BigEndian.Uint64(key[4:]),
			Owner:      string(iterator.Value()),
		})
	}
	return out
}
