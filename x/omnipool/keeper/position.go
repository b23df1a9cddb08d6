package keeper

import (
	"encoding/binary"
	"encoding/json"

	errorsmod "cosmossdk.io/errors"
	storetypes "cosmossdk.io/store/types"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/openalpha/omnipool/x/omnipool/types"
)

func positionKey(positionID uint64) []byte {
	key := make([]byte, len(PositionKeyPrefix)+8)
	copy(key, PositionKeyPrefix)
	binary.BigEndian.PutUint64(key[len(PositionKeyPrefix):], positionID)
	return key
}

// GetPosition retrieves a liquidity position
func (k *Keeper) GetPosition(ctx sdk.Context, positionID uint64) (types.Position, bool) {
	bz := k.GetStore(ctx).Get(positionKey(positionID))
	if bz == nil {
		return types.Position{}, false
	}
	var position types.Position
	if err := json.Unmarshal(bz, &position); err != nil {
		return types.Position{}, false
	}
	return position, true
}

// SetPosition saves a liquidity position
func (k *Keeper) SetPosition(ctx sdk.Context, position types.Position) {
	bz, _ := json.Marshal(position)
	k.GetStore(ctx).Set(positionKey(position.PositionID), bz)
}

// DeletePosition removes a liquidity position
func (k *Keeper) DeletePosition(ctx sdk.Context, positionID uint64) {
	k.GetStore(ctx).Delete(positionKey(positionID))
}

// GetAllPositions returns all liquidity positions
func (k *Keeper) GetAllPositions(ctx sdk.Context) []types.Position {
	iterator := storetypes.KVStorePrefixIterator(k.GetStore(ctx), PositionKeyPrefix)
	defer iterator.Close()

	var positions []types.Position
	for ; iterator.Valid(); iterator.Next() {
		var position types.Position
		if err := json.Unmarshal(iterator.Value(), &position); err != nil {
			continue
		}
		positions = append(positions, position)
	}
	return positions
}

// PositionOwner returns the current owner of the position NFT
func (k *Keeper) PositionOwner(ctx sdk.Context, positionID uint64) (string, bool) {
	return k.nfts.Owner(ctx, k.GetParams(ctx).PositionCollectionID, positionID)
}

// createPosition stores a new position and mints its NFT to owner.
func (k *Keeper) createPosition(ctx sdk.Context, owner string, position types.Position) (uint64, error) {
	pool := k.GetPoolState(ctx)
	position.PositionID = pool.NextPositionID
	pool.NextPositionID++

	if err := k.nfts.Mint(ctx, k.GetParams(ctx).PositionCollectionID, position.PositionID, owner); err != nil {
		return 0, errorsmod.Wrapf(err, "mint position %d", position.PositionID)
	}
	k.SetPosition(ctx, position)
	k.SetPoolState(ctx, pool)

	ctx.EventManager().EmitEvent(
		sdk.NewEvent(
			types.EventTypePositionCreated,
			sdk.NewAttribute(types.AttributeKeyPositionID, formatID(position.PositionID)),
			sdk.NewAttribute(types.AttributeKeyOwner, owner),
			sdk.NewAttribute(types.AttributeKeyAssetID, formatAsset(position.AssetID)),
			sdk.NewAttribute(types.AttributeKeyAmount, position.Amount.String()),
			sdk.NewAttribute(types.AttributeKeyShares, position.Shares.String()),
			sdk.NewAttribute(types.AttributeKeyPrice, position.Price.String()),
		),
	)
	return position.PositionID, nil
}
