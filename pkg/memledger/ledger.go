// Package memledger provides store-backed token, asset and NFT ledgers for
// tests and the sandbox server. Every record lives in a KVStore reached
// through the sdk.Context, so writes roll back with CacheContext like any
// module state.
package memledger

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"sort"

	errorsmod "cosmossdk.io/errors"
	"cosmossdk.io/math"
	storetypes "cosmossdk.io/store/types"
	sdk "github.com/cosmos/cosmos-sdk/types"
)

const codespace = "memledger"

var (
	ErrInsufficientFunds    = errorsmod.Register(codespace, 2, "insufficient free balance")
	ErrInsufficientReserved = errorsmod.Register(codespace, 3, "insufficient reserved balance")
	ErrAssetNotFound        = errorsmod.Register(codespace, 4, "asset not registered")
	ErrItemExists           = errorsmod.Register(codespace, 5, "nft item already exists")
	ErrItemNotFound         = errorsmod.Register(codespace, 6, "nft item not found")
	ErrOverflow             = errorsmod.Register(codespace, 7, "balance overflow")
)

var (
	freeKeyPrefix     = []byte{0x01}
	reservedKeyPrefix = []byte{0x02}
	issuanceKeyPrefix = []byte{0x03}
)

// Ledger is a multi-asset balance book with free and reserved balances.
type Ledger struct {
	storeKey storetypes.StoreKey
}

// NewLedger creates a ledger over the given store
func NewLedger(storeKey storetypes.StoreKey) *Ledger {
	return &Ledger{storeKey: storeKey}
}

func balanceKey(prefix []byte, asset uint32, who string) []byte {
	key := make([]byte, len(prefix)+4, len(prefix)+4+len(who))
	copy(key, prefix)
	binary.BigEndian.PutUint32(key[len(prefix):], asset)
	return append(key, who...)
}

func issuanceKey(asset uint32) []byte {
	key := make([]byte, len(issuanceKeyPrefix)+4)
	copy(key, issuanceKeyPrefix)
	binary.BigEndian.PutUint32(key[len(issuanceKeyPrefix):], asset)
	return key
}

func (l *Ledger) store(ctx context.Context) storetypes.KVStore {
	return sdk.UnwrapSDKContext(ctx).KVStore(l.storeKey)
}

func (l *Ledger) get(ctx context.Context, key []byte) math.Uint {
	bz := l.store(ctx).Get(key)
	if bz == nil {
		return math.ZeroUint()
	}
	var v math.Uint
	if err := json.Unmarshal(bz, &v); err != nil {
		return math.ZeroUint()
	}
	return v
}

func (l *Ledger) set(ctx context.Context, key []byte, v math.Uint) {
	if v.IsZero() {
		l.store(ctx).Delete(key)
		return
	}
	bz, _ := json.Marshal(v)
	l.store(ctx).Set(key, bz)
}

func (l *Ledger) add(ctx context.Context, key []byte, amount math.Uint) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errorsmod.Wrapf(ErrOverflow, "%v", r)
		}
	}()
	l.set(ctx, key, l.get(ctx, key).Add(amount))
	return nil
}

func (l *Ledger) sub(ctx context.Context, key []byte, amount math.Uint, notEnough error) error {
	current := l.get(ctx, key)
	if current.LT(amount) {
		return errorsmod.Wrapf(notEnough, "have %s, need %s", current, amount)
	}
	l.set(ctx, key, current.Sub(amount))
	return nil
}

// FreeBalance returns the spendable balance of who
func (l *Ledger) FreeBalance(ctx context.Context, asset uint32, who string) math.Uint {
	return l.get(ctx, balanceKey(freeKeyPrefix, asset, who))
}

// ReservedBalance returns the balance of who locked by Reserve
func (l *Ledger) ReservedBalance(ctx context.Context, asset uint32, who string) math.Uint {
	return l.get(ctx, balanceKey(reservedKeyPrefix, asset, who))
}

// TotalIssuance returns the minted supply of an asset
func (l *Ledger) TotalIssuance(ctx context.Context, asset uint32) math.Uint {
	return l.get(ctx, issuanceKey(asset))
}

// Transfer moves free balance between accounts
func (l *Ledger) Transfer(ctx context.Context, asset uint32, from, to string, amount math.Uint) error {
	if amount.IsZero() || from == to {
		return nil
	}
	if err := l.sub(ctx, balanceKey(freeKeyPrefix, asset, from), amount, ErrInsufficientFunds); err != nil {
		return errorsmod.Wrapf(err, "transfer of asset %d from %s", asset, from)
	}
	return l.add(ctx, balanceKey(freeKeyPrefix, asset, to), amount)
}

// Reserve locks part of the free balance
func (l *Ledger) Reserve(ctx context.Context, asset uint32, who string, amount math.Uint) error {
	if amount.IsZero() {
		return nil
	}
	if err := l.sub(ctx, balanceKey(freeKeyPrefix, asset, who), amount, ErrInsufficientFunds); err != nil {
		return err
	}
	return l.add(ctx, balanceKey(reservedKeyPrefix, asset, who), amount)
}

// Unreserve returns locked balance to the free balance
func (l *Ledger) Unreserve(ctx context.Context, asset uint32, who string, amount math.Uint) error {
	if amount.IsZero() {
		return nil
	}
	if err := l.sub(ctx, balanceKey(reservedKeyPrefix, asset, who), amount, ErrInsufficientReserved); err != nil {
		return err
	}
	return l.add(ctx, balanceKey(freeKeyPrefix, asset, who), amount)
}

// RepatriateReserved moves reserved balance of from into the free balance of to
func (l *Ledger) RepatriateReserved(ctx context.Context, asset uint32, from, to string, amount math.Uint) error {
	if amount.IsZero() {
		return nil
	}
	if err := l.sub(ctx, balanceKey(reservedKeyPrefix, asset, from), amount, ErrInsufficientReserved); err != nil {
		return err
	}
	return l.add(ctx, balanceKey(freeKeyPrefix, asset, to), amount)
}

// Mint credits new units to the free balance of to
func (l *Ledger) Mint(ctx context.Context, asset uint32, to string, amount math.Uint) error {
	if amount.IsZero() {
		return nil
	}
	if err := l.add(ctx, issuanceKey(asset), amount); err != nil {
		return err
	}
	return l.add(ctx, balanceKey(freeKeyPrefix, asset, to), amount)
}

// Burn destroys units from the free balance of from
func (l *Ledger) Burn(ctx context.Context, asset uint32, from string, amount math.Uint) error {
	if amount.IsZero() {
		return nil
	}
	if err := l.sub(ctx, balanceKey(freeKeyPrefix, asset, from), amount, ErrInsufficientFunds); err != nil {
		return err
	}
	issuance := l.get(ctx, issuanceKey(asset))
	// balances seeded through genesis are not counted in issuance
	l.set(ctx, issuanceKey(asset), issuance.Sub(math.MinUint(issuance, amount)))
	return nil
}

// Endow is Mint without an error return, for seeding balances.
func (l *Ledger) Endow(ctx context.Context, asset uint32, to string, amount math.Uint) {
	if err := l.Mint(ctx, asset, to, amount); err != nil {
		panic(err)
	}
}

// Balance is one account's holding of an asset.
type Balance struct {
	AssetID  uint32    `json:"asset_id"`
	Address  string    `json:"address"`
	Free     math.Uint `json:"free"`
	Reserved math.Uint `json:"reserved"`
}

// Balances returns every non-empty balance ordered by asset then address.
func (l *Ledger) Balances(ctx context.Context) []Balance {
	byKey := make(map[string]int)
	var out []Balance
	collect := func(prefix []byte, reserved bool) {
		iterator := storetypes.KVStorePrefixIterator(l.store(ctx), prefix)
		defer iterator.Close()
		for ; iterator.Valid(); iterator.Next() {
			key := iterator.Key()[len(prefix):]
			var v math.Uint
			if err := json.Unmarshal(iterator.Value(), &v); err != nil {
				continue
			}
			idx, ok := byKey[string(key)]
			if !ok {
				idx = len(out)
				byKey[string(key)] = idx
				out = append(out, Balance{
					AssetID:  binary.BigEndian.Uint32(key[:4]),
					Address:  string(key[4:]),
					Free:     math.ZeroUint(),
					Reserved: math.ZeroUint(),
				})
			}
			if reserved {
				out[idx].Reserved = v
			} else {
				out[idx].Free = v
			}
		}
	}
	collect(freeKeyPrefix, false)
	collect(reservedKeyPrefix, true)

	sort.Slice(out, func(i, j int) bool {
		if out[i].AssetID != out[j].AssetID {
			return out[i].AssetID < out[j].AssetID
		}
		return out[i].Address < out[j].Address
	})
	return out
}
