package memledger_test

import (
	"testing"

	"cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/openalpha/omnipool/pkg/memledger"
	"github.com/openalpha/omnipool/pkg/sim"
)

const asset = uint32(100)

func newChain(t *testing.T) *sim.Chain {
	t.Helper()
	c, err := sim.New(sim.Config{})
	require.NoError(t, err)
	return c
}

func TestLedgerTransfer(t *testing.T) {
	c := newChain(t)
	l := c.Ledger

	require.NoError(t, l.Mint(c.Ctx, asset, "alice", math.NewUint(100)))
	require.Equal(t, math.NewUint(100), l.TotalIssuance(c.Ctx, asset))

	require.NoError(t, l.Transfer(c.Ctx, asset, "alice", "bob", math.NewUint(40)))
	require.Equal(t, math.NewUint(60), l.FreeBalance(c.Ctx, asset, "alice"))
	require.Equal(t, math.NewUint(40), l.FreeBalance(c.Ctx, asset, "bob"))

	err := l.Transfer(c.Ctx, asset, "alice", "bob", math.NewUint(61))
	require.ErrorIs(t, err, memledger.ErrInsufficientFunds)
	require.Equal(t, math.NewUint(60), l.FreeBalance(c.Ctx, asset, "alice"))

	// self transfers and zero amounts are no-ops
	require.NoError(t, l.Transfer(c.Ctx, asset, "alice", "alice", math.NewUint(1000)))
	require.NoError(t, l.Transfer(c.Ctx, asset, "carol", "bob", math.ZeroUint()))
}

func TestLedgerReserve(t *testing.T) {
	c := newChain(t)
	l := c.Ledger
	require.NoError(t, l.Mint(c.Ctx, asset, "alice", math.NewUint(100)))

	require.NoError(t, l.Reserve(c.Ctx, asset, "alice", math.NewUint(30)))
	require.Equal(t, math.NewUint(70), l.FreeBalance(c.Ctx, asset, "alice"))
	require.Equal(t, math.NewUint(30), l.ReservedBalance(c.Ctx, asset, "alice"))

	require.ErrorIs(t, l.Reserve(c.Ctx, asset, "alice", math.NewUint(71)), memledger.ErrInsufficientFunds)
	require.ErrorIs(t, l.Unreserve(c.Ctx, asset, "alice", math.NewUint(31)), memledger.ErrInsufficientReserved)

	require.NoError(t, l.RepatriateReserved(c.Ctx, asset, "alice", "bob", math.NewUint(10)))
	require.Equal(t, math.NewUint(20), l.ReservedBalance(c.Ctx, asset, "alice"))
	require.Equal(t, math.NewUint(10), l.FreeBalance(c.Ctx, asset, "bob"))

	require.NoError(t, l.Unreserve(c.Ctx, asset, "alice", math.NewUint(20)))
	require.True(t, l.ReservedBalance(c.Ctx, asset, "alice").IsZero())
	require.Equal(t, math.NewUint(90), l.FreeBalance(c.Ctx, asset, "alice"))
}

func TestLedgerBurn(t *testing.T) {
	c := newChain(t)
	l := c.Ledger
	require.NoError(t, l.Mint(c.Ctx, asset, "alice", math.NewUint(100)))

	require.NoError(t, l.Burn(c.Ctx, asset, "alice", math.NewUint(25)))
	require.Equal(t, math.NewUint(75), l.FreeBalance(c.Ctx, asset, "alice"))
	require.Equal(t, math.NewUint(75), l.TotalIssuance(c.Ctx, asset))
	require.ErrorIs(t, l.Burn(c.Ctx, asset, "alice", math.NewUint(76)), memledger.ErrInsufficientFunds)
}

func TestLedgerRollsBackWithCacheContext(t *testing.T) {
	c := newChain(t)
	l := c.Ledger
	require.NoError(t, l.Mint(c.Ctx, asset, "alice", math.NewUint(100)))

	cacheCtx, _ := c.Ctx.CacheContext()
	require.NoError(t, l.Transfer(cacheCtx, asset, "alice", "bob", math.NewUint(100)))
	require.True(t, l.FreeBalance(cacheCtx, asset, "alice").IsZero())

	require.Equal(t, math.NewUint(100), l.FreeBalance(c.Ctx, asset, "alice"))
	require.True(t, l.FreeBalance(c.Ctx, asset, "bob").IsZero())
}

func TestRegistry(t *testing.T) {
	c := newChain(t)
	r := c.Registry

	require.False(t, r.Exists(c.Ctx, asset))
	r.Register(c.Ctx, asset, "DOT", math.NewUint(10))
	info, found := r.Get(c.Ctx, asset)
	require.True(t, found)
	require.Equal(t, "DOT", info.Name)
	require.Equal(t, math.NewUint(10), info.ExistentialDeposit)

	first, err := r.CreateAsset(c.Ctx, "A", math.ZeroUint())
	require.NoError(t, err)
	require.Equal(t, uint32(sim.FirstCreatedAssetID), first)

	// an explicitly registered id is skipped
	r.Register(c.Ctx, first+1, "taken", math.ZeroUint())
	second, err := r.CreateAsset(c.Ctx, "B", math.ZeroUint())
	require.NoError(t, err)
	require.Equal(t, first+2, second)

	ids := make([]uint32, 0)
	for _, a := range r.All(c.Ctx) {
		ids = append(ids, a.AssetID)
	}
	require.Contains(t, ids, asset)
	require.Contains(t, ids, second)
}

func TestNFTs(t *testing.T) {
	c := newChain(t)
	n := c.NFTs

	require.NoError(t, n.Mint(c.Ctx, 1337, 1, "alice"))
	require.NoError(t, n.Mint(c.Ctx, 1337, 2, "bob"))
	require.NoError(t, n.Mint(c.Ctx, 1337, 3, "alice"))
	require.ErrorIs(t, n.Mint(c.Ctx, 1337, 1, "bob"), memledger.ErrItemExists)

	owner, found := n.Owner(c.Ctx, 1337, 2)
	require.True(t, found)
	require.Equal(t, "bob", owner)
	require.Equal(t, []uint64{1, 3}, n.ItemsOf(c.Ctx, 1337, "alice"))

	require.NoError(t, n.Transfer(c.Ctx, 1337, 1, "bob"))
	require.Equal(t, []uint64{3}, n.ItemsOf(c.Ctx, 1337, "alice"))

	require.NoError(t, n.Burn(c.Ctx, 1337, 3))
	_, found = n.Owner(c.Ctx, 1337, 3)
	require.False(t, found)
	require.ErrorIs(t, n.Burn(c.Ctx, 1337, 3), memledger.ErrItemNotFound)
	require.ErrorIs(t, n.Transfer(c.Ctx, 1337, 3, "alice"), memledger.ErrItemNotFound)
}

func TestExportBalancesAndItems(t *testing.T) {
	c := newChain(t)
	l := c.Ledger
	require.NoError(t, l.Mint(c.Ctx, 200, "bob", math.NewUint(5)))
	require.NoError(t, l.Mint(c.Ctx, asset, "bob", math.NewUint(7)))
	require.NoError(t, l.Mint(c.Ctx, asset, "alice", math.NewUint(10)))
	require.NoError(t, l.Reserve(c.Ctx, asset, "alice", math.NewUint(4)))

	require.Equal(t, []memledger.Balance{
		{AssetID: asset, Address: "alice", Free: math.NewUint(6), Reserved: math.NewUint(4)},
		{AssetID: asset, Address: "bob", Free: math.NewUint(7), Reserved: math.ZeroUint()},
		{AssetID: 200, Address: "bob", Free: math.NewUint(5), Reserved: math.ZeroUint()},
	}, l.Balances(c.Ctx))

	require.NoError(t, c.NFTs.Mint(c.Ctx, 1337, 2, "bob"))
	require.NoError(t, c.NFTs.Mint(c.Ctx, 1337, 1, "alice"))
	require.Equal(t, []memledger.Item{
		{Collection: 1337, Item: 1, Owner: "alice"},
		{Collection: 1337, Item: 2, Owner: "bob"},
	}, c.NFTs.All(c.Ctx))
}
