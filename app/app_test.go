package app

import (
	"encoding/json"
	"testing"

	"cosmossdk.io/log"
	"cosmossdk.io/math"
	cmtproto "github.com/cometbft/cometbft/proto/tendermint/types"
	dbm "github.com/cosmos/cosmos-db"
	"github.com/stretchr/testify/require"

	"github.com/openalpha/omnipool/pkg/memledger"
	omnipooltypes "github.com/openalpha/omnipool/x/omnipool/types"
)

func TestLedgerGenesisRoundTrip(t *testing.T) {
	a := NewApp(log.NewNopLogger(), dbm.NewMemDB(), nil, true, nil)
	ctx := a.NewUncachedContext(false, cmtproto.Header{Height: 1})

	gs := LedgerGenesis{
		Assets: []memledger.AssetInfo{
			{AssetID: 0, Name: "NATIVE", ExistentialDeposit: math.ZeroUint()},
			{AssetID: 100, Name: "DOT", ExistentialDeposit: math.NewUint(10)},
		},
		Balances: []memledger.Balance{
			{AssetID: 100, Address: "alice", Free: math.NewUint(50), Reserved: math.NewUint(20)},
			{AssetID: 0, Address: "bob", Free: math.NewUint(7)},
		},
		Items: []memledger.Item{{Collection: 1337, Item: 1, Owner: "alice"}},
	}
	require.NoError(t, a.initLedgerGenesis(ctx, gs))

	require.Equal(t, math.NewUint(50), a.Ledger.FreeBalance(ctx, 100, "alice"))
	require.Equal(t, math.NewUint(20), a.Ledger.ReservedBalance(ctx, 100, "alice"))
	require.Equal(t, math.NewUint(7), a.Ledger.FreeBalance(ctx, 0, "bob"))

	exported := a.exportLedgerGenesis(ctx)
	require.Len(t, exported.Assets, 2)
	require.Len(t, exported.Balances, 2)
	require.Equal(t, "bob", exported.Balances[0].Address)
	require.Equal(t, gs.Items, exported.Items)
}

func TestLedgerGenesisRejectsUnknownAsset(t *testing.T) {
	a := NewApp(log.NewNopLogger(), dbm.NewMemDB(), nil, true, nil)
	ctx := a.NewUncachedContext(false, cmtproto.Header{Height: 1})

	err := a.initLedgerGenesis(ctx, LedgerGenesis{
		Balances: []memledger.Balance{{AssetID: 5, Address: "alice", Free: math.NewUint(1)}},
	})
	require.Error(t, err)
}

func TestExportModuleGenesis(t *testing.T) {
	a := NewApp(log.NewNopLogger(), dbm.NewMemDB(), nil, true, nil)
	ctx := a.NewUncachedContext(false, cmtproto.Header{Height: 1})
	require.NoError(t, a.OmnipoolKeeper.SetParams(ctx, omnipooltypes.DefaultParams()))

	out, err := a.ExportModuleGenesis(ctx)
	require.NoError(t, err)
	for _, name := range []string{LedgerStoreKey, "omnipool", "circuitbreaker", "dca"} {
		require.Contains(t, out, name)
	}

	var gs omnipooltypes.GenesisState
	require.NoError(t, json.Unmarshal(out["omnipool"], &gs))
	require.Equal(t, omnipooltypes.DefaultParams().HubAssetID, gs.Params.HubAssetID)
}

func TestBlockedModuleAccountAddrs(t *testing.T) {
	blocked := BlockedModuleAccountAddrs(map[string][]string{"fee_collector": nil, omnipooltypes.ModuleName: nil})
	require.Len(t, blocked, 1)
}
