package sim_test

import (
	"testing"
	"time"

	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/stretchr/testify/require"

	"github.com/openalpha/omnipool/pkg/sim"
	omnipooltypes "github.com/openalpha/omnipool/x/omnipool/types"
)

var alice = sdk.AccAddress([]byte("alice")).String()

func TestNextBlockCommitsState(t *testing.T) {
	c, err := sim.New(sim.Config{})
	require.NoError(t, err)
	require.Equal(t, uint64(1), c.Height())
	start := c.Ctx.BlockTime()

	require.NoError(t, c.Fund(omnipooltypes.DefaultNativeAssetID, alice, math.NewUint(1_000)))
	require.NoError(t, c.NextBlock())
	require.NoError(t, c.Fund(omnipooltypes.DefaultNativeAssetID, alice, math.NewUint(500)))
	require.NoError(t, c.NextBlock())

	require.Equal(t, uint64(3), c.Height())
	require.Equal(t, start.Add(12*time.Second), c.Ctx.BlockTime())
	require.Equal(t, math.NewUint(1_500), c.Ledger.FreeBalance(c.Ctx, omnipooltypes.DefaultNativeAssetID, alice))
	require.True(t, c.Registry.Exists(c.Ctx, omnipooltypes.DefaultStableAssetID))
	require.Equal(t, omnipooltypes.DefaultParams().MinimumTradingLimit, c.Omnipool.GetParams(c.Ctx).MinimumTradingLimit)
}

func TestAdvanceTo(t *testing.T) {
	c, err := sim.New(sim.Config{StartHeight: 10, BlockTime: time.Second})
	require.NoError(t, err)

	require.NoError(t, c.AdvanceTo(15))
	require.Equal(t, uint64(15), c.Height())

	// already past the target
	require.NoError(t, c.AdvanceTo(12))
	require.Equal(t, uint64(15), c.Height())
}

func TestCreatedAssetIDsSurviveCommit(t *testing.T) {
	c, err := sim.New(sim.Config{})
	require.NoError(t, err)

	first, err := c.Registry.CreateAsset(c.Ctx, "DOT", math.ZeroUint())
	require.NoError(t, err)
	require.Equal(t, uint32(sim.FirstCreatedAssetID), first)

	require.NoError(t, c.NextBlock())
	second, err := c.Registry.CreateAsset(c.Ctx, "ETH", math.ZeroUint())
	require.NoError(t, err)
	require.Equal(t, first+1, second)
}
