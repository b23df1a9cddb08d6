package keeper_test

import (
	"testing"

	"cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/openalpha/omnipool/pkg/sim"
	"github.com/openalpha/omnipool/x/circuitbreaker/keeper"
	"github.com/openalpha/omnipool/x/circuitbreaker/types"
)

func newChain(t *testing.T) *sim.Chain {
	t.Helper()
	c, err := sim.New(sim.Config{})
	require.NoError(t, err)
	return c
}

func TestLiquidityRangeIsFixedOnFirstTouch(t *testing.T) {
	c := newChain(t)
	cb := c.CircuitBreaker

	require.NoError(t, cb.BeforePoolStateChange(c.Ctx, 100, math.NewUint(1000)))
	r, found := cb.GetLiquidityRange(c.Ctx, 100)
	require.True(t, found)
	require.Equal(t, math.NewUint(800), r.MinLimit)
	require.Equal(t, math.NewUint(1200), r.MaxLimit)

	// later touches in the same block keep the first range
	require.NoError(t, cb.BeforePoolStateChange(c.Ctx, 100, math.NewUint(1100)))
	r, _ = cb.GetLiquidityRange(c.Ctx, 100)
	require.Equal(t, math.NewUint(800), r.MinLimit)
}

func TestAfterPoolStateChange(t *testing.T) {
	c := newChain(t)
	cb := c.CircuitBreaker

	err := cb.AfterPoolStateChange(c.Ctx, 100, math.NewUint(1000))
	require.ErrorIs(t, err, types.ErrLiquidityLimitNotStoredForAsset)

	require.NoError(t, cb.BeforePoolStateChange(c.Ctx, 100, math.NewUint(1000)))

	require.NoError(t, cb.AfterPoolStateChange(c.Ctx, 100, math.NewUint(800)))
	require.NoError(t, cb.AfterPoolStateChange(c.Ctx, 100, math.NewUint(1200)))
	require.ErrorIs(t, cb.AfterPoolStateChange(c.Ctx, 100, math.NewUint(799)), types.ErrMinTradeVolumePerBlockReached)
	require.ErrorIs(t, cb.AfterPoolStateChange(c.Ctx, 100, math.NewUint(1201)), types.ErrMaxTradeVolumePerBlockReached)
}

func TestRangesAreClearedAtEndOfBlock(t *testing.T) {
	c := newChain(t)
	cb := c.CircuitBreaker

	require.NoError(t, cb.BeforePoolStateChange(c.Ctx, 100, math.NewUint(1000)))
	require.NoError(t, cb.BeforePoolStateChange(c.Ctx, 200, math.NewUint(1000)))
	require.Equal(t, 2, cb.ClearLiquidityRanges(c.Ctx))
	require.Zero(t, cb.ClearLiquidityRanges(c.Ctx))

	require.NoError(t, cb.BeforePoolStateChange(c.Ctx, 100, math.NewUint(1000)))
	require.NoError(t, c.NextBlock())
	_, found := cb.GetLiquidityRange(c.Ctx, 100)
	require.False(t, found)

	// a fresh block gets a fresh range
	require.NoError(t, cb.BeforePoolStateChange(c.Ctx, 100, math.NewUint(500)))
	r, _ := cb.GetLiquidityRange(c.Ctx, 100)
	require.Equal(t, math.NewUint(400), r.MinLimit)
	require.Equal(t, math.NewUint(600), r.MaxLimit)
}

func TestSetTradeVolumeLimit(t *testing.T) {
	c := newChain(t)
	cb := c.CircuitBreaker
	limit := math.LegacyMustNewDecFromStr("0.05")

	err := cb.SetTradeVolumeLimit(c.Ctx, "someone", 100, limit)
	require.ErrorIs(t, err, types.ErrUnauthorized)

	for _, bad := range []math.LegacyDec{math.LegacyZeroDec(), math.LegacyMustNewDecFromStr("1.5")} {
		err = cb.SetTradeVolumeLimit(c.Ctx, c.Authority, 100, bad)
		require.ErrorIs(t, err, types.ErrInvalidTradeVolumeLimit)
	}

	require.NoError(t, cb.SetTradeVolumeLimit(c.Ctx, c.Authority, 100, limit))
	require.Equal(t, limit, cb.GetTradeVolumeLimit(c.Ctx, 100))
	require.Equal(t, types.DefaultParams().DefaultTradeVolumeLimit, cb.GetTradeVolumeLimit(c.Ctx, 200))

	require.NoError(t, cb.BeforePoolStateChange(c.Ctx, 100, math.NewUint(1000)))
	r, _ := cb.GetLiquidityRange(c.Ctx, 100)
	require.Equal(t, math.NewUint(950), r.MinLimit)
	require.Equal(t, math.NewUint(1050), r.MaxLimit)
}

func TestMsgServerSetTradeVolumeLimit(t *testing.T) {
	c := newChain(t)
	srv := keeper.NewMsgServerImpl(c.CircuitBreaker)

	_, err := srv.SetTradeVolumeLimit(c.Ctx, &types.MsgSetTradeVolumeLimit{
		Authority: c.Authority,
		AssetID:   100,
		Limit:     "0.3",
	})
	require.NoError(t, err)
	require.Equal(t, math.LegacyMustNewDecFromStr("0.3"), c.CircuitBreaker.GetTradeVolumeLimit(c.Ctx, 100))

	_, err = srv.SetTradeVolumeLimit(c.Ctx, &types.MsgSetTradeVolumeLimit{
		Authority: c.Authority,
		AssetID:   100,
		Limit:     "abc",
	})
	require.Error(t, err)
}

func TestGenesis(t *testing.T) {
	c := newChain(t)
	cb := c.CircuitBreaker

	gs := types.GenesisState{
		Params: types.Params{DefaultTradeVolumeLimit: math.LegacyMustNewDecFromStr("0.1")},
		AssetLimits: []types.AssetLimit{
			{AssetID: 100, Limit: math.LegacyMustNewDecFromStr("0.5")},
			{AssetID: 200, Limit: math.LegacyMustNewDecFromStr("0.25")},
		},
	}
	require.NoError(t, cb.InitGenesis(c.Ctx, gs))

	exported := cb.ExportGenesis(c.Ctx)
	require.True(t, gs.Params.DefaultTradeVolumeLimit.Equal(exported.Params.DefaultTradeVolumeLimit))
	require.Len(t, exported.AssetLimits, 2)
	require.Equal(t, uint32(100), exported.AssetLimits[0].AssetID)
	require.True(t, exported.AssetLimits[1].Limit.Equal(math.LegacyMustNewDecFromStr("0.25")))

	dup := gs
	dup.AssetLimits = append(dup.AssetLimits, types.AssetLimit{AssetID: 100, Limit: math.LegacyOneDec()})
	require.Error(t, cb.InitGenesis(c.Ctx, dup))
}
