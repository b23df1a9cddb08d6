package keeper_test

import (
	"testing"

	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/stretchr/testify/require"

	"github.com/openalpha/omnipool/x/dca/keeper"
	"github.com/openalpha/omnipool/x/dca/types"
	omnipooltypes "github.com/openalpha/omnipool/x/omnipool/types"
)

func TestExecuteSell(t *testing.T) {
	c := newChain(t, nil)

	id, err := c.DCA.Schedule(c.Ctx, alice, sellSchedule(10*ONE, 10, types.Fixed(5)), nil)
	require.NoError(t, err)

	require.NoError(t, c.NextBlock())

	require.Equal(t, aliceA.Sub(math.NewUint(10*ONE)), c.Ledger.FreeBalance(c.Ctx, assetA, alice))
	require.False(t, c.Ledger.FreeBalance(c.Ctx, assetB, alice).IsZero())

	remaining, found := c.DCA.GetRemainingRecurrences(c.Ctx, id)
	require.True(t, found)
	require.Equal(t, uint32(4), remaining)

	planned, found := c.DCA.GetPlannedBlock(c.Ctx, id)
	require.True(t, found)
	require.Equal(t, c.Height()+10, planned)
	require.Equal(t, math.NewUint(3_000_000), reserved(c, alice))
	require.True(t, hasEvent(c.Events(), types.EventTypeExecuted))
}

func TestFixedScheduleCompletes(t *testing.T) {
	c := newChain(t, nil)

	id, err := c.DCA.Schedule(c.Ctx, alice, sellSchedule(10*ONE, 1, types.Fixed(2)), nil)
	require.NoError(t, err)

	require.NoError(t, c.NextBlock())
	_, found := c.DCA.GetSchedule(c.Ctx, id)
	require.True(t, found)

	require.NoError(t, c.NextBlock())
	_, found = c.DCA.GetSchedule(c.Ctx, id)
	require.False(t, found)
	require.True(t, hasEvent(c.Events(), types.EventTypeCompleted))

	require.Equal(t, aliceA.Sub(math.NewUint(20*ONE)), c.Ledger.FreeBalance(c.Ctx, assetA, alice))
	require.True(t, reserved(c, alice).IsZero())
	require.Zero(t, c.DCA.ActiveSchedules(c.Ctx))
	_, found = c.DCA.GetRemainingRecurrences(c.Ctx, id)
	require.False(t, found)
}

func TestSchedulesRunInPlannedOrder(t *testing.T) {
	c := newChain(t, nil)
	target := c.Height() + 2

	first, err := c.DCA.Schedule(c.Ctx, alice, sellSchedule(10*ONE, 10, types.Fixed(5)), block(target))
	require.NoError(t, err)
	second, err := c.DCA.Schedule(c.Ctx, bob, sellSchedule(10*ONE, 10, types.Fixed(5)), block(target))
	require.NoError(t, err)
	require.NoError(t, c.DCA.Pause(c.Ctx, alice, first, target+5))
	require.NoError(t, c.DCA.Resume(c.Ctx, alice, first, block(target)))
	require.Equal(t, []uint64{second, first}, c.DCA.GetScheduleIDsPerBlock(c.Ctx, target))

	require.NoError(t, c.AdvanceTo(target))

	var executed []string
	for _, e := range c.Events() {
		if e.Type != types.EventTypeExecuted {
			continue
		}
		for _, attr := range e.Attributes {
			if attr.Key == types.AttributeKeyScheduleID {
				executed = append(executed, attr.Value)
			}
		}
	}
	require.Equal(t, []string{"2", "1"}, executed)
	require.Empty(t, c.DCA.GetScheduleIDsPerBlock(c.Ctx, target))
	require.Equal(t, []uint64{second, first}, c.DCA.GetScheduleIDsPerBlock(c.Ctx, target+10))
}

func TestTransientFailureSuspends(t *testing.T) {
	c := newChain(t, nil)

	// alice holds 1000 of asset 100, so the sell cannot be paid
	id, err := c.DCA.Schedule(c.Ctx, alice, sellSchedule(1500*ONE, 10, types.Fixed(5)), nil)
	require.NoError(t, err)

	require.NoError(t, c.NextBlock())

	state, err := c.DCA.GetScheduleState(c.Ctx, id)
	require.NoError(t, err)
	require.NotNil(t, state.SuspendedTo)
	require.Equal(t, c.Height()+10, *state.SuspendedTo)
	require.Zero(t, state.PlannedBlock)
	require.Equal(t, uint32(5), *state.Remaining)
	require.Equal(t, math.NewUint(2_000_000), state.Bond.Amount)
	require.Equal(t, math.NewUint(2_000_000), reserved(c, alice))
	require.Equal(t, aliceA, c.Ledger.FreeBalance(c.Ctx, assetA, alice))
	require.True(t, hasEvent(c.Events(), types.EventTypeSuspended))

	require.NoError(t, c.DCA.Resume(c.Ctx, alice, id, nil))
	require.Equal(t, math.NewUint(3_000_000), reserved(c, alice))
}

func TestPermanentFailureTerminatesAndSlashes(t *testing.T) {
	params := types.DefaultParams()
	params.FeeReceiver = treasury
	c := newChain(t, &params)

	s := sellSchedule(10*ONE, 10, types.Fixed(5))
	s.Order.AssetOut = unlisted
	id, err := c.DCA.Schedule(c.Ctx, alice, s, nil)
	require.NoError(t, err)

	require.NoError(t, c.NextBlock())

	_, found := c.DCA.GetSchedule(c.Ctx, id)
	require.False(t, found)
	require.True(t, hasEvent(c.Events(), types.EventTypeTerminated))
	require.True(t, reserved(c, alice).IsZero())
	require.Equal(t, aliceNative.Sub(math.NewUint(1_000_000)), c.Ledger.FreeBalance(c.Ctx, native, alice))
	require.Equal(t, math.NewUint(1_000_000), c.Ledger.FreeBalance(c.Ctx, native, treasury))
	require.Zero(t, c.DCA.ActiveSchedules(c.Ctx))
}

func TestRetryWithBackoff(t *testing.T) {
	params := types.DefaultParams()
	params.MaxRetries = 2
	params.RetryDelay = 1
	params.RetryBackoff = math.LegacyNewDec(2)
	c := newChain(t, &params)

	id, err := c.DCA.Schedule(c.Ctx, alice, sellSchedule(1500*ONE, 10, types.Fixed(5)), nil)
	require.NoError(t, err)

	require.NoError(t, c.NextBlock())
	require.Equal(t, uint32(1), c.DCA.GetRetries(c.Ctx, id))
	planned, _ := c.DCA.GetPlannedBlock(c.Ctx, id)
	require.Equal(t, c.Height()+1, planned)

	require.NoError(t, c.NextBlock())
	require.Equal(t, uint32(2), c.DCA.GetRetries(c.Ctx, id))
	planned, _ = c.DCA.GetPlannedBlock(c.Ctx, id)
	require.Equal(t, c.Height()+2, planned)

	require.NoError(t, c.AdvanceTo(planned))
	_, suspended := c.DCA.GetSuspended(c.Ctx, id)
	require.True(t, suspended)
	require.Zero(t, c.DCA.GetRetries(c.Ctx, id))
	require.Equal(t, math.NewUint(2_000_000), reserved(c, alice))
}

func TestRetriesResetAfterSuccess(t *testing.T) {
	params := types.DefaultParams()
	params.MaxRetries = 3
	c := newChain(t, &params)

	carol := sdk.AccAddress([]byte("carol")).String()
	require.NoError(t, c.Fund(native, carol, aliceNative))

	id, err := c.DCA.Schedule(c.Ctx, carol, sellSchedule(10*ONE, 10, types.Fixed(5)), nil)
	require.NoError(t, err)

	require.NoError(t, c.NextBlock())
	require.Equal(t, uint32(1), c.DCA.GetRetries(c.Ctx, id))

	require.NoError(t, c.Fund(assetA, carol, math.NewUint(100*ONE)))
	require.NoError(t, c.NextBlock())
	require.Zero(t, c.DCA.GetRetries(c.Ctx, id))
	remaining, _ := c.DCA.GetRemainingRecurrences(c.Ctx, id)
	require.Equal(t, uint32(4), remaining)
	require.Equal(t, math.NewUint(90*ONE), c.Ledger.FreeBalance(c.Ctx, assetA, carol))
}

func TestExecuteSellRoute(t *testing.T) {
	c := newChain(t, nil)

	s := sellSchedule(10*ONE, 10, types.Fixed(1))
	s.Order.Route = []types.Trade{
		{Pool: types.PoolOmnipool, AssetIn: assetA, AssetOut: native},
		{Pool: types.PoolOmnipool, AssetIn: native, AssetOut: assetB},
	}
	_, err := c.DCA.Schedule(c.Ctx, alice, s, nil)
	require.NoError(t, err)

	freeNative := c.Ledger.FreeBalance(c.Ctx, native, alice)
	require.NoError(t, c.NextBlock())

	require.Equal(t, aliceA.Sub(math.NewUint(10*ONE)), c.Ledger.FreeBalance(c.Ctx, assetA, alice))
	require.False(t, c.Ledger.FreeBalance(c.Ctx, assetB, alice).IsZero())
	// the intermediate asset is passed through in full; only the bond moves back
	require.Equal(t, freeNative.Add(math.NewUint(3_000_000)), c.Ledger.FreeBalance(c.Ctx, native, alice))
}

func TestExecuteBuyRoute(t *testing.T) {
	c := newChain(t, nil)

	s := types.Schedule{
		Period: 10,
		Order: types.Order{
			Type:     types.OrderTypeBuy,
			AssetIn:  assetA,
			AssetOut: assetB,
			Amount:   math.NewUint(5 * ONE),
			Limit:    math.NewUint(100 * ONE),
			Route: []types.Trade{
				{Pool: types.PoolOmnipool, AssetIn: assetA, AssetOut: native},
				{Pool: types.PoolOmnipool, AssetIn: native, AssetOut: assetB},
			},
		},
		Recurrence: types.Fixed(2),
	}
	id, err := c.DCA.Schedule(c.Ctx, alice, s, nil)
	require.NoError(t, err)

	require.NoError(t, c.NextBlock())

	require.Equal(t, math.NewUint(5*ONE), c.Ledger.FreeBalance(c.Ctx, assetB, alice))
	spent := aliceA.Sub(c.Ledger.FreeBalance(c.Ctx, assetA, alice))
	require.False(t, spent.IsZero())
	require.True(t, spent.LTE(math.NewUint(100*ONE)))
	remaining, _ := c.DCA.GetRemainingRecurrences(c.Ctx, id)
	require.Equal(t, uint32(1), remaining)
}

func TestBuyRouteAboveLimitIsTransient(t *testing.T) {
	c := newChain(t, nil)

	s := types.Schedule{
		Period: 10,
		Order: types.Order{
			Type:     types.OrderTypeBuy,
			AssetIn:  assetA,
			AssetOut: assetB,
			Amount:   math.NewUint(5 * ONE),
			Limit:    math.NewUint(1 * ONE),
			Route: []types.Trade{
				{Pool: types.PoolOmnipool, AssetIn: assetA, AssetOut: native},
				{Pool: types.PoolOmnipool, AssetIn: native, AssetOut: assetB},
			},
		},
		Recurrence: types.Fixed(2),
	}
	id, err := c.DCA.Schedule(c.Ctx, alice, s, nil)
	require.NoError(t, err)

	require.NoError(t, c.NextBlock())
	_, suspended := c.DCA.GetSuspended(c.Ctx, id)
	require.True(t, suspended)
	require.True(t, c.Ledger.FreeBalance(c.Ctx, assetB, alice).IsZero())
	require.Equal(t, aliceA, c.Ledger.FreeBalance(c.Ctx, assetA, alice))
}

func TestDefaultFailurePolicy(t *testing.T) {
	policy := keeper.DefaultFailurePolicy{}

	require.Equal(t, keeper.FailureTransient, policy.Classify(omnipooltypes.ErrInsufficientBalance))
	require.Equal(t, keeper.FailureTransient, policy.Classify(types.ErrTradeLimitReached.Wrap("route")))
	require.Equal(t, keeper.FailurePermanent, policy.Classify(omnipooltypes.ErrAssetNotFound))
	require.Equal(t, keeper.FailurePermanent, policy.Classify(omnipooltypes.ErrNotAllowed))
}
