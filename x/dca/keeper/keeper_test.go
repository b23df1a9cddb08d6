package keeper_test

import (
	"testing"

	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/stretchr/testify/require"

	"github.com/openalpha/omnipool/pkg/sim"
	"github.com/openalpha/omnipool/x/dca/types"
	omnipooltypes "github.com/openalpha/omnipool/x/omnipool/types"
)

const (
	ONE = uint64(1_000_000_000_000)

	native = omnipooltypes.DefaultNativeAssetID
	stable = omnipooltypes.DefaultStableAssetID

	assetA = uint32(100)
	assetB = uint32(200)
	// registered but never listed in the pool
	unlisted = uint32(300)
)

var (
	alice    = sdk.AccAddress([]byte("alice")).String()
	bob      = sdk.AccAddress([]byte("bob")).String()
	treasury = sdk.AccAddress([]byte("treasury")).String()

	aliceNative = math.NewUint(10_000 * ONE)
	aliceA      = math.NewUint(1_000 * ONE)
)

// newChain builds a pool with assets 100 and 200 listed at 0.65 and funds alice
// and bob with native (the bond asset) and asset 100.
func newChain(t *testing.T, params *types.Params) *sim.Chain {
	t.Helper()

	c, err := sim.New(sim.Config{DCA: params})
	require.NoError(t, err)

	require.NoError(t, c.Fund(stable, c.PoolAccount, math.NewUint(1000*ONE)))
	require.NoError(t, c.Fund(native, c.PoolAccount, math.NewUint(10_000*ONE)))
	require.NoError(t, c.Omnipool.InitializePool(c.Ctx, c.Authority,
		math.LegacyMustNewDecFromStr("0.5"), math.LegacyOneDec(), math.LegacyOneDec(), math.LegacyOneDec()))

	for _, id := range []uint32{assetA, assetB} {
		c.Registry.Register(c.Ctx, id, "", math.ZeroUint())
		require.NoError(t, c.Fund(id, c.PoolAccount, math.NewUint(2000*ONE)))
		_, err := c.Omnipool.AddToken(c.Ctx, c.Authority, id,
			math.LegacyMustNewDecFromStr("0.65"), math.LegacyOneDec(), c.PoolAccount)
		require.NoError(t, err)
	}
	c.Registry.Register(c.Ctx, unlisted, "", math.ZeroUint())

	for _, who := range []string{alice, bob} {
		require.NoError(t, c.Fund(native, who, aliceNative))
		require.NoError(t, c.Fund(assetA, who, aliceA))
	}
	return c
}

func sellSchedule(amount uint64, period uint64, recurrence types.Recurrence) types.Schedule {
	return types.Schedule{
		Period: period,
		Order: types.Order{
			Type:     types.OrderTypeSell,
			AssetIn:  assetA,
			AssetOut: assetB,
			Amount:   math.NewUint(amount),
			Limit:    math.ZeroUint(),
		},
		Recurrence: recurrence,
	}
}

func block(n uint64) *uint64 {
	return &n
}

func reserved(c *sim.Chain, who string) math.Uint {
	return c.Ledger.ReservedBalance(c.Ctx, native, who)
}

func hasEvent(events sdk.Events, eventType string) bool {
	for _, e := range events {
		if e.Type == eventType {
			return true
		}
	}
	return false
}

func TestScheduleReservesBondAndPlans(t *testing.T) {
	c := newChain(t, nil)

	id, err := c.DCA.Schedule(c.Ctx, alice, sellSchedule(10*ONE, 10, types.Fixed(5)), nil)
	require.NoError(t, err)
	require.Equal(t, uint64(1), id)

	require.Equal(t, math.NewUint(3_000_000), reserved(c, alice))
	require.Equal(t, aliceNative.Sub(math.NewUint(3_000_000)), c.Ledger.FreeBalance(c.Ctx, native, alice))

	state, err := c.DCA.GetScheduleState(c.Ctx, id)
	require.NoError(t, err)
	require.Equal(t, alice, state.Schedule.Owner)
	require.Equal(t, c.Height()+1, state.PlannedBlock)
	require.NotNil(t, state.Remaining)
	require.Equal(t, uint32(5), *state.Remaining)
	require.Nil(t, state.SuspendedTo)

	require.Equal(t, []uint64{id}, c.DCA.GetScheduleIDsPerBlock(c.Ctx, c.Height()+1))
	require.Equal(t, []uint64{id}, c.DCA.GetSchedulesByOwner(c.Ctx, alice))
	require.Equal(t, uint64(1), c.DCA.ActiveSchedules(c.Ctx))
	require.True(t, hasEvent(c.Events(), types.EventTypeScheduled))
	require.True(t, hasEvent(c.Events(), types.EventTypeExecutionPlanned))
}

func TestPerpetualScheduleHasNoRemaining(t *testing.T) {
	c := newChain(t, nil)

	id, err := c.DCA.Schedule(c.Ctx, alice, sellSchedule(10*ONE, 10, types.Perpetual()), nil)
	require.NoError(t, err)

	_, found := c.DCA.GetRemainingRecurrences(c.Ctx, id)
	require.False(t, found)

	require.NoError(t, c.NextBlock())
	_, found = c.DCA.GetRemainingRecurrences(c.Ctx, id)
	require.False(t, found)
	planned, found := c.DCA.GetPlannedBlock(c.Ctx, id)
	require.True(t, found)
	require.Equal(t, c.Height()+10, planned)
}

func TestScheduleValidation(t *testing.T) {
	c := newChain(t, nil)

	_, err := c.DCA.Schedule(c.Ctx, alice, sellSchedule(10*ONE, 0, types.Fixed(5)), nil)
	require.ErrorIs(t, err, types.ErrInvalidSchedule)

	_, err = c.DCA.Schedule(c.Ctx, alice, sellSchedule(10*ONE, 10, types.Fixed(0)), nil)
	require.ErrorIs(t, err, types.ErrInvalidSchedule)

	s := sellSchedule(10*ONE, 10, types.Fixed(5))
	s.Order.Route = []types.Trade{
		{Pool: types.PoolOmnipool, AssetIn: assetA, AssetOut: native},
		{Pool: types.PoolOmnipool, AssetIn: stable, AssetOut: assetB},
	}
	_, err = c.DCA.Schedule(c.Ctx, alice, s, nil)
	require.ErrorIs(t, err, types.ErrInvalidRoute)

	_, err = c.DCA.Schedule(c.Ctx, alice, sellSchedule(10*ONE, 10, types.Fixed(5)), block(c.Height()))
	require.ErrorIs(t, err, types.ErrBlockNumberIsNotInFuture)

	poor := sdk.AccAddress([]byte("poor")).String()
	_, err = c.DCA.Schedule(c.Ctx, poor, sellSchedule(10*ONE, 10, types.Fixed(5)), nil)
	require.ErrorIs(t, err, types.ErrInsufficientBondBalance)

	require.Zero(t, c.DCA.ActiveSchedules(c.Ctx))
	require.True(t, reserved(c, alice).IsZero())
}

func TestScheduleRejectsFullBlock(t *testing.T) {
	c := newChain(t, nil)
	target := c.Height() + 5

	for i := 0; i < 5; i++ {
		_, err := c.DCA.Schedule(c.Ctx, alice, sellSchedule(10*ONE, 10, types.Fixed(1)), block(target))
		require.NoError(t, err)
	}
	_, err := c.DCA.Schedule(c.Ctx, alice, sellSchedule(10*ONE, 10, types.Fixed(1)), block(target))
	require.ErrorIs(t, err, types.ErrTooManyScheduledOrders)
	require.Len(t, c.DCA.GetScheduleIDsPerBlock(c.Ctx, target), 5)
}

func TestPauseAndResume(t *testing.T) {
	c := newChain(t, nil)
	target := c.Height() + 5

	first, err := c.DCA.Schedule(c.Ctx, alice, sellSchedule(10*ONE, 10, types.Fixed(5)), block(target))
	require.NoError(t, err)
	second, err := c.DCA.Schedule(c.Ctx, alice, sellSchedule(10*ONE, 10, types.Fixed(5)), block(target))
	require.NoError(t, err)
	require.Equal(t, []uint64{first, second}, c.DCA.GetScheduleIDsPerBlock(c.Ctx, target))
	require.Equal(t, math.NewUint(6_000_000), reserved(c, alice))

	require.NoError(t, c.DCA.Pause(c.Ctx, alice, first, c.Height()+20))
	require.Equal(t, []uint64{second}, c.DCA.GetScheduleIDsPerBlock(c.Ctx, target))
	require.Equal(t, math.NewUint(5_000_000), reserved(c, alice))

	bond, _ := c.DCA.GetBond(c.Ctx, first)
	require.Equal(t, math.NewUint(2_000_000), bond.Amount)
	resumeAt, suspended := c.DCA.GetSuspended(c.Ctx, first)
	require.True(t, suspended)
	require.Equal(t, c.Height()+20, resumeAt)
	_, planned := c.DCA.GetPlannedBlock(c.Ctx, first)
	require.False(t, planned)

	require.ErrorIs(t, c.DCA.Pause(c.Ctx, alice, first, c.Height()+20), types.ErrScheduleAlreadySuspended)
	require.ErrorIs(t, c.DCA.Resume(c.Ctx, bob, first, nil), types.ErrNotScheduleOwner)
	require.ErrorIs(t, c.DCA.Resume(c.Ctx, alice, second, nil), types.ErrScheduleMustBeSuspended)
	require.ErrorIs(t, c.DCA.Resume(c.Ctx, alice, first, block(c.Height())), types.ErrBlockNumberIsNotInFuture)

	require.NoError(t, c.DCA.Resume(c.Ctx, alice, first, block(target)))
	require.Equal(t, []uint64{second, first}, c.DCA.GetScheduleIDsPerBlock(c.Ctx, target))

	bond, _ = c.DCA.GetBond(c.Ctx, first)
	require.Equal(t, math.NewUint(3_000_000), bond.Amount)
	require.Equal(t, math.NewUint(6_000_000), reserved(c, alice))
	_, suspended = c.DCA.GetSuspended(c.Ctx, first)
	require.False(t, suspended)
	require.True(t, hasEvent(c.Events(), types.EventTypeResumed))
}

func TestResumeWithoutBlockQueuesBehindNextBlock(t *testing.T) {
	c := newChain(t, nil)
	next := c.Height() + 1

	first, err := c.DCA.Schedule(c.Ctx, alice, sellSchedule(10*ONE, 10, types.Fixed(5)), nil)
	require.NoError(t, err)
	second, err := c.DCA.Schedule(c.Ctx, bob, sellSchedule(10*ONE, 10, types.Fixed(5)), nil)
	require.NoError(t, err)
	require.Equal(t, []uint64{first, second}, c.DCA.GetScheduleIDsPerBlock(c.Ctx, next))

	require.NoError(t, c.DCA.Pause(c.Ctx, alice, first, c.Height()+20))
	require.Equal(t, []uint64{second}, c.DCA.GetScheduleIDsPerBlock(c.Ctx, next))

	require.NoError(t, c.DCA.Resume(c.Ctx, alice, first, nil))
	require.Equal(t, []uint64{second, first}, c.DCA.GetScheduleIDsPerBlock(c.Ctx, next))
	planned, found := c.DCA.GetPlannedBlock(c.Ctx, first)
	require.True(t, found)
	require.Equal(t, next, planned)
}

func TestPauseValidation(t *testing.T) {
	c := newChain(t, nil)

	id, err := c.DCA.Schedule(c.Ctx, alice, sellSchedule(10*ONE, 10, types.Fixed(5)), nil)
	require.NoError(t, err)

	require.ErrorIs(t, c.DCA.Pause(c.Ctx, bob, id, c.Height()+5), types.ErrNotScheduleOwner)
	require.ErrorIs(t, c.DCA.Pause(c.Ctx, alice, 99, c.Height()+5), types.ErrScheduleNotFound)
	require.ErrorIs(t, c.DCA.Pause(c.Ctx, alice, id, c.Height()), types.ErrBlockNumberIsNotInFuture)
}

func TestTerminate(t *testing.T) {
	c := newChain(t, nil)

	id, err := c.DCA.Schedule(c.Ctx, alice, sellSchedule(10*ONE, 10, types.Fixed(5)), nil)
	require.NoError(t, err)
	next := c.Height() + 1

	require.ErrorIs(t, c.DCA.Terminate(c.Ctx, bob, id, nil), types.ErrNotScheduleOwner)
	require.ErrorIs(t, c.DCA.Terminate(c.Ctx, alice, id, block(next+1)), types.ErrScheduleNotFound)

	require.NoError(t, c.DCA.Terminate(c.Ctx, alice, id, block(next)))
	_, found := c.DCA.GetSchedule(c.Ctx, id)
	require.False(t, found)
	require.Empty(t, c.DCA.GetScheduleIDsPerBlock(c.Ctx, next))
	require.Empty(t, c.DCA.GetSchedulesByOwner(c.Ctx, alice))
	require.True(t, reserved(c, alice).IsZero())
	require.Equal(t, aliceNative, c.Ledger.FreeBalance(c.Ctx, native, alice))
	require.Zero(t, c.DCA.ActiveSchedules(c.Ctx))
}

func TestAuthorityCanTerminateSuspended(t *testing.T) {
	c := newChain(t, nil)

	id, err := c.DCA.Schedule(c.Ctx, alice, sellSchedule(10*ONE, 10, types.Fixed(5)), nil)
	require.NoError(t, err)
	require.NoError(t, c.DCA.Pause(c.Ctx, alice, id, c.Height()+5))

	require.NoError(t, c.DCA.Terminate(c.Ctx, c.Authority, id, nil))
	_, found := c.DCA.GetSchedule(c.Ctx, id)
	require.False(t, found)
	require.True(t, reserved(c, alice).IsZero())
}
