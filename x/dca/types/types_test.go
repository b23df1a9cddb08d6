package types

import (
	"testing"

	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/stretchr/testify/require"
)

func hop(in, out uint32) Trade {
	return Trade{Pool: PoolOmnipool, AssetIn: in, AssetOut: out}
}

func sellOrder(route ...Trade) Order {
	return Order{
		Type:     OrderTypeSell,
		AssetIn:  100,
		AssetOut: 200,
		Amount:   math.NewUint(10),
		Limit:    math.ZeroUint(),
		Route:    route,
	}
}

func TestValidateRoute(t *testing.T) {
	tests := []struct {
		name    string
		route   []Trade
		wantErr bool
	}{
		{"direct", nil, false},
		{"single hop", []Trade{hop(100, 200)}, false},
		{"two hops", []Trade{hop(100, 0), hop(0, 200)}, false},
		{"wrong start", []Trade{hop(300, 200)}, true},
		{"wrong end", []Trade{hop(100, 300)}, true},
		{"disconnected", []Trade{hop(100, 0), hop(2, 200)}, true},
		{"self trade", []Trade{hop(100, 100), hop(100, 200)}, true},
		{"unknown pool", []Trade{{Pool: "stableswap", AssetIn: 100, AssetOut: 200}}, true},
		{"too long", []Trade{hop(100, 1), hop(1, 2), hop(2, 3), hop(3, 4), hop(4, 5), hop(5, 200)}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := sellOrder(tc.route...).ValidateRoute()
			if tc.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestOrderHops(t *testing.T) {
	require.Equal(t, []Trade{hop(100, 200)}, sellOrder().Hops())
	route := []Trade{hop(100, 0), hop(0, 200)}
	require.Equal(t, route, sellOrder(route...).Hops())
}

func TestOrderValidate(t *testing.T) {
	require.NoError(t, sellOrder().Validate())

	o := sellOrder()
	o.Type = "swap"
	require.Error(t, o.Validate())

	o = sellOrder()
	o.AssetOut = o.AssetIn
	require.Error(t, o.Validate())

	o = sellOrder()
	o.Amount = math.ZeroUint()
	require.Error(t, o.Validate())

	o = sellOrder()
	o.Type = OrderTypeBuy
	require.Error(t, o.Validate(), "a buy needs a maximum to pay")
	o.Limit = math.NewUint(20)
	require.NoError(t, o.Validate())
}

func TestRecurrence(t *testing.T) {
	require.NoError(t, Fixed(1).Validate())
	require.Error(t, Fixed(0).Validate())
	require.NoError(t, Perpetual().Validate())
	require.Error(t, Recurrence{Kind: "sometimes"}.Validate())

	require.True(t, Perpetual().IsPerpetual())
	require.False(t, Fixed(3).IsPerpetual())
	require.Equal(t, "fixed(3)", Fixed(3).String())
	require.Equal(t, "perpetual", Perpetual().String())
}

func TestParamsValidate(t *testing.T) {
	require.NoError(t, DefaultParams().Validate())

	p := DefaultParams()
	p.ExecutionBond = p.TotalBond.AddUint64(1)
	require.Error(t, p.Validate())

	p = DefaultParams()
	p.MaxSchedulesPerBlock = 0
	require.Error(t, p.Validate())

	p = DefaultParams()
	p.RetryBackoff = math.LegacyMustNewDecFromStr("0.5")
	require.Error(t, p.Validate())
}

func TestGenesisValidate(t *testing.T) {
	require.NoError(t, DefaultGenesis().Validate())

	planned := ScheduleState{
		Schedule:     Schedule{ID: 1, Period: 10, Order: sellOrder(), Recurrence: Fixed(2)},
		PlannedBlock: 5,
	}
	gs := GenesisState{Params: DefaultParams(), NextScheduleID: 2, Schedules: []ScheduleState{planned}}
	require.NoError(t, gs.Validate())

	gs.Schedules = []ScheduleState{planned, planned}
	require.Error(t, gs.Validate())

	gs.Schedules = []ScheduleState{planned}
	gs.NextScheduleID = 1
	require.Error(t, gs.Validate())

	resume := uint64(7)
	both := planned
	both.SuspendedTo = &resume
	gs = GenesisState{Params: DefaultParams(), NextScheduleID: 2, Schedules: []ScheduleState{both}}
	require.Error(t, gs.Validate())
}

func TestMsgScheduleValidateBasic(t *testing.T) {
	owner := sdk.AccAddress([]byte("owner")).String()
	valid := MsgSchedule{
		Owner:      owner,
		Period:     10,
		OrderType:  string(OrderTypeSell),
		AssetIn:    100,
		AssetOut:   200,
		Amount:     "1000",
		Limit:      "0",
		Recurrence: Fixed(3),
	}
	require.NoError(t, valid.ValidateBasic())

	msg := valid
	msg.Owner = "nobody"
	require.ErrorIs(t, msg.ValidateBasic(), ErrInvalidSchedule)

	msg = valid
	msg.Amount = "ten"
	require.ErrorIs(t, msg.ValidateBasic(), ErrInvalidAmount)

	msg = valid
	msg.Period = 0
	require.ErrorIs(t, msg.ValidateBasic(), ErrInvalidSchedule)

	msg = valid
	msg.Route = []Trade{hop(100, 0), hop(1, 200)}
	require.ErrorIs(t, msg.ValidateBasic(), ErrInvalidRoute)

	s, err := valid.ToSchedule()
	require.NoError(t, err)
	require.Equal(t, owner, s.Owner)
	require.Equal(t, math.NewUint(1000), s.Order.Amount)
}
