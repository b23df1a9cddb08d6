package api

import (
	"context"
	"testing"

	"cosmossdk.io/log"
	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/stretchr/testify/require"

	"github.com/openalpha/omnipool/api/handlers"
	"github.com/openalpha/omnipool/api/types"
	"github.com/openalpha/omnipool/pkg/sim"
	dcatypes "github.com/openalpha/omnipool/x/dca/types"
	omnipooltypes "github.com/openalpha/omnipool/x/omnipool/types"
)

const (
	native = omnipooltypes.DefaultNativeAssetID
	hub    = omnipooltypes.DefaultHubAssetID
	stable = omnipooltypes.DefaultStableAssetID
)

var (
	alice = sdk.AccAddress([]byte("alice")).String()
	bob   = sdk.AccAddress([]byte("bob")).String()
)

func testSeed() SeedConfig {
	seed := DefaultSeedConfig()
	seed.Assets = []SeedAsset{
		{Name: "DOT", Price: "0.65", Amount: "2000000000000000"},
		{Name: "ETH", Price: "2", Amount: "2000000000000000"},
	}
	seed.Accounts = []SeedAccount{
		{Address: alice, Balances: map[string]string{"DOT": "1000000000000000", "0": "10000000000000000"}},
		{Address: bob, Balances: map[string]string{"ETH": "1000000000000000"}},
	}
	return seed
}

func newTestService(t *testing.T) (*Service, map[string]uint32) {
	t.Helper()
	chain, err := sim.New(sim.Config{})
	require.NoError(t, err)
	ids, err := Seed(chain, testSeed())
	require.NoError(t, err)
	return NewService(chain, nil, 10, log.NewNopLogger()), ids
}

func TestSeed(t *testing.T) {
	s, ids := newTestService(t)
	require.Equal(t, uint32(sim.FirstCreatedAssetID), ids["DOT"])
	require.Equal(t, uint32(sim.FirstCreatedAssetID+1), ids["ETH"])

	pool, err := s.Pool(context.Background())
	require.NoError(t, err)
	require.True(t, pool.Initialized)
	require.Equal(t, 4, pool.AssetCount)

	dot, err := s.Asset(context.Background(), ids["DOT"])
	require.NoError(t, err)
	require.Equal(t, "DOT", dot.Name)
	require.Equal(t, "2000000000000000", dot.Reserve)
	require.Equal(t, "1300000000000000", dot.HubReserve)
	require.Equal(t, "0.650000000000000000", dot.Price)

	account, err := s.Account(context.Background(), alice)
	require.NoError(t, err)
	require.Len(t, account.Balances, 2)
	require.Empty(t, account.Positions)
}

func TestSeedRejectsBadConfig(t *testing.T) {
	for name, mutate := range map[string]func(*SeedConfig){
		"duplicate asset": func(c *SeedConfig) { c.Assets = append(c.Assets, c.Assets[0]) },
		"unknown balance": func(c *SeedConfig) { c.Accounts[0].Balances = map[string]string{"KSM": "1"} },
		"hub balance":     func(c *SeedConfig) { c.Accounts[0].Balances = map[string]string{"1": "1"} },
		"bad price":       func(c *SeedConfig) { c.StablePrice = "abc" },
	} {
		t.Run(name, func(t *testing.T) {
			chain, err := sim.New(sim.Config{})
			require.NoError(t, err)
			cfg := testSeed()
			mutate(&cfg)
			_, err = Seed(chain, cfg)
			require.Error(t, err)
		})
	}
}

func TestSellAndBuyRecordTrades(t *testing.T) {
	s, ids := newTestService(t)
	ctx := context.Background()

	sold, err := s.Sell(ctx, &omnipooltypes.MsgSell{
		Who:          alice,
		AssetIn:      ids["DOT"],
		AssetOut:     native,
		Amount:       "100000000000000",
		MinBuyAmount: "0",
	})
	require.NoError(t, err)
	require.Equal(t, uint64(1), sold.Sequence)
	require.Equal(t, "sell", sold.Kind)
	require.Equal(t, alice, sold.Who)
	require.Equal(t, "100000000000000", sold.AmountIn)
	require.NotEqual(t, "0", sold.AmountOut)

	bought, err := s.Buy(ctx, &omnipooltypes.MsgBuy{
		Who:           alice,
		AssetOut:      ids["ETH"],
		AssetIn:       ids["DOT"],
		Amount:        "1000000000000",
		MaxSellAmount: "100000000000000",
	})
	require.NoError(t, err)
	require.Equal(t, uint64(2), bought.Sequence)
	require.Equal(t, "buy", bought.Kind)
	require.Equal(t, "1000000000000", bought.AmountOut)

	trades, err := s.Trades(ctx, 10)
	require.NoError(t, err)
	require.Len(t, trades, 2)
	require.Equal(t, uint64(2), trades[0].Sequence)
	require.Equal(t, uint64(1), trades[1].Sequence)

	account, err := s.Account(ctx, alice)
	require.NoError(t, err)
	var eth string
	for _, b := range account.Balances {
		if b.AssetID == ids["ETH"] {
			eth = b.Free
		}
	}
	require.Equal(t, "1000000000000", eth)
}

func TestFailedTradeLeavesNoTrace(t *testing.T) {
	s, ids := newTestService(t)
	ctx := context.Background()
	before, err := s.Asset(ctx, ids["DOT"])
	require.NoError(t, err)

	_, err = s.Sell(ctx, &omnipooltypes.MsgSell{
		Who:          alice,
		AssetIn:      ids["DOT"],
		AssetOut:     native,
		Amount:       "100000000000000",
		MinBuyAmount: "100000000000000000000",
	})
	require.ErrorIs(t, err, omnipooltypes.ErrBuyLimitNotReached)

	after, err := s.Asset(ctx, ids["DOT"])
	require.NoError(t, err)
	require.Equal(t, before, after)
	trades, _ := s.Trades(ctx, 10)
	require.Empty(t, trades)

	// rejected before reaching the keeper
	_, err = s.Sell(ctx, &omnipooltypes.MsgSell{Who: "nobody", AssetIn: ids["DOT"], Amount: "1", MinBuyAmount: "0"})
	require.Error(t, err)
}

func TestQuote(t *testing.T) {
	s, ids := newTestService(t)
	ctx := context.Background()

	quote, err := s.Quote(ctx, "sell", ids["DOT"], native, "100000000000000")
	require.NoError(t, err)

	sold, err := s.Sell(ctx, &omnipooltypes.MsgSell{
		Who:          alice,
		AssetIn:      ids["DOT"],
		AssetOut:     native,
		Amount:       "100000000000000",
		MinBuyAmount: "0",
	})
	require.NoError(t, err)
	require.Equal(t, quote.AmountOut.String(), sold.AmountOut)

	_, err = s.Quote(ctx, "swap", ids["DOT"], native, "1")
	require.Error(t, err)
}

func TestLiquidityLifecycle(t *testing.T) {
	s, ids := newTestService(t)
	ctx := context.Background()

	position, err := s.AddLiquidity(ctx, &omnipooltypes.MsgAddLiquidity{
		Who:     alice,
		AssetID: ids["DOT"],
		Amount:  "100000000000000",
	})
	require.NoError(t, err)
	require.Equal(t, alice, position.Owner)
	require.Equal(t, "100000000000000", position.Amount)
	require.Equal(t, "100000000000000", position.Shares)

	account, err := s.Account(ctx, alice)
	require.NoError(t, err)
	require.Equal(t, []uint64{position.PositionID}, account.Positions)

	_, err = s.RemoveLiquidity(ctx, &omnipooltypes.MsgRemoveLiquidity{
		Who:        bob,
		PositionID: position.PositionID,
		Shares:     position.Shares,
	})
	require.ErrorIs(t, err, omnipooltypes.ErrForbidden)

	result, err := s.RemoveLiquidity(ctx, &omnipooltypes.MsgRemoveLiquidity{
		Who:        alice,
		PositionID: position.PositionID,
		Shares:     position.Shares,
	})
	require.NoError(t, err)
	require.True(t, result.Destroyed)
	require.True(t, result.Amount.LTE(math.NewUint(100_000_000_000_000)))
	require.True(t, result.Amount.GTE(math.NewUint(99_999_999_999_999)))

	_, err = s.Position(ctx, position.PositionID)
	require.ErrorIs(t, err, omnipooltypes.ErrPositionNotFound)
}

func TestFaucet(t *testing.T) {
	s, ids := newTestService(t)
	ctx := context.Background()
	s.SetFaucetLimit(math.NewUint(1000))

	balance, err := s.Faucet(ctx, &types.FaucetRequest{Who: bob, AssetID: ids["DOT"], Amount: "500"})
	require.NoError(t, err)
	require.Equal(t, "500", balance.Free)

	_, err = s.Faucet(ctx, &types.FaucetRequest{Who: bob, AssetID: ids["DOT"], Amount: "5000"})
	require.ErrorIs(t, err, omnipooltypes.ErrInvalidAmount)
	_, err = s.Faucet(ctx, &types.FaucetRequest{Who: bob, AssetID: hub, Amount: "1"})
	require.ErrorIs(t, err, omnipooltypes.ErrNotAllowed)
	_, err = s.Faucet(ctx, &types.FaucetRequest{Who: bob, AssetID: 4242, Amount: "1"})
	require.ErrorIs(t, err, handlers.ErrNotFound)
}

func TestCreateAsset(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	resp, err := s.CreateAsset(ctx, &types.CreateAssetRequest{
		Name:   "KSM",
		Price:  "1.5",
		Amount: "1000000000000000",
		Owner:  bob,
	})
	require.NoError(t, err)
	require.Equal(t, uint32(sim.FirstCreatedAssetID+2), resp.AssetID)
	require.NotZero(t, resp.PositionID)

	asset, err := s.Asset(ctx, resp.AssetID)
	require.NoError(t, err)
	require.Equal(t, "KSM", asset.Name)
	require.Equal(t, "1500000000000000", asset.HubReserve)

	position, err := s.Position(ctx, resp.PositionID)
	require.NoError(t, err)
	require.Equal(t, bob, position.Owner)

	// a failed listing does not consume an asset id
	_, err = s.CreateAsset(ctx, &types.CreateAssetRequest{Name: "BAD", Price: "0", Amount: "1000"})
	require.Error(t, err)
	resp, err = s.CreateAsset(ctx, &types.CreateAssetRequest{Name: "GLMR", Price: "1", Amount: "1000000000000000"})
	require.NoError(t, err)
	require.Equal(t, uint32(sim.FirstCreatedAssetID+3), resp.AssetID)
	require.Zero(t, resp.PositionID)
}

func TestScheduleExecutesOnNextBlock(t *testing.T) {
	s, ids := newTestService(t)
	ctx := context.Background()

	state, err := s.Schedule(ctx, &dcatypes.MsgSchedule{
		Owner:      alice,
		Period:     1,
		OrderType:  string(dcatypes.OrderTypeSell),
		AssetIn:    ids["DOT"],
		AssetOut:   stable,
		Amount:     "10000000000000",
		Limit:      "0",
		Recurrence: dcatypes.Fixed(2),
	})
	require.NoError(t, err)
	require.Equal(t, s.Height()+1, state.PlannedBlock)

	schedules, err := s.SchedulesByOwner(ctx, alice)
	require.NoError(t, err)
	require.Len(t, schedules, 1)

	block, err := s.NextBlock(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(2), block.Height)
	require.Equal(t, 1, block.Trades)

	trades, _ := s.Trades(ctx, 1)
	require.Equal(t, alice, trades[0].Who)
	require.Equal(t, "10000000000000", trades[0].AmountIn)

	state, err = s.ScheduleState(ctx, state.Schedule.ID)
	require.NoError(t, err)
	require.Equal(t, uint32(1), *state.Remaining)

	require.NoError(t, s.Terminate(ctx, &dcatypes.MsgTerminate{Caller: alice, ScheduleID: state.Schedule.ID}))
	_, err = s.ScheduleState(ctx, state.Schedule.ID)
	require.ErrorIs(t, err, dcatypes.ErrScheduleNotFound)
}
