package keeper_test

import (
	"testing"

	"cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	fp "github.com/openalpha/omnipool/pkg/fixedpoint"
	"github.com/openalpha/omnipool/pkg/memledger"
	cbtypes "github.com/openalpha/omnipool/x/circuitbreaker/types"
	"github.com/openalpha/omnipool/x/omnipool/types"
)

func simpleSellSetup() poolSetup {
	return poolSetup{
		funds: []funding{
			{lp2, 100, 2000 * ONE},
			{lp3, 200, 2000 * ONE},
			{lp1, 100, 1000 * ONE},
		},
		tokens: []token{
			{100, "0.65", lp2, 2000 * ONE},
			{200, "0.65", lp3, 2000 * ONE},
		},
	}
}

func TestSellRegression(t *testing.T) {
	c := newPool(t, simpleSellSetup())

	_, err := c.Omnipool.AddLiquidity(c.Ctx, lp1, 100, units(400*ONE))
	require.NoError(t, err)

	result, err := c.Omnipool.Sell(c.Ctx, lp1, 100, 200, units(50*ONE), units(10*ONE))
	require.NoError(t, err)
	require.Equal(t, units(47808764940238), result.AmountOut)

	require.Equal(t, units(550*ONE), c.Ledger.FreeBalance(c.Ctx, 100, lp1))
	require.Equal(t, units(47808764940238), c.Ledger.FreeBalance(c.Ctx, 200, lp1))
	require.Equal(t, units(13360*ONE), c.Ledger.FreeBalance(c.Ctx, hub, c.PoolAccount))
	require.Equal(t, units(2450*ONE), c.Ledger.FreeBalance(c.Ctx, 100, c.PoolAccount))
	require.Equal(t, units(1952191235059762), c.Ledger.FreeBalance(c.Ctx, 200, c.PoolAccount))

	pool := c.Omnipool.GetPoolState(c.Ctx)
	require.Equal(t, units(13360*ONE), pool.HubAssetLiquidity)
	require.Equal(t, units(26720*ONE), pool.TotalTVL)
	require.True(t, pool.Imbalance.Value.IsZero())

	in := requireAsset(t, c, 100)
	require.Equal(t, units(2450*ONE), in.Reserve)
	require.Equal(t, units(1528163265306123), in.HubReserve)
	require.Equal(t, units(2400*ONE), in.Shares)
	require.Equal(t, units(3120*ONE), in.TVL)

	out := requireAsset(t, c, 200)
	require.Equal(t, units(1952191235059762), out.Reserve)
	require.Equal(t, units(1331836734693877), out.HubReserve)
	require.Equal(t, units(2000*ONE), out.Shares)
	require.Equal(t, units(2600*ONE), out.TVL)
}

func TestSellWithAssetFee(t *testing.T) {
	setup := simpleSellSetup()
	setup.assetFee = "0.1"
	setup.stablePrice = "1"
	setup.tokens = []token{
		{100, "1", lp2, 2000 * ONE},
		{200, "1", lp3, 2000 * ONE},
	}
	c := newPool(t, setup)

	_, err := c.Omnipool.Sell(c.Ctx, lp1, 100, 200, units(50*ONE), units(10*ONE))
	require.NoError(t, err)

	// ceil(0.9 * 47619047619047)
	expected := units(42857142857143)
	require.Equal(t, units(950*ONE), c.Ledger.FreeBalance(c.Ctx, 100, lp1))
	require.Equal(t, expected, c.Ledger.FreeBalance(c.Ctx, 200, lp1))
	require.Equal(t, units(2000*ONE).Sub(expected), c.Ledger.FreeBalance(c.Ctx, 200, c.PoolAccount))
}

func TestSellHubRegression(t *testing.T) {
	c := newPool(t, poolSetup{
		funds: []funding{
			{lp1, 100, 5000 * ONE},
			{lp1, 200, 5000 * ONE},
			{lp2, 100, 1000 * ONE},
			{lp3, 100, 1000 * ONE},
			{lp3, hub, 100 * ONE},
		},
		tokens: []token{
			{100, "0.65", lp1, 2000 * ONE},
			{200, "0.65", lp1, 2000 * ONE},
		},
	})

	_, err := c.Omnipool.AddLiquidity(c.Ctx, lp2, 100, units(400*ONE))
	require.NoError(t, err)

	_, err = c.Omnipool.Sell(c.Ctx, lp3, hub, 200, units(50*ONE), units(10*ONE))
	require.NoError(t, err)

	requireApprox(t, 13410*ONE, c.Ledger.FreeBalance(c.Ctx, hub, c.PoolAccount), 1)
	requireApprox(t, 1925925925925925, c.Ledger.FreeBalance(c.Ctx, 200, c.PoolAccount), 1)
	requireApprox(t, 50*ONE, c.Ledger.FreeBalance(c.Ctx, hub, lp3), 1)
	requireApprox(t, 74074074074074, c.Ledger.FreeBalance(c.Ctx, 200, lp3), 1)

	out := requireAsset(t, c, 200)
	requireApprox(t, 1925925925925926, out.Reserve, 1)
	require.Equal(t, units(1350*ONE), out.HubReserve)

	pool := c.Omnipool.GetPoolState(c.Ctx)
	require.Equal(t, units(13410*ONE), pool.HubAssetLiquidity)
	require.True(t, pool.Imbalance.Negative)
	requireApprox(t, 98148148148148, pool.Imbalance.Value, 1)
}

func TestBuyRegression(t *testing.T) {
	c := newPool(t, poolSetup{
		funds: []funding{{lp1, 100, 1000 * ONE}},
	})
	require.NoError(t, c.Fund(100, c.PoolAccount, units(2000*ONE)))
	require.NoError(t, c.Fund(200, c.PoolAccount, units(2000*ONE)))
	for _, id := range []uint32{100, 200} {
		c.Registry.Register(c.Ctx, id, "", math.ZeroUint())
		_, err := c.Omnipool.AddToken(c.Ctx, c.Authority, id, dec("0.65"), math.LegacyOneDec(), c.PoolAccount)
		require.NoError(t, err)
	}

	_, err := c.Omnipool.AddLiquidity(c.Ctx, lp1, 100, units(400*ONE))
	require.NoError(t, err)

	result, err := c.Omnipool.Buy(c.Ctx, lp1, 200, 100, units(50*ONE), units(100*ONE))
	require.NoError(t, err)
	require.Equal(t, units(50*ONE), result.AmountOut)
	// hub delta ceil(1300 * 50 / 1950), amount in ceil(2400 * delta / (1560 - delta))
	require.Equal(t, units(52401746724892), result.AmountIn)

	require.Equal(t, units(547598253275108), c.Ledger.FreeBalance(c.Ctx, 100, lp1))
	require.Equal(t, units(50*ONE), c.Ledger.FreeBalance(c.Ctx, 200, lp1))
	require.Equal(t, units(13360*ONE), c.Ledger.FreeBalance(c.Ctx, hub, c.PoolAccount))
	require.Equal(t, units(1950*ONE), c.Ledger.FreeBalance(c.Ctx, 200, c.PoolAccount))

	in := requireAsset(t, c, 100)
	require.Equal(t, units(2452401746724892), in.Reserve)
	require.Equal(t, units(1526666666666666), in.HubReserve)
	require.Equal(t, units(2000*ONE), in.ProtocolShares)

	out := requireAsset(t, c, 200)
	require.Equal(t, units(1950*ONE), out.Reserve)
	require.Equal(t, units(1333333333333334), out.HubReserve)
}

func TestSellFailures(t *testing.T) {
	c := newPool(t, simpleSellSetup())

	_, err := c.Omnipool.Sell(c.Ctx, lp1, 100, 200, units(10000*ONE), math.ZeroUint())
	require.ErrorIs(t, err, types.ErrInsufficientBalance)

	_, err = c.Omnipool.Sell(c.Ctx, lp1, 100, 100, units(50*ONE), math.ZeroUint())
	require.ErrorIs(t, err, types.ErrSameAssetTradeNotAllowed)

	_, err = c.Omnipool.Sell(c.Ctx, lp1, 100, 200, units(50*ONE), units(1000*ONE))
	require.ErrorIs(t, err, types.ErrBuyLimitNotReached)

	_, err = c.Omnipool.Sell(c.Ctx, lp1, 100, 200, units(1), math.ZeroUint())
	require.ErrorIs(t, err, types.ErrInsufficientTradingAmount)

	require.NoError(t, c.Omnipool.SetAssetTradableState(c.Ctx, c.Authority, 200, types.TradabilitySell))
	_, err = c.Omnipool.Sell(c.Ctx, lp1, 100, 200, units(50*ONE), math.ZeroUint())
	require.ErrorIs(t, err, types.ErrNotAllowed)

	require.Equal(t, units(1000*ONE), c.Ledger.FreeBalance(c.Ctx, 100, lp1))
}

func TestBuyRespectsSellLimit(t *testing.T) {
	c := newPool(t, simpleSellSetup())

	_, err := c.Omnipool.Buy(c.Ctx, lp1, 200, 100, units(50*ONE), units(1*ONE))
	require.ErrorIs(t, err, types.ErrSellLimitExceeded)

	quote, err := c.Omnipool.SimulateBuy(c.Ctx, 200, 100, units(50*ONE), units(100*ONE))
	require.NoError(t, err)

	result, err := c.Omnipool.Buy(c.Ctx, lp1, 200, 100, units(50*ONE), units(100*ONE))
	require.NoError(t, err)
	require.Equal(t, quote.AmountIn, result.AmountIn)
}

func TestTradeTripsCircuitBreaker(t *testing.T) {
	c := newPool(t, simpleSellSetup())
	require.NoError(t, c.CircuitBreaker.SetTradeVolumeLimit(c.Ctx, c.Authority, 200, dec("0.01")))

	// 1% of 2000 is 20; the sell moves about 47.
	_, err := c.Omnipool.Sell(c.Ctx, lp1, 100, 200, units(50*ONE), math.ZeroUint())
	require.ErrorIs(t, err, cbtypes.ErrMinTradeVolumePerBlockReached)
}

func TestPriceBarrier(t *testing.T) {
	c := newPool(t, simpleSellSetup())
	params := c.Omnipool.GetParams(c.Ctx)
	params.MaxPriceDifference = dec("0.01")
	require.NoError(t, c.Omnipool.SetParams(c.Ctx, params))

	oracle := memledger.NewStaticOracle()
	c.Omnipool.SetPriceOracle(oracle)

	// no reference price: the barrier passes
	_, err := c.Omnipool.Sell(c.Ctx, lp1, 100, 200, units(10*ONE), math.ZeroUint())
	require.NoError(t, err)

	oracle.SetPrice(hub, 200, fp.NewRatio(fp.NewInt(1), fp.NewInt(1)))
	_, err = c.Omnipool.Sell(c.Ctx, lp1, 100, 200, units(10*ONE), math.ZeroUint())
	require.ErrorIs(t, err, types.ErrPriceDifferenceTooHigh)
}

func TestPriceBarrierUsesBlockSnapshots(t *testing.T) {
	c := newPool(t, simpleSellSetup())
	params := c.Omnipool.GetParams(c.Ctx)
	params.MaxPriceDifference = dec("0.01")
	require.NoError(t, c.Omnipool.SetParams(c.Ctx, params))

	require.NoError(t, c.NextBlock())
	snapshot, found := c.Omnipool.GetPriceSnapshot(c.Ctx, 200)
	require.True(t, found)
	require.Equal(t, int64(c.Height()), snapshot.Height)

	// the first trade starts from the snapshot price; the second starts about
	// 3% away from it on asset 200
	_, err := c.Omnipool.Sell(c.Ctx, lp1, 100, 200, units(30*ONE), math.ZeroUint())
	require.NoError(t, err)
	_, err = c.Omnipool.Sell(c.Ctx, lp1, 100, 200, units(10*ONE), math.ZeroUint())
	require.ErrorIs(t, err, types.ErrPriceDifferenceTooHigh)
}
