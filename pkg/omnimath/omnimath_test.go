package omnimath

import (
	"testing"

	"cosmossdk.io/math"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	fp "github.com/openalpha/omnipool/pkg/fixedpoint"
)

const ONE = uint64(1_000_000_000_000)

func n(x uint64) *uint256.Int { return uint256.NewInt(x) }

func state(reserve, hub, shares uint64) AssetReserveState {
	return AssetReserveState{
		Reserve:        n(reserve),
		HubReserve:     n(hub),
		Shares:         n(shares),
		ProtocolShares: fp.Zero(),
		TVL:            fp.Zero(),
	}
}

func fixed(s string) fp.Fixed {
	return fp.MustFixedFromDec(math.LegacyMustNewDecFromStr(s))
}

func requireInt(t *testing.T, want uint64, got *uint256.Int) {
	t.Helper()
	require.NotNil(t, got)
	require.Equal(t, n(want).Dec(), got.Dec())
}

func TestCalculateSellStateChanges(t *testing.T) {
	in := state(2400*ONE, 1560*ONE, 2400*ONE)
	out := state(2000*ONE, 1300*ONE, 2000*ONE)

	c, err := CalculateSellStateChanges(in, out, n(50*ONE), TradeFees{}, DefaultImbalance())
	require.NoError(t, err)

	requireInt(t, 47808764940238, c.AmountOut)
	requireInt(t, 31836734693877, c.AssetIn.DeltaHubReserve.Amount)
	require.False(t, c.AssetIn.DeltaHubReserve.Increase)
	requireInt(t, 31836734693877, c.AssetOut.DeltaHubReserve.Amount)
	require.True(t, c.AssetOut.DeltaHubReserve.Increase)
	require.True(t, c.DeltaImbalance.IsZero())
	require.True(t, c.HDXHubAmount.IsZero())

	after, err := out.Apply(c.AssetOut)
	require.NoError(t, err)
	requireInt(t, 1952191235059762, after.Reserve)
	requireInt(t, 1331836734693877, after.HubReserve)
}

func TestSellProtocolFeeOffsetsImbalance(t *testing.T) {
	in := state(1000, 1000, 1000)
	out := state(1000, 1000, 1000)
	fees := TradeFees{ProtocolFee: fixed("0.1")}
	imbalance := SimpleImbalance{Value: n(5), Negative: true}

	c, err := CalculateSellStateChanges(in, out, n(100), fees, imbalance)
	require.NoError(t, err)

	// 100 * 1000 / 1100 = 90 hub leaves asset in; 9 of it is the protocol fee
	requireInt(t, 90, c.AssetIn.DeltaHubReserve.Amount)
	requireInt(t, 9, c.ProtocolFee)
	requireInt(t, 81, c.AssetOut.DeltaHubReserve.Amount)
	requireInt(t, 74, c.AmountOut)

	requireInt(t, 5, c.BurnedHub)
	requireInt(t, 4, c.HDXHubAmount)
	require.True(t, c.DeltaImbalance.Increase)
	requireInt(t, 5, c.DeltaImbalance.Amount)
	require.False(t, c.DeltaHubLiquidity.Increase)
}

func TestSellAssetFeeStaysInPool(t *testing.T) {
	in := state(2000*ONE, 2000*ONE, 2000*ONE)
	out := state(2000*ONE, 2000*ONE, 2000*ONE)

	c, err := CalculateSellStateChanges(in, out, n(50*ONE), TradeFees{AssetFee: fixed("0.1")}, DefaultImbalance())
	require.NoError(t, err)
	requireInt(t, 4761904761904, c.AssetFee)
	requireInt(t, 42857142857143, c.AmountOut)
	requireInt(t, 42857142857143, c.AssetOut.DeltaReserve.Amount)
}

func TestCalculateSellHubStateChanges(t *testing.T) {
	out := state(2000*ONE, 1300*ONE, 2000*ONE)

	c, err := CalculateSellHubStateChanges(out, n(50*ONE), fp.Fixed{})
	require.NoError(t, err)
	requireInt(t, 74074074074074, c.AmountOut)
	requireInt(t, 50*ONE, c.DeltaHubLiquidity.Amount)
	require.True(t, c.DeltaHubLiquidity.Increase)
	// 0.65 * out + hub in
	require.False(t, c.DeltaImbalance.Increase)
	requireInt(t, 98148148148148, c.DeltaImbalance.Amount)
}

func TestCalculateBuyStateChanges(t *testing.T) {
	in := state(2400*ONE, 1560*ONE, 2400*ONE)
	out := state(2000*ONE, 1300*ONE, 2000*ONE)

	c, err := CalculateBuyStateChanges(in, out, n(50*ONE), TradeFees{}, DefaultImbalance())
	require.NoError(t, err)
	requireInt(t, 50*ONE, c.AmountOut)
	requireInt(t, 33333333333334, c.AssetOut.DeltaHubReserve.Amount)
	requireInt(t, 33333333333334, c.AssetIn.DeltaHubReserve.Amount)
	requireInt(t, 52401746724892, c.AmountIn)
	requireInt(t, 0, c.AssetFee)
}

func TestBuyCostsAtLeastTheMatchingSell(t *testing.T) {
	in := state(2400*ONE, 1560*ONE, 2400*ONE)
	out := state(2000*ONE, 1300*ONE, 2000*ONE)

	sell, err := CalculateSellStateChanges(in, out, n(50*ONE), TradeFees{}, DefaultImbalance())
	require.NoError(t, err)
	buy, err := CalculateBuyStateChanges(in, out, sell.AmountOut, TradeFees{}, DefaultImbalance())
	require.NoError(t, err)
	require.False(t, buy.AmountIn.Lt(n(50*ONE)), "buy of the sell output costs %s", buy.AmountIn.Dec())
}

func TestCalculateBuyFailures(t *testing.T) {
	in := state(1000, 1000, 1000)
	out := state(1000, 1000, 1000)

	_, err := CalculateBuyStateChanges(in, out, n(1000), TradeFees{}, DefaultImbalance())
	require.ErrorIs(t, err, ErrInsufficientLiquidity)

	_, err = CalculateBuyStateChanges(in, out, n(10), TradeFees{AssetFee: fp.FixedOne()}, DefaultImbalance())
	require.ErrorIs(t, err, ErrInvalidFee)

	// asset in would have to give up all of its hub reserve
	_, err = CalculateBuyStateChanges(state(1000, 10, 1000), out, n(500), TradeFees{}, DefaultImbalance())
	require.ErrorIs(t, err, ErrInsufficientLiquidity)
}

func TestCalculateBuyForHubStateChanges(t *testing.T) {
	out := state(2000, 1300, 2000)

	c, err := CalculateBuyForHubStateChanges(out, n(50), fp.Fixed{})
	require.NoError(t, err)
	requireInt(t, 34, c.AmountIn)
	requireInt(t, 66, c.DeltaImbalance.Amount)
	require.False(t, c.DeltaImbalance.Increase)

	_, err = CalculateBuyForHubStateChanges(state(0, 0, 0), n(1), fp.Fixed{})
	require.ErrorIs(t, err, ErrZeroReserve)
}

func TestCalculateAddLiquidityStateChanges(t *testing.T) {
	s := state(2000, 1300, 2000)
	imbalance := SimpleImbalance{Value: n(100), Negative: true}

	c, err := CalculateAddLiquidityStateChanges(s, n(400), imbalance, n(13000))
	require.NoError(t, err)
	requireInt(t, 400, c.Asset.DeltaReserve.Amount)
	requireInt(t, 260, c.Asset.DeltaHubReserve.Amount)
	requireInt(t, 400, c.Asset.DeltaShares.Amount)
	requireInt(t, 400, c.DeltaPosition)
	requireInt(t, 2, c.DeltaImbalance.Amount)
	require.False(t, c.DeltaImbalance.Increase)

	_, err = CalculateAddLiquidityStateChanges(state(0, 0, 0), n(1), imbalance, n(1))
	require.ErrorIs(t, err, ErrZeroReserve)
}

func TestRemoveLiquidityPriceFell(t *testing.T) {
	s := state(200, 100, 200)
	position := Position{Amount: n(100), Shares: n(100), Price: fp.NewRatio(n(1), n(1))}

	c, err := CalculateRemoveLiquidityStateChanges(s, n(100), position, DefaultImbalance(), n(1000), fp.Fixed{})
	require.NoError(t, err)

	// spread (1 - 0.5) / 1.5 of the shares go to the protocol
	requireInt(t, 33, c.SharesToPool)
	requireInt(t, 67, c.SharesToBurn)
	requireInt(t, 67, c.ReserveToLP)
	requireInt(t, 33, c.Asset.DeltaHubReserve.Amount)
	requireInt(t, 0, c.LPHubAmount)
	requireInt(t, 33, c.BurnedHub)
	requireInt(t, 100, c.DeltaPosition)
	require.True(t, c.Asset.DeltaProtocolShares.Increase)
}

func TestRemoveLiquidityPriceRose(t *testing.T) {
	s := state(100, 100, 100)
	position := Position{Amount: n(100), Shares: n(100), Price: fp.NewRatio(n(1), n(2))}

	c, err := CalculateRemoveLiquidityStateChanges(s, n(50), position, DefaultImbalance(), n(1000), fp.Fixed{})
	require.NoError(t, err)
	requireInt(t, 0, c.SharesToPool)
	requireInt(t, 50, c.ReserveToLP)
	requireInt(t, 50, c.Asset.DeltaHubReserve.Amount)
	requireInt(t, 16, c.LPHubAmount)
	requireInt(t, 34, c.BurnedHub)
	requireInt(t, 50, c.DeltaPosition)
}

func TestRemoveLiquidityWithdrawalFee(t *testing.T) {
	s := state(1000, 500, 1000)
	position := Position{Amount: n(100), Shares: n(100), Price: fp.NewRatio(n(1), n(2))}

	c, err := CalculateRemoveLiquidityStateChanges(s, n(100), position, DefaultImbalance(), n(1000), fixed("0.01"))
	require.NoError(t, err)
	requireInt(t, 1, c.WithdrawalFee)
	requireInt(t, 99, c.ReserveToLP)
	requireInt(t, 49, c.Asset.DeltaHubReserve.Amount)
	requireInt(t, 100, c.SharesToBurn)

	_, err = CalculateRemoveLiquidityStateChanges(s, n(101), position, DefaultImbalance(), n(1000), fp.Fixed{})
	require.ErrorIs(t, err, ErrInsufficientLiquidity)
}

func TestBalanceUpdateMerge(t *testing.T) {
	tests := []struct {
		name     string
		a, b     BalanceUpdate
		amount   uint64
		increase bool
	}{
		{"same direction", Increase(n(5)), Increase(n(3)), 8, true},
		{"opposite smaller", Increase(n(5)), Decrease(n(3)), 2, true},
		{"opposite larger", Increase(n(5)), Decrease(n(7)), 2, false},
		{"zero left", BalanceUpdate{}, Decrease(n(4)), 4, false},
		{"zero right", Increase(n(4)), BalanceUpdate{}, 4, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.a.Merge(tc.b)
			require.NoError(t, err)
			requireInt(t, tc.amount, got.Amount)
			require.Equal(t, tc.increase, got.Increase)
		})
	}

	_, err := Decrease(n(5)).Apply(n(4))
	require.ErrorIs(t, err, fp.ErrUnderflow)
}

func TestSimpleImbalanceAdd(t *testing.T) {
	tests := []struct {
		name     string
		start    SimpleImbalance
		update   BalanceUpdate
		value    uint64
		negative bool
	}{
		{"zero to positive", DefaultImbalance(), Increase(n(5)), 5, false},
		{"more negative", SimpleImbalance{Value: n(5), Negative: true}, Decrease(n(3)), 8, true},
		{"less negative", SimpleImbalance{Value: n(5), Negative: true}, Increase(n(3)), 2, true},
		{"flips sign", SimpleImbalance{Value: n(5), Negative: true}, Increase(n(7)), 2, false},
		{"zero update keeps sign", SimpleImbalance{Value: n(0), Negative: true}, BalanceUpdate{}, 0, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.start.Add(tc.update)
			require.NoError(t, err)
			requireInt(t, tc.value, got.Value)
			require.Equal(t, tc.negative, got.Negative)
		})
	}
}

func TestWeightCapAndTVL(t *testing.T) {
	require.False(t, ExceedsWeightCap(n(30), n(100), fixed("0.3")))
	require.True(t, ExceedsWeightCap(n(31), n(100), fixed("0.3")))
	require.False(t, ExceedsWeightCap(n(31), fp.Zero(), fixed("0.3")))

	tvl, err := CalculateTVL(n(100), state(1000, 500, 1000))
	require.NoError(t, err)
	requireInt(t, 200, tvl)

	_, err = CalculateTVL(n(100), state(1000, 0, 1000))
	require.ErrorIs(t, err, ErrZeroReserve)
}
