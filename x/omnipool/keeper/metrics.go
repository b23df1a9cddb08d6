package keeper

import (
	"cosmossdk.io/math"

	"github.com/openalpha/omnipool/metrics"
	"github.com/openalpha/omnipool/x/omnipool/types"
)

// GetMetrics returns the process-wide collector
func GetMetrics() *metrics.Collector {
	return metrics.GetCollector()
}

// toFloat converts a raw balance for reporting only.
func toFloat(u math.Uint) float64 {
	f, err := math.LegacyNewDecFromBigInt(u.BigInt()).Float64()
	if err != nil {
		return 0
	}
	return f
}

func recordTrade(kind string, result *types.TradeResult, touched ...types.AssetReserveState) {
	m := GetMetrics()
	m.RecordTrade(kind, formatAsset(result.AssetIn), formatAsset(result.AssetOut),
		toFloat(result.AmountIn), toFloat(result.AmountOut),
		toFloat(result.AssetFee), toFloat(result.ProtocolFee))
	for _, a := range touched {
		m.RecordAssetState(formatAsset(a.AssetID), toFloat(a.Reserve), toFloat(a.HubReserve))
	}
}

func recordPool(pool types.PoolState) {
	GetMetrics().RecordPoolState(toFloat(pool.HubAssetLiquidity), toFloat(pool.TotalTVL))
}
