package keeper

import (
	"strconv"

	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/openalpha/omnipool/metrics"
)

// EndBlocker clears the per-block liquidity ranges
func (k *Keeper) EndBlocker(ctx sdk.Context) error {
	timer := metrics.NewTimer()
	cleared := k.ClearLiquidityRanges(ctx)

	metrics.GetCollector().RecordBlockHook("circuitbreaker", "end", ctx.BlockHeight(), timer.ElapsedMs())
	if cleared > 0 {
		k.logger.Debug("Liquidity ranges cleared",
			"block", ctx.BlockHeight(),
			"assets", cleared,
		)
	}
	return nil
}

func formatAsset(assetID uint32) string {
	return strconv.FormatUint(uint64(assetID), 10)
}
