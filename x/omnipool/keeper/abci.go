package keeper

import (
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/openalpha/omnipool/metrics"
)

// BeginBlocker snapshots the hub price of every asset. The snapshots feed the price
// barrier for the rest of the block.
func (k *Keeper) BeginBlocker(ctx sdk.Context) error {
	timer := metrics.NewTimer()
	k.RecordPriceSnapshots(ctx)

	GetMetrics().RecordBlockHook("omnipool", "begin", ctx.BlockHeight(), timer.ElapsedMs())
	k.logger.Debug("Omnipool BeginBlocker completed",
		"block", ctx.BlockHeight(),
		"duration_ms", timer.ElapsedMs(),
	)
	return nil
}
