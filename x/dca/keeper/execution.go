package keeper

import (
	"strconv"

	errorsmod "cosmossdk.io/errors"
	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/openalpha/omnipool/metrics"
	fp "github.com/openalpha/omnipool/pkg/fixedpoint"
	"github.com/openalpha/omnipool/x/dca/types"
)

// BeginBlocker executes the schedules planned for the current block in the
// order they were planned.
func (k *Keeper) BeginBlocker(ctx sdk.Context) error {
	timer := metrics.NewTimer()
	block := uint64(ctx.BlockHeight())

	ids := k.GetScheduleIDsPerBlock(ctx, block)
	k.setScheduleIDsPerBlock(ctx, block, nil)
	for _, id := range ids {
		s, found := k.GetSchedule(ctx, id)
		if !found {
			continue
		}
		k.store(ctx).Delete(idKey(PlannedBlockKeyPrefix, id))
		k.execute(ctx, s)
	}

	collector := metrics.GetCollector()
	collector.DCASchedulesActive.Set(float64(k.ActiveSchedules(ctx)))
	collector.RecordBlockHook("dca", "begin", ctx.BlockHeight(), timer.ElapsedMs())
	if len(ids) > 0 {
		k.logger.Debug("DCA BeginBlocker completed",
			"block", block,
			"executed", len(ids),
			"duration_ms", timer.ElapsedMs(),
		)
	}
	return nil
}

type executionResult struct {
	amountIn  math.Uint
	amountOut math.Uint
}

// execute runs one recurrence. Trades are applied only if the whole route succeeds.
func (k *Keeper) execute(ctx sdk.Context, s types.Schedule) {
	cacheCtx, write := ctx.CacheContext()
	result, err := k.executeOrder(cacheCtx, s)
	if err != nil {
		k.handleFailure(ctx, s, err)
		return
	}
	write()
	k.handleSuccess(ctx, s, result)
}

func (k *Keeper) executeOrder(ctx sdk.Context, s types.Schedule) (executionResult, error) {
	if s.Order.Type == types.OrderTypeSell {
		return k.executeSell(ctx, s)
	}
	return k.executeBuy(ctx, s)
}

// executeSell sells hop by hop. Only the last hop carries the minimum.
func (k *Keeper) executeSell(ctx sdk.Context, s types.Schedule) (executionResult, error) {
	hops := s.Order.Hops()
	amount := s.Order.Amount
	res := executionResult{amountIn: s.Order.Amount}
	for i, hop := range hops {
		minBuy := math.ZeroUint()
		if i == len(hops)-1 {
			minBuy = s.Order.Limit
		}
		out, err := k.trader.Sell(ctx, s.Owner, hop.AssetIn, hop.AssetOut, amount, minBuy)
		if err != nil {
			return executionResult{}, err
		}
		amount = out.AmountOut
	}
	res.amountOut = amount
	return res, nil
}

// executeBuy works out the amount each hop must buy from the last hop
// backwards, then trades forward.
func (k *Keeper) executeBuy(ctx sdk.Context, s types.Schedule) (executionResult, error) {
	hops := s.Order.Hops()
	if len(hops) == 1 {
		out, err := k.trader.Buy(ctx, s.Owner, hops[0].AssetOut, hops[0].AssetIn, s.Order.Amount, s.Order.Limit)
		if err != nil {
			return executionResult{}, err
		}
		return executionResult{amountIn: out.AmountIn, amountOut: out.AmountOut}, nil
	}

	unlimited := fp.ToUint(fp.MaxBalance)
	amounts := make([]math.Uint, len(hops))
	need := s.Order.Amount
	for i := len(hops) - 1; i >= 0; i-- {
		amounts[i] = need
		quote, err := k.trader.SimulateBuy(ctx, hops[i].AssetOut, hops[i].AssetIn, need, unlimited)
		if err != nil {
			return executionResult{}, err
		}
		need = quote.AmountIn
	}
	if need.GT(s.Order.Limit) {
		return executionResult{}, errorsmod.Wrapf(types.ErrTradeLimitReached, "route costs %s, limit %s", need, s.Order.Limit)
	}

	res := executionResult{amountOut: s.Order.Amount}
	for i, hop := range hops {
		maxSell := unlimited
		if i == 0 {
			maxSell = s.Order.Limit
		}
		out, err := k.trader.Buy(ctx, s.Owner, hop.AssetOut, hop.AssetIn, amounts[i], maxSell)
		if err != nil {
			return executionResult{}, err
		}
		if i == 0 {
			res.amountIn = out.AmountIn
		}
	}
	return res, nil
}

func (k *Keeper) handleSuccess(ctx sdk.Context, s types.Schedule, res executionResult) {
	k.setRetries(ctx, s.ID, 0)
	metrics.GetCollector().RecordDCAExecution("success")

	remaining, fixed := k.GetRemainingRecurrences(ctx, s.ID)
	if fixed {
		remaining--
		k.setRemainingRecurrences(ctx, s.ID, remaining)
	}

	ctx.EventManager().EmitEvent(
		sdk.NewEvent(
			types.EventTypeExecuted,
			sdk.NewAttribute(types.AttributeKeyScheduleID, formatID(s.ID)),
			sdk.NewAttribute(types.AttributeKeyWho, s.Owner),
			sdk.NewAttribute(types.AttributeKeyAmountIn, res.amountIn.String()),
			sdk.NewAttribute(types.AttributeKeyAmountOut, res.amountOut.String()),
			sdk.NewAttribute(types.AttributeKeyRemaining, remainingAttr(remaining, fixed)),
		),
	)

	if fixed && remaining == 0 {
		k.complete(ctx, s)
		return
	}

	next := uint64(ctx.BlockHeight()) + s.Period
	if _, err := k.planNearest(ctx, s, next); err != nil {
		k.logger.Error("Failed to plan next execution", "id", s.ID, "block", next, "error", err)
		k.suspendAfterFailure(ctx, s, err)
	}
}

func (k *Keeper) complete(ctx sdk.Context, s types.Schedule) {
	if err := k.releaseBond(ctx, s); err != nil {
		k.logger.Error("Failed to release bond", "id", s.ID, "error", err)
	}
	k.removeSchedule(ctx, s)
	ctx.EventManager().EmitEvent(
		sdk.NewEvent(
			types.EventTypeCompleted,
			sdk.NewAttribute(types.AttributeKeyScheduleID, formatID(s.ID)),
			sdk.NewAttribute(types.AttributeKeyWho, s.Owner),
		),
	)
	k.logger.Info("Schedule completed", "id", s.ID, "owner", s.Owner)
}

func (k *Keeper) handleFailure(ctx sdk.Context, s types.Schedule, execErr error) {
	if k.policy.Classify(execErr) == FailurePermanent {
		k.terminateAfterFailure(ctx, s, execErr)
		return
	}

	params := k.GetParams(ctx)
	retries := k.GetRetries(ctx, s.ID)
	if retries >= params.MaxRetries {
		k.suspendAfterFailure(ctx, s, execErr)
		return
	}

	next := uint64(ctx.BlockHeight()) + retryDelay(params, retries, s.Period)
	k.setRetries(ctx, s.ID, retries+1)
	if _, err := k.planNearest(ctx, s, next); err != nil {
		k.suspendAfterFailure(ctx, s, execErr)
		return
	}
	metrics.GetCollector().RecordDCAExecution("retry")
	k.logger.Info("Schedule execution failed, retrying",
		"id", s.ID,
		"retry", retries+1,
		"block", next,
		"error", execErr,
	)
}

// retryDelay returns ceil(RetryDelay * RetryBackoff^retries), or period if it
// cannot be computed.
func retryDelay(params types.Params, retries uint32, period uint64) uint64 {
	backoff, err := fp.FixedFromDec(params.RetryBackoff)
	if err != nil {
		return period
	}
	factor, err := backoff.Pow(retries, fp.Up)
	if err != nil {
		return period
	}
	delay, err := factor.MulInt(fp.NewInt(params.RetryDelay), fp.Up)
	if err != nil || !delay.IsUint64() {
		return period
	}
	return delay.Uint64()
}

// suspendAfterFailure parks the schedule until the owner resumes it.
func (k *Keeper) suspendAfterFailure(ctx sdk.Context, s types.Schedule, execErr error) {
	k.unplan(ctx, s.ID)
	resumeBlock := uint64(ctx.BlockHeight()) + s.Period
	if err := k.suspend(ctx, s, resumeBlock); err != nil {
		k.logger.Error("Failed to suspend schedule", "id", s.ID, "error", err)
	}
	metrics.GetCollector().RecordDCAExecution("suspended")

	ctx.EventManager().EmitEvent(
		sdk.NewEvent(
			types.EventTypeSuspended,
			sdk.NewAttribute(types.AttributeKeyScheduleID, formatID(s.ID)),
			sdk.NewAttribute(types.AttributeKeyWho, s.Owner),
			sdk.NewAttribute(types.AttributeKeyBlock, formatID(resumeBlock)),
			sdk.NewAttribute(types.AttributeKeyError, execErr.Error()),
		),
	)
	k.logger.Info("Schedule suspended", "id", s.ID, "owner", s.Owner, "error", execErr)
}

// terminateAfterFailure slashes the execution bond and removes the schedule.
func (k *Keeper) terminateAfterFailure(ctx sdk.Context, s types.Schedule, execErr error) {
	params := k.GetParams(ctx)
	bond, _ := k.GetBond(ctx, s.ID)
	slashed := math.MinUint(bond.Amount, params.ExecutionBond)
	if params.FeeReceiver == "" {
		slashed = math.ZeroUint()
	}

	if err := k.ledger.Unreserve(ctx, bond.Asset, s.Owner, bond.Amount); err != nil {
		k.logger.Error("Failed to release bond", "id", s.ID, "error", err)
	} else if !slashed.IsZero() {
		if err := k.ledger.Transfer(ctx, bond.Asset, s.Owner, params.FeeReceiver, slashed); err != nil {
			k.logger.Error("Failed to slash execution bond", "id", s.ID, "error", err)
			slashed = math.ZeroUint()
		}
	}
	k.removeSchedule(ctx, s)
	metrics.GetCollector().RecordDCAExecution("terminated")

	ctx.EventManager().EmitEvent(
		sdk.NewEvent(
			types.EventTypeTerminated,
			sdk.NewAttribute(types.AttributeKeyScheduleID, formatID(s.ID)),
			sdk.NewAttribute(types.AttributeKeyWho, s.Owner),
			sdk.NewAttribute(types.AttributeKeyError, execErr.Error()),
			sdk.NewAttribute(types.AttributeKeySlashed, slashed.String()),
		),
	)
	k.logger.Info("Schedule terminated after failure",
		"id", s.ID,
		"owner", s.Owner,
		"slashed", slashed.String(),
		"error", execErr,
	)
}

func remainingAttr(remaining uint32, fixed bool) string {
	if !fixed {
		return string(types.RecurrencePerpetual)
	}
	return strconv.FormatUint(uint64(remaining), 10)
}
