package keeper

import (
	"strconv"

	errorsmod "cosmossdk.io/errors"
	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/openalpha/omnipool/x/dca/types"
)

// maxPlanningLookahead is how many blocks past the target a re-plan may slip
// when the target block is full.
const maxPlanningLookahead = 10

// Schedule registers a recurring order and reserves its bond. startBlock, when
// set, must be in the future; otherwise the first execution is in the next block.
func (k *Keeper) Schedule(ctx sdk.Context, owner string, schedule types.Schedule, startBlock *uint64) (uint64, error) {
	if err := schedule.Validate(); err != nil {
		return 0, errorsmod.Wrap(types.ErrInvalidSchedule, err.Error())
	}
	if err := schedule.Order.ValidateRoute(); err != nil {
		return 0, errorsmod.Wrap(types.ErrInvalidRoute, err.Error())
	}
	block, err := k.targetBlock(ctx, startBlock)
	if err != nil {
		return 0, err
	}
	if err := k.checkCapacity(ctx, block); err != nil {
		return 0, err
	}

	params := k.GetParams(ctx)
	if k.ledger.FreeBalance(ctx, params.BondAsset, owner).LT(params.TotalBond) {
		return 0, errorsmod.Wrapf(types.ErrInsufficientBondBalance, "need %s of asset %d", params.TotalBond, params.BondAsset)
	}
	if err := k.ledger.Reserve(ctx, params.BondAsset, owner, params.TotalBond); err != nil {
		return 0, errorsmod.Wrap(types.ErrInsufficientBondBalance, err.Error())
	}

	schedule.ID = k.nextScheduleID(ctx)
	schedule.Owner = owner
	k.setSchedule(ctx, schedule)
	k.setBond(ctx, schedule.ID, types.Bond{Asset: params.BondAsset, Amount: params.TotalBond})
	if !schedule.Recurrence.IsPerpetual() {
		k.setRemainingRecurrences(ctx, schedule.ID, schedule.Recurrence.Count)
	}
	k.adjustActiveSchedules(ctx, 1)

	ctx.EventManager().EmitEvent(
		sdk.NewEvent(
			types.EventTypeScheduled,
			sdk.NewAttribute(types.AttributeKeyScheduleID, formatID(schedule.ID)),
			sdk.NewAttribute(types.AttributeKeyWho, owner),
		),
	)
	if err := k.plan(ctx, schedule, block); err != nil {
		return 0, err
	}

	k.logger.Info("Schedule created",
		"id", schedule.ID,
		"owner", owner,
		"order", string(schedule.Order.Type),
		"recurrence", schedule.Recurrence.String(),
		"first_block", block,
	)
	return schedule.ID, nil
}

// Pause takes a schedule out of its planned block and releases the execution bond.
func (k *Keeper) Pause(ctx sdk.Context, owner string, id uint64, resumeBlock uint64) error {
	s, err := k.mustGetSchedule(ctx, id)
	if err != nil {
		return err
	}
	if s.Owner != owner {
		return types.ErrNotScheduleOwner
	}
	if _, suspended := k.GetSuspended(ctx, id); suspended {
		return types.ErrScheduleAlreadySuspended
	}
	if resumeBlock <= uint64(ctx.BlockHeight()) {
		return errorsmod.Wrapf(types.ErrBlockNumberIsNotInFuture, "resume block %d", resumeBlock)
	}

	k.unplan(ctx, id)
	if err := k.suspend(ctx, s, resumeBlock); err != nil {
		return err
	}

	ctx.EventManager().EmitEvent(
		sdk.NewEvent(
			types.EventTypePaused,
			sdk.NewAttribute(types.AttributeKeyScheduleID, formatID(id)),
			sdk.NewAttribute(types.AttributeKeyWho, owner),
			sdk.NewAttribute(types.AttributeKeyBlock, formatID(resumeBlock)),
		),
	)
	k.logger.Info("Schedule paused", "id", id, "owner", owner, "resume_block", resumeBlock)
	return nil
}

// Resume re-reserves the released bond and plans a suspended schedule at
// nextBlock, or the next block when nextBlock is nil.
func (k *Keeper) Resume(ctx sdk.Context, owner string, id uint64, nextBlock *uint64) error {
	s, err := k.mustGetSchedule(ctx, id)
	if err != nil {
		return err
	}
	if s.Owner != owner {
		return types.ErrNotScheduleOwner
	}
	if _, suspended := k.GetSuspended(ctx, id); !suspended {
		return types.ErrScheduleMustBeSuspended
	}
	block, err := k.targetBlock(ctx, nextBlock)
	if err != nil {
		return err
	}
	if err := k.checkCapacity(ctx, block); err != nil {
		return err
	}

	params := k.GetParams(ctx)
	bond, _ := k.GetBond(ctx, id)
	if params.TotalBond.GT(bond.Amount) {
		topUp := params.TotalBond.Sub(bond.Amount)
		if k.ledger.FreeBalance(ctx, bond.Asset, owner).LT(topUp) {
			return errorsmod.Wrapf(types.ErrInsufficientBondBalance, "need %s of asset %d", topUp, bond.Asset)
		}
		if err := k.ledger.Reserve(ctx, bond.Asset, owner, topUp); err != nil {
			return errorsmod.Wrap(types.ErrInsufficientBondBalance, err.Error())
		}
		bond.Amount = params.TotalBond
		k.setBond(ctx, id, bond)
	}

	k.store(ctx).Delete(idKey(SuspendedKeyPrefix, id))
	k.setRetries(ctx, id, 0)

	ctx.EventManager().EmitEvent(
		sdk.NewEvent(
			types.EventTypeResumed,
			sdk.NewAttribute(types.AttributeKeyScheduleID, formatID(id)),
			sdk.NewAttribute(types.AttributeKeyWho, owner),
		),
	)
	if err := k.plan(ctx, s, block); err != nil {
		return err
	}
	k.logger.Info("Schedule resumed", "id", id, "owner", owner, "block", block)
	return nil
}

// Terminate removes a schedule and returns its bond. The owner or the
// authority may terminate. block, when set, must be the block the schedule is
// planned in.
func (k *Keeper) Terminate(ctx sdk.Context, caller string, id uint64, block *uint64) error {
	s, err := k.mustGetSchedule(ctx, id)
	if err != nil {
		return err
	}
	if caller != s.Owner && caller != k.authority {
		return types.ErrNotScheduleOwner
	}
	if block != nil {
		planned, found := k.GetPlannedBlock(ctx, id)
		if !found || planned != *block {
			return errorsmod.Wrapf(types.ErrScheduleNotFound, "schedule %d is not planned in block %d", id, *block)
		}
	}

	k.unplan(ctx, id)
	if err := k.releaseBond(ctx, s); err != nil {
		return err
	}
	k.removeSchedule(ctx, s)

	ctx.EventManager().EmitEvent(
		sdk.NewEvent(
			types.EventTypeTerminated,
			sdk.NewAttribute(types.AttributeKeyScheduleID, formatID(id)),
			sdk.NewAttribute(types.AttributeKeyWho, s.Owner),
		),
	)
	k.logger.Info("Schedule terminated", "id", id, "caller", caller)
	return nil
}

func (k *Keeper) targetBlock(ctx sdk.Context, requested *uint64) (uint64, error) {
	current := uint64(ctx.BlockHeight())
	if requested == nil {
		return current + 1, nil
	}
	if *requested <= current {
		return 0, errorsmod.Wrapf(types.ErrBlockNumberIsNotInFuture, "block %d, current %d", *requested, current)
	}
	return *requested, nil
}

func (k *Keeper) checkCapacity(ctx sdk.Context, block uint64) error {
	max := int(k.GetParams(ctx).MaxSchedulesPerBlock)
	if len(k.GetScheduleIDsPerBlock(ctx, block)) >= max {
		return errorsmod.Wrapf(types.ErrTooManyScheduledOrders, "block %d already holds %d schedules", block, max)
	}
	return nil
}

// plan appends the schedule to block, after every schedule already queued there.
func (k *Keeper) plan(ctx sdk.Context, s types.Schedule, block uint64) error {
	if err := k.checkCapacity(ctx, block); err != nil {
		return err
	}
	ids := append(k.GetScheduleIDsPerBlock(ctx, block), s.ID)
	k.setScheduleIDsPerBlock(ctx, block, ids)
	k.setUint64(ctx, idKey(PlannedBlockKeyPrefix, s.ID), block)

	ctx.EventManager().EmitEvent(
		sdk.NewEvent(
			types.EventTypeExecutionPlanned,
			sdk.NewAttribute(types.AttributeKeyScheduleID, formatID(s.ID)),
			sdk.NewAttribute(types.AttributeKeyWho, s.Owner),
			sdk.NewAttribute(types.AttributeKeyBlock, formatID(block)),
		),
	)
	return nil
}

// planNearest plans at block or, if it is full, at the first later block with room.
func (k *Keeper) planNearest(ctx sdk.Context, s types.Schedule, block uint64) (uint64, error) {
	var err error
	for b := block; b < block+maxPlanningLookahead; b++ {
		if err = k.plan(ctx, s, b); err == nil {
			return b, nil
		}
	}
	return 0, err
}

// unplan removes the schedule from the block it is queued in, keeping the order of the rest.
func (k *Keeper) unplan(ctx sdk.Context, id uint64) {
	block, found := k.GetPlannedBlock(ctx, id)
	if !found {
		return
	}
	ids := k.GetScheduleIDsPerBlock(ctx, block)
	kept := ids[:0]
	for _, other := range ids {
		if other != id {
			kept = append(kept, other)
		}
	}
	k.setScheduleIDsPerBlock(ctx, block, kept)
	k.store(ctx).Delete(idKey(PlannedBlockKeyPrefix, id))
}

// suspend marks the schedule suspended and releases the execution bond.
func (k *Keeper) suspend(ctx sdk.Context, s types.Schedule, resumeBlock uint64) error {
	params := k.GetParams(ctx)
	bond, _ := k.GetBond(ctx, s.ID)
	release := math.MinUint(bond.Amount, params.ExecutionBond)
	if err := k.ledger.Unreserve(ctx, bond.Asset, s.Owner, release); err != nil {
		return err
	}
	bond.Amount = bond.Amount.Sub(release)
	k.setBond(ctx, s.ID, bond)
	k.setUint64(ctx, idKey(SuspendedKeyPrefix, s.ID), resumeBlock)
	k.setRetries(ctx, s.ID, 0)
	return nil
}

// releaseBond returns the whole remaining bond to the owner.
func (k *Keeper) releaseBond(ctx sdk.Context, s types.Schedule) error {
	bond, found := k.GetBond(ctx, s.ID)
	if !found {
		return nil
	}
	return k.ledger.Unreserve(ctx, bond.Asset, s.Owner, bond.Amount)
}

func formatID(id uint64) string {
	return strconv.FormatUint(id, 10)
}
