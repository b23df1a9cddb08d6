package keeper

import (
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/openalpha/omnipool/x/dca/types"
)

// InitGenesis loads params and schedules. Bonds listed in genesis must already
// be reserved in the ledger.
func (k *Keeper) InitGenesis(ctx sdk.Context, gs types.GenesisState) error {
	if err := gs.Validate(); err != nil {
		return err
	}
	if err := k.SetParams(ctx, gs.Params); err != nil {
		return err
	}
	k.setUint64(ctx, NextScheduleIDKey, gs.NextScheduleID)

	for _, state := range gs.Schedules {
		s := state.Schedule
		k.setSchedule(ctx, s)
		k.setBond(ctx, s.ID, state.Bond)
		if state.Remaining != nil {
			k.setRemainingRecurrences(ctx, s.ID, *state.Remaining)
		}
		k.setRetries(ctx, s.ID, state.Retries)
		k.adjustActiveSchedules(ctx, 1)

		if state.SuspendedTo != nil {
			k.setUint64(ctx, idKey(SuspendedKeyPrefix, s.ID), *state.SuspendedTo)
			continue
		}
		ids := append(k.GetScheduleIDsPerBlock(ctx, state.PlannedBlock), s.ID)
		k.setScheduleIDsPerBlock(ctx, state.PlannedBlock, ids)
		k.setUint64(ctx, idKey(PlannedBlockKeyPrefix, s.ID), state.PlannedBlock)
	}
	return nil
}

// ExportGenesis returns the module state
func (k *Keeper) ExportGenesis(ctx sdk.Context) *types.GenesisState {
	next, found := k.getUint64(ctx, NextScheduleIDKey)
	if !found {
		next = 1
	}
	gs := &types.GenesisState{
		Params:         k.GetParams(ctx),
		NextScheduleID: next,
	}
	k.IterateSchedules(ctx, func(s types.Schedule) bool {
		state, err := k.GetScheduleState(ctx, s.ID)
		if err == nil {
			gs.Schedules = append(gs.Schedules, state)
		}
		return false
	})
	return gs
}
