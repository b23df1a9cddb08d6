package keeper

import (
	"encoding/binary"
	"encoding/json"

	errorsmod "cosmossdk.io/errors"
	"cosmossdk.io/log"
	storetypes "cosmossdk.io/store/types"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/openalpha/omnipool/x/dca/types"
)

// Store key prefixes
var (
	ParamsKey               = []byte{0x01}
	NextScheduleIDKey       = []byte{0x02}
	ScheduleKeyPrefix       = []byte{0x03}
	BlockSchedulesKeyPrefix = []byte{0x04}
	PlannedBlockKeyPrefix   = []byte{0x05}
	RemainingKeyPrefix      = []byte{0x06}
	BondKeyPrefix           = []byte{0x07}
	SuspendedKeyPrefix      = []byte{0x08}
	OwnerIndexKeyPrefix     = []byte{0x09}
	RetriesKeyPrefix        = []byte{0x0A}
	ActiveScheduleCountKey  = []byte{0x0B}
)

// Keeper runs recurring trade orders
type Keeper struct {
	storeKey storetypes.StoreKey
	ledger   types.BondLedger
	trader   types.TradeExecutor
	policy   FailurePolicy

	authority string
	logger    log.Logger
}

// NewKeeper creates a new dca keeper using the default failure policy
func NewKeeper(
	storeKey storetypes.StoreKey,
	ledger types.BondLedger,
	trader types.TradeExecutor,
	authority string,
	logger log.Logger,
) *Keeper {
	return &Keeper{
		storeKey:  storeKey,
		ledger:    ledger,
		trader:    trader,
		policy:    DefaultFailurePolicy{},
		authority: authority,
		logger:    logger.With("module", "x/dca"),
	}
}

// SetFailurePolicy replaces the policy classifying execution errors.
func (k *Keeper) SetFailurePolicy(policy FailurePolicy) {
	k.policy = policy
}

// Logger returns the module logger
func (k *Keeper) Logger() log.Logger {
	return k.logger
}

// GetAuthority returns the governance authority address
func (k *Keeper) GetAuthority() string {
	return k.authority
}

func (k *Keeper) store(ctx sdk.Context) storetypes.KVStore {
	return ctx.KVStore(k.storeKey)
}

func idKey(prefix []byte, id uint64) []byte {
	key := make([]byte, len(prefix)+8)
	copy(key, prefix)
	binary.BigEndian.PutUint64(key[len(prefix):], id)
	return key
}

func ownerKey(owner string, id uint64) []byte {
	key := make([]byte, 0, len(OwnerIndexKeyPrefix)+1+len(owner)+8)
	key = append(key, OwnerIndexKeyPrefix...)
	key = append(key, byte(len(owner)))
	key = append(key, owner...)
	return binary.BigEndian.AppendUint64(key, id)
}

func ownerPrefix(owner string) []byte {
	key := make([]byte, 0, len(OwnerIndexKeyPrefix)+1+len(owner))
	key = append(key, OwnerIndexKeyPrefix...)
	key = append(key, byte(len(owner)))
	return append(key, owner...)
}

func (k *Keeper) getUint64(ctx sdk.Context, key []byte) (uint64, bool) {
	bz := k.store(ctx).Get(key)
	if len(bz) != 8 {
		return 0, false
	}
	return binary.BigEndian.Uint64(bz), true
}

func (k *Keeper) setUint64(ctx sdk.Context, key []byte, v uint64) {
	k.store(ctx).Set(key, binary.BigEndian.AppendUint64(nil, v))
}

// ============ Params ============

// GetParams returns the module params
func (k *Keeper) GetParams(ctx sdk.Context) types.Params {
	bz := k.store(ctx).Get(ParamsKey)
	if bz == nil {
		return types.DefaultParams()
	}
	var params types.Params
	if err := json.Unmarshal(bz, &params); err != nil {
		return types.DefaultParams()
	}
	return params
}

// SetParams validates and stores the module params
func (k *Keeper) SetParams(ctx sdk.Context, params types.Params) error {
	if err := params.Validate(); err != nil {
		return errorsmod.Wrap(types.ErrInvalidParams, err.Error())
	}
	bz, err := json.Marshal(params)
	if err != nil {
		return err
	}
	k.store(ctx).Set(ParamsKey, bz)
	return nil
}

// ============ Schedules ============

func (k *Keeper) nextScheduleID(ctx sdk.Context) uint64 {
	id, found := k.getUint64(ctx, NextScheduleIDKey)
	if !found {
		id = 1
	}
	k.setUint64(ctx, NextScheduleIDKey, id+1)
	return id
}

// GetSchedule returns a schedule by id
func (k *Keeper) GetSchedule(ctx sdk.Context, id uint64) (types.Schedule, bool) {
	bz := k.store(ctx).Get(idKey(ScheduleKeyPrefix, id))
	if bz == nil {
		return types.Schedule{}, false
	}
	var s types.Schedule
	if err := json.Unmarshal(bz, &s); err != nil {
		return types.Schedule{}, false
	}
	return s, true
}

func (k *Keeper) setSchedule(ctx sdk.Context, s types.Schedule) {
	bz, _ := json.Marshal(s)
	k.store(ctx).Set(idKey(ScheduleKeyPrefix, s.ID), bz)
	k.store(ctx).Set(ownerKey(s.Owner, s.ID), []byte{1})
}

func (k *Keeper) mustGetSchedule(ctx sdk.Context, id uint64) (types.Schedule, error) {
	s, found := k.GetSchedule(ctx, id)
	if !found {
		return types.Schedule{}, errorsmod.Wrapf(types.ErrScheduleNotFound, "schedule %d", id)
	}
	return s, nil
}

// GetScheduleIDsPerBlock returns the ids due in block, in execution order
func (k *Keeper) GetScheduleIDsPerBlock(ctx sdk.Context, block uint64) []uint64 {
	bz := k.store(ctx).Get(idKey(BlockSchedulesKeyPrefix, block))
	if bz == nil {
		return nil
	}
	var ids []uint64
	if err := json.Unmarshal(bz, &ids); err != nil {
		return nil
	}
	return ids
}

func (k *Keeper) setScheduleIDsPerBlock(ctx sdk.Context, block uint64, ids []uint64) {
	if len(ids) == 0 {
		k.store(ctx).Delete(idKey(BlockSchedulesKeyPrefix, block))
		return
	}
	bz, _ := json.Marshal(ids)
	k.store(ctx).Set(idKey(BlockSchedulesKeyPrefix, block), bz)
}

// GetPlannedBlock returns the block a schedule is queued in
func (k *Keeper) GetPlannedBlock(ctx sdk.Context, id uint64) (uint64, bool) {
	return k.getUint64(ctx, idKey(PlannedBlockKeyPrefix, id))
}

// GetRemainingRecurrences returns the executions left; not found for perpetual schedules
func (k *Keeper) GetRemainingRecurrences(ctx sdk.Context, id uint64) (uint32, bool) {
	v, found := k.getUint64(ctx, idKey(RemainingKeyPrefix, id))
	return uint32(v), found
}

func (k *Keeper) setRemainingRecurrences(ctx sdk.Context, id uint64, n uint32) {
	k.setUint64(ctx, idKey(RemainingKeyPrefix, id), uint64(n))
}

// GetBond returns the reserved bond of a schedule
func (k *Keeper) GetBond(ctx sdk.Context, id uint64) (types.Bond, bool) {
	bz := k.store(ctx).Get(idKey(BondKeyPrefix, id))
	if bz == nil {
		return types.Bond{}, false
	}
	var bond types.Bond
	if err := json.Unmarshal(bz, &bond); err != nil {
		return types.Bond{}, false
	}
	return bond, true
}

func (k *Keeper) setBond(ctx sdk.Context, id uint64, bond types.Bond) {
	bz, _ := json.Marshal(bond)
	k.store(ctx).Set(idKey(BondKeyPrefix, id), bz)
}

// GetSuspended returns the intended resume block of a suspended schedule
func (k *Keeper) GetSuspended(ctx sdk.Context, id uint64) (uint64, bool) {
	return k.getUint64(ctx, idKey(SuspendedKeyPrefix, id))
}

// GetRetries returns the consecutive transient failures of a schedule
func (k *Keeper) GetRetries(ctx sdk.Context, id uint64) uint32 {
	v, _ := k.getUint64(ctx, idKey(RetriesKeyPrefix, id))
	return uint32(v)
}

func (k *Keeper) setRetries(ctx sdk.Context, id uint64, n uint32) {
	if n == 0 {
		k.store(ctx).Delete(idKey(RetriesKeyPrefix, id))
		return
	}
	k.setUint64(ctx, idKey(RetriesKeyPrefix, id), uint64(n))
}

// GetSchedulesByOwner returns the ids owned by owner
func (k *Keeper) GetSchedulesByOwner(ctx sdk.Context, owner string) []uint64 {
	prefix := ownerPrefix(owner)
	iterator := storetypes.KVStorePrefixIterator(k.store(ctx), prefix)
	defer iterator.Close()

	var ids []uint64
	for ; iterator.Valid(); iterator.Next() {
		ids = append(ids, binary.BigEndian.Uint64(iterator.Key()[len(prefix):]))
	}
	return ids
}

// ActiveSchedules returns the number of live schedules
func (k *Keeper) ActiveSchedules(ctx sdk.Context) uint64 {
	n, _ := k.getUint64(ctx, ActiveScheduleCountKey)
	return n
}

func (k *Keeper) adjustActiveSchedules(ctx sdk.Context, delta int) {
	n := k.ActiveSchedules(ctx)
	if delta < 0 && n < uint64(-delta) {
		n = 0
	} else {
		n = uint64(int64(n) + int64(delta))
	}
	k.setUint64(ctx, ActiveScheduleCountKey, n)
}

// GetScheduleState returns a schedule together with its bookkeeping
func (k *Keeper) GetScheduleState(ctx sdk.Context, id uint64) (types.ScheduleState, error) {
	s, err := k.mustGetSchedule(ctx, id)
	if err != nil {
		return types.ScheduleState{}, err
	}
	state := types.ScheduleState{Schedule: s, Retries: k.GetRetries(ctx, id)}
	state.Bond, _ = k.GetBond(ctx, id)
	if n, found := k.GetRemainingRecurrences(ctx, id); found {
		state.Remaining = &n
	}
	state.PlannedBlock, _ = k.GetPlannedBlock(ctx, id)
	if b, found := k.GetSuspended(ctx, id); found {
		state.SuspendedTo = &b
	}
	return state, nil
}

// IterateSchedules calls cb for every schedule in id order until cb returns true
func (k *Keeper) IterateSchedules(ctx sdk.Context, cb func(types.Schedule) bool) {
	iterator := storetypes.KVStorePrefixIterator(k.store(ctx), ScheduleKeyPrefix)
	defer iterator.Close()

	for ; iterator.Valid(); iterator.Next() {
		var s types.Schedule
		if err := json.Unmarshal(iterator.Value(), &s); err != nil {
			continue
		}
		if cb(s) {
			return
		}
	}
}

// removeSchedule deletes every record of a schedule. The bond must already be settled.
func (k *Keeper) removeSchedule(ctx sdk.Context, s types.Schedule) {
	store := k.store(ctx)
	store.Delete(idKey(ScheduleKeyPrefix, s.ID))
	store.Delete(idKey(PlannedBlockKeyPrefix, s.ID))
	store.Delete(idKey(RemainingKeyPrefix, s.ID))
	store.Delete(idKey(BondKeyPrefix, s.ID))
	store.Delete(idKey(SuspendedKeyPrefix, s.ID))
	store.Delete(idKey(RetriesKeyPrefix, s.ID))
	store.Delete(ownerKey(s.Owner, s.ID))
	k.adjustActiveSchedules(ctx, -1)
}
