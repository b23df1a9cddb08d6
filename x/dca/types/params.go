package types

import (
	"fmt"

	"cosmossdk.io/math"
)

// Params configures the scheduler.
type Params struct {
	BondAsset     uint32    `json:"bond_asset"`
	TotalBond     math.Uint `json:"total_bond"`
	ExecutionBond math.Uint `json:"execution_bond"`

	MaxSchedulesPerBlock uint32 `json:"max_schedules_per_block"`

	// Transient failures are retried MaxRetries times, the n-th retry
	// RetryDelay * RetryBackoff^n blocks later (rounded up). Zero suspends at once.
	MaxRetries   uint32         `json:"max_retries"`
	RetryDelay   uint64         `json:"retry_delay"`
	RetryBackoff math.LegacyDec `json:"retry_backoff"`

	// FeeReceiver collects slashed execution bonds. Empty keeps them with the owner.
	FeeReceiver string `json:"fee_receiver"`
}

// DefaultParams returns default scheduler parameters
func DefaultParams() Params {
	return Params{
		BondAsset:            0,
		TotalBond:            math.NewUint(3_000_000),
		ExecutionBond:        math.NewUint(1_000_000),
		MaxSchedulesPerBlock: 5,
		MaxRetries:           0,
		RetryDelay:           1,
		RetryBackoff:         math.LegacyNewDec(2),
	}
}

// Validate validates the params
func (p Params) Validate() error {
	if p.TotalBond.IsNil() || p.ExecutionBond.IsNil() {
		return fmt.Errorf("bonds must be set")
	}
	if p.ExecutionBond.GT(p.TotalBond) {
		return fmt.Errorf("execution bond %s exceeds total bond %s", p.ExecutionBond, p.TotalBond)
	}
	if p.MaxSchedulesPerBlock == 0 {
		return fmt.Errorf("max schedules per block must be positive")
	}
	if p.RetryDelay == 0 {
		return fmt.Errorf("retry delay must be positive")
	}
	if p.RetryBackoff.IsNil() || p.RetryBackoff.LT(math.LegacyOneDec()) {
		return fmt.Errorf("retry backoff must be at least 1")
	}
	return nil
}

// GenesisState defines the scheduler genesis state.
type GenesisState struct {
	Params         Params          `json:"params"`
	NextScheduleID uint64          `json:"next_schedule_id"`
	Schedules      []ScheduleState `json:"schedules"`
}

func DefaultGenesis() *GenesisState {
	return &GenesisState{Params: DefaultParams(), NextScheduleID: 1}
}

func (gs GenesisState) Validate() error {
	if err := gs.Params.Validate(); err != nil {
		return err
	}
	if gs.NextScheduleID == 0 {
		return fmt.Errorf("next schedule id must be positive")
	}
	seen := make(map[uint64]bool, len(gs.Schedules))
	for _, s := range gs.Schedules {
		id := s.Schedule.ID
		if seen[id] {
			return fmt.Errorf("duplicate schedule %d", id)
		}
		seen[id] = true
		if id == 0 || id >= gs.NextScheduleID {
			return fmt.Errorf("schedule id %d outside [1, %d)", id, gs.NextScheduleID)
		}
		if err := s.Schedule.Validate(); err != nil {
			return fmt.Errorf("schedule %d: %w", id, err)
		}
		if (s.PlannedBlock == 0) == (s.SuspendedTo == nil) {
			return fmt.Errorf("schedule %d must be either planned or suspended", id)
		}
	}
	return nil
}
