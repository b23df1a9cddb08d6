package types

import (
	"cosmossdk.io/errors"
)

var (
	ErrScheduleNotFound         = errors.Register(ModuleName, 2, "schedule not found")
	ErrNotScheduleOwner         = errors.Register(ModuleName, 3, "caller is not the schedule owner")
	ErrScheduleMustBeSuspended  = errors.Register(ModuleName, 4, "schedule must be suspended")
	ErrScheduleAlreadySuspended = errors.Register(ModuleName, 5, "schedule is already suspended")
	ErrBlockNumberIsNotInFuture = errors.Register(ModuleName, 6, "block number is not in the future")
	ErrTooManyScheduledOrders   = errors.Register(ModuleName, 7, "too many orders scheduled for the block")
	ErrInvalidSchedule          = errors.Register(ModuleName, 8, "invalid schedule")
	ErrInvalidRoute             = errors.Register(ModuleName, 9, "invalid route")
	ErrInsufficientBondBalance  = errors.Register(ModuleName, 10, "insufficient balance to reserve the bond")
	ErrTradeLimitReached        = errors.Register(ModuleName, 11, "route result violates the order limit")
	ErrInvalidParams            = errors.Register(ModuleName, 12, "invalid params")
	ErrInvalidAmount            = errors.Register(ModuleName, 13, "invalid amount")
)
