package keeper

import (
	"errors"

	cbtypes "github.com/openalpha/omnipool/x/circuitbreaker/types"
	"github.com/openalpha/omnipool/x/dca/types"
	omnipooltypes "github.com/openalpha/omnipool/x/omnipool/types"
)

// FailureKind tells the scheduler what to do with a failed execution.
type FailureKind int

const (
	// FailureTransient keeps the schedule; it is retried or suspended.
	FailureTransient FailureKind = iota
	// FailurePermanent terminates the schedule and slashes the execution bond.
	FailurePermanent
)

func (k FailureKind) String() string {
	if k == FailureTransient {
		return "transient"
	}
	return "permanent"
}

// FailurePolicy classifies execution errors.
type FailurePolicy interface {
	Classify(err error) FailureKind
}

// DefaultFailurePolicy treats market conditions as transient and everything
// else as permanent.
type DefaultFailurePolicy struct{}

var transientErrors = []error{
	omnipooltypes.ErrInsufficientBalance,
	omnipooltypes.ErrInsufficientLiquidity,
	omnipooltypes.ErrMaxInRatioExceeded,
	omnipooltypes.ErrMaxOutRatioExceeded,
	omnipooltypes.ErrPriceDifferenceTooHigh,
	omnipooltypes.ErrBuyLimitNotReached,
	omnipooltypes.ErrSellLimitExceeded,
	types.ErrTradeLimitReached,
	cbtypes.ErrMinTradeVolumePerBlockReached,
	cbtypes.ErrMaxTradeVolumePerBlockReached,
}

func (DefaultFailurePolicy) Classify(err error) FailureKind {
	for _, target := range transientErrors {
		if errors.Is(err, target) {
			return FailureTransient
		}
	}
	return FailurePermanent
}
