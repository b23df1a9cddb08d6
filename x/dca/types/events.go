package types

// Event types
const (
	EventTypeScheduled        = "dca_scheduled"
	EventTypeExecutionPlanned = "dca_execution_planned"
	EventTypeExecuted         = "dca_executed"
	EventTypePaused           = "dca_paused"
	EventTypeResumed          = "dca_resumed"
	EventTypeSuspended        = "dca_suspended"
	EventTypeTerminated       = "dca_terminated"
	EventTypeCompleted        = "dca_completed"
)

// Event attribute keys
const (
	AttributeKeyScheduleID = "schedule_id"
	AttributeKeyWho        = "who"
	AttributeKeyBlock      = "block"
	AttributeKeyAmountIn   = "amount_in"
	AttributeKeyAmountOut  = "amount_out"
	AttributeKeyRemaining  = "remaining"
	AttributeKeyRetries    = "retries"
	AttributeKeyError      = "error"
	AttributeKeySlashed    = "slashed"
)
