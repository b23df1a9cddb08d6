package types

import (
	"context"
	"fmt"

	errorsmod "cosmossdk.io/errors"
	"cosmossdk.io/math"
	cdctypes "github.com/cosmos/cosmos-sdk/codec/types"
	sdk "github.com/cosmos/cosmos-sdk/types"
)

func RegisterInterfaces(registry cdctypes.InterfaceRegistry) {
	registry.RegisterImplementations((*sdk.Msg)(nil),
		&MsgSchedule{},
		&MsgPause{},
		&MsgResume{},
		&MsgTerminate{},
	)
}

// MsgServer defines the dca message service
type MsgServer interface {
	Schedule(context.Context, *MsgSchedule) (*MsgScheduleResponse, error)
	Pause(context.Context, *MsgPause) (*MsgEmptyResponse, error)
	Resume(context.Context, *MsgResume) (*MsgEmptyResponse, error)
	Terminate(context.Context, *MsgTerminate) (*MsgEmptyResponse, error)
}

// RegisterMsgServer is a placeholder until the module has a protobuf service descriptor.
func RegisterMsgServer(s interface{}, srv MsgServer) {}

type MsgEmptyResponse struct{}

func signer(addr string) []sdk.AccAddress {
	a, _ := sdk.AccAddressFromBech32(addr)
	return []sdk.AccAddress{a}
}

func validateAddress(field, addr string) error {
	if _, err := sdk.AccAddressFromBech32(addr); err != nil {
		return errorsmod.Wrapf(ErrInvalidSchedule, "%s: %s", field, err)
	}
	return nil
}

// MsgSchedule creates a recurring order.
type MsgSchedule struct {
	Owner      string     `json:"owner"`
	Period     uint64     `json:"period"`
	OrderType  string     `json:"order_type"`
	AssetIn    uint32     `json:"asset_in"`
	AssetOut   uint32     `json:"asset_out"`
	Amount     string     `json:"amount"`
	Limit      string     `json:"limit"`
	Route      []Trade    `json:"route,omitempty"`
	Recurrence Recurrence `json:"recurrence"`
	// StartBlock is the first execution block. Zero means the next block.
	StartBlock uint64 `json:"start_block,omitempty"`
}

func (msg *MsgSchedule) Reset()        { *msg = MsgSchedule{} }
func (msg *MsgSchedule) ProtoMessage() {}
func (msg *MsgSchedule) String() string {
	return fmt.Sprintf("MsgSchedule{Owner: %s, %s %s of %d->%d every %d, %s}",
		msg.Owner, msg.OrderType, msg.Amount, msg.AssetIn, msg.AssetOut, msg.Period, msg.Recurrence)
}
func (msg *MsgSchedule) XXX_MessageName() string { return "dca.v1.MsgSchedule" }

// ToSchedule builds the schedule described by the message.
func (msg *MsgSchedule) ToSchedule() (Schedule, error) {
	amount, err := math.ParseUint(msg.Amount)
	if err != nil {
		return Schedule{}, errorsmod.Wrapf(ErrInvalidAmount, "amount: %s", err)
	}
	limit, err := math.ParseUint(msg.Limit)
	if err != nil {
		return Schedule{}, errorsmod.Wrapf(ErrInvalidAmount, "limit: %s", err)
	}
	return Schedule{
		Owner:  msg.Owner,
		Period: msg.Period,
		Order: Order{
			Type:     OrderType(msg.OrderType),
			AssetIn:  msg.AssetIn,
			AssetOut: msg.AssetOut,
			Amount:   amount,
			Limit:    limit,
			Route:    msg.Route,
		},
		Recurrence: msg.Recurrence,
	}, nil
}

func (msg *MsgSchedule) ValidateBasic() error {
	if err := validateAddress("owner", msg.Owner); err != nil {
		return err
	}
	s, err := msg.ToSchedule()
	if err != nil {
		return err
	}
	if err := s.Validate(); err != nil {
		return errorsmod.Wrap(ErrInvalidSchedule, err.Error())
	}
	if err := s.Order.ValidateRoute(); err != nil {
		return errorsmod.Wrap(ErrInvalidRoute, err.Error())
	}
	return nil
}

func (msg *MsgSchedule) GetSigners() []sdk.AccAddress { return signer(msg.Owner) }

type MsgScheduleResponse struct {
	ScheduleID uint64 `json:"schedule_id"`
}

// MsgPause suspends a schedule until it is resumed.
type MsgPause struct {
	Owner       string `json:"owner"`
	ScheduleID  uint64 `json:"schedule_id"`
	ResumeBlock uint64 `json:"resume_block"`
}

func (msg *MsgPause) Reset()        { *msg = MsgPause{} }
func (msg *MsgPause) ProtoMessage() {}
func (msg *MsgPause) String() string {
	return fmt.Sprintf("MsgPause{Owner: %s, ScheduleID: %d}", msg.Owner, msg.ScheduleID)
}
func (msg *MsgPause) XXX_MessageName() string { return "dca.v1.MsgPause" }

func (msg *MsgPause) ValidateBasic() error {
	return validateAddress("owner", msg.Owner)
}

func (msg *MsgPause) GetSigners() []sdk.AccAddress { return signer(msg.Owner) }

// MsgResume re-plans a suspended schedule.
type MsgResume struct {
	Owner      string `json:"owner"`
	ScheduleID uint64 `json:"schedule_id"`
	// NextBlock of zero means the next block.
	NextBlock uint64 `json:"next_block,omitempty"`
}

func (msg *MsgResume) Reset()        { *msg = MsgResume{} }
func (msg *MsgResume) ProtoMessage() {}
func (msg *MsgResume) String() string {
	return fmt.Sprintf("MsgResume{Owner: %s, ScheduleID: %d, NextBlock: %d}", msg.Owner, msg.ScheduleID, msg.NextBlock)
}
func (msg *MsgResume) XXX_MessageName() string { return "dca.v1.MsgResume" }

func (msg *MsgResume) ValidateBasic() error {
	return validateAddress("owner", msg.Owner)
}

func (msg *MsgResume) GetSigners() []sdk.AccAddress { return signer(msg.Owner) }

// MsgTerminate removes a schedule. The owner or the authority may send it.
type MsgTerminate struct {
	Caller     string `json:"caller"`
	ScheduleID uint64 `json:"schedule_id"`
	// Block optionally names the block the schedule is planned in.
	Block uint64 `json:"block,omitempty"`
}

func (msg *MsgTerminate) Reset()        { *msg = MsgTerminate{} }
func (msg *MsgTerminate) ProtoMessage() {}
func (msg *MsgTerminate) String() string {
	return fmt.Sprintf("MsgTerminate{Caller: %s, ScheduleID: %d}", msg.Caller, msg.ScheduleID)
}
func (msg *MsgTerminate) XXX_MessageName() string { return "dca.v1.MsgTerminate" }

func (msg *MsgTerminate) ValidateBasic() error {
	return validateAddress("caller", msg.Caller)
}

func (msg *MsgTerminate) GetSigners() []sdk.AccAddress { return signer(msg.Caller) }
