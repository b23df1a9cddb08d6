package types

import (
	"context"
	"fmt"

	errorsmod "cosmossdk.io/errors"
	"cosmossdk.io/math"
	cdctypes "github.com/cosmos/cosmos-sdk/codec/types"
	sdk "github.com/cosmos/cosmos-sdk/types"
)

// Event types and attributes
const (
	EventTypeTradeVolumeLimitChanged = "trade_volume_limit_changed"

	AttributeKeyAssetID = "asset_id"
	AttributeKeyLimit   = "limit"
)

func RegisterInterfaces(registry cdctypes.InterfaceRegistry) {
	registry.RegisterImplementations((*sdk.Msg)(nil),
		&MsgSetTradeVolumeLimit{},
	)
}

// MsgServer defines the circuit breaker message service
type MsgServer interface {
	SetTradeVolumeLimit(context.Context, *MsgSetTradeVolumeLimit) (*MsgSetTradeVolumeLimitResponse, error)
}

// RegisterMsgServer is a placeholder until the module has a protobuf service descriptor.
func RegisterMsgServer(s interface{}, srv MsgServer) {}

// MsgSetTradeVolumeLimit overrides the per-block limit of one asset.
type MsgSetTradeVolumeLimit struct {
	Authority string `json:"authority"`
	AssetID   uint32 `json:"asset_id"`
	Limit     string `json:"limit"`
}

func (msg *MsgSetTradeVolumeLimit) Reset()        { *msg = MsgSetTradeVolumeLimit{} }
func (msg *MsgSetTradeVolumeLimit) ProtoMessage() {}
func (msg *MsgSetTradeVolumeLimit) String() string {
	return fmt.Sprintf("MsgSetTradeVolumeLimit{AssetID: %d, Limit: %s}", msg.AssetID, msg.Limit)
}
func (msg *MsgSetTradeVolumeLimit) XXX_MessageName() string {
	return "circuitbreaker.v1.MsgSetTradeVolumeLimit"
}

func (msg *MsgSetTradeVolumeLimit) ValidateBasic() error {
	if _, err := sdk.AccAddressFromBech32(msg.Authority); err != nil {
		return errorsmod.Wrapf(ErrUnauthorized, "invalid authority address: %s", err)
	}
	if _, err := msg.ParseLimit(); err != nil {
		return err
	}
	return nil
}

// ParseLimit parses and range-checks the limit.
func (msg *MsgSetTradeVolumeLimit) ParseLimit() (math.LegacyDec, error) {
	limit, err := math.LegacyNewDecFromStr(msg.Limit)
	if err != nil {
		return math.LegacyDec{}, errorsmod.Wrap(ErrInvalidTradeVolumeLimit, err.Error())
	}
	if err := ValidateTradeVolumeLimit(limit); err != nil {
		return math.LegacyDec{}, errorsmod.Wrap(ErrInvalidTradeVolumeLimit, err.Error())
	}
	return limit, nil
}

func (msg *MsgSetTradeVolumeLimit) GetSigners() []sdk.AccAddress {
	addr, _ := sdk.AccAddressFromBech32(msg.Authority)
	return []sdk.AccAddress{addr}
}

type MsgSetTradeVolumeLimitResponse struct{}
