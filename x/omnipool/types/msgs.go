package types

import (
	"context"
	"fmt"

	errorsmod "cosmossdk.io/errors"
	"cosmossdk.io/math"
	cdctypes "github.com/cosmos/cosmos-sdk/codec/types"
	sdk "github.com/cosmos/cosmos-sdk/types"
)

// RegisterInterfaces registers the module's interface types
func RegisterInterfaces(registry cdctypes.InterfaceRegistry) {
	registry.RegisterImplementations((*sdk.Msg)(nil),
		&MsgInitializePool{},
		&MsgAddToken{},
		&MsgAddLiquidity{},
		&MsgRemoveLiquidity{},
		&MsgSell{},
		&MsgBuy{},
		&MsgSetAssetTradableState{},
		&MsgSetAssetWeightCap{},
		&MsgSetTVLCap{},
	)
}

// MsgServer defines the omnipool module's message service
type MsgServer interface {
	InitializePool(context.Context, *MsgInitializePool) (*MsgInitializePoolResponse, error)
	AddToken(context.Context, *MsgAddToken) (*MsgAddTokenResponse, error)
	AddLiquidity(context.Context, *MsgAddLiquidity) (*MsgAddLiquidityResponse, error)
	RemoveLiquidity(context.Context, *MsgRemoveLiquidity) (*MsgRemoveLiquidityResponse, error)
	Sell(context.Context, *MsgSell) (*MsgTradeResponse, error)
	Buy(context.Context, *MsgBuy) (*MsgTradeResponse, error)
	SetAssetTradableState(context.Context, *MsgSetAssetTradableState) (*MsgEmptyResponse, error)
	SetAssetWeightCap(context.Context, *MsgSetAssetWeightCap) (*MsgEmptyResponse, error)
	SetTVLCap(context.Context, *MsgSetTVLCap) (*MsgEmptyResponse, error)
}

// RegisterMsgServer registers the MsgServer with the configurator.
// Messages are routed through the module handler until a protobuf service descriptor exists.
func RegisterMsgServer(s interface{}, srv MsgServer) {}

// ParseAmount parses a decimal integer amount as used in message fields.
func ParseAmount(field, s string) (math.Uint, error) {
	if s == "" {
		return math.Uint{}, errorsmod.Wrapf(ErrInvalidAmount, "%s is empty", field)
	}
	u, err := math.ParseUint(s)
	if err != nil {
		return math.Uint{}, errorsmod.Wrapf(ErrInvalidAmount, "%s: %s", field, err)
	}
	return u, nil
}

// ParseRatio parses a decimal ratio such as "0.5".
func ParseRatio(field, s string) (math.LegacyDec, error) {
	d, err := math.LegacyNewDecFromStr(s)
	if err != nil {
		return math.LegacyDec{}, errorsmod.Wrapf(ErrInvalidAmount, "%s: %s", field, err)
	}
	if d.IsNegative() {
		return math.LegacyDec{}, errorsmod.Wrapf(ErrInvalidAmount, "%s is negative", field)
	}
	return d, nil
}

func validateAddress(field, addr string) error {
	if _, err := sdk.AccAddressFromBech32(addr); err != nil {
		return errorsmod.Wrapf(ErrInvalidAddress, "%s: %s", field, err)
	}
	return nil
}

func signers(addr string) []sdk.AccAddress {
	a, _ := sdk.AccAddressFromBech32(addr)
	return []sdk.AccAddress{a}
}

// MsgInitializePool seeds the pool with the stable and native assets.
type MsgInitializePool struct {
	Authority   string `json:"authority"`
	StablePrice string `json:"stable_price"`
	NativePrice string `json:"native_price"`
	StableCap   string `json:"stable_cap"`
	NativeCap   string `json:"native_cap"`
}

func (msg *MsgInitializePool) Reset()         { *msg = MsgInitializePool{} }
func (msg *MsgInitializePool) ProtoMessage()  {}
func (msg *MsgInitializePool) String() string {
	return fmt.Sprintf("MsgInitializePool{StablePrice: %s, NativePrice: %s}", msg.StablePrice, msg.NativePrice)
}
func (msg *MsgInitializePool) XXX_MessageName() string { return "omnipool.v1.MsgInitializePool" }

func (msg *MsgInitializePool) ValidateBasic() error {
	if err := validateAddress("authority", msg.Authority); err != nil {
		return err
	}
	for field, v := range map[string]string{
		"stable_price": msg.StablePrice, "native_price": msg.NativePrice,
		"stable_cap": msg.StableCap, "native_cap": msg.NativeCap,
	} {
		if _, err := ParseRatio(field, v); err != nil {
			return err
		}
	}
	return nil
}

func (msg *MsgInitializePool) GetSigners() []sdk.AccAddress { return signers(msg.Authority) }

type MsgInitializePoolResponse struct{}

// MsgAddToken lists a new asset. The authority must already hold the initial reserve
// in the pool account.
type MsgAddToken struct {
	Authority    string `json:"authority"`
	AssetID      uint32 `json:"asset_id"`
	InitialPrice string `json:"initial_price"`
	WeightCap    string `json:"weight_cap"`
	Owner        string `json:"owner"`
}

func (msg *MsgAddToken) Reset()                  { *msg = MsgAddToken{} }
func (msg *MsgAddToken) ProtoMessage()           {}
func (msg *MsgAddToken) String() string          { return fmt.Sprintf("MsgAddToken{AssetID: %d, Owner: %s}", msg.AssetID, msg.Owner) }
func (msg *MsgAddToken) XXX_MessageName() string { return "omnipool.v1.MsgAddToken" }

func (msg *MsgAddToken) ValidateBasic() error {
	if err := validateAddress("authority", msg.Authority); err != nil {
		return err
	}
	if err := validateAddress("owner", msg.Owner); err != nil {
		return err
	}
	if _, err := ParseRatio("initial_price", msg.InitialPrice); err != nil {
		return err
	}
	_, err := ParseRatio("weight_cap", msg.WeightCap)
	return err
}

func (msg *MsgAddToken) GetSigners() []sdk.AccAddress { return signers(msg.Authority) }

type MsgAddTokenResponse struct {
	PositionID uint64 `json:"position_id,omitempty"`
}

// MsgAddLiquidity deposits an asset and mints a position.
type MsgAddLiquidity struct {
	Who     string `json:"who"`
	AssetID uint32 `json:"asset_id"`
	Amount  string `json:"amount"`
}

func (msg *MsgAddLiquidity) Reset()        { *msg = MsgAddLiquidity{} }
func (msg *MsgAddLiquidity) ProtoMessage() {}
func (msg *MsgAddLiquidity) String() string {
	return fmt.Sprintf("MsgAddLiquidity{Who: %s, AssetID: %d, Amount: %s}", msg.Who, msg.AssetID, msg.Amount)
}
func (msg *MsgAddLiquidity) XXX_MessageName() string { return "omnipool.v1.MsgAddLiquidity" }

func (msg *MsgAddLiquidity) ValidateBasic() error {
	if err := validateAddress("who", msg.Who); err != nil {
		return err
	}
	_, err := ParseAmount("amount", msg.Amount)
	return err
}

func (msg *MsgAddLiquidity) GetSigners() []sdk.AccAddress { return signers(msg.Who) }

type MsgAddLiquidityResponse struct {
	PositionID uint64 `json:"position_id"`
}

// MsgRemoveLiquidity burns shares of a position.
type MsgRemoveLiquidity struct {
	Who        string `json:"who"`
	PositionID uint64 `json:"position_id"`
	Shares     string `json:"shares"`
}

func (msg *MsgRemoveLiquidity) Reset()        { *msg = MsgRemoveLiquidity{} }
func (msg *MsgRemoveLiquidity) ProtoMessage() {}
func (msg *MsgRemoveLiquidity) String() string {
	return fmt.Sprintf("MsgRemoveLiquidity{Who: %s, PositionID: %d, Shares: %s}", msg.Who, msg.PositionID, msg.Shares)
}
func (msg *MsgRemoveLiquidity) XXX_MessageName() string { return "omnipool.v1.MsgRemoveLiquidity" }

func (msg *MsgRemoveLiquidity) ValidateBasic() error {
	if err := validateAddress("who", msg.Who); err != nil {
		return err
	}
	_, err := ParseAmount("shares", msg.Shares)
	return err
}

func (msg *MsgRemoveLiquidity) GetSigners() []sdk.AccAddress { return signers(msg.Who) }

type MsgRemoveLiquidityResponse struct {
	Result RemoveLiquidityResult `json:"result"`
}

// MsgSell sells an exact amount of AssetIn.
type MsgSell struct {
	Who          string `json:"who"`
	AssetIn      uint32 `json:"asset_in"`
	AssetOut     uint32 `json:"asset_out"`
	Amount       string `json:"amount"`
	MinBuyAmount string `json:"min_buy_amount"`
}

func (msg *MsgSell) Reset()        { *msg = MsgSell{} }
func (msg *MsgSell) ProtoMessage() {}
func (msg *MsgSell) String() string {
	return fmt.Sprintf("MsgSell{Who: %s, %d -> %d, Amount: %s}", msg.Who, msg.AssetIn, msg.AssetOut, msg.Amount)
}
func (msg *MsgSell) XXX_MessageName() string { return "omnipool.v1.MsgSell" }

func (msg *MsgSell) ValidateBasic() error {
	if err := validateAddress("who", msg.Who); err != nil {
		return err
	}
	if _, err := ParseAmount("amount", msg.Amount); err != nil {
		return err
	}
	_, err := ParseAmount("min_buy_amount", msg.MinBuyAmount)
	return err
}

func (msg *MsgSell) GetSigners() []sdk.AccAddress { return signers(msg.Who) }

// MsgBuy buys an exact amount of AssetOut.
type MsgBuy struct {
	Who           string `json:"who"`
	AssetOut      uint32 `json:"asset_out"`
	AssetIn       uint32 `json:"asset_in"`
	Amount        string `json:"amount"`
	MaxSellAmount string `json:"max_sell_amount"`
}

func (msg *MsgBuy) Reset()        { *msg = MsgBuy{} }
func (msg *MsgBuy) ProtoMessage() {}
func (msg *MsgBuy) String() string {
	return fmt.Sprintf("MsgBuy{Who: %s, %d <- %d, Amount: %s}", msg.Who, msg.AssetOut, msg.AssetIn, msg.Amount)
}
func (msg *MsgBuy) XXX_MessageName() string { return "omnipool.v1.MsgBuy" }

func (msg *MsgBuy) ValidateBasic() error {
	if err := validateAddress("who", msg.Who); err != nil {
		return err
	}
	if _, err := ParseAmount("amount", msg.Amount); err != nil {
		return err
	}
	_, err := ParseAmount("max_sell_amount", msg.MaxSellAmount)
	return err
}

func (msg *MsgBuy) GetSigners() []sdk.AccAddress { return signers(msg.Who) }

// MsgTradeResponse is returned by both sell and buy.
type MsgTradeResponse struct {
	Result TradeResult `json:"result"`
}

// MsgSetAssetTradableState replaces the tradability flags of an asset (or of the hub asset).
type MsgSetAssetTradableState struct {
	Authority string `json:"authority"`
	AssetID   uint32 `json:"asset_id"`
	State     string `json:"state"`
}

func (msg *MsgSetAssetTradableState) Reset()        { *msg = MsgSetAssetTradableState{} }
func (msg *MsgSetAssetTradableState) ProtoMessage() {}
func (msg *MsgSetAssetTradableState) String() string {
	return fmt.Sprintf("MsgSetAssetTradableState{AssetID: %d, State: %s}", msg.AssetID, msg.State)
}
func (msg *MsgSetAssetTradableState) XXX_MessageName() string {
	return "omnipool.v1.MsgSetAssetTradableState"
}

func (msg *MsgSetAssetTradableState) ValidateBasic() error {
	if err := validateAddress("authority", msg.Authority); err != nil {
		return err
	}
	if _, err := ParseTradability(msg.State); err != nil {
		return errorsmod.Wrap(ErrNotAllowed, err.Error())
	}
	return nil
}

func (msg *MsgSetAssetTradableState) GetSigners() []sdk.AccAddress { return signers(msg.Authority) }

// MsgSetAssetWeightCap updates the weight cap of an asset.
type MsgSetAssetWeightCap struct {
	Authority string `json:"authority"`
	AssetID   uint32 `json:"asset_id"`
	Cap       string `json:"cap"`
}

func (msg *MsgSetAssetWeightCap) Reset()        { *msg = MsgSetAssetWeightCap{} }
func (msg *MsgSetAssetWeightCap) ProtoMessage() {}
func (msg *MsgSetAssetWeightCap) String() string {
	return fmt.Sprintf("MsgSetAssetWeightCap{AssetID: %d, Cap: %s}", msg.AssetID, msg.Cap)
}
func (msg *MsgSetAssetWeightCap) XXX_MessageName() string { return "omnipool.v1.MsgSetAssetWeightCap" }

func (msg *MsgSetAssetWeightCap) ValidateBasic() error {
	if err := validateAddress("authority", msg.Authority); err != nil {
		return err
	}
	_, err := ParseRatio("cap", msg.Cap)
	return err
}

func (msg *MsgSetAssetWeightCap) GetSigners() []sdk.AccAddress { return signers(msg.Authority) }

// MsgSetTVLCap updates the pool-wide TVL cap.
type MsgSetTVLCap struct {
	Authority string `json:"authority"`
	Cap       string `json:"cap"`
}

func (msg *MsgSetTVLCap) Reset()                  { *msg = MsgSetTVLCap{} }
func (msg *MsgSetTVLCap) ProtoMessage()           {}
func (msg *MsgSetTVLCap) String() string          { return fmt.Sprintf("MsgSetTVLCap{Cap: %s}", msg.Cap) }
func (msg *MsgSetTVLCap) XXX_MessageName() string { return "omnipool.v1.MsgSetTVLCap" }

func (msg *MsgSetTVLCap) ValidateBasic() error {
	if err := validateAddress("authority", msg.Authority); err != nil {
		return err
	}
	_, err := ParseAmount("cap", msg.Cap)
	return err
}

func (msg *MsgSetTVLCap) GetSigners() []sdk.AccAddress { return signers(msg.Authority) }

// MsgEmptyResponse is returned by administrative messages.
type MsgEmptyResponse struct{}

// Ensure all messages implement sdk.Msg interface
var (
	_ sdk.Msg = &MsgInitializePool{}
	_ sdk.Msg = &MsgAddToken{}
	_ sdk.Msg = &MsgAddLiquidity{}
	_ sdk.Msg = &MsgRemoveLiquidity{}
	_ sdk.Msg = &MsgSell{}
	_ sdk.Msg = &MsgBuy{}
	_ sdk.Msg = &MsgSetAssetTradableState{}
	_ sdk.Msg = &MsgSetAssetWeightCap{}
	_ sdk.Msg = &MsgSetTVLCap{}
)
