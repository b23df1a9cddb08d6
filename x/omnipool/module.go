package omnipool

import (
	"encoding/json"

	"cosmossdk.io/core/appmodule"
	"github.com/cosmos/cosmos-sdk/client"
	"github.com/cosmos/cosmos-sdk/codec"
	cdctypes "github.com/cosmos/cosmos-sdk/codec/types"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/cosmos/cosmos-sdk/types/module"
	"github.com/grpc-ecosystem/grpc-gateway/runtime"
	"github.com/spf13/cobra"

	"github.com/openalpha/omnipool/x/omnipool/client/cli"
	"github.com/openalpha/omnipool/x/omnipool/keeper"
	"github.com/openalpha/omnipool/x/omnipool/types"
)

const (
	ModuleName = types.ModuleName
)

var (
	_ module.AppModuleBasic = AppModuleBasic{}
	_ appmodule.AppModule   = AppModule{}
)

// AppModuleBasic defines the basic application module for omnipool
type AppModuleBasic struct{}

// Name returns the module's name
func (AppModuleBasic) Name() string {
	return ModuleName
}

// RegisterLegacyAminoCodec registers the module's types on the given LegacyAmino codec
func (AppModuleBasic) RegisterLegacyAminoCodec(cdc *codec.LegacyAmino) {
	cdc.RegisterConcrete(&types.MsgInitializePool{}, "omnipool/MsgInitializePool", nil)
	cdc.RegisterConcrete(&types.MsgAddToken{}, "omnipool/MsgAddToken", nil)
	cdc.RegisterConcrete(&types.MsgAddLiquidity{}, "omnipool/MsgAddLiquidity", nil)
	cdc.RegisterConcrete(&types.MsgRemoveLiquidity{}, "omnipool/MsgRemoveLiquidity", nil)
	cdc.RegisterConcrete(&types.MsgSell{}, "omnipool/MsgSell", nil)
	cdc.RegisterConcrete(&types.MsgBuy{}, "omnipool/MsgBuy", nil)
	cdc.RegisterConcrete(&types.MsgSetAssetTradableState{}, "omnipool/MsgSetAssetTradableState", nil)
	cdc.RegisterConcrete(&types.MsgSetAssetWeightCap{}, "omnipool/MsgSetAssetWeightCap", nil)
	cdc.RegisterConcrete(&types.MsgSetTVLCap{}, "omnipool/MsgSetTVLCap", nil)
}

// RegisterInterfaces registers the module's interface types
func (AppModuleBasic) RegisterInterfaces(registry cdctypes.InterfaceRegistry) {
	types.RegisterInterfaces(registry)
}

// DefaultGenesis returns default genesis state as raw bytes
func (AppModuleBasic) DefaultGenesis(cdc codec.JSONCodec) json.RawMessage {
	bz, _ := json.Marshal(types.DefaultGenesis())
	return bz
}

// ValidateGenesis performs genesis state validation
func (AppModuleBasic) ValidateGenesis(cdc codec.JSONCodec, config client.TxEncodingConfig, bz json.RawMessage) error {
	if len(bz) == 0 {
		return nil
	}
	var gs types.GenesisState
	if err := json.Unmarshal(bz, &gs); err != nil {
		return err
	}
	return gs.Validate()
}

// RegisterGRPCGatewayRoutes is a no-op; queries are served through the CLI and the sandbox API
func (AppModuleBasic) RegisterGRPCGatewayRoutes(clientCtx client.Context, mux *runtime.ServeMux) {}

// GetTxCmd returns the root tx command for the module
func (AppModuleBasic) GetTxCmd() *cobra.Command {
	return cli.GetTxCmd()
}

// GetQueryCmd returns the root query command for the module
func (AppModuleBasic) GetQueryCmd() *cobra.Command {
	return cli.GetQueryCmd()
}

// AppModule implements an application module for the omnipool module
type AppModule struct {
	AppModuleBasic
	keeper *keeper.Keeper
}

// NewAppModule creates a new AppModule object
func NewAppModule(k *keeper.Keeper) AppModule {
	return AppModule{
		AppModuleBasic: AppModuleBasic{},
		keeper:         k,
	}
}

// Name returns the module's name
func (am AppModule) Name() string {
	return ModuleName
}

// RegisterServices registers module services
func (am AppModule) RegisterServices(cfg module.Configurator) {
	types.RegisterMsgServer(cfg.MsgServer(), keeper.NewMsgServerImpl(am.keeper))
}

// InitGenesis loads the module genesis
func (am AppModule) InitGenesis(ctx sdk.Context, cdc codec.JSONCodec, bz json.RawMessage) {
	gs := types.DefaultGenesis()
	if len(bz) > 0 {
		if err := json.Unmarshal(bz, gs); err != nil {
			panic(err)
		}
	}
	if err := am.keeper.InitGenesis(ctx, *gs); err != nil {
		panic(err)
	}
}

// ExportGenesis exports the module state
func (am AppModule) ExportGenesis(ctx sdk.Context, cdc codec.JSONCodec) json.RawMessage {
	bz, _ := json.Marshal(am.keeper.ExportGenesis(ctx))
	return bz
}

// IsOnePerModuleType implements the depinject.OnePerModuleType interface
func (am AppModule) IsOnePerModuleType() {}

// IsAppModule implements the appmodule.AppModule interface
func (am AppModule) IsAppModule() {}

// BeginBlocker records the per-block price snapshots
func (am AppModule) BeginBlocker(ctx sdk.Context) error {
	return am.keeper.BeginBlocker(ctx)
}
