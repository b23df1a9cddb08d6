package app

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"cosmossdk.io/core/appmodule"
	"cosmossdk.io/log"
	storetypes "cosmossdk.io/store/types"
	abci "github.com/cometbft/cometbft/abci/types"
	cmtcrypto "github.com/cometbft/cometbft/proto/tendermint/crypto"
	dbm "github.com/cosmos/cosmos-db"
	"github.com/cosmos/cosmos-sdk/baseapp"
	"github.com/cosmos/cosmos-sdk/client"
	"github.com/cosmos/cosmos-sdk/client/grpc/cmtservice"
	nodeservice "github.com/cosmos/cosmos-sdk/client/grpc/node"
	"github.com/cosmos/cosmos-sdk/codec"
	"github.com/cosmos/cosmos-sdk/codec/address"
	codectypes "github.com/cosmos/cosmos-sdk/codec/types"
	"github.com/cosmos/cosmos-sdk/runtime"
	"github.com/cosmos/cosmos-sdk/server/api"
	"github.com/cosmos/cosmos-sdk/server/config"
	servertypes "github.com/cosmos/cosmos-sdk/server/types"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/cosmos/cosmos-sdk/types/module"
	"github.com/cosmos/cosmos-sdk/x/auth"
	authkeeper "github.com/cosmos/cosmos-sdk/x/auth/keeper"
	authtx "github.com/cosmos/cosmos-sdk/x/auth/tx"
	authtypes "github.com/cosmos/cosmos-sdk/x/auth/types"
	"github.com/cosmos/cosmos-sdk/x/bank"
	bankkeeper "github.com/cosmos/cosmos-sdk/x/bank/keeper"
	banktypes "github.com/cosmos/cosmos-sdk/x/bank/types"
	"github.com/cosmos/cosmos-sdk/x/consensus"
	consensusparamkeeper "github.com/cosmos/cosmos-sdk/x/consensus/keeper"
	consensusparamtypes "github.com/cosmos/cosmos-sdk/x/consensus/types"
	"github.com/cosmos/cosmos-sdk/x/genutil"
	genutiltypes "github.com/cosmos/cosmos-sdk/x/genutil/types"
	"github.com/cosmos/cosmos-sdk/x/staking"
	gogoprotograpc "github.com/cosmos/gogoproto/grpc"

	"github.com/openalpha/omnipool/pkg/memledger"
	"github.com/openalpha/omnipool/x/circuitbreaker"
	cbkeeper "github.com/openalpha/omnipool/x/circuitbreaker/keeper"
	cbtypes "github.com/openalpha/omnipool/x/circuitbreaker/types"
	"github.com/openalpha/omnipool/x/dca"
	dcakeeper "github.com/openalpha/omnipool/x/dca/keeper"
	dcatypes "github.com/openalpha/omnipool/x/dca/types"
	"github.com/openalpha/omnipool/x/omnipool"
	omnipoolkeeper "github.com/openalpha/omnipool/x/omnipool/keeper"
	omnipooltypes "github.com/openalpha/omnipool/x/omnipool/types"
)

const (
	Name = "omnipool"

	// LedgerStoreKey holds balances, the asset registry and position NFTs.
	LedgerStoreKey = "ledger"

	// FirstCreatedAssetID is the first id the registry assigns on its own.
	FirstCreatedAssetID = 1000
)

var (
	// DefaultNodeHome default home directories for the application daemon
	DefaultNodeHome string

	// ModuleBasics defines the module BasicManager used for codec registration
	ModuleBasics = module.NewBasicManager(
		auth.AppModuleBasic{},
		bank.AppModuleBasic{},
		staking.AppModuleBasic{},
		genutil.NewAppModuleBasic(genutiltypes.DefaultMessageValidator),
		consensus.AppModuleBasic{},
		omnipool.AppModuleBasic{},
		circuitbreaker.AppModuleBasic{},
		dca.AppModuleBasic{},
	)
)

func init() {
	userHomeDir, err := os.UserHomeDir()
	if err != nil {
		panic(err)
	}
	DefaultNodeHome = filepath.Join(userHomeDir, ".omnipool")
}

// App extends an ABCI application
type App struct {
	*baseapp.BaseApp

	legacyAmino       *codec.LegacyAmino
	appCodec          codec.Codec
	interfaceRegistry codectypes.InterfaceRegistry
	txConfig          client.TxConfig

	// Keys
	keys    map[string]*storetypes.KVStoreKey
	tkeys   map[string]*storetypes.TransientStoreKey
	memKeys map[string]*storetypes.MemoryStoreKey

	// SDK Keepers
	ConsensusParamsKeeper consensusparamkeeper.Keeper
	AccountKeeper         authkeeper.AccountKeeper
	BankKeeper            bankkeeper.BaseKeeper

	// Asset ledgers
	Ledger   *memledger.Ledger
	Registry *memledger.Registry
	NFTs     *memledger.NFTs

	// Custom module keepers
	OmnipoolKeeper       *omnipoolkeeper.Keeper
	CircuitBreakerKeeper *cbkeeper.Keeper
	DCAKeeper            *dcakeeper.Keeper

	// Module Manager
	BasicModuleManager module.BasicManager
}

// NewApp returns a new App instance
func NewApp(
	logger log.Logger,
	db dbm.DB,
	traceStore io.Writer,
	loadLatest bool,
	appOpts servertypes.AppOptions,
	baseAppOptions ...func(*baseapp.BaseApp),
) *App {
	encodingConfig := MakeEncodingConfig()
	appCodec := encodingConfig.Codec
	legacyAmino := encodingConfig.Amino
	interfaceRegistry := encodingConfig.InterfaceRegistry

	bApp := baseapp.NewBaseApp(Name, logger, db, encodingConfig.TxConfig.TxDecoder(), baseAppOptions...)
	bApp.SetCommitMultiStoreTracer(traceStore)
	bApp.SetInterfaceRegistry(interfaceRegistry)

	keys := storetypes.NewKVStoreKeys(
		authtypes.StoreKey,
		banktypes.StoreKey,
		consensusparamtypes.StoreKey,
		LedgerStoreKey,
		omnipooltypes.StoreKey,
		cbtypes.StoreKey,
		dcatypes.StoreKey,
	)
	tkeys := storetypes.NewTransientStoreKeys(cbtypes.TStoreKey)
	memKeys := storetypes.NewMemoryStoreKeys()

	app := &App{
		BaseApp:            bApp,
		legacyAmino:        legacyAmino,
		appCodec:           appCodec,
		interfaceRegistry:  interfaceRegistry,
		txConfig:           encodingConfig.TxConfig,
		keys:               keys,
		tkeys:              tkeys,
		memKeys:            memKeys,
		BasicModuleManager: ModuleBasics,
	}

	// Governance owns every privileged omnipool, circuit breaker and dca call
	authority := authtypes.NewModuleAddress("gov").String()

	app.ConsensusParamsKeeper = consensusparamkeeper.NewKeeper(
		appCodec,
		runtime.NewKVStoreService(keys[consensusparamtypes.StoreKey]),
		authority,
		runtime.EventService{},
	)
	bApp.SetParamStore(app.ConsensusParamsKeeper.ParamsStore)

	maccPerms := map[string][]string{
		authtypes.FeeCollectorName: nil,
		omnipooltypes.ModuleName:   {authtypes.Minter, authtypes.Burner},
		dcatypes.ModuleName:        nil,
	}

	addrCodec := address.NewBech32Codec(sdk.GetConfig().GetBech32AccountAddrPrefix())

	app.AccountKeeper = authkeeper.NewAccountKeeper(
		appCodec,
		runtime.NewKVStoreService(keys[authtypes.StoreKey]),
		authtypes.ProtoBaseAccount,
		maccPerms,
		addrCodec,
		sdk.GetConfig().GetBech32AccountAddrPrefix(),
		authority,
	)

	app.BankKeeper = bankkeeper.NewBaseKeeper(
		appCodec,
		runtime.NewKVStoreService(keys[banktypes.StoreKey]),
		app.AccountKeeper,
		BlockedModuleAccountAddrs(maccPerms),
		authority,
		logger,
	)

	app.Ledger, app.Registry, app.NFTs = newAssetLedgers(keys[LedgerStoreKey])

	app.CircuitBreakerKeeper = cbkeeper.NewKeeper(
		keys[cbtypes.StoreKey],
		tkeys[cbtypes.TStoreKey],
		authority,
		logger,
	)

	app.OmnipoolKeeper = omnipoolkeeper.NewKeeper(
		keys[omnipooltypes.StoreKey],
		app.Ledger,
		app.Registry,
		app.NFTs,
		app.CircuitBreakerKeeper,
		authtypes.NewModuleAddress(omnipooltypes.ModuleName).String(),
		authority,
		logger,
	)

	app.DCAKeeper = dcakeeper.NewKeeper(
		keys[dcatypes.StoreKey],
		app.Ledger,
		app.OmnipoolKeeper,
		authority,
		logger,
	)

	// Register MsgServers for custom modules with the message service router
	omnipooltypes.RegisterMsgServer(bApp.MsgServiceRouter(), omnipoolkeeper.NewMsgServerImpl(app.OmnipoolKeeper))
	cbtypes.RegisterMsgServer(bApp.MsgServiceRouter(), cbkeeper.NewMsgServerImpl(app.CircuitBreakerKeeper))
	dcatypes.RegisterMsgServer(bApp.MsgServiceRouter(), dcakeeper.NewMsgServerImpl(app.DCAKeeper))

	// Register QueryServers for SDK modules
	authtypes.RegisterQueryServer(bApp.GRPCQueryRouter(), authkeeper.NewQueryServer(app.AccountKeeper))
	banktypes.RegisterQueryServer(bApp.GRPCQueryRouter(), bankkeeper.NewQuerier(&app.BankKeeper))

	app.MountKVStores(keys)
	app.MountTransientStores(tkeys)
	app.MountMemoryStores(memKeys)

	app.SetInitChainer(app.InitChainer)
	app.SetBeginBlocker(app.BeginBlocker)
	app.SetEndBlocker(app.EndBlocker)

	if loadLatest {
		if err := app.LoadLatestVersion(); err != nil {
			panic(err)
		}
	}

	return app
}

// Name returns the name of the App
func (app *App) Name() string { return app.BaseApp.Name() }

// BeginBlocker snapshots pool prices and then executes the dca schedules
// planned for this block, so executions see the previous block's prices.
func (app *App) BeginBlocker(ctx sdk.Context) (sdk.BeginBlock, error) {
	logger := app.Logger()
	start := time.Now()

	if err := app.OmnipoolKeeper.BeginBlocker(ctx); err != nil {
		return sdk.BeginBlock{}, fmt.Errorf("omnipool begin block: %w", err)
	}
	snapshotDuration := time.Since(start)

	dcaStart := time.Now()
	if err := app.DCAKeeper.BeginBlocker(ctx); err != nil {
		return sdk.BeginBlock{}, fmt.Errorf("dca begin block: %w", err)
	}
	dcaDuration := time.Since(dcaStart)

	logger.Debug("BeginBlocker performance",
		"block", ctx.BlockHeight(),
		"snapshot_ms", snapshotDuration.Milliseconds(),
		"dca_ms", dcaDuration.Milliseconds(),
	)

	return sdk.BeginBlock{Events: ctx.EventManager().ABCIEvents()}, nil
}

// EndBlocker drops the circuit breaker's per-block liquidity ranges
func (app *App) EndBlocker(ctx sdk.Context) (sdk.EndBlock, error) {
	start := time.Now()
	if err := app.CircuitBreakerKeeper.EndBlocker(ctx); err != nil {
		return sdk.EndBlock{}, fmt.Errorf("circuit breaker end block: %w", err)
	}

	// Warn if EndBlocker takes too long (> 100ms)
	if d := time.Since(start); d > 100*time.Millisecond {
		app.Logger().Warn("EndBlocker exceeded latency threshold",
			"block", ctx.BlockHeight(),
			"duration_ms", d.Milliseconds(),
			"threshold_ms", 100,
		)
	}

	return sdk.EndBlock{}, nil
}

// StakingGenesisState represents the staking module's genesis state
type StakingGenesisState struct {
	Validators []struct {
		ConsensusPubkey struct {
			Type string `json:"@type"`
			Key  string `json:"key"`
		} `json:"consensus_pubkey"`
		Tokens string `json:"tokens"`
		Status string `json:"status"`
	} `json:"validators"`
}

// GenutilGenesisState represents the genutil module's genesis state
type GenutilGenesisState struct {
	GenTxs []json.RawMessage `json:"gen_txs"`
}

// GenTx represents a genesis transaction
type GenTx struct {
	Body struct {
		Messages []json.RawMessage `json:"messages"`
	} `json:"body"`
}

// MsgCreateValidator represents the create validator message
type MsgCreateValidator struct {
	Type   string `json:"@type"`
	Pubkey struct {
		Type string `json:"@type"`
		Key  string `json:"key"`
	} `json:"pubkey"`
	Value struct {
		Denom  string `json:"denom"`
		Amount string `json:"amount"`
	} `json:"value"`
}

// InitChainer loads the ledger and module genesis, then returns the
// validator set found in the staking or genutil sections.
func (app *App) InitChainer(ctx sdk.Context, req *abci.RequestInitChain) (*abci.ResponseInitChain, error) {
	var genesisState map[string]json.RawMessage
	if err := json.Unmarshal(req.AppStateBytes, &genesisState); err != nil {
		return nil, err
	}

	// ledger first: omnipool genesis checks reserves against pool balances
	var ledgerGenesis LedgerGenesis
	if bz, ok := genesisState[LedgerStoreKey]; ok {
		if err := json.Unmarshal(bz, &ledgerGenesis); err != nil {
			return nil, fmt.Errorf("ledger genesis: %w", err)
		}
	}
	if err := app.initLedgerGenesis(ctx, ledgerGenesis); err != nil {
		return nil, err
	}

	omnipoolGenesis := omnipooltypes.DefaultGenesis()
	if err := unmarshalModuleGenesis(genesisState, omnipooltypes.ModuleName, omnipoolGenesis); err != nil {
		return nil, err
	}
	if err := app.OmnipoolKeeper.InitGenesis(ctx, *omnipoolGenesis); err != nil {
		return nil, fmt.Errorf("omnipool genesis: %w", err)
	}

	cbGenesis := cbtypes.DefaultGenesis()
	if err := unmarshalModuleGenesis(genesisState, cbtypes.ModuleName, cbGenesis); err != nil {
		return nil, err
	}
	if err := app.CircuitBreakerKeeper.InitGenesis(ctx, *cbGenesis); err != nil {
		return nil, fmt.Errorf("circuit breaker genesis: %w", err)
	}

	dcaGenesis := dcatypes.DefaultGenesis()
	if err := unmarshalModuleGenesis(genesisState, dcatypes.ModuleName, dcaGenesis); err != nil {
		return nil, err
	}
	if err := app.DCAKeeper.InitGenesis(ctx, *dcaGenesis); err != nil {
		return nil, fmt.Errorf("dca genesis: %w", err)
	}

	if len(req.Validators) > 0 {
		return &abci.ResponseInitChain{
			Validators: req.Validators,
		}, nil
	}

	var validators []abci.ValidatorUpdate
	if stakingGenesis, ok := genesisState["staking"]; ok {
		var stakingState StakingGenesisState
		if err := json.Unmarshal(stakingGenesis, &stakingState); err == nil {
			for _, val := range stakingState.Validators {
				if val.Status != "BOND_STATUS_BONDED" {
					continue
				}
				if update, ok := ed25519Update(val.ConsensusPubkey.Key); ok {
					validators = append(validators, update)
				}
			}
		}
	}

	// If no validators from staking, try to extract from gentx
	if len(validators) == 0 {
		if genutilGenesis, ok := genesisState["genutil"]; ok {
			var genutilState GenutilGenesisState
			if err := json.Unmarshal(genutilGenesis, &genutilState); err == nil {
				for _, genTxRaw := range genutilState.GenTxs {
					var genTx GenTx
					if err := json.Unmarshal(genTxRaw, &genTx); err != nil {
						continue
					}
					for _, msgRaw := range genTx.Body.Messages {
						var msg MsgCreateValidator
						if err := json.Unmarshal(msgRaw, &msg); err != nil {
							continue
						}
						if msg.Type != "/cosmos.staking.v1beta1.MsgCreateValidator" {
							continue
						}
						if update, ok := ed25519Update(msg.Pubkey.Key); ok {
							validators = append(validators, update)
						}
					}
				}
			}
		}
	}

	return &abci.ResponseInitChain{
		Validators: validators,
	}, nil
}

func ed25519Update(key string) (abci.ValidatorUpdate, bool) {
	pubKeyBytes, err := base64.StdEncoding.DecodeString(key)
	if err != nil {
		return abci.ValidatorUpdate{}, false
	}
	return abci.ValidatorUpdate{
		PubKey: cmtcrypto.PublicKey{
			Sum: &cmtcrypto.PublicKey_Ed25519{
				Ed25519: pubKeyBytes,
			},
		},
		Power: 100,
	}, true
}

func unmarshalModuleGenesis(genesisState map[string]json.RawMessage, name string, target interface{}) error {
	bz, ok := genesisState[name]
	if !ok || len(bz) == 0 {
		return nil
	}
	if err := json.Unmarshal(bz, target); err != nil {
		return fmt.Errorf("%s genesis: %w", name, err)
	}
	return nil
}

// ExportModuleGenesis returns the JSON genesis of the custom modules and the ledger
func (app *App) ExportModuleGenesis(ctx sdk.Context) (map[string]json.RawMessage, error) {
	out := make(map[string]json.RawMessage)
	sections := map[string]interface{}{
		LedgerStoreKey:           app.exportLedgerGenesis(ctx),
		omnipooltypes.ModuleName: app.OmnipoolKeeper.ExportGenesis(ctx),
		cbtypes.ModuleName:       app.CircuitBreakerKeeper.ExportGenesis(ctx),
		dcatypes.ModuleName:      app.DCAKeeper.ExportGenesis(ctx),
	}
	for name, gs := range sections {
		bz, err := json.Marshal(gs)
		if err != nil {
			return nil, fmt.Errorf("%s genesis: %w", name, err)
		}
		out[name] = bz
	}
	return out, nil
}

// LoadHeight loads a particular height
func (app *App) LoadHeight(height int64) error {
	return app.LoadVersion(height)
}

// LegacyAmino returns the legacy amino codec
func (app *App) LegacyAmino() *codec.LegacyAmino {
	return app.legacyAmino
}

// AppCodec returns the app codec
func (app *App) AppCodec() codec.Codec {
	return app.appCodec
}

// InterfaceRegistry returns the InterfaceRegistry
func (app *App) InterfaceRegistry() codectypes.InterfaceRegistry {
	return app.interfaceRegistry
}

// RegisterAPIRoutes registers all application module routes
func (app *App) RegisterAPIRoutes(apiSvr *api.Server, apiConfig config.APIConfig) {
	clientCtx := apiSvr.ClientCtx
	ModuleBasics.RegisterGRPCGatewayRoutes(clientCtx, apiSvr.GRPCGatewayRouter)
}

// GetKey returns a store key
func (app *App) GetKey(storeKey string) *storetypes.KVStoreKey {
	return app.keys[storeKey]
}

// GetTKey returns a transient store key
func (app *App) GetTKey(storeKey string) *storetypes.TransientStoreKey {
	return app.tkeys[storeKey]
}

// GetMemKey returns a memory store key
func (app *App) GetMemKey(storeKey string) *storetypes.MemoryStoreKey {
	return app.memKeys[storeKey]
}

// TxConfig returns the transaction config
func (app *App) TxConfig() client.TxConfig {
	return app.txConfig
}

// AutoCliOpts returns the autocli options for the app
func (app *App) AutoCliOpts() map[string]appmodule.AppModule {
	return map[string]appmodule.AppModule{}
}

// RegisterTxService implements the Application.RegisterTxService method
func (app *App) RegisterTxService(clientCtx client.Context) {
	authtx.RegisterTxService(app.BaseApp.GRPCQueryRouter(), clientCtx, app.BaseApp.Simulate, app.interfaceRegistry)
}

// RegisterTendermintService implements the Application.RegisterTendermintService method
func (app *App) RegisterTendermintService(clientCtx client.Context) {
	cmtservice.RegisterTendermintService(
		clientCtx,
		app.BaseApp.GRPCQueryRouter(),
		app.interfaceRegistry,
		app.Query,
	)
}

// RegisterNodeService implements the Application.RegisterNodeService method
func (app *App) RegisterNodeService(clientCtx client.Context, cfg config.Config) {
	nodeservice.RegisterNodeService(clientCtx, app.BaseApp.GRPCQueryRouter(), cfg)
}

// RegisterGRPCServer registers the app's gRPC services
func (app *App) RegisterGRPCServer(server gogoprotograpc.Server) {
	// Custom gRPC services are now registered via MsgServiceRouter in NewApp
}

// SimulationManager returns the app's simulation manager
func (app *App) SimulationManager() *module.SimulationManager {
	return nil
}

// BlockedModuleAccountAddrs returns module account addresses that should not
// receive coins (these accounts are typically module accounts like fee collector)
func BlockedModuleAccountAddrs(maccPerms map[string][]string) map[string]bool {
	blockedAddrs := make(map[string]bool)
	for acc := range maccPerms {
		blockedAddrs[authtypes.NewModuleAddress(acc).String()] = true
	}
	// the pool account receives reserves from traders
	delete(blockedAddrs, authtypes.NewModuleAddress(omnipooltypes.ModuleName).String())
	return blockedAddrs
}
