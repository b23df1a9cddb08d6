// Package sim runs the omnipool, circuit breaker and dca keepers on an
// in-memory multistore without a consensus engine. Blocks are advanced
// explicitly with NextBlock.
package sim

import (
	"fmt"
	"time"

	"cosmossdk.io/log"
	"cosmossdk.io/math"
	"cosmossdk.io/store"
	"cosmossdk.io/store/metrics"
	storetypes "cosmossdk.io/store/types"
	cmtproto "github.com/cometbft/cometbft/proto/tendermint/types"
	dbm "github.com/cosmos/cosmos-db"
	sdk "github.com/cosmos/cosmos-sdk/types"
	authtypes "github.com/cosmos/cosmos-sdk/x/auth/types"

	"github.com/openalpha/omnipool/pkg/memledger"
	cbkeeper "github.com/openalpha/omnipool/x/circuitbreaker/keeper"
	cbtypes "github.com/openalpha/omnipool/x/circuitbreaker/types"
	dcakeeper "github.com/openalpha/omnipool/x/dca/keeper"
	dcatypes "github.com/openalpha/omnipool/x/dca/types"
	omnipoolkeeper "github.com/openalpha/omnipool/x/omnipool/keeper"
	omnipooltypes "github.com/openalpha/omnipool/x/omnipool/types"
)

// LedgerStoreKey holds balances, the asset registry and position NFTs.
const LedgerStoreKey = "ledger"

// FirstCreatedAssetID is the first id the registry hands out on its own.
const FirstCreatedAssetID = 1000

// Config configures a simulated chain. Zero values fall back to defaults.
type Config struct {
	Omnipool       *omnipooltypes.Params
	CircuitBreaker *cbtypes.Params
	DCA            *dcatypes.Params
	Logger         log.Logger
	StartHeight    int64
	BlockTime      time.Duration
}

// Chain is a single-node in-memory chain.
type Chain struct {
	Ctx sdk.Context

	Ledger   *memledger.Ledger
	Registry *memledger.Registry
	NFTs     *memledger.NFTs

	Omnipool       *omnipoolkeeper.Keeper
	CircuitBreaker *cbkeeper.Keeper
	DCA            *dcakeeper.Keeper

	Authority   string
	PoolAccount string

	cms       storetypes.CommitMultiStore
	logger    log.Logger
	blockTime time.Duration
}

// New mounts every store, builds the keepers and loads the configured params.
func New(cfg Config) (*Chain, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNopLogger()
	}
	height := cfg.StartHeight
	if height == 0 {
		height = 1
	}
	blockTime := cfg.BlockTime
	if blockTime == 0 {
		blockTime = 6 * time.Second
	}

	ledgerKey := storetypes.NewKVStoreKey(LedgerStoreKey)
	omnipoolKey := storetypes.NewKVStoreKey(omnipooltypes.StoreKey)
	cbKey := storetypes.NewKVStoreKey(cbtypes.StoreKey)
	cbTKey := storetypes.NewTransientStoreKey(cbtypes.TStoreKey)
	dcaKey := storetypes.NewKVStoreKey(dcatypes.StoreKey)

	db := dbm.NewMemDB()
	cms := store.NewCommitMultiStore(db, logger, metrics.NewNoOpMetrics())
	for _, key := range []storetypes.StoreKey{ledgerKey, omnipoolKey, cbKey, dcaKey} {
		cms.MountStoreWithDB(key, storetypes.StoreTypeIAVL, nil)
	}
	cms.MountStoreWithDB(cbTKey, storetypes.StoreTypeTransient, nil)
	if err := cms.LoadLatestVersion(); err != nil {
		return nil, fmt.Errorf("failed to load store: %w", err)
	}

	authority := authtypes.NewModuleAddress("gov").String()
	poolAccount := authtypes.NewModuleAddress(omnipooltypes.ModuleName).String()

	c := &Chain{
		Ledger:      memledger.NewLedger(ledgerKey),
		Registry:    memledger.NewRegistry(ledgerKey, FirstCreatedAssetID),
		NFTs:        memledger.NewNFTs(ledgerKey),
		Authority:   authority,
		PoolAccount: poolAccount,
		cms:         cms,
		logger:      logger,
		blockTime:   blockTime,
	}
	c.CircuitBreaker = cbkeeper.NewKeeper(cbKey, cbTKey, authority, logger)
	c.Omnipool = omnipoolkeeper.NewKeeper(
		omnipoolKey,
		c.Ledger,
		c.Registry,
		c.NFTs,
		c.CircuitBreaker,
		poolAccount,
		authority,
		logger,
	)
	c.DCA = dcakeeper.NewKeeper(dcaKey, c.Ledger, c.Omnipool, authority, logger)

	c.Ctx = c.newContext(height, time.Now().UTC())

	omnipoolParams := omnipooltypes.DefaultParams()
	if cfg.Omnipool != nil {
		omnipoolParams = *cfg.Omnipool
	}
	if err := c.Omnipool.SetParams(c.Ctx, omnipoolParams); err != nil {
		return nil, err
	}
	cbParams := cbtypes.DefaultParams()
	if cfg.CircuitBreaker != nil {
		cbParams = *cfg.CircuitBreaker
	}
	if err := c.CircuitBreaker.SetParams(c.Ctx, cbParams); err != nil {
		return nil, err
	}
	dcaParams := dcatypes.DefaultParams()
	if cfg.DCA != nil {
		dcaParams = *cfg.DCA
	}
	if err := c.DCA.SetParams(c.Ctx, dcaParams); err != nil {
		return nil, err
	}

	c.Registry.Register(c.Ctx, omnipoolParams.HubAssetID, "HUB", math.ZeroUint())
	c.Registry.Register(c.Ctx, omnipoolParams.NativeAssetID, "NATIVE", math.ZeroUint())
	c.Registry.Register(c.Ctx, omnipoolParams.StableAssetID, "STABLE", math.ZeroUint())
	return c, nil
}

func (c *Chain) newContext(height int64, t time.Time) sdk.Context {
	return sdk.NewContext(c.cms, cmtproto.Header{
		Height: height,
		Time:   t,
	}, false, c.logger).WithEventManager(sdk.NewEventManager())
}

// Height returns the current block height
func (c *Chain) Height() uint64 {
	return uint64(c.Ctx.BlockHeight())
}

// NextBlock ends the current block, commits and begins the next one.
func (c *Chain) NextBlock() error {
	if err := c.CircuitBreaker.EndBlocker(c.Ctx); err != nil {
		return err
	}
	c.cms.Commit()

	c.Ctx = c.newContext(c.Ctx.BlockHeight()+1, c.Ctx.BlockTime().Add(c.blockTime))
	if err := c.Omnipool.BeginBlocker(c.Ctx); err != nil {
		return err
	}
	return c.DCA.BeginBlocker(c.Ctx)
}

// AdvanceTo calls NextBlock until height is reached.
func (c *Chain) AdvanceTo(height uint64) error {
	for c.Height() < height {
		if err := c.NextBlock(); err != nil {
			return err
		}
	}
	return nil
}

// Fund mints amount of asset to who.
func (c *Chain) Fund(asset uint32, who string, amount math.Uint) error {
	return c.Ledger.Mint(c.Ctx, asset, who, amount)
}

// Events returns the events emitted since the block began or the last ResetEvents.
func (c *Chain) Events() sdk.Events {
	return c.Ctx.EventManager().Events()
}

// ResetEvents drops the collected events.
func (c *Chain) ResetEvents() {
	c.Ctx = c.Ctx.WithEventManager(sdk.NewEventManager())
}
