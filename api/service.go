package api

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	errorsmod "cosmossdk.io/errors"
	"cosmossdk.io/log"
	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/openalpha/omnipool/api/handlers"
	"github.com/openalpha/omnipool/api/types"
	"github.com/openalpha/omnipool/api/websocket"
	"github.com/openalpha/omnipool/pkg/sim"
	dcakeeper "github.com/openalpha/omnipool/x/dca/keeper"
	dcatypes "github.com/openalpha/omnipool/x/dca/types"
	omnipoolkeeper "github.com/openalpha/omnipool/x/omnipool/keeper"
	omnipooltypes "github.com/openalpha/omnipool/x/omnipool/types"
)

// Service runs the omnipool on an in-memory chain and implements every handler
// service. Requests are serialized; each one runs on a cached context and only
// commits when it succeeds.
type Service struct {
	chain  *sim.Chain
	tape   *TradeTape
	hub    *websocket.Hub
	logger log.Logger

	omnipoolMsgs  omnipooltypes.MsgServer
	omnipoolQuery *omnipoolkeeper.QueryServer
	dcaMsgs       dcatypes.MsgServer
	dcaQuery      *dcakeeper.QueryServer

	faucetLimit math.Uint

	mu sync.Mutex
}

var (
	_ types.PoolService      = (*Service)(nil)
	_ types.TradeService     = (*Service)(nil)
	_ types.LiquidityService = (*Service)(nil)
	_ types.DCAService       = (*Service)(nil)
	_ types.SandboxService   = (*Service)(nil)
)

// NewService wraps chain. hub may be nil when nothing listens for updates.
func NewService(chain *sim.Chain, hub *websocket.Hub, tapeSize int, logger log.Logger) *Service {
	return &Service{
		chain:         chain,
		tape:          NewTradeTape(tapeSize),
		hub:           hub,
		logger:        logger.With("module", "sandbox"),
		omnipoolMsgs:  omnipoolkeeper.NewMsgServerImpl(chain.Omnipool),
		omnipoolQuery: omnipoolkeeper.NewQueryServerImpl(chain.Omnipool),
		dcaMsgs:       dcakeeper.NewMsgServerImpl(chain.DCA),
		dcaQuery:      dcakeeper.NewQueryServerImpl(chain.DCA),
		faucetLimit:   math.ZeroUint(),
	}
}

// SetFaucetLimit caps a single faucet request. Zero means unlimited.
func (s *Service) SetFaucetLimit(limit math.Uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faucetLimit = limit
}

// Height returns the current block height
func (s *Service) Height() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chain.Height()
}

// Chain returns the underlying chain. Callers must not use it concurrently
// with the service.
func (s *Service) Chain() *sim.Chain {
	return s.chain
}

// execute runs fn on a cached context. Writes and events reach the chain only
// when fn succeeds; the trades among those events are then published.
func (s *Service) execute(fn func(ctx sdk.Context) error) ([]types.Trade, error) {
	cacheCtx, write := s.chain.Ctx.CacheContext()
	if err := fn(cacheCtx); err != nil {
		return nil, err
	}
	write()

	trades := s.publish(cacheCtx.EventManager().Events())
	s.updatePool()
	return trades, nil
}

// ============ Trading ============

// Sell executes a sell
func (s *Service) Sell(_ context.Context, msg *omnipooltypes.MsgSell) (*types.Trade, error) {
	if err := msg.ValidateBasic(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	trades, err := s.execute(func(ctx sdk.Context) error {
		_, err := s.omnipoolMsgs.Sell(ctx, msg)
		return err
	})
	if err != nil {
		return nil, err
	}
	return lastTrade(trades)
}

// Buy executes a buy
func (s *Service) Buy(_ context.Context, msg *omnipooltypes.MsgBuy) (*types.Trade, error) {
	if err := msg.ValidateBasic(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	trades, err := s.execute(func(ctx sdk.Context) error {
		_, err := s.omnipoolMsgs.Buy(ctx, msg)
		return err
	})
	if err != nil {
		return nil, err
	}
	return lastTrade(trades)
}

func lastTrade(trades []types.Trade) (*types.Trade, error) {
	if len(trades) == 0 {
		return nil, fmt.Errorf("trade executed without a trade event")
	}
	return &trades[len(trades)-1], nil
}

// Quote prices a sell or buy against the current state without executing it
func (s *Service) Quote(_ context.Context, kind string, assetIn, assetOut uint32, amount string) (*omnipooltypes.TradeResult, error) {
	value, err := omnipooltypes.ParseAmount("amount", amount)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	switch kind {
	case omnipoolkeeper.TradeKindSell:
		return s.omnipoolQuery.QuoteSell(s.chain.Ctx, assetIn, assetOut, value)
	case omnipoolkeeper.TradeKindBuy:
		return s.omnipoolQuery.QuoteBuy(s.chain.Ctx, assetOut, assetIn, value)
	default:
		return nil, fmt.Errorf("unknown quote kind %q", kind)
	}
}

// Trades returns the most recent trades, newest first
func (s *Service) Trades(_ context.Context, limit int) ([]types.Trade, error) {
	return s.tape.Latest(limit), nil
}

// ============ Liquidity ============

// AddLiquidity adds liquidity and returns the new position
func (s *Service) AddLiquidity(_ context.Context, msg *omnipooltypes.MsgAddLiquidity) (*types.Position, error) {
	if err := msg.ValidateBasic(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var positionID uint64
	_, err := s.execute(func(ctx sdk.Context) error {
		resp, err := s.omnipoolMsgs.AddLiquidity(ctx, msg)
		if err != nil {
			return err
		}
		positionID = resp.PositionID
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.position(positionID)
}

// RemoveLiquidity burns shares of a position
func (s *Service) RemoveLiquidity(_ context.Context, msg *omnipooltypes.MsgRemoveLiquidity) (*omnipooltypes.RemoveLiquidityResult, error) {
	if err := msg.ValidateBasic(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var result omnipooltypes.RemoveLiquidityResult
	_, err := s.execute(func(ctx sdk.Context) error {
		resp, err := s.omnipoolMsgs.RemoveLiquidity(ctx, msg)
		if err != nil {
			return err
		}
		result = resp.Result
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Position returns one liquidity position
func (s *Service) Position(_ context.Context, positionID uint64) (*types.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.position(positionID)
}

func (s *Service) position(positionID uint64) (*types.Position, error) {
	view, err := s.omnipoolQuery.Position(s.chain.Ctx, positionID)
	if err != nil {
		return nil, err
	}
	return &types.Position{
		PositionID: view.PositionID,
		AssetID:    view.AssetID,
		Owner:      view.Owner,
		Amount:     view.Amount.String(),
		Shares:     view.Shares.String(),
		Price:      view.Price.String(),
	}, nil
}

// ============ Pool queries ============

// Pool returns the pool-wide state and every listed asset
func (s *Service) Pool(_ context.Context) (*types.Pool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pool(), nil
}

func (s *Service) pool() *types.Pool {
	state := s.omnipoolQuery.Pool(s.chain.Ctx)
	assets := s.assets()
	return &types.Pool{
		Height:            s.chain.Height(),
		Initialized:       state.Initialized,
		HubAssetLiquidity: state.HubAssetLiquidity.String(),
		Imbalance:         types.SignedString(state.Imbalance.Value, state.Imbalance.Negative),
		TotalTVL:          state.TotalTVL.String(),
		TVLCap:            state.TVLCap.String(),
		Assets:            assets,
		AssetCount:        len(assets),
	}
}

// Assets returns every listed asset in id order
func (s *Service) Assets(_ context.Context) ([]types.Asset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.assets(), nil
}

func (s *Service) assets() []types.Asset {
	states, _ := s.omnipoolQuery.Assets(s.chain.Ctx, 0, 0)
	assets := make([]types.Asset, 0, len(states))
	for _, state := range states {
		assets = append(assets, s.assetView(state))
	}
	return assets
}

// Asset returns one listed asset
func (s *Service) Asset(_ context.Context, assetID uint32) (*types.Asset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.omnipoolQuery.Asset(s.chain.Ctx, assetID)
	if err != nil {
		return nil, err
	}
	asset := s.assetView(state)
	return &asset, nil
}

func (s *Service) assetView(state omnipooltypes.AssetReserveState) types.Asset {
	asset := types.Asset{
		AssetID:        state.AssetID,
		Reserve:        state.Reserve.String(),
		HubReserve:     state.HubReserve.String(),
		Shares:         state.Shares.String(),
		ProtocolShares: state.ProtocolShares.String(),
		Price:          "0",
		Cap:            state.Cap.String(),
		Tradable:       state.Tradable.String(),
	}
	if info, ok := s.chain.Registry.Get(s.chain.Ctx, state.AssetID); ok {
		asset.Name = info.Name
	}
	if !state.Reserve.IsZero() {
		asset.Price = state.Price().String()
	}
	return asset
}

// Ranking returns assets by share of hub liquidity, largest first
func (s *Service) Ranking(_ context.Context, limit int) ([]types.RankedAsset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	weights := s.omnipoolQuery.AssetsByWeight(s.chain.Ctx, limit)
	ranking := make([]types.RankedAsset, 0, len(weights))
	for _, w := range weights {
		ranking = append(ranking, types.RankedAsset{
			AssetID:    w.AssetID,
			HubReserve: w.HubReserve.String(),
			Weight:     w.Weight.String(),
			Cap:        w.Cap.String(),
		})
	}
	return ranking, nil
}

// ============ DCA ============

// Schedule creates a recurring order
func (s *Service) Schedule(_ context.Context, msg *dcatypes.MsgSchedule) (*dcatypes.ScheduleState, error) {
	if err := msg.ValidateBasic(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var id uint64
	_, err := s.execute(func(ctx sdk.Context) error {
		resp, err := s.dcaMsgs.Schedule(ctx, msg)
		if err != nil {
			return err
		}
		id = resp.ScheduleID
		return nil
	})
	if err != nil {
		return nil, err
	}
	state, err := s.dcaQuery.Schedule(s.chain.Ctx, id)
	if err != nil {
		return nil, err
	}
	return &state, nil
}

// Terminate stops a schedule and releases its bond
func (s *Service) Terminate(_ context.Context, msg *dcatypes.MsgTerminate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.execute(func(ctx sdk.Context) error {
		_, err := s.dcaMsgs.Terminate(ctx, msg)
		return err
	})
	return err
}

// ScheduleState returns a schedule and its bookkeeping
func (s *Service) ScheduleState(_ context.Context, scheduleID uint64) (*dcatypes.ScheduleState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.dcaQuery.Schedule(s.chain.Ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	return &state, nil
}

// SchedulesByOwner lists the schedules of owner
func (s *Service) SchedulesByOwner(_ context.Context, owner string) ([]dcatypes.ScheduleState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dcaQuery.SchedulesByOwner(s.chain.Ctx, owner)
}

// ============ Sandbox ============

// Account returns the balances and positions of who
func (s *Service) Account(_ context.Context, who string) (*types.Account, error) {
	if _, err := sdk.AccAddressFromBech32(who); err != nil {
		return nil, errorsmod.Wrapf(omnipooltypes.ErrInvalidAddress, "%s", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx := s.chain.Ctx
	account := &types.Account{Address: who, Balances: []types.Balance{}}
	for _, info := range s.chain.Registry.All(ctx) {
		free := s.chain.Ledger.FreeBalance(ctx, info.AssetID, who)
		reserved := s.chain.Ledger.ReservedBalance(ctx, info.AssetID, who)
		if free.IsZero() && reserved.IsZero() {
			continue
		}
		account.Balances = append(account.Balances, types.Balance{
			AssetID:  info.AssetID,
			Free:     free.String(),
			Reserved: reserved.String(),
		})
	}
	collection := s.omnipoolQuery.Params(ctx).PositionCollectionID
	account.Positions = s.chain.NFTs.ItemsOf(ctx, collection, who)
	return account, nil
}

// Faucet mints a registered asset to an account. The hub asset is only ever
// minted by the pool.
func (s *Service) Faucet(_ context.Context, req *types.FaucetRequest) (*types.Balance, error) {
	if _, err := sdk.AccAddressFromBech32(req.Who); err != nil {
		return nil, errorsmod.Wrapf(omnipooltypes.ErrInvalidAddress, "who: %s", err)
	}
	amount, err := omnipooltypes.ParseAmount("amount", req.Amount)
	if err != nil {
		return nil, err
	}
	if amount.IsZero() {
		return nil, errorsmod.Wrap(omnipooltypes.ErrInvalidAmount, "amount must be positive")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.faucetLimit.IsZero() && amount.GT(s.faucetLimit) {
		return nil, errorsmod.Wrapf(omnipooltypes.ErrInvalidAmount, "faucet limit is %s", s.faucetLimit)
	}
	ctx := s.chain.Ctx
	if req.AssetID == s.omnipoolQuery.Params(ctx).HubAssetID {
		return nil, errorsmod.Wrap(omnipooltypes.ErrNotAllowed, "hub asset cannot be minted")
	}
	if !s.chain.Registry.Exists(ctx, req.AssetID) {
		return nil, errorsmod.Wrapf(handlers.ErrNotFound, "asset %d", req.AssetID)
	}
	if err := s.chain.Fund(req.AssetID, req.Who, amount); err != nil {
		return nil, err
	}

	s.logger.Info("Faucet", "who", req.Who, "asset", req.AssetID, "amount", amount.String())
	return &types.Balance{
		AssetID:  req.AssetID,
		Free:     s.chain.Ledger.FreeBalance(ctx, req.AssetID, req.Who).String(),
		Reserved: s.chain.Ledger.ReservedBalance(ctx, req.AssetID, req.Who).String(),
	}, nil
}

// CreateAsset registers a new asset, mints its initial liquidity to the pool
// account and lists it.
func (s *Service) CreateAsset(_ context.Context, req *types.CreateAssetRequest) (*types.CreateAssetResponse, error) {
	amount, err := omnipooltypes.ParseAmount("amount", req.Amount)
	if err != nil {
		return nil, err
	}
	weightCap := req.WeightCap
	if weightCap == "" {
		weightCap = "1"
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	owner := req.Owner
	if owner == "" {
		owner = s.chain.PoolAccount
	}
	resp := &types.CreateAssetResponse{}
	_, err = s.execute(func(ctx sdk.Context) error {
		id, err := s.chain.Registry.CreateAsset(ctx, req.Name, math.ZeroUint())
		if err != nil {
			return err
		}
		if err := s.chain.Ledger.Mint(ctx, id, s.chain.PoolAccount, amount); err != nil {
			return err
		}
		msg := &omnipooltypes.MsgAddToken{
			Authority:    s.chain.Authority,
			AssetID:      id,
			InitialPrice: req.Price,
			WeightCap:    weightCap,
			Owner:        owner,
		}
		if err := msg.ValidateBasic(); err != nil {
			return err
		}
		added, err := s.omnipoolMsgs.AddToken(ctx, msg)
		if err != nil {
			return err
		}
		resp.AssetID = id
		resp.PositionID = added.PositionID
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Asset created", "asset", resp.AssetID, "name", req.Name, "price", req.Price)
	return resp, nil
}

// NextBlock ends the current block and runs the next one's begin block hooks,
// which reset the circuit breaker and execute due DCA schedules.
func (s *Service) NextBlock(_ context.Context) (*types.Block, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.chain.NextBlock(); err != nil {
		return nil, err
	}
	trades := s.publish(s.chain.Events())
	s.chain.ResetEvents()

	block := &types.Block{
		Height:    s.chain.Height(),
		Timestamp: s.chain.Ctx.BlockTime().UnixMilli(),
		Trades:    len(trades),
	}
	if s.hub != nil {
		s.hub.BroadcastBlock(&websocket.BlockMessage{Height: block.Height, Timestamp: block.Timestamp})
	}
	s.updatePool()
	return block, nil
}

// ============ Publishing ============

// publish records the trades found in events on the tape and forwards trades
// and schedule events to the hub.
func (s *Service) publish(events sdk.Events) []types.Trade {
	var trades []types.Trade
	for _, event := range events {
		switch event.Type {
		case omnipooltypes.EventTypeSellExecuted, omnipooltypes.EventTypeBuyExecuted:
			trade := s.tape.Append(s.tradeFromEvent(event))
			trades = append(trades, trade)
			if s.hub != nil {
				s.hub.BroadcastTrade(tradeMessage(trade))
			}
		case dcatypes.EventTypeScheduled, dcatypes.EventTypeExecuted, dcatypes.EventTypeSuspended,
			dcatypes.EventTypeTerminated, dcatypes.EventTypeCompleted, dcatypes.EventTypePaused,
			dcatypes.EventTypeResumed:
			if s.hub == nil {
				continue
			}
			id, _ := strconv.ParseUint(attribute(event, dcatypes.AttributeKeyScheduleID), 10, 64)
			s.hub.BroadcastDCA(&websocket.DCAMessage{
				Event:      event.Type,
				ScheduleID: id,
				Who:        attribute(event, dcatypes.AttributeKeyWho),
				Height:     s.chain.Height(),
			})
		}
	}
	return trades
}

func (s *Service) tradeFromEvent(event sdk.Event) types.Trade {
	kind := omnipoolkeeper.TradeKindSell
	if event.Type == omnipooltypes.EventTypeBuyExecuted {
		kind = omnipoolkeeper.TradeKindBuy
	}
	assetIn, _ := strconv.ParseUint(attribute(event, omnipooltypes.AttributeKeyAssetIn), 10, 32)
	assetOut, _ := strconv.ParseUint(attribute(event, omnipooltypes.AttributeKeyAssetOut), 10, 32)
	return types.Trade{
		Kind:        kind,
		Who:         attribute(event, omnipooltypes.AttributeKeyWho),
		AssetIn:     uint32(assetIn),
		AssetOut:    uint32(assetOut),
		AmountIn:    attribute(event, omnipooltypes.AttributeKeyAmountIn),
		AmountOut:   attribute(event, omnipooltypes.AttributeKeyAmountOut),
		AssetFee:    attribute(event, omnipooltypes.AttributeKeyAssetFee),
		ProtocolFee: attribute(event, omnipooltypes.AttributeKeyProtocolFee),
		Height:      s.chain.Height(),
		Timestamp:   s.chain.Ctx.BlockTime().UnixMilli(),
	}
}

func attribute(event sdk.Event, key string) string {
	for _, attr := range event.Attributes {
		if attr.Key == key {
			return attr.Value
		}
	}
	return ""
}

func tradeMessage(trade types.Trade) *websocket.TradeMessage {
	return &websocket.TradeMessage{
		Sequence:    trade.Sequence,
		Kind:        trade.Kind,
		Who:         trade.Who,
		AssetIn:     trade.AssetIn,
		AssetOut:    trade.AssetOut,
		AmountIn:    trade.AmountIn,
		AmountOut:   trade.AmountOut,
		AssetFee:    trade.AssetFee,
		ProtocolFee: trade.ProtocolFee,
		Height:      trade.Height,
		Timestamp:   trade.Timestamp,
	}
}

func (s *Service) updatePool() {
	if s.hub == nil {
		return
	}
	pool := s.pool()
	msg := &websocket.PoolMessage{
		Height:            pool.Height,
		HubAssetLiquidity: pool.HubAssetLiquidity,
		Imbalance:         pool.Imbalance,
		TotalTVL:          pool.TotalTVL,
		Assets:            make([]websocket.AssetMessage, 0, len(pool.Assets)),
		Timestamp:         time.Now().UnixMilli(),
	}
	for _, asset := range pool.Assets {
		msg.Assets = append(msg.Assets, websocket.AssetMessage{
			AssetID:    asset.AssetID,
			Reserve:    asset.Reserve,
			HubReserve: asset.HubReserve,
			Price:      asset.Price,
			Tradable:   asset.Tradable,
		})
	}
	s.hub.UpdatePool(msg)
}
