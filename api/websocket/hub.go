package websocket

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/openalpha/omnipool/metrics"
)

// Public channels. Trades can be narrowed to one asset with "trades:<asset id>".
const (
	ChannelTrades = "trades"
	ChannelPool   = "pool"
	ChannelDCA    = "dca"
	ChannelBlocks = "blocks"
)

// Hub maintains the set of active clients and fans messages out per channel
type Hub struct {
	clients  map[*Client]bool
	channels map[string]map[*Client]bool // channel -> clients

	register    chan *Client
	unregister  chan *Client
	subscribe   chan *SubscriptionRequest
	unsubscribe chan *SubscriptionRequest

	// latest pool snapshot, flushed every PoolInterval
	poolBuffer *PoolMessage

	mu sync.RWMutex

	done     chan struct{}
	doneOnce sync.Once

	config *HubConfig
}

// HubConfig contains hub configuration
type HubConfig struct {
	PoolInterval     time.Duration `toml:"pool_interval"`
	MaxSubscriptions int           `toml:"max_subscriptions"`
	MessageRateLimit int           `toml:"message_rate_limit"` // messages per second per client
}

// DefaultHubConfig returns default hub configuration
func DefaultHubConfig() *HubConfig {
	return &HubConfig{
		PoolInterval:     250 * time.Millisecond,
		MaxSubscriptions: 20,
		MessageRateLimit: 50,
	}
}

// SubscriptionRequest represents a subscription request
type SubscriptionRequest struct {
	Client  *Client
	Channel string
}

// NewHub creates a new Hub
func NewHub(config *HubConfig) *Hub {
	if config == nil {
		config = DefaultHubConfig()
	}
	if config.PoolInterval <= 0 {
		config.PoolInterval = DefaultHubConfig().PoolInterval
	}

	return &Hub{
		clients:     make(map[*Client]bool),
		channels:    make(map[string]map[*Client]bool),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		subscribe:   make(chan *SubscriptionRequest, 256),
		unsubscribe: make(chan *SubscriptionRequest, 256),
		done:        make(chan struct{}),
		config:      config,
	}
}

// Run processes registrations and subscriptions until ctx is done
func (h *Hub) Run(ctx context.Context) {
	poolTicker := time.NewTicker(h.config.PoolInterval)
	defer poolTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.doneOnce.Do(func() { close(h.done) })
			h.closeAll()
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case req := <-h.subscribe:
			h.handleSubscription(req)

		case req := <-h.unsubscribe:
			h.handleUnsubscription(req)

		case <-poolTicker.C:
			h.flushPool()
		}
	}
}

// enqueue hands a request to the Run loop, giving up once the hub has stopped
func enqueue[T any](h *Hub, ch chan T, v T) bool {
	select {
	case ch <- v:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client] = true
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	for channel, clients := range h.channels {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.channels, channel)
		}
	}
	client.close()
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		client.close()
	}
	h.clients = make(map[*Client]bool)
	h.channels = make(map[string]map[*Client]bool)
}

func (h *Hub) handleSubscription(req *SubscriptionRequest) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.clients[req.Client] {
		return
	}
	if _, ok := h.channels[req.Channel]; !ok {
		h.channels[req.Channel] = make(map[*Client]bool)
	}
	h.channels[req.Channel][req.Client] = true

	req.Client.Send(mustMarshal(&WSMessage{Type: "subscribed", Channel: req.Channel}))
}

func (h *Hub) handleUnsubscription(req *SubscriptionRequest) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.clients[req.Client] {
		return
	}
	if clients, ok := h.channels[req.Channel]; ok {
		delete(clients, req.Client)
		if len(clients) == 0 {
			delete(h.channels, req.Channel)
		}
	}

	req.Client.Send(mustMarshal(&WSMessage{Type: "unsubscribed", Channel: req.Channel}))
}

// BroadcastToChannel sends a message to all clients subscribed to a channel.
// Slow clients with a full buffer miss the message.
func (h *Hub) BroadcastToChannel(channel string, message interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.channels[channel] {
		client.Send(data)
	}
	metrics.GetCollector().RecordWSMessage(channel)
}

// ============ Channel-specific broadcasts ============

// BroadcastTrade publishes a trade on "trades" and on both asset channels
func (h *Hub) BroadcastTrade(trade *TradeMessage) {
	channels := []string{
		ChannelTrades,
		TradesChannel(trade.AssetIn),
	}
	if trade.AssetOut != trade.AssetIn {
		channels = append(channels, TradesChannel(trade.AssetOut))
	}
	for _, channel := range channels {
		h.BroadcastToChannel(channel, &WSMessage{Type: "trade", Channel: channel, Data: trade})
	}
}

// UpdatePool buffers the latest pool snapshot
func (h *Hub) UpdatePool(pool *PoolMessage) {
	h.mu.Lock()
	h.poolBuffer = pool
	h.mu.Unlock()
}

func (h *Hub) flushPool() {
	h.mu.Lock()
	pool := h.poolBuffer
	h.poolBuffer = nil
	h.mu.Unlock()

	if pool == nil {
		return
	}
	h.BroadcastToChannel(ChannelPool, &WSMessage{Type: "pool", Channel: ChannelPool, Data: pool})
}

// BroadcastDCA publishes a schedule lifecycle event
func (h *Hub) BroadcastDCA(event *DCAMessage) {
	h.BroadcastToChannel(ChannelDCA, &WSMessage{Type: "dca", Channel: ChannelDCA, Data: event})
}

// BroadcastBlock publishes a new block height
func (h *Hub) BroadcastBlock(block *BlockMessage) {
	h.BroadcastToChannel(ChannelBlocks, &WSMessage{Type: "block", Channel: ChannelBlocks, Data: block})
}

// TradesChannel returns the trade channel of one asset
func TradesChannel(assetID uint32) string {
	return ChannelTrades + ":" + formatUint(uint64(assetID))
}

// ValidChannel reports whether channel can be subscribed to
func ValidChannel(channel string) bool {
	switch channel {
	case ChannelTrades, ChannelPool, ChannelDCA, ChannelBlocks:
		return true
	}
	asset, ok := strings.CutPrefix(channel, ChannelTrades+":")
	if !ok || asset == "" || len(asset) > 10 {
		return false
	}
	for _, r := range asset {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ============ Message Types ============

// WSMessage represents a WebSocket message
type WSMessage struct {
	Type    string      `json:"type"`
	Channel string      `json:"channel,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// TradeMessage represents an executed sell or buy
type TradeMessage struct {
	Sequence    uint64 `json:"sequence"`
	Kind        string `json:"kind"` // "sell" or "buy"
	Who         string `json:"who"`
	AssetIn     uint32 `json:"asset_in"`
	AssetOut    uint32 `json:"asset_out"`
	AmountIn    string `json:"amount_in"`
	AmountOut   string `json:"amount_out"`
	AssetFee    string `json:"asset_fee"`
	ProtocolFee string `json:"protocol_fee"`
	Height      uint64 `json:"height"`
	Timestamp   int64  `json:"timestamp"`
}

// PoolMessage represents a pool snapshot
type PoolMessage struct {
	Height            uint64         `json:"height"`
	HubAssetLiquidity string         `json:"hub_asset_liquidity"`
	Imbalance         string         `json:"imbalance"`
	TotalTVL          string         `json:"total_tvl"`
	Assets            []AssetMessage `json:"assets"`
	Timestamp         int64          `json:"timestamp"`
}

// AssetMessage represents one asset's reserves
type AssetMessage struct {
	AssetID    uint32 `json:"asset_id"`
	Reserve    string `json:"reserve"`
	HubReserve string `json:"hub_reserve"`
	Price      string `json:"price"`
	Tradable   string `json:"tradable"`
}

// DCAMessage represents a schedule lifecycle event
type DCAMessage struct {
	Event      string `json:"event"`
	ScheduleID uint64 `json:"schedule_id"`
	Who        string `json:"who,omitempty"`
	Height     uint64 `json:"height"`
}

// BlockMessage announces a new block
type BlockMessage struct {
	Height    uint64 `json:"height"`
	Timestamp int64  `json:"timestamp"`
}

// GetClientCount returns the number of connected clients
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// GetChannelCount returns the number of active channels
func (h *Hub) GetChannelCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels)
}

// GetChannelClientCount returns the number of clients in a channel
func (h *Hub) GetChannelClientCount(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[channel])
}

func mustMarshal(v interface{}) []byte {
	bz, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return bz
}
