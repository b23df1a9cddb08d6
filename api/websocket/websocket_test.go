package websocket

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cosmossdk.io/log"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func startServer(t *testing.T, cfg *ServerConfig) (*Server, string) {
	t.Helper()
	s := NewServer(cfg, log.NewNopLogger())
	ctx, cancel := context.WithCancel(context.Background())
	go s.Run(ctx)

	ts := httptest.NewServer(s)
	t.Cleanup(func() {
		cancel()
		ts.Close()
	})
	return s, "ws" + strings.TrimPrefix(ts.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) WSMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg WSMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func subscribe(t *testing.T, conn *websocket.Conn, channel string) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(ClientMessage{Action: "subscribe", Channel: channel}))
	msg := readMessage(t, conn)
	require.Equal(t, "subscribed", msg.Type)
	require.Equal(t, channel, msg.Channel)
}

func TestTradeFeed(t *testing.T) {
	s, url := startServer(t, nil)
	all := dial(t, url)
	subscribe(t, all, ChannelTrades)
	byAsset := dial(t, url)
	subscribe(t, byAsset, TradesChannel(200))

	s.Hub().BroadcastTrade(&TradeMessage{Sequence: 1, Kind: "sell", AssetIn: 100, AssetOut: 200, AmountIn: "10"})

	msg := readMessage(t, all)
	require.Equal(t, "trade", msg.Type)
	require.Equal(t, ChannelTrades, msg.Channel)

	msg = readMessage(t, byAsset)
	require.Equal(t, "trades:200", msg.Channel)
	data, err := json.Marshal(msg.Data)
	require.NoError(t, err)
	var trade TradeMessage
	require.NoError(t, json.Unmarshal(data, &trade))
	require.Equal(t, uint64(1), trade.Sequence)
	require.Equal(t, "10", trade.AmountIn)
}

func TestPoolSnapshotsAreFlushed(t *testing.T) {
	s, url := startServer(t, &ServerConfig{
		MaxConnPerIP: 5,
		Hub:          &HubConfig{PoolInterval: 10 * time.Millisecond, MaxSubscriptions: 5, MessageRateLimit: 50},
	})
	conn := dial(t, url)
	subscribe(t, conn, ChannelPool)

	s.Hub().UpdatePool(&PoolMessage{Height: 7, HubAssetLiquidity: "100"})
	msg := readMessage(t, conn)
	require.Equal(t, "pool", msg.Type)
	require.Equal(t, float64(7), msg.Data.(map[string]interface{})["height"])
}

func TestClientErrors(t *testing.T) {
	_, url := startServer(t, nil)
	conn := dial(t, url)

	require.NoError(t, conn.WriteJSON(ClientMessage{Action: "subscribe", Channel: "depth:BTC"}))
	msg := readMessage(t, conn)
	require.Equal(t, "error", msg.Type)
	require.Equal(t, "invalid_channel", msg.Data.(map[string]interface{})["code"])

	require.NoError(t, conn.WriteJSON(ClientMessage{Action: "dance"}))
	msg = readMessage(t, conn)
	require.Equal(t, "unknown_action", msg.Data.(map[string]interface{})["code"])

	require.NoError(t, conn.WriteJSON(ClientMessage{Action: "ping"}))
	require.Equal(t, "pong", readMessage(t, conn).Type)
}

func TestConnectionLimitPerIP(t *testing.T) {
	_, url := startServer(t, &ServerConfig{MaxConnPerIP: 1, Hub: DefaultHubConfig()})
	dial(t, url)

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	require.Equal(t, 429, resp.StatusCode)
}

func TestValidChannel(t *testing.T) {
	for _, ch := range []string{"trades", "pool", "dca", "blocks", "trades:0", "trades:1000"} {
		require.True(t, ValidChannel(ch), ch)
	}
	for _, ch := range []string{"", "trades:", "trades:abc", "orders:alice", "trades:12345678901"} {
		require.False(t, ValidChannel(ch), ch)
	}
}
