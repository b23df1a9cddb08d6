package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"cosmossdk.io/log"
	"github.com/stretchr/testify/require"

	"github.com/openalpha/omnipool/api/handlers"
	"github.com/openalpha/omnipool/api/types"
)

func newTestServer(t *testing.T) (*Server, http.Handler) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.DisableRateLimit = true
	cfg.Seed = testSeed()
	s, err := NewServer(cfg, log.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { s.rateLimiter.Stop() })
	return s, s.Handler()
}

func do(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	_, h := newTestServer(t)
	rec := do(t, h, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "healthy", body["status"])
	require.Equal(t, float64(1), body["height"])
	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestPoolAndAssets(t *testing.T) {
	s, h := newTestServer(t)

	rec := do(t, h, http.MethodGet, "/pool", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var pool types.Pool
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pool))
	require.True(t, pool.Initialized)
	require.Equal(t, 4, pool.AssetCount)

	rec = do(t, h, http.MethodGet, "/assets/1000", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var asset types.Asset
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &asset))
	require.Equal(t, s.AssetIDs()["DOT"], asset.AssetID)
	require.Equal(t, "DOT", asset.Name)

	rec = do(t, h, http.MethodGet, "/assets/ranking?limit=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	require.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/assets/4242", nil).Code)
	require.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/assets/abc", nil).Code)
	require.Equal(t, http.StatusMethodNotAllowed, do(t, h, http.MethodDelete, "/pool", nil).Code)
}

func TestSellOverHTTP(t *testing.T) {
	s, h := newTestServer(t)
	dot := s.AssetIDs()["DOT"]

	rec := do(t, h, http.MethodPost, "/sell", map[string]interface{}{
		"who":       alice,
		"asset_in":  dot,
		"asset_out": native,
		"amount":    "100000000000000",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var trade types.Trade
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &trade))
	require.Equal(t, uint64(1), trade.Sequence)
	require.Equal(t, dot, trade.AssetIn)

	rec = do(t, h, http.MethodGet, "/trades?limit=5", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var trades struct {
		Trades []types.Trade `json:"trades"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &trades))
	require.Len(t, trades.Trades, 1)

	// selling more than the account holds
	rec = do(t, h, http.MethodPost, "/sell", map[string]interface{}{
		"who":       bob,
		"asset_in":  dot,
		"asset_out": native,
		"amount":    "100000000000000",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/buy", map[string]interface{}{
		"who":       alice,
		"asset_in":  dot,
		"asset_out": native,
		"amount":    "1000000",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "missing_max_sell_amount")
}

func TestAccountHeaderAndFaucet(t *testing.T) {
	s, h := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/faucet", bytes.NewBufferString(`{"asset_id":1000,"amount":"5000"}`))
	req.Header.Set(handlers.AccountHeader, bob)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/accounts/"+bob, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var account types.Account
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &account))
	require.Equal(t, bob, account.Address)
	found := false
	for _, b := range account.Balances {
		if b.AssetID == s.AssetIDs()["DOT"] {
			found = true
			require.Equal(t, "5000", b.Free)
		}
	}
	require.True(t, found)
}

func TestNextBlockAndUnknownSchedule(t *testing.T) {
	_, h := newTestServer(t)

	rec := do(t, h, http.MethodPost, "/blocks/next", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var block types.Block
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &block))
	require.Equal(t, uint64(2), block.Height)

	require.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/dca/77", nil).Code)
	require.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/positions/77", nil).Code)
}

func TestRouteOf(t *testing.T) {
	for path, want := range map[string]string{
		"/pool":               "/pool",
		"/assets":             "/assets",
		"/assets/ranking":     "/assets/ranking",
		"/assets/1000":        "/assets/{id}",
		"/positions/7":        "/positions/{id}",
		"/dca/3":              "/dca/{id}",
		"/accounts/cosmos1xy": "/accounts/{id}",
		"/liquidity/add":      "/liquidity/add",
	} {
		require.Equal(t, want, routeOf(path), path)
	}
}
