package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCollectorIsSingleton(t *testing.T) {
	require.Same(t, GetCollector(), GetCollector())
}

func TestRecordTrade(t *testing.T) {
	c := GetCollector()
	before := testutil.ToFloat64(c.TradesTotal.WithLabelValues("sell", "1000", "0"))

	c.RecordTrade("sell", "1000", "0", 500, 250, 1, 0)
	require.Equal(t, before+1, testutil.ToFloat64(c.TradesTotal.WithLabelValues("sell", "1000", "0")))
	require.GreaterOrEqual(t, testutil.ToFloat64(c.TradeVolume.WithLabelValues("1000", "in")), 500.0)
	require.GreaterOrEqual(t, testutil.ToFloat64(c.TradeFees.WithLabelValues("asset")), 1.0)
}

func TestRecordGauges(t *testing.T) {
	c := GetCollector()
	c.RecordPoolState(42, 7)
	require.Equal(t, 42.0, testutil.ToFloat64(c.HubLiquidity))
	require.Equal(t, 7.0, testutil.ToFloat64(c.TotalTVL))

	c.RecordAssetState("2", 10, 5)
	require.Equal(t, 10.0, testutil.ToFloat64(c.AssetReserve.WithLabelValues("2")))

	before := testutil.ToFloat64(c.WSConnectionsActive)
	c.RecordWSConnection(1)
	c.RecordWSConnection(-1)
	require.Equal(t, before, testutil.ToFloat64(c.WSConnectionsActive))
}

func TestHandlerExposesMetrics(t *testing.T) {
	GetCollector().RecordRateLimitHit("write")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, strings.Contains(rec.Body.String(), "omnipool_api_rate_limit_hits_total"))
}

func TestTimer(t *testing.T) {
	require.GreaterOrEqual(t, NewTimer().ElapsedMs(), 0.0)
}
