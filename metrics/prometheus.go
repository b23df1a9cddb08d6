package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Omnipool metrics collector

var (
	// Singleton collector
	collector     *Collector
	collectorOnce sync.Once
)

// Collector holds all Omnipool metrics
type Collector struct {
	// Trade metrics
	TradesTotal  *prometheus.CounterVec
	TradeVolume  *prometheus.CounterVec
	TradeFees    *prometheus.CounterVec
	TradeLatency *prometheus.HistogramVec

	// Pool metrics
	AssetReserve     *prometheus.GaugeVec
	AssetHubReserve  *prometheus.GaugeVec
	HubLiquidity     prometheus.Gauge
	TotalTVL         prometheus.Gauge
	LiquidityOpTotal *prometheus.CounterVec

	// Circuit breaker metrics
	CircuitBreakerTrips *prometheus.CounterVec

	// DCA metrics
	DCAExecutions      *prometheus.CounterVec
	DCASchedulesActive prometheus.Gauge

	// WebSocket metrics
	WSConnectionsActive prometheus.Gauge
	WSMessagesTotal     *prometheus.CounterVec

	// API metrics
	APIRequestsTotal  *prometheus.CounterVec
	APIRequestLatency *prometheus.HistogramVec
	RateLimitHits     *prometheus.CounterVec

	// System metrics
	BlockHeight   prometheus.Gauge
	BlockDuration *prometheus.HistogramVec
}

// GetCollector returns the singleton metrics collector
func GetCollector() *Collector {
	collectorOnce.Do(func() {
		collector = newCollector()
	})
	return collector
}

// newCollector creates a new metrics collector
func newCollector() *Collector {
	c := &Collector{}

	c.TradesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "omnipool",
			Subsystem: "trades",
			Name:      "total",
			Help:      "Total number of executed trades",
		},
		[]string{"type", "asset_in", "asset_out"},
	)

	c.TradeVolume = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "omnipool",
			Subsystem: "trades",
			Name:      "volume",
			Help:      "Traded amount per asset and direction, in raw units",
		},
		[]string{"asset", "direction"},
	)

	c.TradeFees = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "omnipool",
			Subsystem: "trades",
			Name:      "fees",
			Help:      "Collected fees in raw units",
		},
		[]string{"kind"},
	)

	c.TradeLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "omnipool",
			Subsystem: "trades",
			Name:      "latency_ms",
			Help:      "Trade execution latency in milliseconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"type"},
	)

	c.AssetReserve = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "omnipool",
			Subsystem: "pool",
			Name:      "asset_reserve",
			Help:      "Reserve of a listed asset",
		},
		[]string{"asset"},
	)

	c.AssetHubReserve = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "omnipool",
			Subsystem: "pool",
			Name:      "asset_hub_reserve",
			Help:      "Hub reserve of a listed asset",
		},
		[]string{"asset"},
	)

	c.HubLiquidity = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "omnipool",
			Subsystem: "pool",
			Name:      "hub_liquidity",
			Help:      "Total hub asset held by the pool",
		},
	)

	c.TotalTVL = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "omnipool",
			Subsystem: "pool",
			Name:      "total_tvl",
			Help:      "Total value locked in stable asset units",
		},
	)

	c.LiquidityOpTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "omnipool",
			Subsystem: "liquidity",
			Name:      "operations_total",
			Help:      "Liquidity operations by kind",
		},
		[]string{"kind", "asset"},
	)

	c.CircuitBreakerTrips = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "omnipool",
			Subsystem: "circuit_breaker",
			Name:      "trips_total",
			Help:      "Pool state changes rejected by the circuit breaker",
		},
		[]string{"asset", "bound"},
	)

	c.DCAExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "omnipool",
			Subsystem: "dca",
			Name:      "executions_total",
			Help:      "DCA executions by outcome",
		},
		[]string{"outcome"},
	)

	c.DCASchedulesActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "omnipool",
			Subsystem: "dca",
			Name:      "schedules_planned",
			Help:      "Schedules planned in the last processed block",
		},
	)

	c.WSConnectionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "omnipool",
			Subsystem: "websocket",
			Name:      "connections_active",
			Help:      "Number of active WebSocket connections",
		},
	)

	c.WSMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "omnipool",
			Subsystem: "websocket",
			Name:      "messages_total",
			Help:      "Messages broadcast per channel",
		},
		[]string{"channel"},
	)

	c.APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "omnipool",
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Total API requests",
		},
		[]string{"method", "path", "status"},
	)

	c.APIRequestLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "omnipool",
			Subsystem: "api",
			Name:      "request_latency_ms",
			Help:      "API request latency in milliseconds",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"method", "path"},
	)

	c.RateLimitHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "omnipool",
			Subsystem: "api",
			Name:      "rate_limit_hits_total",
			Help:      "Requests rejected by the rate limiter",
		},
		[]string{"limit_type"},
	)

	c.BlockHeight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "omnipool",
			Subsystem: "system",
			Name:      "block_height",
			Help:      "Last processed block height",
		},
	)

	c.BlockDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "omnipool",
			Subsystem: "system",
			Name:      "block_hook_ms",
			Help:      "Duration of begin/end block hooks in milliseconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 50, 100},
		},
		[]string{"module", "hook"},
	)

	// Register all metrics
	c.registerAll()

	return c
}

// registerAll registers all metrics with Prometheus
func (c *Collector) registerAll() {
	prometheus.MustRegister(
		c.TradesTotal,
		c.TradeVolume,
		c.TradeFees,
		c.TradeLatency,
		c.AssetReserve,
		c.AssetHubReserve,
		c.HubLiquidity,
		c.TotalTVL,
		c.LiquidityOpTotal,
		c.CircuitBreakerTrips,
		c.DCAExecutions,
		c.DCASchedulesActive,
		c.WSConnectionsActive,
		c.WSMessagesTotal,
		c.APIRequestsTotal,
		c.APIRequestLatency,
		c.RateLimitHits,
		c.BlockHeight,
		c.BlockDuration,
	)
}

// ============ Recording Helpers ============

// RecordTrade records an executed trade. Amounts are raw integer units converted to float.
func (c *Collector) RecordTrade(tradeType, assetIn, assetOut string, amountIn, amountOut, assetFee, protocolFee float64) {
	c.TradesTotal.WithLabelValues(tradeType, assetIn, assetOut).Inc()
	c.TradeVolume.WithLabelValues(assetIn, "in").Add(amountIn)
	c.TradeVolume.WithLabelValues(assetOut, "out").Add(amountOut)
	if assetFee > 0 {
		c.TradeFees.WithLabelValues("asset").Add(assetFee)
	}
	if protocolFee > 0 {
		c.TradeFees.WithLabelValues("protocol").Add(protocolFee)
	}
}

// RecordTradeLatency records trade execution latency
func (c *Collector) RecordTradeLatency(tradeType string, latencyMs float64) {
	c.TradeLatency.WithLabelValues(tradeType).Observe(latencyMs)
}

// RecordAssetState records the reserves of one asset
func (c *Collector) RecordAssetState(asset string, reserve, hubReserve float64) {
	c.AssetReserve.WithLabelValues(asset).Set(reserve)
	c.AssetHubReserve.WithLabelValues(asset).Set(hubReserve)
}

// RecordPoolState records pool-wide values
func (c *Collector) RecordPoolState(hubLiquidity, totalTVL float64) {
	c.HubLiquidity.Set(hubLiquidity)
	c.TotalTVL.Set(totalTVL)
}

// RecordLiquidity records an add or remove liquidity operation
func (c *Collector) RecordLiquidity(kind, asset string) {
	c.LiquidityOpTotal.WithLabelValues(kind, asset).Inc()
}

// RecordCircuitBreakerTrip records a rejected state change
func (c *Collector) RecordCircuitBreakerTrip(asset, bound string) {
	c.CircuitBreakerTrips.WithLabelValues(asset, bound).Inc()
}

// RecordDCAExecution records the outcome of one schedule execution
func (c *Collector) RecordDCAExecution(outcome string) {
	c.DCAExecutions.WithLabelValues(outcome).Inc()
}

// RecordAPIRequest records an API request
func (c *Collector) RecordAPIRequest(method, path, status string, latencyMs float64) {
	c.APIRequestsTotal.WithLabelValues(method, path, status).Inc()
	c.APIRequestLatency.WithLabelValues(method, path).Observe(latencyMs)
}

// RecordRateLimitHit counts a request rejected by the rate limiter
func (c *Collector) RecordRateLimitHit(limitType string) {
	c.RateLimitHits.WithLabelValues(limitType).Inc()
}

// RecordWSConnection records WebSocket connection changes
func (c *Collector) RecordWSConnection(delta int) {
	c.WSConnectionsActive.Add(float64(delta))
}

// RecordWSMessage records a broadcast WebSocket message
func (c *Collector) RecordWSMessage(channel string) {
	c.WSMessagesTotal.WithLabelValues(channel).Inc()
}

// RecordBlockHook records the duration of a begin/end block hook
func (c *Collector) RecordBlockHook(module, hook string, height int64, latencyMs float64) {
	c.BlockHeight.Set(float64(height))
	c.BlockDuration.WithLabelValues(module, hook).Observe(latencyMs)
}

// ============ HTTP Handler ============

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for measuring latency
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ElapsedMs returns the elapsed time in milliseconds
func (t *Timer) ElapsedMs() float64 {
	return float64(time.Since(t.start).Microseconds()) / 1000.0
}
