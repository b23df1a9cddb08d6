package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"cosmossdk.io/log"

	"github.com/openalpha/omnipool/api/handlers"
	"github.com/openalpha/omnipool/api/middleware"
	"github.com/openalpha/omnipool/api/websocket"
	"github.com/openalpha/omnipool/metrics"
	"github.com/openalpha/omnipool/pkg/sim"
	omnipooltypes "github.com/openalpha/omnipool/x/omnipool/types"
)

// Server represents the sandbox API server
type Server struct {
	httpServer *http.Server
	wsServer   *websocket.Server
	service    *Service
	config     *Config
	logger     log.Logger

	rateLimiter *middleware.RateLimiter

	// Handlers
	poolHandler      *handlers.PoolHandler
	tradeHandler     *handlers.TradeHandler
	liquidityHandler *handlers.LiquidityHandler
	dcaHandler       *handlers.DCAHandler
	sandboxHandler   *handlers.SandboxHandler

	// seeded asset ids by name
	assetIDs map[string]uint32
}

// NewServer builds the in-memory chain, seeds it and wires the handlers
func NewServer(config *Config, logger log.Logger) (*Server, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.RateLimit == nil {
		config.RateLimit = middleware.DefaultRateLimitConfig()
	}
	if config.WebSocket == nil {
		config.WebSocket = websocket.DefaultServerConfig()
	}

	chainConfig, err := config.ChainConfig()
	if err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}
	chainConfig.Logger = logger
	chain, err := sim.New(chainConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create chain: %w", err)
	}
	assetIDs, err := Seed(chain, config.Seed)
	if err != nil {
		return nil, fmt.Errorf("failed to seed pool: %w", err)
	}

	faucetLimit, err := omnipooltypes.ParseAmount("faucet_limit", defaultString(config.FaucetLimit, "0"))
	if err != nil {
		return nil, err
	}

	wsServer := websocket.NewServer(config.WebSocket, logger)
	service := NewService(chain, wsServer.Hub(), config.TapeSize, logger)
	service.SetFaucetLimit(faucetLimit)

	s := &Server{
		wsServer:         wsServer,
		service:          service,
		config:           config,
		logger:           logger.With("module", "api"),
		rateLimiter:      middleware.NewRateLimiter(config.RateLimit),
		poolHandler:      handlers.NewPoolHandler(service),
		tradeHandler:     handlers.NewTradeHandler(service),
		liquidityHandler: handlers.NewLiquidityHandler(service),
		dcaHandler:       handlers.NewDCAHandler(service),
		sandboxHandler:   handlers.NewSandboxHandler(service),
		assetIDs:         assetIDs,
	}
	return s, nil
}

// Handler returns the HTTP handler with the middleware chain applied:
// metrics -> CORS -> rate limit -> routes
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", metrics.Handler())

	// Pool queries
	mux.HandleFunc("/pool", s.poolHandler.HandlePool)
	mux.HandleFunc("/assets", s.handleAssets)
	mux.HandleFunc("/assets/", s.poolHandler.HandleAsset)

	// Trading
	mux.HandleFunc("/sell", s.tradeHandler.HandleSell)
	mux.HandleFunc("/buy", s.tradeHandler.HandleBuy)
	mux.HandleFunc("/quote", s.tradeHandler.HandleQuote)
	mux.HandleFunc("/trades", s.tradeHandler.HandleTrades)

	// Liquidity
	mux.HandleFunc("/liquidity/add", s.liquidityHandler.HandleAdd)
	mux.HandleFunc("/liquidity/remove", s.liquidityHandler.HandleRemove)
	mux.HandleFunc("/positions/", s.liquidityHandler.HandlePosition)

	// DCA
	mux.HandleFunc("/dca", s.dcaHandler.HandleSchedules)
	mux.HandleFunc("/dca/", s.dcaHandler.HandleSchedule)

	// Sandbox controls
	mux.HandleFunc("/accounts/", s.sandboxHandler.HandleAccount)
	mux.HandleFunc("/faucet", s.sandboxHandler.HandleFaucet)
	mux.HandleFunc("/blocks/next", s.sandboxHandler.HandleNextBlock)

	// WebSocket
	mux.Handle("/ws", s.wsServer)

	var handler http.Handler = mux
	if !s.config.DisableRateLimit {
		handler = middleware.RateLimitMiddleware(s.rateLimiter)(handler)
	}
	return metricsMiddleware(corsMiddleware(handler))
}

// handleAssets routes GET /assets to the listing and POST /assets to asset creation
func (s *Server) handleAssets(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		s.sandboxHandler.HandleCreateAsset(w, r)
		return
	}
	s.poolHandler.HandleAssets(w, r)
}

// Start serves HTTP until Stop is called or ctx is done
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	go s.wsServer.Run(ctx)
	if s.config.BlockTime > 0 {
		go s.produceBlocks(ctx, s.config.BlockTime)
	}

	s.logger.Info("Sandbox API starting",
		"addr", addr,
		"height", s.service.Height(),
		"seeded_assets", len(s.assetIDs),
		"rate_limit", !s.config.DisableRateLimit,
		"block_time", s.config.BlockTime,
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(shutdownCtx)
	}
}

// Stop gracefully shuts down the server
func (s *Server) Stop(ctx context.Context) error {
	s.rateLimiter.Stop()
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// produceBlocks advances the chain every interval
func (s *Server) produceBlocks(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			block, err := s.service.NextBlock(ctx)
			if err != nil {
				s.logger.Error("Block production failed", "error", err)
				continue
			}
			s.logger.Debug("Block produced", "height", block.Height, "trades", block.Trades)
		}
	}
}

// Service returns the sandbox service
func (s *Server) Service() *Service {
	return s.service
}

// AssetIDs returns the ids of the seeded assets by name
func (s *Server) AssetIDs() map[string]uint32 {
	return s.assetIDs
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
		"height":    s.service.Height(),
		"trades":    s.service.tape.Len(),
		"websocket": s.wsServer.Stats(),
		"warning":   "Sandbox state is in memory and lost on restart.",
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// corsMiddleware adds CORS headers
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+handlers.AccountHeader)

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the response status for metrics
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// metricsMiddleware records request counts and latency per route. The
// websocket route is passed through untouched since upgrades need the
// underlying http.Hijacker.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ws" {
			next.ServeHTTP(w, r)
			return
		}
		timer := metrics.NewTimer()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		metrics.GetCollector().RecordAPIRequest(r.Method, routeOf(r.URL.Path), strconv.Itoa(rec.status), timer.ElapsedMs())
	})
}

// routeOf collapses ids out of a path so metric labels stay bounded
func routeOf(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	switch parts[0] {
	case "assets":
		if len(parts) > 1 && parts[1] != "ranking" {
			return "/assets/{id}"
		}
	case "positions", "dca", "accounts":
		if len(parts) > 1 {
			return "/" + parts[0] + "/{id}"
		}
	}
	return "/" + strings.Join(parts, "/")
}

func defaultString(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
