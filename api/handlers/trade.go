package handlers

import (
	"net/http"
	"strconv"

	"github.com/openalpha/omnipool/api/types"
	omnipooltypes "github.com/openalpha/omnipool/x/omnipool/types"
)

const (
	defaultTradesLimit = 50
	maxTradesLimit     = 500
)

// TradeHandler handles sell, buy and trade tape requests
type TradeHandler struct {
	service types.TradeService
}

// NewTradeHandler creates a new trade handler
func NewTradeHandler(service types.TradeService) *TradeHandler {
	return &TradeHandler{service: service}
}

// HandleSell handles POST /sell
func (h *TradeHandler) HandleSell(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	var msg omnipooltypes.MsgSell
	if !decodeJSON(w, r, &msg) {
		return
	}
	defaultAccount(r, &msg.Who)
	if msg.MinBuyAmount == "" {
		msg.MinBuyAmount = "0"
	}

	trade, err := h.service.Sell(r.Context(), &msg)
	if err != nil {
		writeServiceError(w, "sell_failed", err)
		return
	}
	writeJSON(w, http.StatusOK, trade)
}

// HandleBuy handles POST /buy
func (h *TradeHandler) HandleBuy(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	var msg omnipooltypes.MsgBuy
	if !decodeJSON(w, r, &msg) {
		return
	}
	defaultAccount(r, &msg.Who)
	if msg.MaxSellAmount == "" {
		writeError(w, http.StatusBadRequest, "missing_max_sell_amount", "max_sell_amount is required")
		return
	}

	trade, err := h.service.Buy(r.Context(), &msg)
	if err != nil {
		writeServiceError(w, "buy_failed", err)
		return
	}
	writeJSON(w, http.StatusOK, trade)
}

// HandleQuote handles GET /quote?kind=sell|buy&asset_in=&asset_out=&amount=
func (h *TradeHandler) HandleQuote(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	q := r.URL.Query()
	assetIn, errIn := strconv.ParseUint(q.Get("asset_in"), 10, 32)
	assetOut, errOut := strconv.ParseUint(q.Get("asset_out"), 10, 32)
	if errIn != nil || errOut != nil {
		writeError(w, http.StatusBadRequest, "invalid_asset_id", "asset_in and asset_out must be numbers")
		return
	}
	kind := q.Get("kind")
	if kind == "" {
		kind = "sell"
	}

	result, err := h.service.Quote(r.Context(), kind, uint32(assetIn), uint32(assetOut), q.Get("amount"))
	if err != nil {
		writeServiceError(w, "quote_failed", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// HandleTrades handles GET /trades?limit=n, newest first
func (h *TradeHandler) HandleTrades(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	limit := queryInt(r, "limit", defaultTradesLimit)
	if limit == 0 || limit > maxTradesLimit {
		limit = maxTradesLimit
	}

	trades, err := h.service.Trades(r.Context(), limit)
	if err != nil {
		writeServiceError(w, "trades_failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"trades": trades,
	})
}
