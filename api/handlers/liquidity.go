package handlers

import (
	"net/http"

	"github.com/openalpha/omnipool/api/types"
	omnipooltypes "github.com/openalpha/omnipool/x/omnipool/types"
)

// LiquidityHandler handles liquidity provisioning requests
type LiquidityHandler struct {
	service types.LiquidityService
}

// NewLiquidityHandler creates a new liquidity handler
func NewLiquidityHandler(service types.LiquidityService) *LiquidityHandler {
	return &LiquidityHandler{service: service}
}

// HandleAdd handles POST /liquidity/add
func (h *LiquidityHandler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	var msg omnipooltypes.MsgAddLiquidity
	if !decodeJSON(w, r, &msg) {
		return
	}
	defaultAccount(r, &msg.Who)

	position, err := h.service.AddLiquidity(r.Context(), &msg)
	if err != nil {
		writeServiceError(w, "add_liquidity_failed", err)
		return
	}
	writeJSON(w, http.StatusCreated, position)
}

// HandleRemove handles POST /liquidity/remove
func (h *LiquidityHandler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	var msg omnipooltypes.MsgRemoveLiquidity
	if !decodeJSON(w, r, &msg) {
		return
	}
	defaultAccount(r, &msg.Who)

	result, err := h.service.RemoveLiquidity(r.Context(), &msg)
	if err != nil {
		writeServiceError(w, "remove_liquidity_failed", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// HandlePosition handles GET /positions/{id}
func (h *LiquidityHandler) HandlePosition(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	id, ok := pathID(r, "/positions/", 64)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_position_id", "Position ID must be a number")
		return
	}

	position, err := h.service.Position(r.Context(), id)
	if err != nil {
		writeServiceError(w, "position_failed", err)
		return
	}
	writeJSON(w, http.StatusOK, position)
}
