package handlers

import (
	"net/http"
	"strings"

	"github.com/openalpha/omnipool/api/types"
)

// PoolHandler handles pool and asset queries
type PoolHandler struct {
	service types.PoolService
}

// NewPoolHandler creates a new pool handler
func NewPoolHandler(service types.PoolService) *PoolHandler {
	return &PoolHandler{service: service}
}

// HandlePool handles GET /pool
func (h *PoolHandler) HandlePool(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	pool, err := h.service.Pool(r.Context())
	if err != nil {
		writeServiceError(w, "pool_failed", err)
		return
	}
	writeJSON(w, http.StatusOK, pool)
}

// HandleAssets handles GET /assets
func (h *PoolHandler) HandleAssets(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	assets, err := h.service.Assets(r.Context())
	if err != nil {
		writeServiceError(w, "assets_failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"assets": assets,
		"total":  len(assets),
	})
}

// HandleAsset handles GET /assets/{id} and GET /assets/ranking
func (h *PoolHandler) HandleAsset(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	if strings.TrimSuffix(r.URL.Path, "/") == "/assets/ranking" {
		h.ranking(w, r)
		return
	}

	id, ok := pathID(r, "/assets/", 32)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_asset_id", "Asset ID must be a number")
		return
	}
	asset, err := h.service.Asset(r.Context(), uint32(id))
	if err != nil {
		writeServiceError(w, "asset_failed", err)
		return
	}
	writeJSON(w, http.StatusOK, asset)
}

// ranking lists assets by share of hub liquidity, largest first
func (h *PoolHandler) ranking(w http.ResponseWriter, r *http.Request) {
	ranking, err := h.service.Ranking(r.Context(), queryInt(r, "limit", 0))
	if err != nil {
		writeServiceError(w, "ranking_failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ranking": ranking,
	})
}
