package handlers

import (
	"net/http"

	"github.com/openalpha/omnipool/api/types"
)

// SandboxHandler handles requests that drive the in-memory chain
type SandboxHandler struct {
	service types.SandboxService
}

// NewSandboxHandler creates a new sandbox handler
func NewSandboxHandler(service types.SandboxService) *SandboxHandler {
	return &SandboxHandler{service: service}
}

// HandleAccount handles GET /accounts/{address}
func (h *SandboxHandler) HandleAccount(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	who := r.URL.Path[len("/accounts/"):]
	if who == "" {
		writeError(w, http.StatusBadRequest, "missing_address", "address is required")
		return
	}

	account, err := h.service.Account(r.Context(), who)
	if err != nil {
		writeServiceError(w, "account_failed", err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

// HandleFaucet handles POST /faucet
func (h *SandboxHandler) HandleFaucet(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	var req types.FaucetRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	defaultAccount(r, &req.Who)

	balance, err := h.service.Faucet(r.Context(), &req)
	if err != nil {
		writeServiceError(w, "faucet_failed", err)
		return
	}
	writeJSON(w, http.StatusOK, balance)
}

// HandleCreateAsset handles POST /assets
func (h *SandboxHandler) HandleCreateAsset(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	var req types.CreateAssetRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "missing_name", "name is required")
		return
	}

	resp, err := h.service.CreateAsset(r.Context(), &req)
	if err != nil {
		writeServiceError(w, "create_asset_failed", err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

// HandleNextBlock handles POST /blocks/next
func (h *SandboxHandler) HandleNextBlock(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	block, err := h.service.NextBlock(r.Context())
	if err != nil {
		writeServiceError(w, "next_block_failed", err)
		return
	}
	writeJSON(w, http.StatusOK, block)
}
