package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	dcatypes "github.com/openalpha/omnipool/x/dca/types"
	omnipooltypes "github.com/openalpha/omnipool/x/omnipool/types"
)

// AccountHeader carries the caller address when a request body omits it
const AccountHeader = "X-Account-Address"

// ErrNotFound is returned by services for unknown ids
var ErrNotFound = errors.New("not found")

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error":   code,
		"message": message,
	})
}

// writeServiceError maps module errors onto HTTP status codes
func writeServiceError(w http.ResponseWriter, code string, err error) {
	status := http.StatusBadRequest
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, omnipooltypes.ErrAssetNotFound),
		errors.Is(err, omnipooltypes.ErrPositionNotFound),
		errors.Is(err, dcatypes.ErrScheduleNotFound):
		status = http.StatusNotFound
	case errors.Is(err, omnipooltypes.ErrForbidden),
		errors.Is(err, dcatypes.ErrNotScheduleOwner):
		status = http.StatusForbidden
	}
	writeError(w, status, code, err.Error())
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
}

// allow answers preflight requests and rejects methods other than method
func allow(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return false
	}
	if r.Method != method {
		methodNotAllowed(w)
		return false
	}
	return true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "Invalid JSON body")
		return false
	}
	return true
}

// defaultAccount fills an empty address from the account header
func defaultAccount(r *http.Request, addr *string) {
	if *addr == "" {
		*addr = r.Header.Get(AccountHeader)
	}
}

// pathID parses the last path segment after prefix as an unsigned id
func pathID(r *http.Request, prefix string, bits int) (uint64, bool) {
	raw := strings.Trim(strings.TrimPrefix(r.URL.Path, prefix), "/")
	if raw == "" || strings.Contains(raw, "/") {
		return 0, false
	}
	id, err := strconv.ParseUint(raw, 10, bits)
	if err != nil {
		return 0, false
	}
	return id, true
}

func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return def
	}
	return v
}
