package handlers

import (
	"net/http"

	"github.com/openalpha/omnipool/api/types"
	dcatypes "github.com/openalpha/omnipool/x/dca/types"
)

// DCAHandler handles recurring order requests
type DCAHandler struct {
	service types.DCAService
}

// NewDCAHandler creates a new DCA handler
func NewDCAHandler(service types.DCAService) *DCAHandler {
	return &DCAHandler{service: service}
}

// HandleSchedules handles /dca (GET ?owner= lists, POST schedules)
func (h *DCAHandler) HandleSchedules(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listSchedules(w, r)
	case http.MethodPost:
		h.schedule(w, r)
	case http.MethodOptions:
		w.WriteHeader(http.StatusOK)
	default:
		methodNotAllowed(w)
	}
}

// HandleSchedule handles /dca/{id} (GET reads, DELETE terminates)
func (h *DCAHandler) HandleSchedule(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "/dca/", 64)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_schedule_id", "Schedule ID must be a number")
		return
	}

	switch r.Method {
	case http.MethodGet:
		state, err := h.service.ScheduleState(r.Context(), id)
		if err != nil {
			writeServiceError(w, "schedule_failed", err)
			return
		}
		writeJSON(w, http.StatusOK, state)
	case http.MethodDelete:
		h.terminate(w, r, id)
	case http.MethodOptions:
		w.WriteHeader(http.StatusOK)
	default:
		methodNotAllowed(w)
	}
}

func (h *DCAHandler) schedule(w http.ResponseWriter, r *http.Request) {
	var msg dcatypes.MsgSchedule
	if !decodeJSON(w, r, &msg) {
		return
	}
	defaultAccount(r, &msg.Owner)

	state, err := h.service.Schedule(r.Context(), &msg)
	if err != nil {
		writeServiceError(w, "schedule_failed", err)
		return
	}
	writeJSON(w, http.StatusCreated, state)
}

func (h *DCAHandler) terminate(w http.ResponseWriter, r *http.Request, id uint64) {
	caller := r.Header.Get(AccountHeader)
	if caller == "" {
		caller = r.URL.Query().Get("caller")
	}
	if caller == "" {
		writeError(w, http.StatusBadRequest, "missing_caller", "caller address is required")
		return
	}

	if err := h.service.Terminate(r.Context(), &dcatypes.MsgTerminate{Caller: caller, ScheduleID: id}); err != nil {
		writeServiceError(w, "terminate_failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"schedule_id": id,
		"terminated":  true,
	})
}

func (h *DCAHandler) listSchedules(w http.ResponseWriter, r *http.Request) {
	owner := r.URL.Query().Get("owner")
	if owner == "" {
		owner = r.Header.Get(AccountHeader)
	}
	if owner == "" {
		writeError(w, http.StatusBadRequest, "missing_owner", "owner address is required")
		return
	}

	schedules, err := h.service.SchedulesByOwner(r.Context(), owner)
	if err != nil {
		writeServiceError(w, "schedules_failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"schedules": schedules,
	})
}
