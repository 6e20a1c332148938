package handlers

import (
	"net/http"

	"github.com/kairosvoice/kairos-agent/pkg/logger"
)

// ListAppointments returns the most recent appointments across all users,
// cancelled ones included, newest start first.
func (h *Handlers) ListAppointments(w http.ResponseWriter, r *http.Request) {
	if h.appointments == nil {
		writeError(w, http.StatusServiceUnavailable, "Appointment store unavailable")
		return
	}

	limit := parseLimit(r, 20, 100)

	appointments, err := h.appointments.ListRecent(r.Context(), limit)
	if err != nil {
		logger.ErrorContext(r.Context(), "Failed to list appointments", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to list appointments")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"appointments": appointments,
		"count":        len(appointments),
	})
}

// ListCalls returns the most recent conversation logs.
func (h *Handlers) ListCalls(w http.ResponseWriter, r *http.Request) {
	if h.logs == nil {
		writeError(w, http.StatusServiceUnavailable, "Call log store unavailable")
		return
	}

	limit := parseLimit(r, 20, 100)

	calls, err := h.logs.ListRecent(r.Context(), limit)
	if err != nil {
		logger.ErrorContext(r.Context(), "Failed to list calls", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to list calls")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"calls": calls,
		"count": len(calls),
	})
}
