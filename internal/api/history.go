package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/shunichi-ikebuchi/loan-ledger/pkg/db"
)

// HistoryHandler serves the payment submission history.
type HistoryHandler struct {
	history *db.History
}

// NewHistoryHandler creates a new HistoryHandler.
func NewHistoryHandler(h *db.History) *HistoryHandler {
	return &HistoryHandler{history: h}
}

// List handles GET /history.
func (h *HistoryHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeJSONError(w, http.StatusBadRequest, "invalid_parameter", "Invalid limit")
			return
		}
		limit = n
	}
	records, err := h.history.ListSubmissions(r.Context(), limit)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "server_error", "Failed to list submissions")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"submissions": records})
}

// Get handles GET /history/{id}.
func (h *HistoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	record, err := h.history.GetSubmission(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "server_error", "Failed to get submission")
		return
	}
	if record == nil {
		writeJSONError(w, http.StatusNotFound, "not_found", "Submission not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"submission": record})
}

// Stats handles GET /stats.
func (h *HistoryHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.history.GetStats(r.Context())
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "server_error", "Failed to get stats")
		return
	}
	body := map[string]any{"stats": stats}
	if stats.LastSubmission.Valid {
		body["last_submission"] = stats.LastSubmission.String
	}
	writeJSON(w, http.StatusOK, body)
}
