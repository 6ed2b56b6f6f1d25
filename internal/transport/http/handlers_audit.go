package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"glassbank/internal/platform/middleware"
)

func (h *Handler) listAuditRecords(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 20)
	offset := queryInt(r, "offset", 0)
	records, total, err := h.svc.Audit.List(r.Context(), middleware.GetUserID(r.Context()), limit, offset)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"logs":   records,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

func (h *Handler) getAuditRecord(w http.ResponseWriter, r *http.Request) {
	record, err := h.svc.Audit.Get(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "recordID"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}
