package httptransport

import (
	"net/http"

	"glassbank/internal/perception"
	"glassbank/internal/platform/middleware"
)

func (h *Handler) getPerception(w http.ResponseWriter, r *http.Request) {
	refresh := r.URL.Query().Get("refresh") == "true"
	p, err := h.svc.Perception.Get(r.Context(), middleware.GetUserID(r.Context()), refresh)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) disputePerception(w http.ResponseWriter, r *http.Request) {
	var req perception.Dispute
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	dispute, err := h.svc.Perception.Dispute(r.Context(), middleware.GetUserID(r.Context()), req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, dispute)
}

func (h *Handler) listDisputes(w http.ResponseWriter, r *http.Request) {
	disputes, err := h.svc.Perception.Disputes(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"disputes": disputes})
}
