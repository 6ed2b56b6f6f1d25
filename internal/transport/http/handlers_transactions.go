package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"glassbank/internal/platform/middleware"
	"glassbank/internal/transactions"
)

func (h *Handler) listTransactions(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	txs, err := h.svc.Transactions.List(r.Context(), middleware.GetUserID(r.Context()), limit)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": txs})
}

func (h *Handler) getTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := h.svc.Transactions.Get(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "transactionID"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

func (h *Handler) createTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactions.Request
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	tx, err := h.svc.Transactions.Create(r.Context(), middleware.GetUserID(r.Context()), req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

func (h *Handler) deleteTransaction(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Transactions.Delete(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "transactionID")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *Handler) transactionStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Transactions.GetStats(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) transactionRecommendations(w http.ResponseWriter, r *http.Request) {
	recs, err := h.svc.Transactions.Recommendations(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"recommendations": recs})
}
