package httptransport

import (
	"net/http"

	"glassbank/internal/assessment"
	"glassbank/internal/platform/middleware"
)

func (h *Handler) assessLoan(w http.ResponseWriter, r *http.Request) {
	var req assessment.LoanRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	decision, err := h.svc.Assessment.AssessLoanEligibility(r.Context(), middleware.GetUserID(r.Context()), req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, decision)
}

func (h *Handler) explainProfile(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Aspects []string `json:"aspects"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	explanation, err := h.svc.Assessment.ExplainProfile(r.Context(), middleware.GetUserID(r.Context()), req.Aspects)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, explanation)
}

func (h *Handler) chatQuery(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query string `json:"query"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	answer, err := h.svc.Chat.Query(r.Context(), middleware.GetUserID(r.Context()), req.Query)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

func (h *Handler) getInsights(w http.ResponseWriter, r *http.Request) {
	refresh := r.URL.Query().Get("refresh") == "true"
	result, err := h.svc.Insights.GetComprehensive(r.Context(), middleware.GetUserID(r.Context()), refresh)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
