package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"glassbank/internal/platform/middleware"
	"glassbank/internal/savings"
)

type amountRequest struct {
	Amount float64 `json:"amount"`
}

func (h *Handler) listUnifiedAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.svc.Savings.UnifiedAccounts(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"accounts": accounts})
}

func (h *Handler) listSavingsAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.svc.Savings.ListAccounts(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"accounts": accounts})
}

func (h *Handler) getSavingsAccount(w http.ResponseWriter, r *http.Request) {
	account, err := h.svc.Savings.GetAccount(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "accountID"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

func (h *Handler) createSavingsAccount(w http.ResponseWriter, r *http.Request) {
	var req savings.AccountRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	account, err := h.svc.Savings.CreateAccount(r.Context(), middleware.GetUserID(r.Context()), req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, account)
}

func (h *Handler) updateSavingsAccount(w http.ResponseWriter, r *http.Request) {
	var req savings.AccountRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	account, err := h.svc.Savings.UpdateAccount(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "accountID"), req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

func (h *Handler) deleteSavingsAccount(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Savings.DeleteAccount(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "accountID")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *Handler) deposit(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	balance, err := h.svc.Savings.Deposit(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "accountID"), req.Amount)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"balance": balance})
}

func (h *Handler) withdraw(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	balance, err := h.svc.Savings.Withdraw(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "accountID"), req.Amount)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"balance": balance})
}

func (h *Handler) listGoals(w http.ResponseWriter, r *http.Request) {
	goals, err := h.svc.Savings.ListGoals(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"goals": goals})
}

func (h *Handler) createGoal(w http.ResponseWriter, r *http.Request) {
	var req savings.GoalRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	goal, err := h.svc.Savings.CreateGoal(r.Context(), middleware.GetUserID(r.Context()), req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, goal)
}

func (h *Handler) updateGoal(w http.ResponseWriter, r *http.Request) {
	var req savings.GoalRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	goal, err := h.svc.Savings.UpdateGoal(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "goalID"), req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, goal)
}

func (h *Handler) deleteGoal(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Savings.DeleteGoal(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "goalID")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *Handler) contribute(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	current, err := h.svc.Savings.Contribute(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "goalID"), req.Amount)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"currentAmount": current})
}

func (h *Handler) getSavingsSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.svc.Savings.GetSummary(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) getSavingsRecommendation(w http.ResponseWriter, r *http.Request) {
	rec, err := h.svc.Recommender.Recommend(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
