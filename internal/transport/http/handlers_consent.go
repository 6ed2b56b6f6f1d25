package httptransport

import (
	"net/http"
	"strconv"

	"glassbank/internal/consent"
	"glassbank/internal/platform/middleware"
	"glassbank/pkg/apperrors"
)

// permissionsResponse adds the summary counts the consent screen renders
// next to the permission map.
type permissionsResponse struct {
	consent.PermissionSet
	TotalAllowed    int `json:"totalAllowed"`
	TotalAttributes int `json:"totalAttributes"`
}

func newPermissionsResponse(set consent.PermissionSet) permissionsResponse {
	allowed, total := set.Counts()
	return permissionsResponse{PermissionSet: set, TotalAllowed: allowed, TotalAttributes: total}
}

func (h *Handler) getPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := h.svc.Consent.Permissions(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newPermissionsResponse(perms))
}

func (h *Handler) updatePermissions(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Permissions map[string]bool `json:"permissions"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if len(req.Permissions) == 0 {
		writeError(w, r, h.logger,
			apperrors.New(apperrors.CodeValidation, "permissions map is required"))
		return
	}
	perms, err := h.svc.Consent.Update(r.Context(), middleware.GetUserID(r.Context()), req.Permissions)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newPermissionsResponse(perms))
}

func (h *Handler) getConsentHistory(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	records, err := h.svc.Consent.History(r.Context(), middleware.GetUserID(r.Context()), limit)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": records})
}

func (h *Handler) getPrivacyScore(w http.ResponseWriter, r *http.Request) {
	score, err := h.svc.Consent.PrivacyScore(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, score)
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}
