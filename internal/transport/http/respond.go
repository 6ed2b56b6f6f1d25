// Package httptransport is the thin HTTP layer. Handlers decode, delegate to
// domain services and render; business rules live below this package.
package httptransport

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"glassbank/pkg/apperrors"
	"glassbank/pkg/requestcontext"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError renders the consistent error envelope. Wrapped causes stay in
// the server log; clients only ever see the code and the safe message.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	code := apperrors.CodeOf(err)
	status := apperrors.ToHTTPStatus(code)
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "request failed",
			"path", r.URL.Path,
			"error", err,
			"request_id", requestcontext.RequestID(r.Context()),
		)
	}
	writeJSON(w, status, map[string]string{
		"error":   string(code),
		"message": apperrors.MessageOf(err),
	})
}

// decodeBody parses a JSON request body into v with a size cap.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return apperrors.Wrap(apperrors.CodeBadRequest, "invalid request body", err)
	}
	return nil
}
