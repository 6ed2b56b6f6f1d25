package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"glassbank/pkg/requestcontext"
)

// RequireIdentity extracts the caller identity resolved by the upstream
// gateway and stores it in the request context. Token validation happens
// before traffic reaches this service; a missing identity header means the
// request never passed the gateway and is rejected.
func RequireIdentity(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := r.Header.Get("X-User-ID")
			if userID == "" {
				ctx := r.Context()
				logger.WarnContext(ctx, "unauthorized access - missing identity",
					"request_id", GetRequestID(ctx),
					"path", r.URL.Path,
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, err := w.Write([]byte(`{"error":"unauthorized"}`))
				if err != nil {
					logger.ErrorContext(ctx, "failed to write unauthorized response",
						"error", err,
						"request_id", GetRequestID(ctx),
					)
				}
				return
			}

			ctx := requestcontext.WithUserID(r.Context(), userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUserID retrieves the authenticated user ID from the context.
func GetUserID(ctx context.Context) string {
	return requestcontext.UserID(ctx)
}
