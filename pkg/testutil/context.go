package testutil

import (
	"context"
	"net/http"
	"time"

	"glassbank/pkg/requestcontext"
)

// WithUserID adds a user ID to the request context.
// This simulates what the identity middleware would do for authenticated requests.
func WithUserID(req *http.Request, userID string) *http.Request {
	ctx := requestcontext.WithUserID(req.Context(), userID)
	return req.WithContext(ctx)
}

// WithRequestID adds a request ID to the request context.
func WithRequestID(req *http.Request, requestID string) *http.Request {
	ctx := requestcontext.WithRequestID(req.Context(), requestID)
	return req.WithContext(ctx)
}

// WithTime pins the request-scoped clock, so handlers and services see a
// deterministic time.
func WithTime(req *http.Request, t time.Time) *http.Request {
	ctx := requestcontext.WithTime(req.Context(), t)
	return req.WithContext(ctx)
}

// WithContextValue adds an arbitrary key-value pair to the request context.
func WithContextValue(req *http.Request, key, value any) *http.Request {
	ctx := context.WithValue(req.Context(), key, value)
	return req.WithContext(ctx)
}
