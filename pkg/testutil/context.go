package testutil

import (
	"context"
	"net/http"

	"tandem/internal/platform/middleware"
)

// WithUserID adds a party id to the request context, simulating what the
// auth middleware does for authenticated requests.
func WithUserID(req *http.Request, userID string) *http.Request {
	ctx := context.WithValue(req.Context(), middleware.ContextKeyUserID, userID)
	return req.WithContext(ctx)
}

// WithAuth adds both party id and session id to the request context.
func WithAuth(req *http.Request, userID, sessionID string) *http.Request {
	ctx := req.Context()
	if userID != "" {
		ctx = context.WithValue(ctx, middleware.ContextKeyUserID, userID)
	}
	if sessionID != "" {
		ctx = context.WithValue(ctx, middleware.ContextKeySessionID, sessionID)
	}
	return req.WithContext(ctx)
}
