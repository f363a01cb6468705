package context

import (
	stdctx "context"
	"strings"
)

type requestIDKey struct{}
type userIDKey struct{}

// WithRequestID stores the inbound request id.
func WithRequestID(ctx stdctx.Context, requestID string) stdctx.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return stdctx.WithValue(ctx, requestIDKey{}, requestID)
}

func RequestIDFromContext(ctx stdctx.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey{}).(string); ok {
		return v
	}
	return ""
}

// WithUserID stores the authenticated customer id for log enrichment.
func WithUserID(ctx stdctx.Context, userID string) stdctx.Context {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return ctx
	}
	return stdctx.WithValue(ctx, userIDKey{}, userID)
}

func UserIDFromContext(ctx stdctx.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(userIDKey{}).(string); ok {
		return v
	}
	return ""
}
