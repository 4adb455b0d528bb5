package middleware

import "context"

type contextKey int

const (
	ctxUserID contextKey = iota
	ctxRole
)

func ctxString(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(key).(string)
	return v
}

func withCtxString(ctx context.Context, key contextKey, value string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, key, value)
}

// UserIDFromContext returns the authenticated user id, or "" when absent.
func UserIDFromContext(ctx context.Context) string {
	return ctxString(ctx, ctxUserID)
}

// RoleFromContext returns the authenticated actor role, or "" when absent.
func RoleFromContext(ctx context.Context) string {
	return ctxString(ctx, ctxRole)
}

// WithUserID injects the user identifier into the context.
func WithUserID(ctx context.Context, userID string) context.Context {
	return withCtxString(ctx, ctxUserID, userID)
}

// WithRole injects the actor role into the context for downstream handlers.
func WithRole(ctx context.Context, role string) context.Context {
	return withCtxString(ctx, ctxRole, role)
}
