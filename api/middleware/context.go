package middleware

import "context"

type contextKey string

const (
	ctxAdminID       contextKey = "admin_id"
	ctxAdminUsername contextKey = "admin_username"
	ctxSuperAdmin    contextKey = "super_admin"
)

func AdminIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxAdminID).(string); ok {
		return v
	}
	return ""
}

func AdminUsernameFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxAdminUsername).(string); ok {
		return v
	}
	return ""
}

func SuperAdminFromContext(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	if v, ok := ctx.Value(ctxSuperAdmin).(bool); ok {
		return v
	}
	return false
}

// WithAdmin injects the authenticated admin identity into the context.
func WithAdmin(ctx context.Context, adminID, username string, superAdmin bool) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, ctxAdminID, adminID)
	ctx = context.WithValue(ctx, ctxAdminUsername, username)
	return context.WithValue(ctx, ctxSuperAdmin, superAdmin)
}
