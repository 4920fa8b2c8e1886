package core

import "context"

type contextKey string

const (
	ctxKeyUser      contextKey = "import_user"
	ctxKeyIPAddress contextKey = "import_ip"
)

// ContextWithUser attaches the acting user to ctx.
func ContextWithUser(ctx context.Context, u User) context.Context {
	return context.WithValue(ctx, ctxKeyUser, u)
}

// UserFromContext returns the acting user, or the anonymous user.
func UserFromContext(ctx context.Context) User {
	if u, ok := ctx.Value(ctxKeyUser).(User); ok {
		return u
	}
	return User{}
}

// ContextWithIPAddress adds the client IP to ctx for logging.
func ContextWithIPAddress(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ctxKeyIPAddress, ip)
}

// GetIPAddressFromContext extracts the client IP from ctx.
func GetIPAddressFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyIPAddress).(string); ok {
		return v
	}
	return ""
}
