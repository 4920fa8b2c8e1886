package middleware

import (
	"net/http"
	"strings"

	"github.com/JonMunkholm/geoimport/internal/core"
)

// Identity headers set by the fronting proxy.
const (
	HeaderUserID   = "X-User-ID"
	HeaderUserName = "X-User-Name"
)

// Identity attaches the acting user and client IP to the request context.
// Requests without X-User-ID stay anonymous.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := core.ContextWithIPAddress(r.Context(), ClientIP(r))

		if id := strings.TrimSpace(r.Header.Get(HeaderUserID)); id != "" {
			ctx = core.ContextWithUser(ctx, core.User{
				ID:   id,
				Name: strings.TrimSpace(r.Header.Get(HeaderUserName)),
			})
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
