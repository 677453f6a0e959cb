package auth

import (
	"context"
	"net/http"
)

type Role string

const (
	RoleCustomer Role = "customer"
	RoleStaff    Role = "staff"
)

// Context is the identity the platform gateway resolved for a request. The
// engine trusts it and never re-derives identity.
type Context struct {
	UserID   string
	TenantID string
	Role     Role
}

type ctxKey struct{}

// Middleware builds the auth context from the headers the platform gateway
// stamps after authenticating the session. Requests missing them never made
// it through the gateway and are rejected.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ac := Context{
			UserID:   r.Header.Get("X-User-Id"),
			TenantID: r.Header.Get("X-Tenant-Id"),
			Role:     Role(r.Header.Get("X-User-Role")),
		}
		if ac.UserID == "" || ac.TenantID == "" || ac.Role == "" {
			http.Error(w, `{"success":false,"error":"unauthenticated"}`, http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithContext(r.Context(), ac)))
	})
}

// Require gates a route on a role. Staff passes customer gates.
func Require(role Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ac, ok := FromContext(r.Context())
			if !ok {
				http.Error(w, `{"success":false,"error":"unauthenticated"}`, http.StatusUnauthorized)
				return
			}
			if ac.Role != role && ac.Role != RoleStaff {
				http.Error(w, `{"success":false,"error":"forbidden"}`, http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func WithContext(ctx context.Context, ac Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, ac)
}

func FromContext(ctx context.Context) (Context, bool) {
	ac, ok := ctx.Value(ctxKey{}).(Context)
	return ac, ok
}
