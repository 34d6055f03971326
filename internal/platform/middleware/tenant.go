package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/salon-events/salonbridge/internal/auth"
)

type tenantContextKey struct{}

// TenantContext copies the instance id derived by the authenticator into
// the request context for downstream handlers.
func TenantContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authCtx := auth.FromContext(r.Context())
		if authCtx != nil && authCtx.HasTenant() {
			ctx := context.WithValue(r.Context(), tenantContextKey{}, authCtx.TenantID)
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// GetTenantID retrieves the instance id from the request context.
func GetTenantID(ctx context.Context) string {
	if id, ok := ctx.Value(tenantContextKey{}).(string); ok {
		return id
	}
	return ""
}

// RequireTenant rejects requests whose context carries no instance id. It
// must run after TenantContext.
func RequireTenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetTenantID(r.Context()) == "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "instance id required"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
