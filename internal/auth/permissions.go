package auth

import (
	"net/http"
	"slices"
)

// RequirePermissions returns middleware that admits a request only when its
// token grants every listed permission. It must run after Middleware.
func RequirePermissions(perms ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authCtx := FromContext(r.Context())
			if authCtx == nil {
				writeAuthError(w, http.StatusUnauthorized, "No authorization token provided", "")
				return
			}

			granted := authCtx.Permissions()
			for _, p := range perms {
				if !slices.Contains(granted, p) {
					writeAuthError(w, http.StatusForbidden, "Insufficient permissions", "")
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
