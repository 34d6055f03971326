package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

// Middleware authenticates every request and stores the result in the
// request context. Rejected requests never reach next.
func Middleware(a *Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authCtx, err := a.Authenticate(CredentialsFromRequest(r))
			if err != nil {
				writeAuthenticationError(w, err, a.Degraded())
				return
			}
			next.ServeHTTP(w, r.WithContext(WithContext(r.Context(), authCtx)))
		})
	}
}

func writeAuthenticationError(w http.ResponseWriter, err error, detailed bool) {
	switch {
	case errors.Is(err, ErrUnauthorized):
		writeAuthError(w, http.StatusUnauthorized, "No authorization token provided", "")
	case errors.Is(err, ErrInvalidToken):
		message := ""
		if detailed {
			message = detail(err, ErrInvalidToken)
		}
		writeAuthError(w, http.StatusUnauthorized, "Invalid authorization token", message)
	case errors.Is(err, ErrServerConfiguration):
		message := ""
		if detailed {
			message = "verification key not configured"
		}
		writeAuthError(w, http.StatusInternalServerError, "Server configuration error", message)
	default:
		writeAuthError(w, http.StatusInternalServerError, "Internal server error", "")
	}
}

// detail strips the sentinel prefix from a wrapped error message.
func detail(err, sentinel error) string {
	msg := strings.TrimPrefix(err.Error(), sentinel.Error())
	msg = strings.TrimPrefix(msg, ": ")
	if msg == "" {
		return sentinel.Error()
	}
	return msg
}

func writeAuthError(w http.ResponseWriter, status int, message, detail string) {
	body := map[string]string{"error": message}
	if detail != "" {
		body["message"] = detail
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
