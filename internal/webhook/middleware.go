package webhook

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
)

// MaxBodyBytes bounds how much of a webhook body is read.
const MaxBodyBytes = 1 << 20

// Middleware reads the raw body, verifies it and stores the event in the
// request context. The body is consumed as text; nothing upstream may
// decode it.
func Middleware(v *Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
			if err != nil {
				writeVerificationError(w, ErrMalformedBody)
				return
			}

			event, err := v.Verify(body)
			if err != nil {
				writeVerificationError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithEvent(r.Context(), event)))
		})
	}
}

func writeVerificationError(w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	var message string
	switch {
	case errors.Is(err, ErrServerConfiguration):
		status = http.StatusInternalServerError
		message = "Server configuration error: Public key not configured"
	case errors.Is(err, ErrMalformedBody):
		message = "Invalid request body"
	case errors.Is(err, ErrMalformedEventData):
		message = "Invalid event data format"
	default:
		message = strings.TrimPrefix(strings.TrimPrefix(err.Error(), ErrSignatureVerification.Error()), ": ")
	}

	writeJSON(w, status, map[string]string{
		"error":   "Webhook signature verification failed",
		"message": message,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
