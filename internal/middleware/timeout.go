package middleware

import (
	"context"
	"net/http"
	"time"
)

// DefaultRequestTimeout bounds a request when no explicit timeout is
// configured.
const DefaultRequestTimeout = 30 * time.Second

// Timeout cancels the request context and writes a 503 when a handler
// overruns the deadline.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			handler := http.TimeoutHandler(next, timeout, "Request Timeout")
			handler.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
