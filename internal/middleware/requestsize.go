package middleware

import (
	"net/http"
)

// DefaultMaxRequestSize is the request body cap applied when no explicit
// limit is configured (1MB).
const DefaultMaxRequestSize int64 = 1 << 20

// MaxRequestSize bounds request bodies. A declared Content-Length over the
// limit is rejected before the body is read; undeclared bodies are capped
// by MaxBytesReader.
func MaxRequestSize(maxBytes int64) func(http.Handler) http.Handler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxRequestSize
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				http.Error(w, "Request Entity Too Large", http.StatusRequestEntityTooLarge)
				return
			}

			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			defer r.Body.Close()

			next.ServeHTTP(w, r)
		})
	}
}
