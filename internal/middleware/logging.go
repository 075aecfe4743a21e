package middleware

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	logpkg "github.com/praxislabs/foresight/internal/logger"
	"github.com/praxislabs/foresight/internal/request"
)

// Logging emits one structured line per request with method, path, status,
// latency, and the originating client IP.
func Logging(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			logger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", logpkg.SanitizePath(r.URL.Path)),
				zap.String("client_ip", request.ClientIP(r)),
				zap.Int("status_code", wrapped.statusCode),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			)
		})
	}
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
