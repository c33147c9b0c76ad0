package middleware

import (
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"
)

// slowRequestThreshold marks requests worth a warning; SQLite-backed
// handlers should stay well under this.
const slowRequestThreshold = 200 * time.Millisecond

// requestIDCounter is an atomic counter for request IDs.
var requestIDCounter uint64

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

// WriteHeader captures the status code and delegates to the underlying ResponseWriter.
func (sw *statusWriter) WriteHeader(code int) {
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}

// RequestLogger logs every request with method, path, status and latency.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := atomic.AddUint64(&requestIDCounter, 1)
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		start := time.Now()
		next.ServeHTTP(sw, r)
		elapsed := time.Since(start)

		attrs := []any{
			"request_id", reqID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"duration_ms", elapsed.Milliseconds(),
		}
		if elapsed > slowRequestThreshold {
			slog.Warn("http_slow_request", attrs...)
		} else {
			slog.Info("http_request", attrs...)
		}
	})
}
