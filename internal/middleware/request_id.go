package middleware

import (
	"net/http"
	"time"

	"github.com/citywatch/citywatch-api/internal/pkg/ids"
	"github.com/citywatch/citywatch-api/internal/pkg/logger"
)

const maxRequestIDLen = 64

// RequestID tags each request with an id from X-Request-ID, or a fresh
// ULID when the header is missing or oversized.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" || len(requestID) > maxRequestIDLen {
			requestID = ids.New()
		}

		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(logger.WithRequestID(r.Context(), requestID)))
	})
}

// Timeout bounds the handler with http.TimeoutHandler
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, timeout, `{"success":false,"error":{"code":"TIMEOUT","message":"request timed out"}}`)
	}
}
