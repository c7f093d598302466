package middleware

import (
	"errors"
	"net/http"
	"runtime/debug"

	"github.com/citywatch/citywatch-api/internal/pkg/logger"
	"github.com/citywatch/citywatch-api/internal/pkg/metrics"
	"github.com/citywatch/citywatch-api/internal/pkg/response"
)

// Recover turns handler panics into 500s. http.ErrAbortHandler is passed
// through so the server can drop the connection.
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
				panic(rec)
			}

			metrics.HTTPPanics.Inc()
			logger.FromContext(r.Context()).Error().
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Str("route", r.Method+" "+r.URL.Path).
				Msg("Handler panicked")
			logger.CapturePanic(r.Context(), rec)

			response.InternalError(w)
		}()

		next.ServeHTTP(w, r)
	})
}
