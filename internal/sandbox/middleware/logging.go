package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/kiranshivaraju/pilotwatch/internal/sandbox/response"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Logger writes one line per request. Authenticated requests carry the
// user id set by Auth further down the chain.
func Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		info := &requestInfo{}

		next.ServeHTTP(rec, r.WithContext(context.WithValue(r.Context(), requestKey, info)))

		attrs := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", w.Header().Get(response.RequestIDHeader),
		}
		if info.userID != "" {
			attrs = append(attrs, "user_id", info.userID)
		}
		slog.Info("request", attrs...)
	})
}
