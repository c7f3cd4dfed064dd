package middleware

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/pilotwatch/internal/sandbox/response"
)

// RequestID echoes the caller's X-Request-ID or assigns a new one.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(response.RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(response.RequestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}
