// Package handler implements the sandbox gateway's HTTP handlers.
package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/kiranshivaraju/pilotwatch/internal/apierr"
	"github.com/kiranshivaraju/pilotwatch/internal/sandbox/response"
	"github.com/kiranshivaraju/pilotwatch/internal/sandbox/store"
)

// writeError maps store and validation errors to gateway error responses.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	if e, ok := apierr.As(err); ok && e.Kind == apierr.KindFieldErrors {
		details := make([]response.FieldDetail, 0, len(e.Fields))
		for _, f := range e.Fields {
			details = append(details, response.FieldDetail{Field: f.Field, Message: f.Message})
		}
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", e.Text, details)
		return
	}

	var rejected *store.RejectedError
	switch {
	case errors.Is(err, store.ErrNotFound):
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Analysis group not found", nil)
	case errors.Is(err, store.ErrInvalidCredentials):
		response.Error(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password", nil)
	case errors.As(err, &rejected):
		response.Error(w, http.StatusUnprocessableEntity, "REPORT_REJECTED", rejected.Reason, nil)
	default:
		slog.Error("handler failed", "method", r.Method, "path", r.URL.Path, "error", err)
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
	}
}

func invalidBody(w http.ResponseWriter) {
	response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
}
