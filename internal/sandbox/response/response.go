// Package response writes sandbox gateway responses. Success bodies are bare
// JSON objects; errors use the gateway envelope
// {error:{code,message,details,request_id,retry_after}}.
package response

import (
	"encoding/json"
	"net/http"
)

// RequestIDHeader carries the request id set by the RequestID middleware.
const RequestIDHeader = "X-Request-ID"

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code       string        `json:"code"`
	Message    string        `json:"message"`
	Details    []FieldDetail `json:"details,omitempty"`
	RequestID  string        `json:"request_id,omitempty"`
	RetryAfter *int          `json:"retry_after,omitempty"`
}

type FieldDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func JSON(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, data)
}

func Created(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusCreated, data)
}

func Accepted(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusAccepted, data)
}

func Error(w http.ResponseWriter, status int, code, message string, details []FieldDetail) {
	writeJSON(w, status, errorEnvelope{Error: errorBody{
		Code:      code,
		Message:   message,
		Details:   details,
		RequestID: w.Header().Get(RequestIDHeader),
	}})
}

// RetryLater writes a 429 with retry_after in seconds.
func RetryLater(w http.ResponseWriter, retryAfter int, message string) {
	writeJSON(w, http.StatusTooManyRequests, errorEnvelope{Error: errorBody{
		Code:       "RATE_LIMIT_EXCEEDED",
		Message:    message,
		RequestID:  w.Header().Get(RequestIDHeader),
		RetryAfter: &retryAfter,
	}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
