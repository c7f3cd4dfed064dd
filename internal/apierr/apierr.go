// Package apierr turns every failure of a gateway call into one tagged result
// so form handlers and the report flow consume errors uniformly.
package apierr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// Kind tags an Error.
type Kind string

const (
	// KindFieldErrors carries per-field messages, from client validation or a
	// server VALIDATION_ERROR.
	KindFieldErrors Kind = "fieldErrors"
	// KindMessage carries a single server message (possibly empty).
	KindMessage Kind = "message"
	// KindNetwork means no HTTP response was received.
	KindNetwork Kind = "network"
)

// Sentinel errors reachable through errors.Is on an *Error.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrUnreachable  = errors.New("gateway unreachable")
	ErrTimeout      = errors.New("gateway request timeout")
)

// FieldError is one field-level validation message.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is the single error shape returned by the gateway client and validators.
type Error struct {
	Kind       Kind
	Fields     []FieldError
	Text       string
	Status     int
	Code       string
	RequestID  string
	RetryAfter *int
	Err        error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindFieldErrors:
		parts := make([]string, 0, len(e.Fields))
		for _, f := range e.Fields {
			parts = append(parts, f.Field+": "+f.Message)
		}
		if e.Text != "" {
			return fmt.Sprintf("%s (%s)", e.Text, strings.Join(parts, "; "))
		}
		return strings.Join(parts, "; ")
	case KindNetwork:
		if e.Err != nil {
			return e.Err.Error()
		}
		return ErrUnreachable.Error()
	default:
		msg := e.Text
		if msg == "" {
			msg = http.StatusText(e.Status)
		}
		if e.Code != "" {
			return fmt.Sprintf("status %d %s: %s", e.Status, e.Code, msg)
		}
		return fmt.Sprintf("status %d: %s", e.Status, msg)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// UserMessage returns the text to show in a notification: the server message
// when there is one, otherwise fallback.
func (e *Error) UserMessage(fallback string) string {
	switch e.Kind {
	case KindFieldErrors:
		if e.Text != "" {
			return e.Text
		}
		if len(e.Fields) > 0 {
			return e.Fields[0].Message
		}
	case KindNetwork:
		if e.Err != nil {
			return e.Err.Error()
		}
	default:
		if e.Text != "" {
			return e.Text
		}
	}
	return fallback
}

// Field returns the message for field, or "" when the field has no error.
func (e *Error) Field(field string) string {
	for _, f := range e.Fields {
		if f.Field == field {
			return f.Message
		}
	}
	return ""
}

// Fields builds a field-errors result. It never touches the network.
func Fields(text string, fields ...FieldError) *Error {
	return &Error{Kind: KindFieldErrors, Text: text, Fields: fields}
}

// Message builds a single-message result for an HTTP status.
func Message(status int, code, text string) *Error {
	e := &Error{Kind: KindMessage, Status: status, Code: code, Text: text}
	if status == http.StatusUnauthorized {
		e.Err = ErrUnauthorized
	}
	return e
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// UserMessage is (*Error).UserMessage for arbitrary errors.
func UserMessage(err error, fallback string) string {
	if err == nil {
		return fallback
	}
	if e, ok := As(err); ok {
		return e.UserMessage(fallback)
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return fallback
}

type envelope struct {
	Error json.RawMessage `json:"error"`
}

type errorBody struct {
	Code       string       `json:"code"`
	Message    string       `json:"message"`
	Details    []FieldError `json:"details"`
	RequestID  string       `json:"request_id"`
	RetryAfter *int         `json:"retry_after"`
}

// Decode maps a non-2xx response into an Error. It accepts
// {error:{message}}, {error:{message,details[]}}, {error:"text"},
// {message:"text"} and plain-text bodies.
func Decode(status int, body []byte) *Error {
	var env envelope
	if err := json.Unmarshal(body, &env); err == nil && len(env.Error) > 0 {
		var eb errorBody
		if err := json.Unmarshal(env.Error, &eb); err == nil {
			return fromBody(status, eb)
		}
		var text string
		if err := json.Unmarshal(env.Error, &text); err == nil {
			return Message(status, "", text)
		}
	}

	var flat errorBody
	if err := json.Unmarshal(body, &flat); err == nil && (flat.Message != "" || len(flat.Details) > 0) {
		return fromBody(status, flat)
	}

	text := strings.TrimSpace(string(body))
	if strings.HasPrefix(text, "{") || strings.HasPrefix(text, "<") {
		text = ""
	}
	return Message(status, "", text)
}

func fromBody(status int, eb errorBody) *Error {
	e := Message(status, eb.Code, eb.Message)
	e.RequestID = eb.RequestID
	e.RetryAfter = eb.RetryAfter
	if len(eb.Details) > 0 {
		e.Kind = KindFieldErrors
		e.Fields = eb.Details
	}
	return e
}

// Network classifies a transport-level failure.
func Network(err error) *Error {
	return &Error{Kind: KindNetwork, Err: classifyError(err)}
}

// classifyError maps transport-level errors to sentinel errors.
func classifyError(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}

	return fmt.Errorf("%w: %w", ErrUnreachable, err)
}
