package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure of the prediction pipeline
type Kind string

const (
	// ServiceUnavailable means the schema or model failed to load at startup
	ServiceUnavailable Kind = "service_unavailable"
	// BadRequest means the caller supplied no usable input
	BadRequest Kind = "bad_request"
	// PredictionFailure means the model itself failed on the built vector
	PredictionFailure Kind = "prediction_failure"
)

// Error is a classified pipeline failure
type Error struct {
	Kind    Kind
	Message string
	Field   string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if e.Field != "" {
		msg = fmt.Sprintf("%s (field=%s)", msg, e.Field)
	}
	if e.Cause != nil {
		if msg == "" {
			return e.Cause.Error()
		}
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Cause }

// New returns an Error of the given kind
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Wrap returns an Error of the given kind carrying cause
func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// Invalid reports a malformed value for a single field
func Invalid(field, msg string) *Error {
	return &Error{Kind: BadRequest, Message: msg, Field: field}
}

// KindOf returns the kind of err, or "" if err is not an *Error
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err is an *Error of the given kind
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// StatusCode maps an error to the HTTP status the API replies with.
// Unclassified errors are treated as client errors, like input failures.
func StatusCode(err error) int {
	switch KindOf(err) {
	case ServiceUnavailable:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}
