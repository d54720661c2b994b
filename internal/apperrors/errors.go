// Package apperrors defines the categorized failures surfaced by the scan
// pipeline and how they map onto HTTP responses.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind categorizes an error
type Kind string

const (
	KindDeviceUnavailable      Kind = "device_unavailable"
	KindDevicePermissionDenied Kind = "device_permission_denied"
	KindDeviceBusy             Kind = "device_busy"
	KindInsecureContext        Kind = "insecure_context"
	KindCaptureFailure         Kind = "capture_failure"
	KindRecognitionFailure     Kind = "recognition_failure"
	KindTimeout                Kind = "timeout"
	KindNotFound               Kind = "not_found"
	KindInvalidFormat          Kind = "invalid_format"
	KindDuplicateRecord        Kind = "duplicate_record"
	KindInvalidState           Kind = "invalid_state"
	KindInternal               Kind = "internal"
)

// Error is a categorized application error. Message is safe to show to a user.
type Error struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates an error of the given kind
func New(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Newf creates an error of the given kind with a formatted message and no cause
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind
func Is(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	return KindOf(err) == kind
}

// Message returns the user-facing message for err
func Message(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "Something went wrong. Please try again."
}

// StatusCode maps an error onto an HTTP status code
func StatusCode(err error) int {
	switch KindOf(err) {
	case KindDeviceUnavailable:
		return http.StatusServiceUnavailable
	case KindDevicePermissionDenied, KindInsecureContext:
		return http.StatusForbidden
	case KindDeviceBusy, KindDuplicateRecord, KindInvalidState:
		return http.StatusConflict
	case KindCaptureFailure:
		return http.StatusUnprocessableEntity
	case KindRecognitionFailure:
		return http.StatusBadGateway
	case KindTimeout:
		return http.StatusGatewayTimeout
	case KindNotFound:
		return http.StatusNotFound
	case KindInvalidFormat:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
