package errors

import (
	stderrors "errors"
	"fmt"
	"unicode/utf8"
)

// ErrorType represents the category of a form filling failure
type ErrorType int

const (
	ErrorTypeUnknown ErrorType = iota
	ErrorTypeConfig
	ErrorTypeNotFound
	ErrorTypeValidation
	ErrorTypeHTTP
	ErrorTypeFormat
	ErrorTypeBackend
)

// String returns a string representation of the ErrorType
func (et ErrorType) String() string {
	switch et {
	case ErrorTypeConfig:
		return "CONFIG_ERROR"
	case ErrorTypeNotFound:
		return "NOT_FOUND"
	case ErrorTypeValidation:
		return "VALIDATION_ERROR"
	case ErrorTypeHTTP:
		return "HTTP_ERROR"
	case ErrorTypeFormat:
		return "FORMAT_ERROR"
	case ErrorTypeBackend:
		return "BACKEND_ERROR"
	default:
		return "UNKNOWN"
	}
}

// FillerError is a terminal failure of one discovery or submission cycle.
// Per-field write failures are never FillerErrors; they are accumulated in the
// fill outcome instead.
type FillerError struct {
	Type       ErrorType `json:"type"`
	Message    string    `json:"message"`
	Context    string    `json:"context,omitempty"`
	StatusCode int       `json:"status_code,omitempty"`
	Body       string    `json:"body,omitempty"`
	Cause      error     `json:"-"`
}

// Error implements the error interface
func (e *FillerError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Type.String(), e.Message)
	if e.Context != "" {
		msg += ": " + e.Context
	}
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Body != "" {
		msg += ": " + e.Body
	}
	if e.Cause != nil && e.Context == "" {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause
func (e *FillerError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a FillerError of the same type, so that
// errors.Is(err, &FillerError{Type: ErrorTypeNotFound}) matches any not-found error.
func (e *FillerError) Is(target error) bool {
	t, ok := target.(*FillerError)
	if !ok {
		return false
	}
	return t.Type == e.Type && t.Message == ""
}

// Sentinels usable with errors.Is.
var (
	ErrConfig     = &FillerError{Type: ErrorTypeConfig}
	ErrNotFound   = &FillerError{Type: ErrorTypeNotFound}
	ErrValidation = &FillerError{Type: ErrorTypeValidation}
	ErrHTTP       = &FillerError{Type: ErrorTypeHTTP}
	ErrFormat     = &FillerError{Type: ErrorTypeFormat}
	ErrBackend    = &FillerError{Type: ErrorTypeBackend}
)

// NewConfigError reports a missing or invalid endpoint configuration
func NewConfigError(format string, args ...interface{}) *FillerError {
	return &FillerError{Type: ErrorTypeConfig, Message: fmt.Sprintf(format, args...)}
}

// NewNotFoundError reports a missing PDF source, document id or form
func NewNotFoundError(format string, args ...interface{}) *FillerError {
	return &FillerError{Type: ErrorTypeNotFound, Message: fmt.Sprintf(format, args...)}
}

// NewValidationError reports content that failed the PDF type check
func NewValidationError(cause error, format string, args ...interface{}) *FillerError {
	return &FillerError{Type: ErrorTypeValidation, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// NewHTTPError reports a non-2xx response from an upstream server
func NewHTTPError(status int, body, format string, args ...interface{}) *FillerError {
	return &FillerError{
		Type:       ErrorTypeHTTP,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: status,
		Body:       truncate(body, maxBodyLength),
	}
}

// NewTransportError reports an upstream server that could not be reached or
// whose response could not be read: refused connections, DNS failures, timeouts.
func NewTransportError(cause error, format string, args ...interface{}) *FillerError {
	return &FillerError{Type: ErrorTypeHTTP, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// NewFormatError reports a response that could not be interpreted
func NewFormatError(cause error, format string, args ...interface{}) *FillerError {
	return &FillerError{Type: ErrorTypeFormat, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// NewBackendError reports a backend that explicitly returned success=false
func NewBackendError(message string) *FillerError {
	if message == "" {
		message = "backend reported failure"
	}
	return &FillerError{Type: ErrorTypeBackend, Message: message}
}

// TypeOf returns the ErrorType of err, or ErrorTypeUnknown if err is not a FillerError
func TypeOf(err error) ErrorType {
	var fe *FillerError
	if stderrors.As(err, &fe) {
		return fe.Type
	}
	return ErrorTypeUnknown
}

// IsType reports whether err is a FillerError of the given type
func IsType(err error, t ErrorType) bool {
	return TypeOf(err) == t
}

const maxBodyLength = 500

// truncate cuts s to at most maxLen bytes on a rune boundary.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
