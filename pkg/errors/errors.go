package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType classifies an error for HTTP mapping and user messaging.
type ErrorType string

const (
	// ValidationError covers malformed client input.
	ValidationError ErrorType = "validation"
	// NotFoundError covers missing resources.
	NotFoundError ErrorType = "not_found"
	// TransportError covers network failures where no response was received
	// from the log backend.
	TransportError ErrorType = "transport"
	// BackendStatusError covers non-2xx responses from the log backend.
	BackendStatusError ErrorType = "backend_status"
	// DataShapeError covers unexpected response envelopes. Callers normally
	// treat it as "no data" rather than a hard failure.
	DataShapeError ErrorType = "data_shape"
	// InternalError covers everything else.
	InternalError ErrorType = "internal"
)

// AppError is the error type carried across service boundaries.
type AppError struct {
	Type       ErrorType
	Code       string
	Message    string
	StatusCode int
	Details    map[string]interface{}
	Err        error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped cause
func (e *AppError) Unwrap() error {
	return e.Err
}

// Wrap attaches a cause to the error and returns it
func (e *AppError) Wrap(err error) *AppError {
	e.Err = err
	return e
}

// WithDetail attaches one key/value detail and returns the error
func (e *AppError) WithDetail(key string, value interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates an AppError of the given type
func New(errType ErrorType, code, message string) *AppError {
	return &AppError{
		Type:       errType,
		Code:       code,
		Message:    message,
		StatusCode: defaultStatus(errType),
	}
}

func defaultStatus(errType ErrorType) int {
	switch errType {
	case ValidationError:
		return http.StatusBadRequest
	case NotFoundError:
		return http.StatusNotFound
	case TransportError, BackendStatusError:
		return http.StatusBadGateway
	case DataShapeError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ValidationErrorf creates a validation error
func ValidationErrorf(code, format string, args ...interface{}) *AppError {
	return New(ValidationError, code, fmt.Sprintf(format, args...))
}

// NotFoundErrorf creates a not-found error
func NotFoundErrorf(code, format string, args ...interface{}) *AppError {
	return New(NotFoundError, code, fmt.Sprintf(format, args...))
}

// TransportErrorf creates a transport error
func TransportErrorf(code, format string, args ...interface{}) *AppError {
	return New(TransportError, code, fmt.Sprintf(format, args...))
}

// BackendStatusErrorf creates a backend-status error carrying the upstream code
func BackendStatusErrorf(statusCode int, code, format string, args ...interface{}) *AppError {
	e := New(BackendStatusError, code, fmt.Sprintf(format, args...))
	return e.WithDetail("upstream_status", statusCode)
}

// DataShapeErrorf creates a data-shape error
func DataShapeErrorf(code, format string, args ...interface{}) *AppError {
	return New(DataShapeError, code, fmt.Sprintf(format, args...))
}

// InternalErrorf creates an internal error
func InternalErrorf(code, format string, args ...interface{}) *AppError {
	return New(InternalError, code, fmt.Sprintf(format, args...))
}

// IsAppError reports whether err is (or wraps) an *AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// AsAppError extracts an *AppError from err, wrapping unknown errors as
// internal so handlers always have a typed error to render.
func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return InternalErrorf("INTERNAL_ERROR", "An unexpected error occurred").Wrap(err)
}

// IsType reports whether err is an *AppError of the given type
func IsType(err error, errType ErrorType) bool {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return false
	}
	return appErr.Type == errType
}
