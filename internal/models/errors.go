package models

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode classifies device errors.
type ErrorCode string

const (
	CodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"
	CodeNotFound        ErrorCode = "NOT_FOUND"
	CodeHardwareTimeout ErrorCode = "HARDWARE_TIMEOUT"
	CodeUnsupported     ErrorCode = "UNSUPPORTED"
	CodeTransport       ErrorCode = "TRANSPORT"
	CodeBadRequest      ErrorCode = "BAD_REQUEST"
	CodeUnauthorized    ErrorCode = "UNAUTHORIZED"
	CodeConflict        ErrorCode = "CONFLICT"
	CodeInternal        ErrorCode = "INTERNAL"
)

// AppError is a structured error carrying a code and the HTTP status the API
// reports for it.
type AppError struct {
	Code    ErrorCode `json:"error"`
	Message string    `json:"message"`
	Status  int       `json:"-"`
	Err     error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

// Is matches any AppError with the same code, so the sentinels below work
// with errors.Is.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && t.Code == e.Code
}

// Sentinels for errors.Is comparisons.
var (
	ErrInvalid         = &AppError{Code: CodeInvalidArgument}
	ErrMissing         = &AppError{Code: CodeNotFound}
	ErrTimeout         = &AppError{Code: CodeHardwareTimeout}
	ErrNotSupported    = &AppError{Code: CodeUnsupported}
	ErrTransportFailed = &AppError{Code: CodeTransport}
	ErrUnauthorized    = &AppError{Code: CodeUnauthorized, Message: "authentication required", Status: http.StatusUnauthorized}
)

// Error constructors.

func ErrInvalidArgument(format string, args ...any) *AppError {
	return &AppError{Code: CodeInvalidArgument, Message: fmt.Sprintf(format, args...), Status: http.StatusBadRequest}
}

func ErrNotFound(format string, args ...any) *AppError {
	return &AppError{Code: CodeNotFound, Message: fmt.Sprintf(format, args...), Status: http.StatusNotFound}
}

func ErrHardwareTimeout(format string, args ...any) *AppError {
	return &AppError{Code: CodeHardwareTimeout, Message: fmt.Sprintf(format, args...), Status: http.StatusGatewayTimeout}
}

func ErrUnsupported(format string, args ...any) *AppError {
	return &AppError{Code: CodeUnsupported, Message: fmt.Sprintf(format, args...), Status: http.StatusNotImplemented}
}

func ErrBadRequest(msg string) *AppError {
	return &AppError{Code: CodeBadRequest, Message: msg, Status: http.StatusBadRequest}
}

func ErrConflict(msg string) *AppError {
	return &AppError{Code: CodeConflict, Message: msg, Status: http.StatusConflict}
}

func ErrInternal(msg string) *AppError {
	return &AppError{Code: CodeInternal, Message: msg, Status: http.StatusInternalServerError}
}

// ErrTransport wraps a failure of the underlying link. The cause stays
// reachable through errors.Unwrap.
func ErrTransport(op string, err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Code == CodeTransport {
		return appErr
	}
	return &AppError{Code: CodeTransport, Message: op, Status: http.StatusBadGateway, Err: err}
}

// CodeOf returns the code of err, or CodeInternal for foreign errors.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}
