package errors

import (
	"errors"
	"fmt"
	"net/http"
)

type AppError struct {
	Code    string
	Message string
	Status  int
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

const (
	CodeNotFound        = "NOT_FOUND"
	CodeBadRequest      = "BAD_REQUEST"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeForbidden       = "FORBIDDEN"
	CodeInternal        = "INTERNAL_ERROR"
	CodeTooManyRequests = "TOO_MANY_REQUESTS"

	// CodeAuthInvalid marks a missing or malformed credential. Callers fail
	// closed to the unauthenticated state and do not show it to the user.
	CodeAuthInvalid = "AUTH_INVALID"
	// CodeNetworkFailure marks a transport-level failure talking to the backend.
	CodeNetworkFailure = "NETWORK_FAILURE"
	// CodeServerRejected marks a business error returned by the backend.
	CodeServerRejected = "SERVER_REJECTED"
)

func New(code string, message string, status int, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Status:  status,
		Err:     err,
	}
}

func NotFound(resource string, err error) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Status:  http.StatusNotFound,
		Err:     err,
	}
}

func BadRequest(message string, err error) *AppError {
	return &AppError{
		Code:    CodeBadRequest,
		Message: message,
		Status:  http.StatusBadRequest,
		Err:     err,
	}
}

func Unauthorized(message string, err error) *AppError {
	return &AppError{
		Code:    CodeUnauthorized,
		Message: message,
		Status:  http.StatusUnauthorized,
		Err:     err,
	}
}

func Forbidden(message string, err error) *AppError {
	return &AppError{
		Code:    CodeForbidden,
		Message: message,
		Status:  http.StatusForbidden,
		Err:     err,
	}
}

func Internal(message string, err error) *AppError {
	return &AppError{
		Code:    CodeInternal,
		Message: message,
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

func TooManyRequests(message string, err error) *AppError {
	return &AppError{
		Code:    CodeTooManyRequests,
		Message: message,
		Status:  http.StatusTooManyRequests,
		Err:     err,
	}
}

func AuthInvalid(message string, err error) *AppError {
	return &AppError{
		Code:    CodeAuthInvalid,
		Message: message,
		Status:  http.StatusUnauthorized,
		Err:     err,
	}
}

func NetworkFailure(message string, err error) *AppError {
	return &AppError{
		Code:    CodeNetworkFailure,
		Message: message,
		Status:  http.StatusServiceUnavailable,
		Err:     err,
	}
}

// ServerRejected carries the backend's own message verbatim. Backend 4xx
// statuses are passed through, anything else is reported as a bad gateway.
func ServerRejected(message string, status int, err error) *AppError {
	if status < 400 || status >= 500 {
		status = http.StatusBadGateway
	}
	return &AppError{
		Code:    CodeServerRejected,
		Message: message,
		Status:  status,
		Err:     err,
	}
}

func Is(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}
