package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

var (
	ErrValidation      = fmt.Errorf("invalid input")
	ErrNotFound        = fmt.Errorf("not found")
	ErrForbidden       = fmt.Errorf("forbidden")
	ErrUnauthenticated = fmt.Errorf("unauthenticated")
	ErrConflict        = fmt.Errorf("conflict")
	ErrStorage         = fmt.Errorf("storage failure")

	// ErrDeliveryDropped reports a push that could not reach one recipient
	// connection. Logged only; the recipient catches up via history.
	ErrDeliveryDropped = fmt.Errorf("delivery dropped")

	ErrWorkerPanic = fmt.Errorf("worker panic")
	ErrEmptyWords  = fmt.Errorf("no censored words loaded")

	ErrUserAlreadyExists  = fmt.Errorf("user already exists")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
	ErrInvalidPassword    = fmt.Errorf("password complexity not met")
	ErrTokenGeneration    = fmt.Errorf("token generation failed")
)

// MapToHTTPStatus translates the domain error taxonomy for the REST edge.
// Unknown errors are treated as internal failures.
func MapToHTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case stderrors.Is(err, ErrValidation), stderrors.Is(err, ErrInvalidPassword):
		return http.StatusBadRequest
	case stderrors.Is(err, ErrUnauthenticated), stderrors.Is(err, ErrInvalidCredentials):
		return http.StatusUnauthorized
	case stderrors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case stderrors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case stderrors.Is(err, ErrUserAlreadyExists), stderrors.Is(err, ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
