package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for the common failure classes. Wrap these (or an AppError
// carrying them) so callers can branch with errors.Is.
var (
	ErrNotFound            = errors.New("resource not found")
	ErrAlreadyExists       = errors.New("resource already exists")
	ErrInvalidInput        = errors.New("invalid input")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrAlreadyReserved     = errors.New("already reserved")
	ErrInvalidTransition   = errors.New("invalid state transition")
	ErrGateway             = errors.New("payment gateway error")
	ErrCorrelationNotFound = errors.New("correlation not found")
	ErrInternal            = errors.New("internal error")
)

// AppError is a structured application error with an HTTP status mapping.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
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

// NotFound creates a 404 error.
func NotFound(resource, id string) *AppError {
	return &AppError{
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s with id %s not found", resource, id),
		Status:  http.StatusNotFound,
		Err:     ErrNotFound,
	}
}

// AlreadyExists creates a 409 error.
func AlreadyExists(resource, field, value string) *AppError {
	return &AppError{
		Code:    "ALREADY_EXISTS",
		Message: fmt.Sprintf("%s with %s %q already exists", resource, field, value),
		Status:  http.StatusConflict,
		Err:     ErrAlreadyExists,
	}
}

// InvalidInput creates a 400 error.
func InvalidInput(message string) *AppError {
	return &AppError{
		Code:    "INVALID_INPUT",
		Message: message,
		Status:  http.StatusBadRequest,
		Err:     ErrInvalidInput,
	}
}

// InsufficientStock creates a 409 error naming the offending unit so the
// caller can surface an actionable message per line item.
func InsufficientStock(unitID string, requested, available int) *AppError {
	return &AppError{
		Code:    "INSUFFICIENT_STOCK",
		Message: fmt.Sprintf("unit %s: requested %d, available %d", unitID, requested, available),
		Status:  http.StatusConflict,
		Err:     ErrInsufficientStock,
	}
}

// AlreadyReserved creates a 409 error for an exclusive unit that lost the
// reservation race.
func AlreadyReserved(unitID string) *AppError {
	return &AppError{
		Code:    "ALREADY_RESERVED",
		Message: fmt.Sprintf("unit %s is already reserved or sold", unitID),
		Status:  http.StatusConflict,
		Err:     ErrAlreadyReserved,
	}
}

// InvalidTransition creates a 409 error for an illegal state change.
func InvalidTransition(from, to string) *AppError {
	return &AppError{
		Code:    "INVALID_TRANSITION",
		Message: fmt.Sprintf("cannot transition from %q to %q", from, to),
		Status:  http.StatusConflict,
		Err:     ErrInvalidTransition,
	}
}

// Gateway creates a 502 error for a failed payment-gateway call.
func Gateway(message string, err error) *AppError {
	return &AppError{
		Code:    "GATEWAY_ERROR",
		Message: message,
		Status:  http.StatusBadGateway,
		Err:     fmt.Errorf("%w: %w", ErrGateway, err),
	}
}

// CorrelationNotFound marks a gateway event that cannot be matched to any
// order. Handlers log it and acknowledge the event; retrying cannot help.
func CorrelationNotFound(ref string) *AppError {
	return &AppError{
		Code:    "CORRELATION_NOT_FOUND",
		Message: fmt.Sprintf("no order matches gateway reference %s", ref),
		Status:  http.StatusOK,
		Err:     ErrCorrelationNotFound,
	}
}

// Internal creates a 500 error.
func Internal(err error) *AppError {
	return &AppError{
		Code:    "INTERNAL_ERROR",
		Message: "an internal error occurred",
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

// HTTPStatus returns the HTTP status code for the given error.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrAlreadyExists),
		errors.Is(err, ErrInsufficientStock),
		errors.Is(err, ErrAlreadyReserved),
		errors.Is(err, ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrGateway):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
