// errors.go - Structured error handling for API responses
package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/plc-bridge/backend/internal/bridge"
	"github.com/plc-bridge/backend/internal/fieldbus"
)

// APIError represents a structured API error response
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewBadRequestError creates a 400 Bad Request error
func NewBadRequestError(message string, cause error) *APIError {
	err := &APIError{
		Status:  http.StatusBadRequest,
		Code:    "BAD_REQUEST",
		Message: message,
	}
	if cause != nil {
		err.Details = cause.Error()
	}
	return err
}

// NewValidationError creates a 400 validation error for a specific field
func NewValidationError(field string) *APIError {
	return &APIError{
		Status:  http.StatusBadRequest,
		Code:    "VALIDATION_ERROR",
		Message: fmt.Sprintf("validation failed for field: %s", field),
	}
}

// NewNotFoundError creates a 404 Not Found error
func NewNotFoundError(resource string, id string) *APIError {
	return &APIError{
		Status:  http.StatusNotFound,
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s not found: %s", resource, id),
	}
}

// NewServiceUnavailableError creates a 503 Service Unavailable error
func NewServiceUnavailableError(message string, cause error) *APIError {
	err := &APIError{
		Status:  http.StatusServiceUnavailable,
		Code:    "SERVICE_UNAVAILABLE",
		Message: message,
	}
	if cause != nil {
		err.Details = cause.Error()
	}
	return err
}

// NewInternalError creates a 500 Internal Server Error
func NewInternalError(message string, cause error) *APIError {
	err := &APIError{
		Status:  http.StatusInternalServerError,
		Code:    "INTERNAL_ERROR",
		Message: message,
	}
	if cause != nil {
		err.Details = cause.Error()
	}
	return err
}

// CommandError maps a command processor failure onto an APIError.
// Validation failures surface as client errors; field-bus and store
// failures surface as 503 since they are retried in place.
func CommandError(err error) *APIError {
	var connErr *fieldbus.ConnectError
	var readErr *fieldbus.ReadError
	var writeErr *fieldbus.WriteError

	switch {
	case errors.Is(err, bridge.ErrUnknownSignal):
		return &APIError{Status: http.StatusNotFound, Code: "UNKNOWN_SIGNAL", Message: err.Error()}
	case errors.Is(err, bridge.ErrNotWritable):
		return &APIError{Status: http.StatusBadRequest, Code: "NOT_WRITABLE", Message: err.Error()}
	case errors.Is(err, bridge.ErrInvalidValue):
		return &APIError{Status: http.StatusBadRequest, Code: "INVALID_VALUE", Message: err.Error()}
	case errors.Is(err, bridge.ErrUnknownCommand):
		return &APIError{Status: http.StatusBadRequest, Code: "UNKNOWN_COMMAND", Message: err.Error()}
	case errors.As(err, &connErr), errors.As(err, &readErr), errors.As(err, &writeErr):
		return NewServiceUnavailableError("field bus unavailable", err)
	default:
		return NewServiceUnavailableError("command failed", err)
	}
}

// ErrorHandler middleware for Echo
// Usage: e.HTTPErrorHandler = api.ErrorHandler
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var apiErr *APIError

	switch e := err.(type) {
	case *APIError:
		apiErr = e
	case *echo.HTTPError:
		apiErr = &APIError{
			Status:  e.Code,
			Code:    "HTTP_ERROR",
			Message: fmt.Sprintf("%v", e.Message),
		}
	default:
		apiErr = &APIError{
			Status:  http.StatusInternalServerError,
			Code:    "UNKNOWN_ERROR",
			Message: "An unexpected error occurred",
			Details: err.Error(),
		}
	}

	if !c.Response().Committed {
		c.JSON(apiErr.Status, apiErr)
	}
}
