// errors.go - Structured error handling for API responses
package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/har-viewer/backend/internal/analyzer"
	"github.com/har-viewer/backend/internal/session"
	"github.com/har-viewer/backend/internal/upload"
	"github.com/har-viewer/backend/internal/view"
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

// Error constructors for consistent error handling

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

// NewForbiddenError creates a 403 Forbidden error
func NewForbiddenError(message string) *APIError {
	return &APIError{
		Status:  http.StatusForbidden,
		Code:    "FORBIDDEN",
		Message: message,
	}
}

// NewWrongFileTypeError creates a 400 error for uploads that are not .har files
func NewWrongFileTypeError(cause error) *APIError {
	err := &APIError{
		Status:  http.StatusBadRequest,
		Code:    "WRONG_FILE_TYPE",
		Message: "Please upload a valid .har file",
	}
	if cause != nil {
		err.Details = cause.Error()
	}
	return err
}

// NewUploadFailedError creates a 502 error for archives the analyzer did not accept
func NewUploadFailedError(cause error) *APIError {
	err := &APIError{
		Status:  http.StatusBadGateway,
		Code:    "UPLOAD_FAILED",
		Message: "Failed to upload file",
	}
	if cause != nil {
		err.Details = cause.Error()
	}
	return err
}

// NewConflictError creates a 409 Conflict error
func NewConflictError(message string) *APIError {
	return &APIError{
		Status:  http.StatusConflict,
		Code:    "CONFLICT",
		Message: message,
	}
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

// analysisError maps an analyzer failure onto its client error.
func analysisError(err error) *APIError {
	if errors.Is(err, analyzer.ErrWrongFileType) {
		return NewWrongFileTypeError(err)
	}
	return NewUploadFailedError(err)
}

// sessionError maps session, view and job errors onto client errors.
func sessionError(err error, id string) *APIError {
	switch {
	case errors.Is(err, session.ErrNotFound):
		return NewNotFoundError("session", id)
	case errors.Is(err, session.ErrRecordOutOfRange):
		return NewNotFoundError("record", id)
	case errors.Is(err, upload.ErrJobNotFound):
		return NewNotFoundError("job", id)
	case errors.Is(err, upload.ErrNotRetryable):
		return NewConflictError(err.Error())
	case errors.Is(err, session.ErrUnknownField),
		errors.Is(err, session.ErrUnknownPath),
		errors.Is(err, view.ErrUnknownView),
		errors.Is(err, view.ErrUnknownSort):
		return NewBadRequestError(err.Error(), nil)
	}
	return NewInternalError("request failed", err)
}

// indexParam reads the :index path parameter.
func indexParam(c echo.Context) (int, error) {
	idx, err := strconv.Atoi(c.Param("index"))
	if err != nil || idx < 0 {
		return 0, NewValidationError("index")
	}
	return idx, nil
}

// ShowErrorDetails controls whether unexpected errors expose their message.
var ShowErrorDetails = true

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
		}
		if ShowErrorDetails {
			apiErr.Details = err.Error()
		}
	}

	// Send JSON response
	if !c.Response().Committed {
		c.JSON(apiErr.Status, apiErr)
	}
}

