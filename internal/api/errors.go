// errors.go - Structured error handling for API responses
package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/slidewizard/backend/internal/binder"
	"github.com/slidewizard/backend/internal/logging"
	"github.com/slidewizard/backend/internal/models"
	"github.com/slidewizard/backend/internal/placeholder"
	"github.com/slidewizard/backend/internal/session"
	"github.com/slidewizard/backend/internal/settings"
	"github.com/slidewizard/backend/internal/storage"
	"github.com/slidewizard/backend/internal/wizard"
)

// Error codes returned to the browser.
const (
	CodeBadRequest         = "BAD_REQUEST"
	CodeValidation         = "VALIDATION_ERROR"
	CodeMalformedSettings  = "MALFORMED_SETTINGS"
	CodeNotFound           = "NOT_FOUND"
	CodeConflict           = "CONFLICT"
	CodeBusy               = "BUSY"
	CodeRemote             = "REMOTE_ERROR"
	CodeInternal           = "INTERNAL_ERROR"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
)

// APIError represents a structured API error response
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
	// Diagnostics are the generator's per-folder messages for a failed run.
	Diagnostics []models.Detail `json:"diagnostics,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewBadRequestError creates a 400 Bad Request error
func NewBadRequestError(message string, cause error) *APIError {
	err := &APIError{
		Status:  http.StatusBadRequest,
		Code:    CodeBadRequest,
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
		Code:    CodeValidation,
		Message: fmt.Sprintf("validation failed for field: %s", field),
	}
}

// NewNotFoundError creates a 404 Not Found error
func NewNotFoundError(resource string, id string) *APIError {
	return &APIError{
		Status:  http.StatusNotFound,
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s not found: %s", resource, id),
	}
}

// NewConflictError creates a 409 Conflict error
func NewConflictError(message string) *APIError {
	return &APIError{
		Status:  http.StatusConflict,
		Code:    CodeConflict,
		Message: message,
	}
}

// NewInternalError creates a 500 Internal Server Error
func NewInternalError(message string, cause error) *APIError {
	err := &APIError{
		Status:  http.StatusInternalServerError,
		Code:    CodeInternal,
		Message: message,
	}
	if cause != nil {
		err.Details = cause.Error()
	}
	return err
}

// NewServiceUnavailableError creates a 503 Service Unavailable error
func NewServiceUnavailableError(message string) *APIError {
	return &APIError{
		Status:  http.StatusServiceUnavailable,
		Code:    CodeServiceUnavailable,
		Message: message,
	}
}

// FromError maps a domain error to its API response.
func FromError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var stepErr *wizard.StepError
	if errors.As(err, &stepErr) {
		return fromStepError(stepErr)
	}

	var subErr *settings.SubmissionError
	switch {
	case errors.As(err, &subErr):
		return &APIError{Status: http.StatusBadGateway, Code: CodeRemote, Message: subErr.Message}
	case errors.Is(err, settings.ErrMalformedSettings):
		return &APIError{Status: http.StatusBadRequest, Code: CodeMalformedSettings, Message: err.Error()}
	case errors.Is(err, settings.ErrInvalidExtension), errors.Is(err, settings.ErrInvalidClient):
		return &APIError{Status: http.StatusBadRequest, Code: CodeValidation, Message: err.Error()}
	case errors.Is(err, settings.ErrNothingToExport):
		return NewConflictError(err.Error())
	case errors.Is(err, session.ErrNotFound), errors.Is(err, storage.ErrNotFound),
		errors.Is(err, binder.ErrUnknownPlaceholder):
		return &APIError{Status: http.StatusNotFound, Code: CodeNotFound, Message: err.Error()}
	case errors.Is(err, session.ErrTooManySessions):
		return NewServiceUnavailableError(err.Error())
	case errors.Is(err, binder.ErrModalClosed):
		return NewConflictError(err.Error())
	case errors.Is(err, binder.ErrNotConfigurable), errors.Is(err, binder.ErrUnknownControl),
		errors.Is(err, binder.ErrInvalidReason),
		errors.Is(err, placeholder.ErrInvalidOrder), errors.Is(err, placeholder.ErrInvalidFillMode),
		errors.Is(err, placeholder.ErrInvalidDate), errors.Is(err, placeholder.ErrInvalidValue),
		errors.Is(err, placeholder.ErrUnknownProperty):
		return &APIError{Status: http.StatusBadRequest, Code: CodeValidation, Message: err.Error()}
	}

	return NewInternalError("An unexpected error occurred", err)
}

func fromStepError(e *wizard.StepError) *APIError {
	out := &APIError{Message: e.Message, Details: e.Step.String()}
	switch e.Kind {
	case wizard.KindValidation:
		out.Status, out.Code = http.StatusBadRequest, CodeValidation
	case wizard.KindPrerequisite:
		out.Status, out.Code = http.StatusConflict, CodeConflict
	case wizard.KindBusy:
		out.Status, out.Code = http.StatusConflict, CodeBusy
	case wizard.KindRemote:
		out.Status, out.Code = http.StatusBadGateway, CodeRemote
		var d interface{ FailureDetails() []models.Detail }
		if errors.As(e.Err, &d) {
			out.Diagnostics = d.FailureDetails()
		}
	default:
		out.Status, out.Code = http.StatusInternalServerError, CodeInternal
	}
	return out
}

// ErrorHandler middleware for Echo
// Usage: e.HTTPErrorHandler = api.ErrorHandler
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var apiErr *APIError
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		apiErr = &APIError{
			Status:  httpErr.Code,
			Code:    "HTTP_ERROR",
			Message: fmt.Sprintf("%v", httpErr.Message),
		}
	} else {
		apiErr = FromError(err)
	}

	if apiErr.Status >= http.StatusInternalServerError {
		logging.WithComponent("api").Error("request failed",
			"method", c.Request().Method, "path", c.Path(), "error", err)
	}

	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(apiErr.Status)
		return
	}
	_ = c.JSON(apiErr.Status, apiErr)
}
