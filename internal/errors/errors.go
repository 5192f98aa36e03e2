package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeNetwork    ErrorType = "network"
	ErrorTypeProcessing ErrorType = "processing"
	ErrorTypeTimeout    ErrorType = "timeout"
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeInternal   ErrorType = "internal"
	ErrorTypeNoFace     ErrorType = "no_face_detected"
	ErrorTypeDegenerate ErrorType = "degenerate_face"
	ErrorTypeTooLarge   ErrorType = "image_too_large"
	ErrorTypeAllocation ErrorType = "allocation_failure"
)

// AppError represents a structured application error
type AppError struct {
	Type       ErrorType `json:"type"`
	Message    string    `json:"message"`
	Details    string    `json:"details,omitempty"`
	StatusCode int       `json:"status_code"`
	Cause      error     `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithDetails returns a copy of the error carrying extra detail text
func (e *AppError) WithDetails(format string, args ...interface{}) *AppError {
	cp := *e
	cp.Details = fmt.Sprintf(format, args...)
	return &cp
}

func newError(t ErrorType, status int, message string, cause error) *AppError {
	return &AppError{
		Type:       t,
		Message:    message,
		StatusCode: status,
		Cause:      cause,
	}
}

// NewValidationError creates a new validation error
func NewValidationError(message string, cause error) *AppError {
	return newError(ErrorTypeValidation, http.StatusBadRequest, message, cause)
}

// NewNetworkError creates a new network error
func NewNetworkError(message string, cause error) *AppError {
	return newError(ErrorTypeNetwork, http.StatusBadGateway, message, cause)
}

// NewProcessingError creates a new processing error
func NewProcessingError(message string, cause error) *AppError {
	return newError(ErrorTypeProcessing, http.StatusUnprocessableEntity, message, cause)
}

// NewTimeoutError creates a new timeout error
func NewTimeoutError(message string, cause error) *AppError {
	return newError(ErrorTypeTimeout, http.StatusGatewayTimeout, message, cause)
}

// NewInternalError creates a new internal error
func NewInternalError(message string, cause error) *AppError {
	return newError(ErrorTypeInternal, http.StatusInternalServerError, message, cause)
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(message string, cause error) *AppError {
	return newError(ErrorTypeNotFound, http.StatusNotFound, message, cause)
}

// NewNoFaceDetectedError reports an image that was expected to contain a face
// but the landmark provider returned none.
func NewNoFaceDetectedError(message string, cause error) *AppError {
	return newError(ErrorTypeNoFace, http.StatusUnprocessableEntity, message, cause)
}

// NewDegenerateFaceError reports malformed detector output: coincident eyes
// or a bounding box without area.
func NewDegenerateFaceError(message string, cause error) *AppError {
	return newError(ErrorTypeDegenerate, http.StatusUnprocessableEntity, message, cause)
}

// NewImageTooLargeError reports an input or intermediate raster above the configured cap.
func NewImageTooLargeError(message string, cause error) *AppError {
	return newError(ErrorTypeTooLarge, http.StatusRequestEntityTooLarge, message, cause)
}

// NewAllocationError reports a raster buffer that could not be allocated.
func NewAllocationError(message string, cause error) *AppError {
	return newError(ErrorTypeAllocation, http.StatusInternalServerError, message, cause)
}

// IsType checks if the error (or anything it wraps) is an AppError of the given type
func IsType(err error, errorType ErrorType) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == errorType
	}
	return false
}

// GetStatusCode extracts the HTTP status code from an error
func GetStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}
	return http.StatusInternalServerError
}

// IsPipelineError reports whether err comes from the raster pipeline itself
// (as opposed to request validation or transport).
func IsPipelineError(err error) bool {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return false
	}
	switch appErr.Type {
	case ErrorTypeDegenerate, ErrorTypeTooLarge, ErrorTypeAllocation, ErrorTypeProcessing:
		return true
	}
	return false
}
