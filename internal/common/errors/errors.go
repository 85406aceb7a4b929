// Package errors provides standardized error handling for the scenario workflow.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeFormValidationFailed ErrorCode = "FORM_VALIDATION_FAILED"

	ErrCodeScenarioCreateFailed ErrorCode = "SCENARIO_CREATE_FAILED"
	ErrCodeScenarioFetchFailed  ErrorCode = "SCENARIO_FETCH_FAILED"
	ErrCodeScenarioNotFound     ErrorCode = "SCENARIO_NOT_FOUND"

	ErrCodeCatalogUnavailable ErrorCode = "CATALOG_UNAVAILABLE"
	ErrCodeMetricNotFound     ErrorCode = "METRIC_NOT_FOUND"

	ErrCodeExportFailed    ErrorCode = "EXPORT_FAILED"
	ErrCodePlanStateFailed ErrorCode = "PLAN_STATE_FAILED"

	ErrCodeExternalService ErrorCode = "EXTERNAL_SERVICE_ERROR"
	ErrCodeTimeout         ErrorCode = "TIMEOUT_ERROR"
	ErrCodeAuthentication  ErrorCode = "AUTHENTICATION_ERROR"
	ErrCodeInternal        ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause, if any.
func (e *StandardError) Unwrap() error {
	return e.cause
}

// WithMetadata attaches a key/value pair and returns the receiver.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// ==========================
// 2. Error Constructors
// ==========================

func newError(code ErrorCode, message, details string, retryable bool, cause error) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

// NewFormValidationError creates a non-retryable local validation error.
func NewFormValidationError(details string) *StandardError {
	return newError(ErrCodeFormValidationFailed, "Scenario form is invalid", details, false, nil)
}

// NewScenarioCreateFailedError wraps a rejected creation request. message is
// the server-provided text shown to the user.
func NewScenarioCreateFailedError(message string, retryable bool, cause error) *StandardError {
	if message == "" {
		message = "Scenario could not be created"
	}
	details := ""
	if cause != nil {
		details = cause.Error()
	}
	return newError(ErrCodeScenarioCreateFailed, message, details, retryable, cause)
}

// NewScenarioFetchFailedError creates a retryable status-fetch error.
func NewScenarioFetchFailedError(scenarioID string, err error) *StandardError {
	return newError(ErrCodeScenarioFetchFailed, "Scenario status fetch failed",
		fmt.Sprintf("scenarioId: %s, error: %v", scenarioID, err), true, err)
}

// NewScenarioNotFoundError creates a non-retryable not-found error.
func NewScenarioNotFoundError(scenarioID string) *StandardError {
	return newError(ErrCodeScenarioNotFound, "Scenario not found",
		fmt.Sprintf("scenarioId: %s", scenarioID), false, nil)
}

// NewCatalogUnavailableError creates a retryable catalog error.
func NewCatalogUnavailableError(catalog string, err error) *StandardError {
	return newError(ErrCodeCatalogUnavailable, "Catalog unavailable",
		fmt.Sprintf("catalog: %s, error: %v", catalog, err), true, err)
}

// NewMetricNotFoundError creates a non-retryable metric lookup error.
func NewMetricNotFoundError(metric string, path []string) *StandardError {
	return newError(ErrCodeMetricNotFound, "Metric not found in conditions catalog",
		fmt.Sprintf("metric: %s, path: %v", metric, path), false, nil)
}

// NewExportFailedError creates an export error.
func NewExportFailedError(scenarioID string, err error) *StandardError {
	return newError(ErrCodeExportFailed, "Scenario export failed",
		fmt.Sprintf("scenarioId: %s, error: %v", scenarioID, err), true, err)
}

// NewPlanStateFailedError creates a plan-state persistence error.
func NewPlanStateFailedError(operation string, err error) *StandardError {
	return newError(ErrCodePlanStateFailed, "Plan state update failed",
		fmt.Sprintf("operation: %s, error: %v", operation, err), true, err)
}

func NewExternalServiceError(service string, err error) *StandardError {
	return newError(ErrCodeExternalService, fmt.Sprintf("External service '%s' error", service),
		err.Error(), true, err)
}

func NewTimeoutError(service string, err error) *StandardError {
	return newError(ErrCodeTimeout, fmt.Sprintf("Service '%s' timeout", service),
		err.Error(), true, err)
}

func NewAuthenticationError(details string) *StandardError {
	return newError(ErrCodeAuthentication, "Authentication failed", details, false, nil)
}

// ==========================
// 3. Helpers
// ==========================

// AsStandard extracts a StandardError from an error chain.
func AsStandard(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// Normalize ensures we always have a StandardError.
func Normalize(err error) *StandardError {
	if err == nil {
		return nil
	}
	if stdErr, ok := AsStandard(err); ok {
		return stdErr
	}
	return newError(ErrCodeInternal, "Unexpected error", err.Error(), false, err)
}

// IsRetryable reports whether the error chain carries a retryable StandardError.
func IsRetryable(err error) bool {
	if stdErr, ok := AsStandard(err); ok {
		return stdErr.Retryable
	}
	return false
}

// HasCode reports whether the error chain carries a StandardError with code.
func HasCode(err error, code ErrorCode) bool {
	if stdErr, ok := AsStandard(err); ok {
		return stdErr.Code == code
	}
	return false
}
