// Package errors provides standardized error handling for the wizard API and
// BPMN workflow integration.
package errors

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeWizardNotFound         ErrorCode = "WIZARD_NOT_FOUND"
	ErrCodeWizardLocked           ErrorCode = "WIZARD_LOCKED"
	ErrCodeWizardStepLocked       ErrorCode = "WIZARD_STEP_LOCKED"
	ErrCodeWizardValidationFailed ErrorCode = "WIZARD_VALIDATION_FAILED"
	ErrCodeInvalidRequest         ErrorCode = "INVALID_REQUEST"
	ErrCodeDocumentRejected       ErrorCode = "DOCUMENT_REJECTED"

	ErrCodeSubmissionRejected ErrorCode = "SUBMISSION_REJECTED"
	ErrCodeSubmissionFailed   ErrorCode = "SUBMISSION_FAILED"
	ErrCodeSubmissionTimeout  ErrorCode = "SUBMISSION_TIMEOUT"
	ErrCodeSubmitInFlight     ErrorCode = "SUBMISSION_IN_FLIGHT"

	ErrCodeSessionNotFound     ErrorCode = "SESSION_NOT_FOUND"
	ErrCodeSessionLookupFailed ErrorCode = "SESSION_LOOKUP_FAILED"

	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeJournalWriteFailed       ErrorCode = "JOURNAL_WRITE_FAILED"

	ErrCodeApplicationValidationFailed ErrorCode = "APPLICATION_VALIDATION_FAILED"
	ErrCodeOriginationStartFailed      ErrorCode = "ORIGINATION_START_FAILED"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// WithMetadata attaches a key to the error and returns it.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}

	for k, v := range e.ErrorVariables {
		vars[k] = v
	}

	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

func NewWizardNotFoundError(id string) *StandardError {
	return &StandardError{
		Code:      ErrCodeWizardNotFound,
		Message:   "Application draft not found",
		Details:   fmt.Sprintf("draftId: %s", id),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewWizardLockedError is returned for edits while a submission is in
// flight or after it has succeeded.
func NewWizardLockedError(state string) *StandardError {
	return &StandardError{
		Code:      ErrCodeWizardLocked,
		Message:   "Application can no longer be edited",
		Details:   fmt.Sprintf("state: %s", state),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewWizardStepLockedError(step int) *StandardError {
	return &StandardError{
		Code:      ErrCodeWizardStepLocked,
		Message:   "Step has not been reached yet",
		Details:   fmt.Sprintf("step: %d", step),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewWizardValidationFailedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeWizardValidationFailed,
		Message:   "Please correct the highlighted fields",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewInvalidRequestError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidRequest,
		Message:   "Malformed request",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewDocumentRejectedError(slot, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeDocumentRejected,
		Message:   "Document was not accepted",
		Details:   fmt.Sprintf("slot: %s, reason: %s", slot, details),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewSubmissionRejectedError covers a backend that answered with field errors.
func NewSubmissionRejectedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSubmissionRejected,
		Message:   "Application was rejected by the lender",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewSubmissionFailedError(message string, retryable bool) *StandardError {
	return &StandardError{
		Code:      ErrCodeSubmissionFailed,
		Message:   message,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
	}
}

func NewSubmissionTimeoutError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSubmissionTimeout,
		Message:   "Submission timed out",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewSubmitInFlightError() *StandardError {
	return &StandardError{
		Code:      ErrCodeSubmitInFlight,
		Message:   "A submission is already in progress",
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewSessionNotFoundError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSessionNotFound,
		Message:   "Session not found or expired",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewSessionLookupFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSessionLookupFailed,
		Message:   "Session store unavailable",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewDatabaseConnectionFailedError creates a retryable database connection error.
func NewDatabaseConnectionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseConnectionFailed,
		Message:   "Database connection error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewJournalWriteFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeJournalWriteFailed,
		Message:   "Submission journal write failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewApplicationValidationFailedError creates a non-retryable application validation error.
func NewApplicationValidationFailedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeApplicationValidationFailed,
		Message:   "Application data validation failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewOriginationStartFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeOriginationStartFailed,
		Message:   "Could not start loan origination process",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// Generic constructors

func NewExternalServiceError(service string, err error) *StandardError {
	return &StandardError{
		Code:      "EXTERNAL_SERVICE_ERROR",
		Message:   fmt.Sprintf("External service '%s' error", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewTimeoutError(service string, err error) *StandardError {
	return &StandardError{
		Code:      "TIMEOUT_ERROR",
		Message:   fmt.Sprintf("Service '%s' timeout", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewAuthenticationError(details string) *StandardError {
	return &StandardError{
		Code:      "AUTHENTICATION_ERROR",
		Message:   "Authentication failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// BPMNErrorMapping maps internal error codes to the error codes the
// origination process catches.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeApplicationValidationFailed: "APPLICATION_VALIDATION_FAILED",
	ErrCodeDatabaseConnectionFailed:    "DATABASE_CONNECTION_FAILED",
	ErrCodeJournalWriteFailed:          "JOURNAL_WRITE_FAILED",
	ErrCodeOriginationStartFailed:      "ORIGINATION_START_FAILED",
	ErrCodeSubmissionRejected:          "APPLICATION_REJECTED",
}

// GetRetryCount returns the recommended retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDatabaseConnectionFailed,
		ErrCodeJournalWriteFailed,
		ErrCodeSessionLookupFailed,
		ErrCodeOriginationStartFailed:
		return 3

	case ErrCodeSubmissionTimeout:
		return 1

	default:
		return 0 // Business errors: no retry
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	vars := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
	}
	for k, v := range stdErr.Metadata {
		vars[k] = v
	}

	return &BPMNError{
		Code:           bpmnCode,
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        retries,
		ErrorVariables: vars,
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// HTTPStatus maps a code to the status the wizard API answers with.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeWizardNotFound:
		return http.StatusNotFound
	case ErrCodeWizardLocked, ErrCodeSubmitInFlight:
		return http.StatusConflict
	case ErrCodeWizardStepLocked, ErrCodeInvalidRequest:
		return http.StatusBadRequest
	case ErrCodeWizardValidationFailed, ErrCodeDocumentRejected,
		ErrCodeSubmissionRejected, ErrCodeApplicationValidationFailed:
		return http.StatusUnprocessableEntity
	case ErrCodeSessionNotFound, "AUTHENTICATION_ERROR":
		return http.StatusUnauthorized
	case ErrCodeSubmissionTimeout:
		return http.StatusGatewayTimeout
	case ErrCodeSubmissionFailed, "EXTERNAL_SERVICE_ERROR":
		return http.StatusBadGateway
	case ErrCodeSessionLookupFailed, ErrCodeDatabaseConnectionFailed:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.HasPrefix(codeStr, "WIZARD") || strings.HasPrefix(codeStr, "DOCUMENT"):
		return "WIZARD"
	case strings.HasPrefix(codeStr, "SUBMISSION"):
		return "SUBMISSION"
	case strings.HasPrefix(codeStr, "SESSION") || strings.Contains(codeStr, "AUTHENTICATION"):
		return "AUTH/SESSION"
	case strings.Contains(codeStr, "DATABASE") || strings.HasPrefix(codeStr, "JOURNAL"):
		return "DATABASE"
	case strings.HasPrefix(codeStr, "ORIGINATION"):
		return "WORKFLOW"
	case strings.Contains(codeStr, "INVALID") || strings.Contains(codeStr, "VALIDATION"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
