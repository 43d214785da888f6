// Package errors provides standardized error handling for the contract
// wizard core and its external collaborators.
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
	// External document-analysis collaborator
	ErrCodePhotoVerifyFailed        ErrorCode = "PHOTO_VERIFY_FAILED"
	ErrCodeContractExtractionFailed ErrorCode = "CONTRACT_EXTRACTION_FAILED"
	ErrCodeDocumentExtractionFailed ErrorCode = "DOCUMENT_EXTRACTION_FAILED"
	ErrCodeAnalysisAPITimeout       ErrorCode = "ANALYSIS_API_TIMEOUT"

	// Persistence adapter
	ErrCodeStatePersistFailed ErrorCode = "STATE_PERSIST_FAILED"
	ErrCodeStateCorrupted     ErrorCode = "STATE_CORRUPTED"

	// Wizard transitions
	ErrCodeValidationIncomplete ErrorCode = "VALIDATION_INCOMPLETE"
	ErrCodeInvalidTransition    ErrorCode = "INVALID_TRANSITION"

	// Submission collaborator
	ErrCodeSubmissionFailed    ErrorCode = "SUBMISSION_FAILED"
	ErrCodeDuplicateSubmission ErrorCode = "DUPLICATE_SUBMISSION"

	// Notifications
	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"
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

// ==========================
// 2. Error Constructors
// ==========================

// NewPhotoVerifyFailedError classifies a clarity-check failure. Retryable:
// the user re-submits the same photo or takes a new one.
func NewPhotoVerifyFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodePhotoVerifyFailed,
		Message:   "Photo clarity check failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewContractExtractionFailedError classifies a contract-extraction failure.
func NewContractExtractionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeContractExtractionFailed,
		Message:   "Contract data extraction failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewDocumentExtractionFailedError classifies a document field-extraction
// failure at the transport level. A well-formed error sentinel in the
// response body is not an error and never reaches this constructor.
func NewDocumentExtractionFailedError(slot string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDocumentExtractionFailed,
		Message:   "Document field extraction failed",
		Details:   err.Error(),
		Retryable: true,
		Metadata:  map[string]interface{}{"slot": slot},
		Timestamp: time.Now().UTC(),
	}
}

// NewAnalysisTimeoutError classifies an analysis call that ran out of time.
func NewAnalysisTimeoutError(operation string) *StandardError {
	return &StandardError{
		Code:      ErrCodeAnalysisAPITimeout,
		Message:   "Document analysis API timed out",
		Details:   fmt.Sprintf("operation: %s", operation),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewStatePersistFailedError classifies a best-effort snapshot write that
// did not land. Callers log and swallow it; the in-memory state stays
// authoritative for the session.
func NewStatePersistFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeStatePersistFailed,
		Message:   "Failed to persist process state",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewStateCorruptedError classifies an unreadable persisted snapshot. The
// store self-heals by resetting to defaults, so this surfaces only in logs.
func NewStateCorruptedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeStateCorrupted,
		Message:   "Persisted process state is corrupted",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewValidationIncompleteError classifies a blocked forward transition.
func NewValidationIncompleteError(step string, missing int) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidationIncomplete,
		Message:   "Required fields are missing for this step",
		Details:   fmt.Sprintf("step: %s, missing: %d", step, missing),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidTransitionError classifies a navigation request outside the
// transition table.
func NewInvalidTransitionError(from, to string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidTransition,
		Message:   "Transition is not permitted",
		Details:   fmt.Sprintf("from: %s, to: %s", from, to),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewSubmissionFailedError classifies a failed terminal submission. State is
// preserved and the user retries explicitly.
func NewSubmissionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSubmissionFailed,
		Message:   "Contract packet submission failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewDuplicateSubmissionError classifies a packet that was already recorded.
func NewDuplicateSubmissionError(processID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeDuplicateSubmission,
		Message:   "A packet for this process was already submitted",
		Details:   fmt.Sprintf("processId: %s", processID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotificationSendFailedError classifies a failed confirmation
// notification. Best-effort: submission already succeeded.
func NewNotificationSendFailedError(channel string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotificationSendFailed,
		Message:   "Failed to send confirmation notification",
		Details:   err.Error(),
		Retryable: true,
		Metadata:  map[string]interface{}{"channel": channel},
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. Classification Helpers
// ==========================

// CodeOf extracts the error code from an error chain, or empty.
func CodeOf(err error) ErrorCode {
	var se *StandardError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// IsRetryable reports whether the error chain carries a retryable
// StandardError. Unknown errors default to non-retryable.
func IsRetryable(err error) bool {
	var se *StandardError
	if errors.As(err, &se) {
		return se.Retryable
	}
	return false
}
