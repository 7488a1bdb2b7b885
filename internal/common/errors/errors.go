// Package errors provides the standardized error taxonomy for the reminder
// and notification dispatch pipeline.
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Supervisor control signals. These are the only errors allowed to escape
	// the supervisor's public methods.
	ErrCodeSchedulerNotInitialized ErrorCode = "SCHEDULER_NOT_INITIALIZED"
	ErrCodeRunInProgress           ErrorCode = "RUN_IN_PROGRESS"

	// Configuration-time failure. Fatal; the process should not start.
	ErrCodeInvalidSchedule ErrorCode = "INVALID_SCHEDULE"

	// Ledger / storage failures.
	ErrCodeStorageError   ErrorCode = "STORAGE_ERROR"
	ErrCodeRecordNotFound ErrorCode = "RECORD_NOT_FOUND"

	// Delivery failures.
	ErrCodeTransportError ErrorCode = "TRANSPORT_ERROR"
	ErrCodeRateLimited    ErrorCode = "RATE_LIMITED"

	// Batch-level failure: the appointment list could not be fetched at all.
	ErrCodeAppointmentFetchFailed ErrorCode = "APPOINTMENT_FETCH_FAILED"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Retryable bool      `json:"retryable"`
	Timestamp time.Time `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// ==========================
// Error Constructors
// ==========================

// NewSchedulerNotInitializedError signals a supervisor method called before
// Initialize. A programming error on the caller's side, never retried.
func NewSchedulerNotInitializedError(operation string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSchedulerNotInitialized,
		Message:   "Scheduler has not been initialized",
		Details:   fmt.Sprintf("operation: %s", operation),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewRunInProgressError signals that a batch run is already executing.
func NewRunInProgressError(reason string) *StandardError {
	return &StandardError{
		Code:      ErrCodeRunInProgress,
		Message:   "A reminder batch run is already in progress",
		Details:   fmt.Sprintf("rejected trigger: %s", reason),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidScheduleError creates a fatal configuration error.
func NewInvalidScheduleError(expression string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidSchedule,
		Message:   "Invalid scheduler trigger expression",
		Details:   fmt.Sprintf("expression: %q, error: %s", expression, err.Error()),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewStorageError creates a retryable ledger write/read error.
func NewStorageError(operation string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeStorageError,
		Message:   "Notification ledger operation failed",
		Details:   fmt.Sprintf("operation: %s, error: %s", operation, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewRecordNotFoundError creates a non-retryable missing record error.
func NewRecordNotFoundError(id string) *StandardError {
	return &StandardError{
		Code:      ErrCodeRecordNotFound,
		Message:   "Notification record not found",
		Details:   fmt.Sprintf("id: %s", id),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewTransportError creates a delivery failure. Retry is an explicit operator
// action (resend), never automatic within the same run.
func NewTransportError(channel string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeTransportError,
		Message:   "Notification delivery failed",
		Details:   fmt.Sprintf("channel: %s, error: %s", channel, err.Error()),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewRateLimitedError signals the per-user ceiling was reached.
func NewRateLimitedError(userID string, count, ceiling int) *StandardError {
	return &StandardError{
		Code:      ErrCodeRateLimited,
		Message:   "User notification rate limit exceeded",
		Details:   fmt.Sprintf("userId: %s, count: %d, ceiling: %d", userID, count, ceiling),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewAppointmentFetchFailedError creates the batch-level hard failure.
func NewAppointmentFetchFailedError(targetDate string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeAppointmentFetchFailed,
		Message:   "Failed to fetch appointments for reminder run",
		Details:   fmt.Sprintf("targetDate: %s, error: %s", targetDate, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// Utility Functions
// ==========================

// IsCode reports whether err is (or wraps) a StandardError with the given code.
func IsCode(err error, code ErrorCode) bool {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr.Code == code
	}
	return false
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "SCHEDULER") || strings.Contains(codeStr, "RUN") || strings.Contains(codeStr, "SCHEDULE"):
		return "SCHEDULER"
	case strings.Contains(codeStr, "STORAGE") || strings.Contains(codeStr, "RECORD"):
		return "STORAGE"
	case strings.Contains(codeStr, "TRANSPORT") || strings.Contains(codeStr, "RATE"):
		return "DELIVERY"
	case strings.Contains(codeStr, "APPOINTMENT"):
		return "BATCH"
	default:
		return "OTHER"
	}
}
