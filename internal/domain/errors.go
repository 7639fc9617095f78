package domain

import (
	"fmt"
	"time"
)

// EngineError represents a standardized error response
type EngineError struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
}

// Error implements the error interface
func (e *EngineError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error codes for different failure scenarios
const (
	ErrCorpusUnavailable = "CORPUS_UNAVAILABLE"
	ErrMalformedProfile  = "MALFORMED_PROFILE"
	ErrNoMatch           = "NO_CANDIDATE_MATCH"
	ErrExclusionRuleMiss = "EXCLUSION_RULE_MISS"
	ErrInvalidInput      = "INVALID_INPUT"
	ErrDatabaseError     = "DATABASE_ERROR"
	ErrRateLimit         = "RATE_LIMIT_EXCEEDED"
	ErrInternalServer    = "INTERNAL_SERVER_ERROR"
	ErrValidation        = "VALIDATION_ERROR"
	ErrTimeout           = "REQUEST_TIMEOUT"
	ErrAuditDisabled     = "AUDIT_DISABLED"
	ErrRunNotFound       = "RUN_NOT_FOUND"
)

// ValidationError represents input validation errors
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// CorpusUnavailableError is returned when a corpus cannot be loaded or is
// missing a required field. The owning source is disabled for its lifetime.
type CorpusUnavailableError struct {
	Corpus string
	Reason string
	Cause  error
}

// Error implements the error interface
func (e *CorpusUnavailableError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("corpus %s unavailable: %s: %v", e.Corpus, e.Reason, e.Cause)
	}
	return fmt.Sprintf("corpus %s unavailable: %s", e.Corpus, e.Reason)
}

// Unwrap returns the underlying cause
func (e *CorpusUnavailableError) Unwrap() error {
	return e.Cause
}

// NewEngineError creates a new EngineError with timestamp
func NewEngineError(code, message, details, requestID string) *EngineError {
	return &EngineError{
		Code:      code,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
		RequestID: requestID,
	}
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}

// NewCorpusUnavailable creates a new CorpusUnavailableError
func NewCorpusUnavailable(corpus, reason string, cause error) *CorpusUnavailableError {
	return &CorpusUnavailableError{Corpus: corpus, Reason: reason, Cause: cause}
}
