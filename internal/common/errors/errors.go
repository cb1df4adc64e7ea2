// Package errors provides standardized error handling for the analysis pipeline.
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Fetch errors: per-page, retried inside the fetcher, then terminal for
	// that page only.
	ErrCodeFetchFailed      ErrorCode = "FETCH_FAILED"
	ErrCodeFetchTimeout     ErrorCode = "FETCH_TIMEOUT"
	ErrCodeContentTooShort  ErrorCode = "CONTENT_TOO_SHORT"

	// Annotation errors: terminal per page.
	ErrCodeAnnotationFailed ErrorCode = "ANNOTATION_FAILED"

	// Session-fatal pipeline errors.
	ErrCodeEvidenceBuildFailed ErrorCode = "EVIDENCE_BUILD_FAILED"
	ErrCodeSynthesisFailed     ErrorCode = "SYNTHESIS_FAILED"

	// Non-fatal: session completes without gap fields.
	ErrCodeGapAnalysisFailed ErrorCode = "GAP_ANALYSIS_FAILED"

	// Generation collaborator errors.
	ErrCodeGenerationFailed    ErrorCode = "GENERATION_FAILED"
	ErrCodeGenerationTimeout   ErrorCode = "GENERATION_TIMEOUT"
	ErrCodeResponseParseFailed ErrorCode = "RESPONSE_PARSE_FAILED"

	// Rejected synchronously before any run starts.
	ErrCodeSessionNotFound      ErrorCode = "SESSION_NOT_FOUND"
	ErrCodeSessionNotOwned      ErrorCode = "SESSION_NOT_OWNED"
	ErrCodeSessionStateConflict ErrorCode = "SESSION_STATE_CONFLICT"

	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
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

// Is makes errors.Is match on equal codes.
func (e *StandardError) Is(target error) bool {
	var t *StandardError
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// CodeOf extracts the ErrorCode from err, or INTERNAL_ERROR for plain errors.
func CodeOf(err error) ErrorCode {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr.Code
	}
	return ErrCodeInternal
}

// HTTPStatus maps an error code to the response status for the API surface.
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case ErrCodeSessionNotFound, ErrCodeSessionNotOwned:
		// Unowned sessions are reported as not found so the API does not
		// leak session existence across principals.
		return http.StatusNotFound
	case ErrCodeSessionStateConflict:
		return http.StatusConflict
	case ErrCodeFetchTimeout, ErrCodeGenerationTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// ==========================
// 2. Error Constructors
// ==========================

// NewFetchFailedError creates a terminal fetch error carrying the last
// failure reason after all attempts were exhausted.
func NewFetchFailedError(url string, attempts int, lastErr error) *StandardError {
	return &StandardError{
		Code:      ErrCodeFetchFailed,
		Message:   "Content fetch failed after retries",
		Details:   lastErr.Error(),
		Retryable: false,
		Metadata:  map[string]interface{}{"url": url, "attempts": attempts},
		Timestamp: time.Now().UTC(),
	}
}

// NewFetchTimeoutError creates a per-attempt timeout error.
func NewFetchTimeoutError(url string) *StandardError {
	return &StandardError{
		Code:      ErrCodeFetchTimeout,
		Message:   "Content fetch timed out",
		Details:   fmt.Sprintf("url: %s", url),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewContentTooShortError rejects near-empty responses that pass transport
// checks but carry no usable content.
func NewContentTooShortError(url string, got, min int) *StandardError {
	return &StandardError{
		Code:      ErrCodeContentTooShort,
		Message:   "Fetched content below minimum length",
		Details:   fmt.Sprintf("url: %s, got %d chars, minimum %d", url, got, min),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewAnnotationFailedError creates a per-page terminal annotation error.
func NewAnnotationFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeAnnotationFailed,
		Message:   "Page annotation failed",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewEvidenceBuildFailedError creates a session-fatal evidence bank error.
func NewEvidenceBuildFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeEvidenceBuildFailed,
		Message:   "Evidence bank construction failed",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewSynthesisFailedError creates a session-fatal synthesis error.
func NewSynthesisFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSynthesisFailed,
		Message:   "Positioning synthesis failed",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewGapAnalysisFailedError creates the non-fatal gap analysis error; the
// session still completes without gap fields.
func NewGapAnalysisFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeGapAnalysisFailed,
		Message:   "Gap analysis failed",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewGenerationFailedError wraps a failure of the generation collaborator.
func NewGenerationFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeGenerationFailed,
		Message:   "Generation request failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewGenerationTimeoutError signals the generation call exceeded its deadline.
func NewGenerationTimeoutError() *StandardError {
	return &StandardError{
		Code:      ErrCodeGenerationTimeout,
		Message:   "Generation request timed out",
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewResponseParseFailedError wraps a decode/schema failure on generator output.
func NewResponseParseFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeResponseParseFailed,
		Message:   "Generator response could not be decoded",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewSessionNotFoundError creates a synchronous rejection for unknown sessions.
func NewSessionNotFoundError(sessionID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSessionNotFound,
		Message:   "Session not found",
		Details:   fmt.Sprintf("sessionId: %s", sessionID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewSessionNotOwnedError rejects a start request from a non-owner before
// any side effects occur.
func NewSessionNotOwnedError(sessionID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSessionNotOwned,
		Message:   "Session does not belong to the caller",
		Details:   fmt.Sprintf("sessionId: %s", sessionID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewSessionStateConflictError rejects a start on a non-pending session.
func NewSessionStateConflictError(sessionID string, status string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSessionStateConflict,
		Message:   "Session is not in a startable state",
		Details:   fmt.Sprintf("sessionId: %s, status: %s", sessionID, status),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}
