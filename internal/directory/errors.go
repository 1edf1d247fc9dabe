package directory

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ErrorCode categorizes directory errors.
type ErrorCode string

const (
	// ErrCodeAuth indicates credential acquisition failed. Aborts the operation.
	ErrCodeAuth ErrorCode = "AUTH"

	// ErrCodeFetch indicates a pagination failure. No partial roster is returned.
	ErrCodeFetch ErrorCode = "FETCH"

	// ErrCodeConfig indicates missing or invalid configuration.
	ErrCodeConfig ErrorCode = "CONFIG"

	// ErrCodeThrottled indicates the service asked the caller to slow down.
	ErrCodeThrottled ErrorCode = "THROTTLED"

	// ErrCodeValidation indicates the service rejected a create payload.
	ErrCodeValidation ErrorCode = "VALIDATION"

	// ErrCodeMutation indicates a per-item delete/create failure.
	ErrCodeMutation ErrorCode = "MUTATION"
)

// Error is the error type shared by every rollcall component.
//
// RecordID is set for per-item failures so reports can name the record.
type Error struct {
	Code     ErrorCode
	Message  string
	RecordID string
	Err      error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.RecordID != "" {
		msg = fmt.Sprintf("%s (record=%s)", msg, e.RecordID)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewAuthError wraps a credential acquisition failure.
func NewAuthError(message string, err error) *Error {
	return &Error{Code: ErrCodeAuth, Message: message, Err: err}
}

// NewFetchError wraps a pagination failure.
func NewFetchError(message string, err error) *Error {
	return &Error{Code: ErrCodeFetch, Message: message, Err: err}
}

// NewConfigError reports a missing or invalid configuration value.
func NewConfigError(format string, args ...any) *Error {
	return &Error{Code: ErrCodeConfig, Message: fmt.Sprintf(format, args...)}
}

// NewMutationError wraps a per-item failure for the given record.
func NewMutationError(recordID string, err error) *Error {
	return &Error{Code: ErrCodeMutation, Message: "mutation failed", RecordID: recordID, Err: err}
}

// NewValidationError wraps a rejected create payload for the given record.
func NewValidationError(recordID string, err error) *Error {
	return &Error{Code: ErrCodeValidation, Message: "payload rejected", RecordID: recordID, Err: err}
}

// NewThrottleError reports a record that was still throttled when its
// attempt budget ran out.
func NewThrottleError(recordID string, err error) *Error {
	return &Error{Code: ErrCodeThrottled, Message: "retries exhausted", RecordID: recordID, Err: err}
}

func hasCode(err error, code ErrorCode) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// IsAuthError reports whether err is an AUTH error.
func IsAuthError(err error) bool { return hasCode(err, ErrCodeAuth) }

// IsFetchError reports whether err is a FETCH error.
func IsFetchError(err error) bool { return hasCode(err, ErrCodeFetch) }

// IsConfigError reports whether err is a CONFIG error.
func IsConfigError(err error) bool { return hasCode(err, ErrCodeConfig) }

// IsMutationError reports whether err is a MUTATION error.
func IsMutationError(err error) bool { return hasCode(err, ErrCodeMutation) }

// IsThrottled reports whether err carries a throttling signal, either as a
// THROTTLED Error or as an APIError with status 429.
func IsThrottled(err error) bool {
	if hasCode(err, ErrCodeThrottled) {
		return true
	}
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests
}

// RetryAfterHint returns the Retry-After hint carried by err. ok is false
// when the service sent none.
func RetryAfterHint(err error) (d time.Duration, ok bool) {
	var apiErr *APIError
	if !errors.As(err, &apiErr) || !apiErr.HasRetryAfter {
		return 0, false
	}
	return apiErr.RetryAfter, true
}

// IsValidationError reports whether err is a create-payload rejection.
func IsValidationError(err error) bool {
	if hasCode(err, ErrCodeValidation) {
		return true
	}
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusBadRequest
}

// IsPasswordStrength reports whether err is the one recoverable validation
// failure: the service rejected the password as too weak.
func IsPasswordStrength(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return strings.Contains(apiErr.Message, passwordStrengthMarker) ||
		strings.Contains(apiErr.ErrorCode, passwordStrengthMarker)
}

const passwordStrengthMarker = "PasswordStrengthError"

// APIError is a structured error response from the directory API.
type APIError struct {
	StatusCode int    `json:"statusCode"`
	Title      string `json:"error"`
	Message    string `json:"message"`
	ErrorCode  string `json:"errorCode,omitempty"`

	// RetryAfter is the service's Retry-After hint. HasRetryAfter tells
	// an explicit zero apart from an absent header.
	RetryAfter    time.Duration `json:"-"`
	HasRetryAfter bool          `json:"-"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("directory API returned %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("directory API returned %d: %s", e.StatusCode, e.Message)
}
