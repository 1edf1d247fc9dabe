package engine

import (
	"errors"
	"fmt"
)

// AttemptsExceededError is returned when a task keeps being throttled until
// its attempt budget runs out. The task ends abandoned; the batch goes on.
type AttemptsExceededError struct {
	RecordKey string // Record id (delete) or email (create)
	Attempts  int    // Attempts made
	Limit     int    // Maximum allowed attempts
}

// Error implements the error interface.
func (e *AttemptsExceededError) Error() string {
	return fmt.Sprintf("%s still throttled after %d attempts (limit %d)", e.RecordKey, e.Attempts, e.Limit)
}

// IsAttemptsExceeded returns true if err is an AttemptsExceededError.
// Uses errors.As to handle wrapped errors.
func IsAttemptsExceeded(err error) bool {
	var ae *AttemptsExceededError
	return errors.As(err, &ae)
}
