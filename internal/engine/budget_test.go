package engine

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAttemptsExceededError_Error(t *testing.T) {
	err := &AttemptsExceededError{RecordKey: "auth0|7", Attempts: 5, Limit: 5}
	assert.Equal(t, "auth0|7 still throttled after 5 attempts (limit 5)", err.Error())
}

func TestIsAttemptsExceeded(t *testing.T) {
	base := &AttemptsExceededError{RecordKey: "x", Attempts: 1, Limit: 1}
	wrapped := fmt.Errorf("task: %w", base)

	assert.True(t, IsAttemptsExceeded(base))
	assert.True(t, IsAttemptsExceeded(wrapped))
	assert.False(t, IsAttemptsExceeded(fmt.Errorf("other")))
	assert.False(t, IsAttemptsExceeded(nil))
}
