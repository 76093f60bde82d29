package connectors_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"mangrobe.dev/streamsource/connectors"
)

func TestIsRetryable(t *testing.T) {
	// Regular errors default to retryable
	err := errors.New("some error")
	assert.True(t, connectors.IsRetryable(err))

	retryableErr := connectors.NewRetryableError(errors.New("temporary problem"))
	assert.True(t, connectors.IsRetryable(retryableErr))

	terminalErr := connectors.NewTerminalError(errors.New("stream not found"))
	assert.False(t, connectors.IsRetryable(terminalErr))

	// Wrapped errors maintain retryability
	assert.False(t, connectors.IsRetryable(fmt.Errorf("split T:1: %w", terminalErr)))
}

func TestIsRetryable_JoinedErrors(t *testing.T) {
	retryableErr := connectors.NewRetryableError(errors.New("unavailable"))
	terminalErr := connectors.NewTerminalError(errors.New("invalid cursor"))

	assert.True(t, connectors.IsRetryable(errors.Join(retryableErr, errors.New("plain"))))
	assert.False(t, connectors.IsRetryable(errors.Join(retryableErr, fmt.Errorf("split T:2: %w", terminalErr))),
		"one terminal branch makes the whole error terminal")
}
