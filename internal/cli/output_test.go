package cli

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExitError(t *testing.T) {
	err := NewExitError(ExitCommandError, "File not found: x.csv")
	assert.Equal(t, "File not found: x.csv", err.Error())
	assert.Nil(t, errors.Unwrap(err))

	cause := errors.New("boom")
	wrapped := WrapExitError(ExitFailure, "could not write results table", cause)
	assert.Equal(t, "could not write results table: boom", wrapped.Error())
	assert.ErrorIs(t, wrapped, cause)
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "usage")))
	assert.Equal(t, ExitCommandError, GetExitCode(fmt.Errorf("outer: %w", NewExitError(ExitCommandError, "usage"))))
}
