package engine

import (
	"errors"
	"fmt"
)

// BatchErrorCode categorizes batch validation failures.
type BatchErrorCode string

const (
	// ErrCodeNoColumn indicates no command column was selected.
	ErrCodeNoColumn BatchErrorCode = "NO_COLUMN"

	// ErrCodeReservedColumn indicates an input column uses a reserved name
	// (command_executed, state or output) and would be overwritten.
	ErrCodeReservedColumn BatchErrorCode = "RESERVED_COLUMN"

	// ErrCodeUnknownColumn indicates the selected command column is not
	// part of the input header.
	ErrCodeUnknownColumn BatchErrorCode = "UNKNOWN_COLUMN"

	// ErrCodeNoResults indicates the batch has no result store.
	ErrCodeNoResults BatchErrorCode = "NO_RESULTS"
)

// BatchError is a setup failure detected before any row runs.
type BatchError struct {
	Code    BatchErrorCode
	Message string
	Column  string
	Row     int // 1-based; 0 when not tied to a row
}

// Error implements the error interface.
func (e *BatchError) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("%s: %s (row %d)", e.Code, e.Message, e.Row)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsReservedColumnError reports whether err is a reserved column collision.
func IsReservedColumnError(err error) bool {
	var be *BatchError
	if errors.As(err, &be) {
		return be.Code == ErrCodeReservedColumn
	}
	return false
}

// NewReservedColumnError creates a BatchError for a reserved column name.
func NewReservedColumnError(column string, row int) *BatchError {
	return &BatchError{
		Code:    ErrCodeReservedColumn,
		Message: fmt.Sprintf("input column %q collides with a reserved result column", column),
		Column:  column,
		Row:     row,
	}
}

// NewUnknownColumnError creates a BatchError for a command column that the
// input does not have.
func NewUnknownColumnError(column string) *BatchError {
	return &BatchError{
		Code:    ErrCodeUnknownColumn,
		Message: fmt.Sprintf("command column %q is not in the input header", column),
		Column:  column,
	}
}
