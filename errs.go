package store

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrKeyAlreadyExists = errors.New("key already exists")
	ErrKeynotFound      = errors.New("key not found")

	// ErrMissingTableMetadata is returned when a record type carries no table descriptor.
	ErrMissingTableMetadata = errors.New("store: missing table metadata")

	// ErrUnsafeMutation is returned when an update or delete is requested without a where condition.
	ErrUnsafeMutation = errors.New("store: update or delete without condition is disabled")

	// ErrInvalidPagination is returned when a page is requested for a statement without any order by clause.
	ErrInvalidPagination = errors.New("store: pagination requires an order by clause")

	ErrNoUpdateColumns = errors.New("store: cannot update without update columns")
	ErrNoPrimaryKey    = errors.New("store: record type has no primary key column")
)

// FieldBindingError reports a single field whose value could not be read or coerced
// into a statement parameter.
type FieldBindingError struct {
	Field  string
	Column string
	Err    error
}

func (e *FieldBindingError) Error() string {
	return fmt.Sprintf("store: cannot bind field %s (column %s): %v", e.Field, e.Column, e.Err)
}

func (e *FieldBindingError) Unwrap() error {
	return e.Err
}

// ExecutionError wraps a failure reported by the transport together with the statement
// that caused it.
type ExecutionError struct {
	Query   string
	Params  *Params
	Elapsed time.Duration
	Err     error
}

func (e *ExecutionError) Error() string {
	var sb strings.Builder
	sb.WriteString("store: execution failed")
	if e.Elapsed > 0 {
		sb.WriteString(fmt.Sprintf(" after %s", e.Elapsed))
	}
	sb.WriteString(": ")
	sb.WriteString(e.Err.Error())
	return sb.String()
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrKeyAlreadyExists) hold for unique constraint violations
// reported by any of the supported drivers.
func (e *ExecutionError) Is(target error) bool {
	if target == ErrKeyAlreadyExists {
		return isUniqueViolation(e.Err)
	}
	return false
}

// IsExecutionError reports whether err was produced by the transport.
func IsExecutionError(err error) bool {
	var e *ExecutionError
	return errors.As(err, &e)
}
