// Package errors provides standardized error types for preprocessing operations.
// PrepError carries operation and column context; the sentinel kinds below let
// callers branch with errors.Is regardless of the wrapping in between.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// Error kinds matched with errors.Is.
var (
	ErrSchemaMismatch  = stderrors.New("schema mismatch")
	ErrNotFactor       = stderrors.New("column is not a factor")
	ErrColumnNotFound  = stderrors.New("column does not exist")
	ErrUnsupportedType = stderrors.New("unsupported type")
	ErrNullValue       = stderrors.New("null value")
	ErrUnseenLabel     = stderrors.New("unseen label")
	ErrInvalidInput    = stderrors.New("invalid input")
	ErrInstanceFailed  = stderrors.New("preprocessor failed earlier and must be rebuilt")
)

// PrepError represents a failed operation on a dataset or column.
type PrepError struct {
	Op      string // Operation name (e.g., "StringIndex", "AssembleFeatures")
	Column  string // Column name if applicable
	Message string // Human-readable error description
	Kind    error  // One of the Err* kinds above
	Cause   error  // Underlying error cause
}

// Error implements the error interface
func (e *PrepError) Error() string {
	msg := e.Message
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	if e.Column != "" {
		return fmt.Sprintf("%s operation failed on column '%s': %s", e.Op, e.Column, msg)
	}
	return fmt.Sprintf("%s operation failed: %s", e.Op, msg)
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *PrepError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	return errs
}

// NewSchemaMismatchError reports differences between the train and test schemas.
func NewSchemaMismatchError(op string, diffs []string) *PrepError {
	return &PrepError{
		Op:      op,
		Message: "train and test datasets must have the same schema (" + strings.Join(diffs, "; ") + ")",
		Kind:    ErrSchemaMismatch,
	}
}

// NewNotFactorError aggregates one error per column that is not a factor.
// It returns nil when columns is empty.
func NewNotFactorError(op string, columns []string) error {
	var merr *multierror.Error
	for _, column := range columns {
		merr = multierror.Append(merr, &PrepError{
			Op:      op,
			Column:  column,
			Message: "column is not a factor",
			Kind:    ErrNotFactor,
		})
	}
	return merr.ErrorOrNil()
}

// NewColumnNotFoundError creates an error for operations on non-existent columns
func NewColumnNotFoundError(op, column string) *PrepError {
	return &PrepError{
		Op:      op,
		Column:  column,
		Message: "column does not exist",
		Kind:    ErrColumnNotFound,
	}
}

// NewUnsupportedTypeError creates an error for columns of a type the operation cannot handle
func NewUnsupportedTypeError(op, column, typeName string) *PrepError {
	return &PrepError{
		Op:      op,
		Column:  column,
		Message: fmt.Sprintf("unsupported type: %s", typeName),
		Kind:    ErrUnsupportedType,
	}
}

// NewNullValueError creates an error for a null found where a value is required
func NewNullValueError(op, column string, row int) *PrepError {
	return &PrepError{
		Op:      op,
		Column:  column,
		Message: fmt.Sprintf("null value at row %d", row),
		Kind:    ErrNullValue,
	}
}

// NewNaNValueError creates an error for a NaN found where a value is required.
// It is reported as ErrNullValue since NaN marks a missing measurement.
func NewNaNValueError(op, column string, row int) *PrepError {
	return &PrepError{
		Op:      op,
		Column:  column,
		Message: fmt.Sprintf("NaN value at row %d", row),
		Kind:    ErrNullValue,
	}
}

// NewUnseenLabelError creates an error for a label that was not present when fitting
func NewUnseenLabelError(op, column, label string) *PrepError {
	return &PrepError{
		Op:      op,
		Column:  column,
		Message: fmt.Sprintf("unseen label: %q", label),
		Kind:    ErrUnseenLabel,
	}
}

// NewInvalidInputError creates an error for invalid operation inputs
func NewInvalidInputError(op, message string) *PrepError {
	return &PrepError{
		Op:      op,
		Message: message,
		Kind:    ErrInvalidInput,
	}
}

// NewInstanceFailedError wraps the failure that poisoned a preprocessor.
func NewInstanceFailedError(op string, cause error) *PrepError {
	return &PrepError{
		Op:      op,
		Message: "preprocessor is unusable after a previous failure",
		Kind:    ErrInstanceFailed,
		Cause:   cause,
	}
}
