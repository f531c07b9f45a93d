package errors_test

import (
	stderrors "errors"
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/paveg/prepkit/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrepError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *errors.PrepError
		expected string
	}{
		{
			name:     "Error with column",
			err:      errors.NewColumnNotFoundError("StringIndex", "color"),
			expected: "StringIndex operation failed on column 'color': column does not exist",
		},
		{
			name:     "Error without column",
			err:      errors.NewInvalidInputError("PrepareToModel", "target must not be empty"),
			expected: "PrepareToModel operation failed: target must not be empty",
		},
		{
			name: "Error with cause",
			err: &errors.PrepError{
				Op:      "Transform",
				Message: "filtering rows",
				Cause:   stderrors.New("boom"),
			},
			expected: "Transform operation failed: filtering rows: boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestPrepError_Is(t *testing.T) {
	cause := stderrors.New("underlying error")
	err := &errors.PrepError{Op: "Fit", Message: "failed", Kind: errors.ErrNullValue, Cause: cause}

	assert.ErrorIs(t, err, errors.ErrNullValue)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, errors.ErrSchemaMismatch)

	var prepErr *errors.PrepError
	wrapped := stderrors.Join(stderrors.New("context"), err)
	require.ErrorAs(t, wrapped, &prepErr)
	assert.Equal(t, "Fit", prepErr.Op)
}

func TestNewSchemaMismatchError(t *testing.T) {
	err := errors.NewSchemaMismatchError("New", []string{"column 0: size int64 != size string"})

	assert.ErrorIs(t, err, errors.ErrSchemaMismatch)
	assert.Contains(t, err.Error(), "size int64 != size string")
}

func TestNewNotFactorError(t *testing.T) {
	t.Run("nil for no columns", func(t *testing.T) {
		assert.NoError(t, errors.NewNotFactorError("StripColumns", nil))
	})

	t.Run("aggregates every offending column", func(t *testing.T) {
		err := errors.NewNotFactorError("StripColumns", []string{"size", "price"})
		require.Error(t, err)
		assert.ErrorIs(t, err, errors.ErrNotFactor)

		var merr *multierror.Error
		require.ErrorAs(t, err, &merr)
		assert.Len(t, merr.Errors, 2)
		assert.Contains(t, err.Error(), "'size'")
		assert.Contains(t, err.Error(), "'price'")
	})
}

func TestNewInstanceFailedError(t *testing.T) {
	cause := errors.NewNullValueError("AssembleFeatures", "age", 3)
	err := errors.NewInstanceFailedError("Factors", cause)

	assert.ErrorIs(t, err, errors.ErrInstanceFailed)
	assert.ErrorIs(t, err, errors.ErrNullValue)
	assert.Contains(t, err.Error(), "null value at row 3")
}
