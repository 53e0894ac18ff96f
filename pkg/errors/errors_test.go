package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dirigo-idm/dirigo/pkg/types"
)

func TestDirigoError(t *testing.T) {
	t.Run("NewDirigoError", func(t *testing.T) {
		err := NewDirigoError(types.ErrorTypeValidation, ErrCodeValidation, "test error")

		assert.Equal(t, types.ErrorTypeValidation, err.Type)
		assert.Equal(t, ErrCodeValidation, err.Code)
		assert.Equal(t, "test error", err.Message)
		assert.Nil(t, err.Cause)
		assert.Empty(t, err.Details)
		assert.Empty(t, err.StackTrace)
		assert.Empty(t, err.RequestID)
	})

	t.Run("NewDirigoErrorWithCause", func(t *testing.T) {
		cause := errors.New("underlying error")
		err := NewDirigoErrorWithCause(types.ErrorTypeInternal, ErrCodeInternal, "wrapped error", cause)

		assert.Equal(t, types.ErrorTypeInternal, err.Type)
		assert.Equal(t, ErrCodeInternal, err.Code)
		assert.Equal(t, "wrapped error", err.Message)
		assert.Equal(t, cause, err.Cause)
	})

	t.Run("Error", func(t *testing.T) {
		err := NewDirigoError(types.ErrorTypeValidation, ErrCodeValidation, "test error")
		expected := "[VALIDATION_ERROR] validation: test error"
		assert.Equal(t, expected, err.Error())

		// Test with cause
		cause := errors.New("underlying error")
		errWithCause := NewDirigoErrorWithCause(types.ErrorTypeInternal, ErrCodeInternal, "wrapped error", cause)
		expectedWithCause := "[INTERNAL_ERROR] internal: wrapped error (caused by: underlying error)"
		assert.Equal(t, expectedWithCause, errWithCause.Error())
	})

	t.Run("Unwrap", func(t *testing.T) {
		cause := errors.New("underlying error")
		err := NewDirigoErrorWithCause(types.ErrorTypeInternal, ErrCodeInternal, "wrapped error", cause)

		unwrapped := err.Unwrap()
		assert.Equal(t, cause, unwrapped)

		errWithoutCause := NewDirigoError(types.ErrorTypeValidation, ErrCodeValidation, "test error")
		assert.Nil(t, errWithoutCause.Unwrap())
	})

	t.Run("WithDetail", func(t *testing.T) {
		err := NewDirigoError(types.ErrorTypeValidation, ErrCodeValidation, "test error")

		result := err.WithDetail("field", "uid")
		assert.Same(t, err, result) // Should return the same instance
		assert.Equal(t, "uid", err.Details["field"])

		err.WithDetail("value", 123).WithDetail("required", true)
		assert.Equal(t, 123, err.Details["value"])
		assert.Equal(t, true, err.Details["required"])
	})

	t.Run("WithRequestID", func(t *testing.T) {
		err := NewDirigoError(types.ErrorTypeValidation, ErrCodeValidation, "test error")

		result := err.WithRequestID("req-123")
		assert.Same(t, err, result)
		assert.Equal(t, "req-123", err.RequestID)
	})

	t.Run("ToTypes", func(t *testing.T) {
		err := NewDirigoError(types.ErrorTypeValidation, ErrCodeValidation, "test error").
			WithDetail("field", "uid")

		converted := err.ToTypes()
		assert.Equal(t, types.ErrorTypeValidation, converted.Type)
		assert.Equal(t, "test error", converted.Message)
		assert.Equal(t, string(ErrCodeValidation), converted.Code)
		assert.Equal(t, "uid", converted.Details["field"])
	})
}

func TestAllocationErrors(t *testing.T) {
	t.Run("IDOutOfRange", func(t *testing.T) {
		err := NewIDOutOfRangeError(999)
		assert.Equal(t, types.ErrorTypeAllocation, err.Type)
		assert.Equal(t, ErrCodeIDOutOfRange, err.Code)
		assert.Equal(t, 999, err.Details["id"])
	})

	t.Run("IDConflict", func(t *testing.T) {
		err := NewIDConflictError(2001)
		assert.Equal(t, types.ErrorTypeAllocation, err.Type)
		assert.Equal(t, ErrCodeIDConflict, err.Code)
		assert.Equal(t, 2001, err.Details["id"])
	})
}

func TestResolutionErrors(t *testing.T) {
	err := NewGroupNotFoundError(3000)
	assert.Equal(t, types.ErrorTypeResolution, err.Type)
	assert.Equal(t, ErrCodeGroupNotFound, err.Code)
	assert.Equal(t, 3000, err.Details["gid_number"])

	modeErr := NewInvalidGroupModeError("bogus")
	assert.Equal(t, ErrCodeInvalidGroupMode, modeErr.Code)
	assert.Equal(t, "bogus", modeErr.Details["mode"])
}

func TestLifecycleErrors(t *testing.T) {
	immutable := NewImmutableFieldError("uid_number")
	assert.Equal(t, types.ErrorTypeLifecycle, immutable.Type)
	assert.Equal(t, ErrCodeImmutableField, immutable.Code)
	assert.Equal(t, "uid_number", immutable.Details["field"])

	notActive := NewNotActiveError("jdoe")
	assert.Equal(t, ErrCodeNotActive, notActive.Code)
	assert.Equal(t, "jdoe", notActive.Details["uid"])

	alreadyActive := NewAlreadyActiveError("jdoe")
	assert.Equal(t, ErrCodeAlreadyActive, alreadyActive.Code)
}

func TestTrustErrors(t *testing.T) {
	err := NewHostsRequiredError()
	assert.Equal(t, types.ErrorTypeValidation, err.Type)
	assert.Equal(t, ErrCodeHostsRequired, err.Code)
}

func TestHelpers(t *testing.T) {
	t.Run("IsDirigoError", func(t *testing.T) {
		assert.True(t, IsDirigoError(NewValidationError("x")))
		assert.False(t, IsDirigoError(errors.New("plain")))
	})

	t.Run("GetDirigoError", func(t *testing.T) {
		err := NewValidationError("x")
		assert.Same(t, err, GetDirigoError(err))
		assert.Nil(t, GetDirigoError(errors.New("plain")))
	})

	t.Run("HasCode", func(t *testing.T) {
		assert.True(t, HasCode(NewIDConflictError(2001), ErrCodeIDConflict))
		assert.False(t, HasCode(NewIDConflictError(2001), ErrCodeIDOutOfRange))
		assert.False(t, HasCode(errors.New("plain"), ErrCodeIDConflict))
	})

	t.Run("WrapError", func(t *testing.T) {
		cause := errors.New("socket closed")
		err := WrapError(cause, types.ErrorTypeExternal, ErrCodeDirectoryError, "directory write failed")
		require.NotNil(t, err)
		assert.Equal(t, cause, err.Cause)
		assert.Equal(t, ErrCodeDirectoryError, err.Code)
	})
}

func TestErrorList(t *testing.T) {
	el := NewErrorList()
	assert.False(t, el.HasErrors())
	assert.Nil(t, el.ToError())

	el.Add(NewValidationError("first"))
	el.Add(NewHostsRequiredError())
	assert.True(t, el.HasErrors())
	require.NotNil(t, el.ToError())
	assert.Contains(t, el.Error(), "first")
	assert.Contains(t, el.Error(), "; ")

	collected := Collect(NewValidationError("a"), nil, NewValidationError("b"))
	assert.Len(t, collected.Errors, 2)
}
