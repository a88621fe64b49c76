package errors

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildErrorMessage(t *testing.T) {
	err := New(CategoryValidation, SeverityWarning, "invalid request")
	assert.Equal(t, "validation (warning): invalid request", err.Error())

	cause := stderrors.New("boom")
	wrapped := Wrap(cause, CategoryExecution, SeverityError, "generator invocation failed")
	assert.Equal(t, "execution (error): generator invocation failed: boom", wrapped.Error())
	assert.Equal(t, cause, stderrors.Unwrap(wrapped))
}

func TestCategoryHelpers(t *testing.T) {
	err := InvalidRequest("no glyphs selected")
	assert.True(t, IsCategory(err, CategoryValidation))
	assert.False(t, IsCategory(err, CategoryExecution))
	assert.Equal(t, CategoryValidation, GetCategory(err))

	// Plain errors classify as internal.
	assert.Equal(t, CategoryInternal, GetCategory(stderrors.New("plain")))
	assert.False(t, IsRetryable(stderrors.New("plain")))
}

func TestWithContext(t *testing.T) {
	err := GeneratorFailed("abcd1234", stderrors.New("exit status 1"))
	require.NotNil(t, err.Context)
	assert.Equal(t, "abcd1234", err.Context["fingerprint"])
}
