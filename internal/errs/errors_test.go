package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_MessageIncludesContextAndCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(cause, ErrStorage, "save revisions").
		WithContext("key", "ch1").
		WithContext("count", 3)

	msg := err.Error()
	assert.Equal(t, "[Storage] save revisions | context: count=3, key=ch1 | cause: disk full", msg)
	assert.ErrorIs(t, err, cause)
}

func TestIsErrorType_ThroughWrapping(t *testing.T) {
	base := New(ErrConfig, "unknown provider")
	wrapped := fmt.Errorf("build job: %w", base)

	assert.True(t, IsErrorType(wrapped, ErrConfig))
	assert.False(t, IsErrorType(wrapped, ErrProvider))
	assert.Equal(t, ErrConfig, TypeOf(wrapped))
	assert.Equal(t, ErrUnknown, TypeOf(errors.New("plain")))
}

func TestSafeExecute_RecoversPanic(t *testing.T) {
	err := SafeExecute(func() error {
		panic("boom")
	})
	require.Error(t, err)
	assert.True(t, IsErrorType(err, ErrUnknown))
	assert.Contains(t, err.Error(), "boom")

	assert.NoError(t, SafeExecute(func() error { return nil }))
}

func TestAdvice_PerType(t *testing.T) {
	assert.Contains(t, Advice(New(ErrProvider, "x")), "provider")
	assert.Contains(t, Advice(New(ErrStorage, "x")), "writable")
	assert.Contains(t, Advice(errors.New("x")), "Review")
}
