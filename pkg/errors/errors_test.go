package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWrapKeepsCause(t *testing.T) {
	cause := stderrors.New("connection reset")
	err := Wrap(CodeInternal, "failed to fetch user", cause)

	require.Equal(t, "failed to fetch user: connection reset", err.Error())
	require.ErrorIs(t, err, cause)
	require.True(t, IsCode(err, CodeInternal))
	require.False(t, IsCode(err, CodeUnauthorized))
}

func TestCodeOfAndMessageOf(t *testing.T) {
	wrapped := fmt.Errorf("login: %w", Wrap(CodeForbidden, "account disabled", nil))
	require.Equal(t, CodeForbidden, CodeOf(wrapped))
	require.Equal(t, "account disabled", MessageOf(wrapped))

	plain := stderrors.New("boom")
	require.Equal(t, CodeInternal, CodeOf(plain))
	require.Empty(t, MessageOf(plain))
}
