package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasCode(t *testing.T) {
	t.Run("direct error", func(t *testing.T) {
		err := New(CodeNotFound, "session not found")
		assert.True(t, HasCode(err, CodeNotFound))
		assert.False(t, HasCode(err, CodeConflict))
	})

	t.Run("wrapped by fmt", func(t *testing.T) {
		err := fmt.Errorf("lookup: %w", New(CodeConflict, "already admitted"))
		assert.True(t, HasCode(err, CodeConflict))
	})

	t.Run("plain error has no code", func(t *testing.T) {
		assert.False(t, HasCode(errors.New("boom"), CodeInternal))
		assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
	})
}

func TestWrap(t *testing.T) {
	cause := errors.New("redis down")
	err := Wrap(cause, CodeInternal, "failed to load session")

	require.ErrorIs(t, err, cause)
	assert.Equal(t, CodeInternal, CodeOf(err))
	assert.Equal(t, "failed to load session", MessageOf(err))
	assert.Contains(t, err.Error(), "redis down")
	assert.Nil(t, Wrap(nil, CodeInternal, "ignored"))
}

func TestErrorsIsMatchesCodeAndMessage(t *testing.T) {
	err := New(CodeUnauthorized, "exam pass has expired")
	require.ErrorIs(t, err, New(CodeUnauthorized, "exam pass has expired"))
	assert.NotErrorIs(t, err, New(CodeUnauthorized, "invalid exam pass"))
}
