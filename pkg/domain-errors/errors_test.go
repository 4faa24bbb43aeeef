package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodedErrors(t *testing.T) {
	t.Run("has code through fmt wrapping", func(t *testing.T) {
		err := fmt.Errorf("outer: %w", New(CodeInvalidState, "vcon is signed"))
		assert.True(t, HasCode(err, CodeInvalidState))
		assert.False(t, HasCode(err, CodeNotFound))
		assert.Equal(t, CodeInvalidState, CodeOf(err))
	})

	t.Run("plain errors map to internal", func(t *testing.T) {
		assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
		assert.False(t, Is(errors.New("boom"), CodeInternal))
	})

	t.Run("wrap keeps the cause", func(t *testing.T) {
		cause := errors.New("unexpected end of JSON input")
		err := Wrap(cause, CodeInvalidInput, "invalid JSON format")
		require.ErrorIs(t, err, cause)
		assert.Equal(t, "invalid JSON format: unexpected end of JSON input", err.Error())
		assert.Nil(t, Wrap(nil, CodeInternal, "ignored"))
	})

	t.Run("errors.Is compares code and message", func(t *testing.T) {
		err := New(CodeNotFound, "vcon not found")
		require.ErrorIs(t, err, New(CodeNotFound, "vcon not found"))
		assert.NotErrorIs(t, err, New(CodeNotFound, "other"))
	})
}
