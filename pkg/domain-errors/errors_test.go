package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type kindError struct{ code Code }

func (k kindError) Error() string    { return "kind" }
func (k kindError) DomainCode() Code { return k.code }

func TestCodeOf(t *testing.T) {
	t.Run("wrapped domain error keeps its code", func(t *testing.T) {
		err := fmt.Errorf("outer: %w", New(CodeNotFound, "missing"))
		assert.Equal(t, CodeNotFound, CodeOf(err))
		assert.True(t, HasCode(err, CodeNotFound))
	})

	t.Run("component error maps through Coder", func(t *testing.T) {
		err := fmt.Errorf("outer: %w", kindError{code: CodeLimitExceeded})
		assert.Equal(t, CodeLimitExceeded, CodeOf(err))
	})

	t.Run("plain errors are internal", func(t *testing.T) {
		assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
		assert.False(t, HasCode(nil, CodeInternal))
	})
}

func TestErrorIs(t *testing.T) {
	err := Wrap(errors.New("cause"), CodeUnauthorized, "invalid token")
	require.ErrorIs(t, err, New(CodeUnauthorized, "invalid token"))
	require.ErrorIs(t, err, &Error{Code: CodeUnauthorized})
	require.NotErrorIs(t, err, New(CodeUnauthorized, "token has expired"))
	assert.Equal(t, "invalid token: cause", err.Error())
}

func TestToHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, ToHTTPStatus(CodeValidation))
	assert.Equal(t, http.StatusUnprocessableEntity, ToHTTPStatus(CodeLimitExceeded))
	assert.Equal(t, http.StatusServiceUnavailable, ToHTTPStatus(CodeUnavailable))
	assert.Equal(t, http.StatusInternalServerError, ToHTTPStatus(CodeInvariantViolation))
}
