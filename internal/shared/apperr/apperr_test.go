package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"validation", Validation("bad %s", "input"), KindValidation},
		{"wrapped forbidden", fmt.Errorf("post: %w", Forbidden("nope")), KindForbidden},
		{"not found", NotFound("room not found"), KindNotFound},
		{"unavailable", Unavailable(errors.New("dial"), "chatbot unavailable"), KindUnavailable},
		{"too many", TooManyRequests("wait %ds", 30), KindTooManyRequests},
		{"plain error", errors.New("boom"), KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestErrorMessage(t *testing.T) {
	e := Validation("content must be at most %d characters", 2000)
	assert.Equal(t, "content must be at most 2000 characters", e.Error())

	cause := errors.New("connection refused")
	u := Unavailable(cause, "chatbot unavailable")
	assert.Equal(t, "chatbot unavailable", u.Message)
	assert.ErrorIs(t, u, cause)
}

func TestIs(t *testing.T) {
	assert.True(t, Is(Conflict("dup"), KindConflict))
	assert.False(t, Is(nil, KindInternal))
	assert.False(t, Is(NotFound("x"), KindConflict))
}
