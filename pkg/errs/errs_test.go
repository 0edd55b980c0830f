package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorsSurviveWrapping(t *testing.T) {
	cause := errors.New("boom")

	tests := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{"validation", NewValidationError("category", "unknown", nil), IsValidation},
		{"not found", NewNotFoundError("task", "t-1"), IsNotFound},
		{"tool", NewToolExecutionError("memory", "recall", cause), IsToolExecution},
		{"completion", NewCompletionError("gpt-4o-mini", "object", cause), IsCompletion},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("outer: %w", tt.err)
			assert.True(t, tt.check(wrapped))
		})
	}
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, "task not found: t-1", NewNotFoundError("task", "t-1").Error())
	assert.Equal(t, "validation failed for category: unknown pair",
		NewValidationError("category", "unknown pair", nil).Error())

	err := NewToolExecutionError("memory", "recall", errors.New("boom"))
	assert.Equal(t, "tool memory (recall) failed: boom", err.Error())
	assert.ErrorIs(t, err, err.Err)
	assert.False(t, IsNotFound(err))
}
