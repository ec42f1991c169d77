package apperrors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"stale state", ErrStaleState, true},
		{"wrapped transient", fmt.Errorf("update workflow: %w", ErrTransientStore), true},
		{"unauthorized", ErrUnauthorized, false},
		{"validation", fmt.Errorf("%w: unknown action", ErrValidation), false},
		{"not found", ErrNotFound, false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}
