package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDescribe(t *testing.T) {
	refused := InvalidStateError{Action: "resume", Current: "active", Allowed: []string{"paused"}}

	tests := []struct {
		name     string
		err      error
		expected Body
	}{
		{
			name: "Invalid state carries current and allowed statuses",
			err:  refused,
			expected: Body{
				Code:    "INVALID_STATE",
				Message: refused.Error(),
				Current: "active",
				Allowed: []string{"paused"},
			},
		},
		{
			name: "Wrapped invalid state is still extracted",
			err:  fmt.Errorf("host action: %w", refused),
			expected: Body{
				Code:    "INVALID_STATE",
				Message: "host action: " + refused.Error(),
				Current: "active",
				Allowed: []string{"paused"},
			},
		},
		{
			name:     "Bare invalid state has no statuses",
			err:      ErrInvalidState,
			expected: Body{Code: "INVALID_STATE", Message: ErrInvalidState.Error()},
		},
		{
			name:     "Wrapped sentinel keeps its message",
			err:      fmt.Errorf("%w: 123456", ErrRoomNotFound),
			expected: Body{Code: "ROOM_NOT_FOUND", Message: ErrRoomNotFound.Error() + ": 123456"},
		},
		{
			name:     "Exhausted code space is unavailable",
			err:      ErrCodeSpaceExhausted,
			expected: Body{Code: "UNAVAILABLE", Message: ErrCodeSpaceExhausted.Error()},
		},
		{
			name:     "Muted player",
			err:      fmt.Errorf("%w: until 12:00", ErrPlayerMuted),
			expected: Body{Code: "PLAYER_MUTED", Message: ErrPlayerMuted.Error() + ": until 12:00"},
		},
		{
			name:     "Unknown error does not leak",
			err:      stderrors.New("dial tcp: connection refused"),
			expected: Body{Code: "INTERNAL", Message: "internal error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			req.Equal(tt.expected, Describe(tt.err), "test=%s", tt.name)
		})
	}
}
