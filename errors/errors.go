package errors

import (
	"fmt"
	"strings"
)

var (
	ErrWorkerPanic        = fmt.Errorf("worker panic")
	ErrRoomNotFound       = fmt.Errorf("room not found")
	ErrPlayerNotFound     = fmt.Errorf("player not found")
	ErrNotAuthorized      = fmt.Errorf("not authorized")
	ErrInvalidState       = fmt.Errorf("invalid state")
	ErrInvalidInput       = fmt.Errorf("invalid input")
	ErrRoomFull           = fmt.Errorf("room is full")
	ErrPlayerKicked       = fmt.Errorf("player has been kicked")
	ErrPlayerMuted        = fmt.Errorf("player is muted")
	ErrAlreadyAnswered    = fmt.Errorf("answer already submitted")
	ErrCodeSpaceExhausted = fmt.Errorf("no room code available")
	ErrInvalidToken       = fmt.Errorf("invalid or expired token")
	ErrEmptyWords         = fmt.Errorf("no words have been found")
)

// InvalidStateError carries the room status at the moment of the refusal
// and the statuses the action accepts.
type InvalidStateError struct {
	Action  string
	Current string
	Allowed []string
}

func (e InvalidStateError) Error() string {
	return fmt.Sprintf("%s: %s not allowed while %s (allowed: %s)",
		ErrInvalidState, e.Action, e.Current, strings.Join(e.Allowed, ", "))
}

func (e InvalidStateError) Is(target error) bool {
	return target == ErrInvalidState
}
