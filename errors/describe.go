package errors

import stderrors "errors"

// Body is the user facing rendering of an error, shared by transports.
type Body struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Current string   `json:"current,omitempty"`
	Allowed []string `json:"allowed,omitempty"`
}

var codes = []struct {
	err  error
	code string
}{
	{ErrRoomNotFound, "ROOM_NOT_FOUND"},
	{ErrPlayerNotFound, "PLAYER_NOT_FOUND"},
	{ErrNotAuthorized, "NOT_AUTHORIZED"},
	{ErrInvalidToken, "INVALID_TOKEN"},
	{ErrInvalidState, "INVALID_STATE"},
	{ErrRoomFull, "ROOM_FULL"},
	{ErrPlayerKicked, "PLAYER_KICKED"},
	{ErrPlayerMuted, "PLAYER_MUTED"},
	{ErrAlreadyAnswered, "ALREADY_ANSWERED"},
	{ErrInvalidInput, "INVALID_INPUT"},
	{ErrCodeSpaceExhausted, "UNAVAILABLE"},
}

// Describe classifies err. Unknown errors are reported as INTERNAL without
// leaking their message.
func Describe(err error) Body {
	for _, c := range codes {
		if stderrors.Is(err, c.err) {
			body := Body{Code: c.code, Message: err.Error()}
			var state InvalidStateError
			if stderrors.As(err, &state) {
				body.Current = state.Current
				body.Allowed = state.Allowed
			}
			return body
		}
	}
	return Body{Code: "INTERNAL", Message: "internal error"}
}
