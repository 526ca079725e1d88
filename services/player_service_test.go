package services

import (
	"context"
	"quiz-lab/domain"
	"quiz-lab/domain/event"
	"quiz-lab/errors"
	"quiz-lab/runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPlayerService_Join(t *testing.T) {
	f := newFixture(t)
	code := f.room(t, domain.DefaultSettings())
	ctx := context.Background()

	t.Run("should return the room state to the newcomer", func(t *testing.T) {
		req := require.New(t)
		f.filter.EXPECT().Censor("Alice").Return("Alice")

		snap, err := f.players.Join(ctx, code, alice, "conn-1")

		req.NoError(err)
		req.Len(snap.Players, 2)
		req.Equal(1, f.sent.count(event.PlayerJoined))
	})

	t.Run("should refuse an empty or long name", func(t *testing.T) {
		req := require.New(t)
		_, err := f.players.Join(ctx, code, domain.Identity{ID: "x", Name: "   "}, "conn")
		req.ErrorIs(err, errors.ErrInvalidInput)
		_, err = f.players.Join(ctx, code, domain.Identity{ID: "x", Name: strings.Repeat("a", 33)}, "conn")
		req.ErrorIs(err, errors.ErrInvalidInput)
	})

	t.Run("should refuse an unknown room", func(t *testing.T) {
		req := require.New(t)
		f.filter.EXPECT().Censor("Bob").Return("Bob")
		_, err := f.players.Join(ctx, "999999", bob, "conn")
		req.ErrorIs(err, errors.ErrRoomNotFound)
	})
}

func TestPlayerService_SubmitAnswer(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	code := f.started(t)
	ctx := context.Background()

	answer, err := f.players.SubmitAnswer(ctx, code, alice, AnswerRequest{QuestionIndex: 0, Option: 1})
	req.NoError(err)
	req.True(answer.Correct)
	req.Equal(100, answer.Points)

	_, err = f.players.SubmitAnswer(ctx, code, alice, AnswerRequest{QuestionIndex: 0, Option: 1})
	req.ErrorIs(err, errors.ErrAlreadyAnswered)

	_, err = f.players.SubmitAnswer(ctx, code, host, AnswerRequest{QuestionIndex: 0, Option: 1})
	req.ErrorIs(err, errors.ErrNotAuthorized)

	req.Equal(0, f.sent.count(event.QuestionEnded))

	// When the last connected player answers, the question closes early
	answer, err = f.players.SubmitAnswer(ctx, code, bob, AnswerRequest{QuestionIndex: 0, Option: 0})
	req.NoError(err)
	req.False(answer.Correct)
	req.Equal(0, answer.Points)

	req.Equal(2, f.sent.count(event.AnswerReceived))
	req.Equal(1, f.sent.count(event.QuestionEnded))
	req.False(f.timers.Pending(runtime.TimerKey{Room: code, Purpose: runtime.PurposeQuestionTick}))

	f.sent.reset()
	f.clock.Advance(time.Minute)
	req.Equal(0, f.sent.count(event.TimerTick))

	snap := f.snapshot(t, code)
	req.Equal(domain.PhaseReview, snap.Phase)
	req.Equal(100, snap.Players[1].Score)

	// Answers to a closed question are refused
	_, err = f.players.SubmitAnswer(ctx, code, alice, AnswerRequest{QuestionIndex: 0, Option: 1})
	req.ErrorIs(err, errors.ErrInvalidState)
}

func TestPlayerService_SubmitAnswer_SpeedScoring(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	settings := domain.DefaultSettings()
	settings.ScoringMode = domain.ScoringSpeed
	code := f.room(t, settings, alice, bob)
	ctx := context.Background()
	_, err := f.hosts.StartGame(ctx, code, host)
	req.NoError(err)

	// Given half of the time has elapsed
	f.clock.Advance(15 * time.Second)

	answer, err := f.players.SubmitAnswer(ctx, code, alice, AnswerRequest{QuestionIndex: 0, Option: 1})

	req.NoError(err)
	req.Equal(75, answer.Points)
}

func TestPlayerService_Leave_HostGraceAbandonsGame(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	code := f.started(t)
	ctx := context.Background()

	req.NoError(f.players.Leave(ctx, code, host))

	disconnected := f.sent.payloads(event.HostDisconnected)
	req.Len(disconnected, 1)
	req.Equal(60, disconnected[0].(domain.HostConnectionPayload).GraceSeconds)

	// When the grace period elapses without a reconnect
	f.clock.Advance(60 * time.Second)

	// Then the game is abandoned and the room kept for the retention window
	req.Equal(1, f.sent.count(event.GameAbandoned))
	req.Equal(domain.StatusAbandoned, f.snapshot(t, code).Status)

	f.clock.Advance(5 * time.Minute)

	req.Equal(1, f.sent.count(event.RoomClosed))
	req.Equal(0, f.registry.Len())
	req.Equal(0, f.timers.Len())
	_, err := f.game.Snapshot(code)
	req.ErrorIs(err, errors.ErrRoomNotFound)
}

func TestPlayerService_Leave_HostReconnectsInTime(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	code := f.started(t)
	ctx := context.Background()

	req.NoError(f.players.Leave(ctx, code, host))
	f.clock.Advance(30 * time.Second)

	f.filter.EXPECT().Censor(host.Name).Return(host.Name)
	_, err := f.players.Join(ctx, code, host, "conn-2")
	req.NoError(err)
	req.Equal(1, f.sent.count(event.HostReconnected))

	f.clock.Advance(time.Hour)

	req.Equal(0, f.sent.count(event.GameAbandoned))
	req.Equal(domain.StatusActive, f.snapshot(t, code).Status)
}

func TestPlayerService_Leave_HostInLobby(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	code := f.room(t, domain.DefaultSettings(), alice)
	ctx := context.Background()

	req.NoError(f.players.Leave(ctx, code, host))
	f.clock.Advance(time.Hour)

	// A waiting room is left to the cleanup sweep
	req.Equal(0, f.sent.count(event.GameAbandoned))
	req.Equal(domain.StatusWaiting, f.snapshot(t, code).Status)
	disconnected := f.sent.payloads(event.HostDisconnected)
	req.Len(disconnected, 1)
	req.Equal(0, disconnected[0].(domain.HostConnectionPayload).GraceSeconds)
}

func TestPlayerService_Chat_IsCensored(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	code := f.room(t, domain.DefaultSettings(), alice)
	ctx := context.Background()

	f.filter.EXPECT().Censor("what the heck").Return("what the ****")

	req.NoError(f.players.Chat(ctx, code, alice, "  what the heck "))

	messages := f.sent.payloads(event.ChatMessage)
	req.Len(messages, 1)
	chat := messages[0].(domain.ChatPayload)
	req.Equal("what the ****", chat.Text)
	req.Equal("Alice", chat.Name)

	req.ErrorIs(f.players.Chat(ctx, code, alice, strings.Repeat("x", 501)), errors.ErrInvalidInput)
}
