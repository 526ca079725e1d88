package domain

import (
	stderrors "errors"
	"quiz-lab/domain/event"
	"quiz-lab/errors"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func newTestRoom(total int) *Room {
	return NewRoom("123456", "game-1", "host", "Host", "set-1", total, DefaultSettings(), t0)
}

func events(changes []Change) []string {
	return lo.Map(changes, func(c Change, _ int) string { return c.Event })
}

func TestRoom_NewRoom_SeatsHost(t *testing.T) {
	req := require.New(t)
	room := newTestRoom(3)

	host, ok := room.Player("host")
	req.True(ok)
	req.True(host.IsHost)
	req.True(host.IsConnected)
	req.Equal(StatusWaiting, room.Status)
	req.Equal(PhaseLobby, room.Phase)
	req.Equal(uint64(0), room.Generation())
}

func TestRoom_Start(t *testing.T) {
	t.Run("should open the first question", func(t *testing.T) {
		req := require.New(t)
		room := newTestRoom(3)

		changes, err := room.Start(t0.Add(time.Second))

		req.NoError(err)
		req.Equal([]string{event.GameStarted, event.QuestionStarted}, events(changes))
		req.Equal(StatusActive, room.Status)
		req.Equal(PhaseQuestion, room.Phase)
		req.Equal(0, room.CurrentQuestionIndex)
		req.True(room.Timer.IsRunning)
		req.Equal(30, room.Timer.Remaining)
		req.Equal(uint64(1), room.Generation())
		req.Equal(t0.Add(time.Second), room.StateChangedAt)
	})

	t.Run("should refuse a second start with the current status", func(t *testing.T) {
		req := require.New(t)
		room := newTestRoom(3)
		_, err := room.Start(t0)
		req.NoError(err)

		_, err = room.Start(t0)

		req.ErrorIs(err, errors.ErrInvalidState)
		var state errors.InvalidStateError
		req.True(stderrors.As(err, &state))
		req.Equal("active", state.Current)
		req.Equal([]string{"waiting"}, state.Allowed)
	})

	t.Run("should refuse an empty question set", func(t *testing.T) {
		req := require.New(t)
		room := newTestRoom(0)

		_, err := room.Start(t0)

		req.ErrorIs(err, errors.ErrInvalidInput)
		req.Equal(StatusWaiting, room.Status)
	})
}

func TestRoom_SkipQuestion_CompletesAfterLast(t *testing.T) {
	req := require.New(t)
	room := newTestRoom(3)
	_, err := room.Start(t0)
	req.NoError(err)

	// Given the first two questions are skipped
	for i := 0; i < 2; i++ {
		res, err := room.SkipQuestion("too hard", "host", t0)
		req.NoError(err)
		req.Equal(i, res.SkippedIndex)
		req.Equal(i+1, res.NextIndex)
		req.False(res.Completed)
		req.Equal([]string{event.QuestionSkipped, event.QuestionStarted}, events(res.Changes))
	}

	// When the last one is skipped too
	res, err := room.SkipQuestion("", "host", t0)

	// Then the game is completed and every question is recorded once
	req.NoError(err)
	req.True(res.Completed)
	req.Equal([]string{event.QuestionSkipped, event.GameCompleted}, events(res.Changes))
	req.Equal(StatusCompleted, room.Status)
	req.Equal(PhaseFinished, room.Phase)
	req.Equal([]int{0, 1, 2}, room.SkippedQuestionIndices)

	_, err = room.SkipQuestion("", "host", t0)
	req.ErrorIs(err, errors.ErrInvalidState)
}

func TestRoom_SkipQuestion_WhilePausedStaysPaused(t *testing.T) {
	req := require.New(t)
	room := newTestRoom(3)
	_, err := room.Start(t0)
	req.NoError(err)
	_, err = room.Pause("break", "host", t0)
	req.NoError(err)

	res, err := room.SkipQuestion("", "host", t0)

	req.NoError(err)
	req.False(res.Completed)
	req.Equal(StatusPaused, room.Status)
	req.Equal(1, room.CurrentQuestionIndex)
	req.False(room.Timer.IsRunning)

	// The fresh question timer starts once the countdown completes
	req.NoError(room.BeginResume(t0))
	_, err = room.CompleteResume(t0)
	req.NoError(err)
	req.True(room.Timer.IsRunning)
	req.Equal(30, room.Timer.Remaining)
}

func TestRoom_PauseResume(t *testing.T) {
	req := require.New(t)
	room := newTestRoom(3)
	_, err := room.Start(t0)
	req.NoError(err)
	room.Timer.Tick()

	changes, err := room.Pause("break", "host", t0.Add(time.Minute))
	req.NoError(err)
	req.Equal([]string{event.GamePaused}, events(changes))
	payload := changes[0].Payload.(PausedPayload)
	req.Equal(29, payload.Remaining)
	req.False(room.Timer.IsRunning)

	// Resume is refused unless paused, completing unless resuming
	_, err = room.CompleteResume(t0)
	req.ErrorIs(err, errors.ErrInvalidState)
	req.NoError(room.BeginResume(t0.Add(2 * time.Minute)))
	req.ErrorIs(room.BeginResume(t0.Add(2*time.Minute)), errors.ErrInvalidState)
	req.Equal(StatusResuming, room.Status)

	changes, err = room.CompleteResume(t0.Add(3 * time.Minute))

	req.NoError(err)
	req.Equal([]string{event.GameResumed}, events(changes))
	req.Equal(StatusActive, room.Status)
	req.True(room.Timer.IsRunning)
	req.Equal(29, room.Timer.Remaining)
	req.Equal(2*time.Minute, room.PausedDuration)
	req.True(room.PausedAt.IsZero())
}

func TestRoom_EmergencyStop(t *testing.T) {
	req := require.New(t)
	room := newTestRoom(3)

	_, err := room.EmergencyStop("fire", "host", t0)
	req.ErrorIs(err, errors.ErrInvalidState)

	_, err = room.Start(t0)
	req.NoError(err)
	_, err = room.Pause("", "host", t0)
	req.NoError(err)
	req.NoError(room.BeginResume(t0))

	changes, err := room.EmergencyStop("fire", "host", t0.Add(time.Second))

	req.NoError(err)
	req.Equal([]string{event.GameEmergencyStop}, events(changes))
	req.Equal(StatusStopped, room.Status)
	req.True(room.Status.IsTerminal())
	req.Equal(PhaseFinished, room.Phase)

	_, err = room.CompleteResume(t0)
	req.ErrorIs(err, errors.ErrInvalidState)
}

func TestRoom_AdjustTimer(t *testing.T) {
	req := require.New(t)
	room := newTestRoom(3)
	_, err := room.Start(t0)
	req.NoError(err)

	t.Run("should clamp at zero", func(t *testing.T) {
		req := require.New(t)
		_, err := room.AdjustTimer(-999999, "", "host", t0)
		req.NoError(err)
		req.Equal(0, room.Timer.Remaining)
	})

	t.Run("should grow the total when exceeding it", func(t *testing.T) {
		req := require.New(t)
		changes, err := room.AdjustTimer(45, "bonus", "host", t0)
		req.NoError(err)
		req.Equal(45, room.Timer.Remaining)
		req.Equal(45, room.Timer.Total)
		req.Equal(45, changes[0].Payload.(TimerAdjustedPayload).Remaining)
		req.Len(room.Timer.Adjustments, 2)
	})

	t.Run("should refuse a zero amount", func(t *testing.T) {
		req := require.New(t)
		_, err := room.AdjustTimer(0, "", "host", t0)
		req.ErrorIs(err, errors.ErrInvalidInput)
	})
}

func TestRoom_ResetAndStartTimer(t *testing.T) {
	req := require.New(t)
	room := newTestRoom(3)
	_, err := room.Start(t0)
	req.NoError(err)
	gen := room.Generation()

	_, err = room.ResetTimer(0, "host", t0)
	req.ErrorIs(err, errors.ErrInvalidInput)

	_, err = room.ResetTimer(20, "host", t0)
	req.NoError(err)
	req.False(room.Timer.IsRunning)
	req.Equal(20, room.Timer.Total)
	req.Greater(room.Generation(), gen)

	changes, err := room.StartTimer(t0)
	req.NoError(err)
	req.Equal([]string{event.TimerStarted}, events(changes))
	req.True(room.Timer.IsRunning)

	_, err = room.StartTimer(t0)
	req.ErrorIs(err, errors.ErrInvalidState)
}

func TestRoom_TimerActions_OnlyDuringQuestion(t *testing.T) {
	req := require.New(t)
	room := newTestRoom(3)
	_, err := room.Start(t0)
	req.NoError(err)
	_, err = room.CloseQuestion(t0)
	req.NoError(err)
	gen := room.Generation()

	_, err = room.ResetTimer(10, "host", t0)
	var invalid errors.InvalidStateError
	req.ErrorAs(err, &invalid)
	req.Equal(string(PhaseReview), invalid.Current)
	req.Equal([]string{string(PhaseQuestion)}, invalid.Allowed)

	_, err = room.AdjustTimer(10, "", "host", t0)
	req.ErrorIs(err, errors.ErrInvalidState)

	// A refused action leaves the review callback valid
	req.Equal(gen, room.Generation())
	req.Equal(PhaseReview, room.Phase)
}

func TestRoom_TimerExhausted(t *testing.T) {
	req := require.New(t)
	room := newTestRoom(3)
	_, err := room.Start(t0)
	req.NoError(err)
	req.False(room.TimerExhausted())

	_, err = room.AdjustTimer(-999999, "", "host", t0)
	req.NoError(err)
	req.Equal(0, room.Timer.Remaining)
	req.True(room.TimerExhausted())

	_, err = room.Pause("", "host", t0)
	req.NoError(err)
	req.False(room.TimerExhausted())
}

func TestRoom_Join(t *testing.T) {
	t.Run("should refuse a full room", func(t *testing.T) {
		req := require.New(t)
		settings := DefaultSettings()
		settings.MaxPlayers = 2
		room := NewRoom("111111", "g", "host", "Host", "set", 3, settings, t0)

		_, err := room.Join("alice", "Alice", t0)
		req.NoError(err)
		_, err = room.Join("bob", "Bob", t0)
		req.ErrorIs(err, errors.ErrRoomFull)
	})

	t.Run("should reconnect a known player even when late join is off", func(t *testing.T) {
		req := require.New(t)
		settings := DefaultSettings()
		settings.AllowLateJoin = false
		room := NewRoom("111111", "g", "host", "Host", "set", 3, settings, t0)
		_, err := room.Join("alice", "Alice", t0)
		req.NoError(err)
		_, err = room.Start(t0)
		req.NoError(err)
		_, err = room.Disconnect("alice", t0)
		req.NoError(err)

		_, err = room.Join("bob", "Bob", t0)
		req.ErrorIs(err, errors.ErrInvalidState)

		changes, err := room.Join("alice", "Alice", t0)
		req.NoError(err)
		req.Equal([]string{event.PlayerStatus}, events(changes))
		req.Equal(2, room.ConnectedCount())
	})

	t.Run("should refuse a terminated room", func(t *testing.T) {
		req := require.New(t)
		room := newTestRoom(1)
		_, err := room.Start(t0)
		req.NoError(err)
		_, err = room.NextQuestion(t0)
		req.NoError(err)

		_, err = room.Join("alice", "Alice", t0)
		req.ErrorIs(err, errors.ErrInvalidState)
	})
}

func TestRoom_Disconnect_Host(t *testing.T) {
	req := require.New(t)
	room := newTestRoom(3)

	changes, err := room.Disconnect("host", t0)
	req.NoError(err)
	req.Equal([]string{event.PlayerStatus, event.HostDisconnected}, events(changes))

	// A second disconnect is a no-op
	changes, err = room.Disconnect("host", t0)
	req.NoError(err)
	req.Empty(changes)

	changes, err = room.Join("host", "Host", t0)
	req.NoError(err)
	req.Equal([]string{event.PlayerStatus, event.HostReconnected}, events(changes))

	_, err = room.Disconnect("ghost", t0)
	req.ErrorIs(err, errors.ErrPlayerNotFound)
}

func TestRoom_Kick(t *testing.T) {
	req := require.New(t)
	room := newTestRoom(3)
	_, err := room.Join("alice", "Alice", t0)
	req.NoError(err)

	_, err = room.Kick("ghost", "", "host", t0)
	req.ErrorIs(err, errors.ErrPlayerNotFound)

	_, err = room.Kick("host", "", "host", t0)
	req.ErrorIs(err, errors.ErrInvalidInput)

	changes, err := room.Kick("alice", "spam", "host", t0)
	req.NoError(err)
	req.Equal([]string{event.PlayerKicked, event.PlayerRemoved}, events(changes))
	req.Equal(1, changes[1].Payload.(PlayerRemovedPayload).PlayerCount)
	req.True(room.IsKicked("alice"))

	_, err = room.Join("alice", "Alice", t0)
	req.ErrorIs(err, errors.ErrPlayerKicked)
}

func TestRoom_Mute(t *testing.T) {
	req := require.New(t)
	room := newTestRoom(3)
	_, err := room.Join("alice", "Alice", t0)
	req.NoError(err)

	rec := MuteRecord{ID: "m1", Reason: "spam", MutedBy: "host", MutedAt: t0, Duration: 10 * time.Second}
	changes, err := room.MutePlayer("alice", rec)
	req.NoError(err)
	status := changes[0].Payload.(PlayerStatusPayload)
	req.True(status.IsMuted)
	req.Equal(t0.Add(10*time.Second).Format(time.RFC3339), status.MutedUntil)

	// Given the mute is still in force, chat is refused
	_, err = room.Chat("alice", "hello", t0.Add(5*time.Second))
	req.ErrorIs(err, errors.ErrPlayerMuted)

	// Then once the duration has elapsed the mute no longer applies
	_, muted := room.Mute("alice", t0.Add(10*time.Second))
	req.False(muted)
	_, err = room.Chat("alice", "hello", t0.Add(10*time.Second))
	req.NoError(err)

	// An expiry of an older record leaves a newer mute alone
	_, err = room.MutePlayer("alice", MuteRecord{ID: "m2", MutedBy: "host", MutedAt: t0})
	req.NoError(err)
	_, expired := room.ExpireMute("alice", "m1", t0)
	req.False(expired)
	_, muted = room.Mute("alice", t0.Add(time.Hour))
	req.True(muted)

	_, err = room.UnmutePlayer("alice", "host", t0)
	req.NoError(err)
	_, err = room.UnmutePlayer("alice", "host", t0)
	req.ErrorIs(err, errors.ErrInvalidInput)
}

func TestRoom_TransferHost(t *testing.T) {
	req := require.New(t)
	room := newTestRoom(3)
	_, err := room.Join("alice", "Alice", t0)
	req.NoError(err)
	_, err = room.Join("bob", "Bob", t0)
	req.NoError(err)
	_, err = room.Disconnect("bob", t0)
	req.NoError(err)

	_, err = room.TransferHost("bob", "", t0)
	req.ErrorIs(err, errors.ErrInvalidInput)
	_, err = room.TransferHost("ghost", "", t0)
	req.ErrorIs(err, errors.ErrPlayerNotFound)

	changes, err := room.TransferHost("alice", "leaving", t0)

	req.NoError(err)
	req.Equal([]string{event.HostChanged}, events(changes))
	req.Equal(PlayerID("alice"), room.HostID)
	alice, _ := room.Player("alice")
	req.True(alice.IsHost)
	former, _ := room.Player("host")
	req.False(former.IsHost)
	req.Len(room.HostTransferHistory, 1)
}

func TestRoom_SubmitAnswer(t *testing.T) {
	req := require.New(t)
	room := newTestRoom(3)
	_, err := room.Join("alice", "Alice", t0)
	req.NoError(err)
	_, err = room.Join("bob", "Bob", t0)
	req.NoError(err)

	_, err = room.SubmitAnswer(Answer{PlayerID: "alice", QuestionIndex: 0})
	req.ErrorIs(err, errors.ErrInvalidState)

	_, err = room.Start(t0)
	req.NoError(err)

	_, err = room.SubmitAnswer(Answer{PlayerID: "alice", QuestionIndex: 1})
	req.ErrorIs(err, errors.ErrInvalidState)

	_, err = room.SubmitAnswer(Answer{PlayerID: "alice", QuestionIndex: 0, Points: 100, AnsweredAt: t0})
	req.NoError(err)
	req.False(room.AllAnswered())

	_, err = room.SubmitAnswer(Answer{PlayerID: "alice", QuestionIndex: 0, Points: 100})
	req.ErrorIs(err, errors.ErrAlreadyAnswered)

	_, err = room.SubmitAnswer(Answer{PlayerID: "bob", QuestionIndex: 0})
	req.NoError(err)
	req.True(room.AllAnswered())

	alice, _ := room.Player("alice")
	req.Equal(100, alice.Score)

	changes, err := room.CloseQuestion(t0)
	req.NoError(err)
	ended := changes[0].Payload.(QuestionEndedPayload)
	req.Equal(2, ended.AnswerCount)
	req.Len(ended.Leaderboard, 2)

	_, err = room.CloseQuestion(t0)
	req.ErrorIs(err, errors.ErrInvalidState)
}

func TestRoom_Leaderboard_StableTies(t *testing.T) {
	req := require.New(t)
	room := newTestRoom(3)
	for _, id := range []PlayerID{"carol", "alice", "bob", "dave"} {
		_, err := room.Join(id, string(id), t0)
		req.NoError(err)
	}
	_, err := room.Start(t0)
	req.NoError(err)
	_, err = room.SubmitAnswer(Answer{PlayerID: "bob", QuestionIndex: 0, Points: 100})
	req.NoError(err)

	for i := 0; i < 10; i++ {
		board := room.Leaderboard()
		ids := lo.Map(board, func(e LeaderboardEntry, _ int) PlayerID { return e.PlayerID })
		req.Equal([]PlayerID{"bob", "carol", "alice", "dave"}, ids)
		req.Equal(1, board[0].Rank)
		req.Equal(4, board[3].Rank)
	}
}

func TestRoom_IdleFor_IgnoresPause(t *testing.T) {
	req := require.New(t)
	room := newTestRoom(3)
	_, err := room.Start(t0)
	req.NoError(err)
	_, err = room.Pause("", "host", t0.Add(time.Minute))
	req.NoError(err)

	req.Equal(time.Duration(0), room.IdleFor(t0.Add(time.Hour)))

	snap := room.Snapshot(t0.Add(time.Hour))
	req.Equal(int64(0), snap.IdleMs)
	req.Equal(StatusPaused, snap.Status)
}

func TestRoom_Snapshot_IsDetached(t *testing.T) {
	req := require.New(t)
	room := newTestRoom(3)
	_, err := room.Join("alice", "Alice", t0)
	req.NoError(err)
	_, err = room.Start(t0)
	req.NoError(err)
	_, err = room.SkipQuestion("", "host", t0)
	req.NoError(err)

	snap := room.Snapshot(t0)
	snap.SkippedQuestionIndices[0] = 42
	snap.Players[1].Score = 1000

	req.Equal([]int{0}, room.SkippedQuestionIndices)
	alice, _ := room.Player("alice")
	req.Equal(0, alice.Score)
	req.Equal([]PlayerID{"host", "alice"}, lo.Map(snap.Players, func(p Player, _ int) PlayerID { return p.ID }))
}

func TestScoreFor(t *testing.T) {
	req := require.New(t)

	req.Equal(100, ScoreFor(ScoringStandard, 100, 1, 30))
	req.Equal(75, ScoreFor(ScoringSpeed, 100, 15, 30))
	req.Equal(100, ScoreFor(ScoringSpeed, 100, 30, 30))
	req.Equal(50, ScoreFor(ScoringSpeed, 100, 0, 30))
	req.Equal(0, ScoreFor(ScoringSpeed, 0, 30, 30))
}

func TestCanTransition(t *testing.T) {
	req := require.New(t)

	req.True(CanTransition(StatusWaiting, StatusActive))
	req.True(CanTransition(StatusPaused, StatusResuming))
	req.True(CanTransition(StatusResuming, StatusStopped))
	req.False(CanTransition(StatusWaiting, StatusPaused))
	req.False(CanTransition(StatusResuming, StatusPaused))
	req.False(CanTransition(StatusCompleted, StatusActive))
	req.False(CanTransition(StatusResuming, StatusAbandoned))
}

func TestSettings_Validate(t *testing.T) {
	req := require.New(t)

	req.NoError(DefaultSettings().Validate())

	s := DefaultSettings()
	s.QuestionSeconds = 1
	req.ErrorIs(s.Validate(), errors.ErrInvalidInput)

	s = DefaultSettings()
	s.TimingMode = "sometimes"
	req.ErrorIs(s.Validate(), errors.ErrInvalidInput)

	s = DefaultSettings()
	s.ShowExplanation = false
	req.Equal(5, s.ReviewSeconds())
}

func TestRoom_UpdateSettings(t *testing.T) {
	req := require.New(t)
	room := newTestRoom(3)
	_, err := room.Join("alice", "Alice", t0)
	req.NoError(err)

	s := DefaultSettings()
	s.MaxPlayers = 1
	_, err = room.UpdateSettings(s, t0)
	req.ErrorIs(err, errors.ErrInvalidInput)

	s.MaxPlayers = 10
	changes, err := room.UpdateSettings(s, t0)
	req.NoError(err)
	req.Equal([]string{event.SettingsUpdated}, events(changes))
	req.Equal(10, room.Settings.MaxPlayers)

	_, err = room.Start(t0)
	req.NoError(err)
	_, err = room.UpdateSettings(s, t0)
	req.ErrorIs(err, errors.ErrInvalidState)
}
