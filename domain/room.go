package domain

import (
	"fmt"
	"quiz-lab/domain/event"
	"quiz-lab/errors"
	"time"
)

type RoomCode string

type Phase string

const (
	PhaseLobby    Phase = "lobby"
	PhaseQuestion Phase = "question"
	PhaseReview   Phase = "review"
	PhaseFinished Phase = "finished"
)

// Room is the state machine of one quiz game. It is not safe for concurrent
// use: every call must be serialized by the owner of the room.
// Each mutation validates first and applies nothing when it fails.
type Room struct {
	Code                   RoomCode
	ExternalGameID         string
	QuestionSetID          string
	Status                 Status
	Phase                  Phase
	HostID                 PlayerID
	HostConnRef            string
	Settings               Settings
	CurrentQuestionIndex   int
	TotalQuestions         int
	SkippedQuestionIndices []int
	Timer                  QuestionTimer
	PausedAt               time.Time
	PausedDuration         time.Duration
	CreatedAt              time.Time
	LastActivityAt         time.Time
	StateChangedAt         time.Time
	HostTransferHistory    []HostTransfer

	players map[PlayerID]*Player
	muted   map[PlayerID]MuteRecord
	kicked  map[PlayerID]KickRecord
	answers map[PlayerID]Answer

	generation   uint64
	joinSeq      int
	timerOnPause bool
}

// NewRoom creates a waiting room whose host is already seated as a player.
func NewRoom(code RoomCode, externalGameID string, hostID PlayerID, hostName, questionSetID string,
	totalQuestions int, settings Settings, now time.Time) *Room {
	r := &Room{
		Code:           code,
		ExternalGameID: externalGameID,
		QuestionSetID:  questionSetID,
		Status:         StatusWaiting,
		Phase:          PhaseLobby,
		HostID:         hostID,
		Settings:       settings,
		TotalQuestions: totalQuestions,
		CreatedAt:      now,
		LastActivityAt: now,
		StateChangedAt: now,
		players:        make(map[PlayerID]*Player),
		muted:          make(map[PlayerID]MuteRecord),
		kicked:         make(map[PlayerID]KickRecord),
		answers:        make(map[PlayerID]Answer),
	}
	r.seat(hostID, hostName, now).IsHost = true
	return r
}

// Generation changes on every status or question change. Timers capture it
// when scheduled and give up when it no longer matches.
func (r *Room) Generation() uint64 { return r.generation }

func (r *Room) Player(id PlayerID) (Player, bool) {
	p, ok := r.players[id]
	if !ok {
		return Player{}, false
	}
	return *p, true
}

func (r *Room) PlayerCount() int { return len(r.players) }

func (r *Room) ConnectedCount() int {
	n := 0
	for _, p := range r.players {
		if p.IsConnected {
			n++
		}
	}
	return n
}

func (r *Room) IsKicked(id PlayerID) bool {
	_, ok := r.kicked[id]
	return ok
}

// Mute returns the mute record of a player when it is still in force.
func (r *Room) Mute(id PlayerID, now time.Time) (MuteRecord, bool) {
	m, ok := r.muted[id]
	if !ok || !m.ActiveAt(now) {
		return MuteRecord{}, false
	}
	return m, true
}

func (r *Room) AnswerCount() int { return len(r.answers) }

// Touch records activity without changing state.
func (r *Room) Touch(now time.Time) { r.LastActivityAt = now }

// Require fails with an InvalidStateError unless the room is in one of allowed.
func (r *Room) Require(action string, allowed ...Status) error {
	for _, s := range allowed {
		if r.Status == s {
			return nil
		}
	}
	return errors.InvalidStateError{Action: action, Current: string(r.Status), Allowed: statusNames(allowed)}
}

func (r *Room) setStatus(to Status, now time.Time) error {
	if !CanTransition(r.Status, to) {
		return errors.InvalidStateError{Action: "transition to " + string(to), Current: string(r.Status),
			Allowed: statusNames(allowedFrom(to))}
	}
	r.Status = to
	r.StateChangedAt = now
	r.LastActivityAt = now
	r.generation++
	return nil
}

func allowedFrom(to Status) []Status {
	var res []Status
	for from, tos := range transitions {
		for _, t := range tos {
			if t == to {
				res = append(res, from)
			}
		}
	}
	return res
}

func (r *Room) seat(id PlayerID, name string, now time.Time) *Player {
	r.joinSeq++
	p := &Player{
		ID:             id,
		DisplayName:    name,
		IsConnected:    true,
		JoinedAt:       now,
		LastActivityAt: now,
		joinSeq:        r.joinSeq,
	}
	r.players[id] = p
	return p
}

// Join seats a new player or reconnects a known one.
func (r *Room) Join(id PlayerID, name string, now time.Time) ([]Change, error) {
	if r.Status.IsTerminal() {
		return nil, r.Require("join", StatusWaiting, StatusActive, StatusPaused, StatusResuming)
	}
	if r.IsKicked(id) {
		return nil, errors.ErrPlayerKicked
	}
	if p, ok := r.players[id]; ok {
		p.IsConnected = true
		p.LastActivityAt = now
		r.LastActivityAt = now
		changes := []Change{{Event: event.PlayerStatus, Payload: r.statusPayload(p, now, "reconnected")}}
		if p.IsHost {
			changes = append(changes, Change{Event: event.HostReconnected, Payload: HostConnectionPayload{HostID: id}})
		}
		return changes, nil
	}
	if r.Status.IsInGame() && !r.Settings.AllowLateJoin {
		return nil, r.Require("join", StatusWaiting)
	}
	if len(r.players) >= r.Settings.MaxPlayers {
		return nil, errors.ErrRoomFull
	}
	p := r.seat(id, name, now)
	r.LastActivityAt = now
	return []Change{{Event: event.PlayerJoined, Payload: PlayerJoinedPayload{Player: *p, PlayerCount: len(r.players)}}}, nil
}

// Disconnect marks a player as gone without removing it, so that a
// reconnect keeps its score.
func (r *Room) Disconnect(id PlayerID, now time.Time) ([]Change, error) {
	p, ok := r.players[id]
	if !ok {
		return nil, errors.ErrPlayerNotFound
	}
	if !p.IsConnected {
		return nil, nil
	}
	p.IsConnected = false
	p.LastActivityAt = now
	changes := []Change{{Event: event.PlayerStatus, Payload: r.statusPayload(p, now, "disconnected")}}
	if p.IsHost {
		changes = append(changes, Change{Event: event.HostDisconnected, Payload: HostConnectionPayload{HostID: id}})
	}
	return changes, nil
}

func (r *Room) statusPayload(p *Player, now time.Time, reason string) PlayerStatusPayload {
	payload := PlayerStatusPayload{PlayerID: p.ID, IsConnected: p.IsConnected, Reason: reason}
	if m, ok := r.Mute(p.ID, now); ok {
		payload.IsMuted = true
		if exp := m.ExpiresAt(); !exp.IsZero() {
			payload.MutedUntil = exp.UTC().Format(time.RFC3339)
		}
	}
	return payload
}

// UpdateSettings replaces the settings of a waiting room.
func (r *Room) UpdateSettings(s Settings, now time.Time) ([]Change, error) {
	if err := r.Require("updateSettings", StatusWaiting); err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if s.MaxPlayers < len(r.players) {
		return nil, fmt.Errorf("%w: max players %d below current %d", errors.ErrInvalidInput, s.MaxPlayers, len(r.players))
	}
	r.Settings = s
	r.LastActivityAt = now
	return []Change{{Event: event.SettingsUpdated, Payload: s}}, nil
}

// Start moves a waiting room to its first question.
func (r *Room) Start(now time.Time) ([]Change, error) {
	if err := r.Require("startGame", StatusWaiting); err != nil {
		return nil, err
	}
	if r.TotalQuestions <= 0 {
		return nil, fmt.Errorf("%w: question set is empty", errors.ErrInvalidInput)
	}
	if err := r.setStatus(StatusActive, now); err != nil {
		return nil, err
	}
	r.CurrentQuestionIndex = 0
	r.openQuestion()
	return []Change{
		{Event: event.GameStarted, Payload: GameStartedPayload{TotalQuestions: r.TotalQuestions}},
		r.questionStarted(),
	}, nil
}

func (r *Room) openQuestion() {
	r.Phase = PhaseQuestion
	r.answers = make(map[PlayerID]Answer)
	r.Timer.Start(r.Settings.QuestionSeconds)
}

func (r *Room) questionStarted() Change {
	return Change{Event: event.QuestionStarted, Payload: QuestionStartedPayload{
		QuestionIndex:  r.CurrentQuestionIndex,
		TotalQuestions: r.TotalQuestions,
		Seconds:        r.Timer.Total,
	}}
}

// Pause freezes an active room and its question timer.
func (r *Room) Pause(reason string, actor PlayerID, now time.Time) ([]Change, error) {
	if err := r.Require("pause", StatusActive); err != nil {
		return nil, err
	}
	if err := r.setStatus(StatusPaused, now); err != nil {
		return nil, err
	}
	r.timerOnPause = r.Timer.IsRunning
	r.Timer.IsRunning = false
	r.PausedAt = now
	return []Change{{Event: event.GamePaused, Payload: PausedPayload{
		Reason: reason, PausedBy: actor, PausedAt: now, Remaining: r.Timer.Remaining,
	}}}, nil
}

// BeginResume enters the transient resuming state. The caller drives the
// countdown and calls CompleteResume when it reaches zero.
func (r *Room) BeginResume(now time.Time) error {
	if err := r.Require("resume", StatusPaused); err != nil {
		return err
	}
	return r.setStatus(StatusResuming, now)
}

// CompleteResume ends the countdown and puts the room back into play.
func (r *Room) CompleteResume(now time.Time) ([]Change, error) {
	if err := r.Require("completeResume", StatusResuming); err != nil {
		return nil, err
	}
	if err := r.setStatus(StatusActive, now); err != nil {
		return nil, err
	}
	if !r.PausedAt.IsZero() {
		r.PausedDuration += now.Sub(r.PausedAt)
		r.PausedAt = time.Time{}
	}
	if r.Phase == PhaseQuestion && r.timerOnPause && r.Timer.Remaining > 0 {
		r.Timer.IsRunning = true
	}
	r.timerOnPause = false
	return []Change{{Event: event.GameResumed, Payload: ResumedPayload{
		QuestionIndex:    r.CurrentQuestionIndex,
		Remaining:        r.Timer.Remaining,
		PausedDurationMs: r.PausedDuration.Milliseconds(),
	}}}, nil
}

// CloseQuestion ends the answering phase of the current question.
func (r *Room) CloseQuestion(now time.Time) ([]Change, error) {
	if err := r.Require("closeQuestion", StatusActive); err != nil {
		return nil, err
	}
	if r.Phase != PhaseQuestion {
		return nil, fmt.Errorf("%w: question %d already closed", errors.ErrInvalidState, r.CurrentQuestionIndex)
	}
	r.Phase = PhaseReview
	r.Timer.IsRunning = false
	r.generation++
	payload := QuestionEndedPayload{QuestionIndex: r.CurrentQuestionIndex, AnswerCount: len(r.answers)}
	if r.Settings.ShowLeaderboard {
		payload.Leaderboard = r.Leaderboard()
	}
	return []Change{{Event: event.QuestionEnded, Payload: payload}}, nil
}

// NextQuestion advances an active room without marking the question as skipped.
func (r *Room) NextQuestion(now time.Time) (AdvanceResult, error) {
	if err := r.Require("nextQuestion", StatusActive); err != nil {
		return AdvanceResult{}, err
	}
	return r.advance(now, nil)
}

// SkipQuestion records the current question as skipped and advances by
// exactly one. A paused room stays paused on the new question.
func (r *Room) SkipQuestion(reason string, actor PlayerID, now time.Time) (AdvanceResult, error) {
	if err := r.Require("skipQuestion", StatusActive, StatusPaused); err != nil {
		return AdvanceResult{}, err
	}
	skipped := r.CurrentQuestionIndex
	r.SkippedQuestionIndices = append(r.SkippedQuestionIndices, skipped)
	return r.advance(now, &Change{Event: event.QuestionSkipped, Payload: QuestionSkippedPayload{
		SkippedIndex: skipped,
		NextIndex:    skipped + 1,
		Reason:       reason,
		SkippedBy:    actor,
	}})
}

func (r *Room) advance(now time.Time, lead *Change) (AdvanceResult, error) {
	res := AdvanceResult{SkippedIndex: -1, NextIndex: r.CurrentQuestionIndex + 1}
	if lead != nil {
		res.SkippedIndex = r.CurrentQuestionIndex
		res.Changes = append(res.Changes, *lead)
	}
	r.CurrentQuestionIndex++
	r.LastActivityAt = now
	if r.CurrentQuestionIndex >= r.TotalQuestions {
		if err := r.setStatus(StatusCompleted, now); err != nil {
			return AdvanceResult{}, err
		}
		r.Phase = PhaseFinished
		r.Timer.IsRunning = false
		r.timerOnPause = false
		res.Completed = true
		res.Changes = append(res.Changes, Change{Event: event.GameCompleted, Payload: GameCompletedPayload{Leaderboard: r.Leaderboard()}})
		return res, nil
	}
	r.generation++
	r.openQuestion()
	if r.Status == StatusPaused {
		r.timerOnPause = true
		r.Timer.IsRunning = false
	}
	res.Changes = append(res.Changes, r.questionStarted())
	return res, nil
}

// EmergencyStop terminates a game in progress, preempting a resume countdown.
func (r *Room) EmergencyStop(reason string, actor PlayerID, now time.Time) ([]Change, error) {
	if err := r.Require("emergencyStop", StatusActive, StatusPaused, StatusResuming); err != nil {
		return nil, err
	}
	if err := r.setStatus(StatusStopped, now); err != nil {
		return nil, err
	}
	r.finish(now)
	return []Change{{Event: event.GameEmergencyStop, Payload: EmergencyStoppedPayload{
		Reason: reason, StoppedBy: actor, Leaderboard: r.Leaderboard(),
	}}}, nil
}

// Abandon terminates a game whose host never came back.
func (r *Room) Abandon(reason string, now time.Time) ([]Change, error) {
	if err := r.Require("abandon", StatusActive, StatusPaused); err != nil {
		return nil, err
	}
	if err := r.setStatus(StatusAbandoned, now); err != nil {
		return nil, err
	}
	r.finish(now)
	return []Change{{Event: event.GameAbandoned, Payload: AbandonedPayload{Reason: reason, Leaderboard: r.Leaderboard()}}}, nil
}

func (r *Room) finish(now time.Time) {
	r.Phase = PhaseFinished
	r.Timer.IsRunning = false
	r.timerOnPause = false
	if !r.PausedAt.IsZero() {
		r.PausedDuration += now.Sub(r.PausedAt)
		r.PausedAt = time.Time{}
	}
}

// requireQuestion refuses timer actions once the current question is closed.
func (r *Room) requireQuestion(action string) error {
	if r.Phase == PhaseQuestion {
		return nil
	}
	return errors.InvalidStateError{Action: action, Current: string(r.Phase), Allowed: []string{string(PhaseQuestion)}}
}

// TimerExhausted reports an active question whose countdown has run out.
func (r *Room) TimerExhausted() bool {
	return r.Status == StatusActive && r.Phase == PhaseQuestion && r.Timer.Remaining == 0
}

// AdjustTimer shifts the remaining time of the current question.
func (r *Room) AdjustTimer(amount int, reason string, actor PlayerID, now time.Time) ([]Change, error) {
	if err := r.Require("adjustTimer", StatusActive, StatusPaused); err != nil {
		return nil, err
	}
	if err := r.requireQuestion("adjustTimer"); err != nil {
		return nil, err
	}
	if amount == 0 {
		return nil, fmt.Errorf("%w: adjustment must not be zero", errors.ErrInvalidInput)
	}
	r.Timer.Adjust(TimerAdjustment{Amount: amount, Reason: reason, ActorID: actor, At: now})
	r.LastActivityAt = now
	return []Change{{Event: event.TimerAdjusted, Payload: TimerAdjustedPayload{
		Amount: amount, Remaining: r.Timer.Remaining, Total: r.Timer.Total, Reason: reason, AdjustedBy: actor,
	}}}, nil
}

// ResetTimer replaces the countdown of the current question and stops it.
func (r *Room) ResetTimer(seconds int, actor PlayerID, now time.Time) ([]Change, error) {
	if err := r.Require("resetTimer", StatusActive, StatusPaused); err != nil {
		return nil, err
	}
	if err := r.requireQuestion("resetTimer"); err != nil {
		return nil, err
	}
	if seconds <= 0 {
		return nil, fmt.Errorf("%w: timer must be positive, got %d", errors.ErrInvalidInput, seconds)
	}
	r.Timer.Reset(seconds)
	r.timerOnPause = false
	r.generation++
	r.LastActivityAt = now
	return []Change{{Event: event.TimerReset, Payload: TimerResetPayload{
		Remaining: r.Timer.Remaining, Total: r.Timer.Total, ResetBy: actor,
	}}}, nil
}

// StartTimer restarts a stopped question timer.
func (r *Room) StartTimer(now time.Time) ([]Change, error) {
	if err := r.Require("startTimer", StatusActive); err != nil {
		return nil, err
	}
	if r.Phase != PhaseQuestion || r.Timer.IsRunning || r.Timer.Remaining == 0 {
		return nil, fmt.Errorf("%w: timer cannot be started", errors.ErrInvalidState)
	}
	r.Timer.IsRunning = true
	r.generation++
	r.LastActivityAt = now
	return []Change{{Event: event.TimerStarted, Payload: TimerTickPayload{Remaining: r.Timer.Remaining, Total: r.Timer.Total}}}, nil
}

// TickTimer consumes one second. exhausted reports the countdown reached zero.
func (r *Room) TickTimer() (change Change, exhausted bool) {
	exhausted = r.Timer.Tick()
	return Change{Event: event.TimerTick, Payload: TimerTickPayload{Remaining: r.Timer.Remaining, Total: r.Timer.Total}}, exhausted
}

func (r *Room) target(actor, id PlayerID) (*Player, error) {
	p, ok := r.players[id]
	if !ok {
		return nil, errors.ErrPlayerNotFound
	}
	if id == r.HostID || id == actor {
		return nil, fmt.Errorf("%w: host cannot target itself", errors.ErrInvalidInput)
	}
	return p, nil
}

var moderationStatuses = []Status{StatusWaiting, StatusActive, StatusPaused, StatusResuming}

// Kick removes a player and prevents it from joining again.
func (r *Room) Kick(id PlayerID, reason string, actor PlayerID, now time.Time) ([]Change, error) {
	if err := r.Require("kickPlayer", moderationStatuses...); err != nil {
		return nil, err
	}
	if _, err := r.target(actor, id); err != nil {
		return nil, err
	}
	delete(r.players, id)
	delete(r.answers, id)
	delete(r.muted, id)
	r.kicked[id] = KickRecord{Reason: reason, KickedBy: actor, KickedAt: now}
	r.LastActivityAt = now
	return []Change{
		{Event: event.PlayerKicked, Payload: PlayerKickedPayload{PlayerID: id, Reason: reason, KickedBy: actor}},
		{Event: event.PlayerRemoved, Payload: PlayerRemovedPayload{PlayerID: id, PlayerCount: len(r.players)}},
	}, nil
}

// MutePlayer replaces any previous mute of the player by rec.
func (r *Room) MutePlayer(id PlayerID, rec MuteRecord) ([]Change, error) {
	if err := r.Require("mutePlayer", moderationStatuses...); err != nil {
		return nil, err
	}
	p, err := r.target(rec.MutedBy, id)
	if err != nil {
		return nil, err
	}
	if rec.Duration < 0 {
		return nil, fmt.Errorf("%w: negative mute duration", errors.ErrInvalidInput)
	}
	r.muted[id] = rec
	r.LastActivityAt = rec.MutedAt
	return []Change{{Event: event.PlayerStatus, Payload: r.statusPayload(p, rec.MutedAt, rec.Reason)}}, nil
}

func (r *Room) UnmutePlayer(id PlayerID, actor PlayerID, now time.Time) ([]Change, error) {
	if err := r.Require("unmutePlayer", moderationStatuses...); err != nil {
		return nil, err
	}
	p, err := r.target(actor, id)
	if err != nil {
		return nil, err
	}
	if _, ok := r.muted[id]; !ok {
		return nil, fmt.Errorf("%w: player %s is not muted", errors.ErrInvalidInput, id)
	}
	delete(r.muted, id)
	r.LastActivityAt = now
	return []Change{{Event: event.PlayerStatus, Payload: r.statusPayload(p, now, "unmuted")}}, nil
}

// ExpireMute clears the mute only when it is still the record identified by
// recordID. A newer mute is left untouched.
func (r *Room) ExpireMute(id PlayerID, recordID string, now time.Time) ([]Change, bool) {
	m, ok := r.muted[id]
	if !ok || m.ID != recordID {
		return nil, false
	}
	delete(r.muted, id)
	p, ok := r.players[id]
	if !ok {
		return nil, true
	}
	return []Change{{Event: event.PlayerStatus, Payload: r.statusPayload(p, now, "mute expired")}}, true
}

// TransferHost hands control to another connected player.
func (r *Room) TransferHost(to PlayerID, reason string, now time.Time) ([]Change, error) {
	if r.Status.IsTerminal() {
		return nil, r.Require("transferHost", moderationStatuses...)
	}
	next, ok := r.players[to]
	if !ok {
		return nil, errors.ErrPlayerNotFound
	}
	if to == r.HostID {
		return nil, fmt.Errorf("%w: player is already host", errors.ErrInvalidInput)
	}
	if !next.IsConnected {
		return nil, fmt.Errorf("%w: new host must be connected", errors.ErrInvalidInput)
	}
	from := r.HostID
	if prev, ok := r.players[from]; ok {
		prev.IsHost = false
	}
	next.IsHost = true
	r.HostID = to
	r.HostConnRef = ""
	delete(r.muted, to)
	r.HostTransferHistory = append(r.HostTransferHistory, HostTransfer{From: from, To: to, Reason: reason, At: now})
	r.LastActivityAt = now
	return []Change{{Event: event.HostChanged, Payload: HostChangedPayload{From: from, To: to, Reason: reason}}}, nil
}

// SubmitAnswer records the first answer of a player to the open question.
func (r *Room) SubmitAnswer(a Answer) ([]Change, error) {
	if err := r.Require("submitAnswer", StatusActive); err != nil {
		return nil, err
	}
	p, ok := r.players[a.PlayerID]
	if !ok {
		return nil, errors.ErrPlayerNotFound
	}
	if a.QuestionIndex != r.CurrentQuestionIndex || r.Phase != PhaseQuestion || !r.Timer.IsRunning {
		return nil, fmt.Errorf("%w: question %d is not open", errors.ErrInvalidState, a.QuestionIndex)
	}
	if _, done := r.answers[a.PlayerID]; done {
		return nil, errors.ErrAlreadyAnswered
	}
	r.answers[a.PlayerID] = a
	p.Score += a.Points
	p.LastActivityAt = a.AnsweredAt
	r.LastActivityAt = a.AnsweredAt
	return []Change{{Event: event.AnswerReceived, Payload: AnswerReceivedPayload{PlayerID: a.PlayerID, AnswerCount: len(r.answers)}}}, nil
}

// AllAnswered reports whether every connected non-host player has answered.
func (r *Room) AllAnswered() bool {
	waiting := 0
	for id, p := range r.players {
		if p.IsHost || !p.IsConnected {
			continue
		}
		if _, ok := r.answers[id]; !ok {
			return false
		}
		waiting++
	}
	return waiting > 0
}

// Chat validates a chat message from a player.
func (r *Room) Chat(id PlayerID, text string, now time.Time) ([]Change, error) {
	if r.Status.IsTerminal() {
		return nil, r.Require("chat", moderationStatuses...)
	}
	p, ok := r.players[id]
	if !ok {
		return nil, errors.ErrPlayerNotFound
	}
	if _, muted := r.Mute(id, now); muted {
		return nil, errors.ErrPlayerMuted
	}
	p.LastActivityAt = now
	r.LastActivityAt = now
	return []Change{{Event: event.ChatMessage, Payload: ChatPayload{PlayerID: id, Name: p.DisplayName, Text: text, At: now}}}, nil
}

// IdleFor returns how long the room has gone without activity, not counting
// the current pause.
func (r *Room) IdleFor(now time.Time) time.Duration {
	idle := now.Sub(r.LastActivityAt)
	if r.Status == StatusPaused && !r.PausedAt.IsZero() {
		since := r.PausedAt
		if since.Before(r.LastActivityAt) {
			since = r.LastActivityAt
		}
		idle -= now.Sub(since)
	}
	return max(0, idle)
}
