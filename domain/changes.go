package domain

import "time"

// Change is what a mutation reports back: one notification to broadcast once
// the room lock has been released.
type Change struct {
	Event   string
	Payload any
}

// AdvanceResult describes a move to the next question, skipped or not.
type AdvanceResult struct {
	SkippedIndex int
	NextIndex    int
	Completed    bool
	Changes      []Change
}

type PlayerJoinedPayload struct {
	Player      Player `json:"player"`
	PlayerCount int    `json:"playerCount"`
	Reconnected bool   `json:"reconnected"`
}

type PlayerStatusPayload struct {
	PlayerID    PlayerID `json:"playerId"`
	IsConnected bool     `json:"isConnected"`
	IsMuted     bool     `json:"isMuted"`
	Reason      string   `json:"reason,omitempty"`
	MutedUntil  string   `json:"mutedUntil,omitempty"`
}

type PlayerKickedPayload struct {
	PlayerID PlayerID `json:"playerId"`
	Reason   string   `json:"reason"`
	KickedBy PlayerID `json:"kickedBy"`
}

type PlayerRemovedPayload struct {
	PlayerID    PlayerID `json:"playerId"`
	PlayerCount int      `json:"playerCount"`
}

type GameStartedPayload struct {
	TotalQuestions int `json:"totalQuestions"`
}

type QuestionStartedPayload struct {
	QuestionIndex  int `json:"questionIndex"`
	TotalQuestions int `json:"totalQuestions"`
	Seconds        int `json:"seconds"`
}

type QuestionEndedPayload struct {
	QuestionIndex int                `json:"questionIndex"`
	AnswerCount   int                `json:"answerCount"`
	Leaderboard   []LeaderboardEntry `json:"leaderboard,omitempty"`
}

type TimerTickPayload struct {
	Remaining int `json:"remaining"`
	Total     int `json:"total"`
}

type PausedPayload struct {
	Reason    string    `json:"reason"`
	PausedBy  PlayerID  `json:"pausedBy"`
	PausedAt  time.Time `json:"pausedAt"`
	Remaining int       `json:"remaining"`
}

type ResumeCountdownPayload struct {
	Count   int    `json:"count"`
	Message string `json:"message,omitempty"`
}

type ResumedPayload struct {
	QuestionIndex    int   `json:"questionIndex"`
	Remaining        int   `json:"remaining"`
	PausedDurationMs int64 `json:"pausedDurationMs"`
}

type QuestionSkippedPayload struct {
	SkippedIndex int      `json:"skippedIndex"`
	NextIndex    int      `json:"nextIndex"`
	Reason       string   `json:"reason"`
	SkippedBy    PlayerID `json:"skippedBy"`
}

type GameCompletedPayload struct {
	Leaderboard []LeaderboardEntry `json:"leaderboard"`
}

type EmergencyStoppedPayload struct {
	Reason      string             `json:"reason"`
	StoppedBy   PlayerID           `json:"stoppedBy"`
	Leaderboard []LeaderboardEntry `json:"leaderboard"`
}

type AbandonedPayload struct {
	Reason      string             `json:"reason"`
	Leaderboard []LeaderboardEntry `json:"leaderboard"`
}

type TimerAdjustedPayload struct {
	Amount     int      `json:"amount"`
	Remaining  int      `json:"remaining"`
	Total      int      `json:"total"`
	Reason     string   `json:"reason"`
	AdjustedBy PlayerID `json:"adjustedBy"`
}

type TimerResetPayload struct {
	Remaining int      `json:"remaining"`
	Total     int      `json:"total"`
	ResetBy   PlayerID `json:"resetBy"`
}

type HostChangedPayload struct {
	From   PlayerID `json:"from"`
	To     PlayerID `json:"to"`
	Reason string   `json:"reason"`
}

type HostConnectionPayload struct {
	HostID       PlayerID `json:"hostId"`
	GraceSeconds int      `json:"graceSeconds,omitempty"`
}

type AnswerReceivedPayload struct {
	PlayerID    PlayerID `json:"playerId"`
	AnswerCount int      `json:"answerCount"`
}

type ChatPayload struct {
	PlayerID PlayerID  `json:"playerId"`
	Name     string    `json:"name"`
	Text     string    `json:"text"`
	At       time.Time `json:"at"`
}

type RoomClosedPayload struct {
	Reason string `json:"reason"`
}
