// Package domain contains core concepts of the quiz session.
// This file defines Player entities and the rules attached to them.
// No runtime, network, or UI logic should be added here.
package domain

import "time"

type PlayerID string

type Player struct {
	ID             PlayerID  `json:"id"`
	DisplayName    string    `json:"displayName"`
	Score          int       `json:"score"`
	IsConnected    bool      `json:"isConnected"`
	IsHost         bool      `json:"isHost"`
	IsMuted        bool      `json:"isMuted"`
	JoinedAt       time.Time `json:"joinedAt"`
	LastActivityAt time.Time `json:"lastActivityAt"`
	// joinSeq keeps insertion order for stable leaderboard ties.
	joinSeq int
}

// Answer is the single answer a player may give to the current question.
type Answer struct {
	PlayerID      PlayerID  `json:"playerId"`
	QuestionIndex int       `json:"questionIndex"`
	Option        int       `json:"option"`
	Correct       bool      `json:"correct"`
	Points        int       `json:"points"`
	AnsweredAt    time.Time `json:"answeredAt"`
}
