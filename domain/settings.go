package domain

import (
	"fmt"
	"quiz-lab/errors"

	"github.com/go-playground/validator/v10"
)

type TimingMode string

const (
	TimingAuto   TimingMode = "auto"
	TimingManual TimingMode = "manual"
)

type ScoringMode string

const (
	ScoringStandard ScoringMode = "standard"
	ScoringSpeed    ScoringMode = "speed"
)

var validate = validator.New()

// Settings is the validated configuration of a room. It can only change
// while the room is waiting.
type Settings struct {
	MaxPlayers          int         `json:"maxPlayers" validate:"min=1,max=500"`
	TimingMode          TimingMode  `json:"timingMode" validate:"required,oneof=auto manual"`
	ScoringMode         ScoringMode `json:"scoringMode" validate:"required,oneof=standard speed"`
	QuestionSeconds     int         `json:"questionSeconds" validate:"min=5,max=600"`
	ExplanationSeconds  int         `json:"explanationSeconds" validate:"min=0,max=120"`
	LeaderboardSeconds  int         `json:"leaderboardSeconds" validate:"min=0,max=120"`
	ShowLeaderboard     bool        `json:"showLeaderboard"`
	ShowExplanation     bool        `json:"showExplanation"`
	AllowLateJoin       bool        `json:"allowLateJoin"`
	ResumeCountdownSecs int         `json:"resumeCountdownSeconds" validate:"min=0,max=30"`
}

// DefaultSettings returns the settings applied when a room is created
// without explicit configuration.
func DefaultSettings() Settings {
	return Settings{
		MaxPlayers:          50,
		TimingMode:          TimingAuto,
		ScoringMode:         ScoringStandard,
		QuestionSeconds:     30,
		ExplanationSeconds:  5,
		LeaderboardSeconds:  5,
		ShowLeaderboard:     true,
		ShowExplanation:     true,
		AllowLateJoin:       true,
		ResumeCountdownSecs: 3,
	}
}

// Validate checks every field against its allowed range or enumeration.
func (s Settings) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrInvalidInput, err)
	}
	return nil
}

// ReviewSeconds is the time a closed question stays on screen before the
// room advances on its own.
func (s Settings) ReviewSeconds() int {
	total := 0
	if s.ShowExplanation {
		total += s.ExplanationSeconds
	}
	if s.ShowLeaderboard {
		total += s.LeaderboardSeconds
	}
	return total
}
