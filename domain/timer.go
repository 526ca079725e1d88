package domain

import "time"

type TimerAdjustment struct {
	Amount  int       `json:"amount"`
	Reason  string    `json:"reason"`
	ActorID PlayerID  `json:"actorId"`
	At      time.Time `json:"at"`
}

// QuestionTimer is the countdown of the current question, in seconds.
// Remaining never goes below zero.
type QuestionTimer struct {
	Remaining   int               `json:"remaining"`
	Total       int               `json:"total"`
	IsRunning   bool              `json:"isRunning"`
	Adjustments []TimerAdjustment `json:"adjustments"`
}

// Adjust adds amount seconds (negative to shorten), clamps at zero and
// records the adjustment. Total grows when the remaining time exceeds it.
func (t *QuestionTimer) Adjust(adj TimerAdjustment) {
	t.Remaining = max(0, t.Remaining+adj.Amount)
	if t.Remaining > t.Total {
		t.Total = t.Remaining
	}
	t.Adjustments = append(t.Adjustments, adj)
}

// Reset replaces the countdown and stops it.
func (t *QuestionTimer) Reset(seconds int) {
	t.Remaining = seconds
	t.Total = seconds
	t.IsRunning = false
}

// Start arms a fresh countdown for a new question.
func (t *QuestionTimer) Start(seconds int) {
	t.Remaining = seconds
	t.Total = seconds
	t.IsRunning = true
	t.Adjustments = nil
}

// Tick consumes one second of a running timer and reports whether the
// countdown is now exhausted.
func (t *QuestionTimer) Tick() bool {
	if !t.IsRunning {
		return false
	}
	if t.Remaining > 0 {
		t.Remaining--
	}
	if t.Remaining == 0 {
		t.IsRunning = false
		return true
	}
	return false
}

func (t QuestionTimer) clone() QuestionTimer {
	c := t
	c.Adjustments = append([]TimerAdjustment(nil), t.Adjustments...)
	return c
}
