package domain

import "github.com/samber/lo"

type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusResuming  Status = "resuming"
	StatusCompleted Status = "completed"
	StatusStopped   Status = "stopped"
	StatusAbandoned Status = "abandoned"
)

func (s Status) String() string { return string(s) }

// IsTerminal reports whether no further game transition can leave s.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusStopped || s == StatusAbandoned
}

// IsInGame reports whether a question sequence is under way.
func (s Status) IsInGame() bool {
	return s == StatusActive || s == StatusPaused || s == StatusResuming
}

// transitions lists every edge of the room state machine.
var transitions = map[Status][]Status{
	StatusWaiting:  {StatusActive},
	StatusActive:   {StatusPaused, StatusCompleted, StatusStopped, StatusAbandoned},
	StatusPaused:   {StatusResuming, StatusCompleted, StatusStopped, StatusAbandoned},
	StatusResuming: {StatusActive, StatusStopped},
}

// CanTransition reports whether from -> to is an edge of the state machine.
func CanTransition(from, to Status) bool {
	return lo.Contains(transitions[from], to)
}

func statusNames(statuses []Status) []string {
	return lo.Map(statuses, func(s Status, _ int) string { return string(s) })
}
