package domain

import "time"

// MuteRecord describes one mute. A later mute of the same player gets a new
// ID, which lets an expiry timer recognise that it belongs to an older one.
type MuteRecord struct {
	ID       string        `json:"id"`
	Reason   string        `json:"reason"`
	MutedBy  PlayerID      `json:"mutedBy"`
	MutedAt  time.Time     `json:"mutedAt"`
	Duration time.Duration `json:"duration"`
}

// ExpiresAt returns the zero time for a mute without duration.
func (m MuteRecord) ExpiresAt() time.Time {
	if m.Duration <= 0 {
		return time.Time{}
	}
	return m.MutedAt.Add(m.Duration)
}

func (m MuteRecord) ActiveAt(now time.Time) bool {
	exp := m.ExpiresAt()
	return exp.IsZero() || now.Before(exp)
}

type KickRecord struct {
	Reason   string    `json:"reason"`
	KickedBy PlayerID  `json:"kickedBy"`
	KickedAt time.Time `json:"kickedAt"`
}

type HostTransfer struct {
	From   PlayerID  `json:"from"`
	To     PlayerID  `json:"to"`
	Reason string    `json:"reason"`
	At     time.Time `json:"at"`
}
