package services

import (
	stderrors "errors"
	"quiz-lab/domain"
	"quiz-lab/domain/event"
	"quiz-lab/errors"
	"quiz-lab/runtime"
	"time"
)

// Timer callbacks capture the room generation when they are armed and do
// nothing once it has moved on. They are armed while the room lock is held.

func (g *Game) key(code domain.RoomCode, purpose runtime.Purpose, subject string) runtime.TimerKey {
	return runtime.TimerKey{Room: code, Purpose: purpose, Subject: subject}
}

// fire runs a timer callback through the regular mutation path.
func (g *Game) fire(code domain.RoomCode, purpose runtime.Purpose, fn func(room *domain.Room, now time.Time) ([]domain.Change, error)) {
	_, err := g.apply(code, fn)
	if err != nil && !stderrors.Is(err, errors.ErrRoomNotFound) {
		g.log.Warn("Timer callback failed", "room", code, "purpose", purpose, "error", err)
	}
}

// resumeTimers arms whatever drives the room forward in its current phase.
func (g *Game) resumeTimers(room *domain.Room) {
	if room.Status != domain.StatusActive {
		return
	}
	switch {
	case room.Phase == domain.PhaseQuestion && room.Timer.IsRunning:
		g.armQuestionTick(room)
	case room.Phase == domain.PhaseReview && room.Settings.TimingMode == domain.TimingAuto:
		g.armReview(room)
	}
}

func (g *Game) armQuestionTick(room *domain.Room) {
	code, gen := room.Code, room.Generation()
	g.timers.Schedule(g.key(code, runtime.PurposeQuestionTick, ""), g.cfg.TickInterval, func() {
		g.fire(code, runtime.PurposeQuestionTick, func(room *domain.Room, now time.Time) ([]domain.Change, error) {
			if room.Generation() != gen || room.Status != domain.StatusActive || room.Phase != domain.PhaseQuestion {
				return nil, nil
			}
			tick, exhausted := room.TickTimer()
			changes := []domain.Change{tick}
			if !exhausted {
				if room.Timer.IsRunning {
					g.armQuestionTick(room)
				}
				return changes, nil
			}
			closed, err := g.closeQuestion(room, now)
			if err != nil {
				return nil, err
			}
			return append(changes, closed...), nil
		})
	})
}

func (g *Game) closeQuestion(room *domain.Room, now time.Time) ([]domain.Change, error) {
	changes, err := room.CloseQuestion(now)
	if err != nil {
		return nil, err
	}
	g.resumeTimers(room)
	return changes, nil
}

func (g *Game) armReview(room *domain.Room) {
	code, gen := room.Code, room.Generation()
	delay := time.Duration(room.Settings.ReviewSeconds()) * time.Second
	g.timers.Schedule(g.key(code, runtime.PurposeReview, ""), delay, func() {
		g.fire(code, runtime.PurposeReview, func(room *domain.Room, now time.Time) ([]domain.Change, error) {
			if room.Generation() != gen || room.Status != domain.StatusActive || room.Phase != domain.PhaseReview {
				return nil, nil
			}
			res, err := room.NextQuestion(now)
			if err != nil {
				return nil, err
			}
			g.resumeTimers(room)
			return res.Changes, nil
		})
	})
}

// armResumeCountdown broadcasts count, then every tick one less, and puts the
// room back into play after broadcasting zero.
func (g *Game) armResumeCountdown(room *domain.Room, count int, message string, delay time.Duration) {
	code, gen := room.Code, room.Generation()
	g.timers.Schedule(g.key(code, runtime.PurposeResume, ""), delay, func() {
		g.fire(code, runtime.PurposeResume, func(room *domain.Room, now time.Time) ([]domain.Change, error) {
			if room.Generation() != gen || room.Status != domain.StatusResuming {
				return nil, nil
			}
			changes := []domain.Change{{Event: event.GameResumeCount, Payload: domain.ResumeCountdownPayload{Count: count, Message: message}}}
			if count > 0 {
				g.armResumeCountdown(room, count-1, message, g.cfg.TickInterval)
				return changes, nil
			}
			resumed, err := room.CompleteResume(now)
			if err != nil {
				return nil, err
			}
			changes = append(changes, resumed...)
			if room.TimerExhausted() {
				closed, err := g.closeQuestion(room, now)
				if err != nil {
					return nil, err
				}
				return append(changes, closed...), nil
			}
			g.resumeTimers(room)
			return changes, nil
		})
	})
}

func (g *Game) armMuteExpiry(room *domain.Room, player domain.PlayerID, rec domain.MuteRecord) {
	code := room.Code
	g.timers.Schedule(g.key(code, runtime.PurposeMuteExpiry, string(player)), rec.Duration, func() {
		g.fire(code, runtime.PurposeMuteExpiry, func(room *domain.Room, now time.Time) ([]domain.Change, error) {
			changes, _ := room.ExpireMute(player, rec.ID, now)
			return changes, nil
		})
	})
}

// armHostGrace gives a disconnected host the grace period to come back
// before a game in progress is abandoned.
func (g *Game) armHostGrace(room *domain.Room, host domain.PlayerID) {
	code := room.Code
	g.timers.Schedule(g.key(code, runtime.PurposeHostGrace, string(host)), g.cfg.HostGracePeriod, func() {
		g.fire(code, runtime.PurposeHostGrace, func(room *domain.Room, now time.Time) ([]domain.Change, error) {
			if room.HostID != host {
				return nil, nil
			}
			if p, ok := room.Player(host); ok && p.IsConnected {
				return nil, nil
			}
			switch room.Status {
			case domain.StatusResuming:
				g.armHostGrace(room, host)
				return nil, nil
			case domain.StatusActive, domain.StatusPaused:
			default:
				return nil, nil
			}
			changes, err := room.Abandon("host did not reconnect", now)
			if err != nil {
				return nil, err
			}
			g.timers.Cancel(g.key(code, runtime.PurposeQuestionTick, ""))
			g.timers.Cancel(g.key(code, runtime.PurposeReview, ""))
			g.armDeletion(room, "abandoned")
			return changes, nil
		})
	})
}

func (g *Game) cancelHostGrace(code domain.RoomCode, host domain.PlayerID) {
	g.timers.Cancel(g.key(code, runtime.PurposeHostGrace, string(host)))
}

// armDeletion removes a terminated room after the retention window.
func (g *Game) armDeletion(room *domain.Room, reason string) {
	code, gen := room.Code, room.Generation()
	g.timers.Schedule(g.key(code, runtime.PurposeDeletion, ""), g.cfg.AbandonedRetention, func() {
		if _, err := g.Expire(code, gen, reason); err != nil && !stderrors.Is(err, errors.ErrRoomNotFound) {
			g.log.Warn("Scheduled deletion failed", "room", code, "error", err)
		}
	})
}
