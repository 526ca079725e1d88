// Package services holds the use cases of a live quiz session: host actions,
// player events and the timers that drive a room between them.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"quiz-lab/contract"
	"quiz-lab/domain"
	"quiz-lab/domain/event"
	"quiz-lab/errors"
	"quiz-lab/runtime"
	"time"
)

type GameConfig struct {
	HostGracePeriod    time.Duration
	AbandonedRetention time.Duration
	TickInterval       time.Duration
	MaxPlayers         int
}

func DefaultGameConfig() GameConfig {
	return GameConfig{
		HostGracePeriod:    60 * time.Second,
		AbandonedRetention: 5 * time.Minute,
		TickInterval:       time.Second,
		MaxPlayers:         500,
	}
}

// Game wires the registry, the timers and the broadcast gateway. Every room
// mutation goes through apply so that broadcasting happens once the room
// lock has been released.
type Game struct {
	log      *slog.Logger
	cfg      GameConfig
	clock    runtime.Clock
	registry *runtime.Registry
	timers   *runtime.Timers
	notifier contract.Notifier
	bank     contract.QuestionBank
}

func NewGame(log *slog.Logger, cfg GameConfig, clock runtime.Clock, registry *runtime.Registry,
	timers *runtime.Timers, notifier contract.Notifier, bank contract.QuestionBank) *Game {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	return &Game{
		log:      log,
		cfg:      cfg,
		clock:    clock,
		registry: registry,
		timers:   timers,
		notifier: notifier,
		bank:     bank,
	}
}

type CreateRoomRequest struct {
	Host          domain.Identity
	HostName      string
	QuestionSetID string
	Settings      *domain.Settings
}

// CreateRoom registers a waiting room for a question set and returns its code.
func (g *Game) CreateRoom(ctx context.Context, req CreateRoomRequest) (domain.RoomCode, error) {
	if req.Host.ID == "" || req.QuestionSetID == "" {
		return "", fmt.Errorf("%w: host and question set are required", errors.ErrInvalidInput)
	}
	settings := domain.DefaultSettings()
	if req.Settings != nil {
		settings = *req.Settings
	}
	if g.cfg.MaxPlayers > 0 && settings.MaxPlayers > g.cfg.MaxPlayers {
		return "", fmt.Errorf("%w: max players above %d", errors.ErrInvalidInput, g.cfg.MaxPlayers)
	}
	total, err := g.bank.Count(ctx, req.QuestionSetID)
	if err != nil {
		return "", fmt.Errorf("question set %s: %w", req.QuestionSetID, err)
	}
	name := req.HostName
	if name == "" {
		name = req.Host.Name
	}
	session, err := g.registry.Create(runtime.NewRoom{
		HostID:         req.Host.ID,
		HostName:       name,
		QuestionSetID:  req.QuestionSetID,
		TotalQuestions: total,
		Settings:       settings,
	})
	if err != nil {
		return "", err
	}
	g.log.Info("Room created", "room", session.Code(), "host", req.Host.ID, "questions", total)
	return session.Code(), nil
}

// Snapshot returns a detached copy of a room for readers such as the
// persistence mirror.
func (g *Game) Snapshot(code domain.RoomCode) (domain.Snapshot, error) {
	session, err := g.registry.Get(code)
	if err != nil {
		return domain.Snapshot{}, err
	}
	return session.Snapshot(g.clock.Now())
}

func (g *Game) FindByExternalGameID(id string) (domain.Snapshot, error) {
	session, err := g.registry.FindByExternalGameID(id)
	if err != nil {
		return domain.Snapshot{}, err
	}
	return session.Snapshot(g.clock.Now())
}

// Snapshots copies every live room. Rooms deleted meanwhile are skipped.
func (g *Game) Snapshots() []domain.Snapshot {
	now := g.clock.Now()
	sessions := g.registry.Sessions()
	res := make([]domain.Snapshot, 0, len(sessions))
	for _, s := range sessions {
		snap, err := s.Snapshot(now)
		if err != nil {
			continue
		}
		res = append(res, snap)
	}
	return res
}

// apply mutates one room under its lock and broadcasts the result after.
func (g *Game) apply(code domain.RoomCode, fn func(room *domain.Room, now time.Time) ([]domain.Change, error)) ([]domain.Change, error) {
	session, err := g.registry.Get(code)
	if err != nil {
		return nil, err
	}
	changes, err := session.Apply(func(room *domain.Room) ([]domain.Change, error) {
		return fn(room, g.clock.Now())
	})
	g.flush(session)
	return changes, err
}

func (g *Game) flush(session *runtime.Session) {
	session.Flush(func(c domain.Change) {
		g.notifier.Notify(session.Code(), c.Event, c.Payload)
	})
}

// Expire deletes a room the sweeper found expired, unless it changed since.
func (g *Game) Expire(code domain.RoomCode, generation uint64, reason string) (bool, error) {
	return g.delete(code, reason, func(room *domain.Room) bool {
		return room.Generation() == generation
	})
}

// Delete removes a room whatever its state.
func (g *Game) Delete(code domain.RoomCode, reason string) (bool, error) {
	return g.delete(code, reason, nil)
}

func (g *Game) delete(code domain.RoomCode, reason string, accept func(room *domain.Room) bool) (bool, error) {
	session, err := g.registry.Get(code)
	if err != nil {
		return false, err
	}
	closed := session.Close(accept, domain.Change{Event: event.RoomClosed, Payload: domain.RoomClosedPayload{Reason: reason}})
	if !closed {
		return false, nil
	}
	g.timers.CancelRoom(code)
	g.registry.Remove(code)
	g.flush(session)
	g.log.Info("Room deleted", "room", code, "reason", reason)
	return true, nil
}
