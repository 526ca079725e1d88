package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"quiz-lab/domain"
	"quiz-lab/errors"
	"quiz-lab/runtime"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Action string

const (
	ActionStartGame      Action = "startGame"
	ActionNextQuestion   Action = "nextQuestion"
	ActionUpdateSettings Action = "updateSettings"
	ActionPause          Action = "pause"
	ActionResume         Action = "resume"
	ActionSkipQuestion   Action = "skipQuestion"
	ActionEmergencyStop  Action = "emergencyStop"
	ActionAdjustTimer    Action = "adjustTimer"
	ActionResetTimer     Action = "resetTimer"
	ActionStartTimer     Action = "startTimer"
	ActionKickPlayer     Action = "kickPlayer"
	ActionMutePlayer     Action = "mutePlayer"
	ActionUnmutePlayer   Action = "unmutePlayer"
	ActionTransferHost   Action = "transferHost"
)

// HostCommand is a host action as it arrives from a transport. Amount and
// Seconds are kept raw so that non-numeric input is reported as invalid.
type HostCommand struct {
	Room     domain.RoomCode  `json:"roomCode"`
	Action   Action           `json:"action"`
	Reason   string           `json:"reason,omitempty"`
	Message  string           `json:"message,omitempty"`
	Target   domain.PlayerID  `json:"targetId,omitempty"`
	Amount   json.RawMessage  `json:"amount,omitempty"`
	Seconds  json.RawMessage  `json:"seconds,omitempty"`
	Settings *domain.Settings `json:"settings,omitempty"`
}

type ActionResult struct {
	Room    domain.RoomCode `json:"roomCode"`
	Action  Action          `json:"action"`
	Status  domain.Status   `json:"status"`
	Changes []domain.Change `json:"-"`
	Events  []string        `json:"events"`
}

// HostService is the single entry point of host-initiated mutations. Host
// identity and room status are checked under the room lock, at the moment
// the action is serialized.
type HostService struct {
	game     *Game
	log      *slog.Logger
	observer func(ActionResult)
}

func NewHostService(game *Game, log *slog.Logger) *HostService {
	return &HostService{game: game, log: log}
}

// OnAction registers fn to be called after every applied action.
func (s *HostService) OnAction(fn func(ActionResult)) {
	s.observer = fn
}

// run resolves the room, checks the caller is its current host and the
// status is one of allowed, then applies fn.
func (s *HostService) run(code domain.RoomCode, caller domain.Identity, action Action, allowed []domain.Status,
	fn func(room *domain.Room, now time.Time) ([]domain.Change, error)) (ActionResult, error) {
	var status domain.Status
	changes, err := s.game.apply(code, func(room *domain.Room, now time.Time) ([]domain.Change, error) {
		if room.HostID != caller.ID {
			return nil, errors.ErrNotAuthorized
		}
		if err := room.Require(string(action), allowed...); err != nil {
			return nil, err
		}
		changes, err := fn(room, now)
		if err != nil {
			return nil, err
		}
		room.Touch(now)
		status = room.Status
		return changes, nil
	})
	if err != nil {
		s.log.Debug("Host action rejected", "room", code, "action", action, "actor", caller.ID, "error", err)
		return ActionResult{}, err
	}
	res := ActionResult{Room: code, Action: action, Status: status, Changes: changes}
	for _, c := range changes {
		res.Events = append(res.Events, c.Event)
	}
	s.log.Info("Host action applied", "room", code, "action", action, "actor", caller.ID, "status", status, "events", res.Events)
	if s.observer != nil {
		s.observer(res)
	}
	return res, nil
}

var (
	inGame      = []domain.Status{domain.StatusActive, domain.StatusPaused}
	stoppable   = []domain.Status{domain.StatusActive, domain.StatusPaused, domain.StatusResuming}
	notTerminal = []domain.Status{domain.StatusWaiting, domain.StatusActive, domain.StatusPaused, domain.StatusResuming}
	activeOnly  = []domain.Status{domain.StatusActive}
	pausedOnly  = []domain.Status{domain.StatusPaused}
	waitingOnly = []domain.Status{domain.StatusWaiting}
)

func (s *HostService) StartGame(_ context.Context, code domain.RoomCode, caller domain.Identity) (ActionResult, error) {
	return s.run(code, caller, ActionStartGame, waitingOnly, func(room *domain.Room, now time.Time) ([]domain.Change, error) {
		changes, err := room.Start(now)
		if err != nil {
			return nil, err
		}
		s.game.resumeTimers(room)
		return changes, nil
	})
}

func (s *HostService) NextQuestion(_ context.Context, code domain.RoomCode, caller domain.Identity) (ActionResult, error) {
	return s.run(code, caller, ActionNextQuestion, activeOnly, func(room *domain.Room, now time.Time) ([]domain.Change, error) {
		res, err := room.NextQuestion(now)
		if err != nil {
			return nil, err
		}
		s.game.resumeTimers(room)
		return res.Changes, nil
	})
}

func (s *HostService) UpdateSettings(_ context.Context, code domain.RoomCode, caller domain.Identity, settings domain.Settings) (ActionResult, error) {
	if limit := s.game.cfg.MaxPlayers; limit > 0 && settings.MaxPlayers > limit {
		return ActionResult{}, fmt.Errorf("%w: max players above %d", errors.ErrInvalidInput, limit)
	}
	return s.run(code, caller, ActionUpdateSettings, waitingOnly, func(room *domain.Room, now time.Time) ([]domain.Change, error) {
		return room.UpdateSettings(settings, now)
	})
}

func (s *HostService) Pause(_ context.Context, code domain.RoomCode, caller domain.Identity, reason string) (ActionResult, error) {
	return s.run(code, caller, ActionPause, activeOnly, func(room *domain.Room, now time.Time) ([]domain.Change, error) {
		return room.Pause(reason, caller.ID, now)
	})
}

// Resume starts the countdown of a paused room. A nil countdown uses the
// room settings.
func (s *HostService) Resume(_ context.Context, code domain.RoomCode, caller domain.Identity, countdown *int, message string) (ActionResult, error) {
	if countdown != nil && (*countdown < 0 || *countdown > 30) {
		return ActionResult{}, fmt.Errorf("%w: countdown must be within 0..30, got %d", errors.ErrInvalidInput, *countdown)
	}
	return s.run(code, caller, ActionResume, pausedOnly, func(room *domain.Room, now time.Time) ([]domain.Change, error) {
		count := room.Settings.ResumeCountdownSecs
		if countdown != nil {
			count = *countdown
		}
		if err := room.BeginResume(now); err != nil {
			return nil, err
		}
		s.game.armResumeCountdown(room, count, message, 0)
		return nil, nil
	})
}

func (s *HostService) SkipQuestion(_ context.Context, code domain.RoomCode, caller domain.Identity, reason string) (ActionResult, error) {
	return s.run(code, caller, ActionSkipQuestion, inGame, func(room *domain.Room, now time.Time) ([]domain.Change, error) {
		res, err := room.SkipQuestion(reason, caller.ID, now)
		if err != nil {
			return nil, err
		}
		s.game.resumeTimers(room)
		return res.Changes, nil
	})
}

func (s *HostService) EmergencyStop(_ context.Context, code domain.RoomCode, caller domain.Identity, reason string) (ActionResult, error) {
	return s.run(code, caller, ActionEmergencyStop, stoppable, func(room *domain.Room, now time.Time) ([]domain.Change, error) {
		changes, err := room.EmergencyStop(reason, caller.ID, now)
		if err != nil {
			return nil, err
		}
		s.game.timers.CancelRoom(room.Code)
		return changes, nil
	})
}

func (s *HostService) AdjustTimer(_ context.Context, code domain.RoomCode, caller domain.Identity, amount int, reason string) (ActionResult, error) {
	return s.run(code, caller, ActionAdjustTimer, inGame, func(room *domain.Room, now time.Time) ([]domain.Change, error) {
		changes, err := room.AdjustTimer(amount, reason, caller.ID, now)
		// A paused room closes the question when it resumes
		if err != nil || !room.TimerExhausted() {
			return changes, err
		}
		s.game.timers.Cancel(s.game.key(room.Code, runtime.PurposeQuestionTick, ""))
		closed, err := s.game.closeQuestion(room, now)
		if err != nil {
			return nil, err
		}
		return append(changes, closed...), nil
	})
}

func (s *HostService) ResetTimer(_ context.Context, code domain.RoomCode, caller domain.Identity, seconds int) (ActionResult, error) {
	return s.run(code, caller, ActionResetTimer, inGame, func(room *domain.Room, now time.Time) ([]domain.Change, error) {
		changes, err := room.ResetTimer(seconds, caller.ID, now)
		if err != nil {
			return nil, err
		}
		s.game.timers.Cancel(s.game.key(room.Code, runtime.PurposeQuestionTick, ""))
		return changes, nil
	})
}

func (s *HostService) StartTimer(_ context.Context, code domain.RoomCode, caller domain.Identity) (ActionResult, error) {
	return s.run(code, caller, ActionStartTimer, activeOnly, func(room *domain.Room, now time.Time) ([]domain.Change, error) {
		changes, err := room.StartTimer(now)
		if err != nil {
			return nil, err
		}
		s.game.resumeTimers(room)
		return changes, nil
	})
}

func (s *HostService) KickPlayer(_ context.Context, code domain.RoomCode, caller domain.Identity, target domain.PlayerID, reason string) (ActionResult, error) {
	return s.run(code, caller, ActionKickPlayer, notTerminal, func(room *domain.Room, now time.Time) ([]domain.Change, error) {
		changes, err := room.Kick(target, reason, caller.ID, now)
		if err != nil {
			return nil, err
		}
		s.game.timers.Cancel(s.game.key(room.Code, runtime.PurposeMuteExpiry, string(target)))
		return changes, nil
	})
}

// MutePlayer mutes target. A positive duration lifts the mute on its own.
func (s *HostService) MutePlayer(_ context.Context, code domain.RoomCode, caller domain.Identity, target domain.PlayerID, reason string, duration time.Duration) (ActionResult, error) {
	return s.run(code, caller, ActionMutePlayer, notTerminal, func(room *domain.Room, now time.Time) ([]domain.Change, error) {
		rec := domain.MuteRecord{ID: uuid.NewString(), Reason: reason, MutedBy: caller.ID, MutedAt: now, Duration: duration}
		changes, err := room.MutePlayer(target, rec)
		if err != nil {
			return nil, err
		}
		key := s.game.key(room.Code, runtime.PurposeMuteExpiry, string(target))
		if duration > 0 {
			s.game.armMuteExpiry(room, target, rec)
		} else {
			s.game.timers.Cancel(key)
		}
		return changes, nil
	})
}

func (s *HostService) UnmutePlayer(_ context.Context, code domain.RoomCode, caller domain.Identity, target domain.PlayerID) (ActionResult, error) {
	return s.run(code, caller, ActionUnmutePlayer, notTerminal, func(room *domain.Room, now time.Time) ([]domain.Change, error) {
		changes, err := room.UnmutePlayer(target, caller.ID, now)
		if err != nil {
			return nil, err
		}
		s.game.timers.Cancel(s.game.key(room.Code, runtime.PurposeMuteExpiry, string(target)))
		return changes, nil
	})
}

func (s *HostService) TransferHost(_ context.Context, code domain.RoomCode, caller domain.Identity, target domain.PlayerID, reason string) (ActionResult, error) {
	return s.run(code, caller, ActionTransferHost, notTerminal, func(room *domain.Room, now time.Time) ([]domain.Change, error) {
		changes, err := room.TransferHost(target, reason, now)
		if err != nil {
			return nil, err
		}
		s.game.cancelHostGrace(room.Code, caller.ID)
		s.game.timers.Cancel(s.game.key(room.Code, runtime.PurposeMuteExpiry, string(target)))
		return changes, nil
	})
}

// Dispatch routes a transport command to its action.
func (s *HostService) Dispatch(ctx context.Context, caller domain.Identity, cmd HostCommand) (ActionResult, error) {
	switch cmd.Action {
	case ActionStartGame:
		return s.StartGame(ctx, cmd.Room, caller)
	case ActionNextQuestion:
		return s.NextQuestion(ctx, cmd.Room, caller)
	case ActionUpdateSettings:
		if cmd.Settings == nil {
			return ActionResult{}, fmt.Errorf("%w: settings are required", errors.ErrInvalidInput)
		}
		return s.UpdateSettings(ctx, cmd.Room, caller, *cmd.Settings)
	case ActionPause:
		return s.Pause(ctx, cmd.Room, caller, cmd.Reason)
	case ActionResume:
		var countdown *int
		if len(cmd.Seconds) > 0 {
			n, err := ParseInt(cmd.Seconds)
			if err != nil {
				return ActionResult{}, err
			}
			countdown = &n
		}
		return s.Resume(ctx, cmd.Room, caller, countdown, cmd.Message)
	case ActionSkipQuestion:
		return s.SkipQuestion(ctx, cmd.Room, caller, cmd.Reason)
	case ActionEmergencyStop:
		return s.EmergencyStop(ctx, cmd.Room, caller, cmd.Reason)
	case ActionAdjustTimer:
		amount, err := ParseInt(cmd.Amount)
		if err != nil {
			return ActionResult{}, err
		}
		return s.AdjustTimer(ctx, cmd.Room, caller, amount, cmd.Reason)
	case ActionResetTimer:
		seconds, err := ParseInt(cmd.Seconds)
		if err != nil {
			return ActionResult{}, err
		}
		return s.ResetTimer(ctx, cmd.Room, caller, seconds)
	case ActionStartTimer:
		return s.StartTimer(ctx, cmd.Room, caller)
	case ActionKickPlayer:
		return s.KickPlayer(ctx, cmd.Room, caller, cmd.Target, cmd.Reason)
	case ActionMutePlayer:
		var duration time.Duration
		if len(cmd.Seconds) > 0 {
			n, err := ParseInt(cmd.Seconds)
			if err != nil {
				return ActionResult{}, err
			}
			duration = time.Duration(n) * time.Second
		}
		return s.MutePlayer(ctx, cmd.Room, caller, cmd.Target, cmd.Reason, duration)
	case ActionUnmutePlayer:
		return s.UnmutePlayer(ctx, cmd.Room, caller, cmd.Target)
	case ActionTransferHost:
		return s.TransferHost(ctx, cmd.Room, caller, cmd.Target, cmd.Reason)
	default:
		return ActionResult{}, fmt.Errorf("%w: unknown action %q", errors.ErrInvalidInput, cmd.Action)
	}
}

// ParseInt accepts a JSON number or a numeric string.
func ParseInt(raw json.RawMessage) (int, error) {
	text := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if text == "" {
		return 0, fmt.Errorf("%w: missing number", errors.ErrInvalidInput)
	}
	n, err := strconv.Atoi(text)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", errors.ErrInvalidInput, text)
	}
	return n, nil
}
