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
	"strings"
	"time"
	"unicode/utf8"
)

const (
	maxNameLength = 32
	maxChatLength = 500
)

// PlayerService handles what players do in a room: joining, leaving,
// answering and chatting.
type PlayerService struct {
	game   *Game
	log    *slog.Logger
	filter contract.TextFilter
}

func NewPlayerService(game *Game, log *slog.Logger, filter contract.TextFilter) *PlayerService {
	return &PlayerService{game: game, log: log, filter: filter}
}

func (s *PlayerService) clean(text string, limit int) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: text is empty", errors.ErrInvalidInput)
	}
	if utf8.RuneCountInString(text) > limit {
		return "", fmt.Errorf("%w: text longer than %d characters", errors.ErrInvalidInput, limit)
	}
	if s.filter != nil {
		text = s.filter.Censor(text)
	}
	return text, nil
}

// Join seats the caller or reconnects it. connRef identifies the transport
// connection and is kept for the host only.
func (s *PlayerService) Join(_ context.Context, code domain.RoomCode, caller domain.Identity, connRef string) (domain.Snapshot, error) {
	name, err := s.clean(caller.Name, maxNameLength)
	if err != nil {
		return domain.Snapshot{}, err
	}
	var snap domain.Snapshot
	_, err = s.game.apply(code, func(room *domain.Room, now time.Time) ([]domain.Change, error) {
		changes, err := room.Join(caller.ID, name, now)
		if err != nil {
			return nil, err
		}
		if room.HostID == caller.ID {
			room.HostConnRef = connRef
			s.game.cancelHostGrace(room.Code, caller.ID)
		}
		snap = room.Snapshot(now)
		return changes, nil
	})
	if err != nil {
		return domain.Snapshot{}, err
	}
	s.log.Debug("Player joined", "room", code, "player", caller.ID)
	return snap, nil
}

// Leave marks the caller disconnected. A host leaving a game in progress
// starts the grace period after which the game is abandoned.
func (s *PlayerService) Leave(_ context.Context, code domain.RoomCode, caller domain.Identity) error {
	grace := int(s.game.cfg.HostGracePeriod / time.Second)
	_, err := s.game.apply(code, func(room *domain.Room, now time.Time) ([]domain.Change, error) {
		changes, err := room.Disconnect(caller.ID, now)
		if err != nil {
			return nil, err
		}
		if room.HostID != caller.ID || len(changes) == 0 {
			return changes, nil
		}
		room.HostConnRef = ""
		if !room.Status.IsInGame() {
			return changes, nil
		}
		for i, c := range changes {
			if c.Event == event.HostDisconnected {
				changes[i].Payload = domain.HostConnectionPayload{HostID: caller.ID, GraceSeconds: grace}
			}
		}
		s.game.armHostGrace(room, caller.ID)
		return changes, nil
	})
	if err != nil {
		return err
	}
	s.log.Debug("Player left", "room", code, "player", caller.ID)
	return nil
}

type AnswerRequest struct {
	QuestionIndex int `json:"questionIndex"`
	Option        int `json:"option"`
}

// SubmitAnswer scores the answer of the caller to the open question. The
// question closes early once every connected player has answered.
func (s *PlayerService) SubmitAnswer(ctx context.Context, code domain.RoomCode, caller domain.Identity, req AnswerRequest) (domain.Answer, error) {
	snap, err := s.game.Snapshot(code)
	if err != nil {
		return domain.Answer{}, err
	}
	question, err := s.game.bank.Question(ctx, snap.QuestionSetID, req.QuestionIndex)
	if err != nil {
		return domain.Answer{}, fmt.Errorf("question %d: %w", req.QuestionIndex, err)
	}
	var answer domain.Answer
	_, err = s.game.apply(code, func(room *domain.Room, now time.Time) ([]domain.Change, error) {
		if room.HostID == caller.ID {
			return nil, fmt.Errorf("%w: host cannot answer", errors.ErrNotAuthorized)
		}
		answer = domain.Answer{
			PlayerID:      caller.ID,
			QuestionIndex: req.QuestionIndex,
			Option:        req.Option,
			Correct:       req.Option == question.CorrectOption,
			AnsweredAt:    now,
		}
		if answer.Correct {
			answer.Points = domain.ScoreFor(room.Settings.ScoringMode, question.Points, room.Timer.Remaining, room.Timer.Total)
		}
		changes, err := room.SubmitAnswer(answer)
		if err != nil {
			return nil, err
		}
		if !room.AllAnswered() {
			return changes, nil
		}
		s.game.timers.Cancel(s.game.key(room.Code, runtime.PurposeQuestionTick, ""))
		closed, err := s.game.closeQuestion(room, now)
		if err != nil {
			return nil, err
		}
		return append(changes, closed...), nil
	})
	if err != nil {
		return domain.Answer{}, err
	}
	return answer, nil
}

// Chat broadcasts a censored message from the caller.
func (s *PlayerService) Chat(_ context.Context, code domain.RoomCode, caller domain.Identity, text string) error {
	text, err := s.clean(text, maxChatLength)
	if err != nil {
		return err
	}
	_, err = s.game.apply(code, func(room *domain.Room, now time.Time) ([]domain.Change, error) {
		return room.Chat(caller.ID, text, now)
	})
	return err
}
