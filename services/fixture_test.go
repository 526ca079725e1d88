package services

import (
	"context"
	"log/slog"
	"quiz-lab/domain"
	"quiz-lab/mocks"
	"quiz-lab/runtime"
	"sync"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var (
	t0    = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	host  = domain.Identity{ID: "host", Name: "Host", IsHost: true}
	alice = domain.Identity{ID: "alice", Name: "Alice"}
	bob   = domain.Identity{ID: "bob", Name: "Bob"}
)

type notification struct {
	room    domain.RoomCode
	event   string
	payload any
}

// recorder keeps what the notifier was asked to broadcast, in order.
type recorder struct {
	mu   sync.Mutex
	sent []notification
}

func (r *recorder) add(code domain.RoomCode, name string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, notification{room: code, event: name, payload: payload})
}

func (r *recorder) count(name string) int {
	return len(r.payloads(name))
}

func (r *recorder) payloads(name string) []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	var res []any
	for _, n := range r.sent {
		if n.event == name {
			res = append(res, n.payload)
		}
	}
	return res
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = nil
}

type fixture struct {
	clock    *runtime.ManualClock
	registry *runtime.Registry
	timers   *runtime.Timers
	game     *Game
	hosts    *HostService
	players  *PlayerService
	filter   *mocks.MockTextFilter
	sent     *recorder
}

func newFixture(t *testing.T) *fixture {
	ctrl := gomock.NewController(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	clock := runtime.NewManualClock(t0)
	registry := runtime.NewRegistry(clock)
	timers := runtime.NewTimers(clock)
	sent := &recorder{}

	notifier := mocks.NewMockNotifier(ctrl)
	notifier.EXPECT().Notify(gomock.Any(), gomock.Any(), gomock.Any()).
		Do(func(code domain.RoomCode, name string, payload any) { sent.add(code, name, payload) }).
		AnyTimes()

	// Given a bank of three questions whose correct option is 1
	bank := mocks.NewMockQuestionBank(ctrl)
	bank.EXPECT().Count(gomock.Any(), "set").Return(3, nil).AnyTimes()
	bank.EXPECT().Question(gomock.Any(), "set", gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, i int) (domain.Question, error) {
			return domain.Question{Index: i, CorrectOption: 1, Points: 100}, nil
		}).AnyTimes()

	filter := mocks.NewMockTextFilter(ctrl)
	game := NewGame(log, DefaultGameConfig(), clock, registry, timers, notifier, bank)
	return &fixture{
		clock:    clock,
		registry: registry,
		timers:   timers,
		game:     game,
		hosts:    NewHostService(game, log),
		players:  NewPlayerService(game, log, filter),
		filter:   filter,
		sent:     sent,
	}
}

// room creates a waiting room joined by the given players.
func (f *fixture) room(t *testing.T, settings domain.Settings, joiners ...domain.Identity) domain.RoomCode {
	req := require.New(t)
	code, err := f.game.CreateRoom(context.Background(), CreateRoomRequest{Host: host, QuestionSetID: "set", Settings: &settings})
	req.NoError(err)
	for _, p := range joiners {
		f.filter.EXPECT().Censor(p.Name).Return(p.Name)
		_, err := f.players.Join(context.Background(), code, p, "conn-"+string(p.ID))
		req.NoError(err)
	}
	return code
}

// started creates a room with manual timing, joins alice and bob and starts it.
func (f *fixture) started(t *testing.T) domain.RoomCode {
	settings := domain.DefaultSettings()
	settings.TimingMode = domain.TimingManual
	code := f.room(t, settings, alice, bob)
	_, err := f.hosts.StartGame(context.Background(), code, host)
	require.NoError(t, err)
	return code
}

func (f *fixture) snapshot(t *testing.T, code domain.RoomCode) domain.Snapshot {
	snap, err := f.game.Snapshot(code)
	require.NoError(t, err)
	return snap
}
