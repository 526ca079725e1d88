package runtime

import (
	"fmt"
	"math/rand/v2"
	"quiz-lab/domain"
	"quiz-lab/errors"
	"sync"

	"github.com/google/uuid"
)

const maxCodeAttempts = 64

type CodeGenerator func() domain.RoomCode

// RandomCode draws a 6-digit room code.
func RandomCode() domain.RoomCode {
	return domain.RoomCode(fmt.Sprintf("%06d", rand.IntN(1_000_000)))
}

type NewRoom struct {
	HostID         domain.PlayerID
	HostName       string
	QuestionSetID  string
	TotalQuestions int
	Settings       domain.Settings
}

// Registry is the single source of truth for which rooms exist. A code is
// never handed out twice while its room is registered.
type Registry struct {
	mu       sync.RWMutex
	clock    Clock
	rooms    map[domain.RoomCode]*Session
	byGameID map[string]domain.RoomCode
	codes    CodeGenerator
}

func NewRegistry(clock Clock) *Registry {
	return &Registry{
		clock:    clock,
		rooms:    make(map[domain.RoomCode]*Session),
		byGameID: make(map[string]domain.RoomCode),
		codes:    RandomCode,
	}
}

func (r *Registry) WithCodeGenerator(gen CodeGenerator) *Registry {
	r.codes = gen
	return r
}

// Create registers a waiting room under a fresh code.
func (r *Registry) Create(req NewRoom) (*Session, error) {
	if err := req.Settings.Validate(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code := r.codes()
		if _, taken := r.rooms[code]; taken {
			continue
		}
		room := domain.NewRoom(code, uuid.NewString(), req.HostID, req.HostName,
			req.QuestionSetID, req.TotalQuestions, req.Settings, r.clock.Now())
		session := newSession(room)
		r.rooms[code] = session
		r.byGameID[room.ExternalGameID] = code
		return session, nil
	}
	return nil, errors.ErrCodeSpaceExhausted
}

func (r *Registry) Get(code domain.RoomCode) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.rooms[code]
	if !ok {
		return nil, errors.ErrRoomNotFound
	}
	return s, nil
}

func (r *Registry) FindByExternalGameID(id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	code, ok := r.byGameID[id]
	if !ok {
		return nil, errors.ErrRoomNotFound
	}
	return r.rooms[code], nil
}

// Remove unregisters the room and closes its session. The code becomes
// available again.
func (r *Registry) Remove(code domain.RoomCode) bool {
	r.mu.Lock()
	s, ok := r.rooms[code]
	if ok {
		delete(r.rooms, code)
		delete(r.byGameID, s.ExternalGameID())
	}
	r.mu.Unlock()

	if ok {
		s.Close(nil)
	}
	return ok
}

// Sessions lists the registered sessions in no particular order.
func (r *Registry) Sessions() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := make([]*Session, 0, len(r.rooms))
	for _, s := range r.rooms {
		res = append(res, s)
	}
	return res
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}
