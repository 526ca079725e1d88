package runtime

import (
	"quiz-lab/domain"
	"quiz-lab/errors"
	"sync"
	"time"
)

// Session owns one room. Every read and write of the room goes through its
// lock, so mutations of the same room are serialized while different rooms
// never wait on each other.
type Session struct {
	code    domain.RoomCode
	gameID  string
	mu      sync.Mutex
	room    *domain.Room
	deleted bool

	// outbox holds changes in mutation order until Flush delivers them.
	outbox  []domain.Change
	flushMu sync.Mutex
}

func newSession(room *domain.Room) *Session {
	return &Session{code: room.Code, gameID: room.ExternalGameID, room: room}
}

func (s *Session) Code() domain.RoomCode { return s.code }

func (s *Session) ExternalGameID() string { return s.gameID }

// Do runs fn with exclusive access to the room. It fails with
// ErrRoomNotFound once the room has been deleted. fn must not block on I/O.
func (s *Session) Do(fn func(room *domain.Room) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleted {
		return errors.ErrRoomNotFound
	}
	return fn(s.room)
}

// Mutate is Do for functions producing a result.
func Mutate[T any](s *Session, fn func(room *domain.Room) (T, error)) (T, error) {
	var res T
	err := s.Do(func(room *domain.Room) error {
		var err error
		res, err = fn(room)
		return err
	})
	return res, err
}

// Apply runs fn like Do and queues the changes it returns for Flush.
func (s *Session) Apply(fn func(room *domain.Room) ([]domain.Change, error)) ([]domain.Change, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleted {
		return nil, errors.ErrRoomNotFound
	}
	changes, err := fn(s.room)
	if err != nil {
		return nil, err
	}
	s.outbox = append(s.outbox, changes...)
	return changes, nil
}

// Flush delivers queued changes outside the room lock. Concurrent flushes
// deliver in the order the mutations were applied.
func (s *Session) Flush(deliver func(change domain.Change)) {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	s.mu.Lock()
	batch := s.outbox
	s.outbox = nil
	s.mu.Unlock()

	for _, c := range batch {
		deliver(c)
	}
}

func (s *Session) Snapshot(now time.Time) (domain.Snapshot, error) {
	return Mutate(s, func(room *domain.Room) (domain.Snapshot, error) {
		return room.Snapshot(now), nil
	})
}

// Close marks the session deleted when accept approves the current room,
// queueing final as the last changes of the room. It reports whether this
// call closed it.
func (s *Session) Close(accept func(room *domain.Room) bool, final ...domain.Change) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleted {
		return false
	}
	if accept != nil && !accept(s.room) {
		return false
	}
	s.deleted = true
	s.outbox = append(s.outbox, final...)
	return true
}

func (s *Session) Deleted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleted
}
