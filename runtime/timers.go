package runtime

import (
	"quiz-lab/domain"
	"sync"
	"time"
)

type Purpose string

const (
	PurposeQuestionTick Purpose = "question-tick"
	PurposeReview       Purpose = "review"
	PurposeResume       Purpose = "resume-countdown"
	PurposeMuteExpiry   Purpose = "mute-expiry"
	PurposeHostGrace    Purpose = "host-grace"
	PurposeDeletion     Purpose = "deletion"
)

// TimerKey identifies a scheduled callback. Subject distinguishes several
// timers of the same purpose in one room, such as one mute per player.
type TimerKey struct {
	Room    domain.RoomCode
	Purpose Purpose
	Subject string
}

type handle struct {
	id   uint64
	stop Stopper
}

// Timers keeps at most one callback per key. Scheduling a key again cancels
// the previous callback, and a callback that fires after being replaced or
// cancelled does nothing.
type Timers struct {
	mu      sync.Mutex
	clock   Clock
	seq     uint64
	handles map[TimerKey]handle
}

func NewTimers(clock Clock) *Timers {
	return &Timers{clock: clock, handles: make(map[TimerKey]handle)}
}

func (t *Timers) Schedule(key TimerKey, d time.Duration, fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if prev, ok := t.handles[key]; ok {
		prev.stop.Stop()
	}
	t.seq++
	id := t.seq
	stop := t.clock.AfterFunc(d, func() {
		if !t.claim(key, id) {
			return
		}
		fn()
	})
	t.handles[key] = handle{id: id, stop: stop}
}

// claim removes the handle when it is still the current one for key.
func (t *Timers) claim(key TimerKey, id uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	h, ok := t.handles[key]
	if !ok || h.id != id {
		return false
	}
	delete(t.handles, key)
	return true
}

func (t *Timers) Cancel(key TimerKey) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	h, ok := t.handles[key]
	if !ok {
		return false
	}
	h.stop.Stop()
	delete(t.handles, key)
	return true
}

// CancelRoom drops every timer of a room and returns how many were armed.
func (t *Timers) CancelRoom(code domain.RoomCode) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for key, h := range t.handles {
		if key.Room == code {
			h.stop.Stop()
			delete(t.handles, key)
			n++
		}
	}
	return n
}

func (t *Timers) Pending(key TimerKey) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.handles[key]
	return ok
}

func (t *Timers) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.handles)
}
