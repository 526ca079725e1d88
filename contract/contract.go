//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"quiz-lab/domain"
	"reflect"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// Notifier is the Broadcast Gateway. Delivery is fire-and-forget and
// attempted at most once per call.
type Notifier interface {
	Notify(roomCode domain.RoomCode, eventName string, payload any)
}

// TextFilter masks forbidden words in player supplied text.
type TextFilter interface {
	Censor(text string) string
}

// QuestionBank resolves question sets. Loading and formatting questions is
// not the concern of the session core.
type QuestionBank interface {
	Count(ctx context.Context, questionSetID string) (int, error)
	Question(ctx context.Context, questionSetID string, index int) (domain.Question, error)
}

// SnapshotRepository mirrors room snapshots into durable storage.
type SnapshotRepository interface {
	Save(snapshot domain.Snapshot) error
	Delete(code domain.RoomCode) error
	List() ([]domain.Snapshot, error)
}

// RoomLifecycle is what background workers see of the live rooms.
type RoomLifecycle interface {
	Snapshots() []domain.Snapshot
	// Expire deletes the room when it is still at generation. It returns
	// false when the room is gone or has changed since the snapshot.
	Expire(code domain.RoomCode, generation uint64, reason string) (bool, error)
}
