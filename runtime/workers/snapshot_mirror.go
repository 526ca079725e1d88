package workers

import (
	"context"
	"log/slog"
	"quiz-lab/contract"
	"quiz-lab/domain"
	"time"
)

// SnapshotMirror copies live rooms into durable storage so that operators
// can inspect them. It never reads them back into the registry.
type SnapshotMirror struct {
	log      *slog.Logger
	rooms    contract.RoomLifecycle
	repo     contract.SnapshotRepository
	interval time.Duration
}

func NewSnapshotMirror(log *slog.Logger, rooms contract.RoomLifecycle, repo contract.SnapshotRepository, interval time.Duration) *SnapshotMirror {
	return &SnapshotMirror{log: log, rooms: rooms, repo: repo, interval: interval}
}

func (m *SnapshotMirror) Run(ctx context.Context) error {
	m.log.Info("Starting snapshot mirror", "interval", m.interval)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Last copy before shutdown
			m.Mirror()
			return ctx.Err()
		case <-ticker.C:
			m.Mirror()
		}
	}
}

// Mirror saves every live room and drops stored rooms that no longer exist.
// It returns how many snapshots were saved and removed.
func (m *SnapshotMirror) Mirror() (saved, removed int) {
	live := make(map[domain.RoomCode]struct{})
	for _, snap := range m.rooms.Snapshots() {
		live[snap.Code] = struct{}{}
		if err := m.repo.Save(snap); err != nil {
			m.log.Warn("Failed to save snapshot", "room", snap.Code, "error", err)
			continue
		}
		saved++
	}

	stored, err := m.repo.List()
	if err != nil {
		m.log.Warn("Failed to list snapshots", "error", err)
		return saved, removed
	}
	for _, snap := range stored {
		if _, ok := live[snap.Code]; ok {
			continue
		}
		if err := m.repo.Delete(snap.Code); err != nil {
			m.log.Warn("Failed to delete snapshot", "room", snap.Code, "error", err)
			continue
		}
		removed++
	}
	return saved, removed
}
