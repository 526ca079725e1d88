package storage

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"quiz-lab/domain"
	"quiz-lab/errors"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const snapshotPrefix = "room:"

// SnapshotRepository stores the last known snapshot of each room in BadgerDB.
// Entries carry a TTL so that a crashed process does not leave them forever.
type SnapshotRepository struct {
	db  *badger.DB
	log *slog.Logger
	ttl time.Duration
}

func NewSnapshotRepository(db *badger.DB, log *slog.Logger, ttl time.Duration) *SnapshotRepository {
	return &SnapshotRepository{db: db, log: log, ttl: ttl}
}

func snapshotKey(code domain.RoomCode) []byte {
	return []byte(snapshotPrefix + string(code))
}

func (r SnapshotRepository) Save(snapshot domain.Snapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot %s: %w", snapshot.Code, err)
	}
	return r.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(snapshotKey(snapshot.Code), data)
		if r.ttl > 0 {
			entry = entry.WithTTL(r.ttl)
		}
		return txn.SetEntry(entry)
	})
}

// Get returns the stored snapshot of a room, or ErrRoomNotFound.
func (r SnapshotRepository) Get(code domain.RoomCode) (domain.Snapshot, error) {
	var snap domain.Snapshot
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(snapshotKey(code))
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error {
			return json.Unmarshal(v, &snap)
		})
	})
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return domain.Snapshot{}, fmt.Errorf("snapshot %s: %w", code, errors.ErrRoomNotFound)
	}
	return snap, err
}

func (r SnapshotRepository) Delete(code domain.RoomCode) error {
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(snapshotKey(code))
	})
}

// List returns every stored snapshot ordered by room code. Undecodable
// entries are logged and skipped.
func (r SnapshotRepository) List() ([]domain.Snapshot, error) {
	var res []domain.Snapshot
	prefix := []byte(snapshotPrefix)

	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			err := item.Value(func(v []byte) error {
				var snap domain.Snapshot
				if err := json.Unmarshal(v, &snap); err != nil {
					r.log.Warn("Skipping unreadable snapshot", "key", string(item.Key()), "error", err)
					return nil
				}
				res = append(res, snap)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error during snapshot scan: %w", err)
	}
	return res, nil
}
