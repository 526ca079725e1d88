package storage

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"quiz-lab/domain"
	"quiz-lab/errors"

	"github.com/dgraph-io/badger/v4"
)

// QuestionBank keeps question sets in BadgerDB under
// "qset:<id>:meta" and "qset:<id>:q:<index>".
type QuestionBank struct {
	db *badger.DB
}

func NewQuestionBank(db *badger.DB) *QuestionBank {
	return &QuestionBank{db: db}
}

type questionSetMeta struct {
	Count int `json:"count"`
}

func metaKey(setID string) []byte { return []byte(fmt.Sprintf("qset:%s:meta", setID)) }

func questionKey(setID string, index int) []byte {
	return []byte(fmt.Sprintf("qset:%s:q:%06d", setID, index))
}

// PutSet replaces a whole question set. Question indices are assigned from
// their position.
func (b *QuestionBank) PutSet(setID string, questions []domain.Question) error {
	if setID == "" || len(questions) == 0 {
		return fmt.Errorf("%w: question set needs an id and questions", errors.ErrInvalidInput)
	}
	return b.db.Update(func(txn *badger.Txn) error {
		prefix := []byte(fmt.Sprintf("qset:%s:", setID))
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix})
		var stale [][]byte
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			stale = append(stale, it.Item().KeyCopy(nil))
		}
		it.Close()
		for _, k := range stale {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}

		for i, q := range questions {
			q.Index = i
			data, err := json.Marshal(q)
			if err != nil {
				return err
			}
			if err := txn.Set(questionKey(setID, i), data); err != nil {
				return err
			}
		}
		meta, err := json.Marshal(questionSetMeta{Count: len(questions)})
		if err != nil {
			return err
		}
		return txn.Set(metaKey(setID), meta)
	})
}

func (b *QuestionBank) Count(_ context.Context, setID string) (int, error) {
	var meta questionSetMeta
	if err := b.get(metaKey(setID), &meta); err != nil {
		return 0, err
	}
	return meta.Count, nil
}

func (b *QuestionBank) Question(_ context.Context, setID string, index int) (domain.Question, error) {
	var q domain.Question
	if err := b.get(questionKey(setID, index), &q); err != nil {
		return domain.Question{}, err
	}
	return q, nil
}

func (b *QuestionBank) get(key []byte, v any) error {
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(data []byte) error {
			return json.Unmarshal(data, v)
		})
	})
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("%w: unknown question %s", errors.ErrInvalidInput, key)
	}
	return err
}
