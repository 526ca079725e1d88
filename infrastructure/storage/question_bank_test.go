package storage

import (
	"context"
	"quiz-lab/domain"
	"quiz-lab/errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestQuestionBank_PutAndRead(t *testing.T) {
	req := require.New(t)
	db, cleanup := SetupTestDB(t)
	defer cleanup()
	bank := NewQuestionBank(db)
	ctx := context.Background()

	// Given a set of two questions
	req.NoError(bank.PutSet("geo", []domain.Question{
		{CorrectOption: 1, Points: 100},
		{CorrectOption: 3, Points: 200},
	}))

	// Then both are counted and indexed by position
	count, err := bank.Count(ctx, "geo")
	req.NoError(err)
	req.Equal(2, count)

	q, err := bank.Question(ctx, "geo", 1)
	req.NoError(err)
	req.Equal(1, q.Index)
	req.Equal(3, q.CorrectOption)
	req.Equal(200, q.Points)
}

func TestQuestionBank_PutReplacesSet(t *testing.T) {
	req := require.New(t)
	db, cleanup := SetupTestDB(t)
	defer cleanup()
	bank := NewQuestionBank(db)
	ctx := context.Background()

	req.NoError(bank.PutSet("geo", []domain.Question{{Points: 1}, {Points: 2}, {Points: 3}}))
	req.NoError(bank.PutSet("geo", []domain.Question{{Points: 9}}))

	count, err := bank.Count(ctx, "geo")
	req.NoError(err)
	req.Equal(1, count)
	_, err = bank.Question(ctx, "geo", 2)
	req.ErrorIs(err, errors.ErrInvalidInput)
}

func TestQuestionBank_Unknown(t *testing.T) {
	req := require.New(t)
	db, cleanup := SetupTestDB(t)
	defer cleanup()
	bank := NewQuestionBank(db)

	_, err := bank.Count(context.Background(), "missing")
	req.ErrorIs(err, errors.ErrInvalidInput)
	req.ErrorIs(bank.PutSet("empty", nil), errors.ErrInvalidInput)
}
