package grading

import (
	"errors"
	"testing"

	"quiz-scoring-service/internal/domain"
)

func sequenceQuestion() domain.Question {
	// Answers deliberately stored shuffled; canonical order is by position.
	return domain.Question{
		ID:   5,
		Type: domain.QuestionOrderedSequence,
		Answers: []domain.Answer{
			{ID: 53, QuestionID: 5, Content: "third", OrderPosition: 3},
			{ID: 51, QuestionID: 5, Content: "first", OrderPosition: 1},
			{ID: 52, QuestionID: 5, Content: "second", OrderPosition: 2},
		},
	}
}

func TestSequenceCanonicalOrderIsFullyCorrect(t *testing.T) {
	grader, err := ForQuestion(sequenceQuestion())
	if err != nil {
		t.Fatalf("grader: %v", err)
	}

	res, err := grader.Grade(domain.ResponseInput{QuestionID: 5, UserOrder: []int64{51, 52, 53}})
	if err != nil {
		t.Fatalf("grade: %v", err)
	}
	if !res.IsCorrect || res.Score != 3 || res.MaxScore != 3 {
		t.Fatalf("expected full score, got %+v", res)
	}
	if res.Sequence == nil || len(res.Sequence.CorrectOrder) != 3 {
		t.Fatalf("expected canonical order in feedback, got %+v", res.Sequence)
	}
	if res.Sequence.CorrectOrder[0].AnswerID != 51 || res.Sequence.CorrectOrder[0].Content != "first" {
		t.Fatalf("canonical order not sorted by position: %+v", res.Sequence.CorrectOrder)
	}
}

func TestSequenceSingleSwapIsIncorrect(t *testing.T) {
	grader, _ := ForQuestion(sequenceQuestion())

	res, err := grader.Grade(domain.ResponseInput{QuestionID: 5, UserOrder: []int64{52, 51, 53}})
	if err != nil {
		t.Fatalf("grade: %v", err)
	}
	if res.IsCorrect {
		t.Fatalf("a swap must mark the whole response incorrect")
	}
	// Two displaced positions, one still matching.
	if res.Score != 1 || res.MaxScore != 3 {
		t.Fatalf("expected partial score 1/3, got %d/%d", res.Score, res.MaxScore)
	}
	if res.Sequence.Positions[2].IsCorrect != true || res.Sequence.Positions[0].IsCorrect {
		t.Fatalf("per-position verdicts wrong: %+v", res.Sequence.Positions)
	}
}

func TestSequenceLengthMismatchRejected(t *testing.T) {
	grader, _ := ForQuestion(sequenceQuestion())
	_, err := grader.Grade(domain.ResponseInput{QuestionID: 5, UserOrder: []int64{51, 52}})
	if !domain.IsValidation(err) {
		t.Fatalf("expected validation error for short permutation, got %v", err)
	}
}

func TestSequenceUnknownAnswerRejected(t *testing.T) {
	grader, _ := ForQuestion(sequenceQuestion())
	_, err := grader.Grade(domain.ResponseInput{QuestionID: 5, UserOrder: []int64{51, 52, 99}})
	if !errors.Is(err, domain.ErrUnknownAnswer) {
		t.Fatalf("expected ErrUnknownAnswer, got %v", err)
	}
}
