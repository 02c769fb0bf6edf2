package grading

import (
	"sort"

	"quiz-scoring-service/internal/domain"
)

// sequenceGrader grades ordered-sequence questions position by position.
// Overall correctness is strict: any mismatch marks the response incorrect,
// while the partial score is still reported for feedback.
type sequenceGrader struct {
	question domain.Question
}

func (g sequenceGrader) Grade(in domain.ResponseInput) (Result, error) {
	canonical := canonicalOrder(g.question.Answers)

	if len(in.UserOrder) != len(canonical) {
		return Result{}, domain.Validationf("userOrder",
			"expected %d entries, got %d", len(canonical), len(in.UserOrder))
	}
	for _, id := range in.UserOrder {
		if _, ok := findAnswer(g.question.Answers, id); !ok {
			return Result{}, domain.ErrUnknownAnswer
		}
	}

	feedback := &domain.SequenceFeedback{
		MaxScore:     len(canonical),
		Positions:    make([]domain.SequencePosition, 0, len(canonical)),
		CorrectOrder: make([]domain.SequenceItem, 0, len(canonical)),
	}
	for i, answer := range canonical {
		match := in.UserOrder[i] == answer.ID
		if match {
			feedback.Score++
		}
		feedback.Positions = append(feedback.Positions, domain.SequencePosition{
			UserAnswer:    in.UserOrder[i],
			CorrectAnswer: answer.ID,
			IsCorrect:     match,
		})
		feedback.CorrectOrder = append(feedback.CorrectOrder, domain.SequenceItem{
			AnswerID: answer.ID,
			Position: answer.OrderPosition,
			Content:  answer.Content,
		})
	}
	feedback.IsCorrect = feedback.Score == feedback.MaxScore

	return Result{
		IsCorrect: feedback.IsCorrect,
		Score:     feedback.Score,
		MaxScore:  feedback.MaxScore,
		Sequence:  feedback,
	}, nil
}

// canonicalOrder sorts answers by their 1-based order position.
func canonicalOrder(answers []domain.Answer) []domain.Answer {
	ordered := make([]domain.Answer, len(answers))
	copy(ordered, answers)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].OrderPosition < ordered[j].OrderPosition
	})
	return ordered
}
