// Package grading decides correctness of submitted responses. Graders are
// pure functions over quiz content and never touch storage.
package grading

import (
	"strings"

	"quiz-scoring-service/internal/domain"
)

// Result is the verdict for one response. For ordered-sequence questions
// Sequence carries the per-position detail and Score/MaxScore reflect the
// partial match count; for single-valued questions Score is 0 or 1.
type Result struct {
	IsCorrect bool
	Score     int
	MaxScore  int
	Sequence  *domain.SequenceFeedback
}

// Grader grades one response against one question's answer data.
type Grader interface {
	Grade(in domain.ResponseInput) (Result, error)
}

// ForQuestion picks the grader for a question. The dispatch happens once per
// question, not per response.
func ForQuestion(q domain.Question) (Grader, error) {
	switch q.Type {
	case domain.QuestionSingleChoice:
		return choiceGrader{question: q}, nil
	case domain.QuestionFreeText:
		return freeTextGrader{question: q}, nil
	case domain.QuestionOrderedSequence:
		return sequenceGrader{question: q}, nil
	default:
		return nil, domain.Validationf("question.type", "unsupported question type %q", q.Type)
	}
}

// ValidateInput checks that the response supplies exactly the answer field
// the question type expects. Shape errors are rejected before grading.
func ValidateInput(q domain.Question, in domain.ResponseInput) error {
	set := 0
	if in.AnswerID != nil {
		set++
	}
	if in.FreeText != nil {
		set++
	}
	if len(in.UserOrder) > 0 {
		set++
	}
	if set == 0 {
		return domain.Validationf("response", "no answer supplied for question %d", q.ID)
	}
	if set > 1 {
		return domain.Validationf("response", "multiple answer fields supplied for question %d", q.ID)
	}

	switch q.Type {
	case domain.QuestionSingleChoice:
		if in.AnswerID == nil {
			return domain.Validationf("answerId", "question %d expects a selected answer", q.ID)
		}
	case domain.QuestionFreeText:
		if in.FreeText == nil {
			return domain.Validationf("freeText", "question %d expects a text answer", q.ID)
		}
	case domain.QuestionOrderedSequence:
		if len(in.UserOrder) == 0 {
			return domain.Validationf("userOrder", "question %d expects an ordered list", q.ID)
		}
		for _, id := range in.UserOrder {
			if id <= 0 {
				return domain.Validationf("userOrder", "entries must be positive answer ids")
			}
		}
	}
	return nil
}

type choiceGrader struct {
	question domain.Question
}

func (g choiceGrader) Grade(in domain.ResponseInput) (Result, error) {
	selected, ok := findAnswer(g.question.Answers, *in.AnswerID)
	if !ok {
		return Result{}, domain.ErrUnknownAnswer
	}
	// A question with no flagged-correct answer grades false rather than
	// erroring; grading always terminates with a verdict.
	correct := selected.Correct
	return Result{IsCorrect: correct, Score: boolScore(correct), MaxScore: 1}, nil
}

type freeTextGrader struct {
	question domain.Question
}

func (g freeTextGrader) Grade(in domain.ResponseInput) (Result, error) {
	var expected *domain.Answer
	for i := range g.question.Answers {
		if g.question.Answers[i].Correct {
			expected = &g.question.Answers[i]
			break
		}
	}
	if expected == nil {
		return Result{IsCorrect: false, MaxScore: 1}, nil
	}
	correct := normalizeText(*in.FreeText) == normalizeText(expected.Content)
	return Result{IsCorrect: correct, Score: boolScore(correct), MaxScore: 1}, nil
}

func normalizeText(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func findAnswer(answers []domain.Answer, id int64) (domain.Answer, bool) {
	for _, a := range answers {
		if a.ID == id {
			return a, true
		}
	}
	return domain.Answer{}, false
}

func boolScore(correct bool) int {
	if correct {
		return 1
	}
	return 0
}
