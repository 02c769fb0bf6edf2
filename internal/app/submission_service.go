package app

import (
	"context"
	"log"

	"github.com/google/uuid"

	"quiz-scoring-service/internal/domain"
	"quiz-scoring-service/internal/grading"
	"quiz-scoring-service/internal/scoring"
)

// QuizRepository loads quiz content with questions and answers eager-loaded
// (from cache/backing store). One fetch covers the whole batch.
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID int64) (domain.Quiz, error)
}

// SubmissionStore persists the graded responses of one batch atomically.
type SubmissionStore interface {
	SaveSubmission(ctx context.Context, responses []*domain.QuestionResponse) error
}

// AwardStore persists the attempt and its score in one transaction. A crash
// between the two writes must never leave one without the other.
type AwardStore interface {
	SaveAward(ctx context.Context, attempt *domain.QuizAttempt, score *domain.Score) error
}

// RateLimiter bounds completed submissions per user per window.
type RateLimiter interface {
	Allow(ctx context.Context, userID int64) (bool, error)
}

// LeaderboardNotifier is told after every successful award so live views can
// refresh. Implementations must not block.
type LeaderboardNotifier interface {
	LeaderboardChanged()
}

// SubmissionService grades submission batches, persists the audit trail and
// hands points to the award path.
type SubmissionService struct {
	quizzes  QuizRepository
	store    SubmissionStore
	awards   AwardStore
	limiter  RateLimiter
	calc     *scoring.Calculator
	rankings *RankingService
	notifier LeaderboardNotifier
}

func NewSubmissionService(quizzes QuizRepository, store SubmissionStore, awards AwardStore, calc *scoring.Calculator) *SubmissionService {
	return &SubmissionService{
		quizzes: quizzes,
		store:   store,
		awards:  awards,
		calc:    calc,
	}
}

// WithRateLimiter enables the per-user submission cap.
func (s *SubmissionService) WithRateLimiter(limiter RateLimiter) *SubmissionService {
	s.limiter = limiter
	return s
}

// WithRankings enables the best-effort incremental rank update after awards.
func (s *SubmissionService) WithRankings(rankings *RankingService) *SubmissionService {
	s.rankings = rankings
	return s
}

// WithNotifier wires a live-leaderboard listener.
func (s *SubmissionService) WithNotifier(notifier LeaderboardNotifier) *SubmissionService {
	s.notifier = notifier
	return s
}

// Submit grades one batch for a quiz. userID may be nil for guests, who get
// the result summary but no persisted Score/QuizAttempt. timeSpent is the
// elapsed seconds for the whole attempt, nil when unreported.
func (s *SubmissionService) Submit(ctx context.Context, userID *int64, quizID int64, responses []domain.ResponseInput, timeSpent *int) (domain.SubmissionResult, error) {
	if len(responses) == 0 {
		return domain.SubmissionResult{}, domain.ErrEmptySubmission
	}
	if timeSpent != nil && *timeSpent < 0 {
		return domain.SubmissionResult{}, domain.Validationf("timeSpentSeconds", "must not be negative")
	}

	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.SubmissionResult{}, err
	}

	questions := make(map[int64]domain.Question, len(quiz.Questions))
	for _, q := range quiz.Questions {
		questions[q.ID] = q
	}

	deduped := dedupeResponses(responses)

	guestSession := ""
	if userID == nil {
		guestSession = uuid.NewString()
	}

	rows := make([]*domain.QuestionResponse, 0, len(deduped))
	verdicts := make([]domain.ResponseVerdict, 0, len(deduped))
	correctCount := 0

	for _, in := range deduped {
		question, ok := questions[in.QuestionID]
		if !ok {
			// Hard error: a foreign question id signals a malformed or
			// adversarial request. Nothing is persisted.
			return domain.SubmissionResult{}, domain.ErrQuestionNotInQuiz
		}
		if err := grading.ValidateInput(question, in); err != nil {
			return domain.SubmissionResult{}, err
		}
		grader, err := grading.ForQuestion(question)
		if err != nil {
			return domain.SubmissionResult{}, err
		}
		res, err := grader.Grade(in)
		if err != nil {
			return domain.SubmissionResult{}, err
		}

		if res.IsCorrect {
			correctCount++
		}
		rows = append(rows, s.responseRow(quiz, question, in, res, userID, guestSession))
		verdicts = append(verdicts, domain.ResponseVerdict{
			QuestionID: question.ID,
			IsCorrect:  res.IsCorrect,
			Sequence:   res.Sequence,
		})
	}

	// The cap counts completed submissions, so the quota is only consumed
	// once the whole batch graded cleanly.
	if userID != nil && s.limiter != nil {
		allowed, err := s.limiter.Allow(ctx, *userID)
		if err != nil {
			return domain.SubmissionResult{}, err
		}
		if !allowed {
			return domain.SubmissionResult{}, domain.ErrRateLimited
		}
	}

	if err := s.store.SaveSubmission(ctx, rows); err != nil {
		return domain.SubmissionResult{}, err
	}

	result := domain.SubmissionResult{
		Score:   correctCount,
		Total:   len(deduped),
		Results: verdicts,
	}

	if userID != nil {
		breakdown, err := s.award(ctx, *userID, quiz, correctCount, len(deduped), timeSpent)
		if err != nil {
			return domain.SubmissionResult{}, err
		}
		result.Breakdown = &breakdown
	}

	return result, nil
}

// award calculates points and records the attempt + score pair, then kicks
// the best-effort incremental rank update.
func (s *SubmissionService) award(ctx context.Context, userID int64, quiz domain.Quiz, correct, total int, timeSpent *int) (domain.PointsBreakdown, error) {
	breakdown := s.calc.Calculate(scoring.Input{
		QuizLevel:        quiz.LevelID,
		DurationMinutes:  quiz.DurationMinutes,
		CorrectCount:     correct,
		TotalCount:       total,
		TimeSpentSeconds: timeSpent,
	})

	attempt := &domain.QuizAttempt{UserID: userID, QuizID: quiz.ID, Score: correct, MaxScore: total}
	score := &domain.Score{UserID: userID, QuizID: quiz.ID, Score: breakdown.TotalPoints}
	if err := s.awards.SaveAward(ctx, attempt, score); err != nil {
		return domain.PointsBreakdown{}, err
	}

	if s.rankings != nil {
		// Ranking staleness is recoverable; the scheduled full recompute is
		// authoritative. Never fail the submission over it.
		if err := s.rankings.RecomputeUser(ctx, userID); err != nil {
			log.Printf("incremental rank update failed for user %d: %v", userID, err)
		}
	}
	if s.notifier != nil {
		s.notifier.LeaderboardChanged()
	}
	return breakdown, nil
}

// PointsPreview computes a breakdown without persisting anything.
func (s *SubmissionService) PointsPreview(ctx context.Context, quizID int64, correct, total int, timeSpent *int) (domain.PointsBreakdown, error) {
	if correct < 0 || total < 0 || correct > total {
		return domain.PointsBreakdown{}, domain.Validationf("correctCount", "must satisfy 0 <= correct <= total")
	}
	if timeSpent != nil && *timeSpent < 0 {
		return domain.PointsBreakdown{}, domain.Validationf("timeSpent", "must not be negative")
	}
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.PointsBreakdown{}, err
	}
	return s.calc.Calculate(scoring.Input{
		QuizLevel:        quiz.LevelID,
		DurationMinutes:  quiz.DurationMinutes,
		CorrectCount:     correct,
		TotalCount:       total,
		TimeSpentSeconds: timeSpent,
	}), nil
}

func (s *SubmissionService) responseRow(quiz domain.Quiz, question domain.Question, in domain.ResponseInput, res grading.Result, userID *int64, guestSession string) *domain.QuestionResponse {
	row := &domain.QuestionResponse{
		QuizID:       quiz.ID,
		UserID:       userID,
		GuestSession: guestSession,
		QuestionID:   question.ID,
		AnswerID:     in.AnswerID,
		IsCorrect:    res.IsCorrect,
		ResponseTime: in.TimeTakenSeconds,
	}
	if in.FreeText != nil {
		row.UserAnswer = *in.FreeText
	}
	if res.IsCorrect {
		row.Points = s.calc.BasePoints
	}
	return row
}

// dedupeResponses keeps the first occurrence per question id, in submission
// order. Retried network requests double-submit; dropping later duplicates
// beats rejecting the whole batch.
func dedupeResponses(responses []domain.ResponseInput) []domain.ResponseInput {
	seen := make(map[int64]struct{}, len(responses))
	out := make([]domain.ResponseInput, 0, len(responses))
	for _, r := range responses {
		if _, dup := seen[r.QuestionID]; dup {
			continue
		}
		seen[r.QuestionID] = struct{}{}
		out = append(out, r)
	}
	return out
}
