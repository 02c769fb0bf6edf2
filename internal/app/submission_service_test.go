package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"quiz-scoring-service/internal/app"
	"quiz-scoring-service/internal/domain"
	"quiz-scoring-service/internal/infra/memory"
	"quiz-scoring-service/internal/scoring"
)

func int64Ptr(v int64) *int64 { return &v }
func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		ID:              1,
		Title:           "Geography",
		LevelID:         2,
		CategoryID:      7,
		DurationMinutes: 30,
		Questions: []domain.Question{
			{
				ID: 10, QuizID: 1, Type: domain.QuestionSingleChoice,
				Answers: []domain.Answer{
					{ID: 101, QuestionID: 10, Content: "Paris", Correct: true},
					{ID: 102, QuestionID: 10, Content: "Rome"},
				},
			},
			{
				ID: 11, QuizID: 1, Type: domain.QuestionFreeText,
				Answers: []domain.Answer{
					{ID: 111, QuestionID: 11, Content: "Danube", Correct: true},
				},
			},
			{
				ID: 12, QuizID: 1, Type: domain.QuestionOrderedSequence,
				Answers: []domain.Answer{
					{ID: 121, QuestionID: 12, Content: "a", OrderPosition: 1},
					{ID: 122, QuestionID: 12, Content: "b", OrderPosition: 2},
					{ID: 123, QuestionID: 12, Content: "c", OrderPosition: 3},
				},
			},
		},
	}
}

func newTestEnv() (*app.SubmissionService, *memory.Store) {
	store := memory.NewStore()
	store.AddUser(domain.User{ID: 1, Username: "alice"})
	store.AddUser(domain.User{ID: 2, Username: "bob"})
	store.AddQuizCategory(1, 7)

	quizzes := memory.NewQuizRepository(memory.NewStaticQuizLoader(map[int64]domain.Quiz{
		1: sampleQuiz(),
	}), 5*time.Minute)

	service := app.NewSubmissionService(quizzes, store, store, scoring.NewCalculator()).
		WithRankings(app.NewRankingService(store))
	return service, store
}

func fullCorrectBatch() []domain.ResponseInput {
	return []domain.ResponseInput{
		{QuestionID: 10, AnswerID: int64Ptr(101)},
		{QuestionID: 11, FreeText: strPtr(" danube ")},
		{QuestionID: 12, UserOrder: []int64{121, 122, 123}},
	}
}

func TestSubmitGradesAndAwards(t *testing.T) {
	ctx := context.Background()
	service, store := newTestEnv()

	result, err := service.Submit(ctx, int64Ptr(1), 1, fullCorrectBatch(), intPtr(600))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if result.Score != 3 || result.Total != 3 {
		t.Fatalf("expected 3/3, got %d/%d", result.Score, result.Total)
	}
	if result.Breakdown == nil {
		t.Fatalf("expected a points breakdown for an authenticated user")
	}
	// level 2 quiz: base 30 * 1.5 + 50 perf + speed 8 (600s of 900s threshold)
	if result.Breakdown.TotalPoints != 103 {
		t.Fatalf("expected 103 points, got %d", result.Breakdown.TotalPoints)
	}

	if len(store.Responses()) != 3 {
		t.Fatalf("expected 3 persisted responses, got %d", len(store.Responses()))
	}
	scores := store.Scores()
	attempts := store.Attempts()
	if len(scores) != 1 || len(attempts) != 1 {
		t.Fatalf("expected one score and one attempt, got %d/%d", len(scores), len(attempts))
	}
	if scores[0].Score != result.Breakdown.TotalPoints {
		t.Fatalf("score row must carry the breakdown total")
	}
	if attempts[0].Score != 3 || attempts[0].MaxScore != 3 {
		t.Fatalf("attempt must carry raw counts, got %+v", attempts[0])
	}

	// Incremental recompute ran synchronously after the award.
	user, _ := store.User(1)
	if user.Ranking == nil || *user.Ranking != 1 {
		t.Fatalf("expected rank 1 after award, got %v", user.Ranking)
	}
}

func TestSubmitDeduplicatesQuestions(t *testing.T) {
	ctx := context.Background()
	service, store := newTestEnv()

	responses := []domain.ResponseInput{
		{QuestionID: 10, AnswerID: int64Ptr(101)}, // correct, kept
		{QuestionID: 10, AnswerID: int64Ptr(102)}, // duplicate, dropped
	}
	result, err := service.Submit(ctx, int64Ptr(1), 1, responses, nil)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if result.Total != 1 || result.Score != 1 {
		t.Fatalf("expected first occurrence only, got %d/%d", result.Score, result.Total)
	}
	if len(store.Responses()) != 1 {
		t.Fatalf("duplicate must not be persisted, got %d rows", len(store.Responses()))
	}
	if !store.Responses()[0].IsCorrect {
		t.Fatalf("kept row must be the first occurrence")
	}
}

func TestSubmitForeignQuestionAbortsEverything(t *testing.T) {
	ctx := context.Background()
	service, store := newTestEnv()

	responses := []domain.ResponseInput{
		{QuestionID: 10, AnswerID: int64Ptr(101)},
		{QuestionID: 999, AnswerID: int64Ptr(101)},
	}
	_, err := service.Submit(ctx, int64Ptr(1), 1, responses, nil)
	if !errors.Is(err, domain.ErrQuestionNotInQuiz) {
		t.Fatalf("expected ErrQuestionNotInQuiz, got %v", err)
	}
	if len(store.Responses()) != 0 || len(store.Scores()) != 0 {
		t.Fatalf("failed submission must persist nothing")
	}
}

func TestSubmitEmptyBatchRejected(t *testing.T) {
	service, _ := newTestEnv()
	_, err := service.Submit(context.Background(), int64Ptr(1), 1, nil, nil)
	if !errors.Is(err, domain.ErrEmptySubmission) {
		t.Fatalf("expected ErrEmptySubmission, got %v", err)
	}
}

func TestGuestSubmissionSkipsAward(t *testing.T) {
	ctx := context.Background()
	service, store := newTestEnv()

	result, err := service.Submit(ctx, nil, 1, fullCorrectBatch(), intPtr(600))
	if err != nil {
		t.Fatalf("guest submit: %v", err)
	}
	if result.Breakdown != nil {
		t.Fatalf("guests must not receive a persisted breakdown")
	}
	if result.Score != 3 {
		t.Fatalf("guest still gets the result summary, got %d", result.Score)
	}
	if len(store.Scores()) != 0 || len(store.Attempts()) != 0 {
		t.Fatalf("guests must not create Score/QuizAttempt rows")
	}
	rows := store.Responses()
	if len(rows) != 3 {
		t.Fatalf("guest responses are still recorded, got %d", len(rows))
	}
	for _, row := range rows {
		if row.UserID != nil {
			t.Fatalf("guest rows must have nil user")
		}
		if row.GuestSession == "" {
			t.Fatalf("guest rows carry a session id")
		}
	}
}

func TestSubmitRateLimited(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestEnv()
	service.WithRateLimiter(memory.NewRateLimiter(2, time.Hour))

	for i := 0; i < 2; i++ {
		if _, err := service.Submit(ctx, int64Ptr(1), 1, fullCorrectBatch(), nil); err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
	}
	_, err := service.Submit(ctx, int64Ptr(1), 1, fullCorrectBatch(), nil)
	if !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}

	// Guests are not subject to the per-user cap.
	if _, err := service.Submit(ctx, nil, 1, fullCorrectBatch(), nil); err != nil {
		t.Fatalf("guest submit: %v", err)
	}
}

func TestSubmitRejectsNegativeTimeSpent(t *testing.T) {
	ctx := context.Background()
	service, store := newTestEnv()

	_, err := service.Submit(ctx, int64Ptr(1), 1, fullCorrectBatch(), intPtr(-9000))
	if !domain.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(store.Responses()) != 0 || len(store.Scores()) != 0 {
		t.Fatalf("rejected submission must persist nothing")
	}
}

func TestFailedSubmissionConsumesNoQuota(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestEnv()
	service.WithRateLimiter(memory.NewRateLimiter(1, time.Hour))

	bad := []domain.ResponseInput{{QuestionID: 999, AnswerID: int64Ptr(101)}}
	for i := 0; i < 3; i++ {
		if _, err := service.Submit(ctx, int64Ptr(1), 1, bad, nil); !errors.Is(err, domain.ErrQuestionNotInQuiz) {
			t.Fatalf("submit %d: expected ErrQuestionNotInQuiz, got %v", i, err)
		}
	}

	// The cap counts completed submissions only, so the slot is still free.
	if _, err := service.Submit(ctx, int64Ptr(1), 1, fullCorrectBatch(), nil); err != nil {
		t.Fatalf("valid submit after failures: %v", err)
	}
	_, err := service.Submit(ctx, int64Ptr(1), 1, fullCorrectBatch(), nil)
	if !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited once the cap is spent, got %v", err)
	}
}

func TestSubmitSequenceFeedback(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestEnv()

	responses := []domain.ResponseInput{
		{QuestionID: 12, UserOrder: []int64{122, 121, 123}},
	}
	result, err := service.Submit(ctx, int64Ptr(2), 1, responses, nil)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	verdict := result.Results[0]
	if verdict.IsCorrect {
		t.Fatalf("swapped order must be incorrect overall")
	}
	if verdict.Sequence == nil || verdict.Sequence.Score != 1 || verdict.Sequence.MaxScore != 3 {
		t.Fatalf("expected 1/3 sequence feedback, got %+v", verdict.Sequence)
	}
	if len(verdict.Sequence.CorrectOrder) != 3 {
		t.Fatalf("feedback must include the canonical order")
	}
}

func TestPointsPreviewIsPure(t *testing.T) {
	ctx := context.Background()
	service, store := newTestEnv()

	b, err := service.PointsPreview(ctx, 1, 5, 5, intPtr(600))
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if b.TotalPoints != 133 {
		t.Fatalf("expected 133, got %d", b.TotalPoints)
	}
	if len(store.Scores()) != 0 || len(store.Responses()) != 0 {
		t.Fatalf("preview must not persist anything")
	}

	if _, err := service.PointsPreview(ctx, 1, 6, 5, nil); !domain.IsValidation(err) {
		t.Fatalf("expected validation error for correct > total, got %v", err)
	}
	if _, err := service.PointsPreview(ctx, 1, 5, 5, intPtr(-60)); !domain.IsValidation(err) {
		t.Fatalf("expected validation error for negative time spent, got %v", err)
	}
}
