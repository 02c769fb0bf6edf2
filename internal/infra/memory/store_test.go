package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"quiz-scoring-service/internal/domain"
)

func TestStoreUpdateRanksAllOrNothing(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	store.AddUser(domain.User{ID: 1, Username: "alice"})

	err := store.UpdateRanks(ctx, []domain.UserRank{
		{UserID: 1, Rank: 1},
		{UserID: 99, Rank: 2},
	})
	if err == nil {
		t.Fatalf("expected error for unknown user")
	}
	u, _ := store.User(1)
	if u.Ranking != nil {
		t.Fatalf("failed batch must not write any rank, got %v", *u.Ranking)
	}

	if err := store.UpdateRanks(ctx, []domain.UserRank{{UserID: 1, Rank: 1}}); err != nil {
		t.Fatalf("update ranks: %v", err)
	}
	u, _ = store.User(1)
	if u.Ranking == nil || *u.Ranking != 1 {
		t.Fatalf("expected rank 1, got %v", u.Ranking)
	}
}

func TestStoreLeaderboardIncludesZeroScoreUsers(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	store.AddUser(domain.User{ID: 1, Username: "alice"})
	store.AddUser(domain.User{ID: 2, Username: "bob"})

	if err := store.SaveAward(ctx,
		&domain.QuizAttempt{UserID: 1, QuizID: 1, Score: 3, MaxScore: 3},
		&domain.Score{UserID: 1, QuizID: 1, Score: 30},
	); err != nil {
		t.Fatalf("save award: %v", err)
	}

	rows, total, err := store.Leaderboard(ctx, domain.LeaderboardQuery{
		Scope: domain.ScopeGlobal, Limit: 10, Page: 1, Desc: true,
	})
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if total != 2 || len(rows) != 2 {
		t.Fatalf("expected both users, got total=%d rows=%d", total, len(rows))
	}
	if rows[1].UserID != 2 || rows[1].TotalScore != 0 || rows[1].QuizzesCompleted != 0 {
		t.Fatalf("expected bob at zero, got %+v", rows[1])
	}
}

func TestRateLimiterWindowRolls(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	limiter := NewRateLimiter(2, time.Hour)
	limiter.clock = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		if ok, _ := limiter.Allow(ctx, 1); !ok {
			t.Fatalf("attempt %d should be allowed", i+1)
		}
	}
	if ok, _ := limiter.Allow(ctx, 1); ok {
		t.Fatalf("third attempt must be rejected")
	}
	// Another user has their own window.
	if ok, _ := limiter.Allow(ctx, 2); !ok {
		t.Fatalf("other users must not share the window")
	}

	now = now.Add(time.Hour)
	if ok, _ := limiter.Allow(ctx, 1); !ok {
		t.Fatalf("expired window must reset the count")
	}
}

func TestQuizRepositoryCachesUntilExpiry(t *testing.T) {
	ctx := context.Background()
	loader := &countingLoader{quiz: domain.Quiz{ID: 1, Title: "cached"}}
	now := time.Now()
	repo := NewQuizRepository(loader, time.Minute)
	repo.clock = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		if _, err := repo.GetQuiz(ctx, 1); err != nil {
			t.Fatalf("get quiz: %v", err)
		}
	}
	if loader.calls != 1 {
		t.Fatalf("expected a single load, got %d", loader.calls)
	}

	now = now.Add(2 * time.Minute)
	if _, err := repo.GetQuiz(ctx, 1); err != nil {
		t.Fatalf("get quiz after expiry: %v", err)
	}
	if loader.calls != 2 {
		t.Fatalf("expected a reload after expiry, got %d", loader.calls)
	}

	if _, err := repo.GetQuiz(ctx, 42); err != domain.ErrQuizNotFound {
		t.Fatalf("expected ErrQuizNotFound, got %v", err)
	}
}

func TestQuizRepositoryConcurrentFills(t *testing.T) {
	ctx := context.Background()
	quizzes := make(map[int64]domain.Quiz)
	for id := int64(1); id <= 8; id++ {
		quizzes[id] = domain.Quiz{ID: id}
	}
	repo := NewQuizRepository(NewStaticQuizLoader(quizzes), time.Minute)

	// Cold-cache fills for distinct quizzes run in parallel.
	var wg sync.WaitGroup
	errs := make(chan error, 32)
	for i := 0; i < 32; i++ {
		quizID := int64(i%8) + 1
		wg.Add(1)
		go func() {
			defer wg.Done()
			quiz, err := repo.GetQuiz(ctx, quizID)
			if err != nil {
				errs <- err
				return
			}
			if quiz.ID != quizID {
				errs <- domain.ErrQuizNotFound
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent get: %v", err)
	}
}

type countingLoader struct {
	quiz  domain.Quiz
	calls int
}

func (l *countingLoader) LoadQuiz(_ context.Context, quizID int64) (domain.Quiz, error) {
	if quizID != l.quiz.ID {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	l.calls++
	return l.quiz, nil
}
