// Package memory provides in-memory implementations of the app interfaces,
// used for tests and for running the service without external backends.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"quiz-scoring-service/internal/domain"
)

// Store keeps the grading audit trail and user registry in memory. It
// implements SubmissionStore, AwardStore, RankingStore and LeaderboardStore.
type Store struct {
	mu             sync.RWMutex
	users          map[int64]*domain.User
	quizCategories map[int64]int64
	responses      []*domain.QuestionResponse
	attempts       []*domain.QuizAttempt
	scores         []*domain.Score
	nextID         int64
}

func NewStore() *Store {
	return &Store{
		users:          make(map[int64]*domain.User),
		quizCategories: make(map[int64]int64),
	}
}

// AddUser registers a user. Users are authored out-of-band in production;
// tests seed them here.
func (s *Store) AddUser(user domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := user
	s.users[u.ID] = &u
}

// AddQuizCategory records which category a quiz belongs to, for scoped
// leaderboards.
func (s *Store) AddQuizCategory(quizID, categoryID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quizCategories[quizID] = categoryID
}

func (s *Store) SaveSubmission(_ context.Context, responses []*domain.QuestionResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for _, r := range responses {
		s.nextID++
		r.ID = s.nextID
		r.CreatedAt = now
		s.responses = append(s.responses, r)
	}
	return nil
}

func (s *Store) SaveAward(_ context.Context, attempt *domain.QuizAttempt, score *domain.Score) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	s.nextID++
	attempt.ID = s.nextID
	attempt.CreatedAt = now
	s.nextID++
	score.ID = s.nextID
	score.CreatedAt = now
	s.attempts = append(s.attempts, attempt)
	s.scores = append(s.scores, score)
	return nil
}

func (s *Store) UserTotals(_ context.Context) ([]domain.UserTotal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	totals := make(map[int64]int64, len(s.users))
	for id := range s.users {
		totals[id] = 0
	}
	for _, sc := range s.scores {
		totals[sc.UserID] += int64(sc.Score)
	}

	out := make([]domain.UserTotal, 0, len(totals))
	for id, total := range totals {
		out = append(out, domain.UserTotal{UserID: id, TotalScore: total})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalScore != out[j].TotalScore {
			return out[i].TotalScore > out[j].TotalScore
		}
		return out[i].UserID < out[j].UserID
	})
	return out, nil
}

func (s *Store) UpdateRanks(_ context.Context, ranks []domain.UserRank) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	// All-or-nothing: verify every target exists before touching any rank.
	for _, r := range ranks {
		if _, ok := s.users[r.UserID]; !ok {
			return domain.ErrUserNotFound
		}
	}
	for _, r := range ranks {
		rank := r.Rank
		s.users[r.UserID].Ranking = &rank
	}
	return nil
}

func (s *Store) UserTotal(_ context.Context, userID int64) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.users[userID]; !ok {
		return 0, domain.ErrUserNotFound
	}
	var total int64
	for _, sc := range s.scores {
		if sc.UserID == userID {
			total += int64(sc.Score)
		}
	}
	return total, nil
}

func (s *Store) CountHigherTotals(_ context.Context, total int64, excludeUserID int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	totals := make(map[int64]int64)
	for _, sc := range s.scores {
		if sc.UserID != excludeUserID {
			totals[sc.UserID] += int64(sc.Score)
		}
	}
	count := 0
	for _, t := range totals {
		if t > total {
			count++
		}
	}
	return count, nil
}

func (s *Store) Leaderboard(_ context.Context, q domain.LeaderboardQuery) ([]domain.LeaderboardRow, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := make([]domain.LeaderboardRow, 0, len(s.users))
	for _, u := range s.users {
		if q.Scope == domain.ScopeOrganization && u.OrganizationID != q.ScopeID {
			continue
		}
		var total int64
		quizzes := make(map[int64]struct{})
		for _, sc := range s.scores {
			if sc.UserID != u.ID {
				continue
			}
			if q.Scope == domain.ScopeCategory && s.quizCategories[sc.QuizID] != q.ScopeID {
				continue
			}
			total += int64(sc.Score)
			quizzes[sc.QuizID] = struct{}{}
		}
		rows = append(rows, domain.LeaderboardRow{
			UserID:           u.ID,
			Username:         u.Username,
			TotalScore:       total,
			QuizzesCompleted: len(quizzes),
			Ranking:          u.Ranking,
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		less := leaderboardLess(rows[i], rows[j])
		if q.Desc {
			return !less && !leaderboardEqual(rows[i], rows[j])
		}
		return less
	})

	total := len(rows)
	start := (q.Page - 1) * q.Limit
	if start >= len(rows) {
		return []domain.LeaderboardRow{}, total, nil
	}
	end := start + q.Limit
	if end > len(rows) {
		end = len(rows)
	}
	return rows[start:end], total, nil
}

// leaderboardLess orders by (total, quizzes completed, user id) ascending;
// the caller flips it for descending reads.
func leaderboardLess(a, b domain.LeaderboardRow) bool {
	if a.TotalScore != b.TotalScore {
		return a.TotalScore < b.TotalScore
	}
	if a.QuizzesCompleted != b.QuizzesCompleted {
		return a.QuizzesCompleted < b.QuizzesCompleted
	}
	return a.UserID < b.UserID
}

func leaderboardEqual(a, b domain.LeaderboardRow) bool {
	return a.TotalScore == b.TotalScore &&
		a.QuizzesCompleted == b.QuizzesCompleted &&
		a.UserID == b.UserID
}

// User returns a copy of a registered user, for assertions.
func (s *Store) User(id int64) (domain.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return domain.User{}, false
	}
	return *u, true
}

// Responses returns the persisted response rows, for assertions.
func (s *Store) Responses() []*domain.QuestionResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.QuestionResponse, len(s.responses))
	copy(out, s.responses)
	return out
}

// Scores returns the persisted score rows, for assertions.
func (s *Store) Scores() []*domain.Score {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Score, len(s.scores))
	copy(out, s.scores)
	return out
}

// Attempts returns the persisted attempt rows, for assertions.
func (s *Store) Attempts() []*domain.QuizAttempt {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.QuizAttempt, len(s.attempts))
	copy(out, s.attempts)
	return out
}
