package app

import (
	"context"

	"quiz-scoring-service/internal/domain"
)

const (
	defaultLeaderboardLimit = 20
	maxLeaderboardLimit     = 100
)

// LeaderboardStore aggregates totals on read, scoped and paginated. It
// returns the page rows plus the total number of users in scope.
type LeaderboardStore interface {
	Leaderboard(ctx context.Context, q domain.LeaderboardQuery) ([]domain.LeaderboardRow, int, error)
}

// LeaderboardService serves leaderboard views. Aggregates are recomputed on
// every read, so results stay accurate even while the persisted ranks are
// stale.
type LeaderboardService struct {
	store LeaderboardStore
}

func NewLeaderboardService(store LeaderboardStore) *LeaderboardService {
	return &LeaderboardService{store: store}
}

// Query returns one leaderboard page. Position is the dense 1-based row
// counter within the overall ordering; it may differ from the persisted
// competition rank, and that divergence is intentional.
func (s *LeaderboardService) Query(ctx context.Context, q domain.LeaderboardQuery) (domain.LeaderboardPage, error) {
	if err := normalizeQuery(&q); err != nil {
		return domain.LeaderboardPage{}, err
	}

	rows, total, err := s.store.Leaderboard(ctx, q)
	if err != nil {
		return domain.LeaderboardPage{}, err
	}

	offset := (q.Page - 1) * q.Limit
	for i := range rows {
		rows[i].Position = offset + i + 1
	}

	return domain.LeaderboardPage{
		Data:       rows,
		Page:       q.Page,
		Limit:      q.Limit,
		TotalUsers: total,
	}, nil
}

func normalizeQuery(q *domain.LeaderboardQuery) error {
	if q.Scope == "" {
		q.Scope = domain.ScopeGlobal
	}
	switch q.Scope {
	case domain.ScopeGlobal:
	case domain.ScopeCategory, domain.ScopeOrganization:
		if q.ScopeID <= 0 {
			return domain.Validationf("scopeId", "required for scope %q", q.Scope)
		}
	default:
		return domain.Validationf("scope", "unknown scope %q", q.Scope)
	}

	if q.Limit <= 0 {
		q.Limit = defaultLeaderboardLimit
	}
	if q.Limit > maxLeaderboardLimit {
		q.Limit = maxLeaderboardLimit
	}
	if q.Page <= 0 {
		q.Page = 1
	}
	return nil
}
