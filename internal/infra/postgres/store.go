// Package postgres persists the grading audit trail and serves the aggregate
// queries the ranking and leaderboard paths rely on.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/uptrace/bun"

	"quiz-scoring-service/internal/domain"
)

// Store is the bun-backed implementation of the app storage interfaces.
type Store struct {
	db *bun.DB
}

func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

// SaveSubmission inserts all response rows of one batch in a single
// transaction; a failed batch persists nothing.
func (s *Store) SaveSubmission(ctx context.Context, responses []*domain.QuestionResponse) error {
	return s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(&responses).Exec(ctx); err != nil {
			return fmt.Errorf("insert responses: %w", err)
		}
		return nil
	})
}

// SaveAward writes the attempt and score rows together; both commit or
// neither does.
func (s *Store) SaveAward(ctx context.Context, attempt *domain.QuizAttempt, score *domain.Score) error {
	return s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(attempt).Exec(ctx); err != nil {
			return fmt.Errorf("insert attempt: %w", err)
		}
		if _, err := tx.NewInsert().Model(score).Exec(ctx); err != nil {
			return fmt.Errorf("insert score: %w", err)
		}
		return nil
	})
}

// UserTotals aggregates every user's cumulative score; users with no scores
// appear with 0.
func (s *Store) UserTotals(ctx context.Context) ([]domain.UserTotal, error) {
	var totals []domain.UserTotal
	err := s.db.NewSelect().
		TableExpr("users AS u").
		ColumnExpr("u.id AS user_id").
		ColumnExpr("COALESCE(SUM(s.score), 0) AS total_score").
		Join("LEFT JOIN scores AS s ON s.user_id = u.id").
		GroupExpr("u.id").
		OrderExpr("total_score DESC, u.id ASC").
		Scan(ctx, &totals)
	if err != nil {
		return nil, fmt.Errorf("aggregate user totals: %w", err)
	}
	return totals, nil
}

// UpdateRanks applies all rank updates inside one transaction so a failure
// never leaves a partially overwritten ranking.
func (s *Store) UpdateRanks(ctx context.Context, ranks []domain.UserRank) error {
	return s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		for _, r := range ranks {
			res, err := tx.NewUpdate().
				Model((*domain.User)(nil)).
				Set("ranking = ?", r.Rank).
				Where("id = ?", r.UserID).
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("update rank for user %d: %w", r.UserID, err)
			}
			affected, err := res.RowsAffected()
			if err != nil {
				return err
			}
			if affected == 0 {
				return domain.ErrUserNotFound
			}
		}
		return nil
	})
}

func (s *Store) UserTotal(ctx context.Context, userID int64) (int64, error) {
	exists, err := s.db.NewSelect().
		Model((*domain.User)(nil)).
		Where("id = ?", userID).
		Exists(ctx)
	if err != nil {
		return 0, fmt.Errorf("check user: %w", err)
	}
	if !exists {
		return 0, domain.ErrUserNotFound
	}

	var total int64
	err = s.db.NewSelect().
		TableExpr("scores AS s").
		ColumnExpr("COALESCE(SUM(s.score), 0)").
		Where("s.user_id = ?", userID).
		Scan(ctx, &total)
	if err != nil {
		return 0, fmt.Errorf("sum user scores: %w", err)
	}
	return total, nil
}

func (s *Store) CountHigherTotals(ctx context.Context, total int64, excludeUserID int64) (int, error) {
	subq := s.db.NewSelect().
		TableExpr("scores AS s").
		ColumnExpr("s.user_id").
		Where("s.user_id != ?", excludeUserID).
		GroupExpr("s.user_id").
		Having("SUM(s.score) > ?", total)

	var count int
	err := s.db.NewSelect().
		ColumnExpr("count(*)").
		TableExpr("(?) AS higher", subq).
		Scan(ctx, &count)
	if err != nil {
		return 0, fmt.Errorf("count higher totals: %w", err)
	}
	return count, nil
}

// Leaderboard recomputes aggregates on read. Zero-score users are included
// through the left join; tie-breaks go through user id for determinism.
func (s *Store) Leaderboard(ctx context.Context, q domain.LeaderboardQuery) ([]domain.LeaderboardRow, int, error) {
	sel := s.db.NewSelect().
		TableExpr("users AS u").
		ColumnExpr("u.id AS user_id").
		ColumnExpr("u.username AS username").
		ColumnExpr("u.ranking AS ranking").
		ColumnExpr("COALESCE(SUM(s.score), 0) AS total_score").
		ColumnExpr("COUNT(DISTINCT s.quiz_id) AS quizzes_completed")

	switch q.Scope {
	case domain.ScopeCategory:
		sel = sel.Join(
			"LEFT JOIN scores AS s ON s.user_id = u.id AND s.quiz_id IN (SELECT id FROM quizzes WHERE category_id = ?)",
			q.ScopeID)
	case domain.ScopeOrganization:
		sel = sel.Join("LEFT JOIN scores AS s ON s.user_id = u.id").
			Where("u.organization_id = ?", q.ScopeID)
	default:
		sel = sel.Join("LEFT JOIN scores AS s ON s.user_id = u.id")
	}

	dir := "ASC"
	if q.Desc {
		dir = "DESC"
	}
	sel = sel.
		GroupExpr("u.id, u.username, u.ranking").
		OrderExpr(fmt.Sprintf("total_score %s, quizzes_completed %s, u.id %s", dir, dir, dir)).
		Limit(q.Limit).
		Offset((q.Page - 1) * q.Limit)

	var rows []domain.LeaderboardRow
	if err := sel.Scan(ctx, &rows); err != nil {
		return nil, 0, fmt.Errorf("leaderboard query: %w", err)
	}

	countQ := s.db.NewSelect().Model((*domain.User)(nil))
	if q.Scope == domain.ScopeOrganization {
		countQ = countQ.Where("organization_id = ?", q.ScopeID)
	}
	total, err := countQ.Count(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("leaderboard count: %w", err)
	}
	return rows, total, nil
}
