package app

import (
	"context"
	"log"
	"sort"

	"golang.org/x/sync/singleflight"

	"quiz-scoring-service/internal/domain"
)

// RankingStore exposes the aggregate reads and rank writes the engine needs.
// UpdateRanks must apply all updates in one transaction so a failed recompute
// never partially overwrites ranks.
type RankingStore interface {
	UserTotals(ctx context.Context) ([]domain.UserTotal, error)
	UpdateRanks(ctx context.Context, ranks []domain.UserRank) error
	UserTotal(ctx context.Context, userID int64) (int64, error)
	CountHigherTotals(ctx context.Context, total int64, excludeUserID int64) (int, error)
}

// RecomputeLease serializes full recomputes across instances. Acquire
// returns ok=false when another holder owns the lease.
type RecomputeLease interface {
	Acquire(ctx context.Context) (release func(), ok bool, err error)
	MarkRecomputed(ctx context.Context) error
}

// RankingService maintains the denormalized users.ranking column. Rank is
// always derivable from Score rows, so every operation here is safe to rerun.
type RankingService struct {
	store RankingStore
	lease RecomputeLease
	sf    singleflight.Group
}

func NewRankingService(store RankingStore) *RankingService {
	return &RankingService{store: store}
}

// WithLease enables cross-instance serialization of full recomputes.
func (s *RankingService) WithLease(lease RecomputeLease) *RankingService {
	s.lease = lease
	return s
}

// RecomputeAll rebuilds every user's rank from aggregated score totals. It is
// idempotent and safe to invoke concurrently: in-process callers are
// collapsed by singleflight, and the optional lease skips runs that overlap
// another instance. On any error the previous ranks are left untouched.
func (s *RankingService) RecomputeAll(ctx context.Context) error {
	_, err, _ := s.sf.Do("full-recompute", func() (any, error) {
		return nil, s.recomputeAll(ctx)
	})
	if err != nil {
		log.Printf("full rank recompute failed: %v", err)
	}
	return err
}

func (s *RankingService) recomputeAll(ctx context.Context) error {
	if s.lease != nil {
		release, ok, err := s.lease.Acquire(ctx)
		if err != nil {
			return err
		}
		if !ok {
			// Another instance is already recomputing; duplicates are
			// tolerated by skipping, not by queueing.
			log.Printf("rank recompute skipped: lease held elsewhere")
			return nil
		}
		defer release()
	}

	totals, err := s.store.UserTotals(ctx)
	if err != nil {
		return err
	}

	ranks := AssignRanks(totals)
	if err := s.store.UpdateRanks(ctx, ranks); err != nil {
		return err
	}

	if s.lease != nil {
		if err := s.lease.MarkRecomputed(ctx); err != nil {
			log.Printf("mark recompute timestamp: %v", err)
		}
	}
	return nil
}

// RecomputeUser recalculates one user's rank after their score changed. This
// is a best-effort low-latency approximation; the scheduled full recompute is
// authoritative and corrects any divergence from concurrent awards.
func (s *RankingService) RecomputeUser(ctx context.Context, userID int64) error {
	total, err := s.store.UserTotal(ctx, userID)
	if err != nil {
		return err
	}
	higher, err := s.store.CountHigherTotals(ctx, total, userID)
	if err != nil {
		return err
	}
	return s.store.UpdateRanks(ctx, []domain.UserRank{{UserID: userID, Rank: 1 + higher}})
}

// AssignRanks orders totals by (total desc, user id asc) and assigns
// competition ("1224") ranks: ties share a rank, the next distinct total gets
// its 1-based position in the walk.
func AssignRanks(totals []domain.UserTotal) []domain.UserRank {
	ordered := make([]domain.UserTotal, len(totals))
	copy(ordered, totals)
	// User id is the tie-break, never display name, so ordering is stable
	// regardless of collation.
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].TotalScore != ordered[j].TotalScore {
			return ordered[i].TotalScore > ordered[j].TotalScore
		}
		return ordered[i].UserID < ordered[j].UserID
	})

	ranks := make([]domain.UserRank, len(ordered))
	currentRank := 0
	var prevTotal int64
	for i, row := range ordered {
		if i == 0 || row.TotalScore != prevTotal {
			currentRank = i + 1
		}
		ranks[i] = domain.UserRank{UserID: row.UserID, Rank: currentRank}
		prevTotal = row.TotalScore
	}
	return ranks
}
