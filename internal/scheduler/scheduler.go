// Package scheduler triggers the periodic full rank recompute.
package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron"

	"quiz-scoring-service/internal/app"
)

// Scheduler runs the full rank recompute on an interval. Runs are
// idempotent, and overlapping triggers are absorbed by the engine's
// singleflight/lease, so firing more often than needed is harmless.
type Scheduler struct {
	cron     *gocron.Scheduler
	rankings *app.RankingService
	timeout  time.Duration
}

func New(rankings *app.RankingService, interval time.Duration) (*Scheduler, error) {
	s := &Scheduler{
		cron:     gocron.NewScheduler(time.UTC),
		rankings: rankings,
		timeout:  5 * time.Minute,
	}
	if _, err := s.cron.Every(interval).Do(s.recompute); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Scheduler) recompute() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.rankings.RecomputeAll(ctx); err != nil {
		// Stale ranks are recoverable; the next run retries.
		log.Printf("scheduled rank recompute failed: %v", err)
	}
}

func (s *Scheduler) Start() {
	s.cron.StartAsync()
}

func (s *Scheduler) Stop() {
	s.cron.Stop()
}
