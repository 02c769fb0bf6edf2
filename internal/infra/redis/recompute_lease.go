package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	leaseKey          = "rankings:recompute:lock"
	lastRecomputeKey  = "rankings:last_recompute"
	defaultLeaseValue = "1"
)

// RecomputeLease serializes full rank recomputes across instances with a
// SETNX lease, and records when the last successful run finished so
// staleness is observable.
type RecomputeLease struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRecomputeLease(client *redis.Client, ttl time.Duration) *RecomputeLease {
	return &RecomputeLease{client: client, ttl: ttl}
}

func (l *RecomputeLease) Acquire(ctx context.Context) (func(), bool, error) {
	ok, err := l.client.SetNX(ctx, leaseKey, defaultLeaseValue, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire recompute lease: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	release := func() {
		_ = l.client.Del(context.Background(), leaseKey).Err()
	}
	return release, true, nil
}

func (l *RecomputeLease) MarkRecomputed(ctx context.Context) error {
	return l.client.Set(ctx, lastRecomputeKey, time.Now().UTC().Format(time.RFC3339), 0).Err()
}

// LastRecomputed reports when a full recompute last succeeded; zero time if
// never.
func (l *RecomputeLease) LastRecomputed(ctx context.Context) (time.Time, error) {
	raw, err := l.client.Get(ctx, lastRecomputeKey).Result()
	if err == redis.Nil {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("last recompute: %w", err)
	}
	return time.Parse(time.RFC3339, raw)
}
