// Package ratelimit enforces per-client request budgets with a sliding
// window over Redis sorted sets, so every API instance shares one view of a
// client's recent request history.
package ratelimit

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Verdict is the outcome of a single budget check.
type Verdict struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// Limiter tracks request timestamps per key in a Redis sorted set scored by
// nanosecond arrival time.
type Limiter struct {
	Client *redis.Client
	Prefix string
}

// Allow records one request for key and reports whether the window budget
// still covers it. A nil client or non-positive limits disable enforcement.
func (l Limiter) Allow(ctx context.Context, key string, window time.Duration, max int) (Verdict, error) {
	reset := time.Now().Add(window)
	if l.Client == nil || max <= 0 || window <= 0 {
		return Verdict{Allowed: true, Remaining: max, ResetAt: reset}, nil
	}

	now := time.Now()
	setKey := l.Prefix + key
	cutoff := strconv.FormatFloat(float64(now.Add(-window).UnixNano()), 'f', -1, 64)

	// One round trip: prune expired entries, record this request, count what
	// is left in the window.
	pipe := l.Client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, setKey, "-inf", cutoff)
	pipe.ZAdd(ctx, setKey, redis.Z{
		Score:  float64(now.UnixNano()),
		Member: key + ":" + uuid.NewString(),
	})
	count := pipe.ZCard(ctx, setKey)
	pipe.Expire(ctx, setKey, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return Verdict{ResetAt: reset}, err
	}

	used := int(count.Val())
	remaining := max - used
	if remaining < 0 {
		remaining = 0
	}
	return Verdict{Allowed: used <= max, Remaining: remaining, ResetAt: reset}, nil
}
