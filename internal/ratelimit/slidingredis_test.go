package ratelimit

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T) (Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return Limiter{Client: client, Prefix: "rl:"}, mr
}

func TestLimiterBudgetExhaustion(t *testing.T) {
	limiter, mr := newTestLimiter(t)
	ctx := context.Background()
	window := 2 * time.Second
	const max = 3

	for i := 1; i <= max; i++ {
		v, err := limiter.Allow(ctx, "203.0.113.9", window, max)
		require.NoError(t, err)
		require.True(t, v.Allowed, "request %d should fit the budget", i)
		require.Equal(t, max-i, v.Remaining)
	}

	v, err := limiter.Allow(ctx, "203.0.113.9", window, max)
	require.NoError(t, err)
	require.False(t, v.Allowed)
	require.Zero(t, v.Remaining)

	mr.FastForward(window)

	v, err = limiter.Allow(ctx, "203.0.113.9", window, max)
	require.NoError(t, err)
	require.True(t, v.Allowed, "budget should refill once the window slides past")
}

func TestLimiterKeysAreIndependent(t *testing.T) {
	limiter, _ := newTestLimiter(t)
	ctx := context.Background()

	v, err := limiter.Allow(ctx, "client-a", time.Second, 1)
	require.NoError(t, err)
	require.True(t, v.Allowed)

	v, err = limiter.Allow(ctx, "client-a", time.Second, 1)
	require.NoError(t, err)
	require.False(t, v.Allowed)

	v, err = limiter.Allow(ctx, "client-b", time.Second, 1)
	require.NoError(t, err)
	require.True(t, v.Allowed, "a saturated neighbour must not spill over")
}

func TestLimiterDisabledWithoutClient(t *testing.T) {
	v, err := Limiter{}.Allow(context.Background(), "anyone", time.Second, 5)
	require.NoError(t, err)
	require.True(t, v.Allowed)
	require.Equal(t, 5, v.Remaining)
}
