package resilience_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/osd-exam/backend-registration/internal/resilience"
)

func TestBreakerOpensAtFailureRatio(t *testing.T) {
	b := resilience.NewBreaker(2, 0.5, 40*time.Millisecond)
	ctx := context.Background()

	require.True(t, b.Allow(ctx))
	b.Report(ctx, false)
	require.True(t, b.Allow(ctx), "one failure is below the minimum sample size")
	b.Report(ctx, false)

	require.False(t, b.Allow(ctx), "ratio threshold reached, breaker must reject")
}

func TestBreakerRecoversThroughProbe(t *testing.T) {
	b := resilience.NewBreaker(1, 0.5, 20*time.Millisecond)
	ctx := context.Background()

	b.Report(ctx, false)
	require.False(t, b.Allow(ctx))

	require.Eventually(t, func() bool { return b.Allow(ctx) },
		200*time.Millisecond, 5*time.Millisecond, "cool-off should admit a probe")

	b.Report(ctx, true)
	require.True(t, b.Allow(ctx), "successful probe closes the breaker")
}

func TestBreakerFailedProbeReopens(t *testing.T) {
	b := resilience.NewBreaker(1, 0.5, 20*time.Millisecond)
	ctx := context.Background()

	b.Report(ctx, false)
	require.Eventually(t, func() bool { return b.Allow(ctx) },
		200*time.Millisecond, 5*time.Millisecond)

	b.Report(ctx, false)
	require.False(t, b.Allow(ctx), "failed probe restarts the cool-off")
}

func TestBackoffGrowth(t *testing.T) {
	base := 100 * time.Millisecond

	require.Equal(t, base, resilience.Backoff(base, 1, 0))
	require.Equal(t, 2*base, resilience.Backoff(base, 2, 0))
	require.Equal(t, 8*base, resilience.Backoff(base, 4, 0))

	// Jittered delays stay within the configured spread.
	for i := 0; i < 20; i++ {
		d := resilience.Backoff(base, 2, 0.25)
		require.GreaterOrEqual(t, d, 150*time.Millisecond)
		require.LessOrEqual(t, d, 250*time.Millisecond)
	}
}
