package resilience_test

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/osd-exam/backend-registration/internal/resilience"
)

func stateOf(target string) float64 {
	return testutil.ToFloat64(resilience.BreakerState.WithLabelValues(target))
}

func TestBreakerTelemetryFollowsLifecycle(t *testing.T) {
	resilience.BreakerState.Reset()
	resilience.BreakerTransitions.Reset()
	resilience.BreakerOpenedTotal.Reset()

	const target = "workflow-webhook"
	b := resilience.NewBreaker(1, 0.5, 20*time.Millisecond).WithTarget(target)
	ctx := context.Background()

	require.True(t, b.Allow(ctx))
	b.Report(ctx, false)
	require.Equal(t, 1.0, stateOf(target), "gauge should show open")

	require.Eventually(t, func() bool { return b.Allow(ctx) },
		200*time.Millisecond, 5*time.Millisecond)
	require.Equal(t, 2.0, stateOf(target), "gauge should show half-open")

	b.Report(ctx, true)
	require.Equal(t, 0.0, stateOf(target), "gauge should show closed")

	require.Equal(t, 1.0,
		testutil.ToFloat64(resilience.BreakerOpenedTotal.WithLabelValues(target)))

	for _, leg := range [][2]string{
		{"closed", "open"},
		{"open", "half_open"},
		{"half_open", "closed"},
	} {
		count := testutil.ToFloat64(resilience.BreakerTransitions.WithLabelValues(target, leg[0], leg[1]))
		require.Equal(t, 1.0, count, "transition %s to %s", leg[0], leg[1])
	}
}
