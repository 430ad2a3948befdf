package resilience

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Breaker telemetry, labelled by downstream target. Gauge values follow
// State.gauge: 0 closed, 1 open, 2 half-open.
var (
	BreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "breaker_state",
		Help: "Current circuit breaker state per target (0=closed,1=open,2=half-open).",
	}, []string{"target"})

	BreakerTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "breaker_transition_total",
		Help: "Circuit breaker state transitions by origin and destination state.",
	}, []string{"target", "from", "to"})

	BreakerOpenedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "breaker_open_total",
		Help: "Times a circuit breaker tripped open.",
	}, []string{"target"})
)
