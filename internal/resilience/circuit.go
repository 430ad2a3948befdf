// Package resilience wraps outbound calls with a failure-ratio circuit
// breaker and retry helpers, so a struggling downstream is probed instead
// of hammered.
package resilience

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// ErrOpenCircuit is returned when the breaker refuses a request.
var ErrOpenCircuit = errors.New("resilience: circuit breaker open")

var nopBreakerLog = zerolog.Nop()

// State is the breaker's position in its lifecycle.
type State int

const (
	// Closed lets everything through while counting outcomes.
	Closed State = iota
	// Open rejects everything until the cool-off elapses.
	Open
	// HalfOpen admits probe traffic to test recovery.
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	}
	return "unknown"
}

func (s State) gauge() float64 {
	switch s {
	case Closed:
		return 0
	case Open:
		return 1
	case HalfOpen:
		return 2
	}
	return -1
}

// Breaker trips open when the observed failure ratio crosses a threshold.
// A single successful probe in half-open closes it again; a failed probe
// re-opens it for another cool-off.
type Breaker struct {
	mu       sync.Mutex
	state    State
	ok       int
	bad      int
	minTotal int
	trip     float64
	openedAt time.Time
	coolOff  time.Duration
	target   string
	log      *zerolog.Logger
}

// NewBreaker builds a closed breaker. The failure ratio is only evaluated
// once minRequests outcomes have been reported, so a single early failure
// cannot trip it.
func NewBreaker(minRequests int, failureRatio float64, openFor time.Duration) *Breaker {
	if minRequests < 1 {
		minRequests = 1
	}
	if failureRatio <= 0 {
		failureRatio = 0.5
	} else if failureRatio > 1 {
		failureRatio = 1
	}
	if openFor <= 0 {
		openFor = 30 * time.Second
	}
	return &Breaker{minTotal: minRequests, trip: failureRatio, coolOff: openFor}
}

// WithTarget names the downstream dependency for metric labels and logs.
func (b *Breaker) WithTarget(target string) *Breaker {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.target = strings.TrimSpace(target)
	b.publishState()
	return b
}

// WithLogger sets the logger for transition events when the request context
// carries none.
func (b *Breaker) WithLogger(logger zerolog.Logger) *Breaker {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.log = &logger
	return b
}

// Allow reports whether a request may proceed. An open breaker whose
// cool-off has elapsed flips to half-open and admits the caller as a probe.
func (b *Breaker) Allow(ctx context.Context) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != Open {
		return true
	}
	if time.Since(b.openedAt) < b.coolOff {
		return false
	}
	b.transition(ctx, HalfOpen)
	return true
}

// Report feeds one request outcome into the state machine.
func (b *Breaker) Report(ctx context.Context, success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Open:
		// Late reports from requests admitted before the trip.
		return
	case HalfOpen:
		if success {
			b.transition(ctx, Closed)
		} else {
			b.transition(ctx, Open)
		}
		return
	}

	if success {
		b.ok++
	} else {
		b.bad++
	}
	total := b.ok + b.bad
	if total < b.minTotal {
		return
	}
	if float64(b.bad)/float64(total) >= b.trip {
		b.transition(ctx, Open)
		return
	}
	if total > b.minTotal*2 {
		// Decay so ancient outcomes stop dominating the ratio.
		b.ok = int(math.Ceil(float64(b.ok) * 0.5))
		b.bad = int(math.Ceil(float64(b.bad) * 0.5))
	}
}

func (b *Breaker) transition(ctx context.Context, next State) {
	prev := b.state
	if prev == next {
		b.publishState()
		return
	}
	b.state = next
	b.ok, b.bad = 0, 0
	switch next {
	case Open:
		b.openedAt = time.Now()
	case Closed:
		b.openedAt = time.Time{}
	}
	b.publishState()

	label := b.label()
	if BreakerTransitions != nil {
		BreakerTransitions.WithLabelValues(label, prev.String(), next.String()).Inc()
	}
	if next == Open && BreakerOpenedTotal != nil {
		BreakerOpenedTotal.WithLabelValues(label).Inc()
	}

	evt := b.logger(ctx).Info().
		Str("target", label).
		Str("from_state", prev.String()).
		Str("to_state", next.String())
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		evt = evt.Str("trace_id", sc.TraceID().String())
	}
	evt.Msg("breaker_transition")
}

func (b *Breaker) publishState() {
	if BreakerState == nil {
		return
	}
	BreakerState.WithLabelValues(b.label()).Set(b.state.gauge())
}

func (b *Breaker) label() string {
	if b.target == "" {
		return "default"
	}
	return b.target
}

func (b *Breaker) logger(ctx context.Context) *zerolog.Logger {
	if fromCtx := zerolog.Ctx(ctx); fromCtx != nil {
		l := fromCtx.With().Logger()
		return &l
	}
	if b.log != nil {
		return b.log
	}
	return &nopBreakerLog
}

// Backoff computes the exponential delay for attempt (1-based), spread by
// jitterPct in either direction. jitterPct of 0.2 means plus or minus 20%.
func Backoff(base time.Duration, attempt int, jitterPct float64) time.Duration {
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	if attempt < 1 {
		attempt = 1
	}
	d := base << uint(attempt-1)
	if jitterPct <= 0 {
		return d
	}
	spread := (rand.Float64()*2 - 1) * jitterPct * float64(d)
	return d + time.Duration(spread)
}
