// Package health exposes the liveness and readiness probes. Readiness
// combines live dependency checks with a process-level gate that shutdown
// flips off so load balancers drain the instance before it stops accepting.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"
)

var acceptingTraffic atomic.Bool

func init() {
	acceptingTraffic.Store(true)
}

// SetReady flips the process-level readiness gate. Call with false at the
// start of graceful shutdown.
func SetReady(ready bool) {
	acceptingTraffic.Store(ready)
}

// Checker probes the dependencies readiness depends on.
type Checker interface {
	PingDB(ctx context.Context, timeout time.Duration) error
	PingRedis(ctx context.Context, timeout time.Duration) error
}

// Handler serves the probe endpoints.
type Handler struct {
	Checker      Checker
	DBTimeout    time.Duration
	RedisTimeout time.Duration
}

// Live answers as long as the process can serve HTTP at all.
func (h Handler) Live(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ready reports per-dependency status and 503s when any probe fails or the
// process is draining.
func (h Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.Checker == nil {
		http.Error(w, "dependencies unavailable", http.StatusServiceUnavailable)
		return
	}

	status := map[string]string{"db": "ok", "redis": "ok"}
	healthy := acceptingTraffic.Load()
	if !healthy {
		status["state"] = "draining"
	}

	ctx := r.Context()
	if err := h.Checker.PingDB(ctx, orDefault(h.DBTimeout, 500*time.Millisecond)); err != nil {
		status["db"] = err.Error()
		healthy = false
	}
	if err := h.Checker.PingRedis(ctx, orDefault(h.RedisTimeout, 300*time.Millisecond)); err != nil {
		status["redis"] = err.Error()
		healthy = false
	}

	w.Header().Set("Content-Type", "application/json")
	if !healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(status)
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}
