package ratelimit

import (
	"net/http"
	"strconv"
	"time"
)

// Config derives the limit key for a request and sets the window budget.
type Config struct {
	Key    func(*http.Request) string
	Window time.Duration
	Max    int
}

// Handler wraps HTTP handlers with limit enforcement. A failing limiter
// backend lets requests through; rejecting traffic because Redis blipped
// would turn a cache outage into an API outage.
type Handler struct {
	Limiter Limiter
	Config  Config
	OnError func(error)
}

func (h Handler) Middleware(next http.Handler) http.Handler {
	if h.Config.Key == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		verdict, err := h.Limiter.Allow(r.Context(), h.Config.Key(r), h.Config.Window, h.Config.Max)
		if err != nil {
			if h.OnError != nil {
				h.OnError(err)
			}
			next.ServeHTTP(w, r)
			return
		}

		writeBudget(w.Header(), h.Config.Max, verdict)
		if !verdict.Allowed {
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeBudget(hdr http.Header, max int, v Verdict) {
	if max < 0 {
		max = 0
	}
	hdr.Set("X-RateLimit-Limit", strconv.Itoa(max))
	hdr.Set("X-RateLimit-Remaining", strconv.Itoa(v.Remaining))
	hdr.Set("X-RateLimit-Reset", strconv.FormatInt(v.ResetAt.Unix(), 10))
	if v.Allowed {
		return
	}
	retryAfter := int(time.Until(v.ResetAt).Seconds())
	if retryAfter < 0 {
		retryAfter = 0
	}
	hdr.Set("Retry-After", strconv.Itoa(retryAfter))
}
