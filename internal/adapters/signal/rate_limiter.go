package signal

import (
	"sync"

	"github.com/dkeye/roomrelay/internal/core"
	"golang.org/x/time/rate"
)

// RateLimiter is a token bucket per session for inbound events.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[core.SessionID]*rate.Limiter
	limit    rate.Limit
	burst    int
}

// NewRateLimiter returns nil when eventsPerSecond is not positive; a nil
// limiter allows everything.
func NewRateLimiter(eventsPerSecond float64, burst int) *RateLimiter {
	if eventsPerSecond <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		limiters: make(map[core.SessionID]*rate.Limiter),
		limit:    rate.Limit(eventsPerSecond),
		burst:    burst,
	}
}

func (rl *RateLimiter) Allow(sid core.SessionID) bool {
	if rl == nil {
		return true
	}
	rl.mu.Lock()
	l, ok := rl.limiters[sid]
	if !ok {
		l = rate.NewLimiter(rl.limit, rl.burst)
		rl.limiters[sid] = l
	}
	rl.mu.Unlock()
	return l.Allow()
}

func (rl *RateLimiter) Forget(sid core.SessionID) {
	if rl == nil {
		return
	}
	rl.mu.Lock()
	delete(rl.limiters, sid)
	rl.mu.Unlock()
}
