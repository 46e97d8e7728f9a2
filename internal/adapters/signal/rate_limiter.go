package signal

import (
	"errors"
	"sync"
	"time"

	"github.com/dkeye/DafChat/internal/core"
)

var ErrRateLimited = errors.New("too many match requests")

// MatchRateLimiter is a sliding window over match requests per connection.
type MatchRateLimiter struct {
	mu       sync.Mutex
	history  map[core.SessionID][]time.Time
	limit    int
	interval time.Duration
	now      func() time.Time
}

// NewMatchRateLimiter returns nil when limit is zero; a nil limiter allows
// everything.
func NewMatchRateLimiter(limit int, interval time.Duration) *MatchRateLimiter {
	if limit <= 0 {
		return nil
	}
	return &MatchRateLimiter{
		history:  make(map[core.SessionID][]time.Time),
		limit:    limit,
		interval: interval,
		now:      time.Now,
	}
}

func (rl *MatchRateLimiter) Allow(sid core.SessionID) bool {
	if rl == nil {
		return true
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	windowStart := now.Add(-rl.interval)

	attempts := rl.history[sid]
	fresh := attempts[:0]
	for _, t := range attempts {
		if t.After(windowStart) {
			fresh = append(fresh, t)
		}
	}
	if len(fresh) >= rl.limit {
		rl.history[sid] = fresh
		return false
	}
	rl.history[sid] = append(fresh, now)
	return true
}

// Forget drops the history of a closed connection.
func (rl *MatchRateLimiter) Forget(sid core.SessionID) {
	if rl == nil {
		return
	}
	rl.mu.Lock()
	delete(rl.history, sid)
	rl.mu.Unlock()
}
