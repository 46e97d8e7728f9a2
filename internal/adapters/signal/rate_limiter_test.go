package signal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestMatchRateLimiter_Window(t *testing.T) {
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	rl := NewMatchRateLimiter(2, time.Minute)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("s1"))
	assert.True(t, rl.Allow("s1"))
	assert.False(t, rl.Allow("s1"))
	assert.True(t, rl.Allow("s2"))

	now = now.Add(time.Minute + time.Second)
	assert.True(t, rl.Allow("s1"))
}

func TestMatchRateLimiter_Forget(t *testing.T) {
	rl := NewMatchRateLimiter(1, time.Hour)
	assert.True(t, rl.Allow("s1"))
	assert.False(t, rl.Allow("s1"))
	rl.Forget("s1")
	assert.True(t, rl.Allow("s1"))
}

func TestMatchRateLimiter_NilAllowsAll(t *testing.T) {
	rl := NewMatchRateLimiter(0, time.Minute)
	assert.Nil(t, rl)
	for i := 0; i < 100; i++ {
		assert.True(t, rl.Allow("s1"))
	}
	rl.Forget("s1")
}

func TestPropertyRateLimiterNeverExceedsLimit(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		limit := rapid.IntRange(1, 10).Draw(t, "limit")
		calls := rapid.IntRange(0, 50).Draw(t, "calls")
		now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
		rl := NewMatchRateLimiter(limit, time.Minute)
		rl.now = func() time.Time { return now }

		allowed := 0
		for i := 0; i < calls; i++ {
			if rl.Allow("s") {
				allowed++
			}
		}
		want := calls
		if want > limit {
			want = limit
		}
		if allowed != want {
			t.Fatalf("allowed %d of %d with limit %d", allowed, calls, limit)
		}
	})
}
