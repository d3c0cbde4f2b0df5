package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/streamcart/backend/internal/interfaces/http/dto"
)

// RateLimiter is a fixed-window request limiter keyed by caller.
// Windows are tracked in memory, so limits apply per process, not
// across replicas.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*requestWindow
	limit   int
	period  time.Duration

	now  func() time.Time
	stop chan struct{}
}

type requestWindow struct {
	used      int
	startedAt time.Time
}

// NewRateLimiter creates a limiter allowing limit requests per period
// and starts a background sweep that evicts idle callers.
func NewRateLimiter(limit int, period time.Duration) *RateLimiter {
	rl := &RateLimiter{
		buckets: make(map[string]*requestWindow),
		limit:   limit,
		period:  period,
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	go rl.sweep()
	return rl
}

// Stop terminates the background eviction sweep.
func (rl *RateLimiter) Stop() {
	close(rl.stop)
}

func (rl *RateLimiter) sweep() {
	ticker := time.NewTicker(rl.period * 2)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.mu.Lock()
			rl.evict(rl.now())
			rl.mu.Unlock()
		}
	}
}

// evict drops buckets idle for more than two full windows so a burst
// of distinct callers cannot grow the map without bound. Caller holds
// the lock.
func (rl *RateLimiter) evict(now time.Time) {
	cutoff := now.Add(-2 * rl.period)
	for key, w := range rl.buckets {
		if w.startedAt.Before(cutoff) {
			delete(rl.buckets, key)
		}
	}
}

// Allow reports whether another request from key fits in the current
// window, and how many more would still fit after it.
func (rl *RateLimiter) Allow(key string) (bool, int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	w, ok := rl.buckets[key]
	if !ok || now.Sub(w.startedAt) >= rl.period {
		rl.buckets[key] = &requestWindow{used: 1, startedAt: now}
		return true, rl.limit - 1
	}
	if w.used < rl.limit {
		w.used++
		return true, rl.limit - w.used
	}
	return false, 0
}

// RateLimit caps requests per client IP, scoped by sales channel when
// the header carries a well-formed channel id so one channel's spike
// does not starve another.
func RateLimit(limiter *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		if channelID := c.GetHeader(ChannelIDHeader); channelID != "" && isValidScopeID(channelID) {
			key = channelID + ":" + key
		}

		allowed, remaining := limiter.Allow(key)
		c.Header("X-RateLimit-Limit", strconv.Itoa(limiter.limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if !allowed {
			retryAfter := int(limiter.period.Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests,
				dto.NewErrorResponse(dto.ErrCodeRateLimited, "Too many requests. Please try again later."))
			return
		}

		c.Next()
	}
}
