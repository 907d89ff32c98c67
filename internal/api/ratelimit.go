package api

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const (
	limiterCleanupEvery = 3 * time.Minute
	limiterIdleAfter    = 30 * time.Minute
)

type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter allows each client IP a budget of limit requests per window,
// refilled continuously
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*ipLimiter
	rate     rate.Limit
	interval time.Duration
	burst    int
	message  string
	now      func() time.Time
}

// NewRateLimiter creates a limiter of limit requests per window. Stale
// client entries are dropped until ctx is done.
func NewRateLimiter(ctx context.Context, limit int, window time.Duration, message string) *RateLimiter {
	if limit < 1 {
		limit = 1
	}
	rl := &RateLimiter{
		limiters: make(map[string]*ipLimiter),
		rate:     rate.Every(window / time.Duration(limit)),
		interval: window / time.Duration(limit),
		burst:    limit,
		message:  message,
		now:      time.Now,
	}
	go rl.cleanupLoop(ctx)
	return rl
}

func (rl *RateLimiter) get(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if l, ok := rl.limiters[ip]; ok {
		l.lastSeen = rl.now()
		return l.limiter
	}
	l := rate.NewLimiter(rl.rate, rl.burst)
	rl.limiters[ip] = &ipLimiter{limiter: l, lastSeen: rl.now()}
	return l
}

func (rl *RateLimiter) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(limiterCleanupEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.sweep()
		}
	}
}

func (rl *RateLimiter) sweep() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for ip, l := range rl.limiters {
		if rl.now().Sub(l.lastSeen) > limiterIdleAfter {
			delete(rl.limiters, ip)
		}
	}
}

// Middleware rejects requests over budget with 429
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.get(c.ClientIP()).Allow() {
			retry := int(math.Ceil(rl.interval.Seconds()))
			if retry < 1 {
				retry = 1
			}
			c.Header("Retry-After", strconv.Itoa(retry))
			abort(c, NewError(http.StatusTooManyRequests, rl.message))
			return
		}
		c.Next()
	}
}
