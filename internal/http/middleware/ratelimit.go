package middleware

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// KeyFunc maps a request to its rate-limit bucket.
type KeyFunc func(*gin.Context) string

// CostFunc returns how many tokens a request consumes.
type CostFunc func(*gin.Context) int

// KeyByUserOrIP buckets by the demo identity when the caller sent one and by
// client IP otherwise.
func KeyByUserOrIP() KeyFunc {
	return func(c *gin.Context) string {
		if uid := c.GetHeader(HeaderUserID); uid != "" {
			return "user:" + UserID(c)
		}
		return "ip:" + c.ClientIP()
	}
}

// TurnCost charges chat turns more than reads: a POST to a messages route
// costs turnCost tokens, everything else one.
func TurnCost(turnCost int) CostFunc {
	if turnCost < 1 {
		turnCost = 1
	}
	return func(c *gin.Context) int {
		if c.Request.Method == http.MethodPost && strings.HasSuffix(c.FullPath(), "/messages") {
			return turnCost
		}
		return 1
	}
}

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// RateLimiter is a process-local token bucket per key. Idle buckets are
// swept every sweepEvery lookups.
type RateLimiter struct {
	limit rate.Limit
	burst int
	key   KeyFunc
	cost  CostFunc
	now   func() time.Time

	mu         sync.Mutex
	buckets    map[string]*bucket
	idleTTL    time.Duration
	lookups    int
	sweepEvery int
}

// NewRateLimiter returns a limiter refilling rps tokens per second up to
// burst. cost may be nil for one token per request.
func NewRateLimiter(rps float64, burst int, key KeyFunc, cost CostFunc) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	if cost == nil {
		cost = func(*gin.Context) int { return 1 }
	}
	return &RateLimiter{
		limit:      rate.Limit(rps),
		burst:      burst,
		key:        key,
		cost:       cost,
		now:        time.Now,
		buckets:    make(map[string]*bucket),
		idleTTL:    10 * time.Minute,
		sweepEvery: 5000,
	}
}

func (rl *RateLimiter) limiter(key string, now time.Time) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.lookups++
	if rl.lookups >= rl.sweepEvery {
		for k, b := range rl.buckets {
			if now.Sub(b.lastSeen) >= rl.idleTTL {
				delete(rl.buckets, k)
			}
		}
		rl.lookups = 0
	}
	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(rl.limit, rl.burst)}
		rl.buckets[key] = b
	}
	b.lastSeen = now
	return b.lim
}

// Len returns the number of live buckets.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.buckets)
}

// IsRateBypass reports whether IdempotencyValidator found a replayable reply.
func IsRateBypass(c *gin.Context) bool {
	b, _ := c.Value(ctxKeyRateBypass).(bool)
	return b
}

// Handler enforces the limit. Rejected requests get 429 rate_limited with a
// Retry-After computed from the bucket. Replays are never limited.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsRateBypass(c) {
			c.Next()
			return
		}
		now := rl.now()
		n := min(rl.cost(c), rl.burst)
		res := rl.limiter(rl.key(c), now).ReserveN(now, n)
		if !res.OK() {
			abortRateLimited(c, time.Second)
			return
		}
		if d := res.DelayFrom(now); d > 0 {
			res.CancelAt(now)
			abortRateLimited(c, d)
			return
		}
		c.Next()
	}
}

func abortRateLimited(c *gin.Context, wait time.Duration) {
	secs := int(math.Ceil(wait.Seconds()))
	if secs < 1 {
		secs = 1
	}
	c.Header("Retry-After", strconv.Itoa(secs))
	abortJSON(c, http.StatusTooManyRequests, "rate_limited", "rate limit exceeded")
}
