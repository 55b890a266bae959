package middleware

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	apperrors "github.com/streamspace/fleetconsole/internal/errors"
)

// APIKeyRateLimiter is a token bucket per API key — the rate-limit state the
// design notes call out: only (tokens, last_refill_ts) are kept, never
// persisted, so every bucket refills to full across a restart.
type APIKeyRateLimiter struct {
	mu          sync.Mutex
	readBuckets map[string]*rate.Limiter
	writeBuckets map[string]*rate.Limiter
	readRPS     float64
	writeRPS    float64
}

// NewAPIKeyRateLimiter builds the limiter with the defaults from §5:
// 60 write RPS, 600 read RPS, per API key.
func NewAPIKeyRateLimiter() *APIKeyRateLimiter {
	rl := &APIKeyRateLimiter{
		readBuckets:  make(map[string]*rate.Limiter),
		writeBuckets: make(map[string]*rate.Limiter),
		readRPS:      600,
		writeRPS:     60,
	}
	go rl.cleanupRoutine()
	return rl
}

func (rl *APIKeyRateLimiter) cleanupRoutine() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		rl.mu.Lock()
		if len(rl.readBuckets) > 50000 {
			rl.readBuckets = make(map[string]*rate.Limiter)
		}
		if len(rl.writeBuckets) > 50000 {
			rl.writeBuckets = make(map[string]*rate.Limiter)
		}
		rl.mu.Unlock()
	}
}

func isWriteMethod(method string) bool {
	switch method {
	case "POST", "PUT", "PATCH", "DELETE":
		return true
	default:
		return false
	}
}

func (rl *APIKeyRateLimiter) limiterFor(apiKeyID string, write bool) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	buckets := rl.readBuckets
	rps := rl.readRPS
	if write {
		buckets = rl.writeBuckets
		rps = rl.writeRPS
	}
	lim, ok := buckets[apiKeyID]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(rps), int(rps))
		buckets[apiKeyID] = lim
	}
	return lim
}

// Middleware enforces the bucket for the authenticated API key (set by
// RequireAPIKey upstream) and advertises X-RateLimit-* headers.
func (rl *APIKeyRateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKeyID, _ := c.Get("apiKeyID")
		keyID, _ := apiKeyID.(string)
		if keyID == "" {
			keyID = c.ClientIP()
		}

		write := isWriteMethod(c.Request.Method)
		limiter := rl.limiterFor(keyID, write)

		c.Header("X-RateLimit-Limit", strconv.Itoa(int(limiter.Limit())))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(int(limiter.Tokens())))

		if !limiter.Allow() {
			err := apperrors.RateLimited()
			c.JSON(err.StatusCode, err.ToResponse())
			c.Abort()
			return
		}

		c.Next()
	}
}
