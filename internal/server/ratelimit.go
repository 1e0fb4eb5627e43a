package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const limiterIdleTTL = 10 * time.Minute

// clientRateLimiter keeps one token bucket per client IP. Idle buckets are
// swept at most once per limiterIdleTTL.
type clientRateLimiter struct {
	mu        sync.Mutex
	limit     rate.Limit
	burst     int
	clock     func() time.Time
	limiters  map[string]*clientLimiter
	lastSweep time.Time
	logger    *zap.Logger
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newClientRateLimiter(requestsPerMinute int, clock func() time.Time, logger *zap.Logger) *clientRateLimiter {
	if clock == nil {
		clock = time.Now
	}
	return &clientRateLimiter{
		limit:     rate.Every(time.Minute / time.Duration(requestsPerMinute)),
		burst:     requestsPerMinute,
		clock:     clock,
		limiters:  make(map[string]*clientLimiter),
		lastSweep: clock(),
		logger:    logger,
	}
}

func (l *clientRateLimiter) allow(clientIP string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	if now.Sub(l.lastSweep) > limiterIdleTTL {
		l.sweep(now)
	}

	entry, ok := l.limiters[clientIP]
	if !ok {
		entry = &clientLimiter{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[clientIP] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

// sweep drops idle buckets. Callers hold l.mu.
func (l *clientRateLimiter) sweep(now time.Time) {
	for ip, entry := range l.limiters {
		if now.Sub(entry.lastSeen) > limiterIdleTTL {
			delete(l.limiters, ip)
		}
	}
	l.lastSweep = now
}

func (l *clientRateLimiter) middleware(c *gin.Context) {
	if !l.allow(c.ClientIP()) {
		l.logger.Warn("rate limit exceeded", zap.String("client_ip", c.ClientIP()), zap.String("path", c.FullPath()))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate_limited"})
		return
	}
	c.Next()
}
