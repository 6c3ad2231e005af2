package mw

import (
	"context"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter stores a rate limiter for each client IP address.
type IPRateLimiter struct {
	ips map[string]*visitor
	mu  sync.Mutex
	r   rate.Limit
	b   int
}

// NewIPRateLimiter creates a new IPRateLimiter.
func NewIPRateLimiter(r rate.Limit, b int) *IPRateLimiter {
	return &IPRateLimiter{
		ips: make(map[string]*visitor),
		r:   r,
		b:   b,
	}
}

// GetLimiter returns the rate limiter for an IP address, creating it on first use.
func (i *IPRateLimiter) GetLimiter(ip string) *rate.Limiter {
	i.mu.Lock()
	defer i.mu.Unlock()

	v, ok := i.ips[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(i.r, i.b)}
		i.ips[ip] = v
	}
	v.lastSeen = time.Now()
	return v.limiter
}

// Prune forgets addresses not seen for idle and returns how many were removed.
func (i *IPRateLimiter) Prune(idle time.Duration) int {
	i.mu.Lock()
	defer i.mu.Unlock()

	cutoff := time.Now().Add(-idle)
	removed := 0
	for ip, v := range i.ips {
		if v.lastSeen.Before(cutoff) {
			delete(i.ips, ip)
			removed++
		}
	}
	return removed
}

// Run prunes addresses idle for longer than idle every interval until ctx is done.
func (i *IPRateLimiter) Run(ctx context.Context, interval, idle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := i.Prune(idle); n > 0 {
				slog.Debug("pruned idle rate limiters", "removed", n)
			}
		}
	}
}

// RateLimiter is a middleware for IP-based rate limiting.
func RateLimiter(limiter *IPRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		l := limiter.GetLimiter(c.ClientIP())
		if !l.Allow() {
			retry := 1
			if l.Limit() > 0 {
				retry = int(math.Ceil(1 / float64(l.Limit())))
			}
			c.Header("Retry-After", strconv.Itoa(retry))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
