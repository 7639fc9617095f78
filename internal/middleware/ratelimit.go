package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"

	"github.com/ddx-ranking-engine/internal/domain"
)

const (
	maxTrackedClients = 10000
	clientIdleTTL     = 10 * time.Minute
)

// RateLimiter keeps one token bucket per client IP. Idle clients age out of
// the bounded table.
type RateLimiter struct {
	limit   rate.Limit
	burst   int
	mu      sync.Mutex
	clients *expirable.LRU[string, *rate.Limiter]
}

// NewRateLimiter creates a limiter allowing perSecond requests per client
// with the given burst. A non-positive burst defaults to one second's worth.
func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	if burst <= 0 {
		burst = int(perSecond)
		if burst < 1 {
			burst = 1
		}
	}
	return &RateLimiter{
		limit:   rate.Limit(perSecond),
		burst:   burst,
		clients: expirable.NewLRU[string, *rate.Limiter](maxTrackedClients, nil, clientIdleTTL),
	}
}

// Allow reports whether client may make a request now
func (r *RateLimiter) Allow(client string) bool {
	r.mu.Lock()
	limiter, ok := r.clients.Get(client)
	if !ok {
		limiter = rate.NewLimiter(r.limit, r.burst)
	}
	r.clients.Add(client, limiter)
	r.mu.Unlock()

	return limiter.Allow()
}

// Middleware rejects requests over the limit with 429. A nil limiter lets
// everything through.
func (r *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if r == nil || r.limit <= 0 {
			c.Next()
			return
		}
		if !r.Allow(c.ClientIP()) {
			c.Header("Retry-After", strconv.Itoa(1))
			c.AbortWithStatusJSON(http.StatusTooManyRequests,
				domain.NewEngineError(domain.ErrRateLimit, "rate limit exceeded", "", GetCorrelationID(c)))
			return
		}
		c.Next()
	}
}
