package middleware

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/pasindubuddhika1999/findmyphone/internal/config"
)

// Limits are token bucket settings for one scope.
type Limits struct {
	SoftRefillRate int // tokens per second
	SoftBucketSize int
	HardRefillRate int // tokens per second
	HardBucketSize int
}

// DefaultLimits reads the global limits from config.
func DefaultLimits(cfg *config.Config) Limits {
	return Limits{
		SoftRefillRate: cfg.RateLimitSoftRefillRate,
		SoftBucketSize: cfg.RateLimitSoftBucketSize,
		HardRefillRate: cfg.RateLimitHardRefillRate,
		HardBucketSize: cfg.RateLimitHardBucketSize,
	}
}

// clientLimiter stores rate limiters for a specific client.
type clientLimiter struct {
	softLimiter *rate.Limiter
	hardLimiter *rate.Limiter
	lastSeen    time.Time
}

// RateLimiterMiddleware keeps soft and hard token buckets per client and scope.
// Exceeding the soft bucket asks for a captcha; a verified human skips it.
// The hard bucket always applies.
type RateLimiterMiddleware struct {
	clients map[string]*clientLimiter
	mu      sync.Mutex
	cfg     *config.Config
}

func NewRateLimiterMiddleware(cfg *config.Config) *RateLimiterMiddleware {
	rm := &RateLimiterMiddleware{
		clients: make(map[string]*clientLimiter),
		cfg:     cfg,
	}
	go rm.cleanupClients()
	return rm
}

func (rm *RateLimiterMiddleware) getClientLimiter(key string, l Limits) *clientLimiter {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	limiter, exists := rm.clients[key]
	if !exists {
		limiter = &clientLimiter{
			softLimiter: rate.NewLimiter(rate.Limit(l.SoftRefillRate), l.SoftBucketSize),
			hardLimiter: rate.NewLimiter(rate.Limit(l.HardRefillRate), l.HardBucketSize),
		}
		rm.clients[key] = limiter
	}
	limiter.lastSeen = time.Now()
	return limiter
}

// cleanupClients drops clients not seen for 30 minutes.
func (rm *RateLimiterMiddleware) cleanupClients() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		rm.mu.Lock()
		count := 0
		for id, client := range rm.clients {
			if time.Since(client.lastSeen) > 30*time.Minute {
				delete(rm.clients, id)
				count++
			}
		}
		rm.mu.Unlock()
		if count > 0 {
			log.Printf("Rate limiter cleanup removed %d old client entries.", count)
		}
	}
}

// Limit applies the configured default limits.
func (rm *RateLimiterMiddleware) Limit() gin.HandlerFunc {
	return rm.LimitWith("default", DefaultLimits(rm.cfg))
}

// LimitWith applies l under its own buckets, named by scope.
func (rm *RateLimiterMiddleware) LimitWith(scope string, l Limits) gin.HandlerFunc {
	return func(c *gin.Context) {
		client := clientFingerprint(c).String()
		limiter := rm.getClientLimiter(scope+"|"+client, l)

		if !limiter.hardLimiter.Allow() {
			log.Printf("Hard rate limit exceeded for client: %s on %s (%s)", client, c.FullPath(), scope)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
			return
		}

		if !c.GetBool(ContextKeyIsHumanVerified) && !limiter.softLimiter.Allow() {
			log.Printf("Soft rate limit exceeded for client: %s on %s (%s), captcha required", client, c.FullPath(), scope)
			c.AbortWithStatusJSON(http.StatusTeapot, gin.H{"error": "Captcha validation required"})
			return
		}

		c.Next()
	}
}
