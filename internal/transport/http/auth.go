package http

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"eloquence-server-go/internal/platform/config"
	"eloquence-server-go/internal/platform/logging"
)

// guard enforces the API key, rate limits per client IP and blocks IPs
// that keep failing authentication.
type guard struct {
	cfg    config.SecurityConfig
	logger *logging.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	failures map[string][]time.Time
	blocked  map[string]time.Time
}

func newGuard(cfg config.SecurityConfig, logger *logging.Logger) *guard {
	return &guard{
		cfg:      cfg,
		logger:   logger,
		limiters: make(map[string]*rate.Limiter),
		failures: make(map[string][]time.Time),
		blocked:  make(map[string]time.Time),
	}
}

// RateLimit is applied to every route.
func (g *guard) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !g.allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}

// RequireAPIKey is applied to the control plane routes.
func (g *guard) RequireAPIKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()

		if g.isBlocked(ip) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "too many failed authentications",
			})
			return
		}

		if c.GetHeader("X-API-Key") != g.cfg.APIKey || g.cfg.APIKey == "" {
			g.recordFailure(ip)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid api key",
			})
			return
		}
		c.Next()
	}
}

func (g *guard) allow(ip string) bool {
	perMinute := g.cfg.MaxRequestsPerMinute
	if perMinute <= 0 {
		return true
	}

	g.mu.Lock()
	limiter, ok := g.limiters[ip]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), perMinute)
		g.limiters[ip] = limiter
	}
	g.mu.Unlock()
	return limiter.Allow()
}

func (g *guard) isBlocked(ip string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	until, ok := g.blocked[ip]
	if !ok {
		return false
	}
	if time.Now().After(until) {
		delete(g.blocked, ip)
		return false
	}
	return true
}

func (g *guard) recordFailure(ip string) {
	now := time.Now()
	windowStart := now.Add(-g.cfg.AuthFailWindow)

	g.mu.Lock()
	defer g.mu.Unlock()

	recent := g.failures[ip][:0]
	for _, t := range g.failures[ip] {
		if t.After(windowStart) {
			recent = append(recent, t)
		}
	}
	recent = append(recent, now)
	g.failures[ip] = recent

	if len(recent) >= g.cfg.AuthFailLimit {
		g.blocked[ip] = now.Add(g.cfg.AuthBlockDuration)
		delete(g.failures, ip)
		if g.logger != nil {
			g.logger.WarnTag("HTTP", "blocked %s for %s after repeated auth failures", ip, g.cfg.AuthBlockDuration)
		}
	}
}
