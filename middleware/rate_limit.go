package middleware

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// clientWindow tracks one client's request count inside the current window.
type clientWindow struct {
	count   int
	started time.Time
}

// RateLimiter implements a fixed-window rate limiter keyed by client IP.
// Each client gets its own window, so a burst from one IP never resets or
// consumes another client's budget.
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientWindow
	rate    int           // requests per window
	window  time.Duration // time window
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(rate int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		clients: make(map[string]*clientWindow),
		rate:    rate,
		window:  window,
	}
}

// Allow records a request for the client and reports whether it is within the
// rate. Stale windows are pruned opportunistically.
func (l *RateLimiter) Allow(clientIP string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	w, ok := l.clients[clientIP]
	if !ok || now.Sub(w.started) > l.window {
		l.clients[clientIP] = &clientWindow{count: 1, started: now}
		l.prune(now)
		return true
	}
	if w.count >= l.rate {
		return false
	}
	w.count++
	return true
}

// prune drops expired windows. Must be called with lock held.
func (l *RateLimiter) prune(now time.Time) {
	for ip, w := range l.clients {
		if now.Sub(w.started) > l.window {
			delete(l.clients, ip)
		}
	}
}

// RateLimit middleware limits requests per IP
func RateLimit(rate int, window time.Duration) gin.HandlerFunc {
	limiter := NewRateLimiter(rate, window)

	return func(c *gin.Context) {
		clientIP := c.ClientIP()

		if !limiter.Allow(clientIP) {
			slog.Warn("rate limit exceeded",
				"client_ip", clientIP,
				"request_id", GetRequestID(c),
			)

			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "Rate limit exceeded. Please try again later.",
			})
			return
		}

		c.Next()
	}
}
