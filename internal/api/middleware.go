package api

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// ipLimiters hands out one token bucket per client IP: 20 req/s, burst 50.
// The map is flushed every few minutes so long-gone clients don't pin memory.
type ipLimiters struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
}

func newIPLimiters() *ipLimiters {
	l := &ipLimiters{buckets: make(map[string]*rate.Limiter)}
	go func() {
		for range time.Tick(5 * time.Minute) {
			l.mu.Lock()
			l.buckets = make(map[string]*rate.Limiter)
			l.mu.Unlock()
		}
	}()
	return l
}

func (l *ipLimiters) allow(ip string) bool {
	l.mu.Lock()
	bucket, ok := l.buckets[ip]
	if !ok {
		bucket = rate.NewLimiter(rate.Limit(20), 50)
		l.buckets[ip] = bucket
	}
	l.mu.Unlock()
	return bucket.Allow()
}

// RateLimitMiddleware throttles each client IP independently.
func RateLimitMiddleware() gin.HandlerFunc {
	limiters := newIPLimiters()
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if !limiters.allow(ip) {
			log.Printf("[RATE_LIMIT] %s throttled", ip)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}

// CORSMiddleware answers preflight requests and opens the API to browsers.
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
		h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// RequestIDMiddleware tags every request with an id, honoring one supplied by
// the caller so ids stay stable across proxies.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("RequestID", id)
		c.Writer.Header().Set("X-Request-ID", id)
		c.Next()
	}
}

// TimeoutMiddleware bounds handler time. The handler runs in its own
// goroutine so a stuck downstream call cannot hold the connection forever.
func TimeoutMiddleware(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)

		done := make(chan struct{})
		panicked := make(chan any, 1)
		go func() {
			defer func() {
				if p := recover(); p != nil {
					panicked <- p
				}
			}()
			c.Next()
			close(done)
		}()

		select {
		case <-done:
		case p := <-panicked:
			log.Printf("[PANIC] %s %s: %v", c.Request.Method, c.Request.URL.Path, p)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": "internal server error",
			})
		case <-ctx.Done():
			log.Printf("[TIMEOUT] %s %s", c.Request.Method, c.Request.URL.Path)
			c.AbortWithStatusJSON(http.StatusRequestTimeout, gin.H{
				"error": "request timeout",
			})
		}
	}
}

// RequestLogger writes one line per request with the short request id,
// status and latency.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		method := c.Request.Method
		path := c.Request.URL.Path

		c.Next()

		id := c.GetString("RequestID")
		if len(id) > 8 {
			id = id[:8]
		}
		log.Printf("[API] %s | %s %s | %d | %v | %s",
			id, method, path, c.Writer.Status(), time.Since(start), c.ClientIP())
	}
}
