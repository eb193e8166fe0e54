package httpmiddleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"hackhub/internal/metrics"
)

// KeyFunc picks the bucket a request draws from.
type KeyFunc func(c *gin.Context) string

// ByIP keys requests by client IP.
func ByIP(c *gin.Context) string {
	if ip := c.ClientIP(); ip != "" {
		return ip
	}
	return "unknown"
}

// SimpleTokenBucket is an in-memory rate limiter. Buckets are per process, so limits are
// per replica.
type SimpleTokenBucket struct {
	name     string
	capacity int
	rate     int
	key      KeyFunc
	now      func() time.Time
	mu       sync.Mutex
	state    map[string]*bucket
}

type bucket struct {
	tokens int
	last   time.Time
}

// NewSimpleTokenBucket creates limiter with capacity tokens and rate per minute. A nil key
// limits per client IP.
func NewSimpleTokenBucket(name string, capacity, perMinute int, key KeyFunc) *SimpleTokenBucket {
	if capacity <= 0 {
		capacity = perMinute
	}
	if key == nil {
		key = ByIP
	}
	return &SimpleTokenBucket{
		name:     name,
		capacity: capacity,
		rate:     perMinute,
		key:      key,
		now:      time.Now,
		state:    make(map[string]*bucket),
	}
}

// GinMiddleware returns gin handler enforcing the limit.
func (l *SimpleTokenBucket) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if l.rate <= 0 {
			c.Next()
			return
		}
		if !l.allow(l.key(c)) {
			metrics.RateLimited.WithLabelValues(l.name).Inc()
			c.Header("Retry-After", "60")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit"})
			return
		}
		c.Next()
	}
}

func (l *SimpleTokenBucket) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.state[key]
	now := l.now()
	if !ok {
		b = &bucket{tokens: l.capacity - 1, last: now}
		l.state[key] = b
		return true
	}
	elapsed := now.Sub(b.last).Minutes()
	refill := int(elapsed * float64(l.rate))
	if refill > 0 {
		b.tokens += refill
		if b.tokens > l.capacity {
			b.tokens = l.capacity
		}
		b.last = now
	}
	if b.tokens <= 0 {
		return false
	}
	b.tokens--
	return true
}

// Sweep drops buckets that have refilled to capacity. Such a bucket behaves exactly like an
// unseen key, so removing it only frees memory. It returns the number of buckets dropped.
func (l *SimpleTokenBucket) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	dropped := 0
	for key, b := range l.state {
		refill := int(now.Sub(b.last).Minutes() * float64(l.rate))
		if b.tokens+refill >= l.capacity {
			delete(l.state, key)
			dropped++
		}
	}
	return dropped
}

// Run sweeps idle buckets every interval until ctx is done.
func (l *SimpleTokenBucket) Run(ctx context.Context, every time.Duration) {
	if l.rate <= 0 || every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Sweep()
		}
	}
}
