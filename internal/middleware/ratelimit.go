package middleware

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/notebook/internal/pkg/errcode"
	"github.com/xxxsen/notebook/internal/pkg/response"
)

// Limiter admits at most one request per key and window.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

type rateLimiter struct {
	mu            sync.Mutex
	window        time.Duration
	last          map[string]time.Time
	sweepInterval time.Duration
	lastSweep     time.Time
	now           func() time.Time
}

func NewMemoryLimiter(window time.Duration) Limiter {
	return &rateLimiter{
		window:        window,
		last:          make(map[string]time.Time),
		sweepInterval: time.Minute,
		now:           time.Now,
	}
}

func (l *rateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	if now.Sub(l.lastSweep) >= l.sweepInterval {
		l.cleanupExpiredLocked(now)
	}
	if last, ok := l.last[key]; ok && now.Sub(last) < l.window {
		return false, nil
	}
	l.last[key] = now
	return true, nil
}

func (l *rateLimiter) cleanupExpiredLocked(now time.Time) {
	for key, last := range l.last {
		if now.Sub(last) >= l.window {
			delete(l.last, key)
		}
	}
	l.lastSweep = now
}

type redisLimiter struct {
	client redis.UniversalClient
	window time.Duration
	prefix string
}

// NewRedisLimiter shares the limit between instances. A key is admitted
// when SETNX succeeds; the key expires after the window.
func NewRedisLimiter(client redis.UniversalClient, window time.Duration) Limiter {
	return &redisLimiter{client: client, window: window, prefix: "notebook:ratelimit:"}
}

func (l *redisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	return l.client.SetNX(ctx, l.prefix+key, 1, l.window).Result()
}

func rateKey(c *gin.Context) string {
	uid := "0"
	if v, ok := c.Get(ContextUserIDKey); ok {
		if id, ok := v.(string); ok && id != "" {
			uid = id
		}
	}
	path := c.FullPath()
	if path == "" {
		path = c.Request.URL.Path
	}
	return strings.Join([]string{c.ClientIP(), uid, path}, "|")
}

// RateLimit rejects repeated calls to the same route by the same caller.
// A limiter error lets the request through.
func RateLimit(limiter Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}
		key := rateKey(c)
		ok, err := limiter.Allow(c.Request.Context(), key)
		if err != nil {
			logutil.GetLogger(c.Request.Context()).Warn("rate limiter failed", zap.Error(err))
			c.Next()
			return
		}
		if !ok {
			logutil.GetLogger(c.Request.Context()).Warn("rate limit hit", zap.String("key", key))
			response.Raw(c, http.StatusTooManyRequests, errcode.ErrTooMany, http.StatusText(http.StatusTooManyRequests))
			return
		}
		c.Next()
	}
}
