package http

import (
	"context"
	"sync"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"golang.org/x/time/rate"

	logx "github.com/wayfarer-planner/server/pkg/logger"
	"github.com/wayfarer-planner/server/pkg/metrics"
)

const limiterIdleTTL = 10 * time.Minute

type visitor struct {
	limiter *rate.Limiter
	seen    time.Time
}

// RateLimiter keeps one token bucket per client key.
type RateLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	now      func() time.Time
	visitors map[string]*visitor
	swept    time.Time
}

// NewRateLimiter allows perMinute requests per client with bursts of burst.
func NewRateLimiter(perMinute, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		limit:    rate.Limit(float64(perMinute) / 60),
		burst:    burst,
		now:      time.Now,
		visitors: map[string]*visitor{},
	}
}

func (l *RateLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.swept) > limiterIdleTTL {
		for k, v := range l.visitors {
			if now.Sub(v.seen) > limiterIdleTTL {
				delete(l.visitors, k)
			}
		}
		l.swept = now
	}

	v, ok := l.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[key] = v
	}
	v.seen = now
	return v.limiter.AllowN(now, 1)
}

// Middleware rejects clients over their budget with 429.
func (l *RateLimiter) Middleware(route string) app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		key := c.ClientIP()
		if key == "" {
			key = "unknown"
		}
		if !l.Allow(key) {
			metrics.HTTPRateLimitedTotal.WithLabelValues(route).Inc()
			logx.Warn().Str("client", key).Str("route", route).Msg("rate limited")
			c.AbortWithStatusJSON(consts.StatusTooManyRequests, utils.H{"error": "Too many requests, please slow down"})
			return
		}
		c.Next(ctx)
	}
}
