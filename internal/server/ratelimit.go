package server

import (
	"context"
	"sync"
	"time"

	"kiosk-go/internal/biz"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/middleware"
)

// ErrRateLimited 管理接口请求过多
var ErrRateLimited = errors.New(429, biz.ReasonRateLimit, "rate limit exceeded")

// tokenBucket 容量为两秒的令牌
type tokenBucket struct {
	mu       sync.Mutex
	rate     float64
	capacity float64
	tokens   float64
	last     time.Time
	now      func() time.Time
}

func newTokenBucket(rps float64) *tokenBucket {
	if rps <= 0 {
		rps = 1
	}
	return &tokenBucket{
		rate:     rps,
		capacity: rps * 2,
		tokens:   rps * 2,
		last:     time.Now(),
		now:      time.Now,
	}
}

func (b *tokenBucket) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.now()
	if elapsed := now.Sub(b.last).Seconds(); elapsed > 0 {
		b.tokens = min(b.capacity, b.tokens+elapsed*b.rate)
	}
	b.last = now
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// rateLimit 令牌耗尽时返回 429
func rateLimit(b *tokenBucket) middleware.Middleware {
	return func(next middleware.Handler) middleware.Handler {
		return func(ctx context.Context, req any) (any, error) {
			if !b.allow() {
				return nil, ErrRateLimited
			}
			return next(ctx, req)
		}
	}
}
