package ratelimit

import (
	"context"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"
	"stockproxy/internal/provider"
)

// MinInterval wraps a Fetcher and enforces a minimum time between calls.
// Concurrent calls wait their turn, or fail as rate limited if the context
// ends first.
type MinInterval struct {
	F       provider.Fetcher
	limiter *rate.Limiter
}

// NewMinInterval spaces calls to f at least interval apart. A non-positive
// interval disables pacing.
func NewMinInterval(f provider.Fetcher, interval time.Duration) *MinInterval {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &MinInterval{F: f, limiter: rate.NewLimiter(limit, 1)}
}

func (m *MinInterval) Fetch(ctx context.Context, fn provider.Function, symbol string, params provider.Params) (gjson.Result, error) {
	if err := wait(ctx, m.limiter); err != nil {
		return gjson.Result{}, err
	}
	return m.F.Fetch(ctx, fn, symbol, params)
}

// wait blocks for one token. rate.Limiter refuses up front when the wait
// would outlast the context deadline.
func wait(ctx context.Context, l *rate.Limiter) error {
	if err := l.Wait(ctx); err != nil {
		return provider.RateLimitError(err)
	}
	return nil
}

// Pace wraps f with a token bucket when perMinute is set, otherwise with a
// minimum interval when one is set. With neither, f is returned as is.
func Pace(f provider.Fetcher, perMinute, burst int, minInterval time.Duration) provider.Fetcher {
	switch {
	case perMinute > 0:
		return NewTokenBucket(f, float64(perMinute), burst)
	case minInterval > 0:
		return NewMinInterval(f, minInterval)
	default:
		return f
	}
}
