package ratelimit

import (
	"context"

	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"
	"stockproxy/internal/provider"
)

// TokenBucket wraps a Fetcher and gates calls using a token bucket:
// perMinute tokens are added per minute, up to burst. The bucket starts
// full to allow an initial burst.
type TokenBucket struct {
	F       provider.Fetcher
	limiter *rate.Limiter
}

func NewTokenBucket(f provider.Fetcher, perMinute float64, burst int) *TokenBucket {
	if perMinute <= 0 {
		perMinute = 0.0000001
	}
	if burst <= 0 {
		burst = 1
	}
	return &TokenBucket{F: f, limiter: rate.NewLimiter(rate.Limit(perMinute/60.0), burst)}
}

func (t *TokenBucket) Fetch(ctx context.Context, fn provider.Function, symbol string, params provider.Params) (gjson.Result, error) {
	if err := wait(ctx, t.limiter); err != nil {
		return gjson.Result{}, err
	}
	return t.F.Fetch(ctx, fn, symbol, params)
}
