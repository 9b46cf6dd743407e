// Package observe decorates a provider.Fetcher with logging and metrics.
package observe

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/tidwall/gjson"
	"stockproxy/internal/logger"
	"stockproxy/internal/metrics"
	"stockproxy/internal/provider"
)

// Fetcher records every upstream call it forwards.
type Fetcher struct {
	F       provider.Fetcher
	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

func (o *Fetcher) Fetch(ctx context.Context, fn provider.Function, symbol string, params provider.Params) (gjson.Result, error) {
	start := time.Now()
	doc, err := o.F.Fetch(ctx, fn, symbol, params)
	elapsed := time.Since(start)

	log := logger.FromContext(ctx, o.Logger).With(
		slog.String("function", string(fn)),
		slog.String("symbol", symbol),
		slog.Duration("duration", elapsed),
	)
	if err != nil {
		o.Metrics.Upstream(string(fn), outcome(err), elapsed)
		log.Warn("upstream request failed", slog.Int("status", provider.StatusOf(err)), slog.String("error", err.Error()))
		return doc, err
	}
	o.Metrics.Upstream(string(fn), "ok", elapsed)
	log.Debug("upstream request", slog.Int("bytes", len(doc.Raw)))
	return doc, nil
}

func outcome(err error) string {
	switch provider.StatusOf(err) {
	case http.StatusBadRequest:
		return "provider_error"
	case http.StatusTooManyRequests:
		return "rate_limited"
	default:
		return "error"
	}
}
