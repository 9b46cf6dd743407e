package indicator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/sync/singleflight"
	"stockproxy/internal/cache"
	"stockproxy/internal/logger"
	"stockproxy/internal/metrics"
	"stockproxy/internal/provider"
)

const (
	// DefaultRSIPeriod applies when the caller gives no time period.
	DefaultRSIPeriod = 14
	// DefaultFetchTimeout bounds one upstream fetch, rate-limit wait included.
	DefaultFetchTimeout = 30 * time.Second
)

// Service serves normalized indicator series through a shared cache.
// Each result is cached as its JSON encoding for the configured TTL; a hit
// is returned without contacting the provider.
type Service struct {
	fetcher      provider.Fetcher
	store        cache.Store
	ttl          time.Duration
	fetchTimeout time.Duration
	logger       *slog.Logger
	metrics      *metrics.Metrics

	// coalesce concurrent misses per cache key
	group singleflight.Group
}

// Option configures a Service.
type Option func(*Service)

// WithTTL sets how long results stay cached.
func WithTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithFetchTimeout bounds each upstream fetch.
func WithFetchTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.fetchTimeout = d
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func NewService(fetcher provider.Fetcher, store cache.Store, opts ...Option) *Service {
	s := &Service{
		fetcher:      fetcher,
		store:        store,
		ttl:          cache.DefaultTTL,
		fetchTimeout: DefaultFetchTimeout,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OHLC returns the daily price series, newest first.
func (s *Service) OHLC(ctx context.Context, symbol string) ([]OHLC, error) {
	return load(ctx, s, KindOHLC, Key(KindOHLC, symbol), func(ctx context.Context) ([]OHLC, error) {
		doc, err := s.fetch(ctx, KindOHLC, symbol, nil)
		if err != nil {
			return nil, err
		}
		return normalizeOHLC(doc), nil
	})
}

// RSI returns the daily RSI series for timePeriod (0 means
// DefaultRSIPeriod), newest first.
func (s *Service) RSI(ctx context.Context, symbol string, timePeriod int) ([]RSI, error) {
	if timePeriod == 0 {
		timePeriod = DefaultRSIPeriod
	}
	period := strconv.Itoa(timePeriod)
	return load(ctx, s, KindRSI, Key(KindRSI, symbol, period), func(ctx context.Context) ([]RSI, error) {
		doc, err := s.fetch(ctx, KindRSI, symbol, provider.Params{"time_period": period})
		if err != nil {
			return nil, err
		}
		return normalizeRSI(doc), nil
	})
}

// MACD returns the daily 12/26/9 MACD series, newest first.
func (s *Service) MACD(ctx context.Context, symbol string) ([]MACD, error) {
	return load(ctx, s, KindMACD, Key(KindMACD, symbol), func(ctx context.Context) ([]MACD, error) {
		doc, err := s.fetch(ctx, KindMACD, symbol, nil)
		if err != nil {
			return nil, err
		}
		return normalizeMACD(doc), nil
	})
}

// DoubleSMA returns twice the 20-day SMA of daily closes, oldest first.
func (s *Service) DoubleSMA(ctx context.Context, symbol string) ([]DoubleSMA, error) {
	return load(ctx, s, KindDoubleSMA, Key(KindDoubleSMA, symbol), func(ctx context.Context) ([]DoubleSMA, error) {
		doc, err := s.fetch(ctx, KindDoubleSMA, symbol, nil)
		if err != nil {
			return nil, err
		}
		return ComputeDoubleSMA(dailyCloses(doc)), nil
	})
}

func (s *Service) fetch(ctx context.Context, kind Kind, symbol string, params provider.Params) (gjson.Result, error) {
	doc, err := s.fetcher.Fetch(ctx, layouts[kind].function, symbol, params)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("%s %s: %w", kind, symbol, err)
	}
	return doc, nil
}

// load serves key from the store, or builds, stores and returns it.
// Every caller gets its own decoded copy of the cached bytes.
func load[T any](ctx context.Context, s *Service, kind Kind, key string, build func(context.Context) ([]T, error)) ([]T, error) {
	log := logger.FromContext(ctx, s.logger).With(slog.String("key", key))

	if b, ok := s.lookup(ctx, log, key); ok {
		out, err := decode[T](b)
		if err == nil {
			s.metrics.CacheHit(string(kind))
			log.Debug("cache hit")
			return out, nil
		}
		log.Warn("discarding undecodable cache entry", slog.String("error", err.Error()))
	}
	s.metrics.CacheMiss(string(kind))
	log.Debug("cache miss")

	v, err, _ := s.group.Do(key, func() (any, error) {
		// The fetch outlives a caller that goes away; it is bounded by
		// fetchTimeout instead.
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.fetchTimeout)
		defer cancel()

		records, err := build(fctx)
		if err != nil {
			return nil, err
		}
		b, err := json.Marshal(records)
		if err != nil {
			return nil, provider.UnhandledError(fmt.Sprintf("encoding %s: %v", kind, err), err)
		}
		if err := s.store.Put(fctx, key, b, s.ttl); err != nil {
			log.Warn("cache write failed", slog.String("error", err.Error()))
		}
		return b, nil
	})
	if err != nil {
		return nil, err
	}
	return decode[T](v.([]byte))
}

// lookup treats store failures as misses.
func (s *Service) lookup(ctx context.Context, log *slog.Logger, key string) ([]byte, bool) {
	b, ok, err := s.store.Get(ctx, key)
	if err != nil {
		log.Warn("cache read failed", slog.String("error", err.Error()))
		return nil, false
	}
	return b, ok
}

func decode[T any](b []byte) ([]T, error) {
	out := []T{}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, provider.UnhandledError(fmt.Sprintf("decoding cached result: %v", err), err)
	}
	return out, nil
}
