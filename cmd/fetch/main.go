// Command fetch runs the indicator pipeline in-process for a set of symbols
// and prints the normalized series as JSON, keyed by symbol then indicator.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"stockproxy/internal/cache"
	"stockproxy/internal/config"
	"stockproxy/internal/httpx"
	"stockproxy/internal/indicator"
	"stockproxy/internal/logger"
	"stockproxy/internal/provider"
	"stockproxy/internal/provider/alphavantage"
	"stockproxy/internal/provider/observe"
	"stockproxy/internal/provider/ratelimit"
)

type result struct {
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

func main() {
	var (
		symbolsCSV    string
		indicatorsCSV string
		timePeriod    int
		configPath    string
		concurrency   int
	)
	flag.StringVar(&symbolsCSV, "symbols", "IBM", "comma-separated ticker symbols")
	flag.StringVar(&indicatorsCSV, "indicators", "ohlc,rsi,macd,mult2", "comma-separated indicators")
	flag.IntVar(&timePeriod, "time-period", indicator.DefaultRSIPeriod, "rsi time period")
	flag.StringVar(&configPath, "config", "", "path to a config file (optional)")
	flag.IntVar(&concurrency, "concurrency", 2, "max requests in flight")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	// Logs go to stderr so stdout stays valid JSON.
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logger.ParseLevel(cfg.Log.Level)}))
	if cfg.APIKeyMissing() {
		log.Warn("ALPHA_VANTAGE_API_KEY not set; using placeholder key")
	}

	kinds, err := parseKinds(indicatorsCSV)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	av := cfg.AlphaVantage
	var f provider.Fetcher = alphavantage.New(av.APIKey,
		alphavantage.WithBaseURL(av.Endpoint),
		alphavantage.WithHTTPClient(httpx.New(time.Duration(av.TimeoutSec)*time.Second)),
	)
	f = ratelimit.Pace(f, av.MaxRequestsPerMinute, av.Burst, time.Duration(av.MinRequestIntervalSec)*time.Second)
	f = &observe.Fetcher{F: f, Logger: log}
	svc := indicator.NewService(f, cache.NewMemory(),
		indicator.WithLogger(log),
		indicator.WithFetchTimeout(time.Duration(av.TimeoutSec)*time.Second),
	)

	out := run(context.Background(), svc, splitCSV(symbolsCSV), kinds, timePeriod, concurrency)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(out); err != nil {
		fmt.Fprintf(os.Stderr, "encode: %v\n", err)
		os.Exit(1)
	}
}

// run fetches every symbol/indicator pair with at most concurrency calls in
// flight. A failed pair is reported in its slot; it does not stop the rest.
func run(ctx context.Context, svc *indicator.Service, symbols []string, kinds []indicator.Kind, timePeriod, concurrency int) map[string]map[indicator.Kind]result {
	var mu sync.Mutex
	out := make(map[string]map[indicator.Kind]result, len(symbols))
	for _, s := range symbols {
		out[s] = make(map[indicator.Kind]result, len(kinds))
	}

	g, gctx := errgroup.WithContext(ctx)
	if concurrency > 0 {
		g.SetLimit(concurrency)
	}
	for _, symbol := range symbols {
		for _, kind := range kinds {
			g.Go(func() error {
				data, err := load(gctx, svc, kind, symbol, timePeriod)
				r := result{Data: data}
				if err != nil {
					r = result{Error: provider.MessageOf(err)}
				}
				mu.Lock()
				out[symbol][kind] = r
				mu.Unlock()
				return nil
			})
		}
	}
	_ = g.Wait()
	return out
}

func load(ctx context.Context, svc *indicator.Service, kind indicator.Kind, symbol string, timePeriod int) (any, error) {
	switch kind {
	case indicator.KindOHLC:
		return svc.OHLC(ctx, symbol)
	case indicator.KindRSI:
		return svc.RSI(ctx, symbol, timePeriod)
	case indicator.KindMACD:
		return svc.MACD(ctx, symbol)
	case indicator.KindDoubleSMA:
		return svc.DoubleSMA(ctx, symbol)
	default:
		return nil, fmt.Errorf("unknown indicator %q", kind)
	}
}

func parseKinds(csv string) ([]indicator.Kind, error) {
	var kinds []indicator.Kind
	for _, name := range splitCSV(csv) {
		k := indicator.Kind(strings.ToLower(name))
		if !slices.Contains(indicator.Kinds, k) {
			return nil, fmt.Errorf("unknown indicator %q (want one of %v)", name, indicator.Kinds)
		}
		kinds = append(kinds, k)
	}
	if len(kinds) == 0 {
		return nil, errors.New("no indicators given")
	}
	return kinds, nil
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
