// Command avdump prints the raw Alpha Vantage payload for one function and
// symbol, pretty-printed, to see the provider's section and field names.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"stockproxy/internal/config"
	"stockproxy/internal/httpx"
	"stockproxy/internal/provider"
	"stockproxy/internal/provider/alphavantage"
)

// paramFlag collects repeated -param key=value flags.
type paramFlag provider.Params

func (p paramFlag) String() string {
	parts := make([]string, 0, len(p))
	for k, v := range p {
		parts = append(parts, k+"="+v)
	}
	return strings.Join(parts, ",")
}

func (p paramFlag) Set(s string) error {
	k, v, ok := strings.Cut(s, "=")
	if !ok || strings.TrimSpace(k) == "" {
		return fmt.Errorf("want key=value, got %q", s)
	}
	p[strings.TrimSpace(k)] = strings.TrimSpace(v)
	return nil
}

func main() {
	var (
		function   string
		symbol     string
		configPath string
		path       string
	)
	params := paramFlag{}
	flag.StringVar(&function, "function", string(provider.TimeSeriesDaily), "provider function, e.g. TIME_SERIES_DAILY, RSI, MACD")
	flag.StringVar(&symbol, "symbol", "IBM", "ticker symbol")
	flag.StringVar(&configPath, "config", "", "path to a config file (optional)")
	flag.StringVar(&path, "path", "", "gjson path to print instead of the whole payload, e.g. \"Meta Data\"")
	flag.Var(params, "param", "extra query parameter key=value (repeatable)")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if cfg.APIKeyMissing() {
		fmt.Fprintln(os.Stderr, "warning: ALPHA_VANTAGE_API_KEY not set; using placeholder key")
	}

	timeout := time.Duration(cfg.AlphaVantage.TimeoutSec) * time.Second
	client := alphavantage.New(cfg.AlphaVantage.APIKey,
		alphavantage.WithBaseURL(cfg.AlphaVantage.Endpoint),
		alphavantage.WithHTTPClient(httpx.New(timeout)),
	)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	doc, err := client.Fetch(ctx, provider.Function(strings.ToUpper(function)), symbol, provider.Params(params))
	if err != nil {
		fmt.Fprintf(os.Stderr, "fetch: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(render(doc, path))
}

// render pretty-prints doc, or only the value at path when one is given.
func render(doc gjson.Result, path string) string {
	if path != "" {
		doc = doc.Get(gjson.Escape(path))
		if !doc.Exists() {
			return "null"
		}
	}
	return strings.TrimRight(doc.Get("@pretty").Raw, "\n")
}
