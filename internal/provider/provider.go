package provider

import (
	"context"

	"github.com/tidwall/gjson"
)

// Function names an upstream query function.
type Function string

const (
	TimeSeriesDaily Function = "TIME_SERIES_DAILY"
	RSI             Function = "RSI"
	MACD            Function = "MACD"
)

// Params carries caller-supplied, function-specific query parameters
// (e.g. "interval", "time_period"). Keys use the provider's spelling.
type Params map[string]string

// Fetcher retrieves one raw payload from the market-data provider.
// The returned document is parsed but not reshaped; object keys keep the
// order the provider sent them in.
//
//go:generate mockgen -package=indicator_test -destination=../indicator/mock_fetcher_test.go -source=provider.go Fetcher
type Fetcher interface {
	Fetch(ctx context.Context, fn Function, symbol string, params Params) (gjson.Result, error)
}
