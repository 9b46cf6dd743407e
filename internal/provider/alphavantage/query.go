package alphavantage

import (
	"net/url"
	"strconv"

	"stockproxy/internal/provider"
)

const (
	defaultInterval   = "daily"
	defaultTimePeriod = 14
	seriesType        = "close"
	outputSizeCompact = "compact"

	macdFastPeriod   = 12
	macdSlowPeriod   = 26
	macdSignalPeriod = 9
)

// buildQuery merges caller params with the identity fields and the
// function-specific defaults. Fixed values always win over caller params;
// interval and time_period only fall back when the caller left them empty.
func buildQuery(apiKey string, fn provider.Function, symbol string, params provider.Params) url.Values {
	q := url.Values{}
	for k, v := range params {
		q.Set(k, v)
	}
	q.Set("function", string(fn))
	q.Set("symbol", symbol)
	q.Set("apikey", apiKey)

	switch fn {
	case provider.TimeSeriesDaily:
		q.Set("outputsize", outputSizeCompact)
	case provider.RSI:
		setDefault(q, "interval", defaultInterval)
		setDefault(q, "time_period", strconv.Itoa(defaultTimePeriod))
		q.Set("series_type", seriesType)
	case provider.MACD:
		setDefault(q, "interval", defaultInterval)
		q.Set("series_type", seriesType)
		q.Set("fastperiod", strconv.Itoa(macdFastPeriod))
		q.Set("slowperiod", strconv.Itoa(macdSlowPeriod))
		q.Set("signalperiod", strconv.Itoa(macdSignalPeriod))
	}
	return q
}

func setDefault(q url.Values, key, value string) {
	if q.Get(key) == "" {
		q.Set(key, value)
	}
}
