package indicator

import (
	"strings"

	"github.com/tidwall/gjson"
	"stockproxy/internal/provider"
)

// Kind names an indicator served by the proxy. Its value is also the
// cache-key prefix and the route segment.
type Kind string

const (
	KindOHLC      Kind = "ohlc"
	KindRSI       Kind = "rsi"
	KindMACD      Kind = "macd"
	KindDoubleSMA Kind = "mult2"
)

// Kinds lists every indicator in route order.
var Kinds = []Kind{KindOHLC, KindRSI, KindMACD, KindDoubleSMA}

// layout is where an indicator's data lives in the provider payload.
type layout struct {
	function provider.Function
	// section is the top-level key holding the date -> fields object.
	section string
	// fields maps record field names to provider field names.
	fields map[string]string
}

const dailySection = "Time Series (Daily)"

var layouts = map[Kind]layout{
	KindOHLC: {
		function: provider.TimeSeriesDaily,
		section:  dailySection,
		fields: map[string]string{
			"open":   "1. open",
			"high":   "2. high",
			"low":    "3. low",
			"close":  "4. close",
			"volume": "5. volume",
		},
	},
	KindRSI: {
		function: provider.RSI,
		section:  "Technical Analysis: RSI",
		fields:   map[string]string{"rsi": "RSI"},
	},
	KindMACD: {
		function: provider.MACD,
		section:  "Technical Analysis: MACD",
		fields: map[string]string{
			"macd":      "MACD",
			"signal":    "MACD_Signal",
			"histogram": "MACD_Hist",
		},
	},
	// The double SMA reads the same daily series as OHLC but is cached
	// separately.
	KindDoubleSMA: {
		function: provider.TimeSeriesDaily,
		section:  dailySection,
		fields:   map[string]string{"close": "4. close"},
	},
}

// Key is the cache key for kind, symbol and any output-affecting params,
// e.g. "rsi_IBM_14".
func Key(kind Kind, symbol string, params ...string) string {
	parts := make([]string, 0, 2+len(params))
	parts = append(parts, string(kind), symbol)
	parts = append(parts, params...)
	return strings.Join(parts, "_")
}

// each calls visit for every date in the layout's section, in the order
// the provider sent them. A date sent twice is visited once, at its first
// position, with its last values. A missing or non-object section visits
// nothing.
func (l layout) each(doc gjson.Result, visit func(date string, fields map[string]gjson.Result)) {
	section := member(doc, l.section)
	if !section.IsObject() {
		return
	}
	var dates []string
	rows := make(map[string]gjson.Result)
	section.ForEach(func(date, values gjson.Result) bool {
		d := date.String()
		if _, seen := rows[d]; !seen {
			dates = append(dates, d)
		}
		rows[d] = values
		return true
	})
	for _, d := range dates {
		visit(d, rows[d].Map())
	}
}

func (l layout) float(fields map[string]gjson.Result, name string) Float {
	return ParseFloat(fields[l.fields[name]].String())
}

// member returns obj[key] without interpreting key as a gjson path.
func member(obj gjson.Result, key string) gjson.Result {
	var out gjson.Result
	if !obj.IsObject() {
		return out
	}
	obj.ForEach(func(k, v gjson.Result) bool {
		if k.String() == key {
			out = v
			return false
		}
		return true
	})
	return out
}
