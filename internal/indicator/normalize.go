package indicator

import (
	"github.com/tidwall/gjson"
)

// The normalizers keep the provider's date order (newest first) and never
// fail: missing sections give an empty slice, bad fields give NaN.

func normalizeOHLC(doc gjson.Result) []OHLC {
	l := layouts[KindOHLC]
	out := make([]OHLC, 0, 100)
	l.each(doc, func(date string, f map[string]gjson.Result) {
		out = append(out, OHLC{
			Date:   date,
			Open:   l.float(f, "open"),
			High:   l.float(f, "high"),
			Low:    l.float(f, "low"),
			Close:  l.float(f, "close"),
			Volume: ParseVolume(f[l.fields["volume"]].String()),
		})
	})
	return out
}

func normalizeRSI(doc gjson.Result) []RSI {
	l := layouts[KindRSI]
	out := make([]RSI, 0, 100)
	l.each(doc, func(date string, f map[string]gjson.Result) {
		out = append(out, RSI{Date: date, RSI: l.float(f, "rsi")})
	})
	return out
}

func normalizeMACD(doc gjson.Result) []MACD {
	l := layouts[KindMACD]
	out := make([]MACD, 0, 100)
	l.each(doc, func(date string, f map[string]gjson.Result) {
		out = append(out, MACD{
			Date:      date,
			MACD:      l.float(f, "macd"),
			Signal:    l.float(f, "signal"),
			Histogram: l.float(f, "histogram"),
		})
	})
	return out
}

// dailyCloses extracts the close series in provider order.
func dailyCloses(doc gjson.Result) []ClosePoint {
	l := layouts[KindDoubleSMA]
	out := make([]ClosePoint, 0, 100)
	l.each(doc, func(date string, f map[string]gjson.Result) {
		out = append(out, ClosePoint{Date: date, Close: float64(l.float(f, "close"))})
	})
	return out
}
