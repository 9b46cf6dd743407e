package indicator

// OHLC is one trading day of the daily price series.
type OHLC struct {
	Date   string `json:"date"`
	Open   Float  `json:"open"`
	High   Float  `json:"high"`
	Low    Float  `json:"low"`
	Close  Float  `json:"close"`
	Volume Volume `json:"volume"`
}

// RSI is one relative-strength-index point.
type RSI struct {
	Date string `json:"date"`
	RSI  Float  `json:"rsi"`
}

// MACD is one moving-average-convergence-divergence point.
type MACD struct {
	Date      string `json:"date"`
	MACD      Float  `json:"macd"`
	Signal    Float  `json:"signal"`
	Histogram Float  `json:"histogram"`
}

// DoubleSMA is twice the trailing simple moving average of daily closes.
type DoubleSMA struct {
	Date  string `json:"date"`
	Mult2 Float  `json:"mult2"`
}
