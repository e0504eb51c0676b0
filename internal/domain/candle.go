package domain

// Candle is one OHLCV bar. Timestamp is Unix milliseconds (UTC).
// Candle sequences are ordered by Timestamp ASC and immutable once fetched.
type Candle struct {
	Timestamp int64   `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}
