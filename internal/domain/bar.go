package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Bar is a single trading session's OHLCV for one symbol.
type Bar struct {
	Date   time.Time
	Open   decimal.Decimal
	High   decimal.Decimal
	Low    decimal.Decimal
	Close  decimal.Decimal
	Volume int64
}

// History is an ordered, append-only sequence of Bars for a single symbol,
// oldest first. The close of the last bar is the only price used for
// decisions at that session; indicators consume a tail window.
type History struct {
	Symbol string
	Bars   []Bar
}

// Closes returns the closing price series as float64, the representation
// indicators operate on. Money-typed prices are converted at this single
// boundary; nothing downstream of an indicator touches decimal.Decimal.
func (h History) Closes() []float64 {
	out := make([]float64, len(h.Bars))
	for i, b := range h.Bars {
		out[i], _ = b.Close.Float64()
	}
	return out
}

// Tail returns the last n bars, or the whole history if it is shorter.
func (h History) Tail(n int) History {
	if n >= len(h.Bars) {
		return h
	}
	return History{Symbol: h.Symbol, Bars: h.Bars[len(h.Bars)-n:]}
}

// LastClose returns the close of the most recent bar and whether one exists.
func (h History) LastClose() (decimal.Decimal, bool) {
	if len(h.Bars) == 0 {
		return decimal.Zero, false
	}
	return h.Bars[len(h.Bars)-1].Close, true
}

// LastDate returns the date of the most recent bar and whether one exists.
func (h History) LastDate() (time.Time, bool) {
	if len(h.Bars) == 0 {
		return time.Time{}, false
	}
	return h.Bars[len(h.Bars)-1].Date, true
}

// MinWarmupBars is the minimum number of prior bars required before the
// engine will produce any signal (a 250-session SMA plus tolerance).
const MinWarmupBars = 260

// HasWarmup reports whether h has enough history to compute every indicator
// the sub-strategies require.
func (h History) HasWarmup() bool {
	return len(h.Bars) >= MinWarmupBars
}
