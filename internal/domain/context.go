package domain

// MarketContext is the set of derived, non-strategy-specific figures at
// date t that the Combiner consumes directly.
type MarketContext struct {
	Close           float64
	SMA200          float64
	RealizedVol20   float64
	DaysBelowSMA200 int
}

// BelowSMA200 reports whether the session's close sat at or under its
// 200-day SMA, the condition that increments DaysBelowSMA200.
func (c MarketContext) BelowSMA200() bool {
	return c.SMA200 > 0 && c.Close <= c.SMA200
}

// StrictlyBelowSMA200 reports whether the session's close sat strictly
// under its 200-day SMA. Rule 2's crash-sprint gate uses this strict form;
// the running days-below-SMA200 counter uses the <= form in BelowSMA200.
func (c MarketContext) StrictlyBelowSMA200() bool {
	return c.SMA200 > 0 && c.Close < c.SMA200
}
