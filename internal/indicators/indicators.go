// Package indicators implements the shared numeric primitives the
// sub-strategies in internal/strategy are built on. Every function takes a
// float64 series (oldest first) and an explicit lookback, and returns a
// scalar for the most recent observation only — callers that need a
// rolling series call these in a loop over successive tails.
//
// Numeric policy: 64-bit float throughout; sample stdev uses an n-1
// denominator; a division by zero yields the documented neutral output
// rather than NaN or a panic.
package indicators

import "math"

// SMA returns the arithmetic mean of the last n values of series. The
// second return value is false if series has fewer than n observations.
func SMA(series []float64, n int) (float64, bool) {
	if n <= 0 || len(series) < n {
		return 0, false
	}
	tail := series[len(series)-n:]
	var sum float64
	for _, v := range tail {
		sum += v
	}
	return sum / float64(n), true
}

// ROC is the rate of change over n periods: series[t]/series[t-n] - 1,
// expressed as a fraction (not a percentage).
func ROC(series []float64, n int) (float64, bool) {
	if n <= 0 || len(series) <= n {
		return 0, false
	}
	last := series[len(series)-1]
	prior := series[len(series)-1-n]
	if prior == 0 {
		return 0, false
	}
	return last/prior - 1, true
}

// RSI computes Wilder's Relative Strength Index over period, returning a
// value in [0, 100]. It requires at least period+1 observations to seed the
// first average gain/loss, then applies Wilder smoothing forward.
func RSI(series []float64, period int) (float64, bool) {
	if period <= 0 || len(series) < period+1 {
		return 0, false
	}
	gains := make([]float64, 0, len(series)-1)
	losses := make([]float64, 0, len(series)-1)
	for i := 1; i < len(series); i++ {
		delta := series[i] - series[i-1]
		if delta > 0 {
			gains = append(gains, delta)
			losses = append(losses, 0)
		} else {
			gains = append(gains, 0)
			losses = append(losses, -delta)
		}
	}
	var avgGain, avgLoss float64
	for i := 0; i < period; i++ {
		avgGain += gains[i]
		avgLoss += losses[i]
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)
	alpha := 1.0 / float64(period)
	for i := period; i < len(gains); i++ {
		avgGain = alpha*gains[i] + (1-alpha)*avgGain
		avgLoss = alpha*losses[i] + (1-alpha)*avgLoss
	}
	if avgLoss == 0 {
		return 100, true
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs)), true
}

// stdev returns the sample standard deviation (n-1 denominator) of values.
func stdev(values []float64) (float64, bool) {
	n := len(values)
	if n < 2 {
		return 0, false
	}
	var mean float64
	for _, v := range values {
		mean += v
	}
	mean /= float64(n)
	var ss float64
	for _, v := range values {
		d := v - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(n-1)), true
}

// BollingerPctB returns %B = (price-lower)/(upper-lower) where the bands are
// SMA(series,n) ± k*stdev(series,n). A zero band width (flat price) yields
// the documented neutral 0.5.
func BollingerPctB(series []float64, n int, k float64) (float64, bool) {
	if n <= 0 || len(series) < n {
		return 0.5, false
	}
	tail := series[len(series)-n:]
	mean, ok := SMA(series, n)
	if !ok {
		return 0.5, false
	}
	sd, ok := stdev(tail)
	if !ok {
		return 0.5, false
	}
	upper := mean + k*sd
	lower := mean - k*sd
	width := upper - lower
	if width == 0 {
		return 0.5, true
	}
	price := series[len(series)-1]
	return (price - lower) / width, true
}

// RealizedVolatility is the annualized stdev of log returns over the last n
// periods: stdev(log_returns, n) * sqrt(252).
func RealizedVolatility(series []float64, n int) (float64, bool) {
	if n <= 0 || len(series) < n+1 {
		return 0, false
	}
	tail := series[len(series)-(n+1):]
	logReturns := make([]float64, 0, n)
	for i := 1; i < len(tail); i++ {
		if tail[i-1] <= 0 || tail[i] <= 0 {
			return 0, false
		}
		logReturns = append(logReturns, math.Log(tail[i]/tail[i-1]))
	}
	sd, ok := stdev(logReturns)
	if !ok {
		return 0, false
	}
	return sd * math.Sqrt(252), true
}

// LinRegSlope returns the OLS slope coefficient of series' last n values
// against indices 0..n-1. A degenerate (zero-variance x, which cannot occur
// for n>=2) case returns the documented neutral 0.
func LinRegSlope(series []float64, n int) (float64, bool) {
	if n < 2 || len(series) < n {
		return 0, false
	}
	tail := series[len(series)-n:]
	var sx, sy, sxy, sx2 float64
	for i, y := range tail {
		x := float64(i)
		sx += x
		sy += y
		sxy += x * y
		sx2 += x * x
	}
	nf := float64(n)
	denom := nf*sx2 - sx*sx
	if denom == 0 {
		return 0, true
	}
	return (nf*sxy - sx*sy) / denom, true
}

// ZScore returns (value - mean(window)) / stdev(window). A zero-variance
// window yields the documented neutral 0.
func ZScore(value float64, window []float64) (float64, bool) {
	if len(window) < 2 {
		return 0, false
	}
	var mean float64
	for _, v := range window {
		mean += v
	}
	mean /= float64(len(window))
	sd, ok := stdev(window)
	if !ok || sd == 0 {
		return 0, true
	}
	return (value - mean) / sd, true
}
