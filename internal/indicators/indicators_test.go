package indicators

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func series(vals...float64) []float64 { return vals }

func TestSMA_Basic(t *testing.T) {
	v, ok := SMA(series(1, 2, 3, 4, 5), 5)
	assert.True(t, ok)
	assert.InDelta(t, 3.0, v, 1e-9)
}

func TestSMA_InsufficientHistory(t *testing.T) {
	_, ok := SMA(series(1, 2), 5)
	assert.False(t, ok)
}

func TestSMA_UsesOnlyTail(t *testing.T) {
	v, ok := SMA(series(100, 100, 1, 2, 3), 3)
	assert.True(t, ok)
	assert.InDelta(t, 2.0, v, 1e-9)
}

func TestROC_Basic(t *testing.T) {
	// 110 vs 100, 10 periods back -> +10%
	s := make([]float64, 11)
	s[0] = 100
	for i := 1; i < 11; i++ {
		s[i] = 100
	}
	s[10] = 110
	v, ok := ROC(s, 10)
	assert.True(t, ok)
	assert.InDelta(t, 0.10, v, 1e-9)
}

func TestROC_ZeroPriorValue(t *testing.T) {
	_, ok := ROC(series(0, 1, 2), 2)
	assert.False(t, ok)
}

func TestRSI_AllGains(t *testing.T) {
	s := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15}
	v, ok := RSI(s, 14)
	assert.True(t, ok)
	assert.Equal(t, 100.0, v)
}

func TestRSI_InsufficientHistory(t *testing.T) {
	_, ok := RSI(series(1, 2, 3), 14)
	assert.False(t, ok)
}

func TestBollingerPctB_FlatSeriesIsNeutral(t *testing.T) {
	flat := make([]float64, 20)
	for i := range flat {
		flat[i] = 50
	}
	v, ok := BollingerPctB(flat, 20, 2)
	assert.True(t, ok)
	assert.Equal(t, 0.5, v)
}

func TestBollingerPctB_AtUpperBand(t *testing.T) {
	s := make([]float64, 20)
	for i := range s {
		s[i] = 10
	}
	s[19] = 20 // pushes last price far above the rolling mean
	v, ok := BollingerPctB(s, 20, 2)
	assert.True(t, ok)
	assert.Greater(t, v, 1.0)
}

func TestRealizedVolatility_ZeroForFlatSeries(t *testing.T) {
	flat := make([]float64, 21)
	for i := range flat {
		flat[i] = 100
	}
	v, ok := RealizedVolatility(flat, 20)
	assert.True(t, ok)
	assert.InDelta(t, 0.0, v, 1e-9)
}

func TestRealizedVolatility_InsufficientHistory(t *testing.T) {
	_, ok := RealizedVolatility(series(1, 2, 3), 20)
	assert.False(t, ok)
}

func TestLinRegSlope_PerfectUptrend(t *testing.T) {
	s := []float64{1, 2, 3, 4, 5, 6}
	v, ok := LinRegSlope(s, 6)
	assert.True(t, ok)
	assert.InDelta(t, 1.0, v, 1e-9)
}

func TestLinRegSlope_Flat(t *testing.T) {
	s := []float64{5, 5, 5, 5, 5}
	v, ok := LinRegSlope(s, 5)
	assert.True(t, ok)
	assert.InDelta(t, 0.0, v, 1e-9)
}

func TestZScore_Basic(t *testing.T) {
	window := []float64{1, 2, 3, 4, 5}
	v, ok := ZScore(5, window)
	assert.True(t, ok)
	assert.Greater(t, v, 0.0)
}

func TestZScore_ZeroVarianceIsNeutral(t *testing.T) {
	window := []float64{5, 5, 5, 5}
	v, ok := ZScore(5, window)
	assert.True(t, ok)
	assert.Equal(t, 0.0, v)
}

func TestStdev_MatchesKnownSample(t *testing.T) {
	// sample stdev of {2,4,4,4,5,5,7,9} is 2.138089935...
	v, ok := stdev([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	assert.True(t, ok)
	assert.InDelta(t, 2.13809, v, 1e-4)
}

func TestSMA_ShiftInvariant(t *testing.T) {
	a := series(1, 2, 3, 4, 5, 6, 7, 8)
	b := series(10, 1, 2, 3, 4, 5, 6, 7, 8)
	va, _ := SMA(a, 5)
	vb, _ := SMA(b, 5)
	assert.Equal(t, va, vb, "SMA of the same trailing window must not depend on history before it")
}

func TestRealizedVolatility_NonNegative(t *testing.T) {
	s := []float64{100, 102, 99, 105, 101, 98, 103, 107, 104, 100, 106, 109, 103, 101, 98, 95, 99, 102, 105, 108, 110}
	v, ok := RealizedVolatility(s, 20)
	assert.True(t, ok)
	assert.False(t, math.IsNaN(v))
	assert.GreaterOrEqual(t, v, 0.0)
}
