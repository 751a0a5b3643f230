package strategy

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

// uptrend builds a long, steadily rising close series with enough warm-up
// for every sub-strategy's longest lookback (S1's 250-day SMA).
func uptrend(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + step*float64(i)
	}
	return out
}

func downtrend(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start - step*float64(i)
	}
	return out
}

func TestS1_StrongBullInSustainedUptrend(t *testing.T) {
	closes := uptrend(400, 100, 0.5)
	sig := S1PrimaryTrend{}.Compute(closes)
	assert.Equal(t, 1.0, sig.RawScore)
	assert.Equal(t, "S1_PrimaryTrend", sig.StrategyName)
}

func TestS1_StrongBearInSustainedDowntrend(t *testing.T) {
	closes := downtrend(400, 1000, 0.5)
	sig := S1PrimaryTrend{}.Compute(closes)
	assert.Equal(t, -0.5, sig.RawScore)
}

func TestS1_NeutralOnInsufficientHistory(t *testing.T) {
	closes := uptrend(10, 100, 0.5)
	sig := S1PrimaryTrend{}.Compute(closes)
	assert.Equal(t, 0.0, sig.RawScore)
}

func TestS2_StrongBullAligned(t *testing.T) {
	closes := uptrend(150, 100, 0.5)
	sig := S2Intermediate{}.Compute(closes)
	assert.Equal(t, 1.0, sig.RawScore)
}

func TestS2_StrongBearAligned(t *testing.T) {
	closes := downtrend(150, 500, 0.5)
	sig := S2Intermediate{}.Compute(closes)
	assert.Equal(t, -0.5, sig.RawScore)
}

func TestS3_StrongBullAligned(t *testing.T) {
	closes := uptrend(60, 100, 0.5)
	sig := S3ShortTerm{}.Compute(closes)
	assert.Equal(t, 1.0, sig.RawScore)
}

func TestS4_NeutralOnInsufficientHistory(t *testing.T) {
	closes := uptrend(100, 100, 0.5)
	sig := S4TrendStrength{}.Compute(closes)
	assert.Equal(t, 0.0, sig.RawScore)
}

func TestS5_CrashPenaltyClampedWithinBounds(t *testing.T) {
	closes := downtrend(60, 500, 10)
	sig := S5MomentumVelocity{}.Compute(closes)
	assert.GreaterOrEqual(t, sig.RawScore, -1.0)
	assert.LessOrEqual(t, sig.RawScore, 1.0)
}

func TestS6_TacticalBounceOnDeepOversold(t *testing.T) {
	closes := downtrend(250, 500, 1)
	closes = append(closes, closes[len(closes)-1]*0.7) // sharp one-day drop
	sig := S6BollingerMeanRev{}.Compute(closes)
	assert.Equal(t, 0.8, sig.RawScore)
}

func TestS6_NeutralOnFlatSeries(t *testing.T) {
	closes := make([]float64, 210)
	for i := range closes {
		closes[i] = 100
	}
	sig := S6BollingerMeanRev{}.Compute(closes)
	assert.Equal(t, 0.0, sig.RawScore)
}

func TestS7_RiskOffOverrideOnVolSpike(t *testing.T) {
	closes := make([]float64, 120)
	for i := range closes {
		closes[i] = 100
	}
	// inject a violent whipsaw into the most recent 20 sessions so
	// RealizedVol(20) dwarfs RealizedVol(60).
	for i := len(closes) - 20; i < len(closes); i++ {
		if i%2 == 0 {
			closes[i] = closes[i-1] * 1.15
		} else {
			closes[i] = closes[i-1] * 0.87
		}
	}
	sig := S7VolatilityRegime{}.Compute(closes)
	assert.Equal(t, -0.3, sig.RawScore)
}

func TestEvaluate_WeightsSumToOne(t *testing.T) {
	var total float64
	for _, s := range All() {
		total += s.Weight()
	}
	assert.InDelta(t, 1.0, total, 1e-9)
}

func TestEvaluate_ReturnsSevenSignals(t *testing.T) {
	closes := uptrend(400, 100, 0.5)
	signals := Evaluate(closes)
	assert.Len(t, signals, 7)
}

// TestShiftInvariance verifies item 3: a sub-strategy's output at date t
// depends only on the trailing window it consumes, not on history before
// that window.
func TestShiftInvariance(t *testing.T) {
	base := uptrend(400, 100, 0.5)
	padded := append(uptrend(50, 1, 0.01), base...)

	for _, s := range All() {
		a := s.Compute(base)
		b := s.Compute(padded)
		assert.True(t, math.Abs(a.RawScore-b.RawScore) < 1e-9, "%s should be shift-invariant", s.Name())
	}
}
