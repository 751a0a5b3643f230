// Package strategy implements the seven stateless sub-strategies S1-S7.
// Each is a pure function of a closing-price history tail; none carries
// state across calls, and none observes anything beyond the NDX close
// series it is handed.
package strategy

import "github.com/lmoretti-dev/whitelight/internal/domain"

// Strategy is implemented by each of S1-S7. Compute receives the full
// available close series (oldest first) and classifies the most recent
// session only.
type Strategy interface {
	Name() string
	Weight() float64
	Compute(closes []float64) domain.Signal
}

// All returns the seven sub-strategies with their fixed weights,
// which sum to 1.0.
func All() []Strategy {
	return []Strategy{
		S1PrimaryTrend{},
		S2Intermediate{},
		S3ShortTerm{},
		S4TrendStrength{},
		S5MomentumVelocity{},
		S6BollingerMeanRev{},
		S7VolatilityRegime{},
	}
}

// Evaluate runs every sub-strategy against closes and returns their
// signals in a fixed, stable order.
func Evaluate(closes []float64) []domain.Signal {
	strategies := All()
	signals := make([]domain.Signal, len(strategies))
	for i, s := range strategies {
		signals[i] = s.Compute(closes)
	}
	return signals
}

// clamp restricts v to [lo, hi].
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// classify buckets a raw score into the five-state strength enum using the
// same ±0.5 "strong" threshold §4.2's per-row labels use (e.g. S1's -0.5
// STRONG_BEAR, S3's +0.5 STRONG_BULL): magnitude ≥0.5 is STRONG, any other
// nonzero magnitude is the plain direction, and exactly 0 is NEUTRAL.
func classify(score float64) domain.Strength {
	switch {
	case score >= 0.5:
		return domain.StrongBull
	case score > 0:
		return domain.Bull
	case score == 0:
		return domain.Neutral
	case score > -0.5:
		return domain.Bear
	default:
		return domain.StrongBear
	}
}
