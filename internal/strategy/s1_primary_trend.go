package strategy

import (
	"github.com/lmoretti-dev/whitelight/internal/domain"
	"github.com/lmoretti-dev/whitelight/internal/indicators"
)

// S1PrimaryTrend is the long-horizon 50/250-day trend filter, the highest-
// weighted of the seven sub-strategies. A 0.5% hysteresis band on the
// current close, combined with the 50/250 SMA relationship holding for two
// consecutive sessions, keeps it from whipsawing at the crossover.
type S1PrimaryTrend struct{}

const (
	s1Weight     = 0.25
	s1Hysteresis = 0.005
	s1ConfirmN   = 2
)

func (S1PrimaryTrend) Name() string    { return "S1_PrimaryTrend" }
func (S1PrimaryTrend) Weight() float64 { return s1Weight }

func (S1PrimaryTrend) Compute(closes []float64) domain.Signal {
	score := 0.0
	if sma50, ok := indicators.SMA(closes, 50); ok {
		close := closes[len(closes)-1]
		fastOverSlowHeld := smaRelationHeld(closes, 50, 250, s1ConfirmN, true)
		fastUnderSlowHeld := smaRelationHeld(closes, 50, 250, s1ConfirmN, false)

		switch {
		case close >= sma50*(1+s1Hysteresis) && fastOverSlowHeld:
			score = 1.0
		case close <= sma50*(1-s1Hysteresis) && fastUnderSlowHeld:
			score = -0.5
		}
	}
	return domain.Signal{StrategyName: "S1_PrimaryTrend", RawScore: score, Strength: classify(score), Weight: s1Weight}
}

// smaRelationHeld reports whether SMA(fastN) has stayed strictly above (or,
// if above is false, strictly below) SMA(slowN) for the last sessions days.
func smaRelationHeld(closes []float64, fastN, slowN, sessions int, above bool) bool {
	if len(closes) < slowN+sessions {
		return false
	}
	for i := 0; i < sessions; i++ {
		end := len(closes) - i
		sub := closes[:end]
		fast, ok1 := indicators.SMA(sub, fastN)
		slow, ok2 := indicators.SMA(sub, slowN)
		if !ok1 || !ok2 {
			return false
		}
		if above && fast <= slow {
			return false
		}
		if !above && fast >= slow {
			return false
		}
	}
	return true
}
