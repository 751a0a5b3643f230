package strategy

import (
	"github.com/lmoretti-dev/whitelight/internal/domain"
	"github.com/lmoretti-dev/whitelight/internal/indicators"
)

// S2Intermediate is the medium-horizon 20/100-day trend filter.
type S2Intermediate struct{}

const s2Weight = 0.15

func (S2Intermediate) Name() string    { return "S2_Intermediate" }
func (S2Intermediate) Weight() float64 { return s2Weight }

func (S2Intermediate) Compute(closes []float64) domain.Signal {
	score := 0.0
	sma20, ok1 := indicators.SMA(closes, 20)
	sma100, ok2 := indicators.SMA(closes, 100)
	if ok1 && ok2 {
		close := closes[len(closes)-1]
		closeAbove20 := close > sma20
		fastAboveSlow := sma20 > sma100

		switch {
		case closeAbove20 && fastAboveSlow:
			score = 1.0
		case closeAbove20 != fastAboveSlow:
			score = 0.3
		case !closeAbove20 && !fastAboveSlow:
			score = -0.5
		}
	}
	return domain.Signal{StrategyName: "S2_Intermediate", RawScore: score, Strength: classify(score), Weight: s2Weight}
}
