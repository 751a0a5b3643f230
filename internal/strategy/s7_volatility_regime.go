package strategy

import (
	"github.com/lmoretti-dev/whitelight/internal/domain"
	"github.com/lmoretti-dev/whitelight/internal/indicators"
)

// S7VolatilityRegime reads short-vs-long realized volatility as a regime
// gauge: a compressed ratio in an uptrend favors continuation, while a
// sharply expanded ratio overrides everything else as a risk-off signal.
type S7VolatilityRegime struct{}

const s7Weight = 0.10

func (S7VolatilityRegime) Name() string    { return "S7_VolatilityRegime" }
func (S7VolatilityRegime) Weight() float64 { return s7Weight }

func (S7VolatilityRegime) Compute(closes []float64) domain.Signal {
	score := 0.0
	vol20, ok1 := indicators.RealizedVolatility(closes, 20)
	vol60, ok2 := indicators.RealizedVolatility(closes, 60)
	sma100, ok3 := indicators.SMA(closes, 100)
	if ok1 && ok2 && ok3 && vol60 > 0 {
		ratio := vol20 / vol60
		close := closes[len(closes)-1]
		uptrend := close > sma100
		switch {
		case ratio > 2.0:
			score = -0.3
		case ratio < 0.8 && uptrend:
			score = 1.0
		}
	}
	return domain.Signal{StrategyName: "S7_VolatilityRegime", RawScore: score, Strength: classify(score), Weight: s7Weight}
}
