package strategy

import (
	"github.com/lmoretti-dev/whitelight/internal/domain"
	"github.com/lmoretti-dev/whitelight/internal/indicators"
)

// S6BollingerMeanRev is a tactical mean-reversion overlay: it looks for
// oversold conditions within an uptrend and a deeply-oversold bounce
// regardless of trend.
type S6BollingerMeanRev struct{}

const s6Weight = 0.15

func (S6BollingerMeanRev) Name() string    { return "S6_BollingerMeanRev" }
func (S6BollingerMeanRev) Weight() float64 { return s6Weight }

func (S6BollingerMeanRev) Compute(closes []float64) domain.Signal {
	score := 0.0
	pctB, okB := indicators.BollingerPctB(closes, 20, 2)
	sma200, okS := indicators.SMA(closes, 200)
	if okB && okS {
		close := closes[len(closes)-1]
		uptrend := close > sma200
		switch {
		case pctB < 0.05:
			score = 0.8
		case pctB < 0.2 && uptrend:
			score = 1.0
		case pctB > 0.95 && !uptrend:
			score = -0.3
		}
	}
	return domain.Signal{StrategyName: "S6_BollingerMeanRev", RawScore: score, Strength: classify(score), Weight: s6Weight}
}
