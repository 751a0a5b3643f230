package strategy

import (
	"github.com/lmoretti-dev/whitelight/internal/domain"
	"github.com/lmoretti-dev/whitelight/internal/indicators"
)

// S5MomentumVelocity tracks acceleration of 14-day momentum: whether its
// 3-day-smoothed value is both rising and positive, or both falling and
// negative, with an added penalty for a sharp 5-day drawdown.
type S5MomentumVelocity struct{}

const s5Weight = 0.15

func (S5MomentumVelocity) Name() string    { return "S5_MomentumVelocity" }
func (S5MomentumVelocity) Weight() float64 { return s5Weight }

func (S5MomentumVelocity) Compute(closes []float64) domain.Signal {
	score := 0.0
	roc14Series, ok := rocSeries(closes, 14, 4)
	if ok {
		smoothedT, okT := indicators.SMA(roc14Series, 3)
		smoothedPrev, okP := indicators.SMA(roc14Series[:3], 3)
		if okT && okP {
			diff := smoothedT - smoothedPrev
			switch {
			case smoothedT > 0 && diff > 0:
				score = 1.0
			case smoothedT < 0 && diff < 0:
				score = -0.7
			}
		}
	}
	if roc5, ok := indicators.ROC(closes, 5); ok && roc5 < -0.05 {
		score -= 0.2
	}
	score = clamp(score, -1.0, 1.0)
	return domain.Signal{StrategyName: "S5_MomentumVelocity", RawScore: score, Strength: classify(score), Weight: s5Weight}
}

// rocSeries returns the last count values of ROC(closes, n), oldest first.
func rocSeries(closes []float64, n, count int) ([]float64, bool) {
	if len(closes) < n+count {
		return nil, false
	}
	out := make([]float64, 0, count)
	for i := count - 1; i >= 0; i-- {
		end := len(closes) - i
		v, ok := indicators.ROC(closes[:end], n)
		if !ok {
			return nil, false
		}
		out = append(out, v)
	}
	return out, true
}
