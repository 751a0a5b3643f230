package strategy

import (
	"github.com/lmoretti-dev/whitelight/internal/domain"
	"github.com/lmoretti-dev/whitelight/internal/indicators"
)

// S4TrendStrength measures conviction behind the prevailing trend: a 60-day
// OLS slope, normalized against its own trailing 252-session distribution,
// read against which side of the 200-day SMA price currently sits.
type S4TrendStrength struct{}

const (
	s4Weight      = 0.10
	s4SlopeWindow = 60
	s4ZWindow     = 252
	s4StrongZ     = 1.5
	s4ModerateZ   = 0.75
)

func (S4TrendStrength) Name() string    { return "S4_TrendStrength" }
func (S4TrendStrength) Weight() float64 { return s4Weight }

func (S4TrendStrength) Compute(closes []float64) domain.Signal {
	score := 0.0
	sma200, ok := indicators.SMA(closes, 200)
	slopes, ok2 := trailingSlopes(closes, s4SlopeWindow, s4ZWindow)
	if ok && ok2 && len(slopes) >= 2 {
		current := slopes[len(slopes)-1]
		window := slopes[:len(slopes)-1]
		z, zok := indicators.ZScore(current, window)
		if zok {
			close := closes[len(closes)-1]
			aligned := (close >= sma200 && current > 0) || (close < sma200 && current < 0)
			absZ := z
			if absZ < 0 {
				absZ = -absZ
			}
			switch {
			case absZ > s4StrongZ && aligned:
				score = 1.0
			case absZ > s4StrongZ && !aligned:
				score = -0.5
			case absZ > s4ModerateZ && aligned:
				score = 0.5
			case absZ > s4ModerateZ && !aligned:
				score = -0.3
			}
		}
	}
	return domain.Signal{StrategyName: "S4_TrendStrength", RawScore: score, Strength: classify(score), Weight: s4Weight}
}

// trailingSlopes returns the last count+1 values of LinRegSlope(closes, n),
// oldest first, so callers can z-score the most recent against the rest.
func trailingSlopes(closes []float64, n, count int) ([]float64, bool) {
	need := n + count
	if len(closes) < need {
		count = len(closes) - n
		if count < 2 {
			return nil, false
		}
	}
	out := make([]float64, 0, count+1)
	for i := count; i >= 0; i-- {
		end := len(closes) - i
		if end < n {
			continue
		}
		slope, ok := indicators.LinRegSlope(closes[:end], n)
		if !ok {
			return nil, false
		}
		out = append(out, slope)
	}
	return out, true
}
