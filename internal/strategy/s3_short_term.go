package strategy

import (
	"github.com/lmoretti-dev/whitelight/internal/domain"
	"github.com/lmoretti-dev/whitelight/internal/indicators"
)

// S3ShortTerm is the fast 10/30-day trend filter.
type S3ShortTerm struct{}

const s3Weight = 0.10

func (S3ShortTerm) Name() string    { return "S3_ShortTerm" }
func (S3ShortTerm) Weight() float64 { return s3Weight }

func (S3ShortTerm) Compute(closes []float64) domain.Signal {
	score := 0.0
	sma10, ok1 := indicators.SMA(closes, 10)
	sma30, ok2 := indicators.SMA(closes, 30)
	if ok1 && ok2 {
		close := closes[len(closes)-1]
		closeAbove10 := close > sma10
		fastAboveSlow := sma10 > sma30

		switch {
		case closeAbove10 && fastAboveSlow:
			score = 1.0
		case closeAbove10 && !fastAboveSlow:
			score = 0.5
		case !closeAbove10 && !fastAboveSlow:
			score = -0.3
		}
	}
	return domain.Signal{StrategyName: "S3_ShortTerm", RawScore: score, Strength: classify(score), Weight: s3Weight}
}
