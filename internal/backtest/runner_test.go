package backtest

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lmoretti-dev/whitelight/internal/domain"
	"github.com/lmoretti-dev/whitelight/internal/strategy"
)

// syntheticHistory builds n daily bars starting at start, with a close
// price that follows a smooth uptrend plus a small oscillation so the
// Bollinger/RSI-style indicators see real variation rather than a flat line.
func syntheticHistory(symbol string, n int, start time.Time, base, drift float64) domain.History {
	bars := make([]domain.Bar, n)
	price := base
	for i := 0; i < n; i++ {
		price += drift
		wobble := 0.0
		if i%7 == 0 {
			wobble = -drift * 2
		}
		close := decimal.NewFromFloat(price + wobble)
		bars[i] = domain.Bar{
			Date:  start.AddDate(0, 0, i),
			Open:  close,
			High:  close,
			Low:   close,
			Close: close,
		}
	}
	return domain.History{Symbol: symbol, Bars: bars}
}

func buildHistories(n int) Histories {
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	return Histories{
		NDX:  syntheticHistory(domain.SymbolNDX, n, start, 10000, 2.0),
		TQQQ: syntheticHistory(domain.SymbolTQQQ, n, start, 50, 0.1),
		SQQQ: syntheticHistory(domain.SymbolSQQQ, n, start, 20, -0.02),
		BIL:  syntheticHistory(domain.SymbolBIL, n, start, 91.5, 0.002),
	}
}

func TestRun_ProducesSnapshotsAfterWarmup(t *testing.T) {
	histories := buildHistories(320)
	cfg := Config{
		Start:          histories.NDX.Bars[0].Date,
		End:            histories.NDX.Bars[len(histories.NDX.Bars)-1].Date,
		InitialCapital: decimal.NewFromInt(100000),
	}

	result, err := Run(histories, strategy.All(), cfg)
	require.NoError(t, err)
	assert.NotEmpty(t, result.Snapshots)
	assert.Equal(t, 320-domain.MinWarmupBars+1, len(result.Snapshots))

	for _, s := range result.Snapshots {
		assert.True(t, s.Target.Valid())
		assert.True(t, s.PortfolioValue.IsPositive())
	}
}

func TestRun_IsDeterministic(t *testing.T) {
	histories := buildHistories(320)
	cfg := Config{
		Start:          histories.NDX.Bars[0].Date,
		End:            histories.NDX.Bars[len(histories.NDX.Bars)-1].Date,
		InitialCapital: decimal.NewFromInt(100000),
	}

	first, err1 := Run(histories, strategy.All(), cfg)
	second, err2 := Run(histories, strategy.All(), cfg)
	require.NoError(t, err1)
	require.NoError(t, err2)

	assert.InDelta(t, first.Metrics.TotalReturn, second.Metrics.TotalReturn, 1e-6)
	assert.InDelta(t, first.Metrics.AnnualReturn, second.Metrics.AnnualReturn, 1e-6)
	assert.InDelta(t, first.Metrics.MaxDrawdown, second.Metrics.MaxDrawdown, 1e-6)
	assert.InDelta(t, first.Metrics.SharpeRatio, second.Metrics.SharpeRatio, 1e-6)
	assert.InDelta(t, first.Metrics.SortinoRatio, second.Metrics.SortinoRatio, 1e-6)
	assert.Equal(t, len(first.Trades), len(second.Trades))
	assert.Equal(t, len(first.Snapshots), len(second.Snapshots))
}

func TestRun_ErrorsWhenNoTradingDaysInRange(t *testing.T) {
	histories := buildHistories(320)
	cfg := Config{
		Start:          time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC),
		End:            time.Date(1999, 12, 31, 0, 0, 0, 0, time.UTC),
		InitialCapital: decimal.NewFromInt(100000),
	}

	_, err := Run(histories, strategy.All(), cfg)
	assert.Error(t, err)
}

func TestMetrics_FlatEquityCurveHasZeroRatios(t *testing.T) {
	equity := make([]float64, 10)
	for i := range equity {
		equity[i] = 100000
	}
	m := computeMetrics(equity, nil)
	assert.Equal(t, 0.0, m.TotalReturn)
	assert.Equal(t, 0.0, m.MaxDrawdown)
	assert.Equal(t, 0.0, m.SharpeRatio)
}

func TestMetrics_WinRateAndProfitFactor(t *testing.T) {
	win := 100.0
	loss := -50.0
	trades := []Trade{
		{PnL: &win},
		{PnL: &loss},
	}
	m := computeMetrics([]float64{100000, 100050}, trades)
	assert.Equal(t, 0.5, m.WinRate)
	assert.Equal(t, 2.0, m.ProfitFactor)
}
