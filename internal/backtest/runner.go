// Package backtest replays the Combiner and Reconciler against historical
// bars with a simulated broker, reusing the live decision path
// unchanged: only the execution side is simulated.
package backtest

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lmoretti-dev/whitelight/internal/combiner"
	"github.com/lmoretti-dev/whitelight/internal/domain"
	"github.com/lmoretti-dev/whitelight/internal/indicators"
	"github.com/lmoretti-dev/whitelight/internal/money"
	"github.com/lmoretti-dev/whitelight/internal/reconciler"
	"github.com/lmoretti-dev/whitelight/internal/strategy"
)

// Config parameterizes one replay.
type Config struct {
	Start, End     time.Time
	InitialCapital decimal.Decimal
	WarmupBars     int               // defaults to domain.MinWarmupBars
	SlippageBps    decimal.Decimal   // uniform slippage applied to every fill price; zero in the base model
	BILAnnualYield decimal.Decimal   // BIL_APR, accrued BILAnnualYield/252 on days BIL has no bar
	Allocation     combiner.Params   // defaults to combiner.DefaultParams
	Reconcile      reconciler.Params // defaults to reconciler.DefaultParams
}

// Histories is the per-symbol bar set the replay walks. NDX drives the
// indicator calendar; TQQQ/SQQQ/BIL are the tradable instruments.
type Histories struct {
	NDX, TQQQ, SQQQ, BIL domain.History
}

// Snapshot is one trading day's recorded state.
type Snapshot struct {
	Date           time.Time
	Target         domain.TargetAllocation
	State          combiner.State
	Positions      map[string]int64
	Cash           decimal.Decimal
	PortfolioValue decimal.Decimal
	Composite      float64
}

// Trade is one executed leg of the blotter. PnL and DurationDays are set
// only when the trade closes (fully or partially) a prior open position —
// the round-trip accounting the summary metrics consume.
type Trade struct {
	Date         time.Time
	Symbol       string
	Side         domain.Side
	Shares       int64
	Price        decimal.Decimal
	PnL          *float64
	DurationDays *int
}

// Result is the complete output of a replay.
type Result struct {
	Config    Config
	Snapshots []Snapshot
	Trades    []Trade
	Metrics   Metrics
}

type openLot struct {
	entryDate time.Time
	avgPrice  decimal.Decimal
	shares    int64
}

// Run executes the deterministic day-walker. Given identical
// histories and config, two calls produce byte-identical Metrics to 6
// significant figures — nothing in this function reads wall-clock time or
// randomness.
func Run(histories Histories, strategies []strategy.Strategy, cfg Config) (Result, error) {
	if cfg.WarmupBars == 0 {
		cfg.WarmupBars = domain.MinWarmupBars
	}
	if cfg.Allocation == (combiner.Params{}) {
		cfg.Allocation = combiner.DefaultParams()
	}
	if cfg.Reconcile == (reconciler.Params{}) {
		cfg.Reconcile = reconciler.DefaultParams()
	}

	tqqqByDate := indexByDate(histories.TQQQ)
	sqqqByDate := indexByDate(histories.SQQQ)
	bilByDate := indexByDate(histories.BIL)

	var tradingDays []domain.Bar
	for i, bar := range histories.NDX.Bars {
		if bar.Date.Before(cfg.Start) || bar.Date.After(cfg.End) {
			continue
		}
		if i+1 < cfg.WarmupBars {
			continue
		}
		if _, ok := tqqqByDate[dateKey(bar.Date)]; !ok {
			continue
		}
		if _, ok := sqqqByDate[dateKey(bar.Date)]; !ok {
			continue
		}
		tradingDays = append(tradingDays, bar)
	}

	if len(tradingDays) == 0 {
		return Result{Config: cfg}, fmt.Errorf("backtest: no trading days in range with full warmup and aligned bars")
	}

	cash := cfg.InitialCapital
	positions := map[string]int64{domain.SymbolTQQQ: 0, domain.SymbolSQQQ: 0, domain.SymbolBIL: 0}
	openLots := map[string]*openLot{}

	prevAllocation := domain.CashOnly()
	prevDaysBelow := 0

	var snapshots []Snapshot
	var trades []Trade

	ndxCloses := histories.NDX.Closes()
	ndxIndexByDate := make(map[string]int, len(histories.NDX.Bars))
	for i, b := range histories.NDX.Bars {
		ndxIndexByDate[dateKey(b.Date)] = i
	}

	for _, day := range tradingDays {
		idx := ndxIndexByDate[dateKey(day.Date)]
		closesUpToDay := ndxCloses[:idx+1]

		signals := evaluateAll(strategies, closesUpToDay)
		composite := domain.CompositeScore(signals)

		sma200, _ := indicators.SMA(closesUpToDay, 200)
		vol20, _ := indicators.RealizedVolatility(closesUpToDay, 20)
		belowToday := sma200 > 0 && day.Close.InexactFloat64() <= sma200
		daysBelow := combiner.NextDaysBelowSMA200(prevDaysBelow, belowToday)

		marketCtx := domain.MarketContext{
			Close:           mustFloat(day.Close),
			SMA200:          sma200,
			RealizedVol20:   vol20,
			DaysBelowSMA200: daysBelow,
		}

		target, state := combiner.Decide(cfg.Allocation, marketCtx, prevAllocation)

		tqqqPrice := tqqqByDate[dateKey(day.Date)].Close
		sqqqPrice := sqqqByDate[dateKey(day.Date)].Close
		bilPrice, bilHasBar := bilPriceFor(bilByDate, day.Date)
		if !bilHasBar {
			bilPrice = accruedBILPrice(cfg, openLots)
		}

		equity := markToMarket(cash, positions, map[string]decimal.Decimal{
			domain.SymbolTQQQ: tqqqPrice,
			domain.SymbolSQQQ: sqqqPrice,
			domain.SymbolBIL:  bilPrice,
		})

		snapshot := domain.AccountSnapshot{
			Equity: equity,
			Cash:   cash,
			Positions: map[string]domain.Position{
				domain.SymbolTQQQ: {Symbol: domain.SymbolTQQQ, Quantity: positions[domain.SymbolTQQQ], MarketValue: tqqqPrice.Mul(decimal.NewFromInt(positions[domain.SymbolTQQQ]))},
				domain.SymbolSQQQ: {Symbol: domain.SymbolSQQQ, Quantity: positions[domain.SymbolSQQQ], MarketValue: sqqqPrice.Mul(decimal.NewFromInt(positions[domain.SymbolSQQQ]))},
				domain.SymbolBIL:  {Symbol: domain.SymbolBIL, Quantity: positions[domain.SymbolBIL], MarketValue: bilPrice.Mul(decimal.NewFromInt(positions[domain.SymbolBIL]))},
			},
		}

		closes := reconciler.Closes{
			domain.SymbolTQQQ: tqqqPrice,
			domain.SymbolSQQQ: sqqqPrice,
			domain.SymbolBIL:  bilPrice,
		}
		plan := reconciler.Plan(cfg.Reconcile, target, snapshot, closes)

		for _, order := range plan {
			fillPrice := applySlippage(order, closes[order.Symbol], cfg.SlippageBps)
			notional := fillPrice.Mul(decimal.NewFromInt(order.Quantity))

			var pnl *float64
			var duration *int
			if order.Side == domain.SideSell {
				cash = cash.Add(notional)
				positions[order.Symbol] -= order.Quantity
				if lot, ok := openLots[order.Symbol]; ok && lot.shares > 0 {
					closedShares := order.Quantity
					if closedShares > lot.shares {
						closedShares = lot.shares
					}
					p, _ := fillPrice.Sub(lot.avgPrice).Mul(decimal.NewFromInt(closedShares)).Float64()
					pnl = &p
					d := int(day.Date.Sub(lot.entryDate).Hours() / 24)
					duration = &d
					lot.shares -= closedShares
					if lot.shares <= 0 {
						delete(openLots, order.Symbol)
					}
				}
			} else {
				cash = cash.Sub(notional)
				positions[order.Symbol] += order.Quantity
				if lot, ok := openLots[order.Symbol]; ok {
					totalShares := lot.shares + order.Quantity
					weighted := lot.avgPrice.Mul(decimal.NewFromInt(lot.shares)).Add(fillPrice.Mul(decimal.NewFromInt(order.Quantity)))
					lot.avgPrice = weighted.Div(decimal.NewFromInt(totalShares))
					lot.shares = totalShares
				} else {
					openLots[order.Symbol] = &openLot{entryDate: day.Date, avgPrice: fillPrice, shares: order.Quantity}
				}
			}

			trades = append(trades, Trade{
				Date: day.Date, Symbol: order.Symbol, Side: order.Side,
				Shares: order.Quantity, Price: fillPrice, PnL: pnl, DurationDays: duration,
			})
		}

		finalEquity := markToMarket(cash, positions, map[string]decimal.Decimal{
			domain.SymbolTQQQ: tqqqPrice,
			domain.SymbolSQQQ: sqqqPrice,
			domain.SymbolBIL:  bilPrice,
		})

		snapshots = append(snapshots, Snapshot{
			Date:           day.Date, Target: target, State: state,
			Positions:      cloneInt64Map(positions),
			Cash:           cash,
			PortfolioValue: finalEquity,
			Composite:      composite,
		})

		prevAllocation = target
		prevDaysBelow = daysBelow
	}

	equityCurve := make([]float64, len(snapshots))
	for i, s := range snapshots {
		equityCurve[i] = mustFloat(s.PortfolioValue)
	}

	return Result{Config: cfg, Snapshots: snapshots, Trades: trades, Metrics: computeMetrics(equityCurve, trades)}, nil
}

// evaluateAll runs the caller-supplied sub-strategy set against closes,
// in the order given, producing one Signal per strategy. The replay
// accepts the set explicitly (rather than calling strategy.Evaluate
// directly) so tests can substitute a reduced strategy set.
func evaluateAll(strategies []strategy.Strategy, closes []float64) []domain.Signal {
	signals := make([]domain.Signal, len(strategies))
	for i, s := range strategies {
		signals[i] = s.Compute(closes)
	}
	return signals
}

func indexByDate(h domain.History) map[string]domain.Bar {
	out := make(map[string]domain.Bar, len(h.Bars))
	for _, b := range h.Bars {
		out[dateKey(b.Date)] = b
	}
	return out
}

func dateKey(t time.Time) string {
	return t.UTC().Format(time.DateOnly)
}

func mustFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

func bilPriceFor(byDate map[string]domain.Bar, day time.Time) (decimal.Decimal, bool) {
	bar, ok := byDate[dateKey(day)]
	if !ok {
		return decimal.Zero, false
	}
	return bar.Close, true
}

// accruedBILPrice is the fallback used when no BIL bar exists for the day,
// rather than leave BIL priced at zero: it prices BIL at the open lot's
// average entry price plus one day of yield (BILAnnualYield/252). The yield
// is not compounded across consecutive days without a bar. With no open BIL
// lot it returns a unit price of 1.
func accruedBILPrice(cfg Config, openLots map[string]*openLot) decimal.Decimal {
	lot, ok := openLots[domain.SymbolBIL]
	if !ok {
		return decimal.NewFromInt(1)
	}
	dailyYield := cfg.BILAnnualYield.Div(decimal.NewFromInt(tradingDaysPerYear))
	return lot.avgPrice.Mul(decimal.NewFromInt(1).Add(dailyYield))
}

func markToMarket(cash decimal.Decimal, positions map[string]int64, prices map[string]decimal.Decimal) decimal.Decimal {
	total := cash
	for symbol, qty := range positions {
		total = total.Add(prices[symbol].Mul(decimal.NewFromInt(qty)))
	}
	return money.RoundCash(total)
}

func applySlippage(order domain.PlannedOrder, price decimal.Decimal, slippageBps decimal.Decimal) decimal.Decimal {
	if slippageBps.IsZero() {
		return price
	}
	adj := price.Mul(slippageBps).Div(decimal.NewFromInt(10000))
	if order.Side == domain.SideBuy {
		return price.Add(adj)
	}
	return price.Sub(adj)
}

func cloneInt64Map(m map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
