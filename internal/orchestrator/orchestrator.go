// Package orchestrator wires the decision path (indicators, strategy,
// combiner, reconciler) to the adapters (market data, broker, alerts) for
// one live session, and enforces the invariant checks between the
// Combiner and the Reconciler.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/lmoretti-dev/whitelight/internal/adapters/broker"
	"github.com/lmoretti-dev/whitelight/internal/combiner"
	"github.com/lmoretti-dev/whitelight/internal/domain"
	"github.com/lmoretti-dev/whitelight/internal/executor"
	"github.com/lmoretti-dev/whitelight/internal/indicators"
	"github.com/lmoretti-dev/whitelight/internal/ports"
	"github.com/lmoretti-dev/whitelight/internal/reconciler"
	"github.com/lmoretti-dev/whitelight/internal/strategy"
	"github.com/lmoretti-dev/whitelight/internal/telemetry"
)

// ExitCode is the CLI's exit-code contract, letting cmd/whitelight translate
// an orchestrator error straight into os.Exit without re-deriving the mapping.
type ExitCode int

const (
	ExitOK              ExitCode = 0
	ExitConfigError     ExitCode = 2
	ExitDataUnavailable ExitCode = 3
	ExitBrokerFailure   ExitCode = 4
	ExitDeadlineMissed  ExitCode = 5
)

// Orchestrator holds every collaborator a live or sync session needs.
// Allocation, Reconcile, and Execution carry the tunable thresholds out of
// config.AllocationConfig/ExecutionConfig; a zero-value field falls back to
// that package's own DefaultParams, so existing callers that never set them
// keep the original hardcoded behavior.
type Orchestrator struct {
	MarketData ports.MarketDataProvider
	Cache      ports.BarCache
	Broker     ports.BrokerClient
	Alerts     ports.AlertTransport
	Strategies []strategy.Strategy

	Allocation combiner.Params
	Reconcile  reconciler.Params
	Execution  executor.Params
}

// allocationParams returns o.Allocation, falling back to combiner's defaults
// when the field was never set.
func (o *Orchestrator) allocationParams() combiner.Params {
	if o.Allocation == (combiner.Params{}) {
		return combiner.DefaultParams()
	}
	return o.Allocation
}

// reconcileParams returns o.Reconcile, falling back to reconciler's defaults
// when the field was never set.
func (o *Orchestrator) reconcileParams() reconciler.Params {
	if o.Reconcile == (reconciler.Params{}) {
		return reconciler.DefaultParams()
	}
	return o.Reconcile
}

// executionParams returns o.Execution, falling back to executor's defaults
// when the field was never set.
func (o *Orchestrator) executionParams() executor.Params {
	if o.Execution == (executor.Params{}) {
		return executor.DefaultParams()
	}
	return o.Execution
}

// SessionResult is the outcome of one RunSession call.
type SessionResult struct {
	SessionID string
	Date      time.Time
	Target    domain.TargetAllocation
	State     combiner.State
	Plan      []domain.PlannedOrder
	Fills     []executor.Result
	ExitCode  ExitCode
}

const tradedSymbols = 3 // TQQQ, SQQQ, BIL

// RunSession executes one full pipeline pass: read bars from the cache,
// compute signals, decide an allocation, reconcile against the live
// account, and execute (or, in dry-run mode, log) the resulting plan.
// marketClose is the trading session's scheduled close used to derive the
// execution deadline.
func (o *Orchestrator) RunSession(ctx context.Context, marketClose time.Time, dryRun bool) (SessionResult, error) {
	defer telemetry.SessionsRun.Inc()

	sessionID := uuid.NewString()
	result := SessionResult{SessionID: sessionID, Date: time.Now().UTC()}

	ndx, err := o.Cache.GetBars(ctx, domain.SymbolNDX, time.Time{}, result.Date)
	if err != nil || !ndx.HasWarmup() {
		o.alertCritical(ctx, "data unavailable", fmt.Sprintf("insufficient NDX history for session %s: %v", sessionID, err))
		result.ExitCode = ExitDataUnavailable
		return result, domain.Wrap(domain.KindDataGap, "orchestrator.RunSession", fmt.Errorf("NDX warmup unmet"))
	}

	closes := ndx.Closes()
	signals := evaluateAll(o.Strategies, closes)
	composite := domain.CompositeScore(signals) // computed and reported, never fed back into the allocation decision
	telemetry.CompositeScore.Set(composite)
	if err := o.Cache.RecordDecision(ctx, sessionID, result.Date, composite, signals); err != nil {
		slog.Warn("session: failed to record decision telemetry", "session_id", sessionID, "err", err)
	}

	sma200, _ := indicators.SMA(closes, 200)
	vol20, _ := indicators.RealizedVolatility(closes, 20)
	lastClose, ok := ndx.LastClose()
	if !ok {
		result.ExitCode = ExitDataUnavailable
		return result, domain.New(domain.KindDataGap, "orchestrator.RunSession", "NDX history has no bars")
	}
	lastCloseFloat, _ := lastClose.Float64()

	account, err := o.Broker.GetAccount(ctx)
	if err != nil {
		o.alertCritical(ctx, "broker unavailable", err.Error())
		result.ExitCode = ExitBrokerFailure
		return result, domain.Wrap(domain.KindBrokerTransient, "orchestrator.RunSession", err)
	}

	previous := account.PreviousAllocation()
	daysBelow := deriveDaysBelowSMA200(closes)

	marketCtx := domain.MarketContext{
		Close:           lastCloseFloat,
		SMA200:          sma200,
		RealizedVol20:   vol20,
		DaysBelowSMA200: daysBelow,
	}

	target, state := combiner.Decide(o.allocationParams(), marketCtx, previous)
	if !target.Valid() {
		o.alertCritical(ctx, "invariant violation", fmt.Sprintf("allocation %+v failed validity checks", target))
		result.ExitCode = ExitConfigError
		return result, domain.New(domain.KindInvariantViolation, "orchestrator.RunSession", "target allocation invalid")
	}
	result.Target = target
	result.State = state

	priceCloses, err := o.fetchLatestCloses(ctx)
	if err != nil {
		result.ExitCode = ExitDataUnavailable
		return result, err
	}

	plan := reconciler.Plan(o.reconcileParams(), target, account, priceCloses)
	result.Plan = plan

	exec := executor.New(o.Broker, o.Alerts, sessionID, dryRun, o.executionParams())
	fills, err := exec.Execute(ctx, plan, marketClose)
	if err != nil {
		if domain.KindOf(err) == domain.KindDeadlineExceeded {
			result.ExitCode = ExitDeadlineMissed
		} else {
			result.ExitCode = ExitBrokerFailure
		}
		return result, err
	}
	result.Fills = fills
	result.ExitCode = ExitOK

	slog.Info("session complete", "session_id", sessionID, "state", state,
		"orders", len(plan), "broker_on_secondary", o.brokerOnSecondary())
	return result, nil
}

// brokerOnSecondary reports whether this session's broker collaborator has
// already failed over, so the session-complete log line surfaces it without
// the orchestrator needing to know about failover mechanics itself.
func (o *Orchestrator) brokerOnSecondary() bool {
	fc, ok := o.Broker.(*broker.FailoverClient)
	if !ok {
		return false
	}
	return fc.ActiveIsSecondary()
}

// syncedSymbols is the universe of tickers kept warm in the bar cache.
var syncedSymbols = []string{domain.SymbolNDX, domain.SymbolTQQQ, domain.SymbolSQQQ, domain.SymbolBIL}

// maxAcceptableGap is the largest calendar-day gap between consecutive bars
// that a run of holidays/long weekends can plausibly explain; anything wider
// points at a real hole in the provider's data rather than a closed market.
const maxAcceptableGap = 5 * 24 * time.Hour

// Sync fills the bar cache's delta from each symbol's latest stored date
// through today: a delta-fetch-and-append, followed by a gap check against
// the cache's last prior bar so a hole in the provider's data surfaces as a
// CRITICAL alert instead of passing silently into the cache.
func (o *Orchestrator) Sync(ctx context.Context) error {
	defer telemetry.SessionsRun.Inc()

	now := time.Now().UTC()
	for _, symbol := range syncedSymbols {
		start := now.AddDate(-2, 0, 0) // enough lookback to satisfy warmup on a cold cache
		priorLatest, hadPrior, err := o.Cache.LatestDate(ctx, symbol)
		if err == nil && hadPrior {
			start = priorLatest.AddDate(0, 0, 1)
		}
		if !start.Before(now) {
			continue
		}

		bars, err := o.MarketData.GetDailyBars(ctx, symbol, start, now)
		if err != nil {
			o.alertCritical(ctx, "sync failed", fmt.Sprintf("%s: %v", symbol, err))
			return domain.Wrap(domain.KindProviderTransient, "orchestrator.Sync", err)
		}
		if len(bars) == 0 {
			continue
		}

		if hadPrior {
			o.checkGap(ctx, symbol, priorLatest, bars[0].Date)
		}
		for i := 1; i < len(bars); i++ {
			o.checkGap(ctx, symbol, bars[i-1].Date, bars[i].Date)
		}

		if err := o.Cache.PutBars(ctx, symbol, bars); err != nil {
			return domain.Wrap(domain.KindDataGap, "orchestrator.Sync", err)
		}
		slog.Info("sync: appended bars", "symbol", symbol, "count", len(bars))
	}
	return nil
}

// checkGap warns and alerts, without failing the sync, when two consecutive
// bars sit further apart than any holiday calendar can explain — mirroring
// the cache validator's own calendar-day gap check rather than treating it
// as fatal, since the session can still run against whatever the cache has.
func (o *Orchestrator) checkGap(ctx context.Context, symbol string, prior, next time.Time) {
	gap := next.Sub(prior)
	if gap <= maxAcceptableGap {
		return
	}
	slog.Warn("sync: data gap detected", "symbol", symbol, "prior", prior, "next", next, "gap", gap)
	o.alertCritical(ctx, "data gap detected",
		fmt.Sprintf("%s: %s to %s is a %s gap", symbol, prior.Format("2006-01-02"), next.Format("2006-01-02"), gap))
}

func (o *Orchestrator) fetchLatestCloses(ctx context.Context) (reconciler.Closes, error) {
	out := make(reconciler.Closes, tradedSymbols)
	for _, symbol := range []string{domain.SymbolTQQQ, domain.SymbolSQQQ, domain.SymbolBIL} {
		history, err := o.Cache.GetBars(ctx, symbol, time.Time{}, time.Now().UTC())
		if err != nil {
			o.alertCritical(ctx, "data unavailable", fmt.Sprintf("%s: %v", symbol, err))
			return nil, domain.Wrap(domain.KindDataGap, "orchestrator.fetchLatestCloses", err)
		}
		price, ok := history.LastClose()
		if !ok {
			return nil, domain.New(domain.KindDataGap, "orchestrator.fetchLatestCloses", symbol+" has no bars")
		}
		out[symbol] = price
	}
	return out, nil
}

func (o *Orchestrator) alertCritical(ctx context.Context, title, body string) {
	if o.Alerts == nil {
		return
	}
	_ = o.Alerts.Send(ctx, ports.SeverityCritical, title, body)
}

// deriveDaysBelowSMA200 reconstructs the Combiner's running days-below-SMA200
// count from bar history alone, with no persisted state between sessions. It
// walks backward from the most recent close counting consecutive sessions
// at or under their 200-day SMA, stopping at the first session that crossed
// back above — the same reset condition combiner.NextDaysBelowSMA200 applies
// incrementally during a sequential backtest walk.
func deriveDaysBelowSMA200(closes []float64) int {
	var count int
	for i := len(closes) - 1; i >= domain.MinWarmupBars-1; i-- {
		sma, ok := indicators.SMA(closes[:i+1], 200)
		if !ok {
			break
		}
		below := sma > 0 && closes[i] <= sma
		if !below {
			break
		}
		count++
	}
	return count
}

func evaluateAll(strategies []strategy.Strategy, closes []float64) []domain.Signal {
	signals := make([]domain.Signal, len(strategies))
	for i, s := range strategies {
		signals[i] = s.Compute(closes)
	}
	return signals
}
