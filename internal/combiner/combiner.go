// Package combiner implements the allocation state machine below: a
// deterministic function of the day's MarketContext and the previous
// session's TargetAllocation, with no hidden state beyond what the caller
// passes in.
package combiner

import (
	"github.com/shopspring/decimal"

	"github.com/lmoretti-dev/whitelight/internal/domain"
)

// State names the nominal allocation regime a session landed in, reported
// for telemetry alongside the TargetAllocation itself.
type State string

const (
	StateLong       State = "LONG"
	StateSprint     State = "SPRINT"
	StateCash       State = "CASH"
	StateTransition State = "TRANSITION"
)

const (
	// defaultTargetVol is the annualized realized-volatility target Rule 1
	// sizes the TQQQ weight against, absent an AllocationConfig override.
	defaultTargetVol = 0.20

	// defaultSprintVolThreshold is the minimum realized_vol_20 required,
	// together with the other two Rule 2 conditions, to enter the crash
	// sprint, absent an AllocationConfig override.
	defaultSprintVolThreshold = 0.25

	// defaultSprintMaxDays bounds how long after crossing below SMA200 the
	// crash sprint remains eligible, absent an AllocationConfig override.
	defaultSprintMaxDays = 15

	sprintTQQQ = 0.0
	sprintSQQQ = 0.30
	sprintBIL  = 0.70
)

// Params carries the Rule 1/2 thresholds out of config.AllocationConfig so a
// deployment can retune the engine without a code change. Zero-value Params
// is not a valid configuration; use DefaultParams or a Params built from
// config.AllocationConfig.
type Params struct {
	TargetVol          float64
	SprintVolThreshold float64
	SprintMaxDays      int
}

// DefaultParams returns the thresholds config.setDefaults falls back to.
func DefaultParams() Params {
	return Params{
		TargetVol:          defaultTargetVol,
		SprintVolThreshold: defaultSprintVolThreshold,
		SprintMaxDays:      defaultSprintMaxDays,
	}
}

// Decide runs Rules 1-4 against ctx and previous, returning the session's
// TargetAllocation together with the state it landed in.
func Decide(params Params, ctx domain.MarketContext, previous domain.TargetAllocation) (domain.TargetAllocation, State) {
	wTQQQ := volTargetWeight(params.TargetVol, ctx.RealizedVol20)
	sprintActive := crashSprintActive(params, ctx)

	wSQQQ := 0.0
	if sprintActive {
		wTQQQ = sprintTQQQ
		wSQQQ = sprintSQQQ
	}

	if directFlip(previous, wTQQQ, wSQQQ) {
		return domain.CashOnly(), StateTransition
	}

	state := StateLong
	switch {
	case sprintActive:
		state = StateSprint
	case wTQQQ == 0 && wSQQQ == 0:
		state = StateCash
	}

	return fillWithBIL(wTQQQ, wSQQQ), state
}

// volTargetWeight implements Rule 1. A zero or undefined realized_vol_20
// is treated as fully allocated.
func volTargetWeight(targetVol, realizedVol20 float64) float64 {
	if realizedVol20 <= 0 {
		return 1.0
	}
	w := targetVol / realizedVol20
	if w > 1.0 {
		return 1.0
	}
	return w
}

// crashSprintActive implements Rule 2's three-way gate.
func crashSprintActive(params Params, ctx domain.MarketContext) bool {
	return ctx.StrictlyBelowSMA200() &&
		ctx.RealizedVol20 >= params.SprintVolThreshold &&
		ctx.DaysBelowSMA200 >= 1 && ctx.DaysBelowSMA200 <= params.SprintMaxDays
}

// directFlip implements Rule 3: a session may not move straight from a
// nonzero TQQQ weight to a nonzero SQQQ weight, or vice versa.
func directFlip(previous domain.TargetAllocation, newTQQQ, newSQQQ float64) bool {
	prevTQQQPositive := previous.WTQQQ.IsPositive()
	prevSQQQPositive := previous.WSQQQ.IsPositive()
	return (newSQQQ > 0 && prevTQQQPositive) || (newTQQQ > 0 && prevSQQQPositive)
}

// NextDaysBelowSMA200 advances the running count used to populate the next
// session's MarketContext.DaysBelowSMA200: the count increments on any
// session whose close sits at or under its 200-day SMA and resets to zero
// the moment a session closes back above it (the "running count since the
// most recent cross" interpretation of the sprint window).
func NextDaysBelowSMA200(previousCount int, belowToday bool) int {
	if !belowToday {
		return 0
	}
	return previousCount + 1
}

// fillWithBIL implements Rule 4: BIL absorbs whatever weight TQQQ/SQQQ did
// not claim, and the result is rounded to domain.WeightScale places with
// any residual going to BIL so the three weights sum to exactly 1.0.
func fillWithBIL(tqqq, sqqq float64) domain.TargetAllocation {
	wTQQQ := decimal.NewFromFloat(tqqq).Round(domain.WeightScale)
	wSQQQ := decimal.NewFromFloat(sqqq).Round(domain.WeightScale)
	wBIL := decimal.NewFromInt(1).Sub(wTQQQ).Sub(wSQQQ)
	return domain.TargetAllocation{WTQQQ: wTQQQ, WSQQQ: wSQQQ, WBIL: wBIL}
}
