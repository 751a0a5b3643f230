// Package executor turns a Reconciler plan into submitted broker orders:
// sells before buys, a cash re-read between the two legs, and a hard
// deadline derived from the market close.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lmoretti-dev/whitelight/internal/domain"
	"github.com/lmoretti-dev/whitelight/internal/money"
	"github.com/lmoretti-dev/whitelight/internal/ports"
	"github.com/lmoretti-dev/whitelight/internal/telemetry"
)

const (
	// defaultDeadlineBuffer is subtracted from market close to produce D,
	// the hard cutoff after which no further retries or polls are
	// attempted, absent an ExecutionConfig override.
	defaultDeadlineBuffer = 60 * time.Second

	// defaultSafetyMargin is the fraction of available cash held back
	// before sizing a BUY, absorbing intra-session price drift between
	// the Reconciler's estimated price and the broker's actual fill
	// price, absent an ExecutionConfig override.
	defaultSafetyMargin = 0.01

	// PollInterval is the spacing between order-status polls while
	// waiting for a fill to reach a terminal state.
	PollInterval = 2 * time.Second
)

// Params carries the sizing/deadline knobs out of config.ExecutionConfig so
// a deployment can retune the engine without a code change.
type Params struct {
	SafetyMargin   float64
	DeadlineBuffer time.Duration
	PollInterval   time.Duration
}

// DefaultParams returns the values config.setDefaults falls back to.
func DefaultParams() Params {
	return Params{
		SafetyMargin:   defaultSafetyMargin,
		DeadlineBuffer: defaultDeadlineBuffer,
		PollInterval:   PollInterval,
	}
}

// Result is the outcome of executing one planned order.
type Result struct {
	Order domain.PlannedOrder
	Fill  domain.Fill
	Err   error
}

// Executor submits a Reconciler plan against a broker and waits for fills.
type Executor struct {
	broker    ports.BrokerClient
	alerts    ports.AlertTransport
	sessionID string
	dryRun    bool
	params    Params
}

// New returns an Executor. broker is typically a *broker.FailoverClient so
// that connectivity failover is transparent to this package. sessionID
// scopes client order IDs so retried submissions are idempotent.
func New(broker ports.BrokerClient, alerts ports.AlertTransport, sessionID string, dryRun bool, params Params) *Executor {
	if params.PollInterval <= 0 {
		params.PollInterval = PollInterval
	}
	return &Executor{broker: broker, alerts: alerts, sessionID: sessionID, dryRun: dryRun, params: params}
}

// Execute runs the plan to completion or until the deadline derived from
// marketClose. Sells are submitted and polled to terminal first; cash is
// then re-read from the broker before buys are sized and submitted, so a
// partially-filled sell never oversizes a buy.
func (e *Executor) Execute(ctx context.Context, plan []domain.PlannedOrder, marketClose time.Time) ([]Result, error) {
	if len(plan) == 0 {
		return nil, nil
	}

	if e.dryRun {
		slog.Info("executor: dry-run, plan not submitted", "orders", len(plan))
		if e.alerts != nil {
			_ = e.alerts.Send(ctx, ports.SeverityInfo, "dry-run plan", formatPlan(plan))
		}
		return nil, nil
	}

	deadline := marketClose.Add(-e.params.DeadlineBuffer)
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	var sells, buys []domain.PlannedOrder
	for _, o := range plan {
		if o.Side == domain.SideSell {
			sells = append(sells, o)
		} else {
			buys = append(buys, o)
		}
	}

	var results []Result
	for _, order := range sells {
		results = append(results, e.executeOne(ctx, order, deadline))
	}

	buys = e.resizeBuys(ctx, buys)

	for _, order := range buys {
		if order.Quantity <= 0 {
			continue
		}
		results = append(results, e.executeOne(ctx, order, deadline))
	}

	e.reportOutcome(ctx, results)
	return results, nil
}

// resizeBuys re-reads available cash from the broker and, if the combined
// notional of the remaining BUYs would exceed available_cash*(1-SafetyMargin),
// proportionally floors each BUY's quantity down.
func (e *Executor) resizeBuys(ctx context.Context, buys []domain.PlannedOrder) []domain.PlannedOrder {
	if len(buys) == 0 {
		return buys
	}

	account, err := e.broker.GetAccount(ctx)
	if err != nil {
		slog.Error("executor: failed to re-read cash before buys", "error", err)
		return buys
	}

	available := account.Cash.Mul(decimal.NewFromFloat(1 - e.params.SafetyMargin))

	var totalRequired decimal.Decimal
	for _, b := range buys {
		totalRequired = totalRequired.Add(b.EstimatedPrice.Mul(decimal.NewFromInt(b.Quantity)))
	}

	if totalRequired.LessThanOrEqual(available) || totalRequired.IsZero() {
		return buys
	}

	ratio := available.Div(totalRequired)
	resized := make([]domain.PlannedOrder, len(buys))
	for i, b := range buys {
		reducedQty := money.FloorShares(decimal.NewFromInt(b.Quantity).Mul(ratio), decimal.NewFromInt(1))
		b.Quantity = reducedQty
		b.EstimatedNotional = b.EstimatedPrice.Mul(decimal.NewFromInt(reducedQty))
		resized[i] = b
		if reducedQty < buys[i].Quantity {
			slog.Warn("executor: reduced buy to fit available cash",
				"symbol", b.Symbol, "requested", buys[i].Quantity, "reduced_to", reducedQty)
		}
	}
	return resized
}

// executeOne submits order and polls until its fill reaches a terminal
// state or deadline is reached, whichever is first.
func (e *Executor) executeOne(ctx context.Context, order domain.PlannedOrder, deadline time.Time) Result {
	telemetry.OrdersAttempted.Inc()
	clientOrderID := fmt.Sprintf("%s-%s-%s-%s", e.sessionID, order.Symbol, order.Side, uuid.NewString())

	orderID, err := e.broker.SubmitMarketOrder(ctx, order.Symbol, order.Side, order.Quantity, clientOrderID)
	if err != nil {
		telemetry.OrdersFailed.Inc()
		if !domain.IsRetryable(err) {
			e.alertWarn(ctx, "order rejected", fmt.Sprintf("%s %d %s: %v", order.Side, order.Quantity, order.Symbol, err))
		}
		return Result{Order: order, Err: err}
	}
	telemetry.OrdersPlaced.Inc()

	fill, err := e.pollUntilTerminal(ctx, orderID, deadline)
	if err != nil {
		telemetry.OrdersFailed.Inc()
		if domain.KindOf(err) == domain.KindDeadlineExceeded {
			telemetry.DeadlineMisses.Inc()
		}
		return Result{Order: order, Fill: fill, Err: err}
	}
	return Result{Order: order, Fill: fill}
}

func (e *Executor) pollUntilTerminal(ctx context.Context, orderID string, deadline time.Time) (domain.Fill, error) {
	var last domain.Fill
	for {
		fill, err := e.broker.PollOrder(ctx, orderID)
		if err != nil {
			return last, err
		}
		last = fill
		if fill.Status.Terminal() {
			return fill, nil
		}
		if time.Now().After(deadline) {
			return last, domain.New(domain.KindDeadlineExceeded, "executor.pollUntilTerminal",
				fmt.Sprintf("order %s still %s at deadline", orderID, fill.Status))
		}

		select {
		case <-time.After(e.params.PollInterval):
		case <-ctx.Done():
			return last, domain.Wrap(domain.KindDeadlineExceeded, "executor.pollUntilTerminal", ctx.Err())
		}
	}
}

func (e *Executor) reportOutcome(ctx context.Context, results []Result) {
	if e.alerts == nil {
		return
	}

	var failed, partial, filled int
	for _, r := range results {
		switch {
		case r.Err != nil:
			failed++
		case r.Fill.Status == domain.OrderStatusFilled:
			filled++
		case r.Fill.Status == domain.OrderStatusPartial:
			partial++
		}
	}

	switch {
	case failed > 0:
		_ = e.alerts.Send(ctx, ports.SeverityCritical, "execution failures",
			fmt.Sprintf("%d of %d orders failed", failed, len(results)))
	case partial > 0:
		_ = e.alerts.Send(ctx, ports.SeverityWarn, "partial fills",
			fmt.Sprintf("%d of %d orders partially filled", partial, len(results)))
	default:
		_ = e.alerts.Send(ctx, ports.SeverityInfo, "execution complete",
			fmt.Sprintf("%d orders filled", filled))
	}
}

// alertWarn reports a non-transient order rejection: the order is skipped
// and the rest of the plan proceeds, so this is a WARN, not a CRITICAL.
func (e *Executor) alertWarn(ctx context.Context, title, body string) {
	if e.alerts == nil {
		return
	}
	_ = e.alerts.Send(ctx, ports.SeverityWarn, title, body)
}

func formatPlan(plan []domain.PlannedOrder) string {
	s := ""
	for _, o := range plan {
		s += fmt.Sprintf("%s %d %s @ ~%s\n", o.Side, o.Quantity, o.Symbol, o.EstimatedPrice.String())
	}
	return s
}
