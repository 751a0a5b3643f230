package domain

import "github.com/shopspring/decimal"

// Side is the direction of a planned or executed order.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// PlannedOrder is one line of the Reconciler's output plan: a whole-share
// delta for a single symbol, already net of the minimum-notional and
// rebalance-threshold filters.
type PlannedOrder struct {
	Symbol            string
	Side              Side
	Quantity          int64
	EstimatedPrice    decimal.Decimal
	EstimatedNotional decimal.Decimal
}

// ClientOrderID scopes an idempotency key to one planned order within a
// session; the Executor supplies the session ID.
type ClientOrderID struct {
	SessionID string
	Symbol    string
	Side      Side
}
