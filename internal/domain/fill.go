package domain

import "github.com/shopspring/decimal"

// OrderStatus is the terminal or in-flight state of a submitted order, as
// reported by the broker adapter.
type OrderStatus string

const (
	OrderStatusNew      OrderStatus = "NEW"
	OrderStatusFilled   OrderStatus = "FILLED"
	OrderStatusPartial  OrderStatus = "PARTIALLY_FILLED"
	OrderStatusRejected OrderStatus = "REJECTED"
	OrderStatusCanceled OrderStatus = "CANCELED"
)

// Terminal reports whether status will not change with further polling.
// PARTIALLY_FILLED counts as terminal: the executor treats a partial sell
// as done, re-reads cash, and sizes buys against what actually filled
// rather than blocking the rest of the session on the remainder.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderStatusFilled, OrderStatusPartial, OrderStatusRejected, OrderStatusCanceled:
		return true
	default:
		return false
	}
}

// Fill is the result of one submitted order after polling reaches a
// terminal state or the executor's deadline expires, whichever comes
// first. A PARTIALLY_FILLED fill at deadline still carries whatever
// quantity the broker actually filled.
type Fill struct {
	OrderID        string
	Symbol         string
	Side           Side
	RequestedQty   int64
	FilledQuantity int64
	AvgFillPrice   decimal.Decimal
	Status         OrderStatus
}

// Remaining returns the unfilled quantity.
func (f Fill) Remaining() int64 {
	r := f.RequestedQty - f.FilledQuantity
	if r < 0 {
		return 0
	}
	return r
}
