// Package money provides the fixed-precision decimal representation used
// for every cash amount, price, and notional in White Light. Floating
// point is reserved for ratios, volatilities, and signal scores (see
// internal/indicators and internal/strategy); the two never mix.
package money

import "github.com/shopspring/decimal"

// PriceScale is the minimum number of decimal places retained for prices.
const PriceScale = 8

// CashScale is the minimum number of decimal places retained for cash.
const CashScale = 2

// Zero is the additive identity, exported to avoid repeated NewFromInt(0) calls.
var Zero = decimal.Zero

// FromFloat builds a decimal from a float64 input boundary (e.g. a vendor's
// JSON payload). It is never used for arithmetic between decimals.
func FromFloat(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

// FromString parses a decimal literal, failing loudly rather than silently
// truncating — callers at a system boundary (config, HTTP payloads) should
// propagate the error.
func FromString(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(s)
}

// RoundCash rounds d to CashScale places, rounding halves away from zero,
// the convention used whenever a decimal crosses into a ledger or report.
func RoundCash(d decimal.Decimal) decimal.Decimal {
	return d.Round(CashScale)
}

// RoundPrice rounds d to PriceScale places.
func RoundPrice(d decimal.Decimal) decimal.Decimal {
	return d.Round(PriceScale)
}

// FloorShares converts a notional/price ratio into a whole share count,
// flooring toward zero: no rounding on intermediates, only when converting
// a fractional target to an integer share count. Negative inputs floor
// toward zero too — White Light never borrows shares.
func FloorShares(notional, price decimal.Decimal) int64 {
	if price.IsZero() {
		return 0
	}
	ratio := notional.Div(price)
	return ratio.Truncate(0).IntPart()
}
