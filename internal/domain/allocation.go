package domain

import "github.com/shopspring/decimal"

// Symbols traded by the core. BIL absorbs whatever weight TQQQ/SQQQ do not
// claim — the Reconciler treats it uniformly with the two leveraged
// symbols.
const (
	SymbolTQQQ = "TQQQ"
	SymbolSQQQ = "SQQQ"
	SymbolBIL  = "BIL"
	SymbolNDX  = "NDX"
)

// WeightScale is the number of decimal places a TargetAllocation's weights
// are rounded to; residual rounding error is absorbed by BIL.
const WeightScale = 4

// TargetAllocation is the Combiner's output for one session: the fraction
// of equity to hold in each instrument. Invariant: the three weights sum to
// exactly 1.0 and at most one of WTQQQ/WSQQQ is strictly positive.
type TargetAllocation struct {
	WTQQQ decimal.Decimal
	WSQQQ decimal.Decimal
	WBIL  decimal.Decimal
}

// CashOnly is the (0,0,1.0) allocation emitted by the one-session no-flip
// transition and used to seed the first session's prior allocation.
func CashOnly() TargetAllocation {
	return TargetAllocation{WTQQQ: decimal.Zero, WSQQQ: decimal.Zero, WBIL: decimal.NewFromInt(1)}
}

// Weight returns the target weight for one of the three traded symbols.
func (a TargetAllocation) Weight(symbol string) decimal.Decimal {
	switch symbol {
	case SymbolTQQQ:
		return a.WTQQQ
	case SymbolSQQQ:
		return a.WSQQQ
	case SymbolBIL:
		return a.WBIL
	default:
		return decimal.Zero
	}
}

// SumsToOne reports whether the three weights sum to 1.0 within tolerance,
// the first of the two universal allocation invariants.
func (a TargetAllocation) SumsToOne() bool {
	sum := a.WTQQQ.Add(a.WSQQQ).Add(a.WBIL)
	diff := sum.Sub(decimal.NewFromInt(1)).Abs()
	return diff.LessThanOrEqual(decimal.NewFromFloat(1e-6))
}

// NoDualLeverage reports whether at most one of TQQQ/SQQQ is strictly
// positive, the second universal allocation invariant.
func (a TargetAllocation) NoDualLeverage() bool {
	return a.WTQQQ.IsZero() || a.WSQQQ.IsZero()
}

// Valid runs both allocation invariants plus the [0,1] bound on each weight.
func (a TargetAllocation) Valid() bool {
	if !a.SumsToOne() || !a.NoDualLeverage() {
		return false
	}
	for _, w := range []decimal.Decimal{a.WTQQQ, a.WSQQQ, a.WBIL} {
		if w.IsNegative() || w.GreaterThan(decimal.NewFromInt(1)) {
			return false
		}
	}
	return true
}
