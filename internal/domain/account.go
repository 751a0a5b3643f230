package domain

import "github.com/shopspring/decimal"

// Position is a single symbol's holding at the broker. Quantity is an
// integer number of shares — White Light disallows fractional shares.
type Position struct {
	Symbol      string
	Quantity    int64
	AvgCost     decimal.Decimal
	MarketValue decimal.Decimal
}

// AccountSnapshot is a read-through view of the broker's authoritative
// state at the start of a run. Equity = Cash + sum(MarketValue).
type AccountSnapshot struct {
	Equity    decimal.Decimal
	Cash      decimal.Decimal
	Positions map[string]Position
}

// QuantityOf returns the held share count for symbol, or 0 if absent.
func (s AccountSnapshot) QuantityOf(symbol string) int64 {
	if p, ok := s.Positions[symbol]; ok {
		return p.Quantity
	}
	return 0
}

// PreviousAllocation derives the prior session's allocation from live
// positions: the core holds no persisted state between runs, so the
// previous allocation is inferred from what the broker currently shows. A
// TQQQ (or SQQQ) position with nonzero quantity implies that weight was
// positive; whatever is left over is attributed to BIL/cash.
func (s AccountSnapshot) PreviousAllocation() TargetAllocation {
	if s.Equity.IsZero() {
		return CashOnly()
	}
	tqqq := s.Positions[SymbolTQQQ]
	sqqq := s.Positions[SymbolSQQQ]

	wTqqq := decimal.Zero
	if tqqq.Quantity > 0 {
		wTqqq = tqqq.MarketValue.Div(s.Equity).Round(WeightScale)
	}
	wSqqq := decimal.Zero
	if sqqq.Quantity > 0 {
		wSqqq = sqqq.MarketValue.Div(s.Equity).Round(WeightScale)
	}
	wBil := decimal.NewFromInt(1).Sub(wTqqq).Sub(wSqqq)
	if wBil.IsNegative() {
		wBil = decimal.Zero
	}
	return TargetAllocation{WTQQQ: wTqqq, WSQQQ: wSqqq, WBIL: wBil}
}
